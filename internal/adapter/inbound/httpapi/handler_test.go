package httpapi

import (
	"net/http/httptest"
	"testing"

	"github.com/gatereg/registry/internal/service"
	"github.com/stretchr/testify/assert"
)

func TestPathParamPrependsSlash(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/servers/foo/bar", nil)
	req.SetPathValue("path", "foo/bar")
	assert.Equal(t, "/foo/bar", pathParam(req))
}

func TestPathParamPrefersTrimmedOverride(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/servers/foo/bar/rate", nil)
	req.SetPathValue("path", "foo/bar/rate")
	req = withTrimmedPath(req, "/foo/bar")
	assert.Equal(t, "/foo/bar", pathParam(req))
}

func TestQueryIntParsesOrFallsBack(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/search?max_results=20", nil)
	assert.Equal(t, 20, queryInt(req, "max_results", 10))

	req = httptest.NewRequest("GET", "/api/search", nil)
	assert.Equal(t, 10, queryInt(req, "max_results", 10))

	req = httptest.NewRequest("GET", "/api/search?max_results=notanumber", nil)
	assert.Equal(t, 10, queryInt(req, "max_results", 10))
}

func TestQueryBool(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/search?enabled=true", nil)
	assert.True(t, queryBool(req, "enabled"))

	req = httptest.NewRequest("GET", "/api/search?enabled=1", nil)
	assert.True(t, queryBool(req, "enabled"))

	req = httptest.NewRequest("GET", "/api/search?enabled=false", nil)
	assert.False(t, queryBool(req, "enabled"))

	req = httptest.NewRequest("GET", "/api/search", nil)
	assert.False(t, queryBool(req, "enabled"))
}

func TestParseEntityKindsIgnoresUnknownValues(t *testing.T) {
	kinds := parseEntityKinds([]string{"mcp_server", "bogus", "a2a_agent"})
	assert.Equal(t, []service.Kind{service.KindServer, service.KindAgent}, kinds)
}

func TestParseEntityKindsKeepsToolKind(t *testing.T) {
	kinds := parseEntityKinds([]string{"tool"})
	assert.Equal(t, []service.Kind{service.KindTool}, kinds)
}

func TestParseEntityKindsEmptyMeansAll(t *testing.T) {
	kinds := parseEntityKinds(nil)
	assert.Empty(t, kinds)
}
