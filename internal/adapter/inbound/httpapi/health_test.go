package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gatereg/registry/internal/domain/registry"
	"github.com/gatereg/registry/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleLiveness(t *testing.T) {
	rec := httptest.NewRecorder()
	handleLiveness(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func newTestHandler(t *testing.T) (*Handler, *fakeAgentStore) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	agentStore := newFakeAgentStore()
	agents := service.NewAgentRegistry(agentStore, fakeLocker{}, newFakeIndex(), &fakeScanner{}, logger)
	health := service.NewHealthService(time.Second)

	h := NewHandler(nil, agents, nil, nil, health, nil, nil, nil, logger)
	return h, agentStore
}

func TestHandleWellKnownAgentHealthDisabled(t *testing.T) {
	h, store := newTestHandler(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, &registry.Agent{Path: "/foo", Name: "foo", URL: "http://example.invalid"}))
	store.setEnabled("/foo", false)

	req := httptest.NewRequest(http.MethodGet, "/.well-known/agents/foo/health", nil)
	req.SetPathValue("path", "foo")
	rec := httptest.NewRecorder()

	h.handleWellKnownAgentHealth(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "disabled", body["status"])
}

func TestHandleWellKnownAgentHealthNotFound(t *testing.T) {
	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/.well-known/agents/missing/health", nil)
	req.SetPathValue("path", "missing")
	rec := httptest.NewRecorder()

	h.handleWellKnownAgentHealth(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
