package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAgent_NormalizeDerivesPathFromName(t *testing.T) {
	a := &Agent{Name: "My Great Agent"}
	a.Normalize()
	assert.Equal(t, "/my-great-agent", a.Path)
}

func TestAgent_NormalizeAppliesDefaults(t *testing.T) {
	a := &Agent{Name: "x"}
	a.Normalize()
	assert.Equal(t, []string{"text/plain"}, a.DefaultInputModes)
	assert.Equal(t, []string{"text/plain"}, a.DefaultOutputModes)
	assert.Equal(t, "JSONRPC", a.PreferredTransport)
	assert.Equal(t, VisibilityPublic, a.Visibility)
	assert.Equal(t, TrustUnverified, a.TrustLevel)
	assert.Equal(t, "N/A", a.License)
}

func TestAgent_NormalizeDerivesSkillID(t *testing.T) {
	a := &Agent{Name: "x", Skills: []Skill{{Name: "Resolve Library"}}}
	a.Normalize()
	assert.Equal(t, "resolve-library", a.Skills[0].ID)
}

func TestAgent_NormalizeAppliesSchemeAliases(t *testing.T) {
	a := &Agent{
		Name: "x",
		SecuritySchemes: map[string]SecurityScheme{
			"default": {Type: "bearer"},
			"key":     {Type: "api_key"},
			"oidc":    {Type: "openid"},
		},
	}
	a.Normalize()
	assert.Equal(t, SchemeHTTP, a.SecuritySchemes["default"].Type)
	assert.Equal(t, SchemeAPIKey, a.SecuritySchemes["key"].Type)
	assert.Equal(t, SchemeOpenIDConnect, a.SecuritySchemes["oidc"].Type)
}

func TestAgent_ValidateRequiresPathOrName(t *testing.T) {
	a := &Agent{}
	require.ErrorIs(t, a.Validate(), ErrInvalid)
}

func TestAgent_ValidateRejectsPartialProvider(t *testing.T) {
	a := &Agent{Path: "/x", Provider: &Provider{Organization: "acme"}}
	require.ErrorIs(t, a.Validate(), ErrInvalid)
}

func TestAgent_ValidateRequiresGroupsWhenGroupRestricted(t *testing.T) {
	a := &Agent{Path: "/x", Visibility: VisibilityGroupRestricted}
	require.ErrorIs(t, a.Validate(), ErrInvalid)
}

func TestAgent_ValidateRejectsOutOfRangeStars(t *testing.T) {
	a := &Agent{Path: "/x", NumStars: 5.5}
	require.ErrorIs(t, a.Validate(), ErrInvalid)
}

func TestAgent_ValidateRejectsDuplicateSkillIDs(t *testing.T) {
	a := &Agent{
		Path: "/x",
		Skills: []Skill{
			{ID: "search"},
			{ID: "search"},
		},
	}
	require.ErrorIs(t, a.Validate(), ErrInvalid)
}

func TestAgent_ValidateAcceptsWellFormed(t *testing.T) {
	a := &Agent{
		Path:          "/x",
		Provider:      &Provider{Organization: "acme", URL: "https://acme.example"},
		Visibility:    VisibilityGroupRestricted,
		AllowedGroups: []string{"eng"},
		NumStars:      3,
		Skills:        []Skill{{ID: "a"}, {ID: "b"}},
	}
	require.NoError(t, a.Validate())
}

func TestTrustLevel_TrustBoost(t *testing.T) {
	assert.Equal(t, 0.0, TrustUnverified.TrustBoost())
	assert.Equal(t, 0.2, TrustCommunity.TrustBoost())
	assert.Equal(t, 0.5, TrustVerified.TrustBoost())
	assert.Equal(t, 1.0, TrustTrusted.TrustBoost())
}
