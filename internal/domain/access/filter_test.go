package access

import (
	"testing"

	"github.com/gatereg/registry/internal/domain/registry"
	"github.com/stretchr/testify/assert"
)

func TestVisible_PrivateAgentOwnerOnly(t *testing.T) {
	agent := &registry.Agent{
		Path:         "/p",
		Visibility:   registry.VisibilityPrivate,
		RegisteredBy: "bob",
	}

	alice := &UserContext{Username: "alice", AccessibleAgents: []string{All}}
	bob := &UserContext{Username: "bob", AccessibleAgents: []string{All}}

	assert.False(t, Visible(agent, alice))
	assert.True(t, Visible(agent, bob))
}

func TestVisible_AdminBypassesEverything(t *testing.T) {
	agent := &registry.Agent{Path: "/p", Visibility: registry.VisibilityPrivate, RegisteredBy: "bob"}
	admin := &UserContext{Username: "carol", IsAdmin: true}
	assert.True(t, Visible(agent, admin))
}

func TestVisible_AccessibleAgentsGate(t *testing.T) {
	agent := &registry.Agent{Path: "/p", Visibility: registry.VisibilityPublic}
	restricted := &UserContext{Username: "dave", AccessibleAgents: []string{"/other"}}
	assert.False(t, Visible(agent, restricted))
}

func TestVisible_GroupRestricted(t *testing.T) {
	agent := &registry.Agent{
		Path:          "/p",
		Visibility:    registry.VisibilityGroupRestricted,
		AllowedGroups: []string{"eng"},
	}
	inGroup := &UserContext{Username: "eve", AccessibleAgents: []string{All}, Groups: map[string]struct{}{"eng": {}}}
	outGroup := &UserContext{Username: "frank", AccessibleAgents: []string{All}, Groups: map[string]struct{}{"sales": {}}}

	assert.True(t, Visible(agent, inGroup))
	assert.False(t, Visible(agent, outGroup))
}

func TestUserContext_CanActOn(t *testing.T) {
	u := &UserContext{
		UIPermissions: map[Permission][]string{
			PermissionToggleService: {"svc-a"},
		},
	}
	assert.True(t, u.CanActOn(PermissionToggleService, "svc-a"))
	assert.False(t, u.CanActOn(PermissionToggleService, "svc-b"))
	assert.False(t, u.CanActOn(PermissionModifyService, "svc-a"))
}
