package access

import "github.com/gatereg/registry/internal/domain/registry"

// FilterAgents applies the three ordered visibility rules to a
// list of agents for user, returning only the agents the user may see.
func FilterAgents(agents []*registry.Agent, user *UserContext) []*registry.Agent {
	out := make([]*registry.Agent, 0, len(agents))
	for _, a := range agents {
		if Visible(a, user) {
			out = append(out, a)
		}
	}
	return out
}

// Visible applies the three ordered rules to a single agent.
func Visible(a *registry.Agent, user *UserContext) bool {
	if user.IsAdmin {
		return true
	}
	if !user.canSeeAgentPath(a.Path) {
		return false
	}
	switch a.Visibility {
	case registry.VisibilityPublic, "":
		return true
	case registry.VisibilityPrivate:
		return a.RegisteredBy == user.Username
	case registry.VisibilityGroupRestricted:
		for _, g := range a.AllowedGroups {
			if user.HasGroup(g) {
				return true
			}
		}
		return false
	default:
		return false
	}
}
