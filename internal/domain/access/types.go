// Package access implements the control API's authorization layer:
// the per-request UserContext and the visibility/group/permission
// filter applied over entity lists (C9).
package access

// Permission is the closed vocabulary of per-operation permissions
// checked against UserContext.UIPermissions.
type Permission string

const (
	PermissionPublishAgent  Permission = "publish_agent"
	PermissionToggleService Permission = "toggle_service"
	PermissionModifyService Permission = "modify_service"
	PermissionRate          Permission = "rate"
	PermissionView          Permission = "view"
	PermissionAdmin         Permission = "admin"
)

// All is the wildcard value permitting an operation on every entity
// name, and the wildcard accessible_agents entry granting visibility
// into every agent path.
const All = "all"

// UserContext is the decoded identity the external identity provider
// attaches to every authenticated request. The core never issues or
// validates credentials itself; it only consumes this struct (see
// internal/domain/identity for the decoder port).
type UserContext struct {
	Username string
	Groups   map[string]struct{}
	IsAdmin  bool
	// UIPermissions maps a permission to the entity names (or the
	// wildcard All) the user may exercise it against.
	UIPermissions map[Permission][]string
	// AccessibleAgents lists agent paths (or the wildcard All) visible
	// to this user, independent of the visibility/group rules below.
	AccessibleAgents []string
}

// HasGroup reports whether the user belongs to group.
func (u *UserContext) HasGroup(group string) bool {
	_, ok := u.Groups[group]
	return ok
}

// CanActOn reports whether the user may exercise perm against an
// entity with the given name.
func (u *UserContext) CanActOn(perm Permission, entityName string) bool {
	if u.IsAdmin {
		return true
	}
	for _, name := range u.UIPermissions[perm] {
		if name == All || name == entityName {
			return true
		}
	}
	return false
}

func (u *UserContext) canSeeAgentPath(path string) bool {
	for _, p := range u.AccessibleAgents {
		if p == All || p == path {
			return true
		}
	}
	return false
}
