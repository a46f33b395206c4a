package auth

// Permission represents a named capability in the system.
type Permission string

// Permission constants.
const (
	PermTriggerRead      Permission = "trigger:read"
	PermTriggerManage    Permission = "trigger:manage"
	PermAutomationRead   Permission = "automation:read"
	PermAutomationToggle Permission = "automation:toggle"
	PermSystemAdmin      Permission = "system:admin"
)

// rolePermissions maps each role to its granted permissions.
// This is the single source of truth for the authorisation model.
var rolePermissions = map[Role][]Permission{
	RoleViewer: {
		PermTriggerRead,
		PermAutomationRead,
	},
	RoleOperator: {
		PermTriggerRead,
		PermTriggerManage,
		PermAutomationRead,
		PermAutomationToggle,
	},
	RoleAdmin: {
		PermTriggerRead,
		PermTriggerManage,
		PermAutomationRead,
		PermAutomationToggle,
		PermSystemAdmin,
	},
}

// HasPermission returns true if the given role has the specified permission.
func HasPermission(role Role, perm Permission) bool {
	perms, ok := rolePermissions[role]
	if !ok {
		return false
	}
	for _, p := range perms {
		if p == perm {
			return true
		}
	}
	return false
}

// PermissionsForRole returns all permissions granted to a role.
// Returns nil for unknown roles.
func PermissionsForRole(role Role) []Permission {
	perms := rolePermissions[role]
	if perms == nil {
		return nil
	}
	result := make([]Permission, len(perms))
	copy(result, perms)
	return result
}

// Granted reports whether perm appears in a caller's permission list.
// The system:admin permission grants everything.
func Granted(held []string, perm Permission) bool {
	for _, h := range held {
		if Permission(h) == perm || Permission(h) == PermSystemAdmin {
			return true
		}
	}
	return false
}
