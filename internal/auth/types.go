package auth

import "errors"

// Role represents an authorisation tier.
type Role string

const (
	// RoleViewer can observe state but change nothing.
	RoleViewer Role = "viewer"

	// RoleOperator runs the railway: toggles automation and edits triggers.
	RoleOperator Role = "operator"

	// RoleAdmin has every permission.
	RoleAdmin Role = "admin"
)

// ValidRoles is the set of roles a token may carry.
var ValidRoles = []Role{RoleViewer, RoleOperator, RoleAdmin}

// IsValidRole returns true if r is a known role.
func IsValidRole(r Role) bool {
	for _, v := range ValidRoles {
		if r == v {
			return true
		}
	}
	return false
}

// Sentinel errors for auth operations.
var (
	ErrTokenInvalid = errors.New("invalid token")
	ErrUnknownRole  = errors.New("unknown role")
	ErrForbidden    = errors.New("insufficient permissions")
)
