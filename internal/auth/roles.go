package auth

import "strings"

// Role represents a user role.
type Role string

const (
	// RoleViewer reads boards, summaries and exports.
	RoleViewer Role = "viewer"
	// RoleOperator raises andon events and acknowledges the safety alert.
	RoleOperator Role = "operator"
	// RoleAdmin may also reset the event log.
	RoleAdmin Role = "admin"
)

// NormalizeRole validates a role string, ignoring case and surrounding space.
func NormalizeRole(value string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(value)))
	if roleRank(role) == 0 {
		return "", false
	}
	return role, true
}

// RoleAtLeast returns true when role satisfies required role.
func RoleAtLeast(role Role, required Role) bool {
	return roleRank(role) >= roleRank(required)
}

func roleRank(role Role) int {
	switch role {
	case RoleViewer:
		return 1
	case RoleOperator:
		return 2
	case RoleAdmin:
		return 3
	default:
		return 0
	}
}
