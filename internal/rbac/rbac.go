package rbac

import "helpdesk/internal/models"

// roleLevels orders the closed role set. Clients sit at the bottom; they can
// only ever reach their own resources.
var roleLevels = map[models.Role]int{
	models.RoleAdmin:      5,
	models.RoleSuperagent: 4,
	models.RoleAgent:      3,
	models.RoleViewer:     2,
	models.RoleClient:     1,
}

// HasRole reports whether the user's role meets or exceeds the required role.
func HasRole(userRole, requiredRole models.Role) bool {
	userLevel, ok := roleLevels[userRole]
	if !ok {
		return false
	}
	requiredLevel, ok := roleLevels[requiredRole]
	if !ok {
		return false
	}
	return userLevel >= requiredLevel
}

// IsStaff reports whether the role belongs to helpdesk personnel.
func IsStaff(role models.Role) bool {
	switch role {
	case models.RoleAdmin, models.RoleSuperagent, models.RoleAgent, models.RoleViewer:
		return true
	default:
		return false
	}
}
