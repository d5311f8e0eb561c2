// Package rbac maps member roles to the permissions they hold.
package rbac

type Role string
type Permission string

const (
	RoleAdmin          Role = "admin"
	RoleProjectManager Role = "project_manager"
	RoleMember         Role = "member"
	RoleViewer         Role = "viewer"
)

const (
	PermCreateProject      Permission = "create_project"
	PermEditProject        Permission = "edit_project"
	PermDeleteProject      Permission = "delete_project"
	PermManageColumns      Permission = "manage_columns"
	PermCreateTask         Permission = "create_task"
	PermEditTask           Permission = "edit_task"
	PermDeleteTask         Permission = "delete_task"
	PermComment            Permission = "comment"
	PermManageBoardMembers Permission = "manage_board_members"
	PermManageMembers      Permission = "manage_members"
	PermViewReports        Permission = "view_reports"
)

// AllPermissions lists every permission in display order.
var AllPermissions = []Permission{
	PermCreateProject,
	PermEditProject,
	PermDeleteProject,
	PermManageColumns,
	PermCreateTask,
	PermEditTask,
	PermDeleteTask,
	PermComment,
	PermManageBoardMembers,
	PermManageMembers,
	PermViewReports,
}

// HasPermission reports whether role grants permission. Unknown roles grant nothing.
func HasPermission(role Role, permission Permission) bool {
	switch role {
	case RoleAdmin:
		return isKnown(permission)
	case RoleProjectManager:
		return isKnown(permission) && permission != PermManageMembers
	case RoleMember:
		return permission == PermCreateTask ||
			permission == PermEditTask ||
			permission == PermComment ||
			permission == PermViewReports
	default:
		return false
	}
}

// PermissionsFor returns the permissions granted to role, in AllPermissions order.
func PermissionsFor(role Role) []Permission {
	granted := make([]Permission, 0, len(AllPermissions))
	for _, permission := range AllPermissions {
		if HasPermission(role, permission) {
			granted = append(granted, permission)
		}
	}
	return granted
}

// Valid reports whether role is one of the four known roles.
func Valid(role Role) bool {
	switch role {
	case RoleAdmin, RoleProjectManager, RoleMember, RoleViewer:
		return true
	default:
		return false
	}
}

// Normalize maps an arbitrary string onto a known role, defaulting to viewer.
func Normalize(role string) Role {
	if Valid(Role(role)) {
		return Role(role)
	}
	return RoleViewer
}

func isKnown(permission Permission) bool {
	for _, candidate := range AllPermissions {
		if candidate == permission {
			return true
		}
	}
	return false
}
