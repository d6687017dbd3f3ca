package shared

// Admin permission catalog. Route dispatch gates every admin endpoint behind
// exactly one of these names.
const (
	PermUsersIndex  = "admin.users"
	PermUserStore   = "admin.user.store"
	PermUserUpdate  = "admin.user.update"
	PermUserDestroy = "admin.user.destroy"

	PermRolesIndex  = "admin.roles"
	PermRoleStore   = "admin.role.store"
	PermRoleUpdate  = "admin.role.update"
	PermRoleDestroy = "admin.role.destroy"

	PermPermissionsIndex  = "admin.permissions"
	PermPermissionStore   = "admin.permission.store"
	PermPermissionUpdate  = "admin.permission.update"
	PermPermissionDestroy = "admin.permission.destroy"
)

const (
	// DefaultGuard is the single authorization realm this system uses.
	DefaultGuard = "web"
	// ProtectedRoleName marks the role whose holders cannot be deleted
	// through the admin pathway.
	ProtectedRoleName = "super-admin"
)

// CoreScopes lists the seeded admin permission catalog.
func CoreScopes() []string {
	return []string{
		PermUsersIndex,
		PermUserStore,
		PermUserUpdate,
		PermUserDestroy,
		PermRolesIndex,
		PermRoleStore,
		PermRoleUpdate,
		PermRoleDestroy,
		PermPermissionsIndex,
		PermPermissionStore,
		PermPermissionUpdate,
		PermPermissionDestroy,
	}
}
