package rbac_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aegisgate/aegisgate/internal/permissions"
	"github.com/aegisgate/aegisgate/internal/rbac"
	"github.com/aegisgate/aegisgate/internal/roles"
	"github.com/aegisgate/aegisgate/internal/shared"
)

// registryStore backs the permission and role repositories with one shared
// in-memory dataset so cross-registry effects stay observable: deleting a
// permission must disappear from every role that held it, the same way the
// transactional detach behaves in storage.
type registryStore struct {
	perms      map[int64]permissions.Permission
	nextPermID int64
	roles      map[int64]roles.Role
	nextRoleID int64
	userRole   map[int64]int64
}

func newRegistryStore() *registryStore {
	return &registryStore{
		perms:      make(map[int64]permissions.Permission),
		nextPermID: 1,
		roles:      make(map[int64]roles.Role),
		nextRoleID: 1,
		userRole:   make(map[int64]int64),
	}
}

type permRepo struct {
	s *registryStore
}

func (r permRepo) List(ctx context.Context) ([]permissions.Permission, error) {
	out := make([]permissions.Permission, 0, len(r.s.perms))
	for _, p := range r.s.perms {
		out = append(out, p)
	}
	return out, nil
}

func (r permRepo) GetByID(ctx context.Context, id int64) (permissions.Permission, error) {
	p, ok := r.s.perms[id]
	if !ok {
		return permissions.Permission{}, shared.ErrNotFound
	}
	return p, nil
}

func (r permRepo) FindByName(ctx context.Context, name string) (*permissions.Permission, error) {
	for _, p := range r.s.perms {
		if p.Name == name {
			found := p
			return &found, nil
		}
	}
	return nil, nil
}

func (r permRepo) Create(ctx context.Context, p permissions.Permission) (permissions.Permission, error) {
	p.ID = r.s.nextPermID
	r.s.nextPermID++
	r.s.perms[p.ID] = p
	return p, nil
}

func (r permRepo) Update(ctx context.Context, p permissions.Permission) (permissions.Permission, error) {
	if _, ok := r.s.perms[p.ID]; !ok {
		return permissions.Permission{}, shared.ErrNotFound
	}
	r.s.perms[p.ID] = p
	return p, nil
}

// Delete removes the permission and detaches it from every role holding it,
// mirroring the single-transaction cascade of the storage repository.
func (r permRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := r.s.perms[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.s.perms, id)
	for roleID, role := range r.s.roles {
		kept := role.Permissions[:0]
		for _, ref := range role.Permissions {
			if ref.ID != id {
				kept = append(kept, ref)
			}
		}
		role.Permissions = kept
		r.s.roles[roleID] = role
	}
	return nil
}

type roleRepo struct {
	s *registryStore
}

func (r roleRepo) List(ctx context.Context) ([]roles.Role, error) {
	out := make([]roles.Role, 0, len(r.s.roles))
	for _, role := range r.s.roles {
		role.Permissions = append([]roles.PermissionRef(nil), role.Permissions...)
		out = append(out, role)
	}
	return out, nil
}

func (r roleRepo) GetByID(ctx context.Context, id int64) (roles.Role, error) {
	role, ok := r.s.roles[id]
	if !ok {
		return roles.Role{}, shared.ErrNotFound
	}
	role.Permissions = append([]roles.PermissionRef(nil), role.Permissions...)
	return role, nil
}

func (r roleRepo) FindByName(ctx context.Context, name string) (*roles.Role, error) {
	for _, role := range r.s.roles {
		if role.Name == name {
			found := role
			return &found, nil
		}
	}
	return nil, nil
}

func (r roleRepo) ExistingPermissionIDs(ctx context.Context, ids []int64) (map[int64]struct{}, error) {
	existing := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := r.s.perms[id]; ok {
			existing[id] = struct{}{}
		}
	}
	return existing, nil
}

func (r roleRepo) Create(ctx context.Context, name, guard string, permissionIDs []int64) (roles.Role, error) {
	role := roles.Role{ID: r.s.nextRoleID, Name: name, GuardName: guard, Permissions: []roles.PermissionRef{}}
	r.s.nextRoleID++
	for _, id := range permissionIDs {
		role.Permissions = append(role.Permissions, roles.PermissionRef{ID: id, Name: r.s.perms[id].Name})
	}
	r.s.roles[role.ID] = role
	return role, nil
}

func (r roleRepo) Update(ctx context.Context, id int64, name string, attach, detach []int64) error {
	role, ok := r.s.roles[id]
	if !ok {
		return shared.ErrNotFound
	}
	role.Name = name
	gone := make(map[int64]struct{}, len(detach))
	for _, pid := range detach {
		gone[pid] = struct{}{}
	}
	kept := role.Permissions[:0]
	for _, ref := range role.Permissions {
		if _, dropped := gone[ref.ID]; !dropped {
			kept = append(kept, ref)
		}
	}
	role.Permissions = kept
	for _, pid := range attach {
		role.Permissions = append(role.Permissions, roles.PermissionRef{ID: pid, Name: r.s.perms[pid].Name})
	}
	r.s.roles[id] = role
	return nil
}

func (r roleRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := r.s.roles[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.s.roles, id)
	for userID, roleID := range r.s.userRole {
		if roleID == id {
			delete(r.s.userRole, userID)
		}
	}
	return nil
}

// registrySource derives effective permissions from the live registry state,
// the same join the storage-backed source performs.
type registrySource struct {
	s *registryStore
}

func (s registrySource) UserPermissionNames(ctx context.Context, userID int64) ([]string, error) {
	roleID, ok := s.s.userRole[userID]
	if !ok {
		return nil, nil
	}
	role, ok := s.s.roles[roleID]
	if !ok {
		return nil, nil
	}
	names := make([]string, 0, len(role.Permissions))
	for _, ref := range role.Permissions {
		names = append(names, ref.Name)
	}
	return names, nil
}

type cacheFlusher struct {
	cache *rbac.Cache
}

func (f cacheFlusher) Invalidate(ctx context.Context) {
	f.cache.Flush()
}

func TestPermissionDeleteCascadesOutOfRoles(t *testing.T) {
	store := newRegistryStore()
	cache := rbac.NewCache(registrySource{store}, nil)
	flusher := cacheFlusher{cache: cache}
	permSvc := permissions.NewService(permRepo{store}, flusher, nil, nil)
	roleSvc := roles.NewService(roleRepo{store}, flusher, nil, nil)
	ctx := context.Background()

	usersPerm, err := permSvc.Create(ctx, permissions.CreatePermissionRequest{
		Name: "admin.users", GroupName: "User Management", GuardName: "web",
	})
	require.NoError(t, err)
	rolesPerm, err := permSvc.Create(ctx, permissions.CreatePermissionRequest{
		Name: "admin.roles", GroupName: "Role Management", GuardName: "web",
	})
	require.NoError(t, err)

	_, err = roleSvc.Create(ctx, roles.CreateRoleRequest{
		Name: "editor", PermissionIDs: []int64{usersPerm.ID, rolesPerm.ID},
	})
	require.NoError(t, err)
	_, err = roleSvc.Create(ctx, roles.CreateRoleRequest{
		Name: "viewer", PermissionIDs: []int64{usersPerm.ID},
	})
	require.NoError(t, err)

	require.NoError(t, permSvc.Delete(ctx, usersPerm.ID))

	listed, err := roleSvc.List(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	for _, role := range listed {
		for _, ref := range role.Permissions {
			assert.NotEqual(t, usersPerm.ID, ref.ID,
				"role %q still holds the deleted permission", role.Name)
		}
	}

	surviving := 0
	for _, role := range listed {
		for _, ref := range role.Permissions {
			if ref.ID == rolesPerm.ID {
				surviving++
			}
		}
	}
	assert.Equal(t, 1, surviving, "unrelated grants must survive the cascade")
}

func TestGateDeniesAfterPermissionDelete(t *testing.T) {
	store := newRegistryStore()
	cache := rbac.NewCache(registrySource{store}, nil)
	flusher := cacheFlusher{cache: cache}
	permSvc := permissions.NewService(permRepo{store}, flusher, nil, nil)
	roleSvc := roles.NewService(roleRepo{store}, flusher, nil, nil)
	gate := rbac.NewGate(cache)
	ctx := context.Background()

	perm, err := permSvc.Create(ctx, permissions.CreatePermissionRequest{
		Name: "admin.users", GroupName: "User Management", GuardName: "web",
	})
	require.NoError(t, err)
	editor, err := roleSvc.Create(ctx, roles.CreateRoleRequest{
		Name: "editor", PermissionIDs: []int64{perm.ID},
	})
	require.NoError(t, err)
	store.userRole[7] = editor.ID

	allowed, err := gate.Check(ctx, 7, "admin.users")
	require.NoError(t, err)
	require.True(t, allowed, "role holder passes before the delete")

	require.NoError(t, permSvc.Delete(ctx, perm.ID))

	allowed, err = gate.Check(ctx, 7, "admin.users")
	require.NoError(t, err)
	assert.False(t, allowed, "first check after the committed delete denies")
}

func TestGateDeniesAfterRoleRevokesPermission(t *testing.T) {
	store := newRegistryStore()
	cache := rbac.NewCache(registrySource{store}, nil)
	flusher := cacheFlusher{cache: cache}
	permSvc := permissions.NewService(permRepo{store}, flusher, nil, nil)
	roleSvc := roles.NewService(roleRepo{store}, flusher, nil, nil)
	gate := rbac.NewGate(cache)
	ctx := context.Background()

	perm, err := permSvc.Create(ctx, permissions.CreatePermissionRequest{
		Name: "admin.users", GroupName: "User Management", GuardName: "web",
	})
	require.NoError(t, err)
	editor, err := roleSvc.Create(ctx, roles.CreateRoleRequest{
		Name: "editor", PermissionIDs: []int64{perm.ID},
	})
	require.NoError(t, err)
	store.userRole[7] = editor.ID

	allowed, err := gate.Check(ctx, 7, "admin.users")
	require.NoError(t, err)
	require.True(t, allowed)

	_, err = roleSvc.Update(ctx, editor.ID, roles.UpdateRoleRequest{
		Name: "editor", PermissionIDs: nil,
	})
	require.NoError(t, err)

	allowed, err = gate.Check(ctx, 7, "admin.users")
	require.NoError(t, err)
	assert.False(t, allowed, "full-replace to the empty set revokes access")
}
