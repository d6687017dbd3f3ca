package roles

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aegisgate/aegisgate/internal/shared"
)

type mockRepository struct {
	roles       map[int64]Role
	permissions map[int64]string
	nextID      int64

	updateCalls int
	findError   error
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		roles:       make(map[int64]Role),
		permissions: make(map[int64]string),
		nextID:      1,
	}
}

func (m *mockRepository) addPermission(id int64, name string) {
	m.permissions[id] = name
}

func (m *mockRepository) List(ctx context.Context) ([]Role, error) {
	out := make([]Role, 0, len(m.roles))
	for _, r := range m.roles {
		out = append(out, r)
	}
	return out, nil
}

func (m *mockRepository) GetByID(ctx context.Context, id int64) (Role, error) {
	r, ok := m.roles[id]
	if !ok {
		return Role{}, shared.ErrNotFound
	}
	return r, nil
}

func (m *mockRepository) FindByName(ctx context.Context, name string) (*Role, error) {
	if m.findError != nil {
		return nil, m.findError
	}
	for _, r := range m.roles {
		if r.Name == name {
			found := r
			return &found, nil
		}
	}
	return nil, nil
}

func (m *mockRepository) ExistingPermissionIDs(ctx context.Context, ids []int64) (map[int64]struct{}, error) {
	existing := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := m.permissions[id]; ok {
			existing[id] = struct{}{}
		}
	}
	return existing, nil
}

func (m *mockRepository) Create(ctx context.Context, name, guard string, permissionIDs []int64) (Role, error) {
	role := Role{ID: m.nextID, Name: name, GuardName: guard, Permissions: []PermissionRef{}}
	m.nextID++
	for _, id := range permissionIDs {
		role.Permissions = append(role.Permissions, PermissionRef{ID: id, Name: m.permissions[id]})
	}
	m.roles[role.ID] = role
	return role, nil
}

func (m *mockRepository) Update(ctx context.Context, id int64, name string, attach, detach []int64) error {
	m.updateCalls++
	role, ok := m.roles[id]
	if !ok {
		return shared.ErrNotFound
	}
	role.Name = name
	detachSet := make(map[int64]struct{}, len(detach))
	for _, pid := range detach {
		detachSet[pid] = struct{}{}
	}
	kept := role.Permissions[:0]
	for _, ref := range role.Permissions {
		if _, gone := detachSet[ref.ID]; !gone {
			kept = append(kept, ref)
		}
	}
	role.Permissions = kept
	for _, pid := range attach {
		role.Permissions = append(role.Permissions, PermissionRef{ID: pid, Name: m.permissions[pid]})
	}
	m.roles[id] = role
	return nil
}

func (m *mockRepository) Delete(ctx context.Context, id int64) error {
	if _, ok := m.roles[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.roles, id)
	return nil
}

type countingInvalidator struct {
	calls int
}

func (c *countingInvalidator) Invalidate(ctx context.Context) {
	c.calls++
}

func TestCreateRoleWithPermissions(t *testing.T) {
	repo := newMockRepository()
	repo.addPermission(1, "admin.users")
	repo.addPermission(2, "admin.roles")
	inv := &countingInvalidator{}
	svc := NewService(repo, inv, nil, nil)

	created, err := svc.Create(context.Background(), CreateRoleRequest{
		Name:          "manager",
		PermissionIDs: []int64{1, 2, 1},
	})
	require.NoError(t, err)
	assert.Equal(t, "manager", created.Name)
	assert.Len(t, created.Permissions, 2, "duplicates collapse to a set")
	assert.Equal(t, 1, inv.calls)
}

func TestCreateRoleUnknownPermission(t *testing.T) {
	repo := newMockRepository()
	repo.addPermission(1, "admin.users")
	inv := &countingInvalidator{}
	svc := NewService(repo, inv, nil, nil)

	_, err := svc.Create(context.Background(), CreateRoleRequest{
		Name:          "manager",
		PermissionIDs: []int64{1, 99},
	})
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "permissions")
	assert.Equal(t, 0, inv.calls)
	assert.Empty(t, repo.roles, "no partial role may exist")
}

func TestCreateRoleDuplicateName(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo, &countingInvalidator{}, nil, nil)

	_, err := svc.Create(context.Background(), CreateRoleRequest{Name: "manager"})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), CreateRoleRequest{Name: "manager"})
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "name")
}

func TestUpdateRoleFullReplace(t *testing.T) {
	repo := newMockRepository()
	repo.addPermission(1, "admin.users")
	repo.addPermission(2, "admin.roles")
	repo.addPermission(3, "admin.permissions")
	inv := &countingInvalidator{}
	svc := NewService(repo, inv, nil, nil)

	created, err := svc.Create(context.Background(), CreateRoleRequest{
		Name: "manager", PermissionIDs: []int64{1, 2},
	})
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), created.ID, UpdateRoleRequest{
		Name: "manager", PermissionIDs: []int64{2, 3},
	})
	require.NoError(t, err)
	held := make(map[int64]struct{})
	for _, ref := range updated.Permissions {
		held[ref.ID] = struct{}{}
	}
	assert.Equal(t, map[int64]struct{}{2: {}, 3: {}}, held)
	assert.Equal(t, 2, inv.calls)
}

func TestUpdateRoleSameSetDifferentOrderIsNoOp(t *testing.T) {
	repo := newMockRepository()
	repo.addPermission(1, "admin.users")
	repo.addPermission(2, "admin.roles")
	inv := &countingInvalidator{}
	svc := NewService(repo, inv, nil, nil)

	created, err := svc.Create(context.Background(), CreateRoleRequest{
		Name: "manager", PermissionIDs: []int64{1, 2},
	})
	require.NoError(t, err)
	require.Equal(t, 1, inv.calls)

	_, err = svc.Update(context.Background(), created.ID, UpdateRoleRequest{
		Name: "manager", PermissionIDs: []int64{2, 1},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, repo.updateCalls, "identical state must not write")
	assert.Equal(t, 1, inv.calls, "identical state must not invalidate")
}

func TestUpdateRoleEmptySetDetachesAll(t *testing.T) {
	repo := newMockRepository()
	repo.addPermission(1, "admin.users")
	inv := &countingInvalidator{}
	svc := NewService(repo, inv, nil, nil)

	created, err := svc.Create(context.Background(), CreateRoleRequest{
		Name: "manager", PermissionIDs: []int64{1},
	})
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), created.ID, UpdateRoleRequest{
		Name: "manager", PermissionIDs: nil,
	})
	require.NoError(t, err)
	assert.Empty(t, updated.Permissions)
	assert.Equal(t, 2, inv.calls)
}

func TestUpdateRoleRejectsTakenName(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo, &countingInvalidator{}, nil, nil)

	_, err := svc.Create(context.Background(), CreateRoleRequest{Name: "manager"})
	require.NoError(t, err)
	second, err := svc.Create(context.Background(), CreateRoleRequest{Name: "viewer"})
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), second.ID, UpdateRoleRequest{Name: "manager"})
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "name")
}

func TestDeleteRole(t *testing.T) {
	repo := newMockRepository()
	inv := &countingInvalidator{}
	svc := NewService(repo, inv, nil, nil)

	created, err := svc.Create(context.Background(), CreateRoleRequest{Name: "manager"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), created.ID))
	assert.Equal(t, 2, inv.calls)

	err = svc.Delete(context.Background(), created.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
	assert.Equal(t, 2, inv.calls)
}
