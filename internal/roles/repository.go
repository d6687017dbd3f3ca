package roles

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aegisgate/aegisgate/internal/platform/db"
	"github.com/aegisgate/aegisgate/internal/shared"
)

// Repository defines persistence operations for the role registry.
type Repository interface {
	List(ctx context.Context) ([]Role, error)
	GetByID(ctx context.Context, id int64) (Role, error)
	FindByName(ctx context.Context, name string) (*Role, error)
	ExistingPermissionIDs(ctx context.Context, ids []int64) (map[int64]struct{}, error)
	Create(ctx context.Context, name, guard string, permissionIDs []int64) (Role, error)
	Update(ctx context.Context, id int64, name string, attach, detach []int64) error
	Delete(ctx context.Context, id int64) error
}

// PGRepository provides PostgreSQL backed persistence.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// List returns all roles with their permission sets, newest first.
func (r *PGRepository) List(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, guard_name, created_at, updated_at
		FROM roles
		ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []Role
	index := make(map[int64]int)
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.GuardName, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		role.Permissions = []PermissionRef{}
		index[role.ID] = len(roles)
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	permRows, err := r.pool.Query(ctx, `
		SELECT rp.role_id, p.id, p.name
		FROM role_permissions rp
		JOIN permissions p ON p.id = rp.permission_id
		ORDER BY p.name`)
	if err != nil {
		return nil, err
	}
	defer permRows.Close()
	for permRows.Next() {
		var roleID int64
		var ref PermissionRef
		if err := permRows.Scan(&roleID, &ref.ID, &ref.Name); err != nil {
			return nil, err
		}
		if i, ok := index[roleID]; ok {
			roles[i].Permissions = append(roles[i].Permissions, ref)
		}
	}
	return roles, permRows.Err()
}

// GetByID fetches a role and its permission set.
func (r *PGRepository) GetByID(ctx context.Context, id int64) (Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, guard_name, created_at, updated_at
		FROM roles WHERE id = $1`, id).
		Scan(&role.ID, &role.Name, &role.GuardName, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, shared.ErrNotFound
		}
		return Role{}, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT p.id, p.name
		FROM role_permissions rp
		JOIN permissions p ON p.id = rp.permission_id
		WHERE rp.role_id = $1
		ORDER BY p.name`, id)
	if err != nil {
		return Role{}, err
	}
	defer rows.Close()
	role.Permissions = []PermissionRef{}
	for rows.Next() {
		var ref PermissionRef
		if err := rows.Scan(&ref.ID, &ref.Name); err != nil {
			return Role{}, err
		}
		role.Permissions = append(role.Permissions, ref)
	}
	return role, rows.Err()
}

// FindByName fetches a role by its unique name, nil when absent.
func (r *PGRepository) FindByName(ctx context.Context, name string) (*Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, guard_name, created_at, updated_at
		FROM roles WHERE name = $1`, name).
		Scan(&role.ID, &role.Name, &role.GuardName, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &role, nil
}

// ExistingPermissionIDs returns which of the given permission IDs exist.
func (r *PGRepository) ExistingPermissionIDs(ctx context.Context, ids []int64) (map[int64]struct{}, error) {
	existing := make(map[int64]struct{}, len(ids))
	if len(ids) == 0 {
		return existing, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT id FROM permissions WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		existing[id] = struct{}{}
	}
	return existing, rows.Err()
}

// Create inserts a role with exactly the given permission set.
func (r *PGRepository) Create(ctx context.Context, name, guard string, permissionIDs []int64) (Role, error) {
	var role Role
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO roles (name, guard_name, created_at, updated_at)
			VALUES ($1, $2, NOW(), NOW())
			RETURNING id, name, guard_name, created_at, updated_at`, name, guard).
			Scan(&role.ID, &role.Name, &role.GuardName, &role.CreatedAt, &role.UpdatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return shared.DuplicateNameError("name", name)
			}
			return err
		}
		for _, permID := range permissionIDs {
			if _, err := tx.Exec(ctx, `
				INSERT INTO role_permissions (role_id, permission_id)
				VALUES ($1, $2)`, role.ID, permID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Role{}, err
	}
	return r.GetByID(ctx, role.ID)
}

// Update renames the role and applies the permission set delta in one
// transaction.
func (r *PGRepository) Update(ctx context.Context, id int64, name string, attach, detach []int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE roles SET name = $2, updated_at = NOW() WHERE id = $1`, id, name)
		if err != nil {
			if isUniqueViolation(err) {
				return shared.DuplicateNameError("name", name)
			}
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		for _, permID := range attach {
			if _, err := tx.Exec(ctx, `
				INSERT INTO role_permissions (role_id, permission_id)
				VALUES ($1, $2) ON CONFLICT DO NOTHING`, id, permID); err != nil {
				return err
			}
		}
		if len(detach) > 0 {
			if _, err := tx.Exec(ctx, `
				DELETE FROM role_permissions
				WHERE role_id = $1 AND permission_id = ANY($2)`, id, detach); err != nil {
				return err
			}
		}
		return nil
	})
}

// Delete removes the role and its permission links; users holding the role
// transition to no role. Permissions themselves are untouched.
func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `UPDATE users SET role_id = NULL, updated_at = NOW() WHERE role_id = $1`, id); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ Repository = (*PGRepository)(nil)
