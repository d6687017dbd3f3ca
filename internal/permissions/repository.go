package permissions

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aegisgate/aegisgate/internal/platform/db"
	"github.com/aegisgate/aegisgate/internal/shared"
)

// Repository defines persistence operations for the permission registry.
type Repository interface {
	List(ctx context.Context) ([]Permission, error)
	GetByID(ctx context.Context, id int64) (Permission, error)
	FindByName(ctx context.Context, name string) (*Permission, error)
	Create(ctx context.Context, p Permission) (Permission, error)
	Update(ctx context.Context, p Permission) (Permission, error)
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

// List returns all permissions ordered by group then name.
func (r *PGRepository) List(ctx context.Context) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, group_name, guard_name, created_at, updated_at
		FROM permissions
		ORDER BY group_name, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.GroupName, &p.GuardName, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// GetByID fetches a permission by ID.
func (r *PGRepository) GetByID(ctx context.Context, id int64) (Permission, error) {
	var p Permission
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, group_name, guard_name, created_at, updated_at
		FROM permissions WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.GroupName, &p.GuardName, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Permission{}, shared.ErrNotFound
		}
		return Permission{}, err
	}
	return p, nil
}

// FindByName fetches a permission by its unique name, nil when absent.
func (r *PGRepository) FindByName(ctx context.Context, name string) (*Permission, error) {
	var p Permission
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, group_name, guard_name, created_at, updated_at
		FROM permissions WHERE name = $1`, name).
		Scan(&p.ID, &p.Name, &p.GroupName, &p.GuardName, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// Create inserts a new permission.
func (r *PGRepository) Create(ctx context.Context, p Permission) (Permission, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO permissions (name, group_name, guard_name, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		RETURNING id, created_at, updated_at`, p.Name, p.GroupName, p.GuardName).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return Permission{}, shared.DuplicateNameError("name", p.Name)
		}
		return Permission{}, err
	}
	return p, nil
}

// Update rewrites name, group and guard for an existing permission.
func (r *PGRepository) Update(ctx context.Context, p Permission) (Permission, error) {
	err := r.pool.QueryRow(ctx, `
		UPDATE permissions
		SET name = $2, group_name = $3, guard_name = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`, p.ID, p.Name, p.GroupName, p.GuardName).
		Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Permission{}, shared.ErrNotFound
		}
		if isUniqueViolation(err) {
			return Permission{}, shared.DuplicateNameError("name", p.Name)
		}
		return Permission{}, err
	}
	return p, nil
}

// Delete removes the permission and detaches it from every role in a single
// transaction: either both are visible or neither is.
func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE permission_id = $1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM permissions WHERE id = $1`, id)
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
