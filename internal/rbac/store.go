package rbac

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store reads effective permissions from PostgreSQL. It is the
// source-of-truth behind the cache: a user's permission set is the union of
// the permissions attached to their assigned role.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore constructs a Store backed by the provided pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// UserPermissionNames returns the permission names granted to the user via
// their current role. A user without a role has no permissions.
func (s *Store) UserPermissionNames(ctx context.Context, userID int64) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT p.name
		FROM permissions p
		JOIN role_permissions rp ON rp.permission_id = p.id
		JOIN users u ON u.role_id = rp.role_id
		WHERE u.id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

var _ PermissionSource = (*Store)(nil)
