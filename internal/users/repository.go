package users

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aegisgate/aegisgate/internal/shared"
)

// Repository defines persistence operations for user management.
type Repository interface {
	Search(ctx context.Context, query string, limit, offset int) ([]User, int, error)
	GetByID(ctx context.Context, id int64) (User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindRoleByName(ctx context.Context, name string) (*RoleRef, error)
	Create(ctx context.Context, name, email, passwordHash string, roleID int64) (User, error)
	Update(ctx context.Context, id int64, name, email string, passwordHash *string, roleID int64) error
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

const userColumns = `u.id, u.name, u.email, u.password_hash, u.created_at, u.updated_at, r.id, r.name`

func scanUser(row pgx.Row) (User, error) {
	var u User
	var roleID *int64
	var roleName *string
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt, &roleID, &roleName)
	if err != nil {
		return User{}, err
	}
	if roleID != nil && roleName != nil {
		u.Role = &RoleRef{ID: *roleID, Name: *roleName}
	}
	return u, nil
}

// Search returns a page of users matching the query against name or email,
// newest first, along with the total match count. An empty query matches all.
func (r *PGRepository) Search(ctx context.Context, query string, limit, offset int) ([]User, int, error) {
	pattern := "%" + query + "%"
	var total int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM users
		WHERE $1 = '' OR name ILIKE $2 OR email ILIKE $2`, query, pattern).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+userColumns+`
		FROM users u
		LEFT JOIN roles r ON r.id = u.role_id
		WHERE $1 = '' OR u.name ILIKE $2 OR u.email ILIKE $2
		ORDER BY u.created_at DESC, u.id DESC
		LIMIT $3 OFFSET $4`, query, pattern, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, u)
	}
	return out, total, rows.Err()
}

// GetByID fetches a user with the assigned role.
func (r *PGRepository) GetByID(ctx context.Context, id int64) (User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users u
		LEFT JOIN roles r ON r.id = u.role_id
		WHERE u.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, shared.ErrNotFound
		}
		return User{}, err
	}
	return u, nil
}

// FindByEmail fetches a user by email, nil when absent.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users u
		LEFT JOIN roles r ON r.id = u.role_id
		WHERE u.email = $1`, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// FindRoleByName resolves a role name to a reference, nil when absent.
func (r *PGRepository) FindRoleByName(ctx context.Context, name string) (*RoleRef, error) {
	var ref RoleRef
	err := r.pool.QueryRow(ctx, `SELECT id, name FROM roles WHERE name = $1`, name).Scan(&ref.ID, &ref.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &ref, nil
}

// Create inserts a user with the hashed password and assigned role.
func (r *PGRepository) Create(ctx context.Context, name, email, passwordHash string, roleID int64) (User, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO users (name, email, password_hash, role_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING id`, name, email, passwordHash, roleID).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return User{}, shared.DuplicateNameError("email", email)
		}
		return User{}, err
	}
	return r.GetByID(ctx, id)
}

// Update rewrites the user's profile and role assignment. A nil passwordHash
// leaves the stored hash untouched.
func (r *PGRepository) Update(ctx context.Context, id int64, name, email string, passwordHash *string, roleID int64) error {
	var tag pgconn.CommandTag
	var err error
	if passwordHash != nil {
		tag, err = r.pool.Exec(ctx, `
			UPDATE users
			SET name = $2, email = $3, password_hash = $4, role_id = $5, updated_at = NOW()
			WHERE id = $1`, id, name, email, *passwordHash, roleID)
	} else {
		tag, err = r.pool.Exec(ctx, `
			UPDATE users
			SET name = $2, email = $3, role_id = $4, updated_at = NOW()
			WHERE id = $1`, id, name, email, roleID)
	}
	if err != nil {
		if isUniqueViolation(err) {
			return shared.DuplicateNameError("email", email)
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Delete removes the user.
func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ Repository = (*PGRepository)(nil)
