package roles

import "time"

// Role represents a named, mutable set of permissions.
type Role struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	GuardName   string          `json:"guard_name"`
	Permissions []PermissionRef `json:"permissions"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// PermissionRef is the reduced {id, name} shape used in role listings.
type PermissionRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// CreateRoleRequest carries validated input for Create. PermissionIDs is the
// exact initial set, no defaults.
type CreateRoleRequest struct {
	Name          string  `json:"name" validate:"required,max=150"`
	PermissionIDs []int64 `json:"permissions"`
}

// UpdateRoleRequest carries validated input for Update. PermissionIDs fully
// replaces the role's permission set.
type UpdateRoleRequest struct {
	Name          string  `json:"name" validate:"required,max=150"`
	PermissionIDs []int64 `json:"permissions"`
}
