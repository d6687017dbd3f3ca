package users

import "time"

// User represents a managed account. The password hash is write-only and
// never serialized.
type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         *RoleRef  `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RoleRef is the reduced {id, name} shape of the user's assigned role.
type RoleRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// CreateUserRequest carries validated input for Create. Role names the
// single role the new account is assigned.
type CreateUserRequest struct {
	Name                 string `json:"name" validate:"required,max=255"`
	Email                string `json:"email" validate:"required,email,max=255"`
	Password             string `json:"password" validate:"required,min=8"`
	PasswordConfirmation string `json:"password_confirmation" validate:"eqfield=Password"`
	Role                 string `json:"role" validate:"required"`
}

// UpdateUserRequest carries validated input for Update. An empty password
// leaves the stored hash unchanged; the role is always a full replacement.
type UpdateUserRequest struct {
	Name                 string `json:"name" validate:"required,max=255"`
	Email                string `json:"email" validate:"required,email,max=255"`
	Password             string `json:"password" validate:"omitempty,min=8"`
	PasswordConfirmation string `json:"password_confirmation" validate:"eqfield=Password"`
	Role                 string `json:"role" validate:"required"`
}
