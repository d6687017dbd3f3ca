package permissions

import "time"

// Permission represents an atomic named capability.
type Permission struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	GroupName string    `json:"group_name"`
	GuardName string    `json:"guard_name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Group collects the permissions sharing a group_name for listing.
type Group struct {
	Name        string       `json:"name"`
	Permissions []Permission `json:"permissions"`
}

// CreatePermissionRequest carries validated input for Create.
type CreatePermissionRequest struct {
	Name      string `json:"name" validate:"required,max=150"`
	GroupName string `json:"group_name" validate:"required,max=100"`
	GuardName string `json:"guard_name" validate:"required,max=50"`
}

// UpdatePermissionRequest carries validated input for Update.
type UpdatePermissionRequest struct {
	Name      string `json:"name" validate:"required,max=150"`
	GroupName string `json:"group_name" validate:"required,max=100"`
	GuardName string `json:"guard_name" validate:"required,max=50"`
}
