package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/ministeam/ministeam-api/pkg/db/models"
	"github.com/ministeam/ministeam-api/pkg/enums"
	"github.com/ministeam/ministeam-api/pkg/pagination"
)

// UserDTO is the public view of a user. The password hash never leaves the package.
type UserDTO struct {
	ID          uuid.UUID      `json:"id"`
	Username    string         `json:"username"`
	Email       string         `json:"email"`
	Country     *string        `json:"country,omitempty"`
	Role        enums.UserRole `json:"role"`
	IsActive    bool           `json:"is_active"`
	LastLoginAt *time.Time     `json:"last_login_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// FromModel maps a persisted user to its DTO.
func FromModel(m *models.User) *UserDTO {
	if m == nil {
		return nil
	}
	return &UserDTO{
		ID:          m.ID,
		Username:    m.Username,
		Email:       m.Email,
		Country:     m.Country,
		Role:        m.Role,
		IsActive:    m.IsActive,
		LastLoginAt: m.LastLoginAt,
		CreatedAt:   m.CreatedAt,
	}
}

// UpdateUserRequest is a partial update; nil fields are left untouched.
type UpdateUserRequest struct {
	Username *string `json:"nombre_usuario" validate:"omitempty,min=3,max=50"`
	Email    *string `json:"correo" validate:"omitempty,email"`
	Country  *string `json:"pais" validate:"omitempty,max=100"`
	Password *string `json:"contrasena" validate:"omitempty,min=6"`
	IsActive *bool   `json:"activo"`
}

// ListParams filters the admin user listing.
type ListParams struct {
	Page   pagination.Params
	Search string
	Active *bool
}

// ListResult is a page of users.
type ListResult struct {
	Users      []UserDTO       `json:"users"`
	Pagination pagination.Meta `json:"pagination"`
}

// Stats summarises the user base.
type Stats struct {
	Total    int64                    `json:"total"`
	Active   int64                    `json:"active"`
	Inactive int64                    `json:"inactive"`
	ByRole   map[enums.UserRole]int64 `json:"by_role"`
}
