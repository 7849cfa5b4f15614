package auth

import "github.com/ministeam/ministeam-api/internal/users"

// SignupRequest is the account registration payload.
type SignupRequest struct {
	Username string  `json:"nombre_usuario" validate:"required,min=3,max=50"`
	Email    string  `json:"correo" validate:"required,email"`
	Password string  `json:"contrasena" validate:"required"`
	Country  *string `json:"pais,omitempty" validate:"omitempty,max=100"`
}

// LoginRequest captures the user credentials sent to the login endpoint.
type LoginRequest struct {
	Email    string `json:"correo" validate:"required,email"`
	Password string `json:"contrasena" validate:"required"`
}

// RefreshRequest carries the refresh token paired with the presented access token.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// Tokens is the access/refresh pair handed to clients.
type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// AuthResponse is returned by signup and login.
type AuthResponse struct {
	Tokens
	User *users.UserDTO `json:"user"`
}
