package genres

import (
	"time"

	"github.com/google/uuid"
)

// GenreDTO is a genre with the number of active games filed under it.
type GenreDTO struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	GameCount   int64     `json:"game_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// CreateGenreRequest is the admin create payload.
type CreateGenreRequest struct {
	Name        string  `json:"nombre" validate:"required,max=100"`
	Description *string `json:"descripcion,omitempty"`
}

// UpdateGenreRequest is a partial update.
type UpdateGenreRequest struct {
	Name        *string `json:"nombre,omitempty" validate:"omitempty,max=100"`
	Description *string `json:"descripcion,omitempty"`
}
