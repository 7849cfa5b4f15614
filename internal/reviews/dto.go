package reviews

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ministeam/ministeam-api/pkg/pagination"
)

// ReviewDTO is a review with its author and game names.
type ReviewDTO struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	Username    string    `json:"username"`
	GameID      uuid.UUID `json:"game_id"`
	GameTitle   string    `json:"game_title"`
	Score       int       `json:"score"`
	Comment     *string   `json:"comment,omitempty"`
	Recommended bool      `json:"recommended"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// MutationResult returns the review next to the game's refreshed rating.
type MutationResult struct {
	Review        *ReviewDTO      `json:"review,omitempty"`
	AverageRating decimal.Decimal `json:"average_rating"`
}

// ListResult is one page of reviews.
type ListResult struct {
	Reviews    []ReviewDTO     `json:"reviews"`
	Pagination pagination.Meta `json:"pagination"`
}

// CreateReviewRequest scores an owned game.
type CreateReviewRequest struct {
	GameID      string  `json:"id_juego"`
	Score       *int    `json:"puntuacion"`
	Comment     *string `json:"comentario,omitempty"`
	Recommended *bool   `json:"recomendado,omitempty"`
}

// UpdateReviewRequest is a partial edit by the author.
type UpdateReviewRequest struct {
	Score       *int    `json:"puntuacion,omitempty"`
	Comment     *string `json:"comentario,omitempty"`
	Recommended *bool   `json:"recomendado,omitempty"`
}
