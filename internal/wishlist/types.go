package wishlist

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ItemDTO is a saved game with its current catalog data.
type ItemDTO struct {
	ID            uuid.UUID       `json:"id"`
	GameID        uuid.UUID       `json:"game_id"`
	Title         string          `json:"title"`
	Slug          string          `json:"slug"`
	Price         decimal.Decimal `json:"price"`
	ImageURL      *string         `json:"image_url,omitempty"`
	Platform      string          `json:"platform"`
	AverageRating decimal.Decimal `json:"average_rating"`
	GenreName     *string         `json:"genre_name,omitempty"`
	AddedAt       time.Time       `json:"added_at"`
}

// WishlistDTO lists saved games newest first.
type WishlistDTO struct {
	Items []ItemDTO `json:"items"`
	Count int       `json:"count"`
}

// AddItemRequest names the game to save.
type AddItemRequest struct {
	GameID string `json:"id_juego"`
}
