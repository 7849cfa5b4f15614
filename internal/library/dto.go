package library

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ministeam/ministeam-api/pkg/enums"
	"github.com/ministeam/ministeam-api/pkg/pagination"
)

// EntryDTO is an owned game with its play state and originating purchase.
type EntryDTO struct {
	ID            uuid.UUID           `json:"id"`
	GameID        uuid.UUID           `json:"game_id"`
	Slug          string              `json:"slug"`
	Title         string              `json:"title"`
	ImageURL      *string             `json:"image_url,omitempty"`
	Platform      string              `json:"platform"`
	Developer     *string             `json:"developer,omitempty"`
	GenreName     *string             `json:"genre_name,omitempty"`
	Status        enums.LibraryStatus `json:"status"`
	MinutesPlayed int                 `json:"minutes_played"`
	AcquiredAt    time.Time           `json:"acquired_at"`
	LastPlayedAt  *time.Time          `json:"last_played_at,omitempty"`
	PurchaseID    *uuid.UUID          `json:"purchase_id,omitempty"`
	PurchaseDate  *time.Time          `json:"purchase_date,omitempty"`
	PurchaseTotal *decimal.Decimal    `json:"purchase_total,omitempty"`
}

// EntryDetailDTO adds the full game record to EntryDTO.
type EntryDetailDTO struct {
	EntryDTO
	Description   *string          `json:"description,omitempty"`
	ReleaseDate   *time.Time       `json:"release_date,omitempty"`
	Publisher     *string          `json:"publisher,omitempty"`
	AgeRating     *string          `json:"age_rating,omitempty"`
	TrailerURL    *string          `json:"trailer_url,omitempty"`
	Price         decimal.Decimal  `json:"price"`
	AverageRating decimal.Decimal  `json:"average_rating"`
	PricePaid     *decimal.Decimal `json:"price_paid,omitempty"`
}

// Filters narrows and orders a library listing.
type Filters struct {
	Status string
	Sort   string
	Order  string
	Page   pagination.Params
}

// Page is one page of the library.
type Page struct {
	Games      []EntryDTO      `json:"games"`
	Pagination pagination.Meta `json:"pagination"`
}

// UpdateStatusRequest changes the install state of an owned game.
type UpdateStatusRequest struct {
	Status string `json:"estado_actual" validate:"required"`
}

// MaxSessionMinutes caps one playtime report at a week of play.
const MaxSessionMinutes = 7 * 24 * 60

// AddPlaytimeRequest records a play session.
type AddPlaytimeRequest struct {
	Minutes int `json:"minutos" validate:"required,max=10080"`
}

// Stats summarizes a user's library.
type Stats struct {
	TotalGames   int64                         `json:"total_games"`
	TotalMinutes int64                         `json:"total_minutes"`
	ByStatus     map[enums.LibraryStatus]int64 `json:"by_status"`
}
