package games

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ministeam/ministeam-api/pkg/pagination"
)

// GameDTO is the catalog view of a game. List endpoints leave the detail-only fields empty.
type GameDTO struct {
	ID               uuid.UUID       `json:"id"`
	Slug             string          `json:"slug"`
	Title            string          `json:"title"`
	Description      *string         `json:"description,omitempty"`
	Price            decimal.Decimal `json:"price"`
	Stock            int             `json:"stock"`
	ReleaseDate      *time.Time      `json:"release_date,omitempty"`
	Developer        *string         `json:"developer,omitempty"`
	Publisher        *string         `json:"publisher,omitempty"`
	GenreID          *uuid.UUID      `json:"genre_id,omitempty"`
	GenreName        *string         `json:"genre_name,omitempty"`
	GenreDescription *string         `json:"genre_description,omitempty"`
	Platform         string          `json:"platform"`
	AgeRating        *string         `json:"age_rating,omitempty"`
	SteamAppID       *int64          `json:"steam_app_id,omitempty"`
	RawgID           *int64          `json:"rawg_id,omitempty"`
	ImageURL         *string         `json:"image_url,omitempty"`
	TrailerURL       *string         `json:"trailer_url,omitempty"`
	IsActive         bool            `json:"is_active"`
	AverageRating    decimal.Decimal `json:"average_rating"`
	ReviewCount      int64           `json:"review_count"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// ListFilters narrows the catalog listing. Sort and Order are matched against an allow-list.
type ListFilters struct {
	Page     pagination.Params
	Platform string
	PriceMin *decimal.Decimal
	PriceMax *decimal.Decimal
	GenreID  *uuid.UUID
	Active   *bool
	Sort     string
	Order    string
}

// ListResult is one page of games.
type ListResult struct {
	Games      []GameDTO       `json:"games"`
	Pagination pagination.Meta `json:"pagination"`
}

// SearchResult echoes the search term next to the page.
type SearchResult struct {
	ListResult
	SearchTerm string `json:"search_term"`
}

// CreateGameRequest is the admin create payload.
type CreateGameRequest struct {
	Slug        string           `json:"slug" validate:"required,max=150"`
	Title       string           `json:"titulo" validate:"required,max=200"`
	Description *string          `json:"descripcion,omitempty"`
	Price       *decimal.Decimal `json:"precio,omitempty"`
	Stock       *int             `json:"stock,omitempty" validate:"omitempty,min=0"`
	ReleaseDate *string          `json:"fecha_lanzamiento,omitempty"`
	Developer   *string          `json:"desarrollador,omitempty"`
	Publisher   *string          `json:"distribuidor,omitempty"`
	GenreID     *uuid.UUID       `json:"id_genero,omitempty"`
	Platform    *string          `json:"plataforma,omitempty"`
	AgeRating   *string          `json:"clasificacion_edad,omitempty"`
	SteamAppID  *int64           `json:"steam_app_id,omitempty"`
	RawgID      *int64           `json:"rawg_id,omitempty"`
	ImageURL    *string          `json:"imagen_url,omitempty" validate:"omitempty,url"`
	TrailerURL  *string          `json:"trailer_url,omitempty" validate:"omitempty,url"`
	IsActive    *bool            `json:"activo,omitempty"`
}

// UpdateGameRequest is a partial update; nil fields are untouched.
type UpdateGameRequest struct {
	Slug        *string          `json:"slug,omitempty" validate:"omitempty,max=150"`
	Title       *string          `json:"titulo,omitempty" validate:"omitempty,max=200"`
	Description *string          `json:"descripcion,omitempty"`
	Price       *decimal.Decimal `json:"precio,omitempty"`
	Stock       *int             `json:"stock,omitempty" validate:"omitempty,min=0"`
	ReleaseDate *string          `json:"fecha_lanzamiento,omitempty"`
	Developer   *string          `json:"desarrollador,omitempty"`
	Publisher   *string          `json:"distribuidor,omitempty"`
	GenreID     *uuid.UUID       `json:"id_genero,omitempty"`
	Platform    *string          `json:"plataforma,omitempty"`
	AgeRating   *string          `json:"clasificacion_edad,omitempty"`
	SteamAppID  *int64           `json:"steam_app_id,omitempty"`
	RawgID      *int64           `json:"rawg_id,omitempty"`
	ImageURL    *string          `json:"imagen_url,omitempty" validate:"omitempty,url"`
	TrailerURL  *string          `json:"trailer_url,omitempty" validate:"omitempty,url"`
	IsActive    *bool            `json:"activo,omitempty"`
}
