package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Game is a catalog entry. Inactive games are soft-deleted.
type Game struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Slug          string          `gorm:"column:slug;not null;uniqueIndex"`
	Title         string          `gorm:"column:title;not null"`
	Description   *string         `gorm:"column:description"`
	Price         decimal.Decimal `gorm:"column:price;type:numeric(10,2);not null"`
	Stock         int             `gorm:"column:stock;not null"`
	ReleaseDate   *time.Time      `gorm:"column:release_date;type:date"`
	Developer     *string         `gorm:"column:developer"`
	Publisher     *string         `gorm:"column:publisher"`
	GenreID       *uuid.UUID      `gorm:"column:genre_id;type:uuid"`
	Platform      string          `gorm:"column:platform;not null"`
	AgeRating     *string         `gorm:"column:age_rating"`
	SteamAppID    *int64          `gorm:"column:steam_app_id"`
	RawgID        *int64          `gorm:"column:rawg_id"`
	ImageURL      *string         `gorm:"column:image_url"`
	TrailerURL    *string         `gorm:"column:trailer_url"`
	IsActive      bool            `gorm:"column:is_active;not null"`
	AverageRating decimal.Decimal `gorm:"column:average_rating;type:numeric(3,1);not null"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (g *Game) BeforeCreate(*gorm.DB) error {
	ensureID(&g.ID)
	return nil
}
