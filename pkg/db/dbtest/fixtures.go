package dbtest

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ministeam/ministeam-api/pkg/db/models"
	"github.com/ministeam/ministeam-api/pkg/enums"
)

// SeedUser inserts an active customer named username.
func SeedUser(t testing.TB, conn *gorm.DB, username string) *models.User {
	t.Helper()
	user := &models.User{
		Username:     username,
		Email:        strings.ToLower(username) + "@example.com",
		PasswordHash: "unused",
		Role:         enums.UserRoleCustomer,
		IsActive:     true,
	}
	if err := conn.Create(user).Error; err != nil {
		t.Fatalf("seed user %s: %v", username, err)
	}
	return user
}

// SeedGenre inserts a genre.
func SeedGenre(t testing.TB, conn *gorm.DB, name string) *models.Genre {
	t.Helper()
	genre := &models.Genre{Name: name}
	if err := conn.Create(genre).Error; err != nil {
		t.Fatalf("seed genre %s: %v", name, err)
	}
	return genre
}

// GameOption tweaks a seeded game.
type GameOption func(*models.Game)

// WithGenre links the game to genreID.
func WithGenre(genreID uuid.UUID) GameOption {
	return func(g *models.Game) { g.GenreID = &genreID }
}

// WithPlatform overrides the default PC platform.
func WithPlatform(platform string) GameOption {
	return func(g *models.Game) { g.Platform = platform }
}

// Inactive seeds the game soft-deleted.
func Inactive() GameOption {
	return func(g *models.Game) { g.IsActive = false }
}

// WithRating sets the cached average rating.
func WithRating(rating string) GameOption {
	return func(g *models.Game) { g.AverageRating = decimal.RequireFromString(rating) }
}

// ReleasedAt sets the release date.
func ReleasedAt(at time.Time) GameOption {
	return func(g *models.Game) { g.ReleaseDate = &at }
}

// WithDeveloper sets the developer.
func WithDeveloper(dev string) GameOption {
	return func(g *models.Game) { g.Developer = &dev }
}

// SeedGame inserts an active PC game priced at price. The slug derives from title.
func SeedGame(t testing.TB, conn *gorm.DB, title, price string, opts ...GameOption) *models.Game {
	t.Helper()
	game := &models.Game{
		Slug:          slugify(title),
		Title:         title,
		Price:         decimal.RequireFromString(price),
		Stock:         999,
		Platform:      "PC",
		IsActive:      true,
		AverageRating: decimal.Zero,
	}
	for _, opt := range opts {
		opt(game)
	}
	if err := conn.Create(game).Error; err != nil {
		t.Fatalf("seed game %s: %v", title, err)
	}
	return game
}

// SeedLibraryEntry grants ownership of gameID to userID without a purchase.
func SeedLibraryEntry(t testing.TB, conn *gorm.DB, userID, gameID uuid.UUID) *models.LibraryEntry {
	t.Helper()
	entry := &models.LibraryEntry{
		UserID: userID,
		GameID: gameID,
		Status: enums.LibraryStatusNotStarted,
	}
	if err := conn.Create(entry).Error; err != nil {
		t.Fatalf("seed library entry: %v", err)
	}
	return entry
}

func slugify(title string) string {
	fields := strings.FieldsFunc(strings.ToLower(title), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	if len(fields) == 0 {
		return fmt.Sprintf("game-%s", uuid.NewString()[:8])
	}
	return strings.Join(fields, "-")
}
