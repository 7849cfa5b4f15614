package wishlist

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ministeam/ministeam-api/pkg/db/models"
)

// Repository encapsulates wishlist persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a wishlist repository bound to db.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

type itemRecord struct {
	ID            uuid.UUID
	GameID        uuid.UUID
	Title         string
	Slug          string
	Price         decimal.Decimal
	ImageURL      *string
	Platform      string
	AverageRating decimal.Decimal
	GenreName     *string
	AddedAt       time.Time
}

// List returns the user's saved active games, newest first.
func (r *Repository) List(ctx context.Context, userID uuid.UUID) ([]ItemDTO, error) {
	var records []itemRecord
	err := r.db.WithContext(ctx).
		Table("wishlist_items w").
		Select(`w.id, w.game_id, v.title, v.slug, v.price, v.image_url, v.platform,
			v.average_rating, g.name AS genre_name, w.created_at AS added_at`).
		Joins("JOIN games v ON v.id = w.game_id").
		Joins("LEFT JOIN genres g ON g.id = v.genre_id").
		Where("w.user_id = ?", userID).
		Where("v.is_active = ?", true).
		Order("w.created_at DESC, w.id ASC").
		Scan(&records).Error
	if err != nil {
		return nil, err
	}
	items := make([]ItemDTO, 0, len(records))
	for _, record := range records {
		items = append(items, ItemDTO(record))
	}
	return items, nil
}

// Contains reports whether gameID is already saved.
func (r *Repository) Contains(ctx context.Context, userID, gameID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.WishlistItem{}).
		Where("user_id = ? AND game_id = ?", userID, gameID).
		Count(&count).Error
	return count > 0, err
}

// AddItem inserts a wishlist entry.
func (r *Repository) AddItem(ctx context.Context, item *models.WishlistItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

// RemoveItem deletes the entry and reports whether it existed.
func (r *Repository) RemoveItem(ctx context.Context, userID, gameID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND game_id = ?", userID, gameID).
		Delete(&models.WishlistItem{})
	return res.RowsAffected > 0, res.Error
}

// Clear removes every entry of the user.
func (r *Repository) Clear(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.WishlistItem{}).Error
}
