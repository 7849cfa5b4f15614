package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ministeam/ministeam-api/pkg/db"
	"github.com/ministeam/ministeam-api/pkg/db/models"
)

const itemColumns = `c.id, c.game_id, v.title, v.slug, v.price, v.image_url, v.platform,
	v.developer, g.name AS genre_name, c.created_at AS added_at`

// Repository persists cart items.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a cart repository to db.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

type itemRow struct {
	ID        uuid.UUID
	GameID    uuid.UUID
	Title     string
	Slug      string
	Price     decimal.Decimal
	ImageURL  *string
	Platform  string
	Developer *string
	GenreName *string
	AddedAt   time.Time
}

func (r *Repository) itemsQuery(ctx context.Context, userID uuid.UUID) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("cart_items c").
		Select(itemColumns).
		Joins("JOIN games v ON v.id = c.game_id").
		Joins("LEFT JOIN genres g ON g.id = v.genre_id").
		Where("c.user_id = ?", userID).
		Where("v.is_active = ?", true).
		Order("c.created_at DESC, c.id ASC")
}

// Items lists the user's cart lines for active games, newest first.
func (r *Repository) Items(ctx context.Context, userID uuid.UUID) ([]ItemDTO, error) {
	return scanItems(r.itemsQuery(ctx, userID))
}

// LockedItems is Items with the cart rows locked for the surrounding transaction.
func (r *Repository) LockedItems(ctx context.Context, userID uuid.UUID) ([]ItemDTO, error) {
	query := r.itemsQuery(ctx, userID)
	if db.SupportsRowLocks(r.db) {
		query = query.Clauses(clause.Locking{Strength: "UPDATE", Table: clause.Table{Name: "c"}})
	}
	return scanItems(query)
}

func scanItems(query *gorm.DB) ([]ItemDTO, error) {
	var rows []itemRow
	if err := query.Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]ItemDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, ItemDTO(row))
	}
	return out, nil
}

// Contains reports whether gameID is already in the user's cart.
func (r *Repository) Contains(ctx context.Context, userID, gameID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("user_id = ? AND game_id = ?", userID, gameID).
		Count(&count).Error
	return count > 0, err
}

// Add inserts a cart line.
func (r *Repository) Add(ctx context.Context, item *models.CartItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

// Remove deletes one cart line and reports whether it existed.
func (r *Repository) Remove(ctx context.Context, userID, gameID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND game_id = ?", userID, gameID).
		Delete(&models.CartItem{})
	return res.RowsAffected > 0, res.Error
}

// Clear deletes every cart line of the user.
func (r *Repository) Clear(ctx context.Context, userID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.CartItem{})
	return res.RowsAffected, res.Error
}
