package purchases

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ministeam/ministeam-api/pkg/db"
	"github.com/ministeam/ministeam-api/pkg/db/models"
	"github.com/ministeam/ministeam-api/pkg/enums"
	"github.com/ministeam/ministeam-api/pkg/pagination"
)

const topGamesLimit = 5

const purchaseColumns = `p.id, p.user_id, u.username, p.total, p.payment_method, p.payment_status,
	p.notes, p.created_at, p.updated_at,
	(SELECT COUNT(*) FROM purchase_line_items li WHERE li.purchase_id = p.id) AS items_count`

// Repository reads and writes the purchase ledger.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a purchase repository to db.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

type purchaseRow struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	Username      *string
	Total         decimal.Decimal
	PaymentMethod string
	PaymentStatus enums.PaymentStatus
	Notes         *string
	ItemsCount    int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (r purchaseRow) toDTO() PurchaseDTO {
	dto := PurchaseDTO{
		ID:            r.ID,
		UserID:        r.UserID,
		Total:         r.Total,
		PaymentMethod: r.PaymentMethod,
		PaymentStatus: r.PaymentStatus,
		Notes:         r.Notes,
		ItemsCount:    r.ItemsCount,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	if r.Username != nil {
		dto.Username = *r.Username
	}
	return dto
}

func (r *Repository) base(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("purchases p").
		Joins("LEFT JOIN users u ON u.id = p.user_id")
}

// Create inserts the purchase and its line items in slice order.
func (r *Repository) Create(ctx context.Context, purchase *models.Purchase, lines []models.PurchaseLineItem) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(purchase).Error; err != nil {
		return err
	}
	if len(lines) == 0 {
		return nil
	}
	for i := range lines {
		lines[i].PurchaseID = purchase.ID
	}
	return r.db.WithContext(ctx).Create(&lines).Error
}

// List pages purchases, optionally for one user and one payment status, newest first.
func (r *Repository) List(ctx context.Context, userID *uuid.UUID, status enums.PaymentStatus, p pagination.Params) ([]PurchaseDTO, int64, error) {
	query := r.base(ctx)
	if userID != nil {
		query = query.Where("p.user_id = ?", *userID)
	}
	if status != "" {
		query = query.Where("p.payment_status = ?", status)
	}
	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []purchaseRow
	if err := query.Select(purchaseColumns).
		Order("p.created_at DESC, p.id ASC").
		Limit(p.Limit).
		Offset(p.Offset()).
		Scan(&rows).Error; err != nil {
		return nil, 0, err
	}
	out := make([]PurchaseDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDTO())
	}
	return out, total, nil
}

// FindByID returns gorm.ErrRecordNotFound when the purchase is missing.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*PurchaseDTO, error) {
	var rows []purchaseRow
	if err := r.base(ctx).Select(purchaseColumns).Where("p.id = ?", id).Limit(1).Scan(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	dto := rows[0].toDTO()
	return &dto, nil
}

// FindForUpdate loads the raw purchase row, locking it on postgres.
func (r *Repository) FindForUpdate(ctx context.Context, id uuid.UUID) (*models.Purchase, error) {
	query := r.db.WithContext(ctx).Where("id = ?", id)
	if db.SupportsRowLocks(r.db) {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var purchase models.Purchase
	if err := query.First(&purchase).Error; err != nil {
		return nil, err
	}
	return &purchase, nil
}

// LineItems lists the games of a purchase in insertion order.
func (r *Repository) LineItems(ctx context.Context, purchaseID uuid.UUID) ([]LineItemDTO, error) {
	var items []LineItemDTO
	err := r.db.WithContext(ctx).
		Table("purchase_line_items li").
		Select("li.id, li.game_id, v.title, v.slug, v.image_url, li.price_paid, li.quantity, li.discount").
		Joins("JOIN games v ON v.id = li.game_id").
		Where("li.purchase_id = ?", purchaseID).
		Order("li.id ASC").
		Scan(&items).Error
	return items, err
}

// UpdateStatus sets the payment status of a purchase.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.PaymentStatus, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Purchase{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{"payment_status": status, "updated_at": at}).
		Error
}

type statusCount struct {
	Status enums.PaymentStatus
	Count  int64
}

// Stats aggregates the whole ledger.
func (r *Repository) Stats(ctx context.Context) (*SalesStats, error) {
	var counts []statusCount
	if err := r.db.WithContext(ctx).
		Model(&models.Purchase{}).
		Select("payment_status AS status, COUNT(*) AS count").
		Group("payment_status").
		Scan(&counts).Error; err != nil {
		return nil, err
	}
	stats := &SalesStats{
		Revenue:  decimal.Zero,
		ByStatus: make(map[enums.PaymentStatus]int64, len(counts)),
		TopGames: []TopGame{},
	}
	for _, status := range enums.PaymentStatuses() {
		stats.ByStatus[status] = 0
	}
	for _, c := range counts {
		stats.ByStatus[c.Status] = c.Count
		stats.TotalPurchases += c.Count
	}

	var revenue decimal.NullDecimal
	if err := r.db.WithContext(ctx).
		Model(&models.Purchase{}).
		Select("SUM(total)").
		Where("payment_status = ?", enums.PaymentStatusCompleted).
		Row().
		Scan(&revenue); err != nil {
		return nil, err
	}
	if revenue.Valid {
		stats.Revenue = revenue.Decimal.Round(2)
	}

	if err := r.db.WithContext(ctx).
		Table("purchase_line_items li").
		Select("li.game_id, v.title, COUNT(*) AS sold, SUM(li.price_paid) AS revenue").
		Joins("JOIN purchases p ON p.id = li.purchase_id").
		Joins("JOIN games v ON v.id = li.game_id").
		Where("p.payment_status = ?", enums.PaymentStatusCompleted).
		Group("li.game_id, v.title").
		Order("sold DESC, revenue DESC, v.title ASC").
		Limit(topGamesLimit).
		Scan(&stats.TopGames).Error; err != nil {
		return nil, err
	}
	return stats, nil
}
