package purchases

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ministeam/ministeam-api/pkg/enums"
	"github.com/ministeam/ministeam-api/pkg/pagination"
)

// LineItemDTO is one purchased game at the price paid.
type LineItemDTO struct {
	ID        uuid.UUID       `json:"id"`
	GameID    uuid.UUID       `json:"game_id"`
	Title     string          `json:"title"`
	Slug      string          `json:"slug"`
	ImageURL  *string         `json:"image_url,omitempty"`
	PricePaid decimal.Decimal `json:"price_paid"`
	Quantity  int             `json:"quantity"`
	Discount  decimal.Decimal `json:"discount"`
}

// PurchaseDTO is a ledger row. Items is only filled on single-purchase reads.
type PurchaseDTO struct {
	ID            uuid.UUID           `json:"id"`
	UserID        uuid.UUID           `json:"user_id"`
	Username      string              `json:"username,omitempty"`
	Total         decimal.Decimal     `json:"total"`
	PaymentMethod string              `json:"payment_method"`
	PaymentStatus enums.PaymentStatus `json:"payment_status"`
	Notes         *string             `json:"notes,omitempty"`
	ItemsCount    int64               `json:"items_count"`
	Items         []LineItemDTO       `json:"items,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// ListFilters narrows the admin ledger listing.
type ListFilters struct {
	Page   pagination.Params
	Status string
}

// ListResult is one page of purchases.
type ListResult struct {
	Purchases  []PurchaseDTO   `json:"purchases"`
	Pagination pagination.Meta `json:"pagination"`
}

// UpdatePaymentStatusRequest moves a purchase to another payment state.
type UpdatePaymentStatusRequest struct {
	Status string `json:"estado_pago" validate:"required"`
}

// TopGame ranks a game by completed sales.
type TopGame struct {
	GameID  uuid.UUID       `json:"game_id"`
	Title   string          `json:"title"`
	Sold    int64           `json:"sold"`
	Revenue decimal.Decimal `json:"revenue"`
}

// SalesStats summarizes the ledger for admins. Revenue counts completed purchases only.
type SalesStats struct {
	TotalPurchases int64                         `json:"total_purchases"`
	Revenue        decimal.Decimal               `json:"revenue"`
	ByStatus       map[enums.PaymentStatus]int64 `json:"by_status"`
	TopGames       []TopGame                     `json:"top_games"`
}
