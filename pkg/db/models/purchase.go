package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ministeam/ministeam-api/pkg/enums"
)

// Purchase is an append-only ledger row. Only PaymentStatus changes after creation.
type Purchase struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	UserID        uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	Total         decimal.Decimal     `gorm:"column:total;type:numeric(10,2);not null"`
	PaymentMethod string              `gorm:"column:payment_method;not null"`
	PaymentStatus enums.PaymentStatus `gorm:"column:payment_status;type:text;not null"`
	Notes         *string             `gorm:"column:notes"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
	LineItems     []PurchaseLineItem  `gorm:"foreignKey:PurchaseID"`
}

func (p *Purchase) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// PurchaseLineItem snapshots the price paid for one game.
type PurchaseLineItem struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	PurchaseID uuid.UUID       `gorm:"column:purchase_id;type:uuid;not null;index"`
	GameID     uuid.UUID       `gorm:"column:game_id;type:uuid;not null"`
	PricePaid  decimal.Decimal `gorm:"column:price_paid;type:numeric(10,2);not null"`
	Quantity   int             `gorm:"column:quantity;not null"`
	Discount   decimal.Decimal `gorm:"column:discount;type:numeric(10,2);not null"`
}

func (li *PurchaseLineItem) BeforeCreate(*gorm.DB) error {
	ensureID(&li.ID)
	return nil
}
