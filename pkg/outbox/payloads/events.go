package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ministeam/ministeam-api/pkg/enums"
)

// PurchaseLine mirrors one purchased game inside PurchaseCompletedEvent.
type PurchaseLine struct {
	GameID    uuid.UUID       `json:"game_id"`
	PricePaid decimal.Decimal `json:"price_paid"`
}

// PurchaseCompletedEvent is emitted once checkout commits.
type PurchaseCompletedEvent struct {
	PurchaseID    uuid.UUID           `json:"purchase_id"`
	UserID        uuid.UUID           `json:"user_id"`
	Total         decimal.Decimal     `json:"total"`
	PaymentMethod string              `json:"payment_method"`
	PaymentStatus enums.PaymentStatus `json:"payment_status"`
	Lines         []PurchaseLine      `json:"lines"`
	CompletedAt   time.Time           `json:"completed_at"`
}

// PaymentStatusChangedEvent is emitted when an admin moves a purchase between payment states.
type PaymentStatusChangedEvent struct {
	PurchaseID uuid.UUID           `json:"purchase_id"`
	UserID     uuid.UUID           `json:"user_id"`
	From       enums.PaymentStatus `json:"from"`
	To         enums.PaymentStatus `json:"to"`
	ChangedAt  time.Time           `json:"changed_at"`
}

// ReviewCreatedEvent carries the new review and the game's recomputed rating.
type ReviewCreatedEvent struct {
	ReviewID      uuid.UUID       `json:"review_id"`
	UserID        uuid.UUID       `json:"user_id"`
	GameID        uuid.UUID       `json:"game_id"`
	Score         int             `json:"score"`
	Recommended   bool            `json:"recommended"`
	AverageRating decimal.Decimal `json:"average_rating"`
	CreatedAt     time.Time       `json:"created_at"`
}

// AggregateKey returns the id the event's outbox row must be filed under.
func (e PurchaseCompletedEvent) AggregateKey() uuid.UUID { return e.PurchaseID }

func (e PaymentStatusChangedEvent) AggregateKey() uuid.UUID { return e.PurchaseID }

func (e ReviewCreatedEvent) AggregateKey() uuid.UUID { return e.ReviewID }
