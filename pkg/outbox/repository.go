package outbox

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	dbpkg "github.com/ministeam/ministeam-api/pkg/db"
	"github.com/ministeam/ministeam-api/pkg/db/models"
)

// ErrTxRequired is returned when a write is attempted outside a transaction.
var ErrTxRequired = errors.New("outbox: transaction required")

const defaultClaimLimit = 50

// Repository owns outbox_events. Writes always run on the caller's
// transaction so an event commits together with the change it describes.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Insert(tx *gorm.DB, event models.OutboxEvent) error {
	if tx == nil {
		return ErrTxRequired
	}
	return tx.Create(&event).Error
}

// ClaimBatch returns up to limit unpublished rows below maxAttempts, oldest
// first. On postgres the rows stay locked until tx ends and rows already
// locked by another relay are skipped.
func (r *Repository) ClaimBatch(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	if tx == nil {
		return nil, ErrTxRequired
	}
	if limit <= 0 {
		limit = defaultClaimLimit
	}

	q := tx.Where("published_at IS NULL")
	if maxAttempts > 0 {
		q = q.Where("attempt_count < ?", maxAttempts)
	}
	if dbpkg.SupportsRowLocks(tx) {
		q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
	}

	var rows []models.OutboxEvent
	if err := q.Order("created_at ASC, id ASC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Repository) MarkPublished(tx *gorm.DB, id uuid.UUID) error {
	return updateEvent(tx, id, map[string]any{
		"published_at": time.Now().UTC(),
		"last_error":   nil,
	})
}

// RecordFailure keeps the row pending and counts one more attempt.
func (r *Repository) RecordFailure(tx *gorm.DB, id uuid.UUID, cause error) error {
	return updateEvent(tx, id, map[string]any{
		"attempt_count": gorm.Expr("attempt_count + 1"),
		"last_error":    causeText(cause),
	})
}

// Retire sets attempt_count to ceiling so ClaimBatch never returns the row
// again. The row itself stays for audit next to its outbox_dlq copy.
func (r *Repository) Retire(tx *gorm.DB, id uuid.UUID, cause error, ceiling int) error {
	return updateEvent(tx, id, map[string]any{
		"attempt_count": ceiling,
		"last_error":    causeText(cause),
	})
}

func updateEvent(tx *gorm.DB, id uuid.UUID, fields map[string]any) error {
	if tx == nil {
		return ErrTxRequired
	}
	res := tx.Model(&models.OutboxEvent{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("outbox event %s not found", id)
	}
	return nil
}

func causeText(err error) *string {
	if err == nil {
		return nil
	}
	msg := err.Error()
	return &msg
}
