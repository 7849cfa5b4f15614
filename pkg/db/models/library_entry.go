package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ministeam/ministeam-api/pkg/enums"
)

// LibraryEntry records ownership of a game and its play state.
type LibraryEntry struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	UserID        uuid.UUID           `gorm:"column:user_id;type:uuid;not null;uniqueIndex:library_entries_user_game_key"`
	GameID        uuid.UUID           `gorm:"column:game_id;type:uuid;not null;uniqueIndex:library_entries_user_game_key"`
	PurchaseID    *uuid.UUID          `gorm:"column:purchase_id;type:uuid"`
	Status        enums.LibraryStatus `gorm:"column:status;type:text;not null"`
	MinutesPlayed int                 `gorm:"column:minutes_played;not null"`
	AcquiredAt    time.Time           `gorm:"column:acquired_at;autoCreateTime"`
	LastPlayedAt  *time.Time          `gorm:"column:last_played_at"`
}

func (l *LibraryEntry) BeforeCreate(*gorm.DB) error {
	ensureID(&l.ID)
	return nil
}
