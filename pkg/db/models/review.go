package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Review is a user's score and comment for an owned game.
type Review struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	UserID      uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:reviews_user_game_key"`
	GameID      uuid.UUID `gorm:"column:game_id;type:uuid;not null;uniqueIndex:reviews_user_game_key"`
	Score       int       `gorm:"column:score;not null"`
	Comment     *string   `gorm:"column:comment"`
	Recommended bool      `gorm:"column:recommended;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (r *Review) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}
