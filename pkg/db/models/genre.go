package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Genre groups catalog games.
type Genre struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name        string    `gorm:"column:name;not null;uniqueIndex"`
	Description *string   `gorm:"column:description"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (g *Genre) BeforeCreate(*gorm.DB) error {
	ensureID(&g.ID)
	return nil
}
