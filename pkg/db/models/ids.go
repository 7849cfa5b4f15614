package models

import "github.com/google/uuid"

// ensureID assigns a time-ordered UUID when the primary key is unset, so rows
// inserted in one batch sort by id in insertion order.
func ensureID(id *uuid.UUID) {
	if *id != uuid.Nil {
		return
	}
	if v7, err := uuid.NewV7(); err == nil {
		*id = v7
		return
	}
	*id = uuid.New()
}
