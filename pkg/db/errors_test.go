package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsUniqueViolation(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "cart_items_user_game_key"}
	wrapped := fmt.Errorf("insert cart item: %w", pgErr)

	if !IsUniqueViolation(wrapped, "") {
		t.Fatal("expected pg unique violation to match")
	}
	if !IsUniqueViolation(wrapped, "cart_items_user_game_key") {
		t.Fatal("expected named constraint to match")
	}
	if IsUniqueViolation(wrapped, "reviews_user_game_key") {
		t.Fatal("expected other constraint to be rejected")
	}
	if IsUniqueViolation(&pgconn.PgError{Code: "23503"}, "") {
		t.Fatal("foreign key violation is not a unique violation")
	}
	if !IsUniqueViolation(errors.New("UNIQUE constraint failed: cart_items.user_id, cart_items.game_id"), "") {
		t.Fatal("expected sqlite message to match")
	}
	if IsUniqueViolation(nil, "") || IsUniqueViolation(errors.New("timeout"), "") {
		t.Fatal("unexpected match")
	}
}
