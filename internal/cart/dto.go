package cart

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ItemDTO is a cart line joined with the current game display data.
type ItemDTO struct {
	ID        uuid.UUID       `json:"id"`
	GameID    uuid.UUID       `json:"game_id"`
	Title     string          `json:"title"`
	Slug      string          `json:"slug"`
	Price     decimal.Decimal `json:"price"`
	ImageURL  *string         `json:"image_url,omitempty"`
	Platform  string          `json:"platform"`
	Developer *string         `json:"developer,omitempty"`
	GenreName *string         `json:"genre_name,omitempty"`
	AddedAt   time.Time       `json:"added_at"`
}

// CartDTO is the cart view returned by every cart operation.
type CartDTO struct {
	Items     []ItemDTO       `json:"items"`
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"itemCount"`
}

// AddItemRequest names the game to add.
type AddItemRequest struct {
	GameID string `json:"id_juego"`
}

// Summarize totals items at their current prices.
func Summarize(items []ItemDTO) CartDTO {
	if items == nil {
		items = []ItemDTO{}
	}
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Price)
	}
	return CartDTO{Items: items, Total: total.Round(2), ItemCount: len(items)}
}
