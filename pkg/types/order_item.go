package types

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderItem freezes the catalog data of one book at purchase time.
type OrderItem struct {
	BookID uuid.UUID       `json:"bookId"`
	Title  string          `json:"title"`
	Author string          `json:"author"`
	Price  decimal.Decimal `json:"price"`
}

// OrderItems is the immutable snapshot list stored on an order.
type OrderItems []OrderItem

// Total sums the snapshot prices.
func (items OrderItems) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Price)
	}
	return total
}
