package cart

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Line is one cart entry priced from the live catalog.
type Line struct {
	BookID uuid.UUID       `json:"bookId"`
	Title  string          `json:"title"`
	Author string          `json:"author"`
	Price  decimal.Decimal `json:"price"`
}

// View is the server-computed cart. Total reflects current catalog prices and
// is never the price an order is charged at.
type View struct {
	Items       []Line          `json:"items"`
	Total       decimal.Decimal `json:"total"`
	Unavailable []uuid.UUID     `json:"unavailable,omitempty"`
}

func (v *View) IsEmpty() bool {
	return v == nil || len(v.Items) == 0
}

// AddItemRequest is the body of POST /cart/items.
type AddItemRequest struct {
	BookID string `json:"bookId" validate:"required,uuid"`
}
