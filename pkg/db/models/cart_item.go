package models

import (
	"time"

	"github.com/google/uuid"
)

// CartItem references a book in a user's cart. Prices are resolved at read time.
type CartItem struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:cart_items_user_book_key"`
	BookID    uuid.UUID `gorm:"column:book_id;type:uuid;not null;uniqueIndex:cart_items_user_book_key"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
