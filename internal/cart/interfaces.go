package cart

import (
	"context"

	"github.com/angelmondragon/bookstore-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository defines the persistence surface required by the cart service.
// Every mutation targets a single (user, book) key or the whole cart.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	AddItem(ctx context.Context, userID, bookID uuid.UUID) (bool, error)
	RemoveItem(ctx context.Context, userID, bookID uuid.UUID) (bool, error)
	ListItems(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error)
	Clear(ctx context.Context, userID uuid.UUID) (int64, error)
}

type bookLookup interface {
	GetBook(ctx context.Context, id uuid.UUID) (*models.Book, error)
	BooksByID(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Book, error)
}
