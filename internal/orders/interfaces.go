package orders

import (
	"context"
	"time"

	"github.com/angelmondragon/bookstore-backend/pkg/db/models"
	"github.com/angelmondragon/bookstore-backend/pkg/enums"
	"github.com/angelmondragon/bookstore-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository is the raw gorm surface behind the ledger. Conditional writes
// report the affected row count so callers can tell a lost race from a write.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByIdempotencyKey(ctx context.Context, userID uuid.UUID, key string) (*models.Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Order, string, error)
	ListAwaitingPayment(ctx context.Context, createdBefore time.Time, limit int) ([]models.Order, error)
	ListInitiationFailed(ctx context.Context, createdBefore time.Time, limit int) ([]models.Order, error)
	AttachPaymentLink(ctx context.Context, id uuid.UUID, linkID, linkURL string) (int64, error)
	MarkInitiationFailed(ctx context.Context, id uuid.UUID, reason string) (int64, error)
	UpdatePaymentStatus(ctx context.Context, id uuid.UUID, from, to enums.PaymentStatus, at time.Time) (int64, error)
	UpdateFulfillmentStatus(ctx context.Context, id uuid.UUID, from []enums.FulfillmentStatus, to enums.FulfillmentStatus) (int64, error)
}
