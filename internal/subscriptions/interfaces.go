package subscriptions

import (
	"context"
	"time"

	"github.com/angelmondragon/bookstore-backend/pkg/db/models"
	"github.com/angelmondragon/bookstore-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository is the raw gorm surface behind the subscription ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, sub *models.Subscription) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error)
	FindByIdempotencyKey(ctx context.Context, userID uuid.UUID, key string) (*models.Subscription, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Subscription, error)
	ListAwaitingPayment(ctx context.Context, createdBefore time.Time, limit int) ([]models.Subscription, error)
	ListInitiationFailed(ctx context.Context, createdBefore time.Time, limit int) ([]models.Subscription, error)
	AttachPaymentLink(ctx context.Context, id uuid.UUID, linkID, linkURL string) (int64, error)
	MarkInitiationFailed(ctx context.Context, id uuid.UUID, reason string) (int64, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.SubscriptionStatus, period *Period) (int64, error)
}

// Period is one billing cycle.
type Period struct {
	Start time.Time
	End   time.Time
}
