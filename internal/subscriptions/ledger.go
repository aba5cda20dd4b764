package subscriptions

import (
	"context"
	"errors"
	"fmt"
	"time"

	pkgdb "github.com/angelmondragon/bookstore-backend/pkg/db"
	"github.com/angelmondragon/bookstore-backend/pkg/db/models"
	"github.com/angelmondragon/bookstore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bookstore-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Ledger persists plan purchases. Status leaves pending exactly once, through
// Activate or Cancel.
type Ledger interface {
	WithTx(tx *gorm.DB) Ledger
	Create(ctx context.Context, sub *models.Subscription) (*models.Subscription, bool, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Subscription, error)
	GetForUser(ctx context.Context, userID, id uuid.UUID) (*models.Subscription, error)
	FindByIdempotencyKey(ctx context.Context, userID uuid.UUID, key string) (*models.Subscription, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]SubscriptionDTO, error)
	ListAwaitingPayment(ctx context.Context, createdBefore time.Time, limit int) ([]models.Subscription, error)
	ListInitiationFailed(ctx context.Context, createdBefore time.Time, limit int) ([]models.Subscription, error)
	AttachPaymentLink(ctx context.Context, id uuid.UUID, linkID, linkURL string) (*models.Subscription, error)
	MarkInitiationFailed(ctx context.Context, id uuid.UUID, reason string) error
	Activate(ctx context.Context, id uuid.UUID, interval enums.BillingInterval) (*models.Subscription, bool, error)
	Cancel(ctx context.Context, id uuid.UUID) (*models.Subscription, bool, error)
}

type ledger struct {
	repo Repository
	now  func() time.Time
}

// NewLedger wraps the repository with the subscription status guards.
func NewLedger(repo Repository) (Ledger, error) {
	if repo == nil {
		return nil, fmt.Errorf("subscriptions repository required")
	}
	return &ledger{repo: repo, now: time.Now}, nil
}

func (l *ledger) WithTx(tx *gorm.DB) Ledger {
	return &ledger{repo: l.repo.WithTx(tx), now: l.now}
}

func (l *ledger) Create(ctx context.Context, sub *models.Subscription) (*models.Subscription, bool, error) {
	if sub == nil {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "subscription required")
	}
	if sub.IdempotencyKey == "" {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "idempotency key required")
	}
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	sub.Status = enums.SubscriptionStatusPending
	sub.InitiationStatus = enums.InitiationStatusAwaiting

	if err := l.repo.Create(ctx, sub); err != nil {
		if pkgdb.IsUniqueViolation(err, "") {
			existing, findErr := l.FindByIdempotencyKey(ctx, sub.UserID, sub.IdempotencyKey)
			if findErr != nil {
				return nil, false, findErr
			}
			if existing == nil {
				return nil, false, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "subscription conflict")
			}
			return existing, false, nil
		}
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create subscription")
	}
	return sub, true, nil
}

func (l *ledger) Get(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	sub, err := l.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, subscriptionNotFound(id)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription")
	}
	return sub, nil
}

func (l *ledger) GetForUser(ctx context.Context, userID, id uuid.UUID) (*models.Subscription, error) {
	sub, err := l.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.UserID != userID {
		return nil, subscriptionNotFound(id)
	}
	return sub, nil
}

func (l *ledger) FindByIdempotencyKey(ctx context.Context, userID uuid.UUID, key string) (*models.Subscription, error) {
	sub, err := l.repo.FindByIdempotencyKey(ctx, userID, key)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription by idempotency key")
	}
	return sub, nil
}

func (l *ledger) ListByUser(ctx context.Context, userID uuid.UUID) ([]SubscriptionDTO, error) {
	subs, err := l.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list subscriptions")
	}
	out := make([]SubscriptionDTO, 0, len(subs))
	for i := range subs {
		out = append(out, NewSubscriptionDTO(&subs[i]))
	}
	return out, nil
}

// ListAwaitingPayment feeds the pending-payment sweep.
func (l *ledger) ListAwaitingPayment(ctx context.Context, createdBefore time.Time, limit int) ([]models.Subscription, error) {
	subs, err := l.repo.ListAwaitingPayment(ctx, createdBefore, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list subscriptions awaiting payment")
	}
	return subs, nil
}

// ListInitiationFailed feeds link recovery for plan purchases.
func (l *ledger) ListInitiationFailed(ctx context.Context, createdBefore time.Time, limit int) ([]models.Subscription, error) {
	subs, err := l.repo.ListInitiationFailed(ctx, createdBefore, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list subscriptions with failed initiation")
	}
	return subs, nil
}

func (l *ledger) AttachPaymentLink(ctx context.Context, id uuid.UUID, linkID, linkURL string) (*models.Subscription, error) {
	if linkID == "" || linkURL == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment link id and url required")
	}
	if _, err := l.repo.AttachPaymentLink(ctx, id, linkID, linkURL); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "attach payment link")
	}
	return l.Get(ctx, id)
}

func (l *ledger) MarkInitiationFailed(ctx context.Context, id uuid.UUID, reason string) error {
	if _, err := l.repo.MarkInitiationFailed(ctx, id, reason); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record initiation failure")
	}
	return nil
}

// Activate opens the first billing cycle starting now.
func (l *ledger) Activate(ctx context.Context, id uuid.UUID, interval enums.BillingInterval) (*models.Subscription, bool, error) {
	if !interval.IsValid() {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "invalid billing interval").
			WithDetails(map[string]any{"interval": interval})
	}
	start := l.now().UTC()
	period := &Period{Start: start, End: interval.AddTo(start)}
	return l.transition(ctx, id, enums.SubscriptionStatusActive, period)
}

func (l *ledger) Cancel(ctx context.Context, id uuid.UUID) (*models.Subscription, bool, error) {
	return l.transition(ctx, id, enums.SubscriptionStatusCancelled, nil)
}

func (l *ledger) transition(ctx context.Context, id uuid.UUID, next enums.SubscriptionStatus, period *Period) (*models.Subscription, bool, error) {
	affected, err := l.repo.UpdateStatus(ctx, id, enums.SubscriptionStatusPending, next, period)
	if err != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "transition subscription status")
	}
	sub, err := l.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return sub, affected > 0, nil
}

func subscriptionNotFound(id uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found").WithDetails(map[string]any{"subscriptionId": id})
}
