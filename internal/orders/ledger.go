package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	pkgdb "github.com/angelmondragon/bookstore-backend/pkg/db"
	"github.com/angelmondragon/bookstore-backend/pkg/db/models"
	"github.com/angelmondragon/bookstore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bookstore-backend/pkg/errors"
	"github.com/angelmondragon/bookstore-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Ledger persists orders and guards both status machines. Every status write
// is a single conditional update so concurrent callers converge without locks.
type Ledger interface {
	WithTx(tx *gorm.DB) Ledger
	Create(ctx context.Context, order *models.Order) (*models.Order, bool, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetForUser(ctx context.Context, userID, id uuid.UUID) (*models.Order, error)
	FindByIdempotencyKey(ctx context.Context, userID uuid.UUID, key string) (*models.Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderList, error)
	ListAwaitingPayment(ctx context.Context, createdBefore time.Time, limit int) ([]models.Order, error)
	ListInitiationFailed(ctx context.Context, createdBefore time.Time, limit int) ([]models.Order, error)
	AttachPaymentLink(ctx context.Context, id uuid.UUID, linkID, linkURL string) (*models.Order, error)
	MarkInitiationFailed(ctx context.Context, id uuid.UUID, reason string) error
	TransitionPayment(ctx context.Context, id uuid.UUID, next enums.PaymentStatus) (*models.Order, bool, error)
	AdvanceFulfillment(ctx context.Context, id uuid.UUID, next enums.FulfillmentStatus) (*models.Order, error)
}

type ledger struct {
	repo Repository
	now  func() time.Time
}

// NewLedger wraps the repository with the ledger guards.
func NewLedger(repo Repository) (Ledger, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	return &ledger{repo: repo, now: time.Now}, nil
}

func (l *ledger) WithTx(tx *gorm.DB) Ledger {
	return &ledger{repo: l.repo.WithTx(tx), now: l.now}
}

// Create inserts the order. When the (user, idempotency key) pair already
// exists, the stored order is returned with created=false.
func (l *ledger) Create(ctx context.Context, order *models.Order) (*models.Order, bool, error) {
	if order == nil {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "order required")
	}
	if len(order.Items) == 0 {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "order must contain items")
	}
	if order.IdempotencyKey == "" {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "idempotency key required")
	}
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	order.Total = order.Items.Total()
	order.FulfillmentStatus = enums.FulfillmentStatusPending
	order.PaymentStatus = enums.PaymentStatusPending
	order.InitiationStatus = enums.InitiationStatusAwaiting

	if err := l.repo.Create(ctx, order); err != nil {
		if pkgdb.IsUniqueViolation(err, "") {
			existing, findErr := l.FindByIdempotencyKey(ctx, order.UserID, order.IdempotencyKey)
			if findErr != nil {
				return nil, false, findErr
			}
			if existing == nil {
				return nil, false, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "order conflict")
			}
			return existing, false, nil
		}
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}
	return order, true, nil
}

func (l *ledger) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, err := l.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, orderNotFound(id)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

// GetForUser hides orders owned by someone else behind NOT_FOUND.
func (l *ledger) GetForUser(ctx context.Context, userID, id uuid.UUID) (*models.Order, error) {
	order, err := l.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, orderNotFound(id)
	}
	return order, nil
}

// FindByIdempotencyKey returns nil, nil when no order carries the key.
func (l *ledger) FindByIdempotencyKey(ctx context.Context, userID uuid.UUID, key string) (*models.Order, error) {
	order, err := l.repo.FindByIdempotencyKey(ctx, userID, key)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order by idempotency key")
	}
	return order, nil
}

func (l *ledger) ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderList, error) {
	rows, next, err := l.repo.ListByUser(ctx, userID, params)
	if err != nil {
		if errors.Is(err, pagination.ErrInvalidCursor) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	list := &OrderList{Orders: make([]OrderDTO, 0, len(rows)), NextCursor: next}
	for i := range rows {
		list.Orders = append(list.Orders, NewOrderDTO(&rows[i]))
	}
	return list, nil
}

// ListAwaitingPayment feeds the pending-payment sweep.
func (l *ledger) ListAwaitingPayment(ctx context.Context, createdBefore time.Time, limit int) ([]models.Order, error) {
	rows, err := l.repo.ListAwaitingPayment(ctx, createdBefore, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders awaiting payment")
	}
	return rows, nil
}

func (l *ledger) ListInitiationFailed(ctx context.Context, createdBefore time.Time, limit int) ([]models.Order, error) {
	rows, err := l.repo.ListInitiationFailed(ctx, createdBefore, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders with failed initiation")
	}
	return rows, nil
}

// AttachPaymentLink stores the link on first success. A second attach keeps
// the original link, which is what the caller gets back.
func (l *ledger) AttachPaymentLink(ctx context.Context, id uuid.UUID, linkID, linkURL string) (*models.Order, error) {
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

// TransitionPayment moves payment_status out of pending. Against an order
// that is already terminal it is a no-op returning the stored state with
// applied=false.
func (l *ledger) TransitionPayment(ctx context.Context, id uuid.UUID, next enums.PaymentStatus) (*models.Order, bool, error) {
	if !next.IsTerminal() {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "payment status must be completed or failed").
			WithDetails(map[string]any{"paymentStatus": next})
	}
	affected, err := l.repo.UpdatePaymentStatus(ctx, id, enums.PaymentStatusPending, next, l.now().UTC())
	if err != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "transition payment status")
	}
	order, err := l.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return order, affected > 0, nil
}

// AdvanceFulfillment walks the fulfillment ladder. Leaving pending requires
// payment_status = completed, cancellation included.
func (l *ledger) AdvanceFulfillment(ctx context.Context, id uuid.UUID, next enums.FulfillmentStatus) (*models.Order, error) {
	if !next.IsValid() || next == enums.FulfillmentStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid fulfillment status").
			WithDetails(map[string]any{"fulfillmentStatus": next})
	}
	affected, err := l.repo.UpdateFulfillmentStatus(ctx, id, enums.PredecessorsOf(next), next)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "advance fulfillment status")
	}
	order, err := l.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if affected > 0 || order.FulfillmentStatus == next {
		return order, nil
	}

	reason := "fulfillment transition not allowed"
	if order.PaymentStatus != enums.PaymentStatusCompleted {
		reason = "payment not completed"
	}
	return nil, pkgerrors.New(pkgerrors.CodeStateConflict, reason).WithDetails(map[string]any{
		"orderId":           order.ID,
		"fulfillmentStatus": order.FulfillmentStatus,
		"paymentStatus":     order.PaymentStatus,
		"requested":         next,
	})
}

func orderNotFound(id uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "order not found").WithDetails(map[string]any{"orderId": id})
}
