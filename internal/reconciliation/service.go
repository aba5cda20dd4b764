package reconciliation

import (
	"context"
	"fmt"

	"github.com/angelmondragon/bookstore-backend/internal/cart"
	"github.com/angelmondragon/bookstore-backend/internal/orders"
	"github.com/angelmondragon/bookstore-backend/internal/subscriptions"
	"github.com/angelmondragon/bookstore-backend/pkg/db/models"
	"github.com/angelmondragon/bookstore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bookstore-backend/pkg/errors"
	"github.com/angelmondragon/bookstore-backend/pkg/gateway"
	"github.com/angelmondragon/bookstore-backend/pkg/logger"
	"github.com/angelmondragon/bookstore-backend/pkg/metrics"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	kindOrder        = "order"
	kindSubscription = "subscription"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type statusReader interface {
	GetStatus(ctx context.Context, linkID string) (*gateway.LinkStatus, error)
}

// Service pulls the authoritative payment state from the gateway and applies
// it exactly once. Concurrent calls for the same record converge through the
// ledgers' conditional transitions; no lock is taken.
type Service interface {
	ReconcileOrder(ctx context.Context, userID, orderID uuid.UUID) (*orders.OrderDTO, error)
	ReconcileSubscription(ctx context.Context, userID, subscriptionID uuid.UUID) (*subscriptions.SubscriptionDTO, error)
}

// ServiceParams groups dependencies for the reconciliation service.
type ServiceParams struct {
	Tx            txRunner
	Orders        orders.Ledger
	Subscriptions subscriptions.Ledger
	Cart          cart.Repository
	Gateway       statusReader
	Logger        *logger.Logger
	Metrics       *metrics.PaymentMetrics
}

type service struct {
	tx            txRunner
	orders        orders.Ledger
	subscriptions subscriptions.Ledger
	cart          cart.Repository
	gateway       statusReader
	logg          *logger.Logger
	metrics       *metrics.PaymentMetrics
}

func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders ledger required")
	}
	if params.Subscriptions == nil {
		return nil, fmt.Errorf("subscriptions ledger required")
	}
	if params.Cart == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	return &service{
		tx:            params.Tx,
		orders:        params.Orders,
		subscriptions: params.Subscriptions,
		cart:          params.Cart,
		gateway:       params.Gateway,
		logg:          params.Logger,
		metrics:       params.Metrics,
	}, nil
}

// PaymentStatusFor maps a gateway link status onto the internal payment
// status. ok=false means the gateway answer is inconclusive.
func PaymentStatusFor(status gateway.Status) (enums.PaymentStatus, bool) {
	switch status {
	case gateway.StatusPaid:
		return enums.PaymentStatusCompleted, true
	case gateway.StatusCancelled, gateway.StatusExpired:
		return enums.PaymentStatusFailed, true
	default:
		return enums.PaymentStatusPending, false
	}
}

func (s *service) ReconcileOrder(ctx context.Context, userID, orderID uuid.UUID) (*orders.OrderDTO, error) {
	order, err := s.orders.GetForUser(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	if s.logg != nil {
		ctx = s.logg.WithOrderID(ctx, order.ID.String())
	}
	if order.PaymentStatus.IsTerminal() {
		s.metrics.IncReconciliation(kindOrder, metrics.OutcomeNoop)
		return orderDTO(order), nil
	}

	next, ok, err := s.lookup(ctx, kindOrder, order.ID, order.PaymentLinkID)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.metrics.IncReconciliation(kindOrder, metrics.OutcomePending)
		return orderDTO(order), nil
	}

	var (
		updated *models.Order
		applied bool
	)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		updated, applied, err = s.orders.WithTx(tx).TransitionPayment(ctx, order.ID, next)
		if err != nil {
			return err
		}
		if !applied || next != enums.PaymentStatusCompleted {
			return nil
		}
		return s.releaseCart(ctx, s.cart.WithTx(tx), updated)
	})
	if err != nil {
		s.metrics.IncReconciliation(kindOrder, metrics.OutcomeFailed)
		return nil, err
	}

	s.record(ctx, kindOrder, applied, map[string]any{"payment_status": updated.PaymentStatus})
	return orderDTO(updated), nil
}

func (s *service) ReconcileSubscription(ctx context.Context, userID, subscriptionID uuid.UUID) (*subscriptions.SubscriptionDTO, error) {
	sub, err := s.subscriptions.GetForUser(ctx, userID, subscriptionID)
	if err != nil {
		return nil, err
	}
	if s.logg != nil {
		ctx = s.logg.WithSubscriptionID(ctx, sub.ID.String())
	}
	if sub.Status.IsTerminal() {
		s.metrics.IncReconciliation(kindSubscription, metrics.OutcomeNoop)
		return subscriptionDTO(sub), nil
	}

	next, ok, err := s.lookup(ctx, kindSubscription, sub.ID, sub.PaymentLinkID)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.metrics.IncReconciliation(kindSubscription, metrics.OutcomePending)
		return subscriptionDTO(sub), nil
	}

	var (
		updated *models.Subscription
		applied bool
	)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ledger := s.subscriptions.WithTx(tx)
		var err error
		if next == enums.PaymentStatusCompleted {
			updated, applied, err = ledger.Activate(ctx, sub.ID, sub.Interval)
		} else {
			updated, applied, err = ledger.Cancel(ctx, sub.ID)
		}
		return err
	})
	if err != nil {
		s.metrics.IncReconciliation(kindSubscription, metrics.OutcomeFailed)
		return nil, err
	}

	s.record(ctx, kindSubscription, applied, map[string]any{"status": updated.Status})
	return subscriptionDTO(updated), nil
}

// lookup asks the gateway for the link state. A record without a link has
// nothing to reconcile yet.
func (s *service) lookup(ctx context.Context, kind string, id uuid.UUID, linkID *string) (enums.PaymentStatus, bool, error) {
	if linkID == nil || *linkID == "" {
		return enums.PaymentStatusPending, false, nil
	}
	status, err := s.gateway.GetStatus(ctx, *linkID)
	if err != nil {
		s.metrics.IncReconciliation(kind, metrics.OutcomeNetwork)
		if s.logg != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "reconciliation.status_lookup_failed")
		}
		return "", false, gateway.APIError(err, "payment status unavailable, retry", map[string]any{kind + "Id": id})
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"payment_link_id": *linkID,
			"gateway_status":  status.Status,
		}), "reconciliation.gateway_status")
	}
	next, ok := PaymentStatusFor(status.Status)
	return next, ok, nil
}

// releaseCart empties the cart for cart checkouts. A direct purchase only
// drops the bought book, if the user also had it in the cart.
func (s *service) releaseCart(ctx context.Context, repo cart.Repository, order *models.Order) error {
	if order.Source == enums.OrderSourceDirect {
		for _, item := range order.Items {
			if _, err := repo.RemoveItem(ctx, order.UserID, item.BookID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove purchased book from cart")
			}
		}
		return nil
	}
	if _, err := repo.Clear(ctx, order.UserID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	return nil
}

func (s *service) record(ctx context.Context, kind string, applied bool, fields map[string]any) {
	outcome := metrics.OutcomeNoop
	if applied {
		outcome = metrics.OutcomeApplied
	}
	s.metrics.IncReconciliation(kind, outcome)
	if s.logg == nil {
		return
	}
	fields["applied"] = applied
	s.logg.Info(s.logg.WithFields(ctx, fields), "reconciliation.completed")
}

func orderDTO(order *models.Order) *orders.OrderDTO {
	dto := orders.NewOrderDTO(order)
	return &dto
}

func subscriptionDTO(sub *models.Subscription) *subscriptions.SubscriptionDTO {
	dto := subscriptions.NewSubscriptionDTO(sub)
	return &dto
}
