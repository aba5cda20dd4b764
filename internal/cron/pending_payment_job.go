package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/bookstore-backend/internal/orders"
	"github.com/angelmondragon/bookstore-backend/internal/subscriptions"
	"github.com/angelmondragon/bookstore-backend/pkg/db/models"
	"github.com/angelmondragon/bookstore-backend/pkg/logger"
	"github.com/angelmondragon/bookstore-backend/pkg/metrics"
)

const (
	pendingPaymentJobName = "pending-payment-sweep"
	defaultSweepGrace     = 2 * time.Minute
	defaultSweepLimit     = 100
)

type awaitingOrders interface {
	ListAwaitingPayment(ctx context.Context, createdBefore time.Time, limit int) ([]models.Order, error)
}

type awaitingSubscriptions interface {
	ListAwaitingPayment(ctx context.Context, createdBefore time.Time, limit int) ([]models.Subscription, error)
}

type initiationRecovery interface {
	SweepFailed(ctx context.Context, createdBefore time.Time, limit int) (int, error)
}

type reconciler interface {
	ReconcileOrder(ctx context.Context, userID, orderID uuid.UUID) (*orders.OrderDTO, error)
	ReconcileSubscription(ctx context.Context, userID, subscriptionID uuid.UUID) (*subscriptions.SubscriptionDTO, error)
}

// PendingPaymentJobParams configure the pending-payment sweep.
type PendingPaymentJobParams struct {
	Logger        *logger.Logger
	Orders        awaitingOrders
	Subscriptions awaitingSubscriptions
	Reconciler    reconciler
	// Recovery adopts links whose create call timed out. Optional.
	Recovery initiationRecovery
	Metrics  *metrics.JobMetrics
	// Grace leaves fresh records to the client that is still polling.
	Grace time.Duration
	Limit int
	Now   func() time.Time
}

// NewPendingPaymentJob builds the job that reconciles purchases whose buyer
// never came back to poll their payment status.
func NewPendingPaymentJob(params PendingPaymentJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders ledger required")
	}
	if params.Subscriptions == nil {
		return nil, fmt.Errorf("subscriptions ledger required")
	}
	if params.Reconciler == nil {
		return nil, fmt.Errorf("reconciler required")
	}
	grace := params.Grace
	if grace <= 0 {
		grace = defaultSweepGrace
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultSweepLimit
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &pendingPaymentJob{
		logg:          params.Logger,
		orders:        params.Orders,
		subscriptions: params.Subscriptions,
		reconciler:    params.Reconciler,
		recovery:      params.Recovery,
		metrics:       params.Metrics,
		grace:         grace,
		limit:         limit,
		now:           now,
	}, nil
}

type pendingPaymentJob struct {
	logg          *logger.Logger
	orders        awaitingOrders
	subscriptions awaitingSubscriptions
	reconciler    reconciler
	recovery      initiationRecovery
	metrics       *metrics.JobMetrics
	grace         time.Duration
	limit         int
	now           func() time.Time
}

func (j *pendingPaymentJob) Name() string { return pendingPaymentJobName }

// Run reconciles every candidate and keeps going past individual failures;
// the combined error reports all of them. It stops early once ctx is done,
// leaving the rest for the next cycle.
func (j *pendingPaymentJob) Run(ctx context.Context) error {
	cutoff := j.now().Add(-j.grace)

	pendingOrders, err := j.orders.ListAwaitingPayment(ctx, cutoff, j.limit)
	if err != nil {
		return fmt.Errorf("list orders awaiting payment: %w", err)
	}
	pendingSubs, err := j.subscriptions.ListAwaitingPayment(ctx, cutoff, j.limit)
	if err != nil {
		return fmt.Errorf("list subscriptions awaiting payment: %w", err)
	}

	var errs error
	checked := 0
	for i := range pendingOrders {
		if ctx.Err() != nil {
			break
		}
		checked++
		order := &pendingOrders[i]
		if _, err := j.reconciler.ReconcileOrder(ctx, order.UserID, order.ID); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("reconcile order %s: %w", order.ID, err))
		}
	}
	for i := range pendingSubs {
		if ctx.Err() != nil {
			break
		}
		checked++
		sub := &pendingSubs[i]
		if _, err := j.reconciler.ReconcileSubscription(ctx, sub.UserID, sub.ID); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("reconcile subscription %s: %w", sub.ID, err))
		}
	}

	if err := ctx.Err(); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("sweep cut short after %d of %d: %w", checked, len(pendingOrders)+len(pendingSubs), err))
	}

	recovered := 0
	if j.recovery != nil && ctx.Err() == nil {
		n, err := j.recovery.SweepFailed(ctx, cutoff, j.limit)
		recovered = n
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("recover payment links: %w", err))
		}
	}

	j.metrics.AddSwept(j.Name(), "order", len(pendingOrders))
	j.metrics.AddSwept(j.Name(), "subscription", len(pendingSubs))
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"orders":          len(pendingOrders),
		"subscriptions":   len(pendingSubs),
		"checked":         checked,
		"links_recovered": recovered,
		"failures":        len(multierr.Errors(errs)),
	}), "worker.pending_payment_sweep")
	return errs
}
