package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/bookstore-backend/internal/orders"
	"github.com/angelmondragon/bookstore-backend/internal/subscriptions"
	pkgerrors "github.com/angelmondragon/bookstore-backend/pkg/errors"
	"github.com/angelmondragon/bookstore-backend/pkg/gateway"
	"github.com/angelmondragon/bookstore-backend/pkg/logger"
	"github.com/angelmondragon/bookstore-backend/pkg/metrics"
	"go.uber.org/multierr"
)

// recoverLookback bounds how many earlier references one recovery checks.
const recoverLookback = 5

type linkFinder interface {
	FindLinkByReference(ctx context.Context, referenceID string) (*gateway.LinkStatus, error)
}

// RecoveryParams groups dependencies for link recovery.
type RecoveryParams struct {
	Orders        orders.Ledger
	Subscriptions subscriptions.Ledger
	Gateway       linkFinder
	Logger        *logger.Logger
	Metrics       *metrics.PaymentMetrics
}

// LinkRecovery adopts payment links the gateway created for a call whose
// response never arrived. Every create carries an attempt-scoped reference,
// so the links of earlier attempts can be looked up by reference.
type LinkRecovery struct {
	orders        orders.Ledger
	subscriptions subscriptions.Ledger
	gateway       linkFinder
	logg          *logger.Logger
	metrics       *metrics.PaymentMetrics
}

func NewLinkRecovery(params RecoveryParams) (*LinkRecovery, error) {
	if params.Orders == nil {
		return nil, fmt.Errorf("orders ledger required")
	}
	if params.Subscriptions == nil {
		return nil, fmt.Errorf("subscriptions ledger required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	return &LinkRecovery{
		orders:        params.Orders,
		subscriptions: params.Subscriptions,
		gateway:       params.Gateway,
		logg:          params.Logger,
		metrics:       params.Metrics,
	}, nil
}

// Recover attaches the newest live link left by an earlier attempt. It
// returns the updated intent, or nil when no such link exists.
func (r *LinkRecovery) Recover(ctx context.Context, intent PurchaseIntent) (PurchaseIntent, error) {
	last := intent.Attempts()
	for attempt := last; attempt > 0 && attempt > last-recoverLookback; attempt-- {
		found, err := r.gateway.FindLinkByReference(ctx, linkReference(intent.ID(), attempt))
		if err != nil {
			return nil, err
		}
		if found == nil || !found.Status.Live() || found.URL == "" {
			continue
		}
		stored, err := r.attach(ctx, intent, &gateway.Link{ID: found.ID, URL: found.URL})
		if err != nil {
			return nil, err
		}
		r.metrics.IncInitiation(intent.Kind(), metrics.OutcomeRecovered)
		if r.logg != nil {
			r.logg.Info(r.logg.WithFields(ctx, map[string]any{
				"payment_link_id": found.ID,
				"attempt":         attempt,
			}), "checkout.payment_link_recovered")
		}
		return stored, nil
	}
	return nil, nil
}

// SweepFailed runs Recover over pending records whose last initiation failed.
// Records with nothing to adopt stay failed until the buyer retries.
func (r *LinkRecovery) SweepFailed(ctx context.Context, createdBefore time.Time, limit int) (int, error) {
	failedOrders, err := r.orders.ListInitiationFailed(ctx, createdBefore, limit)
	if err != nil {
		return 0, err
	}
	failedSubs, err := r.subscriptions.ListInitiationFailed(ctx, createdBefore, limit)
	if err != nil {
		return 0, err
	}

	intents := make([]PurchaseIntent, 0, len(failedOrders)+len(failedSubs))
	for i := range failedOrders {
		intents = append(intents, &OrderIntent{Order: &failedOrders[i]})
	}
	for i := range failedSubs {
		intents = append(intents, &SubscriptionIntent{Subscription: &failedSubs[i]})
	}

	recovered := 0
	var errs error
	for _, intent := range intents {
		if err := ctx.Err(); err != nil {
			return recovered, multierr.Append(errs, err)
		}
		stored, err := r.Recover(ctx, intent)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("recover %s %s: %w", intent.Kind(), intent.ID(), err))
			continue
		}
		if stored != nil {
			recovered++
		}
	}
	return recovered, errs
}

func (r *LinkRecovery) attach(ctx context.Context, intent PurchaseIntent, link *gateway.Link) (PurchaseIntent, error) {
	switch v := intent.(type) {
	case *OrderIntent:
		order, err := r.orders.AttachPaymentLink(ctx, v.Order.ID, link.ID, link.URL)
		if err != nil {
			return nil, err
		}
		return &OrderIntent{Order: order}, nil
	case *SubscriptionIntent:
		sub, err := r.subscriptions.AttachPaymentLink(ctx, v.Subscription.ID, link.ID, link.URL)
		if err != nil {
			return nil, err
		}
		return &SubscriptionIntent{Subscription: sub, PlanName: v.PlanName}, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("unsupported purchase intent %T", intent))
}
