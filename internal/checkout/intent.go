package checkout

import (
	"fmt"
	"strings"

	"github.com/angelmondragon/bookstore-backend/pkg/db/models"
	"github.com/angelmondragon/bookstore-backend/pkg/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	KindOrder        = "order"
	KindSubscription = "subscription"
)

// PurchaseIntent is the record a payment link is issued for. Cart checkout,
// direct purchase and plan purchase all run the same initiation sequence
// over one of the two variants below.
type PurchaseIntent interface {
	Kind() string
	ID() uuid.UUID
	Amount() decimal.Decimal
	Currency() string
	Description() string
	Customer() types.Customer
	// PaymentLink returns the stored link, if any.
	PaymentLink() (id, url string, ok bool)
	// Settled reports whether payment can no longer be initiated.
	Settled() bool
	// Attempts counts the gateway calls already made for this intent.
	Attempts() int
	callbackParam() string
}

// OrderIntent wraps a persisted order.
type OrderIntent struct {
	Order *models.Order
}

func (o *OrderIntent) Kind() string            { return KindOrder }
func (o *OrderIntent) ID() uuid.UUID           { return o.Order.ID }
func (o *OrderIntent) Amount() decimal.Decimal { return o.Order.Total }
func (o *OrderIntent) Currency() string        { return o.Order.Currency }

func (o *OrderIntent) Description() string {
	n := len(o.Order.Items)
	if n == 1 {
		return fmt.Sprintf("Order %s: %s", shortID(o.Order.ID), o.Order.Items[0].Title)
	}
	return fmt.Sprintf("Order %s: %d books", shortID(o.Order.ID), n)
}

func (o *OrderIntent) Customer() types.Customer {
	return o.Order.ShippingAddress.Customer()
}

func (o *OrderIntent) PaymentLink() (string, string, bool) {
	return linkOf(o.Order.PaymentLinkID, o.Order.PaymentLinkURL)
}

func (o *OrderIntent) Settled() bool         { return o.Order.PaymentStatus.IsTerminal() }
func (o *OrderIntent) Attempts() int         { return o.Order.InitiationAttempts }
func (o *OrderIntent) callbackParam() string { return "order_id" }

// SubscriptionIntent wraps a persisted plan purchase.
type SubscriptionIntent struct {
	Subscription *models.Subscription
	PlanName     string
}

func (s *SubscriptionIntent) Kind() string            { return KindSubscription }
func (s *SubscriptionIntent) ID() uuid.UUID           { return s.Subscription.ID }
func (s *SubscriptionIntent) Amount() decimal.Decimal { return s.Subscription.Amount }
func (s *SubscriptionIntent) Currency() string        { return s.Subscription.Currency }

func (s *SubscriptionIntent) Description() string {
	if s.PlanName == "" {
		return fmt.Sprintf("Subscription %s", shortID(s.Subscription.ID))
	}
	return fmt.Sprintf("%s subscription", s.PlanName)
}

func (s *SubscriptionIntent) Customer() types.Customer { return s.Subscription.Customer }

func (s *SubscriptionIntent) PaymentLink() (string, string, bool) {
	return linkOf(s.Subscription.PaymentLinkID, s.Subscription.PaymentLinkURL)
}

func (s *SubscriptionIntent) Settled() bool         { return s.Subscription.Status.IsTerminal() }
func (s *SubscriptionIntent) Attempts() int         { return s.Subscription.InitiationAttempts }
func (s *SubscriptionIntent) callbackParam() string { return "subscription_id" }

func linkOf(id, url *string) (string, string, bool) {
	if id == nil || url == nil || *id == "" {
		return "", "", false
	}
	return *id, *url, true
}

// linkReference names one gateway call for an intent. The gateway rejects a
// reused reference and caps it at 40 characters.
func linkReference(id uuid.UUID, attempt int) string {
	return fmt.Sprintf("%s-%d", strings.ReplaceAll(id.String(), "-", ""), attempt)
}

func shortID(id uuid.UUID) string {
	return id.String()[:8]
}
