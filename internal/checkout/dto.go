package checkout

import (
	"github.com/angelmondragon/bookstore-backend/internal/orders"
	"github.com/angelmondragon/bookstore-backend/internal/subscriptions"
	"github.com/angelmondragon/bookstore-backend/pkg/enums"
	"github.com/angelmondragon/bookstore-backend/pkg/types"
	"github.com/google/uuid"
)

// OrderInput carries everything needed to price and pay for an order.
type OrderInput struct {
	IdempotencyKey  string
	ShippingAddress types.ShippingAddress
	PaymentMethod   enums.PaymentMethodType
}

// SubscriptionInput carries a plan purchase.
type SubscriptionInput struct {
	IdempotencyKey string
	PlanID         uuid.UUID
	Customer       types.Customer
}

// OrderResult is returned to the client for the gateway redirect.
type OrderResult struct {
	Order          orders.OrderDTO `json:"order"`
	PaymentLinkURL string          `json:"paymentLinkUrl"`
}

// SubscriptionResult is the subscription counterpart of OrderResult.
type SubscriptionResult struct {
	Subscription   subscriptions.SubscriptionDTO `json:"subscription"`
	PaymentLinkURL string                        `json:"paymentLinkUrl"`
}

// PaymentMethodRequest mirrors paymentMethod{type}.
type PaymentMethodRequest struct {
	Type string `json:"type" validate:"required,oneof=card upi netbanking wallet"`
}

// CreateOrderRequest is the body of POST /checkout and POST /book-designs/{id}/purchase.
type CreateOrderRequest struct {
	ShippingAddress types.ShippingAddress `json:"shippingAddress" validate:"required"`
	PaymentMethod   PaymentMethodRequest  `json:"paymentMethod" validate:"required"`
}

// CreateSubscriptionLinkRequest is the body of POST /checkout/create-subscription-link.
type CreateSubscriptionLinkRequest struct {
	PlanID   string         `json:"planId" validate:"required,uuid"`
	Customer types.Customer `json:"customer" validate:"required"`
}
