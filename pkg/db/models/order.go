package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/bookstore-backend/pkg/enums"
	"github.com/angelmondragon/bookstore-backend/pkg/types"
)

// Order is the priced snapshot of one checkout with independent fulfillment
// and payment lifecycles.
type Order struct {
	ID                 uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID             uuid.UUID               `gorm:"column:user_id;type:uuid;not null;uniqueIndex:orders_user_idempotency_key"`
	IdempotencyKey     string                  `gorm:"column:idempotency_key;not null;uniqueIndex:orders_user_idempotency_key"`
	Source             enums.OrderSource       `gorm:"column:source;type:order_source;not null;default:'cart'"`
	Items              types.OrderItems        `gorm:"column:items;type:jsonb;serializer:json;not null"`
	Total              decimal.Decimal         `gorm:"column:total;type:numeric(12,2);not null"`
	Currency           string                  `gorm:"column:currency;not null"`
	ShippingAddress    types.ShippingAddress   `gorm:"column:shipping_address;type:jsonb;serializer:json;not null"`
	PaymentMethodType  enums.PaymentMethodType `gorm:"column:payment_method_type;type:payment_method_type;not null"`
	FulfillmentStatus  enums.FulfillmentStatus `gorm:"column:fulfillment_status;type:fulfillment_status;not null;default:'pending'"`
	PaymentStatus      enums.PaymentStatus     `gorm:"column:payment_status;type:payment_status;not null;default:'pending'"`
	InitiationStatus   enums.InitiationStatus  `gorm:"column:initiation_status;type:initiation_status;not null;default:'awaiting'"`
	InitiationError    *string                 `gorm:"column:initiation_error"`
	InitiationAttempts int                     `gorm:"column:initiation_attempts;not null;default:0"`
	PaymentLinkID      *string                 `gorm:"column:payment_link_id;uniqueIndex"`
	PaymentLinkURL     *string                 `gorm:"column:payment_link_url"`
	PaidAt             *time.Time              `gorm:"column:paid_at"`
	CreatedAt          time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
