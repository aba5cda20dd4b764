package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/bookstore-backend/pkg/enums"
	"github.com/angelmondragon/bookstore-backend/pkg/types"
)

// Subscription mirrors Order for plan purchases, without a fulfillment dimension.
type Subscription struct {
	ID                 uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID             uuid.UUID                `gorm:"column:user_id;type:uuid;not null;uniqueIndex:subscriptions_user_idempotency_key"`
	PlanID             uuid.UUID                `gorm:"column:plan_id;type:uuid;not null;index"`
	IdempotencyKey     string                   `gorm:"column:idempotency_key;not null;uniqueIndex:subscriptions_user_idempotency_key"`
	Amount             decimal.Decimal          `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency           string                   `gorm:"column:currency;not null"`
	Interval           enums.BillingInterval    `gorm:"column:interval;type:billing_interval;not null;default:'month'"`
	Customer           types.Customer           `gorm:"column:customer;type:jsonb;serializer:json;not null"`
	Status             enums.SubscriptionStatus `gorm:"column:status;type:subscription_status;not null;default:'pending'"`
	InitiationStatus   enums.InitiationStatus   `gorm:"column:initiation_status;type:initiation_status;not null;default:'awaiting'"`
	InitiationError    *string                  `gorm:"column:initiation_error"`
	InitiationAttempts int                      `gorm:"column:initiation_attempts;not null;default:0"`
	PaymentLinkID      *string                  `gorm:"column:payment_link_id;uniqueIndex"`
	PaymentLinkURL     *string                  `gorm:"column:payment_link_url"`
	CurrentPeriodStart *time.Time               `gorm:"column:current_period_start"`
	CurrentPeriodEnd   *time.Time               `gorm:"column:current_period_end"`
	CreatedAt          time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
