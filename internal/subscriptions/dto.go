package subscriptions

import (
	"time"

	"github.com/angelmondragon/bookstore-backend/pkg/db/models"
	"github.com/angelmondragon/bookstore-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SubscriptionDTO is the API shape of a plan purchase.
type SubscriptionDTO struct {
	SubscriptionID     uuid.UUID                `json:"subscriptionId"`
	UserID             uuid.UUID                `json:"userId"`
	PlanID             uuid.UUID                `json:"planId"`
	Amount             decimal.Decimal          `json:"amount"`
	Currency           string                   `json:"currency"`
	Interval           enums.BillingInterval    `json:"interval"`
	Status             enums.SubscriptionStatus `json:"status"`
	PaymentLinkURL     *string                  `json:"paymentLinkUrl,omitempty"`
	InitiationStatus   enums.InitiationStatus   `json:"initiationStatus"`
	InitiationError    *string                  `json:"initiationError,omitempty"`
	CurrentPeriodStart *time.Time               `json:"currentPeriodStart,omitempty"`
	CurrentPeriodEnd   *time.Time               `json:"currentPeriodEnd,omitempty"`
	CreatedAt          time.Time                `json:"createdAt"`
	UpdatedAt          time.Time                `json:"updatedAt"`
}

func NewSubscriptionDTO(sub *models.Subscription) SubscriptionDTO {
	return SubscriptionDTO{
		SubscriptionID:     sub.ID,
		UserID:             sub.UserID,
		PlanID:             sub.PlanID,
		Amount:             sub.Amount,
		Currency:           sub.Currency,
		Interval:           sub.Interval,
		Status:             sub.Status,
		PaymentLinkURL:     sub.PaymentLinkURL,
		InitiationStatus:   sub.InitiationStatus,
		InitiationError:    sub.InitiationError,
		CurrentPeriodStart: sub.CurrentPeriodStart,
		CurrentPeriodEnd:   sub.CurrentPeriodEnd,
		CreatedAt:          sub.CreatedAt,
		UpdatedAt:          sub.UpdatedAt,
	}
}
