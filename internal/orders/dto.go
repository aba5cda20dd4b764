package orders

import (
	"time"

	"github.com/angelmondragon/bookstore-backend/pkg/db/models"
	"github.com/angelmondragon/bookstore-backend/pkg/enums"
	"github.com/angelmondragon/bookstore-backend/pkg/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentMethodDTO mirrors the paymentMethod{type} object.
type PaymentMethodDTO struct {
	Type enums.PaymentMethodType `json:"type"`
}

// PaymentLinkDTO is present once the gateway issued a link.
type PaymentLinkDTO struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// InitiationDTO describes the gateway-call sub-state, separate from payment.
type InitiationDTO struct {
	Status   enums.InitiationStatus `json:"status"`
	Error    *string                `json:"error,omitempty"`
	Attempts int                    `json:"attempts"`
}

// OrderDTO is the persistence shape shared with collaborators. Status is the
// fulfillment status.
type OrderDTO struct {
	OrderID         uuid.UUID               `json:"orderId"`
	UserID          uuid.UUID               `json:"userId"`
	Source          enums.OrderSource       `json:"source"`
	Items           []types.OrderItem       `json:"items"`
	Total           decimal.Decimal         `json:"total"`
	Currency        string                  `json:"currency"`
	Status          enums.FulfillmentStatus `json:"status"`
	PaymentStatus   enums.PaymentStatus     `json:"paymentStatus"`
	ShippingAddress types.ShippingAddress   `json:"shippingAddress"`
	PaymentMethod   PaymentMethodDTO        `json:"paymentMethod"`
	PaymentLink     *PaymentLinkDTO         `json:"paymentLink,omitempty"`
	Initiation      InitiationDTO           `json:"initiation"`
	PaidAt          *time.Time              `json:"paidAt,omitempty"`
	CreatedAt       time.Time               `json:"createdAt"`
	UpdatedAt       time.Time               `json:"updatedAt"`
}

// OrderList wraps one page of orders plus the cursor for the next page.
type OrderList struct {
	Orders     []OrderDTO `json:"orders"`
	NextCursor string     `json:"nextCursor,omitempty"`
}

// NewOrderDTO maps the stored row onto the shared shape.
func NewOrderDTO(order *models.Order) OrderDTO {
	items := []types.OrderItem(order.Items)
	if items == nil {
		items = []types.OrderItem{}
	}
	dto := OrderDTO{
		OrderID:         order.ID,
		UserID:          order.UserID,
		Source:          order.Source,
		Items:           items,
		Total:           order.Total,
		Currency:        order.Currency,
		Status:          order.FulfillmentStatus,
		PaymentStatus:   order.PaymentStatus,
		ShippingAddress: order.ShippingAddress,
		PaymentMethod:   PaymentMethodDTO{Type: order.PaymentMethodType},
		Initiation: InitiationDTO{
			Status:   order.InitiationStatus,
			Error:    order.InitiationError,
			Attempts: order.InitiationAttempts,
		},
		PaidAt:    order.PaidAt,
		CreatedAt: order.CreatedAt,
		UpdatedAt: order.UpdatedAt,
	}
	if order.PaymentLinkID != nil && order.PaymentLinkURL != nil {
		dto.PaymentLink = &PaymentLinkDTO{ID: *order.PaymentLinkID, URL: *order.PaymentLinkURL}
	}
	return dto
}

// AdvanceFulfillmentRequest is the admin PATCH body.
type AdvanceFulfillmentRequest struct {
	Status string `json:"status" validate:"required,oneof=processing shipped delivered cancelled"`
}
