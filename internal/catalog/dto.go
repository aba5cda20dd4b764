package catalog

import (
	"github.com/angelmondragon/bookstore-backend/pkg/db/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PlanDTO is the public shape of a subscription plan.
type PlanDTO struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Currency  string          `json:"currency"`
	Interval  string          `json:"interval"`
	Features  []string        `json:"features"`
	IsPopular bool            `json:"isPopular"`
}

func NewPlanDTO(plan models.Plan) PlanDTO {
	features := []string(plan.Features)
	if features == nil {
		features = []string{}
	}
	return PlanDTO{
		ID:        plan.ID,
		Name:      plan.Name,
		Price:     plan.Price,
		Currency:  plan.Currency,
		Interval:  plan.Interval.String(),
		Features:  features,
		IsPopular: plan.IsPopular,
	}
}
