package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/bookstore-backend/pkg/enums"
)

// Plan is subscription reference data; checkout never mutates it.
type Plan struct {
	ID        uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name      string                `gorm:"column:name;not null"`
	Price     decimal.Decimal       `gorm:"column:price;type:numeric(12,2);not null"`
	Currency  string                `gorm:"column:currency;not null"`
	Interval  enums.BillingInterval `gorm:"column:interval;type:billing_interval;not null;default:'month'"`
	Features  pq.StringArray        `gorm:"column:features;type:text[];default:ARRAY[]::text[]"`
	IsPopular bool                  `gorm:"column:is_popular;not null;default:false"`
	IsActive  bool                  `gorm:"column:is_active;not null;default:true"`
	CreatedAt time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
