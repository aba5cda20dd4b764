package orders

import (
	"context"
	"time"

	"github.com/angelmondragon/bookstore-backend/pkg/db/models"
	"github.com/angelmondragon/bookstore-backend/pkg/enums"
	"github.com/angelmondragon/bookstore-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByIdempotencyKey(ctx context.Context, userID uuid.UUID, key string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND idempotency_key = ?", userID, key).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ListByUser pages newest first using a (created_at, id) cursor.
func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Order, string, error) {
	after, err := params.After()
	if err != nil {
		return nil, "", err
	}

	query := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if after != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", after.CreatedAt, after.CreatedAt, after.ID)
	}

	var rows []models.Order
	if err := query.Order("created_at DESC").Order("id DESC").Limit(params.Fetch()).Find(&rows).Error; err != nil {
		return nil, "", err
	}
	page, next := pagination.Cut(rows, params, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	return page, next, nil
}

// ListAwaitingPayment returns pending orders that already carry a gateway
// link, oldest first.
func (r *repository) ListAwaitingPayment(ctx context.Context, createdBefore time.Time, limit int) ([]models.Order, error) {
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Where("payment_status = ? AND payment_link_id IS NOT NULL AND created_at < ?", enums.PaymentStatusPending, createdBefore).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// AttachPaymentLink records the gateway link once; an order that already
// carries a link is left untouched.
// ListInitiationFailed returns pending orders whose last gateway call failed
// before a link was stored, oldest first.
func (r *repository) ListInitiationFailed(ctx context.Context, createdBefore time.Time, limit int) ([]models.Order, error) {
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Where("payment_status = ? AND payment_link_id IS NULL AND initiation_status = ? AND created_at < ?",
			enums.PaymentStatusPending, enums.InitiationStatusFailed, createdBefore).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) AttachPaymentLink(ctx context.Context, id uuid.UUID, linkID, linkURL string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND payment_link_id IS NULL", id).
		Updates(map[string]any{
			"payment_link_id":     linkID,
			"payment_link_url":    linkURL,
			"initiation_status":   enums.InitiationStatusLinkCreated,
			"initiation_error":    nil,
			"initiation_attempts": gorm.Expr("initiation_attempts + 1"),
		})
	return res.RowsAffected, res.Error
}

func (r *repository) MarkInitiationFailed(ctx context.Context, id uuid.UUID, reason string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND payment_link_id IS NULL", id).
		Updates(map[string]any{
			"initiation_status":   enums.InitiationStatusFailed,
			"initiation_error":    reason,
			"initiation_attempts": gorm.Expr("initiation_attempts + 1"),
		})
	return res.RowsAffected, res.Error
}

func (r *repository) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, from, to enums.PaymentStatus, at time.Time) (int64, error) {
	updates := map[string]any{"payment_status": to}
	if to == enums.PaymentStatusCompleted {
		updates["paid_at"] = at
	}
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND payment_status = ?", id, from).
		Updates(updates)
	return res.RowsAffected, res.Error
}

func (r *repository) UpdateFulfillmentStatus(ctx context.Context, id uuid.UUID, from []enums.FulfillmentStatus, to enums.FulfillmentStatus) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND fulfillment_status IN ? AND payment_status = ?", id, from, enums.PaymentStatusCompleted).
		Update("fulfillment_status", to)
	return res.RowsAffected, res.Error
}
