package subscriptions

import (
	"context"
	"time"

	"github.com/angelmondragon/bookstore-backend/pkg/db/models"
	"github.com/angelmondragon/bookstore-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a subscriptions repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, sub *models.Subscription) error {
	return r.db.WithContext(ctx).Create(sub).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *repository) FindByIdempotencyKey(ctx context.Context, userID uuid.UUID, key string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND idempotency_key = ?", userID, key).
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&subs).Error
	if err != nil {
		return nil, err
	}
	return subs, nil
}

func (r *repository) ListAwaitingPayment(ctx context.Context, createdBefore time.Time, limit int) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.WithContext(ctx).
		Where("status = ? AND payment_link_id IS NOT NULL AND created_at < ?", enums.SubscriptionStatusPending, createdBefore).
		Order("created_at ASC").
		Limit(limit).
		Find(&subs).Error
	if err != nil {
		return nil, err
	}
	return subs, nil
}

func (r *repository) ListInitiationFailed(ctx context.Context, createdBefore time.Time, limit int) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.WithContext(ctx).
		Where("status = ? AND payment_link_id IS NULL AND initiation_status = ? AND created_at < ?",
			enums.SubscriptionStatusPending, enums.InitiationStatusFailed, createdBefore).
		Order("created_at ASC").
		Limit(limit).
		Find(&subs).Error
	if err != nil {
		return nil, err
	}
	return subs, nil
}

func (r *repository) AttachPaymentLink(ctx context.Context, id uuid.UUID, linkID, linkURL string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Subscription{}).
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
		Model(&models.Subscription{}).
		Where("id = ? AND payment_link_id IS NULL", id).
		Updates(map[string]any{
			"initiation_status":   enums.InitiationStatusFailed,
			"initiation_error":    reason,
			"initiation_attempts": gorm.Expr("initiation_attempts + 1"),
		})
	return res.RowsAffected, res.Error
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.SubscriptionStatus, period *Period) (int64, error) {
	updates := map[string]any{"status": to}
	if period != nil {
		updates["current_period_start"] = period.Start
		updates["current_period_end"] = period.End
	}
	res := r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	return res.RowsAffected, res.Error
}
