package subscriptions

import (
	"context"
	"testing"
	"time"

	"github.com/angelmondragon/bookstore-backend/pkg/db/dbtest"
	"github.com/angelmondragon/bookstore-backend/pkg/db/models"
	"github.com/angelmondragon/bookstore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bookstore-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func newTestLedger(t *testing.T) Ledger {
	t.Helper()
	l, err := NewLedger(NewRepository(dbtest.Open(t)))
	require.NoError(t, err)
	l.(*ledger).now = func() time.Time { return fixedNow }
	return l
}

func buildSubscription(userID uuid.UUID, key string) *models.Subscription {
	return &models.Subscription{
		UserID:         userID,
		PlanID:         uuid.New(),
		IdempotencyKey: key,
		Amount:         decimal.RequireFromString("19.99"),
		Currency:       "INR",
	}
}

func TestCreateIsIdempotentPerKey(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	userID := uuid.New()

	first, created, err := l.Create(ctx, buildSubscription(userID, "sub-key"))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, enums.SubscriptionStatusPending, first.Status)

	second, created, err := l.Create(ctx, buildSubscription(userID, "sub-key"))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	list, err := l.ListByUser(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestActivateSetsBillingCycleOnce(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	sub, _, err := l.Create(ctx, buildSubscription(uuid.New(), "sub-key"))
	require.NoError(t, err)

	active, applied, err := l.Activate(ctx, sub.ID, enums.BillingIntervalYear)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, enums.SubscriptionStatusActive, active.Status)
	require.NotNil(t, active.CurrentPeriodStart)
	require.NotNil(t, active.CurrentPeriodEnd)
	assert.True(t, active.CurrentPeriodStart.Equal(fixedNow))
	assert.True(t, active.CurrentPeriodEnd.Equal(fixedNow.AddDate(1, 0, 0)))

	again, applied, err := l.Activate(ctx, sub.ID, enums.BillingIntervalMonth)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.True(t, again.CurrentPeriodEnd.Equal(fixedNow.AddDate(1, 0, 0)))

	cancelled, applied, err := l.Cancel(ctx, sub.ID)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, enums.SubscriptionStatusActive, cancelled.Status)
}

func TestCancelIsTerminal(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	sub, _, err := l.Create(ctx, buildSubscription(uuid.New(), "sub-key"))
	require.NoError(t, err)

	cancelled, applied, err := l.Cancel(ctx, sub.ID)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Nil(t, cancelled.CurrentPeriodEnd)

	after, applied, err := l.Activate(ctx, sub.ID, enums.BillingIntervalMonth)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, enums.SubscriptionStatusCancelled, after.Status)
}

func TestSubscriptionPaymentLink(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	userID := uuid.New()
	sub, _, err := l.Create(ctx, buildSubscription(userID, "sub-key"))
	require.NoError(t, err)

	linked, err := l.AttachPaymentLink(ctx, sub.ID, "plink_sub", "https://rzp.io/i/sub")
	require.NoError(t, err)
	assert.Equal(t, enums.InitiationStatusLinkCreated, linked.InitiationStatus)

	require.NoError(t, l.MarkInitiationFailed(ctx, sub.ID, "ignored"))
	stored, err := l.GetForUser(ctx, userID, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, "plink_sub", *stored.PaymentLinkID)
	assert.Nil(t, stored.InitiationError)

	_, err = l.GetForUser(ctx, uuid.New(), sub.ID)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}

func TestActivateRejectsUnknownInterval(t *testing.T) {
	l := newTestLedger(t)
	_, _, err := l.Activate(context.Background(), uuid.New(), enums.BillingInterval("fortnight"))
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestListAwaitingPayment(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	userID := uuid.New()

	linked, _, err := l.Create(ctx, buildSubscription(userID, "linked"))
	require.NoError(t, err)
	_, err = l.AttachPaymentLink(ctx, linked.ID, "plink_1", "https://rzp.io/i/1")
	require.NoError(t, err)

	_, _, err = l.Create(ctx, buildSubscription(userID, "no-link"))
	require.NoError(t, err)

	cancelled, _, err := l.Create(ctx, buildSubscription(userID, "cancelled"))
	require.NoError(t, err)
	_, err = l.AttachPaymentLink(ctx, cancelled.ID, "plink_2", "https://rzp.io/i/2")
	require.NoError(t, err)
	_, _, err = l.Cancel(ctx, cancelled.ID)
	require.NoError(t, err)

	subs, err := l.ListAwaitingPayment(ctx, time.Now().AddDate(10, 0, 0), 10)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, linked.ID, subs[0].ID)
}

func TestListInitiationFailed(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	userID := uuid.New()

	failed, _, err := l.Create(ctx, buildSubscription(userID, "failed"))
	require.NoError(t, err)
	require.NoError(t, l.MarkInitiationFailed(ctx, failed.ID, "gateway timeout"))

	_, _, err = l.Create(ctx, buildSubscription(userID, "untried"))
	require.NoError(t, err)

	subs, err := l.ListInitiationFailed(ctx, time.Now().AddDate(10, 0, 0), 10)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, failed.ID, subs[0].ID)
}
