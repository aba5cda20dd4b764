package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/bookstore-backend/internal/catalog"
	"github.com/angelmondragon/bookstore-backend/internal/subscriptions"
	"github.com/angelmondragon/bookstore-backend/pkg/db/models"
	"github.com/angelmondragon/bookstore-backend/pkg/enums"
)

type stubPlans struct {
	plans []models.Plan
}

func (s stubPlans) ListPlans(ctx context.Context) ([]models.Plan, error) {
	return s.plans, nil
}

type stubSubscriptionLister struct {
	subs []subscriptions.SubscriptionDTO
}

func (s stubSubscriptionLister) ListByUser(ctx context.Context, userID uuid.UUID) ([]subscriptions.SubscriptionDTO, error) {
	return s.subs, nil
}

func TestPlansList(t *testing.T) {
	plan := models.Plan{
		ID:       uuid.New(),
		Name:     "Pro",
		Price:    decimal.RequireFromString("19.99"),
		Currency: "USD",
		Interval: enums.BillingIntervalMonth,
		Features: pq.StringArray{"unlimited designs"},
	}
	resp := httptest.NewRecorder()
	PlansList(stubPlans{plans: []models.Plan{plan}}, nil).ServeHTTP(resp, newRequest(http.MethodGet, "/api/v1/plans", nil, uuid.Nil, nil))

	expectStatus(t, resp, http.StatusOK)
	var out []catalog.PlanDTO
	decodeData(t, resp, &out)
	if len(out) != 1 || out[0].Name != "Pro" || out[0].Interval != "month" {
		t.Fatalf("unexpected plans %+v", out)
	}
}

func TestSubscriptionsList(t *testing.T) {
	sub := subscriptions.SubscriptionDTO{SubscriptionID: uuid.New(), Status: enums.SubscriptionStatusActive}
	resp := httptest.NewRecorder()
	SubscriptionsList(stubSubscriptionLister{subs: []subscriptions.SubscriptionDTO{sub}}, nil).
		ServeHTTP(resp, newRequest(http.MethodGet, "/api/v1/subscriptions", nil, uuid.New(), nil))

	expectStatus(t, resp, http.StatusOK)
	var out []subscriptions.SubscriptionDTO
	decodeData(t, resp, &out)
	if len(out) != 1 || out[0].SubscriptionID != sub.SubscriptionID {
		t.Fatalf("unexpected subscriptions %+v", out)
	}
}

func TestSubscriptionPaymentStatus(t *testing.T) {
	subID := uuid.New()
	svc := &stubReconciler{sub: &subscriptions.SubscriptionDTO{SubscriptionID: subID, Status: enums.SubscriptionStatusActive}}
	req := newRequest(http.MethodGet, "/", nil, uuid.New(), map[string]string{"subscriptionId": subID.String()})

	resp := httptest.NewRecorder()
	SubscriptionPaymentStatus(svc, nil).ServeHTTP(resp, req)

	expectStatus(t, resp, http.StatusOK)
	var out subscriptions.SubscriptionDTO
	decodeData(t, resp, &out)
	if out.Status != enums.SubscriptionStatusActive {
		t.Fatalf("status = %s", out.Status)
	}
}
