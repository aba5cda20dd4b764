package routes

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/bookstore-backend/internal/cart"
	"github.com/angelmondragon/bookstore-backend/internal/catalog"
	checkoutsvc "github.com/angelmondragon/bookstore-backend/internal/checkout"
	"github.com/angelmondragon/bookstore-backend/internal/orders"
	"github.com/angelmondragon/bookstore-backend/internal/reconciliation"
	"github.com/angelmondragon/bookstore-backend/internal/subscriptions"
	pkgauth "github.com/angelmondragon/bookstore-backend/pkg/auth"
	"github.com/angelmondragon/bookstore-backend/pkg/config"
	pkgdb "github.com/angelmondragon/bookstore-backend/pkg/db"
	"github.com/angelmondragon/bookstore-backend/pkg/db/dbtest"
	"github.com/angelmondragon/bookstore-backend/pkg/db/models"
	"github.com/angelmondragon/bookstore-backend/pkg/enums"
	"github.com/angelmondragon/bookstore-backend/pkg/gateway"
	"github.com/angelmondragon/bookstore-backend/pkg/metrics"
	"github.com/angelmondragon/bookstore-backend/pkg/redis"
)

// fakeGateway emulates the payment-link API: links are created "created" and
// flipped by the test.
type fakeGateway struct {
	mu       sync.Mutex
	statuses map[string]string
	created  int
}

func (g *fakeGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	defer g.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/v1/payment_links":
		g.created++
		id := fmt.Sprintf("plink_%d", g.created)
		g.statuses[id] = "created"
		_ = json.NewEncoder(w).Encode(map[string]any{"id": id, "short_url": "https://rzp.io/i/" + id, "status": "created"})
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/v1/payment_links/"):
		id := strings.TrimPrefix(r.URL.Path, "/v1/payment_links/")
		_ = json.NewEncoder(w).Encode(map[string]any{"id": id, "status": g.statuses[id]})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (g *fakeGateway) set(id, status string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statuses[id] = status
}

type harness struct {
	db      *gorm.DB
	handler http.Handler
	gateway *fakeGateway
	cfg     *config.Config
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := dbtest.Open(t)

	gw := &fakeGateway{statuses: map[string]string{}}
	gwServer := httptest.NewServer(gw)
	t.Cleanup(gwServer.Close)

	mr := miniredis.RunT(t)
	raw := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = raw.Close() })

	cfg := &config.Config{
		App: config.AppConfig{Env: "test", CORSAllowedOrigins: []string{"http://localhost:3000"}},
		JWT: config.JWTConfig{Secret: "secret", Issuer: "bookstore"},
		Gateway: config.GatewayConfig{
			BaseURL:     gwServer.URL + "/v1",
			KeyID:       "rzp_test",
			KeySecret:   "shh",
			Currency:    "INR",
			CallbackURL: "https://books.example.com/payment/callback",
			Timeout:     2 * time.Second,

			BreakerMaxFailures: 5,
			BreakerOpenTimeout: 30 * time.Second,
		},
		Checkout: config.CheckoutConfig{IdempotencyTTL: time.Hour, RateLimitWindow: time.Minute, RateLimitPerUser: 100},
	}

	reg := prometheus.NewRegistry()
	paymentMetrics := metrics.NewPaymentMetrics(reg)
	client, err := gateway.NewClient(cfg.Gateway, gateway.WithMetrics(paymentMetrics))
	require.NoError(t, err)

	books, err := catalog.NewService(catalog.NewRepository(db))
	require.NoError(t, err)
	cartRepo := cart.NewRepository(db)
	cartSvc, err := cart.NewService(cartRepo, books)
	require.NoError(t, err)
	orderLedger, err := orders.NewLedger(orders.NewRepository(db))
	require.NoError(t, err)
	subLedger, err := subscriptions.NewLedger(subscriptions.NewRepository(db))
	require.NoError(t, err)
	checkout, err := checkoutsvc.NewService(checkoutsvc.ServiceParams{
		Cart:          cartSvc,
		Catalog:       books,
		Orders:        orderLedger,
		Subscriptions: subLedger,
		Gateway:       client,
		Config:        cfg.Gateway,
		Metrics:       paymentMetrics,
	})
	require.NoError(t, err)
	reconciler, err := reconciliation.NewService(reconciliation.ServiceParams{
		Tx:            pkgdb.Wrap(db),
		Orders:        orderLedger,
		Subscriptions: subLedger,
		Cart:          cartRepo,
		Gateway:       client,
		Metrics:       paymentMetrics,
	})
	require.NoError(t, err)

	handler := NewRouter(Dependencies{
		Config:         cfg,
		DB:             pkgdb.Wrap(db),
		Redis:          redis.NewFromRaw(raw),
		Metrics:        metrics.NewHTTPMetrics(reg),
		Gatherer:       reg,
		Catalog:        books,
		Cart:           cartSvc,
		Orders:         orderLedger,
		Subscriptions:  subLedger,
		Checkout:       checkout,
		Reconciliation: reconciler,
	})
	return &harness{db: db, handler: handler, gateway: gw, cfg: cfg}
}

func (h *harness) token(t *testing.T, userID uuid.UUID, role enums.Role) string {
	t.Helper()
	token, err := pkgauth.Issue(h.cfg.JWT, pkgauth.Identity{UserID: userID, Role: role}, time.Now(), time.Hour)
	require.NoError(t, err)
	return token
}

func (h *harness) do(t *testing.T, method, path, token, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp := httptest.NewRecorder()
	h.handler.ServeHTTP(resp, req)
	return resp
}

func (h *harness) seedBook(t *testing.T, title, price string) models.Book {
	t.Helper()
	book := models.Book{ID: uuid.New(), Title: title, Author: "Author", Price: decimal.RequireFromString(price), IsActive: true}
	require.NoError(t, h.db.Create(&book).Error)
	return book
}

func data(t *testing.T, resp *httptest.ResponseRecorder, dest any) {
	t.Helper()
	envelope := struct {
		Data any `json:"data"`
	}{Data: dest}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope), resp.Body.String())
}

const shippingBody = `{
	"shippingAddress": {
		"fullName": "Asha Rao",
		"email": "asha@example.com",
		"phone": "9876543210",
		"address": "12 MG Road",
		"city": "Bengaluru",
		"state": "KA",
		"zipCode": "560001",
		"country": "IN"
	},
	"paymentMethod": {"type": "card"}
}`

func TestHealthRoutes(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/health/live", "", "", nil).Code)
	assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/health/ready", "", "", nil).Code)
}

func TestPrivateRoutesRequireJWT(t *testing.T) {
	h := newHarness(t)
	for _, path := range []string{"/api/v1/cart", "/api/v1/orders", "/api/v1/subscriptions"} {
		assert.Equal(t, http.StatusUnauthorized, h.do(t, http.MethodGet, path, "", "", nil).Code, path)
	}
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	h := newHarness(t)
	path := "/api/v1/admin/orders/" + uuid.NewString() + "/fulfillment"

	userToken := h.token(t, uuid.New(), enums.RoleUser)
	assert.Equal(t, http.StatusForbidden, h.do(t, http.MethodPatch, path, userToken, `{"status":"processing"}`, nil).Code)

	adminToken := h.token(t, uuid.New(), enums.RoleAdmin)
	assert.Equal(t, http.StatusNotFound, h.do(t, http.MethodPatch, path, adminToken, `{"status":"processing"}`, nil).Code)
}

func TestCheckoutRequiresIdempotencyKey(t *testing.T) {
	h := newHarness(t)
	token := h.token(t, uuid.New(), enums.RoleUser)
	resp := h.do(t, http.MethodPost, "/api/v1/checkout", token, shippingBody, nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestPlansArePublic(t *testing.T) {
	h := newHarness(t)
	resp := h.do(t, http.MethodGet, "/api/v1/plans", "", "", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var plans []catalog.PlanDTO
	data(t, resp, &plans)
	assert.Empty(t, plans)
}

func TestCartCheckoutReconcileFlow(t *testing.T) {
	h := newHarness(t)
	userID := uuid.New()
	token := h.token(t, userID, enums.RoleUser)

	bookA := h.seedBook(t, "A", "9.99")
	bookB := h.seedBook(t, "B", "4.99")
	for _, id := range []uuid.UUID{bookA.ID, bookB.ID} {
		resp := h.do(t, http.MethodPost, "/api/v1/cart/items", token, `{"bookId":"`+id.String()+`"}`, nil)
		require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	}

	headers := map[string]string{"Idempotency-Key": "checkout-1"}
	resp := h.do(t, http.MethodPost, "/api/v1/checkout", token, shippingBody, headers)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	var result checkoutsvc.OrderResult
	data(t, resp, &result)
	assert.Equal(t, "https://rzp.io/i/plink_1", result.PaymentLinkURL)
	assert.Equal(t, "14.98", result.Order.Total.StringFixed(2))
	assert.Equal(t, enums.PaymentStatusPending, result.Order.PaymentStatus)

	replay := h.do(t, http.MethodPost, "/api/v1/checkout", token, shippingBody, headers)
	require.Equal(t, http.StatusCreated, replay.Code)
	assert.Equal(t, resp.Body.String(), replay.Body.String())
	assert.Equal(t, 1, h.gateway.created)

	orderPath := "/api/v1/orders/payment-status/" + result.Order.OrderID.String()
	pending := h.do(t, http.MethodGet, orderPath, token, "", nil)
	require.Equal(t, http.StatusOK, pending.Code)
	var order orders.OrderDTO
	data(t, pending, &order)
	assert.Equal(t, enums.PaymentStatusPending, order.PaymentStatus)

	h.gateway.set("plink_1", "paid")
	paid := h.do(t, http.MethodGet, orderPath, token, "", nil)
	require.Equal(t, http.StatusOK, paid.Code)
	data(t, paid, &order)
	assert.Equal(t, enums.PaymentStatusCompleted, order.PaymentStatus)

	cartResp := h.do(t, http.MethodGet, "/api/v1/cart", token, "", nil)
	require.Equal(t, http.StatusOK, cartResp.Code)
	var view cart.View
	data(t, cartResp, &view)
	assert.Empty(t, view.Items)

	list := h.do(t, http.MethodGet, "/api/v1/orders", token, "", nil)
	require.Equal(t, http.StatusOK, list.Code)
	var page orders.OrderList
	data(t, list, &page)
	require.Len(t, page.Orders, 1)
	assert.Equal(t, result.Order.OrderID, page.Orders[0].OrderID)

	adminToken := h.token(t, uuid.New(), enums.RoleAdmin)
	advance := h.do(t, http.MethodPatch, "/api/v1/admin/orders/"+order.OrderID.String()+"/fulfillment", adminToken, `{"status":"processing"}`, nil)
	require.Equal(t, http.StatusOK, advance.Code, advance.Body.String())

	other := h.token(t, uuid.New(), enums.RoleUser)
	assert.Equal(t, http.StatusNotFound, h.do(t, http.MethodGet, "/api/v1/orders/"+order.OrderID.String(), other, "", nil).Code)
}

func TestSubscriptionFlow(t *testing.T) {
	h := newHarness(t)
	userID := uuid.New()
	token := h.token(t, userID, enums.RoleUser)

	plan := models.Plan{ID: uuid.New(), Name: "Pro", Price: decimal.RequireFromString("19.99"), Currency: "USD", Interval: enums.BillingIntervalYear, IsActive: true}
	require.NoError(t, h.db.Create(&plan).Error)

	body := `{"planId":"` + plan.ID.String() + `","customer":{"name":"Asha Rao","email":"asha@example.com","contact":"9876543210"}}`
	resp := h.do(t, http.MethodPost, "/api/v1/checkout/create-subscription-link", token, body, map[string]string{"Idempotency-Key": "sub-1"})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	var result checkoutsvc.SubscriptionResult
	data(t, resp, &result)
	assert.Equal(t, enums.SubscriptionStatusPending, result.Subscription.Status)

	h.gateway.set("plink_1", "paid")
	status := h.do(t, http.MethodGet, "/api/v1/subscriptions/payment-status/"+result.Subscription.SubscriptionID.String(), token, "", nil)
	require.Equal(t, http.StatusOK, status.Code, status.Body.String())
	var sub subscriptions.SubscriptionDTO
	data(t, status, &sub)
	assert.Equal(t, enums.SubscriptionStatusActive, sub.Status)
	require.NotNil(t, sub.CurrentPeriodEnd)

	list := h.do(t, http.MethodGet, "/api/v1/subscriptions", token, "", nil)
	require.Equal(t, http.StatusOK, list.Code)
	var subs []subscriptions.SubscriptionDTO
	data(t, list, &subs)
	require.Len(t, subs, 1)
}

func TestMetricsEndpointExposesGatewayCounters(t *testing.T) {
	h := newHarness(t)
	token := h.token(t, uuid.New(), enums.RoleUser)
	book := h.seedBook(t, "Solo", "12.50")

	resp := h.do(t, http.MethodPost, "/api/v1/book-designs/"+book.ID.String()+"/purchase", token, shippingBody, map[string]string{"Idempotency-Key": "direct-1"})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	metricsResp := h.do(t, http.MethodGet, "/metrics", "", "", nil)
	require.Equal(t, http.StatusOK, metricsResp.Code)
	assert.Contains(t, metricsResp.Body.String(), "gateway_requests_total")
	assert.Contains(t, metricsResp.Body.String(), `http_requests_total{method="POST",route="/api/v1/book-designs/{id}/purchase",status="201"}`)
}
