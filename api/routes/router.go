package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/bookstore-backend/api/controllers"
	"github.com/angelmondragon/bookstore-backend/api/middleware"
	"github.com/angelmondragon/bookstore-backend/internal/cart"
	"github.com/angelmondragon/bookstore-backend/internal/catalog"
	checkoutsvc "github.com/angelmondragon/bookstore-backend/internal/checkout"
	"github.com/angelmondragon/bookstore-backend/internal/orders"
	"github.com/angelmondragon/bookstore-backend/internal/reconciliation"
	"github.com/angelmondragon/bookstore-backend/internal/subscriptions"
	"github.com/angelmondragon/bookstore-backend/pkg/config"
	"github.com/angelmondragon/bookstore-backend/pkg/enums"
	"github.com/angelmondragon/bookstore-backend/pkg/logger"
	"github.com/angelmondragon/bookstore-backend/pkg/metrics"
	"github.com/angelmondragon/bookstore-backend/pkg/redis"
)

// Dependencies carries everything the HTTP surface needs.
type Dependencies struct {
	Config  *config.Config
	Logger  *logger.Logger
	DB      controllers.Pinger
	Redis   *redis.Client
	Metrics *metrics.HTTPMetrics
	// Gatherer backs GET /metrics; nil disables the endpoint.
	Gatherer prometheus.Gatherer

	Catalog        catalog.Service
	Cart           cart.Service
	Orders         orders.Ledger
	Subscriptions  subscriptions.Ledger
	Checkout       checkoutsvc.Service
	Reconciliation reconciliation.Service
}

func NewRouter(deps Dependencies) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, deps.Metrics),
		middleware.CORS(cfg.App.CORSAllowedOrigins),
	)

	pingers := map[string]controllers.Pinger{}
	if deps.DB != nil {
		pingers["db"] = deps.DB
	}
	if deps.Redis != nil {
		pingers["redis"] = deps.Redis
	}
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, pingers, logg))
	})

	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/plans", controllers.PlansList(deps.Catalog, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", controllers.CartFetch(deps.Cart, logg))
				r.Post("/items", controllers.CartAddItem(deps.Cart, logg))
				r.Delete("/items/{bookId}", controllers.CartRemoveItem(deps.Cart, logg))
			})

			r.Get("/orders", controllers.OrdersList(deps.Orders, logg))
			r.Get("/orders/{orderId}", controllers.OrderDetail(deps.Orders, logg))
			r.Get("/orders/payment-status/{orderId}", controllers.OrderPaymentStatus(deps.Reconciliation, logg))

			r.Get("/subscriptions", controllers.SubscriptionsList(deps.Subscriptions, logg))
			r.Get("/subscriptions/payment-status/{subscriptionId}", controllers.SubscriptionPaymentStatus(deps.Reconciliation, logg))

			// Everything that creates a payment link.
			r.Group(func(r chi.Router) {
				if deps.Redis != nil {
					r.Use(middleware.RateLimit(middleware.CheckoutRateLimitPolicy(cfg.Checkout), deps.Redis, logg))
					r.Use(middleware.Idempotency(deps.Redis, cfg.Checkout.IdempotencyTTL, logg))
				}
				r.Post("/checkout", controllers.Checkout(deps.Checkout, logg))
				r.Post("/checkout/create-subscription-link", controllers.CreateSubscriptionLink(deps.Checkout, logg))
				r.Post("/book-designs/{id}/purchase", controllers.PurchaseBook(deps.Checkout, logg))
				r.Post("/orders/{orderId}/retry-payment", controllers.RetryOrderPayment(deps.Checkout, logg))
				r.Post("/subscriptions/{subscriptionId}/retry-payment", controllers.RetrySubscriptionPayment(deps.Checkout, logg))
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.RoleAdmin))
				r.Patch("/orders/{orderId}/fulfillment", controllers.AdminAdvanceFulfillment(deps.Orders, logg))
			})
		})
	})

	return r
}
