package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/angelmondragon/bookstore-backend/api/routes"
	"github.com/angelmondragon/bookstore-backend/internal/cart"
	"github.com/angelmondragon/bookstore-backend/internal/catalog"
	checkoutsvc "github.com/angelmondragon/bookstore-backend/internal/checkout"
	"github.com/angelmondragon/bookstore-backend/internal/orders"
	"github.com/angelmondragon/bookstore-backend/internal/reconciliation"
	"github.com/angelmondragon/bookstore-backend/internal/subscriptions"
	"github.com/angelmondragon/bookstore-backend/pkg/config"
	"github.com/angelmondragon/bookstore-backend/pkg/db"
	"github.com/angelmondragon/bookstore-backend/pkg/gateway"
	"github.com/angelmondragon/bookstore-backend/pkg/instance"
	"github.com/angelmondragon/bookstore-backend/pkg/logger"
	"github.com/angelmondragon/bookstore-backend/pkg/metrics"
	"github.com/angelmondragon/bookstore-backend/pkg/migrate"
	"github.com/angelmondragon/bookstore-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
		Fields:      map[string]any{"env": cfg.App.Env, "instance": instance.ID()},
	})

	// Missing gateway credentials are fatal before anything else is dialed.
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	paymentMetrics := metrics.NewPaymentMetrics(reg)
	gatewayClient, err := gateway.NewClient(cfg.Gateway, gateway.WithLogger(logg.Component("gateway")), gateway.WithMetrics(paymentMetrics))
	if err != nil {
		logg.Error(context.Background(), "payment gateway misconfigured", err)
		os.Exit(1)
	}

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}

	books, err := catalog.NewService(catalog.NewRepository(dbClient.DB()))
	exitOnErr(logg, "catalog service", err)
	cartRepo := cart.NewRepository(dbClient.DB())
	cartService, err := cart.NewService(cartRepo, books)
	exitOnErr(logg, "cart service", err)
	orderLedger, err := orders.NewLedger(orders.NewRepository(dbClient.DB()))
	exitOnErr(logg, "order ledger", err)
	subscriptionLedger, err := subscriptions.NewLedger(subscriptions.NewRepository(dbClient.DB()))
	exitOnErr(logg, "subscription ledger", err)

	checkoutService, err := checkoutsvc.NewService(checkoutsvc.ServiceParams{
		Cart:          cartService,
		Catalog:       books,
		Orders:        orderLedger,
		Subscriptions: subscriptionLedger,
		Gateway:       gatewayClient,
		Config:        cfg.Gateway,
		Logger:        logg,
		Metrics:       paymentMetrics,
	})
	exitOnErr(logg, "checkout service", err)

	reconciler, err := reconciliation.NewService(reconciliation.ServiceParams{
		Tx:            dbClient,
		Orders:        orderLedger,
		Subscriptions: subscriptionLedger,
		Cart:          cartRepo,
		Gateway:       gatewayClient,
		Logger:        logg,
		Metrics:       paymentMetrics,
	})
	exitOnErr(logg, "reconciliation service", err)

	handler := routes.NewRouter(routes.Dependencies{
		Config:         cfg,
		Logger:         logg,
		DB:             dbClient,
		Redis:          redisClient,
		Metrics:        metrics.NewHTTPMetrics(reg),
		Gatherer:       reg,
		Catalog:        books,
		Cart:           cartService,
		Orders:         orderLedger,
		Subscriptions:  subscriptionLedger,
		Checkout:       checkoutService,
		Reconciliation: reconciler,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"addr": addr,
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	exitCode := 0
	select {
	case err := <-serveErr:
		if err != nil {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			exitCode = 1
		}
	case <-sigCtx.Done():
		logg.Info(ctx, "shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()
	closeErr := multierr.Combine(
		server.Shutdown(shutdownCtx),
		redisClient.Close(),
		dbClient.Close(),
	)
	if closeErr != nil {
		logg.Error(ctx, "error during shutdown", closeErr)
		exitCode = 1
	}
	logg.Info(ctx, "api server stopped")
	os.Exit(exitCode)
}

func exitOnErr(logg *logger.Logger, component string, err error) {
	if err == nil {
		return
	}
	logg.Error(logg.WithField(context.Background(), "component", component), "failed to build component", err)
	os.Exit(1)
}
