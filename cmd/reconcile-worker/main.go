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
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"github.com/angelmondragon/bookstore-backend/internal/cart"
	"github.com/angelmondragon/bookstore-backend/internal/checkout"
	"github.com/angelmondragon/bookstore-backend/internal/cron"
	"github.com/angelmondragon/bookstore-backend/internal/orders"
	"github.com/angelmondragon/bookstore-backend/internal/reconciliation"
	"github.com/angelmondragon/bookstore-backend/internal/subscriptions"
	"github.com/angelmondragon/bookstore-backend/pkg/config"
	"github.com/angelmondragon/bookstore-backend/pkg/db"
	"github.com/angelmondragon/bookstore-backend/pkg/gateway"
	"github.com/angelmondragon/bookstore-backend/pkg/instance"
	"github.com/angelmondragon/bookstore-backend/pkg/logger"
	"github.com/angelmondragon/bookstore-backend/pkg/metrics"
	"github.com/angelmondragon/bookstore-backend/pkg/redis"
)

const serviceName = "reconcile-worker"

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceName})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
		Fields:      map[string]any{"env": cfg.App.Env, "instance": instance.ID()},
	})

	reg := prometheus.NewRegistry()
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

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}

	orderLedger, err := orders.NewLedger(orders.NewRepository(dbClient.DB()))
	exitOnErr(logg, "order ledger", err)
	subscriptionLedger, err := subscriptions.NewLedger(subscriptions.NewRepository(dbClient.DB()))
	exitOnErr(logg, "subscription ledger", err)

	reconciler, err := reconciliation.NewService(reconciliation.ServiceParams{
		Tx:            dbClient,
		Orders:        orderLedger,
		Subscriptions: subscriptionLedger,
		Cart:          cart.NewRepository(dbClient.DB()),
		Gateway:       gatewayClient,
		Logger:        logg,
		Metrics:       paymentMetrics,
	})
	exitOnErr(logg, "reconciliation service", err)

	recovery, err := checkout.NewLinkRecovery(checkout.RecoveryParams{
		Orders:        orderLedger,
		Subscriptions: subscriptionLedger,
		Gateway:       gatewayClient,
		Logger:        logg,
		Metrics:       paymentMetrics,
	})
	exitOnErr(logg, "link recovery", err)

	jobMetrics := metrics.NewJobMetrics(reg)
	sweep, err := cron.NewPendingPaymentJob(cron.PendingPaymentJobParams{
		Logger:        logg,
		Orders:        orderLedger,
		Subscriptions: subscriptionLedger,
		Reconciler:    reconciler,
		Recovery:      recovery,
		Metrics:       jobMetrics,
		Grace:         cfg.Worker.SweepGrace,
		Limit:         cfg.Worker.SweepLimit,
	})
	exitOnErr(logg, "pending payment job", err)

	lock, err := cron.NewRedisLease(redisClient, serviceName+":"+lockScope(cfg.App.Env), cfg.Worker.LockTTL)
	exitOnErr(logg, "worker lock", err)

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Jobs:     []cron.Job{sweep},
		Lock:     lock,
		Metrics:  jobMetrics,
		Interval: cfg.Worker.Interval,
	})
	exitOnErr(logg, "worker service", err)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"interval":      cfg.Worker.Interval.String(),
		"cycle_timeout": service.CycleTimeout.String(),
	})

	// Only /metrics is served; the worker has no API surface.
	metricsServer := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "metrics listener stopped", err)
		}
	}()

	logg.Info(ctx, "starting reconcile worker")
	exitCode := 0
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "reconcile worker stopped unexpectedly", err)
		exitCode = 1
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()
	if err := multierr.Combine(
		metricsServer.Shutdown(shutdownCtx),
		redisClient.Close(),
		dbClient.Close(),
	); err != nil {
		logg.Error(ctx, "error during shutdown", err)
		exitCode = 1
	}
	logg.Info(ctx, "reconcile worker stopped")
	os.Exit(exitCode)
}

func lockScope(env string) string {
	if env == "" {
		return "local"
	}
	return env
}

func exitOnErr(logg *logger.Logger, component string, err error) {
	if err == nil {
		return
	}
	logg.Error(logg.WithField(context.Background(), "component", component), "failed to build component", err)
	os.Exit(1)
}
