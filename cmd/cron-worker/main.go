package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sokomart-dev/sokomart-backend/internal/catalog"
	"github.com/sokomart-dev/sokomart-backend/internal/cron"
	"github.com/sokomart-dev/sokomart-backend/internal/gateway"
	"github.com/sokomart-dev/sokomart-backend/internal/orders"
	"github.com/sokomart-dev/sokomart-backend/internal/stock"
	"github.com/sokomart-dev/sokomart-backend/pkg/config"
	"github.com/sokomart-dev/sokomart-backend/pkg/db"
	"github.com/sokomart-dev/sokomart-backend/pkg/logger"
	"github.com/sokomart-dev/sokomart-backend/pkg/metrics"
	"github.com/sokomart-dev/sokomart-backend/pkg/migrate"
	"github.com/sokomart-dev/sokomart-backend/pkg/outbox"
	"github.com/sokomart-dev/sokomart-backend/pkg/redis"
)

const lockKeyFormat = "sm:cron-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	paymentMetrics := metrics.NewPaymentMetrics(prometheus.DefaultRegisterer)

	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	var gatewayClient *gateway.Client
	if cfg.Gateway.BaseURL != "" {
		gatewayClient, err = gateway.NewClient(context.Background(), cfg.Gateway, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to create gateway client", err)
			os.Exit(1)
		}
	}

	ordersRepo := orders.NewRepository(dbClient.DB())
	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	ordersService := buildOrdersService(dbClient, ordersRepo, outboxService, gatewayClient, paymentMetrics, logg)

	jobs := make([]cron.Job, 0, 3)

	ttlJob, err := cron.NewOrderTTLJob(cron.OrderTTLJobParams{
		Logger:  logg,
		Expirer: ordersService,
		TTL:     cfg.Cron.PendingOrderTTL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create order ttl job", err)
		os.Exit(1)
	}
	jobs = append(jobs, ttlJob)

	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		Repository: outbox.NewRepository(dbClient.DB()),
		Retention:  cfg.Cron.OutboxRetention,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox retention job", err)
		os.Exit(1)
	}
	jobs = append(jobs, retentionJob)

	if gatewayClient != nil {
		pollJob, err := cron.NewGatewayPollJob(cron.GatewayPollJobParams{
			Logger:        logg,
			PendingReader: ordersRepo,
			Verifier:      ordersService,
			MaxAge:        cfg.Cron.GatewayPollMaxAge,
		})
		if err != nil {
			logg.Error(context.Background(), "failed to create gateway poll job", err)
			os.Exit(1)
		}
		jobs = append(jobs, pollJob)
	} else {
		logg.Warn(context.Background(), "payment gateway not configured, skipping invoice poll job")
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(jobs...),
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Cron.PendingOrderSweep,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

// buildOrdersService keeps the gateway argument an untyped nil when the
// provider is not configured.
func buildOrdersService(
	dbClient *db.Client,
	repo orders.Repository,
	outboxService *outbox.Service,
	gatewayClient *gateway.Client,
	paymentMetrics *metrics.PaymentMetrics,
	logg *logger.Logger,
) *orders.Service {
	ledger := stock.NewLedger(paymentMetrics)
	snapshot := catalog.NewSnapshot()
	if gatewayClient == nil {
		return orders.NewService(repo, dbClient, outboxService, ledger, snapshot, nil, paymentMetrics, logg)
	}
	return orders.NewService(repo, dbClient, outboxService, ledger, snapshot, gatewayClient, paymentMetrics, logg)
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
