package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sokomart-dev/sokomart-backend/api/routes"
	"github.com/sokomart-dev/sokomart-backend/internal/catalog"
	"github.com/sokomart-dev/sokomart-backend/internal/gateway"
	"github.com/sokomart-dev/sokomart-backend/internal/notifications"
	"github.com/sokomart-dev/sokomart-backend/internal/orders"
	"github.com/sokomart-dev/sokomart-backend/internal/settlement"
	"github.com/sokomart-dev/sokomart-backend/internal/stock"
	"github.com/sokomart-dev/sokomart-backend/pkg/config"
	"github.com/sokomart-dev/sokomart-backend/pkg/db"
	"github.com/sokomart-dev/sokomart-backend/pkg/logger"
	"github.com/sokomart-dev/sokomart-backend/pkg/metrics"
	"github.com/sokomart-dev/sokomart-backend/pkg/migrate"
	"github.com/sokomart-dev/sokomart-backend/pkg/outbox"
	"github.com/sokomart-dev/sokomart-backend/pkg/redis"
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

	var gatewayClient *gateway.Client
	if cfg.Gateway.BaseURL != "" {
		gatewayClient, err = gateway.NewClient(context.Background(), cfg.Gateway, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to create gateway client", err)
			os.Exit(1)
		}
	} else {
		logg.Warn(context.Background(), "payment gateway not configured, gateway checkout disabled")
	}

	paymentMetrics := metrics.NewPaymentMetrics(prometheus.DefaultRegisterer)
	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	ordersService := buildOrdersService(dbClient, outboxService, gatewayClient, paymentMetrics, logg)

	earnings := settlement.NewAggregator(dbClient.DB())

	notificationService, err := notifications.NewService(notifications.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create notification service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:        cfg,
			Logger:        logg,
			DB:            dbClient,
			Redis:         redisClient,
			Orders:        ordersService,
			Earnings:      earnings,
			Notifications: notificationService,
			Gateway:       gatewayClient,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

// buildOrdersService keeps the gateway argument an untyped nil when the
// provider is not configured, so the service's nil check stays meaningful.
func buildOrdersService(
	dbClient *db.Client,
	outboxService *outbox.Service,
	gatewayClient *gateway.Client,
	paymentMetrics *metrics.PaymentMetrics,
	logg *logger.Logger,
) *orders.Service {
	repo := orders.NewRepository(dbClient.DB())
	ledger := stock.NewLedger(paymentMetrics)
	snapshot := catalog.NewSnapshot()
	if gatewayClient == nil {
		return orders.NewService(repo, dbClient, outboxService, ledger, snapshot, nil, paymentMetrics, logg)
	}
	return orders.NewService(repo, dbClient, outboxService, ledger, snapshot, gatewayClient, paymentMetrics, logg)
}
