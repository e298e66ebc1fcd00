package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/medilink-erp/medilink-erp/internal/app"
	"github.com/medilink-erp/medilink-erp/internal/billing"
	"github.com/medilink-erp/medilink-erp/internal/delivery"
	"github.com/medilink-erp/medilink-erp/internal/inventory"
	"github.com/medilink-erp/medilink-erp/internal/masterdata/products"
	"github.com/medilink-erp/medilink-erp/internal/observability"
	"github.com/medilink-erp/medilink-erp/internal/payments"
	"github.com/medilink-erp/medilink-erp/internal/platform/cache"
	"github.com/medilink-erp/medilink-erp/internal/platform/db"
	"github.com/medilink-erp/medilink-erp/internal/sales/customers"
	"github.com/medilink-erp/medilink-erp/internal/shared"
	"github.com/medilink-erp/medilink-erp/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}
	}()

	auditLogger := shared.NewAuditLogger(pool)
	idemStore := shared.NewIdempotencyStore(pool)
	metrics := observability.NewMetrics()

	customerRepo := customers.NewRepository(pool)
	productRepo := products.NewRepository(pool)

	var availabilityCache *inventory.AvailabilityCache
	if redisClient != nil {
		availabilityCache = inventory.NewAvailabilityCache(redisClient, cfg.AvailabilityCacheTTL)
	}
	inventoryRepo := inventory.NewRepository(pool)
	inventoryService := inventory.NewService(inventoryRepo, auditLogger, availabilityCache)
	inventoryHandler := inventory.NewHandler(inventoryService)

	billingRepo := billing.NewRepository(pool)
	billingService := billing.NewService(billingRepo, customerRepo, productRepo, inventoryService,
		auditLogger, metrics, logger, billing.Config{
			SellerJurisdiction: cfg.SellerJurisdiction,
			Retry:              cfg.RetryPolicy(),
		})
	billingHandler := billing.NewHandler(billingService, idemStore)

	deliveryRepo := delivery.NewRepository(pool)
	deliveryService := delivery.NewService(pool, deliveryRepo, billingRepo)
	deliveryHandler := delivery.NewHandler(deliveryService)

	paymentsRepo := payments.NewRepository(pool)
	paymentsService := payments.NewService(paymentsRepo, auditLogger, metrics, logger, cfg.RetryPolicy())
	paymentsHandler := payments.NewHandler(paymentsService, idemStore)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		BillingHandler:   billingHandler,
		PaymentsHandler:  paymentsHandler,
		InventoryHandler: inventoryHandler,
		DeliveryHandler:  deliveryHandler,
		JobHandler:       jobHandler,
		Pool:             pool,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
