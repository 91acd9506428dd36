package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/sweetline/sweetline/cmd/sweetline/cli"
	"github.com/sweetline/sweetline/internal/app"
	"github.com/sweetline/sweetline/internal/distribution"
	"github.com/sweetline/sweetline/internal/inventory"
	"github.com/sweetline/sweetline/internal/observability"
	"github.com/sweetline/sweetline/internal/platform/cache"
	"github.com/sweetline/sweetline/internal/platform/db"
	"github.com/sweetline/sweetline/internal/production"
	"github.com/sweetline/sweetline/internal/rbac"
	"github.com/sweetline/sweetline/internal/reports"
	"github.com/sweetline/sweetline/internal/recipes"
	"github.com/sweetline/sweetline/internal/returns"
	"github.com/sweetline/sweetline/internal/sales"
	"github.com/sweetline/sweetline/internal/shared"
	"github.com/sweetline/sweetline/jobs"
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
	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}

	if len(os.Args) > 1 && os.Args[1] == "jobs" {
		jobsCLI := cli.NewJobsCLI(redisOpts, cfg.IdempotencyRetention)
		defer func() { _ = jobsCLI.Close() }()
		if err := jobsCLI.Run(ctx, os.Args[2:], os.Stdout); err != nil {
			logger.Error("jobs command", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(pool)
	approvals := shared.NewApprovalRecorder(pool, logger)
	idempotency := shared.NewIdempotencyStore(pool)
	rbacMiddleware := rbac.Middleware{
		Sessions: shared.NewSessionStore(redisClient, cfg.SessionPrefix),
		Logger:   logger,
	}

	inventoryService := inventory.NewService(inventory.NewRepository(pool), logger)
	products := sales.NewProductCache(redisClient, inventoryService.BranchStock, cfg.ProductsCacheTTL, logger)

	resolver := recipes.NewResolver(recipes.NewRepository(pool))
	productionService := production.NewService(production.NewRepository(pool), resolver, auditLogger, metrics, logger,
		production.Config{TxTimeout: cfg.StockTxTimeout})

	distributionService := distribution.NewService(distribution.NewRepository(pool), distribution.Deps{
		Approvals: approvals,
		Audit:     auditLogger,
		Notifier:  products,
		Observer:  metrics,
		Logger:    logger,
	}, distribution.Config{TxTimeout: cfg.StockTxTimeout})

	salesService := sales.NewService(sales.NewRepository(pool), sales.Deps{
		Idempotency: idempotency,
		Audit:       auditLogger,
		Notifier:    products,
		Observer:    metrics,
		Logger:      logger,
	}, sales.Config{TxTimeout: cfg.StockTxTimeout})

	returnsService := returns.NewService(returns.NewRepository(pool), returns.Deps{
		Audit:    auditLogger,
		Notifier: products,
		Observer: metrics,
		Logger:   logger,
	}, returns.Config{TxTimeout: cfg.StockTxTimeout})

	reportsService := reports.NewService(reports.NewRepository(pool),
		reports.NewCache(redisClient, cfg.ReportsCacheTTL, logger), logger)

	inspector := asynq.NewInspector(redisOpts)
	defer func() { _ = inspector.Close() }()

	router := app.NewRouter(app.RouterParams{
		Logger:              logger,
		Config:              cfg,
		Metrics:             metrics,
		DB:                  pool,
		RBACMiddleware:      rbacMiddleware,
		InventoryHandler:    inventory.NewHandler(logger, inventoryService, rbacMiddleware),
		ProductionHandler:   production.NewHandler(logger, productionService, rbacMiddleware),
		DistributionHandler: distribution.NewHandler(logger, distributionService, rbacMiddleware),
		SalesHandler:        sales.NewHandler(logger, salesService, products, rbacMiddleware),
		ReturnsHandler:      returns.NewHandler(logger, returnsService, rbacMiddleware),
		ReportsHandler:      reports.NewHandler(logger, reportsService, rbacMiddleware),
		JobHandler:          jobs.NewHandler(inspector, logger),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("env", cfg.AppEnv))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
