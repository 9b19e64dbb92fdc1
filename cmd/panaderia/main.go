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

	"github.com/odyssey-erp/panaderia/internal/app"
	"github.com/odyssey-erp/panaderia/internal/audit"
	"github.com/odyssey-erp/panaderia/internal/auth"
	"github.com/odyssey-erp/panaderia/internal/catalog"
	"github.com/odyssey-erp/panaderia/internal/expenses"
	"github.com/odyssey-erp/panaderia/internal/observability"
	"github.com/odyssey-erp/panaderia/internal/panconfig"
	"github.com/odyssey-erp/panaderia/internal/platform/cache"
	"github.com/odyssey-erp/panaderia/internal/platform/db"
	"github.com/odyssey-erp/panaderia/internal/rbac"
	"github.com/odyssey-erp/panaderia/internal/reports"
	"github.com/odyssey-erp/panaderia/internal/sales"
	"github.com/odyssey-erp/panaderia/internal/shared"
	"github.com/odyssey-erp/panaderia/internal/shifts"
	"github.com/odyssey-erp/panaderia/internal/users"
	"github.com/odyssey-erp/panaderia/jobs"
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

	calendar, err := cfg.Calendar()
	if err != nil {
		logger.Error("load timezone", slog.Any("error", err))
		os.Exit(1)
	}

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

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

	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)
	tokens := shared.NewTokenManager(redisClient, cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL)
	metrics := observability.NewMetrics()

	rbacService := rbac.NewService()
	rbacMiddleware := rbac.Middleware{Service: rbacService, Tokens: tokens, Logger: logger}

	usersRepo := users.NewRepository(dbpool)
	usersService := users.NewService(usersRepo, auditLogger, logger)
	authService := auth.NewService(usersRepo, tokens, logger)

	configService := panconfig.NewService(panconfig.NewRepository(dbpool), auditLogger, cfg.DefaultPanConfig())
	catalogService := catalog.NewService(catalog.NewRepository(dbpool), auditLogger, logger)

	reportCache := reports.NewCache(redisClient, cfg.ReportCacheTTL, logger)
	reportsService := reports.NewService(reports.NewRepository(dbpool), reportCache, calendar, logger)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	shiftsService := shifts.NewService(shifts.NewRepository(dbpool), configService, auditLogger, shifts.ServiceConfig{
		Calendar: calendar,
		Locker:   shifts.NewRedisCloseLocker(redisClient, cfg.CloseLockTTL),
		Events:   shifts.EventHandlers{reportCache, metrics, jobClient},
		Logger:   logger,
	})
	expensesService := expenses.NewService(expenses.NewRepository(dbpool), auditLogger, idempotencyStore, logger)
	salesService := sales.NewService(sales.NewRepository(dbpool), sales.ServiceConfig{
		Audit:       auditLogger,
		Idempotency: idempotencyStore,
		Events:      metrics,
		Logger:      logger,
	})

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		RBACMiddleware:     rbacMiddleware,
		AuthHandler:        auth.NewHandler(logger, authService, rbacMiddleware),
		ConfigHandler:      panconfig.NewHandler(logger, configService, rbacMiddleware),
		CatalogHandler:     catalog.NewHandler(logger, catalogService, rbacMiddleware),
		ShiftsHandler:      shifts.NewHandler(logger, shiftsService, rbacMiddleware),
		ExpensesHandler:    expenses.NewHandler(logger, expensesService, rbacMiddleware),
		SalesHandler:       sales.NewHandler(logger, salesService, rbacMiddleware),
		ReportsHandler:     reports.NewHandler(logger, reportsService, rbacMiddleware, cfg.Money()),
		UsersHandler:       users.NewHandler(logger, usersService, rbacMiddleware),
		AuditHandler:       audit.NewHandler(logger, audit.NewService(audit.NewRepository(dbpool)), rbacMiddleware, calendar),
		PermissionsHandler: rbac.NewPermissionsHandler(rbacService, rbacMiddleware),
		JobHandler:         jobs.NewHandler(inspector, logger),
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("timezone", cfg.BusinessTimezone))
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
