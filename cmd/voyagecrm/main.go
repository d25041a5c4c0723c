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

	"github.com/voyagecrm/voyagecrm/internal/activity"
	"github.com/voyagecrm/voyagecrm/internal/app"
	"github.com/voyagecrm/voyagecrm/internal/auth"
	"github.com/voyagecrm/voyagecrm/internal/billing"
	"github.com/voyagecrm/voyagecrm/internal/observability"
	"github.com/voyagecrm/voyagecrm/internal/payments"
	"github.com/voyagecrm/voyagecrm/internal/platform/cache"
	"github.com/voyagecrm/voyagecrm/internal/platform/db"
	"github.com/voyagecrm/voyagecrm/internal/quotations"
	"github.com/voyagecrm/voyagecrm/internal/reporting"
	"github.com/voyagecrm/voyagecrm/internal/requests"
	"github.com/voyagecrm/voyagecrm/internal/shared"
	"github.com/voyagecrm/voyagecrm/internal/users"
	"github.com/voyagecrm/voyagecrm/jobs"
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "voyage_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	idempotencyStore := shared.NewIdempotencyStore(dbpool)
	invoiceLocker := shared.NewInvoiceLocker(redisClient, cfg.AllocationLockTTL)

	metrics := observability.NewMetrics()

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, sessionManager)

	activityRepo := activity.NewRepository(dbpool)
	activityService := activity.NewService(activityRepo, nil)
	activityHandler := activity.NewHandler(activityService)

	requestRepo := requests.NewRepository(dbpool)
	requestService := requests.NewService(requestRepo, activityService, nil)
	requestHandler := requests.NewHandler(logger, requestService)

	billingRepo := billing.NewRepository(dbpool)
	billingService := billing.NewService(billingRepo)

	quotationRepo := quotations.NewRepository(dbpool, billingRepo)
	quotationService := quotations.NewService(quotationRepo, activityService, nil)
	quotationHandler := quotations.NewHandler(logger, quotationService)

	billingHandler := billing.NewHandler(logger, billingService, quotationService)

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	notifier := jobs.NewNotifier(jobClient, logger)

	paymentRepo := payments.NewRepository(dbpool, billingRepo)
	paymentService := payments.NewService(paymentRepo, invoiceLocker, notifier, nil)
	paymentHandler := payments.NewHandler(logger, paymentService, billingService, idempotencyStore)

	reportService := reporting.NewService(billingRepo, nil)
	reportHandler := reporting.NewHandler(logger, reportService)

	usersRepo := users.NewRepository(dbpool)
	usersService := users.NewService(usersRepo)
	usersHandler := users.NewHandler(logger, usersService)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   sessionManager,
		AuthHandler:      authHandler,
		RequestHandler:   requestHandler,
		QuotationHandler: quotationHandler,
		BillingHandler:   billingHandler,
		PaymentHandler:   paymentHandler,
		ReportHandler:    reportHandler,
		ActivityHandler:  activityHandler,
		UsersHandler:     usersHandler,
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
