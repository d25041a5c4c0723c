package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/voyagecrm/voyagecrm/internal/activity"
	"github.com/voyagecrm/voyagecrm/internal/app"
	"github.com/voyagecrm/voyagecrm/internal/billing"
	jobmetrics "github.com/voyagecrm/voyagecrm/internal/jobs"
	"github.com/voyagecrm/voyagecrm/internal/platform/db"
	"github.com/voyagecrm/voyagecrm/internal/quotations"
	"github.com/voyagecrm/voyagecrm/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	billingRepo := billing.NewRepository(pool)
	activityService := activity.NewService(activity.NewRepository(pool), nil)
	quotationRepo := quotations.NewRepository(pool, billingRepo)
	quotationService := quotations.NewService(quotationRepo, activityService, nil)

	metrics := jobmetrics.NewMetrics(nil)
	sweep := jobs.NewExpirySweep(quotationService, logger, metrics)
	notify := jobs.NewNotifyHandler(logger, metrics)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskQuotationExpirySweep, Handler: sweep.Handle},
			{Type: jobs.TaskNotifyPaymentEvent, Handler: notify.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: jobs.ExpirySweepCron, Task: jobs.NewExpirySweepTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
