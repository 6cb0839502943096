package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/quotedesk/internal/app"
	"github.com/odyssey-erp/quotedesk/internal/shared"
	"github.com/odyssey-erp/quotedesk/jobs"
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
	logger := app.NewLogger(cfg).With(slog.String("component", "worker"))

	// Mail is delivered from here, never re-queued.
	cfg.MailMode = app.MailModeDirect
	cfg.ServiceName += "-worker"
	container, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := container.Close(); err != nil {
			logger.Warn("close resources", slog.Any("error", err))
		}
	}()

	emailJob := jobs.NewEmailJob(container.SMTP, logger, container.JobMetrics)
	expireJob := jobs.NewExpireJob(container.Quotes, logger, container.JobMetrics)
	pruneJob := &jobs.PruneKeysJob{
		Pruner:    shared.NewIdempotencyStore(container.Pool),
		Retention: cfg.IdempotencyRetention,
		Logger:    logger,
		Metrics:   container.JobMetrics,
	}

	expireTask, err := jobs.NewExpireQuotesTask(time.Time{})
	if err != nil {
		logger.Error("build expire task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   cfg.RedisOptions().AsynqOpt(),
		Logger:      logger,
		Concurrency: cfg.WorkerThreads,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskSendQuoteEmail, Handler: emailJob.Handle},
			{Type: jobs.TaskExpireQuotes, Handler: expireJob.Handle},
			{Type: jobs.TaskPruneIdempotencyKeys, Handler: pruneJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.ExpireCron, Task: expireTask, Options: []asynq.Option{asynq.MaxRetry(3), asynq.Unique(30 * time.Minute)}},
			{Spec: "30 3 * * *", Task: jobs.NewPruneKeysTask()},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("starting worker", slog.String("expire_cron", cfg.ExpireCron), slog.String("version", app.Version()))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
