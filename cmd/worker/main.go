package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/atelier-btp/atelier-btp/internal/app"
	"github.com/atelier-btp/atelier-btp/internal/clients"
	"github.com/atelier-btp/atelier-btp/internal/invoices"
	"github.com/atelier-btp/atelier-btp/internal/numbering"
	"github.com/atelier-btp/atelier-btp/internal/observability"
	"github.com/atelier-btp/atelier-btp/internal/quotes"
	"github.com/atelier-btp/atelier-btp/internal/settings"
	"github.com/atelier-btp/atelier-btp/jobs"
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

	pool, err := pgxpool.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}

	metrics := observability.NewMetrics()

	settingsRepo := settings.NewRepository(pool)
	settingsCache := settings.NewCache(redisClient, cfg.SettingsCacheTTL)
	settingsService := settings.NewService(settingsRepo, settingsCache)

	numberingRepo := numbering.NewRepository(pool)
	numberingService := numbering.NewService(numberingRepo, settingsService, logger, metrics)

	clientsRepo := clients.NewRepository(pool)

	quotesRepo := quotes.NewRepository(pool)
	quotesService := quotes.NewService(quotesRepo, clientsRepo, numberingService, nil, logger)

	invoicesRepo := invoices.NewRepository(pool)
	invoicesService := invoices.NewService(invoicesRepo, clientsRepo, quotesService, numberingService, nil, logger)

	queueClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init queue client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := queueClient.Close(); err != nil {
			logger.Warn("queue client close", slog.Any("error", err))
		}
	}()

	expiryJob := jobs.NewDevisExpiryJob(quotesService, logger, metrics)
	reminderJob := jobs.NewFactureReminderJob(invoicesService, queueClient, logger, metrics)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeDevisExpiry, Handler: expiryJob.Handle},
			{Type: jobs.TaskTypeFactureReminder, Handler: reminderJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 1 * * *", Task: jobs.NewDevisExpiryTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "30 1 * * *", Task: jobs.NewFactureReminderTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("starting worker")
	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
