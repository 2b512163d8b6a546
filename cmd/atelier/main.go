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
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/atelier-btp/atelier-btp/internal/app"
	"github.com/atelier-btp/atelier-btp/internal/catalog"
	"github.com/atelier-btp/atelier-btp/internal/clients"
	"github.com/atelier-btp/atelier-btp/internal/invoices"
	"github.com/atelier-btp/atelier-btp/internal/numbering"
	"github.com/atelier-btp/atelier-btp/internal/observability"
	"github.com/atelier-btp/atelier-btp/internal/pdf"
	"github.com/atelier-btp/atelier-btp/internal/prescribers"
	"github.com/atelier-btp/atelier-btp/internal/quotes"
	"github.com/atelier-btp/atelier-btp/internal/settings"
	"github.com/atelier-btp/atelier-btp/internal/shared"
	"github.com/atelier-btp/atelier-btp/jobs"
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

	dbpool, err := pgxpool.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(dbpool)

	settingsRepo := settings.NewRepository(dbpool)
	settingsCache := settings.NewCache(redisClient, cfg.SettingsCacheTTL)
	settingsService := settings.NewService(settingsRepo, settingsCache)
	settingsHandler := settings.NewHandler(logger, settingsService)

	numberingRepo := numbering.NewRepository(dbpool)
	numberingService := numbering.NewService(numberingRepo, settingsService, logger, metrics)
	numberingHandler := numbering.NewHandler(logger, numberingService)

	clientsRepo := clients.NewRepository(dbpool)
	clientsService := clients.NewService(clientsRepo, auditLogger)
	clientsHandler := clients.NewHandler(logger, clientsService)

	prescribersRepo := prescribers.NewRepository(dbpool)
	prescribersService := prescribers.NewService(prescribersRepo)
	prescribersHandler := prescribers.NewHandler(logger, prescribersService)

	catalogRepo := catalog.NewRepository(dbpool)
	catalogService := catalog.NewService(catalogRepo)
	catalogHandler := catalog.NewHandler(logger, catalogService)

	renderer := pdf.NewRenderer(pdf.CompanyInfo{
		Name:    cfg.CompanyName,
		Address: cfg.CompanyAddress,
		Phone:   cfg.CompanyPhone,
		Email:   cfg.CompanyEmail,
		SIRET:   cfg.CompanySIRET,
	}, clientsRepo)

	quotesRepo := quotes.NewRepository(dbpool)
	quotesService := quotes.NewService(quotesRepo, clientsRepo, numberingService, auditLogger, logger)

	invoicesRepo := invoices.NewRepository(dbpool)
	invoicesService := invoices.NewService(invoicesRepo, clientsRepo, quotesService, numberingService, auditLogger, logger)
	invoicesHandler := invoices.NewHandler(logger, invoicesService, renderer)

	quotesHandler := quotes.NewHandler(logger, quotesService, renderer, invoicesService)

	dashboardHandler := app.NewDashboardHandler(logger, quotesService, invoicesService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		ClientsHandler:     clientsHandler,
		PrescribersHandler: prescribersHandler,
		CatalogHandler:     catalogHandler,
		QuotesHandler:      quotesHandler,
		InvoicesHandler:    invoicesHandler,
		SettingsHandler:    settingsHandler,
		NumberingHandler:   numberingHandler,
		DashboardHandler:   dashboardHandler,
		JobHandler:         jobHandler,
		Metrics:            metrics,
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
