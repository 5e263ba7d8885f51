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
	"github.com/redis/go-redis/v9"

	"github.com/kurnik-erp/kurnik-erp/internal/accounting/invoices"
	"github.com/kurnik-erp/kurnik-erp/internal/accounting/relations"
	"github.com/kurnik-erp/kurnik-erp/internal/accounting/rules"
	syncsvc "github.com/kurnik-erp/kurnik-erp/internal/accounting/sync"
	"github.com/kurnik-erp/kurnik-erp/internal/app"
	"github.com/kurnik-erp/kurnik-erp/internal/audit"
	"github.com/kurnik-erp/kurnik-erp/internal/integration"
	"github.com/kurnik-erp/kurnik-erp/internal/ksef"
	"github.com/kurnik-erp/kurnik-erp/internal/observability"
	"github.com/kurnik-erp/kurnik-erp/internal/platform/db"
	"github.com/kurnik-erp/kurnik-erp/internal/shared"
	"github.com/kurnik-erp/kurnik-erp/jobs"
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

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	auditRecorder := audit.NewPGRecorder(dbpool)
	auditService := audit.NewService(audit.NewPGRepository(dbpool))
	dispatcher := integration.NewLogDispatcher(logger)

	invoiceRepo := invoices.NewRepository(dbpool)
	invoiceService := invoices.NewService(invoiceRepo, auditRecorder, dispatcher, logger)

	ruleStore := rules.NewPGStore(dbpool)
	ruleService := rules.NewService(ruleStore, rules.NewInvoiceStore(invoiceRepo), auditRecorder, logger)

	relationRepo := relations.NewRepository(dbpool)
	relationService := relations.NewService(relationRepo, invoiceService, auditRecorder, logger)

	registry := ksef.NewClient(cfg.KSeFBaseURL, cfg.KSeFToken, cfg.KSeFPageSize, cfg.KSeFHTTPTimeout)
	runStore := syncsvc.NewPGRunStore(dbpool)
	syncService := syncsvc.NewService(runStore, registry, invoiceRepo, ruleService, invoiceService, logger)

	triggerGuard := shared.NewTriggerGuard(redisClient, cfg.SyncTriggerGuard)
	metrics := observability.NewMetrics()

	invoicesHandler := invoices.NewHandler(logger, invoiceService, auditService)
	rulesHandler := rules.NewHandler(logger, ruleService)
	relationsHandler := relations.NewHandler(logger, relationService)
	syncHandler := syncsvc.NewHandler(logger, syncService, triggerGuard)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, jobClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		InvoicesHandler:  invoicesHandler,
		RulesHandler:     rulesHandler,
		RelationsHandler: relationsHandler,
		SyncHandler:      syncHandler,
		JobHandler:       jobHandler,
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
