package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/kurnik-erp/kurnik-erp/internal/accounting/invoices"
	"github.com/kurnik-erp/kurnik-erp/internal/accounting/rules"
	syncsvc "github.com/kurnik-erp/kurnik-erp/internal/accounting/sync"
	"github.com/kurnik-erp/kurnik-erp/internal/app"
	"github.com/kurnik-erp/kurnik-erp/internal/audit"
	"github.com/kurnik-erp/kurnik-erp/internal/integration"
	jobmetrics "github.com/kurnik-erp/kurnik-erp/internal/jobs"
	"github.com/kurnik-erp/kurnik-erp/internal/ksef"
	"github.com/kurnik-erp/kurnik-erp/internal/platform/db"
	"github.com/kurnik-erp/kurnik-erp/jobs"
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
		logger.Error("connect postgres", slog.Any("error", err))
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

	auditRecorder := audit.NewPGRecorder(pool)
	dispatcher := integration.NewLogDispatcher(logger)

	invoiceRepo := invoices.NewRepository(pool)
	invoiceService := invoices.NewService(invoiceRepo, auditRecorder, dispatcher, logger)

	ruleStore := rules.NewPGStore(pool)
	ruleService := rules.NewService(ruleStore, rules.NewInvoiceStore(invoiceRepo), auditRecorder, logger)

	registry := ksef.NewClient(cfg.KSeFBaseURL, cfg.KSeFToken, cfg.KSeFPageSize, cfg.KSeFHTTPTimeout)
	runStore := syncsvc.NewPGRunStore(pool)
	syncService := syncsvc.NewService(runStore, registry, invoiceRepo, ruleService, invoiceService, logger)

	metrics := jobmetrics.NewMetrics(nil)
	syncJob := jobs.NewRegistrySyncJob(syncService, logger, metrics)

	scheduledTask, err := jobs.NewRegistrySyncTask(jobs.RegistrySyncPayload{Manual: false})
	if err != nil {
		logger.Error("build sync task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskRegistrySync, Handler: syncJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.SyncCronSpec, Task: scheduledTask, Options: []asynq.Option{asynq.MaxRetry(0)}},
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
