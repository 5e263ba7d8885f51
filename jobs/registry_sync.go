package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/kurnik-erp/kurnik-erp/internal/accounting/sync"
	jobmetrics "github.com/kurnik-erp/kurnik-erp/internal/jobs"
)

// RegistrySyncJob pulls new invoices from the national registry on schedule.
type RegistrySyncJob struct {
	Sync    *sync.Service
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewRegistrySyncJob initialises the registry sync handler.
func NewRegistrySyncJob(svc *sync.Service, logger *slog.Logger, metrics *jobmetrics.Metrics) *RegistrySyncJob {
	return &RegistrySyncJob{Sync: svc, Logger: logger, Metrics: metrics}
}

// Handle executes a registry pull. A failed run is recorded in the run history
// and the metrics, but does not bubble up to Asynq: the next scheduled run will
// retry from the same cursor anyway.
func (j *RegistrySyncJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Sync == nil {
		return errors.New("registry sync: handler not configured")
	}
	var payload RegistrySyncPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskRegistrySync)
	logger := j.logger().With(slog.Bool("manual", payload.Manual))
	logger.Info("starting registry sync")

	summary, err := j.Sync.Run(ctx, payload.Manual)
	_ = tracker.End(err)
	j.metrics().AddInvoices("saved", summary.Saved)
	j.metrics().AddInvoices("error", summary.ErrorCount)
	if err != nil {
		logger.Error("registry sync failed",
			slog.String("run_id", summary.RunID.String()),
			slog.Int("downloaded", summary.Downloaded),
			slog.Int("saved", summary.Saved),
			slog.Any("error", err),
		)
		return nil
	}

	logger.Info("completed registry sync",
		slog.String("run_id", summary.RunID.String()),
		slog.Int("downloaded", summary.Downloaded),
		slog.Int("saved", summary.Saved),
		slog.Int("errors", summary.ErrorCount),
		slog.Duration("duration", summary.Duration),
	)
	return nil
}

func (j *RegistrySyncJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return jobmetrics.NewMetrics(nil)
}

func (j *RegistrySyncJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
