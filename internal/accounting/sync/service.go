package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kurnik-erp/kurnik-erp/internal/accounting/invoices"
	"github.com/kurnik-erp/kurnik-erp/internal/accounting/rules"
)

// InvoiceStore is the persistence slice the orchestrator writes through.
type InvoiceStore interface {
	InsertFromRegistry(ctx context.Context, inv invoices.Invoice) (invoices.Invoice, bool, error)
}

// Classifier resolves assignments for newly saved invoices against one rule
// snapshot per run.
type Classifier interface {
	LoadActiveRules(ctx context.Context) (map[rules.Family][]rules.Rule, error)
	ClassifyWithRules(ctx context.Context, inv invoices.Invoice, byFamily map[rules.Family][]rules.Rule) (rules.Classification, error)
}

// Linker puts counterpart-demanding documents into the linking workflow.
type Linker interface {
	MarkRequiresLinking(ctx context.Context, id int64) (invoices.Invoice, error)
}

// Service orchestrates synchronization runs against the registry.
type Service struct {
	runs       RunStore
	registry   RegistryClient
	invoices   InvoiceStore
	classifier Classifier
	linker     Linker
	logger     *slog.Logger
	clock      func() time.Time
}

// NewService constructs the orchestrator.
func NewService(runs RunStore, registry RegistryClient, invoiceStore InvoiceStore, classifier Classifier, linker Linker, logger *slog.Logger) *Service {
	return &Service{
		runs:       runs,
		registry:   registry,
		invoices:   invoiceStore,
		classifier: classifier,
		linker:     linker,
		logger:     logger,
		clock:      func() time.Time { return time.Now().UTC() },
	}
}

// Run drives one synchronization attempt: fetch, deduplicate, persist,
// classify, and write a single summary row. Each invoice persists in its own
// unit, so a failure mid-run keeps everything saved so far; the run row then
// records FAILED together with the partial counts.
func (s *Service) Run(ctx context.Context, manual bool) (Summary, error) {
	since, err := s.runs.LastCompletedAt(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("sync: read last completed run: %w", err)
	}

	run := Run{
		ID:        uuid.New(),
		StartedAt: s.clock(),
		Status:    RunInProgress,
		Manual:    manual,
	}
	if err := s.runs.CreateRun(ctx, run); err != nil {
		return Summary{}, fmt.Errorf("sync: open run row: %w", err)
	}

	logger := s.logger.With(slog.String("run_id", run.ID.String()), slog.Bool("manual", manual))
	logger.Info("registry sync started", slog.Time("since", since))

	// One rule snapshot per run; operators may edit rules between runs and
	// the next run must see those edits.
	byFamily, err := s.classifier.LoadActiveRules(ctx)
	if err != nil {
		return s.fail(ctx, run, fmt.Errorf("sync: load rules: %w", err), logger)
	}

	for page := 0; ; page++ {
		batch, err := s.registry.FetchInvoices(ctx, since, page)
		if err != nil {
			return s.fail(ctx, run, fmt.Errorf("sync: fetch page %d: %w", page, err), logger)
		}
		for _, raw := range batch.Invoices {
			run.Downloaded++
			inv, err := mapRaw(raw)
			if err != nil {
				return s.fail(ctx, run, err, logger)
			}
			saved, inserted, err := s.invoices.InsertFromRegistry(ctx, inv)
			if err != nil {
				return s.fail(ctx, run, fmt.Errorf("sync: persist %s: %w", raw.ExternalNumber, err), logger)
			}
			if !inserted {
				continue
			}
			run.Saved++
			s.postProcess(ctx, saved, byFamily, &run, logger)
		}
		if !batch.HasMore {
			break
		}
	}

	finished := s.clock()
	run.Status = RunCompleted
	run.FinishedAt = &finished
	run.Duration = finished.Sub(run.StartedAt)
	if err := s.runs.FinishRun(ctx, run); err != nil {
		return Summary{}, fmt.Errorf("sync: close run row: %w", err)
	}
	logger.Info("registry sync completed",
		slog.Int("downloaded", run.Downloaded),
		slog.Int("saved", run.Saved),
		slog.Int("errors", run.ErrorCount),
		slog.Duration("duration", run.Duration),
	)
	return summarize(run), nil
}

// postProcess classifies a newly saved invoice and opens the linking workflow
// for documents that demand a counterpart. Both steps are re-runnable, so a
// failure here is counted and logged without aborting the run.
func (s *Service) postProcess(ctx context.Context, inv invoices.Invoice, byFamily map[rules.Family][]rules.Rule, run *Run, logger *slog.Logger) {
	if _, err := s.classifier.ClassifyWithRules(ctx, inv, byFamily); err != nil {
		run.ErrorCount++
		logger.Warn("classification failed", slog.Int64("invoice_id", inv.ID), slog.Any("error", err))
	}
	if inv.DocumentType.NeedsCounterpart() {
		if _, err := s.linker.MarkRequiresLinking(ctx, inv.ID); err != nil {
			run.ErrorCount++
			logger.Warn("linking flag failed", slog.Int64("invoice_id", inv.ID), slog.Any("error", err))
		}
	}
}

// ListRuns returns recent run rows for the operations view.
func (s *Service) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	return s.runs.ListRuns(ctx, limit)
}

func (s *Service) fail(ctx context.Context, run Run, cause error, logger *slog.Logger) (Summary, error) {
	finished := s.clock()
	run.Status = RunFailed
	run.FinishedAt = &finished
	run.Duration = finished.Sub(run.StartedAt)
	run.ErrorCount++
	run.ErrorMessage = cause.Error()
	if err := s.runs.FinishRun(ctx, run); err != nil {
		logger.Error("failed to record failed run", slog.Any("error", err))
	}
	logger.Error("registry sync failed",
		slog.Int("downloaded", run.Downloaded),
		slog.Int("saved", run.Saved),
		slog.Any("error", cause),
	)
	return summarize(run), cause
}

func summarize(run Run) Summary {
	return Summary{
		RunID:      run.ID,
		Status:     run.Status,
		Downloaded: run.Downloaded,
		Saved:      run.Saved,
		ErrorCount: run.ErrorCount,
		Error:      run.ErrorMessage,
		Duration:   run.Duration,
	}
}

func mapRaw(raw RawInvoice) (invoices.Invoice, error) {
	if raw.ExternalNumber == "" {
		return invoices.Invoice{}, fmt.Errorf("sync: registry invoice %q has no external number", raw.Number)
	}
	external := raw.ExternalNumber
	inv := invoices.Invoice{
		ExternalNumber: &external,
		Number:         raw.Number,
		IssuedAt:       raw.IssuedAt,
		SellerTaxID:    raw.SellerTaxID,
		SellerName:     raw.SellerName,
		BuyerTaxID:     raw.BuyerTaxID,
		BuyerName:      raw.BuyerName,
		DocumentType:   invoices.DocumentType(raw.DocumentType),
		Direction:      invoices.Direction(raw.Direction),
		Source:         invoices.SourceRegistry,
		Status:         invoices.StatusNew,
		PaymentStatus:  invoices.PaymentUnpaid,
		ItemSummary:    raw.ItemSummary,
	}
	var err error
	if inv.Gross, err = decimal.NewFromString(raw.Gross); err != nil {
		return invoices.Invoice{}, fmt.Errorf("sync: parse gross of %s: %w", raw.ExternalNumber, err)
	}
	if inv.Net, err = decimal.NewFromString(raw.Net); err != nil {
		return invoices.Invoice{}, fmt.Errorf("sync: parse net of %s: %w", raw.ExternalNumber, err)
	}
	if inv.VAT, err = decimal.NewFromString(raw.VAT); err != nil {
		return invoices.Invoice{}, fmt.Errorf("sync: parse vat of %s: %w", raw.ExternalNumber, err)
	}
	return inv, nil
}
