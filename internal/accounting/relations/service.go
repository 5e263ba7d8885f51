package relations

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kurnik-erp/kurnik-erp/internal/accounting/invoices"
	"github.com/kurnik-erp/kurnik-erp/internal/audit"
	"github.com/kurnik-erp/kurnik-erp/internal/shared"
)

// Store is the persistence surface the service depends on.
type Store interface {
	Create(ctx context.Context, rel Relation) (Relation, error)
	Get(ctx context.Context, id int64) (Relation, error)
	ListByInvoice(ctx context.Context, invoiceID int64) ([]Relation, error)
	Delete(ctx context.Context, id int64) error
	FindLinkableCandidates(ctx context.Context, subjectID int64, subjectIssuedAt time.Time, phrase string, limit int) ([]Candidate, error)
}

// InvoiceCommands is the slice of the invoice service relations drive: the
// endpoint lookup and the linked transition after an edge is recorded.
type InvoiceCommands interface {
	Get(ctx context.Context, id int64) (invoices.Invoice, error)
	MarkLinked(ctx context.Context, id int64, relatedNumber string) (invoices.Invoice, error)
}

// Service owns the relation graph.
type Service struct {
	store      Store
	invoices   InvoiceCommands
	auditor    audit.Recorder
	logger     *slog.Logger
	clock      func() time.Time
	candidates singleflight.Group
}

// NewService constructs the relations service.
func NewService(store Store, invoiceCmds InvoiceCommands, auditor audit.Recorder, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		invoices: invoiceCmds,
		auditor:  auditor,
		logger:   logger,
		clock:    func() time.Time { return time.Now().UTC() },
	}
}

// Create records a typed edge between two invoices and resolves the linking
// workflow on both endpoints.
func (s *Service) Create(ctx context.Context, sourceID, targetID int64, kind Kind) (Relation, error) {
	if !kind.Valid() {
		return Relation{}, ErrUnknownKind
	}
	if sourceID == targetID {
		return Relation{}, ErrSelfRelation
	}
	source, err := s.invoices.Get(ctx, sourceID)
	if err != nil {
		return Relation{}, fmt.Errorf("relations: source invoice: %w", err)
	}
	target, err := s.invoices.Get(ctx, targetID)
	if err != nil {
		return Relation{}, fmt.Errorf("relations: target invoice: %w", err)
	}

	actor := shared.ActorFromContext(ctx)
	rel, err := s.store.Create(ctx, Relation{
		SourceID:  sourceID,
		TargetID:  targetID,
		Kind:      kind,
		CreatedBy: actor.ID,
	})
	if err != nil {
		return Relation{}, err
	}

	if err := s.auditor.Record(ctx, audit.Entry{
		InvoiceID: sourceID,
		Action:    audit.ActionRelationCreated,
		ActorID:   actor.ID,
		ActorName: actor.Name,
		Comment:   fmt.Sprintf("%s -> %s (%s)", source.Number, target.Number, kind),
		At:        s.clock(),
	}); err != nil {
		return Relation{}, fmt.Errorf("relations: audit creation: %w", err)
	}

	if _, err := s.invoices.MarkLinked(ctx, sourceID, target.Number); err != nil {
		return Relation{}, err
	}
	if _, err := s.invoices.MarkLinked(ctx, targetID, source.Number); err != nil {
		return Relation{}, err
	}
	return rel, nil
}

// Delete removes a relation row.
func (s *Service) Delete(ctx context.Context, id int64) error {
	rel, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	actor := shared.ActorFromContext(ctx)
	return s.auditor.Record(ctx, audit.Entry{
		InvoiceID: rel.SourceID,
		Action:    audit.ActionRelationDeleted,
		ActorID:   actor.ID,
		ActorName: actor.Name,
		Comment:   fmt.Sprintf("relation %d (%s) removed", rel.ID, rel.Kind),
		At:        s.clock(),
	})
}

// ListByInvoice returns the edges naming the invoice.
func (s *Service) ListByInvoice(ctx context.Context, invoiceID int64) ([]Relation, error) {
	if _, err := s.invoices.Get(ctx, invoiceID); err != nil {
		return nil, err
	}
	return s.store.ListByInvoice(ctx, invoiceID)
}

// FindLinkableCandidates suggests invoices for manual linking. Concurrent
// identical searches collapse into one query; candidate lists are advisory
// and a shared result is as good as a private one.
func (s *Service) FindLinkableCandidates(ctx context.Context, invoiceID int64, phrase string, limit int) ([]Candidate, error) {
	subject, err := s.invoices.Get(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultCandidateLimit
	}
	key := fmt.Sprintf("%d|%s|%d", invoiceID, phrase, limit)
	result, err, _ := s.candidates.Do(key, func() (any, error) {
		return s.store.FindLinkableCandidates(ctx, subject.ID, subject.IssuedAt, phrase, limit)
	})
	if err != nil {
		return nil, err
	}
	return result.([]Candidate), nil
}
