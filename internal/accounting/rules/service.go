package rules

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kurnik-erp/kurnik-erp/internal/accounting/invoices"
	"github.com/kurnik-erp/kurnik-erp/internal/audit"
	"github.com/kurnik-erp/kurnik-erp/internal/shared"
)

// InvoiceStore is the slice of invoice persistence the resolver needs.
type InvoiceStore interface {
	Get(ctx context.Context, id int64) (invoices.Invoice, error)
	UpdateAssignments(ctx context.Context, id int64, c Classification) error
}

// Service owns rule management and invoice classification.
type Service struct {
	store    Store
	invoices InvoiceStore
	auditor  audit.Recorder
	logger   *slog.Logger
	clock    func() time.Time
}

// NewService constructs the rules service.
func NewService(store Store, invoiceStore InvoiceStore, auditor audit.Recorder, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		invoices: invoiceStore,
		auditor:  auditor,
		logger:   logger,
		clock:    func() time.Time { return time.Now().UTC() },
	}
}

// CreateRule validates and persists a rule. Rules that can never fire are
// rejected here rather than stored inert.
func (s *Service) CreateRule(ctx context.Context, rule Rule) (Rule, error) {
	if err := rule.Validate(); err != nil {
		return Rule{}, err
	}
	return s.store.Create(ctx, rule)
}

// UpdateRule validates and rewrites a rule.
func (s *Service) UpdateRule(ctx context.Context, rule Rule) (Rule, error) {
	if err := rule.Validate(); err != nil {
		return Rule{}, err
	}
	if _, err := s.store.Get(ctx, rule.Family, rule.ID); err != nil {
		return Rule{}, err
	}
	return s.store.Update(ctx, rule)
}

// DeleteRule removes a rule.
func (s *Service) DeleteRule(ctx context.Context, family Family, id int64) error {
	return s.store.Delete(ctx, family, id)
}

// ListRules returns all rules of one family ordered by priority.
func (s *Service) ListRules(ctx context.Context, family Family) ([]Rule, error) {
	if !family.Valid() {
		return nil, ErrUnknownFamily
	}
	return s.store.List(ctx, family)
}

// GetRule fetches one rule.
func (s *Service) GetRule(ctx context.Context, family Family, id int64) (Rule, error) {
	return s.store.Get(ctx, family, id)
}

// activeRules reads every family's active rules. The snapshot lives for one
// classification pass only; operators edit rules between runs and a later
// pass must see those edits.
func (s *Service) activeRules(ctx context.Context) (map[Family][]Rule, error) {
	byFamily := make(map[Family][]Rule, 3)
	for _, family := range []Family{FamilyAssignee, FamilyLocation, FamilyModule} {
		rules, err := s.store.ListActive(ctx, family)
		if err != nil {
			return nil, fmt.Errorf("rules: load %s rules: %w", family, err)
		}
		byFamily[family] = rules
	}
	return byFamily, nil
}

// ClassifyInvoice resolves the assignee, cost location and module for one
// invoice and persists whichever fields newly matched. Re-running is
// idempotent: fields keep their value unless a rule resolves a different
// target, and an unmatched family leaves its field untouched.
func (s *Service) ClassifyInvoice(ctx context.Context, invoiceID int64) (Classification, error) {
	inv, err := s.invoices.Get(ctx, invoiceID)
	if err != nil {
		return Classification{}, err
	}
	byFamily, err := s.activeRules(ctx)
	if err != nil {
		return Classification{}, err
	}
	return s.classify(ctx, inv, byFamily)
}

// ClassifyWithRules classifies against an already-loaded rule snapshot. The
// sync orchestrator uses it to avoid re-reading rules for every invoice in
// one batch.
func (s *Service) ClassifyWithRules(ctx context.Context, inv invoices.Invoice, byFamily map[Family][]Rule) (Classification, error) {
	return s.classify(ctx, inv, byFamily)
}

// LoadActiveRules exposes a fresh per-batch snapshot for the orchestrator.
func (s *Service) LoadActiveRules(ctx context.Context) (map[Family][]Rule, error) {
	return s.activeRules(ctx)
}

func (s *Service) classify(ctx context.Context, inv invoices.Invoice, byFamily map[Family][]Rule) (Classification, error) {
	resolved := Resolve(inv, byFamily)

	var changes Classification
	type auditable struct {
		action  audit.Action
		comment string
	}
	var entries []auditable

	if resolved.AssigneeID != nil && (inv.AssigneeID == nil || *inv.AssigneeID != *resolved.AssigneeID) {
		changes.AssigneeID = resolved.AssigneeID
		entries = append(entries, auditable{audit.ActionAssigneeResolved, fmt.Sprintf("assignee %d", *resolved.AssigneeID)})
	}
	if resolved.LocationID != nil && (inv.LocationID == nil || *inv.LocationID != *resolved.LocationID) {
		changes.LocationID = resolved.LocationID
		entries = append(entries, auditable{audit.ActionLocationResolved, fmt.Sprintf("location %d", *resolved.LocationID)})
	}
	if resolved.Module != nil && (inv.Module == nil || *inv.Module != *resolved.Module) {
		changes.Module = resolved.Module
		entries = append(entries, auditable{audit.ActionModuleResolved, fmt.Sprintf("module %s", *resolved.Module)})
	}

	if len(entries) == 0 {
		return resolved, nil
	}

	if err := s.invoices.UpdateAssignments(ctx, inv.ID, changes); err != nil {
		return Classification{}, fmt.Errorf("rules: persist assignments: %w", err)
	}

	actor := shared.ActorFromContext(ctx)
	if actor.ID == 0 && actor.Name == "" {
		actor = shared.SystemActor
	}
	status := string(inv.Status)
	for _, e := range entries {
		err := s.auditor.Record(ctx, audit.Entry{
			InvoiceID:  inv.ID,
			Action:     e.action,
			PrevStatus: &status,
			NewStatus:  &status,
			ActorID:    actor.ID,
			ActorName:  actor.Name,
			Comment:    e.comment,
			At:         s.clock(),
		})
		if err != nil {
			return Classification{}, fmt.Errorf("rules: audit classification: %w", err)
		}
	}
	return resolved, nil
}
