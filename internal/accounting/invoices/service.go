package invoices

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kurnik-erp/kurnik-erp/internal/audit"
	"github.com/kurnik-erp/kurnik-erp/internal/integration"
	"github.com/kurnik-erp/kurnik-erp/internal/shared"
)

var (
	// ErrInvalidStatus rejects a transition the state machine does not allow.
	ErrInvalidStatus = errors.New("invoices: invalid status for operation")
	// ErrModuleUnresolved rejects acceptance before a module is assigned.
	ErrModuleUnresolved = errors.New("invoices: module must be assigned before acceptance")
)

// Store is the persistence surface the service depends on.
type Store interface {
	Get(ctx context.Context, id int64) (Invoice, error)
	List(ctx context.Context, filter Filter) ([]Invoice, error)
	Create(ctx context.Context, inv Invoice) (Invoice, error)
	UpdateLinking(ctx context.Context, inv Invoice) error
	UpdateStatus(ctx context.Context, id int64, status Status) error
	UpdateComment(ctx context.Context, id int64, comment string) error
}

// Service owns invoice commands and the linking workflow.
type Service struct {
	store      Store
	auditor    audit.Recorder
	dispatcher integration.Dispatcher
	logger     *slog.Logger
	clock      func() time.Time
}

// NewService constructs the invoice service.
func NewService(store Store, auditor audit.Recorder, dispatcher integration.Dispatcher, logger *slog.Logger) *Service {
	return &Service{
		store:      store,
		auditor:    auditor,
		dispatcher: dispatcher,
		logger:     logger,
		clock:      func() time.Time { return time.Now().UTC() },
	}
}

// Get fetches one invoice.
func (s *Service) Get(ctx context.Context, id int64) (Invoice, error) {
	return s.store.Get(ctx, id)
}

// List returns invoices matching the filter.
func (s *Service) List(ctx context.Context, filter Filter) ([]Invoice, error) {
	return s.store.List(ctx, filter)
}

// CreateManualInput describes an invoice entered by hand; manual entries
// carry no external registry number.
type CreateManualInput struct {
	Number       string
	IssuedAt     time.Time
	SellerTaxID  string
	SellerName   string
	BuyerTaxID   string
	BuyerName    string
	DocumentType DocumentType
	Gross        string
	Net          string
	VAT          string
	Direction    Direction
	EntityID     *int64
	ItemSummary  string
	Comment      string
}

// CreateManual persists a manually entered invoice. Documents whose type
// demands a counterpart enter the linking workflow immediately.
func (s *Service) CreateManual(ctx context.Context, input CreateManualInput) (Invoice, error) {
	inv := Invoice{
		Number:        input.Number,
		IssuedAt:      input.IssuedAt,
		SellerTaxID:   input.SellerTaxID,
		SellerName:    input.SellerName,
		BuyerTaxID:    input.BuyerTaxID,
		BuyerName:     input.BuyerName,
		DocumentType:  input.DocumentType,
		Direction:     input.Direction,
		Source:        SourceManual,
		Status:        StatusNew,
		PaymentStatus: PaymentUnpaid,
		EntityID:      input.EntityID,
		ItemSummary:   input.ItemSummary,
		Comment:       input.Comment,
	}
	var err error
	if inv.Gross, err = parseAmount(input.Gross); err != nil {
		return Invoice{}, err
	}
	if inv.Net, err = parseAmount(input.Net); err != nil {
		return Invoice{}, err
	}
	if inv.VAT, err = parseAmount(input.VAT); err != nil {
		return Invoice{}, err
	}

	created, err := s.store.Create(ctx, inv)
	if err != nil {
		return Invoice{}, err
	}
	if err := s.record(ctx, created.ID, audit.ActionInvoiceCreated, nil, statusPtr(created.Status), "manual entry"); err != nil {
		return Invoice{}, err
	}
	if created.DocumentType.NeedsCounterpart() {
		return s.MarkRequiresLinking(ctx, created.ID)
	}
	return created, nil
}

// MarkRequiresLinking puts the invoice into the linking workflow and
// schedules the first reminder. Terminal invoices are left untouched.
func (s *Service) MarkRequiresLinking(ctx context.Context, id int64) (Invoice, error) {
	inv, err := s.store.Get(ctx, id)
	if err != nil {
		return Invoice{}, err
	}
	prev := inv.Status
	if !inv.MarkRequiresLinking(s.clock()) {
		return inv, nil
	}
	if err := s.store.UpdateLinking(ctx, inv); err != nil {
		return Invoice{}, err
	}
	if err := s.record(ctx, inv.ID, audit.ActionRequiresLinking, statusPtr(prev), statusPtr(inv.Status), ""); err != nil {
		return Invoice{}, err
	}
	return inv, nil
}

// AcceptNoLinking records the operator decision that no counterpart document
// exists; the invoice leaves the linking workflow without a relation.
func (s *Service) AcceptNoLinking(ctx context.Context, id int64) (Invoice, error) {
	inv, err := s.store.Get(ctx, id)
	if err != nil {
		return Invoice{}, err
	}
	prev := inv.Status
	if !inv.AcceptNoLinking() {
		return inv, nil
	}
	if err := s.store.UpdateLinking(ctx, inv); err != nil {
		return Invoice{}, err
	}
	if err := s.record(ctx, inv.ID, audit.ActionNoLinkingAccepted, statusPtr(prev), statusPtr(inv.Status), ""); err != nil {
		return Invoice{}, err
	}
	return inv, nil
}

// PostponeReminder pushes the pending linking reminder forward.
func (s *Service) PostponeReminder(ctx context.Context, id int64, days int) (Invoice, error) {
	inv, err := s.store.Get(ctx, id)
	if err != nil {
		return Invoice{}, err
	}
	if err := inv.PostponeReminder(days, s.clock()); err != nil {
		return Invoice{}, err
	}
	if err := s.store.UpdateLinking(ctx, inv); err != nil {
		return Invoice{}, err
	}
	comment := fmt.Sprintf("postponed %d days, reminder %d", effectiveDays(days), inv.LinkingReminders)
	if err := s.record(ctx, inv.ID, audit.ActionReminderPostponed, statusPtr(inv.Status), statusPtr(inv.Status), comment); err != nil {
		return Invoice{}, err
	}
	return inv, nil
}

// MarkLinked resolves the linking workflow after a relation naming the
// invoice was recorded. RelatedNumber keeps the counterpart visible in
// listings without a join.
func (s *Service) MarkLinked(ctx context.Context, id int64, relatedNumber string) (Invoice, error) {
	inv, err := s.store.Get(ctx, id)
	if err != nil {
		return Invoice{}, err
	}
	prev := inv.Status
	changed := inv.MarkLinked()
	if relatedNumber != "" {
		inv.RelatedNumber = &relatedNumber
		changed = true
	}
	if !changed {
		return inv, nil
	}
	if err := s.store.UpdateLinking(ctx, inv); err != nil {
		return Invoice{}, err
	}
	if err := s.record(ctx, inv.ID, audit.ActionLinked, statusPtr(prev), statusPtr(inv.Status), relatedNumber); err != nil {
		return Invoice{}, err
	}
	return inv, nil
}

// Accept moves a NEW invoice into the terminal ACCEPTED state and hands it to
// the owning module.
func (s *Service) Accept(ctx context.Context, id int64) (Invoice, error) {
	inv, err := s.store.Get(ctx, id)
	if err != nil {
		return Invoice{}, err
	}
	if inv.Module == nil {
		return Invoice{}, ErrModuleUnresolved
	}
	prev := inv.Status
	if !inv.Accept() {
		return Invoice{}, ErrInvalidStatus
	}
	if err := s.store.UpdateStatus(ctx, inv.ID, inv.Status); err != nil {
		return Invoice{}, err
	}
	if err := s.record(ctx, inv.ID, audit.ActionInvoiceAccepted, statusPtr(prev), statusPtr(inv.Status), ""); err != nil {
		return Invoice{}, err
	}
	if s.dispatcher != nil {
		if err := s.dispatcher.HandleInvoiceAccepted(ctx, integration.InvoiceEvent{
			InvoiceID: inv.ID,
			Number:    inv.Number,
			Module:    string(*inv.Module),
		}); err != nil {
			return Invoice{}, fmt.Errorf("invoices: dispatch acceptance: %w", err)
		}
	}
	return inv, nil
}

// Reject moves a NEW invoice into the terminal REJECTED state.
func (s *Service) Reject(ctx context.Context, id int64, reason string) (Invoice, error) {
	inv, err := s.store.Get(ctx, id)
	if err != nil {
		return Invoice{}, err
	}
	prev := inv.Status
	if !inv.Reject() {
		return Invoice{}, ErrInvalidStatus
	}
	if err := s.store.UpdateStatus(ctx, inv.ID, inv.Status); err != nil {
		return Invoice{}, err
	}
	if err := s.record(ctx, inv.ID, audit.ActionInvoiceRejected, statusPtr(prev), statusPtr(inv.Status), reason); err != nil {
		return Invoice{}, err
	}
	if s.dispatcher != nil {
		var module string
		if inv.Module != nil {
			module = string(*inv.Module)
		}
		if err := s.dispatcher.HandleInvoiceRejected(ctx, integration.InvoiceEvent{
			InvoiceID: inv.ID,
			Number:    inv.Number,
			Module:    module,
		}); err != nil {
			return Invoice{}, fmt.Errorf("invoices: dispatch rejection: %w", err)
		}
	}
	return inv, nil
}

// UpdateComment rewrites the free-text comment.
func (s *Service) UpdateComment(ctx context.Context, id int64, comment string) (Invoice, error) {
	inv, err := s.store.Get(ctx, id)
	if err != nil {
		return Invoice{}, err
	}
	if inv.Comment == comment {
		return inv, nil
	}
	if err := s.store.UpdateComment(ctx, id, comment); err != nil {
		return Invoice{}, err
	}
	inv.Comment = comment
	if err := s.record(ctx, inv.ID, audit.ActionCommentUpdated, statusPtr(inv.Status), statusPtr(inv.Status), ""); err != nil {
		return Invoice{}, err
	}
	return inv, nil
}

func (s *Service) record(ctx context.Context, invoiceID int64, action audit.Action, prev, next *string, comment string) error {
	actor := shared.ActorFromContext(ctx)
	if actor.ID == 0 && actor.Name == "" {
		actor = shared.SystemActor
	}
	err := s.auditor.Record(ctx, audit.Entry{
		InvoiceID:  invoiceID,
		Action:     action,
		PrevStatus: prev,
		NewStatus:  next,
		ActorID:    actor.ID,
		ActorName:  actor.Name,
		Comment:    comment,
		At:         s.clock(),
	})
	if err != nil {
		return fmt.Errorf("invoices: audit %s: %w", action, err)
	}
	return nil
}

func statusPtr(s Status) *string {
	v := string(s)
	return &v
}

func effectiveDays(days int) int {
	if days <= 0 {
		return DefaultReminderInterval
	}
	return days
}
