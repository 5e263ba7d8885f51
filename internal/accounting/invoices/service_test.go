package invoices

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kurnik-erp/kurnik-erp/internal/audit"
	"github.com/kurnik-erp/kurnik-erp/internal/integration"
	"github.com/kurnik-erp/kurnik-erp/internal/shared"
)

type memoryStore struct {
	byID   map[int64]Invoice
	nextID int64
}

func newMemoryStore(invs ...Invoice) *memoryStore {
	s := &memoryStore{byID: make(map[int64]Invoice)}
	for _, inv := range invs {
		s.byID[inv.ID] = inv
		if inv.ID > s.nextID {
			s.nextID = inv.ID
		}
	}
	return s
}

func (s *memoryStore) Get(ctx context.Context, id int64) (Invoice, error) {
	inv, ok := s.byID[id]
	if !ok {
		return Invoice{}, ErrNotFound
	}
	return inv, nil
}

func (s *memoryStore) List(ctx context.Context, filter Filter) ([]Invoice, error) {
	var out []Invoice
	for _, inv := range s.byID {
		out = append(out, inv)
	}
	return out, nil
}

func (s *memoryStore) Create(ctx context.Context, inv Invoice) (Invoice, error) {
	s.nextID++
	inv.ID = s.nextID
	s.byID[inv.ID] = inv
	return inv, nil
}

func (s *memoryStore) UpdateLinking(ctx context.Context, inv Invoice) error {
	s.byID[inv.ID] = inv
	return nil
}

func (s *memoryStore) UpdateStatus(ctx context.Context, id int64, status Status) error {
	inv := s.byID[id]
	inv.Status = status
	s.byID[id] = inv
	return nil
}

func (s *memoryStore) UpdateComment(ctx context.Context, id int64, comment string) error {
	inv := s.byID[id]
	inv.Comment = comment
	s.byID[id] = inv
	return nil
}

type capturedAudit struct {
	entries []audit.Entry
}

func (c *capturedAudit) Record(ctx context.Context, e audit.Entry) error {
	c.entries = append(c.entries, e)
	return nil
}

type capturedDispatch struct {
	accepted []integration.InvoiceEvent
	rejected []integration.InvoiceEvent
}

func (c *capturedDispatch) HandleInvoiceAccepted(ctx context.Context, e integration.InvoiceEvent) error {
	c.accepted = append(c.accepted, e)
	return nil
}

func (c *capturedDispatch) HandleInvoiceRejected(ctx context.Context, e integration.InvoiceEvent) error {
	c.rejected = append(c.rejected, e)
	return nil
}

func newTestService(store Store) (*Service, *capturedAudit, *capturedDispatch) {
	rec := &capturedAudit{}
	disp := &capturedDispatch{}
	return NewService(store, rec, disp, slog.Default()), rec, disp
}

func TestCreateManualVATInvoice(t *testing.T) {
	store := newMemoryStore()
	svc, rec, _ := newTestService(store)

	inv, err := svc.CreateManual(context.Background(), CreateManualInput{
		Number:       "FV/2026/08/001",
		IssuedAt:     time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC),
		SellerName:   "Wipasz S.A.",
		BuyerName:    "Ferma Drobiu Kowalski",
		DocumentType: DocTypeVAT,
		Direction:    DirectionPurchase,
		Gross:        "98400.00",
		Net:          "80000.00",
		VAT:          "18400.00",
	})
	require.NoError(t, err)
	require.Equal(t, StatusNew, inv.Status)
	require.Equal(t, SourceManual, inv.Source)
	require.Nil(t, inv.ExternalNumber)
	require.False(t, inv.RequiresLinking)
	require.Equal(t, "98400", inv.Gross.String())

	require.Len(t, rec.entries, 1)
	require.Equal(t, audit.ActionInvoiceCreated, rec.entries[0].Action)
}

func TestCreateManualCorrectionEntersLinkingWorkflow(t *testing.T) {
	store := newMemoryStore()
	svc, rec, _ := newTestService(store)

	inv, err := svc.CreateManual(context.Background(), CreateManualInput{
		Number:       "KOR/2026/08/002",
		DocumentType: DocTypeCorrection,
		Direction:    DirectionPurchase,
		Gross:        "-2460.00",
		Net:          "-2000.00",
		VAT:          "-460.00",
	})
	require.NoError(t, err)
	require.Equal(t, StatusRequiresLinking, inv.Status)
	require.True(t, inv.RequiresLinking)
	require.NotNil(t, inv.LinkingRemindAt)

	require.Len(t, rec.entries, 2)
	require.Equal(t, audit.ActionInvoiceCreated, rec.entries[0].Action)
	require.Equal(t, audit.ActionRequiresLinking, rec.entries[1].Action)
}

func TestCreateManualRejectsBadAmount(t *testing.T) {
	svc, _, _ := newTestService(newMemoryStore())

	_, err := svc.CreateManual(context.Background(), CreateManualInput{
		Number: "FV/1", DocumentType: DocTypeVAT, Direction: DirectionPurchase,
		Gross: "ninety",
	})
	require.Error(t, err)
}

func TestAcceptRequiresModule(t *testing.T) {
	store := newMemoryStore(Invoice{ID: 1, Number: "FV/1", Status: StatusNew})
	svc, _, disp := newTestService(store)

	_, err := svc.Accept(context.Background(), 1)
	require.ErrorIs(t, err, ErrModuleUnresolved)
	require.Empty(t, disp.accepted)
}

func TestAcceptDispatchesToModule(t *testing.T) {
	m := ModuleFeed
	store := newMemoryStore(Invoice{ID: 1, Number: "FV/1", Status: StatusNew, Module: &m})
	svc, rec, disp := newTestService(store)

	ctx := shared.ContextWithActor(context.Background(), shared.Actor{ID: 3, Name: "jan"})
	inv, err := svc.Accept(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, StatusAccepted, inv.Status)

	require.Len(t, disp.accepted, 1)
	require.Equal(t, "FEED", disp.accepted[0].Module)
	require.Len(t, rec.entries, 1)
	require.Equal(t, int64(3), rec.entries[0].ActorID)
	require.Equal(t, "NEW", *rec.entries[0].PrevStatus)
	require.Equal(t, "ACCEPTED", *rec.entries[0].NewStatus)

	// Terminal state, second acceptance fails.
	_, err = svc.Accept(ctx, 1)
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestAcceptRejectedWhileAwaitingLink(t *testing.T) {
	m := ModuleGas
	store := newMemoryStore(Invoice{ID: 1, Status: StatusRequiresLinking, RequiresLinking: true, Module: &m})
	svc, _, _ := newTestService(store)

	_, err := svc.Accept(context.Background(), 1)
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestRejectRecordsReason(t *testing.T) {
	store := newMemoryStore(Invoice{ID: 1, Number: "FV/1", Status: StatusNew})
	svc, rec, disp := newTestService(store)

	inv, err := svc.Reject(context.Background(), 1, "duplicate of FV/0")
	require.NoError(t, err)
	require.Equal(t, StatusRejected, inv.Status)
	require.Len(t, disp.rejected, 1)
	require.Len(t, rec.entries, 1)
	require.Equal(t, audit.ActionInvoiceRejected, rec.entries[0].Action)
	require.Equal(t, "duplicate of FV/0", rec.entries[0].Comment)
	require.Equal(t, shared.SystemActor.Name, rec.entries[0].ActorName)
}

func TestMarkLinkedStoresRelatedNumber(t *testing.T) {
	inv := Invoice{ID: 1, Number: "KOR/1", Status: StatusNew, DocumentType: DocTypeCorrection}
	inv.MarkRequiresLinking(day0)
	store := newMemoryStore(inv)
	svc, rec, _ := newTestService(store)

	linked, err := svc.MarkLinked(context.Background(), 1, "FV/2026/07/089")
	require.NoError(t, err)
	require.Equal(t, StatusNew, linked.Status)
	require.False(t, linked.RequiresLinking)
	require.NotNil(t, linked.RelatedNumber)
	require.Equal(t, "FV/2026/07/089", *linked.RelatedNumber)
	require.Len(t, rec.entries, 1)
	require.Equal(t, audit.ActionLinked, rec.entries[0].Action)

	persisted, err := store.Get(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, StatusNew, persisted.Status)
}

func TestPostponeReminderWithoutPending(t *testing.T) {
	store := newMemoryStore(Invoice{ID: 1, Status: StatusNew})
	svc, _, _ := newTestService(store)

	_, err := svc.PostponeReminder(context.Background(), 1, 5)
	require.ErrorIs(t, err, ErrNoPendingReminder)
}

func TestPostponeReminderAdvancesAndCounts(t *testing.T) {
	inv := Invoice{ID: 1, Status: StatusNew, DocumentType: DocTypeSettlement}
	inv.MarkRequiresLinking(day0)
	store := newMemoryStore(inv)
	svc, rec, _ := newTestService(store)

	got, err := svc.PostponeReminder(context.Background(), 1, 7)
	require.NoError(t, err)
	require.Equal(t, 1, got.LinkingReminders)
	require.Equal(t, day0.AddDate(0, 0, DefaultReminderInterval+7), *got.LinkingRemindAt)
	require.Len(t, rec.entries, 1)
	require.Equal(t, audit.ActionReminderPostponed, rec.entries[0].Action)
}

func TestUpdateCommentNoOpWhenUnchanged(t *testing.T) {
	store := newMemoryStore(Invoice{ID: 1, Status: StatusNew, Comment: "ok"})
	svc, rec, _ := newTestService(store)

	_, err := svc.UpdateComment(context.Background(), 1, "ok")
	require.NoError(t, err)
	require.Empty(t, rec.entries)

	got, err := svc.UpdateComment(context.Background(), 1, "sprawdzone")
	require.NoError(t, err)
	require.Equal(t, "sprawdzone", got.Comment)
	require.Len(t, rec.entries, 1)
}

func TestParseAmountEmptyIsZero(t *testing.T) {
	v, err := parseAmount("")
	require.NoError(t, err)
	require.True(t, v.IsZero())
}
