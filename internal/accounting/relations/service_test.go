package relations

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kurnik-erp/kurnik-erp/internal/accounting/invoices"
	"github.com/kurnik-erp/kurnik-erp/internal/audit"
	"github.com/kurnik-erp/kurnik-erp/internal/shared"
)

type memoryStore struct {
	relations map[int64]Relation
	nextID    int64
	searches  int
	found     []Candidate
}

func newMemoryStore() *memoryStore {
	return &memoryStore{relations: make(map[int64]Relation)}
}

func (s *memoryStore) Create(ctx context.Context, rel Relation) (Relation, error) {
	for _, existing := range s.relations {
		if existing.SourceID == rel.SourceID && existing.TargetID == rel.TargetID && existing.Kind == rel.Kind {
			return Relation{}, ErrDuplicate
		}
	}
	s.nextID++
	rel.ID = s.nextID
	rel.CreatedAt = time.Now().UTC()
	s.relations[rel.ID] = rel
	return rel, nil
}

func (s *memoryStore) Get(ctx context.Context, id int64) (Relation, error) {
	rel, ok := s.relations[id]
	if !ok {
		return Relation{}, ErrNotFound
	}
	return rel, nil
}

func (s *memoryStore) ListByInvoice(ctx context.Context, invoiceID int64) ([]Relation, error) {
	var out []Relation
	for _, rel := range s.relations {
		if rel.SourceID == invoiceID || rel.TargetID == invoiceID {
			out = append(out, rel)
		}
	}
	return out, nil
}

func (s *memoryStore) Delete(ctx context.Context, id int64) error {
	if _, ok := s.relations[id]; !ok {
		return ErrNotFound
	}
	delete(s.relations, id)
	return nil
}

func (s *memoryStore) FindLinkableCandidates(ctx context.Context, subjectID int64, subjectIssuedAt time.Time, phrase string, limit int) ([]Candidate, error) {
	s.searches++
	if limit < len(s.found) {
		return s.found[:limit], nil
	}
	return s.found, nil
}

type memoryInvoices struct {
	byID   map[int64]invoices.Invoice
	linked []string
}

func newMemoryInvoices(invs ...invoices.Invoice) *memoryInvoices {
	m := &memoryInvoices{byID: make(map[int64]invoices.Invoice)}
	for _, inv := range invs {
		m.byID[inv.ID] = inv
	}
	return m
}

var errInvoiceNotFound = errors.New("invoice not found")

func (m *memoryInvoices) Get(ctx context.Context, id int64) (invoices.Invoice, error) {
	inv, ok := m.byID[id]
	if !ok {
		return invoices.Invoice{}, errInvoiceNotFound
	}
	return inv, nil
}

func (m *memoryInvoices) MarkLinked(ctx context.Context, id int64, relatedNumber string) (invoices.Invoice, error) {
	inv, ok := m.byID[id]
	if !ok {
		return invoices.Invoice{}, errInvoiceNotFound
	}
	inv.MarkLinked()
	inv.RelatedNumber = &relatedNumber
	m.byID[id] = inv
	m.linked = append(m.linked, relatedNumber)
	return inv, nil
}

type capturedAudit struct {
	entries []audit.Entry
}

func (c *capturedAudit) Record(ctx context.Context, e audit.Entry) error {
	c.entries = append(c.entries, e)
	return nil
}

func correction(id int64, number string) invoices.Invoice {
	inv := invoices.Invoice{ID: id, Number: number, Status: invoices.StatusNew, DocumentType: invoices.DocTypeCorrection}
	inv.MarkRequiresLinking(time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC))
	return inv
}

func TestCreateRelationLinksBothEndpoints(t *testing.T) {
	store := newMemoryStore()
	invs := newMemoryInvoices(
		correction(1, "KOR/2026/08/003"),
		invoices.Invoice{ID: 2, Number: "FV/2026/07/089", Status: invoices.StatusNew, DocumentType: invoices.DocTypeVAT},
	)
	rec := &capturedAudit{}
	svc := NewService(store, invs, rec, slog.Default())

	ctx := shared.ContextWithActor(context.Background(), shared.Actor{ID: 8, Name: "ola"})
	rel, err := svc.Create(ctx, 1, 2, KindCorrectionOf)
	require.NoError(t, err)
	require.Equal(t, KindCorrectionOf, rel.Kind)
	require.Equal(t, int64(8), rel.CreatedBy)

	source, err := invs.Get(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, invoices.StatusNew, source.Status)
	require.False(t, source.RequiresLinking)
	require.Equal(t, "FV/2026/07/089", *source.RelatedNumber)

	target, err := invs.Get(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, "KOR/2026/08/003", *target.RelatedNumber)

	require.Len(t, rec.entries, 1)
	require.Equal(t, audit.ActionRelationCreated, rec.entries[0].Action)
	require.Equal(t, int64(1), rec.entries[0].InvoiceID)
}

func TestCreateRelationValidations(t *testing.T) {
	store := newMemoryStore()
	invs := newMemoryInvoices(correction(1, "KOR/1"), invoices.Invoice{ID: 2, Number: "FV/1", Status: invoices.StatusNew})
	svc := NewService(store, invs, &capturedAudit{}, slog.Default())
	ctx := context.Background()

	_, err := svc.Create(ctx, 1, 2, Kind("RELATED_TO"))
	require.ErrorIs(t, err, ErrUnknownKind)

	_, err = svc.Create(ctx, 1, 1, KindCorrectionOf)
	require.ErrorIs(t, err, ErrSelfRelation)

	_, err = svc.Create(ctx, 1, 99, KindCorrectionOf)
	require.ErrorIs(t, err, errInvoiceNotFound)

	_, err = svc.Create(ctx, 99, 2, KindCorrectionOf)
	require.ErrorIs(t, err, errInvoiceNotFound)
}

func TestCreateRelationDuplicate(t *testing.T) {
	store := newMemoryStore()
	invs := newMemoryInvoices(correction(1, "KOR/1"), invoices.Invoice{ID: 2, Number: "FV/1", Status: invoices.StatusNew})
	svc := NewService(store, invs, &capturedAudit{}, slog.Default())
	ctx := context.Background()

	_, err := svc.Create(ctx, 1, 2, KindCorrectionOf)
	require.NoError(t, err)

	_, err = svc.Create(ctx, 1, 2, KindCorrectionOf)
	require.ErrorIs(t, err, ErrDuplicate)

	// A different kind between the same pair is a distinct edge.
	_, err = svc.Create(ctx, 1, 2, KindAdvanceFor)
	require.NoError(t, err)
}

func TestDeleteRelationAudits(t *testing.T) {
	store := newMemoryStore()
	invs := newMemoryInvoices(correction(1, "KOR/1"), invoices.Invoice{ID: 2, Number: "FV/1", Status: invoices.StatusNew})
	rec := &capturedAudit{}
	svc := NewService(store, invs, rec, slog.Default())
	ctx := context.Background()

	rel, err := svc.Create(ctx, 1, 2, KindFinalFor)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, rel.ID))
	require.ErrorIs(t, svc.Delete(ctx, rel.ID), ErrNotFound)
	require.Equal(t, audit.ActionRelationDeleted, rec.entries[len(rec.entries)-1].Action)
}

func TestListByInvoiceUnknownInvoice(t *testing.T) {
	svc := NewService(newMemoryStore(), newMemoryInvoices(), &capturedAudit{}, slog.Default())
	_, err := svc.ListByInvoice(context.Background(), 42)
	require.ErrorIs(t, err, errInvoiceNotFound)
}

func TestFindLinkableCandidatesDefaultsLimit(t *testing.T) {
	store := newMemoryStore()
	store.found = []Candidate{{ID: 2, Number: "FV/1"}}
	invs := newMemoryInvoices(correction(1, "KOR/1"))
	svc := NewService(store, invs, &capturedAudit{}, slog.Default())

	got, err := svc.FindLinkableCandidates(context.Background(), 1, "wipasz", 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, 1, store.searches)

	_, err = svc.FindLinkableCandidates(context.Background(), 99, "wipasz", 5)
	require.ErrorIs(t, err, errInvoiceNotFound)
}
