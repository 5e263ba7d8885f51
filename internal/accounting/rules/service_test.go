package rules

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kurnik-erp/kurnik-erp/internal/accounting/invoices"
	"github.com/kurnik-erp/kurnik-erp/internal/audit"
	"github.com/kurnik-erp/kurnik-erp/internal/shared"
)

type memoryStore struct {
	rules  map[Family][]Rule
	nextID int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{rules: make(map[Family][]Rule)}
}

func (s *memoryStore) ListActive(ctx context.Context, family Family) ([]Rule, error) {
	var out []Rule
	for _, r := range s.rules[family] {
		if r.Active {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memoryStore) List(ctx context.Context, family Family) ([]Rule, error) {
	return append([]Rule(nil), s.rules[family]...), nil
}

func (s *memoryStore) Get(ctx context.Context, family Family, id int64) (Rule, error) {
	for _, r := range s.rules[family] {
		if r.ID == id {
			return r, nil
		}
	}
	return Rule{}, ErrNotFound
}

func (s *memoryStore) Create(ctx context.Context, rule Rule) (Rule, error) {
	s.nextID++
	rule.ID = s.nextID
	s.rules[rule.Family] = append(s.rules[rule.Family], rule)
	return rule, nil
}

func (s *memoryStore) Update(ctx context.Context, rule Rule) (Rule, error) {
	for i, r := range s.rules[rule.Family] {
		if r.ID == rule.ID {
			s.rules[rule.Family][i] = rule
			return rule, nil
		}
	}
	return Rule{}, ErrNotFound
}

func (s *memoryStore) Delete(ctx context.Context, family Family, id int64) error {
	for i, r := range s.rules[family] {
		if r.ID == id {
			s.rules[family] = append(s.rules[family][:i], s.rules[family][i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

type memoryInvoices struct {
	byID    map[int64]invoices.Invoice
	updates []Classification
}

func newMemoryInvoices(invs ...invoices.Invoice) *memoryInvoices {
	m := &memoryInvoices{byID: make(map[int64]invoices.Invoice)}
	for _, inv := range invs {
		m.byID[inv.ID] = inv
	}
	return m
}

func (m *memoryInvoices) Get(ctx context.Context, id int64) (invoices.Invoice, error) {
	return m.byID[id], nil
}

func (m *memoryInvoices) UpdateAssignments(ctx context.Context, id int64, c Classification) error {
	m.updates = append(m.updates, c)
	inv := m.byID[id]
	if c.AssigneeID != nil {
		inv.AssigneeID = c.AssigneeID
	}
	if c.LocationID != nil {
		inv.LocationID = c.LocationID
	}
	if c.Module != nil {
		inv.Module = c.Module
	}
	m.byID[id] = inv
	return nil
}

type capturedAudit struct {
	entries []audit.Entry
}

func (c *capturedAudit) Record(ctx context.Context, e audit.Entry) error {
	c.entries = append(c.entries, e)
	return nil
}

func testService(store Store, invs InvoiceStore, rec audit.Recorder) *Service {
	return NewService(store, invs, rec, slog.Default())
}

func TestCreateRuleRejectsInert(t *testing.T) {
	svc := testService(newMemoryStore(), newMemoryInvoices(), &capturedAudit{})

	_, err := svc.CreateRule(context.Background(), Rule{
		Family:          FamilyModule,
		IncludeKeywords: []string{"", "  "},
		TargetModule:    module(invoices.ModuleFeed),
	})
	require.ErrorIs(t, err, ErrInertRule)

	_, err = svc.CreateRule(context.Background(), Rule{
		Family:          FamilyAssignee,
		IncludeKeywords: []string{"pasza"},
	})
	require.ErrorIs(t, err, ErrMissingTarget)
}

func TestUpdateRuleUnknownID(t *testing.T) {
	svc := testService(newMemoryStore(), newMemoryInvoices(), &capturedAudit{})

	_, err := svc.UpdateRule(context.Background(), Rule{
		ID:              99,
		Family:          FamilyModule,
		IncludeKeywords: []string{"gaz"},
		TargetModule:    module(invoices.ModuleGas),
	})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestClassifyInvoicePersistsAndAudits(t *testing.T) {
	store := newMemoryStore()
	_, err := store.Create(context.Background(), Rule{
		Family: FamilyModule, IncludeKeywords: []string{"pasza"}, Active: true,
		TargetModule: module(invoices.ModuleFeed),
	})
	require.NoError(t, err)
	_, err = store.Create(context.Background(), Rule{
		Family: FamilyAssignee, IncludeKeywords: []string{"pasza", "wipasz"}, Active: true,
		TargetUserID: i64(42),
	})
	require.NoError(t, err)

	invs := newMemoryInvoices(feedInvoice())
	rec := &capturedAudit{}
	svc := testService(store, invs, rec)

	ctx := shared.ContextWithActor(context.Background(), shared.Actor{ID: 5, Name: "anna"})
	c, err := svc.ClassifyInvoice(ctx, 7)
	require.NoError(t, err)
	require.NotNil(t, c.Module)
	require.Equal(t, invoices.ModuleFeed, *c.Module)
	require.NotNil(t, c.AssigneeID)
	require.Equal(t, int64(42), *c.AssigneeID)

	require.Len(t, invs.updates, 1)
	require.Len(t, rec.entries, 2)
	for _, e := range rec.entries {
		require.Equal(t, int64(7), e.InvoiceID)
		require.Equal(t, int64(5), e.ActorID)
		require.Equal(t, "anna", e.ActorName)
	}
}

func TestClassifyInvoiceIsIdempotent(t *testing.T) {
	store := newMemoryStore()
	_, err := store.Create(context.Background(), Rule{
		Family: FamilyModule, IncludeKeywords: []string{"pasza"}, Active: true,
		TargetModule: module(invoices.ModuleFeed),
	})
	require.NoError(t, err)

	invs := newMemoryInvoices(feedInvoice())
	rec := &capturedAudit{}
	svc := testService(store, invs, rec)

	_, err = svc.ClassifyInvoice(context.Background(), 7)
	require.NoError(t, err)
	_, err = svc.ClassifyInvoice(context.Background(), 7)
	require.NoError(t, err)

	// The second pass resolves the same target and writes nothing.
	require.Len(t, invs.updates, 1)
	require.Len(t, rec.entries, 1)
	require.Equal(t, audit.ActionModuleResolved, rec.entries[0].Action)
}

func TestClassifyUnmatchedFamilyLeavesFieldUntouched(t *testing.T) {
	existing := int64(9)
	inv := feedInvoice()
	inv.AssigneeID = &existing

	store := newMemoryStore()
	invs := newMemoryInvoices(inv)
	svc := testService(store, invs, &capturedAudit{})

	c, err := svc.ClassifyInvoice(context.Background(), inv.ID)
	require.NoError(t, err)
	require.Nil(t, c.AssigneeID)
	require.Empty(t, invs.updates)

	got, err := invs.Get(context.Background(), inv.ID)
	require.NoError(t, err)
	require.Equal(t, existing, *got.AssigneeID)
}

func TestClassifyFallsBackToSystemActor(t *testing.T) {
	store := newMemoryStore()
	_, err := store.Create(context.Background(), Rule{
		Family: FamilyLocation, IncludeKeywords: []string{"kowalski"}, Active: true,
		TargetLocationID: i64(3),
	})
	require.NoError(t, err)

	rec := &capturedAudit{}
	svc := testService(store, newMemoryInvoices(feedInvoice()), rec)

	_, err = svc.ClassifyInvoice(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, rec.entries, 1)
	require.Equal(t, shared.SystemActor.ID, rec.entries[0].ActorID)
	require.Equal(t, shared.SystemActor.Name, rec.entries[0].ActorName)
}
