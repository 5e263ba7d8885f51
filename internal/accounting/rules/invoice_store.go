package rules

import (
	"context"

	"github.com/kurnik-erp/kurnik-erp/internal/accounting/invoices"
)

// invoicePersistence is the invoice repository slice the adapter needs.
type invoicePersistence interface {
	Get(ctx context.Context, id int64) (invoices.Invoice, error)
	UpdateAssignments(ctx context.Context, id int64, assigneeID, locationID *int64, module *invoices.ModuleType) error
}

type invoiceStoreAdapter struct {
	repo invoicePersistence
}

// NewInvoiceStore adapts the invoice repository to the resolver's store.
func NewInvoiceStore(repo invoicePersistence) InvoiceStore {
	return &invoiceStoreAdapter{repo: repo}
}

func (a *invoiceStoreAdapter) Get(ctx context.Context, id int64) (invoices.Invoice, error) {
	return a.repo.Get(ctx, id)
}

func (a *invoiceStoreAdapter) UpdateAssignments(ctx context.Context, id int64, c Classification) error {
	return a.repo.UpdateAssignments(ctx, id, c.AssigneeID, c.LocationID, c.Module)
}
