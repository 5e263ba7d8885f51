package sync

import (
	"context"
	"time"
)

// RawInvoice is one invoice as the registry hands it over. Amounts stay
// strings until the orchestrator maps them; a malformed amount is a parse
// error that aborts the run rather than a silently corrupted total.
type RawInvoice struct {
	ExternalNumber string    `json:"external_number"`
	Number         string    `json:"number"`
	IssuedAt       time.Time `json:"issued_at"`
	SellerTaxID    string    `json:"seller_tax_id"`
	SellerName     string    `json:"seller_name"`
	BuyerTaxID     string    `json:"buyer_tax_id"`
	BuyerName      string    `json:"buyer_name"`
	DocumentType   string    `json:"document_type"`
	Gross          string    `json:"gross"`
	Net            string    `json:"net"`
	VAT            string    `json:"vat"`
	Direction      string    `json:"direction"`
	ItemSummary    string    `json:"item_summary"`
	OriginalNumber string    `json:"original_number,omitempty"`
}

// Page is one fetched batch.
type Page struct {
	Invoices []RawInvoice
	HasMore  bool
}

// RegistryClient fetches invoices from the national e-invoicing registry.
// Implementations retry transient failures internally; from the
// orchestrator's point of view a page either arrives or fails the run.
type RegistryClient interface {
	FetchInvoices(ctx context.Context, since time.Time, page int) (Page, error)
}
