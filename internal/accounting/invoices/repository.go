package invoices

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ErrNotFound indicates the invoice does not exist.
var ErrNotFound = errors.New("invoices: not found")

// Filter narrows invoice listings.
type Filter struct {
	Status          Status
	Direction       Direction
	Source          Source
	RequiresLinking *bool
	Search          string
	Limit           int
	Offset          int
}

// Repository provides PostgreSQL backed persistence for invoices.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const invoiceColumns = `
	id, external_number, number, issued_at, seller_tax_id, seller_name,
	buyer_tax_id, buyer_name, document_type, gross::text, net::text, vat::text,
	direction, source, status, payment_status, entity_id, assignee_id,
	location_id, module, item_summary, comment, requires_linking,
	linking_accepted, linking_remind_at, linking_reminders, related_number,
	created_at, updated_at`

// Get fetches a single invoice.
func (r *Repository) Get(ctx context.Context, id int64) (Invoice, error) {
	row := r.pool.QueryRow(ctx, fmt.Sprintf("SELECT %s FROM invoices WHERE id = $1", invoiceColumns), id)
	inv, err := scanInvoice(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Invoice{}, ErrNotFound
	}
	return inv, err
}

// List returns invoices matching the filter, newest issue date first.
func (r *Repository) List(ctx context.Context, filter Filter) ([]Invoice, error) {
	var conds []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.Status != "" {
		conds = append(conds, "status = "+arg(string(filter.Status)))
	}
	if filter.Direction != "" {
		conds = append(conds, "direction = "+arg(string(filter.Direction)))
	}
	if filter.Source != "" {
		conds = append(conds, "source = "+arg(string(filter.Source)))
	}
	if filter.RequiresLinking != nil {
		conds = append(conds, "requires_linking = "+arg(*filter.RequiresLinking))
	}
	if strings.TrimSpace(filter.Search) != "" {
		pattern := "%" + strings.TrimSpace(filter.Search) + "%"
		p := arg(pattern)
		conds = append(conds, fmt.Sprintf("(seller_name ILIKE %s OR buyer_name ILIKE %s OR number ILIKE %s)", p, p, p))
	}
	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := fmt.Sprintf(`SELECT %s FROM invoices %s ORDER BY issued_at DESC, id DESC LIMIT %s OFFSET %s`,
		invoiceColumns, where, arg(limit), arg(filter.Offset))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// Create inserts a manually entered invoice.
func (r *Repository) Create(ctx context.Context, inv Invoice) (Invoice, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO invoices (
			external_number, number, issued_at, seller_tax_id, seller_name,
			buyer_tax_id, buyer_name, document_type, gross, net, vat,
			direction, source, status, payment_status, entity_id, item_summary,
			comment, requires_linking, linking_accepted, linking_reminders,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, false, false, 0, NOW(), NOW())
		RETURNING id, created_at, updated_at`,
		inv.ExternalNumber, inv.Number, inv.IssuedAt, inv.SellerTaxID, inv.SellerName,
		inv.BuyerTaxID, inv.BuyerName, string(inv.DocumentType),
		inv.Gross.String(), inv.Net.String(), inv.VAT.String(),
		string(inv.Direction), string(inv.Source), string(inv.Status), string(inv.PaymentStatus),
		inv.EntityID, inv.ItemSummary, inv.Comment,
	).Scan(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return Invoice{}, err
	}
	return inv, nil
}

// InsertFromRegistry persists a registry invoice, relying on the
// uq_invoices_external_number constraint for deduplication. The boolean
// reports whether a row was actually inserted; an existing external number is
// skipped silently so re-running a sync never creates duplicates.
func (r *Repository) InsertFromRegistry(ctx context.Context, inv Invoice) (Invoice, bool, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO invoices (
			external_number, number, issued_at, seller_tax_id, seller_name,
			buyer_tax_id, buyer_name, document_type, gross, net, vat,
			direction, source, status, payment_status, item_summary, comment,
			requires_linking, linking_accepted, linking_reminders, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, '', false, false, 0, NOW(), NOW())
		ON CONFLICT ON CONSTRAINT uq_invoices_external_number DO NOTHING
		RETURNING id, created_at, updated_at`,
		inv.ExternalNumber, inv.Number, inv.IssuedAt, inv.SellerTaxID, inv.SellerName,
		inv.BuyerTaxID, inv.BuyerName, string(inv.DocumentType),
		inv.Gross.String(), inv.Net.String(), inv.VAT.String(),
		string(inv.Direction), string(inv.Source), string(inv.Status), string(inv.PaymentStatus),
		inv.ItemSummary,
	).Scan(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Invoice{}, false, nil
	}
	if err != nil {
		return Invoice{}, false, err
	}
	return inv, true, nil
}

// UpdateLinking persists the workflow fields the state machine owns: status,
// linking flags, reminder schedule and the related-invoice display reference.
func (r *Repository) UpdateLinking(ctx context.Context, inv Invoice) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE invoices SET status = $2, requires_linking = $3, linking_accepted = $4,
		       linking_remind_at = $5, linking_reminders = $6, related_number = $7,
		       updated_at = NOW()
		WHERE id = $1`,
		inv.ID, string(inv.Status), inv.RequiresLinking, inv.LinkingAccepted,
		inv.LinkingRemindAt, inv.LinkingReminders, inv.RelatedNumber)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateAssignments writes only the assignment fields that resolved; nil
// arguments leave the column untouched.
func (r *Repository) UpdateAssignments(ctx context.Context, id int64, assigneeID, locationID *int64, module *ModuleType) error {
	var moduleText *string
	if module != nil {
		m := string(*module)
		moduleText = &m
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE invoices SET
			assignee_id = COALESCE($2, assignee_id),
			location_id = COALESCE($3, location_id),
			module      = COALESCE($4, module),
			updated_at  = NOW()
		WHERE id = $1`,
		id, assigneeID, locationID, moduleText)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateStatus persists a bare status transition.
func (r *Repository) UpdateStatus(ctx context.Context, id int64, status Status) error {
	tag, err := r.pool.Exec(ctx, `UPDATE invoices SET status = $2, updated_at = NOW() WHERE id = $1`, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateComment rewrites the free-text comment.
func (r *Repository) UpdateComment(ctx context.Context, id int64, comment string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE invoices SET comment = $2, updated_at = NOW() WHERE id = $1`, id, comment)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanInvoice(row pgx.Row) (Invoice, error) {
	var inv Invoice
	var docType, direction, source, status, payment string
	var gross, net, vat string
	var module *string
	if err := row.Scan(
		&inv.ID, &inv.ExternalNumber, &inv.Number, &inv.IssuedAt, &inv.SellerTaxID, &inv.SellerName,
		&inv.BuyerTaxID, &inv.BuyerName, &docType, &gross, &net, &vat,
		&direction, &source, &status, &payment, &inv.EntityID, &inv.AssigneeID,
		&inv.LocationID, &module, &inv.ItemSummary, &inv.Comment, &inv.RequiresLinking,
		&inv.LinkingAccepted, &inv.LinkingRemindAt, &inv.LinkingReminders, &inv.RelatedNumber,
		&inv.CreatedAt, &inv.UpdatedAt,
	); err != nil {
		return Invoice{}, err
	}
	inv.DocumentType = DocumentType(docType)
	inv.Direction = Direction(direction)
	inv.Source = Source(source)
	inv.Status = Status(status)
	inv.PaymentStatus = PaymentStatus(payment)
	if module != nil {
		m := ModuleType(*module)
		inv.Module = &m
	}
	var err error
	if inv.Gross, err = decimal.NewFromString(gross); err != nil {
		return Invoice{}, fmt.Errorf("invoices: parse gross: %w", err)
	}
	if inv.Net, err = decimal.NewFromString(net); err != nil {
		return Invoice{}, fmt.Errorf("invoices: parse net: %w", err)
	}
	if inv.VAT, err = decimal.NewFromString(vat); err != nil {
		return Invoice{}, fmt.Errorf("invoices: parse vat: %w", err)
	}
	return inv, nil
}
