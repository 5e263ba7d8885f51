package audit

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRepository reads the audit trail from postgres.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository constructs a repository.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

var _ Repository = (*PGRepository)(nil)

// ListByInvoice returns entries for one invoice, newest first.
func (r *PGRepository) ListByInvoice(ctx context.Context, invoiceID int64, offset, limit int) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, invoice_id, action, prev_status, new_status, actor_id, actor_name, comment, occurred_at
		FROM invoice_audit_entries
		WHERE invoice_id = $1
		ORDER BY occurred_at DESC, id DESC
		OFFSET $2 LIMIT $3`, invoiceID, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var action string
		if err := rows.Scan(&e.ID, &e.InvoiceID, &action, &e.PrevStatus, &e.NewStatus, &e.ActorID, &e.ActorName, &e.Comment, &e.At); err != nil {
			return nil, err
		}
		e.Action = Action(action)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
