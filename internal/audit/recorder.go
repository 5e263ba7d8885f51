package audit

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Recorder appends entries to the invoice audit trail. Implementations never
// update or delete rows; storage failures propagate to the caller.
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
}

// PGRecorder writes entries into invoice_audit_entries.
type PGRecorder struct {
	pool *pgxpool.Pool
}

// NewPGRecorder returns a postgres backed Recorder.
func NewPGRecorder(pool *pgxpool.Pool) *PGRecorder {
	return &PGRecorder{pool: pool}
}

var _ Recorder = (*PGRecorder)(nil)

// Record persists the entry.
func (r *PGRecorder) Record(ctx context.Context, entry Entry) error {
	if r == nil || r.pool == nil {
		return errors.New("audit: recorder not initialised")
	}
	if entry.InvoiceID == 0 || entry.Action == "" {
		return errors.New("audit: entry requires invoice id and action")
	}
	at := entry.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO invoice_audit_entries (invoice_id, action, prev_status, new_status, actor_id, actor_name, comment, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.InvoiceID, string(entry.Action), entry.PrevStatus, entry.NewStatus, entry.ActorID, entry.ActorName, entry.Comment, at)
	return err
}
