package relations

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/kurnik-erp/kurnik-erp/internal/accounting/invoices"
	"github.com/kurnik-erp/kurnik-erp/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for invoice relations.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts the relation. The uq_invoice_relations constraint on
// (source_id, target_id, kind) turns a concurrent duplicate into ErrDuplicate
// instead of a second row.
func (r *Repository) Create(ctx context.Context, rel Relation) (Relation, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO invoice_relations (source_id, target_id, kind, created_by, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id, created_at`,
		rel.SourceID, rel.TargetID, string(rel.Kind), rel.CreatedBy,
	).Scan(&rel.ID, &rel.CreatedAt)
	if err != nil {
		if db.IsUniqueViolation(err, "uq_invoice_relations") {
			return Relation{}, ErrDuplicate
		}
		return Relation{}, err
	}
	return rel, nil
}

// Get fetches one relation.
func (r *Repository) Get(ctx context.Context, id int64) (Relation, error) {
	var rel Relation
	var kind string
	err := r.pool.QueryRow(ctx, `
		SELECT id, source_id, target_id, kind, created_by, created_at
		FROM invoice_relations WHERE id = $1`, id,
	).Scan(&rel.ID, &rel.SourceID, &rel.TargetID, &kind, &rel.CreatedBy, &rel.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Relation{}, ErrNotFound
	}
	if err != nil {
		return Relation{}, err
	}
	rel.Kind = Kind(kind)
	return rel, nil
}

// ListByInvoice returns relations naming the invoice as source or target.
func (r *Repository) ListByInvoice(ctx context.Context, invoiceID int64) ([]Relation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, source_id, target_id, kind, created_by, created_at
		FROM invoice_relations
		WHERE source_id = $1 OR target_id = $1
		ORDER BY created_at DESC, id DESC`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Relation
	for rows.Next() {
		var rel Relation
		var kind string
		if err := rows.Scan(&rel.ID, &rel.SourceID, &rel.TargetID, &kind, &rel.CreatedBy, &rel.CreatedAt); err != nil {
			return nil, err
		}
		rel.Kind = Kind(kind)
		out = append(out, rel)
	}
	return out, rows.Err()
}

// Delete removes the relation row. There is no soft delete; relations are
// immutable and removal is the only mutation.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM invoice_relations WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// FindLinkableCandidates returns invoices textually similar to the phrase,
// excluding the subject and anything already related to it, ordered by issue
// date proximity to the subject.
func (r *Repository) FindLinkableCandidates(ctx context.Context, subjectID int64, subjectIssuedAt time.Time, phrase string, limit int) ([]Candidate, error) {
	if limit <= 0 {
		limit = DefaultCandidateLimit
	}
	pattern := "%" + strings.TrimSpace(phrase) + "%"
	rows, err := r.pool.Query(ctx, `
		SELECT id, number, seller_name, buyer_name, issued_at, gross::text, direction
		FROM invoices
		WHERE id <> $1
		  AND id NOT IN (
			SELECT target_id FROM invoice_relations WHERE source_id = $1
			UNION
			SELECT source_id FROM invoice_relations WHERE target_id = $1
		  )
		  AND ($2 = '' OR seller_name ILIKE $3 OR buyer_name ILIKE $3 OR number ILIKE $3)
		ORDER BY ABS(EXTRACT(EPOCH FROM (issued_at - $4::timestamptz))) ASC, id ASC
		LIMIT $5`,
		subjectID, strings.TrimSpace(phrase), pattern, subjectIssuedAt, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		var c Candidate
		var gross, direction string
		if err := rows.Scan(&c.ID, &c.Number, &c.Seller, &c.Buyer, &c.IssuedAt, &gross, &direction); err != nil {
			return nil, err
		}
		if c.Gross, err = decimal.NewFromString(gross); err != nil {
			return nil, err
		}
		c.Direction = invoices.Direction(direction)
		out = append(out, c)
	}
	return out, rows.Err()
}
