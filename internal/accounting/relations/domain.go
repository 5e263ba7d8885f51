package relations

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kurnik-erp/kurnik-erp/internal/accounting/invoices"
)

// Kind types the directed edge between two invoices.
type Kind string

const (
	KindCorrectionOf Kind = "CORRECTION_OF"
	KindAdvanceFor   Kind = "ADVANCE_FOR"
	KindFinalFor     Kind = "FINAL_FOR"
)

// Valid reports whether the kind is recognised.
func (k Kind) Valid() bool {
	switch k {
	case KindCorrectionOf, KindAdvanceFor, KindFinalFor:
		return true
	}
	return false
}

var (
	// ErrDuplicate indicates the (source, target, kind) triple already exists.
	ErrDuplicate = errors.New("relations: relation already exists")
	// ErrNotFound indicates the relation does not exist.
	ErrNotFound = errors.New("relations: relation not found")
	// ErrUnknownKind rejects an unrecognised relation kind.
	ErrUnknownKind = errors.New("relations: unknown relation kind")
	// ErrSelfRelation rejects an invoice related to itself.
	ErrSelfRelation = errors.New("relations: invoice cannot relate to itself")
)

// Relation is an immutable directed edge. Rows are only ever inserted or
// deleted whole, never mutated.
type Relation struct {
	ID        int64
	SourceID  int64
	TargetID  int64
	Kind      Kind
	CreatedBy int64
	CreatedAt time.Time
}

// DefaultCandidateLimit caps linkable-candidate searches.
const DefaultCandidateLimit = 20

// Candidate is one invoice suggested for manual linking.
type Candidate struct {
	ID        int64
	Number    string
	Seller    string
	Buyer     string
	IssuedAt  time.Time
	Gross     decimal.Decimal
	Direction invoices.Direction
}
