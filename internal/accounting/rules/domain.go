package rules

import (
	"errors"
	"strings"
	"time"

	"github.com/kurnik-erp/kurnik-erp/internal/accounting/invoices"
)

// Family distinguishes the three rule collections. Each family resolves its
// own assignment field and the families never see each other's outcome.
type Family string

const (
	FamilyAssignee Family = "ASSIGNEE"
	FamilyLocation Family = "LOCATION"
	FamilyModule   Family = "MODULE"
)

// IncludeMode returns the keyword conjunction mode for the family. Assignee
// rules require every include keyword; location and module rules fire on any
// single one. The asymmetry matches how the production rule sets are authored
// and must not be normalised without the rule owners signing off.
func (f Family) IncludeMode() MatchMode {
	if f == FamilyAssignee {
		return MatchAll
	}
	return MatchAny
}

// Valid reports whether the family is one of the known collections.
func (f Family) Valid() bool {
	switch f {
	case FamilyAssignee, FamilyLocation, FamilyModule:
		return true
	}
	return false
}

var (
	// ErrInertRule rejects rules that can never fire: no include keywords and
	// no structured constraint.
	ErrInertRule = errors.New("rules: rule has no include keywords and no constraint, it can never match")
	// ErrMissingTarget rejects rules without an assignment target.
	ErrMissingTarget = errors.New("rules: rule target is required")
	// ErrUnknownFamily rejects operations on an unrecognised rule family.
	ErrUnknownFamily = errors.New("rules: unknown rule family")
	// ErrNotFound indicates the rule does not exist.
	ErrNotFound = errors.New("rules: rule not found")
)

// Rule is a priority-ordered keyword predicate routing invoices to a target.
// Exactly one of the target fields is set, according to the family.
type Rule struct {
	ID              int64
	Family          Family
	Name            string
	Description     string
	Priority        int
	IncludeKeywords []string
	ExcludeKeywords []string

	// Structured constraints; nil means unconstrained. A declared constraint
	// that does not equal the invoice's value disqualifies the rule outright.
	EntityID   *int64
	LocationID *int64
	Direction  *invoices.Direction

	Active bool

	TargetUserID     *int64
	TargetLocationID *int64
	TargetModule     *invoices.ModuleType

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasConstraint reports whether any structured constraint is declared.
func (r Rule) HasConstraint() bool {
	return r.EntityID != nil || r.LocationID != nil || r.Direction != nil
}

// Inert reports whether the rule can never fire deterministically.
func (r Rule) Inert() bool {
	for _, kw := range r.IncludeKeywords {
		if strings.TrimSpace(kw) != "" {
			return false
		}
	}
	return !r.HasConstraint()
}

// Validate rejects rules that would be stored but never fire, and rules
// without a target for their family.
func (r Rule) Validate() error {
	if !r.Family.Valid() {
		return ErrUnknownFamily
	}
	if r.Inert() {
		return ErrInertRule
	}
	switch r.Family {
	case FamilyAssignee:
		if r.TargetUserID == nil {
			return ErrMissingTarget
		}
	case FamilyLocation:
		if r.TargetLocationID == nil {
			return ErrMissingTarget
		}
	case FamilyModule:
		if r.TargetModule == nil {
			return ErrMissingTarget
		}
	}
	return nil
}
