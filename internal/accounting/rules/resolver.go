package rules

import (
	"strings"

	"github.com/kurnik-erp/kurnik-erp/internal/accounting/invoices"
)

// Classification carries the per-family outcomes of one resolver pass. A nil
// field means no rule in that family matched; absence of a match is a normal
// outcome, not an error.
type Classification struct {
	AssigneeID *int64
	LocationID *int64
	Module     *invoices.ModuleType
}

// BuildHaystack concatenates the invoice's free text into one blob the
// keyword matcher runs against.
func BuildHaystack(inv invoices.Invoice) string {
	parts := make([]string, 0, 4)
	for _, p := range []string{inv.SellerName, inv.BuyerName, inv.ItemSummary, inv.Comment} {
		if strings.TrimSpace(p) != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// Resolve walks each family's active rules in ascending priority and picks
// the first match per family. The rule slices must already be ordered by
// priority; the store guarantees this.
func Resolve(inv invoices.Invoice, byFamily map[Family][]Rule) Classification {
	haystack := BuildHaystack(inv)
	var c Classification
	if rule := firstMatch(inv, haystack, byFamily[FamilyAssignee]); rule != nil {
		c.AssigneeID = rule.TargetUserID
	}
	if rule := firstMatch(inv, haystack, byFamily[FamilyLocation]); rule != nil {
		c.LocationID = rule.TargetLocationID
	}
	if rule := firstMatch(inv, haystack, byFamily[FamilyModule]); rule != nil {
		c.Module = rule.TargetModule
	}
	return c
}

func firstMatch(inv invoices.Invoice, haystack string, candidates []Rule) *Rule {
	for idx := range candidates {
		rule := candidates[idx]
		if !rule.Active {
			continue
		}
		// Inert rules can slip in through direct DB edits; skip without
		// evaluating so they never fire by accident.
		if rule.Inert() {
			continue
		}
		if !constraintsHold(inv, rule) {
			continue
		}
		if !Matches(haystack, rule.IncludeKeywords, rule.ExcludeKeywords, rule.Family.IncludeMode()) {
			continue
		}
		return &candidates[idx]
	}
	return nil
}

// constraintsHold checks the structured constraints. Each declared constraint
// must equal the invoice's corresponding value; undeclared constraints do not
// participate.
func constraintsHold(inv invoices.Invoice, rule Rule) bool {
	if rule.EntityID != nil {
		if inv.EntityID == nil || *inv.EntityID != *rule.EntityID {
			return false
		}
	}
	if rule.LocationID != nil {
		if inv.LocationID == nil || *inv.LocationID != *rule.LocationID {
			return false
		}
	}
	if rule.Direction != nil && *rule.Direction != inv.Direction {
		return false
	}
	return true
}
