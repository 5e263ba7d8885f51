package invoices

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// parseAmount parses a monetary amount from its canonical string form.
// Amounts travel as strings on the API boundary so no caller ever feeds the
// engine a binary float.
func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invoices: parse amount %q: %w", s, err)
	}
	return d, nil
}
