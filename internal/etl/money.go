package etl

import (
	"strings"

	"github.com/shopspring/decimal"
)

// CleanMonetaryValue parses a statement cell into an exact decimal. The
// releases use the comma as decimal separator and, in some extracts, dots as
// thousands separators ("1.500,00"). When a comma is present every dot is a
// separator and is dropped; without a comma, a dot is the decimal point.
// Unparseable cells become zero, which the positivity filter then removes.
func CleanMonetaryValue(raw string) decimal.Decimal {
	s := strings.TrimSpace(raw)
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
