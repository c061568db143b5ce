// Package money holds the single rounding rule applied to every amount that
// enters or leaves the ledger.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits kept for currency amounts.
const Scale = 2

// Zero is the canonical zero amount.
var Zero = decimal.Zero

// Round applies half-away-from-zero rounding to two decimal places.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Scale)
}

// Parse reads a textual amount and rounds it.
func Parse(value string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	return Round(d), nil
}

// FromNull returns the rounded value of a nullable amount and whether it was set.
func FromNull(n decimal.NullDecimal) (decimal.Decimal, bool) {
	if !n.Valid {
		return decimal.Zero, false
	}
	return Round(n.Decimal), true
}

// Sum adds amounts and rounds the total.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return Round(total)
}

// Clamp bounds d to the [lo, hi] range.
func Clamp(d, lo, hi decimal.Decimal) decimal.Decimal {
	if d.LessThan(lo) {
		return lo
	}
	if d.GreaterThan(hi) {
		return hi
	}
	return d
}

// String formats an amount with exactly two decimals.
func String(d decimal.Decimal) string {
	return Round(d).StringFixed(Scale)
}
