// Package money holds the fixed-point arithmetic used for every stored
// amount: two fractional digits, totals always summed from already-rounded
// components.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Line is the total of a single line item: quantity times the captured unit
// price, rounded to two digits.
func Line(price decimal.Decimal, quantity int) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(quantity))).Round(2)
}

// Sum adds already-rounded amounts. It does not round the result again; each
// component is expected to carry at most two fractional digits.
func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// Parse reads an amount from its string form and normalizes it to two
// fractional digits.
func Parse(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return d.Round(2), nil
}

// Format renders an amount with exactly two fractional digits, the form the
// payment provider signs over.
func Format(d decimal.Decimal) string {
	return d.StringFixed(2)
}
