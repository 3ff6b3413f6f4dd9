package core

import "github.com/shopspring/decimal"

var (
	hundred = decimal.NewFromInt(100)
	oneCent = decimal.New(1, -2)
)

// Round2 rounds a monetary amount to 2 decimal places, half away from zero.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// RoundQty rounds a quantity to 4 decimal places.
func RoundQty(d decimal.Decimal) decimal.Decimal {
	return d.Round(4)
}

// isCents reports whether d has no more than 2 decimal places.
func isCents(d decimal.Decimal) bool {
	return d.Equal(d.Round(2))
}

// minDecimal returns the smaller of a and b.
func minDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}
