package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Prorate splits amount across weights in proportion to each weight.
//
// Work happens in whole cents: every share is first truncated, then the
// leftover cents go one at a time to the lines with the largest truncated
// remainder (lowest index wins a tie). The shares always sum to amount, and
// when amount <= sum(weights) no share exceeds its weight.
func Prorate(amount decimal.Decimal, weights []decimal.Decimal) ([]decimal.Decimal, error) {
	if amount.IsNegative() {
		return nil, NewValidation("amount", "cannot prorate a negative amount %s", amount)
	}
	if !isCents(amount) {
		return nil, NewValidation("amount", "%s has more than 2 decimal places", amount)
	}

	shares := make([]decimal.Decimal, len(weights))
	for i := range shares {
		shares[i] = decimal.Zero
	}

	var total decimal.Decimal
	for i, w := range weights {
		if w.IsNegative() {
			return nil, NewValidation("weights", "weight %d is negative (%s)", i+1, w)
		}
		total = total.Add(Round2(w))
	}
	if amount.IsZero() {
		return shares, nil
	}
	if total.IsZero() {
		return nil, NewValidation("amount", "cannot prorate %s over lines with no open value", amount)
	}

	amountCents := amount.Shift(2)
	totalCents := total.Shift(2)

	type remainder struct {
		index int
		rest  decimal.Decimal
	}
	cents := make([]int64, len(weights))
	rests := make([]remainder, 0, len(weights))
	var allocated int64

	for i, w := range weights {
		wc := Round2(w).Shift(2)
		if wc.IsZero() {
			continue
		}
		q, r := amountCents.Mul(wc).QuoRem(totalCents, 0)
		cents[i] = q.IntPart()
		allocated += cents[i]
		rests = append(rests, remainder{index: i, rest: r})
	}

	sort.SliceStable(rests, func(a, b int) bool {
		if !rests[a].rest.Equal(rests[b].rest) {
			return rests[a].rest.GreaterThan(rests[b].rest)
		}
		return rests[a].index < rests[b].index
	})

	residual := amountCents.IntPart() - allocated
	for k := int64(0); k < residual; k++ {
		cents[rests[k%int64(len(rests))].index]++
	}

	for i, c := range cents {
		shares[i] = decimal.New(c, -2)
	}
	return shares, nil
}

// SplitGross splits a tax-inclusive amount into its net and tax parts at taxPct.
// net + tax always equals gross.
func SplitGross(gross, taxPct decimal.Decimal) (net, tax decimal.Decimal) {
	if taxPct.IsZero() {
		return gross, decimal.Zero
	}
	tax = Round2(gross.Mul(taxPct).Div(hundred.Add(taxPct)))
	return gross.Sub(tax), tax
}
