package core_test

import (
	"fmt"
	"testing"

	"crm-workflow/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decs(values ...string) []decimal.Decimal {
	out := make([]decimal.Decimal, len(values))
	for i, v := range values {
		out[i] = dec(v)
	}
	return out
}

func TestProrate(t *testing.T) {
	tests := []struct {
		name    string
		amount  string
		weights []string
		want    []string
	}{
		{"single line", "400", []string{"1000"}, []string{"400"}},
		{"even split", "100", []string{"50", "50"}, []string{"50", "50"}},
		{"residual cent to first on tie", "100", []string{"1", "1", "1"}, []string{"33.34", "33.33", "33.33"}},
		{"residual cent to largest remainder", "10", []string{"1", "2", "4"}, []string{"1.43", "2.86", "5.71"}},
		{"zero weight gets nothing", "30", []string{"10", "0", "20"}, []string{"10", "0", "20"}},
		{"full amount returns weights", "119.99", []string{"0.01", "19.98", "100.00"}, []string{"0.01", "19.98", "100"}},
		{"zero amount", "0", []string{"5", "7"}, []string{"0", "0"}},
		{"one cent over many lines", "0.01", []string{"3", "3", "3"}, []string{"0.01", "0", "0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shares, err := core.Prorate(dec(tt.amount), decs(tt.weights...))
			require.NoError(t, err)
			require.Len(t, shares, len(tt.want))
			for i, w := range tt.want {
				assertAmount(t, w, shares[i], "share %d", i)
			}
		})
	}
}

func TestProrate_SumsExactlyAndStaysWithinWeights(t *testing.T) {
	weights := decs("107.98", "0.07", "2499.99", "13.13", "42.00")
	var total decimal.Decimal
	for _, w := range weights {
		total = total.Add(w)
	}
	for _, amount := range []string{"0.01", "0.99", "1.00", "77.77", "1333.33", "2663.16", "2663.17"} {
		t.Run(amount, func(t *testing.T) {
			shares, err := core.Prorate(dec(amount), weights)
			require.NoError(t, err)
			var sum decimal.Decimal
			for i, s := range shares {
				assert.True(t, s.LessThanOrEqual(weights[i]), "share %s exceeds weight %s", s, weights[i])
				assert.False(t, s.IsNegative())
				assert.Equal(t, int32(-2), s.Exponent(), "share %s not in cents", s)
				sum = sum.Add(s)
			}
			assertAmount(t, amount, sum)
		})
	}
	require.True(t, total.Equal(dec("2663.17")), fmt.Sprintf("fixture total changed: %s", total))
}

func TestProrate_Rejects(t *testing.T) {
	_, err := core.Prorate(dec("-1"), decs("10"))
	assert.True(t, core.IsValidation(err))

	_, err = core.Prorate(dec("1.005"), decs("10"))
	assert.True(t, core.IsValidation(err))

	_, err = core.Prorate(dec("5"), decs("0", "0"))
	assert.True(t, core.IsValidation(err))

	_, err = core.Prorate(dec("5"), decs("10", "-1"))
	assert.True(t, core.IsValidation(err))
}

func TestSplitGross(t *testing.T) {
	tests := []struct {
		gross, taxPct, wantNet, wantTax string
	}{
		{"120", "20", "100", "20"},
		{"60", "20", "50", "10"},
		{"100", "0", "100", "0"},
		{"0.01", "19", "0.01", "0"},
		{"107.98", "19", "90.74", "17.24"},
	}
	for _, tt := range tests {
		t.Run(tt.gross+"@"+tt.taxPct, func(t *testing.T) {
			net, tax := core.SplitGross(dec(tt.gross), dec(tt.taxPct))
			assertAmount(t, tt.wantNet, net)
			assertAmount(t, tt.wantTax, tax)
			assert.True(t, net.Add(tax).Equal(dec(tt.gross)))
		})
	}
}
