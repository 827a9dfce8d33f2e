// Package money converts engine amounts to exact decimals for rounding,
// percentage changes and display.
package money

import (
	"github.com/iwvelando/feasibility-forecast/pkg/constants"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Decimal returns v rounded to whole cents.
func Decimal(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(constants.CurrencyDecimalPlaces)
}

// Round rounds v to whole cents, half away from zero.
func Round(v float64) float64 {
	return Decimal(v).InexactFloat64()
}

// String formats v with exactly two decimals, e.g. "-1234.50".
func String(v float64) string {
	return Decimal(v).StringFixed(constants.CurrencyDecimalPlaces)
}

// PercentChange returns (alt-base)/|base|*100 rounded to places decimals.
// ok is false when base is zero.
func PercentChange(base, alt decimal.Decimal, places int32) (decimal.Decimal, bool) {
	if base.IsZero() {
		return decimal.Zero, false
	}
	return alt.Sub(base).Div(base.Abs()).Mul(hundred).Round(places), true
}
