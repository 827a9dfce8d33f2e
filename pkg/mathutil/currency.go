// Package mathutil provides common mathematical utility functions.
package mathutil

import (
	"math"

	"github.com/iwvelando/feasibility-forecast/pkg/constants"
)

// IsPositive checks if a value is positive (greater than tolerance)
func IsPositive(val float64) bool {
	return val > constants.CurrencyTolerance
}

// WithinTolerance checks if two values are within a specified tolerance
func WithinTolerance(val1, val2, tolerance float64) bool {
	return math.Abs(val1-val2) <= tolerance
}

// Min returns the minimum of two float64 values
func Min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// Max returns the maximum of two float64 values
func Max(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// SafeDivide divides numerator by denominator and reports whether the
// denominator was usable. A zero denominator yields (0, false).
func SafeDivide(numerator, denominator float64) (float64, bool) {
	if denominator == 0 {
		return 0, false
	}
	return numerator / denominator, true
}

// ApplyPercentage applies a percentage to a value
func ApplyPercentage(value, percentage float64) float64 {
	return value * (percentage / constants.PercentageMultiplier)
}

// Compound returns (1+rate)^periods.
func Compound(rate, periods float64) float64 {
	if rate == 0 || periods == 0 {
		return 1
	}
	return math.Pow(1+rate, periods)
}

// AnnualToMonthlyRate converts an annual percentage into the equivalent
// compounded monthly fraction.
func AnnualToMonthlyRate(annualPercent float64) float64 {
	if annualPercent == 0 {
		return 0
	}
	return math.Pow(1+annualPercent/constants.PercentageMultiplier, 1.0/constants.MonthsPerYear) - 1
}

// MonthlyToAnnualRate converts a monthly fraction into an annual fraction.
func MonthlyToAnnualRate(monthly float64) float64 {
	return math.Pow(1+monthly, constants.MonthsPerYear) - 1
}
