// Package format renders amounts, percents and KPI measures as display
// strings.
package format

import (
	"fmt"
	"math"
	"strings"

	"github.com/iwvelando/feasibility-forecast/pkg/kpi"
	"github.com/iwvelando/feasibility-forecast/pkg/money"
)

// Currency returns an amount with the currency code and thousands
// separators (e.g., "-SAR 1,234.56"). An empty code gives NumericCurrency.
func Currency(amount float64, code string) string {
	if code == "" {
		return NumericCurrency(amount)
	}
	formatted := formatPositiveCurrency(math.Abs(amount))
	if money.Round(amount) < 0 {
		return "-" + code + " " + formatted
	}
	return code + " " + formatted
}

// NumericCurrency returns a currency string without a currency symbol but with separators (e.g., "-1,234.56").
func NumericCurrency(amount float64) string {
	sign := ""
	if money.Round(amount) < 0 {
		sign = "-"
	}
	formatted := formatPositiveCurrency(math.Abs(amount))
	return sign + formatted
}

func formatPositiveCurrency(value float64) string {
	formatted := money.String(value)
	parts := strings.SplitN(formatted, ".", 2)
	intPart := parts[0]
	decPart := "00"
	if len(parts) == 2 {
		decPart = parts[1]
	}

	if len(intPart) > 3 {
		var builder strings.Builder
		for i, digit := range intPart {
			if i > 0 && (len(intPart)-i)%3 == 0 {
				builder.WriteByte(',')
			}
			builder.WriteRune(digit)
		}
		intPart = builder.String()
	}

	return intPart + "." + decPart
}

// Percent renders a fraction as a percent with two decimals (0.153 is "15.30%").
func Percent(fraction float64) string {
	return fmt.Sprintf("%.2f%%", fraction*100)
}

// Measure renders a KPI measure with render, or the sentinel text of its
// status when it has no numeric value.
func Measure(m kpi.Measure, render func(float64) string) string {
	switch m.Status {
	case kpi.StatusOK:
		return render(m.Value)
	case kpi.StatusNotRecovered:
		return "not recovered"
	case kpi.StatusNonConvergent:
		return "non-convergent"
	case kpi.StatusZeroDenominator:
		return "n/a"
	default:
		return "undefined"
	}
}

// Months renders a fractional month count (e.g., "14.5 months").
func Months(v float64) string {
	return fmt.Sprintf("%.1f months", v)
}

// Multiple renders an equity multiple (e.g., "1.85x").
func Multiple(v float64) string {
	return fmt.Sprintf("%.2fx", v)
}
