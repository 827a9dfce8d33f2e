// Package validation provides configuration validation utilities.
package validation

import (
	"fmt"
)

// ValidateLoanMaturity warns when a loan's final term month falls outside
// the projection horizon.
func ValidateLoanMaturity(startPeriod, termYears, horizon int) string {
	maturity := startPeriod + termYears*12
	if maturity >= horizon {
		return fmt.Sprintf("Loan matures at month %d, beyond the %d month horizon - outstanding balance will be reported",
			maturity, horizon)
	}
	return ""
}

// ValidateItemSpan warns when an item starts or ends outside the horizon.
func ValidateItemSpan(itemName string, startPeriod, endPeriod, horizon int) []string {
	var warnings []string

	if startPeriod >= horizon {
		warnings = append(warnings, fmt.Sprintf("Item '%s' starts at or after the horizon (%d >= %d)",
			itemName, startPeriod, horizon))
	} else if endPeriod >= horizon {
		warnings = append(warnings, fmt.Sprintf("Item '%s' ends after the horizon (%d >= %d)",
			itemName, endPeriod, horizon))
	}

	return warnings
}

// ValidateRetentionRelease warns when retention withheld on an item is
// released after the horizon.
func ValidateRetentionRelease(itemName string, endPeriod, lag, horizon int, retentionPercent float64) string {
	if retentionPercent <= 0 {
		return ""
	}
	if release := endPeriod + lag; release >= horizon {
		return fmt.Sprintf("Retention on '%s' is released at month %d, beyond the %d month horizon",
			itemName, release, horizon)
	}
	return ""
}

// ValidateMonthWithinHorizon warns when a trigger month is outside the horizon.
func ValidateMonthWithinHorizon(what string, month, horizon int) string {
	if month < 0 || month >= horizon {
		return fmt.Sprintf("%s at month %d falls outside the %d month horizon", what, month, horizon)
	}
	return ""
}
