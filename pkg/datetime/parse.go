// Package datetime provides date and time utility functions.
package datetime

import (
	"fmt"
	"time"

	"github.com/iwvelando/feasibility-forecast/pkg/constants"
)

const (
	// DateTimeLayout is the format expected for the project start date and
	// is also the month label format.
	DateTimeLayout = constants.DateTimeLayout
)

// MonthLabels returns one label per month of the horizon. With a start date
// the labels are calendar months (YYYY-MM); without one they are the month
// indices M0, M1, ...
func MonthLabels(startDate string, horizon int) ([]string, error) {
	labels := make([]string, horizon)
	if startDate == "" {
		for i := range labels {
			labels[i] = fmt.Sprintf("M%d", i)
		}
		return labels, nil
	}

	start, err := time.Parse(DateTimeLayout, startDate)
	if err != nil {
		return nil, fmt.Errorf("invalid start date %q: %w", startDate, err)
	}
	for i := range labels {
		labels[i] = start.AddDate(0, i, 0).Format(DateTimeLayout)
	}
	return labels, nil
}

// ValidateStartDate checks that a non-empty start date uses DateTimeLayout.
func ValidateStartDate(startDate string) error {
	if startDate == "" {
		return nil
	}
	if _, err := time.Parse(DateTimeLayout, startDate); err != nil {
		return fmt.Errorf("invalid start date %q, expected YYYY-MM: %w", startDate, err)
	}
	return nil
}
