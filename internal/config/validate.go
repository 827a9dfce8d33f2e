package config

import (
	"fmt"

	"github.com/iwvelando/feasibility-forecast/pkg/constants"
	"github.com/iwvelando/feasibility-forecast/pkg/validation"
)

// ValidateConfiguration performs general validation of the configuration and
// returns warnings. Project-level problems are reported per scenario by the
// engine; these are the ones only visible in the configuration itself.
func (c *Configuration) ValidateConfiguration() []string {
	var warnings []string

	if err := validation.ValidateOutputFormat(c.Output.Format); err != nil {
		warnings = append(warnings, fmt.Sprintf("Output format: %v", err))
	}
	if c.Output.Format == constants.OutputFormatXLSX && c.Output.File == "" {
		warnings = append(warnings, "Output format xlsx needs output.file to be set")
	}

	seen := make(map[string]bool)
	active := 0
	for i, s := range c.Scenarios {
		if s.Name == "" {
			warnings = append(warnings, fmt.Sprintf("Scenario %d has no name", i))
		}
		if seen[s.Name] {
			warnings = append(warnings, fmt.Sprintf("Scenario '%s' is defined more than once", s.Name))
		}
		seen[s.Name] = true
		if !s.Active {
			warnings = append(warnings, fmt.Sprintf("Scenario '%s' is inactive and will be skipped", s.Name))
			continue
		}
		active++
	}
	if len(c.Scenarios) > 0 && active == 0 {
		warnings = append(warnings, "No scenario is active")
	}

	if c.Comparison.Base != "" {
		if _, err := c.BaseScenario(); err != nil {
			warnings = append(warnings, fmt.Sprintf("Comparison: %v", err))
		}
	}

	if c.Project.Loan.Principal > 0 {
		if msg := validation.ValidateLoanMaturity(c.Project.Loan.StartPeriod, c.Project.Loan.TermYears, c.Project.HorizonMonths); msg != "" {
			warnings = append(warnings, msg)
		}
	}

	return warnings
}
