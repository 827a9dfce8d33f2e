// Package testutil provides common utility functions for testing.
package testutil

import (
	"github.com/iwvelando/feasibility-forecast/pkg/compliance"
	"github.com/iwvelando/feasibility-forecast/pkg/engine"
	"github.com/iwvelando/feasibility-forecast/pkg/lineitem"
	"github.com/iwvelando/feasibility-forecast/pkg/loans"
)

// FindScenario finds a scenario by name in the results slice.
// Returns the first result with that name, nil otherwise.
func FindScenario(results []*engine.ScenarioResult, name string) *engine.ScenarioResult {
	for _, result := range results {
		if result != nil && result.Scenario == name {
			return result
		}
	}
	return nil
}

// SampleInput returns a small mixed-use project: a plot, a year of
// construction with retention, apartment sales and a financed gap.
func SampleInput() engine.Input {
	in := engine.DefaultInput()
	in.Project = engine.Project{Name: "Sample", Currency: "SAR", StartDate: "2025-01"}
	in.HorizonMonths = 36
	in.DiscountRate = 8
	in.LineItems = []lineitem.LineItem{
		{Name: "Plot", Category: lineitem.CategoryLand, BaseCost: 1000000, StartPeriod: 0, EndPeriod: 0},
		{Name: "Build", Category: lineitem.CategoryConstruction, BaseCost: 2400000, StartPeriod: 1, EndPeriod: 12, RetentionPercent: 5, RetentionReleaseLag: 3},
		{Name: "Design", Category: lineitem.CategorySoft, BaseCost: 120000, StartPeriod: 0, EndPeriod: 2},
	}
	in.SaleLines = []lineitem.SaleLine{
		{Name: "Apartments", Units: 20, PricePerUnit: 250000, StartPeriod: 12, EndPeriod: 23},
	}
	in.Loan = loans.Terms{Principal: 1500000, AnnualInterestRate: 6, TermYears: 2, GracePeriodMonths: 12, RepaymentType: loans.RepaymentAmortized}
	commitment := 1000000.0
	in.Equity = loans.Equity{
		Contributions:       []loans.Contribution{{Period: 0, Amount: 1200000}},
		ShortfallCommitment: &commitment,
	}
	in.Compliance.VAT = compliance.VAT{Applicable: true, RatePercent: 15, Registered: true}
	in.Compliance.Zakat = compliance.Zakat{Applicable: true, RatePercent: 2.5, CalculationMethod: compliance.ZakatNetProfit}
	return in
}
