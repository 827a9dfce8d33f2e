// Package engine runs one feasibility scenario end to end: normalize the
// line items, lay out the schedule, apply financing and compliance,
// aggregate the monthly cash flow and reduce it to KPIs.
//
// A calculation is a pure function of its Input. It reads no clock, uses no
// randomness and holds no state between calls, so identical inputs always
// produce identical results.
package engine

import (
	"fmt"

	"github.com/iwvelando/feasibility-forecast/pkg/cashflow"
	"github.com/iwvelando/feasibility-forecast/pkg/compliance"
	"github.com/iwvelando/feasibility-forecast/pkg/datetime"
	"github.com/iwvelando/feasibility-forecast/pkg/kpi"
	"github.com/iwvelando/feasibility-forecast/pkg/lineitem"
	"github.com/iwvelando/feasibility-forecast/pkg/loans"
	"github.com/iwvelando/feasibility-forecast/pkg/schedule"
	"github.com/iwvelando/feasibility-forecast/pkg/validation"
	"go.uber.org/zap"
)

// ErrValidation matches every caller-correctable input error.
var ErrValidation = validation.ErrValidation

// ScenarioResult is the outcome of one scenario. It is never modified after
// Calculate returns it.
type ScenarioResult struct {
	Scenario string                     `json:"scenario"`
	Project  string                     `json:"project,omitempty"`
	Currency string                     `json:"currency,omitempty"`
	Data     []cashflow.MonthlyCashflow `json:"data"`
	Summary  kpi.Summary                `json:"summary"`
	Warnings []string                   `json:"warnings"`
}

// Horizon is the number of monthly rows.
func (r *ScenarioResult) Horizon() int {
	return len(r.Data)
}

// Engine calculates scenarios.
type Engine struct {
	logger *zap.Logger
}

// New creates an engine. A nil logger is replaced with a no-op logger.
func New(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger}
}

// Calculate runs one scenario with a new engine.
func Calculate(logger *zap.Logger, name string, input Input) (*ScenarioResult, error) {
	return New(logger).Calculate(name, input)
}

// Calculate runs the scenario name on input. Invalid input is rejected
// before any computation with an error matching ErrValidation.
func (e *Engine) Calculate(name string, input Input) (*ScenarioResult, error) {
	if err := input.Validate(); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", name, err)
	}
	horizon := input.HorizonMonths

	labels, err := datetime.MonthLabels(input.Project.StartDate, horizon)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", name, err)
	}

	events, err := lineitem.Normalize(input.LineItems, input.SaleLines, input.RentalLines)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", name, err)
	}

	sched, err := schedule.NewBuilder(e.logger).Build(events, horizon)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", name, err)
	}

	calc := compliance.NewCalculator(e.logger)
	monthly, err := calc.Monthly(input.Compliance, sched)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", name, err)
	}

	// Unrecovered VAT is funded like any other cost.
	costs := sched.Costs()
	for t := range costs {
		costs[t] += monthly.Months[t].VATOnCosts - monthly.Months[t].VATRecoverable
	}
	financing, err := loans.NewScheduleGenerator(e.logger).Generate(input.Loan, input.Equity, costs)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", name, err)
	}

	zakat := calc.Zakat(input.Compliance.Zakat, zakatBasis(sched, financing, monthly), horizon)

	rows, err := cashflow.Aggregate(cashflow.Components{
		Labels:     labels,
		Schedule:   sched,
		Financing:  financing,
		Compliance: monthly,
		Zakat:      zakat,
	})
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", name, err)
	}
	if err := cashflow.Verify(rows); err != nil {
		return nil, fmt.Errorf("scenario %s: cash flow invariants violated: %w", name, err)
	}

	var uncovered float64
	for _, m := range financing.Months {
		uncovered += m.UncoveredGap
	}

	summary := kpi.Summarize(rows, input.DiscountRate, kpi.Indicators{
		UnresolvedRetention:  sched.UnresolvedRetention,
		EscrowHeld:           monthly.EscrowHeld,
		OutstandingDebt:      financing.OutstandingAtHorizon,
		UnrepaidLoan:         financing.Unrepaid,
		ZakatExcludedForLoss: zakat.ExcludedForLoss,
		UncoveredFunding:     uncovered,
	})

	result := &ScenarioResult{
		Scenario: name,
		Project:  input.Project.Name,
		Currency: input.Project.Currency,
		Data:     rows,
		Summary:  summary,
		Warnings: warnings(input, sched, monthly, summary),
	}

	for _, warning := range result.Warnings {
		e.logger.Warn(warning,
			zap.String("op", "engine.Calculate"),
			zap.String("scenario", name),
		)
	}
	e.logger.Info(fmt.Sprintf("calculated %d months, final cash balance %.2f", horizon, summary.FinalCashBalance),
		zap.String("op", "engine.Calculate"),
		zap.String("scenario", name),
	)

	return result, nil
}

// zakatBasis collects the totals zakat may be levied on. Profit is before
// zakat; asset value is the total development cost.
func zakatBasis(sched schedule.Schedule, financing loans.Schedule, monthly compliance.Result) compliance.ZakatBasis {
	var basis compliance.ZakatBasis
	for _, bucket := range sched.Buckets {
		basis.Revenue += bucket.Revenue
		basis.AssetValue += bucket.TotalCost()
	}
	basis.Profit = basis.Revenue - basis.AssetValue - financing.TotalInterest - monthly.NetVAT()
	return basis
}
