package engine

import (
	"fmt"

	"github.com/iwvelando/feasibility-forecast/pkg/compliance"
	"github.com/iwvelando/feasibility-forecast/pkg/kpi"
	"github.com/iwvelando/feasibility-forecast/pkg/mathutil"
	"github.com/iwvelando/feasibility-forecast/pkg/schedule"
	"github.com/iwvelando/feasibility-forecast/pkg/validation"
)

// warnings lists the non-fatal conditions of a run in a fixed order.
func warnings(input Input, sched schedule.Schedule, monthly compliance.Result, summary kpi.Summary) []string {
	horizon := input.HorizonMonths
	out := []string{}

	for _, item := range input.LineItems {
		out = append(out, validation.ValidateItemSpan(item.Name, item.StartPeriod, item.EndPeriod, horizon)...)
		if msg := validation.ValidateRetentionRelease(item.Name, item.EndPeriod, item.RetentionReleaseLag, horizon, item.RetentionPercent); msg != "" && item.Category.RetentionEligible() {
			out = append(out, msg)
		}
	}
	for _, sale := range input.SaleLines {
		out = append(out, validation.ValidateItemSpan(sale.Name, sale.StartPeriod, sale.EndPeriod, horizon)...)
	}
	for _, rental := range input.RentalLines {
		out = append(out, validation.ValidateItemSpan(rental.Name, rental.StartPeriod, rental.EndPeriod, horizon)...)
	}

	if input.Loan.Principal > 0 {
		if msg := validation.ValidateLoanMaturity(input.Loan.StartPeriod, input.Loan.TermYears, horizon); msg != "" {
			out = append(out, msg)
		}
	}

	escrow := input.Compliance.Escrow
	if escrow.Enabled {
		switch escrow.TriggerType {
		case compliance.TriggerMonthBased:
			if msg := validation.ValidateMonthWithinHorizon("Escrow release", int(escrow.ReleaseThreshold), horizon); msg != "" {
				out = append(out, msg)
			}
		case compliance.TriggerMilestoneBased:
			if msg := validation.ValidateMonthWithinHorizon("Escrow milestone release", *escrow.MilestoneReleaseMonth, horizon); msg != "" {
				out = append(out, msg)
			}
		}
		if mathutil.IsPositive(monthly.EscrowHeld) {
			out = append(out, fmt.Sprintf("Escrow of %.2f is still held at the end of the horizon", monthly.EscrowHeld))
		}
	}

	if sched.HasUnresolvedRetention() {
		out = append(out, fmt.Sprintf("Retention of %.2f is unresolved within the horizon", sched.UnresolvedRetention))
	}
	if summary.HasFlag(kpi.FlagUnrepaidLoan) {
		out = append(out, fmt.Sprintf("Interest-only loan leaves %.2f unrepaid", summary.OutstandingDebt))
	}
	if summary.HasFlag(kpi.FlagUncoveredFunding) {
		out = append(out, fmt.Sprintf("Costs exceed debt and equity; peak funding requirement is %.2f", summary.PeakFunding))
	}
	if !summary.MonthlyIRR.OK() {
		out = append(out, fmt.Sprintf("IRR is %s for this cash flow", summary.MonthlyIRR.Status))
	}
	if summary.HasFlag(kpi.FlagZakatExcludedForLoss) {
		out = append(out, "Zakat excluded because the zakat base is not positive")
	}

	return out
}
