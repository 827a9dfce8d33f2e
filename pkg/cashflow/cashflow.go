// Package cashflow merges the monthly schedule, financing and compliance
// components into one cash-flow row per month.
package cashflow

import (
	"errors"
	"fmt"

	"github.com/iwvelando/feasibility-forecast/pkg/compliance"
	"github.com/iwvelando/feasibility-forecast/pkg/constants"
	"github.com/iwvelando/feasibility-forecast/pkg/loans"
	"github.com/iwvelando/feasibility-forecast/pkg/mathutil"
	"github.com/iwvelando/feasibility-forecast/pkg/schedule"
)

// MonthlyCashflow is one month of a scenario. ConstructionCost includes
// contingency and SoftCosts includes marketing; the ContingencyCost and
// MarketingCost fields repeat those parts for reporting.
type MonthlyCashflow struct {
	Month int    `json:"month"`
	Label string `json:"label"`

	Revenue          float64 `json:"revenue"`
	ConstructionCost float64 `json:"constructionCost"`
	ContingencyCost  float64 `json:"contingencyCost"`
	LandCost         float64 `json:"landCost"`
	SoftCosts        float64 `json:"softCosts"`
	MarketingCost    float64 `json:"marketingCost"`

	LoanDrawn     float64 `json:"loanDrawn"`
	LoanInterest  float64 `json:"loanInterest"`
	LoanRepayment float64 `json:"loanRepayment"`
	LoanBalance   float64 `json:"loanBalance"`

	EquityInjected float64 `json:"equityInjected"`
	ZakatDue       float64 `json:"zakatDue"`
	VATOnCosts     float64 `json:"vatOnCosts"`
	VATRecoverable float64 `json:"vatRecoverable"`
	EscrowReserved float64 `json:"escrowReserved"`
	EscrowReleased float64 `json:"escrowReleased"`

	RetentionOutstanding float64 `json:"retentionOutstanding"`

	NetCashflow float64 `json:"netCashflow"`
	CashBalance float64 `json:"cashBalance"`
}

// DevelopmentCost is every project cost of the month before financing and
// compliance.
func (m MonthlyCashflow) DevelopmentCost() float64 {
	return m.ConstructionCost + m.LandCost + m.SoftCosts
}

// Components are the per-month inputs of the aggregator. Every slice must
// cover the same horizon.
type Components struct {
	Labels     []string
	Schedule   schedule.Schedule
	Financing  loans.Schedule
	Compliance compliance.Result
	Zakat      compliance.ZakatResult
}

// Aggregate builds the monthly rows and the running cash balance.
func Aggregate(c Components) ([]MonthlyCashflow, error) {
	horizon := len(c.Schedule.Buckets)
	if len(c.Financing.Months) != horizon || len(c.Compliance.Months) != horizon || len(c.Labels) != horizon {
		return nil, fmt.Errorf("component lengths differ: schedule %d, financing %d, compliance %d, labels %d",
			horizon, len(c.Financing.Months), len(c.Compliance.Months), len(c.Labels))
	}

	rows := make([]MonthlyCashflow, horizon)
	var balance, outstanding float64
	for t := 0; t < horizon; t++ {
		bucket := c.Schedule.Buckets[t]
		loan := c.Financing.Months[t]
		comp := c.Compliance.Months[t]

		outstanding += bucket.RetentionWithheld - bucket.RetentionReleased

		row := MonthlyCashflow{
			Month:                t,
			Label:                c.Labels[t],
			Revenue:              bucket.Revenue,
			ConstructionCost:     bucket.Construction + bucket.Contingency,
			ContingencyCost:      bucket.Contingency,
			LandCost:             bucket.Land,
			SoftCosts:            bucket.Soft + bucket.Marketing,
			MarketingCost:        bucket.Marketing,
			LoanDrawn:            loan.Drawn,
			LoanInterest:         loan.Interest,
			LoanRepayment:        loan.Repayment,
			LoanBalance:          loan.Balance,
			EquityInjected:       loan.EquityInjected,
			VATOnCosts:           comp.VATOnCosts,
			VATRecoverable:       comp.VATRecoverable,
			EscrowReserved:       comp.EscrowReserved,
			EscrowReleased:       comp.EscrowReleased,
			RetentionOutstanding: outstanding,
		}
		if t == c.Zakat.Month {
			row.ZakatDue = c.Zakat.Due
		}

		row.NetCashflow = Net(row)
		balance += row.NetCashflow
		row.CashBalance = balance
		rows[t] = row
	}

	return rows, nil
}

// Net is the net cash flow of a row. Unrecovered VAT is a cost; under the
// registered policy it is zero.
func Net(m MonthlyCashflow) float64 {
	return m.Revenue -
		m.ConstructionCost -
		m.LandCost -
		m.SoftCosts -
		m.LoanRepayment +
		m.LoanDrawn -
		m.ZakatDue -
		m.EscrowReserved +
		m.EscrowReleased +
		m.EquityInjected -
		(m.VATOnCosts - m.VATRecoverable)
}

// Verify checks the cash balance recurrence, that escrow never releases
// more than it reserved, and that outstanding retention is never negative.
func Verify(rows []MonthlyCashflow) error {
	var errs []error
	var reserved, released, previous float64
	for t, row := range rows {
		expected := previous + row.NetCashflow
		if t == 0 {
			expected = row.NetCashflow
		}
		if !mathutil.WithinTolerance(row.CashBalance, expected, constants.FloatTolerance) {
			errs = append(errs, fmt.Errorf("month %d: cash balance %.6f does not follow %.6f", t, row.CashBalance, expected))
		}
		previous = row.CashBalance

		reserved += row.EscrowReserved
		released += row.EscrowReleased
		if released > reserved+constants.FloatTolerance {
			errs = append(errs, fmt.Errorf("month %d: escrow released %.2f exceeds reserved %.2f", t, released, reserved))
		}

		if row.RetentionOutstanding < -constants.FloatTolerance {
			errs = append(errs, fmt.Errorf("month %d: outstanding retention is negative (%.2f)", t, row.RetentionOutstanding))
		}
	}
	return errors.Join(errs...)
}
