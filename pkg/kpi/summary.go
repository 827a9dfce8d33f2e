package kpi

import (
	"github.com/iwvelando/feasibility-forecast/pkg/cashflow"
	"github.com/iwvelando/feasibility-forecast/pkg/mathutil"
)

// Summary is the KPI reduction of one scenario. Ratios and rates are
// fractions (0.15 is 15%); IRR is annualized from MonthlyIRR.
type Summary struct {
	TotalRevenue float64 `json:"totalRevenue"`
	TotalCost    float64 `json:"totalCost"`
	Profit       float64 `json:"profit"`

	ProfitMargin   Measure `json:"profitMargin"`
	ROI            Measure `json:"roi"`
	NPV            float64 `json:"npv"`
	IRR            Measure `json:"irr"`
	MonthlyIRR     Measure `json:"monthlyIrr"`
	PaybackMonths  Measure `json:"paybackMonths"`
	EquityMultiple Measure `json:"equityMultiple"`
	PeakFunding    float64 `json:"peakFunding"`

	TotalZakat       float64 `json:"totalZakat"`
	TotalVAT         float64 `json:"totalVat"`
	TotalInterest    float64 `json:"totalInterest"`
	FinalCashBalance float64 `json:"finalCashBalance"`
	TotalEquity      float64 `json:"totalEquity"`
	TotalDebtDrawn   float64 `json:"totalDebtDrawn"`

	UnresolvedRetention float64 `json:"unresolvedRetention"`
	EscrowHeld          float64 `json:"escrowHeld"`
	OutstandingDebt     float64 `json:"outstandingDebt"`

	Flags []Flag `json:"flags"`
}

// Indicators are the scenario facts the summary reports that are not
// visible in the monthly rows.
type Indicators struct {
	UnresolvedRetention  float64
	EscrowHeld           float64
	OutstandingDebt      float64
	UnrepaidLoan         bool
	ZakatExcludedForLoss bool
	UncoveredFunding     float64
}

// Summarize reduces the monthly rows. annualDiscountPercent is converted to
// the equivalent monthly rate for the NPV.
func Summarize(rows []cashflow.MonthlyCashflow, annualDiscountPercent float64, ind Indicators) Summary {
	var s Summary
	flows := make([]float64, len(rows))
	balances := make([]float64, len(rows))

	var developmentCost, unrecoveredVAT float64
	for t, row := range rows {
		flows[t] = row.NetCashflow
		balances[t] = row.CashBalance

		s.TotalRevenue += row.Revenue
		developmentCost += row.DevelopmentCost()
		s.TotalInterest += row.LoanInterest
		s.TotalZakat += row.ZakatDue
		s.TotalVAT += row.VATOnCosts
		unrecoveredVAT += row.VATOnCosts - row.VATRecoverable
		s.TotalEquity += row.EquityInjected
		s.TotalDebtDrawn += row.LoanDrawn
	}
	if len(rows) > 0 {
		s.FinalCashBalance = rows[len(rows)-1].CashBalance
	}

	s.TotalCost = developmentCost + s.TotalInterest + s.TotalZakat + unrecoveredVAT
	s.Profit = s.TotalRevenue - s.TotalCost
	s.ProfitMargin = Ratio(s.Profit, s.TotalRevenue)
	s.ROI = Ratio(s.Profit, s.TotalCost)

	s.NPV = NPV(mathutil.AnnualToMonthlyRate(annualDiscountPercent), flows)
	s.MonthlyIRR = IRR(flows)
	s.IRR = AnnualizeRate(s.MonthlyIRR)
	s.PaybackMonths = Payback(flows)
	s.EquityMultiple = EquityMultiple(s.FinalCashBalance, s.TotalEquity)
	s.PeakFunding = PeakFunding(balances)

	s.UnresolvedRetention = ind.UnresolvedRetention
	s.EscrowHeld = ind.EscrowHeld
	s.OutstandingDebt = ind.OutstandingDebt
	s.Flags = flags(s, ind)

	return s
}

func flags(s Summary, ind Indicators) []Flag {
	flags := []Flag{}
	if ind.UnresolvedRetention > 0 {
		flags = append(flags, FlagUnresolvedRetention)
	}
	if ind.ZakatExcludedForLoss {
		flags = append(flags, FlagZakatExcludedForLoss)
	}
	if !s.MonthlyIRR.OK() {
		flags = append(flags, FlagIRRUndefined)
	}
	if s.PaybackMonths.Status == StatusNotRecovered {
		flags = append(flags, FlagNotRecovered)
	}
	if mathutil.IsPositive(ind.EscrowHeld) {
		flags = append(flags, FlagEscrowHeld)
	}
	if ind.UnrepaidLoan {
		flags = append(flags, FlagUnrepaidLoan)
	} else if mathutil.IsPositive(ind.OutstandingDebt) {
		flags = append(flags, FlagOutstandingDebt)
	}
	if mathutil.IsPositive(ind.UncoveredFunding) {
		flags = append(flags, FlagUncoveredFunding)
	}
	return flags
}

// HasFlag reports whether the summary carries flag.
func (s Summary) HasFlag(flag Flag) bool {
	for _, f := range s.Flags {
		if f == flag {
			return true
		}
	}
	return false
}
