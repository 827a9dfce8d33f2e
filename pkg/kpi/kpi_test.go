package kpi

import (
	"math"
	"testing"

	"github.com/iwvelando/feasibility-forecast/pkg/cashflow"
)

func TestNPV(t *testing.T) {
	tests := []struct {
		name     string
		rate     float64
		flows    []float64
		expected float64
	}{
		{name: "Zero rate sums flows", rate: 0, flows: []float64{-100, 60, 60}, expected: 20},
		{name: "First flow undiscounted", rate: 0.1, flows: []float64{-100}, expected: -100},
		{name: "Ten percent", rate: 0.1, flows: []float64{-100, 110}, expected: 0},
		{name: "Two periods", rate: 0.1, flows: []float64{0, 0, 121}, expected: 100},
		{name: "Empty", rate: 0.1, flows: nil, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NPV(tt.rate, tt.flows); math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("NPV() = %.6f, expected %.6f", got, tt.expected)
			}
		})
	}
}

func TestIRR(t *testing.T) {
	tests := []struct {
		name     string
		flows    []float64
		expected float64
		status   Status
	}{
		{name: "Ten percent", flows: []float64{-100, 110}, expected: 0.1, status: StatusOK},
		{name: "Two period", flows: []float64{-1000, 0, 1210}, expected: 0.1, status: StatusOK},
		{name: "Negative return", flows: []float64{-100, 50}, expected: -0.5, status: StatusOK},
		{name: "All positive", flows: []float64{100, 50, 25}, status: StatusUndefined},
		{name: "All negative", flows: []float64{-100, -50}, status: StatusUndefined},
		{name: "All zero", flows: []float64{0, 0, 0}, status: StatusUndefined},
		{name: "Empty", flows: nil, status: StatusUndefined},
		{name: "Return above bracket", flows: []float64{-1, 100}, status: StatusUndefined},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IRR(tt.flows)
			if got.Status != tt.status {
				t.Fatalf("IRR() status = %s, expected %s", got.Status, tt.status)
			}
			if tt.status == StatusOK && math.Abs(got.Value-tt.expected) > 1e-6 {
				t.Errorf("IRR() = %.8f, expected %.8f", got.Value, tt.expected)
			}
		})
	}
}

func TestIRRLongHorizon(t *testing.T) {
	// 300 months overflows the NPV at the lower bracket bound.
	flows := make([]float64, 300)
	flows[0] = -1000000
	for i := 1; i < len(flows); i++ {
		flows[i] = 10000
	}
	got := IRR(flows)
	if !got.OK() {
		t.Fatalf("IRR() status = %s", got.Status)
	}
	if npv := NPV(got.Value, flows); math.Abs(npv) > 1e-3 {
		t.Errorf("NPV at IRR = %.6f, expected ~0", npv)
	}
}

func TestAnnualizeRate(t *testing.T) {
	got := AnnualizeRate(Measure{Value: 0.01, Status: StatusOK})
	if math.Abs(got.Value-(math.Pow(1.01, 12)-1)) > 1e-12 {
		t.Errorf("AnnualizeRate() = %.8f", got.Value)
	}
	undefined := AnnualizeRate(Measure{Status: StatusUndefined})
	if undefined.Status != StatusUndefined || undefined.Value != 0 {
		t.Errorf("undefined rate should stay undefined, got %+v", undefined)
	}
}

func TestPayback(t *testing.T) {
	tests := []struct {
		name     string
		flows    []float64
		expected float64
		status   Status
	}{
		{name: "Exact crossing", flows: []float64{-100, 50, 50}, expected: 2, status: StatusOK},
		{name: "Interpolated", flows: []float64{-100, 40, 120}, expected: 1.5, status: StatusOK},
		{name: "Within first month", flows: []float64{-100, 200}, expected: 0.5, status: StatusOK},
		{name: "Never negative", flows: []float64{0, 10, 20}, expected: 0, status: StatusOK},
		{name: "Not recovered", flows: []float64{-100, 20, 30}, status: StatusNotRecovered},
		{name: "First crossing wins", flows: []float64{-10, 20, -50, 100}, expected: 0.5, status: StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Payback(tt.flows)
			if got.Status != tt.status {
				t.Fatalf("Payback() status = %s, expected %s", got.Status, tt.status)
			}
			if math.Abs(got.Value-tt.expected) > 1e-9 {
				t.Errorf("Payback() = %.4f, expected %.4f", got.Value, tt.expected)
			}
		})
	}
}

func TestRatio(t *testing.T) {
	if got := Ratio(10, 0); got.Status != StatusZeroDenominator || got.Value != 0 {
		t.Errorf("Ratio(10, 0) = %+v, expected guarded zero", got)
	}
	if got := Ratio(0, 10); !got.OK() || got.Value != 0 {
		t.Errorf("Ratio(0, 10) = %+v, expected a legitimate zero", got)
	}
	if got := Ratio(15, 100); !got.OK() || got.Value != 0.15 {
		t.Errorf("Ratio(15, 100) = %+v", got)
	}
}

func TestEquityMultiple(t *testing.T) {
	if got := EquityMultiple(300, 0); got.Status != StatusZeroDenominator || got.Value != 0 {
		t.Errorf("no equity should be guarded, got %+v", got)
	}
	if got := EquityMultiple(-50, 100); !got.OK() || got.Value != 0 {
		t.Errorf("negative distributions should give 0, got %+v", got)
	}
	if got := EquityMultiple(250, 100); got.Value != 2.5 {
		t.Errorf("EquityMultiple() = %+v", got)
	}
}

func TestPeakFunding(t *testing.T) {
	if got := PeakFunding([]float64{-10, -250, -40, 100}); got != 250 {
		t.Errorf("PeakFunding() = %.2f, expected 250", got)
	}
	if got := PeakFunding([]float64{0, 10}); got != 0 {
		t.Errorf("PeakFunding() = %.2f, expected 0", got)
	}
}

func rowsFrom(flows []float64) []cashflow.MonthlyCashflow {
	rows := make([]cashflow.MonthlyCashflow, len(flows))
	balance := 0.0
	for i, flow := range flows {
		balance += flow
		rows[i] = cashflow.MonthlyCashflow{Month: i, NetCashflow: flow, CashBalance: balance}
	}
	return rows
}

func TestSummarize(t *testing.T) {
	rows := rowsFrom([]float64{-1000, 0, 1500})
	rows[0].ConstructionCost = 1000
	rows[2].Revenue = 1600
	rows[2].LoanInterest = 50
	rows[2].LoanRepayment = 50
	rows[2].ZakatDue = 50
	rows[1].VATOnCosts = 30
	rows[1].VATRecoverable = 30

	s := Summarize(rows, 0, Indicators{})

	if s.TotalRevenue != 1600 {
		t.Errorf("TotalRevenue = %.2f", s.TotalRevenue)
	}
	if s.TotalCost != 1100 {
		t.Errorf("TotalCost = %.2f, expected development cost, interest and zakat", s.TotalCost)
	}
	if s.Profit != 500 {
		t.Errorf("Profit = %.2f", s.Profit)
	}
	if math.Abs(s.ProfitMargin.Value-500.0/1600) > 1e-12 || math.Abs(s.ROI.Value-500.0/1100) > 1e-12 {
		t.Errorf("margin %+v roi %+v", s.ProfitMargin, s.ROI)
	}
	if s.NPV != 500 {
		t.Errorf("NPV at zero discount = %.2f, expected 500", s.NPV)
	}
	if s.TotalVAT != 30 || s.TotalZakat != 50 || s.TotalInterest != 50 {
		t.Errorf("totals vat %.2f zakat %.2f interest %.2f", s.TotalVAT, s.TotalZakat, s.TotalInterest)
	}
	if s.PeakFunding != 1000 || s.FinalCashBalance != 500 {
		t.Errorf("peak %.2f final %.2f", s.PeakFunding, s.FinalCashBalance)
	}
	if !s.MonthlyIRR.OK() || !s.IRR.OK() {
		t.Errorf("IRR should be defined: %+v", s.IRR)
	}
	if s.EquityMultiple.Status != StatusZeroDenominator {
		t.Errorf("equity multiple without equity = %+v", s.EquityMultiple)
	}
	if len(s.Flags) != 0 {
		t.Errorf("unexpected flags %v", s.Flags)
	}
}

func TestSummarizeGuardsAndFlags(t *testing.T) {
	s := Summarize(rowsFrom([]float64{0, 0}), 8, Indicators{
		UnresolvedRetention:  100,
		EscrowHeld:           20,
		UnrepaidLoan:         true,
		OutstandingDebt:      500,
		ZakatExcludedForLoss: true,
		UncoveredFunding:     30,
	})

	if s.ROI.Value != 0 || s.ROI.Status != StatusZeroDenominator {
		t.Errorf("ROI with zero cost = %+v", s.ROI)
	}
	if s.ProfitMargin.Value != 0 || s.ProfitMargin.Status != StatusZeroDenominator {
		t.Errorf("margin with zero revenue = %+v", s.ProfitMargin)
	}
	expected := []Flag{
		FlagUnresolvedRetention,
		FlagZakatExcludedForLoss,
		FlagIRRUndefined,
		FlagEscrowHeld,
		FlagUnrepaidLoan,
		FlagUncoveredFunding,
	}
	if len(s.Flags) != len(expected) {
		t.Fatalf("flags = %v, expected %v", s.Flags, expected)
	}
	for i, flag := range expected {
		if s.Flags[i] != flag {
			t.Errorf("flag %d = %s, expected %s", i, s.Flags[i], flag)
		}
	}
	if !s.HasFlag(FlagEscrowHeld) || s.HasFlag(FlagNotRecovered) {
		t.Errorf("HasFlag() mismatch for %v", s.Flags)
	}
}

func TestSummarizeIgnoresSubCentIndicators(t *testing.T) {
	s := Summarize(rowsFrom([]float64{-100, 150}), 8, Indicators{
		EscrowHeld:       0.004,
		OutstandingDebt:  0.01,
		UncoveredFunding: 0.009,
	})
	for _, flag := range []Flag{FlagEscrowHeld, FlagOutstandingDebt, FlagUncoveredFunding} {
		if s.HasFlag(flag) {
			t.Errorf("unexpected %s flag for a sub-cent amount", flag)
		}
	}
}
