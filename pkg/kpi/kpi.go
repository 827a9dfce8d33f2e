// Package kpi reduces a scenario's monthly cash flows to investment
// indicators.
package kpi

import (
	"math"

	"github.com/iwvelando/feasibility-forecast/pkg/constants"
	"github.com/iwvelando/feasibility-forecast/pkg/mathutil"
)

// Status qualifies a Measure. Anything but StatusOK means Value is a
// placeholder and must not be read as a number.
type Status string

const (
	StatusOK              Status = "ok"
	StatusUndefined       Status = "undefined"
	StatusNonConvergent   Status = "non_convergent"
	StatusNotRecovered    Status = "not_recovered"
	StatusZeroDenominator Status = "zero_denominator"
)

// Measure is an indicator that may have no numeric value.
type Measure struct {
	Value  float64 `json:"value"`
	Status Status  `json:"status"`
}

// OK reports whether Value is meaningful.
func (m Measure) OK() bool {
	return m.Status == StatusOK
}

func ok(v float64) Measure {
	return Measure{Value: v, Status: StatusOK}
}

// Flag marks a non-fatal condition of a scenario.
type Flag string

const (
	FlagUnresolvedRetention  Flag = "unresolved_retention"
	FlagZakatExcludedForLoss Flag = "zakat_excluded_for_loss"
	FlagIRRUndefined         Flag = "irr_undefined"
	FlagNotRecovered         Flag = "not_recovered"
	FlagEscrowHeld           Flag = "escrow_held"
	FlagUnrepaidLoan         Flag = "unrepaid_loan"
	FlagOutstandingDebt      Flag = "outstanding_debt"
	FlagUncoveredFunding     Flag = "uncovered_funding"
)

// NPV discounts flows at a periodic rate; flows[0] is not discounted.
func NPV(rate float64, flows []float64) float64 {
	npv := 0.0
	factor := 1.0
	for _, flow := range flows {
		if flow != 0 {
			npv += flow / factor
		}
		factor *= 1 + rate
	}
	return npv
}

// futureValue is the NPV scaled by (1+rate)^(n-1). It has the sign of the
// NPV and stays finite for negative rates where the NPV overflows.
func futureValue(rate float64, flows []float64) float64 {
	fv := 0.0
	for _, flow := range flows {
		fv = fv*(1+rate) + flow
	}
	return fv
}

// npvSign evaluates the NPV at rate and returns it with its sign.
func npvSign(rate float64, flows []float64) (float64, float64) {
	npv := NPV(rate, flows)
	if math.IsInf(npv, 0) || math.IsNaN(npv) {
		return npv, sign(futureValue(rate, flows))
	}
	return npv, sign(npv)
}

func sign(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return math.NaN()
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

// IRR finds the periodic rate at which the NPV of flows is zero by
// bisection over [IRRLowerBound, IRRUpperBound]. Without a sign change
// across the bracket the result is undefined rather than a guess.
func IRR(flows []float64) Measure {
	if !hasSignChange(flows) {
		return Measure{Status: StatusUndefined}
	}

	lo, hi := constants.IRRLowerBound, constants.IRRUpperBound
	_, loSign := npvSign(lo, flows)
	_, hiSign := npvSign(hi, flows)
	switch {
	case math.IsNaN(loSign) || math.IsNaN(hiSign):
		return Measure{Status: StatusUndefined}
	case loSign == 0:
		return ok(lo)
	case hiSign == 0:
		return ok(hi)
	case loSign == hiSign:
		return Measure{Status: StatusUndefined}
	}

	mid := lo
	for i := 0; i < constants.IRRMaxIterations; i++ {
		mid = (lo + hi) / 2
		npv, midSign := npvSign(mid, flows)
		if math.IsNaN(midSign) {
			return Measure{Status: StatusUndefined}
		}
		if math.Abs(npv) < constants.IRRTolerance || hi-lo < constants.IRRBracketWidth {
			return ok(mid)
		}
		if midSign == loSign {
			lo = mid
		} else {
			hi = mid
		}
	}
	return Measure{Value: mid, Status: StatusNonConvergent}
}

func hasSignChange(flows []float64) bool {
	var pos, neg bool
	for _, flow := range flows {
		pos = pos || flow > 0
		neg = neg || flow < 0
	}
	return pos && neg
}

// AnnualizeRate turns a monthly Measure into an annual one.
func AnnualizeRate(monthly Measure) Measure {
	if !monthly.OK() {
		return monthly
	}
	return ok(mathutil.MonthlyToAnnualRate(monthly.Value))
}

// Payback is the fractional month in which the cumulative flow first
// crosses from negative to non-negative, interpolated within the crossing
// month. A cumulative flow that never goes negative pays back at 0.
func Payback(flows []float64) Measure {
	cumulative := 0.0
	wentNegative := false
	for t, flow := range flows {
		previous := cumulative
		cumulative += flow
		if previous < 0 && cumulative >= 0 {
			return ok(float64(t-1) + -previous/flow)
		}
		wentNegative = wentNegative || cumulative < 0
	}
	if wentNegative {
		return Measure{Status: StatusNotRecovered}
	}
	return ok(0)
}

// Ratio divides with a zero-denominator guard; the guarded value is 0.
func Ratio(numerator, denominator float64) Measure {
	v, usable := mathutil.SafeDivide(numerator, denominator)
	if !usable {
		return Measure{Status: StatusZeroDenominator}
	}
	return ok(v)
}

// EquityMultiple is distributions over equity injected, 0 when no equity
// was injected.
func EquityMultiple(distributions, equity float64) Measure {
	return Ratio(mathutil.Max(distributions, 0), equity)
}

// PeakFunding is the magnitude of the most negative cash balance, or 0 when
// the balance never goes negative.
func PeakFunding(balances []float64) float64 {
	peak := 0.0
	for _, balance := range balances {
		if -balance > peak {
			peak = -balance
		}
	}
	return peak
}
