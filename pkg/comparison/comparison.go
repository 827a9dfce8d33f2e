// Package comparison computes KPI deltas between a base scenario and its
// alternatives.
package comparison

import (
	"errors"
	"fmt"

	"github.com/iwvelando/feasibility-forecast/pkg/constants"
	"github.com/iwvelando/feasibility-forecast/pkg/engine"
	"github.com/iwvelando/feasibility-forecast/pkg/kpi"
	"github.com/iwvelando/feasibility-forecast/pkg/money"
	"github.com/shopspring/decimal"
)

// KPI names a compared indicator.
type KPI string

const (
	TotalRevenue     KPI = "totalRevenue"
	TotalCost        KPI = "totalCost"
	Profit           KPI = "profit"
	ProfitMargin     KPI = "profitMargin"
	ROI              KPI = "roi"
	NPV              KPI = "npv"
	IRR              KPI = "irr"
	PaybackMonths    KPI = "paybackMonths"
	EquityMultiple   KPI = "equityMultiple"
	PeakFunding      KPI = "peakFunding"
	TotalZakat       KPI = "totalZakat"
	TotalVAT         KPI = "totalVat"
	FinalCashBalance KPI = "finalCashBalance"
)

const (
	ratioPlaces   int32 = 6
	percentPlaces int32 = 4
)

// ErrHorizonMismatch is returned when compared results cover different
// horizons.
var ErrHorizonMismatch = errors.New("scenario horizons differ")

// Delta is the change of one KPI from the base to an alternative.
// Percentage is relative to |Base| before rounding; it is 0 with
// StatusUndefined when the base rounds to zero or either side has no
// numeric value.
type Delta struct {
	KPI         KPI        `json:"kpi"`
	Base        float64    `json:"base"`
	Alternative float64    `json:"alternative"`
	Absolute    float64    `json:"absolute"`
	Percentage  float64    `json:"percentage"`
	Status      kpi.Status `json:"status"`
}

// Comparison holds every KPI delta of one alternative.
type Comparison struct {
	Base        string  `json:"base"`
	Alternative string  `json:"alternative"`
	Deltas      []Delta `json:"deltas"`
}

// Delta returns the delta of k, or false when it is not present.
func (c Comparison) Delta(k KPI) (Delta, bool) {
	for _, d := range c.Deltas {
		if d.KPI == k {
			return d, true
		}
	}
	return Delta{}, false
}

type figure struct {
	kpi    KPI
	value  kpi.Measure
	places int32
}

func figures(s kpi.Summary) []figure {
	cents := func(k KPI, v float64) figure {
		return figure{kpi: k, value: kpi.Measure{Value: v, Status: kpi.StatusOK}, places: constants.CurrencyDecimalPlaces}
	}
	ratio := func(k KPI, m kpi.Measure) figure {
		return figure{kpi: k, value: m, places: ratioPlaces}
	}
	return []figure{
		cents(TotalRevenue, s.TotalRevenue),
		cents(TotalCost, s.TotalCost),
		cents(Profit, s.Profit),
		ratio(ProfitMargin, s.ProfitMargin),
		ratio(ROI, s.ROI),
		cents(NPV, s.NPV),
		ratio(IRR, s.IRR),
		ratio(PaybackMonths, s.PaybackMonths),
		ratio(EquityMultiple, s.EquityMultiple),
		cents(PeakFunding, s.PeakFunding),
		cents(TotalZakat, s.TotalZakat),
		cents(TotalVAT, s.TotalVAT),
		cents(FinalCashBalance, s.FinalCashBalance),
	}
}

// Compare computes the deltas of each alternative against base. All
// results must cover the same horizon.
func Compare(base *engine.ScenarioResult, alternatives ...*engine.ScenarioResult) ([]Comparison, error) {
	if base == nil {
		return nil, errors.New("base scenario result is required")
	}
	for _, alt := range alternatives {
		if alt == nil {
			return nil, errors.New("alternative scenario result is nil")
		}
		if alt.Horizon() != base.Horizon() {
			return nil, fmt.Errorf("%w: %s has %d months, %s has %d",
				ErrHorizonMismatch, base.Scenario, base.Horizon(), alt.Scenario, alt.Horizon())
		}
	}

	baseFigures := figures(base.Summary)
	comparisons := make([]Comparison, 0, len(alternatives))
	for _, alt := range alternatives {
		altFigures := figures(alt.Summary)
		c := Comparison{
			Base:        base.Scenario,
			Alternative: alt.Scenario,
			Deltas:      make([]Delta, len(baseFigures)),
		}
		for i := range baseFigures {
			c.Deltas[i] = delta(baseFigures[i], altFigures[i])
		}
		comparisons = append(comparisons, c)
	}
	return comparisons, nil
}

func delta(base, alt figure) Delta {
	d := Delta{KPI: base.kpi, Status: kpi.StatusUndefined}
	if !base.value.OK() || !alt.value.OK() {
		return d
	}

	b := decimal.NewFromFloat(base.value.Value)
	a := decimal.NewFromFloat(alt.value.Value)
	d.Base = b.Round(base.places).InexactFloat64()
	d.Alternative = a.Round(base.places).InexactFloat64()
	d.Absolute = a.Sub(b).Round(base.places).InexactFloat64()

	// Reported values are rounded; the percentage is taken from the exact
	// ones. A base that rounds to zero has no relative change.
	if b.Round(base.places).IsZero() {
		return d
	}
	pct, ok := money.PercentChange(b, a, percentPlaces)
	if !ok {
		return d
	}
	d.Percentage = pct.InexactFloat64()
	d.Status = kpi.StatusOK
	return d
}
