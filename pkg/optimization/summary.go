// Package optimization provides shared data structures for break-even
// searches.
package optimization

import (
	"github.com/iwvelando/feasibility-forecast/pkg/scenario"
	"github.com/iwvelando/feasibility-forecast/pkg/validation"
)

// Metric is the KPI a break-even search holds at its floor.
type Metric string

const (
	MetricNPV     Metric = "npv"
	MetricProfit  Metric = "profit"
	MetricMinCash Metric = "minCash"
)

// Default multiplier bounds searched when a target leaves them unset.
const (
	DefaultMinMultiplier = 0.0
	DefaultMaxMultiplier = 2.0
)

// Target asks for the multiplier on Field at which Metric of Scenario
// reaches Floor.
type Target struct {
	Scenario      string         `json:"scenario" yaml:"scenario"`
	Field         scenario.Field `json:"field" yaml:"field"`
	Metric        Metric         `json:"metric" yaml:"metric"`
	Floor         float64        `json:"floor" yaml:"floor"`
	MinMultiplier *float64       `json:"minMultiplier,omitempty" yaml:"minMultiplier,omitempty"`
	MaxMultiplier *float64       `json:"maxMultiplier,omitempty" yaml:"maxMultiplier,omitempty"`
}

// Bounds returns the multiplier range searched.
func (t Target) Bounds() (float64, float64) {
	lo, hi := DefaultMinMultiplier, DefaultMaxMultiplier
	if t.MinMultiplier != nil {
		lo = *t.MinMultiplier
	}
	if t.MaxMultiplier != nil {
		hi = *t.MaxMultiplier
	}
	return lo, hi
}

// Validate checks the target before any scenario is calculated.
func (t Target) Validate() error {
	var c validation.Collector
	item := t.Scenario + "/" + string(t.Field)
	switch {
	case !t.Field.Valid():
		c.Addf(item, "field", "unknown field %q", t.Field)
	case t.Field == scenario.ConstructionDelay || t.Field == scenario.HorizonMonths:
		c.Addf(item, "field", "%s cannot be scaled", t.Field)
	}
	switch t.Metric {
	case MetricNPV, MetricProfit, MetricMinCash:
	default:
		c.Addf(item, "metric", "expected %s, %s or %s, got %q", MetricNPV, MetricProfit, MetricMinCash, t.Metric)
	}
	lo, hi := t.Bounds()
	if lo < 0 || hi <= lo {
		c.Addf(item, "minMultiplier", "bounds must satisfy 0 <= min < max (%v, %v)", lo, hi)
	}
	return c.Err()
}

// Summary captures the result of a single break-even search. Value is the
// multiplier found; Headroom is the metric minus the floor at Value.
type Summary struct {
	Scenario   string         `json:"scenario"`
	Field      scenario.Field `json:"field"`
	Metric     Metric         `json:"metric"`
	Floor      float64        `json:"floor"`
	Value      float64        `json:"value"`
	MetricAt   float64        `json:"metricAt"`
	Headroom   float64        `json:"headroom"`
	Iterations int            `json:"iterations"`
	Converged  bool           `json:"converged"`
	Notes      []string       `json:"notes,omitempty"`
}
