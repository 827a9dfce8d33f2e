// Package optimizer searches for the multiplier on a scenario field at
// which a KPI reaches a floor, such as the sale price that breaks even.
package optimizer

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/iwvelando/feasibility-forecast/pkg/constants"
	"github.com/iwvelando/feasibility-forecast/pkg/engine"
	"github.com/iwvelando/feasibility-forecast/pkg/optimization"
	"github.com/iwvelando/feasibility-forecast/pkg/scenario"
	"go.uber.org/zap"
)

// Runner evaluates break-even targets against a base input and the named
// scenario override sets.
type Runner struct {
	logger    *zap.Logger
	base      engine.Input
	scenarios map[string][]scenario.Override
}

type evaluation struct {
	value  float64
	metric float64
	floor  float64
}

func (e evaluation) feasible() bool {
	return e.metric >= e.floor
}

func (e evaluation) headroom() float64 {
	return e.metric - e.floor
}

// NewRunner constructs a Runner. The base input is copied.
func NewRunner(logger *zap.Logger, base engine.Input, sets []scenario.Scenario) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	scenarios := make(map[string][]scenario.Override, len(sets))
	for _, s := range sets {
		scenarios[s.Name] = s.Overrides
	}
	return &Runner{logger: logger, base: base.Clone(), scenarios: scenarios}
}

// Run solves every target in order. A target that cannot be solved is
// skipped and its error joined into the returned error; a done ctx stops
// the run.
func (r *Runner) Run(ctx context.Context, targets []optimization.Target) ([]optimization.Summary, error) {
	var summaries []optimization.Summary
	var errs []error
	for _, target := range targets {
		summary, err := r.Solve(ctx, target)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return summaries, ctxErr
			}
			errs = append(errs, fmt.Errorf("break-even %s/%s: %w", target.Scenario, target.Field, err))
			continue
		}
		summaries = append(summaries, summary)
	}
	return summaries, errors.Join(errs...)
}

// Solve bisects the multiplier range of target for the point where the
// metric crosses the floor. The metric is assumed monotonic in the
// multiplier. When the whole range is on one side of the floor the bound
// closest to it is reported with Converged false.
func (r *Runner) Solve(ctx context.Context, target optimization.Target) (optimization.Summary, error) {
	if err := target.Validate(); err != nil {
		return optimization.Summary{}, err
	}
	overrides, ok := r.scenarios[target.Scenario]
	if !ok {
		return optimization.Summary{}, fmt.Errorf("unknown scenario %q", target.Scenario)
	}

	summary := optimization.Summary{
		Scenario: target.Scenario,
		Field:    target.Field,
		Metric:   target.Metric,
		Floor:    target.Floor,
	}

	minVal, maxVal := target.Bounds()
	lowerEval, err := r.evaluate(ctx, overrides, target, minVal)
	if err != nil {
		return optimization.Summary{}, err
	}
	upperEval, err := r.evaluate(ctx, overrides, target, maxVal)
	if err != nil {
		return optimization.Summary{}, err
	}

	if lowerEval.feasible() == upperEval.feasible() {
		closest := lowerEval
		if math.Abs(upperEval.headroom()) < math.Abs(lowerEval.headroom()) {
			closest = upperEval
		}
		verb := "never reaches"
		if lowerEval.feasible() {
			verb = "stays at or above"
		}
		summary.Value = closest.value
		summary.MetricAt = closest.metric
		summary.Headroom = closest.headroom()
		summary.Notes = []string{fmt.Sprintf("%s %s %.2f for multipliers %.4g to %.4g",
			target.Metric, verb, target.Floor, minVal, maxVal)}
		r.log(summary)
		return summary, nil
	}

	good, bad := lowerEval, upperEval
	if !good.feasible() {
		good, bad = bad, good
	}

	iterations := 0
	for iterations < constants.BreakEvenMaxIterations && math.Abs(good.value-bad.value) > constants.BreakEvenTolerance {
		iterations++
		mid, err := r.evaluate(ctx, overrides, target, (good.value+bad.value)/2)
		if err != nil {
			return optimization.Summary{}, err
		}
		if mid.feasible() {
			good = mid
		} else {
			bad = mid
		}
	}

	summary.Value = good.value
	summary.MetricAt = good.metric
	summary.Headroom = good.headroom()
	summary.Iterations = iterations
	summary.Converged = true
	r.log(summary)
	return summary, nil
}

func (r *Runner) evaluate(ctx context.Context, overrides []scenario.Override, target optimization.Target, multiplier float64) (evaluation, error) {
	if err := ctx.Err(); err != nil {
		return evaluation{}, err
	}

	applied := make([]scenario.Override, 0, len(overrides)+1)
	applied = append(applied, overrides...)
	applied = append(applied, scenario.Multiply(target.Field, multiplier))

	input, err := scenario.Apply(r.base, applied)
	if err != nil {
		return evaluation{}, err
	}
	result, err := engine.Calculate(zap.NewNop(), target.Scenario, input)
	if err != nil {
		return evaluation{}, fmt.Errorf("multiplier %.4g: %w", multiplier, err)
	}

	eval := evaluation{value: multiplier, metric: metricOf(result, target.Metric), floor: target.Floor}
	r.logger.Debug(fmt.Sprintf("evaluated %s x%.6f", target.Field, multiplier),
		zap.String("op", "optimizer.Solve"),
		zap.String("scenario", target.Scenario),
		zap.Float64("metric", eval.metric),
		zap.Bool("feasible", eval.feasible()),
	)
	return eval, nil
}

func metricOf(result *engine.ScenarioResult, metric optimization.Metric) float64 {
	switch metric {
	case optimization.MetricProfit:
		return result.Summary.Profit
	case optimization.MetricMinCash:
		if len(result.Data) == 0 {
			return 0
		}
		minCash := result.Data[0].CashBalance
		for _, month := range result.Data[1:] {
			minCash = math.Min(minCash, month.CashBalance)
		}
		return minCash
	}
	return result.Summary.NPV
}

func (r *Runner) log(summary optimization.Summary) {
	r.logger.Info("break-even search finished",
		zap.String("op", "optimizer.Solve"),
		zap.String("scenario", summary.Scenario),
		zap.String("field", string(summary.Field)),
		zap.String("metric", string(summary.Metric)),
		zap.Float64("floor", summary.Floor),
		zap.Float64("multiplier", summary.Value),
		zap.Float64("headroom", summary.Headroom),
		zap.Int("iterations", summary.Iterations),
		zap.Bool("converged", summary.Converged),
	)
}
