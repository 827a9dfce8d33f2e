// Package forecast runs every active scenario of a configuration and
// compares the alternatives against the base case.
package forecast

import (
	"context"
	"errors"
	"fmt"

	"github.com/iwvelando/feasibility-forecast/internal/config"
	"github.com/iwvelando/feasibility-forecast/internal/optimizer"
	"github.com/iwvelando/feasibility-forecast/pkg/comparison"
	"github.com/iwvelando/feasibility-forecast/pkg/engine"
	"github.com/iwvelando/feasibility-forecast/pkg/optimization"
	"github.com/iwvelando/feasibility-forecast/pkg/scenario"
	"go.uber.org/zap"
)

// Failure is a scenario that could not be calculated.
type Failure struct {
	Scenario string `json:"scenario"`
	Error    string `json:"error"`
}

// Forecast holds the results of one configuration.
type Forecast struct {
	Results     []*engine.ScenarioResult `json:"results"`
	Comparisons []comparison.Comparison  `json:"comparisons,omitempty"`
	BreakEven   []optimization.Summary   `json:"breakEven,omitempty"`
	Failures    []Failure                `json:"failures,omitempty"`
	Warnings    []string                 `json:"warnings,omitempty"`
}

// ScenarioNames lists the calculated scenarios in order.
func (f *Forecast) ScenarioNames() []string {
	names := make([]string, 0, len(f.Results))
	for _, result := range f.Results {
		names = append(names, result.Scenario)
	}
	return names
}

// GetForecast processes the forecasts for all active scenarios. A scenario
// that fails is reported in Failures; an error is returned only when no
// scenario could be calculated or ctx ends.
func GetForecast(ctx context.Context, logger *zap.Logger, conf config.Configuration) (*Forecast, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	sets := conf.ScenarioSets()
	if len(sets) == 0 {
		return nil, errors.New("no active scenarios")
	}
	for _, s := range conf.Scenarios {
		if !s.Active {
			logger.Debug(fmt.Sprintf("skipping scenario %s because it is inactive", s.Name),
				zap.String("op", "forecast.GetForecast"),
			)
		}
	}

	input := conf.ToInput()
	outcomes, err := scenario.RunAll(ctx, logger, input, sets)
	if err != nil {
		return nil, err
	}

	f := &Forecast{Warnings: conf.ValidateConfiguration()}
	var errs []error
	for _, outcome := range outcomes {
		if outcome.Err != nil {
			logger.Warn("scenario failed",
				zap.String("op", "forecast.GetForecast"),
				zap.String("scenario", outcome.Name),
				zap.Error(outcome.Err),
			)
			f.Failures = append(f.Failures, Failure{Scenario: outcome.Name, Error: outcome.Err.Error()})
			errs = append(errs, outcome.Err)
			continue
		}
		f.Results = append(f.Results, outcome.Result)
	}
	if len(f.Results) == 0 {
		return nil, errors.Join(errs...)
	}

	f.compare(logger, conf)

	if len(conf.BreakEven) > 0 {
		summaries, err := optimizer.NewRunner(logger, input, sets).Run(ctx, conf.BreakEven)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if joined, ok := err.(interface{ Unwrap() []error }); ok {
			for _, e := range joined.Unwrap() {
				f.Warnings = append(f.Warnings, e.Error())
			}
		}
		f.BreakEven = summaries
	}
	return f, nil
}

// compare fills Comparisons for every result sharing the base horizon.
func (f *Forecast) compare(logger *zap.Logger, conf config.Configuration) {
	baseName, err := conf.BaseScenario()
	if err != nil {
		return
	}
	var base *engine.ScenarioResult
	for _, result := range f.Results {
		if result.Scenario == baseName {
			base = result
			break
		}
	}
	if base == nil {
		f.Warnings = append(f.Warnings, fmt.Sprintf("Comparison skipped because base scenario '%s' failed", baseName))
		return
	}

	var alternatives []*engine.ScenarioResult
	for _, result := range f.Results {
		if result == base {
			continue
		}
		if result.Horizon() != base.Horizon() {
			f.Warnings = append(f.Warnings, fmt.Sprintf("Scenario '%s' covers %d months and is not compared against '%s' (%d months)",
				result.Scenario, result.Horizon(), base.Scenario, base.Horizon()))
			continue
		}
		alternatives = append(alternatives, result)
	}
	if len(alternatives) == 0 {
		return
	}

	comparisons, err := comparison.Compare(base, alternatives...)
	if err != nil {
		logger.Warn("comparison failed",
			zap.String("op", "forecast.GetForecast"),
			zap.Error(err),
		)
		f.Warnings = append(f.Warnings, fmt.Sprintf("Comparison failed: %v", err))
		return
	}
	f.Comparisons = comparisons
}
