package forecast

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/iwvelando/feasibility-forecast/internal/config"
	"github.com/iwvelando/feasibility-forecast/pkg/comparison"
	"github.com/iwvelando/feasibility-forecast/pkg/engine"
	"github.com/iwvelando/feasibility-forecast/pkg/optimization"
	"github.com/iwvelando/feasibility-forecast/pkg/scenario"
	"go.uber.org/zap"
)

const testConfig = "../config/testdata/config.yaml"

func loadConfig(t *testing.T) *config.Configuration {
	t.Helper()
	conf, err := config.LoadConfiguration(testConfig)
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}
	return conf
}

func TestGetForecast(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	conf := loadConfig(t)

	f, err := GetForecast(context.Background(), logger, *conf)
	if err != nil {
		t.Fatalf("GetForecast() error = %v", err)
	}

	if got := strings.Join(f.ScenarioNames(), ","); got != "base,optimistic,delayed" {
		t.Errorf("unexpected scenarios %s", got)
	}
	if len(f.Failures) != 0 {
		t.Errorf("unexpected failures %+v", f.Failures)
	}
	for _, result := range f.Results {
		if result.Horizon() != 48 {
			t.Errorf("scenario %s has %d months", result.Scenario, result.Horizon())
		}
		if result.Currency != "SAR" {
			t.Errorf("scenario %s lost its currency", result.Scenario)
		}
	}

	if len(f.Comparisons) != 2 {
		t.Fatalf("expected 2 comparisons, got %d", len(f.Comparisons))
	}
	revenue, _ := f.Comparisons[0].Delta(comparison.TotalRevenue)
	if f.Comparisons[0].Alternative != "optimistic" || revenue.Percentage <= 0 {
		t.Errorf("optimistic scenario should raise revenue, got %+v", revenue)
	}

	if len(f.BreakEven) != 1 || !f.BreakEven[0].Converged {
		t.Fatalf("expected one solved break-even target, got %+v", f.BreakEven)
	}
	if v := f.BreakEven[0].Value; v <= 0 || v >= 1 {
		t.Errorf("break-even price multiplier should be below today's price, got %.4f", v)
	}

	found := false
	for _, w := range f.Warnings {
		if strings.Contains(w, "'archived' is inactive") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected inactive scenario warning, got %v", f.Warnings)
	}
}

func TestGetForecastScenarioFailure(t *testing.T) {
	conf := loadConfig(t)
	conf.Scenarios = append(conf.Scenarios, config.Scenario{
		Name:      "broken",
		Active:    true,
		Overrides: []scenario.Override{scenario.Set(scenario.HorizonMonths, 0)},
	})

	f, err := GetForecast(context.Background(), zap.NewNop(), *conf)
	if err != nil {
		t.Fatalf("GetForecast() error = %v", err)
	}
	if len(f.Results) != 3 {
		t.Errorf("other scenarios should still run, got %v", f.ScenarioNames())
	}
	if len(f.Failures) != 1 || f.Failures[0].Scenario != "broken" {
		t.Errorf("expected the broken scenario to fail alone, got %+v", f.Failures)
	}
}

func TestGetForecastHorizonMismatchSkipsComparison(t *testing.T) {
	conf := loadConfig(t)
	conf.Scenarios = []config.Scenario{
		{Name: "base", Active: true},
		{Name: "longer", Active: true, Overrides: []scenario.Override{scenario.Set(scenario.HorizonMonths, 60)}},
	}

	f, err := GetForecast(context.Background(), zap.NewNop(), *conf)
	if err != nil {
		t.Fatalf("GetForecast() error = %v", err)
	}
	if len(f.Comparisons) != 0 {
		t.Errorf("results with different horizons must not be compared")
	}
	if !strings.Contains(strings.Join(f.Warnings, "\n"), "'longer' covers 60 months") {
		t.Errorf("expected a horizon warning, got %v", f.Warnings)
	}
}

func TestGetForecastBreakEvenWarning(t *testing.T) {
	conf := loadConfig(t)
	conf.BreakEven = append(conf.BreakEven, optimization.Target{Scenario: "archived", Field: scenario.ADR, Metric: optimization.MetricNPV})

	f, err := GetForecast(context.Background(), zap.NewNop(), *conf)
	if err != nil {
		t.Fatalf("GetForecast() error = %v", err)
	}
	if len(f.BreakEven) != 1 {
		t.Errorf("the valid target should still be solved, got %d", len(f.BreakEven))
	}
	if !strings.Contains(strings.Join(f.Warnings, "\n"), "break-even archived/adr") {
		t.Errorf("expected a warning for the inactive scenario target, got %v", f.Warnings)
	}
}

func TestGetForecastAllFail(t *testing.T) {
	conf := loadConfig(t)
	conf.Project.HorizonMonths = 0
	conf.Scenarios = []config.Scenario{{Name: "base", Active: true}}

	_, err := GetForecast(context.Background(), zap.NewNop(), *conf)
	if !errors.Is(err, engine.ErrValidation) {
		t.Errorf("expected a validation error, got %v", err)
	}
}

func TestGetForecastNoActiveScenarios(t *testing.T) {
	conf := loadConfig(t)
	conf.Scenarios = []config.Scenario{{Name: "off"}}
	if _, err := GetForecast(context.Background(), zap.NewNop(), *conf); err == nil {
		t.Errorf("expected an error without active scenarios")
	}
}

func TestGetForecastCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := GetForecast(ctx, zap.NewNop(), *loadConfig(t)); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
