package comparison

import (
	"context"
	"errors"
	"testing"

	"github.com/iwvelando/feasibility-forecast/pkg/cashflow"
	"github.com/iwvelando/feasibility-forecast/pkg/engine"
	"github.com/iwvelando/feasibility-forecast/pkg/kpi"
	"github.com/iwvelando/feasibility-forecast/pkg/lineitem"
	"github.com/iwvelando/feasibility-forecast/pkg/scenario"
	"go.uber.org/zap"
)

func projectInput() engine.Input {
	in := engine.DefaultInput()
	in.HorizonMonths = 36
	in.DiscountRate = 8
	in.LineItems = []lineitem.LineItem{
		{Name: "Plot", Category: lineitem.CategoryLand, BaseCost: 1000000, StartPeriod: 0, EndPeriod: 0},
		{Name: "Build", Category: lineitem.CategoryConstruction, BaseCost: 2400000, StartPeriod: 1, EndPeriod: 12},
	}
	in.SaleLines = []lineitem.SaleLine{
		{Name: "Villas", Units: 20, PricePerUnit: 250000, StartPeriod: 12, EndPeriod: 23},
	}
	return in
}

func TestCompareOptimisticRevenue(t *testing.T) {
	outcomes, err := scenario.RunAll(context.Background(), zap.NewNop(), projectInput(), []scenario.Scenario{
		{Name: "base"},
		{Name: "optimistic", Overrides: []scenario.Override{scenario.Multiply(scenario.AverageSalePrice, 1.15)}},
	})
	if err != nil {
		t.Fatalf("RunAll() error = %v", err)
	}

	comparisons, err := Compare(outcomes[0].Result, outcomes[1].Result)
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if len(comparisons) != 1 || comparisons[0].Base != "base" || comparisons[0].Alternative != "optimistic" {
		t.Fatalf("unexpected comparisons %+v", comparisons)
	}

	revenue, found := comparisons[0].Delta(TotalRevenue)
	if !found {
		t.Fatalf("total revenue delta missing")
	}
	if revenue.Percentage != 15.0 {
		t.Errorf("revenue percentage = %v, expected exactly 15", revenue.Percentage)
	}
	if revenue.Absolute != 750000 {
		t.Errorf("revenue absolute = %v, expected 750000", revenue.Absolute)
	}
	if revenue.Status != kpi.StatusOK {
		t.Errorf("revenue status = %s", revenue.Status)
	}

	cost, _ := comparisons[0].Delta(TotalCost)
	if cost.Absolute != 0 || cost.Percentage != 0 || cost.Status != kpi.StatusOK {
		t.Errorf("cost should not change: %+v", cost)
	}
	if len(comparisons[0].Deltas) != 13 {
		t.Errorf("expected every KPI to be compared, got %d deltas", len(comparisons[0].Deltas))
	}
}

func result(name string, horizon int, summary kpi.Summary) *engine.ScenarioResult {
	return &engine.ScenarioResult{
		Scenario: name,
		Data:     make([]cashflow.MonthlyCashflow, horizon),
		Summary:  summary,
	}
}

func TestCompareGuards(t *testing.T) {
	base := result("base", 12, kpi.Summary{
		TotalRevenue: 0,
		Profit:       -100,
		IRR:          kpi.Measure{Status: kpi.StatusUndefined},
		ROI:          kpi.Measure{Value: 0.2, Status: kpi.StatusOK},
	})
	alt := result("alt", 12, kpi.Summary{
		TotalRevenue: 500,
		Profit:       -50,
		IRR:          kpi.Measure{Value: 0.12, Status: kpi.StatusOK},
		ROI:          kpi.Measure{Value: 0.25, Status: kpi.StatusOK},
	})

	comparisons, err := Compare(base, alt)
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	c := comparisons[0]

	tests := []struct {
		kpi        KPI
		absolute   float64
		percentage float64
		status     kpi.Status
	}{
		{kpi: TotalRevenue, absolute: 500, percentage: 0, status: kpi.StatusUndefined},
		{kpi: Profit, absolute: 50, percentage: 50, status: kpi.StatusOK},
		{kpi: IRR, absolute: 0, percentage: 0, status: kpi.StatusUndefined},
		{kpi: ROI, absolute: 0.05, percentage: 25, status: kpi.StatusOK},
	}
	for _, tt := range tests {
		t.Run(string(tt.kpi), func(t *testing.T) {
			d, _ := c.Delta(tt.kpi)
			if d.Absolute != tt.absolute || d.Percentage != tt.percentage || d.Status != tt.status {
				t.Errorf("delta = %+v, expected absolute %v percentage %v status %s", d, tt.absolute, tt.percentage, tt.status)
			}
		})
	}
}

func TestComparePercentageUsesExactValues(t *testing.T) {
	base := result("base", 12, kpi.Summary{TotalRevenue: 0.07, NPV: 0.004})
	alt := result("alt", 12, kpi.Summary{TotalRevenue: 0.0805, NPV: 0.006})

	comparisons, err := Compare(base, alt)
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}

	revenue, _ := comparisons[0].Delta(TotalRevenue)
	if revenue.Percentage != 15 || revenue.Status != kpi.StatusOK {
		t.Errorf("revenue delta = %+v, expected exactly 15 percent", revenue)
	}
	if revenue.Base != 0.07 || revenue.Alternative != 0.08 || revenue.Absolute != 0.01 {
		t.Errorf("revenue figures should be reported in cents, got %+v", revenue)
	}

	npv, _ := comparisons[0].Delta(NPV)
	if npv.Status != kpi.StatusUndefined || npv.Percentage != 0 {
		t.Errorf("a base below one cent should have no percentage, got %+v", npv)
	}
}

func TestCompareHorizonMismatch(t *testing.T) {
	_, err := Compare(result("base", 12, kpi.Summary{}), result("long", 24, kpi.Summary{}))
	if !errors.Is(err, ErrHorizonMismatch) {
		t.Errorf("expected ErrHorizonMismatch, got %v", err)
	}
}

func TestCompareNil(t *testing.T) {
	if _, err := Compare(nil); err == nil {
		t.Errorf("expected an error without a base")
	}
	if _, err := Compare(result("base", 12, kpi.Summary{}), nil); err == nil {
		t.Errorf("expected an error for a nil alternative")
	}
}
