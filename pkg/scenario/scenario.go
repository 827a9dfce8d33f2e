// Package scenario derives named variants of a base input by applying
// field overrides and runs them independently.
package scenario

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"github.com/iwvelando/feasibility-forecast/pkg/engine"
	"github.com/iwvelando/feasibility-forecast/pkg/lineitem"
	"github.com/iwvelando/feasibility-forecast/pkg/validation"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Field names an overridable input.
type Field string

const (
	ConstructionCost  Field = "constructionCost"
	LandCost          Field = "landCost"
	SoftCost          Field = "softCost"
	MarketingCost     Field = "marketingCost"
	ContingencyCost   Field = "contingencyCost"
	AverageSalePrice  Field = "averageSalePrice"
	SalesUnits        Field = "salesUnits"
	ADR               Field = "adr"
	OccupancyRate     Field = "occupancyRate"
	InterestRate      Field = "interestRate"
	LoanPrincipal     Field = "loanPrincipal"
	EscrowPercentage  Field = "escrowPercentage"
	ZakatRate         Field = "zakatRate"
	VATRate           Field = "vatRate"
	DiscountRate      Field = "discountRate"
	HorizonMonths     Field = "horizonMonths"
	ConstructionDelay Field = "constructionDelay"
)

// Fields lists every overridable field.
var Fields = []Field{
	ConstructionCost, LandCost, SoftCost, MarketingCost, ContingencyCost,
	AverageSalePrice, SalesUnits, ADR, OccupancyRate,
	InterestRate, LoanPrincipal,
	EscrowPercentage, ZakatRate, VATRate,
	DiscountRate, HorizonMonths, ConstructionDelay,
}

// Valid reports whether f is a known field.
func (f Field) Valid() bool {
	for _, known := range Fields {
		if f == known {
			return true
		}
	}
	return false
}

// Override changes one field either by a Multiplier or to an absolute
// Value. Exactly one must be set. ConstructionDelay only takes a Value,
// the number of months construction-type items are shifted by.
type Override struct {
	Field      Field    `json:"field" yaml:"field"`
	Multiplier *float64 `json:"multiplier,omitempty" yaml:"multiplier,omitempty"`
	Value      *float64 `json:"value,omitempty" yaml:"value,omitempty"`
}

// Multiply builds a multiplier override.
func Multiply(field Field, factor float64) Override {
	return Override{Field: field, Multiplier: &factor}
}

// Set builds an absolute value override.
func Set(field Field, value float64) Override {
	return Override{Field: field, Value: &value}
}

func (o Override) apply(v float64) float64 {
	if o.Multiplier != nil {
		return v * *o.Multiplier
	}
	return *o.Value
}

func (o Override) applyInt(v int) int {
	return int(math.Round(o.apply(float64(v))))
}

// Validate checks a single override.
func (o Override) Validate(label string) error {
	var c validation.Collector
	if !o.Field.Valid() {
		c.Addf(label, "field", "unknown override field %q", o.Field)
	}
	switch {
	case o.Multiplier == nil && o.Value == nil:
		c.Addf(label, "multiplier", "one of multiplier or value is required")
	case o.Multiplier != nil && o.Value != nil:
		c.Addf(label, "multiplier", "multiplier and value are mutually exclusive")
	case o.Multiplier != nil && *o.Multiplier < 0:
		c.Addf(label, "multiplier", "must not be negative (%v)", *o.Multiplier)
	case o.Field == ConstructionDelay && o.Multiplier != nil:
		c.Addf(label, "multiplier", "constructionDelay is additive and takes a value")
	}
	return c.Err()
}

// Scenario is a named override set.
type Scenario struct {
	Name      string     `json:"name" yaml:"name"`
	Overrides []Override `json:"overrides" yaml:"overrides"`
}

// Apply returns a copy of base with the overrides applied in order. The
// base is never modified.
func Apply(base engine.Input, overrides []Override) (engine.Input, error) {
	var c validation.Collector
	for i, o := range overrides {
		c.Add(o.Validate(fmt.Sprintf("overrides[%d]", i)))
	}
	if err := c.Err(); err != nil {
		return engine.Input{}, err
	}

	in := base.Clone()
	for _, o := range overrides {
		switch o.Field {
		case ConstructionCost:
			scaleCategory(in.LineItems, lineitem.CategoryConstruction, o)
		case LandCost:
			scaleCategory(in.LineItems, lineitem.CategoryLand, o)
		case SoftCost:
			scaleCategory(in.LineItems, lineitem.CategorySoft, o)
		case MarketingCost:
			scaleCategory(in.LineItems, lineitem.CategoryMarketing, o)
		case ContingencyCost:
			scaleCategory(in.LineItems, lineitem.CategoryContingency, o)
		case AverageSalePrice:
			for i := range in.SaleLines {
				in.SaleLines[i].PricePerUnit = o.apply(in.SaleLines[i].PricePerUnit)
			}
		case SalesUnits:
			for i := range in.SaleLines {
				in.SaleLines[i].Units = o.applyInt(in.SaleLines[i].Units)
			}
		case ADR:
			for i := range in.RentalLines {
				in.RentalLines[i].ADR = o.apply(in.RentalLines[i].ADR)
			}
		case OccupancyRate:
			for i := range in.RentalLines {
				in.RentalLines[i].OccupancyRate = o.apply(in.RentalLines[i].OccupancyRate)
			}
		case InterestRate:
			in.Loan.AnnualInterestRate = o.apply(in.Loan.AnnualInterestRate)
		case LoanPrincipal:
			in.Loan.Principal = o.apply(in.Loan.Principal)
		case EscrowPercentage:
			in.Compliance.Escrow.Percentage = o.apply(in.Compliance.Escrow.Percentage)
		case ZakatRate:
			in.Compliance.Zakat.RatePercent = o.apply(in.Compliance.Zakat.RatePercent)
		case VATRate:
			in.Compliance.VAT.RatePercent = o.apply(in.Compliance.VAT.RatePercent)
		case DiscountRate:
			in.DiscountRate = o.apply(in.DiscountRate)
		case HorizonMonths:
			in.HorizonMonths = o.applyInt(in.HorizonMonths)
		case ConstructionDelay:
			delay := int(math.Round(*o.Value))
			for i := range in.LineItems {
				if in.LineItems[i].Category.RetentionEligible() {
					in.LineItems[i].StartPeriod += delay
					in.LineItems[i].EndPeriod += delay
				}
			}
		}
	}
	return in, nil
}

func scaleCategory(items []lineitem.LineItem, category lineitem.Category, o Override) {
	for i := range items {
		if items[i].Category == category {
			items[i].BaseCost = o.apply(items[i].BaseCost)
		}
	}
}

// Outcome is the result of one scenario. Err is set when the scenario could
// not be calculated; it never affects other scenarios.
type Outcome struct {
	Name   string
	Result *engine.ScenarioResult
	Err    error
}

// RunAll calculates every scenario on its own copy of base, concurrently,
// and returns the outcomes in input order. The returned error is only set
// when ctx is done before all scenarios ran.
func RunAll(ctx context.Context, logger *zap.Logger, base engine.Input, scenarios []Scenario) ([]Outcome, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	outcomes := make([]Outcome, len(scenarios))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i, sc := range scenarios {
		i, sc := i, sc
		outcomes[i].Name = sc.Name
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			input, err := Apply(base, sc.Overrides)
			if err != nil {
				outcomes[i].Err = fmt.Errorf("scenario %s: %w", sc.Name, err)
				return nil
			}
			result, err := engine.Calculate(logger, sc.Name, input)
			if err != nil {
				logger.Warn("scenario failed",
					zap.String("op", "scenario.RunAll"),
					zap.String("scenario", sc.Name),
					zap.Error(err),
				)
				outcomes[i].Err = err
				return nil
			}
			outcomes[i].Result = result
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return outcomes, err
	}

	logger.Debug(fmt.Sprintf("ran %d scenarios", len(scenarios)),
		zap.String("op", "scenario.RunAll"),
	)
	return outcomes, nil
}

// Results returns the successful results by scenario name.
func Results(outcomes []Outcome) map[string]*engine.ScenarioResult {
	results := make(map[string]*engine.ScenarioResult, len(outcomes))
	for _, o := range outcomes {
		if o.Err == nil && o.Result != nil {
			results[o.Name] = o.Result
		}
	}
	return results
}
