// Package compliance computes the regulatory cash effects of a project:
// VAT on costs, the escrow reserve and its release, and zakat.
package compliance

import (
	"fmt"
	"math"

	"github.com/iwvelando/feasibility-forecast/pkg/mathutil"
	"github.com/iwvelando/feasibility-forecast/pkg/schedule"
	"github.com/iwvelando/feasibility-forecast/pkg/validation"
	"go.uber.org/zap"
)

// TriggerType selects when reserved escrow funds are released.
type TriggerType string

const (
	TriggerConstructionPercent TriggerType = "construction_percent"
	TriggerMonthBased          TriggerType = "month_based"
	TriggerMilestoneBased      TriggerType = "milestone_based"
)

// CalculationMethod selects the base zakat is levied on.
type CalculationMethod string

const (
	ZakatNetProfit    CalculationMethod = "net_profit"
	ZakatGrossRevenue CalculationMethod = "gross_revenue"
	ZakatAssetValue   CalculationMethod = "asset_value"
)

// Escrow configures the revenue reserve. ReleaseThreshold is a percent of
// the construction budget for construction_percent and a month index for
// month_based. Milestone releases use MilestoneReleaseMonth, derived by the
// caller from its milestone data; TriggerDetails is carried for display.
type Escrow struct {
	Enabled               bool
	Percentage            float64
	TriggerType           TriggerType
	ReleaseThreshold      float64
	TriggerDetails        string
	MilestoneReleaseMonth *int
}

// Zakat configures the levy. DueMonth overrides the default allocation to
// the final horizon month.
type Zakat struct {
	Applicable        bool
	RatePercent       float64
	CalculationMethod CalculationMethod
	ExcludeLosses     bool
	DueMonth          *int
}

// VAT configures value added tax on costs.
type VAT struct {
	Applicable  bool
	RatePercent float64
	Registered  bool
}

// Settings groups the compliance rules of a project.
type Settings struct {
	Escrow Escrow
	Zakat  Zakat
	VAT    VAT
}

// DefaultSettings returns the explicit defaults: nothing applies, a VAT
// applicable project is registered, zakat uses net profit at 2.5% and
// escrow releases on construction progress.
func DefaultSettings() Settings {
	return Settings{
		Escrow: Escrow{TriggerType: TriggerConstructionPercent},
		Zakat:  Zakat{RatePercent: 2.5, CalculationMethod: ZakatNetProfit},
		VAT:    VAT{Registered: true},
	}
}

func validPercent(c *validation.Collector, item, field string, v float64) {
	if v < 0 || v > 100 {
		c.Addf(item, field, "must be between 0 and 100 (%v)", v)
	}
}

// Validate checks the settings against a horizon.
func (s Settings) Validate(horizon int) error {
	var c validation.Collector

	if s.VAT.Applicable {
		validPercent(&c, "vat", "ratePercent", s.VAT.RatePercent)
	}

	if s.Zakat.Applicable {
		validPercent(&c, "zakat", "ratePercent", s.Zakat.RatePercent)
		switch s.Zakat.CalculationMethod {
		case ZakatNetProfit, ZakatGrossRevenue, ZakatAssetValue:
		default:
			c.Addf("zakat", "calculationMethod", "unknown calculation method %q", s.Zakat.CalculationMethod)
		}
		if s.Zakat.DueMonth != nil && (*s.Zakat.DueMonth < 0 || *s.Zakat.DueMonth >= horizon) {
			c.Addf("zakat", "dueMonth", "must fall inside the %d month horizon (%d)", horizon, *s.Zakat.DueMonth)
		}
	}

	if s.Escrow.Enabled {
		validPercent(&c, "escrow", "percentage", s.Escrow.Percentage)
		switch s.Escrow.TriggerType {
		case TriggerConstructionPercent:
			validPercent(&c, "escrow", "releaseThreshold", s.Escrow.ReleaseThreshold)
		case TriggerMonthBased:
			if s.Escrow.ReleaseThreshold < 0 || s.Escrow.ReleaseThreshold != math.Trunc(s.Escrow.ReleaseThreshold) {
				c.Addf("escrow", "releaseThreshold", "must be a month index for month_based release (%v)", s.Escrow.ReleaseThreshold)
			}
		case TriggerMilestoneBased:
			if s.Escrow.MilestoneReleaseMonth == nil {
				c.Addf("escrow", "milestoneReleaseMonth", "is required for milestone_based release")
			} else if *s.Escrow.MilestoneReleaseMonth < 0 {
				c.Addf("escrow", "milestoneReleaseMonth", "must not be negative (%d)", *s.Escrow.MilestoneReleaseMonth)
			}
		default:
			c.Addf("escrow", "triggerType", "unknown trigger type %q", s.Escrow.TriggerType)
		}
	}

	return c.Err()
}

// Month holds the compliance amounts of one month.
type Month struct {
	Period         int
	VATOnCosts     float64
	VATRecoverable float64
	EscrowReserved float64
	EscrowReleased float64
}

// Result is the monthly VAT and escrow outcome of a schedule.
type Result struct {
	Months []Month

	TotalVAT            float64
	TotalVATRecoverable float64

	TotalEscrowReserved float64
	TotalEscrowReleased float64

	// EscrowReleaseMonth is the trigger month, or -1 when the trigger never
	// fires inside the horizon.
	EscrowReleaseMonth int

	// EscrowHeld is reserved funds not released inside the horizon.
	EscrowHeld float64
}

// NetVAT is the VAT paid on costs that is not recovered.
func (r Result) NetVAT() float64 {
	return r.TotalVAT - r.TotalVATRecoverable
}

// ZakatBasis carries the scenario totals zakat may be levied on.
type ZakatBasis struct {
	Profit     float64 // before zakat
	Revenue    float64
	AssetValue float64
}

// ZakatResult is the zakat due of a scenario and the month it is paid.
type ZakatResult struct {
	Base            float64
	Due             float64
	Month           int
	ExcludedForLoss bool
}

// Calculator applies compliance rules.
type Calculator struct {
	logger *zap.Logger
}

// NewCalculator creates a new compliance calculator. A nil logger is
// replaced with a no-op logger.
func NewCalculator(logger *zap.Logger) *Calculator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Calculator{logger: logger}
}

// Monthly computes VAT and escrow for every month of the schedule.
func (c *Calculator) Monthly(settings Settings, sched schedule.Schedule) (Result, error) {
	if err := settings.Validate(sched.Horizon); err != nil {
		return Result{}, err
	}

	r := Result{
		Months:             make([]Month, len(sched.Buckets)),
		EscrowReleaseMonth: -1,
	}

	if settings.Escrow.Enabled {
		r.EscrowReleaseMonth = c.releaseMonth(settings.Escrow, sched)
	}

	var reservedBefore float64
	for t, bucket := range sched.Buckets {
		m := Month{Period: t}

		if settings.VAT.Applicable {
			m.VATOnCosts = mathutil.ApplyPercentage(bucket.TaxableCost(), settings.VAT.RatePercent)
			if settings.VAT.Registered {
				m.VATRecoverable = m.VATOnCosts
			}
		}

		if settings.Escrow.Enabled {
			if t == r.EscrowReleaseMonth {
				// Everything reserved in earlier months is released as one sum.
				m.EscrowReleased = reservedBefore
			}
			m.EscrowReserved = mathutil.ApplyPercentage(bucket.Revenue, settings.Escrow.Percentage)
			reservedBefore += m.EscrowReserved
		}

		r.TotalVAT += m.VATOnCosts
		r.TotalVATRecoverable += m.VATRecoverable
		r.TotalEscrowReserved += m.EscrowReserved
		r.TotalEscrowReleased += m.EscrowReleased
		r.Months[t] = m
	}

	r.EscrowHeld = r.TotalEscrowReserved - r.TotalEscrowReleased
	if settings.Escrow.Enabled && r.EscrowHeld > 0 {
		c.logger.Debug(fmt.Sprintf("escrow of %.2f is held at the end of the horizon", r.EscrowHeld),
			zap.String("op", "compliance.Monthly"),
		)
	}

	return r, nil
}

// releaseMonth finds the escrow trigger month inside the horizon, or -1.
func (c *Calculator) releaseMonth(escrow Escrow, sched schedule.Schedule) int {
	horizon := len(sched.Buckets)
	month := -1

	switch escrow.TriggerType {
	case TriggerConstructionPercent:
		if sched.TotalConstructionBudget <= 0 {
			c.logger.Debug("construction budget is zero, construction_percent escrow never triggers",
				zap.String("op", "compliance.releaseMonth"),
			)
			return -1
		}
		var cumulative float64
		for t, bucket := range sched.Buckets {
			cumulative += bucket.GrossConstruction
			if cumulative/sched.TotalConstructionBudget >= escrow.ReleaseThreshold/100 {
				month = t
				break
			}
		}
	case TriggerMonthBased:
		month = int(escrow.ReleaseThreshold)
	case TriggerMilestoneBased:
		month = *escrow.MilestoneReleaseMonth
	}

	if month >= horizon {
		c.logger.Debug(fmt.Sprintf("escrow release month %d is beyond the horizon", month),
			zap.String("op", "compliance.releaseMonth"),
		)
		return -1
	}
	return month
}

// Zakat computes the zakat due once per scenario. A negative base never
// yields a refund; with ExcludeLosses a non-positive base is flagged.
func (c *Calculator) Zakat(settings Zakat, basis ZakatBasis, horizon int) ZakatResult {
	result := ZakatResult{Month: horizon - 1}
	if settings.DueMonth != nil {
		result.Month = *settings.DueMonth
	}
	if !settings.Applicable {
		return result
	}

	switch settings.CalculationMethod {
	case ZakatGrossRevenue:
		result.Base = basis.Revenue
	case ZakatAssetValue:
		result.Base = basis.AssetValue
	default:
		result.Base = basis.Profit
	}

	if result.Base <= 0 {
		if settings.ExcludeLosses {
			result.ExcludedForLoss = true
			c.logger.Debug(fmt.Sprintf("zakat excluded for a non-positive base of %.2f", result.Base),
				zap.String("op", "compliance.Zakat"),
			)
		}
		return result
	}

	result.Due = mathutil.ApplyPercentage(result.Base, settings.RatePercent)
	return result
}
