// Package schedule lays normalized events out over a fixed monthly horizon
// and applies retention withholding and release.
package schedule

import (
	"fmt"

	"github.com/iwvelando/feasibility-forecast/pkg/constants"
	"github.com/iwvelando/feasibility-forecast/pkg/lineitem"
	"github.com/iwvelando/feasibility-forecast/pkg/mathutil"
	"github.com/iwvelando/feasibility-forecast/pkg/validation"
	"go.uber.org/zap"
)

// Bucket holds the summed amounts of one month. Cost fields are reported
// costs: retention withheld that month is excluded and retention released
// that month is included.
type Bucket struct {
	Period int

	Revenue       float64
	SaleRevenue   float64
	RentalRevenue float64

	Construction float64
	Land         float64
	Soft         float64
	Marketing    float64
	Contingency  float64

	// GrossConstruction is construction-type work done this month before
	// retention, used to measure construction progress.
	GrossConstruction float64

	RetentionWithheld float64
	RetentionReleased float64
}

// TotalCost is every reported cost of the month.
func (b Bucket) TotalCost() float64 {
	return b.Construction + b.Land + b.Soft + b.Marketing + b.Contingency
}

// TaxableCost is the reported cost subject to VAT; land is exempt.
func (b Bucket) TaxableCost() float64 {
	return b.Construction + b.Soft + b.Marketing + b.Contingency
}

// Release is a retention amount scheduled for release.
type Release struct {
	Source   string
	Category lineitem.Category
	Period   int
	Amount   float64
}

// Schedule is the monthly layout of a project over its horizon.
type Schedule struct {
	Horizon int
	Buckets []Bucket

	// Releases lists every retention release, including those scheduled
	// after the horizon.
	Releases []Release

	// UnresolvedRetention is retention whose release falls after the horizon.
	UnresolvedRetention float64

	// TotalConstructionBudget is the gross construction-type cost of every
	// event, inside or outside the horizon.
	TotalConstructionBudget float64

	// BeyondHorizonCost and BeyondHorizonRevenue are event amounts that fall
	// after the horizon and are not in any bucket.
	BeyondHorizonCost    float64
	BeyondHorizonRevenue float64
}

// Builder builds schedules.
type Builder struct {
	logger *zap.Logger
}

// NewBuilder creates a new schedule builder with the given logger.
// If logger is nil, it will use a no-op logger to prevent panics.
func NewBuilder(logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{logger: logger}
}

// ValidateHorizon rejects non-positive or unbounded horizons.
func ValidateHorizon(horizon int) error {
	if horizon <= 0 {
		return validation.Fieldf("", "horizonMonths", "must be positive (%d)", horizon)
	}
	if horizon > constants.MaxHorizonMonths {
		return validation.Fieldf("", "horizonMonths", "must not exceed %d (%d)", constants.MaxHorizonMonths, horizon)
	}
	return nil
}

// Build buckets events into the horizon. Retention withheld on a
// construction-type event is released, without compounding, in the
// event's ReleasePeriod.
func (b *Builder) Build(events []lineitem.Event, horizon int) (Schedule, error) {
	if err := ValidateHorizon(horizon); err != nil {
		return Schedule{}, err
	}

	s := Schedule{
		Horizon: horizon,
		Buckets: make([]Bucket, horizon),
	}
	for i := range s.Buckets {
		s.Buckets[i].Period = i
	}

	// Retention per owning item and release month, in first-seen order so
	// the release list is deterministic.
	type releaseKey struct {
		source   string
		category lineitem.Category
		period   int
	}
	pending := make(map[releaseKey]float64)
	var keys []releaseKey

	for _, event := range events {
		if event.Period < 0 {
			return Schedule{}, fmt.Errorf("event %s has negative period %d", event.Source, event.Period)
		}

		if event.Type != lineitem.AmountCost {
			if event.Period >= horizon {
				s.BeyondHorizonRevenue += event.Amount
				continue
			}
			bucket := &s.Buckets[event.Period]
			bucket.Revenue += event.Amount
			if event.Type == lineitem.AmountRentalRevenue {
				bucket.RentalRevenue += event.Amount
			} else {
				bucket.SaleRevenue += event.Amount
			}
			continue
		}

		if event.Category.RetentionEligible() {
			s.TotalConstructionBudget += event.Amount
		}

		withheld := 0.0
		if event.RetentionPercent > 0 {
			withheld = mathutil.ApplyPercentage(event.Amount, event.RetentionPercent)
			key := releaseKey{source: event.Source, category: event.Category, period: event.ReleasePeriod}
			if _, seen := pending[key]; !seen {
				keys = append(keys, key)
			}
			pending[key] += withheld
		}

		if event.Period >= horizon {
			s.BeyondHorizonCost += event.Amount - withheld
			continue
		}

		bucket := &s.Buckets[event.Period]
		if event.Category.RetentionEligible() {
			bucket.GrossConstruction += event.Amount
		}
		bucket.RetentionWithheld += withheld
		addCost(bucket, event.Category, event.Amount-withheld)
	}

	for _, key := range keys {
		amount := pending[key]
		s.Releases = append(s.Releases, Release{Source: key.source, Category: key.category, Period: key.period, Amount: amount})
		if key.period >= horizon {
			s.UnresolvedRetention += amount
			b.logger.Debug(fmt.Sprintf("retention of %.2f on %s released at month %d, beyond the horizon", amount, key.source, key.period),
				zap.String("op", "schedule.Build"),
			)
			continue
		}
		bucket := &s.Buckets[key.period]
		bucket.RetentionReleased += amount
		addCost(bucket, key.category, amount)
	}

	return s, nil
}

func addCost(bucket *Bucket, category lineitem.Category, amount float64) {
	switch category {
	case lineitem.CategoryConstruction:
		bucket.Construction += amount
	case lineitem.CategoryLand:
		bucket.Land += amount
	case lineitem.CategorySoft:
		bucket.Soft += amount
	case lineitem.CategoryMarketing:
		bucket.Marketing += amount
	case lineitem.CategoryContingency:
		bucket.Contingency += amount
	}
}

// Costs returns the reported total cost of every month.
func (s Schedule) Costs() []float64 {
	costs := make([]float64, len(s.Buckets))
	for i, bucket := range s.Buckets {
		costs[i] = bucket.TotalCost()
	}
	return costs
}

// Outstanding returns retention withheld and not yet released at the end
// of month t.
func (s Schedule) Outstanding(t int) float64 {
	outstanding := 0.0
	for i := 0; i <= t && i < len(s.Buckets); i++ {
		outstanding += s.Buckets[i].RetentionWithheld - s.Buckets[i].RetentionReleased
	}
	return outstanding
}

// HasUnresolvedRetention reports whether any retention is released after
// the horizon.
func (s Schedule) HasUnresolvedRetention() bool {
	return s.UnresolvedRetention > 0
}
