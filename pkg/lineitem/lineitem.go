// Package lineitem defines the typed cost and revenue line items of a
// development project and normalizes them into a canonical per-period
// event list.
package lineitem

import (
	"fmt"
	"sort"

	"github.com/iwvelando/feasibility-forecast/pkg/constants"
	"github.com/iwvelando/feasibility-forecast/pkg/mathutil"
	"github.com/iwvelando/feasibility-forecast/pkg/validation"
)

// Category classifies a cost line item.
type Category string

const (
	CategoryConstruction Category = "construction"
	CategoryLand         Category = "land"
	CategorySoft         Category = "soft"
	CategoryMarketing    Category = "marketing"
	CategoryContingency  Category = "contingency"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryConstruction, CategoryLand, CategorySoft, CategoryMarketing, CategoryContingency:
		return true
	}
	return false
}

// RetentionEligible reports whether retention may be withheld on items of
// this category.
func (c Category) RetentionEligible() bool {
	return c == CategoryConstruction || c == CategoryContingency
}

// AmountType identifies what an Event's amount represents.
type AmountType string

const (
	AmountCost          AmountType = "cost"
	AmountSaleRevenue   AmountType = "sale_revenue"
	AmountRentalRevenue AmountType = "rental_revenue"
)

// LineItem is a cost spread evenly over [StartPeriod, EndPeriod] and
// escalated per period from its own start. EscalationRate is a fraction
// (0.01 is 1% per month). RetentionPercent applies to construction-type
// categories only.
type LineItem struct {
	Name                string
	Category            Category
	BaseCost            float64
	StartPeriod         int
	EndPeriod           int
	EscalationRate      float64
	RetentionPercent    float64
	RetentionReleaseLag int
}

// SaleLine is unit sales revenue spread evenly over its span.
type SaleLine struct {
	Name                    string
	Units                   int
	PricePerUnit            float64
	StartPeriod             int
	EndPeriod               int
	AnnualEscalationPercent float64
}

// RentalLine is hospitality or rental revenue: Rooms x ADR x occupancy per
// night, earned in every month of its span. OccupancyRate and
// AnnualEscalation are percents.
type RentalLine struct {
	Name             string
	Rooms            int
	ADR              float64
	OccupancyRate    float64
	StartPeriod      int
	EndPeriod        int
	AnnualEscalation float64
}

// Event is one normalized (period, amount type, amount) tuple.
type Event struct {
	Period   int
	Type     AmountType
	Category Category // cost events only
	Source   string
	Amount   float64

	// Retention withheld on this event and the month it is released.
	RetentionPercent float64
	ReleasePeriod    int

	order int
}

// Periods returns the number of months the item spans.
func (li LineItem) Periods() int {
	return li.EndPeriod - li.StartPeriod + 1
}

// Periods returns the number of months the sale line spans.
func (sl SaleLine) Periods() int {
	return sl.EndPeriod - sl.StartPeriod + 1
}

// Periods returns the number of months the rental line spans.
func (rl RentalLine) Periods() int {
	return rl.EndPeriod - rl.StartPeriod + 1
}

// Validate checks a cost line item.
func (li LineItem) Validate(label string) error {
	var c validation.Collector
	if !li.Category.Valid() {
		c.Addf(label, "category", "unknown category %q", li.Category)
	}
	if li.BaseCost < 0 {
		c.Addf(label, "baseCost", "must not be negative (%.2f)", li.BaseCost)
	}
	checkSpan(&c, label, li.StartPeriod, li.EndPeriod)
	if li.EscalationRate < 0 {
		c.Addf(label, "escalationRate", "must not be negative (%v)", li.EscalationRate)
	}
	if li.RetentionPercent < 0 || li.RetentionPercent > 100 {
		c.Addf(label, "retentionPercent", "must be between 0 and 100 (%v)", li.RetentionPercent)
	}
	if li.RetentionReleaseLag < 0 {
		c.Addf(label, "retentionReleaseLag", "must not be negative (%d)", li.RetentionReleaseLag)
	}
	return c.Err()
}

// Validate checks a sale line.
func (sl SaleLine) Validate(label string) error {
	var c validation.Collector
	if sl.Units < 1 {
		c.Addf(label, "units", "must be at least 1 (%d)", sl.Units)
	}
	if sl.PricePerUnit < 0 {
		c.Addf(label, "pricePerUnit", "must not be negative (%.2f)", sl.PricePerUnit)
	}
	checkSpan(&c, label, sl.StartPeriod, sl.EndPeriod)
	if sl.AnnualEscalationPercent < 0 {
		c.Addf(label, "annualEscalationPercent", "must not be negative (%v)", sl.AnnualEscalationPercent)
	}
	return c.Err()
}

// Validate checks a rental line.
func (rl RentalLine) Validate(label string) error {
	var c validation.Collector
	if rl.Rooms < 1 {
		c.Addf(label, "rooms", "must be at least 1 (%d)", rl.Rooms)
	}
	if rl.ADR < 0 {
		c.Addf(label, "adr", "must not be negative (%.2f)", rl.ADR)
	}
	if rl.OccupancyRate < 0 || rl.OccupancyRate > 100 {
		c.Addf(label, "occupancyRate", "must be between 0 and 100 (%v)", rl.OccupancyRate)
	}
	checkSpan(&c, label, rl.StartPeriod, rl.EndPeriod)
	if rl.AnnualEscalation < 0 {
		c.Addf(label, "annualEscalation", "must not be negative (%v)", rl.AnnualEscalation)
	}
	return c.Err()
}

func checkSpan(c *validation.Collector, label string, start, end int) {
	if start < 0 {
		c.Addf(label, "startPeriod", "must not be negative (%d)", start)
	}
	if end < start {
		c.Addf(label, "endPeriod", "must be >= startPeriod (%d < %d)", end, start)
	}
}

// Label names an item for error messages, e.g. "lineItems[2] (Tower A)".
func Label(kind string, index int, name string) string {
	if name == "" {
		return fmt.Sprintf("%s[%d]", kind, index)
	}
	return fmt.Sprintf("%s[%d] (%s)", kind, index, name)
}

// Validate checks every item and reports all offending fields at once.
func Validate(items []LineItem, sales []SaleLine, rentals []RentalLine) error {
	var c validation.Collector
	for i, item := range items {
		c.Add(item.Validate(Label("lineItems", i, item.Name)))
	}
	for i, sale := range sales {
		c.Add(sale.Validate(Label("saleLines", i, sale.Name)))
	}
	for i, rental := range rentals {
		c.Add(rental.Validate(Label("rentalLines", i, rental.Name)))
	}
	return c.Err()
}

// Normalize validates the inputs and expands them into per-period events
// ordered by period and then by input order. Invalid items are rejected,
// never clamped.
func Normalize(items []LineItem, sales []SaleLine, rentals []RentalLine) ([]Event, error) {
	if err := Validate(items, sales, rentals); err != nil {
		return nil, err
	}

	var events []Event
	order := 0
	for _, item := range items {
		n := float64(item.Periods())
		retention := 0.0
		if item.Category.RetentionEligible() {
			retention = item.RetentionPercent
		}
		for p := item.StartPeriod; p <= item.EndPeriod; p++ {
			events = append(events, Event{
				Period:           p,
				Type:             AmountCost,
				Category:         item.Category,
				Source:           item.Name,
				Amount:           CostAmount(item.BaseCost, n, item.EscalationRate, p-item.StartPeriod),
				RetentionPercent: retention,
				ReleasePeriod:    item.EndPeriod + item.RetentionReleaseLag,
				order:            order,
			})
			order++
		}
	}

	for _, sale := range sales {
		total := float64(sale.Units) * sale.PricePerUnit
		n := float64(sale.Periods())
		for p := sale.StartPeriod; p <= sale.EndPeriod; p++ {
			events = append(events, Event{
				Period: p,
				Type:   AmountSaleRevenue,
				Source: sale.Name,
				Amount: RevenueAmount(total, n, sale.AnnualEscalationPercent, p-sale.StartPeriod),
				order:  order,
			})
			order++
		}
	}

	for _, rental := range rentals {
		n := float64(rental.Periods())
		total := MonthlyRentalRevenue(rental) * n
		for p := rental.StartPeriod; p <= rental.EndPeriod; p++ {
			events = append(events, Event{
				Period: p,
				Type:   AmountRentalRevenue,
				Source: rental.Name,
				Amount: RevenueAmount(total, n, rental.AnnualEscalation, p-rental.StartPeriod),
				order:  order,
			})
			order++
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Period != events[j].Period {
			return events[i].Period < events[j].Period
		}
		return events[i].order < events[j].order
	})

	return events, nil
}

// CostAmount is the even share of a cost for one period, escalated per
// period from the item's start.
func CostAmount(baseCost, periods, escalationRate float64, elapsed int) float64 {
	return baseCost / periods * mathutil.Compound(escalationRate, float64(elapsed))
}

// RevenueAmount is the even share of a revenue total for one period,
// escalated at an annual percent pro-rated monthly.
func RevenueAmount(total, periods, annualPercent float64, elapsedMonths int) float64 {
	rate := annualPercent / constants.PercentageMultiplier
	return total / periods * mathutil.Compound(rate, float64(elapsedMonths)/constants.MonthsPerYear)
}

// MonthlyRentalRevenue is the unescalated revenue of a rental line for one
// month: rooms x ADR x occupancy x nights per month.
func MonthlyRentalRevenue(rl RentalLine) float64 {
	return float64(rl.Rooms) * rl.ADR * rl.OccupancyRate / constants.PercentageMultiplier * constants.DaysPerMonth
}
