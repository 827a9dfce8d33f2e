// Package loans provides the construction loan draw, interest and
// repayment schedule of a development project.
package loans

import (
	"fmt"
	"math"

	"github.com/iwvelando/feasibility-forecast/pkg/constants"
	"github.com/iwvelando/feasibility-forecast/pkg/mathutil"
	"github.com/iwvelando/feasibility-forecast/pkg/validation"
	"go.uber.org/zap"
)

// RepaymentType selects how principal is retired over the term.
type RepaymentType string

const (
	RepaymentAmortized    RepaymentType = "amortized"
	RepaymentBullet       RepaymentType = "bullet"
	RepaymentInterestOnly RepaymentType = "interest_only"
	RepaymentGraduated    RepaymentType = "graduated"
)

// Valid reports whether r is a known repayment type.
func (r RepaymentType) Valid() bool {
	switch r {
	case RepaymentAmortized, RepaymentBullet, RepaymentInterestOnly, RepaymentGraduated:
		return true
	}
	return false
}

// Terms are the loan parameters. The facility opens at StartPeriod and its
// final term month is StartPeriod + TermYears*12.
type Terms struct {
	Principal          float64
	AnnualInterestRate float64 // percent
	TermYears          int
	GracePeriodMonths  int
	RepaymentType      RepaymentType
	StartPeriod        int
}

// TermMonths is the loan term in months.
func (t Terms) TermMonths() int {
	return t.TermYears * constants.MonthsPerYear
}

// FinalPeriod is the month of the last scheduled repayment.
func (t Terms) FinalPeriod() int {
	return t.StartPeriod + t.TermMonths()
}

// FirstRepaymentPeriod is the first month principal may be repaid.
func (t Terms) FirstRepaymentPeriod() int {
	return t.StartPeriod + t.GracePeriodMonths + 1
}

// RepaymentMonths is the number of months principal is repaid over.
func (t Terms) RepaymentMonths() int {
	return t.TermMonths() - t.GracePeriodMonths
}

// Contribution is a scheduled equity injection.
type Contribution struct {
	Period int
	Amount float64
}

// Equity describes how the sponsor funds the project. Contributions are
// injected in their month. Any gap the loan cannot cover is met with equity
// injected in the gap month; a non-nil ShortfallCommitment caps that
// on-demand equity and the rest is left uncovered.
type Equity struct {
	Contributions       []Contribution
	ShortfallCommitment *float64
}

// shortfallLimit is the on-demand equity available. Unlimited is +Inf.
func (e Equity) shortfallLimit() float64 {
	if e.ShortfallCommitment == nil {
		return math.Inf(1)
	}
	return *e.ShortfallCommitment
}

// Month is one month of the financing schedule. Repayment is the total debt
// service paid (interest plus principal); Interest is its interest part.
type Month struct {
	Period         int
	Drawn          float64
	Interest       float64
	Principal      float64
	Repayment      float64
	Balance        float64 // outstanding at month end
	EquityInjected float64
	UncoveredGap   float64
}

// Schedule is the financing schedule over the horizon.
type Schedule struct {
	Months []Month

	TotalDrawn    float64
	TotalInterest float64
	TotalEquity   float64

	// OutstandingAtHorizon is the balance left after the last horizon month.
	OutstandingAtHorizon float64

	// Unrepaid is set for interest-only loans whose principal is still
	// owed after the final term month.
	Unrepaid        bool
	UnrepaidBalance float64
}

// Validate checks the loan terms. A zero principal disables the loan and
// its other terms are ignored.
func (t Terms) Validate() error {
	var c validation.Collector
	if t.Principal < 0 {
		c.Addf("loan", "principal", "must not be negative (%.2f)", t.Principal)
	}
	if t.Principal == 0 {
		return c.Err()
	}
	if t.AnnualInterestRate < 0 {
		c.Addf("loan", "annualInterestRate", "must not be negative (%v)", t.AnnualInterestRate)
	}
	if !t.RepaymentType.Valid() {
		c.Addf("loan", "repaymentType", "unknown repayment type %q", t.RepaymentType)
	}
	if t.StartPeriod < 0 {
		c.Addf("loan", "startPeriod", "must not be negative (%d)", t.StartPeriod)
	}
	if t.GracePeriodMonths < 0 {
		c.Addf("loan", "gracePeriodMonths", "must not be negative (%d)", t.GracePeriodMonths)
	}
	if t.TermMonths() <= 0 {
		c.Addf("loan", "termYears", "must produce at least one term month (%d years)", t.TermYears)
	} else if t.RepaymentMonths() <= 0 {
		c.Addf("loan", "gracePeriodMonths", "grace of %d months leaves no repayment periods in a %d month term",
			t.GracePeriodMonths, t.TermMonths())
	}
	return c.Err()
}

// Validate checks the equity plan.
func (e Equity) Validate() error {
	var c validation.Collector
	for i, contribution := range e.Contributions {
		label := fmt.Sprintf("equity.contributions[%d]", i)
		if contribution.Period < 0 {
			c.Addf(label, "period", "must not be negative (%d)", contribution.Period)
		}
		if contribution.Amount < 0 {
			c.Addf(label, "amount", "must not be negative (%.2f)", contribution.Amount)
		}
	}
	if e.ShortfallCommitment != nil && *e.ShortfallCommitment < 0 {
		c.Addf("equity", "shortfallCommitment", "must not be negative (%.2f)", *e.ShortfallCommitment)
	}
	return c.Err()
}

// CalculateMonthlyPayment calculates the level monthly payment that retires
// principal over termMonths using the standard amortization formula.
func CalculateMonthlyPayment(principal, annualInterestRate float64, termMonths int) float64 {
	if termMonths <= 0 {
		return 0
	}
	if annualInterestRate == 0 {
		// For zero interest, simply divide the principal by term
		return principal / float64(termMonths)
	}

	periodicInterestRate := annualInterestRate / (constants.PercentageMultiplier * constants.MonthsPerYear)
	power := math.Pow((1.00 + periodicInterestRate), float64(termMonths))
	return principal * periodicInterestRate * power / (power - 1.00)
}

// CalculateInterestPayment calculates the interest accrued for one month.
func CalculateInterestPayment(remainingPrincipal, annualInterestRate float64) float64 {
	return remainingPrincipal * annualInterestRate / (constants.PercentageMultiplier * constants.MonthsPerYear)
}

// ScheduleGenerator produces financing schedules.
type ScheduleGenerator struct {
	logger *zap.Logger
}

// NewScheduleGenerator creates a new generator instance
func NewScheduleGenerator(logger *zap.Logger) *ScheduleGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleGenerator{logger: logger}
}

// Generate builds the draw, interest and repayment schedule for the given
// monthly project costs.
//
// Each month the funding gap is the cumulative cost not yet covered by
// scheduled equity, earlier draws and earlier shortfall equity. Debt covers
// the gap up to the principal while the facility is open and equity is
// injected for the rest. Only a capped commitment leaves a gap uncovered.
func (g *ScheduleGenerator) Generate(terms Terms, equity Equity, costs []float64) (Schedule, error) {
	if err := terms.Validate(); err != nil {
		return Schedule{}, err
	}
	if err := equity.Validate(); err != nil {
		return Schedule{}, err
	}

	horizon := len(costs)
	s := Schedule{Months: make([]Month, horizon)}

	scheduled := make([]float64, horizon)
	for _, contribution := range equity.Contributions {
		if contribution.Period < horizon {
			scheduled[contribution.Period] += contribution.Amount
		}
	}

	loanEnabled := terms.Principal > 0
	if !loanEnabled {
		g.logger.Debug("loan principal is zero, financing schedule is all zero",
			zap.String("op", "loans.Generate"),
		)
	}

	var (
		cumulativeCost     float64
		cumulativeFunded   float64
		commitmentLeft     = equity.shortfallLimit()
		balance            float64
		drawnToDate        float64
		repaymentStarted   bool
		graduatedPayment   float64
		graduatedPhaseEnds = -1
	)

	for t := 0; t < horizon; t++ {
		m := Month{Period: t}

		// Debt service on the opening balance; none after the term ends.
		if loanEnabled && balance > 0 && t <= terms.FinalPeriod() {
			m.Interest = CalculateInterestPayment(balance, terms.AnnualInterestRate)
			m.Principal = g.principalDue(terms, t, balance, m.Interest, &repaymentStarted, &graduatedPayment, &graduatedPhaseEnds)
			m.Repayment = m.Interest + m.Principal
			balance -= m.Principal
			if t == terms.FinalPeriod() && terms.RepaymentType != RepaymentInterestOnly {
				// We will get machine error otherwise so just set to 0.
				balance = 0
			}
		}

		// Funding of this month's costs.
		m.EquityInjected = scheduled[t]
		cumulativeFunded += scheduled[t]
		cumulativeCost += costs[t]
		gap := cumulativeCost - cumulativeFunded
		if gap > constants.FloatTolerance {
			if loanEnabled && t >= terms.StartPeriod && t <= terms.FinalPeriod() {
				m.Drawn = mathutil.Min(gap, terms.Principal-drawnToDate)
				if m.Drawn < 0 {
					m.Drawn = 0
				}
				drawnToDate += m.Drawn
				balance += m.Drawn
				cumulativeFunded += m.Drawn
				gap -= m.Drawn
			}
			if gap > constants.FloatTolerance && commitmentLeft > 0 {
				shortfall := mathutil.Min(gap, commitmentLeft)
				commitmentLeft -= shortfall
				m.EquityInjected += shortfall
				cumulativeFunded += shortfall
				gap -= shortfall
			}
			if gap > constants.FloatTolerance {
				m.UncoveredGap = gap
				// The uncovered cost is carried by project cash, not
				// re-requested from later months.
				cumulativeFunded += gap
			}
		}

		m.Balance = balance
		s.TotalDrawn += m.Drawn
		s.TotalInterest += m.Interest
		s.TotalEquity += m.EquityInjected
		s.Months[t] = m
	}

	s.OutstandingAtHorizon = balance
	if loanEnabled && terms.RepaymentType == RepaymentInterestOnly && terms.FinalPeriod() < horizon && balance > 0 {
		s.Unrepaid = true
		s.UnrepaidBalance = balance
		g.logger.Warn(fmt.Sprintf("interest-only loan leaves %.2f unrepaid at term end (month %d)", balance, terms.FinalPeriod()),
			zap.String("op", "loans.Generate"),
		)
	}

	return s, nil
}

// principalDue returns the principal repaid in month t on the opening
// balance. Grace months and months outside the term repay nothing.
func (g *ScheduleGenerator) principalDue(terms Terms, t int, balance, interest float64,
	started *bool, graduatedPayment *float64, graduatedPhaseEnds *int) float64 {
	if t < terms.FirstRepaymentPeriod() || t > terms.FinalPeriod() {
		return 0
	}
	remaining := terms.FinalPeriod() - t + 1

	switch terms.RepaymentType {
	case RepaymentBullet:
		if t == terms.FinalPeriod() {
			return balance
		}
		return 0

	case RepaymentInterestOnly:
		return 0

	case RepaymentGraduated:
		if !*started {
			*started = true
			months := terms.RepaymentMonths()
			*graduatedPayment = constants.GraduatedInitialFraction * CalculateMonthlyPayment(balance, terms.AnnualInterestRate, months)
			*graduatedPhaseEnds = t + months/constants.GraduatedPhaseDivisor - 1
			g.logger.Debug(fmt.Sprintf("graduated repayment at %.2f until month %d", *graduatedPayment, *graduatedPhaseEnds),
				zap.String("op", "loans.Generate"),
			)
		}
		if t <= *graduatedPhaseEnds && t < terms.FinalPeriod() {
			// Never below interest so the balance cannot grow.
			payment := mathutil.Max(*graduatedPayment, interest)
			return mathutil.Min(payment-interest, balance)
		}
		return mathutil.Min(CalculateMonthlyPayment(balance, terms.AnnualInterestRate, remaining)-interest, balance)

	default:
		*started = true
		return mathutil.Min(CalculateMonthlyPayment(balance, terms.AnnualInterestRate, remaining)-interest, balance)
	}
}
