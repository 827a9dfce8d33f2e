package loans

import (
	"errors"
	"math"
	"testing"

	"github.com/iwvelando/feasibility-forecast/pkg/validation"
	"go.uber.org/zap"
)

func TestCalculateMonthlyPayment(t *testing.T) {
	tests := []struct {
		name               string
		principal          float64
		annualInterestRate float64
		termMonths         int
		expectedRange      []float64 // [min, max] expected range
	}{
		{
			name:               "Ten year development loan",
			principal:          1000000,
			annualInterestRate: 6.0,
			termMonths:         120,
			expectedRange:      []float64{11102.04, 11102.06}, // 11,102.05
		},
		{
			name:               "Standard 30-year mortgage",
			principal:          240000,
			annualInterestRate: 6.0,
			termMonths:         360,
			expectedRange:      []float64{1400, 1500}, // Around $1439
		},
		{
			name:               "Zero interest loan",
			principal:          10000,
			annualInterestRate: 0.0,
			termMonths:         60,
			expectedRange:      []float64{166, 167}, // Exactly $166.67
		},
		{
			name:               "High interest loan",
			principal:          10000,
			annualInterestRate: 18.0,
			termMonths:         36,
			expectedRange:      []float64{360, 380}, // Around $372
		},
		{
			name:               "No term months",
			principal:          10000,
			annualInterestRate: 5.0,
			termMonths:         0,
			expectedRange:      []float64{0, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CalculateMonthlyPayment(tt.principal, tt.annualInterestRate, tt.termMonths)

			if result < tt.expectedRange[0] || result > tt.expectedRange[1] {
				t.Errorf("CalculateMonthlyPayment() = %.2f, expected range [%.2f, %.2f]",
					result, tt.expectedRange[0], tt.expectedRange[1])
			}
		})
	}
}

func TestCalculateInterestPayment(t *testing.T) {
	tests := []struct {
		name               string
		remainingPrincipal float64
		annualInterestRate float64
		expected           float64
	}{
		{
			name:               "Development loan interest",
			remainingPrincipal: 1000000,
			annualInterestRate: 6.0,
			expected:           5000.0, // 1000000 * 0.06 / 12
		},
		{
			name:               "Zero interest",
			remainingPrincipal: 10000,
			annualInterestRate: 0.0,
			expected:           0.0,
		},
		{
			name:               "High interest",
			remainingPrincipal: 5000,
			annualInterestRate: 24.0,
			expected:           100.0, // 5000 * 0.24 / 12
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CalculateInterestPayment(tt.remainingPrincipal, tt.annualInterestRate)

			if math.Abs(result-tt.expected) > 0.01 {
				t.Errorf("CalculateInterestPayment() = %.2f, expected %.2f", result, tt.expected)
			}
		})
	}
}

// upfrontCosts puts the whole cost in month 0 so the full principal is drawn
// immediately.
func upfrontCosts(amount float64, horizon int) []float64 {
	costs := make([]float64, horizon)
	costs[0] = amount
	return costs
}

func generate(t *testing.T, terms Terms, equity Equity, costs []float64) Schedule {
	t.Helper()
	s, err := NewScheduleGenerator(zap.NewNop()).Generate(terms, equity, costs)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	return s
}

func TestGenerateAmortized(t *testing.T) {
	terms := Terms{Principal: 1000000, AnnualInterestRate: 6, TermYears: 10, RepaymentType: RepaymentAmortized}
	s := generate(t, terms, Equity{}, upfrontCosts(1000000, 132))

	if math.Abs(s.Months[0].Drawn-1000000) > 1e-6 {
		t.Fatalf("expected full draw at month 0, got %.2f", s.Months[0].Drawn)
	}
	if s.Months[0].Repayment != 0 {
		t.Errorf("no repayment expected in the draw month, got %.2f", s.Months[0].Repayment)
	}
	if math.Abs(s.Months[1].Interest-5000) > 1e-6 {
		t.Errorf("first interest = %.2f, expected 5000", s.Months[1].Interest)
	}

	for m := 1; m <= 120; m++ {
		if math.Abs(s.Months[m].Repayment-11102.05) > 0.01 {
			t.Fatalf("month %d payment = %.4f, expected 11102.05", m, s.Months[m].Repayment)
		}
		if s.Months[m].Balance > s.Months[m-1].Balance+1e-9 {
			t.Fatalf("balance increased at month %d", m)
		}
	}
	if s.Months[120].Balance != 0 {
		t.Errorf("balance at month 120 = %.6f, expected exactly 0", s.Months[120].Balance)
	}
	for m := 121; m < 132; m++ {
		if s.Months[m].Repayment != 0 || s.Months[m].Interest != 0 {
			t.Errorf("debt service after maturity at month %d", m)
		}
	}
	if s.OutstandingAtHorizon != 0 {
		t.Errorf("outstanding at horizon = %.2f", s.OutstandingAtHorizon)
	}
}

func TestGenerateGracePeriod(t *testing.T) {
	terms := Terms{Principal: 120000, AnnualInterestRate: 12, TermYears: 2, GracePeriodMonths: 6, RepaymentType: RepaymentAmortized}
	s := generate(t, terms, Equity{}, upfrontCosts(120000, 30))

	for m := 1; m <= 6; m++ {
		month := s.Months[m]
		if math.Abs(month.Interest-1200) > 1e-6 {
			t.Errorf("grace month %d interest = %.2f, expected 1200", m, month.Interest)
		}
		if month.Principal != 0 || math.Abs(month.Repayment-month.Interest) > 1e-9 {
			t.Errorf("grace month %d repaid principal %.2f", m, month.Principal)
		}
		if month.Balance != 120000 {
			t.Errorf("interest must be paid, not capitalized; balance %.2f at month %d", month.Balance, m)
		}
	}
	expected := CalculateMonthlyPayment(120000, 12, 18)
	if math.Abs(s.Months[7].Repayment-expected) > 1e-6 {
		t.Errorf("first amortizing payment = %.4f, expected %.4f", s.Months[7].Repayment, expected)
	}
	if s.Months[24].Balance != 0 {
		t.Errorf("balance at final term month = %.6f", s.Months[24].Balance)
	}
}

func TestGenerateBullet(t *testing.T) {
	terms := Terms{Principal: 500000, AnnualInterestRate: 6, TermYears: 2, RepaymentType: RepaymentBullet}
	s := generate(t, terms, Equity{}, upfrontCosts(500000, 30))

	for m := 1; m < 24; m++ {
		if s.Months[m].Principal != 0 {
			t.Fatalf("bullet loan repaid principal at month %d", m)
		}
		if math.Abs(s.Months[m].Repayment-2500) > 1e-6 {
			t.Fatalf("month %d repayment = %.2f, expected interest 2500", m, s.Months[m].Repayment)
		}
	}
	if math.Abs(s.Months[24].Principal-500000) > 1e-6 {
		t.Errorf("final month principal = %.2f, expected 500000", s.Months[24].Principal)
	}
	if s.Months[24].Balance != 0 {
		t.Errorf("bullet balance at term end = %.2f", s.Months[24].Balance)
	}
}

func TestGenerateInterestOnly(t *testing.T) {
	terms := Terms{Principal: 300000, AnnualInterestRate: 4, TermYears: 1, RepaymentType: RepaymentInterestOnly}
	s := generate(t, terms, Equity{}, upfrontCosts(300000, 24))

	for m := 1; m <= 12; m++ {
		if s.Months[m].Principal != 0 || math.Abs(s.Months[m].Interest-1000) > 1e-6 {
			t.Fatalf("month %d: principal %.2f interest %.2f", m, s.Months[m].Principal, s.Months[m].Interest)
		}
	}
	if s.Months[13].Interest != 0 {
		t.Errorf("no interest should accrue after term end")
	}
	if !s.Unrepaid || s.UnrepaidBalance != 300000 {
		t.Errorf("expected unrepaid flag with 300000, got %v %.2f", s.Unrepaid, s.UnrepaidBalance)
	}
}

func TestGenerateGraduated(t *testing.T) {
	terms := Terms{Principal: 1000000, AnnualInterestRate: 6, TermYears: 10, RepaymentType: RepaymentGraduated}
	s := generate(t, terms, Equity{}, upfrontCosts(1000000, 130))

	full := CalculateMonthlyPayment(1000000, 6, 120)
	for m := 1; m <= 40; m++ {
		if math.Abs(s.Months[m].Repayment-full/2) > 1e-6 {
			t.Fatalf("month %d repayment = %.4f, expected half payment %.4f", m, s.Months[m].Repayment, full/2)
		}
	}
	stepUp := CalculateMonthlyPayment(s.Months[40].Balance, 6, 80)
	if math.Abs(s.Months[41].Repayment-stepUp) > 1e-6 {
		t.Errorf("step-up payment = %.4f, expected %.4f", s.Months[41].Repayment, stepUp)
	}
	if s.Months[41].Repayment <= s.Months[40].Repayment {
		t.Errorf("payment should step up after the first third of the term")
	}
	for m := 1; m <= 120; m++ {
		if s.Months[m].Balance > s.Months[m-1].Balance+1e-9 {
			t.Fatalf("balance increased at month %d", m)
		}
	}
	if s.Months[120].Balance != 0 {
		t.Errorf("graduated balance at term end = %.6f", s.Months[120].Balance)
	}
}

func TestGenerateGraduatedNeverBelowInterest(t *testing.T) {
	terms := Terms{Principal: 100000, AnnualInterestRate: 30, TermYears: 30, RepaymentType: RepaymentGraduated}
	s := generate(t, terms, Equity{}, upfrontCosts(100000, 24))
	for m := 1; m < 24; m++ {
		if s.Months[m].Balance > s.Months[m-1].Balance+1e-9 {
			t.Fatalf("negative amortization at month %d", m)
		}
		if s.Months[m].Repayment < s.Months[m].Interest-1e-9 {
			t.Fatalf("repayment below interest at month %d", m)
		}
	}
}

func TestGenerateZeroPrincipal(t *testing.T) {
	terms := Terms{Principal: 0, AnnualInterestRate: 9, TermYears: 0, RepaymentType: "ignored"}
	costs := []float64{100, 200, 300}
	s := generate(t, terms, Equity{}, costs)

	for _, m := range s.Months {
		if m.Drawn != 0 || m.Interest != 0 || m.Repayment != 0 || m.Balance != 0 {
			t.Errorf("month %d should be all zero, got %+v", m.Period, m)
		}
	}
	for i, cost := range costs {
		if s.Months[i].EquityInjected != cost || s.Months[i].UncoveredGap != 0 {
			t.Errorf("month %d should be funded by equity, got %+v", i, s.Months[i])
		}
	}
	if s.TotalEquity != 600 {
		t.Errorf("total equity = %.2f, expected 600", s.TotalEquity)
	}
}

func TestGenerateEquityCoversRemainingGap(t *testing.T) {
	terms := Terms{Principal: 250, AnnualInterestRate: 0, TermYears: 1, RepaymentType: RepaymentBullet}
	equity := Equity{Contributions: []Contribution{{Period: 0, Amount: 150}}}
	costs := []float64{100, 100, 100, 100, 100}
	s := generate(t, terms, equity, costs)

	expectedEquity := []float64{150, 0, 0, 0, 100}
	for i := range costs {
		if math.Abs(s.Months[i].EquityInjected-expectedEquity[i]) > 1e-9 {
			t.Errorf("month %d equity = %.2f, expected %.2f", i, s.Months[i].EquityInjected, expectedEquity[i])
		}
		if s.Months[i].UncoveredGap != 0 {
			t.Errorf("month %d uncovered gap = %.2f, expected none", i, s.Months[i].UncoveredGap)
		}
	}
	if s.TotalDrawn+s.TotalEquity != 500 {
		t.Errorf("drawn %.2f and equity %.2f should cover 500", s.TotalDrawn, s.TotalEquity)
	}
}

func TestGenerateDrawsFollowFundingGap(t *testing.T) {
	terms := Terms{Principal: 250, AnnualInterestRate: 0, TermYears: 1, RepaymentType: RepaymentBullet}
	commitment := 60.0
	equity := Equity{
		Contributions:       []Contribution{{Period: 0, Amount: 150}},
		ShortfallCommitment: &commitment,
	}
	costs := []float64{100, 100, 100, 100, 100}
	s := generate(t, terms, equity, costs)

	expectedDrawn := []float64{0, 50, 100, 100, 0}
	expectedEquity := []float64{150, 0, 0, 0, 60}
	for i := range costs {
		if math.Abs(s.Months[i].Drawn-expectedDrawn[i]) > 1e-9 {
			t.Errorf("month %d drawn = %.2f, expected %.2f", i, s.Months[i].Drawn, expectedDrawn[i])
		}
		if math.Abs(s.Months[i].EquityInjected-expectedEquity[i]) > 1e-9 {
			t.Errorf("month %d equity = %.2f, expected %.2f", i, s.Months[i].EquityInjected, expectedEquity[i])
		}
	}
	if math.Abs(s.Months[4].UncoveredGap-40) > 1e-9 {
		t.Errorf("month 4 uncovered gap = %.2f, expected 40", s.Months[4].UncoveredGap)
	}
	if s.TotalDrawn != 250 || s.TotalEquity != 210 {
		t.Errorf("totals drawn %.2f equity %.2f", s.TotalDrawn, s.TotalEquity)
	}
}

func TestGenerateValidation(t *testing.T) {
	negativeCommitment := -1.0
	tests := []struct {
		name   string
		terms  Terms
		equity Equity
		field  string
	}{
		{
			name:  "Zero term",
			terms: Terms{Principal: 1000, AnnualInterestRate: 5, TermYears: 0, RepaymentType: RepaymentAmortized},
			field: "termYears",
		},
		{
			name:  "Grace consumes the term",
			terms: Terms{Principal: 1000, AnnualInterestRate: 5, TermYears: 1, GracePeriodMonths: 12, RepaymentType: RepaymentAmortized},
			field: "gracePeriodMonths",
		},
		{
			name:  "Negative rate",
			terms: Terms{Principal: 1000, AnnualInterestRate: -1, TermYears: 1, RepaymentType: RepaymentAmortized},
			field: "annualInterestRate",
		},
		{
			name:  "Unknown repayment type",
			terms: Terms{Principal: 1000, AnnualInterestRate: 5, TermYears: 1, RepaymentType: "balloon"},
			field: "repaymentType",
		},
		{
			name:   "Negative equity contribution",
			terms:  Terms{},
			equity: Equity{Contributions: []Contribution{{Period: 0, Amount: -5}}},
			field:  "amount",
		},
		{
			name:   "Negative shortfall commitment",
			terms:  Terms{},
			equity: Equity{ShortfallCommitment: &negativeCommitment},
			field:  "shortfallCommitment",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewScheduleGenerator(nil).Generate(tt.terms, tt.equity, make([]float64, 12))
			if !errors.Is(err, validation.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			fields := validation.FieldErrors(err)
			if len(fields) != 1 || fields[0].Field != tt.field {
				t.Errorf("expected a single %s field error, got %v", tt.field, err)
			}
		})
	}
}
