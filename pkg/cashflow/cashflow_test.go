package cashflow

import (
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/iwvelando/feasibility-forecast/pkg/compliance"
	"github.com/iwvelando/feasibility-forecast/pkg/loans"
	"github.com/iwvelando/feasibility-forecast/pkg/schedule"
)

func components(horizon int) Components {
	c := Components{
		Labels:     make([]string, horizon),
		Schedule:   schedule.Schedule{Horizon: horizon, Buckets: make([]schedule.Bucket, horizon)},
		Financing:  loans.Schedule{Months: make([]loans.Month, horizon)},
		Compliance: compliance.Result{Months: make([]compliance.Month, horizon)},
		Zakat:      compliance.ZakatResult{Month: horizon - 1},
	}
	for i := range c.Labels {
		c.Labels[i] = fmt.Sprintf("M%d", i)
	}
	return c
}

func TestAggregateNetCashflow(t *testing.T) {
	c := components(3)
	c.Schedule.Buckets[0] = schedule.Bucket{Construction: 80, Contingency: 20, Land: 50, Soft: 30, Marketing: 10}
	c.Financing.Months[0] = loans.Month{Drawn: 150, EquityInjected: 40, Balance: 150}
	c.Financing.Months[1] = loans.Month{Interest: 5, Principal: 20, Repayment: 25, Balance: 130}
	c.Schedule.Buckets[1] = schedule.Bucket{Revenue: 300}
	c.Compliance.Months[1] = compliance.Month{EscrowReserved: 30, VATOnCosts: 12, VATRecoverable: 12}
	c.Schedule.Buckets[2] = schedule.Bucket{Revenue: 100}
	c.Compliance.Months[2] = compliance.Month{EscrowReleased: 30}
	c.Zakat.Due = 7

	rows, err := Aggregate(c)
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}

	if rows[0].ConstructionCost != 100 || rows[0].SoftCosts != 40 || rows[0].MarketingCost != 10 || rows[0].ContingencyCost != 20 {
		t.Errorf("unexpected cost folding: %+v", rows[0])
	}
	expectedNet := []float64{
		-100 - 50 - 40 + 150 + 40, // costs funded by debt and equity
		300 - 25 - 30,             // revenue less debt service and escrow reserve
		100 + 30 - 7,              // escrow release and terminal zakat
	}
	balance := 0.0
	for m, row := range rows {
		if math.Abs(row.NetCashflow-expectedNet[m]) > 1e-9 {
			t.Errorf("month %d net = %.2f, expected %.2f", m, row.NetCashflow, expectedNet[m])
		}
		balance += expectedNet[m]
		if math.Abs(row.CashBalance-balance) > 1e-9 {
			t.Errorf("month %d balance = %.2f, expected %.2f", m, row.CashBalance, balance)
		}
	}
	if rows[2].ZakatDue != 7 || rows[0].ZakatDue != 0 {
		t.Errorf("zakat should land in the final month only")
	}
	if rows[1].LoanBalance != 130 || rows[1].LoanInterest != 5 {
		t.Errorf("loan reporting fields not carried: %+v", rows[1])
	}
	if err := Verify(rows); err != nil {
		t.Errorf("Verify() error = %v", err)
	}
}

func TestAggregateUnrecoveredVAT(t *testing.T) {
	c := components(1)
	c.Schedule.Buckets[0] = schedule.Bucket{Soft: 100}
	c.Compliance.Months[0] = compliance.Month{VATOnCosts: 15}

	rows, err := Aggregate(c)
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	if rows[0].NetCashflow != -115 {
		t.Errorf("net = %.2f, expected unrecovered VAT to be a cost", rows[0].NetCashflow)
	}
}

func TestAggregateRetentionOutstanding(t *testing.T) {
	c := components(3)
	c.Schedule.Buckets[0] = schedule.Bucket{Construction: 90, RetentionWithheld: 10}
	c.Schedule.Buckets[2] = schedule.Bucket{Construction: 10, RetentionReleased: 10}

	rows, err := Aggregate(c)
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	expected := []float64{10, 10, 0}
	for i, row := range rows {
		if row.RetentionOutstanding != expected[i] {
			t.Errorf("month %d outstanding = %.2f, expected %.2f", i, row.RetentionOutstanding, expected[i])
		}
	}
}

func TestAggregateLengthMismatch(t *testing.T) {
	c := components(3)
	c.Financing.Months = c.Financing.Months[:2]
	if _, err := Aggregate(c); err == nil {
		t.Errorf("expected an error for mismatched component lengths")
	}
}

func TestVerify(t *testing.T) {
	tests := []struct {
		name    string
		rows    []MonthlyCashflow
		wantErr string
	}{
		{
			name: "Valid",
			rows: []MonthlyCashflow{
				{NetCashflow: -10, CashBalance: -10, EscrowReserved: 5},
				{NetCashflow: 15, CashBalance: 5, EscrowReleased: 5},
			},
		},
		{
			name: "Broken recurrence",
			rows: []MonthlyCashflow{
				{NetCashflow: -10, CashBalance: -10},
				{NetCashflow: 15, CashBalance: 6},
			},
			wantErr: "cash balance",
		},
		{
			name: "Release before reserve",
			rows: []MonthlyCashflow{
				{EscrowReleased: 5, NetCashflow: 0, CashBalance: 0},
			},
			wantErr: "escrow released",
		},
		{
			name: "Negative retention",
			rows: []MonthlyCashflow{
				{RetentionOutstanding: -1},
			},
			wantErr: "retention",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Verify(tt.rows)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Verify() unexpected error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Verify() error = %v, expected it to mention %q", err, tt.wantErr)
			}
		})
	}
}
