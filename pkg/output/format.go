// Package output provides utilities for formatting and displaying scenario results.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/iwvelando/feasibility-forecast/pkg/comparison"
	"github.com/iwvelando/feasibility-forecast/pkg/engine"
	"github.com/iwvelando/feasibility-forecast/pkg/format"
	"github.com/iwvelando/feasibility-forecast/pkg/kpi"
	"github.com/iwvelando/feasibility-forecast/pkg/optimization"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// PrettyFormat outputs a human-readable rather than machine-readable table.
func PrettyFormat(results []*engine.ScenarioResult, comparisons []comparison.Comparison) {
	WritePretty(os.Stdout, results)
	WriteSummary(os.Stdout, results, comparisons)
}

// SummaryFormat outputs only the KPI summaries and comparison deltas.
func SummaryFormat(results []*engine.ScenarioResult, comparisons []comparison.Comparison) {
	WriteSummary(os.Stdout, results, comparisons)
}

// WritePretty writes one monthly table per scenario.
func WritePretty(w io.Writer, results []*engine.ScenarioResult) {
	p := message.NewPrinter(language.English)
	for _, result := range results {
		_, _ = fmt.Fprintf(w, "--- Results for scenario %s ---\n", result.Scenario)
		_, _ = fmt.Fprintf(w, "Month   | Revenue | Costs | Debt Service | Draws | Equity | Net | Cash Balance\n")
		_, _ = fmt.Fprintf(w, "_____   | _______ | _____ | ____________ | _____ | ______ | ___ | ____________\n")
		for _, row := range result.Data {
			_, _ = p.Fprintf(w, "%s | %.2f | %.2f | %.2f | %.2f | %.2f | %.2f | %.2f\n",
				row.Label, row.Revenue, row.DevelopmentCost(), row.LoanRepayment, row.LoanDrawn,
				row.EquityInjected, row.NetCashflow, row.CashBalance)
		}
		if len(results) > 1 {
			_, _ = fmt.Fprintf(w, "\n")
		}
	}
}

// WriteSummary writes the KPIs of every scenario, their warnings and the
// comparison deltas.
func WriteSummary(w io.Writer, results []*engine.ScenarioResult, comparisons []comparison.Comparison) {
	p := message.NewPrinter(language.English)
	for _, result := range results {
		s := result.Summary
		currency := func(v float64) string {
			return format.Currency(v, result.Currency)
		}
		_, _ = fmt.Fprintf(w, "--- Summary for scenario %s ---\n", result.Scenario)
		_, _ = fmt.Fprintf(w, "Total revenue:       %s\n", currency(s.TotalRevenue))
		_, _ = fmt.Fprintf(w, "Total cost:          %s\n", currency(s.TotalCost))
		_, _ = fmt.Fprintf(w, "Profit:              %s\n", currency(s.Profit))
		_, _ = fmt.Fprintf(w, "Profit margin:       %s\n", format.Measure(s.ProfitMargin, format.Percent))
		_, _ = fmt.Fprintf(w, "ROI:                 %s\n", format.Measure(s.ROI, format.Percent))
		_, _ = fmt.Fprintf(w, "NPV:                 %s\n", currency(s.NPV))
		_, _ = fmt.Fprintf(w, "IRR:                 %s\n", format.Measure(s.IRR, format.Percent))
		_, _ = fmt.Fprintf(w, "Payback:             %s\n", format.Measure(s.PaybackMonths, format.Months))
		_, _ = fmt.Fprintf(w, "Equity multiple:     %s\n", format.Measure(s.EquityMultiple, format.Multiple))
		_, _ = fmt.Fprintf(w, "Peak funding:        %s\n", currency(s.PeakFunding))
		_, _ = fmt.Fprintf(w, "Total zakat:         %s\n", currency(s.TotalZakat))
		_, _ = fmt.Fprintf(w, "Total VAT:           %s\n", currency(s.TotalVAT))
		_, _ = fmt.Fprintf(w, "Final cash balance:  %s\n", currency(s.FinalCashBalance))
		if s.UnresolvedRetention > 0 {
			_, _ = fmt.Fprintf(w, "Unresolved retention: %s\n", currency(s.UnresolvedRetention))
		}
		for _, warning := range result.Warnings {
			_, _ = fmt.Fprintf(w, "Warning: %s\n", warning)
		}
		_, _ = fmt.Fprintf(w, "\n")
	}

	for _, c := range comparisons {
		_, _ = fmt.Fprintf(w, "--- Comparison %s vs %s ---\n", c.Alternative, c.Base)
		_, _ = fmt.Fprintf(w, "KPI | Base | Alternative | Change | Change %%\n")
		for _, d := range c.Deltas {
			pct := "undefined"
			if d.Status == kpi.StatusOK {
				pct = fmt.Sprintf("%.2f%%", d.Percentage)
			}
			_, _ = p.Fprintf(w, "%s | %.2f | %.2f | %.2f | %s\n", d.KPI, d.Base, d.Alternative, d.Absolute, pct)
		}
		_, _ = fmt.Fprintf(w, "\n")
	}
}

// BreakEvenFormat outputs the break-even search results.
func BreakEvenFormat(summaries []optimization.Summary) {
	WriteBreakEven(os.Stdout, summaries)
}

// WriteBreakEven writes one line per break-even search.
func WriteBreakEven(w io.Writer, summaries []optimization.Summary) {
	if len(summaries) == 0 {
		return
	}
	p := message.NewPrinter(language.English)
	_, _ = fmt.Fprintf(w, "--- Break-even ---\n")
	_, _ = fmt.Fprintf(w, "Scenario | Field | Metric | Floor | Multiplier | Headroom\n")
	for _, s := range summaries {
		_, _ = p.Fprintf(w, "%s | %s | %s | %.2f | x%.4f | %.2f\n", s.Scenario, s.Field, s.Metric, s.Floor, s.Value, s.Headroom)
		for _, note := range s.Notes {
			_, _ = fmt.Fprintf(w, "Note: %s\n", note)
		}
	}
	_, _ = fmt.Fprintf(w, "\n")
}

var csvColumns = []string{
	"scenario", "month", "label", "revenue", "constructionCost", "landCost", "softCosts",
	"marketingCost", "loanDrawn", "loanInterest", "loanRepayment", "loanBalance",
	"equityInjected", "zakatDue", "vatOnCosts", "vatRecoverable", "escrowReserved",
	"escrowReleased", "netCashflow", "cashBalance",
}

// CsvFormat outputs in comma-separated value format.
func CsvFormat(results []*engine.ScenarioResult) {
	WriteCsv(os.Stdout, results)
}

// CsvString returns the comma-separated value output as a string.
func CsvString(results []*engine.ScenarioResult) string {
	var b strings.Builder
	WriteCsv(&b, results)
	return b.String()
}

// WriteCsv writes one row per scenario and month, every field quoted.
func WriteCsv(w io.Writer, results []*engine.ScenarioResult) {
	quoted := make([]string, len(csvColumns))
	for i, column := range csvColumns {
		quoted[i] = quote(column)
	}
	_, _ = fmt.Fprintln(w, strings.Join(quoted, ","))

	for _, result := range results {
		for _, row := range result.Data {
			fields := []string{
				quote(result.Scenario),
				quote(fmt.Sprintf("%d", row.Month)),
				quote(row.Label),
			}
			for _, v := range []float64{
				row.Revenue, row.ConstructionCost, row.LandCost, row.SoftCosts,
				row.MarketingCost, row.LoanDrawn, row.LoanInterest, row.LoanRepayment, row.LoanBalance,
				row.EquityInjected, row.ZakatDue, row.VATOnCosts, row.VATRecoverable, row.EscrowReserved,
				row.EscrowReleased, row.NetCashflow, row.CashBalance,
			} {
				fields = append(fields, quote(fmt.Sprintf("%.2f", v)))
			}
			_, _ = fmt.Fprintln(w, strings.Join(fields, ","))
		}
	}
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
