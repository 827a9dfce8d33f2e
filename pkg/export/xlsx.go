// Package export writes scenario results as a spreadsheet workbook.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/iwvelando/feasibility-forecast/pkg/comparison"
	"github.com/iwvelando/feasibility-forecast/pkg/engine"
	"github.com/iwvelando/feasibility-forecast/pkg/format"
	"github.com/iwvelando/feasibility-forecast/pkg/kpi"
	"github.com/xuri/excelize/v2"
)

const (
	SummarySheet    = "Summary"
	ComparisonSheet = "Comparison"

	// ContentType is the media type of the written workbook.
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	maxSheetName = 31

	// excelize built-in number format "#,##0.00"
	moneyFormat = 4
)

var monthlyHeader = []interface{}{
	"Month", "Label", "Revenue", "Construction", "Land", "Soft costs", "Marketing",
	"Loan drawn", "Loan interest", "Debt service", "Loan balance", "Equity",
	"Zakat", "VAT on costs", "VAT recoverable", "Escrow reserved", "Escrow released",
	"Retention outstanding", "Net cash flow", "Cash balance",
}

// Workbook builds one sheet per scenario, a Summary sheet and, when
// comparisons are given, a Comparison sheet. The caller closes the file.
func Workbook(results []*engine.ScenarioResult, comparisons []comparison.Comparison) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		_ = f.Close()
		return nil, err
	}
	style, err := f.NewStyle(&excelize.Style{NumFmt: moneyFormat})
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	if err := writeSummary(f, results); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("summary sheet: %w", err)
	}

	used := map[string]bool{strings.ToLower(SummarySheet): true, strings.ToLower(ComparisonSheet): true}
	for _, result := range results {
		name := sheetName(result.Scenario, used)
		if _, err := f.NewSheet(name); err != nil {
			_ = f.Close()
			return nil, err
		}
		if err := writeMonthly(f, name, result, style); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("scenario %s: %w", result.Scenario, err)
		}
	}

	if len(comparisons) > 0 {
		if _, err := f.NewSheet(ComparisonSheet); err != nil {
			_ = f.Close()
			return nil, err
		}
		if err := writeComparisons(f, comparisons); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("comparison sheet: %w", err)
		}
	}
	return f, nil
}

// Write writes the workbook to w.
func Write(w io.Writer, results []*engine.ScenarioResult, comparisons []comparison.Comparison) error {
	f, err := Workbook(results, comparisons)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	_, err = f.WriteTo(w)
	return err
}

// WriteFile saves the workbook at path.
func WriteFile(path string, results []*engine.ScenarioResult, comparisons []comparison.Comparison) error {
	f, err := Workbook(results, comparisons)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return f.SaveAs(path)
}

func writeMonthly(f *excelize.File, sheet string, result *engine.ScenarioResult, style int) error {
	if err := f.SetSheetRow(sheet, "A1", &monthlyHeader); err != nil {
		return err
	}
	for i, m := range result.Data {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{
			m.Month, m.Label, m.Revenue, m.ConstructionCost, m.LandCost, m.SoftCosts, m.MarketingCost,
			m.LoanDrawn, m.LoanInterest, m.LoanRepayment, m.LoanBalance, m.EquityInjected,
			m.ZakatDue, m.VATOnCosts, m.VATRecoverable, m.EscrowReserved, m.EscrowReleased,
			m.RetentionOutstanding, m.NetCashflow, m.CashBalance,
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	last, err := excelize.ColumnNumberToName(len(monthlyHeader))
	if err != nil {
		return err
	}
	return f.SetColStyle(sheet, "C:"+last, style)
}

type summaryLine struct {
	label string
	value func(kpi.Summary) interface{}
}

func amount(get func(kpi.Summary) float64) func(kpi.Summary) interface{} {
	return func(s kpi.Summary) interface{} { return get(s) }
}

// measure keeps numeric values numeric and writes sentinels as text.
func measure(get func(kpi.Summary) kpi.Measure) func(kpi.Summary) interface{} {
	return func(s kpi.Summary) interface{} {
		m := get(s)
		if m.OK() {
			return m.Value
		}
		return format.Measure(m, nil)
	}
}

var summaryLines = []summaryLine{
	{"Total revenue", amount(func(s kpi.Summary) float64 { return s.TotalRevenue })},
	{"Total cost", amount(func(s kpi.Summary) float64 { return s.TotalCost })},
	{"Profit", amount(func(s kpi.Summary) float64 { return s.Profit })},
	{"Profit margin", measure(func(s kpi.Summary) kpi.Measure { return s.ProfitMargin })},
	{"ROI", measure(func(s kpi.Summary) kpi.Measure { return s.ROI })},
	{"NPV", amount(func(s kpi.Summary) float64 { return s.NPV })},
	{"IRR", measure(func(s kpi.Summary) kpi.Measure { return s.IRR })},
	{"Payback months", measure(func(s kpi.Summary) kpi.Measure { return s.PaybackMonths })},
	{"Equity multiple", measure(func(s kpi.Summary) kpi.Measure { return s.EquityMultiple })},
	{"Peak funding", amount(func(s kpi.Summary) float64 { return s.PeakFunding })},
	{"Total zakat", amount(func(s kpi.Summary) float64 { return s.TotalZakat })},
	{"Total VAT", amount(func(s kpi.Summary) float64 { return s.TotalVAT })},
	{"Total interest", amount(func(s kpi.Summary) float64 { return s.TotalInterest })},
	{"Final cash balance", amount(func(s kpi.Summary) float64 { return s.FinalCashBalance })},
	{"Unresolved retention", amount(func(s kpi.Summary) float64 { return s.UnresolvedRetention })},
	{"Escrow held", amount(func(s kpi.Summary) float64 { return s.EscrowHeld })},
}

func writeSummary(f *excelize.File, results []*engine.ScenarioResult) error {
	header := []interface{}{"KPI"}
	for _, result := range results {
		header = append(header, result.Scenario)
	}
	if err := f.SetSheetRow(SummarySheet, "A1", &header); err != nil {
		return err
	}
	for i, line := range summaryLines {
		row := []interface{}{line.label}
		for _, result := range results {
			row = append(row, line.value(result.Summary))
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SummarySheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

func writeComparisons(f *excelize.File, comparisons []comparison.Comparison) error {
	header := []interface{}{"Base", "Alternative", "KPI", "Base value", "Alternative value", "Change", "Change %", "Status"}
	if err := f.SetSheetRow(ComparisonSheet, "A1", &header); err != nil {
		return err
	}
	line := 2
	for _, c := range comparisons {
		for _, d := range c.Deltas {
			row := []interface{}{c.Base, c.Alternative, string(d.KPI), d.Base, d.Alternative, d.Absolute, d.Percentage, string(d.Status)}
			cell, err := excelize.CoordinatesToCellName(1, line)
			if err != nil {
				return err
			}
			if err := f.SetSheetRow(ComparisonSheet, cell, &row); err != nil {
				return err
			}
			line++
		}
	}
	return nil
}

// sheetName makes a scenario name a valid, unique worksheet name.
func sheetName(name string, used map[string]bool) string {
	cleaned := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`:\/?*[]`, r) {
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
	cleaned = strings.Trim(cleaned, "'")
	if cleaned == "" {
		cleaned = "Scenario"
	}
	cleaned = truncate(cleaned, maxSheetName)

	candidate := cleaned
	for n := 2; used[strings.ToLower(candidate)]; n++ {
		suffix := fmt.Sprintf(" (%d)", n)
		candidate = truncate(cleaned, maxSheetName-len(suffix)) + suffix
	}
	used[strings.ToLower(candidate)] = true
	return candidate
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
