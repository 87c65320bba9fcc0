// Package report renders the ledger as XLSX and PDF statements.
package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"paytrack/internal/core"
)

const (
	summarySheet = "summary"
	entriesSheet = "entries"
)

// Statement is what gets rendered: the entries, the current rate and a label
// for the period they cover.
type Statement struct {
	Title       string
	Period      string
	Currency    string
	Rate        decimal.Decimal
	Ledger      core.Ledger
	GeneratedAt time.Time
}

// NewStatement builds a statement for l. Period is derived from the entry
// dates: a single month renders as "2006-01", a wider span as "from to".
func NewStatement(l core.Ledger, rate decimal.Decimal, currency string, now time.Time) Statement {
	return Statement{
		Title:       "Work Statement",
		Period:      period(l),
		Currency:    currency,
		Rate:        rate,
		Ledger:      l,
		GeneratedAt: now,
	}
}

func period(l core.Ledger) string {
	entries := l.Entries()
	if len(entries) == 0 {
		return "-"
	}
	first, last := entries[0].Date, entries[0].Date
	for _, e := range entries[1:] {
		if e.Date.Before(first.Time) {
			first = e.Date
		}
		if e.Date.After(last.Time) {
			last = e.Date
		}
	}
	if first.Year() == last.Year() && first.Month() == last.Month() {
		return first.Format("2006-01")
	}
	return first.String() + " to " + last.String()
}

// BuildXLSX renders a summary sheet and an entries sheet with a totals row.
func BuildXLSX(stmt Statement) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(entriesSheet); err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}

	totals := stmt.Ledger.Totals()
	summary := [][]any{
		{stmt.Title},
		{},
		{"Period", stmt.Period},
		{"Hourly rate", stmt.Rate.InexactFloat64()},
		{"Currency", stmt.Currency},
		{"Days", stmt.Ledger.Len()},
		{"Total hours", totals.TotalHours.InexactFloat64()},
		{"Total earnings", totals.TotalEarnings.InexactFloat64()},
		{"Generated", stmt.GeneratedAt.Format(time.RFC3339)},
	}
	for i, row := range summary {
		if len(row) == 0 {
			continue
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write summary: %w", err)
		}
	}

	header := []any{"Date", "Time In", "Time Out", "Rate", "Hours Worked", "Earnings"}
	if err := f.SetSheetRow(entriesSheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	entries := stmt.Ledger.Entries()
	for i, e := range entries {
		row := []any{
			e.Date.String(),
			e.TimeIn.String(),
			e.TimeOut.String(),
			e.Rate.InexactFloat64(),
			e.HoursWorked.InexactFloat64(),
			e.Earnings.InexactFloat64(),
		}
		if err := f.SetSheetRow(entriesSheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return nil, fmt.Errorf("write entry %d: %w", i+1, err)
		}
	}
	totalRow := []any{"TOTAL", "", "", "", totals.TotalHours.InexactFloat64(), totals.TotalEarnings.InexactFloat64()}
	if err := f.SetSheetRow(entriesSheet, fmt.Sprintf("A%d", len(entries)+2), &totalRow); err != nil {
		return nil, fmt.Errorf("write totals: %w", err)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildPDF renders a one-table A4 statement.
func BuildPDF(stmt Statement) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	// core fonts are cp1252; this keeps the euro sign
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetFont("Arial", "B", 14)
	pdf.AddPage()

	pdf.Cell(0, 8, tr(stmt.Title))
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	totals := stmt.Ledger.Totals()
	for _, line := range []string{
		fmt.Sprintf("Period: %s", stmt.Period),
		fmt.Sprintf("Hourly rate: %s %s", stmt.Currency, core.FormatAmount(stmt.Rate)),
		fmt.Sprintf("Generated: %s", stmt.GeneratedAt.Format(time.RFC3339)),
	} {
		pdf.Cell(0, 6, tr(line))
		pdf.Ln(5)
	}
	pdf.Ln(4)

	widths := []float64{30, 25, 25, 25, 30, 35}
	pdf.SetFont("Arial", "B", 10)
	for i, h := range []string{"Date", "Time In", "Time Out", "Rate", "Hours", "Earnings"} {
		pdf.CellFormat(widths[i], 6, h, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 10)
	for _, e := range stmt.Ledger.Entries() {
		cells := []string{
			e.Date.String(),
			e.TimeIn.String(),
			e.TimeOut.String(),
			core.FormatAmount(e.Rate),
			core.FormatAmount(e.HoursWorked),
			core.FormatAmount(e.Earnings),
		}
		for i, c := range cells {
			align := "R"
			if i < 3 {
				align = "C"
			}
			pdf.CellFormat(widths[i], 6, c, "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(widths[0]+widths[1]+widths[2]+widths[3], 6, "TOTAL", "1", 0, "L", false, 0, "")
	pdf.CellFormat(widths[4], 6, core.FormatAmount(totals.TotalHours), "1", 0, "R", false, 0, "")
	pdf.CellFormat(widths[5], 6, tr(stmt.Currency+" "+core.FormatAmount(totals.TotalEarnings)), "1", 0, "R", false, 0, "")
	pdf.Ln(-1)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
