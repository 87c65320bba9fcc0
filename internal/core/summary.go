package core

import "github.com/shopspring/decimal"

// Totals aggregates hours and earnings over a set of entries.
type Totals struct {
	TotalHours    decimal.Decimal `json:"totalHours"`
	TotalEarnings decimal.Decimal `json:"totalEarnings"`
}

// MonthlyTotals sums the already rounded per-entry figures. The sums are not
// rounded again, which keeps them identical to the CSV totals row.
func MonthlyTotals(entries []WorkEntry) Totals {
	t := Totals{TotalHours: decimal.Zero, TotalEarnings: decimal.Zero}
	for _, e := range entries {
		t.TotalHours = t.TotalHours.Add(e.HoursWorked)
		t.TotalEarnings = t.TotalEarnings.Add(e.Earnings)
	}
	return t
}
