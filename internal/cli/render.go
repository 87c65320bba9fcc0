package cli

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/shopspring/decimal"

	"paytrack/internal/amqp"
	"paytrack/internal/core"
	"paytrack/internal/csvcodec"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	numberStyle = cellStyle.Align(lipgloss.Right)
	totalStyle  = numberStyle.Bold(true)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	labelStyle  = lipgloss.NewStyle().Bold(true).Width(10)
)

// renderLedger draws the entries in ledger order followed by a totals row.
func renderLedger(l core.Ledger, currency string) string {
	entries := l.Entries()
	rows := make([][]string, 0, len(entries)+1)
	for _, e := range entries {
		rows = append(rows, []string{
			e.Date.String(),
			e.TimeIn.String(),
			e.TimeOut.String(),
			core.FormatAmount(e.HoursWorked),
			core.FormatAmount(e.Earnings),
		})
	}
	tot := l.Totals()
	rows = append(rows, []string{csvcodec.TotalLabel, "", "", core.FormatAmount(tot.TotalHours), core.FormatAmount(tot.TotalEarnings)})
	last := len(rows) - 1

	earnings := "Earnings"
	if currency != "" {
		earnings += " (" + currency + ")"
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers("Date", "Time In", "Time Out", "Hours", earnings).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case row == last && col >= 3:
				return totalStyle
			case col >= 3:
				return numberStyle
			}
			return cellStyle
		})
	return t.Render()
}

func renderTotals(t core.Totals, rate decimal.Decimal, currency string) string {
	line := func(label, value string) string {
		return labelStyle.Render(label) + " " + value
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		line("Hours", core.FormatAmount(t.TotalHours)),
		line("Earnings", core.FormatAmount(t.TotalEarnings)+" "+currency),
		line("Rate", core.FormatAmount(rate)+" "+currency+"/h"),
	)
}

func renderChange(m *amqp.LedgerChangedMessage, currency string) string {
	return fmt.Sprintf("%s %-6s %d days, %s h, %s %s",
		m.Timestamp.Local().Format("2006-01-02 15:04:05"), m.Kind, m.Entries, m.TotalHours, m.TotalEarnings, currency)
}
