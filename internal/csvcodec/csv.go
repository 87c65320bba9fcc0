// Package csvcodec converts a ledger to and from the CSV export format.
//
// The format is deliberately narrow: fields are joined with commas and never
// quoted, so dates, times and numbers are assumed to be comma free. Example:
//
//	Date,Time In,Time Out,Hours Worked,Earnings (€)
//	2025-05-01,09:00,17:00,8.00,124.00
//	2025-05-02,10:00,18:30,8.50,131.75
//	TOTAL,,,16.50,255.75
//
// The plain format carries no rate column; use EncodeDetailed for backups
// that need to keep the rate of each entry.
package csvcodec

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"paytrack/internal/core"
)

const (
	// TotalLabel marks the totals row in the date column.
	TotalLabel = "TOTAL"

	DefaultCurrency = "€"

	fieldCount = 5
)

var (
	ErrEmptyImport  = errors.New("no usable rows in import")
	ErrMalformedRow = errors.New("malformed row")
)

// RowError describes a data row that was skipped during decoding.
type RowError struct {
	Line int // 1-based line number in the original text
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *RowError) Unwrap() []error {
	return []error{ErrMalformedRow, e.Err}
}

// Import is the outcome of parsing CSV text.
type Import struct {
	Ledger  core.Ledger
	Skipped []*RowError
}

// Encoder writes the plain CSV format.
type Encoder struct {
	// Currency is shown in the earnings header, e.g. "Earnings (€)". Empty
	// means no currency suffix.
	Currency string
}

// Header returns the header row for the encoder's currency.
func (enc Encoder) Header() string {
	earnings := "Earnings"
	if enc.Currency != "" {
		earnings += " (" + enc.Currency + ")"
	}
	return strings.Join([]string{"Date", "Time In", "Time Out", "Hours Worked", earnings}, ",")
}

// Encode renders l as CSV: a header, one row per entry in ledger order and a
// final totals row. Lines are separated by "\n" with no trailing newline.
func (enc Encoder) Encode(l core.Ledger) string {
	entries := l.Entries()
	lines := make([]string, 0, len(entries)+2)
	lines = append(lines, enc.Header())
	for _, e := range entries {
		lines = append(lines, strings.Join([]string{
			e.Date.String(),
			e.TimeIn.String(),
			e.TimeOut.String(),
			core.FormatAmount(e.HoursWorked),
			core.FormatAmount(e.Earnings),
		}, ","))
	}
	t := l.Totals()
	lines = append(lines, strings.Join([]string{
		TotalLabel, "", "",
		core.FormatAmount(t.TotalHours),
		core.FormatAmount(t.TotalEarnings),
	}, ","))
	return strings.Join(lines, "\n")
}

// Encode renders l with the default currency.
func Encode(l core.Ledger) string {
	return Encoder{Currency: DefaultCurrency}.Encode(l)
}

// Decode parses CSV text into a ledger. See Parse.
func Decode(text string) (core.Ledger, error) {
	imp, err := Parse(text)
	if err != nil {
		return core.Ledger{}, err
	}
	return imp.Ledger, nil
}

// Parse reads CSV text produced by Encode or edited by hand.
//
// The first line (header) and the last line (totals) are dropped without
// looking at them. Every other non-blank line must hold exactly five fields;
// lines that do not are skipped and reported in Import.Skipped. Hours and
// earnings are taken from the file as they are. When no row survives, Parse
// fails with ErrEmptyImport.
func Parse(text string) (*Import, error) {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.TrimRight(text, "\n\r\t ")
	lines := strings.Split(text, "\n")
	if len(lines) <= 2 {
		return nil, ErrEmptyImport
	}

	imp := &Import{}
	var entries []core.WorkEntry
	for i, line := range lines[1 : len(lines)-1] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		entry, err := parseRow(line)
		if err != nil {
			imp.Skipped = append(imp.Skipped, &RowError{Line: i + 2, Err: err})
			continue
		}
		entries = append(entries, entry)
	}
	if len(entries) == 0 {
		if len(imp.Skipped) > 0 {
			return nil, fmt.Errorf("%w: %d malformed rows", ErrEmptyImport, len(imp.Skipped))
		}
		return nil, ErrEmptyImport
	}

	l, err := core.Ledger{}.ReplaceAll(entries)
	if err != nil {
		return nil, err
	}
	imp.Ledger = l
	return imp, nil
}

func parseRow(line string) (core.WorkEntry, error) {
	return parseFields(strings.Split(line, ","))
}

func parseFields(fields []string) (core.WorkEntry, error) {
	if len(fields) != fieldCount {
		return core.WorkEntry{}, fmt.Errorf("expected %d fields, got %d", fieldCount, len(fields))
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	date, err := core.ParseDate(fields[0])
	if err != nil {
		return core.WorkEntry{}, fmt.Errorf("date %q: %w", fields[0], err)
	}
	timeIn, err := core.ParseClock(fields[1])
	if err != nil {
		return core.WorkEntry{}, fmt.Errorf("time in: %w", err)
	}
	timeOut, err := core.ParseClock(fields[2])
	if err != nil {
		return core.WorkEntry{}, fmt.Errorf("time out: %w", err)
	}
	hours, err := decimal.NewFromString(fields[3])
	if err != nil {
		return core.WorkEntry{}, fmt.Errorf("hours %q: %w", fields[3], err)
	}
	if !hours.IsPositive() {
		return core.WorkEntry{}, fmt.Errorf("hours %q: %w", fields[3], core.ErrRejectedEntry)
	}
	earnings, err := decimal.NewFromString(fields[4])
	if err != nil {
		return core.WorkEntry{}, fmt.Errorf("earnings %q: %w", fields[4], err)
	}

	return core.WorkEntry{
		Date:        date,
		TimeIn:      timeIn,
		TimeOut:     timeOut,
		HoursWorked: hours,
		Earnings:    earnings,
	}, nil
}
