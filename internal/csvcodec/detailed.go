package csvcodec

import (
	"errors"
	"fmt"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"

	"paytrack/internal/core"
)

// detailedRow is one line of the backup format. Unlike the plain export it
// keeps the rate, uses proper CSV quoting and has no totals row.
type detailedRow struct {
	Date        string `csv:"date"`
	TimeIn      string `csv:"time_in"`
	TimeOut     string `csv:"time_out"`
	Rate        string `csv:"rate"`
	HoursWorked string `csv:"hours_worked"`
	Earnings    string `csv:"earnings"`
}

// EncodeDetailed renders l in the backup format.
func EncodeDetailed(l core.Ledger) (string, error) {
	entries := l.Entries()
	rows := make([]*detailedRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, &detailedRow{
			Date:        e.Date.String(),
			TimeIn:      e.TimeIn.String(),
			TimeOut:     e.TimeOut.String(),
			Rate:        e.Rate.String(),
			HoursWorked: core.FormatAmount(e.HoursWorked),
			Earnings:    core.FormatAmount(e.Earnings),
		})
	}
	out, err := gocsv.MarshalString(&rows)
	if err != nil {
		return "", fmt.Errorf("marshal detailed csv: %w", err)
	}
	return out, nil
}

// DecodeDetailed parses the backup format. Rows that fail to parse are
// skipped like in Parse; an import with no usable rows fails with
// ErrEmptyImport.
func DecodeDetailed(text string) (*Import, error) {
	var rows []*detailedRow
	if err := gocsv.UnmarshalString(text, &rows); err != nil {
		if errors.Is(err, gocsv.ErrEmptyCSVFile) {
			return nil, ErrEmptyImport
		}
		return nil, fmt.Errorf("unmarshal detailed csv: %w", err)
	}

	imp := &Import{}
	var entries []core.WorkEntry
	for i, row := range rows {
		entry, err := row.entry()
		if err != nil {
			// header is line 1
			imp.Skipped = append(imp.Skipped, &RowError{Line: i + 2, Err: err})
			continue
		}
		entries = append(entries, entry)
	}
	if len(entries) == 0 {
		return nil, ErrEmptyImport
	}
	l, err := core.Ledger{}.ReplaceAll(entries)
	if err != nil {
		return nil, err
	}
	imp.Ledger = l
	return imp, nil
}

func (r *detailedRow) entry() (core.WorkEntry, error) {
	e, err := parseFields([]string{r.Date, r.TimeIn, r.TimeOut, r.HoursWorked, r.Earnings})
	if err != nil {
		return e, err
	}
	if r.Rate != "" {
		rate, err := decimal.NewFromString(r.Rate)
		if err != nil {
			return e, fmt.Errorf("rate %q: %w", r.Rate, err)
		}
		if rate.IsNegative() {
			return e, fmt.Errorf("rate %q: %w", r.Rate, core.ErrInvalidRate)
		}
		e.Rate = rate
	}
	return e, nil
}
