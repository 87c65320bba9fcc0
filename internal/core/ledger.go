package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Ledger is an ordered, append-only collection of work entries. A Ledger is
// a value: every mutating operation returns a new Ledger and leaves the
// receiver untouched, so callers can keep the previous state around.
//
// The zero value is an empty ledger ready to use.
type Ledger struct {
	entries []WorkEntry
}

// NewLedger returns a ledger holding a copy of entries without validating
// them. Use ReplaceAll when the entries come from outside the process.
func NewLedger(entries ...WorkEntry) Ledger {
	return Ledger{entries: cloneEntries(entries)}
}

// Add derives hours and earnings for in and appends the resulting entry.
// Entries with zero or negative hours, including unparsable time strings,
// are rejected with ErrRejectedEntry and the ledger is returned unchanged.
func (l Ledger) Add(in EntryInput) (Ledger, WorkEntry, error) {
	if err := in.Date.Validate(); err != nil {
		return l, WorkEntry{}, fmt.Errorf("%w: %w", ErrRejectedEntry, err)
	}
	if err := ValidateRate(in.Rate); err != nil {
		return l, WorkEntry{}, err
	}
	timeIn, err := ParseClock(in.TimeIn)
	if err != nil {
		return l, WorkEntry{}, fmt.Errorf("%w: %w", ErrRejectedEntry, err)
	}
	timeOut, err := ParseClock(in.TimeOut)
	if err != nil {
		return l, WorkEntry{}, fmt.Errorf("%w: %w", ErrRejectedEntry, err)
	}
	hours := HoursBetween(timeIn, timeOut)
	if !hours.IsPositive() {
		return l, WorkEntry{}, fmt.Errorf("%w: %s to %s gives %s hours", ErrRejectedEntry, timeIn, timeOut, hours.StringFixed(Places))
	}

	entry := WorkEntry{
		Date:        in.Date,
		TimeIn:      timeIn,
		TimeOut:     timeOut,
		HoursWorked: hours,
		Earnings:    Earnings(hours, in.Rate),
		Rate:        in.Rate,
	}
	next := make([]WorkEntry, len(l.entries), len(l.entries)+1)
	copy(next, l.entries)
	return Ledger{entries: append(next, entry)}, entry, nil
}

// Clear returns an empty ledger.
func (l Ledger) Clear() Ledger {
	return Ledger{}
}

// ReplaceAll returns a ledger holding exactly entries, in order. Derived
// fields are taken as supplied and not recomputed. The whole batch is refused
// if any entry has non-positive hours or an invalid date.
func (l Ledger) ReplaceAll(entries []WorkEntry) (Ledger, error) {
	for i, e := range entries {
		if err := e.Validate(); err != nil {
			return l, fmt.Errorf("%w: entry %d: %w", ErrRejectedEntry, i+1, err)
		}
	}
	return Ledger{entries: cloneEntries(entries)}, nil
}

// Totals returns the running sums over all entries.
func (l Ledger) Totals() Totals {
	return MonthlyTotals(l.entries)
}

// Entries returns a copy of the entries in insertion order.
func (l Ledger) Entries() []WorkEntry {
	return cloneEntries(l.entries)
}

func (l Ledger) Len() int {
	return len(l.entries)
}

func (l Ledger) IsEmpty() bool {
	return len(l.entries) == 0
}

// Month returns the entries dated in the given year and month, keeping
// insertion order.
func (l Ledger) Month(year, month int) Ledger {
	var out []WorkEntry
	for _, e := range l.entries {
		if e.Date.Year() == year && int(e.Date.Month()) == month {
			out = append(out, e)
		}
	}
	return Ledger{entries: out}
}

// Recompute re-derives hours and earnings of e from its time fields and rate.
// Only used when an import explicitly opts out of trusting the file.
func Recompute(e WorkEntry, rate decimal.Decimal) (WorkEntry, error) {
	if err := ValidateRate(rate); err != nil {
		return e, err
	}
	hours := HoursBetween(e.TimeIn, e.TimeOut)
	if !hours.IsPositive() {
		return e, fmt.Errorf("%w: %s to %s gives %s hours", ErrRejectedEntry, e.TimeIn, e.TimeOut, hours.StringFixed(Places))
	}
	e.HoursWorked = hours
	e.Earnings = Earnings(hours, rate)
	e.Rate = rate
	return e, nil
}

func cloneEntries(in []WorkEntry) []WorkEntry {
	if len(in) == 0 {
		return nil
	}
	out := make([]WorkEntry, len(in))
	copy(out, in)
	return out
}
