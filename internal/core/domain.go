package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar date format used on the CSV wire.
const DateLayout = "2006-01-02"

type (
	Date struct {
		time.Time
	}

	// EntryInput is what the presentation layer collects for one work day.
	EntryInput struct {
		Date    Date
		TimeIn  string
		TimeOut string
		Rate    decimal.Decimal
	}

	// WorkEntry is one recorded work day. Hours and earnings are derived
	// when the entry is created and never recomputed afterwards.
	WorkEntry struct {
		Date        Date            `json:"date"`
		TimeIn      Clock           `json:"timeIn"`
		TimeOut     Clock           `json:"timeOut"`
		HoursWorked decimal.Decimal `json:"hoursWorked"`
		Earnings    decimal.Decimal `json:"earnings"`
		Rate        decimal.Decimal `json:"rate"` // zero when unknown
	}
)

var (
	ErrInvalidFormat = errors.New("invalid time format")
	ErrRejectedEntry = errors.New("rejected entry")
	ErrInvalidRate   = errors.New("invalid rate")
	ErrInvalidDate   = errors.New("invalid date")
)

// accepted calendar date layouts, most specific first. Day/month orders
// such as 05/01/2025 are ambiguous and not accepted.
var dateLayouts = []string{
	DateLayout,
	time.RFC3339,
	"2006/01/02",
	"2006-1-2",
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate reads a calendar date from its textual form. Only the calendar
// day is kept; any time-of-day component is dropped.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, ErrInvalidDate
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return NewDate(t.Year(), int(t.Month()), t.Day()), nil
		}
	}
	return Date{}, ErrInvalidDate
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// String formats the date as yyyy-MM-dd.
func (d Date) String() string {
	return d.Format(DateLayout)
}

// SameDay reports whether both dates fall on the same calendar day.
func (d Date) SameDay(o Date) bool {
	y1, m1, d1 := d.Date()
	y2, m2, d2 := o.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

func (e WorkEntry) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if !e.HoursWorked.IsPositive() {
		return ErrRejectedEntry
	}
	if e.Rate.IsNegative() {
		return ErrInvalidRate
	}
	return nil
}
