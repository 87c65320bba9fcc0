package core

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Clock is a wall-clock time of day expressed as minutes after midnight.
type Clock int

const minutesPerDay = 24 * 60

var sixty = decimal.NewFromInt(60)

// ParseClock parses a 24-hour "HH:MM" string. The hour may have one or two
// digits; minutes always have two.
func ParseClock(s string) (Clock, error) {
	s = strings.TrimSpace(s)
	hh, mm, ok := strings.Cut(s, ":")
	if !ok || len(hh) < 1 || len(hh) > 2 || len(mm) != 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 || !isDigits(hh) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 || !isDigits(mm) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
	}
	return Clock(h*60 + m), nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Minutes returns the minute of the day.
func (c Clock) Minutes() int { return int(c) }

func (c Clock) Valid() bool { return c >= 0 && c < minutesPerDay }

// String formats the clock as zero-padded "HH:MM".
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// Sub returns the signed number of minutes from o to c.
func (c Clock) Sub(o Clock) int {
	return int(c) - int(o)
}

func (c Clock) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *Clock) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseClock(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ElapsedHours returns the hours between two "HH:MM" strings, rounded to two
// decimals. A blank value on either side yields zero without error so that
// callers can ask before both fields are filled in. Shifts crossing midnight
// are not supported: when timeOut is earlier than timeIn the result is
// negative and callers must reject it.
func ElapsedHours(timeIn, timeOut string) (decimal.Decimal, error) {
	if strings.TrimSpace(timeIn) == "" || strings.TrimSpace(timeOut) == "" {
		return decimal.Zero, nil
	}
	in, err := ParseClock(timeIn)
	if err != nil {
		return decimal.Zero, err
	}
	out, err := ParseClock(timeOut)
	if err != nil {
		return decimal.Zero, err
	}
	return HoursBetween(in, out), nil
}

// HoursBetween is ElapsedHours over already parsed clocks.
func HoursBetween(in, out Clock) decimal.Decimal {
	return decimal.NewFromInt(int64(out.Sub(in))).Div(sixty).Round(2)
}
