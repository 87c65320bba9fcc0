// Package core provides money parsing and rounding utilities.
//
// This file contains the earnings arithmetic and the parsing of rates typed
// by the user. All amounts are shopspring decimals rounded half away from
// zero to two places.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Places is the number of decimal places kept for hours and amounts.
const Places = 2

// ParseRate converts a user supplied hourly rate to a decimal.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators. Negative
// values, signs and anything that is not a plain decimal number are rejected.
// Zero is a valid rate.
//
// Examples:
//
//	ParseRate("15.50") -> 15.5, nil
//	ParseRate("15,5")  -> 15.5, nil
//	ParseRate("-1")    -> 0, ErrInvalidRate
func ParseRate(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidRate
	}
	// Normalize decimal comma to dot
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return decimal.Zero, ErrInvalidRate
	}
	if strings.Count(s, ".") > 1 || strings.ContainsAny(s, "eE") {
		return decimal.Zero, ErrInvalidRate
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidRate
	}
	return d, nil
}

// ValidateRate reports whether rate can be used for new entries.
func ValidateRate(rate decimal.Decimal) error {
	if rate.IsNegative() {
		return ErrInvalidRate
	}
	return nil
}

// Earnings returns hours × rate rounded to two decimals.
func Earnings(hours, rate decimal.Decimal) decimal.Decimal {
	return hours.Mul(rate).Round(Places)
}

// FormatAmount renders a decimal with exactly two digits after the dot and
// no thousands separator.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(Places)
}
