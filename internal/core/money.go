// Package core provides money parsing and handling utilities.
//
// This file contains the Money value type. Amounts are held as integer cents so
// stored values compare exactly; arithmetic that needs more precision than a
// cent goes through decimal.Decimal.
package core

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// maxCents keeps Money well inside the range float64 can represent exactly,
// which the report formatter relies on.
const maxCents = 1 << 52

// Money is a non-negative amount in cents.
type Money struct {
	Cents int64
}

// NewMoney rounds d half away from zero to the nearest cent.
func NewMoney(d decimal.Decimal) Money {
	return Money{Cents: d.Round(2).Shift(2).IntPart()}
}

// ParseMoney converts a decimal string to Money with half-up rounding.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators. Zero is a
// valid amount here; use Validate when a strictly positive value is required.
//
// Examples:
//
//	ParseMoney("12.34")  -> 1234 cents
//	ParseMoney("12,34")  -> 1234 cents
//	ParseMoney("12.345") -> 1235 cents (rounds up)
//	ParseMoney("-1")     -> ErrInvalidAmount
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	// Normalize decimal comma to dot
	s = strings.ReplaceAll(s, ",", ".")
	if strings.Count(s, ".") > 1 {
		return Money{}, ErrInvalidAmount
	}
	for _, r := range s {
		if r != '.' && !unicode.IsDigit(r) {
			// Rejects signs and exponents along with garbage.
			return Money{}, ErrInvalidAmount
		}
	}
	if s == "." {
		return Money{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	return fromDecimal(d)
}

// MustParseMoney is ParseMoney for literals known to be valid.
func MustParseMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(fmt.Sprintf("core: invalid money literal %q", s))
	}
	return m
}

func fromDecimal(d decimal.Decimal) (Money, error) {
	if d.IsNegative() {
		return Money{}, ErrInvalidAmount
	}
	m := NewMoney(d)
	if m.Cents > maxCents {
		return Money{}, ErrInvalidAmount
	}
	return m, nil
}

// Decimal returns the exact decimal value of m.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// Add returns m + o.
func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

// Sub returns m - o. The result may be negative and is only meant for
// reconciliation checks.
func (m Money) Sub(o Money) Money {
	return Money{Cents: m.Cents - o.Cents}
}

func (m Money) IsZero() bool {
	return m.Cents == 0
}

// Validate reports whether m is a strictly positive amount.
func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// String renders m with exactly two decimals and no grouping, e.g. "1500.00".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// MarshalJSON writes m as a bare JSON number ("1500.5", "0").
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Decimal().String()), nil
}

// UnmarshalJSON accepts a JSON number or a numeric string. Values written by
// other tools as floats ("20000.0") are rounded to the cent.
func (m *Money) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		*m = Money{}
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("decode money %q: %w", s, ErrInvalidAmount)
	}
	v, err := fromDecimal(d)
	if err != nil {
		return fmt.Errorf("decode money %q: %w", s, err)
	}
	*m = v
	return nil
}
