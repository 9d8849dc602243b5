// Package core provides money parsing and handling utilities.
//
// Amounts travel to and from the backend as JSON numbers. They are held as
// decimals so that sums and percentages never pick up float rounding noise.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Money is a decimal amount in the user's currency.
type Money struct {
	decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

// Zero returns a zero amount.
func Zero() Money { return Money{decimal.Zero} }

// NewMoney builds a Money from a float as received from a form or the backend.
func NewMoney(f float64) Money { return Money{decimal.NewFromFloat(f)} }

// MoneyFromInt builds a whole-unit Money.
func MoneyFromInt(v int64) Money { return Money{decimal.NewFromInt(v)} }

// ParseAmount converts a user-entered amount to Money.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and rounds
// half-up to two decimal places. Only strictly positive amounts are valid.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34
//	ParseAmount("12,345") -> 12.35
//	ParseAmount("-1")     -> ErrInvalidAmount
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return Money{}, ErrInvalidAmount
	}
	if strings.ContainsAny(s, "eE") {
		return Money{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	d = d.Round(2)
	if !d.IsPositive() {
		return Money{}, ErrInvalidAmount
	}
	return Money{d}, nil
}

// ParseSignedAmount is ParseAmount for balances, which may be zero or negative.
func ParseSignedAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Zero(), nil
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.ContainsAny(s, "eE") {
		return Money{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	return Money{d.Round(2)}, nil
}

func (m Money) Validate() error {
	if !m.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

func (m Money) Add(o Money) Money { return Money{m.Decimal.Add(o.Decimal)} }

func (m Money) Sub(o Money) Money { return Money{m.Decimal.Sub(o.Decimal)} }

// Cents returns the amount in minor units, rounded half-up.
func (m Money) Cents() int64 {
	return m.Decimal.Mul(hundred).Round(0).IntPart()
}

// MarshalJSON writes the amount as a bare JSON number.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Decimal.String()), nil
}

// UnmarshalJSON accepts numbers, quoted numbers and null (zero).
func (m *Money) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		m.Decimal = decimal.Zero
		return nil
	}
	return m.Decimal.UnmarshalJSON(data)
}

// FormValue renders the amount for an <input type="number"> value.
func (m Money) FormValue() string {
	return m.Decimal.StringFixed(2)
}
