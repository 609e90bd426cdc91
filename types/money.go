// Package types provides common value types used across the ledger.
package types

import "fmt"

// Cents is a signed quantity of integer cents ("credits"). One credit is
// one cent; floating point is never used for money. Positive values credit
// an account, negative values debit it.
type Cents int64

// Zero is the additive identity.
const Zero Cents = 0

// Add returns the sum of two Cents values.
func (c Cents) Add(other Cents) Cents { return c + other }

// Sub returns the difference of two Cents values.
func (c Cents) Sub(other Cents) Cents { return c - other }

// Negate returns the negation of c.
func (c Cents) Negate() Cents { return -c }

// Abs returns the absolute value of c.
func (c Cents) Abs() Cents {
	if c < 0 {
		return -c
	}
	return c
}

// IsZero reports whether c is zero.
func (c Cents) IsZero() bool { return c == 0 }

// IsPositive reports whether c is greater than zero.
func (c Cents) IsPositive() bool { return c > 0 }

// IsNegative reports whether c is less than zero.
func (c Cents) IsNegative() bool { return c < 0 }

// String renders c as a dollar-formatted string, e.g. "$49.00" or
// "-$0.01". It is a display helper only; all arithmetic stays in Cents.
func (c Cents) String() string {
	sign := ""
	v := c
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s$%d.%02d", sign, v/100, v%100)
}

// USD converts c to a floating-point dollar amount, for display only.
func (c Cents) USD() float64 { return float64(c) / 100 }

// FromUSD converts a floating-point USD amount to Cents, rounding to the
// nearest cent, half away from zero. Intended for configuration loading
// and tests only — the ledger's write path never computes costs from
// floats.
func FromUSD(usd float64) Cents {
	if usd >= 0 {
		return Cents(usd*100 + 0.5)
	}
	return Cents(usd*100 - 0.5)
}
