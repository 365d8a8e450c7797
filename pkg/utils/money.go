package utils

import (
	"github.com/shopspring/decimal"
)

// ToCents converts a decimal amount to integer minor units (cents), rounding
// half away from zero. All ledger arithmetic and validation happens on the
// returned integer, never on the decimal input.
func ToCents(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// FromCents converts integer minor units back to a decimal amount for display.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}
