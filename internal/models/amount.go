package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Native value is counted in wei, the smallest indivisible unit.
// 1 ether = 10^18 wei.
const etherExp = 18

// Ether parses a decimal ether string (e.g. "0.2") into wei
func Ether(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid ether amount %q: %w", s, err)
	}
	wei := d.Shift(etherExp)
	if !wei.Equal(wei.Truncate(0)) {
		return decimal.Zero, fmt.Errorf("invalid ether amount %q: more than %d decimals", s, etherExp)
	}
	return wei, nil
}

// MustEther is Ether for constants and tests
func MustEther(s string) decimal.Decimal {
	wei, err := Ether(s)
	if err != nil {
		panic(err)
	}
	return wei
}

// Wei parses an integer wei string
func Wei(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid wei amount %q: %w", s, err)
	}
	if !d.Equal(d.Truncate(0)) {
		return decimal.Zero, fmt.Errorf("invalid wei amount %q: fractional wei", s)
	}
	return d, nil
}

// FormatEther renders a wei amount in ether for logs
func FormatEther(wei decimal.Decimal) string {
	return wei.Shift(-etherExp).String()
}

// ToEtherFloat converts wei to a float64 ether value, for metrics only
func ToEtherFloat(wei decimal.Decimal) float64 {
	f, _ := wei.Shift(-etherExp).Float64()
	return f
}
