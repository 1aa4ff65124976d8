package models

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Address identifies an account on the host ledger (airline, passenger, oracle or owner).
// Addresses are stored lowercase with a 0x prefix.
type Address string

// AddressLen is the number of hex digits in an address, without the 0x prefix
const AddressLen = 40

// ParseAddress validates and normalizes a hex address
func ParseAddress(s string) (Address, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if !strings.HasPrefix(s, "0x") {
		return "", fmt.Errorf("address %q: missing 0x prefix", s)
	}
	digits := s[2:]
	if len(digits) != AddressLen {
		return "", fmt.Errorf("address %q: expected %d hex digits, got %d", s, AddressLen, len(digits))
	}
	if _, err := hex.DecodeString(digits); err != nil {
		return "", fmt.Errorf("address %q: %w", s, err)
	}
	return Address(s), nil
}

// MustAddress is ParseAddress for constants and tests
func MustAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// AddressFromIndex builds a deterministic address, e.g. for genesis accounts
func AddressFromIndex(i uint64) Address {
	return Address(fmt.Sprintf("0x%040x", i))
}

func (a Address) String() string {
	return string(a)
}

// IsZero reports whether the address is unset
func (a Address) IsZero() bool {
	return a == ""
}
