package wad

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// Parse reads a human decimal string ("0.0004", "1.5") into a wad.
func Parse(value string) (*uint256.Int, error) {
	return ParseUnits(value, Decimals)
}

// ParseUnits reads a human decimal string into an integer with the given
// number of decimals. Digits beyond that precision are rejected.
func ParseUnits(value string, decimals uint8) (*uint256.Int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, fmt.Errorf("empty decimal")
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return nil, fmt.Errorf("parse decimal %q: %w", value, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("negative decimal %q", value)
	}
	scaled := d.Shift(int32(decimals))
	if !scaled.IsInteger() {
		return nil, fmt.Errorf("decimal %q exceeds %d decimals", value, decimals)
	}
	out, overflow := uint256.FromBig(scaled.BigInt())
	if overflow {
		return nil, ErrOverflow
	}
	return out, nil
}

// ParseInt reads a base-10 integer string.
func ParseInt(value string) (*uint256.Int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, fmt.Errorf("empty integer")
	}
	out, err := uint256.FromDecimal(value)
	if err != nil {
		return nil, fmt.Errorf("parse integer %q: %w", value, err)
	}
	return out, nil
}

// Decimal converts x to a decimal with the given number of decimals.
func Decimal(x *uint256.Int, decimals uint8) decimal.Decimal {
	if x == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(x.ToBig(), -int32(decimals))
}

// Format renders a wad as a human decimal string.
func Format(x *uint256.Int) string {
	return FormatUnits(x, Decimals)
}

// FormatUnits renders x as a human decimal string with the given decimals.
func FormatUnits(x *uint256.Int, decimals uint8) string {
	return Decimal(x, decimals).String()
}

// String renders x as a base-10 integer, "0" for nil.
func String(x *uint256.Int) string {
	if x == nil {
		return "0"
	}
	return x.ToBig().String()
}
