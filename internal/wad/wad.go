// Package wad implements 18-decimal fixed point arithmetic on uint256 values.
// Every helper names its rounding direction; none of them wrap on overflow.
package wad

import (
	"errors"

	"github.com/holiman/uint256"
)

// Decimals is the precision of a wad value.
const Decimals = 18

var (
	ErrOverflow       = errors.New("wad: arithmetic overflow")
	ErrDivisionByZero = errors.New("wad: division by zero")
)

var (
	one     = uint256.NewInt(1e18)
	maxUint = new(uint256.Int).SetAllOne()
	uintOne = uint256.NewInt(1)
)

// One returns a fresh 1e18.
func One() *uint256.Int { return new(uint256.Int).Set(one) }

// Max returns a fresh 2^256-1.
func Max() *uint256.Int { return new(uint256.Int).Set(maxUint) }

// IsMax reports whether x is the all-ones sentinel.
func IsMax(x *uint256.Int) bool { return x != nil && x.Eq(maxUint) }

// MulWadDown returns x*y/1e18 rounded toward zero.
func MulWadDown(x, y *uint256.Int) (*uint256.Int, error) { return MulDivDown(x, y, one) }

// MulWadUp returns x*y/1e18 rounded away from zero.
func MulWadUp(x, y *uint256.Int) (*uint256.Int, error) { return MulDivUp(x, y, one) }

// DivWadDown returns x*1e18/y rounded toward zero.
func DivWadDown(x, y *uint256.Int) (*uint256.Int, error) { return MulDivDown(x, one, y) }

// DivWadUp returns x*1e18/y rounded away from zero.
func DivWadUp(x, y *uint256.Int) (*uint256.Int, error) { return MulDivUp(x, one, y) }

// MulDivDown returns x*y/d with a 512-bit intermediate, rounded toward zero.
func MulDivDown(x, y, d *uint256.Int) (*uint256.Int, error) {
	if d.IsZero() {
		return nil, ErrDivisionByZero
	}
	z, overflow := new(uint256.Int).MulDivOverflow(x, y, d)
	if overflow {
		return nil, ErrOverflow
	}
	return z, nil
}

// MulDivUp returns x*y/d with a 512-bit intermediate, rounded away from zero.
func MulDivUp(x, y, d *uint256.Int) (*uint256.Int, error) {
	z, err := MulDivDown(x, y, d)
	if err != nil {
		return nil, err
	}
	if new(uint256.Int).MulMod(x, y, d).IsZero() {
		return z, nil
	}
	if _, overflow := z.AddOverflow(z, uintOne); overflow {
		return nil, ErrOverflow
	}
	return z, nil
}

// Add returns x+y or ErrOverflow.
func Add(x, y *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).AddOverflow(x, y)
	if overflow {
		return nil, ErrOverflow
	}
	return z, nil
}

// Sub returns x-y and false when y > x.
func Sub(x, y *uint256.Int) (*uint256.Int, bool) {
	z, underflow := new(uint256.Int).SubOverflow(x, y)
	if underflow {
		return nil, false
	}
	return z, true
}

// SubOrZero returns max(x-y, 0).
func SubOrZero(x, y *uint256.Int) *uint256.Int {
	if x.Cmp(y) <= 0 {
		return new(uint256.Int)
	}
	return new(uint256.Int).Sub(x, y)
}

// Pow10 returns 10^n.
func Pow10(n uint8) *uint256.Int {
	return new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(n)))
}

// ToWad scales an amount with the given decimals to 18 decimals. Scaling
// down from more than 18 decimals truncates.
func ToWad(amount *uint256.Int, decimals uint8) (*uint256.Int, error) {
	switch {
	case decimals == Decimals:
		return new(uint256.Int).Set(amount), nil
	case decimals < Decimals:
		z, overflow := new(uint256.Int).MulOverflow(amount, Pow10(Decimals-decimals))
		if overflow {
			return nil, ErrOverflow
		}
		return z, nil
	default:
		return new(uint256.Int).Div(amount, Pow10(decimals-Decimals)), nil
	}
}

// FromWad scales an 18-decimal value to the given decimals, truncating.
func FromWad(value *uint256.Int, decimals uint8) (*uint256.Int, error) {
	switch {
	case decimals == Decimals:
		return new(uint256.Int).Set(value), nil
	case decimals < Decimals:
		return new(uint256.Int).Div(value, Pow10(Decimals-decimals)), nil
	default:
		z, overflow := new(uint256.Int).MulOverflow(value, Pow10(decimals-Decimals))
		if overflow {
			return nil, ErrOverflow
		}
		return z, nil
	}
}
