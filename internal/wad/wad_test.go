package wad

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestMulWadRounding(t *testing.T) {
	x := uint256.NewInt(3)
	y := uint256.NewInt(5e17)

	down, err := MulWadDown(x, y)
	require.NoError(t, err)
	require.Equal(t, uint64(1), down.Uint64())

	up, err := MulWadUp(x, y)
	require.NoError(t, err)
	require.Equal(t, uint64(2), up.Uint64())

	exact, err := MulWadUp(uint256.NewInt(4), y)
	require.NoError(t, err)
	require.Equal(t, uint64(2), exact.Uint64())
}

func TestDivWadRounding(t *testing.T) {
	down, err := DivWadDown(One(), uint256.NewInt(3e18))
	require.NoError(t, err)
	require.Equal(t, uint64(333333333333333333), down.Uint64())

	up, err := DivWadUp(One(), uint256.NewInt(3e18))
	require.NoError(t, err)
	require.Equal(t, uint64(333333333333333334), up.Uint64())

	_, err = DivWadDown(One(), new(uint256.Int))
	require.True(t, errors.Is(err, ErrDivisionByZero))
}

func TestMulDivFullPrecision(t *testing.T) {
	// x*y exceeds 256 bits but the quotient fits.
	x := new(uint256.Int).Lsh(uint256.NewInt(1), 200)
	y := new(uint256.Int).Lsh(uint256.NewInt(1), 100)
	d := new(uint256.Int).Lsh(uint256.NewInt(1), 60)

	z, err := MulDivDown(x, y, d)
	require.NoError(t, err)
	require.Equal(t, new(uint256.Int).Lsh(uint256.NewInt(1), 240), z)

	_, err = MulWadDown(Max(), Max())
	require.ErrorIs(t, err, ErrOverflow)

	_, err = MulDivUp(Max(), uint256.NewInt(3), uint256.NewInt(2))
	require.ErrorIs(t, err, ErrOverflow)
}

func TestAddSub(t *testing.T) {
	_, err := Add(Max(), uint256.NewInt(1))
	require.ErrorIs(t, err, ErrOverflow)

	_, ok := Sub(uint256.NewInt(1), uint256.NewInt(2))
	require.False(t, ok)

	z, ok := Sub(uint256.NewInt(5), uint256.NewInt(2))
	require.True(t, ok)
	require.Equal(t, uint64(3), z.Uint64())

	require.True(t, SubOrZero(uint256.NewInt(1), uint256.NewInt(2)).IsZero())
	require.True(t, IsMax(Max()))
	require.False(t, IsMax(One()))
}

func TestScaling(t *testing.T) {
	usdc := uint256.NewInt(1_500_000) // 1.5 with 6 decimals
	w, err := ToWad(usdc, 6)
	require.NoError(t, err)
	require.Equal(t, uint64(15e17), w.Uint64())

	back, err := FromWad(w, 6)
	require.NoError(t, err)
	require.Equal(t, usdc, back)

	// 24 decimals truncate on the way down.
	big, _ := ParseInt("1000000000000000000000001")
	w, err = ToWad(big, 24)
	require.NoError(t, err)
	require.Equal(t, uint64(1e18), w.Uint64())

	same, err := ToWad(One(), 18)
	require.NoError(t, err)
	require.Equal(t, One(), same)
}

func TestParseAndFormat(t *testing.T) {
	fee, err := Parse("0.0004")
	require.NoError(t, err)
	require.Equal(t, uint64(4e14), fee.Uint64())

	units, err := ParseUnits("12.5", 6)
	require.NoError(t, err)
	require.Equal(t, uint64(12_500_000), units.Uint64())

	_, err = ParseUnits("0.0000001", 6)
	require.Error(t, err)

	_, err = Parse("-1")
	require.Error(t, err)

	_, err = Parse("abc")
	require.Error(t, err)

	require.Equal(t, "0.0004", Format(fee))
	require.Equal(t, "12.5", FormatUnits(units, 6))
	require.Equal(t, "0", String(nil))
	require.Equal(t, "400000000000000", String(fee))
}
