package curve

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/devtooligan/singularity-v2/internal/ledger"
	"github.com/devtooligan/singularity-v2/internal/wad"
)

const unit = 1_000_000 // six decimal asset

func snap(assets, liabilities uint64) Snapshot {
	return Snapshot{
		Assets:      uint256.NewInt(assets),
		Liabilities: uint256.NewInt(liabilities),
		BaseFee:     uint256.NewInt(4e14),
	}
}

func TestGLinearBranch(t *testing.T) {
	require.Equal(t, uint64(43e16), G(new(uint256.Int)).Uint64())
	require.Equal(t, uint64(13e16+1), G(uint256.NewInt(3e17-1)).Uint64())
}

func TestGBoundaryIsPinned(t *testing.T) {
	// Just below 0.3 the linear branch applies, at 0.3 the power branch
	// takes over and G jumps upward.
	below := G(uint256.NewInt(3e17 - 1))
	at := G(uint256.NewInt(3e17))
	require.Equal(t, uint64(457247370827617741), at.Uint64())
	require.True(t, at.Gt(below))
}

func TestGDecreasingAboveCutoff(t *testing.T) {
	require.Equal(t, uint64(3e13), G(wad.One()).Uint64())
	require.Equal(t, uint64(117187500000), G(uint256.NewInt(2e18)).Uint64())

	points := []uint64{3e17, 4e17, 5e17, 8e17, 1e18, 12e17, 2e18, 5e18}
	prev := G(uint256.NewInt(points[0]))
	for _, p := range points[1:] {
		g := G(uint256.NewInt(p))
		require.Truef(t, g.Lt(prev), "G not decreasing at %d", p)
		prev = g
	}
}

func TestGHugeRatioIsZero(t *testing.T) {
	huge := new(uint256.Int).Mul(wad.One(), uint256.NewInt(1e12))
	require.True(t, G(huge).IsZero())
}

func TestDepositFee(t *testing.T) {
	fee, err := snap(0, 0).DepositFee(uint256.NewInt(1000 * unit))
	require.NoError(t, err)
	require.True(t, fee.IsZero())

	fee, err = snap(1000*unit, 1000*unit).DepositFee(uint256.NewInt(1000 * unit))
	require.NoError(t, err)
	require.True(t, fee.IsZero())

	// Deposits into an undercollateralized pool improve the ratio.
	fee, err = snap(500*unit, 1000*unit).DepositFee(uint256.NewInt(100 * unit))
	require.NoError(t, err)
	require.True(t, fee.IsZero())

	fee, err = snap(2000*unit, 1000*unit).DepositFee(uint256.NewInt(1000 * unit))
	require.NoError(t, err)
	require.Equal(t, uint64(2108), fee.Uint64())

	fee, err = snap(2000*unit, 1000*unit).DepositFee(uint256.NewInt(10))
	require.NoError(t, err)
	require.Equal(t, uint64(1), fee.Uint64())

	_, err = snap(2000*unit, 1000*unit).DepositFee(uint256.NewInt(1))
	require.ErrorIs(t, err, ErrFeeExceedsAmount)
}

func TestWithdrawalFee(t *testing.T) {
	fee, err := snap(500*unit, 1000*unit).WithdrawalFee(uint256.NewInt(100 * unit))
	require.NoError(t, err)
	require.Equal(t, uint64(10822703), fee.Uint64())
	require.True(t, fee.Lt(uint256.NewInt(100*unit)))

	fee, err = snap(2000*unit, 1000*unit).WithdrawalFee(uint256.NewInt(100 * unit))
	require.NoError(t, err)
	require.True(t, fee.IsZero())

	for _, amount := range []uint64{1000 * unit, 1500 * unit} {
		fee, err = snap(500*unit, 1000*unit).WithdrawalFee(uint256.NewInt(amount))
		require.NoError(t, err)
		require.True(t, fee.IsZero(), "amount %d", amount)
	}

	_, err = snap(500*unit, 1000*unit).WithdrawalFee(uint256.NewInt(1))
	require.ErrorIs(t, err, ErrFeeExceedsAmount)
}

func TestSlippageIn(t *testing.T) {
	// Linear branch: slope is exactly one.
	s, err := snap(100*unit, 1000*unit).SlippageIn(uint256.NewInt(100 * unit))
	require.NoError(t, err)
	require.Equal(t, uint64(100*unit), s.Uint64())

	s, err = snap(1000*unit, 1000*unit).SlippageIn(uint256.NewInt(100 * unit))
	require.NoError(t, err)
	require.Equal(t, uint64(16004), s.Uint64())

	// Crossing 0.3 moves G up, which saturates to zero.
	s, err = snap(290*unit, 1000*unit).SlippageIn(uint256.NewInt(20 * unit))
	require.NoError(t, err)
	require.True(t, s.IsZero())

	s, err = snap(0, 0).SlippageIn(uint256.NewInt(unit))
	require.NoError(t, err)
	require.True(t, s.IsZero())
}

func TestSlippageOut(t *testing.T) {
	s, err := snap(200*unit, 1000*unit).SlippageOut(uint256.NewInt(100 * unit))
	require.NoError(t, err)
	require.Equal(t, uint64(100*unit), s.Uint64())

	s, err = snap(1000*unit, 1000*unit).SlippageOut(uint256.NewInt(100 * unit))
	require.NoError(t, err)
	require.Equal(t, uint64(39692), s.Uint64())

	_, err = snap(10*unit, 1000*unit).SlippageOut(uint256.NewInt(11 * unit))
	require.ErrorIs(t, err, ledger.ErrAssetsExceeded)
}

func TestTradingFeeRate(t *testing.T) {
	base := uint64(4e14)
	s := snap(0, 0)
	s.OracleSens = 3600
	s.OracleUpdatedAt = 1_000_000

	cases := []struct {
		elapsed uint64
		want    *uint256.Int
	}{
		{0, uint256.NewInt(base)},
		{1800, uint256.NewInt(6e14)},
		{3599, uint256.NewInt(base + base*3599/3600)},
		{3600, uint256.NewInt(2 * base)},
		{3960, uint256.NewInt(2 * base)},
		{3961, wad.Max()},
	}
	for _, tc := range cases {
		s.Now = s.OracleUpdatedAt + tc.elapsed
		require.Equal(t, tc.want, s.TradingFeeRate(), "elapsed %d", tc.elapsed)
	}

	// A quote from the future counts as fresh.
	s.Now = s.OracleUpdatedAt - 10
	require.Equal(t, uint256.NewInt(base), s.TradingFeeRate())

	s.IsStablecoin = true
	s.Now = s.OracleUpdatedAt + 1_000_000
	require.Equal(t, uint256.NewInt(base), s.TradingFeeRate())
}

func TestTradingFees(t *testing.T) {
	s := snap(0, 0)
	s.IsStablecoin = true
	s.ProtocolFeeShare = 10

	fees, err := s.TradingFees(uint256.NewInt(1000 * unit))
	require.NoError(t, err)
	require.False(t, fees.Stale())
	require.Equal(t, uint64(400000), fees.Total.Uint64())
	require.Equal(t, uint64(40000), fees.Protocol.Uint64())
	require.Equal(t, uint64(360000), fees.LP.Uint64())

	// Rounds up in the pool's favor.
	fees, err = s.TradingFees(uint256.NewInt(1))
	require.NoError(t, err)
	require.Equal(t, uint64(1), fees.Total.Uint64())
	require.True(t, fees.Protocol.IsZero())

	s.IsStablecoin = false
	s.OracleSens = 60
	s.Now = 1000
	fees, err = s.TradingFees(uint256.NewInt(1000 * unit))
	require.NoError(t, err)
	require.True(t, fees.Stale())
	require.True(t, wad.IsMax(fees.Protocol))
	require.True(t, wad.IsMax(fees.LP))
}
