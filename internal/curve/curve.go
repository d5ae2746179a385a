// Package curve prices deposits, withdrawals and swaps against the pool's
// collateralization ratio. Everything here is a pure function of a Snapshot.
package curve

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/devtooligan/singularity-v2/internal/ledger"
	"github.com/devtooligan/singularity-v2/internal/wad"
)

var ErrFeeExceedsAmount = errors.New("pool: fee exceeds amount")

var (
	// Below this ratio G is linear.
	linearCutoff    = uint256.NewInt(3e17)
	linearIntercept = uint256.NewInt(43e16)
	// Numerator of the high-ratio branch, 0.00003 in wad.
	tailNumerator = uint256.NewInt(3e13)
)

// Snapshot is the input to every curve computation.
type Snapshot struct {
	Assets       *uint256.Int
	Liabilities  *uint256.Int
	BaseFee      *uint256.Int
	IsStablecoin bool

	// ProtocolFeeShare is the protocol's percentage of trading fees.
	ProtocolFeeShare uint64
	// OracleSens is the quote age in seconds at which trading fees start doubling.
	OracleSens uint64
	// OracleUpdatedAt and Now drive TradingFeeRate for non-stablecoin pools.
	OracleUpdatedAt uint64
	Now             uint64
}

// FromState builds a snapshot of s without oracle information.
func FromState(s *ledger.PoolState) Snapshot {
	return Snapshot{
		Assets:       s.Assets,
		Liabilities:  s.Liabilities,
		BaseFee:      s.BaseFee,
		IsStablecoin: s.IsStablecoin,
	}
}

// G is the fee curve. It is linear below a ratio of 0.3 and falls off with
// the eighth power of the ratio above it. The two branches do not meet at 0.3.
func G(ratio *uint256.Int) *uint256.Int {
	if ratio.Lt(linearCutoff) {
		return new(uint256.Int).Sub(linearIntercept, ratio)
	}
	r8 := ratio
	for i := 0; i < 3; i++ {
		sq, err := wad.MulWadDown(r8, r8)
		if err != nil {
			// r^8 past 2^256 puts G far below one unit.
			return new(uint256.Int)
		}
		r8 = sq
	}
	g, err := wad.DivWadDown(tailNumerator, r8)
	if err != nil {
		return new(uint256.Int)
	}
	return g
}

// DepositFee prices adding amount to both sides of the pool.
func (s Snapshot) DepositFee(amount *uint256.Int) (*uint256.Int, error) {
	if amount.IsZero() || s.Liabilities.IsZero() {
		return new(uint256.Int), nil
	}
	assetsAfter, err := wad.Add(s.Assets, amount)
	if err != nil {
		return nil, ledger.ErrMathOverflow
	}
	liabilitiesAfter, err := wad.Add(s.Liabilities, amount)
	if err != nil {
		return nil, ledger.ErrMathOverflow
	}
	ratio, err := ledger.Ratio(s.Assets, s.Liabilities)
	if err != nil {
		return nil, err
	}
	ratioAfter, err := ledger.Ratio(assetsAfter, liabilitiesAfter)
	if err != nil {
		return nil, err
	}

	bothUp := ratio.Cmp(wad.One()) <= 0
	fee, err := curveDelta(liabilitiesAfter, G(ratioAfter), G(ratio), bothUp)
	if err != nil {
		return nil, err
	}
	if fee.Cmp(amount) >= 0 {
		return nil, ErrFeeExceedsAmount
	}
	return fee, nil
}

// WithdrawalFee prices removing amount from both sides of the pool.
func (s Snapshot) WithdrawalFee(amount *uint256.Int) (*uint256.Int, error) {
	if amount.IsZero() || s.Liabilities.IsZero() || amount.Cmp(s.Liabilities) >= 0 {
		return new(uint256.Int), nil
	}
	assetsAfter := wad.SubOrZero(s.Assets, amount)
	liabilitiesAfter := new(uint256.Int).Sub(s.Liabilities, amount)

	ratio, err := ledger.Ratio(s.Assets, s.Liabilities)
	if err != nil {
		return nil, err
	}
	ratioAfter, err := ledger.Ratio(assetsAfter, liabilitiesAfter)
	if err != nil {
		return nil, err
	}

	bothUp := ratio.Cmp(wad.One()) >= 0
	fee, err := curveDelta(liabilitiesAfter, G(ratioAfter), G(ratio), bothUp)
	if err != nil {
		return nil, err
	}
	if fee.Cmp(amount) >= 0 {
		return nil, ErrFeeExceedsAmount
	}
	return fee, nil
}

// curveDelta returns max(base*gAfter - base*gBefore, 0). The after term is
// always rounded up; the before term rounds up only when bothUp is set.
func curveDelta(base, gAfter, gBefore *uint256.Int, bothUp bool) (*uint256.Int, error) {
	feeA, err := wad.MulWadUp(base, gAfter)
	if err != nil {
		return nil, ledger.ErrMathOverflow
	}
	var feeB *uint256.Int
	if bothUp {
		feeB, err = wad.MulWadUp(base, gBefore)
	} else {
		feeB, err = wad.MulWadDown(base, gBefore)
	}
	if err != nil {
		return nil, ledger.ErrMathOverflow
	}
	return wad.SubOrZero(feeA, feeB), nil
}

// SlippageIn is the bonus credited for moving assets in at the current slope.
func (s Snapshot) SlippageIn(amount *uint256.Int) (*uint256.Int, error) {
	if amount.IsZero() || s.Liabilities.IsZero() {
		return new(uint256.Int), nil
	}
	assetsAfter, err := wad.Add(s.Assets, amount)
	if err != nil {
		return nil, ledger.ErrMathOverflow
	}
	ratio, err := ledger.Ratio(s.Assets, s.Liabilities)
	if err != nil {
		return nil, err
	}
	ratioAfter, err := ledger.Ratio(assetsAfter, s.Liabilities)
	if err != nil {
		return nil, err
	}
	if ratioAfter.Eq(ratio) {
		return new(uint256.Int), nil
	}
	g, gAfter := G(ratio), G(ratioAfter)
	if gAfter.Cmp(g) >= 0 {
		return new(uint256.Int), nil
	}
	slope, err := wad.DivWadDown(new(uint256.Int).Sub(g, gAfter), new(uint256.Int).Sub(ratioAfter, ratio))
	if err != nil {
		return nil, ledger.ErrMathOverflow
	}
	out, err := wad.MulWadDown(amount, slope)
	if err != nil {
		return nil, ledger.ErrMathOverflow
	}
	return out, nil
}

// SlippageOut is the penalty charged for moving assets out at the current slope.
func (s Snapshot) SlippageOut(amount *uint256.Int) (*uint256.Int, error) {
	if amount.IsZero() || s.Liabilities.IsZero() {
		return new(uint256.Int), nil
	}
	if amount.Gt(s.Assets) {
		return nil, ledger.ErrAssetsExceeded
	}
	assetsAfter := new(uint256.Int).Sub(s.Assets, amount)
	ratio, err := ledger.Ratio(s.Assets, s.Liabilities)
	if err != nil {
		return nil, err
	}
	ratioAfter, err := ledger.Ratio(assetsAfter, s.Liabilities)
	if err != nil {
		return nil, err
	}
	if ratioAfter.Eq(ratio) {
		return new(uint256.Int), nil
	}
	g, gAfter := G(ratio), G(ratioAfter)
	if gAfter.Cmp(g) <= 0 {
		return new(uint256.Int), nil
	}
	slope, err := wad.DivWadUp(new(uint256.Int).Sub(gAfter, g), new(uint256.Int).Sub(ratio, ratioAfter))
	if err != nil {
		return nil, ledger.ErrMathOverflow
	}
	out, err := wad.MulWadUp(amount, slope)
	if err != nil {
		return nil, ledger.ErrMathOverflow
	}
	return out, nil
}

// TradingFeeRate is the fee rate in wad. A quote older than 110% of the
// sensitivity window yields the all-ones stale sentinel.
func (s Snapshot) TradingFeeRate() *uint256.Int {
	if s.IsStablecoin {
		return new(uint256.Int).Set(s.BaseFee)
	}
	var elapsed uint64
	if s.Now > s.OracleUpdatedAt {
		elapsed = s.Now - s.OracleUpdatedAt
	}
	if elapsed < s.OracleSens {
		scaled := new(uint256.Int).Mul(s.BaseFee, uint256.NewInt(elapsed))
		scaled.Div(scaled, uint256.NewInt(s.OracleSens))
		return scaled.Add(scaled, s.BaseFee)
	}
	limit := new(uint256.Int).Mul(uint256.NewInt(s.OracleSens), uint256.NewInt(11))
	age := new(uint256.Int).Mul(uint256.NewInt(elapsed), uint256.NewInt(10))
	if age.Cmp(limit) <= 0 {
		return new(uint256.Int).Lsh(s.BaseFee, 1)
	}
	return wad.Max()
}

// Fees splits a trading fee between the protocol and liquidity providers.
type Fees struct {
	Total    *uint256.Int
	Protocol *uint256.Int
	LP       *uint256.Int
}

// Stale reports whether the fees carry the stale-oracle sentinel.
func (f Fees) Stale() bool { return wad.IsMax(f.Total) }

// TradingFees charges the current rate on amount.
func (s Snapshot) TradingFees(amount *uint256.Int) (Fees, error) {
	rate := s.TradingFeeRate()
	if wad.IsMax(rate) {
		return Fees{Total: wad.Max(), Protocol: wad.Max(), LP: wad.Max()}, nil
	}
	total, err := wad.MulWadUp(amount, rate)
	if err != nil {
		return Fees{}, fmt.Errorf("%w: trading fee", ledger.ErrMathOverflow)
	}
	protocol, err := wad.MulDivDown(total, uint256.NewInt(s.ProtocolFeeShare), uint256.NewInt(100))
	if err != nil {
		return Fees{}, fmt.Errorf("%w: protocol fee", ledger.ErrMathOverflow)
	}
	if protocol.Gt(total) {
		protocol.Set(total)
	}
	return Fees{
		Total:    total,
		Protocol: protocol,
		LP:       new(uint256.Int).Sub(total, protocol),
	}, nil
}
