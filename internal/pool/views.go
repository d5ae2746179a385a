package pool

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/devtooligan/singularity-v2/internal/curve"
	"github.com/devtooligan/singularity-v2/internal/ledger"
	"github.com/devtooligan/singularity-v2/internal/model"
	"github.com/devtooligan/singularity-v2/internal/wad"
)

// Views read committed state only.

func (e *Engine) committed() *ledger.PoolState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.Clone()
}

// committedWithSupply reads the ledger and the claim supply as one state.
func (e *Engine) committedWithSupply() (*ledger.PoolState, *uint256.Int, uint64) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.Clone(), new(uint256.Int).Set(e.supply), e.seq
}

// TotalSupply is the committed claim supply.
func (e *Engine) TotalSupply() *uint256.Int {
	_, supply, _ := e.committedWithSupply()
	return supply
}

// State returns a copy of the committed ledger.
func (e *Engine) State() *ledger.PoolState {
	return e.committed()
}

// Asset is the pooled token.
func (e *Engine) Asset() common.Address {
	return e.committed().Asset
}

// Sequence is the number of events emitted so far.
func (e *Engine) Sequence() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.seq
}

func (e *Engine) PricePerShare() (*uint256.Int, error) {
	st, supply, _ := e.committedWithSupply()
	return st.PricePerShare(supply)
}

func (e *Engine) CollateralizationRatio() (*uint256.Int, error) {
	return e.committed().CollateralizationRatio()
}

func (e *Engine) AssetsAndLiabilities() (assets, liabilities *uint256.Int) {
	st := e.committed()
	return st.Assets, st.Liabilities
}

func (e *Engine) DepositFee(amount *uint256.Int) (*uint256.Int, error) {
	return curve.FromState(e.committed()).DepositFee(amount)
}

func (e *Engine) WithdrawalFee(amount *uint256.Int) (*uint256.Int, error) {
	return curve.FromState(e.committed()).WithdrawalFee(amount)
}

func (e *Engine) SlippageIn(amount *uint256.Int) (*uint256.Int, error) {
	return curve.FromState(e.committed()).SlippageIn(amount)
}

func (e *Engine) SlippageOut(amount *uint256.Int) (*uint256.Int, error) {
	return curve.FromState(e.committed()).SlippageOut(amount)
}

// TradingFeeRate returns the current rate, or the all-ones sentinel when
// the oracle quote is stale.
func (e *Engine) TradingFeeRate(ctx context.Context) (*uint256.Int, error) {
	snap, err := e.viewTradeSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.TradingFeeRate(), nil
}

// TradingFees splits the fee on amount; all three parts carry the sentinel
// when the quote is stale.
func (e *Engine) TradingFees(ctx context.Context, amount *uint256.Int) (curve.Fees, error) {
	snap, err := e.viewTradeSnapshot(ctx)
	if err != nil {
		return curve.Fees{}, err
	}
	return snap.TradingFees(amount)
}

// Stablecoin pools price trades without consulting the oracle.
func (e *Engine) viewTradeSnapshot(ctx context.Context) (curve.Snapshot, error) {
	st := e.committed()
	if st.IsStablecoin {
		snap := curve.FromState(st)
		snap.ProtocolFeeShare = e.registry.Params().ProtocolFeeShare
		return snap, nil
	}
	snap, _, err := e.tradeSnapshot(ctx, st)
	return snap, err
}

// Snapshot renders the committed ledger for storage and reporting.
func (e *Engine) Snapshot(ctx context.Context) (model.PoolSnapshot, error) {
	st, supply, seq := e.committedWithSupply()
	pps, err := st.PricePerShare(supply)
	if err != nil {
		return model.PoolSnapshot{}, err
	}
	ratio, err := st.CollateralizationRatio()
	if err != nil {
		return model.PoolSnapshot{}, err
	}
	return model.PoolSnapshot{
		Pool:                   e.address.Hex(),
		Asset:                  st.Asset.Hex(),
		Decimals:               st.Decimals,
		IsStablecoin:           st.IsStablecoin,
		Paused:                 st.Paused,
		DepositCap:             wad.String(st.DepositCap),
		Assets:                 wad.String(st.Assets),
		Liabilities:            wad.String(st.Liabilities),
		BaseFee:                wad.String(st.BaseFee),
		ProtocolFees:           wad.String(st.ProtocolFees),
		TotalSupply:            wad.String(supply),
		PricePerShare:          wad.String(pps),
		CollateralizationRatio: wad.String(ratio),
		Sequence:               seq,
		Timestamp:              e.timestamp(ctx),
	}, nil
}
