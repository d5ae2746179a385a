package pool

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/devtooligan/singularity-v2/internal/curve"
	"github.com/devtooligan/singularity-v2/internal/ledger"
	"github.com/devtooligan/singularity-v2/internal/model"
	"github.com/devtooligan/singularity-v2/internal/oracle"
	"github.com/devtooligan/singularity-v2/internal/wad"
)

// SwapIn takes amountIn of the asset from the router and returns the value
// it is worth after slippage and trading fees.
func (e *Engine) SwapIn(ctx context.Context, caller common.Address, amountIn *uint256.Int) (valueOut *uint256.Int, err error) {
	if err = e.enter("swap_in"); err != nil {
		return nil, err
	}
	defer e.exit()

	t := e.begin("swap_in")
	defer func() {
		if err != nil {
			e.abort(ctx, t, caller, err)
		}
	}()
	st := t.state

	if st.Paused {
		return nil, ErrPaused
	}
	if err = e.requireRouter(caller); err != nil {
		return nil, err
	}
	if isZero(amountIn) {
		return nil, ErrZeroAmount
	}

	snap, quote, err := e.tradeSnapshot(ctx, st)
	if err != nil {
		return nil, err
	}
	slippage, err := snap.SlippageIn(amountIn)
	if err != nil {
		return nil, err
	}
	gross, err := wad.Add(amountIn, slippage)
	if err != nil {
		return nil, overflow("swap in amount", err)
	}
	fees, err := chargeTradingFees(snap, gross)
	if err != nil {
		return nil, err
	}

	if err = st.AddAssets(amountIn); err != nil {
		return nil, err
	}
	if err = st.SkimProtocolFee(fees.Protocol); err != nil {
		return nil, err
	}
	if err = st.AddLiabilities(fees.LP); err != nil {
		return nil, err
	}
	valueOut, err = AmountToValue(new(uint256.Int).Sub(gross, fees.Total), st.Decimals, quote.Price)
	if err != nil {
		return nil, err
	}

	if err = e.transfers.Pull(ctx, st.Asset, caller, amountIn); err != nil {
		return nil, fmt.Errorf("pull swap input: %w", err)
	}

	ev := e.commit(ctx, t, model.EventSwapIn, model.SwapInEventData{
		Caller:   caller.Hex(),
		AmountIn: wad.String(amountIn),
		ValueOut: wad.String(valueOut),
	})
	e.logger.Debug("swap in",
		zap.Uint64("sequence", ev.Sequence),
		zap.String("amount_in", wad.String(amountIn)),
		zap.String("slippage", wad.String(slippage)),
		zap.String("fee", wad.String(fees.Total)),
		zap.String("value_out", wad.String(valueOut)),
	)
	return valueOut, nil
}

// SwapOut converts valueIn to an amount of the asset and sends it to to,
// less slippage and trading fees.
func (e *Engine) SwapOut(ctx context.Context, caller common.Address, valueIn *uint256.Int, to common.Address) (amountOut *uint256.Int, err error) {
	if err = e.enter("swap_out"); err != nil {
		return nil, err
	}
	defer e.exit()

	t := e.begin("swap_out")
	defer func() {
		if err != nil {
			e.abort(ctx, t, caller, err)
		}
	}()
	st := t.state

	if st.Paused {
		return nil, ErrPaused
	}
	if err = e.requireRouter(caller); err != nil {
		return nil, err
	}
	if isZero(valueIn) {
		return nil, ErrZeroAmount
	}

	snap, quote, err := e.tradeSnapshot(ctx, st)
	if err != nil {
		return nil, err
	}
	amount, err := ValueToAmount(valueIn, st.Decimals, quote.Price)
	if err != nil {
		return nil, err
	}
	if amount.IsZero() {
		return nil, ErrZeroAmount
	}
	slippage, err := snap.SlippageOut(amount)
	if err != nil {
		return nil, err
	}
	if slippage.Cmp(amount) >= 0 {
		return nil, ErrSlippageExceedsAmount
	}
	post := new(uint256.Int).Sub(amount, slippage)
	fees, err := chargeTradingFees(snap, post)
	if err != nil {
		return nil, err
	}
	amountOut = new(uint256.Int).Sub(post, fees.Total)

	if err = st.AccrueProtocolFee(fees.Protocol); err != nil {
		return nil, err
	}
	if err = st.AddLiabilities(fees.LP); err != nil {
		return nil, err
	}
	if err = st.RemoveAssets(new(uint256.Int).Add(fees.Protocol, amountOut)); err != nil {
		return nil, err
	}

	if err = e.transfers.Push(ctx, st.Asset, to, amountOut); err != nil {
		return nil, fmt.Errorf("push swap output: %w", err)
	}

	ev := e.commit(ctx, t, model.EventSwapOut, model.SwapOutEventData{
		Caller:    caller.Hex(),
		ValueIn:   wad.String(valueIn),
		AmountOut: wad.String(amountOut),
		To:        to.Hex(),
	})
	e.logger.Debug("swap out",
		zap.Uint64("sequence", ev.Sequence),
		zap.String("value_in", wad.String(valueIn)),
		zap.String("slippage", wad.String(slippage)),
		zap.String("fee", wad.String(fees.Total)),
		zap.String("amount_out", wad.String(amountOut)),
	)
	return amountOut, nil
}

// tradeSnapshot reads the oracle and clock on top of the ledger state.
func (e *Engine) tradeSnapshot(ctx context.Context, st *ledger.PoolState) (curve.Snapshot, oracle.Quote, error) {
	quote, err := e.oracle.Quote(ctx, st.Asset)
	if err != nil {
		return curve.Snapshot{}, oracle.Quote{}, err
	}
	now, err := e.clock.Now(ctx)
	if err != nil {
		return curve.Snapshot{}, oracle.Quote{}, fmt.Errorf("read clock: %w", err)
	}
	params := e.registry.Params()
	snap := curve.FromState(st)
	snap.ProtocolFeeShare = params.ProtocolFeeShare
	snap.OracleSens = params.OracleSens
	snap.OracleUpdatedAt = quote.UpdatedAt
	snap.Now = now
	return snap, quote, nil
}

// chargeTradingFees fails on a stale quote or a fee that eats the amount.
func chargeTradingFees(snap curve.Snapshot, amount *uint256.Int) (curve.Fees, error) {
	fees, err := snap.TradingFees(amount)
	if err != nil {
		return curve.Fees{}, err
	}
	if fees.Stale() {
		return curve.Fees{}, ErrStaleOracle
	}
	if fees.Total.Cmp(amount) >= 0 {
		return curve.Fees{}, ErrFeeExceedsAmount
	}
	return fees, nil
}

// AmountToValue prices amount (in asset units) at an 18-decimal price.
func AmountToValue(amount *uint256.Int, decimals uint8, price *uint256.Int) (*uint256.Int, error) {
	scaled, err := wad.ToWad(amount, decimals)
	if err != nil {
		return nil, overflow("scale amount", err)
	}
	value, err := wad.MulWadDown(scaled, price)
	if err != nil {
		return nil, overflow("amount to value", err)
	}
	return value, nil
}

// ValueToAmount converts an 18-decimal value to asset units at price.
func ValueToAmount(value *uint256.Int, decimals uint8, price *uint256.Int) (*uint256.Int, error) {
	if isZero(price) {
		return nil, ErrInvalidOraclePrice
	}
	scaled, err := wad.DivWadDown(value, price)
	if err != nil {
		return nil, overflow("value to amount", err)
	}
	amount, err := wad.FromWad(scaled, decimals)
	if err != nil {
		return nil, overflow("scale value", err)
	}
	return amount, nil
}
