package pool

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/devtooligan/singularity-v2/internal/curve"
	"github.com/devtooligan/singularity-v2/internal/model"
	"github.com/devtooligan/singularity-v2/internal/wad"
)

// Deposit pulls amount from caller and mints claims to to. The first
// deposit into a pool without liabilities mints one claim per unit and pays
// no fee; later deposits pay the curve's deposit fee to the protocol.
func (e *Engine) Deposit(ctx context.Context, caller common.Address, amount *uint256.Int, to common.Address) (minted *uint256.Int, err error) {
	if err = e.enter("deposit"); err != nil {
		return nil, err
	}
	defer e.exit()

	t := e.begin("deposit")
	defer func() {
		if err != nil {
			e.abort(ctx, t, caller, err)
		}
	}()
	st := t.state

	if st.Paused {
		return nil, ErrPaused
	}
	if isZero(amount) {
		return nil, ErrZeroAmount
	}
	if err = st.CheckDepositCap(amount); err != nil {
		return nil, err
	}

	fee := new(uint256.Int)
	if st.Liabilities.IsZero() {
		minted = new(uint256.Int).Set(amount)
	} else {
		fee, err = curve.FromState(st).DepositFee(amount)
		if err != nil {
			return nil, err
		}
		pps, ppsErr := st.PricePerShare(t.supply)
		if ppsErr != nil {
			return nil, ppsErr
		}
		minted, err = wad.DivWadDown(new(uint256.Int).Sub(amount, fee), pps)
		if err != nil {
			return nil, overflow("mint amount", err)
		}
	}
	if minted.IsZero() {
		return nil, ErrZeroAmount
	}

	net := new(uint256.Int).Sub(amount, fee)
	if err = st.AccrueProtocolFee(fee); err != nil {
		return nil, err
	}
	if err = st.Credit(net); err != nil {
		return nil, err
	}

	if err = e.transfers.Pull(ctx, st.Asset, caller, amount); err != nil {
		return nil, fmt.Errorf("pull deposit: %w", err)
	}
	t.onRollback(func(ctx context.Context) error {
		return e.transfers.Push(ctx, st.Asset, caller, amount)
	})
	if err = e.claims.Mint(to, minted); err != nil {
		return nil, fmt.Errorf("mint claims: %w", err)
	}
	t.supply.Add(t.supply, minted)

	ev := e.commit(ctx, t, model.EventDeposit, model.DepositEventData{
		Caller: caller.Hex(),
		Amount: wad.String(amount),
		Minted: wad.String(minted),
		To:     to.Hex(),
	})
	e.logger.Debug("deposit",
		zap.Uint64("sequence", ev.Sequence),
		zap.String("caller", caller.Hex()),
		zap.String("amount", wad.String(amount)),
		zap.String("fee", wad.String(fee)),
		zap.String("minted", wad.String(minted)),
	)
	return minted, nil
}

// Withdraw burns shares from caller and sends their value, less the curve's
// withdrawal fee, to to. Shares are burned before the amount is priced.
func (e *Engine) Withdraw(ctx context.Context, caller common.Address, shares *uint256.Int, to common.Address) (withdrawn *uint256.Int, err error) {
	if err = e.enter("withdraw"); err != nil {
		return nil, err
	}
	defer e.exit()

	t := e.begin("withdraw")
	defer func() {
		if err != nil {
			e.abort(ctx, t, caller, err)
		}
	}()
	st := t.state

	if st.Paused {
		return nil, ErrPaused
	}
	if isZero(shares) {
		return nil, ErrZeroAmount
	}

	pps, err := st.PricePerShare(t.supply)
	if err != nil {
		return nil, err
	}
	if err = e.claims.Burn(caller, shares); err != nil {
		return nil, fmt.Errorf("burn claims: %w", err)
	}
	t.onRollback(func(context.Context) error {
		return e.claims.Mint(caller, shares)
	})
	if shares.Gt(t.supply) {
		return nil, fmt.Errorf("burn claims: %s shares exceed committed supply", wad.String(shares))
	}
	t.supply.Sub(t.supply, shares)

	amount, err := wad.MulWadDown(shares, pps)
	if err != nil {
		return nil, overflow("withdraw amount", err)
	}
	fee, err := curve.FromState(st).WithdrawalFee(amount)
	if err != nil {
		return nil, err
	}
	if err = st.Debit(amount); err != nil {
		return nil, err
	}
	if err = st.AccrueProtocolFee(fee); err != nil {
		return nil, err
	}

	withdrawn = new(uint256.Int).Sub(amount, fee)
	if err = e.transfers.Push(ctx, st.Asset, to, withdrawn); err != nil {
		return nil, fmt.Errorf("push withdrawal: %w", err)
	}

	ev := e.commit(ctx, t, model.EventWithdraw, model.WithdrawEventData{
		Caller:    caller.Hex(),
		Shares:    wad.String(shares),
		Withdrawn: wad.String(withdrawn),
		To:        to.Hex(),
	})
	e.logger.Debug("withdraw",
		zap.Uint64("sequence", ev.Sequence),
		zap.String("caller", caller.Hex()),
		zap.String("shares", wad.String(shares)),
		zap.String("fee", wad.String(fee)),
		zap.String("withdrawn", wad.String(withdrawn)),
	)
	return withdrawn, nil
}
