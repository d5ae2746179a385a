package replay

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/devtooligan/singularity-v2/internal/model"
	"github.com/devtooligan/singularity-v2/internal/wad"
)

func (r *Runner) apply(ctx context.Context, op model.Operation) error {
	asset := r.cfg.Ledger.Asset

	switch op.Op {
	case model.OpAdvance:
		now := r.clock.Advance(op.Seconds)
		r.logger.Debug("clock advanced", zap.Uint64("now", now))
		return nil
	case model.OpSetPrice:
		ts := op.UpdatedAt
		if ts == 0 {
			now, err := r.clock.Now(ctx)
			if err != nil {
				return fmt.Errorf("read clock: %w", err)
			}
			ts = now
		}
		return r.feed.SetDecimal(asset, op.Price, ts)
	}

	caller, err := parseAddress("caller", op.Caller)
	if err != nil {
		return err
	}
	to := caller
	if op.To != "" {
		if to, err = parseAddress("to", op.To); err != nil {
			return err
		}
	}

	switch op.Op {
	case model.OpFund:
		amount, err := requiredInt("amount", op.Amount)
		if err != nil {
			return err
		}
		return r.vault.Fund(asset, caller, amount)
	case model.OpDeposit:
		amount, err := requiredInt("amount", op.Amount)
		if err != nil {
			return err
		}
		_, err = r.engine.Deposit(ctx, caller, amount, to)
		return err
	case model.OpWithdraw:
		shares, err := requiredInt("amount", op.Amount)
		if err != nil {
			return err
		}
		_, err = r.engine.Withdraw(ctx, caller, shares, to)
		return err
	case model.OpSwapIn:
		amount, err := requiredInt("amount", op.Amount)
		if err != nil {
			return err
		}
		_, err = r.engine.SwapIn(ctx, caller, amount)
		return err
	case model.OpSwapOut:
		value, err := requiredInt("value", op.Value)
		if err != nil {
			return err
		}
		_, err = r.engine.SwapOut(ctx, caller, value, to)
		return err
	case model.OpCollectFees:
		_, err := r.engine.CollectFees(ctx, caller, to)
		return err
	case model.OpSetDepositCap:
		var depositCap *uint256.Int
		if op.Amount != "" {
			if depositCap, err = wad.ParseInt(op.Amount); err != nil {
				return err
			}
		}
		return r.engine.SetDepositCap(ctx, caller, depositCap)
	case model.OpSetBaseFee:
		fee, err := wad.Parse(op.Fee)
		if err != nil {
			return fmt.Errorf("fee: %w", err)
		}
		return r.engine.SetBaseFee(ctx, caller, fee)
	case model.OpSetPaused:
		if op.Paused == nil {
			return fmt.Errorf("paused is required")
		}
		return r.engine.SetPaused(ctx, caller, *op.Paused)
	default:
		return fmt.Errorf("unknown operation %q", op.Op)
	}
}

func parseAddress(field, value string) (common.Address, error) {
	value = strings.TrimSpace(value)
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("%s: invalid address %q", field, value)
	}
	return common.HexToAddress(value), nil
}

func requiredInt(field, value string) (*uint256.Int, error) {
	if value == "" {
		return nil, fmt.Errorf("%s is required", field)
	}
	v, err := wad.ParseInt(value)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return v, nil
}
