package pool

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/devtooligan/singularity-v2/internal/ledger"
	"github.com/devtooligan/singularity-v2/internal/model"
	"github.com/devtooligan/singularity-v2/internal/wad"
)

// Administrative operations are reserved for the factory and remain
// available while the pool is paused.

// CollectFees sends the accumulated protocol fees to to. Nothing moves and
// no event is emitted when there is nothing to collect.
func (e *Engine) CollectFees(ctx context.Context, caller, to common.Address) (collected *uint256.Int, err error) {
	if err = e.enter("collect_fees"); err != nil {
		return nil, err
	}
	defer e.exit()

	t := e.begin("collect_fees")
	defer func() {
		if err != nil {
			e.abort(ctx, t, caller, err)
		}
	}()
	st := t.state

	if err = e.requireFactory(caller); err != nil {
		return nil, err
	}
	collected = st.TakeProtocolFees()
	if collected.IsZero() {
		return collected, nil
	}
	if err = e.transfers.Push(ctx, st.Asset, to, collected); err != nil {
		return nil, fmt.Errorf("push protocol fees: %w", err)
	}

	ev := e.commit(ctx, t, model.EventCollectFees, model.CollectFeesEventData{Amount: wad.String(collected)})
	e.logger.Info("protocol fees collected",
		zap.Uint64("sequence", ev.Sequence),
		zap.String("to", to.Hex()),
		zap.String("amount", wad.String(collected)),
	)
	return collected, nil
}

// SetDepositCap replaces the cap on total liabilities.
func (e *Engine) SetDepositCap(ctx context.Context, caller common.Address, depositCap *uint256.Int) error {
	if depositCap == nil {
		depositCap = wad.Max()
	}
	return e.setParam(ctx, caller, "set_deposit_cap", func(st *ledger.PoolState) (string, interface{}, error) {
		old := st.DepositCap
		st.DepositCap = new(uint256.Int).Set(depositCap)
		return model.EventSetDepositCap, model.SetValueEventData{Old: wad.String(old), New: wad.String(depositCap)}, nil
	})
}

// SetBaseFee replaces the base trading fee rate. Rates of 1e18 or more are rejected.
func (e *Engine) SetBaseFee(ctx context.Context, caller common.Address, baseFee *uint256.Int) error {
	return e.setParam(ctx, caller, "set_base_fee", func(st *ledger.PoolState) (string, interface{}, error) {
		if err := ledger.CheckBaseFee(baseFee); err != nil {
			return "", nil, err
		}
		old := st.BaseFee
		st.BaseFee = new(uint256.Int).Set(baseFee)
		return model.EventSetBaseFee, model.SetValueEventData{Old: wad.String(old), New: wad.String(baseFee)}, nil
	})
}

// SetPaused halts or resumes deposits, withdrawals and swaps.
func (e *Engine) SetPaused(ctx context.Context, caller common.Address, paused bool) error {
	return e.setParam(ctx, caller, "set_paused", func(st *ledger.PoolState) (string, interface{}, error) {
		old := st.Paused
		st.Paused = paused
		return model.EventSetPaused, model.SetPausedEventData{Old: old, New: paused}, nil
	})
}

func (e *Engine) setParam(ctx context.Context, caller common.Address, op string, apply func(*ledger.PoolState) (string, interface{}, error)) (err error) {
	if err = e.enter(op); err != nil {
		return err
	}
	defer e.exit()

	t := e.begin(op)
	defer func() {
		if err != nil {
			e.abort(ctx, t, caller, err)
		}
	}()

	if err = e.requireFactory(caller); err != nil {
		return err
	}
	name, decoded, err := apply(t.state)
	if err != nil {
		return err
	}

	ev := e.commit(ctx, t, name, decoded)
	fields := []zap.Field{zap.Uint64("sequence", ev.Sequence), zap.String("event", name)}
	switch d := decoded.(type) {
	case model.SetValueEventData:
		fields = append(fields, zap.String("old", d.Old), zap.String("new", d.New))
	case model.SetPausedEventData:
		fields = append(fields, zap.String("old", strconv.FormatBool(d.Old)), zap.String("new", strconv.FormatBool(d.New)))
	}
	e.logger.Info("pool parameter updated", fields...)
	return nil
}
