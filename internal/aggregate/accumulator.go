package aggregate

import (
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/devtooligan/singularity-v2/internal/model"
)

// Accumulator holds aggregate values for a pool window. Amounts are in
// asset units, values in wad.
type Accumulator struct {
	ChainID         uint64
	PoolAddress     string
	WindowStart     uint64
	WindowEnd       uint64
	SwapInCount     uint64
	SwapOutCount    uint64
	AmountIn        *big.Int
	AmountOut       *big.Int
	ValueIn         *big.Int
	ValueOut        *big.Int
	DepositCount    uint64
	WithdrawCount   uint64
	Deposited       *big.Int
	Withdrawn       *big.Int
	FeesCollected   *big.Int
	AdminEventCount uint64
	LastTS          uint64
	LastSequence    uint64
}

func NewAccumulator(record model.PoolEventRecord, windowStart, windowEnd uint64) *Accumulator {
	return &Accumulator{
		ChainID:       record.ChainID,
		PoolAddress:   record.Pool,
		WindowStart:   windowStart,
		WindowEnd:     windowEnd,
		AmountIn:      big.NewInt(0),
		AmountOut:     big.NewInt(0),
		ValueIn:       big.NewInt(0),
		ValueOut:      big.NewInt(0),
		Deposited:     big.NewInt(0),
		Withdrawn:     big.NewInt(0),
		FeesCollected: big.NewInt(0),
		LastTS:        record.Timestamp,
		LastSequence:  record.Sequence,
	}
}

func (a *Accumulator) AddEvent(record model.PoolEventRecord) error {
	if record.Timestamp >= a.LastTS {
		a.LastTS = record.Timestamp
	}
	if record.Sequence > a.LastSequence {
		a.LastSequence = record.Sequence
	}

	switch record.EventName {
	case model.EventSwapIn:
		var ev model.SwapInEventData
		if err := json.Unmarshal(record.Decoded, &ev); err != nil {
			return fmt.Errorf("decode swap in: %w", err)
		}
		if err := addInt(a.AmountIn, ev.AmountIn); err != nil {
			return err
		}
		if err := addInt(a.ValueOut, ev.ValueOut); err != nil {
			return err
		}
		a.SwapInCount++
	case model.EventSwapOut:
		var ev model.SwapOutEventData
		if err := json.Unmarshal(record.Decoded, &ev); err != nil {
			return fmt.Errorf("decode swap out: %w", err)
		}
		if err := addInt(a.ValueIn, ev.ValueIn); err != nil {
			return err
		}
		if err := addInt(a.AmountOut, ev.AmountOut); err != nil {
			return err
		}
		a.SwapOutCount++
	case model.EventDeposit:
		var ev model.DepositEventData
		if err := json.Unmarshal(record.Decoded, &ev); err != nil {
			return fmt.Errorf("decode deposit: %w", err)
		}
		if err := addInt(a.Deposited, ev.Amount); err != nil {
			return err
		}
		a.DepositCount++
	case model.EventWithdraw:
		var ev model.WithdrawEventData
		if err := json.Unmarshal(record.Decoded, &ev); err != nil {
			return fmt.Errorf("decode withdraw: %w", err)
		}
		if err := addInt(a.Withdrawn, ev.Withdrawn); err != nil {
			return err
		}
		a.WithdrawCount++
	case model.EventCollectFees:
		var ev model.CollectFeesEventData
		if err := json.Unmarshal(record.Decoded, &ev); err != nil {
			return fmt.Errorf("decode collect fees: %w", err)
		}
		if err := addInt(a.FeesCollected, ev.Amount); err != nil {
			return err
		}
		a.AdminEventCount++
	case model.EventSetDepositCap, model.EventSetBaseFee, model.EventSetPaused:
		a.AdminEventCount++
	default:
		return fmt.Errorf("unsupported event %q", record.EventName)
	}
	return nil
}

// NetFlow is the change in pool custody over the window.
func (a *Accumulator) NetFlow() *big.Int {
	net := new(big.Int).Add(a.Deposited, a.AmountIn)
	net.Sub(net, a.Withdrawn)
	net.Sub(net, a.AmountOut)
	return net.Sub(net, a.FeesCollected)
}

// Metrics renders the window.
func (a *Accumulator) Metrics(windowSeconds uint64) model.PoolWindowMetrics {
	return model.PoolWindowMetrics{
		ChainID:         a.ChainID,
		PoolAddress:     a.PoolAddress,
		WindowSizeSecs:  int64(windowSeconds),
		WindowStart:     time.Unix(int64(a.WindowStart), 0).UTC(),
		WindowEnd:       time.Unix(int64(a.WindowEnd), 0).UTC(),
		SwapInCount:     a.SwapInCount,
		SwapOutCount:    a.SwapOutCount,
		AmountIn:        a.AmountIn.String(),
		AmountOut:       a.AmountOut.String(),
		ValueIn:         a.ValueIn.String(),
		ValueOut:        a.ValueOut.String(),
		DepositCount:    a.DepositCount,
		WithdrawCount:   a.WithdrawCount,
		Deposited:       a.Deposited.String(),
		Withdrawn:       a.Withdrawn.String(),
		FeesCollected:   a.FeesCollected.String(),
		NetFlow:         a.NetFlow().String(),
		AdminEventCount: a.AdminEventCount,
	}
}

func addInt(target *big.Int, value string) error {
	if value == "" {
		return nil
	}
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok || parsed.Sign() < 0 {
		return fmt.Errorf("invalid amount: %q", value)
	}
	target.Add(target, parsed)
	return nil
}
