// Package pool implements the operations of a single-asset liquidity pool:
// deposits and withdrawals against proportional claims, the two halves of a
// value-denominated swap, and the factory's administrative controls.
package pool

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/devtooligan/singularity-v2/internal/ledger"
	"github.com/devtooligan/singularity-v2/internal/model"
	"github.com/devtooligan/singularity-v2/internal/oracle"
	"github.com/devtooligan/singularity-v2/internal/registry"
)

// Registry supplies factory-wide parameters.
type Registry interface {
	Params() registry.Params
}

// PriceOracle returns validated quotes.
type PriceOracle interface {
	Quote(ctx context.Context, asset common.Address) (oracle.Quote, error)
}

// Transferer moves the pool asset in and out of the pool's custody.
type Transferer interface {
	Pull(ctx context.Context, asset, from common.Address, amount *uint256.Int) error
	Push(ctx context.Context, asset, to common.Address, amount *uint256.Int) error
}

// ClaimLedger issues the pool's shares.
type ClaimLedger interface {
	Mint(to common.Address, amount *uint256.Int) error
	Burn(from common.Address, amount *uint256.Int) error
	TotalSupply() *uint256.Int
	BalanceOf(owner common.Address) *uint256.Int
}

// Clock returns the current unix time in seconds.
type Clock interface {
	Now(ctx context.Context) (uint64, error)
}

// EventSink receives committed pool events.
type EventSink interface {
	Emit(ctx context.Context, ev model.PoolEvent) error
}

// Config wires an engine to its collaborators. Events and Logger are optional.
type Config struct {
	Address   common.Address
	ChainID   uint64
	Registry  Registry
	Oracle    PriceOracle
	Transfers Transferer
	Claims    ClaimLedger
	Clock     Clock
	Events    EventSink
	Logger    *zap.Logger
}

// Engine runs pool operations. Mutating operations are atomic: they work on
// a copy of the ledger that is published only on success, and undo any
// external effect already applied when a later step fails. A mutating
// operation entered while another one is in flight fails with ErrReentrant;
// callers are expected to serialize them.
//
// The engine tracks the claim supply it has committed next to the ledger.
// Views price shares from that pair, never from the live claim ledger, which
// moves ahead of the commit while an operation is in flight.
type Engine struct {
	address   common.Address
	chainID   uint64
	registry  Registry
	oracle    PriceOracle
	transfers Transferer
	claims    ClaimLedger
	clock     Clock
	events    EventSink
	logger    *zap.Logger

	guard   sync.Mutex
	entered bool

	mu     sync.RWMutex
	state  *ledger.PoolState
	supply *uint256.Int
	seq    uint64
}

// NewEngine takes ownership of state.
func NewEngine(state *ledger.PoolState, cfg Config) (*Engine, error) {
	switch {
	case state == nil:
		return nil, fmt.Errorf("pool state is nil")
	case cfg.Registry == nil:
		return nil, fmt.Errorf("registry is nil")
	case cfg.Oracle == nil:
		return nil, fmt.Errorf("oracle is nil")
	case cfg.Transfers == nil:
		return nil, fmt.Errorf("transferer is nil")
	case cfg.Claims == nil:
		return nil, fmt.Errorf("claim ledger is nil")
	case cfg.Clock == nil:
		return nil, fmt.Errorf("clock is nil")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	supply := new(uint256.Int)
	if ts := cfg.Claims.TotalSupply(); ts != nil {
		supply.Set(ts)
	}
	return &Engine{
		address:   cfg.Address,
		chainID:   cfg.ChainID,
		registry:  cfg.Registry,
		oracle:    cfg.Oracle,
		transfers: cfg.Transfers,
		claims:    cfg.Claims,
		clock:     cfg.Clock,
		events:    cfg.Events,
		logger:    logger.With(zap.String("pool", cfg.Address.Hex()), zap.String("asset", state.Asset.Hex())),
		state:     state,
		supply:    supply,
	}, nil
}

// Address is the pool's custody account.
func (e *Engine) Address() common.Address { return e.address }

func (e *Engine) enter(op string) error {
	e.guard.Lock()
	defer e.guard.Unlock()
	if e.entered {
		e.logger.Warn("reentrant call rejected", zap.String("op", op))
		return ErrReentrant
	}
	e.entered = true
	return nil
}

func (e *Engine) exit() {
	e.guard.Lock()
	e.entered = false
	e.guard.Unlock()
}

// txn is the working state of one mutating operation.
type txn struct {
	op     string
	state  *ledger.PoolState
	supply *uint256.Int
	undo   []func(context.Context) error
}

func (e *Engine) begin(op string) *txn {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return &txn{op: op, state: e.state.Clone(), supply: new(uint256.Int).Set(e.supply)}
}

func (t *txn) onRollback(fn func(context.Context) error) {
	t.undo = append(t.undo, fn)
}

// abort undoes applied effects in reverse order. The working copy is simply
// dropped.
func (e *Engine) abort(ctx context.Context, t *txn, caller common.Address, err error) {
	for i := len(t.undo) - 1; i >= 0; i-- {
		if undoErr := t.undo[i](ctx); undoErr != nil {
			e.logger.Error("rollback step failed",
				zap.String("op", t.op),
				zap.Int("step", i),
				zap.Error(undoErr),
			)
		}
	}
	e.logger.Warn("operation rejected",
		zap.String("op", t.op),
		zap.String("caller", caller.Hex()),
		zap.Error(err),
	)
}

// commit publishes the working copy and claim supply together and emits
// the operation's event.
func (e *Engine) commit(ctx context.Context, t *txn, name string, decoded interface{}) model.PoolEvent {
	ts := e.timestamp(ctx)

	e.mu.Lock()
	e.state = t.state
	e.supply = t.supply
	e.seq++
	ev := model.PoolEvent{
		ID:        uuid.New().String(),
		ChainID:   e.chainID,
		Sequence:  e.seq,
		Pool:      e.address.Hex(),
		Asset:     t.state.Asset.Hex(),
		EventName: name,
		Timestamp: ts,
		Decoded:   decoded,
	}
	e.mu.Unlock()

	if e.events != nil {
		if err := e.events.Emit(ctx, ev); err != nil {
			e.logger.Error("emit event failed", zap.String("event", name), zap.Uint64("sequence", ev.Sequence), zap.Error(err))
		}
	}
	return ev
}

func (e *Engine) timestamp(ctx context.Context) uint64 {
	now, err := e.clock.Now(ctx)
	if err != nil {
		e.logger.Warn("clock read failed", zap.Error(err))
		return 0
	}
	return now
}

func (e *Engine) requireRouter(caller common.Address) error {
	if caller != e.registry.Params().Router {
		return ErrUnauthorized
	}
	return nil
}

func (e *Engine) requireFactory(caller common.Address) error {
	if caller != e.registry.Params().Factory {
		return ErrUnauthorized
	}
	return nil
}

func isZero(x *uint256.Int) bool {
	return x == nil || x.IsZero()
}
