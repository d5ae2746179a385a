// Package replay drives a pool engine from a script of operations and ships
// the resulting events to storage.
package replay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/devtooligan/singularity-v2/internal/claims"
	"github.com/devtooligan/singularity-v2/internal/clock"
	"github.com/devtooligan/singularity-v2/internal/ledger"
	"github.com/devtooligan/singularity-v2/internal/metrics"
	"github.com/devtooligan/singularity-v2/internal/model"
	"github.com/devtooligan/singularity-v2/internal/oracle"
	"github.com/devtooligan/singularity-v2/internal/pool"
	"github.com/devtooligan/singularity-v2/internal/registry"
	"github.com/devtooligan/singularity-v2/internal/storage"
	"github.com/devtooligan/singularity-v2/internal/vault"
)

// RunConfig holds runtime settings for a replay.
type RunConfig struct {
	ScriptPath        string
	Pool              common.Address
	ChainID           uint64
	Ledger            ledger.Params
	Registry          registry.Params
	InitialPrice      string
	StartTime         uint64
	BatchSize         int
	CheckpointPath    string
	CheckpointEnabled bool
	MaxRetries        int
	RetryBackoff      time.Duration
}

// SnapshotSaver persists ledger snapshots.
type SnapshotSaver interface {
	SaveSnapshot(ctx context.Context, chainID uint64, snap model.PoolSnapshot) error
}

// Deps are the optional outputs of a replay.
type Deps struct {
	Sink      storage.Sink
	Snapshots SnapshotSaver
	Recorder  *metrics.Recorder
	Logger    *zap.Logger
}

// Result summarizes a run.
type Result struct {
	Applied  int
	Failed   int
	Replayed int
	Snapshot model.PoolSnapshot
}

// scriptClock is the time source that advance operations move.
type scriptClock interface {
	Now(ctx context.Context) (uint64, error)
	Advance(seconds uint64) uint64
}

// Runner applies script lines to an engine wired with in-memory
// collaborators: a vault for the asset, a claim ledger for shares, a
// settable price feed and a settable clock.
type Runner struct {
	cfg        RunConfig
	deps       Deps
	logger     *zap.Logger
	runID      string
	checkpoint *CheckpointStore

	engine *pool.Engine
	vault  *vault.Vault
	claims *claims.Ledger
	feed   *oracle.ManualFeed
	clock  scriptClock
	buffer *storage.Buffer
}

// NewRunner builds a Runner and its engine.
func NewRunner(cfg RunConfig, deps Deps) (*Runner, error) {
	if cfg.ScriptPath == "" {
		return nil, fmt.Errorf("script path is required")
	}
	if cfg.Pool == (common.Address{}) {
		return nil, fmt.Errorf("pool address is required")
	}
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be greater than zero")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	runID := uuid.NewString()
	logger = logger.With(zap.String("run_id", runID))

	state, err := ledger.New(cfg.Ledger)
	if err != nil {
		return nil, fmt.Errorf("pool state: %w", err)
	}
	reg, err := registry.NewStatic(cfg.Registry)
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}

	r := &Runner{
		cfg:        cfg,
		deps:       deps,
		logger:     logger,
		runID:      runID,
		checkpoint: NewCheckpointStore(cfg.CheckpointPath, cfg.CheckpointEnabled),
		vault:      vault.New(),
		claims:     claims.New(),
		feed:       oracle.NewManualFeed(),
		clock:      clock.NewManual(cfg.StartTime),
		buffer:     storage.NewBuffer(),
	}

	price := cfg.InitialPrice
	if price == "" {
		price = "1"
	}
	if err := r.feed.SetDecimal(cfg.Ledger.Asset, price, cfg.StartTime); err != nil {
		return nil, err
	}

	r.engine, err = pool.NewEngine(state, pool.Config{
		Address:   cfg.Pool,
		ChainID:   cfg.ChainID,
		Registry:  reg,
		Oracle:    oracle.NewGateway(r.feed),
		Transfers: vault.NewCustody(r.vault, cfg.Pool),
		Claims:    r.claims,
		Clock:     r.clock,
		Events:    r.buffer,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Engine exposes the engine being driven.
func (r *Runner) Engine() *pool.Engine { return r.engine }

// Vault exposes the asset balances.
func (r *Runner) Vault() *vault.Vault { return r.vault }

// Claims exposes the share balances.
func (r *Runner) Claims() *claims.Ledger { return r.claims }

// Run executes the script. Operations the pool rejects are logged and
// counted; only I/O failures and a diverging resume end the run early.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	var res Result

	cp, resume, err := r.checkpoint.Load()
	if err != nil {
		return res, err
	}
	if resume {
		r.logger.Info("resume from checkpoint", zap.Int("last_applied_line", cp.LastAppliedLine), zap.Uint64("sequence", cp.Snapshot.Sequence))
	}
	verified := !resume

	pending := 0
	lastLine := 0
	err = storage.ReadLines(r.cfg.ScriptPath, func(line int, data []byte) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if !verified && line > cp.LastAppliedLine {
			if err := r.verify(ctx, cp); err != nil {
				return err
			}
			verified = true
		}

		applyErr := r.applyLine(ctx, data)
		lastLine = line

		if resume && line <= cp.LastAppliedLine {
			r.buffer.Drain()
			res.Replayed++
			return nil
		}

		if applyErr != nil {
			res.Failed++
			r.deps.Recorder.ObserveRejected(opName(data))
			r.logger.Warn("operation failed", zap.Int("line", line), zap.Error(applyErr))
		} else {
			res.Applied++
		}

		pending++
		if pending >= r.cfg.BatchSize {
			if err := r.flush(ctx, line); err != nil {
				return err
			}
			pending = 0
		}
		return nil
	})
	if err != nil {
		return res, err
	}

	if !verified {
		if lastLine < cp.LastAppliedLine {
			return res, fmt.Errorf("script has %d lines, checkpoint is at line %d", lastLine, cp.LastAppliedLine)
		}
		if err := r.verify(ctx, cp); err != nil {
			return res, err
		}
	}
	if pending > 0 {
		if err := r.flush(ctx, lastLine); err != nil {
			return res, err
		}
	}

	res.Snapshot, err = r.engine.Snapshot(ctx)
	if err != nil {
		return res, err
	}
	r.logger.Info("replay complete",
		zap.Int("applied", res.Applied),
		zap.Int("failed", res.Failed),
		zap.Int("replayed", res.Replayed),
		zap.Uint64("sequence", res.Snapshot.Sequence),
	)
	return res, nil
}

// verify checks that re-applying the checkpointed lines rebuilt the same ledger.
func (r *Runner) verify(ctx context.Context, cp Checkpoint) error {
	snap, err := r.engine.Snapshot(ctx)
	if err != nil {
		return err
	}
	if snap != cp.Snapshot {
		return fmt.Errorf("resume diverged at line %d: sequence %d, checkpoint sequence %d", cp.LastAppliedLine, snap.Sequence, cp.Snapshot.Sequence)
	}
	return nil
}

func (r *Runner) flush(ctx context.Context, line int) error {
	events := r.buffer.Drain()
	if len(events) > 0 && r.deps.Sink != nil {
		err := withRetry(ctx, r.logger, "store events", r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
			return r.deps.Sink.PutEventBatch(ctx, events)
		})
		if err != nil {
			return fmt.Errorf("store events: %w", err)
		}
	}
	if err := r.deps.Recorder.PutEventBatch(ctx, events); err != nil {
		return err
	}

	snap, err := r.engine.Snapshot(ctx)
	if err != nil {
		return err
	}
	r.deps.Recorder.ObserveSnapshot(snap)
	if r.deps.Snapshots != nil {
		err := withRetry(ctx, r.logger, "save snapshot", r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
			return r.deps.Snapshots.SaveSnapshot(ctx, r.cfg.ChainID, snap)
		})
		if err != nil {
			return fmt.Errorf("save snapshot: %w", err)
		}
	}
	if err := r.checkpoint.Save(line, snap); err != nil {
		return err
	}

	r.logger.Info("batch complete", zap.Int("events", len(events)), zap.Int("line", line))
	return nil
}

func (r *Runner) applyLine(ctx context.Context, data []byte) error {
	var op model.Operation
	if err := json.Unmarshal(data, &op); err != nil {
		return fmt.Errorf("parse operation: %w", err)
	}
	return r.apply(ctx, op)
}

func opName(data []byte) string {
	var op struct {
		Op string `json:"op"`
	}
	_ = json.Unmarshal(data, &op)
	return op.Op
}
