// Package aggregate folds pool event journals into per-window activity metrics.
package aggregate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/devtooligan/singularity-v2/internal/events"
	"github.com/devtooligan/singularity-v2/internal/model"
	"github.com/devtooligan/singularity-v2/internal/storage"
)

// Input formats accepted by Run.
const (
	FormatEvents = "events"
	FormatLogs   = "logs"
)

// MetricsStore receives finished windows.
type MetricsStore interface {
	UpsertWindowMetrics(ctx context.Context, metrics []model.PoolWindowMetrics) error
}

// Config controls aggregation behavior.
type Config struct {
	WindowSeconds uint64
	BatchSize     int
	RecomputeFrom uint64
	InputFormat   string
	StateStore    StateStore
}

// Aggregator aggregates pool events into window metrics.
type Aggregator struct {
	cfg          Config
	store        MetricsStore
	codec        *events.Codec
	logger       *zap.Logger
	accumulators map[string]*Accumulator
}

func NewAggregator(cfg Config, store MetricsStore, logger *zap.Logger) (*Aggregator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.InputFormat == "" {
		cfg.InputFormat = FormatEvents
	}
	a := &Aggregator{
		cfg:          cfg,
		store:        store,
		logger:       logger,
		accumulators: make(map[string]*Accumulator),
	}
	switch cfg.InputFormat {
	case FormatEvents:
	case FormatLogs:
		codec, err := events.NewCodec()
		if err != nil {
			return nil, err
		}
		a.codec = codec
	default:
		return nil, fmt.Errorf("unsupported input format %q", cfg.InputFormat)
	}
	return a, nil
}

// Run executes aggregation over a JSONL file of event records or encoded logs.
func (a *Aggregator) Run(ctx context.Context, inputPath string) error {
	if a.store == nil {
		return fmt.Errorf("store is nil")
	}
	if a.cfg.WindowSeconds == 0 {
		return fmt.Errorf("window seconds must be > 0")
	}
	if a.cfg.BatchSize <= 0 {
		a.cfg.BatchSize = 1000
	}

	startTs, err := a.loadStartTimestamp(ctx)
	if err != nil {
		return err
	}

	batch := make([]model.PoolWindowMetrics, 0, a.cfg.BatchSize)
	maxTs := startTs
	var total, windows, skipped, failed int

	err = storage.ReadLines(inputPath, func(_ int, line []byte) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		total++

		record, err := a.parseRecord(line)
		if err != nil {
			failed++
			a.logger.Warn("decode pool event", zap.Error(err))
			return nil
		}
		if record.Timestamp <= startTs {
			skipped++
			return nil
		}

		windowStart := windowStart(record.Timestamp, a.cfg.WindowSeconds)
		windowEnd := windowStart + a.cfg.WindowSeconds

		key := poolKey(record.Pool)
		acc := a.accumulators[key]
		if acc == nil {
			acc = NewAccumulator(record, windowStart, windowEnd)
			a.accumulators[key] = acc
		} else if acc.WindowStart != windowStart {
			batch = append(batch, acc.Metrics(a.cfg.WindowSeconds))
			windows++
			acc = NewAccumulator(record, windowStart, windowEnd)
			a.accumulators[key] = acc
		}

		if err := acc.AddEvent(record); err != nil {
			failed++
			a.logger.Warn("aggregate event", zap.Error(err), zap.String("pool", record.Pool), zap.String("event", record.EventName))
			return nil
		}
		if record.Timestamp > maxTs {
			maxTs = record.Timestamp
		}

		if len(batch) >= a.cfg.BatchSize {
			if err := a.store.UpsertWindowMetrics(ctx, batch); err != nil {
				return err
			}
			batch = batch[:0]
			if err := a.saveState(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, acc := range a.accumulators {
		batch = append(batch, acc.Metrics(a.cfg.WindowSeconds))
		windows++
	}
	a.accumulators = make(map[string]*Accumulator)

	if len(batch) > 0 {
		if err := a.store.UpsertWindowMetrics(ctx, batch); err != nil {
			return err
		}
	}

	a.cfg.RecomputeFrom = maxTs
	if err := a.saveState(ctx); err != nil {
		return err
	}

	a.logger.Info("aggregate complete",
		zap.Int("total", total),
		zap.Int("windows", windows),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed),
	)
	return nil
}

func (a *Aggregator) parseRecord(line []byte) (model.PoolEventRecord, error) {
	if a.codec == nil {
		var record model.PoolEventRecord
		if err := json.Unmarshal(line, &record); err != nil {
			return model.PoolEventRecord{}, err
		}
		return record, nil
	}

	var log model.LogRecord
	if err := json.Unmarshal(line, &log); err != nil {
		return model.PoolEventRecord{}, err
	}
	ev, err := a.codec.Decode(log)
	if err != nil {
		return model.PoolEventRecord{}, err
	}
	return ev.Record()
}

func (a *Aggregator) loadStartTimestamp(ctx context.Context) (uint64, error) {
	if a.cfg.RecomputeFrom > 0 {
		return a.cfg.RecomputeFrom - 1, nil
	}
	if a.cfg.StateStore == nil {
		return 0, nil
	}
	last, ok, err := a.cfg.StateStore.Load(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return last, nil
}

// saveState records the last timestamp whose window is fully flushed.
func (a *Aggregator) saveState(ctx context.Context) error {
	if a.cfg.StateStore == nil {
		return nil
	}
	if len(a.accumulators) == 0 {
		return a.cfg.StateStore.Save(ctx, a.cfg.RecomputeFrom)
	}

	safeTs := minOpenWindowStart(a.accumulators)
	if safeTs > 0 {
		safeTs--
	}
	if safeTs == 0 {
		safeTs = a.cfg.RecomputeFrom
	}
	return a.cfg.StateStore.Save(ctx, safeTs)
}

func windowStart(ts uint64, windowSec uint64) uint64 {
	return ts - (ts % windowSec)
}

func poolKey(address string) string {
	return strings.ToLower(address)
}

func minOpenWindowStart(acc map[string]*Accumulator) uint64 {
	var lowest uint64
	for _, entry := range acc {
		if entry == nil {
			continue
		}
		if lowest == 0 || entry.WindowStart < lowest {
			lowest = entry.WindowStart
		}
	}
	return lowest
}
