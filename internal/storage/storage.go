package storage

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/devtooligan/singularity-v2/internal/model"
)

// Sink defines a destination for committed pool events.
type Sink interface {
	PutEventBatch(ctx context.Context, events []model.PoolEvent) error
}

// MultiSink writes each batch to every sink concurrently.
type MultiSink []Sink

// PutEventBatch fans the batch out and returns the first failure.
func (m MultiSink) PutEventBatch(ctx context.Context, events []model.PoolEvent) error {
	if len(events) == 0 {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, sink := range m {
		if sink == nil {
			continue
		}
		sink := sink
		g.Go(func() error {
			return sink.PutEventBatch(gctx, events)
		})
	}
	return g.Wait()
}

// Buffer collects events emitted by an engine until they are drained.
type Buffer struct {
	mu     sync.Mutex
	events []model.PoolEvent
}

func NewBuffer() *Buffer {
	return &Buffer{}
}

// Emit queues one event.
func (b *Buffer) Emit(_ context.Context, ev model.PoolEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
	return nil
}

// Drain returns the queued events and empties the buffer.
func (b *Buffer) Drain() []model.PoolEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.events
	b.events = nil
	return out
}

// Len reports how many events are queued.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}
