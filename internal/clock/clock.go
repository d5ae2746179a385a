// Package clock provides the time sources a pool engine can run against.
package clock

import (
	"context"
	"sync"
	"time"
)

// System reads the wall clock.
type System struct{}

func (System) Now(context.Context) (uint64, error) {
	return uint64(time.Now().Unix()), nil
}

// Manual is a settable clock for replays and tests.
type Manual struct {
	mu  sync.RWMutex
	now uint64
}

func NewManual(now uint64) *Manual {
	return &Manual{now: now}
}

func (m *Manual) Now(context.Context) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.now, nil
}

// Set moves the clock to ts.
func (m *Manual) Set(ts uint64) {
	m.mu.Lock()
	m.now = ts
	m.mu.Unlock()
}

// Advance moves the clock forward and returns the new time.
func (m *Manual) Advance(seconds uint64) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now += seconds
	return m.now
}
