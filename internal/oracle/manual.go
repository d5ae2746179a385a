package oracle

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/devtooligan/singularity-v2/internal/wad"
)

// ManualFeed serves prices set in process, for replays and tests.
type ManualFeed struct {
	mu     sync.RWMutex
	quotes map[common.Address]Quote
}

func NewManualFeed() *ManualFeed {
	return &ManualFeed{quotes: make(map[common.Address]Quote)}
}

// Set stores a wad price for asset.
func (m *ManualFeed) Set(asset common.Address, price *uint256.Int, updatedAt uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quotes[asset] = Quote{Price: new(uint256.Int).Set(price), UpdatedAt: updatedAt, Source: "manual"}
}

// SetDecimal stores a human decimal price such as "0.9998".
func (m *ManualFeed) SetDecimal(asset common.Address, price string, updatedAt uint64) error {
	value, err := wad.Parse(strings.TrimSpace(price))
	if err != nil {
		return fmt.Errorf("parse price: %w", err)
	}
	m.Set(asset, value, updatedAt)
	return nil
}

func (m *ManualFeed) LatestPrice(_ context.Context, asset common.Address) (Quote, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.quotes[asset]
	if !ok {
		return Quote{}, fmt.Errorf("no price for %s", asset.Hex())
	}
	return Quote{Price: new(uint256.Int).Set(q.Price), UpdatedAt: q.UpdatedAt, Source: q.Source}, nil
}
