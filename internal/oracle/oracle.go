// Package oracle reads (price, updatedAt) quotes for a pool asset. Prices are
// 18-decimal values of one whole unit of the asset.
package oracle

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var ErrInvalidPrice = errors.New("pool: invalid oracle price")

// Quote is one oracle reading.
type Quote struct {
	Price     *uint256.Int
	UpdatedAt uint64
	Source    string
}

// Feed is a raw price source.
type Feed interface {
	LatestPrice(ctx context.Context, asset common.Address) (Quote, error)
}

// Gateway validates quotes from a feed. It does not cache or retry; the
// freshness of a quote is priced by the caller.
type Gateway struct {
	feed Feed
}

func NewGateway(feed Feed) *Gateway {
	return &Gateway{feed: feed}
}

// Quote returns the feed's latest quote for asset. A zero price is rejected.
func (g *Gateway) Quote(ctx context.Context, asset common.Address) (Quote, error) {
	if g == nil || g.feed == nil {
		return Quote{}, fmt.Errorf("oracle feed not configured")
	}
	q, err := g.feed.LatestPrice(ctx, asset)
	if err != nil {
		return Quote{}, fmt.Errorf("read price %s: %w", asset.Hex(), err)
	}
	if q.Price == nil || q.Price.IsZero() {
		return Quote{}, ErrInvalidPrice
	}
	return q, nil
}
