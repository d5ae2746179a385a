package chain

import (
	"context"
	"fmt"
)

// BlockClock reports the latest block timestamp as the current time, so
// oracle staleness is measured the way a contract on that chain measures it.
type BlockClock struct {
	client *Client
}

func NewBlockClock(client *Client) *BlockClock {
	return &BlockClock{client: client}
}

// Now returns the latest block timestamp.
func (c *BlockClock) Now(ctx context.Context) (uint64, error) {
	header, err := c.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("latest header: %w", err)
	}
	return header.Time, nil
}
