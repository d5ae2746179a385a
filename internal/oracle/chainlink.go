package oracle

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/devtooligan/singularity-v2/internal/chain"
	"github.com/devtooligan/singularity-v2/internal/wad"
)

const aggregatorABIJSON = `[
  {"inputs": [], "name": "decimals", "outputs": [{"type": "uint8"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "description", "outputs": [{"type": "string"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "latestRoundData", "outputs": [
    {"name": "roundId", "type": "uint80"},
    {"name": "answer", "type": "int256"},
    {"name": "startedAt", "type": "uint256"},
    {"name": "updatedAt", "type": "uint256"},
    {"name": "answeredInRound", "type": "uint80"}
  ], "stateMutability": "view", "type": "function"}
]`

var (
	aggregatorABI     abi.ABI
	aggregatorABIOnce sync.Once
	aggregatorABIErr  error
)

// AggregatorABI returns the parsed Chainlink aggregator ABI.
func AggregatorABI() (abi.ABI, error) {
	aggregatorABIOnce.Do(func() {
		aggregatorABI, aggregatorABIErr = abi.JSON(strings.NewReader(aggregatorABIJSON))
	})
	return aggregatorABI, aggregatorABIErr
}

// ChainlinkFeed reads Chainlink-style aggregators over eth_call and scales
// answers to 18 decimals. Non-positive answers come back as a zero price.
type ChainlinkFeed struct {
	caller chain.Caller
	feeds  map[common.Address]common.Address
	logger *zap.Logger

	mu       sync.RWMutex
	decimals map[common.Address]uint8
}

// NewChainlinkFeed maps each asset to its aggregator address.
func NewChainlinkFeed(caller chain.Caller, feeds map[common.Address]common.Address, logger *zap.Logger) *ChainlinkFeed {
	if logger == nil {
		logger = zap.NewNop()
	}
	copied := make(map[common.Address]common.Address, len(feeds))
	for asset, feed := range feeds {
		copied[asset] = feed
	}
	return &ChainlinkFeed{
		caller:   caller,
		feeds:    copied,
		logger:   logger,
		decimals: make(map[common.Address]uint8),
	}
}

func (f *ChainlinkFeed) LatestPrice(ctx context.Context, asset common.Address) (Quote, error) {
	feed, ok := f.feeds[asset]
	if !ok {
		return Quote{}, fmt.Errorf("no feed for %s", asset.Hex())
	}
	parsed, err := AggregatorABI()
	if err != nil {
		return Quote{}, fmt.Errorf("parse aggregator abi: %w", err)
	}
	decimals, err := f.feedDecimals(ctx, feed, parsed)
	if err != nil {
		return Quote{}, err
	}

	values, err := chain.Call(ctx, f.caller, feed, parsed, "latestRoundData", nil)
	if err != nil {
		return Quote{}, err
	}
	if len(values) < 4 {
		return Quote{}, fmt.Errorf("latestRoundData: unexpected output count %d", len(values))
	}
	answer, err := chain.AsBigInt(values[1])
	if err != nil {
		return Quote{}, fmt.Errorf("answer: %w", err)
	}
	updatedAt, err := chain.AsBigInt(values[3])
	if err != nil {
		return Quote{}, fmt.Errorf("updatedAt: %w", err)
	}

	price, err := scaleAnswer(answer, decimals)
	if err != nil {
		return Quote{}, err
	}
	f.logger.Debug("price feed read",
		zap.String("asset", asset.Hex()),
		zap.String("feed", feed.Hex()),
		zap.String("answer", answer.String()),
		zap.Uint64("updated_at", updatedAt.Uint64()),
	)
	return Quote{Price: price, UpdatedAt: updatedAt.Uint64(), Source: feed.Hex()}, nil
}

// Description returns the aggregator's description string for asset.
func (f *ChainlinkFeed) Description(ctx context.Context, asset common.Address) (string, error) {
	feed, ok := f.feeds[asset]
	if !ok {
		return "", fmt.Errorf("no feed for %s", asset.Hex())
	}
	parsed, err := AggregatorABI()
	if err != nil {
		return "", fmt.Errorf("parse aggregator abi: %w", err)
	}
	values, err := chain.Call(ctx, f.caller, feed, parsed, "description", nil)
	if err != nil {
		return "", err
	}
	if len(values) < 1 {
		return "", fmt.Errorf("description: unexpected output count %d", len(values))
	}
	text, ok := values[0].(string)
	if !ok {
		return "", fmt.Errorf("description: unexpected type %T", values[0])
	}
	return text, nil
}

func (f *ChainlinkFeed) feedDecimals(ctx context.Context, feed common.Address, parsed abi.ABI) (uint8, error) {
	f.mu.RLock()
	d, ok := f.decimals[feed]
	f.mu.RUnlock()
	if ok {
		return d, nil
	}
	values, err := chain.Call(ctx, f.caller, feed, parsed, "decimals", nil)
	if err != nil {
		return 0, err
	}
	d, err = chain.AsUint8(values[0])
	if err != nil {
		return 0, fmt.Errorf("decimals: %w", err)
	}
	f.mu.Lock()
	f.decimals[feed] = d
	f.mu.Unlock()
	return d, nil
}

func scaleAnswer(answer *big.Int, decimals uint8) (*uint256.Int, error) {
	if answer.Sign() <= 0 {
		return new(uint256.Int), nil
	}
	raw, overflow := uint256.FromBig(answer)
	if overflow {
		return nil, fmt.Errorf("answer overflows uint256: %s", answer.String())
	}
	price, err := wad.ToWad(raw, decimals)
	if err != nil {
		return nil, fmt.Errorf("scale answer: %w", err)
	}
	return price, nil
}
