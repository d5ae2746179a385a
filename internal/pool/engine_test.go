package pool

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/devtooligan/singularity-v2/internal/claims"
	"github.com/devtooligan/singularity-v2/internal/clock"
	"github.com/devtooligan/singularity-v2/internal/ledger"
	"github.com/devtooligan/singularity-v2/internal/model"
	"github.com/devtooligan/singularity-v2/internal/oracle"
	"github.com/devtooligan/singularity-v2/internal/registry"
	"github.com/devtooligan/singularity-v2/internal/vault"
	"github.com/devtooligan/singularity-v2/internal/wad"
)

const (
	usdc      = 1_000_000
	startTime = 1_700_000_000
)

var (
	assetAddr   = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	poolAddr    = common.HexToAddress("0x0000000000000000000000000000000000000f00")
	routerAddr  = common.HexToAddress("0x1000000000000000000000000000000000000001")
	factoryAddr = common.HexToAddress("0x2000000000000000000000000000000000000002")
	treasury    = common.HexToAddress("0x3000000000000000000000000000000000000003")
	alice       = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob         = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
)

type recordingSink struct {
	mu     sync.Mutex
	events []model.PoolEvent
}

func (r *recordingSink) Emit(_ context.Context, ev model.PoolEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingSink) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.EventName)
	}
	return out
}

func (r *recordingSink) last() model.PoolEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

type harness struct {
	engine  *Engine
	vault   *vault.Vault
	custody *vault.Custody
	claims  *claims.Ledger
	feed    *oracle.ManualFeed
	clock   *clock.Manual
	sink    *recordingSink
}

type option func(*ledger.Params, *registry.Params)

func volatileAsset(p *ledger.Params, _ *registry.Params) { p.IsStablecoin = false }

func withDepositCap(n uint64) option {
	return func(p *ledger.Params, _ *registry.Params) { p.DepositCap = units(n) }
}

func newHarness(t *testing.T, opts ...option) *harness {
	t.Helper()
	lp := ledger.Params{Asset: assetAddr, Decimals: 6, IsStablecoin: true, BaseFee: uint256.NewInt(4e14)}
	rp := registry.Params{Router: routerAddr, Factory: factoryAddr, ProtocolFeeShare: 10, OracleSens: 3600, Tranche: "A"}
	for _, opt := range opts {
		opt(&lp, &rp)
	}
	state, err := ledger.New(lp)
	require.NoError(t, err)
	reg, err := registry.NewStatic(rp)
	require.NoError(t, err)

	h := &harness{
		vault:  vault.New(),
		claims: claims.New(),
		feed:   oracle.NewManualFeed(),
		clock:  clock.NewManual(startTime),
		sink:   &recordingSink{},
	}
	h.custody = vault.NewCustody(h.vault, poolAddr)
	h.feed.Set(assetAddr, wad.One(), startTime)

	h.engine, err = NewEngine(state, Config{
		Address:   poolAddr,
		Registry:  reg,
		Oracle:    oracle.NewGateway(h.feed),
		Transfers: h.custody,
		Claims:    h.claims,
		Clock:     h.clock,
		Events:    h.sink,
	})
	require.NoError(t, err)

	for _, who := range []common.Address{alice, bob, routerAddr} {
		require.NoError(t, h.vault.Fund(assetAddr, who, units(1_000_000)))
	}
	return h
}

// seed puts the pool in an arbitrary funded state with bob holding every share.
func (h *harness) seed(t *testing.T, assets, liabilities, shares uint64) {
	t.Helper()
	h.engine.mu.Lock()
	h.engine.state.Assets = units(assets)
	h.engine.state.Liabilities = units(liabilities)
	h.engine.supply = new(uint256.Int).Add(h.engine.supply, units(shares))
	h.engine.mu.Unlock()
	require.NoError(t, h.claims.Mint(bob, units(shares)))
	require.NoError(t, h.vault.Fund(assetAddr, poolAddr, units(assets)))
}

func (h *harness) requireCustodyMatchesLedger(t *testing.T) {
	t.Helper()
	custody, err := h.engine.State().Custody()
	require.NoError(t, err)
	require.Equal(t, custody.Uint64(), h.custody.Balance(assetAddr).Uint64())
}

func units(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(n), uint256.NewInt(usdc))
}

func requireAmount(t *testing.T, want uint64, got *uint256.Int) {
	t.Helper()
	require.NotNil(t, got)
	require.True(t, got.IsUint64(), "value %s does not fit uint64", wad.String(got))
	require.Equal(t, want, got.Uint64())
}

func TestNewEngineRequiresCollaborators(t *testing.T) {
	state, err := ledger.New(ledger.Params{Asset: assetAddr})
	require.NoError(t, err)

	_, err = NewEngine(nil, Config{})
	require.Error(t, err)
	_, err = NewEngine(state, Config{})
	require.Error(t, err)

	h := newHarness(t)
	require.Equal(t, poolAddr, h.engine.Address())
	require.Equal(t, assetAddr, h.engine.Asset())
}

func TestViewsOnEmptyPool(t *testing.T) {
	h := newHarness(t)

	ratio, err := h.engine.CollateralizationRatio()
	require.NoError(t, err)
	require.Equal(t, wad.One(), ratio)

	pps, err := h.engine.PricePerShare()
	require.NoError(t, err)
	require.Equal(t, wad.One(), pps)

	assets, liabilities := h.engine.AssetsAndLiabilities()
	require.True(t, assets.IsZero())
	require.True(t, liabilities.IsZero())

	fee, err := h.engine.DepositFee(units(10))
	require.NoError(t, err)
	require.True(t, fee.IsZero())
}

func TestStaleRateIsVisibleThroughViews(t *testing.T) {
	h := newHarness(t, volatileAsset)
	h.clock.Set(startTime + 3961)

	rate, err := h.engine.TradingFeeRate(context.Background())
	require.NoError(t, err)
	require.True(t, wad.IsMax(rate))

	fees, err := h.engine.TradingFees(context.Background(), units(1))
	require.NoError(t, err)
	require.True(t, fees.Stale())

	h.clock.Set(startTime + 3600)
	rate, err = h.engine.TradingFeeRate(context.Background())
	require.NoError(t, err)
	requireAmount(t, 8e14, rate)
}

func TestStablecoinRateIgnoresOracle(t *testing.T) {
	h := newHarness(t)
	h.feed.Set(assetAddr, new(uint256.Int), 0)

	rate, err := h.engine.TradingFeeRate(context.Background())
	require.NoError(t, err)
	requireAmount(t, 4e14, rate)
}

func TestEventSequenceAndPayload(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.engine.Deposit(ctx, alice, units(10), alice)
	require.NoError(t, err)
	require.NoError(t, h.engine.SetPaused(ctx, factoryAddr, true))

	require.Equal(t, []string{model.EventDeposit, model.EventSetPaused}, h.sink.names())
	last := h.sink.last()
	require.Equal(t, uint64(2), last.Sequence)
	require.Equal(t, poolAddr.Hex(), last.Pool)
	require.Equal(t, uint64(startTime), last.Timestamp)
	require.NotEmpty(t, last.ID)
	require.Equal(t, model.SetPausedEventData{Old: false, New: true}, last.Decoded)
	require.Equal(t, uint64(2), h.engine.Sequence())
}

func TestSnapshot(t *testing.T) {
	h := newHarness(t)
	_, err := h.engine.Deposit(context.Background(), alice, units(1000), alice)
	require.NoError(t, err)

	snap, err := h.engine.Snapshot(context.Background())
	require.NoError(t, err)
	require.Equal(t, "1000000000", snap.Assets)
	require.Equal(t, "1000000000", snap.Liabilities)
	require.Equal(t, "1000000000", snap.TotalSupply)
	require.Equal(t, "1000000000000000000", snap.PricePerShare)
	require.Equal(t, "1000000000000000000", snap.CollateralizationRatio)
	require.Equal(t, uint64(1), snap.Sequence)
	require.True(t, snap.IsStablecoin)
}

func TestReentrantCallFromTransferHookIsRejected(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	var (
		nestedErr error
		viewErr   error
		viewPPS   *uint256.Int
		calls     int
	)
	h.vault.SetHook(func(ctx context.Context, tr vault.Transfer) error {
		if tr.To != poolAddr || calls > 0 {
			return nil
		}
		calls++
		_, nestedErr = h.engine.Deposit(ctx, bob, units(1), bob)
		viewPPS, viewErr = h.engine.PricePerShare()
		return nil
	})

	minted, err := h.engine.Deposit(ctx, alice, units(100), alice)
	require.NoError(t, err)
	requireAmount(t, 100*usdc, minted)
	require.ErrorIs(t, nestedErr, ErrReentrant)
	require.NoError(t, viewErr)
	require.Equal(t, wad.One(), viewPPS)
	require.True(t, h.claims.BalanceOf(bob).IsZero())

	// The guard is released once the outer call returns.
	h.vault.SetHook(nil)
	_, err = h.engine.Deposit(ctx, bob, units(1), bob)
	require.NoError(t, err)
}

func TestViewsInsideWithdrawalCallbackSeeCommittedState(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.engine.Deposit(ctx, alice, units(1000), alice)
	require.NoError(t, err)
	_, err = h.engine.Deposit(ctx, bob, units(1000), bob)
	require.NoError(t, err)

	ppsBefore, err := h.engine.PricePerShare()
	require.NoError(t, err)
	ratioBefore, err := h.engine.CollateralizationRatio()
	require.NoError(t, err)
	assetsBefore, liabilitiesBefore := h.engine.AssetsAndLiabilities()
	supplyBefore := h.engine.TotalSupply()

	var (
		calls               int
		pps, ratio, supply  *uint256.Int
		assets, liabilities *uint256.Int
		ppsErr, ratioErr    error
		snap                model.PoolSnapshot
		snapErr             error
	)
	h.vault.SetHook(func(ctx context.Context, tr vault.Transfer) error {
		if tr.From != poolAddr {
			return nil
		}
		calls++
		pps, ppsErr = h.engine.PricePerShare()
		ratio, ratioErr = h.engine.CollateralizationRatio()
		assets, liabilities = h.engine.AssetsAndLiabilities()
		supply = h.engine.TotalSupply()
		snap, snapErr = h.engine.Snapshot(ctx)
		return nil
	})

	_, err = h.engine.Withdraw(ctx, alice, units(500), alice)
	require.NoError(t, err)
	require.Equal(t, 1, calls)

	require.NoError(t, ppsErr)
	require.NoError(t, ratioErr)
	require.NoError(t, snapErr)
	require.Equal(t, ppsBefore, pps)
	require.Equal(t, ratioBefore, ratio)
	require.Equal(t, assetsBefore, assets)
	require.Equal(t, liabilitiesBefore, liabilities)
	require.Equal(t, supplyBefore, supply)
	require.Equal(t, wad.String(supplyBefore), snap.TotalSupply)
	require.Equal(t, wad.String(ppsBefore), snap.PricePerShare)
	require.Equal(t, uint64(2), snap.Sequence)

	// Once committed the views move to the new state together.
	h.vault.SetHook(nil)
	requireAmount(t, 1500*usdc, h.engine.TotalSupply())
	require.Equal(t, h.claims.TotalSupply(), h.engine.TotalSupply())
}

func TestFailedWithdrawalKeepsCommittedSupply(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.engine.Deposit(ctx, alice, units(100), alice)
	require.NoError(t, err)

	h.vault.SetHook(func(_ context.Context, tr vault.Transfer) error {
		if tr.From == poolAddr {
			return errors.New("recipient rejected transfer")
		}
		return nil
	})
	_, err = h.engine.Withdraw(ctx, alice, units(40), alice)
	require.Error(t, err)

	requireAmount(t, 100*usdc, h.engine.TotalSupply())
	requireAmount(t, 100*usdc, h.claims.TotalSupply())
	requireAmount(t, 100*usdc, h.claims.BalanceOf(alice))
}

func TestConcurrentViewsDuringOperations(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// Stablecoin deposits into a balanced pool pay no fee, so every
	// committed state prices a share at exactly one.
	var (
		wg       sync.WaitGroup
		mismatch []string
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			pps, err := h.engine.PricePerShare()
			if err != nil || !pps.Eq(wad.One()) {
				mismatch = append(mismatch, "pps "+wad.String(pps))
			}
			ratio, err := h.engine.CollateralizationRatio()
			if err != nil || !ratio.Eq(wad.One()) {
				mismatch = append(mismatch, "ratio "+wad.String(ratio))
			}
			snap, err := h.engine.Snapshot(ctx)
			if err != nil || snap.TotalSupply != snap.Liabilities {
				mismatch = append(mismatch, "snapshot supply "+snap.TotalSupply+" liabilities "+snap.Liabilities)
			}
		}
	}()
	for i := 0; i < 50; i++ {
		_, err := h.engine.Deposit(ctx, alice, units(1), alice)
		require.NoError(t, err)
	}
	wg.Wait()
	require.Empty(t, mismatch)
	requireAmount(t, 50*usdc, h.claims.TotalSupply())
	requireAmount(t, 50*usdc, h.engine.TotalSupply())
}
