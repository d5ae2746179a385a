package replay

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/devtooligan/singularity-v2/internal/ledger"
	"github.com/devtooligan/singularity-v2/internal/model"
	"github.com/devtooligan/singularity-v2/internal/registry"
)

var (
	asset    = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	poolAddr = common.HexToAddress("0x0000000000000000000000000000000000000f00")
	router   = "0x1000000000000000000000000000000000000001"
	factory  = "0x2000000000000000000000000000000000000002"
	treasury = "0x3000000000000000000000000000000000000003"
	alice    = "0x00000000000000000000000000000000000a11ce"
	bob      = "0x0000000000000000000000000000000000000b0b"
)

var scriptHead = []string{
	`{"op":"fund","caller":"` + alice + `","amount":"1000000000"}`,
	`{"op":"fund","caller":"` + router + `","amount":"1000000000"}`,
	`{"op":"deposit","caller":"` + alice + `","amount":"1000000000"}`,
	`{"op":"swap_in","caller":"` + router + `","amount":"100000000"}`,
	`{"op":"deposit","caller":"` + bob + `","amount":"1"}`,
	`{"op":"set_paused","caller":"` + factory + `","paused":true}`,
}

var scriptTail = []string{
	`{"op":"set_paused","caller":"` + alice + `","paused":false}`,
	`{"op":"collect_fees","caller":"` + factory + `","to":"` + treasury + `"}`,
}

type captureSink struct {
	mu     sync.Mutex
	failN  int
	calls  int
	events []model.PoolEvent
}

func (c *captureSink) PutEventBatch(_ context.Context, evs []model.PoolEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.failN > 0 {
		c.failN--
		return errors.New("sink unavailable")
	}
	c.events = append(c.events, evs...)
	return nil
}

func (c *captureSink) names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.events))
	for _, ev := range c.events {
		out = append(out, ev.EventName)
	}
	return out
}

func writeScript(t *testing.T, path string, lines ...[]string) {
	t.Helper()
	var all []string
	for _, chunk := range lines {
		all = append(all, chunk...)
	}
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(all, "\n")+"\n"), 0o644))
}

func testConfig(dir string) RunConfig {
	return RunConfig{
		ScriptPath: filepath.Join(dir, "script.jsonl"),
		Pool:       poolAddr,
		ChainID:    56,
		Ledger: ledger.Params{
			Asset:        asset,
			Decimals:     6,
			IsStablecoin: true,
			BaseFee:      uint256.NewInt(4e14),
		},
		Registry: registry.Params{
			Router:           common.HexToAddress(router),
			Factory:          common.HexToAddress(factory),
			ProtocolFeeShare: 10,
			OracleSens:       3600,
		},
		StartTime:         1_700_000_000,
		BatchSize:         3,
		CheckpointPath:    filepath.Join(dir, "checkpoint.json"),
		CheckpointEnabled: true,
		RetryBackoff:      time.Millisecond,
	}
}

func TestRunAppliesScript(t *testing.T) {
	cfg := testConfig(t.TempDir())
	writeScript(t, cfg.ScriptPath, scriptHead, scriptTail)
	sink := &captureSink{}

	runner, err := NewRunner(cfg, Deps{Sink: sink})
	require.NoError(t, err)
	res, err := runner.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 6, res.Applied)
	require.Equal(t, 2, res.Failed)
	require.Zero(t, res.Replayed)
	require.Equal(t, []string{model.EventDeposit, model.EventSwapIn, model.EventSetPaused, model.EventCollectFees}, sink.names())
	require.Equal(t, uint64(4), res.Snapshot.Sequence)
	require.True(t, res.Snapshot.Paused)
	require.Equal(t, "1099996000", res.Snapshot.Assets)
	require.Equal(t, "0", res.Snapshot.ProtocolFees)
	require.Equal(t, uint64(4000), runner.Vault().BalanceOf(asset, common.HexToAddress(treasury)).Uint64())

	cp, ok, err := NewCheckpointStore(cfg.CheckpointPath, true).Load()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 8, cp.LastAppliedLine)
	require.Equal(t, res.Snapshot, cp.Snapshot)
}

func TestRunResumesFromCheckpoint(t *testing.T) {
	cfg := testConfig(t.TempDir())
	writeScript(t, cfg.ScriptPath, scriptHead)

	first := &captureSink{}
	runner, err := NewRunner(cfg, Deps{Sink: first})
	require.NoError(t, err)
	_, err = runner.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, first.names(), 3)

	writeScript(t, cfg.ScriptPath, scriptHead, scriptTail)
	second := &captureSink{}
	runner, err = NewRunner(cfg, Deps{Sink: second})
	require.NoError(t, err)
	res, err := runner.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 6, res.Replayed)
	require.Equal(t, 1, res.Applied)
	require.Equal(t, 1, res.Failed)
	require.Equal(t, []string{model.EventCollectFees}, second.names())
	require.Equal(t, uint64(4), second.events[0].Sequence)
}

func TestRunDetectsDivergedResume(t *testing.T) {
	cfg := testConfig(t.TempDir())
	writeScript(t, cfg.ScriptPath, scriptHead)
	runner, err := NewRunner(cfg, Deps{})
	require.NoError(t, err)
	_, err = runner.Run(context.Background())
	require.NoError(t, err)

	changed := append([]string(nil), scriptHead...)
	changed[2] = `{"op":"deposit","caller":"` + alice + `","amount":"900000000"}`
	writeScript(t, cfg.ScriptPath, changed, scriptTail)

	runner, err = NewRunner(cfg, Deps{})
	require.NoError(t, err)
	_, err = runner.Run(context.Background())
	require.ErrorContains(t, err, "resume diverged")

	writeScript(t, cfg.ScriptPath, scriptHead[:4])
	runner, err = NewRunner(cfg, Deps{})
	require.NoError(t, err)
	_, err = runner.Run(context.Background())
	require.ErrorContains(t, err, "checkpoint is at line 6")
}

func TestRunRetriesSink(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.MaxRetries = 2
	writeScript(t, cfg.ScriptPath, scriptHead)

	sink := &captureSink{failN: 2}
	runner, err := NewRunner(cfg, Deps{Sink: sink})
	require.NoError(t, err)
	_, err = runner.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, sink.names(), 3)
	require.Equal(t, 4, sink.calls)

	cfg = testConfig(t.TempDir())
	writeScript(t, cfg.ScriptPath, scriptHead)
	runner, err = NewRunner(cfg, Deps{Sink: &captureSink{failN: 1}})
	require.NoError(t, err)
	_, err = runner.Run(context.Background())
	require.ErrorContains(t, err, "store events")
}

func TestApplyRejectsMalformedOperations(t *testing.T) {
	cfg := testConfig(t.TempDir())
	runner, err := NewRunner(cfg, Deps{})
	require.NoError(t, err)
	ctx := context.Background()

	require.ErrorContains(t, runner.apply(ctx, model.Operation{Op: "mint", Caller: alice}), "unknown operation")
	require.ErrorContains(t, runner.apply(ctx, model.Operation{Op: model.OpDeposit, Caller: "alice"}), "invalid address")
	require.ErrorContains(t, runner.apply(ctx, model.Operation{Op: model.OpDeposit, Caller: alice}), "amount is required")
	require.ErrorContains(t, runner.apply(ctx, model.Operation{Op: model.OpSetPaused, Caller: factory}), "paused is required")
	require.Error(t, runner.apply(ctx, model.Operation{Op: model.OpSetPrice, Price: "-1"}))

	require.NoError(t, runner.apply(ctx, model.Operation{Op: model.OpAdvance, Seconds: 60}))
	require.NoError(t, runner.apply(ctx, model.Operation{Op: model.OpSetPrice, Price: "1.0002"}))
	require.NoError(t, runner.apply(ctx, model.Operation{Op: model.OpSetDepositCap, Caller: factory, Amount: "5"}))
	requireCap(t, runner, 5)
	require.NoError(t, runner.apply(ctx, model.Operation{Op: model.OpSetBaseFee, Caller: factory, Fee: "0.001"}))
	require.Equal(t, uint64(1e15), runner.Engine().State().BaseFee.Uint64())
}

type brokenClock struct{}

func (brokenClock) Now(context.Context) (uint64, error) { return 0, errors.New("clock unavailable") }
func (brokenClock) Advance(uint64) uint64 { return 0 }

func TestSetPriceReportsClockFailure(t *testing.T) {
	cfg := testConfig(t.TempDir())
	runner, err := NewRunner(cfg, Deps{})
	require.NoError(t, err)
	runner.clock = brokenClock{}

	err = runner.apply(context.Background(), model.Operation{Op: model.OpSetPrice, Price: "1.0002"})
	require.ErrorContains(t, err, "read clock: clock unavailable")

	// An explicit timestamp does not need the clock.
	require.NoError(t, runner.apply(context.Background(), model.Operation{Op: model.OpSetPrice, Price: "1.0002", UpdatedAt: 1_700_000_100}))
}

func requireCap(t *testing.T, r *Runner, want uint64) {
	t.Helper()
	require.Equal(t, want, r.Engine().State().DepositCap.Uint64())
}

func TestNewRunnerValidates(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.BatchSize = 0
	_, err := NewRunner(cfg, Deps{})
	require.Error(t, err)

	cfg = testConfig(t.TempDir())
	cfg.Registry.Router = common.Address{}
	_, err = NewRunner(cfg, Deps{})
	require.Error(t, err)

	cfg = testConfig(t.TempDir())
	cfg.InitialPrice = "abc"
	_, err = NewRunner(cfg, Deps{})
	require.Error(t, err)
}
