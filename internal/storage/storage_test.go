package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/devtooligan/singularity-v2/internal/events"
	"github.com/devtooligan/singularity-v2/internal/model"
)

var (
	pool  = common.HexToAddress("0x0000000000000000000000000000000000000f00").Hex()
	alice = common.HexToAddress("0x00000000000000000000000000000000000a11ce").Hex()
)

func sampleEvents() []model.PoolEvent {
	return []model.PoolEvent{
		{
			ID: "a", ChainID: 56, Sequence: 1, Pool: pool, EventName: model.EventDeposit, Timestamp: 10,
			Decoded: model.DepositEventData{
				Caller: alice,
				Amount: "1000",
				Minted: "1000",
				To:     alice,
			},
		},
		{
			ID: "b", ChainID: 56, Sequence: 2, Pool: pool, EventName: model.EventSetPaused, Timestamp: 11,
			Decoded: model.SetPausedEventData{Old: false, New: true},
		},
	}
}

type failingSink struct{ err error }

func (f failingSink) PutEventBatch(context.Context, []model.PoolEvent) error { return f.err }

func TestJsonlStorageAppendsRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "events.jsonl")
	store := NewJsonlStorage(path)
	ctx := context.Background()

	require.NoError(t, store.PutEventBatch(ctx, sampleEvents()))
	require.NoError(t, store.PutEventBatch(ctx, nil))
	require.NoError(t, store.PutEventBatch(ctx, sampleEvents()[:1]))

	var records []model.PoolEventRecord
	err := ReadLines(path, func(_ int, data []byte) error {
		var rec model.PoolEventRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return err
		}
		records = append(records, rec)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, model.EventSetPaused, records[1].EventName)
	require.JSONEq(t, `{"old":false,"new":true}`, string(records[1].Decoded))
}

func TestLogSinkWritesDecodableLogs(t *testing.T) {
	codec, err := events.NewCodec()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "logs.jsonl")
	sink := NewLogSink(NewJsonlStorage(path), codec)
	sink.now = func() time.Time { return time.Unix(1_700_000_000, 0) }

	require.NoError(t, sink.PutEventBatch(context.Background(), sampleEvents()))

	var decoded []*model.PoolEvent
	err = ReadLines(path, func(_ int, data []byte) error {
		var log model.LogRecord
		if err := json.Unmarshal(data, &log); err != nil {
			return err
		}
		require.Equal(t, "2023-11-14T22:13:20Z", log.IngestedAt)
		ev, err := codec.Decode(log)
		if err != nil {
			return err
		}
		decoded = append(decoded, ev)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, decoded, 2)
	require.Equal(t, sampleEvents()[0].Decoded, decoded[0].Decoded)
	require.Equal(t, uint64(2), decoded[1].Sequence)
}

func TestReadLinesSkipsBlankAndStopsOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("a\n\nb\nc\n"), 0o644))

	var lines []int
	stop := errors.New("stop")
	err := ReadLines(path, func(line int, data []byte) error {
		lines = append(lines, line)
		if string(data) == "b" {
			return stop
		}
		return nil
	})
	require.ErrorIs(t, err, stop)
	require.Equal(t, []int{1, 3}, lines)

	require.Error(t, ReadLines(filepath.Join(t.TempDir(), "missing"), func(int, []byte) error { return nil }))
}

func TestMultiSink(t *testing.T) {
	ctx := context.Background()
	a, b := NewBuffer(), NewBuffer()
	collect := func(buf *Buffer) Sink { return bufferSink{buf} }

	require.NoError(t, MultiSink{collect(a), nil, collect(b)}.PutEventBatch(ctx, sampleEvents()))
	require.Equal(t, 2, a.Len())
	require.Equal(t, 2, b.Len())

	boom := errors.New("boom")
	err := MultiSink{collect(a), failingSink{err: boom}}.PutEventBatch(ctx, sampleEvents())
	require.ErrorIs(t, err, boom)
}

func TestBufferDrain(t *testing.T) {
	buf := NewBuffer()
	for _, ev := range sampleEvents() {
		require.NoError(t, buf.Emit(context.Background(), ev))
	}
	drained := buf.Drain()
	require.Len(t, drained, 2)
	require.Zero(t, buf.Len())
	require.Empty(t, buf.Drain())
}

type bufferSink struct{ buf *Buffer }

func (s bufferSink) PutEventBatch(ctx context.Context, evs []model.PoolEvent) error {
	for _, ev := range evs {
		if err := s.buf.Emit(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}
