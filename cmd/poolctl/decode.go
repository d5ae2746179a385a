package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/devtooligan/singularity-v2/internal/config"
	"github.com/devtooligan/singularity-v2/internal/events"
	"github.com/devtooligan/singularity-v2/internal/model"
	"github.com/devtooligan/singularity-v2/internal/storage"
)

const decodeBatchSize = 500

func runDecode(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadDecode(configFile(cmd), cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.In == "" {
		return fmt.Errorf("input path is required")
	}
	if cfg.Out == "" {
		return fmt.Errorf("output path is required")
	}
	if cfg.Errors == "" {
		return fmt.Errorf("errors path is required")
	}
	for _, path := range []string{cfg.Out, cfg.Errors} {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("truncate %s: %w", path, err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	codec, err := events.NewCodec()
	if err != nil {
		return err
	}
	out := storage.NewJsonlStorage(cfg.Out)
	errOut := storage.NewJsonlStorage(cfg.Errors)

	logger.Info("decode start",
		zap.String("in", cfg.In),
		zap.String("out", cfg.Out),
		zap.String("errors", cfg.Errors),
	)

	var (
		total, decoded, skipped, failed int
		batch                           []model.PoolEvent
		failures                        []model.DecodeError
	)
	flush := func() error {
		if err := out.PutEventBatch(ctx, batch); err != nil {
			return err
		}
		if err := errOut.PutDecodeErrors(failures); err != nil {
			return err
		}
		batch, failures = batch[:0], failures[:0]
		return nil
	}

	err = storage.ReadLines(cfg.In, func(_ int, data []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		total++

		var record model.LogRecord
		if err := json.Unmarshal(data, &record); err != nil {
			failed++
			failures = append(failures, model.DecodeError{Error: err.Error()})
		} else if len(record.Topics) == 0 {
			failed++
			failures = append(failures, decodeErrorFromRecord(record, fmt.Errorf("missing topic0")))
		} else if !codec.CanDecode(record.Topics[0]) {
			skipped++
		} else if ev, err := codec.Decode(record); err != nil {
			failed++
			failures = append(failures, decodeErrorFromRecord(record, err))
		} else {
			decoded++
			batch = append(batch, *ev)
		}

		if len(batch)+len(failures) >= decodeBatchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := flush(); err != nil {
		return err
	}

	logger.Info("decode complete",
		zap.Int("total", total),
		zap.Int("decoded", decoded),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed),
	)
	return nil
}

func decodeErrorFromRecord(record model.LogRecord, err error) model.DecodeError {
	topic0 := ""
	if len(record.Topics) > 0 {
		topic0 = record.Topics[0]
	}
	return model.DecodeError{
		BlockNumber: record.BlockNumber,
		TxHash:      record.TxHash,
		Address:     record.Address,
		Topic0:      topic0,
		Error:       err.Error(),
	}
}
