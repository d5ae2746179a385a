package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/devtooligan/singularity-v2/internal/config"
	"github.com/devtooligan/singularity-v2/internal/events"
	"github.com/devtooligan/singularity-v2/internal/ledger"
	"github.com/devtooligan/singularity-v2/internal/metrics"
	"github.com/devtooligan/singularity-v2/internal/registry"
	"github.com/devtooligan/singularity-v2/internal/replay"
	"github.com/devtooligan/singularity-v2/internal/storage"
	"github.com/devtooligan/singularity-v2/internal/storage/postgres"
	"github.com/devtooligan/singularity-v2/internal/storage/redis"
)

func runReplay(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadReplay(configFile(cmd), cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Script == "" {
		return fmt.Errorf("script path is required")
	}
	runCfg, err := replayRunConfig(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sinks := storage.MultiSink{storage.NewJsonlStorage(cfg.Out)}
	deps := replay.Deps{Logger: logger}

	if cfg.LogsOut != "" {
		codec, err := events.NewCodec()
		if err != nil {
			return err
		}
		sinks = append(sinks, storage.NewLogSink(storage.NewJsonlStorage(cfg.LogsOut), codec))
	}

	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		sinks = append(sinks, store)
		deps.Snapshots = store
	}

	if cfg.RedisAddr != "" {
		publisher, err := redis.New(ctx, redis.ClientConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, cfg.RedisPrefix)
		if err != nil {
			return err
		}
		defer publisher.Close()
		sinks = append(sinks, publisher)
	}

	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		recorder, err := metrics.NewRecorder(reg)
		if err != nil {
			return err
		}
		deps.Recorder = recorder

		server := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("metrics server stopped", zap.Error(err))
			}
		}()
		defer server.Close()
	}
	deps.Sink = sinks

	runner, err := replay.NewRunner(runCfg, deps)
	if err != nil {
		return err
	}

	logger.Info("replay start",
		zap.String("script", cfg.Script),
		zap.String("pool", runCfg.Pool.Hex()),
		zap.String("asset", runCfg.Ledger.Asset.Hex()),
		zap.Bool("stablecoin", cfg.Stablecoin),
		zap.Int("batch_size", cfg.BatchSize),
		zap.String("out", cfg.Out),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
		zap.Bool("checkpoint_enabled", cfg.CheckpointEnabled),
	)

	res, err := runner.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "applied=%d failed=%d replayed=%d sequence=%d assets=%s liabilities=%s\n",
		res.Applied, res.Failed, res.Replayed, res.Snapshot.Sequence, res.Snapshot.Assets, res.Snapshot.Liabilities)
	return nil
}

func replayRunConfig(cfg config.ReplayConfig) (replay.RunConfig, error) {
	pool, err := config.ParseAddress("pool", cfg.Pool)
	if err != nil {
		return replay.RunConfig{}, err
	}
	asset, err := config.ParseAddress("asset", cfg.Asset)
	if err != nil {
		return replay.RunConfig{}, err
	}
	router, err := config.ParseAddress("router", cfg.Router)
	if err != nil {
		return replay.RunConfig{}, err
	}
	factory, err := config.ParseAddress("factory", cfg.Factory)
	if err != nil {
		return replay.RunConfig{}, err
	}
	oracleAddr, err := config.ParseOptionalAddress("oracle", cfg.Oracle)
	if err != nil {
		return replay.RunConfig{}, err
	}
	baseFee, err := config.ParseWad("base fee", cfg.BaseFee)
	if err != nil {
		return replay.RunConfig{}, err
	}
	depositCap, err := config.ParseUnits("deposit cap", cfg.DepositCap, cfg.Decimals)
	if err != nil {
		return replay.RunConfig{}, err
	}
	startTime, err := config.ParseTimestamp(cfg.StartTime)
	if err != nil {
		return replay.RunConfig{}, fmt.Errorf("parse start-time: %w", err)
	}
	if startTime == 0 {
		startTime = uint64(time.Now().Unix())
	}

	return replay.RunConfig{
		ScriptPath: cfg.Script,
		Pool:       pool,
		ChainID:    cfg.ChainID,
		Ledger: ledger.Params{
			Asset:        asset,
			Decimals:     cfg.Decimals,
			IsStablecoin: cfg.Stablecoin,
			BaseFee:      baseFee,
			DepositCap:   depositCap,
		},
		Registry: registry.Params{
			Router:           router,
			Factory:          factory,
			Oracle:           oracleAddr,
			ProtocolFeeShare: cfg.ProtocolFeeShare,
			OracleSens:       cfg.OracleSens,
			Tranche:          cfg.Tranche,
		},
		InitialPrice:      cfg.InitialPrice,
		StartTime:         startTime,
		BatchSize:         cfg.BatchSize,
		CheckpointPath:    cfg.Checkpoint,
		CheckpointEnabled: cfg.CheckpointEnabled,
		MaxRetries:        cfg.MaxRetries,
		RetryBackoff:      cfg.RetryBackoff,
	}, nil
}
