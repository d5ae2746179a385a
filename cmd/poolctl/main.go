package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/devtooligan/singularity-v2/internal/config"
)

func main() {
	root := &cobra.Command{
		Use:          "poolctl",
		Short:        "Single-asset liquidity pool tooling",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().String("log-file", "", "also write logs to this file, rotated")

	replayCmd := &cobra.Command{
		Use:   "replay",
		Short: "Run a script of pool operations and store the events",
		RunE:  runReplay,
	}

	replayCmd.Flags().String("script", "", "operations JSONL")
	replayCmd.Flags().String("pool", "", "pool address")
	replayCmd.Flags().Uint64("chain-id", 0, "chain id recorded on events")
	replayCmd.Flags().String("asset", "", "pool asset address")
	replayCmd.Flags().Uint("decimals", 18, "asset decimals")
	replayCmd.Flags().Bool("stablecoin", false, "treat the asset as a stablecoin")
	replayCmd.Flags().String("base-fee", "0.0004", "base trading fee as a fraction")
	replayCmd.Flags().String("deposit-cap", "", "deposit cap in asset units, empty for none")
	replayCmd.Flags().String("router", "", "router address")
	replayCmd.Flags().String("factory", "", "factory (admin) address")
	replayCmd.Flags().String("oracle", "", "oracle address recorded in the registry")
	replayCmd.Flags().Uint64("protocol-fee-share", 10, "protocol share of trading fees, percent")
	replayCmd.Flags().Uint64("oracle-sens", 3600, "quote age in seconds at which trading fees double")
	replayCmd.Flags().String("tranche", "A", "pool tranche")
	replayCmd.Flags().String("initial-price", "1", "starting oracle price")
	replayCmd.Flags().String("start-time", "", "starting clock (unix seconds or RFC3339), default now")
	replayCmd.Flags().Int("batch-size", 100, "script lines per storage batch")
	replayCmd.Flags().String("out", "./data/pool_events.jsonl", "event records JSONL")
	replayCmd.Flags().String("logs-out", "", "optional ABI-encoded logs JSONL")
	replayCmd.Flags().String("checkpoint", "./data/replay_checkpoint.json", "checkpoint file path")
	replayCmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	replayCmd.Flags().Int("max-retries", 5, "maximum retry attempts for storage writes")
	replayCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	replayCmd.Flags().String("pg-dsn", "", "optional Postgres DSN for events and snapshots")
	replayCmd.Flags().String("redis-addr", "", "optional Redis address to publish events")
	replayCmd.Flags().String("redis-password", "", "Redis password")
	replayCmd.Flags().Int("redis-db", 0, "Redis database")
	replayCmd.Flags().String("redis-prefix", "pool", "Redis channel prefix")
	replayCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address")

	root.AddCommand(replayCmd)

	quoteCmd := &cobra.Command{
		Use:   "quote",
		Short: "Price fees and slippage for a pool state against a live feed",
		RunE:  runQuote,
	}

	quoteCmd.Flags().String("rpc", "", "RPC URL")
	quoteCmd.Flags().String("feed", "", "price feed (aggregator) address")
	quoteCmd.Flags().String("asset", "", "pool asset address")
	quoteCmd.Flags().Uint("decimals", 0, "asset decimals, 0 to read from the token")
	quoteCmd.Flags().Bool("stablecoin", false, "treat the asset as a stablecoin")
	quoteCmd.Flags().String("assets", "", "pool assets in asset units")
	quoteCmd.Flags().String("liabilities", "", "pool liabilities in asset units")
	quoteCmd.Flags().String("base-fee", "0.0004", "base trading fee as a fraction")
	quoteCmd.Flags().Uint64("protocol-fee-share", 10, "protocol share of trading fees, percent")
	quoteCmd.Flags().Uint64("oracle-sens", 3600, "quote age in seconds at which trading fees double")
	quoteCmd.Flags().String("amount", "", "amount to price, in asset units")

	root.AddCommand(quoteCmd)

	decodeCmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode ABI-encoded pool logs into event records",
		RunE:  runDecode,
	}

	decodeCmd.Flags().String("in", "", "input logs JSONL")
	decodeCmd.Flags().String("out", "./data/pool_events.jsonl", "output event records JSONL")
	decodeCmd.Flags().String("errors", "./data/decode_errors.jsonl", "decode errors JSONL")

	root.AddCommand(decodeCmd)

	aggregateCmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Aggregate pool events into window metrics",
		RunE:  runAggregate,
	}

	aggregateCmd.Flags().String("in", "", "input JSONL")
	aggregateCmd.Flags().String("format", "events", "input format (events, logs)")
	aggregateCmd.Flags().String("window", "5m", "aggregation window (e.g. 1m, 5m, 1h)")
	aggregateCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	aggregateCmd.Flags().Int("batch-size", 1000, "batch size for DB writes")
	aggregateCmd.Flags().String("state-file", "", "optional local state file for progress tracking")
	aggregateCmd.Flags().String("recompute-from", "", "recompute from timestamp (unix seconds or RFC3339)")

	root.AddCommand(aggregateCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// newLogger builds a production JSON logger, teed into a rotating file when one is given.
func newLogger(opts config.Logging) (*zap.Logger, error) {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = level
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	if opts.File == "" {
		return logger, nil
	}

	rotating := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    100, // megabytes
		MaxBackups: 5,
		MaxAge:     28, // days
		Compress:   true,
	}
	fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(cfg.EncoderConfig), zapcore.AddSync(rotating), level)
	return logger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, fileCore)
	})), nil
}

func configFile(cmd *cobra.Command) string {
	cfgFile, _ := cmd.Flags().GetString("config")
	return cfgFile
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
