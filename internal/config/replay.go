package config

import (
	"time"

	"github.com/spf13/pflag"
)

// ReplayConfig holds configuration for the replay command.
type ReplayConfig struct {
	Script            string
	Pool              string
	ChainID           uint64
	Asset             string
	Decimals          uint8
	Stablecoin        bool
	BaseFee           string
	DepositCap        string
	Router            string
	Factory           string
	Oracle            string
	ProtocolFeeShare  uint64
	OracleSens        uint64
	Tranche           string
	InitialPrice      string
	StartTime         string
	BatchSize         int
	Out               string
	LogsOut           string
	Checkpoint        string
	CheckpointEnabled bool
	MaxRetries        int
	RetryBackoff      time.Duration
	PGDSN             string
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	RedisPrefix       string
	MetricsAddr       string
	Logging           Logging
}

// LoadReplay merges config file, environment variables, and flags into ReplayConfig.
func LoadReplay(cfgFile string, flags *pflag.FlagSet) (ReplayConfig, error) {
	v, err := load(cfgFile, flags, map[string]interface{}{
		"decimals":           18,
		"stablecoin":         false,
		"base-fee":           "0.0004",
		"protocol-fee-share": uint64(10),
		"oracle-sens":        uint64(3600),
		"tranche":            "A",
		"initial-price":      "1",
		"batch-size":         100,
		"out":                "./data/pool_events.jsonl",
		"checkpoint":         "./data/replay_checkpoint.json",
		"checkpoint-enabled": true,
		"max-retries":        5,
		"retry-backoff":      500 * time.Millisecond,
		"redis-prefix":       "pool",
	})
	if err != nil {
		return ReplayConfig{}, err
	}

	return ReplayConfig{
		Script:            v.GetString("script"),
		Pool:              v.GetString("pool"),
		ChainID:           v.GetUint64("chain-id"),
		Asset:             v.GetString("asset"),
		Decimals:          uint8(v.GetUint("decimals")),
		Stablecoin:        v.GetBool("stablecoin"),
		BaseFee:           v.GetString("base-fee"),
		DepositCap:        v.GetString("deposit-cap"),
		Router:            v.GetString("router"),
		Factory:           v.GetString("factory"),
		Oracle:            v.GetString("oracle"),
		ProtocolFeeShare:  v.GetUint64("protocol-fee-share"),
		OracleSens:        v.GetUint64("oracle-sens"),
		Tranche:           v.GetString("tranche"),
		InitialPrice:      v.GetString("initial-price"),
		StartTime:         v.GetString("start-time"),
		BatchSize:         v.GetInt("batch-size"),
		Out:               v.GetString("out"),
		LogsOut:           v.GetString("logs-out"),
		Checkpoint:        v.GetString("checkpoint"),
		CheckpointEnabled: v.GetBool("checkpoint-enabled"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
		PGDSN:             v.GetString("pg-dsn"),
		RedisAddr:         v.GetString("redis-addr"),
		RedisPassword:     v.GetString("redis-password"),
		RedisDB:           v.GetInt("redis-db"),
		RedisPrefix:       v.GetString("redis-prefix"),
		MetricsAddr:       v.GetString("metrics-addr"),
		Logging:           loadLogging(v),
	}, nil
}
