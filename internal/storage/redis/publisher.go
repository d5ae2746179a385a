// Package redis publishes committed pool events over Redis Pub/Sub.
package redis

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/devtooligan/singularity-v2/internal/model"
)

// ClientConfig holds connection parameters for the Redis client.
type ClientConfig struct {
	Addr       string
	Password   string
	DB         int
	TLSEnabled bool
}

// Publisher sends every event record to a per-pool channel.
type Publisher struct {
	rdb    *redis.Client
	prefix string
}

// New connects, pings, and returns a publisher using the given channel prefix.
func New(ctx context.Context, cfg ClientConfig, prefix string) (*Publisher, error) {
	opts := &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	if prefix == "" {
		prefix = "pool"
	}
	return &Publisher{rdb: rdb, prefix: prefix}, nil
}

// Channel returns the channel events of the given pool go to.
func (p *Publisher) Channel(pool string) string {
	return p.prefix + ":" + strings.ToLower(pool) + ":events"
}

// PutEventBatch publishes the batch in one pipeline.
func (p *Publisher) PutEventBatch(ctx context.Context, events []model.PoolEvent) error {
	if len(events) == 0 {
		return nil
	}
	pipe := p.rdb.Pipeline()
	for _, ev := range events {
		record, err := ev.Record()
		if err != nil {
			return fmt.Errorf("redis: marshal event %s: %w", ev.ID, err)
		}
		payload, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("redis: marshal event %s: %w", ev.ID, err)
		}
		pipe.Publish(ctx, p.Channel(ev.Pool), payload)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: publish %s: %w", p.Channel(events[0].Pool), err)
	}
	return nil
}

// Close closes the Redis connection.
func (p *Publisher) Close() error {
	return p.rdb.Close()
}
