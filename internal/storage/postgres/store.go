package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/devtooligan/singularity-v2/internal/model"
)

// Store provides Postgres persistence for pool events, snapshots and metrics.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the tables the store writes to.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// PutEventBatch inserts pool events; replays of an event already stored are ignored.
func (s *Store) PutEventBatch(ctx context.Context, events []model.PoolEvent) error {
	if len(events) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, ev := range events {
		decoded, err := json.Marshal(ev.Decoded)
		if err != nil {
			return fmt.Errorf("marshal event %s: %w", ev.ID, err)
		}
		batch.Queue(`
			INSERT INTO pool_events (
				id, chain_id, pool_address, sequence, asset, event_name, event_ts, decoded, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
			ON CONFLICT (chain_id, pool_address, sequence) DO NOTHING
		`,
			ev.ID,
			int64(ev.ChainID),
			ev.Pool,
			int64(ev.Sequence),
			ev.Asset,
			ev.EventName,
			int64(ev.Timestamp),
			decoded,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range events {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// SaveSnapshot upserts the latest ledger snapshot of a pool.
func (s *Store) SaveSnapshot(ctx context.Context, chainID uint64, snap model.PoolSnapshot) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO pool_snapshots (
			chain_id, pool_address, asset, decimals, is_stablecoin, paused, deposit_cap,
			assets, liabilities, base_fee, protocol_fees, total_supply, price_per_share,
			collateralization_ratio, sequence, snapshot_ts, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,now())
		ON CONFLICT (chain_id, pool_address)
		DO UPDATE SET
			paused = EXCLUDED.paused,
			deposit_cap = EXCLUDED.deposit_cap,
			assets = EXCLUDED.assets,
			liabilities = EXCLUDED.liabilities,
			base_fee = EXCLUDED.base_fee,
			protocol_fees = EXCLUDED.protocol_fees,
			total_supply = EXCLUDED.total_supply,
			price_per_share = EXCLUDED.price_per_share,
			collateralization_ratio = EXCLUDED.collateralization_ratio,
			sequence = EXCLUDED.sequence,
			snapshot_ts = EXCLUDED.snapshot_ts,
			updated_at = now()
		WHERE pool_snapshots.sequence <= EXCLUDED.sequence
	`,
		int64(chainID),
		snap.Pool,
		snap.Asset,
		int16(snap.Decimals),
		snap.IsStablecoin,
		snap.Paused,
		snap.DepositCap,
		snap.Assets,
		snap.Liabilities,
		snap.BaseFee,
		snap.ProtocolFees,
		snap.TotalSupply,
		snap.PricePerShare,
		snap.CollateralizationRatio,
		int64(snap.Sequence),
		int64(snap.Timestamp),
	)
	return err
}

// UpsertWindowMetrics inserts or updates window metrics.
func (s *Store) UpsertWindowMetrics(ctx context.Context, metrics []model.PoolWindowMetrics) error {
	if len(metrics) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, m := range metrics {
		batch.Queue(`
			INSERT INTO pool_window_metrics (
				chain_id, pool_address, window_size_seconds, window_start_ts, window_end_ts,
				swap_in_count, swap_out_count, amount_in, amount_out, value_in, value_out,
				deposit_count, withdraw_count, deposited, withdrawn, fees_collected, net_flow,
				admin_event_count, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,now(),now())
			ON CONFLICT (chain_id, pool_address, window_size_seconds, window_start_ts)
			DO UPDATE SET
				window_end_ts = EXCLUDED.window_end_ts,
				swap_in_count = EXCLUDED.swap_in_count,
				swap_out_count = EXCLUDED.swap_out_count,
				amount_in = EXCLUDED.amount_in,
				amount_out = EXCLUDED.amount_out,
				value_in = EXCLUDED.value_in,
				value_out = EXCLUDED.value_out,
				deposit_count = EXCLUDED.deposit_count,
				withdraw_count = EXCLUDED.withdraw_count,
				deposited = EXCLUDED.deposited,
				withdrawn = EXCLUDED.withdrawn,
				fees_collected = EXCLUDED.fees_collected,
				net_flow = EXCLUDED.net_flow,
				admin_event_count = EXCLUDED.admin_event_count,
				updated_at = now()
		`,
			int64(m.ChainID),
			m.PoolAddress,
			m.WindowSizeSecs,
			m.WindowStart,
			m.WindowEnd,
			int64(m.SwapInCount),
			int64(m.SwapOutCount),
			m.AmountIn,
			m.AmountOut,
			m.ValueIn,
			m.ValueOut,
			int64(m.DepositCount),
			int64(m.WithdrawCount),
			m.Deposited,
			m.Withdrawn,
			m.FeesCollected,
			m.NetFlow,
			int64(m.AdminEventCount),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range metrics {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LoadState returns last_processed_ts for a name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var ts int64
	row := s.pool.QueryRow(ctx, `SELECT last_processed_ts FROM aggregator_state WHERE name=$1`, name)
	if err := row.Scan(&ts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(ts), true, nil
}

// SaveState upserts last_processed_ts for a name.
func (s *Store) SaveState(ctx context.Context, name string, ts uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO aggregator_state (name, last_processed_ts, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed_ts = EXCLUDED.last_processed_ts, updated_at = now()
	`, name, int64(ts))
	return err
}
