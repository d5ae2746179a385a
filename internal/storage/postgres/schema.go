package postgres

// Amounts are stored as NUMERIC(78,0) so the full uint256 range fits.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS pool_events (
		id TEXT NOT NULL,
		chain_id BIGINT NOT NULL,
		pool_address TEXT NOT NULL,
		sequence BIGINT NOT NULL,
		asset TEXT NOT NULL,
		event_name TEXT NOT NULL,
		event_ts BIGINT NOT NULL,
		decoded JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (chain_id, pool_address, sequence)
	)`,
	`CREATE TABLE IF NOT EXISTS pool_snapshots (
		chain_id BIGINT NOT NULL,
		pool_address TEXT NOT NULL,
		asset TEXT NOT NULL,
		decimals SMALLINT NOT NULL,
		is_stablecoin BOOLEAN NOT NULL,
		paused BOOLEAN NOT NULL,
		deposit_cap NUMERIC(78,0) NOT NULL,
		assets NUMERIC(78,0) NOT NULL,
		liabilities NUMERIC(78,0) NOT NULL,
		base_fee NUMERIC(78,0) NOT NULL,
		protocol_fees NUMERIC(78,0) NOT NULL,
		total_supply NUMERIC(78,0) NOT NULL,
		price_per_share NUMERIC(78,0) NOT NULL,
		collateralization_ratio NUMERIC(78,0) NOT NULL,
		sequence BIGINT NOT NULL,
		snapshot_ts BIGINT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (chain_id, pool_address)
	)`,
	`CREATE TABLE IF NOT EXISTS pool_window_metrics (
		chain_id BIGINT NOT NULL,
		pool_address TEXT NOT NULL,
		window_size_seconds BIGINT NOT NULL,
		window_start_ts TIMESTAMPTZ NOT NULL,
		window_end_ts TIMESTAMPTZ NOT NULL,
		swap_in_count BIGINT NOT NULL,
		swap_out_count BIGINT NOT NULL,
		amount_in NUMERIC(78,0) NOT NULL,
		amount_out NUMERIC(78,0) NOT NULL,
		value_in NUMERIC(78,0) NOT NULL,
		value_out NUMERIC(78,0) NOT NULL,
		deposit_count BIGINT NOT NULL,
		withdraw_count BIGINT NOT NULL,
		deposited NUMERIC(78,0) NOT NULL,
		withdrawn NUMERIC(78,0) NOT NULL,
		fees_collected NUMERIC(78,0) NOT NULL,
		net_flow NUMERIC(79,0) NOT NULL,
		admin_event_count BIGINT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (chain_id, pool_address, window_size_seconds, window_start_ts)
	)`,
	`CREATE TABLE IF NOT EXISTS aggregator_state (
		name TEXT PRIMARY KEY,
		last_processed_ts BIGINT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
}
