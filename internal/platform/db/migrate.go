package db

import (
	"context"
	"database/sql"
)

// Migrate creates the schema if it does not exist yet. Statements are
// idempotent so the call is safe on every startup.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS channels (
		id BIGSERIAL PRIMARY KEY,
		login TEXT NOT NULL UNIQUE,
		owner_account_id BIGINT,
		enabled BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS channel_settings (
		channel_id BIGINT PRIMARY KEY REFERENCES channels(id),
		min_interval_minutes INT,
		max_interval_minutes INT,
		active_timeout_minutes INT,
		claim_timeout_minutes INT,
		drops_enabled BOOLEAN NOT NULL DEFAULT TRUE,
		updated_at TIMESTAMPTZ
	)`,

	`CREATE TABLE IF NOT EXISTS rewards (
		id BIGSERIAL PRIMARY KEY,
		channel_id BIGINT,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		weight INT NOT NULL DEFAULT 0,
		quantity INT NOT NULL DEFAULT 1,
		enabled BOOLEAN NOT NULL DEFAULT FALSE
	)`,

	`CREATE TABLE IF NOT EXISTS draws (
		id BIGSERIAL PRIMARY KEY,
		channel TEXT NOT NULL,
		nickname TEXT NOT NULL,
		reward_id BIGINT NOT NULL REFERENCES rewards(id),
		created_at TIMESTAMPTZ NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		expires_at TIMESTAMPTZ,
		notified BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_draws_pending ON draws (nickname, status) WHERE status = 'pending'`,

	`CREATE TABLE IF NOT EXISTS active_users (
		id BIGSERIAL PRIMARY KEY,
		channel TEXT NOT NULL,
		nickname TEXT NOT NULL,
		last_active_at TIMESTAMPTZ NOT NULL,
		UNIQUE (channel, nickname)
	)`,

	`CREATE TABLE IF NOT EXISTS watch_time (
		channel TEXT NOT NULL,
		nickname TEXT NOT NULL,
		seconds BIGINT NOT NULL DEFAULT 0,
		last_seen_at TIMESTAMPTZ,
		PRIMARY KEY (channel, nickname)
	)`,

	`CREATE TABLE IF NOT EXISTS stream_sessions (
		id BIGSERIAL PRIMARY KEY,
		channel TEXT NOT NULL,
		started_at TIMESTAMPTZ NOT NULL,
		ended_at TIMESTAMPTZ
	)`,

	`CREATE TABLE IF NOT EXISTS stream_watch_time (
		session_id BIGINT NOT NULL REFERENCES stream_sessions(id),
		nickname TEXT NOT NULL,
		seconds BIGINT NOT NULL DEFAULT 0,
		last_seen_at TIMESTAMPTZ,
		PRIMARY KEY (session_id, nickname)
	)`,

	`CREATE TABLE IF NOT EXISTS linked_accounts (
		id BIGSERIAL PRIMARY KEY,
		account_id BIGINT NOT NULL UNIQUE,
		nickname TEXT,
		verification_code TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS gold_balances (
		account_id BIGINT PRIMARY KEY,
		balance BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
		updated_at TIMESTAMPTZ
	)`,

	`CREATE TABLE IF NOT EXISTS gold_ledger (
		id BIGSERIAL PRIMARY KEY,
		account_id BIGINT NOT NULL,
		amount BIGINT NOT NULL,
		source_type TEXT NOT NULL,
		source_id BIGINT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		UNIQUE (account_id, source_type, source_id)
	)`,

	`CREATE TABLE IF NOT EXISTS item_claims (
		id BIGSERIAL PRIMARY KEY,
		draw_id BIGINT NOT NULL UNIQUE,
		account_id BIGINT NOT NULL,
		nickname TEXT,
		reward_name TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'available',
		claimed_at TIMESTAMPTZ
	)`,

	`CREATE TABLE IF NOT EXISTS conversion_requests (
		id BIGSERIAL PRIMARY KEY,
		account_id BIGINT NOT NULL,
		draw_id BIGINT NOT NULL UNIQUE,
		reward_name TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		gold_amount BIGINT,
		reason TEXT,
		requested_at TIMESTAMPTZ,
		decided_at TIMESTAMPTZ,
		admin_id BIGINT
	)`,

	`CREATE TABLE IF NOT EXISTS gold_checks (
		id BIGSERIAL PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		amount BIGINT NOT NULL,
		max_activations INT NOT NULL,
		activated_count INT NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'active',
		created_by BIGINT,
		created_at TIMESTAMPTZ,
		channel_id BIGINT
	)`,

	`CREATE TABLE IF NOT EXISTS gold_check_activations (
		id BIGSERIAL PRIMARY KEY,
		check_id BIGINT NOT NULL REFERENCES gold_checks(id),
		account_id BIGINT NOT NULL,
		activated_at TIMESTAMPTZ,
		UNIQUE (check_id, account_id)
	)`,

	`CREATE TABLE IF NOT EXISTS giveaway_triggers (
		id BIGSERIAL PRIMARY KEY,
		requested_by BIGINT,
		created_at TIMESTAMPTZ NOT NULL,
		processed_at TIMESTAMPTZ,
		trigger_type TEXT NOT NULL DEFAULT 'random',
		channel_id BIGINT NOT NULL,
		reward_id BIGINT,
		winners_count INT,
		planned_giveaway_id BIGINT,
		guess_number INT,
		guess_min INT,
		guess_max INT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_triggers_unprocessed ON giveaway_triggers (channel_id, id) WHERE processed_at IS NULL`,

	`CREATE TABLE IF NOT EXISTS planned_giveaways (
		id BIGSERIAL PRIMARY KEY,
		channel_id BIGINT NOT NULL,
		reward_id BIGINT NOT NULL REFERENCES rewards(id),
		title TEXT NOT NULL,
		winners_count INT NOT NULL DEFAULT 1,
		status TEXT NOT NULL DEFAULT 'planned',
		created_by BIGINT,
		created_at TIMESTAMPTZ,
		triggered_at TIMESTAMPTZ
	)`,
}
