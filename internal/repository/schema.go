package repository

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// migrations are applied in order on startup. Each statement is idempotent
// so re-running on boot is safe.
var migrations = []struct {
	name string
	sql  string
}{
	{
		name: "accounts",
		sql: `
			CREATE TABLE IF NOT EXISTS accounts (
				user_id BIGINT PRIMARY KEY,
				linked_account VARCHAR(255),
				wallet BIGINT NOT NULL DEFAULT 0 CHECK (wallet >= 0),
				vault BIGINT NOT NULL DEFAULT 0 CHECK (vault >= 0),
				lifetime_earned BIGINT NOT NULL DEFAULT 0,
				lifetime_spent BIGINT NOT NULL DEFAULT 0,
				is_vip BOOLEAN NOT NULL DEFAULT FALSE,
				power_rating BIGINT NOT NULL DEFAULT 0,
				equipped_item VARCHAR(255),
				last_checkin_at TIMESTAMPTZ,
				checkin_streak INT NOT NULL DEFAULT 0,
				total_checkins INT NOT NULL DEFAULT 0,
				win_streak INT NOT NULL DEFAULT 0,
				lose_streak INT NOT NULL DEFAULT 0,
				pity_counter INT NOT NULL DEFAULT 0,
				interest_marked_at TIMESTAMPTZ,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_accounts_wallet ON accounts(wallet DESC);
			CREATE UNIQUE INDEX IF NOT EXISTS idx_accounts_linked ON accounts(linked_account)
				WHERE linked_account IS NOT NULL;
		`,
	},
	{
		name: "ledger_entries",
		sql: `
			CREATE TABLE IF NOT EXISTS ledger_entries (
				id BIGSERIAL PRIMARY KEY,
				user_id BIGINT NOT NULL REFERENCES accounts(user_id) ON DELETE CASCADE,
				pool VARCHAR(16) NOT NULL,
				amount BIGINT NOT NULL,
				reason VARCHAR(50) NOT NULL,
				ref TEXT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_ledger_user_time ON ledger_entries(user_id, created_at DESC);
			CREATE INDEX IF NOT EXISTS idx_ledger_reason_time ON ledger_entries(reason, created_at DESC);
		`,
	},
	{
		name: "daily_counters",
		sql: `
			CREATE TABLE IF NOT EXISTS daily_counters (
				user_id BIGINT NOT NULL,
				name VARCHAR(50) NOT NULL,
				value BIGINT NOT NULL DEFAULT 0,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				PRIMARY KEY (user_id, name)
			);
		`,
	},
	{
		name: "buffs",
		sql: `
			CREATE TABLE IF NOT EXISTS buffs (
				user_id BIGINT NOT NULL,
				name VARCHAR(50) NOT NULL,
				charges INT NOT NULL DEFAULT 0,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				PRIMARY KEY (user_id, name)
			);
		`,
	},
	{
		name: "grants",
		sql: `
			CREATE TABLE IF NOT EXISTS grants (
				user_id BIGINT NOT NULL,
				grant_key VARCHAR(100) NOT NULL,
				amount BIGINT NOT NULL DEFAULT 0,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				PRIMARY KEY (user_id, grant_key)
			);
		`,
	},
	{
		name: "resources",
		sql: `
			CREATE TABLE IF NOT EXISTS resources (
				id UUID PRIMARY KEY,
				kind VARCHAR(20) NOT NULL,
				creator_id BIGINT,
				total_value BIGINT NOT NULL,
				total_slots BIGINT NOT NULL,
				remaining_value BIGINT NOT NULL,
				remaining_slots BIGINT NOT NULL,
				status VARCHAR(16) NOT NULL DEFAULT 'active',
				expires_at TIMESTAMPTZ NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_resources_status_expiry ON resources(status, expires_at);
		`,
	},
	{
		name: "resource_claims",
		sql: `
			CREATE TABLE IF NOT EXISTS resource_claims (
				id BIGSERIAL PRIMARY KEY,
				resource_id UUID NOT NULL REFERENCES resources(id) ON DELETE CASCADE,
				claimant_id BIGINT NOT NULL,
				amount BIGINT NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				UNIQUE (resource_id, claimant_id)
			);
		`,
	},
	{
		name: "firstplay_resources",
		sql: `
			CREATE TABLE IF NOT EXISTS firstplay_items (
				item_id VARCHAR(255) PRIMARY KEY,
				resource_id UUID NOT NULL REFERENCES resources(id) ON DELETE CASCADE,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
		`,
	},
}

// Migrate applies the database schema.
func Migrate(ctx context.Context, db DBTX) error {
	for _, m := range migrations {
		if _, err := db.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("migration %s: %w", m.name, err)
		}
		log.Debug().Str("migration", m.name).Msg("Migration applied")
	}
	log.Info().Int("count", len(migrations)).Msg("Database migrations completed")
	return nil
}
