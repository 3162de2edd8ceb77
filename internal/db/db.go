package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pgx pool and verifies the connection.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// Migrate applies the application schema. Statements are idempotent so
// the call is safe on every startup. River's own tables are migrated
// separately via rivermigrate.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schema)
	return err
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
    id               UUID PRIMARY KEY,
    name             TEXT NOT NULL,
    email            TEXT NOT NULL UNIQUE,
    password_hash    TEXT NOT NULL,
    credit_balance   BIGINT NOT NULL DEFAULT 0 CHECK (credit_balance >= 0),
    escrow_balance   BIGINT NOT NULL DEFAULT 0 CHECK (escrow_balance >= 0),
    trust_score      INT NOT NULL DEFAULT 50,
    role             TEXT NOT NULL DEFAULT 'user',
    redeemed_rewards INT NOT NULL DEFAULT 0,
    created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS rewards (
    id          UUID PRIMARY KEY,
    owner_id    UUID NOT NULL REFERENCES users(id),
    title       TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    code        TEXT NOT NULL,
    price       BIGINT NOT NULL CHECK (price > 0),
    status      TEXT NOT NULL DEFAULT 'available',
    image_url   TEXT NOT NULL DEFAULT '',
    expires_at  TIMESTAMPTZ,
    redeemed_by UUID REFERENCES users(id),
    redeemed_at TIMESTAMPTZ,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS transactions (
    id             UUID PRIMARY KEY,
    from_user_id   UUID NOT NULL REFERENCES users(id),
    to_user_id     UUID NOT NULL REFERENCES users(id),
    reward_id      UUID NOT NULL REFERENCES rewards(id),
    credits        BIGINT NOT NULL CHECK (credits > 0),
    escrow_status  TEXT NOT NULL DEFAULT 'held',
    revealed_at    TIMESTAMPTZ,
    dispute_reason TEXT NOT NULL DEFAULT '',
    evidence_url   TEXT NOT NULL DEFAULT '',
    admin_note     TEXT NOT NULL DEFAULT '',
    resolved_at    TIMESTAMPTZ,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_transactions_sweep
    ON transactions (created_at) WHERE escrow_status = 'held';

CREATE TABLE IF NOT EXISTS ledger_entries (
    id             UUID PRIMARY KEY,
    user_id        UUID NOT NULL REFERENCES users(id),
    transaction_id UUID REFERENCES transactions(id),
    entry_type     TEXT NOT NULL,
    amount         BIGINT NOT NULL,
    balance_after  BIGINT,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_ledger_entries_user
    ON ledger_entries (user_id, created_at DESC);
`
