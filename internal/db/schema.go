package db

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            TEXT PRIMARY KEY,
		email         TEXT NOT NULL UNIQUE,
		username      TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS user_stats (
		user_id           TEXT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
		tokens            INTEGER NOT NULL DEFAULT 0,
		hours_driven      DOUBLE PRECISION NOT NULL DEFAULT 0,
		last_tokens       INTEGER NOT NULL DEFAULT 0,
		last_hours_driven DOUBLE PRECISION NOT NULL DEFAULT 0,
		updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS drive_sessions (
		id                  TEXT PRIMARY KEY,
		user_id             TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		started_at          TIMESTAMPTZ NOT NULL,
		ended_at            TIMESTAMPTZ NOT NULL,
		duration_sec        DOUBLE PRECISION NOT NULL,
		distance_km         DOUBLE PRECISION NOT NULL DEFAULT 0,
		tokens_earned       INTEGER NOT NULL DEFAULT 0,
		pickups             INTEGER NOT NULL DEFAULT 0,
		speed_limit_exceeds INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS drive_sessions_user_ended_idx ON drive_sessions (user_id, ended_at DESC)`,
}

// EnsureSchema creates the tables the service needs if they are missing.
func EnsureSchema(ctx context.Context, q Querier) error {
	for i, stmt := range schema {
		if _, err := q.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	return nil
}
