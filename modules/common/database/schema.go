package database

import (
	"context"

	log "github.com/sirupsen/logrus"
)

// schema - Postgres / SQLite 양쪽에서 동작하는 DDL
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		user_name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		credit INTEGER NOT NULL DEFAULT 0,
		created TIMESTAMP NOT NULL,
		modified TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS generation_jobs (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		kind TEXT NOT NULL,
		wardrobe_id TEXT REFERENCES generation_jobs(id),
		status TEXT NOT NULL,
		error_message TEXT,
		params TEXT NOT NULL,
		input_ref TEXT,
		result_ref TEXT,
		created TIMESTAMP NOT NULL,
		modified TIMESTAMP NOT NULL,
		started_at TIMESTAMP,
		completed_at TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_generation_jobs_user_kind ON generation_jobs (user_id, kind, created)`,
	`CREATE INDEX IF NOT EXISTS idx_generation_jobs_status ON generation_jobs (status, modified)`,
	`CREATE INDEX IF NOT EXISTS idx_generation_jobs_wardrobe ON generation_jobs (wardrobe_id)`,
	`CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		session_id TEXT NOT NULL UNIQUE,
		amount INTEGER NOT NULL,
		credits INTEGER NOT NULL,
		status TEXT NOT NULL,
		created TIMESTAMP NOT NULL,
		modified TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS credit_transactions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		amount INTEGER NOT NULL,
		balance_after INTEGER NOT NULL,
		kind TEXT NOT NULL,
		reference TEXT NOT NULL,
		description TEXT NOT NULL,
		created TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_credit_transactions_user ON credit_transactions (user_id, created)`,
}

// Migrate - 테이블 생성 (이미 있으면 건너뜀)
func (c *Client) Migrate(ctx context.Context) error {
	log.Println("🗄️  Applying database schema...")
	for _, stmt := range schema {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return persistErr("migrate", err)
		}
	}
	log.Printf("✅ Schema ready (%d statements)", len(schema))
	return nil
}
