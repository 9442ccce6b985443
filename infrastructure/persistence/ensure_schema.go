package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var distributionTables = []string{
	`CREATE TABLE IF NOT EXISTS oauth_tokens (
		id BIGSERIAL PRIMARY KEY,
		creator_id TEXT NOT NULL,
		platform TEXT NOT NULL,
		access_token TEXT NOT NULL,
		refresh_token TEXT NOT NULL DEFAULT '',
		access_token_secret TEXT NOT NULL DEFAULT '',
		expires_at TIMESTAMPTZ NULL,
		scopes TEXT NOT NULL DEFAULT '',
		external_user_id TEXT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		UNIQUE (creator_id, platform)
	)`,
	`CREATE TABLE IF NOT EXISTS distribution_records (
		id BIGSERIAL PRIMARY KEY,
		creator_id TEXT NOT NULL,
		platform TEXT NOT NULL,
		status TEXT NOT NULL,
		external_id TEXT NULL,
		permalink TEXT NULL,
		error_message TEXT NULL,
		attempt_count INT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS distribution_audit (
		id BIGSERIAL PRIMARY KEY,
		record_id BIGINT NOT NULL REFERENCES distribution_records(id) ON DELETE CASCADE,
		creator_id TEXT NOT NULL,
		platform TEXT NOT NULL,
		operation TEXT NOT NULL,
		status TEXT NOT NULL,
		error_message TEXT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS distribution_records_creator_idx ON distribution_records (creator_id, created_at DESC)`,
}

// EnsureDistributionSchema creates the distribution tables and adds newer
// columns to tables created by earlier releases. Safe to call at startup.
func EnsureDistributionSchema(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, ddl := range distributionTables {
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("creating distribution schema failed: %w", err)
		}
	}

	checks := []struct {
		table  string
		column string
		ddl    string
	}{
		{"distribution_records", "schedule_id", "ALTER TABLE distribution_records ADD COLUMN schedule_id TEXT NULL"},
	}

	for _, c := range checks {
		exists, err := columnExists(ctx, db, c.table, c.column)
		if err != nil {
			return err
		}
		if !exists {
			if _, err := db.ExecContext(ctx, c.ddl); err != nil {
				return fmt.Errorf("adding column %s.%s failed: %w", c.table, c.column, err)
			}
		}
	}
	return nil
}

func columnExists(ctx context.Context, db *sql.DB, table, column string) (bool, error) {
	row := db.QueryRowContext(ctx, `SELECT 1 FROM information_schema.columns WHERE table_name=$1 AND column_name=$2`, table, column)
	var one int
	if err := row.Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
