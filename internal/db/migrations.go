package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	`CREATE TABLE IF NOT EXISTS accounts (
		id              BIGSERIAL PRIMARY KEY,
		owner_name      TEXT NOT NULL,
		phone           TEXT,
		plate           TEXT NOT NULL,
		vehicle_type    TEXT NOT NULL,
		balance         NUMERIC(10,2) NOT NULL DEFAULT 0 CHECK (balance >= 0),
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_accounts_plate ON accounts(plate);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_accounts_phone ON accounts(phone);`,
	`CREATE TABLE IF NOT EXISTS transactions (
		id                UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		account_id        BIGINT NOT NULL REFERENCES accounts(id),
		plate             TEXT NOT NULL,
		vehicle_type      TEXT NOT NULL,
		fee               NUMERIC(10,2) NOT NULL,
		remaining_balance NUMERIC(10,2) NOT NULL,
		evidence          TEXT,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_account_id ON transactions(account_id);`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_plate ON transactions(plate);`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_created_at ON transactions(created_at);`,
	`CREATE TABLE IF NOT EXISTS passage_events (
		id              BIGSERIAL PRIMARY KEY,
		camera_id       TEXT NOT NULL,
		plate           TEXT NOT NULL,
		confidence      NUMERIC(5,2),
		direction       TEXT,
		lane            INT,
		outcome         TEXT,
		snapshot_url    TEXT,
		event_time      TIMESTAMPTZ NOT NULL,
		raw_payload     JSONB,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_passage_events_plate ON passage_events(plate);`,
	`CREATE INDEX IF NOT EXISTS idx_passage_events_event_time ON passage_events(event_time);`,
}

// Migrate applies the schema statements in order.
func Migrate(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
