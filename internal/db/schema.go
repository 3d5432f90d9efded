package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id            INTEGER PRIMARY KEY,
    username      TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    role          TEXT NOT NULL DEFAULT 'manager' CHECK (role IN ('admin', 'manager')),
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at    DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username_active
    ON users(username) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS registry_items (
    id               INTEGER PRIMARY KEY,
    name             TEXT NOT NULL,
    link             TEXT NOT NULL,
    price            TEXT,
    image_url        TEXT,
    image            BLOB,
    image_mime       TEXT,
    quantity_needed  INTEGER NOT NULL CHECK (quantity_needed > 0),
    quantity_claimed INTEGER NOT NULL DEFAULT 0 CHECK (quantity_claimed >= 0),
    status           TEXT NOT NULL DEFAULT 'AVAILABLE' CHECK (status IN ('AVAILABLE', 'CLAIMED', 'FULFILLED')),
    last_claimed_at  DATETIME,
    created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    CHECK (quantity_claimed <= quantity_needed)
);

CREATE TABLE IF NOT EXISTS claim_attempts (
    id             INTEGER PRIMARY KEY,
    item_id        INTEGER NOT NULL REFERENCES registry_items(id) ON DELETE CASCADE,
    source_address TEXT,
    created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_claim_attempts_item
    ON claim_attempts(item_id, created_at);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS revoked_tokens (
    jti        TEXT PRIMARY KEY,
    expires_at DATETIME NOT NULL
);
`

// migrations is a list of SQL statements applied in order after schema creation.
// Each migration must be idempotent. Append new migrations at the end.
var migrations = []string{
	// Migration 1: index for the public list ordering.
	`CREATE INDEX IF NOT EXISTS idx_registry_items_status_name
	     ON registry_items(status, name)`,
}

// EnsureSchema creates all tables and indexes if they don't already exist,
// then applies migrations.
func EnsureSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	for i, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("running migration %d: %w", i+1, err)
		}
	}
	return nil
}
