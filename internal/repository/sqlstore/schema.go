package sqlstore

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS stored_events (
		sequence_id    BIGSERIAL PRIMARY KEY,
		event_id       UUID NOT NULL UNIQUE,
		aggregate_id   VARCHAR(255) NOT NULL,
		aggregate_type VARCHAR(255) NOT NULL,
		event_name     VARCHAR(255) NOT NULL,
		schema_version INT NOT NULL DEFAULT 1,
		payload        JSONB NOT NULL,
		metadata       JSONB,
		version        INT NOT NULL,
		occurred_on    TIMESTAMPTZ NOT NULL,
		recorded_on    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT uq_stored_events_aggregate_version UNIQUE (aggregate_id, version)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_stored_events_aggregate_id ON stored_events (aggregate_id)`,
	`CREATE INDEX IF NOT EXISTS idx_stored_events_event_name ON stored_events (event_name)`,
	`CREATE TABLE IF NOT EXISTS outbox_records (
		id                  UUID PRIMARY KEY,
		triggering_event_id UUID NOT NULL,
		notification_type   VARCHAR(64) NOT NULL,
		recipient           VARCHAR(255) NOT NULL,
		subject             TEXT NOT NULL,
		body_html           TEXT NOT NULL DEFAULT '',
		body_text           TEXT NOT NULL DEFAULT '',
		status              VARCHAR(16) NOT NULL,
		attempts            INT NOT NULL DEFAULT 0,
		last_error          TEXT NOT NULL DEFAULT '',
		created_at          TIMESTAMPTZ NOT NULL,
		sent_at             TIMESTAMPTZ,
		claimed_by          VARCHAR(255),
		claimed_at          TIMESTAMPTZ,
		CONSTRAINT uq_outbox_records_cause UNIQUE (triggering_event_id, recipient, notification_type)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_outbox_records_status_created ON outbox_records (status, created_at)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS stored_events (
		sequence_id    INTEGER PRIMARY KEY AUTOINCREMENT,
		event_id       TEXT NOT NULL UNIQUE,
		aggregate_id   TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		event_name     TEXT NOT NULL,
		schema_version INTEGER NOT NULL DEFAULT 1,
		payload        TEXT NOT NULL,
		metadata       TEXT,
		version        INTEGER NOT NULL,
		occurred_on    DATETIME NOT NULL,
		recorded_on    DATETIME NOT NULL,
		UNIQUE (aggregate_id, version)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_stored_events_aggregate_id ON stored_events (aggregate_id)`,
	`CREATE INDEX IF NOT EXISTS idx_stored_events_event_name ON stored_events (event_name)`,
	`CREATE TABLE IF NOT EXISTS outbox_records (
		id                  TEXT PRIMARY KEY,
		triggering_event_id TEXT NOT NULL,
		notification_type   TEXT NOT NULL,
		recipient           TEXT NOT NULL,
		subject             TEXT NOT NULL,
		body_html           TEXT NOT NULL DEFAULT '',
		body_text           TEXT NOT NULL DEFAULT '',
		status              TEXT NOT NULL,
		attempts            INTEGER NOT NULL DEFAULT 0,
		last_error          TEXT NOT NULL DEFAULT '',
		created_at          DATETIME NOT NULL,
		sent_at             DATETIME,
		claimed_by          TEXT,
		claimed_at          DATETIME,
		UNIQUE (triggering_event_id, recipient, notification_type)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_outbox_records_status_created ON outbox_records (status, created_at)`,
}

// Migrate creates the event and outbox tables for the connection's dialect.
// It is idempotent.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	var statements []string
	switch db.DriverName() {
	case DriverPostgres:
		statements = postgresSchema
	case DriverSQLite:
		statements = sqliteSchema
	default:
		return fmt.Errorf("no schema for driver %q", db.DriverName())
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
