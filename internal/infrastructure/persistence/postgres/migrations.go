package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATOR
// ══════════════════════════════════════════════════════════════════════════════

// Migration represents a database migration.
type Migration struct {
	Version int
	Name    string
	UpSQL   string
}

// Migrator applies embedded migrations and records them in schema_migrations.
type Migrator struct {
	conn       *Connection
	migrations []Migration
	tableName  string
}

// NewMigrator creates a new migrator with embedded migrations.
func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{
		conn:       conn,
		migrations: GetMigrations(),
		tableName:  "schema_migrations",
	}
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)
	`, m.tableName)

	if _, err := m.conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

func (m *Migrator) applied(ctx context.Context) (map[int]time.Time, error) {
	applied := make(map[int]time.Time)
	err := m.conn.queryRows(ctx, func(rows pgx.Rows) error {
		for rows.Next() {
			var version int
			var appliedAt time.Time
			if err := rows.Scan(&version, &appliedAt); err != nil {
				return fmt.Errorf("failed to scan migration row: %w", err)
			}
			applied[version] = appliedAt
		}
		return nil
	}, fmt.Sprintf("SELECT version, applied_at FROM %s ORDER BY version", m.tableName))
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	return applied, nil
}

// Migrate applies all pending migrations, each in its own transaction.
func (m *Migrator) Migrate(ctx context.Context) error {
	if err := m.ensureTable(ctx); err != nil {
		return err
	}

	applied, err := m.applied(ctx)
	if err != nil {
		return err
	}

	for _, mig := range m.migrations {
		if _, ok := applied[mig.Version]; ok {
			continue
		}

		err := m.conn.WithTx(ctx, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, mig.UpSQL); err != nil {
				return fmt.Errorf("failed to execute migration %d: %w", mig.Version, err)
			}
			_, err := tx.Exec(ctx,
				fmt.Sprintf("INSERT INTO %s (version, name) VALUES ($1, $2)", m.tableName),
				mig.Version, mig.Name)
			return err
		})
		if err != nil {
			return fmt.Errorf("%w: version %d: %v", ErrMigrationFailed, mig.Version, err)
		}
	}
	return nil
}

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_centers",
			UpSQL:   migration001Up,
		},
		{
			Version: 2,
			Name:    "create_session_records",
			UpSQL:   migration002Up,
		},
		{
			Version: 3,
			Name:    "create_annual_objectives",
			UpSQL:   migration003Up,
		},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE CENTERS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
CREATE TABLE IF NOT EXISTS centers (
    id VARCHAR(64) PRIMARY KEY,
    name VARCHAR(200) NOT NULL DEFAULT '',
    postal_code VARCHAR(10) NOT NULL DEFAULT '',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE SESSION RECORDS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- One row per real session. center_id NULL is the unknown-center bucket:
-- removing a center keeps its history.
CREATE TABLE IF NOT EXISTS session_records (
    id VARCHAR(64) PRIMARY KEY,
    track VARCHAR(20) NOT NULL,
    stage VARCHAR(20) NOT NULL,
    session_date DATE NOT NULL,
    center_id VARCHAR(64) REFERENCES centers(id) ON DELETE SET NULL,

    places_opened INTEGER NOT NULL DEFAULT 0,
    prescriptions INTEGER NOT NULL DEFAULT 0,
    present INTEGER NOT NULL DEFAULT 0,
    absent INTEGER NOT NULL DEFAULT 0,
    adhesions INTEGER NOT NULL DEFAULT 0,
    enrolled INTEGER NOT NULL DEFAULT 0,

    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_track CHECK (track IN ('prepa', 'insertion', 'ateliers')),
    CONSTRAINT non_negative_counts CHECK (
        places_opened >= 0 AND prescriptions >= 0 AND present >= 0 AND
        absent >= 0 AND adhesions >= 0 AND enrolled >= 0
    )
);

CREATE INDEX IF NOT EXISTS idx_session_records_rollup
    ON session_records(track, center_id, session_date);
CREATE INDEX IF NOT EXISTS idx_session_records_stage
    ON session_records(track, stage, session_date);
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: CREATE ANNUAL OBJECTIVES
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
CREATE TABLE IF NOT EXISTS annual_objectives (
    center_id VARCHAR(64) NOT NULL REFERENCES centers(id) ON DELETE CASCADE,
    year INTEGER NOT NULL,
    target_value INTEGER NOT NULL DEFAULT 0,
    note TEXT NOT NULL DEFAULT '',
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (center_id, year),
    CONSTRAINT valid_target CHECK (target_value >= 0)
);

CREATE INDEX IF NOT EXISTS idx_annual_objectives_year ON annual_objectives(year);
`
