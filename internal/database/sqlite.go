package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// OpenSQLite opens the SQLite database at path, creating the file and its
// parent directory as needed, and ensures the schema exists.
func OpenSQLite(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// Pragmas apply per connection, so the pool is capped at a single
	// connection to keep them in force for the process lifetime.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	for _, stmt := range sqliteSchema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply schema statement: %w", err)
		}
	}

	return db, nil
}

// sqliteSchema mirrors the PostgreSQL schema. Timestamps are integer unix
// milliseconds so ordering and keyset comparisons stay exact.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS areas (
		id               TEXT PRIMARY KEY,
		name             TEXT NOT NULL UNIQUE,
		south            REAL NOT NULL,
		west             REAL NOT NULL,
		north            REAL NOT NULL,
		east             REAL NOT NULL,
		resolution       INTEGER NOT NULL,
		point_count      INTEGER NOT NULL,
		route_count      INTEGER NOT NULL,
		grid_polyline    TEXT NOT NULL,
		network_ref      TEXT,
		status           TEXT NOT NULL,
		duration_days    INTEGER NOT NULL,
		interval_minutes INTEGER NOT NULL,
		target_count     INTEGER NOT NULL,
		created_at       INTEGER NOT NULL,
		updated_at       INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS areas_created_at_id_idx ON areas (created_at DESC, id DESC)`,
	`CREATE INDEX IF NOT EXISTS areas_status_idx ON areas (status)`,
	`CREATE TABLE IF NOT EXISTS snapshots (
		area_id       TEXT NOT NULL REFERENCES areas (id) ON DELETE CASCADE,
		seq           INTEGER NOT NULL,
		captured_at   INTEGER NOT NULL,
		avg_speed_kmh REAL NOT NULL,
		min_speed_kmh REAL NOT NULL,
		max_speed_kmh REAL NOT NULL,
		sample_count  INTEGER NOT NULL,
		route_count   INTEGER NOT NULL,
		available     INTEGER NOT NULL,
		PRIMARY KEY (area_id, seq)
	)`,
	`CREATE TABLE IF NOT EXISTS route_samples (
		area_id             TEXT NOT NULL,
		seq                 INTEGER NOT NULL,
		route_id            TEXT NOT NULL,
		speed_kmh           REAL NOT NULL,
		travel_time_seconds REAL NOT NULL,
		distance_meters     REAL NOT NULL,
		available           INTEGER NOT NULL,
		PRIMARY KEY (area_id, seq, route_id),
		FOREIGN KEY (area_id, seq) REFERENCES snapshots (area_id, seq) ON DELETE CASCADE
	)`,
}
