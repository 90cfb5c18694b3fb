// Package database provides connection management and schema bootstrap
// for the snapshot store, with PostgreSQL and SQLite backends.
package database

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config holds database connection configuration.
type Config struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// ConfigFromEnv creates a Config from environment variables.
func ConfigFromEnv() Config {
	port, _ := strconv.Atoi(getEnvOrDefault("DB_PORT", "5432"))
	maxOpen, _ := strconv.Atoi(getEnvOrDefault("DB_MAX_OPEN_CONNS", "10"))
	maxIdle, _ := strconv.Atoi(getEnvOrDefault("DB_MAX_IDLE_CONNS", "5"))
	lifetime, _ := time.ParseDuration(getEnvOrDefault("DB_CONN_MAX_LIFETIME", "5m"))

	return Config{
		Host:            getEnvOrDefault("DB_HOST", "localhost"),
		Port:            port,
		User:            getEnvOrDefault("DB_USER", "trafficlens"),
		Password:        getEnvOrDefault("DB_PASSWORD", "localdev"),
		Database:        getEnvOrDefault("DB_NAME", "trafficlens"),
		SSLMode:         getEnvOrDefault("DB_SSL_MODE", "disable"),
		MaxOpenConns:    maxOpen,
		MaxIdleConns:    maxIdle,
		ConnMaxLifetime: lifetime,
	}
}

// ConnectionString returns the PostgreSQL connection string.
func (c Config) ConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode,
	)
}

// Connect creates a new database connection pool and ensures the schema
// exists.
func Connect(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxOpenConns) //nolint:gosec // MaxOpenConns is bounded by config validation
	poolConfig.MinConns = int32(cfg.MaxIdleConns) //nolint:gosec // MaxIdleConns is bounded by config validation
	poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return pool, nil
}

// postgresSchema is applied statement by statement; every statement is
// idempotent so re-running on an existing database is safe.
var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS areas (
		id               TEXT PRIMARY KEY,
		name             TEXT NOT NULL UNIQUE,
		south            DOUBLE PRECISION NOT NULL,
		west             DOUBLE PRECISION NOT NULL,
		north            DOUBLE PRECISION NOT NULL,
		east             DOUBLE PRECISION NOT NULL,
		resolution       INTEGER NOT NULL,
		point_count      INTEGER NOT NULL,
		route_count      INTEGER NOT NULL,
		grid_polyline    TEXT NOT NULL,
		network_ref      TEXT,
		status           TEXT NOT NULL,
		duration_days    INTEGER NOT NULL,
		interval_minutes INTEGER NOT NULL,
		target_count     INTEGER NOT NULL,
		created_at       TIMESTAMPTZ NOT NULL,
		updated_at       TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS areas_created_at_id_idx ON areas (created_at DESC, id DESC)`,
	`CREATE INDEX IF NOT EXISTS areas_status_idx ON areas (status)`,
	`CREATE TABLE IF NOT EXISTS snapshots (
		area_id       TEXT NOT NULL REFERENCES areas (id) ON DELETE CASCADE,
		seq           INTEGER NOT NULL,
		captured_at   TIMESTAMPTZ NOT NULL,
		avg_speed_kmh DOUBLE PRECISION NOT NULL,
		min_speed_kmh DOUBLE PRECISION NOT NULL,
		max_speed_kmh DOUBLE PRECISION NOT NULL,
		sample_count  INTEGER NOT NULL,
		route_count   INTEGER NOT NULL,
		available     BOOLEAN NOT NULL,
		PRIMARY KEY (area_id, seq)
	)`,
	`CREATE TABLE IF NOT EXISTS route_samples (
		area_id             TEXT NOT NULL,
		seq                 INTEGER NOT NULL,
		route_id            TEXT NOT NULL,
		speed_kmh           DOUBLE PRECISION NOT NULL,
		travel_time_seconds DOUBLE PRECISION NOT NULL,
		distance_meters     DOUBLE PRECISION NOT NULL,
		available           BOOLEAN NOT NULL,
		PRIMARY KEY (area_id, seq, route_id),
		FOREIGN KEY (area_id, seq) REFERENCES snapshots (area_id, seq) ON DELETE CASCADE
	)`,
}

// EnsureSchema creates the tables and indexes if they do not exist yet.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range postgresSchema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement: %w", err)
		}
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
