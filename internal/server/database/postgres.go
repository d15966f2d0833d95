package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const connectTimeout = 5 * time.Second

// migrations contains all database migrations in order.
// file_key is unique only among active rows; access keys are unique forever.
var migrations = []struct {
	Version string
	SQL     string
}{
	{
		Version: "000001_create_access_keys",
		SQL: `
			CREATE TABLE IF NOT EXISTS access_keys (
				key            VARCHAR(64)  PRIMARY KEY,
				created_at     TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
				source_address VARCHAR(255) NOT NULL DEFAULT '',
				active         BOOLEAN      NOT NULL DEFAULT TRUE
			);
			CREATE INDEX IF NOT EXISTS idx_access_keys_active ON access_keys(created_at, key) WHERE active;
		`,
	},
	{
		Version: "000002_create_files",
		SQL: `
			CREATE TABLE IF NOT EXISTS files (
				id            BIGSERIAL    PRIMARY KEY,
				owner_key     VARCHAR(64)  NOT NULL,
				file_key      VARCHAR(64)  NOT NULL,
				blob_id       TEXT         NOT NULL,
				original_name VARCHAR(255) NOT NULL,
				size_bytes    BIGINT       NOT NULL,
				uploaded_at   TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
				active        BOOLEAN      NOT NULL DEFAULT TRUE
			);
			CREATE UNIQUE INDEX IF NOT EXISTS idx_files_file_key_active ON files(file_key) WHERE active;
			CREATE INDEX IF NOT EXISTS idx_files_owner_key ON files(owner_key);
		`,
	},
}

// DB wraps a pgxpool connection pool and provides health checks and migrations.
type DB struct {
	Pool *pgxpool.Pool
}

// New connects to PostgreSQL and verifies the connection with a ping.
// Any failure here means the index is unavailable at boot.
func New(ctx context.Context, databaseURL string) (*DB, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	config.ConnConfig.ConnectTimeout = connectTimeout

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("connected to database")
	return &DB{Pool: pool}, nil
}

// RunMigrations applies all pending database migrations in order,
// each inside its own transaction.
func (db *DB) RunMigrations(ctx context.Context) error {
	_, err := db.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	for _, m := range migrations {
		var applied bool
		err := db.Pool.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)",
			m.Version,
		).Scan(&applied)
		if err != nil {
			return fmt.Errorf("failed to check migration status for %s: %w", m.Version, err)
		}
		if applied {
			continue
		}

		err = pgx.BeginFunc(ctx, db.Pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, m.SQL); err != nil {
				return fmt.Errorf("execute: %w", err)
			}
			if _, err := tx.Exec(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", m.Version); err != nil {
				return fmt.Errorf("record: %w", err)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", m.Version, err)
		}

		slog.Info("applied migration", "version", m.Version)
	}

	return nil
}

// HealthCheck verifies the database connection is alive.
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// Close shuts down the connection pool.
func (db *DB) Close() {
	db.Pool.Close()
}
