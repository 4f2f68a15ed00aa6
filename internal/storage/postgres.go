package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// PostgresStore implements Store interface for PostgreSQL
type PostgresStore struct {
	db *sql.DB
	tx *sql.Tx
}

// NewPostgresStore creates a new PostgreSQL store
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *PostgresStore) BeginTx(ctx context.Context) (Store, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &PostgresStore{db: s.db, tx: tx}, nil
}

// Commit commits the transaction
func (s *PostgresStore) Commit() error {
	if s.tx == nil {
		return nil
	}
	return s.tx.Commit()
}

// Rollback rolls back the transaction
func (s *PostgresStore) Rollback() error {
	if s.tx == nil {
		return nil
	}
	return s.tx.Rollback()
}

// getDB returns tx if in transaction, otherwise db
func (s *PostgresStore) getDB() interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
} {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

// Migrate creates the central tables if they do not exist
func (s *PostgresStore) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS plans (
			slug VARCHAR(64) PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			name VARCHAR(128) NOT NULL,
			price_monthly NUMERIC(10,2) NOT NULL DEFAULT 0,
			price_yearly NUMERIC(10,2) NOT NULL DEFAULT 0,
			invoice_limit INTEGER NOT NULL DEFAULT 0,
			trial_days INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS tenants (
			id VARCHAR(64) PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			data JSONB,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			subscription_plan_id VARCHAR(64) REFERENCES plans(slug),
			billing_period VARCHAR(16) NOT NULL DEFAULT 'monthly',
			trial_ends_at TIMESTAMPTZ,
			subscription_active BOOLEAN NOT NULL DEFAULT FALSE,
			subscription_ends_at TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS domains (
			hostname VARCHAR(255) PRIMARY KEY,
			tenant_id VARCHAR(64) NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS subscriptions (
			id UUID PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			tenant_id VARCHAR(64) NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
			plan_id VARCHAR(64) NOT NULL REFERENCES plans(slug),
			billing_period VARCHAR(16) NOT NULL,
			status VARCHAR(16) NOT NULL,
			trial_ends_at TIMESTAMPTZ,
			ends_at TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			email VARCHAR(255) NOT NULL UNIQUE,
			name VARCHAR(128) NOT NULL,
			password_hash VARCHAR(255) NOT NULL,
			role VARCHAR(32) NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			tenant_id VARCHAR(64) REFERENCES tenants(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS event_logs (
			id UUID PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL,
			tenant_id VARCHAR(64),
			type VARCHAR(64) NOT NULL,
			level VARCHAR(16) NOT NULL,
			description TEXT,
			details JSONB
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tenants_subscription_ends_at ON tenants (subscription_ends_at) WHERE subscription_active`,
		`CREATE INDEX IF NOT EXISTS idx_event_logs_tenant ON event_logs (tenant_id, created_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.getDB().ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate central schema: %w", err)
		}
	}

	return nil
}
