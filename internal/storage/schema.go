package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/zxstudio-llc/anahisoft-erp-sub005/internal/models"
)

// PostgresSchemaManager manages tenant-isolated schemas on the same
// database cluster as the central store. All tenant-schema access goes
// through WithSchema so the active search_path is always restored.
type PostgresSchemaManager struct {
	db *sql.DB
}

// NewPostgresSchemaManager creates a schema manager sharing the store's pool
func NewPostgresSchemaManager(store *PostgresStore) *PostgresSchemaManager {
	return &PostgresSchemaManager{db: store.db}
}

// SchemaName returns the schema name for a tenant id
func SchemaName(tenantID string) string {
	return "tenant_" + strings.ReplaceAll(tenantID, "-", "_")
}

type schemaConnKey struct{}

func connFromContext(ctx context.Context) (*sql.Conn, bool) {
	conn, ok := ctx.Value(schemaConnKey{}).(*sql.Conn)
	return conn, ok
}

// WithSchema runs fn on a single connection whose search_path is pinned to
// the tenant schema. The previous search_path is restored before the
// connection returns to the pool, even if fn fails. Code inside fn that
// needs the central schema addresses tables with an explicit public.
// prefix, so central plan reads remain possible while a tenant schema is
// the active context.
func (m *PostgresSchemaManager) WithSchema(ctx context.Context, tenantID string, fn func(ctx context.Context) error) error {
	conn, err := m.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	var prev string
	if err := conn.QueryRowContext(ctx, "SHOW search_path").Scan(&prev); err != nil {
		return fmt.Errorf("read search_path: %w", err)
	}

	schema := pq.QuoteIdentifier(SchemaName(tenantID))
	if _, err := conn.ExecContext(ctx, "SET search_path TO "+schema+", public"); err != nil {
		return fmt.Errorf("set search_path: %w", err)
	}

	defer func() {
		// Restore runs on the same connection regardless of fn's outcome.
		// A background context so restore still happens after ctx cancel.
		conn.ExecContext(context.Background(), "SET search_path TO "+prev)
	}()

	return fn(context.WithValue(ctx, schemaConnKey{}, conn))
}

// CreateSchema creates the tenant's schema
func (m *PostgresSchemaManager) CreateSchema(ctx context.Context, tenantID string) error {
	schema := pq.QuoteIdentifier(SchemaName(tenantID))
	if _, err := m.db.ExecContext(ctx, "CREATE SCHEMA "+schema); err != nil {
		if strings.Contains(err.Error(), "already exists") {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// MigrateSchema creates the tenant-schema tables
func (m *PostgresSchemaManager) MigrateSchema(ctx context.Context, tenantID string) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			email VARCHAR(255) NOT NULL UNIQUE,
			name VARCHAR(128) NOT NULL,
			password_hash VARCHAR(255) NOT NULL,
			role VARCHAR(32) NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE
		)`,
		`CREATE TABLE IF NOT EXISTS invoice_usage (
			tenant_id VARCHAR(64) PRIMARY KEY,
			monthly_invoices INTEGER NOT NULL DEFAULT 0,
			total_invoices INTEGER NOT NULL DEFAULT 0,
			invoice_limit INTEGER NOT NULL DEFAULT 0,
			last_reset TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS settings (
			key VARCHAR(128) PRIMARY KEY,
			value JSONB,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS categories (
			id UUID PRIMARY KEY,
			name VARCHAR(128) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS products (
			id UUID PRIMARY KEY,
			category_id UUID REFERENCES categories(id),
			name VARCHAR(255) NOT NULL,
			price NUMERIC(10,2) NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS clients (
			id UUID PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			tax_id VARCHAR(32),
			email VARCHAR(255),
			created_at TIMESTAMPTZ NOT NULL
		)`,
	}

	return m.WithSchema(ctx, tenantID, func(ctx context.Context) error {
		conn, _ := connFromContext(ctx)
		for _, stmt := range statements {
			if _, err := conn.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("migrate tenant schema: %w", err)
			}
		}
		return nil
	})
}

// DropSchema drops the tenant's schema and everything in it
func (m *PostgresSchemaManager) DropSchema(ctx context.Context, tenantID string) error {
	schema := pq.QuoteIdentifier(SchemaName(tenantID))
	_, err := m.db.ExecContext(ctx, "DROP SCHEMA IF EXISTS "+schema+" CASCADE")
	return err
}

// CreateTenantUser creates a user row inside the tenant schema
func (m *PostgresSchemaManager) CreateTenantUser(ctx context.Context, tenantID string, user *models.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	return m.WithSchema(ctx, tenantID, func(ctx context.Context) error {
		conn, _ := connFromContext(ctx)
		_, err := conn.ExecContext(ctx, `
            INSERT INTO users (id, created_at, updated_at, email, name, password_hash, role, is_active)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			user.ID, user.CreatedAt, user.UpdatedAt, user.Email, user.Name,
			user.PasswordHash, user.Role, user.IsActive,
		)
		if err != nil && strings.Contains(err.Error(), "duplicate key") {
			return ErrDuplicateKey
		}
		return err
	})
}

// UpsertSetting writes a settings row inside the tenant schema
func (m *PostgresSchemaManager) UpsertSetting(ctx context.Context, tenantID, key string, value models.Variables) error {
	return m.WithSchema(ctx, tenantID, func(ctx context.Context) error {
		conn, _ := connFromContext(ctx)
		_, err := conn.ExecContext(ctx, `
            INSERT INTO settings (key, value, updated_at)
            VALUES ($1, $2, $3)
            ON CONFLICT (key) DO UPDATE SET value = $2, updated_at = $3`,
			key, value, time.Now(),
		)
		return err
	})
}

// SeedDemoCatalog inserts the demo categories, products and clients a new
// account starts with.
func (m *PostgresSchemaManager) SeedDemoCatalog(ctx context.Context, tenantID string) error {
	return m.WithSchema(ctx, tenantID, func(ctx context.Context) error {
		conn, _ := connFromContext(ctx)
		now := time.Now()

		categories := []struct {
			id   uuid.UUID
			name string
		}{
			{uuid.New(), "Services"},
			{uuid.New(), "Products"},
		}
		for _, c := range categories {
			if _, err := conn.ExecContext(ctx,
				"INSERT INTO categories (id, name, created_at) VALUES ($1, $2, $3)",
				c.id, c.name, now); err != nil {
				return err
			}
		}

		products := []struct {
			category uuid.UUID
			name     string
			price    float64
		}{
			{categories[0].id, "Consulting hour", 40},
			{categories[1].id, "Sample product", 9.99},
		}
		for _, p := range products {
			if _, err := conn.ExecContext(ctx,
				"INSERT INTO products (id, category_id, name, price, created_at) VALUES ($1, $2, $3, $4, $5)",
				uuid.New(), p.category, p.name, p.price, now); err != nil {
				return err
			}
		}

		if _, err := conn.ExecContext(ctx,
			"INSERT INTO clients (id, name, tax_id, email, created_at) VALUES ($1, $2, $3, $4, $5)",
			uuid.New(), "Demo Client S.A.", "9999999999001", "client@example.com", now); err != nil {
			return err
		}

		return nil
	})
}

// ========== Invoice Usage Methods ==========

// GetOrCreateInvoiceUsage fetches the singleton usage row for a tenant,
// creating it with the given limit on first access.
func (m *PostgresSchemaManager) GetOrCreateInvoiceUsage(ctx context.Context, tenantID string, limit int) (*models.InvoiceUsage, error) {
	usage := &models.InvoiceUsage{}

	err := m.WithSchema(ctx, tenantID, func(ctx context.Context) error {
		conn, _ := connFromContext(ctx)

		row := conn.QueryRowContext(ctx, `
            SELECT tenant_id, monthly_invoices, total_invoices, invoice_limit, last_reset
            FROM invoice_usage
            WHERE tenant_id = $1`, tenantID)

		err := row.Scan(&usage.TenantID, &usage.MonthlyInvoices, &usage.TotalInvoices,
			&usage.Limit, &usage.LastReset)
		if err == nil {
			return nil
		}
		if err != sql.ErrNoRows {
			return err
		}

		usage.TenantID = tenantID
		usage.Limit = limit
		usage.LastReset = time.Now()

		_, err = conn.ExecContext(ctx, `
            INSERT INTO invoice_usage (tenant_id, monthly_invoices, total_invoices, invoice_limit, last_reset)
            VALUES ($1, 0, 0, $2, $3)
            ON CONFLICT (tenant_id) DO NOTHING`,
			tenantID, limit, usage.LastReset,
		)
		return err
	})

	if err != nil {
		return nil, err
	}
	return usage, nil
}

// IncrementInvoiceUsage bumps both counters after an invoice is created
func (m *PostgresSchemaManager) IncrementInvoiceUsage(ctx context.Context, tenantID string) error {
	return m.WithSchema(ctx, tenantID, func(ctx context.Context) error {
		conn, _ := connFromContext(ctx)
		result, err := conn.ExecContext(ctx, `
            UPDATE invoice_usage
            SET monthly_invoices = monthly_invoices + 1,
                total_invoices = total_invoices + 1
            WHERE tenant_id = $1`, tenantID)
		if err != nil {
			return err
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrNotFound
		}
		return nil
	})
}
