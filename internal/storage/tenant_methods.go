package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/zxstudio-llc/anahisoft-erp-sub005/internal/models"
)

// ========== Tenant Methods ==========

const tenantColumns = `id, created_at, updated_at, data, is_active,
       subscription_plan_id, billing_period, trial_ends_at,
       subscription_active, subscription_ends_at`

// CreateTenant creates a new tenant
func (s *PostgresStore) CreateTenant(ctx context.Context, tenant *models.Tenant) error {
	now := time.Now()
	tenant.CreatedAt = now
	tenant.UpdatedAt = now

	if tenant.BillingPeriod == "" {
		tenant.BillingPeriod = models.BillingPeriodMonthly
	}

	query := `
        INSERT INTO tenants (
            id, created_at, updated_at, data, is_active, subscription_plan_id,
            billing_period, trial_ends_at, subscription_active, subscription_ends_at
        ) VALUES (
            $1, $2, $3, $4, $5, $6, $7, $8, $9, $10
        )`

	_, err := s.getDB().ExecContext(ctx, query,
		tenant.ID, tenant.CreatedAt, tenant.UpdatedAt, tenant.Data, tenant.IsActive,
		tenant.PlanID, tenant.BillingPeriod, tenant.TrialEndsAt,
		tenant.SubscriptionActive, tenant.SubscriptionEndsAt,
	)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return ErrDuplicateKey
		}
		return err
	}

	return nil
}

// GetTenant gets a tenant by ID
func (s *PostgresStore) GetTenant(ctx context.Context, id string) (*models.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE id = $1`

	tenant := &models.Tenant{}
	err := s.getDB().QueryRowContext(ctx, query, id).Scan(
		&tenant.ID, &tenant.CreatedAt, &tenant.UpdatedAt, &tenant.Data, &tenant.IsActive,
		&tenant.PlanID, &tenant.BillingPeriod, &tenant.TrialEndsAt,
		&tenant.SubscriptionActive, &tenant.SubscriptionEndsAt,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}

	return tenant, err
}

// UpdateTenant updates a tenant
func (s *PostgresStore) UpdateTenant(ctx context.Context, tenant *models.Tenant) error {
	tenant.UpdatedAt = time.Now()

	query := `
        UPDATE tenants SET
            updated_at = $2, data = $3, is_active = $4, subscription_plan_id = $5,
            billing_period = $6, trial_ends_at = $7, subscription_active = $8,
            subscription_ends_at = $9
        WHERE id = $1`

	result, err := s.getDB().ExecContext(ctx, query,
		tenant.ID, tenant.UpdatedAt, tenant.Data, tenant.IsActive, tenant.PlanID,
		tenant.BillingPeriod, tenant.TrialEndsAt, tenant.SubscriptionActive,
		tenant.SubscriptionEndsAt,
	)

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
}

// DeleteTenant deletes a tenant. Domains, subscriptions and users cascade.
func (s *PostgresStore) DeleteTenant(ctx context.Context, id string) error {
	result, err := s.getDB().ExecContext(ctx, "DELETE FROM tenants WHERE id = $1", id)
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
}

// ListTenants lists tenants
func (s *PostgresStore) ListTenants(ctx context.Context, limit, offset int) ([]*models.Tenant, int64, error) {
	// Get count
	var count int64
	err := s.getDB().QueryRowContext(ctx, "SELECT COUNT(*) FROM tenants").Scan(&count)
	if err != nil {
		return nil, 0, err
	}

	// Get rows
	query := `SELECT ` + tenantColumns + `
        FROM tenants
        ORDER BY created_at DESC
        LIMIT $1 OFFSET $2`

	rows, err := s.getDB().QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	tenants, err := scanTenants(rows)
	if err != nil {
		return nil, 0, err
	}

	return tenants, count, nil
}

// ListPaidExpired selects tenants whose paid subscription has lapsed but
// whose cached flag still says active. Strict < on the end date: a row
// ending exactly at now is kept.
func (s *PostgresStore) ListPaidExpired(ctx context.Context, now time.Time) ([]*models.Tenant, error) {
	query := `SELECT ` + tenantColumns + `
        FROM tenants
        WHERE subscription_active = TRUE
          AND subscription_ends_at IS NOT NULL
          AND subscription_ends_at < $1
        ORDER BY subscription_ends_at`

	rows, err := s.getDB().QueryContext(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTenants(rows)
}

// ListTrialLapsed selects active tenants whose trial window has passed
// and who never moved to a paid period.
func (s *PostgresStore) ListTrialLapsed(ctx context.Context, now time.Time) ([]*models.Tenant, error) {
	query := `SELECT ` + tenantColumns + `
        FROM tenants
        WHERE is_active = TRUE
          AND subscription_ends_at IS NULL
          AND trial_ends_at IS NOT NULL
          AND trial_ends_at < $1
        ORDER BY trial_ends_at`

	rows, err := s.getDB().QueryContext(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTenants(rows)
}

func scanTenants(rows *sql.Rows) ([]*models.Tenant, error) {
	var tenants []*models.Tenant
	for rows.Next() {
		tenant := &models.Tenant{}
		err := rows.Scan(
			&tenant.ID, &tenant.CreatedAt, &tenant.UpdatedAt, &tenant.Data, &tenant.IsActive,
			&tenant.PlanID, &tenant.BillingPeriod, &tenant.TrialEndsAt,
			&tenant.SubscriptionActive, &tenant.SubscriptionEndsAt,
		)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, tenant)
	}
	return tenants, rows.Err()
}

// ========== Domain Methods ==========

// CreateDomain creates a new domain
func (s *PostgresStore) CreateDomain(ctx context.Context, domain *models.Domain) error {
	domain.CreatedAt = time.Now()

	query := `INSERT INTO domains (hostname, tenant_id, created_at) VALUES ($1, $2, $3)`

	_, err := s.getDB().ExecContext(ctx, query, domain.Hostname, domain.TenantID, domain.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return ErrDuplicateKey
		}
		return err
	}

	return nil
}

// GetTenantByHostname resolves a hostname to its tenant
func (s *PostgresStore) GetTenantByHostname(ctx context.Context, hostname string) (*models.Tenant, error) {
	query := `
        SELECT t.id, t.created_at, t.updated_at, t.data, t.is_active,
               t.subscription_plan_id, t.billing_period, t.trial_ends_at,
               t.subscription_active, t.subscription_ends_at
        FROM tenants t
        JOIN domains d ON d.tenant_id = t.id
        WHERE d.hostname = $1`

	tenant := &models.Tenant{}
	err := s.getDB().QueryRowContext(ctx, query, hostname).Scan(
		&tenant.ID, &tenant.CreatedAt, &tenant.UpdatedAt, &tenant.Data, &tenant.IsActive,
		&tenant.PlanID, &tenant.BillingPeriod, &tenant.TrialEndsAt,
		&tenant.SubscriptionActive, &tenant.SubscriptionEndsAt,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}

	return tenant, err
}

// ListDomains lists the domains of a tenant
func (s *PostgresStore) ListDomains(ctx context.Context, tenantID string) ([]*models.Domain, error) {
	query := `SELECT hostname, tenant_id, created_at FROM domains WHERE tenant_id = $1 ORDER BY hostname`

	rows, err := s.getDB().QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var domains []*models.Domain
	for rows.Next() {
		domain := &models.Domain{}
		if err := rows.Scan(&domain.Hostname, &domain.TenantID, &domain.CreatedAt); err != nil {
			return nil, err
		}
		domains = append(domains, domain)
	}

	return domains, rows.Err()
}
