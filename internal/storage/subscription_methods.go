package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/zxstudio-llc/anahisoft-erp-sub005/internal/models"
)

// ========== Subscription Methods ==========

// CreateSubscription creates a new subscription history row
func (s *PostgresStore) CreateSubscription(ctx context.Context, sub *models.Subscription) error {
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}

	now := time.Now()
	sub.CreatedAt = now
	sub.UpdatedAt = now

	query := `
        INSERT INTO subscriptions (
            id, created_at, updated_at, tenant_id, plan_id, billing_period,
            status, trial_ends_at, ends_at
        ) VALUES (
            $1, $2, $3, $4, $5, $6, $7, $8, $9
        )`

	_, err := s.getDB().ExecContext(ctx, query,
		sub.ID, sub.CreatedAt, sub.UpdatedAt, sub.TenantID, sub.PlanID,
		sub.BillingPeriod, sub.Status, sub.TrialEndsAt, sub.EndsAt,
	)

	return err
}

// GetActiveSubscription gets the tenant's current subscription record,
// i.e. the single row with status active or trialing.
func (s *PostgresStore) GetActiveSubscription(ctx context.Context, tenantID string) (*models.Subscription, error) {
	query := `
        SELECT id, created_at, updated_at, tenant_id, plan_id, billing_period,
               status, trial_ends_at, ends_at
        FROM subscriptions
        WHERE tenant_id = $1 AND status IN ('active', 'trialing')
        ORDER BY created_at DESC
        LIMIT 1`

	sub := &models.Subscription{}
	err := s.getDB().QueryRowContext(ctx, query, tenantID).Scan(
		&sub.ID, &sub.CreatedAt, &sub.UpdatedAt, &sub.TenantID, &sub.PlanID,
		&sub.BillingPeriod, &sub.Status, &sub.TrialEndsAt, &sub.EndsAt,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}

	return sub, err
}

// UpdateSubscription updates a subscription record
func (s *PostgresStore) UpdateSubscription(ctx context.Context, sub *models.Subscription) error {
	sub.UpdatedAt = time.Now()

	query := `
        UPDATE subscriptions SET
            updated_at = $2, plan_id = $3, billing_period = $4, status = $5,
            trial_ends_at = $6, ends_at = $7
        WHERE id = $1`

	result, err := s.getDB().ExecContext(ctx, query,
		sub.ID, sub.UpdatedAt, sub.PlanID, sub.BillingPeriod, sub.Status,
		sub.TrialEndsAt, sub.EndsAt,
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

// ListSubscriptions lists a tenant's subscription history
func (s *PostgresStore) ListSubscriptions(ctx context.Context, tenantID string, limit, offset int) ([]*models.Subscription, int64, error) {
	// Get count
	var count int64
	err := s.getDB().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM subscriptions WHERE tenant_id = $1", tenantID,
	).Scan(&count)
	if err != nil {
		return nil, 0, err
	}

	// Get rows
	query := `
        SELECT id, created_at, updated_at, tenant_id, plan_id, billing_period,
               status, trial_ends_at, ends_at
        FROM subscriptions
        WHERE tenant_id = $1
        ORDER BY created_at DESC
        LIMIT $2 OFFSET $3`

	rows, err := s.getDB().QueryContext(ctx, query, tenantID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var subs []*models.Subscription
	for rows.Next() {
		sub := &models.Subscription{}
		err := rows.Scan(
			&sub.ID, &sub.CreatedAt, &sub.UpdatedAt, &sub.TenantID, &sub.PlanID,
			&sub.BillingPeriod, &sub.Status, &sub.TrialEndsAt, &sub.EndsAt,
		)
		if err != nil {
			return nil, 0, err
		}
		subs = append(subs, sub)
	}

	return subs, count, nil
}
