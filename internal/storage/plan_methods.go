package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/zxstudio-llc/anahisoft-erp-sub005/internal/models"
)

// ========== Plan Methods ==========

// CreatePlan creates a new plan
func (s *PostgresStore) CreatePlan(ctx context.Context, plan *models.Plan) error {
	now := time.Now()
	plan.CreatedAt = now
	plan.UpdatedAt = now

	query := `
        INSERT INTO plans (
            slug, created_at, updated_at, name, price_monthly, price_yearly,
            invoice_limit, trial_days
        ) VALUES (
            $1, $2, $3, $4, $5, $6, $7, $8
        )`

	_, err := s.getDB().ExecContext(ctx, query,
		plan.Slug, plan.CreatedAt, plan.UpdatedAt, plan.Name,
		plan.PriceMonthly, plan.PriceYearly, plan.InvoiceLimit, plan.TrialDays,
	)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return ErrDuplicateKey
		}
		return err
	}

	return nil
}

// GetPlan gets a plan by slug
func (s *PostgresStore) GetPlan(ctx context.Context, slug string) (*models.Plan, error) {
	query := `
        SELECT slug, created_at, updated_at, name, price_monthly, price_yearly,
               invoice_limit, trial_days
        FROM plans
        WHERE slug = $1`

	plan := &models.Plan{}
	err := s.getDB().QueryRowContext(ctx, query, slug).Scan(
		&plan.Slug, &plan.CreatedAt, &plan.UpdatedAt, &plan.Name,
		&plan.PriceMonthly, &plan.PriceYearly, &plan.InvoiceLimit, &plan.TrialDays,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}

	return plan, err
}

// ListPlans lists all plans
func (s *PostgresStore) ListPlans(ctx context.Context) ([]*models.Plan, error) {
	query := `
        SELECT slug, created_at, updated_at, name, price_monthly, price_yearly,
               invoice_limit, trial_days
        FROM plans
        ORDER BY price_monthly`

	rows, err := s.getDB().QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []*models.Plan
	for rows.Next() {
		plan := &models.Plan{}
		err := rows.Scan(
			&plan.Slug, &plan.CreatedAt, &plan.UpdatedAt, &plan.Name,
			&plan.PriceMonthly, &plan.PriceYearly, &plan.InvoiceLimit, &plan.TrialDays,
		)
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}

	return plans, rows.Err()
}
