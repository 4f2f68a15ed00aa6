package provisioning

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zxstudio-llc/anahisoft-erp-sub005/internal/models"
	"github.com/zxstudio-llc/anahisoft-erp-sub005/internal/storage"
	"github.com/zxstudio-llc/anahisoft-erp-sub005/pkg/crypto"
)

// Free-plan signups get a short trial plus a grace window before the
// sweep can touch them.
const (
	freeTrialDays = 5
	freeGraceDays = 30
)

// RegisterRequest describes a public self-registration
type RegisterRequest struct {
	ID            string
	Name          string
	Email         string
	Password      string
	PlanSlug      string
	BillingPeriod models.BillingPeriod
}

// Register provisions a tenant through the public sign-up flow. Billing
// dates come from the plan price and period: a free plan gets a 5-day
// trial and a 30-day grace window; a paid plan gets no trial and a period
// of one month or one year from now. Exactly one admin user is seeded
// inside the new schema, and a subscription history row mirrors the
// tenant's billing fields. Rollback on failure works as in Provision.
func (p *Provisioner) Register(ctx context.Context, req RegisterRequest) (*models.Tenant, error) {
	plan, err := p.validate(ctx, Request{
		ID:       req.ID,
		Email:    req.Email,
		PlanSlug: req.PlanSlug,
	})
	if err != nil {
		return nil, err
	}

	period := req.BillingPeriod
	if period == "" {
		period = models.BillingPeriodMonthly
	}

	now := p.now()
	tenant := &models.Tenant{
		ID:       req.ID,
		IsActive: true,
		Data: models.Variables{
			"companyName": req.Name,
			"email":       req.Email,
		},
		PlanID:        &plan.Slug,
		BillingPeriod: period,
	}

	status := models.SubscriptionStatusActive
	if plan.IsFree() {
		trialEnd := now.AddDate(0, 0, freeTrialDays)
		graceEnd := now.AddDate(0, 0, freeGraceDays)
		tenant.TrialEndsAt = &trialEnd
		tenant.SubscriptionEndsAt = &graceEnd
		tenant.SubscriptionActive = true
		status = models.SubscriptionStatusTrialing
	} else {
		var periodEnd time.Time
		if period == models.BillingPeriodYearly {
			periodEnd = now.AddDate(1, 0, 0)
		} else {
			periodEnd = now.AddDate(0, 1, 0)
		}
		tenant.SubscriptionEndsAt = &periodEnd
		tenant.SubscriptionActive = true
	}

	if err := p.store.CreateTenant(ctx, tenant); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return nil, ErrDuplicateTenant
		}
		return nil, fmt.Errorf("create tenant: %w", err)
	}

	if err := p.registerBuildOut(ctx, tenant, req, status); err != nil {
		p.rollback(ctx, tenant.ID)
		return nil, err
	}

	p.audit(ctx, tenant.ID, fmt.Sprintf("Tenant %s self-registered on plan %s", tenant.ID, plan.Slug))

	log.Info().
		Str("tenant_id", tenant.ID).
		Str("plan", plan.Slug).
		Str("billing_period", string(period)).
		Msg("Tenant registered")

	return tenant, nil
}

func (p *Provisioner) registerBuildOut(ctx context.Context, tenant *models.Tenant, req RegisterRequest, status models.SubscriptionStatus) error {
	domain := &models.Domain{
		Hostname: fmt.Sprintf("%s.%s", tenant.ID, p.baseDomain),
		TenantID: tenant.ID,
	}
	if err := p.store.CreateDomain(ctx, domain); err != nil {
		return &ProvisioningError{TenantID: tenant.ID, Step: "create domain", Cause: err}
	}

	if err := p.schemas.CreateSchema(ctx, tenant.ID); err != nil {
		return &ProvisioningError{TenantID: tenant.ID, Step: "create schema", Cause: err}
	}

	if err := p.schemas.MigrateSchema(ctx, tenant.ID); err != nil {
		return &ProvisioningError{TenantID: tenant.ID, Step: "migrate schema", Cause: err}
	}

	sub := &models.Subscription{
		TenantID:      tenant.ID,
		PlanID:        *tenant.PlanID,
		BillingPeriod: tenant.BillingPeriod,
		Status:        status,
		TrialEndsAt:   tenant.TrialEndsAt,
		EndsAt:        tenant.SubscriptionEndsAt,
	}
	if err := p.store.CreateSubscription(ctx, sub); err != nil {
		return &ProvisioningError{TenantID: tenant.ID, Step: "create subscription", Cause: err}
	}

	hash, err := crypto.HashPassword(req.Password)
	if err != nil {
		return &ProvisioningError{TenantID: tenant.ID, Step: "hash password", Cause: err}
	}

	admin := &models.User{
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: hash,
		Role:         models.RoleAdmin,
		IsActive:     true,
	}
	if err := p.schemas.CreateTenantUser(ctx, tenant.ID, admin); err != nil {
		return &ProvisioningError{TenantID: tenant.ID, Step: "seed admin user", Cause: err}
	}

	return nil
}
