// Package provisioning creates tenants: the central rows, the isolated
// schema, and the initial data inside it. The workflow is all-or-nothing:
// the schema migration runs on its own connection and cannot join a
// central transaction, so failures after the tenant row exists are
// compensated by deleting the row again.
package provisioning

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zxstudio-llc/anahisoft-erp-sub005/internal/models"
	"github.com/zxstudio-llc/anahisoft-erp-sub005/internal/storage"
	"github.com/zxstudio-llc/anahisoft-erp-sub005/internal/validation"
)

// Validation errors, surfaced before any mutation
var (
	ErrDuplicateTenant   = errors.New("tenant already exists")
	ErrInvalidIdentifier = errors.New("invalid tenant identifier")
	ErrInvalidEmail      = errors.New("invalid email address")
	ErrUnknownPlan       = errors.New("unknown plan")
)

// ProvisioningError wraps a failure that happened after the tenant row
// was created. By the time the caller sees it, the compensating delete
// has already run.
type ProvisioningError struct {
	TenantID string
	Step     string
	Cause    error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("provisioning %s failed at %s: %v", e.TenantID, e.Step, e.Cause)
}

func (e *ProvisioningError) Unwrap() error {
	return e.Cause
}

var identifierPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// Request describes a tenant to provision
type Request struct {
	ID        string
	Name      string
	Email     string
	PlanSlug  string
	TrialDays int
	Active    bool
	Seed      bool
}

// Provisioner creates and rolls back tenants
type Provisioner struct {
	store      storage.Store
	schemas    storage.SchemaManager
	validator  *validation.Validator
	baseDomain string

	now func() time.Time
}

// NewProvisioner creates a provisioner
func NewProvisioner(store storage.Store, schemas storage.SchemaManager, baseDomain string) *Provisioner {
	return &Provisioner{
		store:      store,
		schemas:    schemas,
		validator:  validation.NewValidator(),
		baseDomain: baseDomain,
		now:        time.Now,
	}
}

// Provision creates a new tenant. Validation failures return before any
// row is written; later failures delete the tenant row (domains cascade)
// and surface as *ProvisioningError.
func (p *Provisioner) Provision(ctx context.Context, req Request) (*models.Tenant, error) {
	plan, err := p.validate(ctx, req)
	if err != nil {
		return nil, err
	}

	now := p.now()
	tenant := &models.Tenant{
		ID:       req.ID,
		IsActive: req.Active,
		Data: models.Variables{
			"companyName": req.Name,
			"email":       req.Email,
		},
		PlanID:        &plan.Slug,
		BillingPeriod: models.BillingPeriodMonthly,
	}
	if req.TrialDays > 0 {
		trialEnd := now.AddDate(0, 0, req.TrialDays)
		tenant.TrialEndsAt = &trialEnd
	}

	// The insert's unique constraint is the real duplicate guard; the
	// earlier existence check only gives a friendlier fast path.
	if err := p.store.CreateTenant(ctx, tenant); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return nil, ErrDuplicateTenant
		}
		return nil, fmt.Errorf("create tenant: %w", err)
	}

	if err := p.buildOut(ctx, tenant, req, plan); err != nil {
		p.rollback(ctx, tenant.ID)
		return nil, err
	}

	p.audit(ctx, tenant.ID, fmt.Sprintf("Tenant %s provisioned on plan %s", tenant.ID, plan.Slug))

	log.Info().
		Str("tenant_id", tenant.ID).
		Str("plan", plan.Slug).
		Bool("seeded", req.Seed).
		Msg("Tenant provisioned")

	return tenant, nil
}

// validate runs the ordered pre-mutation checks
func (p *Provisioner) validate(ctx context.Context, req Request) (*models.Plan, error) {
	if _, err := p.store.GetTenant(ctx, req.ID); err == nil {
		return nil, ErrDuplicateTenant
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("check tenant existence: %w", err)
	}

	if !identifierPattern.MatchString(req.ID) {
		return nil, ErrInvalidIdentifier
	}

	if !p.validator.IsEmail(req.Email) {
		return nil, ErrInvalidEmail
	}

	plan, err := p.store.GetPlan(ctx, req.PlanSlug)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUnknownPlan
		}
		return nil, fmt.Errorf("look up plan: %w", err)
	}

	return plan, nil
}

// buildOut runs every step after the tenant row exists
func (p *Provisioner) buildOut(ctx context.Context, tenant *models.Tenant, req Request, plan *models.Plan) error {
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

	if req.Seed {
		if err := p.seedDemoData(ctx, tenant.ID, req, plan); err != nil {
			return &ProvisioningError{TenantID: tenant.ID, Step: "seed data", Cause: err}
		}
	}

	return nil
}

// rollback removes everything buildOut may have created. Errors here are
// logged, not returned: the original failure is what the caller needs.
func (p *Provisioner) rollback(ctx context.Context, tenantID string) {
	log.Warn().Str("tenant_id", tenantID).Msg("Rolling back partially provisioned tenant")

	if err := p.schemas.DropSchema(ctx, tenantID); err != nil {
		log.Error().Err(err).Str("tenant_id", tenantID).Msg("Rollback: failed to drop schema")
	}

	if err := p.store.DeleteTenant(ctx, tenantID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		log.Error().Err(err).Str("tenant_id", tenantID).Msg("Rollback: failed to delete tenant row")
	}
}

func (p *Provisioner) audit(ctx context.Context, tenantID, description string) {
	entry := &models.EventLog{
		TenantID:    &tenantID,
		Type:        models.EventTypeTenantCreated,
		Level:       models.EventLevelInfo,
		Description: description,
	}
	if err := p.store.CreateEventLog(ctx, entry); err != nil {
		log.Warn().Err(err).Str("tenant_id", tenantID).Msg("Failed to write audit log entry")
	}
}
