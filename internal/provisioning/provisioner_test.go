package provisioning

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zxstudio-llc/anahisoft-erp-sub005/internal/models"
	"github.com/zxstudio-llc/anahisoft-erp-sub005/internal/storage"
	"github.com/zxstudio-llc/anahisoft-erp-sub005/pkg/crypto"
)

const testBaseDomain = "invoicing.test"

func newTestStore(t *testing.T) *storage.MemStore {
	t.Helper()
	store := storage.NewMemStore()
	ctx := context.Background()

	require.NoError(t, store.CreatePlan(ctx, &models.Plan{
		Slug:         "free",
		Name:         "Free",
		InvoiceLimit: 10,
		TrialDays:    14,
	}))
	require.NoError(t, store.CreatePlan(ctx, &models.Plan{
		Slug:         "pro",
		Name:         "Pro",
		PriceMonthly: 29,
		PriceYearly:  290,
		InvoiceLimit: 0,
	}))
	return store
}

func newTestProvisioner(store *storage.MemStore, schemas storage.SchemaManager, now time.Time) *Provisioner {
	p := NewProvisioner(store, schemas, testBaseDomain)
	p.now = func() time.Time { return now }
	return p
}

// failingSchemas makes the demo seed step fail
type failingSchemas struct {
	storage.SchemaManager
}

func (s *failingSchemas) SeedDemoCatalog(ctx context.Context, tenantID string) error {
	return errors.New("out of disk")
}

func TestProvisionCreatesTenant(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	p := newTestProvisioner(store, store, now)

	tenant, err := p.Provision(ctx, Request{
		ID:        "acme",
		Name:      "Acme Corp",
		Email:     "owner@acme.test",
		PlanSlug:  "free",
		TrialDays: 14,
		Active:    true,
	})
	require.NoError(t, err)

	assert.Equal(t, "acme", tenant.ID)
	assert.True(t, tenant.IsActive)
	assert.False(t, tenant.SubscriptionActive)
	require.NotNil(t, tenant.TrialEndsAt)
	assert.Equal(t, now.AddDate(0, 0, 14), *tenant.TrialEndsAt)

	// Domain resolves back to the tenant
	resolved, err := store.GetTenantByHostname(ctx, "acme."+testBaseDomain)
	require.NoError(t, err)
	assert.Equal(t, "acme", resolved.ID)

	// Schema exists and is migrated
	require.NoError(t, store.WithSchema(ctx, "acme", func(ctx context.Context) error { return nil }))

	// Audit trail
	created := models.EventTypeTenantCreated
	logs, _, err := store.ListEventLogs(ctx, storage.EventLogFilters{Type: &created}, 10, 0)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestProvisionValidationOrder(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	p := newTestProvisioner(store, store, now)

	_, err := p.Provision(ctx, Request{
		ID: "acme", Name: "Acme", Email: "owner@acme.test", PlanSlug: "free",
	})
	require.NoError(t, err)

	// Existence wins over every later check
	_, err = p.Provision(ctx, Request{ID: "acme", Email: "not-an-email", PlanSlug: "ultra"})
	assert.ErrorIs(t, err, ErrDuplicateTenant)

	_, err = p.Provision(ctx, Request{ID: "New_Co", Email: "owner@new.test", PlanSlug: "free"})
	assert.ErrorIs(t, err, ErrInvalidIdentifier)

	_, err = p.Provision(ctx, Request{ID: "new-co", Email: "not-an-email", PlanSlug: "free"})
	assert.ErrorIs(t, err, ErrInvalidEmail)

	_, err = p.Provision(ctx, Request{ID: "new-co", Email: "owner@new.test", PlanSlug: "ultra"})
	assert.ErrorIs(t, err, ErrUnknownPlan)

	// Validation failures never write a row
	_, err = store.GetTenant(ctx, "new-co")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestProvisionSeedFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	p := newTestProvisioner(store, &failingSchemas{SchemaManager: store}, now)

	_, err := p.Provision(ctx, Request{
		ID:       "doomed",
		Name:     "Doomed Inc",
		Email:    "owner@doomed.test",
		PlanSlug: "free",
		Active:   true,
		Seed:     true,
	})
	require.Error(t, err)

	var perr *ProvisioningError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "doomed", perr.TenantID)
	assert.Equal(t, "seed data", perr.Step)

	// No orphan row, no orphan domain
	_, err = store.GetTenant(ctx, "doomed")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = store.GetTenantByHostname(ctx, "doomed."+testBaseDomain)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRegisterFreePlan(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	p := newTestProvisioner(store, store, now)

	tenant, err := p.Register(ctx, RegisterRequest{
		ID:       "startup",
		Name:     "Startup SA",
		Email:    "founder@startup.test",
		Password: "correct-horse-battery",
		PlanSlug: "free",
	})
	require.NoError(t, err)

	// Free signup: short trial plus a grace window before the sweep
	// can deactivate it
	require.NotNil(t, tenant.TrialEndsAt)
	assert.Equal(t, now.AddDate(0, 0, 5), *tenant.TrialEndsAt)
	require.NotNil(t, tenant.SubscriptionEndsAt)
	assert.Equal(t, now.AddDate(0, 0, 30), *tenant.SubscriptionEndsAt)
	assert.True(t, tenant.SubscriptionActive)

	sub, err := store.GetActiveSubscription(ctx, "startup")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusTrialing, sub.Status)
	assert.Equal(t, "free", sub.PlanID)

	// Exactly one admin user inside the schema, with a usable password
	users := store.TenantUsers("startup")
	require.Len(t, users, 1)
	assert.Equal(t, models.RoleAdmin, users[0].Role)
	assert.Equal(t, "founder@startup.test", users[0].Email)
	assert.True(t, crypto.VerifyPassword("correct-horse-battery", users[0].PasswordHash))
}

func TestRegisterPaidPlan(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	p := newTestProvisioner(store, store, now)

	monthly, err := p.Register(ctx, RegisterRequest{
		ID:            "monthly-co",
		Name:          "Monthly Co",
		Email:         "owner@monthly.test",
		Password:      "pw-pw-pw-pw",
		PlanSlug:      "pro",
		BillingPeriod: models.BillingPeriodMonthly,
	})
	require.NoError(t, err)
	assert.Nil(t, monthly.TrialEndsAt)
	require.NotNil(t, monthly.SubscriptionEndsAt)
	assert.Equal(t, now.AddDate(0, 1, 0), *monthly.SubscriptionEndsAt)
	assert.True(t, monthly.SubscriptionActive)

	yearly, err := p.Register(ctx, RegisterRequest{
		ID:            "yearly-co",
		Name:          "Yearly Co",
		Email:         "owner@yearly.test",
		Password:      "pw-pw-pw-pw",
		PlanSlug:      "pro",
		BillingPeriod: models.BillingPeriodYearly,
	})
	require.NoError(t, err)
	require.NotNil(t, yearly.SubscriptionEndsAt)
	assert.Equal(t, now.AddDate(1, 0, 0), *yearly.SubscriptionEndsAt)

	sub, err := store.GetActiveSubscription(ctx, "monthly-co")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusActive, sub.Status)
}

func TestRegisterDuplicate(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	p := newTestProvisioner(store, store, now)

	req := RegisterRequest{
		ID:       "taken",
		Name:     "Taken",
		Email:    "owner@taken.test",
		Password: "pw-pw-pw-pw",
		PlanSlug: "free",
	}
	_, err := p.Register(ctx, req)
	require.NoError(t, err)

	_, err = p.Register(ctx, req)
	assert.ErrorIs(t, err, ErrDuplicateTenant)
}
