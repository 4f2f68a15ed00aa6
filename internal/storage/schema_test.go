package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zxstudio-llc/anahisoft-erp-sub005/internal/models"
)

func TestSchemaName(t *testing.T) {
	assert.Equal(t, "tenant_acme", SchemaName("acme"))
	assert.Equal(t, "tenant_trial_co", SchemaName("trial-co"))
	assert.Equal(t, "tenant_a_b_c", SchemaName("a-b-c"))
}

func TestMemStoreSweepPredicates(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	past := now.Add(-time.Second)
	future := now.Add(time.Hour)

	// Expired paid row
	require.NoError(t, store.CreateTenant(ctx, &models.Tenant{
		ID: "expired-paid", IsActive: true, SubscriptionActive: true, SubscriptionEndsAt: &past,
	}))
	// Paid row ending exactly now stays out under strict <
	require.NoError(t, store.CreateTenant(ctx, &models.Tenant{
		ID: "boundary-paid", IsActive: true, SubscriptionActive: true, SubscriptionEndsAt: &now,
	}))
	// Current paid row
	require.NoError(t, store.CreateTenant(ctx, &models.Tenant{
		ID: "current-paid", IsActive: true, SubscriptionActive: true, SubscriptionEndsAt: &future,
	}))
	// Lapsed trial row
	require.NoError(t, store.CreateTenant(ctx, &models.Tenant{
		ID: "lapsed-trial", IsActive: true, SubscriptionActive: true, TrialEndsAt: &past,
	}))
	// Trial row with a grace end date belongs to the paid pass, not this one
	require.NoError(t, store.CreateTenant(ctx, &models.Tenant{
		ID: "graced-trial", IsActive: true, SubscriptionActive: true, TrialEndsAt: &past, SubscriptionEndsAt: &future,
	}))

	paid, err := store.ListPaidExpired(ctx, now)
	require.NoError(t, err)
	require.Len(t, paid, 1)
	assert.Equal(t, "expired-paid", paid[0].ID)

	trials, err := store.ListTrialLapsed(ctx, now)
	require.NoError(t, err)
	require.Len(t, trials, 1)
	assert.Equal(t, "lapsed-trial", trials[0].ID)
}

func TestMemStoreTenantCRUD(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	tenant := &models.Tenant{ID: "acme", IsActive: true}
	require.NoError(t, store.CreateTenant(ctx, tenant))
	assert.ErrorIs(t, store.CreateTenant(ctx, &models.Tenant{ID: "acme"}), ErrDuplicateKey)

	require.NoError(t, store.CreateDomain(ctx, &models.Domain{
		Hostname: "acme.invoicing.test", TenantID: "acme",
	}))

	got, err := store.GetTenantByHostname(ctx, "acme.invoicing.test")
	require.NoError(t, err)
	assert.Equal(t, "acme", got.ID)

	// Deleting the tenant takes the domain with it
	require.NoError(t, store.DeleteTenant(ctx, "acme"))
	_, err = store.GetTenantByHostname(ctx, "acme.invoicing.test")
	assert.True(t, errors.Is(err, ErrNotFound))
}
