package sweep

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zxstudio-llc/anahisoft-erp-sub005/internal/models"
	"github.com/zxstudio-llc/anahisoft-erp-sub005/internal/storage"
)

// capturePublisher records published events for inspection
type capturePublisher struct {
	events []models.DeactivationEvent
}

func (p *capturePublisher) PublishDeactivation(ctx context.Context, event models.DeactivationEvent) error {
	p.events = append(p.events, event)
	return nil
}

// failingStore makes UpdateTenant fail for one tenant id
type failingStore struct {
	storage.Store
	failID string
}

func (s *failingStore) UpdateTenant(ctx context.Context, tenant *models.Tenant) error {
	if tenant.ID == s.failID {
		return errors.New("connection reset")
	}
	return s.Store.UpdateTenant(ctx, tenant)
}

func newTestSweeper(store storage.Store, pub *capturePublisher, now time.Time) *Sweeper {
	s := NewSweeper(store, pub)
	s.now = func() time.Time { return now }
	return s
}

func TestSweepDeactivatesExpiredPaid(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore()
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	ends := now.Add(-time.Second)
	require.NoError(t, store.CreateTenant(ctx, &models.Tenant{
		ID:                 "acme",
		IsActive:           true,
		SubscriptionActive: true,
		SubscriptionEndsAt: &ends,
	}))

	pub := &capturePublisher{}
	sweeper := newTestSweeper(store, pub, now)

	report, err := sweeper.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, report.PaidChecked)
	assert.Equal(t, []string{"acme"}, report.Deactivated)
	assert.Empty(t, report.Failures)

	tenant, err := store.GetTenant(ctx, "acme")
	require.NoError(t, err)
	assert.False(t, tenant.SubscriptionActive)

	require.Len(t, pub.events, 1)
	assert.Equal(t, "acme", pub.events[0].TenantID)
	assert.False(t, pub.events[0].IsActive)
	assert.NotEmpty(t, pub.events[0].Message)

	// One audit entry per deactivation
	expired := models.EventTypeSubscriptionExpired
	logs, _, err := store.ListEventLogs(ctx, storage.EventLogFilters{Type: &expired}, 10, 0)
	require.NoError(t, err)
	assert.Len(t, logs, 1)

	// Second run: the row fell out of the predicate, no duplicate events
	report, err = sweeper.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.PaidChecked)
	assert.Empty(t, report.Deactivated)
	assert.Len(t, pub.events, 1)

	logs, _, err = store.ListEventLogs(ctx, storage.EventLogFilters{Type: &expired}, 10, 0)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestSweepLeavesBoundaryRowAlone(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore()
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	// Ends exactly at now: strict < means not expired yet
	ends := now
	require.NoError(t, store.CreateTenant(ctx, &models.Tenant{
		ID:                 "edge",
		IsActive:           true,
		SubscriptionActive: true,
		SubscriptionEndsAt: &ends,
	}))

	pub := &capturePublisher{}
	report, err := newTestSweeper(store, pub, now).Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 0, report.PaidChecked)
	assert.Empty(t, report.Deactivated)
	assert.Empty(t, pub.events)

	tenant, err := store.GetTenant(ctx, "edge")
	require.NoError(t, err)
	assert.True(t, tenant.SubscriptionActive)
}

func TestSweepTrialLapseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore()
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	trialEnd := now.Add(-time.Hour)
	require.NoError(t, store.CreateTenant(ctx, &models.Tenant{
		ID:                 "trial-co",
		IsActive:           true,
		SubscriptionActive: true,
		TrialEndsAt:        &trialEnd,
	}))

	pub := &capturePublisher{}
	sweeper := newTestSweeper(store, pub, now)

	report, err := sweeper.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"trial-co"}, report.Deactivated)
	assert.Len(t, pub.events, 1)

	tenant, err := store.GetTenant(ctx, "trial-co")
	require.NoError(t, err)
	assert.False(t, tenant.SubscriptionActive)

	// Second run with no intervening change: same state, no new events
	report, err = sweeper.Run(ctx)
	require.NoError(t, err)
	assert.Empty(t, report.Deactivated)
	assert.Len(t, pub.events, 1)
}

func TestSweepRowFailureDoesNotAbortBatch(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemStore()
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	ends := now.Add(-time.Minute)
	for _, id := range []string{"alpha", "bravo"} {
		require.NoError(t, mem.CreateTenant(ctx, &models.Tenant{
			ID:                 id,
			IsActive:           true,
			SubscriptionActive: true,
			SubscriptionEndsAt: &ends,
		}))
	}

	pub := &capturePublisher{}
	store := &failingStore{Store: mem, failID: "alpha"}
	report, err := newTestSweeper(store, pub, now).Run(ctx)
	require.NoError(t, err)

	// alpha fails, bravo still gets processed
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "alpha", report.Failures[0].TenantID)
	assert.Equal(t, []string{"bravo"}, report.Deactivated)

	bravo, err := mem.GetTenant(ctx, "bravo")
	require.NoError(t, err)
	assert.False(t, bravo.SubscriptionActive)

	alpha, err := mem.GetTenant(ctx, "alpha")
	require.NoError(t, err)
	assert.True(t, alpha.SubscriptionActive)
}
