package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zxstudio-llc/anahisoft-erp-sub005/internal/config"
	"github.com/zxstudio-llc/anahisoft-erp-sub005/internal/events"
	"github.com/zxstudio-llc/anahisoft-erp-sub005/internal/models"
	"github.com/zxstudio-llc/anahisoft-erp-sub005/internal/storage"
)

type capturePublisher struct {
	events []models.DeactivationEvent
}

func (p *capturePublisher) PublishDeactivation(ctx context.Context, event models.DeactivationEvent) error {
	p.events = append(p.events, event)
	return nil
}

func TestRunSweepPublishesDeactivations(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore()

	ends := time.Now().Add(-time.Minute)
	require.NoError(t, store.CreateTenant(ctx, &models.Tenant{
		ID:                 "acme",
		IsActive:           true,
		SubscriptionActive: true,
		SubscriptionEndsAt: &ends,
	}))

	// The console path carries the publisher through to the sweeper;
	// deactivation events must reach it, not a discard sink.
	pub := &capturePublisher{}
	require.NoError(t, runSweep(ctx, store, pub))

	require.Len(t, pub.events, 1)
	assert.Equal(t, "acme", pub.events[0].TenantID)
	assert.False(t, pub.events[0].IsActive)
	assert.NotEmpty(t, pub.events[0].Message)
}

func TestSweepPublisherWithoutNATS(t *testing.T) {
	pub, cleanup := sweepPublisher(&config.Config{})
	defer cleanup()

	assert.IsType(t, events.NopPublisher{}, pub)
}
