// Package sweep reconciles time-based subscription state. The sweeper
// deactivates tenants whose paid period or trial has lapsed; request-time
// checks alone cannot catch these without traffic.
package sweep

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zxstudio-llc/anahisoft-erp-sub005/internal/events"
	"github.com/zxstudio-llc/anahisoft-erp-sub005/internal/models"
	"github.com/zxstudio-llc/anahisoft-erp-sub005/internal/storage"
)

// RowFailure records a per-tenant failure inside a batch. A failed row
// never aborts the batch.
type RowFailure struct {
	TenantID string
	Err      error
}

func (f RowFailure) Error() string {
	return fmt.Sprintf("tenant %s: %v", f.TenantID, f.Err)
}

// Report summarizes one sweep run
type Report struct {
	StartedAt    time.Time
	PaidChecked  int
	TrialChecked int
	Deactivated  []string
	Failures     []RowFailure
}

// Sweeper deactivates expired tenants
type Sweeper struct {
	store  storage.Store
	events events.Publisher

	// now is swapped in tests
	now func() time.Time
}

// NewSweeper creates a sweeper
func NewSweeper(store storage.Store, publisher events.Publisher) *Sweeper {
	return &Sweeper{
		store:  store,
		events: publisher,
		now:    time.Now,
	}
}

// Run executes both expiration passes. Re-running a completed sweep is a
// no-op: deactivated rows fall out of the selection predicates, so no
// duplicate events are emitted.
func (s *Sweeper) Run(ctx context.Context) (*Report, error) {
	now := s.now()
	report := &Report{StartedAt: now}

	log.Info().Time("now", now).Msg("Starting subscription expiration sweep")

	// Pass A: paid subscriptions whose end date has passed while the
	// cached flag still says active.
	paid, err := s.store.ListPaidExpired(ctx, now)
	if err != nil {
		return report, fmt.Errorf("list paid expired: %w", err)
	}
	report.PaidChecked = len(paid)

	for _, tenant := range paid {
		msg := fmt.Sprintf("Subscription for tenant %s expired at %s",
			tenant.ID, tenant.SubscriptionEndsAt.Format(time.RFC3339))
		if err := s.deactivate(ctx, tenant, models.EventTypeSubscriptionExpired, msg); err != nil {
			report.Failures = append(report.Failures, RowFailure{TenantID: tenant.ID, Err: err})
			log.Error().Err(err).Str("tenant_id", tenant.ID).Msg("Failed to deactivate expired tenant")
			continue
		}
		report.Deactivated = append(report.Deactivated, tenant.ID)
	}

	// Pass B: trials that lapsed without ever moving to a paid period.
	trials, err := s.store.ListTrialLapsed(ctx, now)
	if err != nil {
		return report, fmt.Errorf("list trial lapsed: %w", err)
	}
	report.TrialChecked = len(trials)

	for _, tenant := range trials {
		if !tenant.SubscriptionActive {
			// Trial rows can already be off; skip without an event so a
			// second run stays silent.
			continue
		}
		msg := fmt.Sprintf("Trial for tenant %s ended at %s",
			tenant.ID, tenant.TrialEndsAt.Format(time.RFC3339))
		if err := s.deactivate(ctx, tenant, models.EventTypeTrialExpired, msg); err != nil {
			report.Failures = append(report.Failures, RowFailure{TenantID: tenant.ID, Err: err})
			log.Error().Err(err).Str("tenant_id", tenant.ID).Msg("Failed to deactivate lapsed trial")
			continue
		}
		report.Deactivated = append(report.Deactivated, tenant.ID)
	}

	log.Info().
		Int("paid_checked", report.PaidChecked).
		Int("trial_checked", report.TrialChecked).
		Int("deactivated", len(report.Deactivated)).
		Int("failures", len(report.Failures)).
		Msg("Sweep completed")

	return report, nil
}

// deactivate persists the flag flip, then audits and notifies. The write
// comes first so that a notification failure never leaves the flag stale.
func (s *Sweeper) deactivate(ctx context.Context, tenant *models.Tenant, eventType models.EventType, message string) error {
	tenant.SubscriptionActive = false
	if err := s.store.UpdateTenant(ctx, tenant); err != nil {
		return fmt.Errorf("update tenant: %w", err)
	}

	audit := &models.EventLog{
		TenantID:    &tenant.ID,
		Type:        eventType,
		Level:       models.EventLevelInfo,
		Description: message,
		Details: models.Variables{
			"subscriptionActive": false,
		},
	}
	if err := s.store.CreateEventLog(ctx, audit); err != nil {
		log.Warn().Err(err).Str("tenant_id", tenant.ID).Msg("Failed to write audit log entry")
	}

	event := models.DeactivationEvent{
		TenantID:  tenant.ID,
		IsActive:  false,
		Message:   message,
		Timestamp: s.now(),
	}
	if err := s.events.PublishDeactivation(ctx, event); err != nil {
		log.Warn().Err(err).Str("tenant_id", tenant.ID).Msg("Failed to publish deactivation event")
	}

	return nil
}
