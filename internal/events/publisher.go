// Package events carries tenant lifecycle notifications out of the core.
// The sweep job and provisioning publish through the Publisher interface
// so the core never depends on a particular bus.
package events

import (
	"context"

	"github.com/zxstudio-llc/anahisoft-erp-sub005/internal/models"
)

// Publisher publishes tenant lifecycle events
type Publisher interface {
	PublishDeactivation(ctx context.Context, event models.DeactivationEvent) error
}

// NopPublisher drops all events. Used by the console and in tests.
type NopPublisher struct{}

// PublishDeactivation does nothing
func (NopPublisher) PublishDeactivation(ctx context.Context, event models.DeactivationEvent) error {
	return nil
}
