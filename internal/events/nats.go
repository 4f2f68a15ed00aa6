package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/zxstudio-llc/anahisoft-erp-sub005/internal/models"
)

// NATSPublisher publishes tenant lifecycle events to NATS
type NATSPublisher struct {
	nc *nats.Conn
}

// NewNATSPublisher creates a NATS publisher
func NewNATSPublisher(nc *nats.Conn) *NATSPublisher {
	return &NATSPublisher{nc: nc}
}

// PublishDeactivation publishes a deactivation event on
// tenant.{id}.deactivated
func (p *NATSPublisher) PublishDeactivation(ctx context.Context, event models.DeactivationEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal deactivation event: %w", err)
	}

	subject := fmt.Sprintf("tenant.%s.deactivated", event.TenantID)
	if err := p.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}

	log.Debug().
		Str("subject", subject).
		Str("tenant_id", event.TenantID).
		Msg("Published deactivation event")

	return nil
}
