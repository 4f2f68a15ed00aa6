package models

import (
	"time"

	"github.com/google/uuid"
)

// EventLog represents an audit log entry
type EventLog struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	TenantID *string `json:"tenantId,omitempty" db:"tenant_id"`

	Type        EventType  `json:"type" db:"type"`
	Level       EventLevel `json:"level" db:"level"`
	Description string     `json:"description" db:"description"`

	Details Variables `json:"details,omitempty" db:"details"`
}

// EventType represents event types
type EventType string

const (
	// Tenant lifecycle events
	EventTypeTenantCreated     EventType = "TENANT_CREATED"
	EventTypeTenantDeleted     EventType = "TENANT_DELETED"
	EventTypeTenantDeactivated EventType = "TENANT_DEACTIVATED"

	// Subscription events
	EventTypeSubscriptionExpired EventType = "SUBSCRIPTION_EXPIRED"
	EventTypeTrialExpired        EventType = "TRIAL_EXPIRED"
	EventTypeSubscriptionStarted EventType = "SUBSCRIPTION_STARTED"

	// System events
	EventTypeSweepCompleted EventType = "SWEEP_COMPLETED"
	EventTypeError          EventType = "ERROR"
)

// EventLevel represents event severity levels
type EventLevel string

const (
	EventLevelDebug   EventLevel = "DEBUG"
	EventLevelInfo    EventLevel = "INFO"
	EventLevelWarning EventLevel = "WARNING"
	EventLevelError   EventLevel = "ERROR"
)

// DeactivationEvent is the payload published when a sweep or an operator
// turns a tenant's subscription off.
type DeactivationEvent struct {
	TenantID  string    `json:"tenantId"`
	IsActive  bool      `json:"isActive"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
