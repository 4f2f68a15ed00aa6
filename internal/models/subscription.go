package models

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus represents the state of a billing record
type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusTrialing SubscriptionStatus = "trialing"
	SubscriptionStatusExpired  SubscriptionStatus = "expired"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
)

// Subscription represents a historical billing record for a tenant.
// The tenant row caches the currently effective values; these rows keep
// the history. A tenant has at most one row with status = active.
type Subscription struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`

	TenantID      string             `json:"tenantId" db:"tenant_id"`
	PlanID        string             `json:"planId" db:"plan_id"`
	BillingPeriod BillingPeriod      `json:"billingPeriod" db:"billing_period"`
	Status        SubscriptionStatus `json:"status" db:"status"`

	TrialEndsAt *time.Time `json:"trialEndsAt,omitempty" db:"trial_ends_at"`
	EndsAt      *time.Time `json:"endsAt,omitempty" db:"ends_at"`
}
