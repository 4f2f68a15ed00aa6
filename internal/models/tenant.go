package models

import (
	"time"
)

// BillingPeriod represents the billing cadence of a tenant
type BillingPeriod string

const (
	BillingPeriodMonthly BillingPeriod = "monthly"
	BillingPeriodYearly  BillingPeriod = "yearly"
)

// Tenant represents a customer account with its own domain and schema.
// The ID is a lowercase slug and doubles as the tenant schema suffix.
type Tenant struct {
	ID        string    `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`

	Data Variables `json:"data" db:"data"`

	// Status
	IsActive bool `json:"isActive" db:"is_active"`

	// Billing
	PlanID             *string       `json:"planId,omitempty" db:"subscription_plan_id"`
	BillingPeriod      BillingPeriod `json:"billingPeriod" db:"billing_period"`
	TrialEndsAt        *time.Time    `json:"trialEndsAt,omitempty" db:"trial_ends_at"`
	SubscriptionActive bool          `json:"subscriptionActive" db:"subscription_active"`
	SubscriptionEndsAt *time.Time    `json:"subscriptionEndsAt,omitempty" db:"subscription_ends_at"`
}

// Domain represents a hostname routed to a tenant
type Domain struct {
	Hostname  string    `json:"hostname" db:"hostname"`
	TenantID  string    `json:"tenantId" db:"tenant_id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
