package models

import (
	"time"
)

// Plan represents a subscription plan. Plans are reference data kept in
// the central schema and consulted by the quota middleware.
type Plan struct {
	Slug      string    `json:"slug" db:"slug"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`

	Name         string  `json:"name" db:"name"`
	PriceMonthly float64 `json:"priceMonthly" db:"price_monthly"`
	PriceYearly  float64 `json:"priceYearly" db:"price_yearly"`

	// InvoiceLimit is the per-month invoice cap. 0 means unlimited.
	InvoiceLimit int `json:"invoiceLimit" db:"invoice_limit"`

	// TrialDays is the default trial window granted on self-registration
	TrialDays int `json:"trialDays" db:"trial_days"`
}

// IsFree reports whether the plan has no price attached
func (p *Plan) IsFree() bool {
	return p.PriceMonthly == 0 && p.PriceYearly == 0
}
