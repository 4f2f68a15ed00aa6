// Package subscription classifies a tenant's subscription state. The
// sweep job and the request-time middleware both call Evaluate so that
// they agree on the exact expiry boundary.
package subscription

import (
	"time"

	"github.com/zxstudio-llc/anahisoft-erp-sub005/internal/models"
)

// State classifies a tenant's subscription at a point in time
type State string

const (
	// StateActive means a paid subscription is current
	StateActive State = "active"
	// StateTrialActive means the tenant is inside its trial window
	StateTrialActive State = "trial"
	// StateExpired means the cached subscription_active flag is stale:
	// the flag is still set but the end date has passed. The sweep job
	// corrects these rows.
	StateExpired State = "expired"
	// StateNone means the tenant has no current subscription or trial
	StateNone State = "none"
)

// Valid reports whether the state grants product access
func (s State) Valid() bool {
	return s == StateActive || s == StateTrialActive
}

// Evaluate classifies the tenant's subscription at time now. It is a pure
// function of (subscription_active, subscription_ends_at, trial_ends_at,
// now) and has no side effects.
//
// Expiry uses strict less-than: a subscription ending exactly at now is
// still active.
func Evaluate(t *models.Tenant, now time.Time) State {
	if t.SubscriptionActive {
		if t.SubscriptionEndsAt == nil || !t.SubscriptionEndsAt.Before(now) {
			return StateActive
		}
		return StateExpired
	}

	if t.SubscriptionEndsAt == nil && t.TrialEndsAt != nil && !t.TrialEndsAt.Before(now) {
		return StateTrialActive
	}

	return StateNone
}
