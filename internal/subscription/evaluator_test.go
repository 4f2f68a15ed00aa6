package subscription

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/zxstudio-llc/anahisoft-erp-sub005/internal/models"
)

func TestEvaluate(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Second)
	future := now.Add(time.Hour)

	tests := []struct {
		name               string
		subscriptionActive bool
		subscriptionEndsAt *time.Time
		trialEndsAt        *time.Time
		want               State
	}{
		{
			name:               "paid subscription with future end date",
			subscriptionActive: true,
			subscriptionEndsAt: &future,
			want:               StateActive,
		},
		{
			name:               "paid subscription with no end date",
			subscriptionActive: true,
			want:               StateActive,
		},
		{
			name:               "subscription ending exactly now is still active",
			subscriptionActive: true,
			subscriptionEndsAt: &now,
			want:               StateActive,
		},
		{
			name:               "active flag stale after end date",
			subscriptionActive: true,
			subscriptionEndsAt: &past,
			want:               StateExpired,
		},
		{
			name:        "trial window still open",
			trialEndsAt: &future,
			want:        StateTrialActive,
		},
		{
			name:        "trial ending exactly now is still in trial",
			trialEndsAt: &now,
			want:        StateTrialActive,
		},
		{
			name:        "trial lapsed",
			trialEndsAt: &past,
			want:        StateNone,
		},
		{
			name: "no subscription and no trial",
			want: StateNone,
		},
		{
			name:               "inactive flag with a future end date is not a trial",
			subscriptionEndsAt: &future,
			trialEndsAt:        &future,
			want:               StateNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tenant := &models.Tenant{
				ID:                 "acme",
				IsActive:           true,
				SubscriptionActive: tt.subscriptionActive,
				SubscriptionEndsAt: tt.subscriptionEndsAt,
				TrialEndsAt:        tt.trialEndsAt,
			}

			assert.Equal(t, tt.want, Evaluate(tenant, now))
		})
	}
}

func TestEvaluateIsPure(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	ends := now.Add(-time.Minute)

	tenant := &models.Tenant{
		ID:                 "acme",
		SubscriptionActive: true,
		SubscriptionEndsAt: &ends,
	}
	before := *tenant

	first := Evaluate(tenant, now)
	second := Evaluate(tenant, now)

	assert.Equal(t, first, second)
	assert.Equal(t, before, *tenant, "Evaluate must not mutate the tenant")
}

func TestStateValid(t *testing.T) {
	assert.True(t, StateActive.Valid())
	assert.True(t, StateTrialActive.Valid())
	assert.False(t, StateExpired.Valid())
	assert.False(t, StateNone.Valid())
}
