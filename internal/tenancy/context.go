// Package tenancy resolves inbound requests to tenants and enforces the
// per-request invariants: the tenant exists, is active, has a valid
// subscription, and is under its invoice quota. The current tenant moves
// through the request context explicitly; there is no global.
package tenancy

import (
	"context"

	"github.com/zxstudio-llc/anahisoft-erp-sub005/internal/models"
)

type tenantKey struct{}

// NewContext returns a context carrying the resolved tenant
func NewContext(ctx context.Context, tenant *models.Tenant) context.Context {
	return context.WithValue(ctx, tenantKey{}, tenant)
}

// FromContext returns the tenant resolved for this request, if any
func FromContext(ctx context.Context) (*models.Tenant, bool) {
	tenant, ok := ctx.Value(tenantKey{}).(*models.Tenant)
	return tenant, ok
}
