package tenancy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zxstudio-llc/anahisoft-erp-sub005/internal/models"
	"github.com/zxstudio-llc/anahisoft-erp-sub005/internal/storage"
)

const (
	testBaseDomain  = "invoicing.test"
	testCentralHost = "admin.invoicing.test"
)

var testNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func newTestChain(t *testing.T) (*Chain, *storage.MemStore) {
	t.Helper()
	ctx := context.Background()
	store := storage.NewMemStore()

	require.NoError(t, store.CreatePlan(ctx, &models.Plan{
		Slug: "starter", Name: "Starter", PriceMonthly: 9, InvoiceLimit: 5,
	}))
	require.NoError(t, store.CreatePlan(ctx, &models.Plan{
		Slug: "pro", Name: "Pro", PriceMonthly: 29, InvoiceLimit: 0,
	}))

	chain := NewChain(store, store, ChainConfig{
		CentralHost:           testCentralHost,
		ExpiredPath:           "/subscription/expired",
		SubscriptionAllowlist: []string{"/billing/checkout"},
	})
	chain.now = func() time.Time { return testNow }
	return chain, store
}

func addTenant(t *testing.T, store *storage.MemStore, tenant *models.Tenant) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.CreateTenant(ctx, tenant))
	require.NoError(t, store.CreateDomain(ctx, &models.Domain{
		Hostname: tenant.ID + "." + testBaseDomain,
		TenantID: tenant.ID,
	}))
}

func get(handler http.Handler, host, path string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodGet, "http://"+host+path, nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var body errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestResolveUnknownHostname(t *testing.T) {
	chain, _ := newTestChain(t)
	handler := chain.Resolve(okHandler())

	w := get(handler, "nobody."+testBaseDomain, "/")
	assert.Equal(t, http.StatusNotFound, w.Code)

	body := decodeError(t, w)
	assert.Equal(t, CodeTenantNotFound, body.Error)
	assert.Equal(t, "nobody."+testBaseDomain, body.Domain)
}

func TestResolveCentralHostBypass(t *testing.T) {
	chain, _ := newTestChain(t)
	handler := chain.Resolve(chain.RequireActive(chain.RequireSubscription(okHandler())))

	// No tenant rows at all; the central host still gets through
	w := get(handler, testCentralHost, "/dashboard")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestResolveStripsPort(t *testing.T) {
	chain, store := newTestChain(t)
	addTenant(t, store, &models.Tenant{
		ID: "acme", IsActive: true, SubscriptionActive: true,
	})
	handler := chain.Resolve(okHandler())

	w := get(handler, "acme."+testBaseDomain+":8080", "/")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestInactiveTenantWinsOverExpiredSubscription(t *testing.T) {
	chain, store := newTestChain(t)

	// Both checks would fire; the active check comes first
	ends := testNow.Add(-time.Hour)
	addTenant(t, store, &models.Tenant{
		ID:                 "frozen",
		IsActive:           false,
		SubscriptionActive: true,
		SubscriptionEndsAt: &ends,
	})
	handler := chain.Resolve(chain.RequireActive(chain.RequireSubscription(okHandler())))

	w := get(handler, "frozen."+testBaseDomain, "/")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, CodeTenantInactive, decodeError(t, w).Error)
}

func TestExpiredSubscriptionRedirectsBrowser(t *testing.T) {
	chain, store := newTestChain(t)

	ends := testNow.Add(-time.Hour)
	addTenant(t, store, &models.Tenant{
		ID:                 "lapsed",
		IsActive:           true,
		SubscriptionActive: true,
		SubscriptionEndsAt: &ends,
	})
	handler := chain.Resolve(chain.RequireActive(chain.RequireSubscription(okHandler())))

	w := get(handler, "lapsed."+testBaseDomain, "/dashboard")
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/subscription/expired", w.Header().Get("Location"))
}

func TestSubscriptionCheckSkips(t *testing.T) {
	chain, store := newTestChain(t)

	ends := testNow.Add(-time.Hour)
	addTenant(t, store, &models.Tenant{
		ID:                 "lapsed",
		IsActive:           true,
		SubscriptionActive: true,
		SubscriptionEndsAt: &ends,
	})
	handler := chain.Resolve(chain.RequireActive(chain.RequireSubscription(okHandler())))

	// API-prefixed paths skip the check entirely
	w := get(handler, "lapsed."+testBaseDomain, "/api/v1/invoices")
	assert.Equal(t, http.StatusOK, w.Code)

	// Allow-listed payment route stays reachable
	w = get(handler, "lapsed."+testBaseDomain, "/billing/checkout")
	assert.Equal(t, http.StatusOK, w.Code)

	// The expired page itself never redirects to itself
	w = get(handler, "lapsed."+testBaseDomain, "/subscription/expired")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSubscriptionBoundaryExactEnd(t *testing.T) {
	chain, store := newTestChain(t)

	// Ends exactly now: still valid under the strict < rule
	ends := testNow
	addTenant(t, store, &models.Tenant{
		ID:                 "edge",
		IsActive:           true,
		SubscriptionActive: true,
		SubscriptionEndsAt: &ends,
	})
	handler := chain.Resolve(chain.RequireActive(chain.RequireSubscription(okHandler())))

	w := get(handler, "edge."+testBaseDomain, "/dashboard")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestInvoiceQuotaUnlimitedPlan(t *testing.T) {
	chain, store := newTestChain(t)

	plan := "pro"
	addTenant(t, store, &models.Tenant{
		ID: "bigco", IsActive: true, SubscriptionActive: true, PlanID: &plan,
	})
	store.SetInvoiceUsage(&models.InvoiceUsage{
		TenantID:        "bigco",
		MonthlyInvoices: 10_000_000,
	})
	handler := chain.Resolve(chain.RequireInvoiceQuota(okHandler()))

	// invoice_limit = 0 allows regardless of the counter
	w := get(handler, "bigco."+testBaseDomain, "/api/v1/invoices")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestInvoiceQuotaExceeded(t *testing.T) {
	chain, store := newTestChain(t)

	plan := "starter"
	addTenant(t, store, &models.Tenant{
		ID: "smallco", IsActive: true, SubscriptionActive: true, PlanID: &plan,
	})
	store.SetInvoiceUsage(&models.InvoiceUsage{
		TenantID:        "smallco",
		MonthlyInvoices: 5,
		Limit:           5,
	})
	handler := chain.Resolve(chain.RequireInvoiceQuota(okHandler()))

	w := get(handler, "smallco."+testBaseDomain, "/api/v1/invoices")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, CodeQuotaExceeded, decodeError(t, w).Error)
}

func TestInvoiceQuotaUnderLimit(t *testing.T) {
	chain, store := newTestChain(t)

	plan := "starter"
	addTenant(t, store, &models.Tenant{
		ID: "smallco", IsActive: true, SubscriptionActive: true, PlanID: &plan,
	})
	store.SetInvoiceUsage(&models.InvoiceUsage{
		TenantID:        "smallco",
		MonthlyInvoices: 4,
		Limit:           5,
	})
	handler := chain.Resolve(chain.RequireInvoiceQuota(okHandler()))

	w := get(handler, "smallco."+testBaseDomain, "/api/v1/invoices")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestInvoiceQuotaWithoutPlan(t *testing.T) {
	chain, store := newTestChain(t)

	addTenant(t, store, &models.Tenant{
		ID: "planless", IsActive: true, SubscriptionActive: true,
	})
	handler := chain.Resolve(chain.RequireInvoiceQuota(okHandler()))

	w := get(handler, "planless."+testBaseDomain, "/api/v1/invoices")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, CodeNoActiveSubscription, decodeError(t, w).Error)
}
