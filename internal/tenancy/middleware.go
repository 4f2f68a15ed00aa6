package tenancy

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/zxstudio-llc/anahisoft-erp-sub005/internal/storage"
	"github.com/zxstudio-llc/anahisoft-erp-sub005/internal/subscription"
)

// Machine-readable error codes in middleware responses
const (
	CodeTenantNotFound       = "TENANT_NOT_FOUND"
	CodeTenantInactive       = "TENANT_INACTIVE"
	CodeNoActiveSubscription = "NO_ACTIVE_SUBSCRIPTION"
	CodeQuotaExceeded        = "QUOTA_EXCEEDED"
	CodeInternal             = "INTERNAL"
)

// Chain holds the dependencies of the per-request enforcement middlewares.
// Order matters: Resolve, then RequireActive, then RequireSubscription,
// then (on invoice routes) RequireInvoiceQuota. Each stage assumes the
// earlier invariants hold.
type Chain struct {
	store       storage.Store
	usage       storage.UsageStore
	centralHost string
	expiredPath string
	allowlist   map[string]bool

	now func() time.Time
}

// ChainConfig configures the middleware chain
type ChainConfig struct {
	// CentralHost is the admin hostname; requests arriving on it bypass
	// tenant resolution and all tenant checks.
	CentralHost string
	// ExpiredPath is the browser route shown when a subscription lapses
	ExpiredPath string
	// SubscriptionAllowlist lists paths the subscription check skips,
	// e.g. the expired page itself and payment endpoints.
	SubscriptionAllowlist []string
}

// NewChain creates the enforcement middleware chain
func NewChain(store storage.Store, usage storage.UsageStore, cfg ChainConfig) *Chain {
	allowlist := make(map[string]bool, len(cfg.SubscriptionAllowlist))
	for _, path := range cfg.SubscriptionAllowlist {
		allowlist[path] = true
	}
	if cfg.ExpiredPath == "" {
		cfg.ExpiredPath = "/subscription/expired"
	}
	allowlist[cfg.ExpiredPath] = true

	return &Chain{
		store:       store,
		usage:       usage,
		centralHost: cfg.CentralHost,
		expiredPath: cfg.ExpiredPath,
		allowlist:   allowlist,
		now:         time.Now,
	}
}

// Resolve maps the request hostname to a tenant and stores it in the
// request context. Unknown hostnames get 404. The central hostname
// passes through without a tenant.
func (c *Chain) Resolve(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host := hostOnly(r.Host)

		if host == c.centralHost {
			next.ServeHTTP(w, r)
			return
		}

		tenant, err := c.store.GetTenantByHostname(r.Context(), host)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				c.respondError(w, r, http.StatusNotFound, "tenant not found", CodeTenantNotFound, host)
				return
			}
			c.internalError(w, r, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), tenant)))
	})
}

// RequireActive rejects requests to administratively disabled tenants.
// Central-host requests carry no tenant and pass through.
func (c *Chain) RequireActive(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenant, ok := FromContext(r.Context())
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		if !tenant.IsActive {
			c.respondError(w, r, http.StatusForbidden, "tenant is inactive", CodeTenantInactive, hostOnly(r.Host))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RequireSubscription redirects browser requests of tenants without a
// valid subscription to the expired page. API-prefixed paths and
// allow-listed routes skip the check entirely.
func (c *Chain) RequireSubscription(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenant, ok := FromContext(r.Context())
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		if strings.HasPrefix(r.URL.Path, "/api/") || c.allowlist[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		state := subscription.Evaluate(tenant, c.now())
		if !state.Valid() {
			// A human needs an upgrade path, not an error page.
			http.Redirect(w, r, c.expiredPath, http.StatusSeeOther)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RequireInvoiceQuota enforces the plan's invoice limit. Mounted only on
// invoice-creating routes. Plan data is read from the central store even
// though the request executes against the tenant schema; usage data comes
// from the tenant schema.
func (c *Chain) RequireInvoiceQuota(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenant, ok := FromContext(r.Context())
		if !ok {
			c.respondError(w, r, http.StatusNotFound, "tenant not found", CodeTenantNotFound, hostOnly(r.Host))
			return
		}

		if tenant.PlanID == nil {
			c.respondError(w, r, http.StatusForbidden, "no active subscription", CodeNoActiveSubscription, hostOnly(r.Host))
			return
		}

		plan, err := c.store.GetPlan(r.Context(), *tenant.PlanID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				c.respondError(w, r, http.StatusForbidden, "no active subscription", CodeNoActiveSubscription, hostOnly(r.Host))
				return
			}
			c.internalError(w, r, err)
			return
		}

		// 0 means unlimited, whatever the counter says
		if plan.InvoiceLimit == 0 {
			next.ServeHTTP(w, r)
			return
		}

		usage, err := c.usage.GetOrCreateInvoiceUsage(r.Context(), tenant.ID, plan.InvoiceLimit)
		if err != nil {
			c.internalError(w, r, err)
			return
		}

		if usage.MonthlyInvoices >= plan.InvoiceLimit {
			c.respondError(w, r, http.StatusForbidden, "monthly invoice limit reached", CodeQuotaExceeded, hostOnly(r.Host))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// errorResponse is the stable middleware error shape
type errorResponse struct {
	Message string `json:"message"`
	Domain  string `json:"domain,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (c *Chain) respondError(w http.ResponseWriter, r *http.Request, status int, message, code, domain string) {
	body, err := json.Marshal(errorResponse{
		Message: message,
		Domain:  domain,
		Error:   code,
	})
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

// internalError hides the cause from the client; the correlation id links
// the response to the server log line.
func (c *Chain) internalError(w http.ResponseWriter, r *http.Request, err error) {
	reqID := middleware.GetReqID(r.Context())

	log.Error().
		Err(err).
		Str("request_id", reqID).
		Str("host", hostOnly(r.Host)).
		Str("path", r.URL.Path).
		Msg("Tenancy middleware failure")

	c.respondError(w, r, http.StatusInternalServerError,
		"internal error (ref "+reqID+")", CodeInternal, "")
}

// hostOnly strips any port from a Host header value
func hostOnly(hostport string) string {
	host, _, err := net.SplitHostPort(hostport)
	if err != nil {
		return hostport
	}
	return host
}
