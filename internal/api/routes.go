package api

import (
	"github.com/go-chi/chi/v5"
)

// setupAPIRoutes sets up API v1 routes
func (s *RESTServer) setupAPIRoutes(r chi.Router) {
	// Health check
	r.Get("/health", s.HandleHealth)
	r.Get("/", s.HandleRoot)

	// Auth routes (public)
	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", s.HandleLogin)
		r.Post("/refresh", s.HandleRefresh)
	})

	// Public sign-up and plan catalog
	r.Post("/register", s.HandleRegister)
	r.Get("/plans", s.HandleListPlans)
	r.Get("/plans/{slug}", s.HandleGetPlan)

	// Protected routes
	r.Group(func(r chi.Router) {
		// Tenants
		r.Route("/tenants", func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Get("/", s.HandleListTenants)
			r.Post("/", s.HandleCreateTenant)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.HandleGetTenant)
				r.Put("/", s.HandleUpdateTenant)
				r.Delete("/", s.HandleDeleteTenant)
				r.Get("/domains", s.HandleListTenantDomains)
				r.Get("/subscriptions", s.HandleListTenantSubscriptions)
			})
		})

		// Events
		r.Route("/events", func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Get("/", s.HandleListEvents)
		})
	})

	// Invoice creation, exercised on tenant hostnames. The quota check
	// reads the plan centrally and the usage counter from the tenant
	// schema.
	r.Group(func(r chi.Router) {
		r.Use(s.chain.RequireInvoiceQuota)
		r.Post("/invoices", s.HandleCreateInvoice)
	})
}
