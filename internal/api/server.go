package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"github.com/zxstudio-llc/anahisoft-erp-sub005/internal/auth"
	"github.com/zxstudio-llc/anahisoft-erp-sub005/internal/config"
	"github.com/zxstudio-llc/anahisoft-erp-sub005/internal/provisioning"
	"github.com/zxstudio-llc/anahisoft-erp-sub005/internal/storage"
	"github.com/zxstudio-llc/anahisoft-erp-sub005/internal/tenancy"
	"github.com/zxstudio-llc/anahisoft-erp-sub005/internal/validation"
)

// RESTServer represents the REST API server
type RESTServer struct {
	config      *config.Config
	store       storage.Store
	schemas     storage.SchemaManager
	provisioner *provisioning.Provisioner
	chain       *tenancy.Chain
	auth        *auth.JWTManager
	validator   *validation.Validator
	router      chi.Router
	server      *http.Server
}

// NewRESTServer creates a new REST API server
func NewRESTServer(cfg *config.Config, store storage.Store, schemas storage.SchemaManager, provisioner *provisioning.Provisioner) *RESTServer {
	s := &RESTServer{
		config:      cfg,
		store:       store,
		schemas:     schemas,
		provisioner: provisioner,
		auth:        auth.NewJWTManager(&cfg.JWT),
		validator:   validation.NewValidator(),
		router:      chi.NewRouter(),
	}

	s.chain = tenancy.NewChain(store, schemas, tenancy.ChainConfig{
		CentralHost:           cfg.Tenancy.CentralHost,
		ExpiredPath:           cfg.Tenancy.ExpiredPath,
		SubscriptionAllowlist: cfg.Tenancy.SubscriptionAllowlist,
	})

	s.setupRoutes()

	s.server = &http.Server{
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupRoutes configures all routes
func (s *RESTServer) setupRoutes() {
	// Middleware
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Tenancy enforcement. Resolve passes the central host through
	// untouched; everything on a tenant hostname goes through the
	// active and subscription checks in that order.
	s.router.Use(s.chain.Resolve)
	s.router.Use(s.chain.RequireActive)
	s.router.Use(s.chain.RequireSubscription)

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		s.setupAPIRoutes(r)
	})

	// Redirect target for lapsed subscriptions
	s.router.Get(s.config.Tenancy.ExpiredPath, s.HandleSubscriptionExpired)
}

// ListenAndServe starts the server
func (s *RESTServer) ListenAndServe(addr string) error {
	s.server.Addr = addr
	log.Info().Str("addr", addr).Msg("Starting REST API server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *RESTServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// authMiddleware is the authentication middleware for the admin API
func (s *RESTServer) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Get token from header
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			s.respondError(w, http.StatusUnauthorized, "missing authorization header")
			return
		}

		// Parse Bearer token
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			s.respondError(w, http.StatusUnauthorized, "invalid authorization header")
			return
		}

		// Validate token
		claims, err := s.auth.ValidateToken(parts[1])
		if err != nil {
			s.respondError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		// Add claims to context
		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type claimsKey struct{}

// claimsFromContext returns the authenticated claims, if any
func claimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*auth.Claims)
	return claims, ok
}
