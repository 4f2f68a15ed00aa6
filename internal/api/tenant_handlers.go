package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/zxstudio-llc/anahisoft-erp-sub005/internal/models"
	"github.com/zxstudio-llc/anahisoft-erp-sub005/internal/provisioning"
	"github.com/zxstudio-llc/anahisoft-erp-sub005/internal/storage"
	"github.com/zxstudio-llc/anahisoft-erp-sub005/internal/tenancy"
)

// ========== Tenant handlers ==========

// HandleListTenants lists tenants
func (s *RESTServer) HandleListTenants(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit == 0 {
		limit = 20
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	tenants, total, err := s.store.ListTenants(ctx, limit, offset)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"tenants": tenants,
		"total":   total,
	})
}

// HandleCreateTenant provisions a tenant through the admin API
func (s *RESTServer) HandleCreateTenant(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID        string `json:"id" validate:"required,min=2,max=64"`
		Name      string `json:"name" validate:"required,min=2,max=128"`
		Email     string `json:"email" validate:"required,email"`
		Plan      string `json:"plan" validate:"required"`
		TrialDays int    `json:"trial_days" validate:"min=0"`
		Active    bool   `json:"active"`
		Seed      bool   `json:"seed"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	tenant, err := s.provisioner.Provision(r.Context(), provisioning.Request{
		ID:        req.ID,
		Name:      req.Name,
		Email:     req.Email,
		PlanSlug:  req.Plan,
		TrialDays: req.TrialDays,
		Active:    req.Active,
		Seed:      req.Seed,
	})
	if err != nil {
		s.respondProvisioningError(w, err)
		return
	}

	s.respondJSON(w, http.StatusCreated, tenant)
}

// HandleRegister provisions a tenant through the public sign-up flow
func (s *RESTServer) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID            string `json:"id" validate:"required,min=2,max=64"`
		Name          string `json:"name" validate:"required,min=2,max=128"`
		Email         string `json:"email" validate:"required,email"`
		Password      string `json:"password" validate:"required,min=8"`
		Plan          string `json:"plan" validate:"required"`
		BillingPeriod string `json:"billing_period" validate:"omitempty,oneof=monthly yearly"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	tenant, err := s.provisioner.Register(r.Context(), provisioning.RegisterRequest{
		ID:            req.ID,
		Name:          req.Name,
		Email:         req.Email,
		Password:      req.Password,
		PlanSlug:      req.Plan,
		BillingPeriod: models.BillingPeriod(req.BillingPeriod),
	})
	if err != nil {
		s.respondProvisioningError(w, err)
		return
	}

	s.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"tenant": tenant,
		"domain": tenant.ID + "." + s.config.Tenancy.BaseDomain,
	})
}

// respondProvisioningError maps provisioning failures to status codes
func (s *RESTServer) respondProvisioningError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, provisioning.ErrDuplicateTenant):
		s.respondError(w, http.StatusConflict, "tenant already exists")
	case errors.Is(err, provisioning.ErrInvalidIdentifier):
		s.respondError(w, http.StatusBadRequest, "tenant id must be lowercase letters, digits and hyphens")
	case errors.Is(err, provisioning.ErrInvalidEmail):
		s.respondError(w, http.StatusBadRequest, "invalid email address")
	case errors.Is(err, provisioning.ErrUnknownPlan):
		s.respondError(w, http.StatusBadRequest, "unknown plan")
	default:
		s.respondError(w, http.StatusInternalServerError, "provisioning failed")
	}
}

// HandleGetTenant gets a tenant
func (s *RESTServer) HandleGetTenant(w http.ResponseWriter, r *http.Request) {
	tenant, err := s.store.GetTenant(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "tenant not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, tenant)
}

// HandleUpdateTenant updates a tenant's administrative fields
func (s *RESTServer) HandleUpdateTenant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tenant, err := s.store.GetTenant(ctx, chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "tenant not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var req struct {
		IsActive *bool            `json:"is_active"`
		Data     models.Variables `json:"data"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.IsActive != nil {
		tenant.IsActive = *req.IsActive
	}
	if req.Data != nil {
		tenant.Data = req.Data
	}

	if err := s.store.UpdateTenant(ctx, tenant); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, tenant)
}

// HandleDeleteTenant deletes a tenant and drops its schema
func (s *RESTServer) HandleDeleteTenant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	if err := s.store.DeleteTenant(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "tenant not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if err := s.schemas.DropSchema(ctx, id); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	entry := &models.EventLog{
		TenantID:    &id,
		Type:        models.EventTypeTenantDeleted,
		Level:       models.EventLevelInfo,
		Description: fmt.Sprintf("Tenant %s deleted", id),
	}
	if claims, ok := claimsFromContext(ctx); ok {
		entry.Details = models.Variables{"deletedBy": claims.Email}
	}
	if err := s.store.CreateEventLog(ctx, entry); err != nil {
		log.Warn().Err(err).Str("tenant_id", id).Msg("Failed to write audit log entry")
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleListTenantDomains lists a tenant's domains
func (s *RESTServer) HandleListTenantDomains(w http.ResponseWriter, r *http.Request) {
	domains, err := s.store.ListDomains(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"domains": domains,
	})
}

// HandleListTenantSubscriptions lists a tenant's billing history
func (s *RESTServer) HandleListTenantSubscriptions(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit == 0 {
		limit = 20
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	subs, total, err := s.store.ListSubscriptions(r.Context(), chi.URLParam(r, "id"), limit, offset)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"subscriptions": subs,
		"total":         total,
	})
}

// ========== Plan handlers ==========

// HandleGetPlan gets a plan by slug
func (s *RESTServer) HandleGetPlan(w http.ResponseWriter, r *http.Request) {
	plan, err := s.store.GetPlan(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "plan not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, plan)
}

// HandleListPlans lists the plan catalog
func (s *RESTServer) HandleListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := s.store.ListPlans(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"plans": plans,
	})
}

// ========== Event handlers ==========

// HandleListEvents lists audit log entries
func (s *RESTServer) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit == 0 {
		limit = 50
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	filters := storage.EventLogFilters{}
	if tenantID := r.URL.Query().Get("tenant_id"); tenantID != "" {
		filters.TenantID = &tenantID
	}
	if eventType := r.URL.Query().Get("type"); eventType != "" {
		t := models.EventType(eventType)
		filters.Type = &t
	}

	events, total, err := s.store.ListEventLogs(r.Context(), filters, limit, offset)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"total":  total,
	})
}

// ========== Invoice handlers ==========

// HandleCreateInvoice records an invoice for the resolved tenant. The
// quota middleware has already admitted the request; this handler only
// bumps the usage counters. Invoice contents are the business layer's
// concern.
func (s *RESTServer) HandleCreateInvoice(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenancy.FromContext(r.Context())
	if !ok {
		s.respondError(w, http.StatusNotFound, "tenant not found")
		return
	}

	if err := s.schemas.IncrementInvoiceUsage(r.Context(), tenant.ID); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"id":        uuid.New(),
		"tenant_id": tenant.ID,
	})
}
