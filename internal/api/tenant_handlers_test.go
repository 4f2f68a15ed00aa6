package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zxstudio-llc/anahisoft-erp-sub005/internal/auth"
	"github.com/zxstudio-llc/anahisoft-erp-sub005/internal/models"
	"github.com/zxstudio-llc/anahisoft-erp-sub005/internal/storage"
)

func deleteRequest(t *testing.T, id string, claims *auth.Claims) *http.Request {
	t.Helper()

	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)

	ctx := context.WithValue(context.Background(), chi.RouteCtxKey, rctx)
	if claims != nil {
		ctx = context.WithValue(ctx, claimsKey{}, claims)
	}

	return httptest.NewRequest(http.MethodDelete, "/api/v1/tenants/"+id, nil).WithContext(ctx)
}

func TestHandleDeleteTenantAuditsOperator(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemStore()
	require.NoError(t, mem.CreateTenant(ctx, &models.Tenant{ID: "acme", IsActive: true}))
	require.NoError(t, mem.CreateSchema(ctx, "acme"))

	s := &RESTServer{store: mem, schemas: mem}

	w := httptest.NewRecorder()
	s.HandleDeleteTenant(w, deleteRequest(t, "acme", &auth.Claims{
		Email: "ops@example.com",
		Role:  models.RoleOperator,
	}))
	assert.Equal(t, http.StatusNoContent, w.Code)

	_, err := mem.GetTenant(ctx, "acme")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// Audit entry records which operator deleted the tenant
	deleted := models.EventTypeTenantDeleted
	logs, _, err := mem.ListEventLogs(ctx, storage.EventLogFilters{Type: &deleted}, 10, 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.NotNil(t, logs[0].TenantID)
	assert.Equal(t, "acme", *logs[0].TenantID)
	assert.Equal(t, "ops@example.com", logs[0].Details["deletedBy"])
}

func TestHandleDeleteTenantNotFound(t *testing.T) {
	mem := storage.NewMemStore()
	s := &RESTServer{store: mem, schemas: mem}

	w := httptest.NewRecorder()
	s.HandleDeleteTenant(w, deleteRequest(t, "ghost", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
