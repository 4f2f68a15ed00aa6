package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/zxstudio-llc/anahisoft-erp-sub005/internal/models"
)

// Common errors
var (
	ErrNotFound     = errors.New("not found")
	ErrDuplicateKey = errors.New("duplicate key")
	ErrInvalidData  = errors.New("invalid data")
)

// Store defines the central storage interface
type Store interface {
	// Transaction support
	BeginTx(ctx context.Context) (Store, error)
	Commit() error
	Rollback() error

	// Tenant methods
	CreateTenant(ctx context.Context, tenant *models.Tenant) error
	GetTenant(ctx context.Context, id string) (*models.Tenant, error)
	UpdateTenant(ctx context.Context, tenant *models.Tenant) error
	DeleteTenant(ctx context.Context, id string) error
	ListTenants(ctx context.Context, limit, offset int) ([]*models.Tenant, int64, error)

	// Sweep selection. Both predicates use strict < on the end date so
	// that a row expiring exactly at now is not selected; see the
	// subscription evaluator for the matching request-time rule.
	ListPaidExpired(ctx context.Context, now time.Time) ([]*models.Tenant, error)
	ListTrialLapsed(ctx context.Context, now time.Time) ([]*models.Tenant, error)

	// Domain methods
	CreateDomain(ctx context.Context, domain *models.Domain) error
	GetTenantByHostname(ctx context.Context, hostname string) (*models.Tenant, error)
	ListDomains(ctx context.Context, tenantID string) ([]*models.Domain, error)

	// Plan methods
	CreatePlan(ctx context.Context, plan *models.Plan) error
	GetPlan(ctx context.Context, slug string) (*models.Plan, error)
	ListPlans(ctx context.Context) ([]*models.Plan, error)

	// Subscription methods
	CreateSubscription(ctx context.Context, sub *models.Subscription) error
	GetActiveSubscription(ctx context.Context, tenantID string) (*models.Subscription, error)
	UpdateSubscription(ctx context.Context, sub *models.Subscription) error
	ListSubscriptions(ctx context.Context, tenantID string, limit, offset int) ([]*models.Subscription, int64, error)

	// Central user methods
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// Event log methods
	CreateEventLog(ctx context.Context, event *models.EventLog) error
	ListEventLogs(ctx context.Context, filters EventLogFilters, limit, offset int) ([]*models.EventLog, int64, error)

	// Close the store
	Close() error
}

// UsageStore provides access to the invoice usage counter that lives
// inside each tenant schema.
type UsageStore interface {
	GetOrCreateInvoiceUsage(ctx context.Context, tenantID string, limit int) (*models.InvoiceUsage, error)
	IncrementInvoiceUsage(ctx context.Context, tenantID string) error
}

// SchemaManager manages tenant-isolated schemas. Schema operations run on
// their own connection and cannot participate in a central Store
// transaction; provisioning compensates by deleting the tenant row when a
// later step fails.
type SchemaManager interface {
	CreateSchema(ctx context.Context, tenantID string) error
	MigrateSchema(ctx context.Context, tenantID string) error
	DropSchema(ctx context.Context, tenantID string) error

	// WithSchema runs fn with the tenant schema as the active context,
	// restoring the previous context even if fn returns an error.
	WithSchema(ctx context.Context, tenantID string, fn func(ctx context.Context) error) error

	// Tenant-schema rows written by provisioning
	CreateTenantUser(ctx context.Context, tenantID string, user *models.User) error
	UpsertSetting(ctx context.Context, tenantID, key string, value models.Variables) error
	SeedDemoCatalog(ctx context.Context, tenantID string) error

	UsageStore
}

// EventLogFilters represents filters for event logs
type EventLogFilters struct {
	TenantID  *string
	Type      *models.EventType
	Level     *models.EventLevel
	StartTime *time.Time
	EndTime   *time.Time
}
