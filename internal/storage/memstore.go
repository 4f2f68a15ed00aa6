package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zxstudio-llc/anahisoft-erp-sub005/internal/models"
)

// MemStore is an in-memory Store and SchemaManager. It backs unit tests
// and the console's dry-run mode. Predicates mirror the Postgres queries
// exactly, including the strict < expiry boundary.
type MemStore struct {
	mu sync.Mutex

	tenants       map[string]*models.Tenant
	domains       map[string]*models.Domain // hostname -> domain
	plans         map[string]*models.Plan
	subscriptions map[uuid.UUID]*models.Subscription
	users         map[uuid.UUID]*models.User
	events        []*models.EventLog

	schemas     map[string]bool // tenantID -> migrated
	tenantUsers map[string][]*models.User
	settings    map[string]map[string]models.Variables
	usage       map[string]*models.InvoiceUsage
}

// NewMemStore creates an empty in-memory store
func NewMemStore() *MemStore {
	return &MemStore{
		tenants:       make(map[string]*models.Tenant),
		domains:       make(map[string]*models.Domain),
		plans:         make(map[string]*models.Plan),
		subscriptions: make(map[uuid.UUID]*models.Subscription),
		users:         make(map[uuid.UUID]*models.User),
		schemas:       make(map[string]bool),
		tenantUsers:   make(map[string][]*models.User),
		settings:      make(map[string]map[string]models.Variables),
		usage:         make(map[string]*models.InvoiceUsage),
	}
}

// BeginTx returns the store itself; MemStore mutations are atomic per call
func (s *MemStore) BeginTx(ctx context.Context) (Store, error) { return s, nil }

// Commit is a no-op
func (s *MemStore) Commit() error { return nil }

// Rollback is a no-op
func (s *MemStore) Rollback() error { return nil }

// Close is a no-op
func (s *MemStore) Close() error { return nil }

// ========== Tenant Methods ==========

// CreateTenant creates a new tenant
func (s *MemStore) CreateTenant(ctx context.Context, tenant *models.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tenants[tenant.ID]; ok {
		return ErrDuplicateKey
	}

	now := time.Now()
	tenant.CreatedAt = now
	tenant.UpdatedAt = now
	if tenant.BillingPeriod == "" {
		tenant.BillingPeriod = models.BillingPeriodMonthly
	}

	cp := *tenant
	s.tenants[tenant.ID] = &cp
	return nil
}

// GetTenant gets a tenant by ID
func (s *MemStore) GetTenant(ctx context.Context, id string) (*models.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tenant, ok := s.tenants[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *tenant
	return &cp, nil
}

// UpdateTenant updates a tenant
func (s *MemStore) UpdateTenant(ctx context.Context, tenant *models.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tenants[tenant.ID]; !ok {
		return ErrNotFound
	}
	tenant.UpdatedAt = time.Now()
	cp := *tenant
	s.tenants[tenant.ID] = &cp
	return nil
}

// DeleteTenant deletes a tenant and its dependent rows
func (s *MemStore) DeleteTenant(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tenants[id]; !ok {
		return ErrNotFound
	}
	delete(s.tenants, id)

	for hostname, domain := range s.domains {
		if domain.TenantID == id {
			delete(s.domains, hostname)
		}
	}
	for subID, sub := range s.subscriptions {
		if sub.TenantID == id {
			delete(s.subscriptions, subID)
		}
	}
	for userID, user := range s.users {
		if user.TenantID != nil && *user.TenantID == id {
			delete(s.users, userID)
		}
	}
	return nil
}

// ListTenants lists tenants
func (s *MemStore) ListTenants(ctx context.Context, limit, offset int) ([]*models.Tenant, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.sortedTenants()
	count := int64(len(all))

	if offset >= len(all) {
		return nil, count, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], count, nil
}

// ListPaidExpired mirrors the Postgres sweep predicate for paid expiry
func (s *MemStore) ListPaidExpired(ctx context.Context, now time.Time) ([]*models.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.Tenant
	for _, t := range s.sortedTenants() {
		if t.SubscriptionActive && t.SubscriptionEndsAt != nil && t.SubscriptionEndsAt.Before(now) {
			out = append(out, t)
		}
	}
	return out, nil
}

// ListTrialLapsed mirrors the Postgres sweep predicate for trial lapse
func (s *MemStore) ListTrialLapsed(ctx context.Context, now time.Time) ([]*models.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.Tenant
	for _, t := range s.sortedTenants() {
		if t.IsActive && t.SubscriptionEndsAt == nil && t.TrialEndsAt != nil && t.TrialEndsAt.Before(now) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *MemStore) sortedTenants() []*models.Tenant {
	out := make([]*models.Tenant, 0, len(s.tenants))
	for _, t := range s.tenants {
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ========== Domain Methods ==========

// CreateDomain creates a new domain
func (s *MemStore) CreateDomain(ctx context.Context, domain *models.Domain) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.domains[domain.Hostname]; ok {
		return ErrDuplicateKey
	}
	domain.CreatedAt = time.Now()
	cp := *domain
	s.domains[domain.Hostname] = &cp
	return nil
}

// GetTenantByHostname resolves a hostname to its tenant
func (s *MemStore) GetTenantByHostname(ctx context.Context, hostname string) (*models.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	domain, ok := s.domains[hostname]
	if !ok {
		return nil, ErrNotFound
	}
	tenant, ok := s.tenants[domain.TenantID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *tenant
	return &cp, nil
}

// ListDomains lists the domains of a tenant
func (s *MemStore) ListDomains(ctx context.Context, tenantID string) ([]*models.Domain, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.Domain
	for _, domain := range s.domains {
		if domain.TenantID == tenantID {
			cp := *domain
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hostname < out[j].Hostname })
	return out, nil
}

// ========== Plan Methods ==========

// CreatePlan creates a new plan
func (s *MemStore) CreatePlan(ctx context.Context, plan *models.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.plans[plan.Slug]; ok {
		return ErrDuplicateKey
	}
	now := time.Now()
	plan.CreatedAt = now
	plan.UpdatedAt = now
	cp := *plan
	s.plans[plan.Slug] = &cp
	return nil
}

// GetPlan gets a plan by slug
func (s *MemStore) GetPlan(ctx context.Context, slug string) (*models.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	plan, ok := s.plans[slug]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *plan
	return &cp, nil
}

// ListPlans lists all plans
func (s *MemStore) ListPlans(ctx context.Context) ([]*models.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*models.Plan, 0, len(s.plans))
	for _, plan := range s.plans {
		cp := *plan
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PriceMonthly < out[j].PriceMonthly })
	return out, nil
}

// ========== Subscription Methods ==========

// CreateSubscription creates a subscription history row
func (s *MemStore) CreateSubscription(ctx context.Context, sub *models.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	now := time.Now()
	sub.CreatedAt = now
	sub.UpdatedAt = now
	cp := *sub
	s.subscriptions[sub.ID] = &cp
	return nil
}

// GetActiveSubscription gets the tenant's current subscription record
func (s *MemStore) GetActiveSubscription(ctx context.Context, tenantID string) (*models.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var latest *models.Subscription
	for _, sub := range s.subscriptions {
		if sub.TenantID != tenantID {
			continue
		}
		if sub.Status != models.SubscriptionStatusActive && sub.Status != models.SubscriptionStatusTrialing {
			continue
		}
		if latest == nil || sub.CreatedAt.After(latest.CreatedAt) {
			latest = sub
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

// UpdateSubscription updates a subscription record
func (s *MemStore) UpdateSubscription(ctx context.Context, sub *models.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subscriptions[sub.ID]; !ok {
		return ErrNotFound
	}
	sub.UpdatedAt = time.Now()
	cp := *sub
	s.subscriptions[sub.ID] = &cp
	return nil
}

// ListSubscriptions lists a tenant's subscription history
func (s *MemStore) ListSubscriptions(ctx context.Context, tenantID string, limit, offset int) ([]*models.Subscription, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var all []*models.Subscription
	for _, sub := range s.subscriptions {
		if sub.TenantID == tenantID {
			cp := *sub
			all = append(all, &cp)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	count := int64(len(all))
	if offset >= len(all) {
		return nil, count, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], count, nil
}

// ========== Central User Methods ==========

// CreateUser creates a central user
func (s *MemStore) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Email == user.Email {
			return ErrDuplicateKey
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

// GetUser gets a user by ID
func (s *MemStore) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *user
	return &cp, nil
}

// GetUserByEmail gets a user by email
func (s *MemStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, user := range s.users {
		if user.Email == email {
			cp := *user
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// ========== Event Log Methods ==========

// CreateEventLog creates an audit log entry
func (s *MemStore) CreateEventLog(ctx context.Context, event *models.EventLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	cp := *event
	s.events = append(s.events, &cp)
	return nil
}

// ListEventLogs lists audit log entries
func (s *MemStore) ListEventLogs(ctx context.Context, filters EventLogFilters, limit, offset int) ([]*models.EventLog, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var all []*models.EventLog
	for _, event := range s.events {
		if filters.TenantID != nil && (event.TenantID == nil || *event.TenantID != *filters.TenantID) {
			continue
		}
		if filters.Type != nil && event.Type != *filters.Type {
			continue
		}
		if filters.Level != nil && event.Level != *filters.Level {
			continue
		}
		if filters.StartTime != nil && event.CreatedAt.Before(*filters.StartTime) {
			continue
		}
		if filters.EndTime != nil && event.CreatedAt.After(*filters.EndTime) {
			continue
		}
		cp := *event
		all = append(all, &cp)
	}

	count := int64(len(all))
	if offset >= len(all) {
		return nil, count, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], count, nil
}

// ========== SchemaManager ==========

// CreateSchema marks the tenant schema as existing
func (s *MemStore) CreateSchema(ctx context.Context, tenantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.schemas[tenantID]; ok {
		return ErrDuplicateKey
	}
	s.schemas[tenantID] = false
	return nil
}

// MigrateSchema marks the tenant schema as migrated
func (s *MemStore) MigrateSchema(ctx context.Context, tenantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.schemas[tenantID]; !ok {
		return ErrNotFound
	}
	s.schemas[tenantID] = true
	return nil
}

// DropSchema removes the tenant schema and its rows
func (s *MemStore) DropSchema(ctx context.Context, tenantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.schemas, tenantID)
	delete(s.tenantUsers, tenantID)
	delete(s.settings, tenantID)
	delete(s.usage, tenantID)
	return nil
}

// WithSchema runs fn; the mem store has no connection state to swap
func (s *MemStore) WithSchema(ctx context.Context, tenantID string, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	_, ok := s.schemas[tenantID]
	s.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	return fn(ctx)
}

// CreateTenantUser creates a user row inside the tenant schema
func (s *MemStore) CreateTenantUser(ctx context.Context, tenantID string, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.schemas[tenantID]; !ok {
		return ErrNotFound
	}
	for _, existing := range s.tenantUsers[tenantID] {
		if existing.Email == user.Email {
			return ErrDuplicateKey
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	cp := *user
	s.tenantUsers[tenantID] = append(s.tenantUsers[tenantID], &cp)
	return nil
}

// TenantUsers returns the users seeded into a tenant schema (test helper)
func (s *MemStore) TenantUsers(tenantID string) []*models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*models.User(nil), s.tenantUsers[tenantID]...)
}

// UpsertSetting writes a settings row inside the tenant schema
func (s *MemStore) UpsertSetting(ctx context.Context, tenantID, key string, value models.Variables) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.schemas[tenantID]; !ok {
		return ErrNotFound
	}
	if s.settings[tenantID] == nil {
		s.settings[tenantID] = make(map[string]models.Variables)
	}
	s.settings[tenantID][key] = value
	return nil
}

// SeedDemoCatalog records the demo catalog as a settings entry
func (s *MemStore) SeedDemoCatalog(ctx context.Context, tenantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.schemas[tenantID]; !ok {
		return ErrNotFound
	}
	if s.settings[tenantID] == nil {
		s.settings[tenantID] = make(map[string]models.Variables)
	}
	s.settings[tenantID]["demo_catalog"] = models.Variables{"seeded": true}
	return nil
}

// GetOrCreateInvoiceUsage fetches or creates the singleton usage row
func (s *MemStore) GetOrCreateInvoiceUsage(ctx context.Context, tenantID string, limit int) (*models.InvoiceUsage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if usage, ok := s.usage[tenantID]; ok {
		cp := *usage
		return &cp, nil
	}

	usage := &models.InvoiceUsage{
		TenantID:  tenantID,
		Limit:     limit,
		LastReset: time.Now(),
	}
	s.usage[tenantID] = usage
	cp := *usage
	return &cp, nil
}

// IncrementInvoiceUsage bumps both counters
func (s *MemStore) IncrementInvoiceUsage(ctx context.Context, tenantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	usage, ok := s.usage[tenantID]
	if !ok {
		return ErrNotFound
	}
	usage.MonthlyInvoices++
	usage.TotalInvoices++
	return nil
}

// SetInvoiceUsage overwrites the usage row (test helper)
func (s *MemStore) SetInvoiceUsage(usage *models.InvoiceUsage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *usage
	s.usage[usage.TenantID] = &cp
}
