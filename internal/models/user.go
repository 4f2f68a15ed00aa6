package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a user account. Tenant admin users are created inside
// the tenant schema by provisioning; central operators have TenantID nil.
type User struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`

	Email        string  `json:"email" db:"email"`
	Name         string  `json:"name" db:"name"`
	PasswordHash string  `json:"-" db:"password_hash"`
	Role         string  `json:"role" db:"role"`
	IsActive     bool    `json:"isActive" db:"is_active"`
	TenantID     *string `json:"tenantId,omitempty" db:"tenant_id"`
}

// User roles
const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
)
