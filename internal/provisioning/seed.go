package provisioning

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/zxstudio-llc/anahisoft-erp-sub005/internal/models"
	"github.com/zxstudio-llc/anahisoft-erp-sub005/pkg/crypto"
)

// seedDemoData fills a fresh tenant schema with initial data: the admin
// user, default company settings, the demo catalog, and a primed usage
// counter so the first invoice request finds its row.
func (p *Provisioner) seedDemoData(ctx context.Context, tenantID string, req Request, plan *models.Plan) error {
	password, err := crypto.GenerateRandomString(12)
	if err != nil {
		return fmt.Errorf("generate admin password: %w", err)
	}
	hash, err := crypto.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	admin := &models.User{
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: hash,
		Role:         models.RoleAdmin,
		IsActive:     true,
	}
	if err := p.schemas.CreateTenantUser(ctx, tenantID, admin); err != nil {
		return fmt.Errorf("seed admin user: %w", err)
	}

	// Surface the generated password once; it is not stored in clear.
	log.Info().
		Str("tenant_id", tenantID).
		Str("email", req.Email).
		Str("initial_password", password).
		Msg("Seeded tenant admin user")

	settings := models.Variables{
		"companyName":  req.Name,
		"contactEmail": req.Email,
		"plan":         plan.Slug,
		"currency":     "USD",
	}
	if err := p.schemas.UpsertSetting(ctx, tenantID, "company", settings); err != nil {
		return fmt.Errorf("seed company settings: %w", err)
	}

	if err := p.schemas.SeedDemoCatalog(ctx, tenantID); err != nil {
		return fmt.Errorf("seed catalog: %w", err)
	}

	if _, err := p.schemas.GetOrCreateInvoiceUsage(ctx, tenantID, plan.InvoiceLimit); err != nil {
		return fmt.Errorf("seed invoice usage: %w", err)
	}

	return nil
}
