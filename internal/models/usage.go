package models

import (
	"time"
)

// InvoiceUsage is the singleton usage counter kept inside each tenant
// schema. MonthlyInvoices is reset by the monthly rollover; Limit mirrors
// the plan's invoice limit at last sync (0 = unlimited).
type InvoiceUsage struct {
	TenantID        string    `json:"tenantId" db:"tenant_id"`
	MonthlyInvoices int       `json:"monthlyInvoices" db:"monthly_invoices"`
	TotalInvoices   int       `json:"totalInvoices" db:"total_invoices"`
	Limit           int       `json:"limit" db:"invoice_limit"`
	LastReset       time.Time `json:"lastReset" db:"last_reset"`
}
