package models

import (
	"time"

	id "assura/pkg/domain"
)

// Status is the subscription state of a tenant organisation. Only active
// tenants are scanned by the scheduler or allowed through the API.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusCancelled Status = "cancelled"
)

// Tenant is a brokerage organisation. All domain rows hang off a tenant and
// every query is scoped by it.
type Tenant struct {
	ID        id.TenantID `json:"id"`
	Name      string      `json:"name"`
	Status    Status      `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// IsActive reports whether the tenant may use the platform.
func (t *Tenant) IsActive() bool {
	return t.Status == StatusActive
}
