package models

import (
	"time"

	id "assura/pkg/domain"
	dErrors "assura/pkg/domain-errors"
)

// Client is an insured party belonging to a tenant. Policies are always
// written against a client inside the same tenant.
type Client struct {
	ID        id.ClientID `json:"id"`
	TenantID  id.TenantID `json:"tenant_id"`
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
	Email     string      `json:"email,omitempty"`
	Phone     string      `json:"phone,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
	DeletedAt *time.Time  `json:"deleted_at,omitempty"`
}

// Validate checks construction invariants.
func (c *Client) Validate() error {
	switch {
	case c.TenantID.IsNil():
		return dErrors.New(dErrors.CodeValidation, "tenant is required")
	case c.FirstName == "":
		return dErrors.New(dErrors.CodeValidation, "first name is required")
	case c.LastName == "":
		return dErrors.New(dErrors.CodeValidation, "last name is required")
	}
	return nil
}
