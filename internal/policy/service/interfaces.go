package service

import (
	"context"
	"time"

	"assura/internal/policy/models"
	id "assura/pkg/domain"
)

// PolicyStore is the persistence port for policies. Implementations must
// treat soft-deleted rows as absent and must never return a row outside the
// given tenant scope; a cross-tenant id is indistinguishable from a missing
// one (sentinel.ErrNotFound) to prevent tenant enumeration.
type PolicyStore interface {
	Create(ctx context.Context, p *models.Policy) error
	FindByID(ctx context.Context, tenantID id.TenantID, policyID id.PolicyID) (*models.Policy, error)
	// FindByIDForUpdate locks the row for the remainder of the surrounding
	// transaction so concurrent transitions on one policy serialize.
	FindByIDForUpdate(ctx context.Context, tenantID id.TenantID, policyID id.PolicyID) (*models.Policy, error)
	Update(ctx context.Context, p *models.Policy) error
	SoftDelete(ctx context.Context, tenantID id.TenantID, policyID id.PolicyID, now time.Time) error
	List(ctx context.Context, tenantID id.TenantID, filter models.ListFilter) ([]*models.Policy, error)

	// RenewalsDue returns active/reinstated policies expiring inside
	// [now, now+daysAhead], soonest first. Read-only.
	RenewalsDue(ctx context.Context, tenantID id.TenantID, now time.Time, daysAhead int) ([]*models.Policy, error)
	// ClawbackWatchActive returns policies whose watch window is still open
	// at now. Read-only.
	ClawbackWatchActive(ctx context.Context, tenantID id.TenantID, now time.Time) ([]*models.Policy, error)

	AppendTransition(ctx context.Context, rec models.TransitionRecord) error
	Transitions(ctx context.Context, tenantID id.TenantID, policyID id.PolicyID) ([]models.TransitionRecord, error)
}

// ClientDirectory guards that a client belongs to the tenant before a policy
// is written against it.
type ClientDirectory interface {
	Exists(ctx context.Context, tenantID id.TenantID, clientID id.ClientID) (bool, error)
}

// CommissionEngine is the financial side-effect port invoked by transitions.
// Implementations post ledger entries through the same context-carried
// transaction as the status write.
type CommissionEngine interface {
	PostInitial(ctx context.Context, p *models.Policy, activatedAt time.Time) error
	ApplyClawback(ctx context.Context, p *models.Policy, lapseDate time.Time) error
}
