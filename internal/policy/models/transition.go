package models

import (
	"time"

	id "assura/pkg/domain"
)

// ListFilter narrows tenant-scoped policy listings. Zero values mean "any".
type ListFilter struct {
	ClientID        id.ClientID
	Status          Status
	ProductCategory ProductCategory
}

// TransitionRecord is the audit row written alongside every status change.
// Records are append-only; together they must replay to the policy's current
// status along allowed edges only.
type TransitionRecord struct {
	PolicyID   id.PolicyID `json:"policy_id"`
	TenantID   id.TenantID `json:"tenant_id"`
	FromStatus Status      `json:"from_status"`
	ToStatus   Status      `json:"to_status"`
	ActorID    id.UserID   `json:"actor_id"`
	Reason     string      `json:"reason,omitempty"`
	OccurredAt time.Time   `json:"occurred_at"`
}
