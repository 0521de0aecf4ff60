// Package notify carries outbound notices to the notification collaborator.
// The core emits notices; delivery (email, push, in-app) happens downstream.
package notify

import (
	"time"

	id "assura/pkg/domain"
)

// Kind classifies a notice.
type Kind string

const (
	KindRenewalDue    Kind = "renewal_due"
	KindWatchExpiring Kind = "watch_expiring"
)

// Notice is a single outbound notification about a policy.
type Notice struct {
	Kind         Kind        `json:"kind"`
	TenantID     id.TenantID `json:"tenant_id"`
	PolicyID     id.PolicyID `json:"policy_id"`
	PolicyNumber string      `json:"policy_number"`
	DueOn        time.Time   `json:"due_on"`
	EmittedAt    time.Time   `json:"emitted_at"`
}

// DedupeKey identifies a notice for the scheduler's once-per-occurrence
// suppression: one notice per policy, kind and due date.
func (n Notice) DedupeKey() string {
	return string(n.Kind) + ":" + n.PolicyID.String() + ":" + n.DueOn.Format("2006-01-02")
}
