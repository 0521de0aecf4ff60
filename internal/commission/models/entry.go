package models

import (
	"fmt"
	"time"

	id "assura/pkg/domain"
	"assura/pkg/money"
)

// EntryType classifies a commission ledger entry.
type EntryType string

const (
	EntryInitial  EntryType = "initial"
	EntryRenewal  EntryType = "renewal"
	EntryClawback EntryType = "clawback"
)

// Reserved period keys. Renewal entries use "renewal-NNNN" keyed on the cycle
// index; the reserved keys ride on the same (policy, period) uniqueness so the
// datastore enforces at-most-one initial and at-most-one clawback per policy.
const (
	PeriodKeyInitial  = "initial"
	PeriodKeyClawback = "clawback"
)

// Entry is one immutable commission ledger row. Amounts are signed integer
// cents: clawback entries are negative, accruals positive. Corrections are
// new offsetting entries, never edits, so the ledger always reconciles with
// the balance exposed to accounting.
type Entry struct {
	ID       id.EntryID  `json:"id"`
	TenantID id.TenantID `json:"tenant_id"`
	PolicyID id.PolicyID `json:"policy_id"`

	Type      EntryType   `json:"type"`
	Amount    money.Cents `json:"amount"`
	PeriodKey string      `json:"period_key"`

	// Basis values snapshot the inputs the amount was computed from.
	BasisPremium money.Cents `json:"basis_premium"`
	BasisPct     float64     `json:"basis_pct"`

	ComputedOn time.Time `json:"computed_on"`
	CreatedAt  time.Time `json:"created_at"`
}

// Balance sums a set of entries. The signed amounts make clawbacks net off
// against accruals without special cases.
func Balance(entries []Entry) money.Cents {
	var total money.Cents
	for _, e := range entries {
		total += e.Amount
	}
	return total
}

// TotalInitial sums the initial commission actually paid on a policy. This is
// the clawback basis.
func TotalInitial(entries []Entry) money.Cents {
	var total money.Cents
	for _, e := range entries {
		if e.Type == EntryInitial {
			total += e.Amount
		}
	}
	return total
}

// RenewalPeriodKey builds the durable idempotency key for a renewal cycle.
// Zero-padded so keys sort chronologically in the ledger.
func RenewalPeriodKey(index int) string {
	return fmt.Sprintf("renewal-%04d", index)
}
