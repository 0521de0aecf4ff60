package models

import (
	"time"

	"assura/pkg/dateutil"
	id "assura/pkg/domain"
	dErrors "assura/pkg/domain-errors"
	"assura/pkg/money"
)

// Status is the lifecycle state of a policy. Mutations to Status happen only
// through the transition operation; cancelled is terminal.
type Status string

const (
	StatusDraft        Status = "draft"
	StatusSubmitted    Status = "submitted"
	StatusUnderwriting Status = "underwriting"
	StatusActive       Status = "active"
	StatusAmended      Status = "amended"
	StatusLapsed       Status = "lapsed"
	StatusReinstated   Status = "reinstated"
	StatusCancelled    Status = "cancelled"
)

// allowedTransitions is the single source of truth for legal status edges.
// A static table rather than scattered conditionals so every (from, to) pair
// can be tested exhaustively.
var allowedTransitions = map[Status][]Status{
	StatusDraft:        {StatusSubmitted, StatusCancelled},
	StatusSubmitted:    {StatusUnderwriting, StatusCancelled},
	StatusUnderwriting: {StatusActive, StatusCancelled},
	StatusActive:       {StatusAmended, StatusLapsed, StatusCancelled},
	StatusAmended:      {StatusActive, StatusLapsed, StatusCancelled},
	StatusLapsed:       {StatusReinstated, StatusCancelled},
	StatusReinstated:   {StatusActive, StatusLapsed, StatusCancelled},
	StatusCancelled:    {},
}

// Statuses lists every defined status, in lifecycle order.
func Statuses() []Status {
	return []Status{
		StatusDraft, StatusSubmitted, StatusUnderwriting, StatusActive,
		StatusAmended, StatusLapsed, StatusReinstated, StatusCancelled,
	}
}

// ParseStatus validates raw input into a Status.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if _, ok := allowedTransitions[s]; !ok {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown policy status %q", raw)
	}
	return s, nil
}

// CanTransitionTo reports whether the edge from s to target is legal.
func (s Status) CanTransitionTo(target Status) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// AllowedTargets returns the legal next statuses from s. Empty for cancelled.
func (s Status) AllowedTargets() []Status {
	return append([]Status{}, allowedTransitions[s]...)
}

// IsTerminal reports whether s has no outgoing edges.
func (s Status) IsTerminal() bool {
	return len(allowedTransitions[s]) == 0
}

// InvalidTransitionError reports an attempted illegal status edge. Callers
// must surface both statuses to the actor, so they ride on the error rather
// than being flattened into a message.
type InvalidTransitionError struct {
	Current   Status
	Requested Status
}

func (e *InvalidTransitionError) Error() string {
	return "cannot move policy from " + string(e.Current) + " to " + string(e.Requested)
}

// NewInvalidTransition builds the coded error wrapping the structured detail,
// so handlers can match on the code and unwrap the statuses with errors.As.
func NewInvalidTransition(current, requested Status) error {
	return dErrors.Wrap(
		&InvalidTransitionError{Current: current, Requested: requested},
		dErrors.CodeInvalidTransition,
		"cannot move policy from "+string(current)+" to "+string(requested),
	)
}

// ProductCategory classifies the insured product.
type ProductCategory string

const (
	ProductLife                ProductCategory = "life"
	ProductDisabilityLump      ProductCategory = "disability_lump"
	ProductIncomeProtection    ProductCategory = "income_protection"
	ProductCriticalIllness     ProductCategory = "critical_illness"
	ProductFuneral             ProductCategory = "funeral"
	ProductShortTermPersonal   ProductCategory = "short_term_personal"
	ProductShortTermCommercial ProductCategory = "short_term_commercial"
	ProductMedicalAid          ProductCategory = "medical_aid"
	ProductGapCover            ProductCategory = "gap_cover"
	ProductRetrenchment        ProductCategory = "retrenchment"
	ProductInvestment          ProductCategory = "investment"
	ProductKeyPerson           ProductCategory = "key_person"
)

var productCategories = map[ProductCategory]struct{}{
	ProductLife: {}, ProductDisabilityLump: {}, ProductIncomeProtection: {},
	ProductCriticalIllness: {}, ProductFuneral: {}, ProductShortTermPersonal: {},
	ProductShortTermCommercial: {}, ProductMedicalAid: {}, ProductGapCover: {},
	ProductRetrenchment: {}, ProductInvestment: {}, ProductKeyPerson: {},
}

// PremiumFrequency determines the renewal commission cycle.
type PremiumFrequency string

const (
	FrequencyMonthly   PremiumFrequency = "monthly"
	FrequencyQuarterly PremiumFrequency = "quarterly"
	FrequencyBiAnnual  PremiumFrequency = "bi_annual"
	FrequencyAnnual    PremiumFrequency = "annual"
	FrequencyOnceOff   PremiumFrequency = "once_off"
)

// CycleMonths returns the renewal cycle length in months; 0 means the policy
// never accrues renewal commission (once-off premiums).
func (f PremiumFrequency) CycleMonths() int {
	switch f {
	case FrequencyMonthly:
		return 1
	case FrequencyQuarterly:
		return 3
	case FrequencyBiAnnual:
		return 6
	case FrequencyAnnual:
		return 12
	default:
		return 0
	}
}

// CollectionMethod is how premiums are collected.
type CollectionMethod string

const (
	CollectionDebitOrder CollectionMethod = "debit_order"
	CollectionEFT        CollectionMethod = "eft"
	CollectionStopOrder  CollectionMethod = "stop_order"
	CollectionCreditCard CollectionMethod = "credit_card"
	CollectionCash       CollectionMethod = "cash"
)

var collectionMethods = map[CollectionMethod]struct{}{
	CollectionDebitOrder: {}, CollectionEFT: {}, CollectionStopOrder: {},
	CollectionCreditCard: {}, CollectionCash: {},
}

var premiumFrequencies = map[PremiumFrequency]struct{}{
	FrequencyMonthly: {}, FrequencyQuarterly: {}, FrequencyBiAnnual: {},
	FrequencyAnnual: {}, FrequencyOnceOff: {},
}

// ClawbackWatchDays is the regulatory watch window after inception during
// which a lapse or cancellation claws back initial commission.
const ClawbackWatchDays = 730

// Policy is the aggregate root for an insurance policy.
//
// Invariants:
//   - PolicyNumber unique within the tenant (case-insensitive)
//   - Status moves only along allowedTransitions edges
//   - SumAssured and MonthlyPremium are positive
//   - Commission percentages are fractions in [0, 1]
//   - Rows are soft-deleted only; DeletedAt never clears status history
type Policy struct {
	ID       id.PolicyID `json:"id"`
	TenantID id.TenantID `json:"tenant_id"`
	ClientID id.ClientID `json:"client_id"`
	AgentID  id.UserID   `json:"agent_id"`

	PolicyNumber     string          `json:"policy_number"`
	ProductCategory  ProductCategory `json:"product_category"`
	ProductName      string          `json:"product_name"`
	InsurerName      string          `json:"insurer_name"`
	InsurerPolicyRef string          `json:"insurer_policy_ref,omitempty"`

	SumAssured       money.Cents      `json:"sum_assured"`
	MonthlyPremium   money.Cents      `json:"monthly_premium"`
	PremiumFrequency PremiumFrequency `json:"premium_frequency"`
	CollectionMethod CollectionMethod `json:"collection_method"`
	EscalationRate   *float64         `json:"escalation_rate,omitempty"`

	InceptionDate time.Time  `json:"inception_date"`
	ExpiryDate    *time.Time `json:"expiry_date,omitempty"`

	InitialCommissionPct float64 `json:"initial_commission_pct"`
	RenewalCommissionPct float64 `json:"renewal_commission_pct"`

	Status             Status     `json:"status"`
	LapseDate          *time.Time `json:"lapse_date,omitempty"`
	CancellationDate   *time.Time `json:"cancellation_date,omitempty"`
	CancellationReason string     `json:"cancellation_reason,omitempty"`
	ClawbackWatchUntil *time.Time `json:"clawback_watch_until,omitempty"`
	ActivatedAt        *time.Time `json:"activated_at,omitempty"`

	CreatedBy id.UserID  `json:"created_by"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// Validate checks the construction invariants. Returns a CodeValidation error
// naming the first offending field.
func (p *Policy) Validate() error {
	switch {
	case p.TenantID.IsNil():
		return dErrors.New(dErrors.CodeValidation, "tenant is required")
	case p.ClientID.IsNil():
		return dErrors.New(dErrors.CodeValidation, "client is required")
	case p.AgentID.IsNil():
		return dErrors.New(dErrors.CodeValidation, "agent is required")
	case p.PolicyNumber == "":
		return dErrors.New(dErrors.CodeValidation, "policy number is required")
	case p.SumAssured <= 0:
		return dErrors.New(dErrors.CodeValidation, "sum assured must be positive")
	case p.MonthlyPremium <= 0:
		return dErrors.New(dErrors.CodeValidation, "monthly premium must be positive")
	case p.InitialCommissionPct < 0 || p.InitialCommissionPct > 1:
		return dErrors.New(dErrors.CodeValidation, "initial commission percentage must be between 0 and 1")
	case p.RenewalCommissionPct < 0 || p.RenewalCommissionPct > 1:
		return dErrors.New(dErrors.CodeValidation, "renewal commission percentage must be between 0 and 1")
	case p.InceptionDate.IsZero():
		return dErrors.New(dErrors.CodeValidation, "inception date is required")
	}
	if _, ok := productCategories[p.ProductCategory]; !ok {
		return dErrors.Newf(dErrors.CodeValidation, "unknown product category %q", p.ProductCategory)
	}
	if _, ok := premiumFrequencies[p.PremiumFrequency]; !ok {
		return dErrors.Newf(dErrors.CodeValidation, "unknown premium frequency %q", p.PremiumFrequency)
	}
	if _, ok := collectionMethods[p.CollectionMethod]; !ok {
		return dErrors.Newf(dErrors.CodeValidation, "unknown collection method %q", p.CollectionMethod)
	}
	return nil
}

// CanTransition checks the edge without applying it.
func (p *Policy) CanTransition(target Status) error {
	if !p.Status.CanTransitionTo(target) {
		return NewInvalidTransition(p.Status, target)
	}
	return nil
}

// ApplyTransition moves the policy along a validated edge and stamps the
// transition metadata. Call CanTransition first; this method assumes the edge
// is legal.
//
// Stamps:
//   - lapsed: LapseDate = now
//   - cancelled: CancellationDate = now, reason kept when supplied
//   - first activation: ActivatedAt = now, watch window anchored on inception
func (p *Policy) ApplyTransition(target Status, reason string, now time.Time) {
	p.Status = target
	p.UpdatedAt = now

	switch target {
	case StatusLapsed:
		lapse := now
		p.LapseDate = &lapse
	case StatusCancelled:
		cancelled := now
		p.CancellationDate = &cancelled
		if reason != "" {
			p.CancellationReason = reason
		}
	case StatusActive:
		if p.ActivatedAt == nil {
			activated := now
			p.ActivatedAt = &activated
			if p.ClawbackWatchUntil == nil {
				watch := dateutil.AddDays(dateutil.Truncate(p.InceptionDate), ClawbackWatchDays)
				p.ClawbackWatchUntil = &watch
			}
		}
	}
}

// HasActivated reports whether the policy has ever reached active. Only the
// first underwriting->active edge posts initial commission; re-entries from
// amended or reinstated never re-post.
func (p *Policy) HasActivated() bool {
	return p.ActivatedAt != nil
}

// InWatchWindow reports whether t falls inside the clawback watch window.
func (p *Policy) InWatchWindow(t time.Time) bool {
	return dateutil.DaysBetween(p.InceptionDate, t) <= ClawbackWatchDays
}

// RenewalPeriodIndex returns which renewal cycle asOf falls into, counted
// from inception. Index 0 is the initial period (no renewal commission);
// the first renewal boundary is index 1. Returns 0 for once-off premiums.
func (p *Policy) RenewalPeriodIndex(asOf time.Time) int {
	cycle := p.PremiumFrequency.CycleMonths()
	if cycle == 0 {
		return 0
	}
	return dateutil.MonthsBetween(p.InceptionDate, asOf) / cycle
}
