// Package service orchestrates the policy lifecycle: creation, direct field
// updates in non-terminal states, soft deletion, read queries, and the status
// transition operation with its financial side effects.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	policymetrics "assura/internal/policy/metrics"
	"assura/internal/policy/models"
	"assura/pkg/dateutil"
	id "assura/pkg/domain"
	dErrors "assura/pkg/domain-errors"
	"assura/pkg/money"
	"assura/pkg/platform/sentinel"
	"assura/pkg/platform/tx"
	"assura/pkg/requestcontext"
)

var tracer = otel.Tracer("assura/policy")

// transitionRetries bounds the optimistic retry loop for transitions that
// lose a serialization race. The loser re-reads current status under the row
// lock and re-validates rather than overwriting blindly.
const transitionRetries = 3

// Service is the policy module's application service. Tenant and actor are
// explicit arguments on every operation; nothing is read from ambient state.
type Service struct {
	policies   PolicyStore
	clients    ClientDirectory
	commission CommissionEngine
	tx         tx.Runner
	logger     *slog.Logger
	metrics    *policymetrics.Metrics
}

// Option configures the Service.
type Option func(*Service)

func WithMetrics(m *policymetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithTxRunner overrides the transactional boundary; defaults to NoopRunner
// for memory-backed wiring.
func WithTxRunner(runner tx.Runner) Option {
	return func(s *Service) { s.tx = runner }
}

func New(policies PolicyStore, clients ClientDirectory, commission CommissionEngine, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		policies:   policies,
		clients:    clients,
		commission: commission,
		tx:         tx.NoopRunner{},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateInput carries the caller-supplied policy fields. Identity fields
// (tenant, creator) come from the call, never from the input body.
type CreateInput struct {
	ClientID             id.ClientID
	AgentID              id.UserID
	PolicyNumber         string
	ProductCategory      models.ProductCategory
	ProductName          string
	InsurerName          string
	InsurerPolicyRef     string
	SumAssured           money.Cents
	MonthlyPremium       money.Cents
	PremiumFrequency     models.PremiumFrequency
	CollectionMethod     models.CollectionMethod
	EscalationRate       *float64
	InceptionDate        time.Time
	ExpiryDate           *time.Time
	InitialCommissionPct float64
	RenewalCommissionPct float64
}

// Create validates the input, guards that the client belongs to the tenant,
// and persists a new draft policy. A client outside the tenant scope is
// reported as NotFound, indistinguishable from a missing client.
func (s *Service) Create(ctx context.Context, tenantID id.TenantID, actorID id.UserID, input CreateInput) (*models.Policy, error) {
	ctx, span := tracer.Start(ctx, "policy.Create")
	defer span.End()

	now := requestcontext.Now(ctx)
	p := &models.Policy{
		ID:                   id.NewPolicyID(),
		TenantID:             tenantID,
		ClientID:             input.ClientID,
		AgentID:              input.AgentID,
		PolicyNumber:         input.PolicyNumber,
		ProductCategory:      input.ProductCategory,
		ProductName:          input.ProductName,
		InsurerName:          input.InsurerName,
		InsurerPolicyRef:     input.InsurerPolicyRef,
		SumAssured:           input.SumAssured,
		MonthlyPremium:       input.MonthlyPremium,
		PremiumFrequency:     defaultFrequency(input.PremiumFrequency),
		CollectionMethod:     defaultCollection(input.CollectionMethod),
		EscalationRate:       input.EscalationRate,
		InceptionDate:        dateutil.Truncate(input.InceptionDate),
		ExpiryDate:           input.ExpiryDate,
		InitialCommissionPct: input.InitialCommissionPct,
		RenewalCommissionPct: input.RenewalCommissionPct,
		Status:               models.StatusDraft,
		CreatedBy:            actorID,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	// The watch window is anchored on inception as soon as commission terms
	// exist, so the watch query can flag at-risk policies before activation.
	if p.InitialCommissionPct > 0 {
		watch := dateutil.AddDays(p.InceptionDate, models.ClawbackWatchDays)
		p.ClawbackWatchUntil = &watch
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	found, err := s.clients.Exists(ctx, tenantID, input.ClientID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to verify client")
	}
	if !found {
		return nil, dErrors.New(dErrors.CodeNotFound, "client not found")
	}

	if err := s.policies.Create(ctx, p); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "policy number already exists for this tenant")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create policy")
	}

	if s.metrics != nil {
		s.metrics.PoliciesCreated.Inc()
	}
	s.logger.InfoContext(ctx, "policy created",
		"policy_id", p.ID.String(),
		"tenant_id", tenantID.String(),
		"policy_number", p.PolicyNumber,
	)
	return p, nil
}

// Get returns a tenant-scoped policy.
func (s *Service) Get(ctx context.Context, tenantID id.TenantID, policyID id.PolicyID) (*models.Policy, error) {
	p, err := s.policies.FindByID(ctx, tenantID, policyID)
	if err != nil {
		return nil, wrapPolicyErr(err)
	}
	return p, nil
}

// List returns tenant-scoped policies matching the filter, newest first.
func (s *Service) List(ctx context.Context, tenantID id.TenantID, filter models.ListFilter) ([]*models.Policy, error) {
	out, err := s.policies.List(ctx, tenantID, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list policies")
	}
	return out, nil
}

// UpdateInput carries optional direct field edits. Nil pointers leave the
// field untouched. Identity fields and status are not editable here; status
// moves only through Transition.
type UpdateInput struct {
	ProductName          *string
	InsurerName          *string
	InsurerPolicyRef     *string
	SumAssured           *money.Cents
	MonthlyPremium       *money.Cents
	PremiumFrequency     *models.PremiumFrequency
	CollectionMethod     *models.CollectionMethod
	EscalationRate       *float64
	ExpiryDate           *time.Time
	InitialCommissionPct *float64
	RenewalCommissionPct *float64
}

// Update applies direct field edits, permitted only while the policy is in a
// non-terminal state.
func (s *Service) Update(ctx context.Context, tenantID id.TenantID, policyID id.PolicyID, input UpdateInput) (*models.Policy, error) {
	p, err := s.policies.FindByID(ctx, tenantID, policyID)
	if err != nil {
		return nil, wrapPolicyErr(err)
	}
	if p.Status.IsTerminal() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "cancelled policies cannot be edited")
	}

	if input.ProductName != nil {
		p.ProductName = *input.ProductName
	}
	if input.InsurerName != nil {
		p.InsurerName = *input.InsurerName
	}
	if input.InsurerPolicyRef != nil {
		p.InsurerPolicyRef = *input.InsurerPolicyRef
	}
	if input.SumAssured != nil {
		p.SumAssured = *input.SumAssured
	}
	if input.MonthlyPremium != nil {
		p.MonthlyPremium = *input.MonthlyPremium
	}
	if input.PremiumFrequency != nil {
		p.PremiumFrequency = *input.PremiumFrequency
	}
	if input.CollectionMethod != nil {
		p.CollectionMethod = *input.CollectionMethod
	}
	if input.EscalationRate != nil {
		p.EscalationRate = input.EscalationRate
	}
	if input.ExpiryDate != nil {
		p.ExpiryDate = input.ExpiryDate
	}
	if input.InitialCommissionPct != nil {
		p.InitialCommissionPct = *input.InitialCommissionPct
	}
	if input.RenewalCommissionPct != nil {
		p.RenewalCommissionPct = *input.RenewalCommissionPct
	}
	p.UpdatedAt = requestcontext.Now(ctx)

	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := s.policies.Update(ctx, p); err != nil {
		return nil, wrapPolicyErr(err)
	}
	return p, nil
}

// SoftDelete marks the policy deleted for retention compliance. Status
// history and ledger entries remain untouched.
func (s *Service) SoftDelete(ctx context.Context, tenantID id.TenantID, policyID id.PolicyID) error {
	err := s.policies.SoftDelete(ctx, tenantID, policyID, requestcontext.Now(ctx))
	if err != nil {
		return wrapPolicyErr(err)
	}
	return nil
}

// Transition validates and applies a status change with its financial side
// effects as one atomic unit: the status write, date stamps, ledger postings
// and the transition audit record either all persist or none do.
//
// Side effects by target:
//   - active (first time, from underwriting): initial commission posted
//   - lapsed: lapse date stamped, clawback evaluated against the ledger
//   - cancelled: cancellation date and reason stamped; clawback evaluated
//     when the policy had activated inside the watch window
func (s *Service) Transition(ctx context.Context, tenantID id.TenantID, actorID id.UserID, policyID id.PolicyID, target models.Status, reason string) (*models.Policy, error) {
	ctx, span := tracer.Start(ctx, "policy.Transition")
	defer span.End()
	span.SetAttributes(
		attribute.String("policy_id", policyID.String()),
		attribute.String("target_status", string(target)),
	)

	now := requestcontext.Now(ctx)

	var result *models.Policy
	var lastErr error
	for attempt := 0; attempt < transitionRetries; attempt++ {
		if attempt > 0 && s.metrics != nil {
			s.metrics.TransitionRetries.Inc()
		}
		result, lastErr = s.transitionOnce(ctx, tenantID, actorID, policyID, target, reason, now)
		if lastErr == nil || !isRetryable(lastErr) {
			break
		}
	}
	if lastErr != nil {
		if dErrors.HasCode(lastErr, dErrors.CodeInvalidTransition) && s.metrics != nil {
			s.metrics.InvalidTransitions.Inc()
		}
		return nil, lastErr
	}

	if s.metrics != nil {
		s.metrics.Transitions.WithLabelValues(string(target)).Inc()
	}
	s.logger.InfoContext(ctx, "policy transitioned",
		"policy_id", policyID.String(),
		"tenant_id", tenantID.String(),
		"to_status", string(target),
		"actor_id", actorID.String(),
	)
	return result, nil
}

func (s *Service) transitionOnce(ctx context.Context, tenantID id.TenantID, actorID id.UserID, policyID id.PolicyID, target models.Status, reason string, now time.Time) (*models.Policy, error) {
	var result *models.Policy
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		p, err := s.policies.FindByIDForUpdate(txCtx, tenantID, policyID)
		if err != nil {
			return wrapPolicyErr(err)
		}

		from := p.Status
		if err := p.CanTransition(target); err != nil {
			return err
		}

		wasActivated := p.HasActivated()
		p.ApplyTransition(target, reason, now)

		if err := s.policies.Update(txCtx, p); err != nil {
			return wrapPolicyErr(err)
		}

		switch {
		case target == models.StatusActive && !wasActivated:
			if err := s.commission.PostInitial(txCtx, p, now); err != nil {
				return err
			}
		case target == models.StatusLapsed:
			if err := s.commission.ApplyClawback(txCtx, p, now); err != nil {
				return err
			}
		case target == models.StatusCancelled && wasActivated && p.InWatchWindow(now):
			// Cancellation inside the watch window claws back like a lapse;
			// see DESIGN.md for the resolution of this open question.
			if err := s.commission.ApplyClawback(txCtx, p, now); err != nil {
				return err
			}
		}

		if err := s.policies.AppendTransition(txCtx, models.TransitionRecord{
			PolicyID:   p.ID,
			TenantID:   tenantID,
			FromStatus: from,
			ToStatus:   target,
			ActorID:    actorID,
			Reason:     reason,
			OccurredAt: now,
		}); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record transition")
		}

		result = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Transitions returns the audit trail for a tenant-scoped policy.
func (s *Service) Transitions(ctx context.Context, tenantID id.TenantID, policyID id.PolicyID) ([]models.TransitionRecord, error) {
	// Scope check first so an empty trail for a foreign policy reads as NotFound.
	if _, err := s.policies.FindByID(ctx, tenantID, policyID); err != nil {
		return nil, wrapPolicyErr(err)
	}
	recs, err := s.policies.Transitions(ctx, tenantID, policyID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list transitions")
	}
	return recs, nil
}

// RenewalsDue returns active/reinstated policies expiring within daysAhead
// days, soonest first. Pure query; safe to call concurrently with transitions.
func (s *Service) RenewalsDue(ctx context.Context, tenantID id.TenantID, daysAhead int) ([]*models.Policy, error) {
	if daysAhead <= 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "daysAhead must be positive")
	}
	out, err := s.policies.RenewalsDue(ctx, tenantID, requestcontext.Now(ctx), daysAhead)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to query renewals")
	}
	return out, nil
}

// ClawbackWatchActive returns policies still inside their clawback watch
// window. Pure query.
func (s *Service) ClawbackWatchActive(ctx context.Context, tenantID id.TenantID) ([]*models.Policy, error) {
	out, err := s.policies.ClawbackWatchActive(ctx, tenantID, requestcontext.Now(ctx))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to query clawback watch")
	}
	return out, nil
}

func wrapPolicyErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "policy not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "policy conflict")
	default:
		if dErrors.CodeOf(err) != dErrors.CodeInternal {
			return err
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "policy store failure")
	}
}

func isRetryable(err error) bool {
	// Serialization losers surface as internal errors wrapping the driver
	// code; coded domain outcomes are never retried.
	return dErrors.CodeOf(err) == dErrors.CodeInternal && sqlRetryable(err)
}

func defaultFrequency(f models.PremiumFrequency) models.PremiumFrequency {
	if f == "" {
		return models.FrequencyMonthly
	}
	return f
}

func defaultCollection(c models.CollectionMethod) models.CollectionMethod {
	if c == "" {
		return models.CollectionDebitOrder
	}
	return c
}
