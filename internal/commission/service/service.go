// Package service implements the commission accrual engine and the clawback
// calculator. Both post into the append-only commission ledger; amounts are
// integer cents with half-up rounding on percentage multiplication.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	commissionmetrics "assura/internal/commission/metrics"
	"assura/internal/commission/models"
	policymodels "assura/internal/policy/models"
	id "assura/pkg/domain"
	dErrors "assura/pkg/domain-errors"
	"assura/pkg/money"
	"assura/pkg/platform/sentinel"
)

var tracer = otel.Tracer("assura/commission")

// LedgerStore is the persistence port for commission entries. Append must
// enforce (policy, period) uniqueness and report a duplicate with
// sentinel.ErrAlreadyUsed so the engine can treat re-posting as a no-op.
type LedgerStore interface {
	Append(ctx context.Context, e *models.Entry) error
	ListByPolicy(ctx context.Context, tenantID id.TenantID, policyID id.PolicyID) ([]models.Entry, error)
}

// Service is the commission engine. It is invoked both by policy transitions
// (inside the transition's transaction) and by the renewal scheduler.
type Service struct {
	ledger  LedgerStore
	logger  *slog.Logger
	metrics *commissionmetrics.Metrics
}

// Option configures the Service.
type Option func(*Service)

func WithMetrics(m *commissionmetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(ledger LedgerStore, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{ledger: ledger, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PostInitial posts the one-off initial commission entry at first activation:
// round-half-up(monthlyPremium x initialCommissionPct), dated at activation.
// The reserved "initial" period key makes a second posting impossible at the
// datastore level; a duplicate is treated as already-posted, not an error.
func (s *Service) PostInitial(ctx context.Context, p *policymodels.Policy, activatedAt time.Time) error {
	ctx, span := tracer.Start(ctx, "commission.PostInitial")
	defer span.End()
	span.SetAttributes(attribute.String("policy_id", p.ID.String()))

	amount := money.ApplyPct(p.MonthlyPremium, p.InitialCommissionPct)
	if amount == 0 {
		// Zero commission products accrue nothing; a valid silent outcome.
		return nil
	}

	entry := &models.Entry{
		ID:           id.NewEntryID(),
		TenantID:     p.TenantID,
		PolicyID:     p.ID,
		Type:         models.EntryInitial,
		Amount:       amount,
		PeriodKey:    models.PeriodKeyInitial,
		BasisPremium: p.MonthlyPremium,
		BasisPct:     p.InitialCommissionPct,
		ComputedOn:   activatedAt,
		CreatedAt:    activatedAt,
	}
	if err := s.ledger.Append(ctx, entry); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to post initial commission")
	}

	if s.metrics != nil {
		s.metrics.InitialPosted.Inc()
	}
	s.logger.InfoContext(ctx, "posted initial commission",
		"policy_id", p.ID.String(),
		"amount_cents", int64(amount),
	)
	return nil
}

// PostRenewal posts the renewal commission for the cycle asOf falls into.
// Idempotent: the durable (policy, period) uniqueness means a period that
// already has an entry is silently skipped, so concurrent scheduler instances
// never double-post. Policies before their first cycle boundary, once-off
// premiums and zero renewal percentages post nothing.
func (s *Service) PostRenewal(ctx context.Context, p *policymodels.Policy, asOf time.Time) error {
	ctx, span := tracer.Start(ctx, "commission.PostRenewal")
	defer span.End()

	period := p.RenewalPeriodIndex(asOf)
	if period < 1 || p.RenewalCommissionPct == 0 {
		return nil
	}
	amount := money.ApplyPct(p.MonthlyPremium, p.RenewalCommissionPct)
	if amount == 0 {
		return nil
	}

	entry := &models.Entry{
		ID:           id.NewEntryID(),
		TenantID:     p.TenantID,
		PolicyID:     p.ID,
		Type:         models.EntryRenewal,
		Amount:       amount,
		PeriodKey:    models.RenewalPeriodKey(period),
		BasisPremium: p.MonthlyPremium,
		BasisPct:     p.RenewalCommissionPct,
		ComputedOn:   asOf,
		CreatedAt:    asOf,
	}
	if err := s.ledger.Append(ctx, entry); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			if s.metrics != nil {
				s.metrics.RenewalDuplicates.Inc()
			}
			return nil
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to post renewal commission")
	}

	if s.metrics != nil {
		s.metrics.RenewalPosted.Inc()
	}
	s.logger.InfoContext(ctx, "posted renewal commission",
		"policy_id", p.ID.String(),
		"period_key", entry.PeriodKey,
		"amount_cents", int64(amount),
	)
	return nil
}

// Ledger returns all commission entries for a tenant-scoped policy,
// chronologically.
func (s *Service) Ledger(ctx context.Context, tenantID id.TenantID, policyID id.PolicyID) ([]models.Entry, error) {
	entries, err := s.ledger.ListByPolicy(ctx, tenantID, policyID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read commission ledger")
	}
	return entries, nil
}
