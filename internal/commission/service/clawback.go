package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"assura/internal/commission/models"
	policymodels "assura/internal/policy/models"
	"assura/pkg/dateutil"
	id "assura/pkg/domain"
	dErrors "assura/pkg/domain-errors"
	"assura/pkg/money"
	"assura/pkg/platform/sentinel"
)

// ClawbackPercentage returns the repayable share of initial commission, in
// whole percentage points, as a function of whole days between commencement
// and lapse. The bands follow the two-year watch window:
//
//	days <= 365        100
//	365 < days <= 730   50
//	days > 730           0
func ClawbackPercentage(commencement, lapse time.Time) int {
	days := dateutil.DaysBetween(commencement, lapse)
	switch {
	case days <= 365:
		return 100
	case days <= 730:
		return 50
	default:
		return 0
	}
}

// ApplyClawback evaluates the clawback table against the policy's ledger and
// posts a single negative clawback entry when commission is repayable.
//
// Outcomes that post nothing are deliberate no-ops, not errors:
//   - no initial commission was ever paid (policy lapsed before activating)
//   - the lapse falls outside the watch window (0%)
//   - a clawback entry already exists for this policy
func (s *Service) ApplyClawback(ctx context.Context, p *policymodels.Policy, lapseDate time.Time) error {
	ctx, span := tracer.Start(ctx, "commission.ApplyClawback")
	defer span.End()
	span.SetAttributes(attribute.String("policy_id", p.ID.String()))

	entries, err := s.ledger.ListByPolicy(ctx, p.TenantID, p.ID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read ledger for clawback")
	}
	initialPaid := models.TotalInitial(entries)
	if initialPaid == 0 {
		// Nothing was ever paid out, so there is nothing to claw back.
		if s.metrics != nil {
			s.metrics.ClawbackSkipped.Inc()
		}
		return nil
	}

	pct := ClawbackPercentage(p.InceptionDate, lapseDate)
	if pct == 0 {
		if s.metrics != nil {
			s.metrics.ClawbackSkipped.Inc()
		}
		return nil
	}

	amount := money.ApplyPctPoints(initialPaid, pct)
	entry := &models.Entry{
		ID:           id.NewEntryID(),
		TenantID:     p.TenantID,
		PolicyID:     p.ID,
		Type:         models.EntryClawback,
		Amount:       -amount,
		PeriodKey:    models.PeriodKeyClawback,
		BasisPremium: initialPaid,
		BasisPct:     float64(pct) / 100,
		ComputedOn:   lapseDate,
		CreatedAt:    lapseDate,
	}
	if err := s.ledger.Append(ctx, entry); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			// A prior lapse already clawed this policy back.
			return nil
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to post clawback")
	}

	if s.metrics != nil {
		s.metrics.ClawbackPosted.Inc()
		s.metrics.ClawbackCents.Add(float64(amount))
	}
	s.logger.InfoContext(ctx, "posted commission clawback",
		"policy_id", p.ID.String(),
		"percentage", pct,
		"amount_cents", int64(-amount),
	)
	return nil
}
