package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"assura/internal/commission/models"
	ledgerstore "assura/internal/commission/store/ledger"
	policymodels "assura/internal/policy/models"
	id "assura/pkg/domain"
	"assura/pkg/money"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type CommissionServiceSuite struct {
	suite.Suite
	ctx     context.Context
	ledger  *ledgerstore.InMemory
	service *Service
}

func (s *CommissionServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.ledger = ledgerstore.NewInMemory()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.service = New(s.ledger, logger)
}

func TestCommissionServiceSuite(t *testing.T) {
	suite.Run(t, new(CommissionServiceSuite))
}

func (s *CommissionServiceSuite) newPolicy() *policymodels.Policy {
	return &policymodels.Policy{
		ID:                   id.NewPolicyID(),
		TenantID:             id.TenantID(uuid.New()),
		ClientID:             id.ClientID(uuid.New()),
		AgentID:              id.UserID(uuid.New()),
		PolicyNumber:         "POL-100",
		ProductCategory:      policymodels.ProductLife,
		MonthlyPremium:       100000, // R1 000.00
		PremiumFrequency:     policymodels.FrequencyMonthly,
		InceptionDate:        date(2024, 1, 1),
		InitialCommissionPct: 0.10,
		RenewalCommissionPct: 0.02,
		Status:               policymodels.StatusActive,
	}
}

func (s *CommissionServiceSuite) entries(p *policymodels.Policy) []models.Entry {
	entries, err := s.ledger.ListByPolicy(s.ctx, p.TenantID, p.ID)
	s.Require().NoError(err)
	return entries
}

func (s *CommissionServiceSuite) TestPostInitial() {
	p := s.newPolicy()
	activated := date(2024, 1, 15)

	s.Require().NoError(s.service.PostInitial(s.ctx, p, activated))

	entries := s.entries(p)
	s.Require().Len(entries, 1)
	s.Equal(models.EntryInitial, entries[0].Type)
	s.Equal(money.Cents(10000), entries[0].Amount)
	s.Equal(models.PeriodKeyInitial, entries[0].PeriodKey)
	s.Equal(money.Cents(100000), entries[0].BasisPremium)
	s.Equal(0.10, entries[0].BasisPct)
	s.Equal(activated, entries[0].ComputedOn)
}

func (s *CommissionServiceSuite) TestPostInitialIsOneShot() {
	p := s.newPolicy()
	s.Require().NoError(s.service.PostInitial(s.ctx, p, date(2024, 1, 15)))
	s.Require().NoError(s.service.PostInitial(s.ctx, p, date(2024, 2, 15)))
	s.Len(s.entries(p), 1)
}

func (s *CommissionServiceSuite) TestPostInitialZeroCommission() {
	p := s.newPolicy()
	p.InitialCommissionPct = 0
	s.Require().NoError(s.service.PostInitial(s.ctx, p, date(2024, 1, 15)))
	s.Empty(s.entries(p))
}

func (s *CommissionServiceSuite) TestClawbackPercentageBands() {
	inception := date(2024, 1, 1)
	s.Equal(100, ClawbackPercentage(inception, date(2024, 8, 1)))
	s.Equal(100, ClawbackPercentage(inception, date(2024, 12, 31))) // day 365
	s.Equal(50, ClawbackPercentage(inception, date(2025, 1, 1)))    // day 366
	s.Equal(50, ClawbackPercentage(inception, date(2025, 6, 1)))
	s.Equal(50, ClawbackPercentage(inception, date(2025, 12, 31))) // day 730
	s.Equal(0, ClawbackPercentage(inception, date(2026, 1, 1)))    // day 731
}

func (s *CommissionServiceSuite) TestFullClawbackWithinFirstYear() {
	p := s.newPolicy()
	s.Require().NoError(s.service.PostInitial(s.ctx, p, date(2024, 1, 15)))

	s.Require().NoError(s.service.ApplyClawback(s.ctx, p, date(2024, 8, 1)))

	entries := s.entries(p)
	s.Require().Len(entries, 2)
	clawback := entries[1]
	s.Equal(models.EntryClawback, clawback.Type)
	s.Equal(money.Cents(-10000), clawback.Amount)
	s.Equal(models.PeriodKeyClawback, clawback.PeriodKey)
	s.Equal(money.Cents(0), models.Balance(entries))
}

func (s *CommissionServiceSuite) TestHalfClawbackInSecondYear() {
	p := s.newPolicy()
	s.Require().NoError(s.service.PostInitial(s.ctx, p, date(2024, 1, 15)))

	s.Require().NoError(s.service.ApplyClawback(s.ctx, p, date(2025, 6, 1)))

	entries := s.entries(p)
	s.Require().Len(entries, 2)
	s.Equal(money.Cents(-5000), entries[1].Amount)
	s.Equal(money.Cents(5000), models.Balance(entries))
}

func (s *CommissionServiceSuite) TestNoClawbackAfterWatchWindow() {
	p := s.newPolicy()
	s.Require().NoError(s.service.PostInitial(s.ctx, p, date(2024, 1, 15)))

	s.Require().NoError(s.service.ApplyClawback(s.ctx, p, date(2026, 6, 1)))
	s.Len(s.entries(p), 1)
}

func (s *CommissionServiceSuite) TestClawbackWithoutInitialIsNoop() {
	p := s.newPolicy()
	s.Require().NoError(s.service.ApplyClawback(s.ctx, p, date(2024, 8, 1)))
	s.Empty(s.entries(p))
}

func (s *CommissionServiceSuite) TestClawbackIsOneShot() {
	p := s.newPolicy()
	s.Require().NoError(s.service.PostInitial(s.ctx, p, date(2024, 1, 15)))
	s.Require().NoError(s.service.ApplyClawback(s.ctx, p, date(2024, 8, 1)))
	s.Require().NoError(s.service.ApplyClawback(s.ctx, p, date(2024, 9, 1)))
	s.Len(s.entries(p), 2)
}

func (s *CommissionServiceSuite) TestPostRenewal() {
	p := s.newPolicy()
	p.PremiumFrequency = policymodels.FrequencyQuarterly

	s.Require().NoError(s.service.PostRenewal(s.ctx, p, date(2024, 4, 1)))

	entries := s.entries(p)
	s.Require().Len(entries, 1)
	s.Equal(models.EntryRenewal, entries[0].Type)
	s.Equal(money.Cents(2000), entries[0].Amount)
	s.Equal("renewal-0001", entries[0].PeriodKey)
}

func (s *CommissionServiceSuite) TestPostRenewalIdempotentPerPeriod() {
	p := s.newPolicy()
	p.PremiumFrequency = policymodels.FrequencyQuarterly

	s.Require().NoError(s.service.PostRenewal(s.ctx, p, date(2024, 4, 1)))
	s.Require().NoError(s.service.PostRenewal(s.ctx, p, date(2024, 4, 20))) // same cycle
	s.Len(s.entries(p), 1)

	// Next cycle posts a distinct entry.
	s.Require().NoError(s.service.PostRenewal(s.ctx, p, date(2024, 7, 1)))
	entries := s.entries(p)
	s.Require().Len(entries, 2)
	s.Equal("renewal-0002", entries[1].PeriodKey)
}

func (s *CommissionServiceSuite) TestPostRenewalBeforeFirstBoundary() {
	p := s.newPolicy()
	s.Require().NoError(s.service.PostRenewal(s.ctx, p, date(2024, 1, 20)))
	s.Empty(s.entries(p))
}

func (s *CommissionServiceSuite) TestPostRenewalOnceOffPremium() {
	p := s.newPolicy()
	p.PremiumFrequency = policymodels.FrequencyOnceOff
	s.Require().NoError(s.service.PostRenewal(s.ctx, p, date(2030, 1, 1)))
	s.Empty(s.entries(p))
}
