package scheduler

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	clientmodels "assura/internal/client/models"
	clientstore "assura/internal/client/store"
	commissionmodels "assura/internal/commission/models"
	commissionservice "assura/internal/commission/service"
	ledgerstore "assura/internal/commission/store/ledger"
	"assura/internal/notify"
	policymodels "assura/internal/policy/models"
	policyservice "assura/internal/policy/service"
	policystore "assura/internal/policy/store/policy"
	tenantmodels "assura/internal/tenant/models"
	tenantstore "assura/internal/tenant/store"
	id "assura/pkg/domain"
	"assura/pkg/requestcontext"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type SchedulerSuite struct {
	suite.Suite
	ctx       context.Context
	tenantID  id.TenantID
	actorID   id.UserID
	clientID  id.ClientID
	ledger    *ledgerstore.InMemory
	policySvc *policyservice.Service
	publisher *notify.MemoryPublisher
	worker    *Worker
}

func (s *SchedulerSuite) SetupTest() {
	s.ctx = context.Background()
	s.tenantID = id.TenantID(uuid.New())
	s.actorID = id.UserID(uuid.New())
	s.clientID = id.ClientID(uuid.New())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tenants := tenantstore.NewInMemory()
	s.Require().NoError(tenants.Create(s.ctx, &tenantmodels.Tenant{
		ID:     s.tenantID,
		Name:   "Umbrella Brokers",
		Status: tenantmodels.StatusActive,
	}))

	clients := clientstore.NewInMemory()
	s.Require().NoError(clients.Create(s.ctx, &clientmodels.Client{
		ID:        s.clientID,
		TenantID:  s.tenantID,
		FirstName: "Thandi",
		LastName:  "Nkosi",
	}))

	s.ledger = ledgerstore.NewInMemory()
	commissionSvc := commissionservice.New(s.ledger, logger)
	s.policySvc = policyservice.New(policystore.NewInMemory(), clients, commissionSvc, logger)

	s.publisher = notify.NewMemoryPublisher()
	s.worker = New(
		Config{DaysAhead: 30},
		tenants, s.policySvc, commissionSvc,
		s.publisher, NewMemoryDeduper(), logger,
	)
}

func TestSchedulerSuite(t *testing.T) {
	suite.Run(t, new(SchedulerSuite))
}

// newActivePolicy creates a policy and walks it to active at inception.
func (s *SchedulerSuite) newActivePolicy(number string, expiry *time.Time) *policymodels.Policy {
	input := policyservice.CreateInput{
		ClientID:             s.clientID,
		AgentID:              s.actorID,
		PolicyNumber:         number,
		ProductCategory:      policymodels.ProductLife,
		ProductName:          "Life Cover",
		InsurerName:          "Acme Life",
		SumAssured:           50000000,
		MonthlyPremium:       100000,
		PremiumFrequency:     policymodels.FrequencyQuarterly,
		CollectionMethod:     policymodels.CollectionDebitOrder,
		InceptionDate:        date(2024, 1, 1),
		ExpiryDate:           expiry,
		InitialCommissionPct: 0.10,
		RenewalCommissionPct: 0.02,
	}
	at := requestcontext.WithTime(s.ctx, date(2024, 1, 1))
	p, err := s.policySvc.Create(at, s.tenantID, s.actorID, input)
	s.Require().NoError(err)
	for _, target := range []policymodels.Status{
		policymodels.StatusSubmitted, policymodels.StatusUnderwriting, policymodels.StatusActive,
	} {
		p, err = s.policySvc.Transition(at, s.tenantID, s.actorID, p.ID, target, "")
		s.Require().NoError(err)
	}
	return p
}

func (s *SchedulerSuite) TestBackfillsRenewalCommission() {
	p := s.newActivePolicy("POL-001", nil)

	// Two quarterly boundaries have elapsed by August.
	s.Require().NoError(s.worker.ScanOnce(s.ctx, date(2024, 8, 1)))

	entries, err := s.ledger.ListByPolicy(s.ctx, s.tenantID, p.ID)
	s.Require().NoError(err)

	var renewals []commissionmodels.Entry
	for _, e := range entries {
		if e.Type == commissionmodels.EntryRenewal {
			renewals = append(renewals, e)
		}
	}
	s.Require().Len(renewals, 2)
	s.Equal("renewal-0001", renewals[0].PeriodKey)
	s.Equal("renewal-0002", renewals[1].PeriodKey)
}

func (s *SchedulerSuite) TestRescanPostsNothingNew() {
	p := s.newActivePolicy("POL-001", nil)

	s.Require().NoError(s.worker.ScanOnce(s.ctx, date(2024, 8, 1)))
	s.Require().NoError(s.worker.ScanOnce(s.ctx, date(2024, 8, 2)))

	entries, err := s.ledger.ListByPolicy(s.ctx, s.tenantID, p.ID)
	s.Require().NoError(err)
	s.Len(entries, 3) // initial + two renewals, no duplicates
}

func (s *SchedulerSuite) TestEmitsRenewalDueNotice() {
	expiry := date(2024, 8, 15)
	p := s.newActivePolicy("POL-001", &expiry)

	s.Require().NoError(s.worker.ScanOnce(s.ctx, date(2024, 8, 1)))

	var renewalNotices []notify.Notice
	for _, n := range s.publisher.Notices() {
		if n.Kind == notify.KindRenewalDue {
			renewalNotices = append(renewalNotices, n)
		}
	}
	s.Require().Len(renewalNotices, 1)
	s.Equal(p.ID, renewalNotices[0].PolicyID)
	s.Equal(expiry, renewalNotices[0].DueOn)
}

func (s *SchedulerSuite) TestNoticeDedupeAcrossScans() {
	expiry := date(2024, 8, 15)
	s.newActivePolicy("POL-001", &expiry)

	s.Require().NoError(s.worker.ScanOnce(s.ctx, date(2024, 8, 1)))
	s.Require().NoError(s.worker.ScanOnce(s.ctx, date(2024, 8, 2)))

	var renewalNotices int
	for _, n := range s.publisher.Notices() {
		if n.Kind == notify.KindRenewalDue {
			renewalNotices++
		}
	}
	s.Equal(1, renewalNotices)
}

func (s *SchedulerSuite) TestEmitsWatchExpiryNotice() {
	p := s.newActivePolicy("POL-001", nil)

	// Watch window closes 2025-12-31; a scan inside the 30-day horizon flags it.
	s.Require().NoError(s.worker.ScanOnce(s.ctx, date(2025, 12, 15)))

	var watchNotices []notify.Notice
	for _, n := range s.publisher.Notices() {
		if n.Kind == notify.KindWatchExpiring {
			watchNotices = append(watchNotices, n)
		}
	}
	s.Require().Len(watchNotices, 1)
	s.Equal(p.ID, watchNotices[0].PolicyID)
	s.Equal(date(2025, 12, 31), watchNotices[0].DueOn)
}

func (s *SchedulerSuite) TestWatchNoticeNotEmittedFarFromExpiry() {
	s.newActivePolicy("POL-001", nil)

	s.Require().NoError(s.worker.ScanOnce(s.ctx, date(2024, 6, 1)))

	for _, n := range s.publisher.Notices() {
		s.NotEqual(notify.KindWatchExpiring, n.Kind)
	}
}
