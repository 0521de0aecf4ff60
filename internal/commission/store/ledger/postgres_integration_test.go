//go:build integration

package ledger_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	clientmodels "assura/internal/client/models"
	clientstore "assura/internal/client/store"
	"assura/internal/commission/models"
	"assura/internal/commission/store/ledger"
	policymodels "assura/internal/policy/models"
	policystore "assura/internal/policy/store/policy"
	tenantmodels "assura/internal/tenant/models"
	tenantstore "assura/internal/tenant/store"
	id "assura/pkg/domain"
	"assura/pkg/money"
	"assura/pkg/platform/sentinel"
	"assura/pkg/testutil/containers"
)

type PostgresLedgerSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *ledger.PostgresStore
	tenantID id.TenantID
	policyID id.PolicyID
}

func TestPostgresLedgerSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresLedgerSuite))
}

func (s *PostgresLedgerSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = ledger.NewPostgres(s.postgres.DB)
}

func (s *PostgresLedgerSuite) SetupTest() {
	ctx := context.Background()
	err := s.postgres.TruncateTables(ctx,
		"commission_entries", "policy_transitions", "policies", "clients", "tenants")
	s.Require().NoError(err)

	s.tenantID = id.TenantID(uuid.New())
	clientID := id.ClientID(uuid.New())
	s.policyID = id.NewPolicyID()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	s.Require().NoError(tenantstore.NewPostgresStore(s.postgres.DB).Create(ctx, &tenantmodels.Tenant{
		ID: s.tenantID, Name: "Umbrella Brokers", Status: tenantmodels.StatusActive,
		CreatedAt: now, UpdatedAt: now,
	}))
	s.Require().NoError(clientstore.NewPostgresStore(s.postgres.DB).Create(ctx, &clientmodels.Client{
		ID: clientID, TenantID: s.tenantID, FirstName: "Thandi", LastName: "Nkosi",
		CreatedAt: now, UpdatedAt: now,
	}))
	s.Require().NoError(policystore.NewPostgres(s.postgres.DB).Create(ctx, &policymodels.Policy{
		ID:               s.policyID,
		TenantID:         s.tenantID,
		ClientID:         clientID,
		AgentID:          id.UserID(uuid.New()),
		PolicyNumber:     "POL-001",
		ProductCategory:  policymodels.ProductLife,
		ProductName:      "Life Cover",
		InsurerName:      "Acme Life",
		SumAssured:       50000000,
		MonthlyPremium:   100000,
		PremiumFrequency: policymodels.FrequencyMonthly,
		CollectionMethod: policymodels.CollectionDebitOrder,
		InceptionDate:    now,
		Status:           policymodels.StatusDraft,
		CreatedBy:        id.UserID(uuid.New()),
		CreatedAt:        now,
		UpdatedAt:        now,
	}))
}

func (s *PostgresLedgerSuite) newEntry(t models.EntryType, periodKey string, amount money.Cents) *models.Entry {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return &models.Entry{
		ID:           id.NewEntryID(),
		TenantID:     s.tenantID,
		PolicyID:     s.policyID,
		Type:         t,
		Amount:       amount,
		PeriodKey:    periodKey,
		BasisPremium: 100000,
		BasisPct:     0.10,
		ComputedOn:   now,
		CreatedAt:    now,
	}
}

func (s *PostgresLedgerSuite) TestAppendAndListRoundTrip() {
	ctx := context.Background()
	e := s.newEntry(models.EntryInitial, models.PeriodKeyInitial, 10000)
	s.Require().NoError(s.store.Append(ctx, e))

	entries, err := s.store.ListByPolicy(ctx, s.tenantID, s.policyID)
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal(models.EntryInitial, entries[0].Type)
	s.Equal(money.Cents(10000), entries[0].Amount)
	s.Equal(money.Cents(100000), entries[0].BasisPremium)
	s.Equal(0.10, entries[0].BasisPct)
}

func (s *PostgresLedgerSuite) TestDuplicatePeriodRejected() {
	ctx := context.Background()
	s.Require().NoError(s.store.Append(ctx, s.newEntry(models.EntryInitial, models.PeriodKeyInitial, 10000)))

	err := s.store.Append(ctx, s.newEntry(models.EntryInitial, models.PeriodKeyInitial, 10000))
	s.Require().ErrorIs(err, sentinel.ErrAlreadyUsed)
}

func (s *PostgresLedgerSuite) TestConcurrentAppendSingleWinner() {
	ctx := context.Background()
	const workers = 8

	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = s.store.Append(ctx, s.newEntry(models.EntryClawback, models.PeriodKeyClawback, -10000))
		}()
	}
	wg.Wait()

	var won int
	for _, err := range errs {
		if err == nil {
			won++
			continue
		}
		s.Require().ErrorIs(err, sentinel.ErrAlreadyUsed)
	}
	s.Equal(1, won)

	entries, err := s.store.ListByPolicy(ctx, s.tenantID, s.policyID)
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal(money.Cents(-10000), models.Balance(entries))
}
