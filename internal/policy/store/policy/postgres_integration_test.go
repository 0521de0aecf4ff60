//go:build integration

package policy_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	clientmodels "assura/internal/client/models"
	clientstore "assura/internal/client/store"
	"assura/internal/policy/models"
	policystore "assura/internal/policy/store/policy"
	tenantmodels "assura/internal/tenant/models"
	tenantstore "assura/internal/tenant/store"
	id "assura/pkg/domain"
	"assura/pkg/platform/sentinel"
	"assura/pkg/platform/tx"
	"assura/pkg/testutil/containers"
)

type PostgresPolicyStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *policystore.PostgresStore
	tenantID id.TenantID
	clientID id.ClientID
}

func TestPostgresPolicyStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresPolicyStoreSuite))
}

func (s *PostgresPolicyStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = policystore.NewPostgres(s.postgres.DB)
}

func (s *PostgresPolicyStoreSuite) SetupTest() {
	ctx := context.Background()
	err := s.postgres.TruncateTables(ctx,
		"commission_entries", "policy_transitions", "policies", "clients", "tenants")
	s.Require().NoError(err)

	s.tenantID = id.TenantID(uuid.New())
	s.clientID = id.ClientID(uuid.New())
	now := time.Now().UTC()
	s.Require().NoError(tenantstore.NewPostgresStore(s.postgres.DB).Create(ctx, &tenantmodels.Tenant{
		ID: s.tenantID, Name: "Umbrella Brokers", Status: tenantmodels.StatusActive,
		CreatedAt: now, UpdatedAt: now,
	}))
	s.Require().NoError(clientstore.NewPostgresStore(s.postgres.DB).Create(ctx, &clientmodels.Client{
		ID: s.clientID, TenantID: s.tenantID, FirstName: "Thandi", LastName: "Nkosi",
		CreatedAt: now, UpdatedAt: now,
	}))
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (s *PostgresPolicyStoreSuite) newPolicy(number string) *models.Policy {
	now := date(2024, 1, 1)
	return &models.Policy{
		ID:               id.NewPolicyID(),
		TenantID:         s.tenantID,
		ClientID:         s.clientID,
		AgentID:          id.UserID(uuid.New()),
		PolicyNumber:     number,
		ProductCategory:  models.ProductLife,
		ProductName:      "Life Cover",
		InsurerName:      "Acme Life",
		SumAssured:       50000000,
		MonthlyPremium:   100000,
		PremiumFrequency: models.FrequencyMonthly,
		CollectionMethod: models.CollectionDebitOrder,
		InceptionDate:    now,
		Status:           models.StatusDraft,
		CreatedBy:        id.UserID(uuid.New()),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func (s *PostgresPolicyStoreSuite) TestCreateAndFindRoundTrip() {
	ctx := context.Background()
	p := s.newPolicy("POL-001")
	p.InitialCommissionPct = 0.10
	watch := date(2025, 12, 31)
	p.ClawbackWatchUntil = &watch

	s.Require().NoError(s.store.Create(ctx, p))

	found, err := s.store.FindByID(ctx, s.tenantID, p.ID)
	s.Require().NoError(err)
	s.Equal(p.PolicyNumber, found.PolicyNumber)
	s.Equal(p.SumAssured, found.SumAssured)
	s.Equal(0.10, found.InitialCommissionPct)
	s.Require().NotNil(found.ClawbackWatchUntil)
	s.True(found.ClawbackWatchUntil.Equal(watch))
}

func (s *PostgresPolicyStoreSuite) TestCaseInsensitiveNumberConflict() {
	ctx := context.Background()
	s.Require().NoError(s.store.Create(ctx, s.newPolicy("POL-001")))
	err := s.store.Create(ctx, s.newPolicy("pol-001"))
	s.Require().ErrorIs(err, sentinel.ErrConflict)
}

func (s *PostgresPolicyStoreSuite) TestSoftDeleteHidesRow() {
	ctx := context.Background()
	p := s.newPolicy("POL-001")
	s.Require().NoError(s.store.Create(ctx, p))
	s.Require().NoError(s.store.SoftDelete(ctx, s.tenantID, p.ID, time.Now().UTC()))

	_, err := s.store.FindByID(ctx, s.tenantID, p.ID)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	// The partial unique index frees the number for reuse.
	s.Require().NoError(s.store.Create(ctx, s.newPolicy("POL-001")))
}

func (s *PostgresPolicyStoreSuite) TestRenewalsDueWindow() {
	ctx := context.Background()
	now := date(2024, 6, 1)

	due := s.newPolicy("POL-001")
	due.Status = models.StatusActive
	expiry := date(2024, 6, 15)
	due.ExpiryDate = &expiry

	far := s.newPolicy("POL-002")
	far.Status = models.StatusActive
	farExpiry := date(2024, 9, 1)
	far.ExpiryDate = &farExpiry

	s.Require().NoError(s.store.Create(ctx, due))
	s.Require().NoError(s.store.Create(ctx, far))

	out, err := s.store.RenewalsDue(ctx, s.tenantID, now, 30)
	s.Require().NoError(err)
	s.Require().Len(out, 1)
	s.Equal(due.ID, out[0].ID)
}

func (s *PostgresPolicyStoreSuite) TestTransactionRollsBackAllWrites() {
	ctx := context.Background()
	p := s.newPolicy("POL-001")
	s.Require().NoError(s.store.Create(ctx, p))

	runner := &tx.SQLRunner{DB: s.postgres.DB}
	wantErr := sentinel.ErrInvalidState
	err := runner.RunInTx(ctx, func(txCtx context.Context) error {
		locked, err := s.store.FindByIDForUpdate(txCtx, s.tenantID, p.ID)
		if err != nil {
			return err
		}
		locked.Status = models.StatusSubmitted
		if err := s.store.Update(txCtx, locked); err != nil {
			return err
		}
		if err := s.store.AppendTransition(txCtx, models.TransitionRecord{
			PolicyID: p.ID, TenantID: s.tenantID,
			FromStatus: models.StatusDraft, ToStatus: models.StatusSubmitted,
			ActorID: id.UserID(uuid.New()), OccurredAt: time.Now().UTC(),
		}); err != nil {
			return err
		}
		return wantErr
	})
	s.Require().ErrorIs(err, wantErr)

	found, err := s.store.FindByID(ctx, s.tenantID, p.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusDraft, found.Status)

	recs, err := s.store.Transitions(ctx, s.tenantID, p.ID)
	s.Require().NoError(err)
	s.Empty(recs)
}
