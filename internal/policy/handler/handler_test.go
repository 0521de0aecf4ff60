package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	clientmodels "assura/internal/client/models"
	clientstore "assura/internal/client/store"
	commissionservice "assura/internal/commission/service"
	ledgerstore "assura/internal/commission/store/ledger"
	"assura/internal/policy/models"
	"assura/internal/policy/service"
	policystore "assura/internal/policy/store/policy"
	id "assura/pkg/domain"
	"assura/pkg/requestcontext"
)

type PolicyHandlerSuite struct {
	suite.Suite
	tenantID id.TenantID
	actorID  id.UserID
	clientID id.ClientID
	router   chi.Router
}

func (s *PolicyHandlerSuite) SetupTest() {
	s.tenantID = id.TenantID(uuid.New())
	s.actorID = id.UserID(uuid.New())
	s.clientID = id.ClientID(uuid.New())

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clients := clientstore.NewInMemory()
	s.Require().NoError(clients.Create(context.Background(), &clientmodels.Client{
		ID:        s.clientID,
		TenantID:  s.tenantID,
		FirstName: "Thandi",
		LastName:  "Nkosi",
	}))
	commission := commissionservice.New(ledgerstore.NewInMemory(), logger)
	svc := service.New(policystore.NewInMemory(), clients, commission, logger)

	s.router = chi.NewRouter()
	New(svc, logger).Register(s.router)
}

func TestPolicyHandlerSuite(t *testing.T) {
	suite.Run(t, new(PolicyHandlerSuite))
}

// do issues a request with the identity context the auth middleware would set.
func (s *PolicyHandlerSuite) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	ctx := requestcontext.WithTenantID(req.Context(), s.tenantID)
	ctx = requestcontext.WithActorID(ctx, s.actorID)
	ctx = requestcontext.WithTime(ctx, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))
	req = req.WithContext(ctx)

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *PolicyHandlerSuite) createBody() map[string]any {
	return map[string]any{
		"client_id":              s.clientID.String(),
		"agent_id":               s.actorID.String(),
		"policy_number":          "POL-001",
		"product_category":       "life",
		"product_name":           "Life Cover Plus",
		"insurer_name":           "Acme Life",
		"sum_assured_cents":      50000000,
		"monthly_premium_cents":  100000,
		"premium_frequency":      "monthly",
		"collection_method":      "debit_order",
		"inception_date":         "2024-01-01",
		"initial_commission_pct": 0.10,
		"renewal_commission_pct": 0.02,
	}
}

func (s *PolicyHandlerSuite) createPolicy() models.Policy {
	rec := s.do(http.MethodPost, "/policies", s.createBody())
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	var p models.Policy
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &p))
	return p
}

func (s *PolicyHandlerSuite) TestCreate() {
	p := s.createPolicy()
	s.Equal(models.StatusDraft, p.Status)
	s.Equal("POL-001", p.PolicyNumber)
}

func (s *PolicyHandlerSuite) TestCreateValidation() {
	body := s.createBody()
	body["monthly_premium_cents"] = 0
	rec := s.do(http.MethodPost, "/policies", body)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *PolicyHandlerSuite) TestCreateDuplicateNumber() {
	s.createPolicy()
	rec := s.do(http.MethodPost, "/policies", s.createBody())
	s.Equal(http.StatusConflict, rec.Code)
}

func (s *PolicyHandlerSuite) TestGetUnknownPolicy() {
	rec := s.do(http.MethodGet, "/policies/"+uuid.NewString(), nil)
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *PolicyHandlerSuite) TestGetMalformedID() {
	rec := s.do(http.MethodGet, "/policies/not-a-uuid", nil)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *PolicyHandlerSuite) TestTransitionFlow() {
	p := s.createPolicy()

	for _, target := range []string{"submitted", "underwriting", "active"} {
		rec := s.do(http.MethodPost, "/policies/"+p.ID.String()+"/transition",
			map[string]string{"target": target})
		s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	}

	rec := s.do(http.MethodGet, "/policies/"+p.ID.String(), nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	var got models.Policy
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &got))
	s.Equal(models.StatusActive, got.Status)
	s.NotNil(got.ActivatedAt)
}

func (s *PolicyHandlerSuite) TestInvalidTransitionEnvelope() {
	p := s.createPolicy()

	rec := s.do(http.MethodPost, "/policies/"+p.ID.String()+"/transition",
		map[string]string{"target": "active"})
	s.Require().Equal(http.StatusUnprocessableEntity, rec.Code)

	var resp transitionErrorResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Equal("invalid_transition", resp.Error)
	s.Equal("draft", resp.CurrentStatus)
	s.Equal("active", resp.RequestedStatus)
	s.ElementsMatch([]string{"submitted", "cancelled"}, resp.AllowedTargets)
}

func (s *PolicyHandlerSuite) TestUnknownTargetStatus() {
	p := s.createPolicy()
	rec := s.do(http.MethodPost, "/policies/"+p.ID.String()+"/transition",
		map[string]string{"target": "launched"})
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *PolicyHandlerSuite) TestDelete() {
	p := s.createPolicy()
	rec := s.do(http.MethodDelete, "/policies/"+p.ID.String(), nil)
	s.Require().Equal(http.StatusNoContent, rec.Code)

	rec = s.do(http.MethodGet, "/policies/"+p.ID.String(), nil)
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *PolicyHandlerSuite) TestListWithStatusFilter() {
	s.createPolicy()
	rec := s.do(http.MethodGet, "/policies?status=draft", nil)
	s.Require().Equal(http.StatusOK, rec.Code)

	var resp struct {
		Policies []models.Policy `json:"policies"`
	}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Len(resp.Policies, 1)

	rec = s.do(http.MethodGet, "/policies?status=active", nil)
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Empty(resp.Policies)
}

func (s *PolicyHandlerSuite) TestListRejectsUnknownStatus() {
	rec := s.do(http.MethodGet, "/policies?status=launched", nil)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *PolicyHandlerSuite) TestRenewalsDueRejectsBadDays() {
	rec := s.do(http.MethodGet, "/renewals/due?days=soon", nil)
	s.Equal(http.StatusBadRequest, rec.Code)
}
