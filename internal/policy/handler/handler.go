// Package handler is the HTTP surface of the policy module. It decodes
// requests, delegates to the service and renders the JSON envelopes; no
// business rules live here.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"assura/internal/policy/models"
	"assura/internal/policy/service"
	"assura/internal/transport/http/shared"
	id "assura/pkg/domain"
	dErrors "assura/pkg/domain-errors"
	"assura/pkg/money"
	"assura/pkg/requestcontext"
)

// Service is the policy operations port consumed by the handler.
type Service interface {
	Create(ctx context.Context, tenantID id.TenantID, actorID id.UserID, input service.CreateInput) (*models.Policy, error)
	Get(ctx context.Context, tenantID id.TenantID, policyID id.PolicyID) (*models.Policy, error)
	List(ctx context.Context, tenantID id.TenantID, filter models.ListFilter) ([]*models.Policy, error)
	Update(ctx context.Context, tenantID id.TenantID, policyID id.PolicyID, input service.UpdateInput) (*models.Policy, error)
	SoftDelete(ctx context.Context, tenantID id.TenantID, policyID id.PolicyID) error
	Transition(ctx context.Context, tenantID id.TenantID, actorID id.UserID, policyID id.PolicyID, target models.Status, reason string) (*models.Policy, error)
	Transitions(ctx context.Context, tenantID id.TenantID, policyID id.PolicyID) ([]models.TransitionRecord, error)
	RenewalsDue(ctx context.Context, tenantID id.TenantID, daysAhead int) ([]*models.Policy, error)
	ClawbackWatchActive(ctx context.Context, tenantID id.TenantID) ([]*models.Policy, error)
}

// Handler handles policy endpoints.
type Handler struct {
	policies Service
	logger   *slog.Logger
}

func New(policies Service, logger *slog.Logger) *Handler {
	return &Handler{policies: policies, logger: logger}
}

// Register mounts the policy routes. The router is expected to carry the
// platform middleware chain including RequireAuth.
func (h *Handler) Register(r chi.Router) {
	r.Post("/policies", h.handleCreate)
	r.Get("/policies", h.handleList)
	r.Get("/policies/{policyID}", h.handleGet)
	r.Patch("/policies/{policyID}", h.handleUpdate)
	r.Delete("/policies/{policyID}", h.handleDelete)
	r.Post("/policies/{policyID}/transition", h.handleTransition)
	r.Get("/policies/{policyID}/transitions", h.handleTransitions)
	r.Get("/renewals/due", h.handleRenewalsDue)
	r.Get("/clawback/watch", h.handleClawbackWatch)
}

const dateLayout = "2006-01-02"

type createRequest struct {
	ClientID             string   `json:"client_id"`
	AgentID              string   `json:"agent_id"`
	PolicyNumber         string   `json:"policy_number"`
	ProductCategory      string   `json:"product_category"`
	ProductName          string   `json:"product_name"`
	InsurerName          string   `json:"insurer_name"`
	InsurerPolicyRef     string   `json:"insurer_policy_ref"`
	SumAssured           int64    `json:"sum_assured_cents"`
	MonthlyPremium       int64    `json:"monthly_premium_cents"`
	PremiumFrequency     string   `json:"premium_frequency"`
	CollectionMethod     string   `json:"collection_method"`
	EscalationRate       *float64 `json:"escalation_rate"`
	InceptionDate        string   `json:"inception_date"`
	ExpiryDate           string   `json:"expiry_date"`
	InitialCommissionPct float64  `json:"initial_commission_pct"`
	RenewalCommissionPct float64  `json:"renewal_commission_pct"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	clientID, err := id.ParseClientID(req.ClientID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	agentID, err := id.ParseUserID(req.AgentID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	inception, err := time.Parse(dateLayout, req.InceptionDate)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "inception_date must be YYYY-MM-DD"))
		return
	}
	var expiry *time.Time
	if req.ExpiryDate != "" {
		t, err := time.Parse(dateLayout, req.ExpiryDate)
		if err != nil {
			shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "expiry_date must be YYYY-MM-DD"))
			return
		}
		expiry = &t
	}

	input := service.CreateInput{
		ClientID:             clientID,
		AgentID:              agentID,
		PolicyNumber:         req.PolicyNumber,
		ProductCategory:      models.ProductCategory(req.ProductCategory),
		ProductName:          req.ProductName,
		InsurerName:          req.InsurerName,
		InsurerPolicyRef:     req.InsurerPolicyRef,
		SumAssured:           money.Cents(req.SumAssured),
		MonthlyPremium:       money.Cents(req.MonthlyPremium),
		PremiumFrequency:     models.PremiumFrequency(req.PremiumFrequency),
		CollectionMethod:     models.CollectionMethod(req.CollectionMethod),
		EscalationRate:       req.EscalationRate,
		InceptionDate:        inception,
		ExpiryDate:           expiry,
		InitialCommissionPct: req.InitialCommissionPct,
		RenewalCommissionPct: req.RenewalCommissionPct,
	}
	p, err := h.policies.Create(ctx, requestcontext.TenantID(ctx), requestcontext.ActorID(ctx), input)
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to create policy")
		return
	}
	shared.WriteJSON(w, http.StatusCreated, p)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var filter models.ListFilter

	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := models.ParseStatus(raw)
		if err != nil {
			shared.WriteError(w, err)
			return
		}
		filter.Status = status
	}
	if raw := r.URL.Query().Get("client_id"); raw != "" {
		clientID, err := id.ParseClientID(raw)
		if err != nil {
			shared.WriteError(w, err)
			return
		}
		filter.ClientID = clientID
	}
	if raw := r.URL.Query().Get("product_category"); raw != "" {
		filter.ProductCategory = models.ProductCategory(raw)
	}

	policies, err := h.policies.List(ctx, requestcontext.TenantID(ctx), filter)
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to list policies")
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"policies": policies})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	policyID, err := id.ParsePolicyID(chi.URLParam(r, "policyID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	p, err := h.policies.Get(ctx, requestcontext.TenantID(ctx), policyID)
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to get policy")
		return
	}
	shared.WriteJSON(w, http.StatusOK, p)
}

type updateRequest struct {
	ProductName          *string  `json:"product_name"`
	InsurerName          *string  `json:"insurer_name"`
	InsurerPolicyRef     *string  `json:"insurer_policy_ref"`
	SumAssured           *int64   `json:"sum_assured_cents"`
	MonthlyPremium       *int64   `json:"monthly_premium_cents"`
	PremiumFrequency     *string  `json:"premium_frequency"`
	CollectionMethod     *string  `json:"collection_method"`
	EscalationRate       *float64 `json:"escalation_rate"`
	ExpiryDate           *string  `json:"expiry_date"`
	InitialCommissionPct *float64 `json:"initial_commission_pct"`
	RenewalCommissionPct *float64 `json:"renewal_commission_pct"`
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	policyID, err := id.ParsePolicyID(chi.URLParam(r, "policyID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	input := service.UpdateInput{
		ProductName:          req.ProductName,
		InsurerName:          req.InsurerName,
		InsurerPolicyRef:     req.InsurerPolicyRef,
		EscalationRate:       req.EscalationRate,
		InitialCommissionPct: req.InitialCommissionPct,
		RenewalCommissionPct: req.RenewalCommissionPct,
	}
	if req.SumAssured != nil {
		v := money.Cents(*req.SumAssured)
		input.SumAssured = &v
	}
	if req.MonthlyPremium != nil {
		v := money.Cents(*req.MonthlyPremium)
		input.MonthlyPremium = &v
	}
	if req.PremiumFrequency != nil {
		v := models.PremiumFrequency(*req.PremiumFrequency)
		input.PremiumFrequency = &v
	}
	if req.CollectionMethod != nil {
		v := models.CollectionMethod(*req.CollectionMethod)
		input.CollectionMethod = &v
	}
	if req.ExpiryDate != nil {
		t, err := time.Parse(dateLayout, *req.ExpiryDate)
		if err != nil {
			shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "expiry_date must be YYYY-MM-DD"))
			return
		}
		input.ExpiryDate = &t
	}

	p, err := h.policies.Update(ctx, requestcontext.TenantID(ctx), policyID, input)
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to update policy")
		return
	}
	shared.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	policyID, err := id.ParsePolicyID(chi.URLParam(r, "policyID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if err := h.policies.SoftDelete(ctx, requestcontext.TenantID(ctx), policyID); err != nil {
		h.writeServiceError(ctx, w, err, "failed to delete policy")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type transitionRequest struct {
	Target string `json:"target"`
	Reason string `json:"reason"`
}

// transitionErrorResponse extends the error envelope with the statuses the
// actor needs to correct an illegal transition.
type transitionErrorResponse struct {
	Error           string   `json:"error"`
	Message         string   `json:"message"`
	CurrentStatus   string   `json:"current_status"`
	RequestedStatus string   `json:"requested_status"`
	AllowedTargets  []string `json:"allowed_targets"`
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	policyID, err := id.ParsePolicyID(chi.URLParam(r, "policyID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	target, err := models.ParseStatus(req.Target)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	p, err := h.policies.Transition(ctx, requestcontext.TenantID(ctx), requestcontext.ActorID(ctx), policyID, target, req.Reason)
	if err != nil {
		var invalid *models.InvalidTransitionError
		if errors.As(err, &invalid) {
			targets := invalid.Current.AllowedTargets()
			allowed := make([]string, len(targets))
			for i, t := range targets {
				allowed[i] = string(t)
			}
			shared.WriteJSON(w, http.StatusUnprocessableEntity, transitionErrorResponse{
				Error:           string(dErrors.CodeInvalidTransition),
				Message:         dErrors.MessageOf(err),
				CurrentStatus:   string(invalid.Current),
				RequestedStatus: string(invalid.Requested),
				AllowedTargets:  allowed,
			})
			return
		}
		h.writeServiceError(ctx, w, err, "failed to transition policy")
		return
	}
	shared.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) handleTransitions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	policyID, err := id.ParsePolicyID(chi.URLParam(r, "policyID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	recs, err := h.policies.Transitions(ctx, requestcontext.TenantID(ctx), policyID)
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to list transitions")
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"transitions": recs})
}

func (h *Handler) handleRenewalsDue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	days := 30
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "days must be an integer"))
			return
		}
		days = n
	}
	policies, err := h.policies.RenewalsDue(ctx, requestcontext.TenantID(ctx), days)
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to query renewals")
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"policies": policies})
}

func (h *Handler) handleClawbackWatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	policies, err := h.policies.ClawbackWatchActive(ctx, requestcontext.TenantID(ctx))
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to query clawback watch")
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"policies": policies})
}

// writeServiceError logs unexpected failures and renders the envelope. Coded
// outcomes pass through untouched so clients see the service's message.
func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, err error, logMsg string) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, logMsg,
			"error", err.Error(),
			"request_id", requestcontext.RequestID(ctx),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "internal error"))
		return
	}
	shared.WriteError(w, err)
}
