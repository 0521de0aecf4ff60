// Package handler exposes the commission ledger read endpoint.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"assura/internal/commission/models"
	"assura/internal/transport/http/shared"
	id "assura/pkg/domain"
	dErrors "assura/pkg/domain-errors"
	"assura/pkg/money"
	"assura/pkg/requestcontext"
)

// Service is the commission read port consumed by the handler.
type Service interface {
	Ledger(ctx context.Context, tenantID id.TenantID, policyID id.PolicyID) ([]models.Entry, error)
}

// Handler handles commission endpoints.
type Handler struct {
	commissions Service
	logger      *slog.Logger
}

func New(commissions Service, logger *slog.Logger) *Handler {
	return &Handler{commissions: commissions, logger: logger}
}

// Register mounts the commission routes.
func (h *Handler) Register(r chi.Router) {
	r.Get("/policies/{policyID}/commissions", h.handleLedger)
}

// ledgerSummary is the accounting rollup rendered alongside the entries.
// Balance is VAT-exclusive; the inclusive figure is what the brokerage
// invoices the insurer.
type ledgerSummary struct {
	BalanceCents     int64  `json:"balance_cents"`
	VATCents         int64  `json:"vat_cents"`
	BalanceInclCents int64  `json:"balance_incl_vat_cents"`
	BalanceFormatted string `json:"balance_formatted"`
}

type ledgerResponse struct {
	Entries []models.Entry `json:"entries"`
	Summary ledgerSummary  `json:"summary"`
}

func (h *Handler) handleLedger(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	policyID, err := id.ParsePolicyID(chi.URLParam(r, "policyID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	entries, err := h.commissions.Ledger(ctx, requestcontext.TenantID(ctx), policyID)
	if err != nil {
		if dErrors.CodeOf(err) == dErrors.CodeInternal {
			h.logger.ErrorContext(ctx, "failed to read commission ledger",
				"error", err.Error(),
				"request_id", requestcontext.RequestID(ctx),
			)
			shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "internal error"))
			return
		}
		shared.WriteError(w, err)
		return
	}
	if entries == nil {
		entries = []models.Entry{}
	}

	balance := models.Balance(entries)
	shared.WriteJSON(w, http.StatusOK, ledgerResponse{
		Entries: entries,
		Summary: ledgerSummary{
			BalanceCents:     int64(balance),
			VATCents:         int64(money.CalculateVAT(balance)),
			BalanceInclCents: int64(money.AddVAT(balance)),
			BalanceFormatted: money.FormatZAR(balance),
		},
	})
}
