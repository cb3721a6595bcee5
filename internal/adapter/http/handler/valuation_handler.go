package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/iho/gofolio/internal/adapter/http/dto"
	"github.com/iho/gofolio/internal/domain"
	"github.com/iho/gofolio/internal/usecase"
)

// ValuationService computes valuation snapshots.
type ValuationService interface {
	ComputeValuation(ctx context.Context, owner string) (*domain.Valuation, error)
}

// ReconciliationService verifies ledger consistency.
type ReconciliationService interface {
	Reconcile(ctx context.Context, owner string) (*usecase.ReconciliationReport, error)
}

// ValuationHandler serves valuation and reconciliation reads.
type ValuationHandler struct {
	valuationUC      ValuationService
	reconciliationUC ReconciliationService
}

// NewValuationHandler creates a new ValuationHandler.
func NewValuationHandler(valuationUC ValuationService, reconciliationUC ReconciliationService) *ValuationHandler {
	return &ValuationHandler{valuationUC: valuationUC, reconciliationUC: reconciliationUC}
}

// Valuation returns the owner's valuation snapshot. The movers query
// parameter bounds the gainers and losers lists.
func (h *ValuationHandler) Valuation(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerParam(w, r)
	if !ok {
		return
	}
	movers := parseIntQuery(r, "movers", usecase.ReportMovers)

	v, err := h.valuationUC.ComputeValuation(r.Context(), owner)
	if err != nil {
		writeDomainError(w, "failed to compute valuation", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ValuationFromDomain(v, movers))
}

// Reconcile returns the owner's consistency report.
func (h *ValuationHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerParam(w, r)
	if !ok {
		return
	}
	report, err := h.reconciliationUC.Reconcile(r.Context(), owner)
	if err != nil {
		writeDomainError(w, "failed to reconcile ledger", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ReconciliationFromUseCase(report))
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultValue int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}
	return i
}
