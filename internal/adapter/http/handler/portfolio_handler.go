package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/gofolio/internal/adapter/http/dto"
	"github.com/iho/gofolio/internal/domain"
	"github.com/iho/gofolio/internal/usecase"
)

// PortfolioService defines the behavior needed by PortfolioHandler.
type PortfolioService interface {
	Buy(ctx context.Context, input usecase.BuyInput) (*usecase.Receipt, error)
	Sell(ctx context.Context, input usecase.SellInput) (*usecase.Receipt, error)
	RecordDividend(ctx context.Context, input usecase.DividendInput) (*usecase.Receipt, error)
	Deposit(ctx context.Context, input usecase.CashInput) (*usecase.Receipt, error)
	Withdraw(ctx context.Context, input usecase.CashInput) (*usecase.Receipt, error)
	Transfer(ctx context.Context, input usecase.CashInput) (*usecase.Receipt, error)
	ExchangeCurrency(ctx context.Context, input usecase.ExchangeInput) (*usecase.Receipt, error)
	Watch(ctx context.Context, input usecase.WatchInput) (*usecase.Receipt, error)
	Unwatch(ctx context.Context, owner, symbol string) (*usecase.Receipt, error)
	Ledger(ctx context.Context, owner string) (*domain.Ledger, error)
}

// PortfolioHandler handles ledger mutations and reads.
type PortfolioHandler struct {
	portfolioUC PortfolioService
}

// NewPortfolioHandler creates a new PortfolioHandler.
func NewPortfolioHandler(portfolioUC PortfolioService) *PortfolioHandler {
	return &PortfolioHandler{portfolioUC: portfolioUC}
}

// Buy records a purchase.
func (h *PortfolioHandler) Buy(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerParam(w, r)
	if !ok {
		return
	}
	var req dto.BuyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	receipt, err := h.portfolioUC.Buy(r.Context(), req.ToUseCaseInput(owner))
	h.respond(w, http.StatusCreated, "failed to record buy", receipt, err)
}

// Sell records a sale.
func (h *PortfolioHandler) Sell(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerParam(w, r)
	if !ok {
		return
	}
	var req dto.SellRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	receipt, err := h.portfolioUC.Sell(r.Context(), req.ToUseCaseInput(owner))
	h.respond(w, http.StatusCreated, "failed to record sale", receipt, err)
}

// Dividend records a dividend payment.
func (h *PortfolioHandler) Dividend(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerParam(w, r)
	if !ok {
		return
	}
	var req dto.DividendRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	receipt, err := h.portfolioUC.RecordDividend(r.Context(), req.ToUseCaseInput(owner))
	h.respond(w, http.StatusCreated, "failed to record dividend", receipt, err)
}

// Deposit records a cash deposit.
func (h *PortfolioHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	h.cash(w, r, "failed to record deposit", h.portfolioUC.Deposit)
}

// Withdraw records a cash withdrawal.
func (h *PortfolioHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.cash(w, r, "failed to record withdrawal", h.portfolioUC.Withdraw)
}

// Transfer records a signed cash transfer.
func (h *PortfolioHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	h.cash(w, r, "failed to record transfer", h.portfolioUC.Transfer)
}

func (h *PortfolioHandler) cash(w http.ResponseWriter, r *http.Request, message string,
	op func(context.Context, usecase.CashInput) (*usecase.Receipt, error),
) {
	owner, ok := ownerParam(w, r)
	if !ok {
		return
	}
	var req dto.CashRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	receipt, err := op(r.Context(), req.ToUseCaseInput(owner))
	h.respond(w, http.StatusCreated, message, receipt, err)
}

// Exchange converts cash between currencies.
func (h *PortfolioHandler) Exchange(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerParam(w, r)
	if !ok {
		return
	}
	var req dto.ExchangeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	receipt, err := h.portfolioUC.ExchangeCurrency(r.Context(), req.ToUseCaseInput(owner))
	h.respond(w, http.StatusCreated, "failed to exchange currency", receipt, err)
}

// Ledger returns every record of the owner.
func (h *PortfolioHandler) Ledger(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerParam(w, r)
	if !ok {
		return
	}
	ledger, err := h.portfolioUC.Ledger(r.Context(), owner)
	if err != nil {
		writeDomainError(w, "failed to load ledger", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.LedgerFromDomain(ledger))
}

// Watchlist returns the owner's watchlist entries.
func (h *PortfolioHandler) Watchlist(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerParam(w, r)
	if !ok {
		return
	}
	ledger, err := h.portfolioUC.Ledger(r.Context(), owner)
	if err != nil {
		writeDomainError(w, "failed to load watchlist", err)
		return
	}
	entries := make([]dto.WatchResponse, 0, len(ledger.Watchlist))
	for _, e := range ledger.Watchlist {
		entries = append(entries, dto.WatchFromDomain(e))
	}
	writeJSON(w, http.StatusOK, entries)
}

// Watch adds or updates a watchlist entry.
func (h *PortfolioHandler) Watch(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerParam(w, r)
	if !ok {
		return
	}
	var req dto.WatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	receipt, err := h.portfolioUC.Watch(r.Context(), req.ToUseCaseInput(owner))
	h.respond(w, http.StatusOK, "failed to update watchlist", receipt, err)
}

// Unwatch removes a watchlist entry.
func (h *PortfolioHandler) Unwatch(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerParam(w, r)
	if !ok {
		return
	}
	symbol := chi.URLParam(r, "symbol")
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "missing symbol", "")
		return
	}
	receipt, err := h.portfolioUC.Unwatch(r.Context(), owner, symbol)
	h.respond(w, http.StatusOK, "failed to update watchlist", receipt, err)
}

func (h *PortfolioHandler) respond(w http.ResponseWriter, status int, message string, receipt *usecase.Receipt, err error) {
	if err != nil {
		writeDomainError(w, message, err)
		return
	}
	writeJSON(w, status, dto.ReceiptFromUseCase(receipt))
}
