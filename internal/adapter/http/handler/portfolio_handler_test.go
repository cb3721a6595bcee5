package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/iho/gofolio/internal/adapter/http/dto"
	"github.com/iho/gofolio/internal/domain"
	"github.com/iho/gofolio/internal/usecase"
)

type portfolioServiceStub struct {
	buyFn      func(ctx context.Context, input usecase.BuyInput) (*usecase.Receipt, error)
	sellFn     func(ctx context.Context, input usecase.SellInput) (*usecase.Receipt, error)
	dividendFn func(ctx context.Context, input usecase.DividendInput) (*usecase.Receipt, error)
	cashFn     func(op string, input usecase.CashInput) (*usecase.Receipt, error)
	exchangeFn func(ctx context.Context, input usecase.ExchangeInput) (*usecase.Receipt, error)
	watchFn    func(ctx context.Context, input usecase.WatchInput) (*usecase.Receipt, error)
	unwatchFn  func(ctx context.Context, owner, symbol string) (*usecase.Receipt, error)
	ledgerFn   func(ctx context.Context, owner string) (*domain.Ledger, error)
}

func (s *portfolioServiceStub) Buy(ctx context.Context, input usecase.BuyInput) (*usecase.Receipt, error) {
	return s.buyFn(ctx, input)
}

func (s *portfolioServiceStub) Sell(ctx context.Context, input usecase.SellInput) (*usecase.Receipt, error) {
	return s.sellFn(ctx, input)
}

func (s *portfolioServiceStub) RecordDividend(ctx context.Context, input usecase.DividendInput) (*usecase.Receipt, error) {
	return s.dividendFn(ctx, input)
}

func (s *portfolioServiceStub) Deposit(_ context.Context, input usecase.CashInput) (*usecase.Receipt, error) {
	return s.cashFn(usecase.OpDeposit, input)
}

func (s *portfolioServiceStub) Withdraw(_ context.Context, input usecase.CashInput) (*usecase.Receipt, error) {
	return s.cashFn(usecase.OpWithdraw, input)
}

func (s *portfolioServiceStub) Transfer(_ context.Context, input usecase.CashInput) (*usecase.Receipt, error) {
	return s.cashFn(usecase.OpTransfer, input)
}

func (s *portfolioServiceStub) ExchangeCurrency(ctx context.Context, input usecase.ExchangeInput) (*usecase.Receipt, error) {
	return s.exchangeFn(ctx, input)
}

func (s *portfolioServiceStub) Watch(ctx context.Context, input usecase.WatchInput) (*usecase.Receipt, error) {
	return s.watchFn(ctx, input)
}

func (s *portfolioServiceStub) Unwatch(ctx context.Context, owner, symbol string) (*usecase.Receipt, error) {
	return s.unwatchFn(ctx, owner, symbol)
}

func (s *portfolioServiceStub) Ledger(ctx context.Context, owner string) (*domain.Ledger, error) {
	return s.ledgerFn(ctx, owner)
}

// withURLParams attaches chi route parameters to req.
func withURLParams(req *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func ownerRequest(method, target, body, owner string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	return withURLParams(req, map[string]string{"owner": owner})
}

func TestPortfolioHandler_Buy_Success(t *testing.T) {
	var captured usecase.BuyInput
	h := NewPortfolioHandler(&portfolioServiceStub{
		buyFn: func(ctx context.Context, input usecase.BuyInput) (*usecase.Receipt, error) {
			captured = input
			return &usecase.Receipt{
				Operation: usecase.OpBuy,
				Owner:     input.Owner,
				Message:   "Bought 10 ACME",
				Lot:       &domain.Lot{ID: "l1", Symbol: "ACME", Quantity: input.Quantity, Price: input.Price, Currency: "USD"},
			}, nil
		},
	})

	rec := httptest.NewRecorder()
	h.Buy(rec, ownerRequest(http.MethodPost, "/buy", `{"symbol":"acme","quantity":"10","price":"100"}`, "alice"))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if captured.Owner != "alice" || captured.Symbol != "acme" || !captured.Quantity.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("unexpected input: %+v", captured)
	}

	var resp dto.ReceiptResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Operation != "buy" || resp.Lot == nil || resp.Lot.ID != "l1" {
		t.Fatalf("unexpected receipt: %+v", resp)
	}
}

func TestPortfolioHandler_Buy_InvalidBody(t *testing.T) {
	h := NewPortfolioHandler(&portfolioServiceStub{})

	rec := httptest.NewRecorder()
	h.Buy(rec, ownerRequest(http.MethodPost, "/buy", "{not-json", "alice"))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestPortfolioHandler_MissingOwner(t *testing.T) {
	h := NewPortfolioHandler(&portfolioServiceStub{})

	rec := httptest.NewRecorder()
	h.Ledger(rec, httptest.NewRequest(http.MethodGet, "/ledger", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestPortfolioHandler_Sell_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"insufficient shares", &domain.InsufficientSharesError{Symbol: "ACME", Requested: decimal.NewFromInt(5), Held: decimal.NewFromInt(1)}, http.StatusConflict},
		{"invalid price", domain.ErrInvalidPrice, http.StatusBadRequest},
		{"storage", fmt.Errorf("save: %w", domain.ErrStorageWriteFailed), http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewPortfolioHandler(&portfolioServiceStub{
				sellFn: func(ctx context.Context, input usecase.SellInput) (*usecase.Receipt, error) {
					return nil, tt.err
				},
			})

			rec := httptest.NewRecorder()
			h.Sell(rec, ownerRequest(http.MethodPost, "/sell", `{"symbol":"ACME","quantity":"5","price":"10"}`, "alice"))

			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rec.Code)
			}
			var resp dto.ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to decode body: %v", err)
			}
			if resp.Message != tt.err.Error() {
				t.Fatalf("expected message %q, got %q", tt.err.Error(), resp.Message)
			}
		})
	}
}

func TestPortfolioHandler_CashOperations(t *testing.T) {
	tests := []struct {
		name   string
		call   func(h *PortfolioHandler) http.HandlerFunc
		wantOp string
	}{
		{"deposit", func(h *PortfolioHandler) http.HandlerFunc { return h.Deposit }, usecase.OpDeposit},
		{"withdraw", func(h *PortfolioHandler) http.HandlerFunc { return h.Withdraw }, usecase.OpWithdraw},
		{"transfer", func(h *PortfolioHandler) http.HandlerFunc { return h.Transfer }, usecase.OpTransfer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotOp string
			var captured usecase.CashInput
			h := NewPortfolioHandler(&portfolioServiceStub{
				cashFn: func(op string, input usecase.CashInput) (*usecase.Receipt, error) {
					gotOp = op
					captured = input
					return &usecase.Receipt{Operation: op, Owner: input.Owner, Message: "ok"}, nil
				},
			})

			rec := httptest.NewRecorder()
			tt.call(h)(rec, ownerRequest(http.MethodPost, "/"+tt.name, `{"amount":"250","currency":"USD"}`, "bob"))

			if rec.Code != http.StatusCreated {
				t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
			}
			if gotOp != tt.wantOp || captured.Owner != "bob" || !captured.Amount.Equal(decimal.NewFromInt(250)) {
				t.Fatalf("unexpected call %s %+v", gotOp, captured)
			}
		})
	}
}

func TestPortfolioHandler_Exchange(t *testing.T) {
	var captured usecase.ExchangeInput
	h := NewPortfolioHandler(&portfolioServiceStub{
		exchangeFn: func(ctx context.Context, input usecase.ExchangeInput) (*usecase.Receipt, error) {
			captured = input
			if input.From == input.To {
				return nil, domain.ErrSameCurrency
			}
			return &usecase.Receipt{Operation: usecase.OpExchange, Owner: input.Owner}, nil
		},
	})

	rec := httptest.NewRecorder()
	h.Exchange(rec, ownerRequest(http.MethodPost, "/exchange", `{"amount":"100","from":"USD","to":"MXN"}`, "alice"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if captured.From != "USD" || captured.To != "MXN" {
		t.Fatalf("unexpected input: %+v", captured)
	}

	rec = httptest.NewRecorder()
	h.Exchange(rec, ownerRequest(http.MethodPost, "/exchange", `{"amount":"100","from":"USD","to":"USD"}`, "alice"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestPortfolioHandler_LedgerAndWatchlist(t *testing.T) {
	ledger := &domain.Ledger{
		Owner: "alice",
		Cash:  []domain.CashRecord{{ID: "c1", Amount: decimal.NewFromInt(100), Currency: "USD", Type: domain.CashDeposit}},
		Watchlist: []domain.WatchlistEntry{
			{Owner: "alice", Symbol: "MSFT", BuyTarget: decimal.NewFromInt(300), CreatedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		},
	}
	h := NewPortfolioHandler(&portfolioServiceStub{
		ledgerFn: func(ctx context.Context, owner string) (*domain.Ledger, error) {
			if owner != "alice" {
				return nil, domain.ErrInvalidOwner
			}
			return ledger, nil
		},
	})

	rec := httptest.NewRecorder()
	h.Ledger(rec, ownerRequest(http.MethodGet, "/ledger", "", "alice"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var ledgerResp dto.LedgerResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &ledgerResp); err != nil {
		t.Fatalf("failed to decode ledger: %v", err)
	}
	if !ledgerResp.Balances["USD"].Equal(decimal.NewFromInt(100)) {
		t.Fatalf("unexpected balances: %v", ledgerResp.Balances)
	}

	rec = httptest.NewRecorder()
	h.Watchlist(rec, ownerRequest(http.MethodGet, "/watchlist", "", "alice"))
	var entries []dto.WatchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("failed to decode watchlist: %v", err)
	}
	if len(entries) != 1 || entries[0].Symbol != "MSFT" {
		t.Fatalf("unexpected watchlist: %+v", entries)
	}

	rec = httptest.NewRecorder()
	h.Ledger(rec, ownerRequest(http.MethodGet, "/ledger", "", "bad owner"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid owner, got %d", rec.Code)
	}
}

func TestPortfolioHandler_WatchAndUnwatch(t *testing.T) {
	var unwatched string
	h := NewPortfolioHandler(&portfolioServiceStub{
		watchFn: func(ctx context.Context, input usecase.WatchInput) (*usecase.Receipt, error) {
			entry := domain.WatchlistEntry{Owner: input.Owner, Symbol: "MSFT", BuyTarget: input.BuyTarget, SellTarget: input.SellTarget}
			return &usecase.Receipt{Operation: usecase.OpWatch, Owner: input.Owner, Watch: &entry}, nil
		},
		unwatchFn: func(ctx context.Context, owner, symbol string) (*usecase.Receipt, error) {
			unwatched = symbol
			if symbol == "NFLX" {
				return nil, domain.ErrWatchNotFound
			}
			return &usecase.Receipt{Operation: usecase.OpUnwatch, Owner: owner}, nil
		},
	})

	rec := httptest.NewRecorder()
	h.Watch(rec, ownerRequest(http.MethodPut, "/watchlist", `{"symbol":"msft","buy_target":"300"}`, "alice"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp dto.ReceiptResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode receipt: %v", err)
	}
	if resp.Watch == nil || !resp.Watch.BuyTarget.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("unexpected receipt: %+v", resp)
	}

	req := withURLParams(httptest.NewRequest(http.MethodDelete, "/watchlist/MSFT", nil), map[string]string{"owner": "alice", "symbol": "MSFT"})
	rec = httptest.NewRecorder()
	h.Unwatch(rec, req)
	if rec.Code != http.StatusOK || unwatched != "MSFT" {
		t.Fatalf("expected 200 for MSFT, got %d (%s)", rec.Code, unwatched)
	}

	req = withURLParams(httptest.NewRequest(http.MethodDelete, "/watchlist/NFLX", nil), map[string]string{"owner": "alice", "symbol": "NFLX"})
	rec = httptest.NewRecorder()
	h.Unwatch(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
