package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/gofolio/internal/domain"
	"github.com/iho/gofolio/internal/usecase"
)

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// LotResponse represents an open lot.
type LotResponse struct {
	ID        string          `json:"id"`
	Symbol    string          `json:"symbol"`
	Quantity  decimal.Decimal `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Currency  string          `json:"currency"`
	Sector    string          `json:"sector"`
	Note      string          `json:"note,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// CashResponse represents a cash record.
type CashResponse struct {
	ID        string          `json:"id"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Type      string          `json:"type"`
	Note      string          `json:"note,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// SaleResponse represents a sale.
type SaleResponse struct {
	ID           string          `json:"id"`
	Symbol       string          `json:"symbol"`
	Quantity     decimal.Decimal `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
	Currency     string          `json:"currency"`
	RealizedGain decimal.Decimal `json:"realized_gain"`
	CreatedAt    time.Time       `json:"created_at"`
}

// DividendResponse represents a dividend.
type DividendResponse struct {
	ID        string          `json:"id"`
	Symbol    string          `json:"symbol"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	CreatedAt time.Time       `json:"created_at"`
}

// WatchResponse represents a watchlist entry.
type WatchResponse struct {
	Symbol     string          `json:"symbol"`
	BuyTarget  decimal.Decimal `json:"buy_target"`
	SellTarget decimal.Decimal `json:"sell_target"`
	Note       string          `json:"note,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// HistoryResponse represents one value-history point.
type HistoryResponse struct {
	Date     string          `json:"date"`
	NetWorth decimal.Decimal `json:"net_worth"`
}

// LedgerResponse is the full record set of one owner.
type LedgerResponse struct {
	Owner     string                     `json:"owner"`
	Balances  map[string]decimal.Decimal `json:"balances"`
	Lots      []LotResponse              `json:"lots"`
	Cash      []CashResponse             `json:"cash"`
	Sales     []SaleResponse             `json:"sales"`
	Dividends []DividendResponse         `json:"dividends"`
	Watchlist []WatchResponse            `json:"watchlist"`
	History   []HistoryResponse          `json:"history"`
}

// ReceiptResponse describes a completed mutation.
type ReceiptResponse struct {
	Operation string            `json:"operation"`
	Owner     string            `json:"owner"`
	Message   string            `json:"message"`
	Lot       *LotResponse      `json:"lot,omitempty"`
	Sale      *SaleResponse     `json:"sale,omitempty"`
	Dividend  *DividendResponse `json:"dividend,omitempty"`
	Watch     *WatchResponse    `json:"watch,omitempty"`
	Cash      []CashResponse    `json:"cash,omitempty"`
}

// HoldingResponse represents one valued position.
type HoldingResponse struct {
	Symbol           string          `json:"symbol"`
	Currency         string          `json:"currency"`
	Sector           string          `json:"sector"`
	Quantity         decimal.Decimal `json:"quantity"`
	AverageCost      decimal.Decimal `json:"average_cost"`
	Price            decimal.Decimal `json:"price"`
	MarketValue      decimal.Decimal `json:"market_value"`
	UnrealizedPnL    decimal.Decimal `json:"unrealized_pnl"`
	MarketValueRef   decimal.Decimal `json:"market_value_ref"`
	UnrealizedPnLRef decimal.Decimal `json:"unrealized_pnl_ref"`
	ChangePct        decimal.Decimal `json:"change_pct"`
	Stale            bool            `json:"stale"`
}

// WatchQuoteResponse is a watchlist entry with its quote.
type WatchQuoteResponse struct {
	Symbol     string          `json:"symbol"`
	Price      decimal.Decimal `json:"price"`
	Currency   string          `json:"currency,omitempty"`
	ChangePct  decimal.Decimal `json:"change_pct"`
	BuyTarget  decimal.Decimal `json:"buy_target"`
	SellTarget decimal.Decimal `json:"sell_target"`
	Signal     string          `json:"signal,omitempty"`
	Available  bool            `json:"available"`
}

// SectorResponse is the weight of one sector.
type SectorResponse struct {
	Sector    string          `json:"sector"`
	Value     decimal.Decimal `json:"value"`
	WeightPct decimal.Decimal `json:"weight_pct"`
}

// StatsResponse summarizes the value history.
type StatsResponse struct {
	Points         int     `json:"points"`
	MeanReturnPct  float64 `json:"mean_return_pct"`
	VolatilityPct  float64 `json:"volatility_pct"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
}

// ValuationResponse is a valuation snapshot.
type ValuationResponse struct {
	Owner        string                     `json:"owner"`
	Reference    string                     `json:"reference"`
	AsOf         time.Time                  `json:"as_of"`
	NetWorth     decimal.Decimal            `json:"net_worth"`
	MarketValue  decimal.Decimal            `json:"market_value"`
	Cost         decimal.Decimal            `json:"cost"`
	Unrealized   decimal.Decimal            `json:"unrealized"`
	Realized     decimal.Decimal            `json:"realized"`
	Dividends    decimal.Decimal            `json:"dividends"`
	CashRef      decimal.Decimal            `json:"cash_ref"`
	Cash         map[string]decimal.Decimal `json:"cash"`
	Change24h    decimal.Decimal            `json:"change_24h"`
	Change24hPct decimal.Decimal            `json:"change_24h_pct"`
	Rates        map[string]decimal.Decimal `json:"rates"`
	Holdings     []HoldingResponse          `json:"holdings"`
	Watchlist    []WatchQuoteResponse       `json:"watchlist"`
	Gainers      []string                   `json:"gainers"`
	Losers       []string                   `json:"losers"`
	Sectors      []SectorResponse           `json:"sectors"`
	Alerts       []WatchQuoteResponse       `json:"alerts"`
	Stale        []string                   `json:"stale"`
	Stats        StatsResponse              `json:"stats"`
}

// IssueResponse is one reconciliation finding.
type IssueResponse struct {
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
}

// ReconciliationResponse is the consistency report of one owner.
type ReconciliationResponse struct {
	Owner      string                     `json:"owner"`
	Consistent bool                       `json:"consistent"`
	Balances   map[string]decimal.Decimal `json:"balances"`
	Issues     []IssueResponse            `json:"issues"`
	CheckedAt  time.Time                  `json:"checked_at"`
}

// ReportResponse is the outcome of a report request.
type ReportResponse struct {
	Report string `json:"report"`
	Sent   bool   `json:"sent"`
	Detail string `json:"detail,omitempty"`
}

// AssistantResponse is the assistant's answer.
type AssistantResponse struct {
	Answer string `json:"answer"`
}

// LotFromDomain converts a lot to a response.
func LotFromDomain(l domain.Lot) LotResponse {
	return LotResponse{
		ID:        l.ID,
		Symbol:    l.Symbol,
		Quantity:  l.Quantity,
		Price:     l.Price,
		Currency:  l.Currency,
		Sector:    l.Sector,
		Note:      l.Note,
		CreatedAt: l.CreatedAt,
	}
}

// CashFromDomain converts a cash record to a response.
func CashFromDomain(c domain.CashRecord) CashResponse {
	return CashResponse{
		ID:        c.ID,
		Amount:    c.Amount,
		Currency:  c.Currency,
		Type:      string(c.Type),
		Note:      c.Note,
		CreatedAt: c.CreatedAt,
	}
}

// SaleFromDomain converts a sale to a response.
func SaleFromDomain(s domain.SaleRecord) SaleResponse {
	return SaleResponse{
		ID:           s.ID,
		Symbol:       s.Symbol,
		Quantity:     s.Quantity,
		Price:        s.Price,
		Currency:     s.Currency,
		RealizedGain: s.RealizedGain,
		CreatedAt:    s.CreatedAt,
	}
}

// DividendFromDomain converts a dividend to a response.
func DividendFromDomain(d domain.Dividend) DividendResponse {
	return DividendResponse{
		ID:        d.ID,
		Symbol:    d.Symbol,
		Amount:    d.Amount,
		Currency:  d.Currency,
		CreatedAt: d.CreatedAt,
	}
}

// WatchFromDomain converts a watchlist entry to a response.
func WatchFromDomain(w domain.WatchlistEntry) WatchResponse {
	return WatchResponse{
		Symbol:     w.Symbol,
		BuyTarget:  w.BuyTarget,
		SellTarget: w.SellTarget,
		Note:       w.Note,
		CreatedAt:  w.CreatedAt,
	}
}

// LedgerFromDomain converts a ledger to a response.
func LedgerFromDomain(l *domain.Ledger) *LedgerResponse {
	resp := &LedgerResponse{
		Owner:     l.Owner,
		Balances:  l.Balances(),
		Lots:      make([]LotResponse, 0, len(l.Lots)),
		Cash:      make([]CashResponse, 0, len(l.Cash)),
		Sales:     make([]SaleResponse, 0, len(l.Sales)),
		Dividends: make([]DividendResponse, 0, len(l.Dividends)),
		Watchlist: make([]WatchResponse, 0, len(l.Watchlist)),
		History:   make([]HistoryResponse, 0, len(l.History)),
	}
	for _, lot := range l.Lots {
		resp.Lots = append(resp.Lots, LotFromDomain(lot))
	}
	for _, c := range l.Cash {
		resp.Cash = append(resp.Cash, CashFromDomain(c))
	}
	for _, s := range l.Sales {
		resp.Sales = append(resp.Sales, SaleFromDomain(s))
	}
	for _, d := range l.Dividends {
		resp.Dividends = append(resp.Dividends, DividendFromDomain(d))
	}
	for _, w := range l.Watchlist {
		resp.Watchlist = append(resp.Watchlist, WatchFromDomain(w))
	}
	for _, p := range l.History {
		resp.History = append(resp.History, HistoryResponse{Date: p.Date, NetWorth: p.NetWorth})
	}
	return resp
}

// ReceiptFromUseCase converts a receipt to a response.
func ReceiptFromUseCase(r *usecase.Receipt) *ReceiptResponse {
	resp := &ReceiptResponse{
		Operation: r.Operation,
		Owner:     r.Owner,
		Message:   r.Message,
	}
	if r.Lot != nil {
		lot := LotFromDomain(*r.Lot)
		resp.Lot = &lot
	}
	if r.Sale != nil {
		sale := SaleFromDomain(*r.Sale)
		resp.Sale = &sale
	}
	if r.Dividend != nil {
		div := DividendFromDomain(*r.Dividend)
		resp.Dividend = &div
	}
	if r.Watch != nil {
		w := WatchFromDomain(*r.Watch)
		resp.Watch = &w
	}
	for _, c := range r.Cash {
		resp.Cash = append(resp.Cash, CashFromDomain(c))
	}
	return resp
}

func holdingFromDomain(h domain.Holding) HoldingResponse {
	return HoldingResponse{
		Symbol:           h.Symbol,
		Currency:         h.Currency,
		Sector:           h.Sector,
		Quantity:         h.Quantity,
		AverageCost:      h.AverageCost,
		Price:            h.Price,
		MarketValue:      h.MarketValue,
		UnrealizedPnL:    h.UnrealizedPnL,
		MarketValueRef:   h.MarketValueRef,
		UnrealizedPnLRef: h.UnrealizedPnLRef,
		ChangePct:        h.ChangePct,
		Stale:            h.Stale,
	}
}

func watchQuoteFromDomain(w domain.WatchQuote) WatchQuoteResponse {
	return WatchQuoteResponse{
		Symbol:     w.Entry.Symbol,
		Price:      w.Price,
		Currency:   w.Currency,
		ChangePct:  w.ChangePct,
		BuyTarget:  w.Entry.BuyTarget,
		SellTarget: w.Entry.SellTarget,
		Signal:     string(w.Signal),
		Available:  w.Available,
	}
}

func symbols(holdings []domain.Holding) []string {
	out := make([]string, 0, len(holdings))
	for _, h := range holdings {
		out = append(out, h.Symbol)
	}
	return out
}

// ValuationFromDomain converts a valuation to a response. movers bounds
// the gainers and losers lists.
func ValuationFromDomain(v *domain.Valuation, movers int) *ValuationResponse {
	gainers, losers := v.Movers(movers)
	resp := &ValuationResponse{
		Owner:        v.Owner,
		Reference:    v.Reference,
		AsOf:         v.AsOf,
		NetWorth:     v.NetWorth,
		MarketValue:  v.MarketValue,
		Cost:         v.Cost,
		Unrealized:   v.Unrealized,
		Realized:     v.RealizedRef,
		Dividends:    v.DividendsRef,
		CashRef:      v.CashRef,
		Cash:         v.Cash,
		Change24h:    v.Change24h,
		Change24hPct: v.Change24hPct,
		Rates:        v.Rates,
		Holdings:     make([]HoldingResponse, 0, len(v.Holdings)),
		Watchlist:    make([]WatchQuoteResponse, 0, len(v.Watchlist)),
		Gainers:      symbols(gainers),
		Losers:       symbols(losers),
		Sectors:      []SectorResponse{},
		Alerts:       []WatchQuoteResponse{},
		Stale:        v.StaleSymbols(),
		Stats: StatsResponse{
			Points:         v.Stats.Points,
			MeanReturnPct:  v.Stats.MeanReturnPct,
			VolatilityPct:  v.Stats.VolatilityPct,
			MaxDrawdownPct: v.Stats.MaxDrawdownPct,
		},
	}
	for _, h := range v.Holdings {
		resp.Holdings = append(resp.Holdings, holdingFromDomain(h))
	}
	for _, w := range v.Watchlist {
		resp.Watchlist = append(resp.Watchlist, watchQuoteFromDomain(w))
	}
	for _, s := range v.Sectors() {
		resp.Sectors = append(resp.Sectors, SectorResponse{Sector: s.Sector, Value: s.Value, WeightPct: s.WeightPct})
	}
	for _, a := range v.Alerts() {
		resp.Alerts = append(resp.Alerts, watchQuoteFromDomain(a))
	}
	if resp.Stale == nil {
		resp.Stale = []string{}
	}
	return resp
}

// ReconciliationFromUseCase converts a reconciliation report to a response.
func ReconciliationFromUseCase(r *usecase.ReconciliationReport) *ReconciliationResponse {
	resp := &ReconciliationResponse{
		Owner:      r.Owner,
		Consistent: r.Consistent,
		Balances:   r.Balances,
		Issues:     make([]IssueResponse, 0, len(r.Issues)),
		CheckedAt:  r.CheckedAt,
	}
	for _, issue := range r.Issues {
		resp.Issues = append(resp.Issues, IssueResponse{Kind: issue.Kind, Detail: issue.Detail})
	}
	return resp
}
