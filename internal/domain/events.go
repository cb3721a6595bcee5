package domain

import "time"

// Event types
const (
	EventTypeTradeExecuted     = "trade.executed"
	EventTypeCashMoved         = "cash.moved"
	EventTypeDividendRecorded  = "dividend.recorded"
	EventTypeCurrencyExchanged = "currency.exchanged"
	EventTypeWatchlistUpdated  = "watchlist.updated"
	EventTypeValuationComputed = "valuation.computed"
)

// Event is a ledger change announced to downstream consumers.
type Event struct {
	ID        string
	Owner     string
	Type      string
	Payload   map[string]any
	CreatedAt time.Time
}

// TradeExecutedEvent payload
type TradeExecutedEvent struct {
	Side         string `json:"side"`
	Symbol       string `json:"symbol"`
	Quantity     string `json:"quantity"`
	Price        string `json:"price"`
	Currency     string `json:"currency"`
	RealizedGain string `json:"realized_gain,omitempty"`
}

// CashMovedEvent payload
type CashMovedEvent struct {
	Type     string `json:"type"`
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

// CurrencyExchangedEvent payload
type CurrencyExchangedEvent struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Amount    string `json:"amount"`
	Converted string `json:"converted"`
}

// ValuationComputedEvent payload
type ValuationComputedEvent struct {
	Reference string `json:"reference"`
	NetWorth  string `json:"net_worth"`
	Change24h string `json:"change_24h"`
	Holdings  int    `json:"holdings"`
	Delivered bool   `json:"delivered"`
}
