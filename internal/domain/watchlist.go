package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Signal is the alert raised by a watchlist target.
type Signal string

const (
	SignalNone Signal = ""
	SignalBuy  Signal = "buy"
	SignalSell Signal = "sell"
)

// WatchlistEntry tracks a symbol with optional buy and sell targets.
// A zero target means no target.
type WatchlistEntry struct {
	Owner      string
	Symbol     string
	BuyTarget  decimal.Decimal
	SellTarget decimal.Decimal
	Note       string
	CreatedAt  time.Time
}

// Signal returns the alert triggered by price, if any.
func (w WatchlistEntry) Signal(price decimal.Decimal) Signal {
	if !price.IsPositive() {
		return SignalNone
	}
	if w.BuyTarget.IsPositive() && price.LessThanOrEqual(w.BuyTarget) {
		return SignalBuy
	}
	if w.SellTarget.IsPositive() && price.GreaterThanOrEqual(w.SellTarget) {
		return SignalSell
	}
	return SignalNone
}
