package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote is a market price observation for one symbol.
type Quote struct {
	Symbol    string
	Price     decimal.Decimal
	Currency  string
	ChangePct decimal.Decimal
	FetchedAt time.Time
}

// IsUsable reports whether the quote carries a price.
func (q Quote) IsUsable() bool {
	return q.Price.IsPositive()
}
