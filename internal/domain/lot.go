package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultSector tags lots that were never classified.
const DefaultSector = "Unclassified"

// Lot is an open purchase lot. Lots are created by a buy and only ever
// shrunk or removed by a sell.
type Lot struct {
	ID        string
	Owner     string
	Symbol    string
	Quantity  decimal.Decimal
	Price     decimal.Decimal
	Currency  string
	Sector    string
	Note      string
	CreatedAt time.Time
}

// Cost returns quantity × purchase price in the lot currency.
func (l Lot) Cost() decimal.Decimal {
	return l.Quantity.Mul(l.Price)
}

// SaleRecord summarizes one completed sell.
type SaleRecord struct {
	ID           string
	Owner        string
	Symbol       string
	Quantity     decimal.Decimal
	Price        decimal.Decimal
	Currency     string
	RealizedGain decimal.Decimal
	CreatedAt    time.Time
}

// Proceeds returns quantity × sale price.
func (s SaleRecord) Proceeds() decimal.Decimal {
	return s.Quantity.Mul(s.Price)
}

// Dividend is a dividend credit. Each one has exactly one matching
// CashDividend record.
type Dividend struct {
	ID        string
	Owner     string
	Symbol    string
	Amount    decimal.Decimal
	Currency  string
	CreatedAt time.Time
}
