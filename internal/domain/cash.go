package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CashType tags the event behind a cash record.
type CashType string

const (
	CashDeposit  CashType = "deposit"
	CashWithdraw CashType = "withdraw"
	CashBuy      CashType = "buy"
	CashSell     CashType = "sell"
	CashDividend CashType = "dividend"
	CashExchange CashType = "exchange"
	CashTransfer CashType = "transfer"
)

// IsValid reports whether t is a known cash record type.
func (t CashType) IsValid() bool {
	switch t {
	case CashDeposit, CashWithdraw, CashBuy, CashSell, CashDividend, CashExchange, CashTransfer:
		return true
	default:
		return false
	}
}

// CashRecord is one signed cash movement. The balance of a currency is the
// sum of all records in that currency.
type CashRecord struct {
	ID        string
	Owner     string
	Amount    decimal.Decimal
	Currency  string
	Type      CashType
	Note      string
	CreatedAt time.Time
}

// IsDebit reports whether the record takes money out.
func (c CashRecord) IsDebit() bool {
	return c.Amount.IsNegative()
}
