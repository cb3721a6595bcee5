package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// Trade errors
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInsufficientShares = errors.New("insufficient shares")
	ErrInvalidQuantity    = errors.New("quantity must be positive")
	ErrInvalidPrice       = errors.New("price must be positive")
	ErrInvalidAmount      = errors.New("amount must be positive")
	ErrSameCurrency       = errors.New("cannot exchange a currency into itself")
	ErrInvalidCashType    = errors.New("invalid cash record type")

	// Quote errors
	ErrQuoteUnavailable = errors.New("quote unavailable")

	// Storage errors
	ErrStorageWriteFailed = errors.New("storage write failed")
	ErrStorageReadFailed  = errors.New("storage read failed")
	ErrDocumentNotFound   = errors.New("document not found")

	// Watchlist errors
	ErrWatchNotFound = errors.New("watchlist entry not found")

	// Assistant errors
	ErrEmptyQuestion = errors.New("question cannot be empty")
)

// InsufficientFundsError reports the balance shortfall that rejected an operation.
type InsufficientFundsError struct {
	Currency  string
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: required %s %s, available %s %s",
		e.Required.StringFixed(2), e.Currency, e.Available.StringFixed(2), e.Currency)
}

func (e *InsufficientFundsError) Unwrap() error {
	return ErrInsufficientFunds
}

// InsufficientSharesError reports the share shortfall that rejected a sell.
type InsufficientSharesError struct {
	Symbol    string
	Requested decimal.Decimal
	Held      decimal.Decimal
}

func (e *InsufficientSharesError) Error() string {
	return fmt.Sprintf("insufficient shares of %s: requested %s, held %s",
		e.Symbol, e.Requested.String(), e.Held.String())
}

func (e *InsufficientSharesError) Unwrap() error {
	return ErrInsufficientShares
}
