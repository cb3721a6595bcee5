package dto

import (
	"github.com/shopspring/decimal"

	"github.com/iho/gofolio/internal/usecase"
)

// BuyRequest represents a request to buy shares.
type BuyRequest struct {
	Symbol   string          `json:"symbol"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Sector   string          `json:"sector,omitempty"`
	Note     string          `json:"note,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *BuyRequest) ToUseCaseInput(owner string) usecase.BuyInput {
	return usecase.BuyInput{
		Owner:    owner,
		Symbol:   r.Symbol,
		Quantity: r.Quantity,
		Price:    r.Price,
		Sector:   r.Sector,
		Note:     r.Note,
	}
}

// SellRequest represents a request to sell shares.
type SellRequest struct {
	Symbol   string          `json:"symbol"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Currency string          `json:"currency,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *SellRequest) ToUseCaseInput(owner string) usecase.SellInput {
	return usecase.SellInput{
		Owner:    owner,
		Symbol:   r.Symbol,
		Quantity: r.Quantity,
		Price:    r.Price,
		Currency: r.Currency,
	}
}

// DividendRequest represents a dividend credit.
type DividendRequest struct {
	Symbol   string          `json:"symbol"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// ToUseCaseInput converts to use case input.
func (r *DividendRequest) ToUseCaseInput(owner string) usecase.DividendInput {
	return usecase.DividendInput{
		Owner:    owner,
		Symbol:   r.Symbol,
		Amount:   r.Amount,
		Currency: r.Currency,
	}
}

// CashRequest represents a deposit, withdrawal or transfer.
type CashRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	Note     string          `json:"note,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *CashRequest) ToUseCaseInput(owner string) usecase.CashInput {
	return usecase.CashInput{
		Owner:    owner,
		Amount:   r.Amount,
		Currency: r.Currency,
		Note:     r.Note,
	}
}

// ExchangeRequest represents a currency exchange.
type ExchangeRequest struct {
	Amount decimal.Decimal `json:"amount"`
	From   string          `json:"from"`
	To     string          `json:"to"`
}

// ToUseCaseInput converts to use case input.
func (r *ExchangeRequest) ToUseCaseInput(owner string) usecase.ExchangeInput {
	return usecase.ExchangeInput{
		Owner:  owner,
		Amount: r.Amount,
		From:   r.From,
		To:     r.To,
	}
}

// WatchRequest adds or updates a watchlist entry. Zero targets are unset.
type WatchRequest struct {
	Symbol     string          `json:"symbol"`
	BuyTarget  decimal.Decimal `json:"buy_target"`
	SellTarget decimal.Decimal `json:"sell_target"`
	Note       string          `json:"note,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *WatchRequest) ToUseCaseInput(owner string) usecase.WatchInput {
	return usecase.WatchInput{
		Owner:      owner,
		Symbol:     r.Symbol,
		BuyTarget:  r.BuyTarget,
		SellTarget: r.SellTarget,
		Note:       r.Note,
	}
}

// AssistantRequest is a question for the assistant.
type AssistantRequest struct {
	Question string `json:"question"`
}
