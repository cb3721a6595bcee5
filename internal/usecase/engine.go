package usecase

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/gofolio/internal/domain"
)

// Receipt describes a completed ledger mutation.
type Receipt struct {
	Operation string
	Owner     string
	Message   string
	Streams   []domain.Stream
	Lot       *domain.Lot
	Sale      *domain.SaleRecord
	Dividend  *domain.Dividend
	Watch     *domain.WatchlistEntry
	Cash      []domain.CashRecord
}

// Operation names
const (
	OpBuy      = "buy"
	OpSell     = "sell"
	OpDividend = "dividend"
	OpDeposit  = "deposit"
	OpWithdraw = "withdraw"
	OpTransfer = "transfer"
	OpExchange = "exchange"
	OpWatch    = "watch"
	OpUnwatch  = "unwatch"
)

// BuyInput represents input for a buy.
type BuyInput struct {
	Owner    string
	Symbol   string
	Quantity decimal.Decimal
	Price    decimal.Decimal
	// Currency is the trade currency. Callers resolve it from the quote
	// gateway; empty means the reference currency.
	Currency string
	Sector   string
	Note     string
}

// SellInput represents input for a sell.
type SellInput struct {
	Owner    string
	Symbol   string
	Quantity decimal.Decimal
	Price    decimal.Decimal
	// Currency settles the proceeds; empty or unknown means USD.
	Currency string
}

// DividendInput represents input for a dividend credit.
type DividendInput struct {
	Owner    string
	Symbol   string
	Amount   decimal.Decimal
	Currency string
}

// CashInput represents input for a deposit, withdrawal or transfer.
// Amount is positive for deposits and withdrawals; transfers are signed.
type CashInput struct {
	Owner    string
	Amount   decimal.Decimal
	Currency string
	Note     string
}

// MoveCashInput represents input for the raw cash primitive.
type MoveCashInput struct {
	Owner    string
	Amount   decimal.Decimal
	Currency string
	Type     domain.CashType
	Note     string
}

// ExchangeInput represents input for a currency exchange.
type ExchangeInput struct {
	Owner  string
	Amount decimal.Decimal
	From   string
	To     string
}

// WatchInput represents input for adding or updating a watchlist entry.
type WatchInput struct {
	Owner      string
	Symbol     string
	BuyTarget  decimal.Decimal
	SellTarget decimal.Decimal
	Note       string
}

// TransactionEngine applies ledger mutations. It holds no ledger state:
// every operation receives a ledger and returns a new one, leaving the
// input untouched whether it succeeds or fails.
type TransactionEngine struct {
	reference string
	idGen     IDGenerator
	clock     Clock
}

// NewTransactionEngine creates a new TransactionEngine.
func NewTransactionEngine(reference string, idGen IDGenerator, clock Clock) *TransactionEngine {
	if clock == nil {
		clock = SystemClock{}
	}
	return &TransactionEngine{
		reference: domain.NormalizeCurrency(reference),
		idGen:     idGen,
		clock:     clock,
	}
}

// Buy debits the cost of the purchase and opens a new lot.
func (e *TransactionEngine) Buy(ledger *domain.Ledger, in BuyInput) (*domain.Ledger, *Receipt, error) {
	symbol := domain.NormalizeSymbol(in.Symbol)
	if err := domain.ValidateSymbol(symbol); err != nil {
		return nil, nil, err
	}
	if err := domain.ValidateQuantity(in.Quantity); err != nil {
		return nil, nil, err
	}
	if err := domain.ValidatePrice(in.Price); err != nil {
		return nil, nil, err
	}
	if err := domain.ValidateNote(in.Note); err != nil {
		return nil, nil, err
	}

	currency := domain.NormalizeCurrency(in.Currency)
	if currency == "" {
		currency = e.reference
	}
	if err := domain.ValidateCurrency(currency); err != nil {
		return nil, nil, err
	}

	cost := in.Quantity.Mul(in.Price)
	if err := requireBalance(ledger, currency, cost); err != nil {
		return nil, nil, err
	}

	sector := in.Sector
	if sector == "" {
		sector = domain.DefaultSector
	}

	now := e.clock.Now()
	next := ledger.Clone()
	debit := e.cashRecord(ledger.Owner, now, cost.Neg(), currency, domain.CashBuy, fmt.Sprintf("buy %s %s", in.Quantity, symbol))
	lot := domain.Lot{
		ID:        e.idGen.Generate(),
		Owner:     ledger.Owner,
		Symbol:    symbol,
		Quantity:  in.Quantity,
		Price:     in.Price,
		Currency:  currency,
		Sector:    sector,
		Note:      in.Note,
		CreatedAt: now,
	}
	next.Cash = append(next.Cash, debit)
	next.Lots = append(next.Lots, lot)

	return next, &Receipt{
		Operation: OpBuy,
		Owner:     ledger.Owner,
		Message: fmt.Sprintf("Bought %s %s @ %s %s (cost %s %s)",
			in.Quantity, symbol, in.Price.StringFixed(2), currency, cost.StringFixed(2), currency),
		Streams: []domain.Stream{domain.StreamPositions, domain.StreamCash},
		Lot:     &lot,
		Cash:    []domain.CashRecord{debit},
	}, nil
}

// Sell consumes lots oldest first, credits the proceeds and records the
// realized gain.
func (e *TransactionEngine) Sell(ledger *domain.Ledger, in SellInput) (*domain.Ledger, *Receipt, error) {
	symbol := domain.NormalizeSymbol(in.Symbol)
	if err := domain.ValidateSymbol(symbol); err != nil {
		return nil, nil, err
	}
	if err := domain.ValidateQuantity(in.Quantity); err != nil {
		return nil, nil, err
	}
	if err := domain.ValidatePrice(in.Price); err != nil {
		return nil, nil, err
	}

	currency := domain.NormalizeCurrency(in.Currency)
	if !domain.IsKnownCurrency(currency) {
		currency = DefaultSellCurrency
	}

	next := ledger.Clone()
	realized, err := next.ConsumeFIFO(symbol, in.Quantity, in.Price)
	if err != nil {
		return nil, nil, err
	}

	now := e.clock.Now()
	proceeds := in.Quantity.Mul(in.Price)
	credit := e.cashRecord(ledger.Owner, now, proceeds, currency, domain.CashSell, fmt.Sprintf("sell %s %s", in.Quantity, symbol))
	sale := domain.SaleRecord{
		ID:           e.idGen.Generate(),
		Owner:        ledger.Owner,
		Symbol:       symbol,
		Quantity:     in.Quantity,
		Price:        in.Price,
		Currency:     currency,
		RealizedGain: realized,
		CreatedAt:    now,
	}
	next.Cash = append(next.Cash, credit)
	next.Sales = append(next.Sales, sale)

	return next, &Receipt{
		Operation: OpSell,
		Owner:     ledger.Owner,
		Message: fmt.Sprintf("Sold %s %s @ %s %s: proceeds %s %s, realized gain %s %s",
			in.Quantity, symbol, in.Price.StringFixed(2), currency,
			proceeds.StringFixed(2), currency, realized.StringFixed(2), currency),
		Streams: []domain.Stream{domain.StreamPositions, domain.StreamCash, domain.StreamSales},
		Sale:    &sale,
		Cash:    []domain.CashRecord{credit},
	}, nil
}

// RecordDividend appends a dividend and its matching cash credit.
func (e *TransactionEngine) RecordDividend(ledger *domain.Ledger, in DividendInput) (*domain.Ledger, *Receipt, error) {
	symbol := domain.NormalizeSymbol(in.Symbol)
	if err := domain.ValidateSymbol(symbol); err != nil {
		return nil, nil, err
	}
	if err := domain.ValidateAmount(in.Amount); err != nil {
		return nil, nil, err
	}
	currency := domain.NormalizeCurrency(in.Currency)
	if err := domain.ValidateCurrency(currency); err != nil {
		return nil, nil, err
	}

	now := e.clock.Now()
	next := ledger.Clone()
	dividend := domain.Dividend{
		ID:        e.idGen.Generate(),
		Owner:     ledger.Owner,
		Symbol:    symbol,
		Amount:    in.Amount,
		Currency:  currency,
		CreatedAt: now,
	}
	credit := e.cashRecord(ledger.Owner, now, in.Amount, currency, domain.CashDividend, "dividend "+symbol)
	next.Dividends = append(next.Dividends, dividend)
	next.Cash = append(next.Cash, credit)

	return next, &Receipt{
		Operation: OpDividend,
		Owner:     ledger.Owner,
		Message:   fmt.Sprintf("Recorded dividend of %s %s from %s", in.Amount.StringFixed(2), currency, symbol),
		Streams:   []domain.Stream{domain.StreamDividends, domain.StreamCash},
		Dividend:  &dividend,
		Cash:      []domain.CashRecord{credit},
	}, nil
}

// MoveCash appends one signed cash record. It does not check the
// resulting balance; callers that debit must do so first.
func (e *TransactionEngine) MoveCash(ledger *domain.Ledger, in MoveCashInput) (*domain.Ledger, *Receipt, error) {
	if in.Amount.IsZero() {
		return nil, nil, domain.ErrInvalidAmount
	}
	if !in.Type.IsValid() {
		return nil, nil, fmt.Errorf("%w: %q", domain.ErrInvalidCashType, in.Type)
	}
	if err := domain.ValidateAmount(in.Amount.Abs()); err != nil {
		return nil, nil, err
	}
	currency := domain.NormalizeCurrency(in.Currency)
	if err := domain.ValidateCurrency(currency); err != nil {
		return nil, nil, err
	}
	if err := domain.ValidateNote(in.Note); err != nil {
		return nil, nil, err
	}

	next := ledger.Clone()
	record := e.cashRecord(ledger.Owner, e.clock.Now(), in.Amount, currency, in.Type, in.Note)
	next.Cash = append(next.Cash, record)

	return next, &Receipt{
		Operation: string(in.Type),
		Owner:     ledger.Owner,
		Message:   fmt.Sprintf("Recorded %s of %s %s", in.Type, in.Amount.StringFixed(2), currency),
		Streams:   []domain.Stream{domain.StreamCash},
		Cash:      []domain.CashRecord{record},
	}, nil
}

// Deposit credits cash.
func (e *TransactionEngine) Deposit(ledger *domain.Ledger, in CashInput) (*domain.Ledger, *Receipt, error) {
	if err := domain.ValidateAmount(in.Amount); err != nil {
		return nil, nil, err
	}
	next, receipt, err := e.MoveCash(ledger, MoveCashInput{
		Owner:    in.Owner,
		Amount:   in.Amount,
		Currency: in.Currency,
		Type:     domain.CashDeposit,
		Note:     in.Note,
	})
	if err != nil {
		return nil, nil, err
	}
	receipt.Operation = OpDeposit
	receipt.Message = fmt.Sprintf("Deposited %s %s", in.Amount.StringFixed(2), receipt.Cash[0].Currency)
	return next, receipt, nil
}

// Withdraw debits cash. The balance may never go negative.
func (e *TransactionEngine) Withdraw(ledger *domain.Ledger, in CashInput) (*domain.Ledger, *Receipt, error) {
	if err := domain.ValidateAmount(in.Amount); err != nil {
		return nil, nil, err
	}
	currency := domain.NormalizeCurrency(in.Currency)
	if err := domain.ValidateCurrency(currency); err != nil {
		return nil, nil, err
	}
	if err := requireBalance(ledger, currency, in.Amount); err != nil {
		return nil, nil, err
	}
	next, receipt, err := e.MoveCash(ledger, MoveCashInput{
		Owner:    in.Owner,
		Amount:   in.Amount.Neg(),
		Currency: currency,
		Type:     domain.CashWithdraw,
		Note:     in.Note,
	})
	if err != nil {
		return nil, nil, err
	}
	receipt.Operation = OpWithdraw
	receipt.Message = fmt.Sprintf("Withdrew %s %s", in.Amount.StringFixed(2), currency)
	return next, receipt, nil
}

// Transfer records a signed internal movement. Debits require balance.
func (e *TransactionEngine) Transfer(ledger *domain.Ledger, in CashInput) (*domain.Ledger, *Receipt, error) {
	currency := domain.NormalizeCurrency(in.Currency)
	if err := domain.ValidateCurrency(currency); err != nil {
		return nil, nil, err
	}
	if in.Amount.IsNegative() {
		if err := requireBalance(ledger, currency, in.Amount.Neg()); err != nil {
			return nil, nil, err
		}
	}
	next, receipt, err := e.MoveCash(ledger, MoveCashInput{
		Owner:    in.Owner,
		Amount:   in.Amount,
		Currency: currency,
		Type:     domain.CashTransfer,
		Note:     in.Note,
	})
	if err != nil {
		return nil, nil, err
	}
	receipt.Operation = OpTransfer
	receipt.Message = fmt.Sprintf("Transferred %s %s", in.Amount.StringFixed(2), currency)
	return next, receipt, nil
}

// ExchangeCurrency converts cash between currencies through the reference
// currency using converter.
func (e *TransactionEngine) ExchangeCurrency(ledger *domain.Ledger, in ExchangeInput, converter *domain.Converter) (*domain.Ledger, *Receipt, error) {
	if err := domain.ValidateAmount(in.Amount); err != nil {
		return nil, nil, err
	}
	from := domain.NormalizeCurrency(in.From)
	to := domain.NormalizeCurrency(in.To)
	if err := domain.ValidateCurrency(from); err != nil {
		return nil, nil, err
	}
	if err := domain.ValidateCurrency(to); err != nil {
		return nil, nil, err
	}
	if from == to {
		return nil, nil, domain.ErrSameCurrency
	}
	if err := requireBalance(ledger, from, in.Amount); err != nil {
		return nil, nil, err
	}

	converted := converter.FromReference(converter.ToReference(in.Amount, from), to).Round(8)
	note := fmt.Sprintf("exchange %s %s to %s", in.Amount, from, to)

	now := e.clock.Now()
	next := ledger.Clone()
	debit := e.cashRecord(ledger.Owner, now, in.Amount.Neg(), from, domain.CashExchange, note)
	credit := e.cashRecord(ledger.Owner, now, converted, to, domain.CashExchange, note)
	next.Cash = append(next.Cash, debit, credit)

	return next, &Receipt{
		Operation: OpExchange,
		Owner:     ledger.Owner,
		Message: fmt.Sprintf("Exchanged %s %s into %s %s",
			in.Amount.StringFixed(2), from, converted.StringFixed(2), to),
		Streams: []domain.Stream{domain.StreamCash},
		Cash:    []domain.CashRecord{debit, credit},
	}, nil
}

// Watch adds a watchlist entry or updates the existing one.
func (e *TransactionEngine) Watch(ledger *domain.Ledger, in WatchInput) (*domain.Ledger, *Receipt, error) {
	symbol := domain.NormalizeSymbol(in.Symbol)
	if err := domain.ValidateSymbol(symbol); err != nil {
		return nil, nil, err
	}
	if in.BuyTarget.IsNegative() || in.SellTarget.IsNegative() {
		return nil, nil, domain.ErrInvalidPrice
	}
	if err := domain.ValidateNote(in.Note); err != nil {
		return nil, nil, err
	}

	next := ledger.Clone()
	entry := domain.WatchlistEntry{
		Owner:      ledger.Owner,
		Symbol:     symbol,
		BuyTarget:  in.BuyTarget,
		SellTarget: in.SellTarget,
		Note:       in.Note,
		CreatedAt:  e.clock.Now(),
	}
	verb := "Updated"
	if next.UpsertWatch(entry) {
		verb = "Added"
	}
	entry, _ = next.Watch(symbol)

	return next, &Receipt{
		Operation: OpWatch,
		Owner:     ledger.Owner,
		Message:   fmt.Sprintf("%s %s on the watchlist", verb, symbol),
		Streams:   []domain.Stream{domain.StreamWatchlist},
		Watch:     &entry,
	}, nil
}

// Unwatch removes the watchlist entry of symbol.
func (e *TransactionEngine) Unwatch(ledger *domain.Ledger, symbol string) (*domain.Ledger, *Receipt, error) {
	symbol = domain.NormalizeSymbol(symbol)
	next := ledger.Clone()
	if err := next.RemoveWatch(symbol); err != nil {
		return nil, nil, err
	}

	return next, &Receipt{
		Operation: OpUnwatch,
		Owner:     ledger.Owner,
		Message:   fmt.Sprintf("Removed %s from the watchlist", symbol),
		Streams:   []domain.Stream{domain.StreamWatchlist},
	}, nil
}

func (e *TransactionEngine) cashRecord(owner string, at time.Time, amount decimal.Decimal, currency string, t domain.CashType, note string) domain.CashRecord {
	return domain.CashRecord{
		ID:        e.idGen.Generate(),
		Owner:     owner,
		Amount:    amount,
		Currency:  currency,
		Type:      t,
		Note:      note,
		CreatedAt: at,
	}
}

func requireBalance(ledger *domain.Ledger, currency string, required decimal.Decimal) error {
	available := ledger.Balance(currency)
	if available.LessThan(required) {
		return &domain.InsufficientFundsError{
			Currency:  currency,
			Required:  required,
			Available: available,
		}
	}
	return nil
}
