package usecase_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/gofolio/internal/domain"
	"github.com/iho/gofolio/internal/usecase"
	"github.com/iho/gofolio/internal/usecase/mocks"
)

var t0 = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newEngine() (*usecase.TransactionEngine, *mocks.FixedClock) {
	clock := &mocks.FixedClock{T: t0}
	return usecase.NewTransactionEngine("MXN", &mocks.SequenceIDGenerator{}, clock), clock
}

func newConverter() *domain.Converter {
	return domain.NewConverter("MXN", map[string]decimal.Decimal{
		"USD": dec("20"),
		"EUR": dec("22"),
	}, decimal.NewFromInt(1))
}

func fundedLedger(owner string, amount, currency string) *domain.Ledger {
	l := domain.NewLedger(owner)
	l.Cash = append(l.Cash, domain.CashRecord{
		ID:        "seed",
		Owner:     owner,
		Amount:    dec(amount),
		Currency:  currency,
		Type:      domain.CashDeposit,
		CreatedAt: t0.Add(-time.Hour),
	})
	return l
}

func TestTransactionEngine_Buy(t *testing.T) {
	tests := []struct {
		name        string
		ledger      *domain.Ledger
		input       usecase.BuyInput
		expectError error
	}{
		{
			name:   "successful buy",
			ledger: fundedLedger("alice", "2000", "USD"),
			input:  usecase.BuyInput{Owner: "alice", Symbol: "acme", Quantity: dec("10"), Price: dec("100"), Currency: "USD"},
		},
		{
			name:        "insufficient funds",
			ledger:      fundedLedger("alice", "500", "USD"),
			input:       usecase.BuyInput{Owner: "alice", Symbol: "ACME", Quantity: dec("10"), Price: dec("100"), Currency: "USD"},
			expectError: domain.ErrInsufficientFunds,
		},
		{
			name:        "funds held in another currency",
			ledger:      fundedLedger("alice", "50000", "MXN"),
			input:       usecase.BuyInput{Owner: "alice", Symbol: "ACME", Quantity: dec("10"), Price: dec("100"), Currency: "USD"},
			expectError: domain.ErrInsufficientFunds,
		},
		{
			name:        "zero quantity",
			ledger:      fundedLedger("alice", "2000", "USD"),
			input:       usecase.BuyInput{Owner: "alice", Symbol: "ACME", Quantity: decimal.Zero, Price: dec("100"), Currency: "USD"},
			expectError: domain.ErrInvalidQuantity,
		},
		{
			name:        "negative price",
			ledger:      fundedLedger("alice", "2000", "USD"),
			input:       usecase.BuyInput{Owner: "alice", Symbol: "ACME", Quantity: dec("1"), Price: dec("-1"), Currency: "USD"},
			expectError: domain.ErrInvalidPrice,
		},
		{
			name:        "invalid symbol",
			ledger:      fundedLedger("alice", "2000", "USD"),
			input:       usecase.BuyInput{Owner: "alice", Symbol: "", Quantity: dec("1"), Price: dec("1"), Currency: "USD"},
			expectError: domain.ErrInvalidSymbol,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, _ := newEngine()
			before := tt.ledger.Clone()

			next, receipt, err := engine.Buy(tt.ledger, tt.input)

			assert.Equal(t, before, tt.ledger, "input ledger must never change")
			if tt.expectError != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.expectError), "got %v", err)
				assert.Nil(t, next)
				assert.Nil(t, receipt)
				return
			}

			require.NoError(t, err)
			cost := tt.input.Quantity.Mul(tt.input.Price)
			assert.True(t, next.Balance("USD").Equal(before.Balance("USD").Sub(cost)))
			assert.True(t, next.Shares("ACME").Equal(before.Shares("ACME").Add(tt.input.Quantity)))
			assert.Equal(t, []domain.Stream{domain.StreamPositions, domain.StreamCash}, receipt.Streams)
			require.NotNil(t, receipt.Lot)
			assert.Equal(t, "ACME", receipt.Lot.Symbol)
			assert.Equal(t, domain.DefaultSector, receipt.Lot.Sector)
			assert.Equal(t, "Bought 10 ACME @ 100.00 USD (cost 1000.00 USD)", receipt.Message)
		})
	}
}

func TestTransactionEngine_Buy_DefaultsToReferenceCurrency(t *testing.T) {
	engine, _ := newEngine()
	ledger := fundedLedger("alice", "1000", "MXN")

	next, receipt, err := engine.Buy(ledger, usecase.BuyInput{
		Owner: "alice", Symbol: "WALMEX.MX", Quantity: dec("5"), Price: dec("60"),
	})
	require.NoError(t, err)
	assert.Equal(t, "MXN", receipt.Lot.Currency)
	assert.True(t, next.Balance("MXN").Equal(dec("700")))
}

func TestTransactionEngine_Buy_PreservesNetWorthAtCost(t *testing.T) {
	engine, _ := newEngine()
	converter := newConverter()
	ledger := fundedLedger("alice", "2000", "USD")

	before := usecase.ValuationEngine{}.Compute(ledger, nil, converter, t0)
	next, _, err := engine.Buy(ledger, usecase.BuyInput{
		Owner: "alice", Symbol: "ACME", Quantity: dec("10"), Price: dec("100"), Currency: "USD",
	})
	require.NoError(t, err)
	after := usecase.ValuationEngine{}.Compute(next, nil, converter, t0)

	assert.True(t, before.NetWorth.Equal(after.NetWorth), "before %s, after %s", before.NetWorth, after.NetWorth)
	assert.True(t, after.NetWorth.Equal(dec("40000")))
}

// tickingClock moves forward on every reading.
type tickingClock struct{ t time.Time }

func (c *tickingClock) Now() time.Time {
	c.t = c.t.Add(time.Millisecond)
	return c.t
}

func TestTransactionEngine_RecordsShareOneTimestamp(t *testing.T) {
	engine := usecase.NewTransactionEngine("MXN", &mocks.SequenceIDGenerator{}, &tickingClock{t: t0})

	ledger, buy, err := engine.Buy(fundedLedger("alice", "1000", "USD"),
		usecase.BuyInput{Owner: "alice", Symbol: "ACME", Quantity: dec("5"), Price: dec("100"), Currency: "USD"})
	require.NoError(t, err)
	assert.Equal(t, buy.Lot.CreatedAt, buy.Cash[0].CreatedAt)

	ledger, sell, err := engine.Sell(ledger,
		usecase.SellInput{Owner: "alice", Symbol: "ACME", Quantity: dec("2"), Price: dec("110"), Currency: "USD"})
	require.NoError(t, err)
	assert.Equal(t, sell.Sale.CreatedAt, sell.Cash[0].CreatedAt)

	ledger, div, err := engine.RecordDividend(ledger,
		usecase.DividendInput{Owner: "alice", Symbol: "ACME", Amount: dec("3"), Currency: "USD"})
	require.NoError(t, err)
	assert.Equal(t, div.Dividend.CreatedAt, div.Cash[0].CreatedAt)

	_, exchange, err := engine.ExchangeCurrency(ledger,
		usecase.ExchangeInput{Owner: "alice", Amount: dec("10"), From: "USD", To: "MXN"}, newConverter())
	require.NoError(t, err)
	require.Len(t, exchange.Cash, 2)
	assert.Equal(t, exchange.Cash[0].CreatedAt, exchange.Cash[1].CreatedAt)
}

func TestTransactionEngine_Sell_FIFO(t *testing.T) {
	engine, _ := newEngine()
	ledger := domain.NewLedger("alice")
	ledger.Lots = []domain.Lot{
		{ID: "lot-2", Owner: "alice", Symbol: "ACME", Quantity: dec("5"), Price: dec("120"), Currency: "USD", CreatedAt: t0.Add(time.Hour)},
		{ID: "lot-1", Owner: "alice", Symbol: "ACME", Quantity: dec("10"), Price: dec("100"), Currency: "USD", CreatedAt: t0},
	}

	next, receipt, err := engine.Sell(ledger, usecase.SellInput{
		Owner: "alice", Symbol: "ACME", Quantity: dec("12"), Price: dec("150"), Currency: "USD",
	})
	require.NoError(t, err)

	require.Len(t, next.Lots, 1)
	assert.Equal(t, "lot-2", next.Lots[0].ID)
	assert.True(t, next.Lots[0].Quantity.Equal(dec("3")))

	require.NotNil(t, receipt.Sale)
	assert.True(t, receipt.Sale.RealizedGain.Equal(dec("560")), "got %s", receipt.Sale.RealizedGain)
	assert.True(t, next.Balance("USD").Equal(dec("1800")))
	assert.Len(t, next.Sales, 1)
	assert.Equal(t, []domain.Stream{domain.StreamPositions, domain.StreamCash, domain.StreamSales}, receipt.Streams)
}

func TestTransactionEngine_Sell_Rejections(t *testing.T) {
	base := domain.NewLedger("alice")
	base.Lots = []domain.Lot{
		{ID: "lot-1", Owner: "alice", Symbol: "ACME", Quantity: dec("10"), Price: dec("100"), Currency: "USD", CreatedAt: t0},
	}

	tests := []struct {
		name        string
		input       usecase.SellInput
		expectError error
	}{
		{
			name:        "more shares than held",
			input:       usecase.SellInput{Owner: "alice", Symbol: "ACME", Quantity: dec("11"), Price: dec("150")},
			expectError: domain.ErrInsufficientShares,
		},
		{
			name:        "symbol not held",
			input:       usecase.SellInput{Owner: "alice", Symbol: "MSFT", Quantity: dec("1"), Price: dec("150")},
			expectError: domain.ErrInsufficientShares,
		},
		{
			name:        "zero price",
			input:       usecase.SellInput{Owner: "alice", Symbol: "ACME", Quantity: dec("1"), Price: decimal.Zero},
			expectError: domain.ErrInvalidPrice,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, _ := newEngine()
			ledger := base.Clone()
			before := ledger.Clone()

			next, receipt, err := engine.Sell(ledger, tt.input)

			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.expectError), "got %v", err)
			assert.Nil(t, next)
			assert.Nil(t, receipt)
			assert.Equal(t, before, ledger)
		})
	}
}

func TestTransactionEngine_Sell_CurrencyDefaultsToUSD(t *testing.T) {
	for _, currency := range []string{"", "XYZ"} {
		engine, _ := newEngine()
		ledger := domain.NewLedger("alice")
		ledger.Lots = []domain.Lot{
			{ID: "lot-1", Owner: "alice", Symbol: "WALMEX.MX", Quantity: dec("10"), Price: dec("60"), Currency: "MXN", CreatedAt: t0},
		}

		next, receipt, err := engine.Sell(ledger, usecase.SellInput{
			Owner: "alice", Symbol: "WALMEX.MX", Quantity: dec("1"), Price: dec("70"), Currency: currency,
		})
		require.NoError(t, err)
		assert.Equal(t, "USD", receipt.Sale.Currency)
		assert.True(t, next.Balance("USD").Equal(dec("70")))
		assert.True(t, next.Balance("MXN").IsZero())
	}
}

func TestTransactionEngine_RecordDividend(t *testing.T) {
	engine, _ := newEngine()
	ledger := fundedLedger("alice", "100", "USD")

	next, receipt, err := engine.RecordDividend(ledger, usecase.DividendInput{
		Owner: "alice", Symbol: "X", Amount: dec("50"), Currency: "USD",
	})
	require.NoError(t, err)

	assert.Len(t, next.Dividends, len(ledger.Dividends)+1)
	assert.Len(t, next.Cash, len(ledger.Cash)+1)
	credit := next.Cash[len(next.Cash)-1]
	assert.Equal(t, domain.CashDividend, credit.Type)
	assert.True(t, credit.Amount.Equal(dec("50")))
	assert.Equal(t, "USD", credit.Currency)
	assert.True(t, next.Balance("USD").Sub(ledger.Balance("USD")).Equal(dec("50")))
	assert.Equal(t, []domain.Stream{domain.StreamDividends, domain.StreamCash}, receipt.Streams)

	_, _, err = engine.RecordDividend(ledger, usecase.DividendInput{Owner: "alice", Symbol: "X", Amount: dec("-5"), Currency: "USD"})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestTransactionEngine_CashMovements(t *testing.T) {
	tests := []struct {
		name        string
		run         func(*usecase.TransactionEngine, *domain.Ledger) (*domain.Ledger, *usecase.Receipt, error)
		expectError error
		expectUSD   string
	}{
		{
			name: "deposit",
			run: func(e *usecase.TransactionEngine, l *domain.Ledger) (*domain.Ledger, *usecase.Receipt, error) {
				return e.Deposit(l, usecase.CashInput{Owner: "alice", Amount: dec("25"), Currency: "usd"})
			},
			expectUSD: "125",
		},
		{
			name: "negative deposit",
			run: func(e *usecase.TransactionEngine, l *domain.Ledger) (*domain.Ledger, *usecase.Receipt, error) {
				return e.Deposit(l, usecase.CashInput{Owner: "alice", Amount: dec("-25"), Currency: "USD"})
			},
			expectError: domain.ErrInvalidAmount,
		},
		{
			name: "withdraw within balance",
			run: func(e *usecase.TransactionEngine, l *domain.Ledger) (*domain.Ledger, *usecase.Receipt, error) {
				return e.Withdraw(l, usecase.CashInput{Owner: "alice", Amount: dec("100"), Currency: "USD"})
			},
			expectUSD: "0",
		},
		{
			name: "withdraw overdraft",
			run: func(e *usecase.TransactionEngine, l *domain.Ledger) (*domain.Ledger, *usecase.Receipt, error) {
				return e.Withdraw(l, usecase.CashInput{Owner: "alice", Amount: dec("100.01"), Currency: "USD"})
			},
			expectError: domain.ErrInsufficientFunds,
		},
		{
			name: "withdraw unknown currency",
			run: func(e *usecase.TransactionEngine, l *domain.Ledger) (*domain.Ledger, *usecase.Receipt, error) {
				return e.Withdraw(l, usecase.CashInput{Owner: "alice", Amount: dec("1"), Currency: "ZZZ"})
			},
			expectError: domain.ErrInvalidCurrency,
		},
		{
			name: "incoming transfer",
			run: func(e *usecase.TransactionEngine, l *domain.Ledger) (*domain.Ledger, *usecase.Receipt, error) {
				return e.Transfer(l, usecase.CashInput{Owner: "alice", Amount: dec("40"), Currency: "USD"})
			},
			expectUSD: "140",
		},
		{
			name: "outgoing transfer beyond balance",
			run: func(e *usecase.TransactionEngine, l *domain.Ledger) (*domain.Ledger, *usecase.Receipt, error) {
				return e.Transfer(l, usecase.CashInput{Owner: "alice", Amount: dec("-140"), Currency: "USD"})
			},
			expectError: domain.ErrInsufficientFunds,
		},
		{
			name: "raw move with invalid type",
			run: func(e *usecase.TransactionEngine, l *domain.Ledger) (*domain.Ledger, *usecase.Receipt, error) {
				return e.MoveCash(l, usecase.MoveCashInput{Owner: "alice", Amount: dec("1"), Currency: "USD", Type: "gift"})
			},
			expectError: domain.ErrInvalidCashType,
		},
		{
			name: "raw move with zero amount",
			run: func(e *usecase.TransactionEngine, l *domain.Ledger) (*domain.Ledger, *usecase.Receipt, error) {
				return e.MoveCash(l, usecase.MoveCashInput{Owner: "alice", Amount: decimal.Zero, Currency: "USD", Type: domain.CashTransfer})
			},
			expectError: domain.ErrInvalidAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, _ := newEngine()
			ledger := fundedLedger("alice", "100", "USD")
			before := ledger.Clone()

			next, receipt, err := tt.run(engine, ledger)

			assert.Equal(t, before, ledger)
			if tt.expectError != nil {
				assert.ErrorIs(t, err, tt.expectError)
				assert.Nil(t, next)
				return
			}
			require.NoError(t, err)
			assert.True(t, next.Balance("USD").Equal(dec(tt.expectUSD)), "got %s", next.Balance("USD"))
			assert.Equal(t, []domain.Stream{domain.StreamCash}, receipt.Streams)
		})
	}
}

func TestTransactionEngine_ExchangeCurrency(t *testing.T) {
	engine, _ := newEngine()
	converter := newConverter()
	ledger := fundedLedger("alice", "100", "USD")

	next, receipt, err := engine.ExchangeCurrency(ledger, usecase.ExchangeInput{
		Owner: "alice", Amount: dec("100"), From: "USD", To: "MXN",
	}, converter)
	require.NoError(t, err)

	assert.True(t, next.Balance("USD").IsZero())
	assert.True(t, next.Balance("MXN").Equal(dec("2000")))
	require.Len(t, receipt.Cash, 2)
	assert.Equal(t, domain.CashExchange, receipt.Cash[0].Type)
	assert.Equal(t, domain.CashExchange, receipt.Cash[1].Type)

	next, _, err = engine.ExchangeCurrency(ledger, usecase.ExchangeInput{
		Owner: "alice", Amount: dec("11"), From: "USD", To: "EUR",
	}, converter)
	require.NoError(t, err)
	assert.True(t, next.Balance("EUR").Equal(dec("10")), "got %s", next.Balance("EUR"))

	_, _, err = engine.ExchangeCurrency(ledger, usecase.ExchangeInput{Owner: "alice", Amount: dec("1"), From: "USD", To: "usd"}, converter)
	assert.ErrorIs(t, err, domain.ErrSameCurrency)

	_, _, err = engine.ExchangeCurrency(ledger, usecase.ExchangeInput{Owner: "alice", Amount: dec("101"), From: "USD", To: "MXN"}, converter)
	var fundsErr *domain.InsufficientFundsError
	require.ErrorAs(t, err, &fundsErr)
	assert.Equal(t, "USD", fundsErr.Currency)
	assert.True(t, fundsErr.Available.Equal(dec("100")))
}

func TestTransactionEngine_Watchlist(t *testing.T) {
	engine, clock := newEngine()
	ledger := domain.NewLedger("alice")

	next, receipt, err := engine.Watch(ledger, usecase.WatchInput{Owner: "alice", Symbol: "acme", BuyTarget: dec("90")})
	require.NoError(t, err)
	assert.Equal(t, "Added ACME on the watchlist", receipt.Message)
	require.Len(t, next.Watchlist, 1)

	clock.Advance(time.Hour)
	next, receipt, err = engine.Watch(next, usecase.WatchInput{Owner: "alice", Symbol: "ACME", SellTarget: dec("150")})
	require.NoError(t, err)
	assert.Equal(t, "Updated ACME on the watchlist", receipt.Message)
	require.Len(t, next.Watchlist, 1)
	assert.Equal(t, t0, next.Watchlist[0].CreatedAt)
	assert.True(t, next.Watchlist[0].SellTarget.Equal(dec("150")))

	_, _, err = engine.Watch(next, usecase.WatchInput{Owner: "alice", Symbol: "ACME", BuyTarget: dec("-1")})
	assert.ErrorIs(t, err, domain.ErrInvalidPrice)

	next, _, err = engine.Unwatch(next, "acme")
	require.NoError(t, err)
	assert.Empty(t, next.Watchlist)

	_, _, err = engine.Unwatch(next, "ACME")
	assert.ErrorIs(t, err, domain.ErrWatchNotFound)
}
