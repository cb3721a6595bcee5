package dto

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/gofolio/internal/domain"
	"github.com/iho/gofolio/internal/usecase"
)

var t0 = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestLedgerFromDomain(t *testing.T) {
	ledger := &domain.Ledger{
		Owner: "alice",
		Lots: []domain.Lot{
			{ID: "l1", Owner: "alice", Symbol: "ACME", Quantity: dec("10"), Price: dec("100"), Currency: "USD", Sector: "Tech", CreatedAt: t0},
		},
		Cash: []domain.CashRecord{
			{ID: "c1", Owner: "alice", Amount: dec("5000"), Currency: "USD", Type: domain.CashDeposit, CreatedAt: t0},
			{ID: "c2", Owner: "alice", Amount: dec("-1000"), Currency: "USD", Type: domain.CashBuy, CreatedAt: t0},
		},
		History: []domain.HistoryPoint{{Owner: "alice", Date: "2024-03-01", NetWorth: dec("4000")}},
	}

	resp := LedgerFromDomain(ledger)

	assert.Equal(t, "alice", resp.Owner)
	require.Len(t, resp.Lots, 1)
	assert.Equal(t, "ACME", resp.Lots[0].Symbol)
	require.Len(t, resp.Cash, 2)
	assert.Equal(t, "buy", resp.Cash[1].Type)
	assert.True(t, resp.Balances["USD"].Equal(dec("4000")))
	assert.NotNil(t, resp.Sales)
	assert.NotNil(t, resp.Watchlist)

	body, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"sales":[]`)
	assert.Contains(t, string(body), `"net_worth":"4000"`)
}

func TestReceiptFromUseCase(t *testing.T) {
	receipt := &usecase.Receipt{
		Operation: usecase.OpSell,
		Owner:     "alice",
		Message:   "Sold 2 ACME",
		Sale:      &domain.SaleRecord{ID: "s1", Symbol: "ACME", Quantity: dec("2"), Price: dec("150"), Currency: "USD", RealizedGain: dec("100"), CreatedAt: t0},
		Cash:      []domain.CashRecord{{ID: "c3", Amount: dec("300"), Currency: "USD", Type: domain.CashSell, CreatedAt: t0}},
	}

	resp := ReceiptFromUseCase(receipt)

	assert.Equal(t, "sell", resp.Operation)
	assert.Nil(t, resp.Lot)
	require.NotNil(t, resp.Sale)
	assert.True(t, resp.Sale.RealizedGain.Equal(dec("100")))
	require.Len(t, resp.Cash, 1)

	body, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.NotContains(t, string(body), `"lot"`)
	assert.NotContains(t, string(body), `"watch"`)
}

func TestValuationFromDomain(t *testing.T) {
	v := &domain.Valuation{
		Owner:     "alice",
		Reference: "MXN",
		AsOf:      t0,
		Holdings: []domain.Holding{
			{Symbol: "ACME", Sector: "Tech", MarketValueRef: dec("600"), ChangePct: dec("2")},
			{Symbol: "BETA", Sector: "Energy", MarketValueRef: dec("300"), ChangePct: dec("-3")},
			{Symbol: "GAMMA", Sector: "Energy", MarketValueRef: dec("100"), Stale: true},
		},
		Watchlist: []domain.WatchQuote{
			{Entry: domain.WatchlistEntry{Symbol: "MSFT", BuyTarget: dec("300")}, Price: dec("290"), Signal: domain.SignalBuy, Available: true},
			{Entry: domain.WatchlistEntry{Symbol: "NFLX"}, Available: false},
		},
		NetWorth: dec("1000"),
		Stats:    domain.HistoryStats{Points: 3, MaxDrawdownPct: 1.5},
	}

	resp := ValuationFromDomain(v, 1)

	assert.Equal(t, []string{"ACME"}, resp.Gainers)
	assert.Equal(t, []string{"BETA"}, resp.Losers)
	assert.Equal(t, []string{"GAMMA"}, resp.Stale)
	require.Len(t, resp.Watchlist, 2)
	require.Len(t, resp.Alerts, 1)
	assert.Equal(t, "buy", resp.Alerts[0].Signal)
	assert.Len(t, resp.Sectors, 2)
	assert.Equal(t, 3, resp.Stats.Points)
}

func TestValuationFromDomain_EmptyListsEncodeAsArrays(t *testing.T) {
	resp := ValuationFromDomain(&domain.Valuation{Owner: "bob", Reference: "MXN"}, 3)

	body, err := json.Marshal(resp)
	require.NoError(t, err)
	for _, field := range []string{`"holdings":[]`, `"alerts":[]`, `"stale":[]`, `"sectors":[]`} {
		assert.Contains(t, string(body), field)
	}
}

func TestReconciliationFromUseCase(t *testing.T) {
	resp := ReconciliationFromUseCase(&usecase.ReconciliationReport{
		Owner:      "alice",
		Balances:   map[string]decimal.Decimal{"USD": dec("-5")},
		Issues:     []usecase.ReconciliationIssue{{Kind: "negative_balance", Detail: "USD balance is -5"}},
		Consistent: false,
		CheckedAt:  t0,
	})

	assert.False(t, resp.Consistent)
	require.Len(t, resp.Issues, 1)
	assert.Equal(t, "negative_balance", resp.Issues[0].Kind)
}
