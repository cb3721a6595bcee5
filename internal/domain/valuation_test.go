package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValuation_Movers(t *testing.T) {
	v := &Valuation{Holdings: []Holding{
		{Symbol: "A", ChangePct: dec("3.5")},
		{Symbol: "B", ChangePct: dec("-2")},
		{Symbol: "C", ChangePct: dec("1")},
		{Symbol: "D", ChangePct: dec("-5")},
		{Symbol: "E", ChangePct: dec("9"), Stale: true},
		{Symbol: "F", ChangePct: decimal.Zero},
	}}

	gainers, losers := v.Movers(2)

	require.Len(t, gainers, 2)
	assert.Equal(t, "A", gainers[0].Symbol)
	assert.Equal(t, "C", gainers[1].Symbol)
	require.Len(t, losers, 2)
	assert.Equal(t, "D", losers[0].Symbol)
	assert.Equal(t, "B", losers[1].Symbol)
}

func TestValuation_Sectors(t *testing.T) {
	v := &Valuation{
		MarketValue: dec("1000"),
		Holdings: []Holding{
			{Symbol: "A", Sector: "Tech", MarketValueRef: dec("600")},
			{Symbol: "B", Sector: "", MarketValueRef: dec("150")},
			{Symbol: "C", Sector: "Tech", MarketValueRef: dec("100")},
			{Symbol: "D", Sector: "Energy", MarketValueRef: dec("150")},
		},
	}

	sectors := v.Sectors()

	require.Len(t, sectors, 3)
	assert.Equal(t, "Tech", sectors[0].Sector)
	assert.True(t, sectors[0].WeightPct.Equal(dec("70")))
	assert.Equal(t, "Energy", sectors[1].Sector)
	assert.Equal(t, DefaultSector, sectors[2].Sector)
}

func TestValuation_StaleAndAlerts(t *testing.T) {
	v := &Valuation{
		Holdings: []Holding{{Symbol: "A"}, {Symbol: "B", Stale: true}},
		Watchlist: []WatchQuote{
			{Entry: WatchlistEntry{Symbol: "X"}, Signal: SignalBuy},
			{Entry: WatchlistEntry{Symbol: "Y"}},
		},
	}

	assert.Equal(t, []string{"B"}, v.StaleSymbols())
	alerts := v.Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, "X", alerts[0].Entry.Symbol)

	_, ok := v.Holding("A")
	assert.True(t, ok)
	_, ok = v.Holding("Z")
	assert.False(t, ok)
}
