package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Holding is the aggregated position in one symbol. Cost and AverageCost
// are in the currency the lots were bought in. Price, MarketValue and
// UnrealizedPnL use Currency, the quote currency. The Ref fields are in
// the reference currency.
type Holding struct {
	Symbol           string
	Currency         string
	Sector           string
	Quantity         decimal.Decimal
	AverageCost      decimal.Decimal
	Cost             decimal.Decimal
	Price            decimal.Decimal
	MarketValue      decimal.Decimal
	UnrealizedPnL    decimal.Decimal
	CostRef          decimal.Decimal
	MarketValueRef   decimal.Decimal
	UnrealizedPnLRef decimal.Decimal
	ChangePct        decimal.Decimal
	// Stale is set when no quote was available and the price fell back to
	// average cost.
	Stale bool
}

// WatchQuote pairs a watchlist entry with its latest quote.
type WatchQuote struct {
	Entry     WatchlistEntry
	Price     decimal.Decimal
	Currency  string
	ChangePct decimal.Decimal
	Signal    Signal
	Available bool
}

// SectorWeight is the reference value held in one sector.
type SectorWeight struct {
	Sector    string
	Value     decimal.Decimal
	WeightPct decimal.Decimal
}

// Valuation is a point-in-time snapshot of an owner's portfolio.
// NetWorth always equals the sum of MarketValueRef over Holdings plus CashRef.
type Valuation struct {
	Owner        string
	Reference    string
	AsOf         time.Time
	Holdings     []Holding
	Watchlist    []WatchQuote
	MarketValue  decimal.Decimal
	Cost         decimal.Decimal
	Unrealized   decimal.Decimal
	Cash         map[string]decimal.Decimal
	CashRef      decimal.Decimal
	NetWorth     decimal.Decimal
	Change24h    decimal.Decimal
	Change24hPct decimal.Decimal
	RealizedRef  decimal.Decimal
	DividendsRef decimal.Decimal
	Rates        map[string]decimal.Decimal
	Stats        HistoryStats
}

// Movers returns up to n best and n worst holdings by day change.
func (v *Valuation) Movers(n int) (gainers, losers []Holding) {
	if n <= 0 || len(v.Holdings) == 0 {
		return nil, nil
	}

	ranked := make([]Holding, 0, len(v.Holdings))
	for _, h := range v.Holdings {
		if !h.Stale {
			ranked = append(ranked, h)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].ChangePct.GreaterThan(ranked[j].ChangePct) })

	for _, h := range ranked {
		if len(gainers) == n {
			break
		}
		if h.ChangePct.IsPositive() {
			gainers = append(gainers, h)
		}
	}
	for i := len(ranked) - 1; i >= 0; i-- {
		if len(losers) == n {
			break
		}
		if ranked[i].ChangePct.IsNegative() {
			losers = append(losers, ranked[i])
		}
	}
	return gainers, losers
}

// Sectors returns the market value per sector, largest first. Weights are
// relative to the total market value of holdings.
func (v *Valuation) Sectors() []SectorWeight {
	totals := make(map[string]decimal.Decimal)
	for _, h := range v.Holdings {
		sector := h.Sector
		if sector == "" {
			sector = DefaultSector
		}
		totals[sector] = totals[sector].Add(h.MarketValueRef)
	}

	out := make([]SectorWeight, 0, len(totals))
	for sector, value := range totals {
		w := SectorWeight{Sector: sector, Value: value}
		if v.MarketValue.IsPositive() {
			w.WeightPct = value.Div(v.MarketValue).Mul(decimal.NewFromInt(100))
		}
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Value.Equal(out[j].Value) {
			return out[i].Sector < out[j].Sector
		}
		return out[i].Value.GreaterThan(out[j].Value)
	})
	return out
}

// StaleSymbols lists holdings valued at cost for lack of a quote.
func (v *Valuation) StaleSymbols() []string {
	var out []string
	for _, h := range v.Holdings {
		if h.Stale {
			out = append(out, h.Symbol)
		}
	}
	return out
}

// Alerts returns the watchlist entries whose targets were hit.
func (v *Valuation) Alerts() []WatchQuote {
	var out []WatchQuote
	for _, w := range v.Watchlist {
		if w.Signal != SignalNone {
			out = append(out, w)
		}
	}
	return out
}

// Holding returns the holding of symbol.
func (v *Valuation) Holding(symbol string) (Holding, bool) {
	for _, h := range v.Holdings {
		if h.Symbol == symbol {
			return h, true
		}
	}
	return Holding{}, false
}
