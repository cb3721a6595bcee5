package domain

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Stream names one logical ledger file.
type Stream string

const (
	StreamPositions Stream = "positions"
	StreamCash      Stream = "cash"
	StreamSales     Stream = "sales"
	StreamDividends Stream = "dividends"
	StreamWatchlist Stream = "watchlist"
	StreamHistory   Stream = "history"
)

// AllStreams lists every logical ledger file in load order.
var AllStreams = []Stream{
	StreamPositions,
	StreamCash,
	StreamSales,
	StreamDividends,
	StreamWatchlist,
	StreamHistory,
}

// Ledger holds every record stream of a single owner.
type Ledger struct {
	Owner     string
	Lots      []Lot
	Cash      []CashRecord
	Sales     []SaleRecord
	Dividends []Dividend
	Watchlist []WatchlistEntry
	History   []HistoryPoint
}

// NewLedger returns an empty ledger for owner.
func NewLedger(owner string) *Ledger {
	return &Ledger{Owner: owner}
}

// Clone returns a deep copy of l.
func (l *Ledger) Clone() *Ledger {
	return &Ledger{
		Owner:     l.Owner,
		Lots:      append([]Lot(nil), l.Lots...),
		Cash:      append([]CashRecord(nil), l.Cash...),
		Sales:     append([]SaleRecord(nil), l.Sales...),
		Dividends: append([]Dividend(nil), l.Dividends...),
		Watchlist: append([]WatchlistEntry(nil), l.Watchlist...),
		History:   append([]HistoryPoint(nil), l.History...),
	}
}

// IsEmpty reports whether the ledger has no records at all.
func (l *Ledger) IsEmpty() bool {
	return len(l.Lots) == 0 && len(l.Cash) == 0 && len(l.Sales) == 0 &&
		len(l.Dividends) == 0 && len(l.Watchlist) == 0 && len(l.History) == 0
}

// Balance returns the cash balance in currency.
func (l *Ledger) Balance(currency string) decimal.Decimal {
	currency = strings.ToUpper(currency)
	total := decimal.Zero
	for _, c := range l.Cash {
		if c.Currency == currency {
			total = total.Add(c.Amount)
		}
	}
	return total
}

// Balances returns the cash balance of every currency with records.
func (l *Ledger) Balances() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	for _, c := range l.Cash {
		out[c.Currency] = out[c.Currency].Add(c.Amount)
	}
	return out
}

// Currencies returns every currency seen in lots or cash, sorted.
func (l *Ledger) Currencies() []string {
	seen := make(map[string]bool)
	for _, lot := range l.Lots {
		if lot.Currency != "" {
			seen[lot.Currency] = true
		}
	}
	for _, c := range l.Cash {
		if c.Currency != "" {
			seen[c.Currency] = true
		}
	}
	return sortedKeys(seen)
}

// Shares returns the total open quantity of symbol.
func (l *Ledger) Shares(symbol string) decimal.Decimal {
	total := decimal.Zero
	for _, lot := range l.Lots {
		if lot.Symbol == symbol {
			total = total.Add(lot.Quantity)
		}
	}
	return total
}

// Symbols returns the union of held and watched symbols, sorted.
func (l *Ledger) Symbols() []string {
	seen := make(map[string]bool)
	for _, lot := range l.Lots {
		seen[lot.Symbol] = true
	}
	for _, w := range l.Watchlist {
		seen[w.Symbol] = true
	}
	return sortedKeys(seen)
}

// LotsFor returns the lots of symbol oldest first. Lots with equal
// timestamps keep their ledger order.
func (l *Ledger) LotsFor(symbol string) []Lot {
	var out []Lot
	for _, lot := range l.Lots {
		if lot.Symbol == symbol {
			out = append(out, lot)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// ConsumeFIFO removes quantity shares of symbol from the oldest lots and
// returns the realized gain at price. Fully consumed lots are dropped and a
// partially consumed lot is shrunk in place. The ledger is left untouched
// when fewer than quantity shares are held.
func (l *Ledger) ConsumeFIFO(symbol string, quantity, price decimal.Decimal) (decimal.Decimal, error) {
	held := l.Shares(symbol)
	if held.LessThan(quantity) {
		return decimal.Zero, &InsufficientSharesError{Symbol: symbol, Requested: quantity, Held: held}
	}

	order := make([]int, 0)
	for i, lot := range l.Lots {
		if lot.Symbol == symbol {
			order = append(order, i)
		}
	}
	sort.SliceStable(order, func(a, b int) bool {
		return l.Lots[order[a]].CreatedAt.Before(l.Lots[order[b]].CreatedAt)
	})

	lots := append([]Lot(nil), l.Lots...)
	remaining := quantity
	realized := decimal.Zero
	for _, i := range order {
		if !remaining.IsPositive() {
			break
		}
		slice := decimal.Min(lots[i].Quantity, remaining)
		realized = realized.Add(price.Sub(lots[i].Price).Mul(slice))
		lots[i].Quantity = lots[i].Quantity.Sub(slice)
		remaining = remaining.Sub(slice)
	}

	kept := make([]Lot, 0, len(lots))
	for _, lot := range lots {
		if lot.Symbol == symbol && !lot.Quantity.IsPositive() {
			continue
		}
		kept = append(kept, lot)
	}
	l.Lots = kept

	return realized, nil
}

// Watch returns the watchlist entry of symbol.
func (l *Ledger) Watch(symbol string) (WatchlistEntry, bool) {
	for _, w := range l.Watchlist {
		if w.Symbol == symbol {
			return w, true
		}
	}
	return WatchlistEntry{}, false
}

// UpsertWatch adds entry or updates the existing entry of the same symbol.
// It reports whether a new entry was added.
func (l *Ledger) UpsertWatch(entry WatchlistEntry) bool {
	for i, w := range l.Watchlist {
		if w.Symbol == entry.Symbol {
			entry.CreatedAt = w.CreatedAt
			l.Watchlist[i] = entry
			return false
		}
	}
	l.Watchlist = append(l.Watchlist, entry)
	return true
}

// RemoveWatch drops the watchlist entry of symbol.
func (l *Ledger) RemoveWatch(symbol string) error {
	for i, w := range l.Watchlist {
		if w.Symbol == symbol {
			l.Watchlist = append(l.Watchlist[:i:i], l.Watchlist[i+1:]...)
			return nil
		}
	}
	return ErrWatchNotFound
}

// RealizedGains returns the realized gain of all sales per currency.
func (l *Ledger) RealizedGains() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	for _, s := range l.Sales {
		out[s.Currency] = out[s.Currency].Add(s.RealizedGain)
	}
	return out
}

// DividendTotals returns the dividends received per currency.
func (l *Ledger) DividendTotals() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	for _, d := range l.Dividends {
		out[d.Currency] = out[d.Currency].Add(d.Amount)
	}
	return out
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
