package usecase

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/gofolio/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// ValuationEngine derives a valuation snapshot from a ledger, quotes and a
// converter. It performs no I/O.
type ValuationEngine struct{}

// Compute values ledger at now. Held symbols without a quote are priced at
// their average cost and flagged stale.
func (ValuationEngine) Compute(ledger *domain.Ledger, quotes map[string]domain.Quote, converter *domain.Converter, now time.Time) *domain.Valuation {
	v := &domain.Valuation{
		Owner:     ledger.Owner,
		Reference: converter.Reference(),
		AsOf:      now,
		Cash:      ledger.Balances(),
		Rates:     converter.Rates(),
	}

	v.Holdings = computeHoldings(ledger, quotes, converter)
	for _, h := range v.Holdings {
		v.MarketValue = v.MarketValue.Add(h.MarketValueRef)
		v.Cost = v.Cost.Add(h.CostRef)
	}
	v.Unrealized = v.MarketValue.Sub(v.Cost)

	for _, currency := range sortedCurrencies(v.Cash) {
		v.CashRef = v.CashRef.Add(converter.ToReference(v.Cash[currency], currency))
	}
	v.NetWorth = v.MarketValue.Add(v.CashRef)

	for currency, gain := range ledger.RealizedGains() {
		v.RealizedRef = v.RealizedRef.Add(converter.ToReference(gain, currency))
	}
	for currency, amount := range ledger.DividendTotals() {
		v.DividendsRef = v.DividendsRef.Add(converter.ToReference(amount, currency))
	}

	if prev, ok := domain.PreviousPoint(ledger.History, domain.DateOf(now)); ok && prev.NetWorth.IsPositive() {
		v.Change24h = v.NetWorth.Sub(prev.NetWorth)
		v.Change24hPct = v.Change24h.Div(prev.NetWorth).Mul(hundred)
	}

	for _, w := range ledger.Watchlist {
		wq := domain.WatchQuote{Entry: w}
		if q, ok := quotes[w.Symbol]; ok && q.IsUsable() {
			wq.Price = q.Price
			wq.Currency = q.Currency
			wq.ChangePct = q.ChangePct
			wq.Signal = w.Signal(q.Price)
			wq.Available = true
		}
		v.Watchlist = append(v.Watchlist, wq)
	}

	return v
}

func computeHoldings(ledger *domain.Ledger, quotes map[string]domain.Quote, converter *domain.Converter) []domain.Holding {
	type group struct {
		quantity decimal.Decimal
		cost     decimal.Decimal
		currency string
		sector   string
	}

	groups := make(map[string]*group)
	for _, lot := range ledger.Lots {
		g, ok := groups[lot.Symbol]
		if !ok {
			g = &group{}
			groups[lot.Symbol] = g
		}
		g.quantity = g.quantity.Add(lot.Quantity)
		g.cost = g.cost.Add(lot.Cost())
		if g.currency == "" {
			g.currency = lot.Currency
		}
		if g.sector == "" || g.sector == domain.DefaultSector {
			g.sector = lot.Sector
		}
	}

	holdings := make([]domain.Holding, 0, len(groups))
	for symbol, g := range groups {
		if !g.quantity.IsPositive() {
			continue
		}

		lotCurrency := g.currency
		if lotCurrency == "" {
			lotCurrency = converter.Reference()
		}

		h := domain.Holding{
			Symbol:      symbol,
			Sector:      g.sector,
			Quantity:    g.quantity,
			Cost:        g.cost,
			AverageCost: g.cost.Div(g.quantity),
			Currency:    lotCurrency,
		}

		q, ok := quotes[symbol]
		if ok && q.IsUsable() {
			h.Price = q.Price
			h.ChangePct = q.ChangePct
			if q.Currency != "" {
				h.Currency = domain.NormalizeCurrency(q.Currency)
			}
		} else {
			h.Price = h.AverageCost
			h.Stale = true
		}

		h.MarketValue = h.Quantity.Mul(h.Price)
		h.UnrealizedPnL = h.MarketValue.Sub(converter.Convert(h.Cost, lotCurrency, h.Currency))
		h.MarketValueRef = converter.ToReference(h.MarketValue, h.Currency)
		h.CostRef = converter.ToReference(h.Cost, lotCurrency)
		h.UnrealizedPnLRef = h.MarketValueRef.Sub(h.CostRef)
		if h.Sector == "" {
			h.Sector = domain.DefaultSector
		}

		holdings = append(holdings, h)
	}

	sort.Slice(holdings, func(i, j int) bool { return holdings[i].Symbol < holdings[j].Symbol })
	return holdings
}

func sortedCurrencies(m map[string]decimal.Decimal) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ValuationUseCase computes valuations and maintains the value history.
type ValuationUseCase struct {
	repo      LedgerRepository
	locks     *OwnerLocks
	gateway   *QuoteGateway
	converter *domain.Converter
	engine    ValuationEngine
	clock     Clock
	metrics   MetricsRecorder
	logger    zerolog.Logger
}

// NewValuationUseCase creates a new ValuationUseCase. locks must be the
// set shared with PortfolioUseCase; nil gives the use case a private set.
func NewValuationUseCase(
	repo LedgerRepository,
	locks *OwnerLocks,
	gateway *QuoteGateway,
	converter *domain.Converter,
	clock Clock,
	metrics MetricsRecorder,
	logger zerolog.Logger,
) *ValuationUseCase {
	if clock == nil {
		clock = SystemClock{}
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}
	if locks == nil {
		locks = NewOwnerLocks()
	}
	return &ValuationUseCase{
		repo:      repo,
		locks:     locks,
		gateway:   gateway,
		converter: converter,
		clock:     clock,
		metrics:   metrics,
		logger:    logger.With().Str("component", "valuation").Logger(),
	}
}

// ComputeValuation values the owner's portfolio with fresh quotes and
// records today's history point. It only fails on an invalid owner; every
// missing input degrades to a fallback. The owner's lock is held from the
// load to the history save.
func (uc *ValuationUseCase) ComputeValuation(ctx context.Context, owner string) (*domain.Valuation, error) {
	if err := domain.ValidateOwner(owner); err != nil {
		return nil, err
	}
	start := time.Now()

	unlock := uc.locks.Lock(owner)
	defer unlock()

	ledger, readOK := uc.loadForRead(ctx, owner)

	symbols := ledger.Symbols()
	symbols = append(symbols, uc.converter.FXSymbols(ledger.Currencies())...)

	quotes := map[string]domain.Quote{}
	if uc.gateway != nil && len(symbols) > 0 {
		quotes = uc.gateway.Quotes(ctx, symbols)
	}
	converter := uc.converter.WithQuotes(quotes)

	now := uc.clock.Now()
	v := uc.engine.Compute(ledger, quotes, converter, now)

	next := ledger.Clone()
	next.History = domain.UpsertHistory(next.History, domain.HistoryPoint{
		Owner:    owner,
		Date:     domain.DateOf(now),
		NetWorth: v.NetWorth,
	})
	v.Stats = domain.ComputeHistoryStats(next.History)

	if readOK {
		if err := uc.repo.Save(ctx, next, []domain.Stream{domain.StreamHistory}, "valuation "+domain.DateOf(now)); err != nil {
			uc.metrics.ObserveStoreFailure("history")
			uc.logger.Warn().Err(err).Str("owner", owner).Msg("failed to persist history point")
		}
	}

	if stale := v.StaleSymbols(); len(stale) > 0 {
		uc.logger.Warn().
			Err(domain.ErrQuoteUnavailable).
			Str("owner", owner).
			Strs("symbols", stale).
			Msg("valued at cost basis")
	}

	uc.metrics.ObserveValuation(owner, v.NetWorth.InexactFloat64(), time.Since(start))
	return v, nil
}

// loadForRead returns the owner's ledger, or an empty one when the store
// cannot be read. ok is false in the latter case.
func (uc *ValuationUseCase) loadForRead(ctx context.Context, owner string) (*domain.Ledger, bool) {
	ledger, err := uc.repo.Load(ctx, owner)
	if err != nil {
		uc.logger.Warn().Err(err).Str("owner", owner).Msg("ledger unreadable, valuing an empty ledger")
		return domain.NewLedger(owner), false
	}
	return ledger, true
}

// IsStorageError reports whether err came from the ledger store.
func IsStorageError(err error) bool {
	return errors.Is(err, domain.ErrStorageReadFailed) || errors.Is(err, domain.ErrStorageWriteFailed)
}
