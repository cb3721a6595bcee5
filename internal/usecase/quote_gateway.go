package usecase

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/gofolio/internal/domain"
)

// QuoteGateway resolves symbols to quotes through a provider and a TTL
// cache. It never fails: unresolvable symbols are simply absent.
type QuoteGateway struct {
	provider QuoteProvider
	cache    QuoteCache
	ttl      time.Duration
	timeout  time.Duration
	clock    Clock
	metrics  MetricsRecorder
	logger   zerolog.Logger
}

// QuoteGatewayConfig tunes the gateway.
type QuoteGatewayConfig struct {
	CacheTTL time.Duration
	Timeout  time.Duration
}

// NewQuoteGateway creates a new QuoteGateway. cache may be nil.
func NewQuoteGateway(
	provider QuoteProvider,
	cache QuoteCache,
	cfg QuoteGatewayConfig,
	clock Clock,
	metrics MetricsRecorder,
	logger zerolog.Logger,
) *QuoteGateway {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultQuoteCacheTTL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultQuoteTimeout
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &QuoteGateway{
		provider: provider,
		cache:    cache,
		ttl:      cfg.CacheTTL,
		timeout:  cfg.Timeout,
		clock:    clock,
		metrics:  metrics,
		logger:   logger.With().Str("component", "quote_gateway").Logger(),
	}
}

// Quotes returns the quotes it could resolve for symbols.
func (g *QuoteGateway) Quotes(ctx context.Context, symbols []string) map[string]domain.Quote {
	out := make(map[string]domain.Quote, len(symbols))
	missing := make([]string, 0, len(symbols))
	seen := make(map[string]bool, len(symbols))

	for _, s := range symbols {
		symbol := domain.NormalizeSymbol(s)
		if symbol == "" || seen[symbol] {
			continue
		}
		seen[symbol] = true

		if g.cache != nil {
			if q, ok := g.cache.Get(ctx, symbol); ok && q.IsUsable() {
				g.metrics.ObserveQuoteCache(true)
				out[symbol] = q
				continue
			}
			g.metrics.ObserveQuoteCache(false)
		}
		missing = append(missing, symbol)
	}

	if len(missing) == 0 || g.provider == nil {
		return out
	}
	sort.Strings(missing)

	fetchCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	fetched, err := g.provider.Fetch(fetchCtx, missing)
	if err != nil {
		g.logger.Warn().Err(err).Strs("symbols", missing).Msg("quote provider failed")
	}

	resolved := 0
	now := g.clock.Now()
	for symbol, q := range fetched {
		symbol = domain.NormalizeSymbol(symbol)
		if !seen[symbol] || !q.IsUsable() {
			continue
		}
		q.Symbol = symbol
		if q.FetchedAt.IsZero() {
			q.FetchedAt = now
		}
		if g.cache != nil {
			g.cache.Set(ctx, q, g.ttl)
		}
		out[symbol] = q
		resolved++
	}
	g.metrics.ObserveQuoteFetch(len(missing), resolved, err)

	if resolved < len(missing) {
		g.logger.Debug().Int("requested", len(missing)).Int("resolved", resolved).Msg("partial quote result")
	}

	return out
}

// Quote returns the quote of a single symbol.
func (g *QuoteGateway) Quote(ctx context.Context, symbol string) (domain.Quote, bool) {
	symbol = domain.NormalizeSymbol(symbol)
	q, ok := g.Quotes(ctx, []string{symbol})[symbol]
	return q, ok
}

// TradeCurrency returns the quote currency of symbol, or fallback when the
// symbol cannot be resolved.
func (g *QuoteGateway) TradeCurrency(ctx context.Context, symbol, fallback string) string {
	if q, ok := g.Quote(ctx, symbol); ok && domain.IsKnownCurrency(q.Currency) {
		return domain.NormalizeCurrency(q.Currency)
	}
	return fallback
}

// Rates returns converter refreshed with FX quotes for currencies.
func (g *QuoteGateway) Rates(ctx context.Context, converter *domain.Converter, currencies ...string) *domain.Converter {
	fx := converter.FXSymbols(currencies)
	if len(fx) == 0 {
		return converter
	}
	return converter.WithQuotes(g.Quotes(ctx, fx))
}
