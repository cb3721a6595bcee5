// Package yahoo fetches quotes from Yahoo Finance.
package yahoo

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/wnjoon/go-yfinance/pkg/ticker"
	"golang.org/x/sync/errgroup"

	"github.com/iho/gofolio/internal/domain"
	"github.com/iho/gofolio/internal/usecase"
)

const defaultConcurrency = 4

// Snapshot is the raw price data for one symbol. Currency is the code
// Yahoo reports, which may be a minor unit such as GBp.
type Snapshot struct {
	Price         float64
	PreviousClose float64
	Currency      string
}

// Source loads the snapshot of one Yahoo symbol.
type Source func(ctx context.Context, symbol string) (Snapshot, error)

// Provider implements usecase.QuoteProvider. Symbols are fetched in
// parallel; a failed symbol is left out of the result.
type Provider struct {
	source      Source
	concurrency int
	now         func() time.Time
	logger      zerolog.Logger
}

// NewProvider creates a Provider backed by go-yfinance.
func NewProvider(logger zerolog.Logger) *Provider {
	return NewProviderWithSource(TickerSource, logger)
}

// NewProviderWithSource creates a Provider on a custom source.
func NewProviderWithSource(source Source, logger zerolog.Logger) *Provider {
	return &Provider{
		source:      source,
		concurrency: defaultConcurrency,
		now:         func() time.Time { return time.Now().UTC() },
		logger:      logger.With().Str("component", "yahoo").Logger(),
	}
}

// Fetch returns quotes for the symbols it could resolve. It fails only
// when every symbol failed.
func (p *Provider) Fetch(ctx context.Context, symbols []string) (map[string]domain.Quote, error) {
	out := make(map[string]domain.Quote, len(symbols))
	if len(symbols) == 0 {
		return out, nil
	}

	var (
		mu       sync.Mutex
		failures int
		lastErr  error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for _, symbol := range symbols {
		g.Go(func() error {
			snap, err := p.source(gctx, symbol)
			if err == nil && snap.Price <= 0 {
				err = fmt.Errorf("no price for %s", symbol)
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures++
				lastErr = err
				p.logger.Warn().Err(err).Str("symbol", symbol).Msg("quote unavailable")
				return nil
			}
			out[symbol] = p.toQuote(symbol, snap)
			return nil
		})
	}
	_ = g.Wait()

	if failures == len(symbols) {
		return out, fmt.Errorf("all %d quotes failed: %w", failures, lastErr)
	}
	return out, nil
}

func (p *Provider) toQuote(symbol string, snap Snapshot) domain.Quote {
	raw := snap.Currency
	if raw == "" {
		raw = quoteCurrencyOf(symbol)
	}
	currency, divisor := normalizeCurrency(raw)

	price := decimal.NewFromFloat(snap.Price).Div(divisor)
	change := decimal.Zero
	if snap.PreviousClose > 0 {
		prev := decimal.NewFromFloat(snap.PreviousClose).Div(divisor)
		change = price.Sub(prev).Div(prev).Mul(decimal.NewFromInt(100)).Round(4)
	}
	return domain.Quote{
		Symbol:    symbol,
		Price:     price,
		Currency:  currency,
		ChangePct: change,
		FetchedAt: p.now(),
	}
}

// suffixCurrencies maps exchange suffixes to the currency Yahoo quotes
// them in. It is only consulted when the quote carries no currency.
var suffixCurrencies = map[string]string{
	".MX": "MXN",
	".L":  "GBp",
	".IL": "USD",
	".DE": "EUR",
	".F":  "EUR",
	".PA": "EUR",
	".AS": "EUR",
	".BR": "EUR",
	".MI": "EUR",
	".MC": "EUR",
	".LS": "EUR",
	".HE": "EUR",
	".VI": "EUR",
	".IR": "EUR",
	".SW": "CHF",
	".ST": "SEK",
	".CO": "DKK",
	".OL": "NOK",
	".TO": "CAD",
	".V":  "CAD",
	".SA": "BRL",
	".AX": "AUD",
	".NZ": "NZD",
	".T":  "JPY",
	".HK": "HKD",
	".SS": "CNY",
	".SZ": "CNY",
	".KS": "KRW",
	".NS": "INR",
	".BO": "INR",
	".SI": "SGD",
	".JO": "ZAc",
	".TA": "ILA",
}

// minorUnits maps Yahoo's subunit codes to the ISO currency and the
// number of subunits per unit.
var minorUnits = map[string]struct {
	currency string
	per      int64
}{
	"GBp": {"GBP", 100},
	"GBX": {"GBP", 100},
	"GBx": {"GBP", 100},
	"ZAc": {"ZAR", 100},
	"ZAC": {"ZAR", 100},
	"ILA": {"ILS", 100},
}

// normalizeCurrency turns a Yahoo currency code into an ISO code and the
// divisor that converts prices into it.
func normalizeCurrency(code string) (string, decimal.Decimal) {
	code = strings.TrimSpace(code)
	if m, ok := minorUnits[code]; ok {
		return m.currency, decimal.NewFromInt(m.per)
	}
	return domain.NormalizeCurrency(code), decimal.NewFromInt(1)
}

func quoteCurrencyOf(symbol string) string {
	symbol = strings.ToUpper(symbol)
	if strings.HasSuffix(symbol, "=X") {
		pair := strings.TrimSuffix(symbol, "=X")
		if len(pair) == 6 {
			return pair[3:]
		}
	}
	if i := strings.LastIndex(symbol, "."); i > 0 {
		if c, ok := suffixCurrencies[symbol[i:]]; ok {
			return c
		}
	}
	return "USD"
}

// CurrencyOf infers the ISO trading currency of a Yahoo symbol from its
// exchange suffix. FX pairs (USDMXN=X) quote in the second currency.
func CurrencyOf(symbol string) string {
	currency, _ := normalizeCurrency(quoteCurrencyOf(symbol))
	return currency
}

// TickerSource reads a snapshot through go-yfinance, preferring the live
// quote and falling back to the info endpoint.
func TickerSource(ctx context.Context, symbol string) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	t, err := ticker.New(symbol)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to create ticker: %w", err)
	}
	defer t.Close()

	var snap Snapshot
	if quote, err := t.Quote(); err == nil && quote != nil {
		snap.Currency = quote.Currency
		switch {
		case quote.RegularMarketPrice > 0:
			snap.Price = quote.RegularMarketPrice
		case quote.PreMarketPrice > 0:
			snap.Price = quote.PreMarketPrice
		case quote.PostMarketPrice > 0:
			snap.Price = quote.PostMarketPrice
		}
	}

	info, err := t.Info()
	if err == nil && info != nil {
		snap.PreviousClose = info.RegularMarketPreviousClose
		if snap.Currency == "" {
			snap.Currency = info.Currency
		}
		if snap.Price <= 0 && info.CurrentPrice > 0 {
			snap.Price = info.CurrentPrice
		}
	}
	if snap.Price <= 0 {
		if err != nil {
			return Snapshot{}, err
		}
		return Snapshot{}, fmt.Errorf("no price for %s", symbol)
	}
	return snap, nil
}

var _ usecase.QuoteProvider = (*Provider)(nil)
