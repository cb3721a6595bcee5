package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/iho/gofolio/internal/domain"
	"github.com/iho/gofolio/internal/usecase"
)

// cachedQuote is the msgpack form of a quote.
type cachedQuote struct {
	Symbol    string    `msgpack:"s"`
	Price     string    `msgpack:"p"`
	Currency  string    `msgpack:"c"`
	ChangePct string    `msgpack:"d"`
	FetchedAt time.Time `msgpack:"t"`
}

// QuoteCache implements usecase.QuoteCache using Redis. Entries are
// msgpack encoded and expire through the key TTL.
type QuoteCache struct {
	client *redis.Client
	prefix string
	logger zerolog.Logger
}

// NewQuoteCache creates a new QuoteCache.
func NewQuoteCache(client *redis.Client, logger zerolog.Logger) *QuoteCache {
	return &QuoteCache{
		client: client,
		prefix: "quote:",
		logger: logger.With().Str("component", "quote_cache").Logger(),
	}
}

// Get returns the cached quote for symbol. Any Redis failure is a miss.
func (c *QuoteCache) Get(ctx context.Context, symbol string) (domain.Quote, bool) {
	raw, err := c.client.Get(ctx, c.prefix+symbol).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn().Err(err).Str("symbol", symbol).Msg("quote cache read failed")
		}
		return domain.Quote{}, false
	}

	var cq cachedQuote
	if err := msgpack.Unmarshal(raw, &cq); err != nil {
		c.logger.Warn().Err(err).Str("symbol", symbol).Msg("discarding undecodable cached quote")
		return domain.Quote{}, false
	}
	price, err := decimal.NewFromString(cq.Price)
	if err != nil {
		return domain.Quote{}, false
	}
	change, err := decimal.NewFromString(cq.ChangePct)
	if err != nil {
		change = decimal.Zero
	}
	return domain.Quote{
		Symbol:    cq.Symbol,
		Price:     price,
		Currency:  cq.Currency,
		ChangePct: change,
		FetchedAt: cq.FetchedAt.UTC(),
	}, true
}

// Set stores quote under its symbol for ttl.
func (c *QuoteCache) Set(ctx context.Context, quote domain.Quote, ttl time.Duration) {
	raw, err := msgpack.Marshal(cachedQuote{
		Symbol:    quote.Symbol,
		Price:     quote.Price.String(),
		Currency:  quote.Currency,
		ChangePct: quote.ChangePct.String(),
		FetchedAt: quote.FetchedAt,
	})
	if err != nil {
		c.logger.Warn().Err(err).Str("symbol", quote.Symbol).Msg("quote encode failed")
		return
	}
	if err := c.client.Set(ctx, c.prefix+quote.Symbol, raw, ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Str("symbol", quote.Symbol).Msg("quote cache write failed")
	}
}

var _ usecase.QuoteCache = (*QuoteCache)(nil)
