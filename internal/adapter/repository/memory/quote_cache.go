// Package memory holds in-process adapters.
package memory

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/iho/gofolio/internal/domain"
	"github.com/iho/gofolio/internal/usecase"
)

// QuoteCache implements usecase.QuoteCache on a ristretto cache. Every
// quote costs 1, so maxEntries bounds the number of symbols kept.
type QuoteCache struct {
	c *ristretto.Cache
}

// NewQuoteCache creates a cache holding at most maxEntries quotes.
func NewQuoteCache(maxEntries int64) (*QuoteCache, error) {
	if maxEntries <= 0 {
		maxEntries = 10_000
	}
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &QuoteCache{c: c}, nil
}

// Get returns the cached quote for symbol.
func (q *QuoteCache) Get(_ context.Context, symbol string) (domain.Quote, bool) {
	v, ok := q.c.Get(symbol)
	if !ok {
		return domain.Quote{}, false
	}
	quote, ok := v.(domain.Quote)
	return quote, ok
}

// Set stores quote for ttl. Writes become visible asynchronously.
func (q *QuoteCache) Set(_ context.Context, quote domain.Quote, ttl time.Duration) {
	q.c.SetWithTTL(quote.Symbol, quote, 1, ttl)
}

// Wait blocks until buffered writes are applied.
func (q *QuoteCache) Wait() {
	q.c.Wait()
}

// Close stops the cache's background goroutines.
func (q *QuoteCache) Close() {
	q.c.Close()
}

var _ usecase.QuoteCache = (*QuoteCache)(nil)
