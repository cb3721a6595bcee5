package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/gofolio/internal/domain"
)

func TestQuoteCache_SetGet(t *testing.T) {
	cache, err := NewQuoteCache(100)
	require.NoError(t, err)
	defer cache.Close()
	ctx := context.Background()

	quote := domain.Quote{Symbol: "ACME", Price: decimal.NewFromInt(150), Currency: "USD"}
	cache.Set(ctx, quote, time.Minute)
	cache.Wait()

	got, ok := cache.Get(ctx, "ACME")
	require.True(t, ok)
	assert.Equal(t, quote, got)

	_, ok = cache.Get(ctx, "MSFT")
	assert.False(t, ok)
}

func TestQuoteCache_Expires(t *testing.T) {
	cache, err := NewQuoteCache(0)
	require.NoError(t, err)
	defer cache.Close()
	ctx := context.Background()

	cache.Set(ctx, domain.Quote{Symbol: "ACME", Price: decimal.NewFromInt(1)}, 10*time.Millisecond)
	cache.Wait()

	assert.Eventually(t, func() bool {
		_, ok := cache.Get(ctx, "ACME")
		return !ok
	}, time.Second, 5*time.Millisecond)
}
