package usecase

import "time"

const (
	// DefaultSellCurrency settles sells that do not name a currency.
	DefaultSellCurrency = "USD"

	// DefaultQuoteTimeout bounds a single provider fetch.
	DefaultQuoteTimeout = 5 * time.Second

	// DefaultQuoteCacheTTL is how long a fetched quote is reused.
	DefaultQuoteCacheTTL = 5 * time.Minute

	// DefaultStoreTimeout bounds a ledger load or save.
	DefaultStoreTimeout = 10 * time.Second

	// IdempotencyKeyTTL is how long idempotency keys are cached
	IdempotencyKeyTTL = 24 * time.Hour

	// ReportMovers is the number of gainers and losers listed in reports.
	ReportMovers = 3
)
