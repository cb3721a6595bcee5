package usecase

import (
	"context"
	"time"

	"github.com/iho/gofolio/internal/domain"
)

//go:generate mockgen -source=interfaces.go -destination=mocks/mock_interfaces.go -package=mocks

// Document is one logical ledger file as stored by a DocumentStore.
type Document struct {
	Name      string
	Content   []byte
	Version   int64
	UpdatedAt time.Time
}

// DocumentStore persists whole logical files. Write replaces the file
// content entirely and records message as the change note.
type DocumentStore interface {
	Read(ctx context.Context, name string) (*Document, error)
	Write(ctx context.Context, name string, content []byte, message string) error
	List(ctx context.Context) ([]string, error)
}

// LedgerRepository loads and saves the record streams of one owner.
type LedgerRepository interface {
	Load(ctx context.Context, owner string) (*domain.Ledger, error)
	Save(ctx context.Context, ledger *domain.Ledger, streams []domain.Stream, note string) error
}

// QuoteProvider fetches quotes from a market data source. Symbols it
// cannot resolve are absent from the result.
type QuoteProvider interface {
	Fetch(ctx context.Context, symbols []string) (map[string]domain.Quote, error)
}

// QuoteCache stores recently fetched quotes.
type QuoteCache interface {
	Get(ctx context.Context, symbol string) (domain.Quote, bool)
	Set(ctx context.Context, quote domain.Quote, ttl time.Duration)
}

// Notifier delivers a text message. It never returns an error; failures
// are reported through ok and detail.
type Notifier interface {
	Send(ctx context.Context, text string) (ok bool, detail string)
}

// EventPublisher announces ledger changes.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event) error
}

// Assistant answers a prompt with generated text.
type Assistant interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
}

// SystemClock is the wall clock in UTC.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
