package mocks

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/iho/gofolio/internal/domain"
	"github.com/iho/gofolio/internal/usecase"
)

// FakeLedgerRepository is an in-memory LedgerRepository. Save replaces only
// the named streams, the way the document-backed repository does.
type FakeLedgerRepository struct {
	mu      sync.RWMutex
	ledgers map[string]*domain.Ledger
	saves   int

	LoadFunc func(ctx context.Context, owner string) (*domain.Ledger, error)
	SaveFunc func(ctx context.Context, ledger *domain.Ledger, streams []domain.Stream, note string) error
}

func NewFakeLedgerRepository() *FakeLedgerRepository {
	return &FakeLedgerRepository{ledgers: make(map[string]*domain.Ledger)}
}

func (m *FakeLedgerRepository) Load(ctx context.Context, owner string) (*domain.Ledger, error) {
	if m.LoadFunc != nil {
		return m.LoadFunc(ctx, owner)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if l, ok := m.ledgers[owner]; ok {
		return l.Clone(), nil
	}
	return domain.NewLedger(owner), nil
}

func (m *FakeLedgerRepository) Save(ctx context.Context, ledger *domain.Ledger, streams []domain.Stream, note string) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, ledger, streams, note)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++

	current, ok := m.ledgers[ledger.Owner]
	if !ok {
		current = domain.NewLedger(ledger.Owner)
	}
	next := current.Clone()
	for _, s := range streams {
		switch s {
		case domain.StreamPositions:
			next.Lots = append([]domain.Lot(nil), ledger.Lots...)
		case domain.StreamCash:
			next.Cash = append([]domain.CashRecord(nil), ledger.Cash...)
		case domain.StreamSales:
			next.Sales = append([]domain.SaleRecord(nil), ledger.Sales...)
		case domain.StreamDividends:
			next.Dividends = append([]domain.Dividend(nil), ledger.Dividends...)
		case domain.StreamWatchlist:
			next.Watchlist = append([]domain.WatchlistEntry(nil), ledger.Watchlist...)
		case domain.StreamHistory:
			next.History = append([]domain.HistoryPoint(nil), ledger.History...)
		}
	}
	m.ledgers[ledger.Owner] = next
	return nil
}

// Put seeds the stored ledger of an owner.
func (m *FakeLedgerRepository) Put(ledger *domain.Ledger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ledgers[ledger.Owner] = ledger.Clone()
}

// Stored returns the stored ledger of owner, or nil.
func (m *FakeLedgerRepository) Stored(owner string) *domain.Ledger {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if l, ok := m.ledgers[owner]; ok {
		return l.Clone()
	}
	return nil
}

// Saves returns how many successful saves were recorded.
func (m *FakeLedgerRepository) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}

// FakeQuoteProvider serves quotes from a fixed table.
type FakeQuoteProvider struct {
	mu     sync.Mutex
	quotes map[string]domain.Quote
	calls  [][]string

	FetchFunc func(ctx context.Context, symbols []string) (map[string]domain.Quote, error)
}

func NewFakeQuoteProvider(quotes ...domain.Quote) *FakeQuoteProvider {
	m := &FakeQuoteProvider{quotes: make(map[string]domain.Quote)}
	for _, q := range quotes {
		m.quotes[q.Symbol] = q
	}
	return m
}

func (m *FakeQuoteProvider) Fetch(ctx context.Context, symbols []string) (map[string]domain.Quote, error) {
	m.mu.Lock()
	m.calls = append(m.calls, append([]string(nil), symbols...))
	m.mu.Unlock()

	if m.FetchFunc != nil {
		return m.FetchFunc(ctx, symbols)
	}
	out := make(map[string]domain.Quote)
	for _, s := range symbols {
		if q, ok := m.quotes[s]; ok {
			out[s] = q
		}
	}
	return out, nil
}

// Calls returns the symbol batches requested so far.
func (m *FakeQuoteProvider) Calls() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]string(nil), m.calls...)
}

// FakeQuoteCache is a map-backed QuoteCache that ignores TTLs.
type FakeQuoteCache struct {
	mu     sync.Mutex
	quotes map[string]domain.Quote
}

func NewFakeQuoteCache() *FakeQuoteCache {
	return &FakeQuoteCache{quotes: make(map[string]domain.Quote)}
}

func (m *FakeQuoteCache) Get(_ context.Context, symbol string) (domain.Quote, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.quotes[symbol]
	return q, ok
}

func (m *FakeQuoteCache) Set(_ context.Context, quote domain.Quote, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quotes[quote.Symbol] = quote
}

// Symbols returns the cached symbols, sorted.
func (m *FakeQuoteCache) Symbols() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.quotes))
	for s := range m.quotes {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// FakeNotifier records every message it is asked to send.
type FakeNotifier struct {
	mu       sync.Mutex
	Messages []string

	SendFunc func(ctx context.Context, text string) (bool, string)
}

func (m *FakeNotifier) Send(ctx context.Context, text string) (bool, string) {
	m.mu.Lock()
	m.Messages = append(m.Messages, text)
	m.mu.Unlock()
	if m.SendFunc != nil {
		return m.SendFunc(ctx, text)
	}
	return true, "sent"
}

// FakeEventPublisher records published events.
type FakeEventPublisher struct {
	mu     sync.Mutex
	Events []domain.Event

	PublishFunc func(ctx context.Context, event domain.Event) error
}

func (m *FakeEventPublisher) Publish(ctx context.Context, event domain.Event) error {
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, event)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, event)
	return nil
}

// FakeAssistant answers with a canned reply and keeps the last prompt.
type FakeAssistant struct {
	Reply      string
	LastPrompt string

	GenerateFunc func(ctx context.Context, prompt string) (string, error)
}

func (m *FakeAssistant) Generate(ctx context.Context, prompt string) (string, error) {
	m.LastPrompt = prompt
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, prompt)
	}
	return m.Reply, nil
}

// SequenceIDGenerator returns id-1, id-2, ...
type SequenceIDGenerator struct {
	mu      sync.Mutex
	counter int
}

func (m *SequenceIDGenerator) Generate() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counter++
	return fmt.Sprintf("id-%d", m.counter)
}

// FixedClock always returns T until advanced.
type FixedClock struct {
	mu sync.Mutex
	T  time.Time
}

func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.T
}

// Advance moves the clock forward by d.
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.T = c.T.Add(d)
}

// FakeIdempotencyStore is an in-memory IdempotencyStore.
type FakeIdempotencyStore struct {
	mu   sync.Mutex
	keys map[string][]byte
}

func NewFakeIdempotencyStore() *FakeIdempotencyStore {
	return &FakeIdempotencyStore{keys: make(map[string][]byte)}
}

func (m *FakeIdempotencyStore) CheckAndSet(_ context.Context, key string, response []byte, _ time.Duration) (bool, []byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.keys[key]; ok {
		return true, v, nil
	}
	m.keys[key] = response
	return false, nil, nil
}

func (m *FakeIdempotencyStore) Update(_ context.Context, key string, response []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[key] = response
	return nil
}

// FakeDocumentStore keeps documents in memory and counts versions.
type FakeDocumentStore struct {
	mu   sync.RWMutex
	docs map[string]*usecase.Document

	ReadFunc  func(ctx context.Context, name string) (*usecase.Document, error)
	WriteFunc func(ctx context.Context, name string, content []byte, message string) error
}

func NewFakeDocumentStore() *FakeDocumentStore {
	return &FakeDocumentStore{docs: make(map[string]*usecase.Document)}
}

func (m *FakeDocumentStore) Read(ctx context.Context, name string) (*usecase.Document, error) {
	if m.ReadFunc != nil {
		return m.ReadFunc(ctx, name)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[name]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	cp := *doc
	cp.Content = append([]byte(nil), doc.Content...)
	return &cp, nil
}

func (m *FakeDocumentStore) Write(ctx context.Context, name string, content []byte, message string) error {
	if m.WriteFunc != nil {
		return m.WriteFunc(ctx, name, content, message)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	version := int64(1)
	if doc, ok := m.docs[name]; ok {
		version = doc.Version + 1
	}
	m.docs[name] = &usecase.Document{
		Name:    name,
		Content: append([]byte(nil), content...),
		Version: version,
	}
	return nil
}

func (m *FakeDocumentStore) List(context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.docs))
	for name := range m.docs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

// Put stores content under name without bumping the version.
func (m *FakeDocumentStore) Put(name, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[name] = &usecase.Document{Name: name, Content: []byte(content), Version: 1}
}

// Content returns the stored content of name.
func (m *FakeDocumentStore) Content(name string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if doc, ok := m.docs[name]; ok {
		return string(doc.Content)
	}
	return ""
}

var (
	_ usecase.DocumentStore    = (*FakeDocumentStore)(nil)
	_ usecase.LedgerRepository = (*FakeLedgerRepository)(nil)
	_ usecase.QuoteProvider    = (*FakeQuoteProvider)(nil)
	_ usecase.QuoteCache       = (*FakeQuoteCache)(nil)
	_ usecase.Notifier         = (*FakeNotifier)(nil)
	_ usecase.EventPublisher   = (*FakeEventPublisher)(nil)
	_ usecase.Assistant        = (*FakeAssistant)(nil)
	_ usecase.IDGenerator      = (*SequenceIDGenerator)(nil)
	_ usecase.Clock            = (*FixedClock)(nil)
	_ usecase.IdempotencyStore = (*FakeIdempotencyStore)(nil)
)
