package eventpublisher

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/gofolio/internal/domain"
)

func TestProcessEventsPublishesQueued(t *testing.T) {
	pub := &stubPublisher{}
	d := newTestDispatcher(pub)

	for _, id := range []string{"evt-1", "evt-2"} {
		if err := d.Publish(context.Background(), domain.Event{ID: id, Type: domain.EventTypeCashMoved}); err != nil {
			t.Fatalf("publish failed: %v", err)
		}
	}

	d.processEvents(context.Background())

	if got := pub.ids(); len(got) != 2 || got[0] != "evt-1" || got[1] != "evt-2" {
		t.Fatalf("expected both events in order, got %v", got)
	}
	if d.Pending() != 0 {
		t.Fatalf("expected nothing pending, got %d", d.Pending())
	}
}

func TestProcessEventsRetriesThenDrops(t *testing.T) {
	pub := &stubPublisher{
		errorsByID: map[string]error{"evt-1": errors.New("broker down")},
	}
	d := newTestDispatcher(pub)
	d.maxAttempts = 2

	_ = d.Publish(context.Background(), domain.Event{ID: "evt-1"})
	_ = d.Publish(context.Background(), domain.Event{ID: "evt-2"})

	d.processEvents(context.Background())
	if got := pub.ids(); len(got) != 1 || got[0] != "evt-2" {
		t.Fatalf("expected only evt-2 to be published, got %v", got)
	}
	if d.Pending() != 1 {
		t.Fatalf("expected failed event kept for retry, got %d pending", d.Pending())
	}

	d.processEvents(context.Background())
	if d.Pending() != 0 {
		t.Fatalf("expected event dropped after max attempts, got %d pending", d.Pending())
	}
}

func TestProcessEventsRespectsBatchSize(t *testing.T) {
	pub := &stubPublisher{}
	d := newTestDispatcher(pub)
	d.batchSize = 2

	for _, id := range []string{"a", "b", "c"} {
		_ = d.Publish(context.Background(), domain.Event{ID: id})
	}

	d.processEvents(context.Background())
	if len(pub.ids()) != 2 || d.Pending() != 1 {
		t.Fatalf("expected one batch of two, got published=%v pending=%d", pub.ids(), d.Pending())
	}
}

func TestPublishQueueFull(t *testing.T) {
	d := NewDispatcher(Config{Publisher: &stubPublisher{}, Logger: zerolog.Nop(), QueueSize: 1})

	if err := d.Publish(context.Background(), domain.Event{ID: "1"}); err != nil {
		t.Fatalf("first publish failed: %v", err)
	}
	if err := d.Publish(context.Background(), domain.Event{ID: "2"}); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
}

func TestStartFlushesOnCancellation(t *testing.T) {
	pub := &stubPublisher{}
	d := newTestDispatcher(pub)
	d.interval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- d.Start(ctx)
	}()

	_ = d.Publish(context.Background(), domain.Event{ID: "late"})
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop after cancel")
	}

	if got := pub.ids(); len(got) != 1 || got[0] != "late" {
		t.Fatalf("expected buffered event flushed on shutdown, got %v", got)
	}
}

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	p := NewLogPublisher(zerolog.New(&buf))

	err := p.Publish(context.Background(), domain.Event{
		ID:      "evt-1",
		Owner:   "alice",
		Type:    domain.EventTypeTradeExecuted,
		Payload: map[string]any{"symbol": "ACME"},
	})
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"payload":{"symbol":"ACME"}`)) {
		t.Fatalf("expected payload in log line, got %s", buf.String())
	}
}

func newTestDispatcher(pub *stubPublisher) *Dispatcher {
	return NewDispatcher(Config{
		Publisher: pub,
		Logger:    zerolog.Nop(),
		BatchSize: 10,
		Interval:  5 * time.Millisecond,
	})
}

type stubPublisher struct {
	mu         sync.Mutex
	published  []domain.Event
	errorsByID map[string]error
}

func (s *stubPublisher) Publish(ctx context.Context, event domain.Event) error {
	if err := s.errorsByID[event.ID]; err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.published = append(s.published, event)
	return nil
}

func (s *stubPublisher) ids() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.published))
	for _, e := range s.published {
		ids = append(ids, e.ID)
	}
	return ids
}
