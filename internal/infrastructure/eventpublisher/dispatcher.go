// Package eventpublisher decouples ledger operations from event delivery.
package eventpublisher

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/gofolio/internal/domain"
	"github.com/iho/gofolio/internal/usecase"
)

// ErrQueueFull is returned when an event cannot be buffered.
var ErrQueueFull = errors.New("event queue is full")

// Publisher delivers one event to an external system.
type Publisher interface {
	Publish(ctx context.Context, event domain.Event) error
}

type pendingEvent struct {
	event    domain.Event
	attempts int
}

// Dispatcher implements usecase.EventPublisher. Publish only buffers the
// event; Start delivers buffered events in batches and retries failed
// ones up to MaxAttempts.
type Dispatcher struct {
	queue       chan domain.Event
	publisher   Publisher
	logger      zerolog.Logger
	batchSize   int
	interval    time.Duration
	maxAttempts int

	// owned by the Start goroutine
	retry []pendingEvent
}

// Config for Dispatcher.
type Config struct {
	Publisher   Publisher
	Logger      zerolog.Logger
	QueueSize   int           // Events buffered before Publish fails
	BatchSize   int           // Events delivered per tick
	Interval    time.Duration // Delivery interval
	MaxAttempts int           // Deliveries tried before an event is dropped
}

// NewDispatcher creates a new Dispatcher.
func NewDispatcher(cfg Config) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}

	return &Dispatcher{
		queue:       make(chan domain.Event, cfg.QueueSize),
		publisher:   cfg.Publisher,
		logger:      cfg.Logger.With().Str("component", "event_dispatcher").Logger(),
		batchSize:   cfg.BatchSize,
		interval:    cfg.Interval,
		maxAttempts: cfg.MaxAttempts,
	}
}

// Publish buffers event for delivery.
func (d *Dispatcher) Publish(ctx context.Context, event domain.Event) error {
	select {
	case d.queue <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

// Start delivers events until ctx is cancelled, then makes one last
// delivery attempt for whatever is still buffered.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.logger.Info().Int("batch_size", d.batchSize).Dur("interval", d.interval).Msg("event dispatcher started")

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			d.flush(flushCtx)
			cancel()
			d.logger.Info().Msg("event dispatcher shutting down")
			return ctx.Err()
		case <-ticker.C:
			d.processEvents(ctx)
		}
	}
}

// processEvents delivers the retry backlog plus one batch from the queue.
func (d *Dispatcher) processEvents(ctx context.Context) {
	batch := d.retry
	d.retry = nil

drain:
	for len(batch) < d.batchSize {
		select {
		case event := <-d.queue:
			batch = append(batch, pendingEvent{event: event})
		default:
			break drain
		}
	}

	for _, p := range batch {
		if err := d.publisher.Publish(ctx, p.event); err != nil {
			p.attempts++
			if p.attempts >= d.maxAttempts {
				d.logger.Error().Err(err).
					Str("event_id", p.event.ID).
					Str("event_type", p.event.Type).
					Int("attempts", p.attempts).
					Msg("dropping event after repeated failures")
				continue
			}
			d.logger.Warn().Err(err).Str("event_id", p.event.ID).Msg("failed to publish event")
			d.retry = append(d.retry, p)
			continue
		}
		d.logger.Debug().Str("event_id", p.event.ID).Str("event_type", p.event.Type).Msg("event published")
	}
}

func (d *Dispatcher) flush(ctx context.Context) {
	for len(d.queue) > 0 || len(d.retry) > 0 {
		if ctx.Err() != nil {
			return
		}
		before := len(d.queue) + len(d.retry)
		d.processEvents(ctx)
		if len(d.queue) == 0 && len(d.retry) >= before {
			return
		}
	}
}

// Pending returns the number of undelivered events.
func (d *Dispatcher) Pending() int {
	return len(d.queue) + len(d.retry)
}

// LogPublisher is a simple publisher that logs events.
type LogPublisher struct {
	logger zerolog.Logger
}

// NewLogPublisher creates a new LogPublisher.
func NewLogPublisher(logger zerolog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// Publish logs the event.
func (p *LogPublisher) Publish(_ context.Context, event domain.Event) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return err
	}

	p.logger.Info().
		Str("event_id", event.ID).
		Str("event_type", event.Type).
		Str("owner", event.Owner).
		RawJSON("payload", payload).
		Msg("event published")

	return nil
}

var _ usecase.EventPublisher = (*Dispatcher)(nil)
