package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/iho/gofolio/internal/domain"
	"github.com/iho/gofolio/internal/usecase"
)

// Valuer computes an owner's valuation.
type Valuer interface {
	ComputeValuation(ctx context.Context, owner string) (*domain.Valuation, error)
}

// Deliverer pushes a rendered report to the notification channel.
type Deliverer interface {
	Deliver(ctx context.Context, owner, text string) (bool, string)
}

// DailyReportJob values each configured owner, sends the report and
// announces the valuation as an event.
type DailyReportJob struct {
	owners    []string
	valuer    Valuer
	deliverer Deliverer
	events    usecase.EventPublisher
	idGen     usecase.IDGenerator
	clock     usecase.Clock
	log       zerolog.Logger
}

// NewDailyReportJob creates the job. events may be nil.
func NewDailyReportJob(
	owners []string,
	valuer Valuer,
	deliverer Deliverer,
	events usecase.EventPublisher,
	idGen usecase.IDGenerator,
	clock usecase.Clock,
	log zerolog.Logger,
) *DailyReportJob {
	if clock == nil {
		clock = usecase.SystemClock{}
	}
	return &DailyReportJob{
		owners:    owners,
		valuer:    valuer,
		deliverer: deliverer,
		events:    events,
		idGen:     idGen,
		clock:     clock,
		log:       log.With().Str("job", "daily_report").Logger(),
	}
}

func (j *DailyReportJob) Name() string { return "daily_report" }

// Run reports every owner. A failing owner does not stop the others; the
// joined errors are returned at the end.
func (j *DailyReportJob) Run(ctx context.Context) error {
	var errs []error
	for _, owner := range j.owners {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := j.report(ctx, owner); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", owner, err))
		}
	}
	return errors.Join(errs...)
}

func (j *DailyReportJob) report(ctx context.Context, owner string) error {
	v, err := j.valuer.ComputeValuation(ctx, owner)
	if err != nil {
		return err
	}

	ok, detail := j.deliverer.Deliver(ctx, owner, usecase.FormatReport(v))
	if !ok {
		j.log.Warn().Str("owner", owner).Str("detail", detail).Msg("daily report not delivered")
	}

	if j.events != nil {
		event := domain.Event{
			ID:    j.idGen.Generate(),
			Owner: owner,
			Type:  domain.EventTypeValuationComputed,
			Payload: valuationPayload(domain.ValuationComputedEvent{
				Reference: v.Reference,
				NetWorth:  v.NetWorth.String(),
				Change24h: v.Change24h.String(),
				Holdings:  len(v.Holdings),
				Delivered: ok,
			}),
			CreatedAt: j.clock.Now(),
		}
		if err := j.events.Publish(ctx, event); err != nil {
			j.log.Warn().Err(err).Str("owner", owner).Msg("failed to publish valuation event")
		}
	}
	return nil
}

func valuationPayload(body domain.ValuationComputedEvent) map[string]any {
	payload := map[string]any{}
	raw, err := json.Marshal(body)
	if err == nil {
		_ = json.Unmarshal(raw, &payload)
	}
	return payload
}
