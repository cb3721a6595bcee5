package scheduler

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/iho/gofolio/internal/usecase"
)

// OwnerLister enumerates every owner known to the ledger store.
type OwnerLister interface {
	Owners(ctx context.Context) ([]string, error)
}

// Reconciler checks the consistency of owner ledgers.
type Reconciler interface {
	ReconcileAll(ctx context.Context, owners []string) ([]*usecase.ReconciliationReport, error)
}

// ReconcileJob reconciles every stored ledger and logs what it finds.
type ReconcileJob struct {
	owners     OwnerLister
	reconciler Reconciler
	log        zerolog.Logger
}

func NewReconcileJob(owners OwnerLister, reconciler Reconciler, log zerolog.Logger) *ReconcileJob {
	return &ReconcileJob{
		owners:     owners,
		reconciler: reconciler,
		log:        log.With().Str("job", "reconcile").Logger(),
	}
}

func (j *ReconcileJob) Name() string { return "reconcile" }

func (j *ReconcileJob) Run(ctx context.Context) error {
	owners, err := j.owners.Owners(ctx)
	if err != nil {
		return err
	}

	reports, err := j.reconciler.ReconcileAll(ctx, owners)
	if err != nil {
		return err
	}

	inconsistent := 0
	for _, report := range reports {
		if report.Consistent {
			continue
		}
		inconsistent++
		for _, issue := range report.Issues {
			j.log.Warn().
				Str("owner", report.Owner).
				Str("kind", issue.Kind).
				Str("detail", issue.Detail).
				Msg("ledger inconsistency")
		}
	}

	j.log.Info().Int("owners", len(reports)).Int("inconsistent", inconsistent).Msg("reconciliation finished")
	return nil
}
