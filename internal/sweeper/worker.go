package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"

	"github.com/rewardex/backend/internal/metrics"
)

// SweepArgs is the periodic auto-release job. Scheduling lives in main
// via river's periodic jobs, so the sweep is owned by process lifecycle.
type SweepArgs struct{}

func (SweepArgs) Kind() string { return "escrow_sweep" }

// Releaser settles a single stale transaction. The engine re-checks
// eligibility under its own row lock, so calling it with an id that was
// confirmed or disputed in the meantime is a safe no-op.
type Releaser interface {
	AutoRelease(ctx context.Context, transactionID uuid.UUID, cutoff time.Time) (bool, error)
}

// StaleLister snapshots the eligible transaction ids at sweep start.
type StaleLister interface {
	ListStaleHeldIDs(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error)
}

type SweepWorker struct {
	river.WorkerDefaults[SweepArgs]
	engine Releaser
	repo   StaleLister
	grace  time.Duration
	log    *slog.Logger

	// now is swappable in tests.
	now func() time.Time
}

func NewSweepWorker(engine Releaser, repo StaleLister, grace time.Duration, log *slog.Logger) *SweepWorker {
	if log == nil {
		log = slog.Default()
	}
	if grace <= 0 {
		grace = 24 * time.Hour
	}
	return &SweepWorker{engine: engine, repo: repo, grace: grace, log: log, now: time.Now}
}

// Work releases every held transaction older than the grace window.
// Each transaction settles in its own database transaction; a failure
// on one is logged and counted, never aborting the rest of the sweep.
func (w *SweepWorker) Work(ctx context.Context, _ *river.Job[SweepArgs]) error {
	cutoff := w.now().Add(-w.grace)

	ids, err := w.repo.ListStaleHeldIDs(ctx, cutoff)
	if err != nil {
		return err
	}
	metrics.SweepEligible.Set(float64(len(ids)))
	if len(ids) == 0 {
		return nil
	}
	w.log.Info("escrow sweep starting", "eligible", len(ids), "cutoff", cutoff)

	var released, failed int
	for _, id := range ids {
		ok, err := w.engine.AutoRelease(ctx, id, cutoff)
		if err != nil {
			failed++
			metrics.SweepFailures.Inc()
			w.log.Error("auto-release failed", "transaction_id", id, "error", err)
			continue
		}
		if ok {
			released++
			metrics.SweepReleased.Inc()
			w.log.Info("auto-released transaction", "transaction_id", id)
		}
	}
	w.log.Info("escrow sweep finished", "released", released, "failed", failed)
	return nil
}
