// Package clean removes build artifact directories through interchangeable
// strategies with per-record isolation: one record's backup failure,
// subprocess error, or timeout never aborts the batch.
package clean

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/lakshaymaurya-felt/purger/internal/progress"
	"github.com/lakshaymaurya-felt/purger/internal/project"
	"github.com/lakshaymaurya-felt/purger/internal/size"
)

var (
	// ErrCancelled marks work stopped by the run's cancellation signal.
	ErrCancelled = errors.New("clean cancelled")

	// ErrTimeout marks a record that exceeded its wall-clock budget.
	ErrTimeout = errors.New("clean timed out")

	// ErrUnsafeArtifactDir marks an artifact directory that failed the
	// pre-deletion safety validation.
	ErrUnsafeArtifactDir = errors.New("refusing to delete unsafe artifact directory")
)

// Cleaner executes a cleaning strategy over a batch of records.
type Cleaner struct {
	cfg   Config
	est   *size.Estimator
	strat strategy
	log   *logrus.Entry
}

// New creates a cleaner for the configured strategy.
func New(cfg Config, est *size.Estimator) *Cleaner {
	c := &Cleaner{
		cfg: cfg,
		est: est,
		log: logrus.WithField("component", "clean"),
	}
	switch cfg.Strategy {
	case StrategyDirectDelete:
		c.strat = directDeleteStrategy{}
	default:
		c.strat = cargoCleanStrategy{}
	}
	return c
}

// Clean processes all records and returns the batch report. Records are
// independent units: no cross-record ordering is guaranteed. Cancelling
// the context skips records not yet started and interrupts in-flight
// strategies best-effort (spawned subprocesses get a termination request).
func (c *Cleaner) Clean(ctx context.Context, records []*project.Project, ch *progress.Channel) *Report {
	start := time.Now()
	report := &Report{RunID: uuid.NewString()}

	c.log.WithFields(logrus.Fields{
		"run_id":   report.RunID,
		"records":  len(records),
		"strategy": c.cfg.Strategy.String(),
		"dry_run":  c.cfg.DryRun,
	}).Info("cleaning started")

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(c.cfg.workers())

	for _, p := range records {
		g.Go(func() error {
			var o Outcome
			if ctx.Err() != nil {
				o = Outcome{Project: p, Kind: OutcomeSkipped, Reason: "cancelled"}
			} else {
				o = c.cleanOne(ctx, p, ch)
			}
			mu.Lock()
			report.add(o)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	report.Duration = time.Since(start)
	c.log.WithFields(logrus.Fields{
		"run_id":      report.RunID,
		"cleaned":     report.Cleaned,
		"failed":      report.Failed,
		"bytes_freed": report.BytesFreed,
		"duration":    report.Duration.String(),
	}).Info("cleaning finished")
	return report
}

// cleanOne drives one record through its state machine:
// Pending -> (BackingUp?) -> Cleaning -> {Cleaned | Failed}, or
// Pending -> DryRun. Backup strictly precedes deletion.
func (c *Cleaner) cleanOne(ctx context.Context, p *project.Project, ch *progress.Channel) Outcome {
	publish(ch, p, progress.PhaseStarting, 0, nil)

	if c.cfg.DryRun {
		n, err := c.est.EnsureSize(ctx, p)
		if err != nil {
			return Outcome{Project: p, Kind: OutcomeFailed, Err: fmt.Errorf("%s: resolve size: %w", p.Name, err)}
		}
		publish(ch, p, progress.PhaseComplete, n, nil)
		return Outcome{Project: p, Kind: OutcomeDryRun, Bytes: n}
	}

	if !p.HasArtifact() && c.cfg.Strategy == StrategyDirectDelete {
		return Outcome{Project: p, Kind: OutcomeSkipped, Reason: "no artifact directory"}
	}

	rctx := ctx
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		rctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	bytes, err := c.strat.clean(rctx, c, p, ch)
	if err != nil {
		err = c.classifyError(rctx, p, err)
		publish(ch, p, progress.PhaseComplete, 0, err)
		return Outcome{Project: p, Kind: OutcomeFailed, Err: err}
	}

	publish(ch, p, progress.PhaseComplete, bytes, nil)
	return Outcome{Project: p, Kind: OutcomeCleaned, Bytes: bytes}
}

// classifyError maps context errors onto the cleaner's sentinels so the
// report distinguishes timeouts from external cancellation.
func (c *Cleaner) classifyError(rctx context.Context, p *project.Project, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded) && rctx.Err() == context.DeadlineExceeded:
		return fmt.Errorf("%s: %w after %s", p.Name, ErrTimeout, c.cfg.Timeout)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%s: %w", p.Name, ErrCancelled)
	default:
		return fmt.Errorf("%s: %w", p.Name, err)
	}
}

func publish(ch *progress.Channel, p *project.Project, phase progress.Phase, bytes int64, err error) {
	if ch == nil {
		return
	}
	ch.Publish(progress.Event{
		Kind:    progress.KindClean,
		Project: p.RootPath,
		Phase:   phase,
		Bytes:   bytes,
		Err:     err,
	})
}
