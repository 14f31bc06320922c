// Package size resolves artifact directory sizes lazily and off the
// discovery critical path. Each record's size is computed at most once
// per run; concurrent callers share the single in-flight computation.
package size

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/lakshaymaurya-felt/purger/internal/progress"
	"github.com/lakshaymaurya-felt/purger/internal/project"
)

// Estimator computes recursive artifact sizes with bounded concurrency.
type Estimator struct {
	workers int
	log     *logrus.Entry
}

// New creates an estimator. workers bounds concurrent directory walks;
// values <= 0 get a single worker.
func New(workers int) *Estimator {
	if workers <= 0 {
		workers = 1
	}
	return &Estimator{
		workers: workers,
		log:     logrus.WithField("component", "size"),
	}
}

// EnsureSize resolves the size cell for one record, computing it if
// nobody has yet, or awaiting the in-flight computation otherwise.
// Records without an artifact directory resolve to 0 immediately.
func (e *Estimator) EnsureSize(ctx context.Context, p *project.Project) (int64, error) {
	if !p.HasArtifact() {
		if p.BeginSize() {
			p.FinishSize(0, nil)
		}
		_, n, err := p.Size()
		return n, err
	}

	if p.BeginSize() {
		n, err := DirSize(ctx, p.ArtifactPath)
		if err != nil {
			e.log.WithField("path", p.ArtifactPath).WithError(err).
				Debug("size computation failed")
		}
		p.FinishSize(n, err)
		return n, err
	}

	return p.AwaitSize(ctx)
}

// Annotate resolves sizes for a batch of records in the background and
// publishes a KindSizeResolved event per record. It returns immediately;
// wait on the returned function for completion.
func (e *Estimator) Annotate(ctx context.Context, records []*project.Project, ch *progress.Channel) (wait func()) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for _, p := range records {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			n, err := e.EnsureSize(gctx, p)
			if ch != nil {
				ch.Publish(progress.Event{
					Kind:    progress.KindSizeResolved,
					Project: p.RootPath,
					Bytes:   n,
					Err:     err,
				})
			}
			// Per-record errors never poison the batch.
			return nil
		})
	}

	return func() { _ = g.Wait() }
}

// DirSize sums regular-file sizes under dir. Symlinks are counted by
// their target's size once and never traversed, bounding the walk by
// tree depth. Unreadable entries are skipped rather than failing the
// whole computation; only a failure to read dir itself is an error.
func DirSize(ctx context.Context, dir string) (int64, error) {
	var total int64
	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			if path == dir {
				return err
			}
			return nil // skip unreadable entry
		}
		if d.IsDir() {
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			if info, statErr := os.Stat(path); statErr == nil && info.Mode().IsRegular() {
				total += info.Size()
			}
			return nil
		}
		if info, infoErr := d.Info(); infoErr == nil {
			total += info.Size()
		}
		return nil
	})
	if walkErr != nil {
		return 0, walkErr
	}
	return total, nil
}
