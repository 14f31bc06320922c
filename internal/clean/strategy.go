package clean

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/lakshaymaurya-felt/purger/internal/progress"
	"github.com/lakshaymaurya-felt/purger/internal/project"
	"github.com/lakshaymaurya-felt/purger/internal/size"
)

// strategy is the common "remove the artifact directory" capability.
// Implementations report bytes freed.
type strategy interface {
	name() string
	clean(ctx context.Context, c *Cleaner, p *project.Project, ch *progress.Channel) (int64, error)
}

// cargoCleanStrategy delegates removal to `cargo clean` scoped to the
// project root. A failing subprocess is a failure for the record; direct
// deletion is never silently substituted, the two strategies have
// different safety guarantees.
type cargoCleanStrategy struct{}

func (cargoCleanStrategy) name() string { return "cargo-clean" }

func (cargoCleanStrategy) clean(ctx context.Context, c *Cleaner, p *project.Project, ch *progress.Channel) (int64, error) {
	var before int64
	if p.HasArtifact() {
		if n, err := c.est.EnsureSize(ctx, p); err == nil {
			before = n
		}
	}

	publish(ch, p, progress.PhaseCleaning, 0, nil)
	if _, err := runCommand(ctx, p.RootPath, "cargo", "clean"); err != nil {
		return 0, fmt.Errorf("cargo clean: %w", err)
	}

	// The size cell is monotonic within a run, so the post-clean size is
	// measured directly. cargo usually removes the whole directory.
	var after int64
	if p.HasArtifact() {
		if _, err := os.Stat(p.ArtifactPath); err == nil {
			if n, err := size.DirSize(ctx, p.ArtifactPath); err == nil {
				after = n
			}
		}
	}

	freed := before - after
	if freed < 0 {
		freed = 0
	}
	return freed, nil
}

// directDeleteStrategy removes the artifact tree itself. On Windows an
// opted-in `cmd /C rmdir /S /Q` bulk remove is tried first; any failure
// falls back to the portable chunked delete within the same attempt —
// the one sanctioned substitution, since both paths have the identical
// filesystem effect.
type directDeleteStrategy struct{}

func (directDeleteStrategy) name() string { return "direct-delete" }

func (directDeleteStrategy) clean(ctx context.Context, c *Cleaner, p *project.Project, ch *progress.Channel) (int64, error) {
	if !p.HasArtifact() {
		return 0, nil
	}
	if err := validateArtifactDir(p); err != nil {
		return 0, err
	}

	if c.cfg.KeepExecutable {
		publish(ch, p, progress.PhaseBackingUp, 0, nil)
		if err := c.backupExecutables(ctx, p); err != nil {
			// No partial deletion without a successful backup: the
			// artifact directory is untouched at this point.
			return 0, fmt.Errorf("executable backup: %w", err)
		}
	}

	var before int64
	if n, err := c.est.EnsureSize(ctx, p); err == nil {
		before = n
	}

	publish(ch, p, progress.PhaseCleaning, 0, nil)

	if c.cfg.FastNativeDelete {
		if runtime.GOOS == "windows" {
			if err := nativeBulkRemove(ctx, p.ArtifactPath); err == nil {
				publish(ch, p, progress.PhaseFinalizing, before, nil)
				return before, nil
			} else if ctx.Err() != nil {
				return 0, ctx.Err()
			} else {
				c.log.WithField("project", p.RootPath).WithError(err).
					Warn("native bulk remove failed, falling back to portable delete")
			}
		} else {
			c.log.WithField("project", p.RootPath).
				Debug("native bulk remove not available on this platform, using portable delete")
		}
	}

	if err := c.removeTree(ctx, p.ArtifactPath); err != nil {
		return 0, err
	}
	publish(ch, p, progress.PhaseFinalizing, before, nil)
	return before, nil
}

// nativeBulkRemove invokes the Windows shell's recursive rmdir, which
// outruns per-file deletion on large trees. Paths containing a double
// quote cannot be passed safely and count as a failure (the caller falls
// back).
func nativeBulkRemove(ctx context.Context, dir string) error {
	for _, r := range dir {
		if r == '"' {
			return fmt.Errorf("path %q not representable for rmdir", dir)
		}
	}
	_, err := runCommand(ctx, "", "cmd", "/C", "rmdir", "/S", "/Q", dir)
	return err
}

// removeTree deletes dir's immediate children as independent recursive
// units across the worker pool, then removes dir itself. Chunking bounds
// peak open-handle usage and lets cancellation land between units rather
// than only between whole projects.
func (c *Cleaner) removeTree(ctx context.Context, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read artifact directory: %w", err)
	}

	g := new(errgroup.Group)
	g.SetLimit(c.cfg.workers())
	for _, e := range entries {
		child := filepath.Join(dir, e.Name())
		g.Go(func() error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return removeBestEffort(child)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}
	return removeBestEffort(dir)
}

// removeBestEffort removes a path recursively; on failure it clears
// readonly bits below the path and retries once. Build trees on Windows
// regularly contain readonly outputs.
func removeBestEffort(path string) error {
	if err := os.RemoveAll(path); err == nil {
		return nil
	}
	clearReadonly(path)
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

func clearReadonly(root string) {
	_ = filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		info, infoErr := d.Info()
		if infoErr != nil {
			return nil
		}
		mode := info.Mode()
		if mode&0o200 == 0 {
			_ = os.Chmod(p, mode.Perm()|0o200)
		}
		return nil
	})
}
