package clean

import (
	"context"
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/lakshaymaurya-felt/purger/internal/project"
)

// Cargo emits binaries into the profile directories at the artifact root
// and, for cross builds, one level further down under the target triple.
var profileDirs = []string{"debug", "release"}

// FindExecutables collects executable files from the conventional output
// locations under the artifact directory. Build intermediates (deps,
// incremental, build) are not descended into.
func FindExecutables(p *project.Project) ([]string, error) {
	if !p.HasArtifact() {
		return nil, nil
	}

	var found []string
	collect := func(dir string) error {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return fmt.Errorf("read %s: %w", dir, err)
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			info, err := e.Info()
			if err != nil {
				continue
			}
			if isExecutable(e.Name(), info.Mode()) {
				found = append(found, filepath.Join(dir, e.Name()))
			}
		}
		return nil
	}

	for _, profile := range profileDirs {
		if err := collect(filepath.Join(p.ArtifactPath, profile)); err != nil {
			return nil, err
		}
	}

	// Cross-compiled outputs live under target/<triple>/<profile>.
	entries, err := os.ReadDir(p.ArtifactPath)
	if err != nil {
		return found, nil
	}
	for _, e := range entries {
		if !e.IsDir() || isProfileOrInternal(e.Name()) {
			continue
		}
		for _, profile := range profileDirs {
			if err := collect(filepath.Join(p.ArtifactPath, e.Name(), profile)); err != nil {
				return nil, err
			}
		}
	}
	return found, nil
}

func isProfileOrInternal(name string) bool {
	switch name {
	case "debug", "release", "deps", "incremental", "build", "doc", "tmp", ".fingerprint":
		return true
	}
	return false
}

func isExecutable(name string, mode os.FileMode) bool {
	if !mode.IsRegular() {
		return false
	}
	if runtime.GOOS == "windows" {
		return strings.EqualFold(filepath.Ext(name), ".exe")
	}
	return mode.Perm()&0o111 != 0
}

// backupExecutables copies the project's built executables into a
// per-project backup directory before the artifact tree is removed. Any
// failure here leaves the artifact untouched.
func (c *Cleaner) backupExecutables(ctx context.Context, p *project.Project) error {
	execs, err := FindExecutables(p)
	if err != nil {
		return err
	}
	p.Executables = execs
	if len(execs) == 0 {
		return nil
	}

	base := c.cfg.ExecutableBackupDir
	if base == "" {
		base = filepath.Join(p.RootPath, "executables")
	}
	dest := filepath.Join(base, backupSubdir(p))
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf("create backup directory: %w", err)
	}

	for _, src := range execs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := copyFile(src, filepath.Join(dest, filepath.Base(src))); err != nil {
			return err
		}
		c.log.WithField("executable", filepath.Base(src)).
			WithField("dest", dest).Debug("backed up executable")
	}
	return nil
}

// backupSubdir derives a stable per-project directory name. The hash of
// the absolute root path keeps same-named projects from colliding under
// a shared backup base.
func backupSubdir(p *project.Project) string {
	h := fnv.New64a()
	h.Write([]byte(p.RootPath))
	return fmt.Sprintf("%s-%016x", p.Name, h.Sum64())
}

func copyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s: %w", filepath.Base(src), err)
	}
	return out.Close()
}
