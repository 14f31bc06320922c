package clean

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lakshaymaurya-felt/purger/internal/project"
)

// validateArtifactDir guards direct deletion. The artifact path must be
// a real directory named after the build output convention, must not be
// a symlink, and must resolve to a location inside the project root.
// Violations return ErrUnsafeArtifactDir so callers can surface the
// refusal distinctly from I/O failures.
func validateArtifactDir(p *project.Project) error {
	if filepath.Base(p.ArtifactPath) != project.ArtifactDirName {
		return fmt.Errorf("%w: %s is not a %s directory",
			ErrUnsafeArtifactDir, p.ArtifactPath, project.ArtifactDirName)
	}

	info, err := os.Lstat(p.ArtifactPath)
	if err != nil {
		return fmt.Errorf("stat artifact directory: %w", err)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return fmt.Errorf("%w: %s is a symlink", ErrUnsafeArtifactDir, p.ArtifactPath)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrUnsafeArtifactDir, p.ArtifactPath)
	}

	resolved, err := filepath.EvalSymlinks(p.ArtifactPath)
	if err != nil {
		return fmt.Errorf("resolve artifact directory: %w", err)
	}
	root, err := filepath.EvalSymlinks(p.RootPath)
	if err != nil {
		return fmt.Errorf("resolve project root: %w", err)
	}
	if !withinDir(root, resolved) {
		return fmt.Errorf("%w: %s resolves outside project root %s",
			ErrUnsafeArtifactDir, p.ArtifactPath, p.RootPath)
	}
	return nil
}

func withinDir(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
