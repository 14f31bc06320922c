package scan

import (
	"path/filepath"
	"runtime"
	"strings"
)

// Config is the immutable input to a discovery run. The retention fields
// (KeepDays, KeepSize, IgnorePaths, KeepUnknownAge) are carried here so
// the filter and the walker share one source of truth.
type Config struct {
	// MaxDepth bounds the walk in directory hops from the scan root.
	// The root is depth 0; a directory at MaxDepth is still visited but
	// its children are not. 0 means unlimited.
	MaxDepth int

	// FollowSymlinks enables descending through symlinked directories.
	// Off by default: cycles and double-counting are worse than missing
	// an exotic layout.
	FollowSymlinks bool

	// RespectGitignore enables the gitignore-style exclusion rules found
	// at the scan root.
	RespectGitignore bool

	// SkipHidden skips dot-directories.
	SkipHidden bool

	// IgnorePaths lists absolute paths whose subtrees are never scanned
	// and whose projects are never eligible for cleaning.
	IgnorePaths []string

	// KeepDays keeps projects whose artifact was modified within the
	// last N days. 0 disables the check.
	KeepDays int

	// KeepSize keeps projects whose artifact is smaller than this many
	// bytes. 0 disables the check.
	KeepSize int64

	// KeepUnknownAge controls the KeepDays decision for records with no
	// resolvable modification time: true keeps them (conservative),
	// false leaves them eligible.
	KeepUnknownAge bool

	// Parallelism is the worker bound for directory visits and size
	// computations. 0 picks a default from the hardware.
	Parallelism int
}

// Workers resolves the effective worker-pool size. Capped at 8: directory
// walks saturate the disk long before they saturate a big CPU.
func (c Config) Workers() int {
	n := c.Parallelism
	if n <= 0 {
		n = runtime.NumCPU()
	}
	if n > 8 {
		n = 8
	}
	return n
}

// IsIgnoredPath reports whether path equals or descends from one of the
// configured ignore paths.
func (c Config) IsIgnoredPath(path string) bool {
	cleaned := filepath.Clean(path)
	for _, ign := range c.IgnorePaths {
		ign = filepath.Clean(ign)
		if cleaned == ign {
			return true
		}
		if strings.HasPrefix(cleaned, ign+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
