package clean

import (
	"fmt"
	"runtime"
	"time"
)

// StrategyKind selects how an artifact directory is removed.
type StrategyKind int

const (
	// StrategyCargoClean spawns the package manager's own clean
	// subcommand. Safer (only manager-tracked output goes) but slower
	// and dependent on the external tool.
	StrategyCargoClean StrategyKind = iota

	// StrategyDirectDelete removes the artifact directory tree directly.
	StrategyDirectDelete
)

func (k StrategyKind) String() string {
	switch k {
	case StrategyCargoClean:
		return "cargo-clean"
	case StrategyDirectDelete:
		return "direct-delete"
	}
	return "invalid"
}

// ParseStrategy maps the CLI strategy names to a StrategyKind.
func ParseStrategy(s string) (StrategyKind, error) {
	switch s {
	case "cargo-clean", "cargo":
		return StrategyCargoClean, nil
	case "direct-delete", "direct":
		return StrategyDirectDelete, nil
	}
	return 0, fmt.Errorf("unknown clean strategy %q (want cargo-clean or direct-delete)", s)
}

// Config is the immutable input to a cleaning run.
type Config struct {
	Strategy StrategyKind

	// DryRun resolves sizes and reports what would be freed without
	// touching the filesystem.
	DryRun bool

	// Parallelism bounds concurrently cleaned records. 0 picks a
	// hardware default.
	Parallelism int

	// Timeout is the per-record wall-clock budget. 0 means none.
	Timeout time.Duration

	// KeepExecutable copies built binaries out of the artifact directory
	// before deletion.
	KeepExecutable bool

	// ExecutableBackupDir overrides the backup location. Empty means an
	// "executables" directory beside each project's manifest.
	ExecutableBackupDir string

	// FastNativeDelete opts in to the Windows rmdir bulk-remove path for
	// the direct strategy. Ignored elsewhere; failures fall back to the
	// portable delete within the same attempt.
	FastNativeDelete bool
}

func (c Config) workers() int {
	n := c.Parallelism
	if n <= 0 {
		n = runtime.NumCPU()
	}
	if n > 8 {
		n = 8
	}
	return n
}

// OutcomeKind is the terminal state of one record's cleaning attempt.
type OutcomeKind int

const (
	OutcomeSkipped OutcomeKind = iota
	OutcomeDryRun
	OutcomeCleaned
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeDryRun:
		return "dry-run"
	case OutcomeCleaned:
		return "cleaned"
	case OutcomeFailed:
		return "failed"
	}
	return "invalid"
}
