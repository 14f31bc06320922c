// Package project defines the discovered-project record and its manifest
// classification. A Project is created once per scan run; all identity
// fields are immutable, only the size cell changes afterwards.
package project

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	// ManifestName is the package-descriptor file that marks a project root.
	ManifestName = "Cargo.toml"

	// ArtifactDirName is the fixed-name build output directory under a
	// project root.
	ArtifactDirName = "target"
)

// SizeState tracks the lifecycle of the lazily computed artifact size.
// Transitions are monotonic: Unknown -> Computing -> {Known, Error}.
// A value type instead of a nullable number so "not yet computed" can
// never be mistaken for "zero bytes".
type SizeState int

const (
	SizeUnknown SizeState = iota
	SizeComputing
	SizeKnown
	SizeError
)

func (s SizeState) String() string {
	switch s {
	case SizeUnknown:
		return "unknown"
	case SizeComputing:
		return "computing"
	case SizeKnown:
		return "known"
	case SizeError:
		return "error"
	}
	return "invalid"
}

// Project is one discovered project. Identity fields are set at discovery
// and never mutated; the size cell is owned by the size estimator and is
// race-free via a single-flight gate.
type Project struct {
	// RootPath is the absolute directory containing the manifest.
	RootPath string

	// ManifestPath points at the manifest file, which may have been
	// unreadable or malformed when the record was built.
	ManifestPath string

	// ArtifactPath is the build output directory, or "" when absent or
	// when this record does not own one (workspace members).
	ArtifactPath string

	// Name comes from the manifest's package section, falling back to the
	// directory basename when the manifest could not be parsed.
	Name string

	IsWorkspaceRoot   bool
	IsWorkspaceMember bool

	// Members holds the member path patterns declared by a workspace
	// manifest. Empty for non-workspace projects.
	Members []string

	// LastModified is the best-effort modification time of the artifact
	// directory, or of the manifest when no artifact exists. Zero when
	// neither could be read.
	LastModified time.Time

	// Executables lists built binaries found under the artifact directory.
	// Populated by the cleaning engine only when a backup is requested.
	Executables []string

	mu        sync.Mutex
	sizeState SizeState
	sizeBytes int64
	sizeErr   error
	sizeDone  chan struct{}
}

// Load builds a Project record for a directory that contains a manifest
// file. Manifest parse failures degrade gracefully: the record is still a
// project root with a fallback name and no workspace information. A read
// failure is returned to the caller so the walker can record it and skip
// the subtree.
func Load(dir string) (*Project, error) {
	manifestPath := filepath.Join(dir, ManifestName)

	m, err := parseManifest(manifestPath)
	if err != nil {
		return nil, err
	}

	p := &Project{
		RootPath:        dir,
		ManifestPath:    manifestPath,
		Name:            m.name,
		IsWorkspaceRoot: m.workspace,
		Members:         m.members,
	}
	if p.Name == "" {
		p.Name = filepath.Base(dir)
	}

	artifact := filepath.Join(dir, ArtifactDirName)
	if info, statErr := os.Stat(artifact); statErr == nil && info.IsDir() {
		p.ArtifactPath = artifact
		p.LastModified = info.ModTime()
	} else if info, statErr := os.Stat(manifestPath); statErr == nil {
		p.LastModified = info.ModTime()
	}

	return p, nil
}

// HasArtifact reports whether this record owns a build output directory.
func (p *Project) HasArtifact() bool {
	return p.ArtifactPath != ""
}

// RelPath returns the project path relative to base, or the absolute path
// when it is not below base.
func (p *Project) RelPath(base string) string {
	rel, err := filepath.Rel(base, p.RootPath)
	if err != nil {
		return p.RootPath
	}
	return rel
}

// Size returns the current state of the size cell.
func (p *Project) Size() (SizeState, int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sizeState, p.sizeBytes, p.sizeErr
}

// KnownSize returns the resolved size, or 0 when it is not (yet) known.
func (p *Project) KnownSize() int64 {
	state, n, _ := p.Size()
	if state != SizeKnown {
		return 0
	}
	return n
}

// BeginSize attempts the Unknown -> Computing transition. It returns true
// when the caller now owns the computation and must call FinishSize
// exactly once. Concurrent callers that lose the race share the single
// in-flight computation via AwaitSize.
func (p *Project) BeginSize() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sizeState != SizeUnknown {
		return false
	}
	p.sizeState = SizeComputing
	p.sizeDone = make(chan struct{})
	return true
}

// FinishSize completes the in-flight computation and wakes all waiters.
func (p *Project) FinishSize(bytes int64, err error) {
	p.mu.Lock()
	if err != nil {
		p.sizeState = SizeError
		p.sizeErr = err
	} else {
		p.sizeState = SizeKnown
		p.sizeBytes = bytes
	}
	done := p.sizeDone
	p.mu.Unlock()
	if done != nil {
		close(done)
	}
}

// AwaitSize blocks until the size cell reaches a terminal state or the
// context is cancelled. It never starts a computation itself.
func (p *Project) AwaitSize(ctx context.Context) (int64, error) {
	p.mu.Lock()
	state := p.sizeState
	done := p.sizeDone
	p.mu.Unlock()

	switch state {
	case SizeKnown, SizeError:
		_, n, err := p.Size()
		return n, err
	case SizeUnknown:
		// Nothing in flight; report as unresolved rather than blocking
		// forever on a channel nobody will close.
		return 0, ErrSizeUnresolved
	}

	select {
	case <-done:
		_, n, err := p.Size()
		return n, err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}
