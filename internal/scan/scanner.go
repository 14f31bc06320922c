// Package scan discovers project roots below a directory tree with a
// bounded-parallel walk, folding workspace members into their workspace
// root so no two records ever claim the same artifact directory.
package scan

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	ignore "github.com/sabhiram/go-gitignore"
	"github.com/sirupsen/logrus"

	"github.com/lakshaymaurya-felt/purger/internal/progress"
	"github.com/lakshaymaurya-felt/purger/internal/project"
)

// Scanner performs parallel project discovery.
type Scanner struct {
	cfg Config
	log *logrus.Entry

	sem        chan struct{}
	mu         sync.Mutex
	records    []*project.Project
	warnings   []string
	workspaces map[string][]string // workspace root -> member patterns
	foundCount atomic.Int64
}

// New creates a scanner with bounded concurrency.
func New(cfg Config) *Scanner {
	return &Scanner{
		cfg:        cfg,
		log:        logrus.WithField("component", "scan"),
		sem:        make(chan struct{}, cfg.Workers()),
		workspaces: make(map[string][]string),
	}
}

// Warnings returns non-fatal problems hit during the last scan
// (unreadable directories, skipped symlinks).
func (s *Scanner) Warnings() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.warnings...)
}

// Scan walks root and returns all discovered project records. Ordering is
// worker completion order, not filesystem order. Cancelling the context
// stops scheduling new directory visits; results produced so far are
// returned without error.
func (s *Scanner) Scan(ctx context.Context, root string, ch *progress.Channel) ([]*project.Project, error) {
	root = filepath.Clean(root)
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("scan root %q: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scan root %q is not a directory", root)
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("scan root %q: %w", root, err)
	}
	root = abs

	s.mu.Lock()
	s.records = nil
	s.warnings = nil
	s.workspaces = make(map[string][]string)
	s.mu.Unlock()
	s.foundCount.Store(0)

	var matcher *ignore.GitIgnore
	if s.cfg.RespectGitignore {
		matcher = loadIgnoreRules(root)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go s.visit(ctx, &wg, root, root, 0, matcher, ch)
	wg.Wait()

	records := s.foldMembers(root)
	s.log.WithFields(logrus.Fields{
		"root":     root,
		"projects": len(records),
	}).Info("scan finished")
	return records, nil
}

// visit handles one directory: classification, then scheduling children.
// The semaphore is held only across the ReadDir call so nested visits
// cannot deadlock on it.
func (s *Scanner) visit(ctx context.Context, wg *sync.WaitGroup, root, dir string, depth int, matcher *ignore.GitIgnore, ch *progress.Channel) {
	defer wg.Done()

	if ctx.Err() != nil {
		return
	}

	s.sem <- struct{}{}
	entries, err := os.ReadDir(dir)
	<-s.sem
	if err != nil {
		s.addWarning("cannot read " + dir + ": " + err.Error())
		return
	}

	hasManifest := false
	for _, e := range entries {
		if e.Name() == project.ManifestName && !e.IsDir() {
			hasManifest = true
			break
		}
	}

	if hasManifest {
		if !s.classify(dir, ch) {
			// Manifest unreadable: record and skip the subtree.
			return
		}
	}

	for _, e := range entries {
		name := e.Name()
		childDir := e.IsDir()

		if !childDir {
			if !s.cfg.FollowSymlinks || e.Type()&fs.ModeSymlink == 0 {
				continue
			}
			info, statErr := os.Stat(filepath.Join(dir, name))
			if statErr != nil || !info.IsDir() {
				continue
			}
		}

		if hasManifest && name == project.ArtifactDirName {
			// Build output: nothing below it is an independent project.
			continue
		}
		if s.cfg.SkipHidden && strings.HasPrefix(name, ".") {
			continue
		}
		if s.cfg.MaxDepth > 0 && depth+1 > s.cfg.MaxDepth {
			continue
		}

		child := filepath.Join(dir, name)
		if s.cfg.IsIgnoredPath(child) {
			continue
		}
		if matcher != nil {
			rel, relErr := filepath.Rel(root, child)
			if relErr == nil && matcher.MatchesPath(rel) {
				continue
			}
		}

		wg.Add(1)
		go s.visit(ctx, wg, root, child, depth+1, matcher, ch)
	}
}

// classify loads the project record for a manifest-bearing directory and
// registers it. Returns false when the manifest could not be read at all.
func (s *Scanner) classify(dir string, ch *progress.Channel) bool {
	p, err := project.Load(dir)
	if err != nil {
		s.addWarning("cannot read manifest in " + dir + ": " + err.Error())
		return false
	}

	count := s.foundCount.Add(1)
	if ch != nil {
		ch.Publish(progress.Event{
			Kind:    progress.KindManifestFound,
			Project: dir,
			Count:   int(count),
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if p.IsWorkspaceRoot {
		s.workspaces[dir] = p.Members
	}
	s.records = append(s.records, p)
	return true
}

// foldMembers resolves workspace membership after the walk. The walk is
// top-down, so a workspace root is normally registered before its members
// are classified, but parallel completion order makes a deferred pass the
// only safe place to decide ownership.
func (s *Scanner) foldMembers(root string) []*project.Project {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.records[:0:0]
	for _, p := range s.records {
		if !p.IsWorkspaceRoot && s.memberOfLocked(p.RootPath) {
			p.IsWorkspaceMember = true
			// Members never own an artifact directory; all build output
			// funnels into the workspace root's.
			p.ArtifactPath = ""
			s.log.WithField("member", p.RootPath).Debug("folded workspace member")
			continue
		}
		out = append(out, p)
	}
	return out
}

// memberOfLocked reports whether dir is a declared member of any known
// workspace root. Caller holds s.mu.
func (s *Scanner) memberOfLocked(dir string) bool {
	for ws, patterns := range s.workspaces {
		rel, err := filepath.Rel(ws, dir)
		if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
			continue
		}
		rel = filepath.ToSlash(rel)
		for _, pat := range patterns {
			if matched, matchErr := path.Match(path.Clean(filepath.ToSlash(pat)), rel); matchErr == nil && matched {
				return true
			}
		}
	}
	return false
}

func (s *Scanner) addWarning(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.warnings) < 500 {
		s.warnings = append(s.warnings, msg)
	}
}

// WithArtifact filters a record set down to records that own a build
// output directory.
func WithArtifact(records []*project.Project) []*project.Project {
	out := records[:0:0]
	for _, p := range records {
		if p.HasArtifact() {
			out = append(out, p)
		}
	}
	return out
}

// SortBySize orders records largest-first by their resolved size. Records
// with unresolved sizes sort as zero.
func SortBySize(records []*project.Project) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].KnownSize() > records[j].KnownSize()
	})
}

// loadIgnoreRules compiles the gitignore rules at the scan root. The
// matcher is read-only after construction and shared by all workers.
func loadIgnoreRules(root string) *ignore.GitIgnore {
	file := filepath.Join(root, ".gitignore")
	matcher, err := ignore.CompileIgnoreFile(file)
	if err != nil {
		if !os.IsNotExist(err) {
			logrus.WithField("path", file).WithError(err).Debug("cannot compile gitignore rules")
		}
		return nil
	}
	return matcher
}
