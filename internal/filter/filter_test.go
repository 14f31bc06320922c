package filter

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakshaymaurya-felt/purger/internal/project"
	"github.com/lakshaymaurya-felt/purger/internal/scan"
	"github.com/lakshaymaurya-felt/purger/internal/size"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newFilter(cfg scan.Config) *Filter {
	f := New(cfg, size.New(1))
	f.now = func() time.Time { return fixedNow }
	return f
}

func projectModified(at time.Time) *project.Project {
	return &project.Project{RootPath: "/p", Name: "p", LastModified: at}
}

func TestNoRulesMeansEverythingEligible(t *testing.T) {
	f := newFilter(scan.Config{})
	assert.False(t, f.Enabled())

	d := f.Decide(context.Background(), projectModified(fixedNow))
	assert.False(t, d.Keep)
}

func TestKeepDaysBoundary(t *testing.T) {
	f := newFilter(scan.Config{KeepDays: 7})
	require.True(t, f.Enabled())

	recent := f.Decide(context.Background(), projectModified(fixedNow.Add(-6*24*time.Hour)))
	assert.True(t, recent.Keep)
	assert.Equal(t, ReasonRecentlyBuilt, recent.Reason)

	exact := f.Decide(context.Background(), projectModified(fixedNow.Add(-7*24*time.Hour)))
	assert.False(t, exact.Keep, "age equal to the window is no longer recent")

	old := f.Decide(context.Background(), projectModified(fixedNow.Add(-30*24*time.Hour)))
	assert.False(t, old.Keep)
}

func TestKeepDaysUnknownAge(t *testing.T) {
	eligible := newFilter(scan.Config{KeepDays: 7})
	d := eligible.Decide(context.Background(), &project.Project{RootPath: "/p"})
	assert.False(t, d.Keep)

	conservative := newFilter(scan.Config{KeepDays: 7, KeepUnknownAge: true})
	d = conservative.Decide(context.Background(), &project.Project{RootPath: "/p"})
	assert.True(t, d.Keep)
	assert.Equal(t, ReasonUnknownAge, d.Reason)
}

func TestIgnoredPathAlwaysKept(t *testing.T) {
	p := projectModified(fixedNow.Add(-365 * 24 * time.Hour))
	f := newFilter(scan.Config{KeepDays: 1, IgnorePaths: []string{"/p"}})

	d := f.Decide(context.Background(), p)
	assert.True(t, d.Keep)
	assert.Equal(t, ReasonIgnoredPath, d.Reason)
}

func TestKeepSizeForcesResolution(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, project.ArtifactDirName)
	require.NoError(t, os.MkdirAll(target, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(target, "a.o"), make([]byte, 500), 0o644))
	p := &project.Project{RootPath: root, Name: "p", ArtifactPath: target}

	below := newFilter(scan.Config{KeepSize: 1000})
	d := below.Decide(context.Background(), p)
	assert.True(t, d.Keep)
	assert.Equal(t, ReasonBelowSize, d.Reason)

	state, n, _ := p.Size()
	assert.Equal(t, project.SizeKnown, state, "keep-size must resolve the size synchronously")
	assert.EqualValues(t, 500, n)

	above := newFilter(scan.Config{KeepSize: 100})
	assert.False(t, above.Decide(context.Background(), p).Keep)
}

func TestKeepSizeWithoutArtifactKeeps(t *testing.T) {
	p := &project.Project{RootPath: t.TempDir(), Name: "bare"}
	f := newFilter(scan.Config{KeepSize: 1000})

	d := f.Decide(context.Background(), p)
	assert.True(t, d.Keep, "an absent artifact occupies 0 bytes, below any threshold")
	assert.Equal(t, ReasonBelowSize, d.Reason)
}

func TestKeepSizeUnresolvableLeavesEligible(t *testing.T) {
	p := &project.Project{
		RootPath:     "/p",
		Name:         "p",
		ArtifactPath: filepath.Join(t.TempDir(), "gone", project.ArtifactDirName),
	}
	f := newFilter(scan.Config{KeepSize: 1 << 30})
	assert.False(t, f.Decide(context.Background(), p).Keep)
}

func TestPartitionPreservesOrder(t *testing.T) {
	old := projectModified(fixedNow.Add(-100 * 24 * time.Hour))
	older := projectModified(fixedNow.Add(-200 * 24 * time.Hour))
	fresh := projectModified(fixedNow.Add(-time.Hour))

	f := newFilter(scan.Config{KeepDays: 7})
	eligible, kept := f.Partition(context.Background(), []*project.Project{old, fresh, older})
	assert.Equal(t, []*project.Project{old, older}, eligible)
	assert.Equal(t, []*project.Project{fresh}, kept)
}
