package clean

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakshaymaurya-felt/purger/internal/progress"
	"github.com/lakshaymaurya-felt/purger/internal/project"
	"github.com/lakshaymaurya-felt/purger/internal/size"
)

// mkRecord builds a real on-disk project with an artifact tree.
func mkRecord(t *testing.T, name string, artifactBytes int) *project.Project {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(
		filepath.Join(root, project.ManifestName),
		[]byte("[package]\nname = \""+name+"\"\n"), 0o644))

	target := filepath.Join(root, project.ArtifactDirName)
	require.NoError(t, os.MkdirAll(filepath.Join(target, "debug", "deps"), 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(target, "debug", "deps", "lib.o"), make([]byte, artifactBytes), 0o644))

	p, err := project.Load(root)
	require.NoError(t, err)
	require.True(t, p.HasArtifact())
	return p
}

func addExecutable(t *testing.T, p *project.Project, name string) string {
	t.Helper()
	path := filepath.Join(p.ArtifactPath, "debug", name)
	require.NoError(t, os.WriteFile(path, []byte("#"), 0o755))
	return path
}

func directConfig() Config {
	return Config{Strategy: StrategyDirectDelete, Parallelism: 2}
}

func TestParseStrategy(t *testing.T) {
	for in, want := range map[string]StrategyKind{
		"cargo-clean":   StrategyCargoClean,
		"cargo":         StrategyCargoClean,
		"direct-delete": StrategyDirectDelete,
		"direct":        StrategyDirectDelete,
	} {
		got, err := ParseStrategy(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseStrategy("rm-rf")
	assert.Error(t, err)
}

func TestDryRunTouchesNothing(t *testing.T) {
	p := mkRecord(t, "app", 2048)
	cfg := directConfig()
	cfg.DryRun = true

	report := New(cfg, size.New(2)).Clean(context.Background(), []*project.Project{p}, nil)
	assert.Equal(t, 1, report.DryRuns)
	assert.Zero(t, report.Cleaned)
	assert.EqualValues(t, 2048, report.BytesFreed)
	assert.NoError(t, report.Err)

	_, err := os.Stat(p.ArtifactPath)
	assert.NoError(t, err, "dry run must leave the artifact in place")
}

func TestDirectDeleteRemovesArtifactOnly(t *testing.T) {
	p := mkRecord(t, "app", 4096)

	report := New(directConfig(), size.New(2)).Clean(context.Background(), []*project.Project{p}, nil)
	require.Equal(t, 1, report.Cleaned)
	assert.EqualValues(t, 4096, report.BytesFreed)

	_, err := os.Stat(p.ArtifactPath)
	assert.True(t, os.IsNotExist(err), "artifact directory must be gone")
	_, err = os.Stat(p.ManifestPath)
	assert.NoError(t, err, "sources must survive")
}

func TestSkipsRecordWithoutArtifact(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(
		filepath.Join(root, project.ManifestName), []byte("[package]\nname = \"bare\"\n"), 0o644))
	p, err := project.Load(root)
	require.NoError(t, err)

	report := New(directConfig(), size.New(1)).Clean(context.Background(), []*project.Project{p}, nil)
	assert.Equal(t, 1, report.Skipped)
	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, "no artifact directory", report.Outcomes[0].Reason)
}

func TestExecutableBackup(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("backup detection uses unix permission bits here")
	}
	p := mkRecord(t, "tool", 1024)
	addExecutable(t, p, "tool")

	backupBase := t.TempDir()
	cfg := directConfig()
	cfg.KeepExecutable = true
	cfg.ExecutableBackupDir = backupBase

	report := New(cfg, size.New(1)).Clean(context.Background(), []*project.Project{p}, nil)
	require.Equal(t, 1, report.Cleaned)
	require.Len(t, p.Executables, 1)

	saved := filepath.Join(backupBase, backupSubdir(p), "tool")
	info, err := os.Stat(saved)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode().Perm()&0o111, "executable bit must survive the copy")

	_, err = os.Stat(p.ArtifactPath)
	assert.True(t, os.IsNotExist(err))
}

func TestBackupFailureLeavesArtifactUntouched(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("backup detection uses unix permission bits here")
	}
	good := mkRecord(t, "good", 512)
	bad := mkRecord(t, "bad", 512)
	addExecutable(t, bad, "bad")

	// A regular file where the backup directory should go makes the
	// backup fail before anything is deleted.
	blocked := filepath.Join(t.TempDir(), "taken")
	require.NoError(t, os.WriteFile(blocked, []byte("x"), 0o644))

	cfg := directConfig()
	cfg.KeepExecutable = true
	cfg.ExecutableBackupDir = blocked

	report := New(cfg, size.New(2)).Clean(context.Background(), []*project.Project{good, bad}, nil)
	assert.Equal(t, 1, report.Cleaned, "one record's failure must not stop the batch")
	assert.Equal(t, 1, report.Failed)
	assert.Error(t, report.Err)

	_, err := os.Stat(bad.ArtifactPath)
	assert.NoError(t, err, "failed backup must abort before deletion")
	_, err = os.Stat(good.ArtifactPath)
	assert.True(t, os.IsNotExist(err))
}

func TestRefusesMisnamedArtifactDir(t *testing.T) {
	root := t.TempDir()
	odd := filepath.Join(root, "stuff")
	require.NoError(t, os.MkdirAll(odd, 0o755))
	p := &project.Project{RootPath: root, Name: "odd", ArtifactPath: odd}

	report := New(directConfig(), size.New(1)).Clean(context.Background(), []*project.Project{p}, nil)
	require.Equal(t, 1, report.Failed)
	assert.ErrorIs(t, report.Outcomes[0].Err, ErrUnsafeArtifactDir)

	_, err := os.Stat(odd)
	assert.NoError(t, err)
}

func TestRefusesSymlinkedArtifactDir(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink creation needs privileges on windows")
	}
	root := t.TempDir()
	real := filepath.Join(root, "real")
	require.NoError(t, os.MkdirAll(real, 0o755))
	link := filepath.Join(root, project.ArtifactDirName)
	require.NoError(t, os.Symlink(real, link))
	p := &project.Project{RootPath: root, Name: "sly", ArtifactPath: link}

	report := New(directConfig(), size.New(1)).Clean(context.Background(), []*project.Project{p}, nil)
	require.Equal(t, 1, report.Failed)
	assert.ErrorIs(t, report.Outcomes[0].Err, ErrUnsafeArtifactDir)
	_, err := os.Stat(real)
	assert.NoError(t, err)
}

func TestFastDeleteFallsBackToPortablePath(t *testing.T) {
	// Off windows the native bulk remove is unavailable; the portable
	// delete must still complete the record.
	p := mkRecord(t, "app", 1024)
	cfg := directConfig()
	cfg.FastNativeDelete = true

	report := New(cfg, size.New(1)).Clean(context.Background(), []*project.Project{p}, nil)
	assert.Equal(t, 1, report.Cleaned)
	assert.Zero(t, report.Failed)
	_, err := os.Stat(p.ArtifactPath)
	assert.True(t, os.IsNotExist(err))
}

// stallStrategy holds the named record until its context expires and
// delegates everything else to the direct delete.
type stallStrategy struct {
	stallFor string
}

func (s stallStrategy) name() string { return "stall" }

func (s stallStrategy) clean(ctx context.Context, c *Cleaner, p *project.Project, ch *progress.Channel) (int64, error) {
	if p.Name == s.stallFor {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	return directDeleteStrategy{}.clean(ctx, c, p, ch)
}

func TestTimeoutFailsOnlyTheSlowRecord(t *testing.T) {
	slow := mkRecord(t, "slow", 128)
	fast := mkRecord(t, "fast", 128)

	cfg := directConfig()
	cfg.Timeout = 30 * time.Millisecond
	c := New(cfg, size.New(2))
	c.strat = stallStrategy{stallFor: "slow"}

	report := c.Clean(context.Background(), []*project.Project{slow, fast}, nil)
	assert.Equal(t, 1, report.Cleaned, "other records are unaffected by a sibling's timeout")
	require.Equal(t, 1, report.Failed)
	assert.ErrorIs(t, report.Failures()[0].Err, ErrTimeout)

	_, err := os.Stat(slow.ArtifactPath)
	assert.NoError(t, err, "timed-out record's artifact stays on disk")
	_, err = os.Stat(fast.ArtifactPath)
	assert.True(t, os.IsNotExist(err))
}

func TestCancelledBatchSkipsPendingRecords(t *testing.T) {
	records := []*project.Project{mkRecord(t, "a", 64), mkRecord(t, "b", 64)}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report := New(directConfig(), size.New(1)).Clean(ctx, records, nil)
	assert.Equal(t, len(records), report.Skipped)
	assert.Zero(t, report.Cleaned)
	for _, p := range records {
		_, err := os.Stat(p.ArtifactPath)
		assert.NoError(t, err)
	}
}

func TestCleanPublishesPhaseEvents(t *testing.T) {
	p := mkRecord(t, "app", 256)
	ch := progress.NewChannel(32)

	report := New(directConfig(), size.New(1)).Clean(context.Background(), []*project.Project{p}, ch)
	require.Equal(t, 1, report.Cleaned)
	ch.Close()

	var phases []progress.Phase
	for ev := range ch.Events() {
		if ev.Kind == progress.KindClean {
			phases = append(phases, ev.Phase)
		}
	}
	assert.Contains(t, phases, progress.PhaseStarting)
	assert.Contains(t, phases, progress.PhaseCleaning)
	assert.Equal(t, progress.PhaseComplete, phases[len(phases)-1])
}

func TestReportAggregation(t *testing.T) {
	r := &Report{}
	r.add(Outcome{Kind: OutcomeCleaned, Bytes: 100})
	r.add(Outcome{Kind: OutcomeDryRun, Bytes: 50})
	r.add(Outcome{Kind: OutcomeSkipped, Reason: "x"})
	r.add(Outcome{Kind: OutcomeFailed, Err: assert.AnError})

	assert.Equal(t, 1, r.Cleaned)
	assert.Equal(t, 1, r.DryRuns)
	assert.Equal(t, 1, r.Skipped)
	assert.Equal(t, 1, r.Failed)
	assert.EqualValues(t, 150, r.BytesFreed)
	assert.Error(t, r.Err)
	assert.Len(t, r.Failures(), 1)
}

func TestFindExecutables(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("detection uses unix permission bits here")
	}
	p := mkRecord(t, "multi", 10)
	addExecutable(t, p, "multi")
	// Cross-compiled layout.
	triple := filepath.Join(p.ArtifactPath, "x86_64-unknown-linux-musl", "release")
	require.NoError(t, os.MkdirAll(triple, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(triple, "multi"), []byte("#"), 0o755))

	found, err := FindExecutables(p)
	require.NoError(t, err)
	assert.Len(t, found, 2)
	for _, f := range found {
		assert.NotContains(t, f, "deps")
	}
}
