package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lakshaymaurya-felt/purger/internal/clean"
	"github.com/lakshaymaurya-felt/purger/internal/filter"
	"github.com/lakshaymaurya-felt/purger/internal/progress"
	"github.com/lakshaymaurya-felt/purger/internal/scan"
	"github.com/lakshaymaurya-felt/purger/internal/size"
	"github.com/lakshaymaurya-felt/purger/internal/ui"
)

var (
	cleanOpts        scanFlags
	cleanStrategy    string
	cleanDryRun      bool
	cleanYes         bool
	cleanKeepExe     bool
	cleanBackupDir   string
	cleanTimeout     time.Duration
	cleanInteractive bool
	cleanFastDelete  bool
)

var cleanCmd = &cobra.Command{
	Use:   "clean [path]",
	Short: "Remove build artifacts from discovered projects",
	Long: `Scans for Cargo projects under the given path (default: current
directory), applies the retention rules, and removes the remaining
projects' target directories. Asks for confirmation before deleting
anything unless --yes or --dry-run is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runClean,
}

func init() {
	registerScanFlags(cleanCmd, &cleanOpts)
	cleanCmd.Flags().StringVar(&cleanStrategy, "strategy", "", "Cleaning strategy: cargo-clean or direct-delete (default cargo-clean)")
	cleanCmd.Flags().BoolVar(&cleanDryRun, "dry-run", false, "Report what would be removed without deleting")
	cleanCmd.Flags().BoolVarP(&cleanYes, "yes", "y", false, "Skip the confirmation prompt")
	cleanCmd.Flags().BoolVar(&cleanKeepExe, "keep-executable", false, "Back up built executables before deleting")
	cleanCmd.Flags().StringVar(&cleanBackupDir, "executable-backup-dir", "", "Directory for executable backups (default <project>/executables)")
	cleanCmd.Flags().DurationVar(&cleanTimeout, "timeout", 0, "Per-project time limit (0 = none)")
	cleanCmd.Flags().BoolVarP(&cleanInteractive, "interactive", "i", false, "Pick projects to clean interactively")
	cleanCmd.Flags().BoolVar(&cleanFastDelete, "fast-delete", false, "Use the native bulk delete on Windows")
}

func runClean(cmd *cobra.Command, args []string) error {
	root := "."
	if len(args) == 1 {
		root = args[0]
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve path %s: %w", root, err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scanCfg, err := cleanOpts.config(cmd)
	if err != nil {
		return err
	}
	cleanCfg, err := buildCleanConfig(cmd, scanCfg)
	if err != nil {
		return err
	}
	if cleanCfg.Strategy == clean.StrategyCargoClean && !cleanCfg.DryRun && !clean.CargoAvailable() {
		return fmt.Errorf("cargo not found on PATH; install cargo or use --strategy direct-delete")
	}

	ch := progress.NewChannel(0)
	interactive := cleanInteractive && isatty.IsTerminal(os.Stdout.Fd())
	if !interactive {
		go logProgress(ch)
	}

	scanner := scan.New(scanCfg)
	records, err := scanner.Scan(ctx, root, ch)
	if err != nil {
		return err
	}
	reportWarnings(scanner.Warnings())

	est := size.New(scanCfg.Workers())
	fl := filter.New(scanCfg, est)
	targets, kept := fl.Partition(ctx, scan.WithArtifact(records))
	if len(kept) > 0 {
		logrus.WithField("kept", len(kept)).Info("projects held back by retention rules")
	}
	if len(targets) == 0 {
		ch.Close()
		fmt.Println("  nothing to clean")
		return nil
	}

	wait := est.Annotate(ctx, targets, ch)

	if interactive {
		picked, pickErr := ui.RunPicker(targets, absRoot, ch.Events())
		if pickErr != nil {
			// Drain the annotation pool even on the abort path.
			wait()
			ch.Close()
			if errors.Is(pickErr, ui.ErrPickerAborted) {
				fmt.Println("  aborted, nothing cleaned")
				return nil
			}
			return pickErr
		}
		targets = picked
	}
	wait()
	ch.Close()

	if len(targets) == 0 {
		fmt.Println("  nothing selected")
		return nil
	}

	if !interactive {
		fmt.Print(ui.ProjectTable(targets, absRoot))
	}
	if !cleanYes && !cleanCfg.DryRun && !interactive {
		if !confirm(fmt.Sprintf("Clean %d project(s)?", len(targets))) {
			fmt.Println("  aborted, nothing cleaned")
			return nil
		}
	}

	freeBefore := freeSpace(absRoot)

	// The clean phase gets its own event channel so earlier consumers
	// cannot race it for events.
	cleanCh := progress.NewChannel(0)
	go logProgress(cleanCh)

	cleaner := clean.New(cleanCfg, est)
	report := cleaner.Clean(ctx, targets, cleanCh)
	cleanCh.Close()

	printReport(report, freeBefore, absRoot)
	if report.Failed > 0 {
		return fmt.Errorf("%d project(s) failed to clean", report.Failed)
	}
	return nil
}

func buildCleanConfig(cmd *cobra.Command, scanCfg scan.Config) (clean.Config, error) {
	name := cleanStrategy
	if !cmd.Flags().Changed("strategy") && viper.IsSet("strategy") {
		name = viper.GetString("strategy")
	}
	if name == "" {
		name = "cargo-clean"
	}
	strat, err := clean.ParseStrategy(name)
	if err != nil {
		return clean.Config{}, err
	}

	backupDir := cleanBackupDir
	if !cmd.Flags().Changed("executable-backup-dir") && viper.IsSet("executable-backup-dir") {
		backupDir = viper.GetString("executable-backup-dir")
	}

	return clean.Config{
		Strategy:            strat,
		DryRun:              cleanDryRun,
		Parallelism:         scanCfg.Workers(),
		Timeout:             cleanTimeout,
		KeepExecutable:      cleanKeepExe,
		ExecutableBackupDir: backupDir,
		FastNativeDelete:    cleanFastDelete,
	}, nil
}

func confirm(prompt string) bool {
	fmt.Printf("  %s [y/N]: ", prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

// freeSpace returns the free bytes on the volume holding path, or -1
// when it cannot be determined.
func freeSpace(path string) int64 {
	usage, err := disk.Usage(path)
	if err != nil {
		logrus.WithError(err).Debug("could not read disk usage")
		return -1
	}
	return int64(usage.Free)
}

func printReport(r *clean.Report, freeBefore int64, root string) {
	fmt.Println()
	if r.DryRuns > 0 {
		fmt.Printf("  dry run: %d project(s), %s would be freed\n",
			r.DryRuns, ui.FormatSize(r.BytesFreed))
	} else {
		fmt.Printf("  cleaned %d project(s), freed %s in %s\n",
			r.Cleaned, ui.FormatSize(r.BytesFreed), r.Duration.Round(10*time.Millisecond))
	}
	if r.Skipped > 0 {
		fmt.Printf("  skipped %d project(s)\n", r.Skipped)
	}
	for _, f := range r.Failures() {
		fmt.Fprintf(os.Stderr, "  %s %s: %v\n", ui.IconError, f.Project.Name, f.Err)
	}

	if freeBefore >= 0 && r.Cleaned > 0 {
		if freeAfter := freeSpace(root); freeAfter >= 0 {
			fmt.Printf("  free space: %s %s %s\n",
				ui.FormatSize(freeBefore), ui.IconChevron, ui.FormatSize(freeAfter))
		}
	}
}
