package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/lakshaymaurya-felt/purger/internal/filter"
	"github.com/lakshaymaurya-felt/purger/internal/progress"
	"github.com/lakshaymaurya-felt/purger/internal/scan"
	"github.com/lakshaymaurya-felt/purger/internal/size"
	"github.com/lakshaymaurya-felt/purger/internal/ui"
)

var (
	scanOpts       scanFlags
	scanTargetOnly bool
	scanSortBySize bool
)

var scanCmd = &cobra.Command{
	Use:   "scan [path]",
	Short: "Find Cargo projects and measure their build artifacts",
	Long: `Walks the given directory (default: current directory) looking for
Cargo projects, measures each project's target directory, and prints a
summary table. Workspace members are folded into their workspace root.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := "."
		if len(args) == 1 {
			root = args[0]
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg, err := scanOpts.config(cmd)
		if err != nil {
			return err
		}

		ch := progress.NewChannel(0)
		go logProgress(ch)

		scanner := scan.New(cfg)
		records, err := scanner.Scan(ctx, root, ch)
		if err != nil {
			return err
		}
		reportWarnings(scanner.Warnings())

		if scanTargetOnly {
			records = scan.WithArtifact(records)
		}

		est := size.New(cfg.Workers())
		wait := est.Annotate(ctx, records, ch)
		wait()
		ch.Close()

		if fl := filter.New(cfg, est); fl.Enabled() {
			eligible, kept := fl.Partition(ctx, records)
			fmt.Printf("\n  %d project(s) eligible for cleaning, %d kept by retention rules\n",
				len(eligible), len(kept))
		}

		if scanSortBySize {
			scan.SortBySize(records)
		}
		absRoot, err := filepath.Abs(root)
		if err != nil {
			absRoot = root
		}
		fmt.Print(ui.ProjectTable(records, absRoot))

		if ctx.Err() != nil {
			fmt.Println("  scan interrupted, results are partial")
		}
		return nil
	},
}

func init() {
	registerScanFlags(scanCmd, &scanOpts)
	scanCmd.Flags().BoolVar(&scanTargetOnly, "target-only", false, "Only list projects that have a target directory")
	scanCmd.Flags().BoolVar(&scanSortBySize, "sort-by-size", false, "Sort projects by artifact size, largest first")
}

// logProgress drains discovery and sizing events into the structured
// log. Visible with --verbose.
func logProgress(ch *progress.Channel) {
	for ev := range ch.Events() {
		switch ev.Kind {
		case progress.KindManifestFound:
			logrus.WithField("project", ev.Project).
				WithField("found", ev.Count).Info("discovered project")
		case progress.KindSizeResolved:
			if ev.Err != nil {
				logrus.WithField("project", ev.Project).
					WithError(ev.Err).Warn("size measurement failed")
			} else {
				logrus.WithField("project", ev.Project).
					WithField("size", ui.FormatSize(ev.Bytes)).Info("measured artifact")
			}
		case progress.KindClean:
			logrus.WithField("project", ev.Project).
				WithField("phase", ev.Phase.String()).Info("cleaning")
		}
	}
}

func reportWarnings(warnings []string) {
	for _, w := range warnings {
		logrus.Info(w)
	}
	if n := len(warnings); n > 0 {
		fmt.Fprintf(os.Stderr, "  %s %d director(ies) could not be read (use --verbose for details)\n",
			ui.IconWarning, n)
	}
}
