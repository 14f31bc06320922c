package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lakshaymaurya-felt/purger/internal/scan"
	"github.com/lakshaymaurya-felt/purger/internal/ui"
)

// scanFlags holds the discovery and retention options shared by the
// scan and clean commands. Each command carries its own instance so the
// two flag sets stay independent.
type scanFlags struct {
	maxDepth       int
	followSymlinks bool
	includeHidden  bool
	noGitignore    bool
	ignorePaths    []string
	keepDays       int
	keepSize       string
	keepUnknownAge bool
	jobs           int
}

func registerScanFlags(cmd *cobra.Command, f *scanFlags) {
	cmd.Flags().IntVar(&f.maxDepth, "max-depth", 10, "Maximum directory depth to descend (0 = unlimited)")
	cmd.Flags().BoolVar(&f.followSymlinks, "follow-symlinks", false, "Descend into symlinked directories")
	cmd.Flags().BoolVar(&f.includeHidden, "include-hidden", false, "Descend into hidden directories")
	cmd.Flags().BoolVar(&f.noGitignore, "no-gitignore", false, "Ignore .gitignore rules during discovery")
	cmd.Flags().StringSliceVar(&f.ignorePaths, "ignore", nil, "Path prefix to exclude (repeatable)")
	cmd.Flags().IntVar(&f.keepDays, "keep-days", 0, "Keep projects built within the last N days")
	cmd.Flags().StringVar(&f.keepSize, "keep-size", "", "Keep projects with artifacts below this size (e.g. 500MB)")
	cmd.Flags().BoolVar(&f.keepUnknownAge, "keep-unknown-age", false, "Keep projects whose build time cannot be determined")
	cmd.Flags().IntVar(&f.jobs, "jobs", 0, "Worker count (0 = number of CPUs, capped at 8)")
}

// config materializes the flag values, letting the config file fill in
// anything not given on the command line.
func (f *scanFlags) config(cmd *cobra.Command) (scan.Config, error) {
	maxDepth := f.maxDepth
	if !cmd.Flags().Changed("max-depth") && viper.IsSet("max-depth") {
		maxDepth = viper.GetInt("max-depth")
	}
	jobs := f.jobs
	if !cmd.Flags().Changed("jobs") && viper.IsSet("jobs") {
		jobs = viper.GetInt("jobs")
	}
	keepDays := f.keepDays
	if !cmd.Flags().Changed("keep-days") && viper.IsSet("keep-days") {
		keepDays = viper.GetInt("keep-days")
	}
	keepSize := f.keepSize
	if !cmd.Flags().Changed("keep-size") && viper.IsSet("keep-size") {
		keepSize = viper.GetString("keep-size")
	}
	ignorePaths := f.ignorePaths
	if !cmd.Flags().Changed("ignore") && viper.IsSet("ignore") {
		ignorePaths = viper.GetStringSlice("ignore")
	}

	var keepSizeBytes int64
	if keepSize != "" {
		n, err := ui.ParseSize(keepSize)
		if err != nil {
			return scan.Config{}, fmt.Errorf("--keep-size: %w", err)
		}
		keepSizeBytes = n
	}
	if keepDays < 0 {
		return scan.Config{}, fmt.Errorf("--keep-days must not be negative")
	}

	return scan.Config{
		MaxDepth:         maxDepth,
		FollowSymlinks:   f.followSymlinks,
		RespectGitignore: !f.noGitignore,
		SkipHidden:       !f.includeHidden,
		IgnorePaths:      ignorePaths,
		KeepDays:         keepDays,
		KeepSize:         keepSizeBytes,
		KeepUnknownAge:   f.keepUnknownAge,
		Parallelism:      jobs,
	}, nil
}
