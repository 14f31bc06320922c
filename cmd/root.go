package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Global flags
	verbose bool
	debug   bool
	cfgFile string

	// Version info populated from main
	appVersion = "dev"
	appCommit  = "none"
	appDate    = "unknown"
)

// SetVersionInfo sets build-time version information.
func SetVersionInfo(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

var rootCmd = &cobra.Command{
	Use:   "purger",
	Short: "Reclaim disk space from Rust build artifacts",
	Long: `Purger - Reclaim disk space from Rust build artifacts.

Scans a directory tree for Cargo projects, measures their target
directories, and removes the ones you no longer need. Retention rules
keep recent or small builds, and executables can be backed up before
anything is deleted.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		switch {
		case debug:
			logrus.SetLevel(logrus.DebugLevel)
		case verbose:
			logrus.SetLevel(logrus.InfoLevel)
		default:
			logrus.SetLevel(logrus.WarnLevel)
		}
		initConfig()
	},
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show per-project progress")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Show detailed operation logs")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default purger.yaml in . or ~/.config/purger)")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(completionCmd)
}

// initConfig loads the optional config file. Flag values given on the
// command line always win over file values.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("purger")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home + "/.config/purger")
		}
	}
	viper.SetEnvPrefix("PURGER")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		logrus.WithField("file", viper.ConfigFileUsed()).Debug("loaded config file")
	} else if cfgFile != "" {
		logrus.WithError(err).Warn("could not read config file")
	}
}
