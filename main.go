package main

import (
	"os"

	"github.com/lakshaymaurya-felt/purger/cmd"
)

// Populated by goreleaser / -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cmd.SetVersionInfo(version, commit, date)
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
