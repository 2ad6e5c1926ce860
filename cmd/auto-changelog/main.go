// Package main is the entry point for the auto-changelog CLI.
//
// The binary is the program shipped in the action image: /entrypoint.sh
// execs it with the container arguments. It delegates all functionality
// to the internal/cli package, which defines cobra commands.
//
// Build-time variables (version, commit, date) are injected via ldflags.
// During development, they default to "dev", "none", and "unknown".
package main

import (
	"github.com/shinji-kodama/auto-changelog/internal/cli"
)

// version, commit, and date are set at build time via ldflags
// (see the Dockerfile).
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cli.Version = version
	cli.Commit = commit
	cli.Date = date

	rootCmd := cli.NewRootCommand()
	cli.Execute(rootCmd)
}
