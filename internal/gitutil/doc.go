// Package gitutil inspects the local Git checkout that auto-changelog runs
// from in local mode.
//
// It shells out to the git CLI, the same binary the container image ships,
// so that remote URLs and branch names are resolved exactly as the user's
// git configuration (insteadOf rewrites, worktrees) would resolve them.
//
// All errors from Git commands are wrapped in model.CLIError with
// ExitGitError to enable proper CLI exit code handling.
package gitutil
