// Package model defines the domain types for the auto-changelog CLI.
//
// The types in this package describe releases, commits and files as the
// changelog generator sees them. They are deliberately decoupled from the
// GitHub SDK types so that rendering and orchestration can be tested
// without network access.
//
// Errors that must reach the process exit code are expressed as CLIError,
// and every failure coming from the GitHub API is normalised to APIError.
package model
