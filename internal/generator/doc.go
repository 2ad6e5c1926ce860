// Package generator rebuilds the changelog of a GitHub repository.
//
// It reads the existing changelog, decides which release sections must be
// regenerated, attributes commits to releases by walking the branch history
// from newest to oldest, and writes the result back through the contents
// API (creating the target branch and a pull request when configured).
//
// The package depends on the Repository interface only; internal/ghapi
// provides the GitHub implementation and tests use an in-memory fake.
package generator
