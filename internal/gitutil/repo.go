package gitutil

import (
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"github.com/shinji-kodama/auto-changelog/internal/model"
)

// Repo is a local Git working tree.
type Repo struct {
	// Dir is any path inside the working tree.
	Dir string
}

// Open returns the Repo rooted at the working tree that contains dir.
//
// Returns a CLIError with ExitGitError if dir is not inside a Git
// repository or git is not installed.
func Open(dir string) (*Repo, error) {
	root, err := runGit(dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return nil, err
	}
	return &Repo{Dir: strings.TrimSpace(root)}, nil
}

// RemoteURL returns the fetch URL of the named remote.
func (r *Repo) RemoteURL(name string) (string, error) {
	output, err := runGit(r.Dir, "remote", "get-url", name)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(output), nil
}

// RepoSlug returns "owner/name" for the origin remote.
func (r *Repo) RepoSlug() (string, error) {
	url, err := r.RemoteURL("origin")
	if err != nil {
		return "", err
	}
	return ParseRepoSlug(url)
}

// DetectRepoSlug resolves "owner/name" from the origin remote of the
// working tree containing dir.
func DetectRepoSlug(dir string) (string, error) {
	r, err := Open(dir)
	if err != nil {
		return "", err
	}
	return r.RepoSlug()
}

// remotePattern matches the owner and name at the end of a remote URL in
// any of the forms git accepts:
//
//	https://github.com/owner/name.git
//	ssh://git@github.com/owner/name
//	git@github.com:owner/name.git
var remotePattern = regexp.MustCompile(`[/:]([^/:]+)/([^/]+?)(?:\.git)?/?$`)

// ParseRepoSlug extracts "owner/name" from a remote URL.
func ParseRepoSlug(url string) (string, error) {
	m := remotePattern.FindStringSubmatch(strings.TrimSpace(url))
	if m == nil {
		return "", model.NewCLIError(model.ExitGitError, fmt.Sprintf("cannot determine repository from remote URL %q", url))
	}
	return m[1] + "/" + m[2], nil
}

// runGit executes a git command in the specified directory.
//
// It captures both stdout and stderr. On success it returns stdout. On
// failure it returns a model.CLIError with ExitGitError that includes the
// stderr output.
//
// The directory is passed to git via -C so the process working directory
// is never changed.
func runGit(dir string, args ...string) (string, error) {
	fullArgs := append([]string{"-C", dir}, args...)

	// #nosec G204 -- args are constructed internally, not from user input
	cmd := exec.Command("git", fullArgs...)

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		stderrStr := strings.TrimSpace(stderr.String())
		message := fmt.Sprintf("git %s failed", strings.Join(args, " "))
		if stderrStr != "" {
			message = fmt.Sprintf("%s: %s", message, stderrStr)
		}
		return "", model.WrapCLIError(model.ExitGitError, message, err)
	}

	return stdout.String(), nil
}
