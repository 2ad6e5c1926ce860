package model

import (
	"fmt"
	"strings"
	"time"
)

// Unreleased is the pseudo-release that collects commits newer than the
// most recent release tag. It never has a tag commit or a release URL.
const Unreleased = "Unreleased"

// Release is a GitHub release together with the changelog section
// rendered for it.
type Release struct {
	// Tag is the release tag name (e.g., "v1.2.0"), or Unreleased.
	Tag string `json:"tag"`

	// HTMLURL links to the release page on GitHub.
	HTMLURL string `json:"htmlUrl"`

	// Body is the release description with CRLF normalised to LF and
	// leading/trailing newlines removed.
	Body string `json:"body"`

	// CreatedAt is when the release was created on GitHub.
	CreatedAt time.Time `json:"createdAt"`

	// CommitSHA is the commit the release tag points to. Empty when the
	// tag could not be found (e.g., a draft release without a tag).
	CommitSHA string `json:"commitSha"`

	// Content is the rendered changelog section for this release.
	// An empty Content means the release is omitted from the document.
	Content string `json:"-"`
}

// IsUnreleased reports whether r is the Unreleased pseudo-release.
func (r *Release) IsUnreleased() bool {
	return r.Tag == Unreleased
}

// Commit is a single commit as returned by the commit listing.
type Commit struct {
	SHA     string `json:"sha"`
	Message string `json:"message"`
	HTMLURL string `json:"htmlUrl"`
}

// ReleaseCommit is a commit prepared for rendering: its head line has been
// extracted and its associated pull requests resolved into link fragments.
type ReleaseCommit struct {
	// Head is the first paragraph of the commit message, with a
	// "..." continuation from the second paragraph merged in.
	Head string

	// SHA is the full commit SHA. Rendering shortens it to 7 characters.
	SHA string

	// URL links to the commit on GitHub.
	URL string

	// PRLinks holds pre-rendered " ([#N](url))" fragments, one per pull
	// request that contains this commit.
	PRLinks []string
}

// PullRequest is the minimal pull request information needed to link
// a commit to the pull request(s) that introduced it.
type PullRequest struct {
	Number  int    `json:"number"`
	HTMLURL string `json:"htmlUrl"`
}

// Link renders the pull request as a changelog link fragment.
//
// Example:
//
//	{Number: 12, HTMLURL: "https://github.com/o/r/pull/12"} → " ([#12](https://github.com/o/r/pull/12))"
func (p PullRequest) Link() string {
	return fmt.Sprintf(" ([#%d](%s))", p.Number, p.HTMLURL)
}

// Part maps a conventional-commit type pattern to a changelog section
// title. It is written as "pattern:Title" in the TYPE input.
type Part struct {
	// Pattern is a regular expression fragment matching the commit type
	// (e.g., "feat" or "fix|bugfix"). It is anchored at the start of the
	// commit head when matched.
	Pattern string `json:"pattern"`

	// Name is the section title rendered as "### Name".
	Name string `json:"name"`
}

// Committer identifies who commits the changelog file.
type Committer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// ParseCommitter converts a "name email" string into a Committer.
// An empty string yields nil, meaning the API default (the token owner)
// is used.
func ParseCommitter(s string) (*Committer, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	fields := strings.Fields(s)
	if len(fields) < 2 {
		return nil, fmt.Errorf("invalid committer %q: expected \"name email\"", s)
	}
	return &Committer{Name: fields[0], Email: fields[1]}, nil
}

// String returns the "name email" representation of the committer.
func (c *Committer) String() string {
	if c == nil {
		return ""
	}
	return c.Name + " " + c.Email
}

// RemoteFile is a file read from the repository through the contents API.
type RemoteFile struct {
	// Path is the repository path as reported by the API.
	Path string

	// SHA is the blob SHA, required to update the file.
	SHA string

	// Content is the decoded file content.
	Content string
}

// FileChange describes a create or update of a single file through the
// contents API.
type FileChange struct {
	Path    string
	Message string
	Content string

	// SHA is the blob SHA being replaced. Required for updates, empty for
	// creates.
	SHA string

	// Branch is the target branch. Empty means the default branch.
	Branch string

	// Committer overrides the commit identity. Nil means the API default.
	Committer *Committer
}
