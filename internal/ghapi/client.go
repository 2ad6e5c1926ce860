package ghapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/go-github/v66/github"

	"github.com/shinji-kodama/auto-changelog/internal/model"
)

// perPage is the page size for every list request (the API maximum).
const perPage = 100

// Client talks to a single repository.
type Client struct {
	gh    *github.Client
	owner string
	repo  string
}

// NewClient creates a Client for repoName ("owner/name") authenticated with
// token. apiURL selects a GitHub Enterprise server; empty means github.com.
func NewClient(token, repoName, apiURL string) (*Client, error) {
	owner, repo, err := SplitRepoName(repoName)
	if err != nil {
		return nil, err
	}

	gh := github.NewClient(nil)
	if token != "" {
		gh = gh.WithAuthToken(token)
	}
	if apiURL != "" && !strings.HasPrefix(apiURL, "https://api.github.com") {
		gh, err = gh.WithEnterpriseURLs(apiURL, apiURL)
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub API URL %q: %w", apiURL, err)
		}
	}
	return &Client{gh: gh, owner: owner, repo: repo}, nil
}

// newClientWith wraps an already configured go-github client.
func newClientWith(gh *github.Client, owner, repo string) *Client {
	return &Client{gh: gh, owner: owner, repo: repo}
}

// SplitRepoName splits "owner/name" into its two parts.
func SplitRepoName(repoName string) (string, string, error) {
	owner, repo, ok := strings.Cut(strings.TrimSpace(repoName), "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", fmt.Errorf("invalid repository name %q: expected \"owner/name\"", repoName)
	}
	return owner, repo, nil
}

// GetFile reads a file through the contents API.
func (c *Client) GetFile(ctx context.Context, path, ref string) (*model.RemoteFile, error) {
	var opts *github.RepositoryContentGetOptions
	if ref != "" {
		opts = &github.RepositoryContentGetOptions{Ref: ref}
	}
	file, _, _, err := c.gh.Repositories.GetContents(ctx, c.owner, c.repo, path, opts)
	if err != nil {
		return nil, wrapError("get contents of "+path, err)
	}
	if file == nil {
		return nil, &model.APIError{Message: fmt.Sprintf("%s is a directory", path)}
	}
	content, err := file.GetContent()
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &model.RemoteFile{Path: file.GetPath(), SHA: file.GetSHA(), Content: content}, nil
}

// ListReleases returns every release, newest first.
func (c *Client) ListReleases(ctx context.Context) ([]model.Release, error) {
	var releases []model.Release
	opts := &github.ListOptions{PerPage: perPage}
	for {
		page, resp, err := c.gh.Repositories.ListReleases(ctx, c.owner, c.repo, opts)
		if err != nil {
			return nil, wrapError("list releases", err)
		}
		for _, r := range page {
			releases = append(releases, model.Release{
				Tag:       r.GetTagName(),
				HTMLURL:   r.GetHTMLURL(),
				Body:      r.GetBody(),
				CreatedAt: r.GetCreatedAt().Time,
			})
		}
		if resp.NextPage == 0 {
			return releases, nil
		}
		opts.Page = resp.NextPage
	}
}

// TagCommits maps tag names to commit SHAs.
func (c *Client) TagCommits(ctx context.Context) (map[string]string, error) {
	tags := make(map[string]string)
	opts := &github.ListOptions{PerPage: perPage}
	for {
		page, resp, err := c.gh.Repositories.ListTags(ctx, c.owner, c.repo, opts)
		if err != nil {
			return nil, wrapError("list tags", err)
		}
		for _, t := range page {
			tags[t.GetName()] = t.GetCommit().GetSHA()
		}
		if resp.NextPage == 0 {
			return tags, nil
		}
		opts.Page = resp.NextPage
	}
}

// WalkCommits pages through the history of ref, newest first.
func (c *Client) WalkCommits(ctx context.Context, ref string, fn func(model.Commit) (bool, error)) error {
	opts := &github.CommitsListOptions{
		SHA:         ref,
		ListOptions: github.ListOptions{PerPage: perPage},
	}
	first := true
	for {
		page, resp, err := c.gh.Repositories.ListCommits(ctx, c.owner, c.repo, opts)
		if err != nil {
			return wrapError("list commits", err)
		}
		if first && len(page) == 0 {
			return &model.APIError{StatusCode: http.StatusNotFound, Message: fmt.Sprintf("no commits found on %s", describeRef(ref))}
		}
		first = false

		for _, rc := range page {
			more, err := fn(model.Commit{
				SHA:     rc.GetSHA(),
				Message: rc.GetCommit().GetMessage(),
				HTMLURL: rc.GetHTMLURL(),
			})
			if err != nil || !more {
				return err
			}
		}
		if resp.NextPage == 0 {
			return nil
		}
		opts.Page = resp.NextPage
	}
}

// CommitPullRequests lists the pull requests associated with a commit.
func (c *Client) CommitPullRequests(ctx context.Context, sha string) ([]model.PullRequest, error) {
	var pulls []model.PullRequest
	opts := &github.ListOptions{PerPage: perPage}
	for {
		page, resp, err := c.gh.PullRequests.ListPullRequestsWithCommit(ctx, c.owner, c.repo, sha, opts)
		if err != nil {
			return nil, wrapError("list pull requests of "+sha, err)
		}
		for _, pr := range page {
			pulls = append(pulls, model.PullRequest{Number: pr.GetNumber(), HTMLURL: pr.GetHTMLURL()})
		}
		if resp.NextPage == 0 {
			return pulls, nil
		}
		opts.Page = resp.NextPage
	}
}

// CreateFile commits a new file.
func (c *Client) CreateFile(ctx context.Context, change model.FileChange) error {
	_, _, err := c.gh.Repositories.CreateFile(ctx, c.owner, c.repo, change.Path, fileOptions(change))
	if err != nil {
		return wrapError("create "+change.Path, err)
	}
	return nil
}

// UpdateFile commits a new version of an existing file.
func (c *Client) UpdateFile(ctx context.Context, change model.FileChange) error {
	_, _, err := c.gh.Repositories.UpdateFile(ctx, c.owner, c.repo, change.Path, fileOptions(change))
	if err != nil {
		return wrapError("update "+change.Path, err)
	}
	return nil
}

// BranchHead returns the commit at the tip of branch.
func (c *Client) BranchHead(ctx context.Context, branch string) (string, error) {
	b, _, err := c.gh.Repositories.GetBranch(ctx, c.owner, c.repo, branch, 1)
	if err != nil {
		return "", wrapError("get branch "+branch, err)
	}
	return b.GetCommit().GetSHA(), nil
}

// CreateBranch creates a branch pointing at sha.
func (c *Client) CreateBranch(ctx context.Context, branch, sha string) error {
	ref := &github.Reference{
		Ref:    github.String("refs/heads/" + branch),
		Object: &github.GitObject{SHA: github.String(sha)},
	}
	if _, _, err := c.gh.Git.CreateRef(ctx, c.owner, c.repo, ref); err != nil {
		return wrapError("create branch "+branch, err)
	}
	return nil
}

// CreatePullRequest opens a pull request from head into base.
func (c *Client) CreatePullRequest(ctx context.Context, title, body, base, head string) (string, error) {
	pr, _, err := c.gh.PullRequests.Create(ctx, c.owner, c.repo, &github.NewPullRequest{
		Title:               github.String(title),
		Body:                github.String(body),
		Base:                github.String(base),
		Head:                github.String(head),
		Draft:               github.Bool(false),
		MaintainerCanModify: github.Bool(true),
	})
	if err != nil {
		return "", wrapError(fmt.Sprintf("create pull request %s -> %s", head, base), err)
	}
	return pr.GetHTMLURL(), nil
}

// fileOptions converts a FileChange into contents API options.
func fileOptions(change model.FileChange) *github.RepositoryContentFileOptions {
	opts := &github.RepositoryContentFileOptions{
		Message: github.String(change.Message),
		Content: []byte(change.Content),
	}
	if change.SHA != "" {
		opts.SHA = github.String(change.SHA)
	}
	if change.Branch != "" {
		opts.Branch = github.String(change.Branch)
	}
	if change.Committer != nil {
		opts.Committer = &github.CommitAuthor{
			Name:  github.String(change.Committer.Name),
			Email: github.String(change.Committer.Email),
		}
	}
	return opts
}

// wrapError converts a go-github error into a *model.APIError carrying the
// HTTP status code.
func wrapError(op string, err error) error {
	apiErr := &model.APIError{Message: op, Err: err}

	var errResp *github.ErrorResponse
	var rateErr *github.RateLimitError
	var abuseErr *github.AbuseRateLimitError
	switch {
	case errors.As(err, &errResp) && errResp.Response != nil:
		apiErr.StatusCode = errResp.Response.StatusCode
	case errors.As(err, &rateErr) && rateErr.Response != nil:
		apiErr.StatusCode = rateErr.Response.StatusCode
	case errors.As(err, &abuseErr) && abuseErr.Response != nil:
		apiErr.StatusCode = abuseErr.Response.StatusCode
	}
	return apiErr
}

func describeRef(ref string) string {
	if ref == "" {
		return "the default branch"
	}
	return "branch " + ref
}
