package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/shinji-kodama/auto-changelog/internal/changelog"
	"github.com/shinji-kodama/auto-changelog/internal/model"
)

// Repository is the subset of the GitHub API the generator needs.
// Every error it returns for a failed API call should be a *model.APIError
// so that 404s and 403s can be told apart.
type Repository interface {
	// GetFile reads a file. ref may be empty for the default branch.
	GetFile(ctx context.Context, path, ref string) (*model.RemoteFile, error)

	// ListReleases returns all releases, newest first.
	ListReleases(ctx context.Context) ([]model.Release, error)

	// TagCommits maps every tag name to the SHA of the commit it points to.
	TagCommits(ctx context.Context) (map[string]string, error)

	// WalkCommits calls fn for each commit reachable from ref, newest
	// first, until fn returns false. ref may be empty for the default
	// branch. A ref without any commits yields a 404 APIError.
	WalkCommits(ctx context.Context, ref string, fn func(model.Commit) (bool, error)) error

	// CommitPullRequests lists the pull requests containing a commit.
	CommitPullRequests(ctx context.Context, sha string) ([]model.PullRequest, error)

	CreateFile(ctx context.Context, change model.FileChange) error
	UpdateFile(ctx context.Context, change model.FileChange) error

	// BranchHead returns the SHA at the tip of branch.
	BranchHead(ctx context.Context, branch string) (string, error)

	// CreateBranch creates refs/heads/<branch> pointing at sha.
	CreateBranch(ctx context.Context, branch, sha string) error

	// CreatePullRequest opens a pull request and returns its URL.
	CreatePullRequest(ctx context.Context, title, body, base, head string) (string, error)
}

// Options configure a Generator.
type Options struct {
	// Path is the changelog path inside the repository.
	Path string

	// Branch is where the changelog is read from and committed to.
	// Empty means the default branch.
	Branch string

	// PullRequest is the base branch of the pull request opened after
	// committing to Branch. Empty disables the pull request.
	PullRequest string

	CommitMessage string
	Committer     *model.Committer

	// UnreleasedCommits adds an Unreleased section for commits newer
	// than the latest release.
	UnreleasedCommits bool

	// RegenerateCount is how many of the most recent releases are always
	// regenerated. 0 only renders releases missing from the changelog,
	// a negative value regenerates every release.
	RegenerateCount int

	Render changelog.Options
}

// Result summarises a run for CLI output.
type Result struct {
	Path   string `json:"path"`
	Branch string `json:"branch,omitempty"`

	// Action is one of "created", "updated", "unchanged" or "written".
	Action string `json:"action"`

	// Regenerated lists the sections rendered in this run.
	Regenerated []string `json:"regenerated"`

	// Pending lists the sections that should have been rendered but
	// could not be.
	Pending []string `json:"pending,omitempty"`

	PullRequestURL string `json:"pullRequestUrl,omitempty"`
}

// Generator holds the state of one changelog run.
type Generator struct {
	repo     Repository
	opts     Options
	renderer *changelog.Renderer
	log      *zap.SugaredLogger

	// path and sha identify the existing file once it has been read.
	path       string
	sha        string
	fileExists bool
	existing   string
	doc        *changelog.Document

	// releases is in document order: Unreleased first, then newest first.
	releases    []*model.Release
	byTag       map[string]*model.Release
	pending     *tagSet
	regenerated []string
}

// New creates a Generator. It fails when the configured commit types do
// not compile.
func New(repo Repository, opts Options, log *zap.SugaredLogger) (*Generator, error) {
	renderer, err := changelog.NewRenderer(opts.Render)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Generator{
		repo:     repo,
		opts:     opts,
		renderer: renderer,
		log:      log,
		path:     opts.Path,
		byTag:    make(map[string]*model.Release),
		pending:  newTagSet(),
	}, nil
}

// Collect gathers releases, tags and commits and renders every section
// that needs to be regenerated.
func (g *Generator) Collect(ctx context.Context) error {
	// Step 1: Read and parse the changelog currently in the repository.
	if err := g.loadExisting(ctx); err != nil {
		return err
	}

	// Step 2: Decide which releases to regenerate.
	releases, err := g.repo.ListReleases(ctx)
	if err != nil {
		return fmt.Errorf("list releases: %w", err)
	}
	for i, r := range releases {
		if g.opts.RegenerateCount < 0 || i < g.opts.RegenerateCount {
			g.pending.add(r.Tag)
		}
	}
	for _, r := range releases {
		if !g.doc.Has(r.Tag) {
			g.pending.add(r.Tag)
		}
	}
	if g.opts.UnreleasedCommits {
		g.pending.add(model.Unreleased)
		g.addRelease(&model.Release{Tag: model.Unreleased})
	}
	g.log.Infow("regenerating releases", "releases", g.pending.list())

	// Step 3: Resolve each release's tag commit and keep the sections
	// that are not regenerated.
	tags, err := g.repo.TagCommits(ctx)
	if err != nil {
		return fmt.Errorf("list tags: %w", err)
	}
	for _, r := range releases {
		rel := r
		rel.Body = normalizeBody(rel.Body)
		rel.CommitSHA = tags[rel.Tag]
		if !g.pending.has(rel.Tag) {
			rel.Content = g.doc.Sections[rel.Tag]
		}
		g.addRelease(&rel)
	}

	// Step 4: Attribute commits to releases and render pending sections.
	if err := g.walk(ctx); err != nil {
		return err
	}

	// Step 5: Report what could not be rendered. A section that failed to
	// regenerate keeps its previously published text rather than vanishing.
	if !g.pending.empty() {
		g.log.Warnw("failed to generate all releases", "left", g.pending.list())
		for _, tag := range g.pending.list() {
			if rel, ok := g.byTag[tag]; ok && rel.Content == "" && g.doc.Has(tag) {
				rel.Content = g.doc.Sections[tag]
			}
		}
	}
	return nil
}

// walk iterates the branch history and renders each pending release from
// the commits between its tag and the next newer tag.
func (g *Generator) walk(ctx context.Context) error {
	if g.pending.empty() {
		return nil
	}

	bySHA := make(map[string]string)
	for _, rel := range g.releases {
		if rel.CommitSHA != "" {
			bySHA[rel.CommitSHA] = rel.Tag
		}
	}

	current := model.Unreleased
	var selected []model.Commit
	failed := false

	visit := func(c model.Commit) (bool, error) {
		tag, isRelease := bySHA[c.SHA]
		if !isRelease {
			selected = append(selected, c)
			return true, nil
		}
		if g.pending.has(current) {
			if err := g.render(ctx, current, selected); err != nil {
				g.log.Errorw("failed to get release content", "release", current, "status", model.StatusCode(err), "error", err)
				failed = true
				return false, nil
			}
			current = tag
			if g.pending.empty() {
				g.log.Infow("all pending releases are generated")
				selected = nil
				return false, nil
			}
		} else {
			current = tag
		}
		selected = []model.Commit{c}
		return true, nil
	}

	if err := g.walkCommits(ctx, visit); err != nil {
		return err
	}

	if !failed && len(selected) > 0 && g.pending.has(current) {
		if err := g.render(ctx, current, selected); err != nil {
			g.log.Errorw("failed to get release content", "release", current, "status", model.StatusCode(err), "error", err)
		}
	}
	return nil
}

// walkCommits walks the configured branch, falling back to the default
// branch when the configured one does not exist or has no commits.
func (g *Generator) walkCommits(ctx context.Context, fn func(model.Commit) (bool, error)) error {
	visited := false
	counted := func(c model.Commit) (bool, error) {
		visited = true
		return fn(c)
	}

	err := g.repo.WalkCommits(ctx, g.opts.Branch, counted)
	if err != nil && model.IsNotFound(err) && g.opts.Branch != "" && !visited {
		g.log.Warnw("no commits found on branch, using default branch", "branch", g.opts.Branch)
		err = g.repo.WalkCommits(ctx, "", counted)
	}
	if err != nil {
		return fmt.Errorf("list commits: %w", err)
	}
	return nil
}

// render resolves the pull requests of commits and stores the rendered
// section on the release identified by tag.
func (g *Generator) render(ctx context.Context, tag string, commits []model.Commit) error {
	rel, ok := g.byTag[tag]
	if !ok {
		return fmt.Errorf("unknown release %q", tag)
	}

	prepared := make([]model.ReleaseCommit, 0, len(commits))
	for _, c := range commits {
		pulls, err := g.repo.CommitPullRequests(ctx, c.SHA)
		if err != nil {
			return err
		}
		links := make([]string, 0, len(pulls))
		for _, p := range pulls {
			links = append(links, p.Link())
		}
		prepared = append(prepared, model.ReleaseCommit{
			Head:    changelog.MergeHead(c.Message),
			SHA:     c.SHA,
			URL:     c.HTMLURL,
			PRLinks: links,
		})
	}

	rel.Content = g.renderer.RenderRelease(rel, prepared)
	g.pending.remove(tag)
	g.regenerated = append(g.regenerated, tag)
	g.log.Debugw("rendered release", "release", tag, "commits", len(commits))
	return nil
}

// loadExisting reads the current changelog. A missing file (or branch) is
// not an error: the document is then created from scratch.
func (g *Generator) loadExisting(ctx context.Context) error {
	file, err := g.repo.GetFile(ctx, g.opts.Path, g.opts.Branch)
	if err != nil {
		if !model.IsNotFound(err) {
			return fmt.Errorf("read %s: %w", g.opts.Path, err)
		}
		g.log.Infow("no existing changelog", "path", g.opts.Path)
		g.doc, _ = changelog.ParseDocument("")
		return nil
	}

	g.fileExists = true
	g.path = file.Path
	g.sha = file.SHA
	g.existing = file.Content

	doc, err := changelog.ParseDocument(file.Content)
	if errors.Is(err, changelog.ErrMalformed) {
		g.log.Warnw("the changelog is not in the correct format, it will be replaced", "path", g.path)
	}
	for _, line := range doc.Skipped {
		g.log.Warnw("ignoring section without a release tag", "header", line)
	}
	g.doc = doc
	return nil
}

func (g *Generator) addRelease(rel *model.Release) {
	g.releases = append(g.releases, rel)
	g.byTag[rel.Tag] = rel
}

// Assemble renders the full changelog document.
func (g *Generator) Assemble() string {
	return changelog.Assemble(g.releases)
}

// Summary returns a Result describing the collection, without any write.
func (g *Generator) Summary() *Result {
	return &Result{
		Path:        g.path,
		Branch:      g.opts.Branch,
		Regenerated: append([]string{}, g.regenerated...),
		Pending:     g.pending.list(),
	}
}

// Write commits the assembled changelog when it differs from the current
// one, then opens a pull request if configured.
func (g *Generator) Write(ctx context.Context) (*Result, error) {
	res := g.Summary()
	text := g.Assemble()

	if text == g.existing {
		g.log.Warnw("same changelog, not pushing", "path", g.path)
		res.Action = "unchanged"
		return res, nil
	}

	change := model.FileChange{
		Path:      g.path,
		Message:   g.opts.CommitMessage,
		Content:   text,
		Branch:    g.opts.Branch,
		Committer: g.opts.Committer,
	}

	if g.fileExists {
		g.log.Infow("updating changelog", "path", g.path, "branch", g.opts.Branch)
		change.SHA = g.sha
		if err := g.repo.UpdateFile(ctx, change); err != nil {
			return nil, fmt.Errorf("update %s: %w", g.path, err)
		}
		res.Action = "updated"
	} else {
		g.log.Infow("creating changelog", "path", g.path, "branch", g.opts.Branch)
		err := g.repo.CreateFile(ctx, change)
		if err != nil && model.IsNotFound(err) && g.opts.Branch != "" {
			// The target branch does not exist yet.
			err = g.writeOnNewBranch(ctx, change)
		}
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", g.path, err)
		}
		res.Action = "created"
	}

	if g.opts.PullRequest != "" && g.opts.PullRequest != g.opts.Branch {
		g.log.Infow("creating pull request", "head", g.opts.Branch, "base", g.opts.PullRequest)
		url, err := g.repo.CreatePullRequest(ctx, g.opts.CommitMessage, g.opts.CommitMessage, g.opts.PullRequest, g.opts.Branch)
		if err != nil {
			return nil, fmt.Errorf("create pull request: %w", err)
		}
		res.PullRequestURL = url
	}
	return res, nil
}

// writeOnNewBranch creates the target branch from the pull request base
// and commits the changelog there.
func (g *Generator) writeOnNewBranch(ctx context.Context, change model.FileChange) error {
	base := g.opts.PullRequest
	if base == "" {
		return fmt.Errorf("branch %q does not exist and no pull request base is configured to create it from", g.opts.Branch)
	}
	sha, err := g.repo.BranchHead(ctx, base)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", base, err)
	}
	if err := g.repo.CreateBranch(ctx, g.opts.Branch, sha); err != nil {
		return fmt.Errorf("create branch %s: %w", g.opts.Branch, err)
	}
	g.log.Infow("created branch", "branch", g.opts.Branch, "from", base)

	// The base branch may already carry a changelog at the same path.
	file, err := g.repo.GetFile(ctx, change.Path, g.opts.Branch)
	if err != nil {
		if !model.IsNotFound(err) {
			return err
		}
		return g.repo.CreateFile(ctx, change)
	}
	change.SHA = file.SHA
	return g.repo.UpdateFile(ctx, change)
}

// normalizeBody converts CRLF line endings and trims outer newlines.
func normalizeBody(body string) string {
	return strings.Trim(strings.ReplaceAll(body, "\r\n", "\n"), "\n")
}
