package generator

import (
	"context"
	"net/http"

	"github.com/shinji-kodama/auto-changelog/internal/model"
)

// fakeRepo is an in-memory Repository. Files are keyed by "branch:path";
// the default branch is "main" and is also used for an empty ref.
type fakeRepo struct {
	files    map[string]model.RemoteFile
	branches map[string]string
	releases []model.Release
	tags     map[string]string
	commits  map[string][]model.Commit
	pulls    map[string][]model.PullRequest
	pullErr  map[string]error

	visited  []string
	walkRefs []string
	created  []model.FileChange
	updated  []model.FileChange
	newRefs  []string
	prs      [][2]string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		files:    make(map[string]model.RemoteFile),
		branches: map[string]string{"main": "9999999999"},
		tags:     make(map[string]string),
		commits:  make(map[string][]model.Commit),
		pulls:    make(map[string][]model.PullRequest),
		pullErr:  make(map[string]error),
	}
}

func notFound(msg string) error {
	return &model.APIError{StatusCode: http.StatusNotFound, Message: msg}
}

func resolveRef(ref string) string {
	if ref == "" {
		return "main"
	}
	return ref
}

func (f *fakeRepo) GetFile(_ context.Context, path, ref string) (*model.RemoteFile, error) {
	ref = resolveRef(ref)
	if _, ok := f.branches[ref]; !ok {
		return nil, notFound("no such branch")
	}
	file, ok := f.files[ref+":"+path]
	if !ok {
		return nil, notFound("no such file")
	}
	return &file, nil
}

func (f *fakeRepo) ListReleases(context.Context) ([]model.Release, error) {
	return f.releases, nil
}

func (f *fakeRepo) TagCommits(context.Context) (map[string]string, error) {
	return f.tags, nil
}

func (f *fakeRepo) WalkCommits(_ context.Context, ref string, fn func(model.Commit) (bool, error)) error {
	f.walkRefs = append(f.walkRefs, ref)
	commits := f.commits[resolveRef(ref)]
	if len(commits) == 0 {
		return notFound("no commits")
	}
	for _, c := range commits {
		f.visited = append(f.visited, c.SHA)
		more, err := fn(c)
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
	return nil
}

func (f *fakeRepo) CommitPullRequests(_ context.Context, sha string) ([]model.PullRequest, error) {
	if err := f.pullErr[sha]; err != nil {
		return nil, err
	}
	return f.pulls[sha], nil
}

func (f *fakeRepo) CreateFile(_ context.Context, change model.FileChange) error {
	ref := resolveRef(change.Branch)
	if _, ok := f.branches[ref]; !ok {
		return notFound("branch not found")
	}
	f.created = append(f.created, change)
	f.files[ref+":"+change.Path] = model.RemoteFile{Path: change.Path, SHA: "new-sha", Content: change.Content}
	return nil
}

func (f *fakeRepo) UpdateFile(_ context.Context, change model.FileChange) error {
	ref := resolveRef(change.Branch)
	if _, ok := f.branches[ref]; !ok {
		return notFound("branch not found")
	}
	f.updated = append(f.updated, change)
	f.files[ref+":"+change.Path] = model.RemoteFile{Path: change.Path, SHA: "updated-sha", Content: change.Content}
	return nil
}

func (f *fakeRepo) BranchHead(_ context.Context, branch string) (string, error) {
	sha, ok := f.branches[branch]
	if !ok {
		return "", notFound("branch not found")
	}
	return sha, nil
}

func (f *fakeRepo) CreateBranch(_ context.Context, branch, sha string) error {
	f.branches[branch] = sha
	f.newRefs = append(f.newRefs, branch)
	return nil
}

func (f *fakeRepo) CreatePullRequest(_ context.Context, _, _, base, head string) (string, error) {
	f.prs = append(f.prs, [2]string{base, head})
	return "https://github.com/o/r/pull/100", nil
}
