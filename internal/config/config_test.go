package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinji-kodama/auto-changelog/internal/model"
)

// projectRoot returns the absolute path to the project root directory,
// located relative to this source file.
func projectRoot(t *testing.T) string {
	t.Helper()
	_, filename, _, ok := runtime.Caller(0)
	require.True(t, ok, "runtime.Caller failed to return file info")
	return filepath.Join(filepath.Dir(filename), "..", "..")
}

// workflowPath returns the path of a workflow fixture.
func workflowPath(t *testing.T, name string) string {
	t.Helper()
	return filepath.Join(projectRoot(t), "tests", "testdata", "workflows", name)
}

// mapEnv builds an Env from a map.
func mapEnv(m map[string]string) Env {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

// exitCode extracts the CLIError exit code of err.
func exitCode(t *testing.T, err error) model.ExitCode {
	t.Helper()
	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr), "expected a CLIError, got %v", err)
	return cliErr.Code
}

// --- github mode ---

// TestResolveFromEnv verifies that INPUT_* variables override defaults and
// that an empty REPO_NAME falls back to GITHUB_REPOSITORY.
func TestResolveFromEnv(t *testing.T) {
	env := mapEnv(map[string]string{
		"INPUT_ACCESS_TOKEN":       "secret",
		"INPUT_REPO_NAME":          "",
		"INPUT_BRANCH":             "changelog",
		"INPUT_PULL_REQUEST":       "main",
		"INPUT_COMMITTER":          "bot bot@example.com",
		"INPUT_TYPE":               "feat:Feature, fix:Bug Fixes",
		"INPUT_UNRELEASED_COMMITS": "true",
		"INPUT_REGENERATE_COUNT":   "2",
		"GITHUB_REPOSITORY":        "octo/hello",
		"GITHUB_API_URL":           "https://api.github.com",
	})

	in, err := Resolve(Defaults().Merge(FromEnv(env)), env)
	require.NoError(t, err)

	assert.Equal(t, "secret", in.AccessToken)
	assert.Equal(t, "octo/hello", in.RepoName)
	assert.Equal(t, "CHANGELOG.md", in.Path)
	assert.Equal(t, "changelog", in.Branch)
	assert.Equal(t, "main", in.PullRequest)
	assert.Equal(t, &model.Committer{Name: "bot", Email: "bot@example.com"}, in.Committer)
	assert.Equal(t, []model.Part{{Pattern: "feat", Name: "Feature"}, {Pattern: "fix", Name: "Bug Fixes"}}, in.Parts)
	assert.Equal(t, "general", in.DefaultScope)
	assert.True(t, in.UnreleasedCommits)
	assert.False(t, in.SuppressUnscoped)
	assert.Equal(t, 2, in.RegenerateCount)
	assert.Equal(t, "https://api.github.com", in.APIURL)
}

// TestResolveDefaults verifies the defaults when only the required inputs
// are given.
func TestResolveDefaults(t *testing.T) {
	env := mapEnv(map[string]string{
		"INPUT_ACCESS_TOKEN": "secret",
		"INPUT_REPO_NAME":    "octo/hello",
	})

	in, err := Resolve(Defaults().Merge(FromEnv(env)), env)
	require.NoError(t, err)

	assert.Equal(t, -1, in.RegenerateCount)
	assert.Nil(t, in.Committer)
	assert.Len(t, in.Parts, 5)
	assert.Equal(t, "docs(CHANGELOG): update release notes", in.CommitMessage)
	assert.Empty(t, in.Branch)
	assert.Empty(t, in.APIURL)
}

// TestResolveInvalid verifies that all problems are reported together as
// a configuration error.
func TestResolveInvalid(t *testing.T) {
	v := Defaults().Merge(Values{
		InputRegenerateCount: "many",
		InputCommitter:       "bot",
		InputType:            "feat",
	})

	_, err := Resolve(v, mapEnv(nil))
	require.Error(t, err)
	assert.Equal(t, model.ExitConfigError, exitCode(t, err))

	msg := err.Error()
	for _, want := range []string{"ACCESS_TOKEN", "REPO_NAME", "REGENERATE_COUNT", "committer", "commit type"} {
		assert.Contains(t, msg, want)
	}
}

// TestMergeUppercasesKeys verifies that lower-case input names are
// accepted.
func TestMergeUppercasesKeys(t *testing.T) {
	v := Defaults().Merge(Values{"path": "HISTORY.md"})
	assert.Equal(t, "HISTORY.md", v[InputPath])
}

// --- local mode files ---

// TestLoadFileWorkflow verifies extraction of the step inputs from a
// workflow, including non-string YAML scalars.
func TestLoadFileWorkflow(t *testing.T) {
	v, err := LoadFile(workflowPath(t, "changelog.yml"))
	require.NoError(t, err)

	assert.Equal(t, "octo/hello", v[InputRepoName])
	assert.Equal(t, "${{secrets.GITHUB_TOKEN}}", v[InputAccessToken])
	assert.Equal(t, "docs/CHANGELOG.md", v[InputPath])
	assert.Equal(t, "true", v[InputUnreleasedCommits])
	assert.Equal(t, "3", v[InputRegenerateCount])
	_, hasBranch := v[InputBranch]
	assert.False(t, hasBranch)
}

// TestLoadFileWorkflowWithoutAction verifies the error when no step uses
// the action.
func TestLoadFileWorkflowWithoutAction(t *testing.T) {
	_, err := LoadFile(workflowPath(t, "no-action.yml"))
	require.Error(t, err)
	assert.Equal(t, model.ExitConfigError, exitCode(t, err))
}

// TestLoadFileJSONC verifies the flat JSONC inputs format.
func TestLoadFileJSONC(t *testing.T) {
	v, err := LoadFile(workflowPath(t, "inputs.jsonc"))
	require.NoError(t, err)

	assert.Equal(t, "octo/hello", v[InputRepoName])
	assert.Equal(t, "-1", v[InputRegenerateCount])
	assert.Equal(t, "true", v[InputSuppressUnscoped])
	assert.Equal(t, "misc", v[InputDefaultScope])
}

// TestLoadFileMissing verifies the error for a missing file.
func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yml"))
	require.Error(t, err)
	assert.Equal(t, model.ExitConfigError, exitCode(t, err))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

// TestLoadFileInvalidYAML verifies the error for a broken workflow.
func TestLoadFileInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yml")
	require.NoError(t, os.WriteFile(path, []byte("jobs: [unclosed"), 0o644))

	_, err := LoadFile(path)
	require.Error(t, err)
	assert.Equal(t, model.ExitConfigError, exitCode(t, err))
}

// --- completion ---

// TestCompleteUsesTokenFlag verifies that a secrets expression is replaced
// by the --token flag without prompting.
func TestCompleteUsesTokenFlag(t *testing.T) {
	c := &Completer{Token: "flag-token"}

	v, err := c.Complete(Values{InputAccessToken: "${{ secrets.GITHUB_TOKEN }}", InputRepoName: "octo/hello"})
	require.NoError(t, err)
	assert.Equal(t, "flag-token", v[InputAccessToken])
	assert.Equal(t, "octo/hello", v[InputRepoName])
}

// TestCompleteKeepsLiteralToken verifies that a literal token is used as is.
func TestCompleteKeepsLiteralToken(t *testing.T) {
	c := &Completer{Token: "flag-token"}

	v, err := c.Complete(Values{InputAccessToken: "ghp_literal", InputRepoName: "octo/hello"})
	require.NoError(t, err)
	assert.Equal(t, "ghp_literal", v[InputAccessToken])
}

// TestCompleteDetectsRepo verifies that the repository is taken from the
// local checkout before prompting.
func TestCompleteDetectsRepo(t *testing.T) {
	var out strings.Builder
	c := &Completer{
		DetectRepo: func() (string, error) { return "octo/detected", nil },
		Prompt:     NewPrompter(strings.NewReader("typed-token\n"), &out),
	}

	v, err := c.Complete(Values{})
	require.NoError(t, err)
	assert.Equal(t, "typed-token", v[InputAccessToken])
	assert.Equal(t, "octo/detected", v[InputRepoName])
	assert.Equal(t, "Please input the value of ACCESS_TOKEN: ", out.String())
}

// TestCompletePromptsForRepo verifies prompting when detection fails.
func TestCompletePromptsForRepo(t *testing.T) {
	var out strings.Builder
	c := &Completer{
		Token:      "flag-token",
		DetectRepo: func() (string, error) { return "", errors.New("no origin") },
		Prompt:     NewPrompter(strings.NewReader("octo/typed"), &out),
	}

	v, err := c.Complete(Values{})
	require.NoError(t, err)
	assert.Equal(t, "octo/typed", v[InputRepoName])
}

// TestCompleteCancelled verifies that closing stdin cancels the run.
func TestCompleteCancelled(t *testing.T) {
	c := &Completer{Prompt: NewPrompter(strings.NewReader(""), &strings.Builder{})}

	_, err := c.Complete(Values{})
	require.Error(t, err)
	assert.Equal(t, model.ExitUserCancelled, exitCode(t, err))
}

// TestCompleteWithoutPrompt verifies the error when nothing can supply a
// required value.
func TestCompleteWithoutPrompt(t *testing.T) {
	c := &Completer{}

	_, err := c.Complete(Values{InputRepoName: "octo/hello"})
	require.Error(t, err)
	assert.Equal(t, model.ExitConfigError, exitCode(t, err))
}
