package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/shinji-kodama/auto-changelog/internal/changelog"
	"github.com/shinji-kodama/auto-changelog/internal/model"
)

// Names of the action inputs, as declared in action.yml.
const (
	InputAccessToken             = "ACCESS_TOKEN"
	InputRepoName                = "REPO_NAME"
	InputPath                    = "PATH"
	InputBranch                  = "BRANCH"
	InputPullRequest             = "PULL_REQUEST"
	InputCommitMessage           = "COMMIT_MESSAGE"
	InputCommitter               = "COMMITTER"
	InputType                    = "TYPE"
	InputDefaultScope            = "DEFAULT_SCOPE"
	InputSuppressUnscoped        = "SUPPRESS_UNSCOPED"
	InputUnreleasedCommits       = "UNRELEASED_COMMITS"
	InputRegenerateCount         = "REGENERATE_COUNT"
	InputReplaceEmptyReleaseInfo = "REPLACE_EMPTY_RELEASE_INFO"
)

// inputNames lists every input in declaration order.
var inputNames = []string{
	InputAccessToken,
	InputRepoName,
	InputPath,
	InputBranch,
	InputPullRequest,
	InputCommitMessage,
	InputCommitter,
	InputType,
	InputDefaultScope,
	InputSuppressUnscoped,
	InputUnreleasedCommits,
	InputRegenerateCount,
	InputReplaceEmptyReleaseInfo,
}

// inputPrefix is prepended to input names by the Actions runner.
const inputPrefix = "INPUT_"

// Env looks up an environment variable. os.LookupEnv satisfies it.
type Env func(key string) (string, bool)

// OSEnv is the process environment.
var OSEnv Env = os.LookupEnv

// Values holds raw input values keyed by input name.
type Values map[string]string

// Defaults returns the default value of every input, matching action.yml.
func Defaults() Values {
	return Values{
		InputAccessToken:             "",
		InputRepoName:                "",
		InputPath:                    "CHANGELOG.md",
		InputBranch:                  "",
		InputPullRequest:             "",
		InputCommitMessage:           "docs(CHANGELOG): update release notes",
		InputCommitter:               "",
		InputType:                    "feat:Feature,fix:Bug Fixes,docs:Documentation,refactor:Refactor,perf:Performance Improvements",
		InputDefaultScope:            "general",
		InputSuppressUnscoped:        "false",
		InputUnreleasedCommits:       "false",
		InputRegenerateCount:         "-1",
		InputReplaceEmptyReleaseInfo: "",
	}
}

// FromEnv reads every INPUT_<NAME> variable that is set. Variables that are
// set but empty are kept, since an empty input is meaningful (e.g., BRANCH).
func FromEnv(env Env) Values {
	v := make(Values)
	for _, name := range inputNames {
		if value, ok := env(inputPrefix + name); ok {
			v[name] = value
		}
	}
	return v
}

// Merge returns a copy of v overlaid with every value in over.
func (v Values) Merge(over Values) Values {
	out := make(Values, len(v)+len(over))
	for k, val := range v {
		out[k] = val
	}
	for k, val := range over {
		out[strings.ToUpper(k)] = val
	}
	return out
}

// Inputs are the resolved, typed action inputs.
type Inputs struct {
	AccessToken             string
	RepoName                string
	Path                    string
	Branch                  string
	PullRequest             string
	CommitMessage           string
	Committer               *model.Committer
	Parts                   []model.Part
	DefaultScope            string
	SuppressUnscoped        bool
	UnreleasedCommits       bool
	RegenerateCount         int
	ReplaceEmptyReleaseInfo string

	// APIURL is the GitHub API endpoint (GITHUB_API_URL); empty means
	// github.com.
	APIURL string
}

// Resolve converts raw values into Inputs. An empty REPO_NAME falls back to
// GITHUB_REPOSITORY, which the Actions runner always sets.
func Resolve(v Values, env Env) (*Inputs, error) {
	in := &Inputs{
		AccessToken:             strings.TrimSpace(v[InputAccessToken]),
		RepoName:                strings.TrimSpace(v[InputRepoName]),
		Path:                    strings.TrimSpace(v[InputPath]),
		Branch:                  strings.TrimSpace(v[InputBranch]),
		PullRequest:             strings.TrimSpace(v[InputPullRequest]),
		CommitMessage:           v[InputCommitMessage],
		DefaultScope:            v[InputDefaultScope],
		SuppressUnscoped:        isTrue(v[InputSuppressUnscoped]),
		UnreleasedCommits:       isTrue(v[InputUnreleasedCommits]),
		ReplaceEmptyReleaseInfo: v[InputReplaceEmptyReleaseInfo],
	}

	if in.RepoName == "" {
		in.RepoName, _ = env("GITHUB_REPOSITORY")
	}
	in.APIURL, _ = env("GITHUB_API_URL")

	var problems []string
	if in.AccessToken == "" {
		problems = append(problems, InputAccessToken+" is required")
	}
	if in.RepoName == "" {
		problems = append(problems, InputRepoName+" is required (or GITHUB_REPOSITORY)")
	}
	if in.Path == "" {
		problems = append(problems, InputPath+" must not be empty")
	}
	if strings.TrimSpace(in.CommitMessage) == "" {
		problems = append(problems, InputCommitMessage+" must not be empty")
	}

	count, err := strconv.Atoi(strings.TrimSpace(v[InputRegenerateCount]))
	if err != nil {
		problems = append(problems, fmt.Sprintf("%s must be an integer, got %q", InputRegenerateCount, v[InputRegenerateCount]))
	}
	in.RegenerateCount = count

	if in.Committer, err = model.ParseCommitter(v[InputCommitter]); err != nil {
		problems = append(problems, err.Error())
	}
	if in.Parts, err = changelog.ParseParts(v[InputType]); err != nil {
		problems = append(problems, err.Error())
	}

	if len(problems) > 0 {
		return nil, model.NewCLIError(model.ExitConfigError, "invalid inputs: "+strings.Join(problems, "; "))
	}
	return in, nil
}

func isTrue(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), "true")
}
