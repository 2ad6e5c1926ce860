package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shinji-kodama/auto-changelog/internal/changelog"
	"github.com/shinji-kodama/auto-changelog/internal/config"
	"github.com/shinji-kodama/auto-changelog/internal/generator"
	"github.com/shinji-kodama/auto-changelog/internal/ghapi"
	"github.com/shinji-kodama/auto-changelog/internal/gitutil"
	"github.com/shinji-kodama/auto-changelog/internal/model"
)

const (
	modeGitHub = "github"
	modeLocal  = "local"
)

// generateFlags holds the flag values of the root command.
type generateFlags struct {
	mode   string
	file   string
	output string
	token  string
}

// runGenerate executes the changelog generation workflow:
//  1. Resolve the inputs for the selected mode
//  2. Collect releases, tags and commits and render the sections
//  3. Commit the result (github mode) or write it to --output (local mode)
//  4. Print the result
func runGenerate(ctx context.Context, flags *generateFlags, stdin io.Reader, stderr, stdout io.Writer) error {
	values, err := loadInputs(flags, stdin, stderr)
	if err != nil {
		return err
	}

	in, err := config.Resolve(values, config.OSEnv)
	if err != nil {
		return err
	}
	logger.Infow("generating changelog", "mode", flags.mode, "repo", in.RepoName, "path", in.Path, "branch", in.Branch)

	client, err := ghapi.NewClient(in.AccessToken, in.RepoName, in.APIURL)
	if err != nil {
		return model.WrapCLIError(model.ExitConfigError, "failed to create GitHub client", err)
	}

	gen, err := generator.New(client, generatorOptions(in), logger)
	if err != nil {
		return model.WrapCLIError(model.ExitConfigError, "invalid commit types", err)
	}

	if err := gen.Collect(ctx); err != nil {
		return classifyError("failed to collect changelog", err)
	}

	var res *generator.Result
	if flags.mode == modeLocal {
		VerboseLog("writing changelog to %s", flags.output)
		if err := os.WriteFile(flags.output, []byte(gen.Assemble()), 0644); err != nil {
			return model.WrapCLIError(model.ExitGeneralError, fmt.Sprintf("failed to write %s", flags.output), err)
		}
		res = gen.Summary()
		res.Path = flags.output
		res.Action = "written"
	} else {
		res, err = gen.Write(ctx)
		if err != nil {
			return classifyError("failed to write changelog", err)
		}
	}

	printResult(stdout, res)
	return nil
}

// loadInputs returns the raw inputs for the selected mode, layered over
// the defaults.
func loadInputs(flags *generateFlags, stdin io.Reader, stderr io.Writer) (config.Values, error) {
	switch flags.mode {
	case modeGitHub:
		return config.Defaults().Merge(config.FromEnv(config.OSEnv)), nil

	case modeLocal:
		VerboseLog("reading inputs from %s", flags.file)
		fileValues, err := config.LoadFile(flags.file)
		if err != nil {
			return nil, err
		}
		completer := &config.Completer{
			Token:      flags.token,
			DetectRepo: detectRepo,
			Prompt:     config.NewPrompter(stdin, stderr),
		}
		return completer.Complete(config.Defaults().Merge(fileValues))

	default:
		return nil, model.NewCLIError(model.ExitConfigError,
			fmt.Sprintf("illegal mode %q: must be %q or %q", flags.mode, modeGitHub, modeLocal))
	}
}

// detectRepo resolves "owner/name" from the checkout in the current
// directory.
func detectRepo() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	slug, err := gitutil.DetectRepoSlug(wd)
	if err != nil {
		VerboseLog("could not detect repository: %v", err)
		return "", err
	}
	VerboseLog("detected repository %s", slug)
	return slug, nil
}

// generatorOptions maps resolved inputs onto generator options.
func generatorOptions(in *config.Inputs) generator.Options {
	return generator.Options{
		Path:              in.Path,
		Branch:            in.Branch,
		PullRequest:       in.PullRequest,
		CommitMessage:     in.CommitMessage,
		Committer:         in.Committer,
		UnreleasedCommits: in.UnreleasedCommits,
		RegenerateCount:   in.RegenerateCount,
		Render: changelog.Options{
			Parts:                   in.Parts,
			DefaultScope:            in.DefaultScope,
			SuppressUnscoped:        in.SuppressUnscoped,
			ReplaceEmptyReleaseInfo: in.ReplaceEmptyReleaseInfo,
		},
	}
}

// classifyError attaches an exit code to errors that do not carry one.
// GitHub API failures exit with ExitGitHubError.
func classifyError(message string, err error) error {
	var cliErr *model.CLIError
	if errors.As(err, &cliErr) {
		return err
	}
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return model.WrapCLIError(model.ExitGitHubError, message, err)
	}
	if errors.Is(err, context.Canceled) {
		return model.WrapCLIError(model.ExitUserCancelled, "interrupted", err)
	}
	return model.WrapCLIError(model.ExitGeneralError, message, err)
}

// printResult prints the outcome of a run in the format selected by the
// --json flag.
func printResult(w io.Writer, res *generator.Result) {
	if IsJSONOutput() {
		data, _ := json.MarshalIndent(res, "", "  ")
		fmt.Fprintln(w, string(data))
		return
	}
	printResultText(w, res)
}

func printResultText(w io.Writer, res *generator.Result) {
	switch res.Action {
	case "unchanged":
		fmt.Fprintf(w, "Changelog %s is up to date.\n", res.Path)
	case "written":
		fmt.Fprintf(w, "Changelog written to %s.\n", res.Path)
	default:
		target := res.Path
		if res.Branch != "" {
			target = fmt.Sprintf("%s on branch %s", res.Path, res.Branch)
		}
		fmt.Fprintf(w, "Changelog %s %s.\n", res.Action, target)
	}

	if len(res.Regenerated) > 0 {
		fmt.Fprintf(w, "  Regenerated: %s\n", strings.Join(res.Regenerated, ", "))
	}
	if len(res.Pending) > 0 {
		fmt.Fprintf(w, "  Not regenerated: %s\n", strings.Join(res.Pending, ", "))
	}
	if res.PullRequestURL != "" {
		fmt.Fprintf(w, "  Pull request: %s\n", res.PullRequestURL)
	}
}
