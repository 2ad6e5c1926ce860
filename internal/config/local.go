package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/shinji-kodama/auto-changelog/internal/model"
)

// secretRef matches a workflow expression such as "${{ secrets.TOKEN }}",
// which cannot be evaluated outside of the Actions runner.
var secretRef = regexp.MustCompile(`^\$\{\{\s*secrets\.`)

// Prompter asks the user for missing input values, one line per value.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewPrompter creates a Prompter reading answers from in and writing
// questions to out.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out}
}

// Ask prompts for the value of name. Reaching the end of input before an
// answer is given is reported as a cancellation.
func (p *Prompter) Ask(name string) (string, error) {
	fmt.Fprintf(p.out, "Please input the value of %s: ", name)
	line, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", model.WrapCLIError(model.ExitUserCancelled, fmt.Sprintf("no value given for %s", name), err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Completer fills in the values a workflow file cannot provide.
type Completer struct {
	// Token is the --token flag value. It replaces a missing access
	// token or a secrets expression.
	Token string

	// DetectRepo resolves "owner/name" from the local checkout. Nil
	// disables detection.
	DetectRepo func() (string, error)

	// Prompt asks the user as a last resort. Nil makes missing values an
	// error.
	Prompt *Prompter
}

// Complete returns v with ACCESS_TOKEN and REPO_NAME filled in.
func (c *Completer) Complete(v Values) (Values, error) {
	out := v.Merge(nil)

	token := strings.TrimSpace(out[InputAccessToken])
	if token == "" || secretRef.MatchString(token) {
		if c.Token != "" {
			out[InputAccessToken] = c.Token
		} else {
			answer, err := c.ask(InputAccessToken)
			if err != nil {
				return nil, err
			}
			out[InputAccessToken] = answer
		}
	}

	if strings.TrimSpace(out[InputRepoName]) == "" {
		repo := ""
		if c.DetectRepo != nil {
			if detected, err := c.DetectRepo(); err == nil {
				repo = detected
			}
		}
		if repo == "" {
			answer, err := c.ask(InputRepoName)
			if err != nil {
				return nil, err
			}
			repo = answer
		}
		out[InputRepoName] = repo
	}
	return out, nil
}

func (c *Completer) ask(name string) (string, error) {
	if c.Prompt == nil {
		return "", model.NewCLIError(model.ExitConfigError, fmt.Sprintf("%s is required", name))
	}
	return c.Prompt.Ask(name)
}
