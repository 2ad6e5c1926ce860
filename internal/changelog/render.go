package changelog

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shinji-kodama/auto-changelog/internal/model"
)

// dateLayout formats release dates in the section header.
const dateLayout = "2006-01-02 15:04:05"

// hiddenBlock matches a part of a release description that must not be
// copied into the changelog.
var hiddenBlock = regexp.MustCompile(`(?s)<!-- HIDE IN CHANGELOG BEGIN -->.*?<!-- HIDE IN CHANGELOG END -->`)

// partSeparator splits the TYPE input: "feat:Feature, fix:Bug Fixes".
var partSeparator = regexp.MustCompile(`\s?,\s?`)

// Options control how release sections are rendered.
type Options struct {
	// Parts lists the sections to render, in order.
	Parts []model.Part

	// DefaultScope is the scope assigned to commits without "(scope)".
	DefaultScope string

	// SuppressUnscoped drops commits without "(scope)" instead of
	// assigning DefaultScope.
	SuppressUnscoped bool

	// ReplaceEmptyReleaseInfo replaces an empty release description, and
	// is the description of the Unreleased section.
	ReplaceEmptyReleaseInfo string
}

// compiledPart is a Part with its matching expressions prepared.
type compiledPart struct {
	name string

	// match is "^type(?:[(](.+?)[)])?" and captures the scope.
	match *regexp.Regexp

	// prefix is match followed by the ":" separator; it is removed from
	// the head to obtain the subject.
	prefix *regexp.Regexp

	// docs is set for the plain "docs" type, whose changelog-scoped
	// commits are the generator's own and are never listed.
	docs bool
}

// Renderer renders release sections. Create it with NewRenderer.
type Renderer struct {
	parts            []compiledPart
	defaultScope     string
	suppressUnscoped bool
	replaceEmpty     string
}

// NewRenderer compiles the part patterns in opts. It fails if any pattern
// is not a valid regular expression.
func NewRenderer(opts Options) (*Renderer, error) {
	r := &Renderer{
		defaultScope:     opts.DefaultScope,
		suppressUnscoped: opts.SuppressUnscoped,
		replaceEmpty:     opts.ReplaceEmptyReleaseInfo,
	}
	for _, p := range opts.Parts {
		// The group keeps every alternative of the pattern anchored at the
		// start of the head. The scope is always the last submatch, since
		// the pattern may contain groups of its own.
		expr := `^(?:` + p.Pattern + `)(?:[(](.+?)[)])?`
		match, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("invalid type pattern %q: %w", p.Pattern, err)
		}
		prefix, err := regexp.Compile(expr + `\s?:\s?`)
		if err != nil {
			return nil, fmt.Errorf("invalid type pattern %q: %w", p.Pattern, err)
		}
		r.parts = append(r.parts, compiledPart{
			name:   p.Name,
			match:  match,
			prefix: prefix,
			docs:   p.Pattern == "docs",
		})
	}
	return r, nil
}

// ParseParts parses the TYPE input into parts. Items are separated by
// commas (optionally surrounded by a single space) and each item is split
// on its first colon into pattern and section name.
func ParseParts(s string) ([]model.Part, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("no commit types configured")
	}
	var parts []model.Part
	for _, item := range partSeparator.Split(s, -1) {
		pattern, name, ok := strings.Cut(item, ":")
		if !ok || pattern == "" || name == "" {
			return nil, fmt.Errorf("invalid commit type %q: expected \"pattern:Section Name\"", item)
		}
		parts = append(parts, model.Part{Pattern: pattern, Name: name})
	}
	return parts, nil
}

// MergeHead extracts the head line of a commit message.
//
// GitHub truncates long pull request titles in merge commits to
// "title...", continuing with "...rest" in the second paragraph. The two
// halves are joined back together.
func MergeHead(message string) string {
	paragraphs := strings.Split(message, "\n\n")
	head := paragraphs[0]
	if strings.HasSuffix(head, "...") && len(paragraphs) > 1 && strings.HasPrefix(paragraphs[1], "...") {
		line, _, _ := strings.Cut(paragraphs[1], "\n")
		head = strings.ReplaceAll(head[:len(head)-3]+" "+line[3:], "  ", " ")
	}
	return head
}

// ScopeEntry is one commit listed under a scope.
type ScopeEntry struct {
	Subject string
	Commit  model.ReleaseCommit
}

// ScopeGroup is a scope with its commits, in commit order.
type ScopeGroup struct {
	Scope   string
	Entries []ScopeEntry
}

// groupByScope selects the commits matching part and groups them by scope.
// Scopes keep the order in which they first appear.
func (r *Renderer) groupByScope(commits []model.ReleaseCommit, part compiledPart) []ScopeGroup {
	var groups []ScopeGroup
	index := make(map[string]int)

	for _, c := range commits {
		m := part.match.FindStringSubmatch(c.Head)
		if m == nil {
			continue
		}
		scope := m[len(m)-1]
		if scope == "" {
			if r.suppressUnscoped {
				continue
			}
			scope = r.defaultScope
		}
		if part.docs && strings.ToLower(scope) == "changelog" {
			continue
		}
		entry := ScopeEntry{
			Subject: part.prefix.ReplaceAllLiteralString(c.Head, ""),
			Commit:  c,
		}
		i, ok := index[scope]
		if !ok {
			i = len(groups)
			index[scope] = i
			groups = append(groups, ScopeGroup{Scope: scope})
		}
		groups[i].Entries = append(groups[i].Entries, entry)
	}
	return groups
}

// renderSection renders the scope list of one part. It returns "" when no
// commit matched.
func (r *Renderer) renderSection(commits []model.ReleaseCommit, part compiledPart) string {
	var b strings.Builder
	for _, g := range r.groupByScope(commits, part) {
		fmt.Fprintf(&b, "- %s:\n", g.Scope)
		for _, e := range g.Entries {
			fmt.Fprintf(&b, "  - %s ([%s](%s))", e.Subject, shortSHA(e.Commit.SHA), e.Commit.URL)
			for _, link := range e.Commit.PRLinks {
				b.WriteString(link)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}

// RenderBody renders every configured part that has at least one commit.
func (r *Renderer) RenderBody(commits []model.ReleaseCommit) string {
	var b strings.Builder
	for _, part := range r.parts {
		sec := r.renderSection(commits, part)
		if sec == "" {
			continue
		}
		b.WriteString("### " + part.name + "\n\n")
		b.WriteString(sec)
	}
	return b.String()
}

// ReleaseDescription removes hidden blocks from a release body. When at
// least one block is removed the remaining paragraphs are re-joined with a
// single blank line between them. An empty result is replaced with the
// configured placeholder.
func (r *Renderer) ReleaseDescription(body string) string {
	pieces := hiddenBlock.Split(body, -1)

	var description string
	if len(pieces) == 1 {
		description = pieces[0]
	} else {
		var kept []string
		for _, p := range pieces {
			p = strings.Trim(p, "\n")
			if p != "" {
				kept = append(kept, p)
			}
		}
		description = strings.Join(kept, "\n\n")
	}

	if description == "" {
		description = r.replaceEmpty
	}
	return strings.Trim(description, "\n")
}

// RenderRelease renders the complete section of one release from the
// commits attributed to it. The Unreleased section is "" when none of its
// commits matched a configured part.
func (r *Renderer) RenderRelease(release *model.Release, commits []model.ReleaseCommit) string {
	var header string
	if release.IsUnreleased() {
		header = "## " + model.Unreleased + "\n\n" + r.replaceEmpty
	} else {
		header = fmt.Sprintf("## [%s](%s) - %s\n\n%s",
			release.Tag,
			release.HTMLURL,
			release.CreatedAt.UTC().Format(dateLayout),
			r.ReleaseDescription(release.Body),
		)
	}

	body := r.RenderBody(commits)
	if body == "" && release.IsUnreleased() {
		return ""
	}
	return strings.Trim(header, "\n") + "\n\n" + strings.Trim(body, "\n")
}

// shortSHA abbreviates a commit SHA to 7 characters.
func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}
