package changelog

import (
	"errors"
	"regexp"
	"strings"

	"github.com/shinji-kodama/auto-changelog/internal/model"
)

const (
	// Title is the first line of every generated document.
	Title = "# CHANGELOG"

	// Signature is the last line of every generated document. The leading
	// backslash escapes the markdown list marker.
	Signature = `\* *This CHANGELOG was automatically generated by [auto-generate-changelog](https://github.com/BobAnkh/auto-generate-changelog)*`

	// sectionSeparator separates release sections inside the document body.
	sectionSeparator = "\n\n## "
)

// ErrMalformed is returned by ParseDocument when a non-empty document does
// not start with Title or does not end with Signature. Such a document is
// replaced entirely on the next write.
var ErrMalformed = errors.New("changelog is not in the expected format")

// tagPattern finds the release tag in a section header: "[v1.0.0](url) - date".
var tagPattern = regexp.MustCompile(`\[.*?\]`)

// Document is an existing changelog split into its release sections.
type Document struct {
	// Sections maps a release tag to its full section text, starting with
	// "## " and without surrounding newlines.
	Sections map[string]string

	// Skipped lists the first line of each section that had no "[tag]" in
	// its header and was therefore ignored.
	Skipped []string
}

// Has reports whether the document contains a section for tag.
func (d *Document) Has(tag string) bool {
	_, ok := d.Sections[tag]
	return ok
}

// ParseDocument splits an existing changelog into release sections.
//
// An empty text is a valid, empty document. The Unreleased section is never
// kept because it is always recomputed. A non-empty text that does not carry
// the title and signature returns an empty document and ErrMalformed.
func ParseDocument(text string) (*Document, error) {
	doc := &Document{Sections: make(map[string]string)}
	if text == "" {
		return doc, nil
	}

	trailer := Signature + "\n"
	if !strings.HasPrefix(text, Title) || !strings.HasSuffix(text, trailer) ||
		len(text) < len(Title)+len(trailer) {
		return doc, ErrMalformed
	}
	body := text[len(Title) : len(text)-len(trailer)]

	for _, chunk := range strings.Split(body, sectionSeparator) {
		if chunk == "" || strings.HasPrefix(chunk, model.Unreleased) {
			continue
		}
		loc := tagPattern.FindStringIndex(chunk)
		if loc == nil {
			first, _, _ := strings.Cut(chunk, "\n")
			doc.Skipped = append(doc.Skipped, first)
			continue
		}
		tag := chunk[loc[0]+1 : loc[1]-1]
		doc.Sections[tag] = "## " + strings.Trim(chunk, "\n")
	}
	return doc, nil
}

// Assemble renders the full document from releases in order. Releases with
// empty Content are left out.
func Assemble(releases []*model.Release) string {
	var b strings.Builder
	b.WriteString(Title)
	for _, r := range releases {
		if r.Content == "" {
			continue
		}
		b.WriteString("\n\n")
		b.WriteString(strings.Trim(r.Content, "\n"))
	}
	b.WriteString("\n\n")
	b.WriteString(Signature)
	b.WriteString("\n")
	return b.String()
}
