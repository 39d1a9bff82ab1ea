// Package transpile rewrites legacy DTML tags into the brace tag syntax.
//
// Conversion runs two independent passes over the text: every opening tag
// is rewritten first, then every closing tag. No nesting stack is kept, so
// unbalanced input converts without complaint; callers that need balance
// checking run CheckBalance first.
package transpile

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/phobologic/templan/internal/model"
)

var (
	// ErrUnrecognizedTagKind is returned for opening tags outside the known kinds.
	ErrUnrecognizedTagKind = errors.New("unrecognized tag kind")
	// ErrNoClosingForm is returned for closing tags whose kind has no rewrite.
	ErrNoClosingForm = errors.New("tag kind has no closing form")
	// ErrMissingAttribute is returned when a tag lacks an attribute its kind needs.
	ErrMissingAttribute = errors.New("missing required attribute")
	// ErrMalformedTag is returned for tag openers that never form a complete tag.
	ErrMalformedTag = errors.New("malformed tag")
)

// TagError locates a tag that could not be rewritten.
type TagError struct {
	Tag    string
	Offset int
	Err    error
}

func (e *TagError) Error() string {
	return fmt.Sprintf("tag %q at offset %d: %v", e.Tag, e.Offset, e.Err)
}

func (e *TagError) Unwrap() error {
	return e.Err
}

var (
	openTagRe  = regexp.MustCompile(`<dtml-([A-Za-z_][\w-]*)((?:[^>"]|"[^"]*")*)>`)
	closeTagRe = regexp.MustCompile(`</dtml-([A-Za-z_][\w-]*)\s*>`)
	attrRe     = regexp.MustCompile(`([\w-]+)="([^"]*)"`)
)

// Rewriter produces replacement text for individual tags.
type Rewriter interface {
	RewriteOpen(tag model.TagNode) (string, error)
	RewriteClose(tag model.TagNode) (string, error)
}

// Converter applies a Rewriter to whole templates.
type Converter struct {
	Rewriter Rewriter
}

// Convert rewrites source with the default rule table.
func Convert(source string) (string, error) {
	return Converter{Rewriter: Rules}.Convert(source)
}

// Convert rewrites every opening tag, then every closing tag. Source holding
// a "<dtml-" or "</dtml-" that does not start a complete tag is rejected
// before anything is rewritten.
func (c Converter) Convert(source string) (string, error) {
	if err := checkWellFormed(source); err != nil {
		return "", err
	}

	opened, err := replaceTags(source, openTagRe, func(m []string, offset int) (string, error) {
		tag, err := parseOpen(m, offset)
		if err != nil {
			return "", err
		}
		return c.Rewriter.RewriteOpen(tag)
	})
	if err != nil {
		return "", err
	}

	return replaceTags(opened, closeTagRe, func(m []string, offset int) (string, error) {
		tag, err := parseClose(m, offset)
		if err != nil {
			return "", err
		}
		return c.Rewriter.RewriteClose(tag)
	})
}

// checkWellFormed reports the first tag opener outside a matched tag that
// does not itself start a match.
func checkWellFormed(source string) error {
	for _, form := range []struct {
		prefix string
		re     *regexp.Regexp
	}{
		{"<dtml-", openTagRe},
		{"</dtml-", closeTagRe},
	} {
		starts := make(map[int]bool)
		var spans [][]int
		for _, loc := range form.re.FindAllStringIndex(source, -1) {
			starts[loc[0]] = true
			spans = append(spans, loc)
		}

		for from := 0; ; {
			i := strings.Index(source[from:], form.prefix)
			if i < 0 {
				break
			}
			pos := from + i
			from = pos + len(form.prefix)
			if starts[pos] || insideSpan(spans, pos) {
				continue
			}
			return &TagError{Tag: tagSnippet(source[pos:]), Offset: pos, Err: ErrMalformedTag}
		}
	}
	return nil
}

func insideSpan(spans [][]int, pos int) bool {
	for _, sp := range spans {
		if pos > sp[0] && pos < sp[1] {
			return true
		}
	}
	return false
}

// tagSnippet cuts s at the first line break or closing bracket, capped at 40
// bytes.
func tagSnippet(s string) string {
	const maxLen = 40
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		s = s[:i]
	}
	if i := strings.IndexByte(s, '>'); i >= 0 {
		s = s[:i+1]
	}
	if len(s) > maxLen {
		s = s[:maxLen]
	}
	return s
}

func replaceTags(text string, re *regexp.Regexp, rewrite func(m []string, offset int) (string, error)) (string, error) {
	locs := re.FindAllStringSubmatchIndex(text, -1)
	if len(locs) == 0 {
		return text, nil
	}

	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, loc := range locs {
		m := make([]string, len(loc)/2)
		for i := range m {
			if loc[2*i] >= 0 {
				m[i] = text[loc[2*i]:loc[2*i+1]]
			}
		}
		out, err := rewrite(m, loc[0])
		if err != nil {
			return "", err
		}
		b.WriteString(text[last:loc[0]])
		b.WriteString(out)
		last = loc[1]
	}
	b.WriteString(text[last:])
	return b.String(), nil
}

func parseOpen(m []string, offset int) (model.TagNode, error) {
	name := m[1]
	kind, ok := openKind(name)
	if !ok {
		return model.TagNode{}, &TagError{Tag: m[0], Offset: offset, Err: ErrUnrecognizedTagKind}
	}
	tag := model.TagNode{Kind: kind, Name: name, Offset: offset}
	for _, am := range attrRe.FindAllStringSubmatch(m[2], -1) {
		switch am[1] {
		case "expr":
			tag.Expression = am[2]
		case "prefix":
			tag.Prefix = am[2]
		}
	}
	return tag, nil
}

func parseClose(m []string, offset int) (model.TagNode, error) {
	name := m[1]
	kind, ok := closeKind(name)
	if !ok {
		return model.TagNode{}, &TagError{Tag: m[0], Offset: offset, Err: ErrNoClosingForm}
	}
	return model.TagNode{Kind: kind, Name: name, Offset: offset}, nil
}

func openKind(name string) (model.TagKind, bool) {
	switch name {
	case "var":
		return model.Variable, true
	case "if":
		return model.ConditionalOpen, true
	case "in":
		return model.IterationOpen, true
	case "nmime":
		return model.MimeMarker, true
	case "nboundary":
		return model.BoundaryMarker, true
	}
	return "", false
}

// closeKind maps closing tags by their leading characters only.
func closeKind(name string) (model.TagKind, bool) {
	switch {
	case strings.HasPrefix(name, "in"):
		return model.IterationClose, true
	case strings.HasPrefix(name, "if"):
		return model.ConditionalClose, true
	}
	return "", false
}
