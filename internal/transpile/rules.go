package transpile

import (
	"fmt"
	"strings"

	"github.com/phobologic/templan/internal/model"
)

// RuleFunc rewrites one tag.
type RuleFunc func(tag model.TagNode) (string, error)

// RuleTable is a Rewriter backed by per-kind rules.
type RuleTable struct {
	Open  map[model.TagKind]RuleFunc
	Close map[model.TagKind]RuleFunc
}

// Rules is the default rule table.
var Rules = RuleTable{
	Open: map[model.TagKind]RuleFunc{
		model.Variable:        rewriteVar,
		model.ConditionalOpen: rewriteIf,
		model.IterationOpen:   rewriteIn,
		model.MimeMarker:      dropTag,
		model.BoundaryMarker:  dropTag,
	},
	Close: map[model.TagKind]RuleFunc{
		model.ConditionalClose: constant("{end if}"),
		model.IterationClose:   constant("{end for}"),
	},
}

// RewriteOpen implements Rewriter.
func (t RuleTable) RewriteOpen(tag model.TagNode) (string, error) {
	rule, ok := t.Open[tag.Kind]
	if !ok {
		return "", &TagError{Tag: tag.Name, Offset: tag.Offset, Err: ErrUnrecognizedTagKind}
	}
	return rule(tag)
}

// RewriteClose implements Rewriter.
func (t RuleTable) RewriteClose(tag model.TagNode) (string, error) {
	rule, ok := t.Close[tag.Kind]
	if !ok {
		return "", &TagError{Tag: tag.Name, Offset: tag.Offset, Err: ErrNoClosingForm}
	}
	return rule(tag)
}

// ItemName derives the per-item loop binding from an iteration prefix:
// one trailing "s" is dropped and "_item" appended. Irregular plurals are
// not handled ("children" becomes "children_item").
func ItemName(prefix string) string {
	return strings.TrimSuffix(prefix, "s") + "_item"
}

func rewriteVar(tag model.TagNode) (string, error) {
	if tag.Expression == "" {
		return "", missing(tag, "expr")
	}
	return "{" + tag.Expression + "}", nil
}

func rewriteIf(tag model.TagNode) (string, error) {
	if tag.Expression == "" {
		return "", missing(tag, "expr")
	}
	return "{if " + tag.Expression + "}", nil
}

func rewriteIn(tag model.TagNode) (string, error) {
	if tag.Expression == "" {
		return "", missing(tag, "expr")
	}
	if tag.Prefix == "" {
		return "", missing(tag, "prefix")
	}
	return "{for " + ItemName(tag.Prefix) + " in " + tag.Expression + "}", nil
}

func dropTag(model.TagNode) (string, error) {
	return "", nil
}

func constant(s string) RuleFunc {
	return func(model.TagNode) (string, error) { return s, nil }
}

func missing(tag model.TagNode, attr string) error {
	return &TagError{
		Tag:    tag.Name,
		Offset: tag.Offset,
		Err:    fmt.Errorf("%w %q", ErrMissingAttribute, attr),
	}
}
