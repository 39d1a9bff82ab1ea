// Package parse extracts call expressions from source files using tree-sitter.
package parse

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/templan/internal/lang"
)

// Call is one call expression found in a source file.
type Call struct {
	Callee string
	// Text is the full call with whitespace normalised onto a single line.
	Text string
	Line int
	File string
}

// ExtractCalls parses a source file and returns every call whose callee text
// satisfies match. A nil match accepts all calls.
// The parser must be created for the correct language.
// filePath is used only for Call.File.
func ExtractCalls(parser *sitter.Parser, query *sitter.Query, source []byte, filePath string, match func(callee string) bool) []Call {
	if len(source) == 0 {
		return nil
	}

	tree, err := parser.ParseCtx(context.Background(), nil, source)
	if err != nil {
		return nil
	}
	defer tree.Close()

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(query, tree.RootNode())

	var calls []Call

	for {
		m, ok := qc.NextMatch()
		if !ok {
			break
		}
		m = qc.FilterPredicates(m, source)

		var callNode, calleeNode *sitter.Node
		for _, c := range m.Captures {
			switch query.CaptureNameForId(c.Index) {
			case "call":
				callNode = c.Node
			case "callee":
				calleeNode = c.Node
			}
		}
		if callNode == nil || calleeNode == nil {
			continue
		}

		callee := lang.NodeText(calleeNode, source)
		if match != nil && !match(callee) {
			continue
		}

		calls = append(calls, Call{
			Callee: callee,
			Text:   callText(callNode, source),
			Line:   int(callNode.StartPoint().Row) + 1,
			File:   filePath,
		})
	}

	return calls
}

type token struct {
	text       string
	start, end uint32
}

// callText folds a possibly multi-line call onto one line in the shape a
// single-line grep match would have. String literals are copied verbatim.
// Between other tokens a source gap becomes one space, except after an
// opening bracket or before a closing bracket or comma. A comma directly
// before a closing bracket is dropped.
func callText(node *sitter.Node, source []byte) string {
	var toks []token
	collectTokens(node, source, &toks)

	var b strings.Builder
	var prev *token
	for i := range toks {
		t := &toks[i]
		if t.text == "," && i+1 < len(toks) && isCloser(toks[i+1].text) {
			continue
		}
		if prev != nil && t.start > prev.end && !isOpener(prev.text) && !isCloser(t.text) && t.text != "," {
			b.WriteByte(' ')
		}
		b.WriteString(t.text)
		prev = t
	}
	return b.String()
}

// collectTokens appends the leaves under n in source order. String nodes
// count as one leaf and comments are skipped.
func collectTokens(n *sitter.Node, source []byte, toks *[]token) {
	switch n.Type() {
	case "comment":
		return
	case "string":
		*toks = append(*toks, token{text: lang.NodeText(n, source), start: n.StartByte(), end: n.EndByte()})
		return
	}
	count := int(n.ChildCount())
	if count == 0 {
		if text := lang.NodeText(n, source); text != "" {
			*toks = append(*toks, token{text: text, start: n.StartByte(), end: n.EndByte()})
		}
		return
	}
	for i := 0; i < count; i++ {
		collectTokens(n.Child(i), source, toks)
	}
}

func isOpener(s string) bool {
	return s == "(" || s == "[" || s == "{"
}

func isCloser(s string) bool {
	return s == ")" || s == "]" || s == "}"
}
