// Package lang knows which source files can hold template render calls and
// how tree-sitter finds those calls in them. Each grammar ships a query in
// queries/<name>.scm capturing the whole call as @call and the called
// function as @callee.
package lang

import (
	"embed"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
)

//go:embed queries/*.scm
var queryFS embed.FS

// Grammar is a tree-sitter language that the syntax index can scan.
type Grammar struct {
	Name       string
	Extensions []string

	language *sitter.Language
	once     sync.Once
	calls    *sitter.Query
	err      error
}

var (
	byName = map[string]*Grammar{}
	byExt  = map[string]*Grammar{}
)

// register is called from per-grammar init functions.
func register(g *Grammar) {
	byName[g.Name] = g
	for _, ext := range g.Extensions {
		byExt[strings.ToLower(ext)] = g
	}
}

// Lookup returns the grammar registered under name, or nil.
func Lookup(name string) *Grammar {
	return byName[name]
}

// ForFile picks a grammar by the extension of path, ignoring case. It
// returns nil for files no grammar can scan.
func ForFile(path string) *Grammar {
	return byExt[strings.ToLower(filepath.Ext(path))]
}

// NewParser returns a parser for g. Parsers are not safe for concurrent use.
func (g *Grammar) NewParser() *sitter.Parser {
	p := sitter.NewParser()
	p.SetLanguage(g.language)
	return p
}

// CallQuery compiles the render-call query on first use. The query may be
// shared between goroutines.
func (g *Grammar) CallQuery() (*sitter.Query, error) {
	g.once.Do(func() {
		src, err := queryFS.ReadFile("queries/" + g.Name + ".scm")
		if err != nil {
			g.err = fmt.Errorf("%s call query: %w", g.Name, err)
			return
		}
		g.calls, g.err = sitter.NewQuery(src, g.language)
		if g.err != nil {
			g.err = fmt.Errorf("compiling %s call query: %w", g.Name, g.err)
		}
	})
	return g.calls, g.err
}

// NodeText returns the source bytes spanned by node.
func NodeText(node *sitter.Node, source []byte) string {
	return string(source[node.StartByte():node.EndByte()])
}
