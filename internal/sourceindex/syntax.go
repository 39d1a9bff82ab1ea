package sourceindex

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/templan/internal/discover"
	"github.com/phobologic/templan/internal/lang"
	"github.com/phobologic/templan/internal/parse"
)

// Syntax finds call expressions with tree-sitter instead of matching raw
// lines. The pattern is matched against the callee text only, and every call
// is emitted on one line even when the source spreads it over several.
// Files in languages without a registered grammar are skipped.
type Syntax struct {
	Include        []string
	RespectIgnores bool
}

type parserPair struct {
	parser *sitter.Parser
	query  *sitter.Query
}

// Search implements Index.
func (s Syntax) Search(ctx context.Context, pattern, root string) ([]string, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compiling pattern %q: %w", pattern, err)
	}

	files, err := discover.Find(root, discover.Options{Include: s.Include, RespectIgnores: s.RespectIgnores})
	if err != nil {
		return nil, fmt.Errorf("discovering files under %s: %w", root, err)
	}

	parsers := make(map[string]*parserPair)
	var lines []string

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		g := lang.ForFile(f.Path)
		if g == nil {
			continue
		}
		pp, ok := parsers[g.Name]
		if !ok {
			q, err := g.CallQuery()
			if err != nil {
				return nil, err
			}
			pp = &parserPair{parser: g.NewParser(), query: q}
			parsers[g.Name] = pp
		}

		source, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(f.Path)))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", f.Path, err)
		}

		display := displayPath(root, f.Path)
		for _, c := range parse.ExtractCalls(pp.parser, pp.query, source, display, re.MatchString) {
			lines = append(lines, c.File+":"+c.Text)
		}
	}
	return lines, nil
}
