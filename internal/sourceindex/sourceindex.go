// Package sourceindex searches a directory tree and returns matching lines in
// the "path:content" shape produced by grep -r.
package sourceindex

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"

	"github.com/phobologic/templan/internal/discover"
)

// Index is a line-oriented text search over a directory tree.
type Index interface {
	Search(ctx context.Context, pattern, root string) ([]string, error)
}

// binarySniffLen matches grep's heuristic window for detecting binary files.
const binarySniffLen = 8000

// Walk searches files natively. Include holds doublestar globs relative to the
// search root; an empty list searches every file. Like grep -r it descends
// into hidden, build and virtualenv directories unless RespectIgnores is set.
type Walk struct {
	Include        []string
	RespectIgnores bool
}

// Search implements Index.
func (w Walk) Search(ctx context.Context, pattern, root string) ([]string, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compiling pattern %q: %w", pattern, err)
	}

	files, err := discover.Find(root, discover.Options{Include: w.Include, RespectIgnores: w.RespectIgnores})
	if err != nil {
		return nil, fmt.Errorf("discovering files under %s: %w", root, err)
	}

	var lines []string
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(f.Path)))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", f.Path, err)
		}
		if isBinary(data) {
			continue
		}
		display := displayPath(root, f.Path)
		sc := bufio.NewScanner(bytes.NewReader(data))
		sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		for sc.Scan() {
			if line := sc.Text(); re.MatchString(line) {
				lines = append(lines, display+":"+line)
			}
		}
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", f.Path, err)
		}
	}
	return lines, nil
}

// displayPath joins root and rel the way grep -r prints paths, keeping a
// leading "./" when the search root is the working directory.
func displayPath(root, rel string) string {
	root = filepath.ToSlash(root)
	if root == "." || root == "./" {
		return "./" + rel
	}
	return path.Join(root, rel)
}

func isBinary(data []byte) bool {
	n := len(data)
	if n > binarySniffLen {
		n = binarySniffLen
	}
	return bytes.IndexByte(data[:n], 0) >= 0
}
