// Package discover finds searchable source files in a directory tree.
package discover

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	ignore "github.com/sabhiram/go-gitignore"
)

// FileEntry represents a discovered file.
type FileEntry struct {
	Path string // Relative to root, slash-separated
}

// vcsDirs are version-control metadata directories.
var vcsDirs = map[string]struct{}{
	".git": {},
	".hg":  {},
	".svn": {},
	".bzr": {},
	"CVS":  {},
}

var skipDirs = map[string]struct{}{
	"__pycache__":   {},
	"node_modules":  {},
	"venv":          {},
	".venv":         {},
	"env":           {},
	".env":          {},
	"build":         {},
	"dist":          {},
	".tox":          {},
	".mypy_cache":   {},
	".ruff_cache":   {},
	".pytest_cache": {},
	"egg-info":      {},
}

// InVCSDir reports whether any segment of path is a version-control
// metadata directory. Both slash and OS separators are accepted.
func InVCSDir(path string) bool {
	for _, seg := range strings.FieldsFunc(path, func(r rune) bool {
		return r == '/' || r == filepath.Separator
	}) {
		if _, ok := vcsDirs[seg]; ok {
			return true
		}
	}
	return false
}

// Options controls discovery.
type Options struct {
	// Include holds doublestar globs relative to root. An empty list accepts
	// every file.
	Include []string
	// RespectIgnores skips hidden entries, well-known tool and build
	// directories, and anything git or .gitignore excludes. Without it only
	// version-control metadata directories and symlinks are skipped.
	RespectIgnores bool
}

// Files discovers files under root whose root-relative path matches one of the
// doublestar include patterns, honouring ignore rules.
func Files(root string, include []string) ([]FileEntry, error) {
	return Find(root, Options{Include: include, RespectIgnores: true})
}

// Find discovers files under root according to opts. Results are sorted by
// path.
func Find(root string, opts Options) ([]FileEntry, error) {
	for _, pat := range opts.Include {
		if !doublestar.ValidatePattern(pat) {
			return nil, &PatternError{Pattern: pat}
		}
	}

	var (
		gitFiles map[string]struct{}
		gi       *ignore.GitIgnore
	)
	if opts.RespectIgnores {
		gitFiles = gitLsFiles(root)
		if gitFiles == nil {
			gi = loadGitignore(root)
		}
	}

	var results []FileEntry

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // skip errors
		}

		name := d.Name()

		if d.IsDir() {
			if path == root {
				return nil
			}
			if _, vcs := vcsDirs[name]; vcs {
				return filepath.SkipDir
			}
			if !opts.RespectIgnores {
				return nil
			}
			if _, skip := skipDirs[name]; skip || strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}

		if opts.RespectIgnores && strings.HasPrefix(name, ".") {
			return nil
		}

		// Skip symlinks
		if d.Type()&os.ModeSymlink != 0 {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if gitFiles != nil {
			if _, ok := gitFiles[rel]; !ok {
				return nil
			}
		} else if gi != nil && gi.MatchesPath(rel) {
			return nil
		}

		if !matchAny(opts.Include, rel) {
			return nil
		}

		results = append(results, FileEntry{Path: rel})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Path < results[j].Path
	})

	return results, nil
}

// PatternError reports a malformed include glob.
type PatternError struct {
	Pattern string
}

func (e *PatternError) Error() string {
	return "invalid include pattern " + `"` + e.Pattern + `"`
}

func matchAny(patterns []string, rel string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, pat := range patterns {
		if ok, err := doublestar.Match(pat, rel); err == nil && ok {
			return true
		}
	}
	return false
}

func gitLsFiles(root string) map[string]struct{} {
	gitDir := filepath.Join(root, ".git")
	info, err := os.Stat(gitDir)
	if err != nil || !info.IsDir() {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		return nil
	}

	files := make(map[string]struct{})
	for _, line := range strings.Split(strings.TrimRight(string(out), "\n"), "\n") {
		if line != "" {
			files[line] = struct{}{}
		}
	}
	return files
}

func loadGitignore(root string) *ignore.GitIgnore {
	path := filepath.Join(root, ".gitignore")
	gi, err := ignore.CompileIgnoreFile(path)
	if err != nil {
		return nil
	}
	return gi
}
