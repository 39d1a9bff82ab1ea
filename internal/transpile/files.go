package transpile

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/phobologic/templan/internal/model"
)

const (
	// DefaultSourceExt is the legacy template extension.
	DefaultSourceExt = "dtml"
	// DefaultDestExt is the converted template extension.
	DefaultDestExt = "tmpl"
)

// Files converts templates stored as NAME.SourceExt under SourceDir into
// NAME.DestExt under DestDir.
type Files struct {
	SourceDir string
	DestDir   string
	SourceExt string
	DestExt   string
	// Strict runs CheckBalance before converting.
	Strict    bool
	Converter Converter
}

func (f Files) sourceExt() string {
	if f.SourceExt == "" {
		return DefaultSourceExt
	}
	return f.SourceExt
}

func (f Files) destExt() string {
	if f.DestExt == "" {
		return DefaultDestExt
	}
	return f.DestExt
}

// SourcePath returns the legacy template path for name.
func (f Files) SourcePath(name model.TemplateName) string {
	return filepath.Join(f.SourceDir, string(name)+"."+f.sourceExt())
}

// DestPath returns the converted template path for name.
func (f Files) DestPath(name model.TemplateName) string {
	return filepath.Join(f.DestDir, string(name)+"."+f.destExt())
}

// ConvertFile converts one template. The output file is written only after
// the whole template converted successfully.
func (f Files) ConvertFile(name model.TemplateName) (string, error) {
	src := f.SourcePath(name)
	data, err := os.ReadFile(src)
	if err != nil {
		return "", fmt.Errorf("reading template %s: %w", src, err)
	}

	if f.Strict {
		if err := CheckBalance(string(data)); err != nil {
			return "", fmt.Errorf("%s: %w", src, err)
		}
	}

	conv := f.Converter
	if conv.Rewriter == nil {
		conv.Rewriter = Rules
	}
	out, err := conv.Convert(string(data))
	if err != nil {
		return "", fmt.Errorf("%s: %w", src, err)
	}

	dst := f.DestPath(name)
	if err := writeFileAtomic(dst, []byte(out)); err != nil {
		return "", fmt.Errorf("writing %s: %w", dst, err)
	}
	return dst, nil
}

// ConvertAll converts names in sorted order and stops at the first failure.
// It returns the paths written before that point.
func (f Files) ConvertAll(names []model.TemplateName) ([]string, error) {
	sorted := make([]model.TemplateName, len(names))
	copy(sorted, names)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var written []string
	for _, name := range sorted {
		dst, err := f.ConvertFile(name)
		if err != nil {
			return written, err
		}
		written = append(written, dst)
	}
	return written, nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
