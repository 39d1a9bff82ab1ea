// Package titles loads human-readable template titles from a two-column CSV
// file: the title in the first column, the template name in the second.
package titles

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/phobologic/templan/internal/model"
)

// Load reads path. Rows missing either column are ignored and a later row
// for the same template replaces an earlier one.
func Load(path string) (map[model.TemplateName]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening titles file %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	out, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("reading titles file %s: %w", path, err)
	}
	return out, nil
}

// Parse reads title rows from r.
func Parse(r io.Reader) (map[model.TemplateName]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	out := make(map[model.TemplateName]string)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		if len(rec) < 2 {
			continue
		}
		title, name := rec[0], strings.TrimSpace(rec[1])
		if title == "" || name == "" {
			continue
		}
		out[model.TemplateName(name)] = title
	}
}
