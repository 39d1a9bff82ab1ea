// Package report renders usage indexes as text listings, HTML and CSV tables,
// and deployment manifests. Every renderer is a pure function of its input.
package report

import (
	"encoding/csv"
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/phobologic/templan/internal/model"
	"github.com/phobologic/templan/internal/usage"
)

// UnusedPlaceholder fills the invocation columns of a template nothing calls.
const UnusedPlaceholder = "not called from source"

// ListingOptions controls Listing.
type ListingOptions struct {
	// Refs adds each template's variable references.
	Refs bool
}

// Listing writes the plain-text summary: one block per template in name
// order, followed by the template and invocation totals.
func Listing(w io.Writer, idx *usage.Index, opts ListingOptions) error {
	var b strings.Builder
	for _, e := range idx.Entries() {
		writeListingEntry(&b, e, opts)
	}
	fmt.Fprintf(&b, "%d templates, %d invocations\n", idx.TemplateCount(), idx.InvocationCount())
	_, err := io.WriteString(w, b.String())
	return err
}

// ListingEntries is Listing for entries outside an index, such as unused templates.
func ListingEntries(w io.Writer, entries []model.UsageEntry, opts ListingOptions) error {
	var b strings.Builder
	for _, e := range entries {
		writeListingEntry(&b, e, opts)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func writeListingEntry(b *strings.Builder, e model.UsageEntry, opts ListingOptions) {
	fmt.Fprintf(b, "[%s]\n", e.Template)
	for _, inv := range e.Invocations {
		fmt.Fprintf(b, " inv: %s (%s)\n", inv.File, inv.Signature)
	}
	if opts.Refs {
		for _, ref := range e.References {
			fmt.Fprintf(b, " var: %s\n", ref)
		}
	}
}

const (
	headerRow = `    <tr>
        <th>Template</th>
        <th>Variable references</th>
        <th>Called from</th>
        <th>Call signature</th>
    </tr>`

	firstRow = `    <tr>
        <td rowspan="%d">%s</td>
        <td rowspan="%d">%s</td>
        <td>%s</td>
        <td>%s</td>
    </tr>`

	otherRow = `    <tr>
        <td>%s</td>
        <td>%s</td>
    </tr>`

	unusedRow = `    <tr>
        <td>%s</td>
        <td>%s</td>
        <td colspan="2">%s</td>
    </tr>`
)

// HTMLTable renders entries as one table with a row group per template.
// The template and reference cells span all of the group's invocation rows.
func HTMLTable(entries []model.UsageEntry) string {
	rows := []string{headerRow}
	for _, e := range entries {
		name := html.EscapeString(string(e.Template))
		refs := joinRefs(e.References)
		if e.Unused() {
			rows = append(rows, fmt.Sprintf(unusedRow, name, refs, UnusedPlaceholder))
			continue
		}
		n := len(e.Invocations)
		first := e.Invocations[0]
		rows = append(rows, fmt.Sprintf(firstRow, n, name, n, refs,
			html.EscapeString(first.File), html.EscapeString(first.Signature)))
		for _, inv := range e.Invocations[1:] {
			rows = append(rows, fmt.Sprintf(otherRow,
				html.EscapeString(inv.File), html.EscapeString(inv.Signature)))
		}
	}
	return "<table>\n" + strings.Join(rows, "\n") + "\n</table>"
}

func joinRefs(refs []string) string {
	escaped := make([]string, len(refs))
	for i, r := range refs {
		escaped[i] = html.EscapeString(r)
	}
	return strings.Join(escaped, "<br/>\n")
}

// CSV writes one headerless row per (template, file, signature).
// Templates without invocations contribute no rows.
func CSV(w io.Writer, entries []model.UsageEntry) error {
	cw := csv.NewWriter(w)
	for _, e := range entries {
		for _, inv := range e.Invocations {
			if err := cw.Write([]string{string(e.Template), inv.File, inv.Signature}); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}
