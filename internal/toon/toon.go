// Package toon implements TOON (Token-Oriented Object Notation) encoding.
package toon

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/phobologic/templan/internal/model"
)

var (
	needsQuoting = regexp.MustCompile(`[,:"\\{}\[\]]`)
	looksNumeric = regexp.MustCompile(`^-?(?:0|[1-9]\d*)(?:\.\d+)?$`)
	keywords     = map[string]struct{}{
		"true":  {},
		"false": {},
		"null":  {},
	}
)

// Encode converts usage entries into TOON format: a per-template summary
// table followed by flat invocation and reference tables.
func Encode(entries []model.UsageEntry) string {
	var parts []string

	var templateRows, invRows, refRows [][]string
	for i := range entries {
		e := &entries[i]
		name := string(e.Template)
		templateRows = append(templateRows, []string{
			name,
			fmt.Sprintf("%d", len(e.Invocations)),
			fmt.Sprintf("%d", len(e.References)),
		})
		for _, inv := range e.Invocations {
			invRows = append(invRows, []string{name, inv.File, inv.Signature})
		}
		for _, ref := range e.References {
			refRows = append(refRows, []string{name, ref})
		}
	}

	parts = append(parts, formatTabular("templates", []string{"template", "invocations", "references"}, templateRows))
	parts = append(parts, formatTabular("invocations", []string{"template", "file", "signature"}, invRows))
	parts = append(parts, formatTabular("references", []string{"template", "expression"}, refRows))

	return strings.Join(parts, "\n")
}

func formatTabular(name string, columns []string, rows [][]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%d]{%s}:", name, len(rows), strings.Join(columns, ","))
	for _, row := range rows {
		encoded := make([]string, len(row))
		for i, cell := range row {
			encoded[i] = encodeValue(cell)
		}
		fmt.Fprintf(&b, "\n  %s", strings.Join(encoded, ","))
	}
	return b.String()
}

func encodeValue(value string) string {
	if value == "" {
		return `""`
	}

	if value != strings.TrimSpace(value) {
		return quote(value)
	}

	if strings.ContainsAny(value, "\n\r\t") {
		return quote(value)
	}

	if _, ok := keywords[strings.ToLower(value)]; ok {
		return quote(value)
	}

	if looksNumeric.MatchString(value) {
		return value
	}

	if needsQuoting.MatchString(value) {
		return quote(value)
	}

	if strings.HasPrefix(value, "-") {
		return quote(value)
	}

	return value
}

func quote(value string) string {
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	escaped = strings.ReplaceAll(escaped, "\n", `\n`)
	escaped = strings.ReplaceAll(escaped, "\r", `\r`)
	escaped = strings.ReplaceAll(escaped, "\t", `\t`)
	return `"` + escaped + `"`
}
