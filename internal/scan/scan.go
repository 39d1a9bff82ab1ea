// Package scan turns raw search output lines into invocation sites and
// variable references. Lines that do not have the expected shape are search
// noise and are skipped without error.
package scan

import (
	"regexp"

	"github.com/phobologic/templan/internal/discover"
	"github.com/phobologic/templan/internal/model"
)

// DefaultTemplateExt is the file extension of legacy templates.
const DefaultTemplateExt = "dtml"

var (
	// path : context ( 'Name', signature )
	invocationRe = regexp.MustCompile(`^(?:\./)?([^:]+):[^(]+\('(\w+)', (.*)\)`)
	exprRe       = regexp.MustCompile(`expr="([^"]+)"`)
)

// ScanInvocations extracts one invocation site per matching line, in input order.
func ScanInvocations(lines []string) []model.InvocationSite {
	var sites []model.InvocationSite
	for _, line := range lines {
		m := invocationRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if discover.InVCSDir(m[1]) {
			continue
		}
		sites = append(sites, model.InvocationSite{
			Template:  model.TemplateName(m[2]),
			File:      m[1],
			Signature: m[3],
		})
	}
	return sites
}

// ReferenceScanner extracts variable references from lines found in template
// files with a given extension.
type ReferenceScanner struct {
	lineRe *regexp.Regexp
}

// NewReferenceScanner returns a scanner for templates named NAME.ext.
// An empty ext selects DefaultTemplateExt.
func NewReferenceScanner(ext string) *ReferenceScanner {
	if ext == "" {
		ext = DefaultTemplateExt
	}
	return &ReferenceScanner{
		lineRe: regexp.MustCompile(`^[^:]*/([^:/]+)\.` + regexp.QuoteMeta(ext) + `:(.*)`),
	}
}

// Scan returns every expr="..." occurrence on every matching line, verbatim.
// A single line may yield several references.
func (s *ReferenceScanner) Scan(lines []string) []model.VariableReference {
	var refs []model.VariableReference
	for _, line := range lines {
		m := s.lineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if discover.InVCSDir(line[:len(line)-len(m[2])-1]) {
			continue
		}
		name := model.TemplateName(m[1])
		for _, em := range exprRe.FindAllStringSubmatch(m[2], -1) {
			refs = append(refs, model.VariableReference{Template: name, Expression: em[1]})
		}
	}
	return refs
}

// ScanReferences is NewReferenceScanner(ext).Scan(lines).
func ScanReferences(lines []string, ext string) []model.VariableReference {
	return NewReferenceScanner(ext).Scan(lines)
}
