// Package usage correlates template invocation sites with the variables each
// template references.
package usage

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/phobologic/templan/internal/model"
	"github.com/phobologic/templan/internal/scan"
	"github.com/phobologic/templan/internal/sourceindex"
)

// Sources names the searches that feed one scan.
type Sources struct {
	Invocations sourceindex.Index
	References  sourceindex.Index
}

// Options configures Scan.
type Options struct {
	// SourceRoot is searched for InvocationPattern.
	SourceRoot        string
	InvocationPattern string
	// TemplatesRoot is searched for ReferencePattern.
	TemplatesRoot    string
	ReferencePattern string
	TemplateExt      string
}

// ScanResult holds everything one run learned from the source tree.
// It is built once per run and must not be modified afterwards.
type ScanResult struct {
	Invocations []model.InvocationSite
	References  []model.VariableReference
}

// Scan runs both searches and parses their output.
func Scan(ctx context.Context, src Sources, opts Options) (*ScanResult, error) {
	invLines, err := src.Invocations.Search(ctx, opts.InvocationPattern, opts.SourceRoot)
	if err != nil {
		return nil, fmt.Errorf("searching invocations: %w", err)
	}
	refLines, err := src.References.Search(ctx, opts.ReferencePattern, opts.TemplatesRoot)
	if err != nil {
		return nil, fmt.Errorf("searching references: %w", err)
	}
	return &ScanResult{
		Invocations: scan.ScanInvocations(invLines),
		References:  scan.ScanReferences(refLines, opts.TemplateExt),
	}, nil
}

// Build aggregates invocations and references per template. A template is
// included only when at least one of its invocations has a signature
// containing filter; templates without invocations are never included.
func Build(invocations []model.InvocationSite, references []model.VariableReference, filter string) map[model.TemplateName]model.UsageEntry {
	invByName, refsByName := group(invocations, references)

	result := make(map[model.TemplateName]model.UsageEntry)
	for name := range universe(invByName, refsByName) {
		invs := invByName[name]
		if !anySignatureContains(invs, filter) {
			continue
		}
		result[name] = newEntry(name, invs, refsByName[name])
	}
	return result
}

// Index returns the filtered view of r.
func (r *ScanResult) Index(filter string) *Index {
	return NewIndex(Build(r.Invocations, r.References, filter))
}

// Unused returns the templates that are referenced but never invoked,
// sorted by name.
func (r *ScanResult) Unused() []model.UsageEntry {
	invByName, refsByName := group(r.Invocations, r.References)
	var out []model.UsageEntry
	for name, refs := range refsByName {
		if len(invByName[name]) > 0 {
			continue
		}
		out = append(out, newEntry(name, nil, refs))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Template < out[j].Template })
	return out
}

func group(invocations []model.InvocationSite, references []model.VariableReference) (map[model.TemplateName][]model.InvocationSite, map[model.TemplateName]map[string]struct{}) {
	invByName := make(map[model.TemplateName][]model.InvocationSite)
	for _, inv := range invocations {
		invByName[inv.Template] = append(invByName[inv.Template], inv)
	}
	refsByName := make(map[model.TemplateName]map[string]struct{})
	for _, ref := range references {
		if refsByName[ref.Template] == nil {
			refsByName[ref.Template] = make(map[string]struct{})
		}
		refsByName[ref.Template][ref.Expression] = struct{}{}
	}
	return invByName, refsByName
}

func universe(invByName map[model.TemplateName][]model.InvocationSite, refsByName map[model.TemplateName]map[string]struct{}) map[model.TemplateName]struct{} {
	names := make(map[model.TemplateName]struct{}, len(invByName)+len(refsByName))
	for name := range invByName {
		names[name] = struct{}{}
	}
	for name := range refsByName {
		names[name] = struct{}{}
	}
	return names
}

func anySignatureContains(invs []model.InvocationSite, filter string) bool {
	for _, inv := range invs {
		if strings.Contains(inv.Signature, filter) {
			return true
		}
	}
	return false
}

func newEntry(name model.TemplateName, invs []model.InvocationSite, refs map[string]struct{}) model.UsageEntry {
	sortedInvs := make([]model.InvocationSite, len(invs))
	copy(sortedInvs, invs)
	sort.SliceStable(sortedInvs, func(i, j int) bool { return sortedInvs[i].Less(sortedInvs[j]) })

	sortedRefs := make([]string, 0, len(refs))
	for expr := range refs {
		sortedRefs = append(sortedRefs, expr)
	}
	sort.Strings(sortedRefs)

	return model.UsageEntry{
		Template:    name,
		Invocations: sortedInvs,
		References:  sortedRefs,
	}
}
