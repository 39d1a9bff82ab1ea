package usage

import (
	"sort"

	"github.com/phobologic/templan/internal/model"
)

// Index is a read-only, name-ordered view over built usage entries.
type Index struct {
	entries map[model.TemplateName]model.UsageEntry
	names   []model.TemplateName
}

// NewIndex wraps entries, typically the result of Build.
func NewIndex(entries map[model.TemplateName]model.UsageEntry) *Index {
	names := make([]model.TemplateName, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return &Index{entries: entries, names: names}
}

// Names returns the included template names in sorted order.
func (x *Index) Names() []model.TemplateName {
	out := make([]model.TemplateName, len(x.names))
	copy(out, x.names)
	return out
}

// Entries returns the entries ordered by template name.
func (x *Index) Entries() []model.UsageEntry {
	out := make([]model.UsageEntry, 0, len(x.names))
	for _, name := range x.names {
		out = append(out, x.entries[name])
	}
	return out
}

// Get returns the entry for name.
func (x *Index) Get(name model.TemplateName) (model.UsageEntry, bool) {
	e, ok := x.entries[name]
	return e, ok
}

// TemplateCount is the number of included templates.
func (x *Index) TemplateCount() int {
	return len(x.names)
}

// InvocationCount is the number of invocation sites across included templates.
func (x *Index) InvocationCount() int {
	n := 0
	for _, e := range x.entries {
		n += len(e.Invocations)
	}
	return n
}
