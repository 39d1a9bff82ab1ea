// Package model defines core data structures for templan.
package model

// TemplateName identifies a message template. Names are case-sensitive and
// unique; they join invocations, references and manifest entries.
type TemplateName string

// InvocationSite is one place in the source tree that renders a template.
// Signature is the call's argument expression, kept as opaque text.
type InvocationSite struct {
	Template  TemplateName
	File      string
	Signature string
}

// Less orders invocation sites by file, then signature.
func (s InvocationSite) Less(o InvocationSite) bool {
	if s.File != o.File {
		return s.File < o.File
	}
	return s.Signature < o.Signature
}

// VariableReference is one variable expression written inside a template body.
type VariableReference struct {
	Template   TemplateName
	Expression string
}

// UsageEntry aggregates everything known about one template.
// Invocations and References are always sorted; References holds no duplicates.
type UsageEntry struct {
	Template    TemplateName
	Invocations []InvocationSite
	References  []string
}

// Unused reports whether no source file renders the template.
func (e UsageEntry) Unused() bool {
	return len(e.Invocations) == 0
}

// FirstSignature returns the signature of the first sorted invocation, or "".
func (e UsageEntry) FirstSignature() string {
	if len(e.Invocations) == 0 {
		return ""
	}
	return e.Invocations[0].Signature
}

// TagKind is the closed set of legacy tag kinds the transpiler understands.
type TagKind string

const (
	Variable         TagKind = "var"
	ConditionalOpen  TagKind = "if"
	ConditionalClose TagKind = "/if"
	IterationOpen    TagKind = "in"
	IterationClose   TagKind = "/in"
	MimeMarker       TagKind = "nmime"
	BoundaryMarker   TagKind = "nboundary"
)

// TagNode is one parsed legacy tag. Name is the kind as written in the source,
// which may differ from Kind for closing tags ("</dtml-inner>" closes as an iteration).
type TagNode struct {
	Kind       TagKind
	Name       string
	Expression string
	Prefix     string
	Offset     int
}

// ManifestEntry describes one deployable template.
type ManifestEntry struct {
	File     string       `xml:"file,attr" yaml:"file"`
	Type     string       `xml:"type,attr" yaml:"type"`
	Template TemplateName `xml:"id,attr" yaml:"id"`
	Title    string       `xml:"title,attr" yaml:"title"`
}
