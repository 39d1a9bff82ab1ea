package report

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/phobologic/templan/internal/model"
)

// ErrUnclassified is returned when no classification rule matches a template.
var ErrUnclassified = errors.New("template matches no classification rule")

// excluded templates never appear in a manifest.
var excluded = map[model.TemplateName]struct{}{
	"MessageBase": {},
	"TestMessage": {},
}

// classRules are tried in order; the first match wins.
var classRules = []func(name, sig string) (string, bool){
	func(name, _ string) (string, bool) {
		return "team", strings.HasPrefix(name, "Team")
	},
	func(name, _ string) (string, bool) {
		return "reminder", strings.HasSuffix(name, "Reminder")
	},
	func(_, sig string) (string, bool) {
		if !strings.Contains(sig, "activity") {
			return "", false
		}
		if strings.Contains(sig, "action") {
			return "activity-action", true
		}
		return "activity", true
	},
	func(_, sig string) (string, bool) {
		return "completeness", strings.Contains(sig, "completeness")
	},
	func(_, sig string) (string, bool) {
		switch {
		case !strings.Contains(sig, "cycle"):
			return "", false
		case !strings.Contains(sig, "member"):
			return "cycle", true
		case strings.Contains(sig, "action"):
			return "cycle-member-action", true
		default:
			return "cycle-member", true
		}
	},
	func(name, sig string) (string, bool) {
		if !strings.Contains(sig, "form") {
			return "", false
		}
		if strings.HasPrefix(name, "Review") {
			return "form-review", true
		}
		return "form", true
	},
}

// Excluded reports whether name is always left out of manifests.
func Excluded(name model.TemplateName) bool {
	_, ok := excluded[name]
	return ok
}

// Classify derives a template's manifest type from its name and the
// signature of its first sorted invocation.
func Classify(name model.TemplateName, signature string) (string, error) {
	for _, rule := range classRules {
		if class, ok := rule(string(name), signature); ok {
			return class, nil
		}
	}
	return "", fmt.Errorf("%s (signature %q): %w", name, signature, ErrUnclassified)
}

// ManifestOptions controls Manifest.
type ManifestOptions struct {
	// DestExt is appended to the template name to form the file attribute.
	DestExt string
	// Titles overrides the default title (the template name).
	Titles map[model.TemplateName]string
}

// Manifest classifies every entry that is not excluded. Any unclassified
// template fails the whole manifest.
func Manifest(entries []model.UsageEntry, opts ManifestOptions) ([]model.ManifestEntry, error) {
	ext := opts.DestExt
	if ext == "" {
		ext = "tmpl"
	}

	var out []model.ManifestEntry
	for _, e := range entries {
		if Excluded(e.Template) {
			continue
		}
		class, err := Classify(e.Template, e.FirstSignature())
		if err != nil {
			return nil, err
		}
		title := string(e.Template)
		if t, ok := opts.Titles[e.Template]; ok {
			title = t
		}
		out = append(out, model.ManifestEntry{
			File:     string(e.Template) + "." + ext,
			Type:     class,
			Template: e.Template,
			Title:    title,
		})
	}
	return out, nil
}

type manifestXML struct {
	XMLName xml.Name              `xml:"templates"`
	Entries []model.ManifestEntry `xml:"template"`
}

// WriteManifestXML writes entries as a <templates> document.
func WriteManifestXML(w io.Writer, entries []model.ManifestEntry) error {
	data, err := xml.MarshalIndent(manifestXML{Entries: entries}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	_, err = io.WriteString(w, "\n")
	return err
}

// WriteManifestYAML writes entries under a top-level "templates" key.
func WriteManifestYAML(w io.Writer, entries []model.ManifestEntry) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	doc := struct {
		Templates []model.ManifestEntry `yaml:"templates"`
	}{Templates: entries}
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	return enc.Close()
}
