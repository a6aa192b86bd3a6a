// pkg/template/templates.go
package template

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"whatsapp-service/internal/domain"
)

// Resolver is a static lookup over a template snapshot fetched once per
// dispatch.
type Resolver struct {
	byID map[string]domain.Template
}

func NewResolver(templates []domain.Template) *Resolver {
	byID := make(map[string]domain.Template, len(templates))
	for _, t := range templates {
		byID[t.ID] = t
	}
	return &Resolver{byID: byID}
}

// Resolve returns the body to send. With no template id the fallback text is
// used verbatim. A known id replaces the fallback entirely. An unknown id
// yields "" so the caller treats it as no message selected.
func (r *Resolver) Resolve(templateID, fallback string) string {
	if templateID == "" {
		return fallback
	}
	t, ok := r.byID[templateID]
	if !ok {
		return ""
	}
	return t.Content
}

func (r *Resolver) Lookup(templateID string) (domain.Template, bool) {
	t, ok := r.byID[templateID]
	return t, ok
}

type fileTemplates struct {
	Templates []domain.Template `yaml:"templates"`
}

// LoadFile reads a YAML template list:
//
//	templates:
//	  - id: welcome
//	    title: Welcome
//	    content: Hi! Thanks for your interest.
func LoadFile(path string) ([]domain.Template, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read templates file: %w", err)
	}
	var f fileTemplates
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse templates file %s: %w", path, err)
	}

	seen := make(map[string]bool, len(f.Templates))
	for i, t := range f.Templates {
		if strings.TrimSpace(t.ID) == "" {
			return nil, fmt.Errorf("template #%d in %s has no id", i+1, path)
		}
		if seen[t.ID] {
			return nil, fmt.Errorf("duplicate template id %q in %s", t.ID, path)
		}
		seen[t.ID] = true
	}
	return f.Templates, nil
}
