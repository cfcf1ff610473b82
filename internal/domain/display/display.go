// Package display binds index patterns to rendering templates.
package display

import (
	"fmt"
	"sort"

	"github.com/kailas-cloud/esre-console/internal/domain"
	"github.com/kailas-cloud/esre-console/internal/domain/display/pattern"
	"github.com/kailas-cloud/esre-console/internal/domain/display/template"
	domdoc "github.com/kailas-cloud/esre-console/internal/domain/document"
)

// Display is a rendering template bound to an index pattern.
type Display struct {
	ID           string   `json:"_id,omitempty"`
	ProjectID    string   `json:"project_id,omitempty"`
	IndexPattern string   `json:"index_pattern"`
	Template     Template `json:"template"`
	Fields       []string `json:"fields,omitempty"`
}

// Template holds the mustache-style body.
type Template struct {
	Body string `json:"body"`
}

// Validate checks that the display can be stored.
func (d *Display) Validate() error {
	if d.IndexPattern == "" {
		return domain.Validationf("display index_pattern is required")
	}
	if d.Template.Body == "" {
		return domain.Validationf("display template.body is required")
	}
	return nil
}

// Set is an immutable index-pattern → display map with a compiled resolver.
type Set struct {
	displays map[string]Display
	index    *pattern.Index
}

// NewSet compiles the given displays. Patterns are compiled in
// lexicographic order so equal-length ties always resolve the same way.
func NewSet(displays map[string]Display) *Set {
	keys := make([]string, 0, len(displays))
	m := make(map[string]Display, len(displays))
	for k, d := range displays {
		keys = append(keys, k)
		m[k] = d
	}
	sort.Strings(keys)
	return &Set{displays: m, index: pattern.Build(keys)}
}

// FromList keys displays by their IndexPattern. A later duplicate pattern
// replaces an earlier one.
func FromList(list []Display) *Set {
	m := make(map[string]Display, len(list))
	for _, d := range list {
		m[d.IndexPattern] = d
	}
	return NewSet(m)
}

// Lookup returns the display of the most specific pattern matching index.
func (s *Set) Lookup(index string) (Display, bool) {
	if s == nil {
		return Display{}, false
	}
	p, ok := s.index.Resolve(index)
	if !ok {
		return Display{}, false
	}
	return s.displays[p], true
}

// Render renders doc with the display resolved for its index.
func (s *Set) Render(doc *domdoc.Document) (string, error) {
	d, ok := s.Lookup(doc.Index())
	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrNoDisplay, doc.Index())
	}
	return template.Render(d.Template.Body, doc.Values()), nil
}

// SourceIncludes returns the sorted union of all display field lists,
// or nil when no display restricts fields.
func (s *Set) SourceIncludes() []string {
	if s == nil {
		return nil
	}
	seen := make(map[string]struct{})
	for _, d := range s.displays {
		for _, f := range d.Fields {
			seen[f] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return nil
	}
	out := make([]string, 0, len(seen))
	for f := range seen {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Map returns a copy of the pattern → display mapping.
func (s *Set) Map() map[string]Display {
	if s == nil {
		return map[string]Display{}
	}
	out := make(map[string]Display, len(s.displays))
	for k, v := range s.displays {
		out[k] = v
	}
	return out
}

// Len returns the number of displays.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.displays)
}
