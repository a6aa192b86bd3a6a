// Package selection keeps the set of recipients chosen for a dispatch.
package selection

import (
	"strings"

	"whatsapp-service/internal/domain"
)

// Selector is a set of recipient ids. The zero value is not usable; use New.
type Selector struct {
	ids map[string]struct{}
}

func New(ids ...string) *Selector {
	s := &Selector{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
	return s
}

// Toggle flips membership of id and reports whether it is now selected.
func (s *Selector) Toggle(id string) bool {
	if _, ok := s.ids[id]; ok {
		delete(s.ids, id)
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

func (s *Selector) Has(id string) bool {
	_, ok := s.ids[id]
	return ok
}

func (s *Selector) Len() int {
	return len(s.ids)
}

// SelectAll adds every visible id, leaving other selections untouched.
func (s *Selector) SelectAll(visible []string) {
	for _, id := range visible {
		s.ids[id] = struct{}{}
	}
}

// DeselectAll removes every visible id, leaving other selections untouched.
func (s *Selector) DeselectAll(visible []string) {
	for _, id := range visible {
		delete(s.ids, id)
	}
}

// IsAllSelected is true iff visible is non-empty and fully selected.
func (s *Selector) IsAllSelected(visible []string) bool {
	if len(visible) == 0 {
		return false
	}
	for _, id := range visible {
		if !s.Has(id) {
			return false
		}
	}
	return true
}

// ToggleAll mirrors the "select all" checkbox: clear the visible ids when
// they are all selected, otherwise select them.
func (s *Selector) ToggleAll(visible []string) {
	if s.IsAllSelected(visible) {
		s.DeselectAll(visible)
		return
	}
	s.SelectAll(visible)
}

// Materialize returns the selected recipients in the order of all.
func (s *Selector) Materialize(all []domain.Recipient) []domain.Recipient {
	out := make([]domain.Recipient, 0, len(s.ids))
	for _, r := range all {
		if s.Has(r.ID) {
			out = append(out, r)
		}
	}
	return out
}

// Filter narrows the visible recipients. Empty or "all" fields match
// everything.
type Filter struct {
	Search     string `json:"search,omitempty"`
	Status     string `json:"status,omitempty"`
	Source     string `json:"source,omitempty"`
	AssignedTo string `json:"assigned_to,omitempty"`
}

func (f Filter) Match(r domain.Recipient) bool {
	if q := strings.TrimSpace(f.Search); q != "" {
		if !strings.Contains(strings.ToLower(r.Name), strings.ToLower(q)) && !strings.Contains(r.Phone, q) {
			return false
		}
	}
	return matches(f.Status, r.Status) && matches(f.Source, r.Source) && matches(f.AssignedTo, r.AssignedTo)
}

// Visible returns the ids of recipients matching f, in order.
func (f Filter) Visible(all []domain.Recipient) []string {
	ids := make([]string, 0, len(all))
	for _, r := range all {
		if f.Match(r) {
			ids = append(ids, r.ID)
		}
	}
	return ids
}

func matches(want, got string) bool {
	return want == "" || want == "all" || want == got
}
