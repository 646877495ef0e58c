package live

import "sort"

// VisibilityFilter holds the set of explicitly selected agent series.
// The policy is tri-state: an empty set means every series is shown,
// toggling an agent from the empty state isolates it, and toggling the
// sole selected agent restores "show all". A toggle that would select
// every known agent also collapses back to the empty state so the
// explicit-full-set case stays indistinguishable from "all".
type VisibilityFilter struct {
	selected map[string]struct{}
}

// NewVisibilityFilter creates a filter in the show-all state
func NewVisibilityFilter() *VisibilityFilter {
	return &VisibilityFilter{
		selected: make(map[string]struct{}),
	}
}

// Toggle flips one agent's selection. knownAgents is the number of
// registered series, used to collapse a complete selection.
func (f *VisibilityFilter) Toggle(agentID string, knownAgents int) {
	if _, ok := f.selected[agentID]; ok {
		delete(f.selected, agentID)
		return
	}
	f.selected[agentID] = struct{}{}
	if knownAgents > 0 && len(f.selected) >= knownAgents {
		f.Reset()
	}
}

// Visible reports whether the agent's series should be rendered
func (f *VisibilityFilter) Visible(agentID string) bool {
	if len(f.selected) == 0 {
		return true
	}
	_, ok := f.selected[agentID]
	return ok
}

// Selected returns the selected agent ids in stable order. Empty means
// all series are visible.
func (f *VisibilityFilter) Selected() []string {
	ids := make([]string, 0, len(f.selected))
	for id := range f.selected {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Reset restores the show-all state
func (f *VisibilityFilter) Reset() {
	f.selected = make(map[string]struct{})
}
