package metadata

import (
	"sort"

	"github.com/charmbracelet/log"
)

// TriState is the aggregate selection indicator for a group of components.
type TriState string

const (
	TriNone    TriState = "none"
	TriPartial TriState = "partial"
	TriAll     TriState = "all"
)

// ViewScope controls whether the browse view shows everything or only the
// current selection.
type ViewScope string

const (
	ViewAll          ViewScope = "all"
	ViewSelectedOnly ViewScope = "selected-only"
)

// UnpackagedScope is the selection scope for the org's own namespace.
// Any other value names a distributable package.
const UnpackagedScope = ""

// SelectionModel holds the set of selected component IDs. IDs are opaque and
// valid only within one cache generation; the model is invalidated whenever
// a cache entry is replaced wholesale so dangling IDs never linger.
//
// The model is driven from a single goroutine, matching the engine's single
// logical thread of control per operation.
type SelectionModel struct {
	ids            map[string]bool
	viewScope      ViewScope
	selectionScope string
	onInvalidate   func(reason string)
}

// NewSelectionModel creates an empty selection.
func NewSelectionModel() *SelectionModel {
	return &SelectionModel{
		ids:       make(map[string]bool),
		viewScope: ViewAll,
	}
}

// Toggle flips membership of exactly one ID.
func (s *SelectionModel) Toggle(id string) {
	if s.ids[id] {
		delete(s.ids, id)
		return
	}
	s.ids[id] = true
}

// ToggleMultiple is a group toggle: when every given ID is already selected
// the whole group is deselected, otherwise the whole group is selected. It
// is deliberately not N single toggles, which would flip each ID
// individually and leave a mixed result.
func (s *SelectionModel) ToggleMultiple(ids []string) {
	if len(ids) == 0 {
		return
	}
	allSelected := true
	for _, id := range ids {
		if !s.ids[id] {
			allSelected = false
			break
		}
	}
	for _, id := range ids {
		if allSelected {
			delete(s.ids, id)
		} else {
			s.ids[id] = true
		}
	}
}

// SelectAll replaces the entire selection with exactly the given components.
func (s *SelectionModel) SelectAll(components []Component) {
	s.ids = make(map[string]bool, len(components))
	for _, c := range components {
		s.ids[c.ID] = true
	}
}

// DeselectAll clears the selection.
func (s *SelectionModel) DeselectAll() {
	s.ids = make(map[string]bool)
}

// IsSelected reports whether the ID is selected.
func (s *SelectionModel) IsSelected(id string) bool {
	return s.ids[id]
}

// Count returns the number of selected IDs.
func (s *SelectionModel) Count() int {
	return len(s.ids)
}

// SelectedIDs returns the selected IDs in sorted order.
func (s *SelectionModel) SelectedIDs() []string {
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// SelectedComponents filters a component pool down to the selected ones,
// preserving the pool's order.
func (s *SelectionModel) SelectedComponents(pool []Component) []Component {
	var out []Component
	for _, c := range pool {
		if s.ids[c.ID] {
			out = append(out, c)
		}
	}
	return out
}

// Aggregate computes the tri-state indicator for a group of components. It
// is a pure projection of (group, selection); it is never stored, so it can
// not go stale when grouping criteria change.
func (s *SelectionModel) Aggregate(components []Component) TriState {
	if len(components) == 0 {
		return TriNone
	}
	selected := 0
	for _, c := range components {
		if s.ids[c.ID] {
			selected++
		}
	}
	switch selected {
	case 0:
		return TriNone
	case len(components):
		return TriAll
	default:
		return TriPartial
	}
}

// ViewScope returns the current view scope.
func (s *SelectionModel) ViewScope() ViewScope {
	return s.viewScope
}

// SetViewScope sets the view scope.
func (s *SelectionModel) SetViewScope(scope ViewScope) {
	s.viewScope = scope
}

// SelectionScope returns the packaging partition currently browsed:
// UnpackagedScope or a named package.
func (s *SelectionModel) SelectionScope() string {
	return s.selectionScope
}

// SetSelectionScope sets the packaging partition currently browsed.
func (s *SelectionModel) SetSelectionScope(scope string) {
	s.selectionScope = scope
}

// OnInvalidate registers a callback fired when the selection is cleared
// because its IDs may no longer point at live components.
func (s *SelectionModel) OnInvalidate(callback func(reason string)) {
	s.onInvalidate = callback
}

// Invalidate clears the selection. Called whenever a cache entry is
// replaced wholesale or the subscribed type set drops the browsed type.
func (s *SelectionModel) Invalidate(reason string) {
	if len(s.ids) > 0 {
		log.Debugf("Selection invalidated (%s), clearing %d entries", reason, len(s.ids))
	}
	s.ids = make(map[string]bool)
	if s.onInvalidate != nil {
		s.onInvalidate(reason)
	}
}
