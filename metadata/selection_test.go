package metadata

import (
	"reflect"
	"testing"
)

func componentWithID(id string) Component {
	c := NewComponent("ApexClass", "C_"+id, StatusSynced)
	c.ID = id
	return c
}

func TestToggleFlipsSingleID(t *testing.T) {
	s := NewSelectionModel()
	s.Toggle("1")
	if !s.IsSelected("1") || s.Count() != 1 {
		t.Errorf("Expected {1} selected, got %v", s.SelectedIDs())
	}
	s.Toggle("1")
	if s.IsSelected("1") || s.Count() != 0 {
		t.Errorf("Expected empty selection, got %v", s.SelectedIDs())
	}
}

// TestToggleMultipleGroupSemantics covers the single-keypress group toggle:
// a fully selected group deselects as a whole, anything else selects as a
// whole. Never a per-ID flip.
func TestToggleMultipleGroupSemantics(t *testing.T) {
	s := NewSelectionModel()

	s.ToggleMultiple([]string{"1", "2"})
	if got := s.SelectedIDs(); !reflect.DeepEqual(got, []string{"1", "2"}) {
		t.Errorf("Expected {1,2}, got %v", got)
	}

	s.ToggleMultiple([]string{"1", "2"})
	if s.Count() != 0 {
		t.Errorf("Expected empty selection after second group toggle, got %v", s.SelectedIDs())
	}

	// Mixed group selects everything rather than flipping each member.
	s.Toggle("1")
	s.ToggleMultiple([]string{"1", "2"})
	if got := s.SelectedIDs(); !reflect.DeepEqual(got, []string{"1", "2"}) {
		t.Errorf("Expected mixed group toggle to select all, got %v", got)
	}
}

// TestToggleMultipleRoundTrip checks that a double group toggle restores the
// prior state even when an unrelated ID was toggled in between.
func TestToggleMultipleRoundTrip(t *testing.T) {
	s := NewSelectionModel()
	s.Toggle("outside")

	s.ToggleMultiple([]string{"a", "b", "c"})
	s.Toggle("elsewhere")
	s.ToggleMultiple([]string{"a", "b", "c"})

	if got := s.SelectedIDs(); !reflect.DeepEqual(got, []string{"elsewhere", "outside"}) {
		t.Errorf("Expected group round-trip to leave only unrelated IDs, got %v", got)
	}
}

func TestToggleMultipleEmptyInput(t *testing.T) {
	s := NewSelectionModel()
	s.Toggle("1")
	s.ToggleMultiple(nil)
	if s.Count() != 1 {
		t.Errorf("Expected empty group toggle to change nothing, got %v", s.SelectedIDs())
	}
}

// TestSelectAllReplaces checks that SelectAll is a replacement, never a
// union with the prior selection.
func TestSelectAllReplaces(t *testing.T) {
	s := NewSelectionModel()
	xs := []Component{componentWithID("x1"), componentWithID("x2")}
	ys := []Component{componentWithID("y1")}

	s.SelectAll(xs)
	s.SelectAll(ys)

	if got := s.SelectedIDs(); !reflect.DeepEqual(got, []string{"y1"}) {
		t.Errorf("Expected selection to equal ys exactly, got %v", got)
	}
}

func TestDeselectAll(t *testing.T) {
	s := NewSelectionModel()
	s.ToggleMultiple([]string{"1", "2", "3"})
	s.DeselectAll()
	if s.Count() != 0 {
		t.Errorf("Expected empty selection, got %v", s.SelectedIDs())
	}
}

func TestAggregateTriState(t *testing.T) {
	s := NewSelectionModel()
	group := []Component{componentWithID("1"), componentWithID("2"), componentWithID("3")}

	if got := s.Aggregate(group); got != TriNone {
		t.Errorf("Expected none, got %s", got)
	}
	s.Toggle("2")
	if got := s.Aggregate(group); got != TriPartial {
		t.Errorf("Expected partial, got %s", got)
	}
	s.ToggleMultiple([]string{"1", "2", "3"})
	if got := s.Aggregate(group); got != TriAll {
		t.Errorf("Expected all, got %s", got)
	}
	if got := s.Aggregate(nil); got != TriNone {
		t.Errorf("Expected none for empty group, got %s", got)
	}
}

// TestAggregateFollowsRegrouping checks that the aggregate is a pure
// projection: regrouping the same components yields consistent answers with
// no stored state involved.
func TestAggregateFollowsRegrouping(t *testing.T) {
	s := NewSelectionModel()
	a, b, c := componentWithID("a"), componentWithID("b"), componentWithID("c")
	s.Toggle("a")
	s.Toggle("b")

	if got := s.Aggregate([]Component{a, b}); got != TriAll {
		t.Errorf("Expected all for {a,b}, got %s", got)
	}
	if got := s.Aggregate([]Component{a, b, c}); got != TriPartial {
		t.Errorf("Expected partial for {a,b,c}, got %s", got)
	}
	if got := s.Aggregate([]Component{c}); got != TriNone {
		t.Errorf("Expected none for {c}, got %s", got)
	}
}

func TestSelectedComponentsPreservesPoolOrder(t *testing.T) {
	s := NewSelectionModel()
	pool := []Component{componentWithID("3"), componentWithID("1"), componentWithID("2")}
	s.Toggle("2")
	s.Toggle("3")

	got := s.SelectedComponents(pool)
	if len(got) != 2 || got[0].ID != "3" || got[1].ID != "2" {
		t.Errorf("Expected pool-ordered [3 2], got %v", got)
	}
}

func TestInvalidateClearsAndNotifies(t *testing.T) {
	s := NewSelectionModel()
	s.ToggleMultiple([]string{"1", "2"})

	var reason string
	s.OnInvalidate(func(r string) { reason = r })
	s.Invalidate("cache replaced for ApexClass")

	if s.Count() != 0 {
		t.Errorf("Expected cleared selection, got %v", s.SelectedIDs())
	}
	if reason != "cache replaced for ApexClass" {
		t.Errorf("Expected invalidation reason to reach callback, got %q", reason)
	}
}

func TestScopes(t *testing.T) {
	s := NewSelectionModel()
	if s.ViewScope() != ViewAll {
		t.Errorf("Expected default view scope all, got %s", s.ViewScope())
	}
	s.SetViewScope(ViewSelectedOnly)
	if s.ViewScope() != ViewSelectedOnly {
		t.Errorf("Expected selected-only, got %s", s.ViewScope())
	}
	if s.SelectionScope() != UnpackagedScope {
		t.Errorf("Expected default unpackaged scope, got %q", s.SelectionScope())
	}
	s.SetSelectionScope("acme_billing")
	if s.SelectionScope() != "acme_billing" {
		t.Errorf("Expected package scope, got %q", s.SelectionScope())
	}
}
