package vast

import "testing"

func TestParseSelectorNumericWins(t *testing.T) {
	sel := ParseSelector("12345")
	if !sel.ByID() || sel.ID() != 12345 {
		t.Fatalf("numeric selector should parse as id: %+v", sel)
	}
	// An all-digits label is indistinguishable from an id; the id reading
	// wins by contract.
	if !sel.Matches(Instance{ID: 12345, Label: "other"}) {
		t.Fatalf("id selector must match by id")
	}
	if sel.Matches(Instance{ID: 1, Label: "12345"}) {
		t.Fatalf("id selector must not fall back to label")
	}
}

func TestParseSelectorLabel(t *testing.T) {
	sel := ParseSelector("XTTS")
	if sel.ByID() {
		t.Fatalf("label selector misread as id")
	}
	if !sel.Matches(Instance{ID: 7, Label: "XTTS"}) {
		t.Fatalf("exact label should match")
	}
	if sel.Matches(Instance{ID: 7, Label: "xtts"}) {
		t.Fatalf("label match is exact, not case-insensitive")
	}
	if sel.Matches(Instance{ID: 7, Label: "XTTS-2"}) {
		t.Fatalf("label match is exact, not substring")
	}
}

func TestEmptySelectorMatchesAll(t *testing.T) {
	sel := ParseSelector("  ")
	if !sel.IsEmpty() {
		t.Fatalf("blank selector should be empty")
	}
	if !sel.Matches(Instance{ID: 1}) || !sel.Matches(Instance{Label: "x"}) {
		t.Fatalf("empty selector must match everything")
	}
}

func TestSelectorString(t *testing.T) {
	if got := ParseSelector("42").String(); got != "id:42" {
		t.Fatalf("String()=%q", got)
	}
	if got := ParseSelector("XTTS").String(); got != "label:XTTS" {
		t.Fatalf("String()=%q", got)
	}
	if got := ParseSelector("").String(); got != "all" {
		t.Fatalf("String()=%q", got)
	}
}
