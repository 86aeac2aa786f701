package vast

import (
	"strconv"
	"strings"
)

// Selector identifies which instances the monitor is responsible for:
// either a numeric instance id or a label string. Disambiguation attempts
// an integer parse first, so an all-digits label is always treated as an
// id — a documented ambiguity kept for compatibility, not a heuristic to
// improve.
type Selector struct {
	raw  string
	id   int64
	byID bool
}

// ParseSelector builds a selector from its textual form. An empty selector
// matches every instance.
func ParseSelector(s string) Selector {
	s = strings.TrimSpace(s)
	if id, err := strconv.ParseInt(s, 10, 64); err == nil && s != "" {
		return Selector{raw: s, id: id, byID: true}
	}
	return Selector{raw: s}
}

// IsEmpty reports whether the selector matches everything.
func (s Selector) IsEmpty() bool { return s.raw == "" }

// ByID reports whether the selector filters by numeric id.
func (s Selector) ByID() bool { return s.byID }

// ID returns the numeric id; only meaningful when ByID is true.
func (s Selector) ID() int64 { return s.id }

// Label returns the label; only meaningful when ByID is false.
func (s Selector) Label() string { return s.raw }

// Matches reports whether an instance is selected. Labels compare exactly.
func (s Selector) Matches(inst Instance) bool {
	if s.IsEmpty() {
		return true
	}
	if s.byID {
		return inst.ID == s.id
	}
	return inst.Label == s.raw
}

func (s Selector) String() string {
	if s.IsEmpty() {
		return "all"
	}
	if s.byID {
		return "id:" + s.raw
	}
	return "label:" + s.raw
}
