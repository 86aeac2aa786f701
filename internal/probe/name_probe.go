package probe

import (
	"fmt"
	"strings"

	gopsproc "github.com/shirou/gopsutil/v4/process"
)

// MatchMode selects how process names are compared against the watch list.
type MatchMode string

const (
	// MatchExact requires case-insensitive equality with a watch-list entry.
	MatchExact MatchMode = "exact"
	// MatchSubstring matches when a watch-list entry is contained in the
	// process name, case-insensitively.
	MatchSubstring MatchMode = "substring"
)

// ParseMatchMode validates a textual match mode. Empty means MatchExact.
func ParseMatchMode(s string) (MatchMode, error) {
	switch MatchMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", MatchExact:
		return MatchExact, nil
	case MatchSubstring:
		return MatchSubstring, nil
	default:
		return "", fmt.Errorf("unknown match mode %q", s)
	}
}

// NameProbe scans the OS process table once per Alive call and reports
// whether any process executable name matches an entry in Names. A process
// that exits or denies access mid-scan is skipped, never an error.
type NameProbe struct {
	Names []string
	Mode  MatchMode
}

func (p NameProbe) Alive() (bool, error) {
	procs, err := gopsproc.Processes()
	if err != nil {
		return false, fmt.Errorf("enumerate processes: %w", err)
	}
	watch := normalizeNames(p.Names)
	if len(watch) == 0 {
		return false, nil
	}
	for _, pr := range procs {
		name, err := pr.Name()
		if err != nil {
			// process gone or access denied; skip
			continue
		}
		if matchesAny(strings.ToLower(name), watch, p.Mode) {
			return true, nil
		}
	}
	return false, nil
}

func (p NameProbe) Describe() string {
	return "names:" + strings.Join(p.Names, ",")
}

func normalizeNames(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n != "" {
			out = append(out, n)
		}
	}
	return out
}

func matchesAny(procName string, watch []string, mode MatchMode) bool {
	for _, w := range watch {
		if mode == MatchSubstring {
			if strings.Contains(procName, w) {
				return true
			}
			continue
		}
		if procName == w {
			return true
		}
	}
	return false
}
