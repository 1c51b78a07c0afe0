package store

import (
	"sort"

	"github.com/tidwall/match"
)

// Snapshot is the read-only view of the visible names that one batch run
// matches against. Build it once per run; it is safe for concurrent use.
type Snapshot struct {
	sorted      []string // visible names, ascending
	ordered     []string // visible names, store order
	lowered     []string // parallel to ordered
	visible     map[string]struct{}
	fingerprint uint64
}

// Snapshot captures the current visible names.
func (s *Store) Snapshot() *Snapshot {
	snap := &Snapshot{
		ordered:     make([]string, 0, len(s.names)),
		lowered:     make([]string, 0, len(s.names)),
		visible:     make(map[string]struct{}, len(s.names)),
		fingerprint: s.Fingerprint(),
	}
	for i, n := range s.names {
		if n.Hidden {
			continue
		}
		snap.ordered = append(snap.ordered, n.Name)
		snap.lowered = append(snap.lowered, s.lowered[i])
		snap.visible[n.Name] = struct{}{}
	}
	snap.sorted = append([]string(nil), snap.ordered...)
	sort.SliceStable(snap.sorted, func(i, j int) bool { return snap.sorted[i] < snap.sorted[j] })
	return snap
}

// Len returns the number of visible names.
func (s *Snapshot) Len() int {
	return len(s.ordered)
}

// Fingerprint returns the fingerprint of the store the snapshot came from.
func (s *Snapshot) Fingerprint() uint64 {
	return s.fingerprint
}

// Contains reports whether name is visible (exact, case-sensitive).
func (s *Snapshot) Contains(name string) bool {
	_, ok := s.visible[name]
	return ok
}

// VisibleNames returns the sorted visible names. The slice is shared and
// must not be modified.
func (s *Snapshot) VisibleNames() []string {
	return s.sorted
}

// Filtered returns the visible names matching query, in store order.
func (s *Snapshot) Filtered(query string) []string {
	pattern := QueryPattern(query)
	out := make([]string, 0)
	for i, lower := range s.lowered {
		if match.Match(lower, pattern) {
			out = append(out, s.ordered[i])
		}
	}
	return out
}
