// Package store holds the canonical component name database.
//
// A Store is an immutable value: Merge, edits and reloads all produce a new
// Store, so a batch run can hold one without locking while the operator keeps
// editing hidden flags elsewhere.
package store

import (
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/tidwall/match"

	"github.com/standardbeagle/pnpmatch/internal/types"
)

// HiddenFlag marks a hidden name in the tab-delimited database format.
const HiddenFlag = "x"

// Store is the loaded set of component names in load order.
type Store struct {
	names    []types.ComponentName
	lowered  []string            // lower-cased names, parallel to names
	index    map[string]int      // exact name -> position in names
	variants map[string][]string // lower-cased name -> original-case names
	source   string
}

// New builds a store from names in the given order. Exact duplicates keep
// their first occurrence.
func New(names []types.ComponentName) *Store {
	s := &Store{
		names:    make([]types.ComponentName, 0, len(names)),
		lowered:  make([]string, 0, len(names)),
		index:    make(map[string]int, len(names)),
		variants: make(map[string][]string),
	}
	for _, n := range names {
		if _, dup := s.index[n.Name]; dup {
			continue
		}
		lower := strings.ToLower(n.Name)
		s.index[n.Name] = len(s.names)
		s.names = append(s.names, n)
		s.lowered = append(s.lowered, lower)
		s.variants[lower] = append(s.variants[lower], n.Name)
	}
	return s
}

// Empty returns a store with no names.
func Empty() *Store {
	return New(nil)
}

// Len returns the number of names, hidden ones included.
func (s *Store) Len() int {
	return len(s.names)
}

// Source returns the file the store was loaded from, if any.
func (s *Store) Source() string {
	return s.source
}

// All returns every name in load order.
func (s *Store) All() []types.ComponentName {
	return append([]types.ComponentName(nil), s.names...)
}

// Contains reports whether name is present (exact, case-sensitive).
func (s *Store) Contains(name string) bool {
	_, ok := s.index[name]
	return ok
}

// IsHidden reports whether name is present and hidden.
func (s *Store) IsHidden(name string) bool {
	i, ok := s.index[name]
	return ok && s.names[i].Hidden
}

// Variants returns the original-case names stored under a lower-cased key.
func (s *Store) Variants(lower string) []string {
	return append([]string(nil), s.variants[strings.ToLower(lower)]...)
}

// VisibleNames returns the non-hidden names sorted ascending.
func (s *Store) VisibleNames() []string {
	out := make([]string, 0, len(s.names))
	for _, n := range s.names {
		if !n.Hidden {
			out = append(out, n.Name)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Filtered returns the names matching query in store order. The query is
// split into whitespace-separated keywords that must appear in that order,
// case-insensitively. An empty query matches everything.
func (s *Store) Filtered(query string, visibleOnly bool) []string {
	pattern := QueryPattern(query)
	out := make([]string, 0)
	for i, n := range s.names {
		if visibleOnly && n.Hidden {
			continue
		}
		if match.Match(s.lowered[i], pattern) {
			out = append(out, n.Name)
		}
	}
	return out
}

// QueryPattern turns a keyword query into the lower-cased glob
// "*tok1*tok2*...*".
func QueryPattern(query string) string {
	tokens := strings.Fields(strings.ToLower(query))
	if len(tokens) == 0 {
		return "*"
	}
	return "*" + strings.Join(tokens, "*") + "*"
}

// Fingerprint hashes names and hidden flags. Two stores with the same
// fingerprint produce identical match results.
func (s *Store) Fingerprint() uint64 {
	d := xxhash.New()
	for _, n := range s.names {
		_, _ = d.WriteString(n.Name)
		if n.Hidden {
			_, _ = d.Write([]byte{0, 1})
		} else {
			_, _ = d.Write([]byte{0, 0})
		}
	}
	return d.Sum64()
}

// Merge replaces the store content with scanned names. Hidden flags carry
// over by exact name; names not seen before start visible.
func (s *Store) Merge(scanned []string) *Store {
	merged := make([]types.ComponentName, 0, len(scanned))
	for _, name := range scanned {
		if name == "" {
			continue
		}
		merged = append(merged, types.ComponentName{Name: name, Hidden: s.IsHidden(name)})
	}
	out := New(merged)
	out.source = s.source
	return out
}

// withHidden returns a copy with the given hidden flags applied.
func (s *Store) withHidden(flags map[string]bool) *Store {
	names := s.All()
	for i := range names {
		if hidden, ok := flags[names[i].Name]; ok {
			names[i].Hidden = hidden
		}
	}
	out := New(names)
	out.source = s.source
	return out
}
