// Package matcher resolves a PnP row's footprint and comment to canonical
// component names.
//
// Matching runs in four stages, stopping at the first that produces
// something:
//
//  1. exact: footprint + "_" + comment is a visible name
//  2. filtered: glob filter on "<prefix> <comment>", where prefix is the
//     first "_" token of the footprint, replaced by a package size code when
//     it contains one
//  3. comment only: glob filter on the comment
//  4. no match: every visible name is offered
//
// A Matcher holds no mutable state and is safe for concurrent use.
package matcher

import (
	"strings"

	"github.com/standardbeagle/pnpmatch/internal/debug"
	"github.com/standardbeagle/pnpmatch/internal/store"
	"github.com/standardbeagle/pnpmatch/internal/types"
)

// DefaultSizeCodes are the standard chip package codes in priority order.
// When a footprint token contains more than one, the first listed wins.
var DefaultSizeCodes = []string{"0402", "0603", "0805", "1206", "1210", "2512"}

// Matcher implements the staged matching algorithm.
type Matcher struct {
	sizeCodes []string
}

// New creates a matcher that substitutes the given size codes, checked in
// order. An empty list selects DefaultSizeCodes.
func New(sizeCodes []string) *Matcher {
	if len(sizeCodes) == 0 {
		sizeCodes = DefaultSizeCodes
	}
	return &Matcher{sizeCodes: append([]string(nil), sizeCodes...)}
}

// SizeCodes returns the size codes in priority order.
func (m *Matcher) SizeCodes() []string {
	return append([]string(nil), m.sizeCodes...)
}

// Prefix returns the footprint prefix used by the filtered stage.
func (m *Matcher) Prefix(footprint string) string {
	prefix, _, _ := strings.Cut(footprint, "_")
	if prefix == "" {
		return ""
	}
	for _, code := range m.sizeCodes {
		if strings.Contains(prefix, code) {
			return code
		}
	}
	return prefix
}

// Match resolves one footprint/comment pair against snap.
func (m *Matcher) Match(footprint, comment string, snap *store.Snapshot) types.Result {
	expected := footprint + "_" + comment
	if snap.Contains(expected) {
		return types.Result{
			Classification: types.ClassAutoExact,
			Selection:      expected,
		}
	}

	filter := m.Prefix(footprint) + " " + comment
	if candidates := snap.Filtered(filter); len(candidates) > 0 {
		return filtered(filter, candidates)
	}

	if candidates := snap.Filtered(comment); len(candidates) > 0 {
		return filtered(comment, candidates)
	}

	debug.LogMatch("no match for %q / %q\n", footprint, comment)
	return NoMatch(snap)
}

// NoMatch is the result offered when nothing matched: every visible name,
// sorted, with an empty selection.
func NoMatch(snap *store.Snapshot) types.Result {
	return types.Result{
		Classification: types.ClassNoMatch,
		Candidates:     append([]string(nil), snap.VisibleNames()...),
	}
}

// filtered builds a FILTERED result. The selection is the lower-cased filter
// text, which seeds the search box rather than naming a component.
func filtered(filter string, candidates []string) types.Result {
	return types.Result{
		Classification: types.ClassFiltered,
		Selection:      strings.ToLower(filter),
		Candidates:     candidates,
	}
}
