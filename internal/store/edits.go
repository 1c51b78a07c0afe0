package store

import (
	"sort"
	"sync"
)

// EditBuffer collects hidden-flag changes made while a batch may be running.
// Nothing in it is visible to a Store until Flush produces a new one, which
// callers do when saving the database.
type EditBuffer struct {
	mu      sync.Mutex
	pending map[string]bool
}

// NewEditBuffer creates an empty edit buffer
func NewEditBuffer() *EditBuffer {
	return &EditBuffer{pending: make(map[string]bool)}
}

// SetHidden queues a hidden-flag change. A later call for the same name wins.
func (b *EditBuffer) SetHidden(name string, hidden bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending[name] = hidden
}

// Len returns the number of queued edits.
func (b *EditBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Flush applies and clears the queued edits, returning the new store and the
// sorted names that were not present in s (those edits are dropped).
func (b *EditBuffer) Flush(s *Store) (*Store, []string) {
	b.mu.Lock()
	pending := b.pending
	b.pending = make(map[string]bool)
	b.mu.Unlock()

	var unknown []string
	for name := range pending {
		if !s.Contains(name) {
			unknown = append(unknown, name)
			delete(pending, name)
		}
	}
	sort.Strings(unknown)

	if len(pending) == 0 {
		return s, unknown
	}
	return s.withHidden(pending), unknown
}
