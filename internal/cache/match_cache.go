// Package cache memoizes match results for one batch run.
package cache

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/standardbeagle/pnpmatch/internal/debug"
	"github.com/standardbeagle/pnpmatch/internal/store"
	"github.com/standardbeagle/pnpmatch/internal/types"
)

// Matcher computes a result on a cache miss.
type Matcher interface {
	Match(footprint, comment string, snap *store.Snapshot) types.Result
}

// Key identifies a cache entry. Both fields are kept separately so that
// ("a_b", "c") and ("a", "b_c") never collide.
type Key struct {
	Footprint string
	Comment   string
}

// entry is one cached result. done is closed once result is set, or once the
// computation panicked (ok stays false and the entry is removed).
type entry struct {
	done   chan struct{}
	result types.Result
	ok     bool
}

// MatchCache maps (footprint, comment) pairs to match results. Concurrent
// misses on the same key run the matcher once; the other callers wait.
//
// Results handed out share their Candidates slice with the cache and must be
// treated as read-only.
type MatchCache struct {
	mu          sync.Mutex
	entries     map[Key]*entry
	fingerprint uint64
	bound       bool

	// Atomic counters
	hits     int64
	misses   int64
	computes int64
	resets   int64

	createdAt time.Time
}

// CacheStats holds cache statistics
type CacheStats struct {
	Entries     int
	Hits        int64
	Misses      int64
	Computes    int64
	Resets      int64
	HitRate     float64
	Fingerprint uint64
	Bound       bool
	CreatedAt   time.Time
}

// New creates an empty, unbound cache.
func New() *MatchCache {
	return &MatchCache{
		entries:   make(map[Key]*entry),
		createdAt: time.Now(),
	}
}

// GetOrCompute returns the cached result for the pair, running m against
// snap only when no result exists yet.
func (c *MatchCache) GetOrCompute(footprint, comment string, snap *store.Snapshot, m Matcher) types.Result {
	key := Key{Footprint: footprint, Comment: comment}
	for {
		c.mu.Lock()
		if e, ok := c.entries[key]; ok {
			c.mu.Unlock()
			<-e.done
			if !e.ok {
				// the computing caller panicked; try again
				continue
			}
			atomic.AddInt64(&c.hits, 1)
			return e.result
		}
		e := &entry{done: make(chan struct{})}
		c.entries[key] = e
		c.mu.Unlock()

		atomic.AddInt64(&c.misses, 1)
		return c.compute(key, e, snap, m)
	}
}

func (c *MatchCache) compute(key Key, e *entry, snap *store.Snapshot, m Matcher) types.Result {
	defer func() {
		if !e.ok {
			c.mu.Lock()
			if c.entries[key] == e {
				delete(c.entries, key)
			}
			c.mu.Unlock()
		}
		close(e.done)
	}()

	result := m.Match(key.Footprint, key.Comment, snap)
	atomic.AddInt64(&c.computes, 1)
	e.result = result
	e.ok = true
	return result
}

// Lookup returns a completed entry without computing anything.
func (c *MatchCache) Lookup(footprint, comment string) (types.Result, bool) {
	c.mu.Lock()
	e, ok := c.entries[Key{Footprint: footprint, Comment: comment}]
	c.mu.Unlock()
	if !ok {
		return types.Result{}, false
	}
	select {
	case <-e.done:
		return e.result, e.ok
	default:
		return types.Result{}, false
	}
}

// Bind ties the cache to a store fingerprint. Binding to a different
// fingerprint than before discards every entry; it reports whether that
// happened.
func (c *MatchCache) Bind(fingerprint uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	reset := c.bound && c.fingerprint != fingerprint
	if reset {
		debug.LogMatch("store changed (%016x -> %016x), dropping %d cached results\n",
			c.fingerprint, fingerprint, len(c.entries))
		c.entries = make(map[Key]*entry)
		atomic.AddInt64(&c.resets, 1)
	}
	c.fingerprint = fingerprint
	c.bound = true
	return reset
}

// Reset discards all entries and the fingerprint binding. Counters other
// than Resets start again from zero.
func (c *MatchCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[Key]*entry)
	c.bound = false
	c.fingerprint = 0
	atomic.StoreInt64(&c.hits, 0)
	atomic.StoreInt64(&c.misses, 0)
	atomic.StoreInt64(&c.computes, 0)
	atomic.AddInt64(&c.resets, 1)
}

// Merge copies completed entries from other that c does not have yet and
// returns how many were added. A cache bound to a different store is
// ignored.
func (c *MatchCache) Merge(other *MatchCache) int {
	if other == nil || other == c {
		return 0
	}

	c.mu.Lock()
	fingerprint, bound := c.fingerprint, c.bound
	c.mu.Unlock()

	other.mu.Lock()
	if other.bound && bound && other.fingerprint != fingerprint {
		other.mu.Unlock()
		return 0
	}
	done := make(map[Key]*entry, len(other.entries))
	for k, e := range other.entries {
		select {
		case <-e.done:
			if e.ok {
				done[k] = e
			}
		default:
		}
	}
	other.mu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	added := 0
	for k, e := range done {
		if _, exists := c.entries[k]; !exists {
			c.entries[k] = e
			added++
		}
	}
	return added
}

// Len returns the number of entries, including ones still being computed.
func (c *MatchCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns cache statistics
func (c *MatchCache) Stats() CacheStats {
	c.mu.Lock()
	entries := len(c.entries)
	fingerprint, bound := c.fingerprint, c.bound
	c.mu.Unlock()

	hits := atomic.LoadInt64(&c.hits)
	misses := atomic.LoadInt64(&c.misses)
	hitRate := float64(0)
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return CacheStats{
		Entries:     entries,
		Hits:        hits,
		Misses:      misses,
		Computes:    atomic.LoadInt64(&c.computes),
		Resets:      atomic.LoadInt64(&c.resets),
		HitRate:     hitRate,
		Fingerprint: fingerprint,
		Bound:       bound,
		CreatedAt:   c.createdAt,
	}
}
