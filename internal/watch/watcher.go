// Package watch re-runs matching when the component database or the PnP
// file changes on disk.
package watch

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/standardbeagle/pnpmatch/internal/config"
	"github.com/standardbeagle/pnpmatch/internal/debug"
)

// ChangeKind says what changed. Values combine as a bit set.
type ChangeKind int

const (
	ChangeStore  ChangeKind = 1 << iota // a component database file
	ChangeSource                        // the PnP file being matched
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeStore:
		return "store"
	case ChangeSource:
		return "source"
	case ChangeStore | ChangeSource:
		return "store+source"
	default:
		return fmt.Sprintf("ChangeKind(%d)", int(k))
	}
}

// Change is one debounced group of file events.
type Change struct {
	Kind  ChangeKind
	Paths []string // sorted
}

// Watcher monitors the database directory and the PnP file. Directories are
// watched rather than files so editors that save by rename are still seen.
type Watcher struct {
	watcher      *fsnotify.Watcher
	storeDir     string
	storePattern string
	source       string
	enabled      bool

	debouncer *eventDebouncer
	onChange  func(Change)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Watch mode statistics
	eventsProcessed int64
	changesEmitted  int64
	errorCount      int64
	lastEventTime   time.Time
	statsMu         sync.RWMutex
}

// New creates a watcher for cfg's database directory and the PnP file at
// source (may be empty). onChange runs on the debouncer's goroutine.
func New(cfg *config.Config, source string, onChange func(Change)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	storeDir, err := filepath.Abs(cfg.Store.Dir)
	if err != nil {
		fsw.Close()
		return nil, err
	}
	if source != "" {
		if source, err = filepath.Abs(source); err != nil {
			fsw.Close()
			return nil, err
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		watcher:      fsw,
		storeDir:     storeDir,
		storePattern: cfg.Store.Pattern,
		source:       source,
		enabled:      cfg.Watch.Enabled,
		onChange:     onChange,
		ctx:          ctx,
		cancel:       cancel,
	}
	w.debouncer = newEventDebouncer(time.Duration(cfg.Watch.DebounceMs)*time.Millisecond, w.emit)
	return w, nil
}

// Start adds the watches and begins processing events.
func (w *Watcher) Start() error {
	if !w.enabled {
		log.Printf("File watching disabled in configuration")
		return nil
	}

	dirs := []string{w.storeDir}
	if w.source != "" && filepath.Dir(w.source) != w.storeDir {
		dirs = append(dirs, filepath.Dir(w.source))
	}
	for _, dir := range dirs {
		if err := w.watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		debug.LogWatch("watching %s\n", dir)
	}

	w.wg.Add(1)
	go w.processEvents()
	return nil
}

// Stop stops the watcher. Pending events are dropped.
func (w *Watcher) Stop() error {
	w.cancel()
	w.debouncer.stop()

	if err := w.watcher.Close(); err != nil {
		log.Printf("Error closing fsnotify watcher: %v", err)
	}
	w.wg.Wait()
	return nil
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("File watcher error: %v", err)
			w.incrementStats(0, 0, 1)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
		return
	}
	kind := w.classify(event.Name)
	if kind == 0 {
		return
	}
	debug.LogWatch("event %v on %s (%v)\n", event.Op, event.Name, kind)
	w.incrementStats(1, 0, 0)
	w.debouncer.add(event.Name, kind)
}

// classify maps a path to the kind of change it represents, or 0.
func (w *Watcher) classify(path string) ChangeKind {
	var kind ChangeKind
	if w.source != "" && path == w.source {
		kind |= ChangeSource
	}
	if filepath.Dir(path) == w.storeDir {
		if ok, _ := doublestar.Match(w.storePattern, filepath.Base(path)); ok {
			kind |= ChangeStore
		}
	}
	return kind
}

func (w *Watcher) emit(c Change) {
	if w.ctx.Err() != nil {
		return
	}
	log.Printf("Detected %s change (%d files)", c.Kind, len(c.Paths))
	w.incrementStats(0, 1, 0)
	if w.onChange != nil {
		w.onChange(c)
	}
}

func (w *Watcher) incrementStats(events, changes, errors int64) {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()

	w.eventsProcessed += events
	w.changesEmitted += changes
	w.errorCount += errors
	if events > 0 {
		w.lastEventTime = time.Now()
	}
}

// Stats contains statistics about watch operations
type Stats struct {
	EventsProcessed int64
	ChangesEmitted  int64
	ErrorCount      int64
	LastEventTime   time.Time
	IsActive        bool
}

// GetStats returns current watch statistics
func (w *Watcher) GetStats() Stats {
	w.statsMu.RLock()
	defer w.statsMu.RUnlock()

	return Stats{
		EventsProcessed: w.eventsProcessed,
		ChangesEmitted:  w.changesEmitted,
		ErrorCount:      w.errorCount,
		LastEventTime:   w.lastEventTime,
		IsActive:        w.enabled && w.ctx.Err() == nil,
	}
}

// eventDebouncer collapses bursts of events into a single Change.
type eventDebouncer struct {
	mu       sync.Mutex
	paths    map[string]ChangeKind
	debounce time.Duration
	timer    *time.Timer
	stopped  bool
	flushFn  func(Change)
}

func newEventDebouncer(debounce time.Duration, flush func(Change)) *eventDebouncer {
	if debounce <= 0 {
		debounce = 300 * time.Millisecond
	}
	return &eventDebouncer{
		paths:    make(map[string]ChangeKind),
		debounce: debounce,
		flushFn:  flush,
	}
}

func (d *eventDebouncer) add(path string, kind ChangeKind) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}

	d.paths[path] |= kind
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.debounce, d.flush)
}

func (d *eventDebouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.paths = make(map[string]ChangeKind)
}

func (d *eventDebouncer) flush() {
	d.mu.Lock()
	paths := d.paths
	d.paths = make(map[string]ChangeKind)
	stopped := d.stopped
	d.mu.Unlock()

	if stopped || len(paths) == 0 {
		return
	}

	c := Change{Paths: make([]string, 0, len(paths))}
	for p, kind := range paths {
		c.Kind |= kind
		c.Paths = append(c.Paths, p)
	}
	sort.Strings(c.Paths)
	d.flushFn(c)
}
