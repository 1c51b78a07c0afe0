package watch

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/standardbeagle/pnpmatch/internal/config"
	"github.com/standardbeagle/pnpmatch/internal/testhelpers"
)

func TestEventDebouncer_CollapsesBurst(t *testing.T) {
	got := make(chan Change, 4)
	d := newEventDebouncer(20*time.Millisecond, func(c Change) { got <- c })

	d.add("/db/components_2.txt", ChangeStore)
	d.add("/work/board.csv", ChangeSource)
	d.add("/db/components_2.txt", ChangeStore)

	select {
	case c := <-got:
		assert.Equal(t, ChangeStore|ChangeSource, c.Kind)
		assert.Equal(t, []string{"/db/components_2.txt", "/work/board.csv"}, c.Paths)
	case <-time.After(2 * time.Second):
		t.Fatal("debouncer never flushed")
	}

	select {
	case c := <-got:
		t.Fatalf("unexpected second flush: %+v", c)
	case <-time.After(60 * time.Millisecond):
	}
}

func TestEventDebouncer_StopDropsPending(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	d := newEventDebouncer(10*time.Millisecond, func(Change) {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	d.add("/x", ChangeSource)
	d.stop()
	d.add("/y", ChangeSource)
	time.Sleep(40 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, calls)
}

func TestChangeKindString(t *testing.T) {
	assert.Equal(t, "store", ChangeStore.String())
	assert.Equal(t, "source", ChangeSource.String())
	assert.Equal(t, "store+source", (ChangeStore | ChangeSource).String())
}

func newTestWatcher(t *testing.T, onChange func(Change)) (*Watcher, string, string) {
	t.Helper()
	dbDir := t.TempDir()
	workDir := t.TempDir()
	source := filepath.Join(workDir, "board.csv")
	require.NoError(t, os.WriteFile(source, []byte("R1,0603_R,10k\n"), 0644))

	cfg := config.Default(workDir)
	cfg.Store.Dir = dbDir
	cfg.Watch.DebounceMs = 20

	w, err := New(cfg, source, onChange)
	require.NoError(t, err)
	return w, dbDir, source
}

func TestClassify(t *testing.T) {
	w, dbDir, source := newTestWatcher(t, nil)
	defer w.Stop()

	assert.Equal(t, ChangeSource, w.classify(source))
	assert.Equal(t, ChangeStore, w.classify(filepath.Join(dbDir, "components_20240101-000000.txt")))
	assert.Zero(t, w.classify(filepath.Join(dbDir, "notes.txt")))
	assert.Zero(t, w.classify(filepath.Join(filepath.Dir(source), "other.csv")))
}

func TestWatcher_DetectsChanges(t *testing.T) {
	defer goleak.VerifyNone(t)

	changes := make(chan Change, 8)
	w, dbDir, source := newTestWatcher(t, func(c Change) { changes <- c })
	require.NoError(t, w.Start())

	require.NoError(t, os.WriteFile(filepath.Join(dbDir, "components_20240101-000000.txt"), []byte("a\t\n"), 0644))
	waitFor(t, changes, ChangeStore)

	require.NoError(t, os.WriteFile(source, []byte("R1,0805_R,10k\n"), 0644))
	waitFor(t, changes, ChangeSource)
	testhelpers.WaitFor(t, func() bool { return w.GetStats().ChangesEmitted >= 2 }, time.Second)

	require.NoError(t, w.Stop())
	stats := w.GetStats()
	assert.False(t, stats.IsActive)
	assert.GreaterOrEqual(t, stats.ChangesEmitted, int64(2))
}

func TestWatcher_Disabled(t *testing.T) {
	defer testhelpers.AssertNoLeaks(t)

	w, _, _ := newTestWatcher(t, nil)
	w.enabled = false
	require.NoError(t, w.Start())
	assert.False(t, w.GetStats().IsActive)
	require.NoError(t, w.Stop())
}

func waitFor(t *testing.T, changes <-chan Change, kind ChangeKind) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case c := <-changes:
			if c.Kind&kind != 0 {
				return
			}
		case <-deadline:
			t.Fatalf("no %v change observed", kind)
		}
	}
}
