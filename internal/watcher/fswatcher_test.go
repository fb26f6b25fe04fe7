package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWatcher(t *testing.T, opts Options) (*FSWatcher, string) {
	t.Helper()
	root := t.TempDir()
	w := New(opts)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		_ = w.Stop()
	})
	go func() { _ = w.Start(ctx, root) }()
	time.Sleep(150 * time.Millisecond)
	return w, root
}

func waitFor(t *testing.T, w *FSWatcher, path string) FileEvent {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case batch, ok := <-w.Events():
			require.True(t, ok, "events channel closed")
			for _, ev := range batch {
				if ev.Path == path {
					return ev
				}
			}
		case <-deadline:
			t.Fatalf("no event for %s", path)
		}
	}
}

func TestFSWatcher_ReportsNewFile(t *testing.T) {
	// Given: a running watcher
	w, root := startWatcher(t, Options{DebounceWindow: 20 * time.Millisecond})

	// When: a document is written
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.md"), []byte("# A"), 0o644))

	// Then: a create batch arrives with a relative path
	ev := waitFor(t, w, "a.md")
	assert.Equal(t, OpCreate, ev.Operation)
	assert.False(t, ev.IsDir)
}

func TestFSWatcher_WatchesNewSubdirectories(t *testing.T) {
	w, root := startWatcher(t, Options{DebounceWindow: 20 * time.Millisecond})

	require.NoError(t, os.Mkdir(filepath.Join(root, "notes"), 0o755))
	dir := waitFor(t, w, "notes")
	assert.True(t, dir.IsDir)

	require.NoError(t, os.WriteFile(filepath.Join(root, "notes", "b.md"), []byte("b"), 0o644))
	waitFor(t, w, "notes/b.md")
}

func TestFSWatcher_IgnoreFuncDropsEvents(t *testing.T) {
	w, root := startWatcher(t, Options{
		DebounceWindow: 20 * time.Millisecond,
		Ignore:         func(rel string, _ bool) bool { return filepath.Ext(rel) == ".tmp" },
	})

	require.NoError(t, os.WriteFile(filepath.Join(root, "scratch.tmp"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "keep.md"), []byte("x"), 0o644))

	ev := waitFor(t, w, "keep.md")
	assert.Equal(t, "keep.md", ev.Path)
}

func TestFSWatcher_PollingMode(t *testing.T) {
	// Given: a watcher forced into polling with a short interval
	w, root := startWatcher(t, Options{
		DebounceWindow: 10 * time.Millisecond,
		PollInterval:   30 * time.Millisecond,
		ForcePolling:   true,
	})
	assert.Equal(t, "polling", w.Mode())

	// When
	require.NoError(t, os.WriteFile(filepath.Join(root, "p.md"), []byte("p"), 0o644))

	// Then
	ev := waitFor(t, w, "p.md")
	assert.Equal(t, OpCreate, ev.Operation)
}

func TestFSWatcher_StopIsIdempotent(t *testing.T) {
	w := New(DefaultOptions())

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())

	_, ok := <-w.Events()
	assert.False(t, ok)
	_, ok = <-w.Errors()
	assert.False(t, ok)
}

func TestOptions_WithDefaults(t *testing.T) {
	opts := Options{DebounceWindow: time.Second}.WithDefaults()

	assert.Equal(t, time.Second, opts.DebounceWindow)
	assert.Equal(t, 5*time.Second, opts.PollInterval)
	assert.Equal(t, 100, opts.EventBufferSize)
	assert.Equal(t, "DELETE", OpDelete.String())
	assert.Equal(t, "UNKNOWN", Operation(42).String())
}
