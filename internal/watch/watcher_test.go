package watch

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingEvicter struct {
	mu   sync.Mutex
	urls []string
}

func (e *recordingEvicter) Evict(url string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.urls = append(e.urls, url)
}

func (e *recordingEvicter) evicted() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.urls...)
}

func TestPanelFromFile(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"/dist/home-module.js", "home"},
		{"admin-tools-module.js", "admin-tools"},
		{"/dist/home-module.js.map", ""},
		{"/dist/-module.js", ""},
		{"/dist/.home-module.js", ""},
		{"/dist/index.html", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PanelFromFile(tt.name))
		})
	}
}

func waitChange(t *testing.T, w *Watcher) Change {
	t.Helper()
	select {
	case c := <-w.Changes:
		return c
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for change")
		return Change{}
	}
}

func TestWatcher_EvictsChangedBuild(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "home-module.js")
	require.NoError(t, os.WriteFile(file, []byte("export default 1\n"), 0o644))

	ev := &recordingEvicter{}
	w, err := NewWatcher(dir, ev, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))
	require.NoError(t, os.WriteFile(file, []byte("export default 2\n"), 0o644))

	c := waitChange(t, w)
	assert.Equal(t, "home", c.Panel)
	assert.Equal(t, ChangeModified, c.Kind)
	assert.Contains(t, ev.evicted(), "local:home-module.js")

	require.NoError(t, os.Remove(file))
	c = waitChange(t, w)
	assert.Equal(t, ChangeRemoved, c.Kind)
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w, err := NewWatcher(t.TempDir(), &recordingEvicter{}, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	w.Stop()
	w.Stop()

	_, open := <-w.Changes
	assert.False(t, open)
}

func TestWatcher_StartFailureReleasesWatcher(t *testing.T) {
	w, err := NewWatcher(filepath.Join(t.TempDir(), "missing"), &recordingEvicter{}, nil)
	require.NoError(t, err)
	require.Error(t, w.Start())

	_, open := <-w.Changes
	assert.False(t, open)

	stopped := make(chan struct{})
	go func() {
		w.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked after a failed Start")
	}
}
