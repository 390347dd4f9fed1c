package sessionstore

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_RoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	cookies, err := store.Load("http://localhost:4000")
	require.NoError(t, err)
	assert.Empty(t, cookies)

	require.NoError(t, store.Save("http://localhost:4000", []*http.Cookie{
		{Name: "panelhost_session", Value: "gate-1"},
		{Name: "panelhost_session_token", Value: "tok"},
	}))
	require.NoError(t, store.Save("https://panels.example.com", []*http.Cookie{{Name: "panelhost_session", Value: "gate-2"}}))

	cookies, err = store.Load("http://localhost:4000")
	require.NoError(t, err)
	require.Len(t, cookies, 2)
	assert.Equal(t, "gate-1", cookies[0].Value)
	assert.Equal(t, "/", cookies[0].Path)

	info, err := os.Stat(filepath.Join(dir, sessionsFile))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	// Saving nothing forgets only that server.
	require.NoError(t, store.Save("http://localhost:4000", nil))
	cookies, err = store.Load("http://localhost:4000")
	require.NoError(t, err)
	assert.Empty(t, cookies)
	cookies, err = store.Load("https://panels.example.com")
	require.NoError(t, err)
	assert.Len(t, cookies, 1)
}

func TestFileStore_Corrupt(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, sessionsFile), []byte("{nope"), 0o600))
	store, err := NewFileStore(dir)
	require.NoError(t, err)
	_, err = store.Load("http://localhost:4000")
	assert.Error(t, err)
}
