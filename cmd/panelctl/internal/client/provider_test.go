package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sessionServer hands out a cookie on the first call and echoes it afterwards.
func sessionServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		state := "anonymous"
		if c, err := r.Cookie("panelhost_session"); err == nil && c.Value == "gate-1" {
			state = "restored"
		} else {
			http.SetCookie(w, &http.Cookie{Name: "panelhost_session", Value: "gate-1", Path: "/"})
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"user":null,"is_loading":false,"state":"` + state + `","elevated":false}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestProvider_PersistsSession(t *testing.T) {
	srv := sessionServer(t)
	dir := t.TempDir()
	ctx := context.Background()

	first := NewProvider(srv.URL, dir)
	c, err := first.SDKClient()
	require.NoError(t, err)
	s, err := c.Session(ctx)
	require.NoError(t, err)
	assert.Equal(t, "anonymous", s.State)
	require.NoError(t, first.Persist())

	second := NewProvider(srv.URL, dir)
	c, err = second.SDKClient()
	require.NoError(t, err)
	s, err = c.Session(ctx)
	require.NoError(t, err)
	assert.Equal(t, "restored", s.State)

	second.Forget()
	require.NoError(t, second.Persist())

	third := NewProvider(srv.URL, dir)
	c, err = third.SDKClient()
	require.NoError(t, err)
	s, err = c.Session(ctx)
	require.NoError(t, err)
	assert.Equal(t, "anonymous", s.State)
}

func TestProvider_InvalidServerURL(t *testing.T) {
	_, err := NewProvider("not a url", t.TempDir()).SDKClient()
	assert.Error(t, err)
}

func TestProvider_PersistWithoutClient(t *testing.T) {
	assert.NoError(t, NewProvider("http://localhost:4000", t.TempDir()).Persist())
}
