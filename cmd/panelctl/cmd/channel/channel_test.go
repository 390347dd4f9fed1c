package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/report-zone/mfe-demo-sub000/cmd/panelctl/internal/client"
	"github.com/report-zone/mfe-demo-sub000/cmd/panelctl/internal/config"
)

// fakeHost serves the store and shared endpoints from memory.
type fakeHost struct {
	mu     sync.Mutex
	store  map[string]string
	shared map[string]json.RawMessage
}

func newFakeHost(t *testing.T) *httptest.Server {
	t.Helper()
	h := &fakeHost{store: map[string]string{}, shared: map[string]json.RawMessage{}}

	r := chi.NewRouter()
	r.Get("/api/store/{key}", func(w http.ResponseWriter, r *http.Request) {
		h.mu.Lock()
		defer h.mu.Unlock()
		key := chi.URLParam(r, "key")
		v, ok := h.store[key]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "key not found", "code": "not_found"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"key": key, "value": v})
	})
	r.Put("/api/store/{key}", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Value string `json:"value"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		h.mu.Lock()
		h.store[chi.URLParam(r, "key")] = body.Value
		h.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	r.Delete("/api/store/{key}", func(w http.ResponseWriter, r *http.Request) {
		h.mu.Lock()
		delete(h.store, chi.URLParam(r, "key"))
		h.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	r.Get("/api/shared", func(w http.ResponseWriter, r *http.Request) {
		h.mu.Lock()
		defer h.mu.Unlock()
		_ = json.NewEncoder(w).Encode(h.shared)
	})
	r.Put("/api/shared/{key}", func(w http.ResponseWriter, r *http.Request) {
		var v json.RawMessage
		_ = json.NewDecoder(r.Body).Decode(&v)
		h.mu.Lock()
		h.shared[chi.URLParam(r, "key")] = v
		h.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func run(t *testing.T, root *cobra.Command, serverURL string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	ctx := config.InjectConfig(context.Background(), &config.GlobalConfig{
		ServerURL:      serverURL,
		NonInteractive: true,
		ClientProvider: client.NewProvider(serverURL, t.TempDir()),
	})
	err := root.ExecuteContext(ctx)
	return out.String(), err
}

func TestStoreCommands(t *testing.T) {
	srv := newFakeHost(t)

	_, err := run(t, StoreCmd, srv.URL, "set", "greeting", "hello")
	require.NoError(t, err)

	out, err := run(t, StoreCmd, srv.URL, "get", "greeting")
	require.NoError(t, err)
	assert.Equal(t, "hello", strings.TrimSpace(out))

	_, err = run(t, StoreCmd, srv.URL, "rm", "greeting")
	require.NoError(t, err)

	_, err = run(t, StoreCmd, srv.URL, "get", "greeting")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `key "greeting" is not set`)
}

func TestSharedCommands(t *testing.T) {
	srv := newFakeHost(t)

	_, err := run(t, SharedCmd, srv.URL, "set", "cart", "not json")
	require.Error(t, err, "values must be JSON")

	_, err = run(t, SharedCmd, srv.URL, "set", "cart", `{"items":2}`)
	require.NoError(t, err)

	out, err := run(t, SharedCmd, srv.URL, "list")
	require.NoError(t, err)
	var snapshot map[string]map[string]int
	require.NoError(t, json.Unmarshal([]byte(out), &snapshot))
	assert.Equal(t, 2, snapshot["cart"]["items"])
}
