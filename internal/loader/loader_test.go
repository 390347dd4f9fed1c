package loader

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const homeURL = "https://x/home-module.js"

// blockingFetcher counts calls and holds every fetch until release is closed.
type blockingFetcher struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
	err     error
	once    sync.Once
}

func newBlockingFetcher() *blockingFetcher {
	return &blockingFetcher{started: make(chan struct{}), release: make(chan struct{})}
}

func (f *blockingFetcher) Fetch(ctx context.Context, url string) (*Module, error) {
	f.calls.Add(1)
	f.once.Do(func() { close(f.started) })
	select {
	case <-f.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return NewModule(url, []byte("export default function Panel() {}")), nil
}

func newTestLoader(t *testing.T, f Fetcher, timeout time.Duration) *Loader {
	t.Helper()
	l, err := New(Options{Fetcher: f, Timeout: timeout})
	require.NoError(t, err)
	return l
}

func TestLoad_ConcurrentCallersShareOneFetch(t *testing.T) {
	f := newBlockingFetcher()
	l := newTestLoader(t, f, time.Second)

	const callers = 16
	var wg sync.WaitGroup
	mods := make([]*Module, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			mods[i], errs[i] = l.Load(context.Background(), homeURL)
		}(i)
	}

	<-f.started
	close(f.release)
	wg.Wait()

	assert.Equal(t, int32(1), f.calls.Load(), "exactly one fetch per URL")
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, mods[0], mods[i])
	}
	assert.Equal(t, StateReady, l.State(homeURL))
	assert.Equal(t, 0, l.InFlight())
}

func TestLoad_ConcurrentCallersShareFailure(t *testing.T) {
	f := newBlockingFetcher()
	f.err = errors.New("connection refused")
	l := newTestLoader(t, f, time.Second)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = l.Load(context.Background(), homeURL)
		}(i)
	}
	<-f.started
	close(f.release)
	wg.Wait()

	assert.Equal(t, int32(1), f.calls.Load())
	for _, err := range errs {
		require.Error(t, err)
		assert.Same(t, errs[0], err)
	}
}

func TestLoad_FailureEvictsAndRetryFetchesAgain(t *testing.T) {
	var calls atomic.Int32
	fetcher := FetcherFunc(func(ctx context.Context, url string) (*Module, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("503 from cdn")
		}
		return NewModule(url, []byte("export const Home = 1")), nil
	})
	l := newTestLoader(t, fetcher, time.Second)

	_, err := l.Load(context.Background(), homeURL)
	require.Error(t, err)

	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, homeURL, loadErr.URL)
	assert.Contains(t, err.Error(), homeURL)
	assert.Contains(t, err.Error(), "503 from cdn")
	assert.Equal(t, StateAbsent, l.State(homeURL), "failed entry must be evicted")

	mod, err := l.Load(context.Background(), homeURL)
	require.NoError(t, err)
	assert.Equal(t, []string{"Home"}, mod.Exports)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 0, l.InFlight())
}

func TestLoad_Timeout(t *testing.T) {
	assert.Equal(t, 30*time.Second, DefaultTimeout)

	f := newBlockingFetcher()
	l := newTestLoader(t, f, 50*time.Millisecond)

	_, err := l.Load(context.Background(), homeURL)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLoadTimeout)
	assert.Contains(t, err.Error(), homeURL)
	assert.Equal(t, StateAbsent, l.State(homeURL))
	assert.Equal(t, 0, l.Len())
	assert.Equal(t, 0, l.InFlight())
}

func TestLoad_TimeoutWithFetcherIgnoringContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	fetcher := FetcherFunc(func(ctx context.Context, url string) (*Module, error) {
		<-release
		return nil, nil
	})
	l := newTestLoader(t, fetcher, 20*time.Millisecond)

	_, err := l.Load(context.Background(), homeURL)
	assert.ErrorIs(t, err, ErrLoadTimeout)
	assert.Equal(t, StateAbsent, l.State(homeURL))
}

func TestLoad_CallerCancellationDoesNotAbortSharedFetch(t *testing.T) {
	f := newBlockingFetcher()
	l := newTestLoader(t, f, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := l.Load(ctx, homeURL)
		done <- err
	}()
	<-f.started
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, StatePending, l.State(homeURL))

	close(f.release)
	mod, err := l.Load(context.Background(), homeURL)
	require.NoError(t, err)
	assert.True(t, mod.HasExport("default"))
	assert.Equal(t, int32(1), f.calls.Load())
}

func TestEvict_StartsNewGeneration(t *testing.T) {
	f := newBlockingFetcher()
	l := newTestLoader(t, f, time.Second)

	done := make(chan error, 1)
	go func() {
		_, err := l.Load(context.Background(), homeURL)
		done <- err
	}()
	<-f.started

	l.Evict(homeURL)
	assert.Equal(t, StateAbsent, l.State(homeURL))

	close(f.release)
	require.NoError(t, <-done, "current waiters still receive the old result")
	assert.Equal(t, StateAbsent, l.State(homeURL), "old generation must not repopulate the cache")

	_, err := l.Load(context.Background(), homeURL)
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.calls.Load())
}

func TestEvictAll(t *testing.T) {
	fetcher := FetcherFunc(func(ctx context.Context, url string) (*Module, error) {
		return NewModule(url, []byte("export default 1")), nil
	})
	l := newTestLoader(t, fetcher, time.Second)

	require.NoError(t, l.Preload(context.Background(), "https://a/home-module.js", "https://b/admin-module.js"))
	assert.Equal(t, 2, l.Len())

	l.Evict("")
	assert.Equal(t, 0, l.Len())
}

func TestPoll(t *testing.T) {
	f := newBlockingFetcher()
	l := newTestLoader(t, f, time.Second)

	res := l.Poll(context.Background(), homeURL, 0)
	assert.Equal(t, StatePending, res.State)

	res = l.Poll(context.Background(), homeURL, 10*time.Millisecond)
	assert.Equal(t, StatePending, res.State)

	close(f.release)
	res = l.Poll(context.Background(), homeURL, time.Second)
	require.Equal(t, StateReady, res.State)
	assert.NotNil(t, res.Module)

	failing := newTestLoader(t, FetcherFunc(func(ctx context.Context, url string) (*Module, error) {
		return nil, errors.New("boom")
	}), time.Second)
	res = failing.Poll(context.Background(), homeURL, time.Second)
	assert.Equal(t, StateFailed, res.State)
	assert.Error(t, res.Err)
	assert.Equal(t, "failed", res.State.String())
}

func TestHTTPFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/home-module.js":
			w.Header().Set("Content-Type", "text/javascript")
			w.Header().Set("ETag", `"v1"`)
			_, _ = w.Write([]byte("export default function Home() {}\nexport const meta = {}\n"))
		case "/spa-module.js":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte("<!doctype html><html></html>"))
		case "/empty-module.js":
			w.Header().Set("Content-Type", "text/javascript")
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewHTTPFetcher(srv.Client())

	tests := []struct {
		name    string
		path    string
		wantErr error
		errText string
	}{
		{name: "module", path: "/home-module.js"},
		{name: "html fallback", path: "/spa-module.js", wantErr: ErrNotModule},
		{name: "empty body", path: "/empty-module.js", wantErr: ErrEmptyModule},
		{name: "not found", path: "/missing-module.js", errText: "unexpected status 404"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mod, err := f.Fetch(context.Background(), srv.URL+tt.path)
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.errText != "":
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errText)
			default:
				require.NoError(t, err)
				assert.Equal(t, []string{"default", "meta"}, mod.Exports)
				assert.Equal(t, `"v1"`, mod.ETag)
				assert.Equal(t, "text/javascript", mod.ContentType)
			}
		})
	}
}

func TestHTTPFetcher_SizeLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("export default 'a very long module body'"))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(srv.Client())
	f.MaxBytes = 8
	_, err := f.Fetch(context.Background(), srv.URL+"/big-module.js")
	assert.ErrorIs(t, err, ErrModuleTooLarge)
}

func TestScanExports(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   []string
	}{
		{name: "default function", source: "export default function App() {}", want: []string{"default"}},
		{name: "named only", source: "export const Panel = () => null;\nexport function helper() {}", want: []string{"Panel", "helper"}},
		{name: "async and generator", source: "export async function load() {}\nexport function* gen() {}", want: []string{"load", "gen"}},
		{name: "export clause", source: "const a = 1, b = 2;\nexport { a, b as Beta };", want: []string{"a", "Beta"}},
		{name: "clause default", source: "function P() {}\nexport { P as default };", want: []string{"default"}},
		{name: "class then default", source: "export class Widget {}\nexport default Widget;", want: []string{"Widget", "default"}},
		{name: "duplicates collapse", source: "export { x };\nexport { x };", want: []string{"x"}},
		{name: "none", source: "console.log('side effect only')", want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ScanExports([]byte(tt.source)))
		})
	}
}
