// Package loader fetches panel modules by URL, exactly once per cache generation.
//
// A Loader keeps one entry per fully-resolved URL. The entry is a shared future
// that is written into the table before the fetch starts, so every concurrent
// caller for the same URL waits on the same attempt and observes the same
// outcome. Successful modules stay cached (bounded by an LRU); failed attempts
// are evicted before their waiters are released, so a retry always starts a
// fresh fetch instead of replaying the stale failure.
package loader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/report-zone/mfe-demo-sub000/internal/telemetry"
)

const (
	// DefaultTimeout bounds a single load attempt.
	DefaultTimeout = 30 * time.Second

	// DefaultCacheSize is the number of resolved modules kept in memory.
	DefaultCacheSize = 256
)

// ErrLoadTimeout is wrapped by LoadError when an attempt exceeds the timeout.
var ErrLoadTimeout = errors.New("module load timed out")

// LoadError reports a failed load attempt for URL.
type LoadError struct {
	URL string
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load module %s: %v", e.URL, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// State is the observable state of a load.
type State int

const (
	// StateAbsent means the URL has no cache entry.
	StateAbsent State = iota
	// StatePending means a fetch is outstanding.
	StatePending
	// StateReady means the module resolved.
	StateReady
	// StateFailed means the attempt was rejected; the entry is already evicted.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "absent"
	}
}

// Result is the three-state outcome of Poll.
type Result struct {
	State  State
	Module *Module
	Err    error
}

// Fetcher performs one fetch of a module. Implementations must honour ctx.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Module, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, url string) (*Module, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, url string) (*Module, error) {
	return f(ctx, url)
}

// Options configures a Loader. The zero value is valid.
type Options struct {
	Fetcher   Fetcher
	Timeout   time.Duration
	CacheSize int
	Metrics   *telemetry.LoaderMetrics
	Logger    *zerolog.Logger
}

// future is a single shared load attempt.
type future struct {
	done chan struct{}
	mod  *Module
	err  error
}

func (f *future) resolved() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Loader is the process-wide module cache.
type Loader struct {
	mu       sync.Mutex
	pending  map[string]*future
	resolved *lru.Cache[string, *Module]

	fetcher  Fetcher
	timeout  time.Duration
	inFlight atomic.Int64
	metrics  *telemetry.LoaderMetrics
	log      zerolog.Logger
}

// New creates a Loader.
func New(opts Options) (*Loader, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultCacheSize
	}
	if opts.Fetcher == nil {
		opts.Fetcher = NewHTTPFetcher(nil)
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	cache, err := lru.New[string, *Module](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create module cache: %w", err)
	}

	return &Loader{
		pending:  make(map[string]*future),
		resolved: cache,
		fetcher:  opts.Fetcher,
		timeout:  opts.Timeout,
		metrics:  opts.Metrics,
		log:      logger,
	}, nil
}

// Load returns the module at url, fetching it at most once per cache generation.
// Cancelling ctx stops the wait but never the shared fetch.
func (l *Loader) Load(ctx context.Context, url string) (*Module, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerLoader, "loader.Load",
		attribute.String(telemetry.AttrModuleURL, url),
	)
	defer span.End()

	f := l.acquire(ctx, url)
	select {
	case <-f.done:
		telemetry.RecordError(span, f.err)
		return f.mod, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Poll starts (or joins) the load of url and waits at most wait for it.
// A load still outstanding after wait is reported as StatePending.
func (l *Loader) Poll(ctx context.Context, url string, wait time.Duration) Result {
	f := l.acquire(ctx, url)
	if wait <= 0 {
		if f.resolved() {
			return resultOf(f)
		}
		return Result{State: StatePending}
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-f.done:
		return resultOf(f)
	case <-timer.C:
		return Result{State: StatePending}
	case <-ctx.Done():
		return Result{State: StatePending, Err: ctx.Err()}
	}
}

func resultOf(f *future) Result {
	if f.err != nil {
		return Result{State: StateFailed, Err: f.err}
	}
	return Result{State: StateReady, Module: f.mod}
}

// Preload loads every url concurrently and returns the first failure.
func (l *Loader) Preload(ctx context.Context, urls ...string) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, u := range urls {
		u := u
		g.Go(func() error {
			_, err := l.Load(gctx, u)
			return err
		})
	}
	return g.Wait()
}

// State reports the cache state of url.
func (l *Loader) State(url string) State {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.pending[url]; ok {
		return StatePending
	}
	if l.resolved.Contains(url) {
		return StateReady
	}
	return StateAbsent
}

// Evict removes the entry for url. An empty url clears every entry.
// A fetch still outstanding for an evicted entry completes for its current
// waiters but never repopulates the cache.
func (l *Loader) Evict(url string) {
	if url == "" {
		l.EvictAll()
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.pending, url)
	l.resolved.Remove(url)
	l.log.Debug().Str("url", url).Msg("module cache entry evicted")
}

// EvictAll clears the whole cache.
func (l *Loader) EvictAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending = make(map[string]*future)
	l.resolved.Purge()
	l.log.Debug().Msg("module cache cleared")
}

// Len returns the number of pending and resolved entries.
func (l *Loader) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending) + l.resolved.Len()
}

// InFlight returns the number of fetch attempts currently holding resources.
func (l *Loader) InFlight() int {
	return int(l.inFlight.Load())
}

// acquire returns the entry for url, creating it (and starting the fetch) if absent.
// The pending entry is stored before the fetch goroutine starts.
func (l *Loader) acquire(ctx context.Context, url string) *future {
	l.mu.Lock()
	defer l.mu.Unlock()

	if mod, ok := l.resolved.Get(url); ok {
		l.metrics.RecordHit(ctx, url)
		f := &future{done: make(chan struct{}), mod: mod}
		close(f.done)
		return f
	}
	if f, ok := l.pending[url]; ok {
		l.metrics.RecordHit(ctx, url)
		return f
	}

	f := &future{done: make(chan struct{})}
	l.pending[url] = f
	go l.run(url, f)
	return f
}

func (l *Loader) run(url string, f *future) {
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()

	mod, err := l.attempt(ctx, url)

	// Settle the table before waking waiters so an immediate retry starts fresh.
	l.mu.Lock()
	if l.pending[url] == f {
		delete(l.pending, url)
		if err == nil {
			l.resolved.Add(url, mod)
		}
	}
	l.mu.Unlock()

	f.mod, f.err = mod, err
	close(f.done)
}

type outcome struct {
	mod *Module
	err error
}

func (l *Loader) attempt(ctx context.Context, url string) (*Module, error) {
	l.inFlight.Add(1)
	l.metrics.FetchStarted(ctx)
	defer func() {
		l.inFlight.Add(-1)
		l.metrics.FetchFinished(context.Background())
	}()

	start := time.Now()
	l.log.Debug().Str("url", url).Msg("fetching module")

	// The fetch runs aside so the timeout holds even for a fetcher that ignores ctx.
	ch := make(chan outcome, 1)
	go func() {
		mod, err := l.fetcher.Fetch(ctx, url)
		ch <- outcome{mod: mod, err: err}
	}()

	var (
		mod *Module
		err error
	)
	select {
	case o := <-ch:
		mod, err = o.mod, o.err
		if err == nil && mod == nil {
			err = ErrEmptyModule
		}
		if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = ErrLoadTimeout
		}
	case <-ctx.Done():
		err = ErrLoadTimeout
	}

	elapsed := float64(time.Since(start).Microseconds()) / 1000
	l.metrics.RecordFetch(context.Background(), url, elapsed, err)

	if err != nil {
		loadErr := &LoadError{URL: url, Err: err}
		l.log.Warn().Err(err).Str("url", url).Float64("duration_ms", elapsed).Msg("module load failed")
		return nil, loadErr
	}

	if mod.URL == "" {
		mod.URL = url
	}
	if mod.FetchedAt.IsZero() {
		mod.FetchedAt = time.Now()
	}
	l.log.Info().Str("url", url).Strs("exports", mod.Exports).Float64("duration_ms", elapsed).Msg("module loaded")
	return mod, nil
}
