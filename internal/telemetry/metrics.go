package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// LoaderMetrics holds metric instruments for the remote module loader.
type LoaderMetrics struct {
	Fetches       metric.Int64Counter     // Network fetch attempts
	FetchFailures metric.Int64Counter     // Failed or timed out attempts
	CacheHits     metric.Int64Counter     // Loads served by an existing entry
	FetchDuration metric.Float64Histogram // Fetch latency
	InFlight      metric.Int64UpDownCounter
}

// NewLoaderMetrics creates loader instruments on the global meter provider.
func NewLoaderMetrics() (*LoaderMetrics, error) {
	meter := otel.Meter("panelhost/loader")

	fetches, err := meter.Int64Counter(
		"loader.fetch.count",
		metric.WithDescription("Total number of module fetch attempts"),
		metric.WithUnit("{fetch}"),
	)
	if err != nil {
		return nil, err
	}

	failures, err := meter.Int64Counter(
		"loader.fetch.failure.count",
		metric.WithDescription("Total number of failed module fetch attempts"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, err
	}

	hits, err := meter.Int64Counter(
		"loader.cache.hit.count",
		metric.WithDescription("Loads answered by a pending or resolved cache entry"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"loader.fetch.duration",
		metric.WithDescription("Module fetch duration"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000),
	)
	if err != nil {
		return nil, err
	}

	inFlight, err := meter.Int64UpDownCounter(
		"loader.fetch.in_flight",
		metric.WithDescription("Module fetches currently outstanding"),
		metric.WithUnit("{fetch}"),
	)
	if err != nil {
		return nil, err
	}

	return &LoaderMetrics{
		Fetches:       fetches,
		FetchFailures: failures,
		CacheHits:     hits,
		FetchDuration: duration,
		InFlight:      inFlight,
	}, nil
}

// RecordFetch records one completed fetch attempt.
func (m *LoaderMetrics) RecordFetch(ctx context.Context, url string, durationMs float64, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String(AttrModuleURL, url))
	m.Fetches.Add(ctx, 1, attrs)
	m.FetchDuration.Record(ctx, durationMs, attrs)
	if err != nil {
		m.FetchFailures.Add(ctx, 1, attrs)
	}
}

// RecordHit records a load answered from the cache.
func (m *LoaderMetrics) RecordHit(ctx context.Context, url string) {
	if m == nil {
		return
	}
	m.CacheHits.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrModuleURL, url)))
}

// FetchStarted increments the in-flight gauge.
func (m *LoaderMetrics) FetchStarted(ctx context.Context) {
	if m == nil {
		return
	}
	m.InFlight.Add(ctx, 1)
}

// FetchFinished decrements the in-flight gauge.
func (m *LoaderMetrics) FetchFinished(ctx context.Context) {
	if m == nil {
		return
	}
	m.InFlight.Add(ctx, -1)
}

// ShellMetrics holds instruments for host shell renders.
type ShellMetrics struct {
	Renders metric.Int64Counter
}

// NewShellMetrics creates shell instruments on the global meter provider.
func NewShellMetrics() (*ShellMetrics, error) {
	meter := otel.Meter("panelhost/shell")
	renders, err := meter.Int64Counter(
		"shell.render.count",
		metric.WithDescription("Host shell renders by panel and outcome"),
		metric.WithUnit("{render}"),
	)
	if err != nil {
		return nil, err
	}
	return &ShellMetrics{Renders: renders}, nil
}

// RecordRender records one shell render for a panel with its outcome
// (ready, pending, failed, not_found, redirect).
func (m *ShellMetrics) RecordRender(ctx context.Context, panel, outcome string) {
	if m == nil {
		return
	}
	m.Renders.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrPanelName, panel),
		attribute.String("render.outcome", outcome),
	))
}
