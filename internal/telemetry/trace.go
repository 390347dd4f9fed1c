package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StartSpan creates a new span for a host operation.
//
//	ctx, span := telemetry.StartSpan(ctx, TracerLoader, "loader.Load",
//	    attribute.String(AttrModuleURL, url),
//	)
//	defer span.End()
func StartSpan(ctx context.Context, tracerName, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.Tracer(tracerName)
	return tracer.Start(ctx, spanName, trace.WithAttributes(attrs...))
}

// RecordError records an error on the span and sets the span status to error.
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// Tracer names
const (
	TracerLoader   = "panelhost/loader"
	TracerRegistry = "panelhost/registry"
	TracerSession  = "panelhost/session"
)

// Common attribute keys
const (
	AttrModuleURL    = "module.url"
	AttrPanelName    = "panel.name"
	AttrPanelOrigin  = "panel.origin"
	AttrSessionState = "session.state"
)
