package session

import "context"

type gateContextKey struct{}

// WithGate stores the request's gate in ctx.
func WithGate(ctx context.Context, g *Gate) context.Context {
	return context.WithValue(ctx, gateContextKey{}, g)
}

// FromContext returns the gate stored by WithGate.
func FromContext(ctx context.Context) (*Gate, bool) {
	g, ok := ctx.Value(gateContextKey{}).(*Gate)
	return g, ok && g != nil
}
