// Package reqid carries the per-request correlation id through contexts.
package reqid

import (
	"context"
	"log/slog"
)

type key struct{}

// With returns a new context with the provided request ID attached.
func With(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, key{}, id)
}

// From extracts the request ID from the context, if present.
func From(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	s, ok := ctx.Value(key{}).(string)
	return s, ok && s != ""
}

// Logger tags l with the request id in ctx. l is returned unchanged when
// ctx carries none.
func Logger(ctx context.Context, l *slog.Logger) *slog.Logger {
	if l == nil {
		l = slog.Default()
	}
	if id, ok := From(ctx); ok {
		return l.With("request_id", id)
	}
	return l
}
