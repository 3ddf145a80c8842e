// Package logging carries the request scoped *slog.Logger through a context
// so that handlers and services log with the same request attributes.
package logging

import (
	"context"
	"log/slog"
)

type contextKey struct{}

// ContextWithLogger returns a derived context that carries the provided logger.
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	if ctx == nil || logger == nil {
		return ctx
	}
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext extracts a logger previously attached to the context.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return nil
	}
	logger, _ := ctx.Value(contextKey{}).(*slog.Logger)
	return logger
}

// Or returns the context logger, then fallback, then slog.Default.
func Or(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if logger := FromContext(ctx); logger != nil {
		return logger
	}
	if fallback != nil {
		return fallback
	}
	return slog.Default()
}

// With adds attributes to the logger carried by ctx. Without one, ctx is
// returned unchanged.
func With(ctx context.Context, args ...any) context.Context {
	logger := FromContext(ctx)
	if logger == nil || len(args) == 0 {
		return ctx
	}
	return context.WithValue(ctx, contextKey{}, logger.With(args...))
}
