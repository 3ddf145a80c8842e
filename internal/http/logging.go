package http

import (
	"context"
	"log/slog"

	"github.com/example/calendario-escolar/internal/logging"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	return logging.Or(context.Background(), logger)
}

// handlerLogger tags the request logger with the handler and operation. The
// role of an authenticated caller is already attached by RequireToken.
func handlerLogger(ctx context.Context, fallback *slog.Logger, handlerName, operation string, attrs ...any) *slog.Logger {
	pairs := make([]any, 0, 4+len(attrs))
	pairs = append(pairs, "handler", handlerName)
	if operation != "" {
		pairs = append(pairs, "operation", operation)
	}
	return logging.Or(ctx, fallback).With(append(pairs, attrs...)...)
}
