package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/example/calendario-escolar/internal/logging"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

func serviceLogger(ctx context.Context, base *slog.Logger, serviceName, operation string, attrs ...any) *slog.Logger {
	pairs := make([]any, 0, 4+len(attrs))
	pairs = append(pairs, "service", serviceName)
	if operation != "" {
		pairs = append(pairs, "operation", operation)
	}
	return logging.Or(ctx, base).With(append(pairs, attrs...)...)
}

// ErrorKind maps sentinel and validation errors to a stable logging label.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrNoRecords):
		return "no_records"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrAccountPending):
		return "account_pending"
	case errors.Is(err, ErrAccountRejected):
		return "account_rejected"
	}

	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return "validation"
	}
	var rErr *RenderError
	if errors.As(err, &rErr) {
		return "render"
	}

	return "unexpected"
}
