package http

import (
	"context"
	"log/slog"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

// handlerLogger prefers the request-scoped logger, which already carries the
// request_id, and tags the caller's user_id when RequireUser admitted one.
func handlerLogger(ctx context.Context, fallback *slog.Logger, handlerName, operation string, attrs ...any) *slog.Logger {
	logger := LoggerFromContext(ctx)
	if logger == nil {
		logger = defaultLogger(fallback)
	}

	pairs := make([]any, 0, 6+len(attrs))
	pairs = append(pairs, "component", "http", "handler", handlerName)
	if operation != "" {
		pairs = append(pairs, "operation", operation)
	}
	if userID, ok := UserIDFromContext(ctx); ok {
		pairs = append(pairs, "user_id", userID)
	}
	pairs = append(pairs, attrs...)
	return logger.With(pairs...)
}
