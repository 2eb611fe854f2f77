package http

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandlerLogger(t *testing.T) {
	t.Run("tags admitted user on the request logger", func(t *testing.T) {
		var requestBuf, fallbackBuf bytes.Buffer
		requestLogger := slog.New(slog.NewJSONHandler(&requestBuf, nil)).With("request_id", "req-1")
		fallback := slog.New(slog.NewJSONHandler(&fallbackBuf, nil))

		ctx := ContextWithLogger(ContextWithUserID(context.Background(), "alice"), requestLogger)
		handlerLogger(ctx, fallback, "ReservationHandler", "SelectSlot", "slot", "15:00").Info("handled")

		out := requestBuf.String()
		assert.Contains(t, out, `"request_id":"req-1"`)
		assert.Contains(t, out, `"component":"http"`)
		assert.Contains(t, out, `"handler":"ReservationHandler"`)
		assert.Contains(t, out, `"operation":"SelectSlot"`)
		assert.Contains(t, out, `"user_id":"alice"`)
		assert.Contains(t, out, `"slot":"15:00"`)
		assert.Empty(t, fallbackBuf.String())
	})

	t.Run("falls back without request logger or user", func(t *testing.T) {
		var buf bytes.Buffer
		fallback := slog.New(slog.NewJSONHandler(&buf, nil))

		handlerLogger(context.Background(), fallback, "AuditHandler", "", "format", "csv").Info("handled")

		out := buf.String()
		assert.Contains(t, out, `"handler":"AuditHandler"`)
		assert.Contains(t, out, `"format":"csv"`)
		assert.NotContains(t, out, "operation")
		assert.NotContains(t, out, "user_id")
	})
}
