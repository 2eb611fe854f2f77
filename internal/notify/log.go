package notify

import (
	"context"
	"log/slog"

	"github.com/example/court-reservations/internal/logging"
	"github.com/example/court-reservations/internal/persistence"
)

// LogNotifier records reservation changes as structured log entries.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier falls back to the context logger when logger is nil.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// ReservationConfirmed logs the confirmation.
func (n *LogNotifier) ReservationConfirmed(ctx context.Context, r persistence.Reservation) error {
	n.loggerFor(ctx).InfoContext(ctx, "reservation confirmed", reservationAttrs(r)...)
	return nil
}

// ReservationCancelled logs the cancellation.
func (n *LogNotifier) ReservationCancelled(ctx context.Context, r persistence.Reservation) error {
	n.loggerFor(ctx).InfoContext(ctx, "reservation cancelled", reservationAttrs(r)...)
	return nil
}

func (n *LogNotifier) loggerFor(ctx context.Context) *slog.Logger {
	logger := n.logger
	if logger == nil {
		logger = logging.FromContext(ctx)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With("component", "notify")
}

func reservationAttrs(r persistence.Reservation) []any {
	return []any{"user_id", r.UserID, "start_time", r.StartTime}
}
