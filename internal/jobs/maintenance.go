package jobs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/example/court-reservations/internal/notify"
	"github.com/example/court-reservations/internal/persistence"
)

// SelectionPurger drops expired pending selections.
type SelectionPurger interface {
	PurgeExpiredSelections() int
}

// PurgeSelections returns a job that purges expired pending selections.
func PurgeSelections(purger SelectionPurger, logger *slog.Logger) Job {
	return func(ctx context.Context) error {
		if n := purger.PurgeExpiredSelections(); n > 0 && logger != nil {
			logger.InfoContext(ctx, "expired selections purged", "count", n)
		}
		return nil
	}
}

// ReservationLister lists every stored reservation.
type ReservationLister interface {
	ListReservations(ctx context.Context) ([]persistence.Reservation, error)
}

// Exporter renders reservations in an export format.
type Exporter interface {
	Export(w io.Writer, format string, reservations []persistence.Reservation) error
}

// ExportAudit returns a job that rewrites path with the full reservation list. The
// format follows the file extension (.csv, .ics, anything else is text). The file is
// replaced atomically.
func ExportAudit(store ReservationLister, exporter Exporter, path string) Job {
	format := FormatForPath(path)
	return func(ctx context.Context) error {
		reservations, err := store.ListReservations(ctx)
		if err != nil {
			return fmt.Errorf("list reservations: %w", err)
		}

		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create export directory: %w", err)
		}
		tmp, err := os.CreateTemp(dir, ".export-*")
		if err != nil {
			return fmt.Errorf("create export file: %w", err)
		}
		defer os.Remove(tmp.Name())

		if err := exporter.Export(tmp, format, reservations); err != nil {
			tmp.Close()
			return fmt.Errorf("write export: %w", err)
		}
		if err := tmp.Close(); err != nil {
			return fmt.Errorf("close export file: %w", err)
		}
		if err := os.Rename(tmp.Name(), path); err != nil {
			return fmt.Errorf("replace export file: %w", err)
		}
		return nil
	}
}

// FormatForPath picks the export format from a file extension.
func FormatForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return notify.FormatCSV
	case ".ics":
		return notify.FormatICS
	default:
		return notify.FormatText
	}
}
