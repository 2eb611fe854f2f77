package testfixtures

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/example/court-reservations/internal/persistence"
	"github.com/example/court-reservations/internal/persistence/sqlite"
)

// SQLiteHarness provides repository access backed by a temporary SQLite database
// for integration-style tests.
type SQLiteHarness struct {
	Reservations persistence.ReservationRepository
	Storage      *sqlite.Storage

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness opens and migrates a database in a temporary directory. now
// drives reservation liveness (time.Now when nil). Cleanup is registered with tb.
func NewSQLiteHarness(tb testing.TB, now func() time.Time) *SQLiteHarness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "court.db")
	storage, err := sqlite.Open(path, sqlite.Options{Now: now})
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}
	if err := storage.Migrate(context.Background()); err != nil {
		_ = storage.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	harness := &SQLiteHarness{
		Reservations: storage,
		Storage:      storage,
		cleanup: func() {
			_ = storage.Close()
		},
	}
	tb.Cleanup(harness.Close)
	return harness
}

// Seed inserts fixtures, failing the test on error.
func (h *SQLiteHarness) Seed(tb testing.TB, fixtures ...ReservationFixture) {
	tb.Helper()
	for _, f := range fixtures {
		if _, err := h.Reservations.PutReservation(context.Background(), f.UserID, f.StartTime); err != nil {
			tb.Fatalf("failed to seed reservation for %s: %v", f.UserID, err)
		}
	}
}
