package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/court-reservations/internal/notify"
	"github.com/example/court-reservations/internal/persistence"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestRunner_Schedule(t *testing.T) {
	runner := NewRunner(time.UTC, discard)

	require.NoError(t, runner.Schedule("purge", "*/5 * * * *", func(context.Context) error { return nil }))
	assert.Error(t, runner.Schedule("purge", "@hourly", func(context.Context) error { return nil }), "duplicate name")
	assert.Error(t, runner.Schedule("broken", "every tuesday", func(context.Context) error { return nil }))
	assert.Error(t, runner.Schedule("", "@hourly", func(context.Context) error { return nil }))

	_, ok := runner.Next("broken")
	assert.False(t, ok)
}

func TestRunner_RunsAndStops(t *testing.T) {
	runner := NewRunner(time.UTC, discard)

	var runs atomic.Int32
	var sawCancel atomic.Bool
	require.NoError(t, runner.Schedule("tick", "@every 1s", func(ctx context.Context) error {
		runs.Add(1)
		return errors.New("logged, not fatal")
	}))
	require.NoError(t, runner.Schedule("watch", "@every 1s", func(ctx context.Context) error {
		<-ctx.Done()
		sawCancel.Store(true)
		return ctx.Err()
	}))
	runner.Start()

	require.Eventually(t, func() bool { return runs.Load() >= 2 }, 5*time.Second, 50*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, runner.Stop(stopCtx))
	assert.True(t, sawCancel.Load(), "running jobs see the runner context end")
}

type countingPurger struct{ n int }

func (p *countingPurger) PurgeExpiredSelections() int {
	p.n++
	return 3
}

func TestPurgeSelections(t *testing.T) {
	purger := &countingPurger{}
	require.NoError(t, PurgeSelections(purger, discard)(context.Background()))
	assert.Equal(t, 1, purger.n)
}

type staticLister struct {
	reservations []persistence.Reservation
	err          error
}

func (s staticLister) ListReservations(context.Context) ([]persistence.Reservation, error) {
	return s.reservations, s.err
}

func TestExportAudit(t *testing.T) {
	store := staticLister{reservations: []persistence.Reservation{{
		UserID:    "42",
		StartTime: time.Date(2024, time.June, 10, 7, 0, 0, 0, time.UTC),
		CreatedAt: time.Date(2024, time.June, 9, 7, 0, 0, 0, time.UTC),
	}}}
	exporter := notify.Exporter{Location: time.UTC}
	dir := t.TempDir()

	t.Run("text", func(t *testing.T) {
		path := filepath.Join(dir, "nested", "audit.txt")
		require.NoError(t, ExportAudit(store, exporter, path)(context.Background()))
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "User ID: 42, Reservation Date and Time: 2024-06-10 07:00\n", string(data))
	})

	t.Run("csv replaces previous contents", func(t *testing.T) {
		path := filepath.Join(dir, "audit.csv")
		require.NoError(t, os.WriteFile(path, []byte("stale"), 0o600))
		require.NoError(t, ExportAudit(store, exporter, path)(context.Background()))
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "user_id,start_time,created_at")
		assert.NotContains(t, string(data), "stale")

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		for _, e := range entries {
			assert.NotContains(t, e.Name(), ".export-", "temporary files are cleaned up")
		}
	})

	t.Run("list failure leaves the file untouched", func(t *testing.T) {
		path := filepath.Join(dir, "kept.txt")
		require.NoError(t, os.WriteFile(path, []byte("previous"), 0o600))
		err := ExportAudit(staticLister{err: errors.New("db down")}, exporter, path)(context.Background())
		require.Error(t, err)
		data, readErr := os.ReadFile(path)
		require.NoError(t, readErr)
		assert.Equal(t, "previous", string(data))
	})
}

func TestFormatForPath(t *testing.T) {
	assert.Equal(t, notify.FormatCSV, FormatForPath("/var/audit.CSV"))
	assert.Equal(t, notify.FormatICS, FormatForPath("court.ics"))
	assert.Equal(t, notify.FormatText, FormatForPath("reservations.txt"))
	assert.Equal(t, notify.FormatText, FormatForPath("reservations"))
}
