package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/court-reservations/internal/config"
	"github.com/example/court-reservations/internal/persistence/memory"
	"github.com/example/court-reservations/internal/persistence/sqlite"
	"github.com/example/court-reservations/internal/testfixtures"
)

func isolateEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(key, "COURT_") {
			t.Setenv(key, "")
			require.NoError(t, os.Unsetenv(key))
		}
	}
	t.Setenv("COURT_LOG_LEVEL", "error")
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(append([]string{"--env-file="}, args...))
	err := root.ExecuteContext(context.Background())
	return stdout.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "courtbook dev (commit=none, built=unknown)\n", out)
}

func TestMigrateCommand(t *testing.T) {
	isolateEnv(t)
	dbPath := filepath.Join(t.TempDir(), "court.db")
	t.Setenv("COURT_SQLITE_PATH", dbPath)

	out, err := execute(t, "migrate")
	require.NoError(t, err)
	assert.Equal(t, "schema at version 001 (1 applied, 0 pending)\n", out)

	out, err = execute(t, "migrate")
	require.NoError(t, err, "migrating twice is a no-op")
	assert.Contains(t, out, "0 pending")

	t.Setenv("COURT_STORE_DRIVER", "memory")
	out, err = execute(t, "migrate")
	require.NoError(t, err)
	assert.Equal(t, "memory store migrated\n", out)
}

func TestExportCommand(t *testing.T) {
	isolateEnv(t)
	dbPath := filepath.Join(t.TempDir(), "court.db")
	t.Setenv("COURT_SQLITE_PATH", dbPath)

	st, err := sqlite.Open(dbPath, sqlite.Options{})
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	start := time.Now().Add(48 * time.Hour).Truncate(time.Hour)
	_, err = st.PutReservation(context.Background(), "alice", start)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	loc, err := time.LoadLocation("Asia/Nicosia")
	require.NoError(t, err)

	out, err := execute(t, "export")
	require.NoError(t, err)
	assert.Equal(t, "User ID: alice, Reservation Date and Time: "+start.In(loc).Format("2006-01-02 15:04")+"\n", out)

	out, err = execute(t, "export", "--format", "csv")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "user_id,start_time,created_at\nalice,"))

	out, err = execute(t, "export", "--format", "ics")
	require.NoError(t, err)
	assert.Contains(t, out, "BEGIN:VEVENT")

	_, err = execute(t, "export", "--format", "pdf")
	assert.Error(t, err)
}

func TestCommandsReportConfigErrors(t *testing.T) {
	isolateEnv(t)
	t.Setenv("COURT_STORE_DRIVER", "postgres")

	_, err := execute(t, "export")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COURT_POSTGRES_URL")
}

func TestBuildApp(t *testing.T) {
	isolateEnv(t)
	auditPath := filepath.Join(t.TempDir(), "reservations.txt")
	t.Setenv("COURT_AUDIT_LOG_PATH", auditPath)
	t.Setenv("COURT_AUDIT_EXPORT_CRON", "@daily")
	t.Setenv("COURT_AUDIT_EXPORT_PATH", filepath.Join(t.TempDir(), "export.csv"))
	cfg, err := config.Load()
	require.NoError(t, err)

	clock := testfixtures.NewClock(testfixtures.ReservationReferenceTime())
	st := memory.Open(clock.NowFunc())
	app, err := buildApp(cfg, st, clock.NowFunc(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	_, ok := app.runner.Next("audit-export")
	assert.True(t, ok)
	_, ok = app.runner.Next("purge-selections")
	assert.True(t, ok)

	post := func(path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
		req.Header.Set("X-User-ID", "alice")
		rec := httptest.NewRecorder()
		app.handler.ServeHTTP(rec, req)
		return rec
	}
	require.Equal(t, http.StatusOK, post("/reserve", "").Code)
	require.Equal(t, http.StatusOK, post("/reserve/date", `{"date":"2024-06-11"}`).Code)
	require.Equal(t, http.StatusOK, post("/reserve/slot", `{"slot":"10:00"}`).Code)

	data, err := os.ReadFile(auditPath)
	require.NoError(t, err)
	assert.Equal(t, "User ID: alice, Reservation Date and Time: 2024-06-11 10:00\n", string(data))

	rec := httptest.NewRecorder()
	app.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	app.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reservations", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code, "audit endpoint is hidden without an admin hash")
}

func TestBuildApp_RejectsBadAdminHash(t *testing.T) {
	cfg := config.Defaults()
	cfg.AuditLogPath = ""
	cfg.AdminTokenHash = "plaintext"
	_, err := buildApp(cfg, memory.Open(nil), time.Now, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}
