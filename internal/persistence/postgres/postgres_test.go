package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/court-reservations/internal/persistence"
	"github.com/example/court-reservations/internal/persistence/persistencetest"
)

func TestMapError(t *testing.T) {
	start := time.Date(2024, time.June, 10, 10, 0, 0, 0, time.UTC)

	err := mapError("u", start, &pgconn.PgError{Code: uniqueViolation, ConstraintName: "reservations_start_time_key"})
	assert.ErrorIs(t, err, persistence.ErrSlotTaken)

	err = mapError("u", start, &pgconn.PgError{Code: uniqueViolation, ConstraintName: "reservations_pkey"})
	assert.ErrorIs(t, err, persistence.ErrActiveReservation)

	other := &pgconn.PgError{Code: "40001"}
	assert.Same(t, other, mapError("u", start, other))

	plain := errors.New("connection reset")
	assert.Same(t, plain, mapError("u", start, plain))
	assert.NoError(t, mapError("u", start, nil))
}

func TestReservationRepositoryContract(t *testing.T) {
	url := os.Getenv("COURT_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("COURT_TEST_POSTGRES_URL not set")
	}

	persistencetest.RunReservationRepositoryContract(t, func(t *testing.T, now func() time.Time) persistence.ReservationRepository {
		ctx := context.Background()
		storage, err := Open(ctx, url, now)
		require.NoError(t, err)
		t.Cleanup(func() { _ = storage.Close() })
		require.NoError(t, storage.Migrate(ctx))
		_, err = storage.pool.Exec(ctx, `TRUNCATE reservations`)
		require.NoError(t, err)
		return storage
	})
}
