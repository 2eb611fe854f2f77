// Package persistencetest holds the behavioural contract every
// persistence.ReservationRepository implementation must satisfy.
package persistencetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/court-reservations/internal/persistence"
	"github.com/example/court-reservations/internal/testfixtures"
)

// Factory returns an empty repository whose liveness checks read now.
type Factory func(t *testing.T, now func() time.Time) persistence.ReservationRepository

// RunReservationRepositoryContract exercises repo semantics shared by all substrates.
func RunReservationRepositoryContract(t *testing.T, factory Factory) {
	t.Helper()

	setup := func(t *testing.T) (persistence.ReservationRepository, *testfixtures.Clock) {
		clock := testfixtures.NewClock(testfixtures.ReservationReferenceTime())
		return factory(t, clock.NowFunc()), clock
	}
	hour := func(clock *testfixtures.Clock, n int) time.Time {
		return clock.Now().Truncate(time.Hour).Add(time.Duration(n) * time.Hour)
	}

	t.Run("get on empty store returns not found", func(t *testing.T) {
		repo, _ := setup(t)
		_, err := repo.GetReservation(context.Background(), "user-1")
		assert.ErrorIs(t, err, persistence.ErrNotFound)
	})

	t.Run("put then get round-trips the instant", func(t *testing.T) {
		repo, clock := setup(t)
		ctx := context.Background()
		loc := time.FixedZone("EEST", 3*60*60)
		start := hour(clock, 2).In(loc)

		stored, err := repo.PutReservation(ctx, "user-1", start)
		require.NoError(t, err)
		assert.True(t, stored.StartTime.Equal(start))
		assert.Equal(t, "user-1", stored.UserID)

		got, err := repo.GetReservation(ctx, "user-1")
		require.NoError(t, err)
		assert.True(t, got.StartTime.Equal(start))
		assert.True(t, got.CreatedAt.Equal(clock.Now().Truncate(time.Second)))
	})

	t.Run("second live reservation for the same user conflicts", func(t *testing.T) {
		repo, clock := setup(t)
		ctx := context.Background()
		_, err := repo.PutReservation(ctx, "user-1", hour(clock, 2))
		require.NoError(t, err)

		_, err = repo.PutReservation(ctx, "user-1", hour(clock, 3))
		require.Error(t, err)
		assert.True(t, persistence.IsConflict(err))
		assert.ErrorIs(t, err, persistence.ErrActiveReservation)

		got, err := repo.GetReservation(ctx, "user-1")
		require.NoError(t, err)
		assert.True(t, got.StartTime.Equal(hour(clock, 2)), "original reservation must survive")
	})

	t.Run("taken slot conflicts for another user", func(t *testing.T) {
		repo, clock := setup(t)
		ctx := context.Background()
		_, err := repo.PutReservation(ctx, "user-1", hour(clock, 2))
		require.NoError(t, err)

		_, err = repo.PutReservation(ctx, "user-2", hour(clock, 2))
		assert.ErrorIs(t, err, persistence.ErrSlotTaken)
		_, err = repo.GetReservation(ctx, "user-2")
		assert.ErrorIs(t, err, persistence.ErrNotFound)
	})

	t.Run("past reservation is replaced", func(t *testing.T) {
		repo, clock := setup(t)
		ctx := context.Background()
		first := hour(clock, 1)
		_, err := repo.PutReservation(ctx, "user-1", first)
		require.NoError(t, err)

		clock.Advance(3 * time.Hour)
		next := hour(clock, 2)
		_, err = repo.PutReservation(ctx, "user-1", next)
		require.NoError(t, err)

		got, err := repo.GetReservation(ctx, "user-1")
		require.NoError(t, err)
		assert.True(t, got.StartTime.Equal(next))

		all, err := repo.ListReservations(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		repo, clock := setup(t)
		ctx := context.Background()
		_, err := repo.PutReservation(ctx, "user-1", hour(clock, 2))
		require.NoError(t, err)

		require.NoError(t, repo.DeleteReservation(ctx, "user-1"))
		_, err = repo.GetReservation(ctx, "user-1")
		assert.ErrorIs(t, err, persistence.ErrNotFound)
		assert.NoError(t, repo.DeleteReservation(ctx, "user-1"))

		_, err = repo.PutReservation(ctx, "user-2", hour(clock, 2))
		assert.NoError(t, err, "slot must be free after delete")
	})

	t.Run("listing is ordered and ranges are half-open", func(t *testing.T) {
		repo, clock := setup(t)
		ctx := context.Background()
		for i, user := range []string{"user-c", "user-a", "user-b"} {
			_, err := repo.PutReservation(ctx, user, hour(clock, 3-i))
			require.NoError(t, err)
		}

		all, err := repo.ListReservations(ctx)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, []string{"user-b", "user-a", "user-c"}, userIDs(all))

		between, err := repo.ListReservationsBetween(ctx, hour(clock, 1), hour(clock, 3))
		require.NoError(t, err)
		assert.Equal(t, []string{"user-b", "user-a"}, userIDs(between))

		empty, err := repo.ListReservationsBetween(ctx, hour(clock, 10), hour(clock, 11))
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("concurrent claims on one slot admit exactly one", func(t *testing.T) {
		repo, clock := setup(t)
		ctx := context.Background()
		start := hour(clock, 4)
		const racers = 12

		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			successes int
			conflicts int
			others    []error
		)
		for i := 0; i < racers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := repo.PutReservation(ctx, fmt.Sprintf("racer-%02d", i), start)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					successes++
				case persistence.IsConflict(err):
					conflicts++
				default:
					others = append(others, err)
				}
			}(i)
		}
		wg.Wait()

		assert.Empty(t, others)
		assert.Equal(t, 1, successes)
		assert.Equal(t, racers-1, conflicts)
	})

	t.Run("concurrent claims by one user admit exactly one", func(t *testing.T) {
		repo, clock := setup(t)
		ctx := context.Background()
		const racers = 8

		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			successes int
		)
		for i := 0; i < racers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := repo.PutReservation(ctx, "same-user", hour(clock, 1+i))
				if err == nil {
					mu.Lock()
					successes++
					mu.Unlock()
				}
			}(i)
		}
		wg.Wait()

		assert.Equal(t, 1, successes)
		all, err := repo.ListReservations(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})
}

func userIDs(reservations []persistence.Reservation) []string {
	ids := make([]string, 0, len(reservations))
	for _, r := range reservations {
		ids = append(ids, r.UserID)
	}
	return ids
}
