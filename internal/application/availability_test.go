package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/court-reservations/internal/persistence"
	"github.com/example/court-reservations/internal/persistence/memory"
	"github.com/example/court-reservations/internal/scheduler"
)

func nicosiaCalendar(t *testing.T) *scheduler.Calendar {
	t.Helper()
	loc, err := scheduler.LoadLocation(scheduler.DefaultTimezone)
	require.NoError(t, err)
	cal, err := scheduler.NewCalendar(loc, scheduler.DefaultOpenHour, scheduler.DefaultLastHour)
	require.NoError(t, err)
	return cal
}

func slotHours(slots []scheduler.Slot) []int {
	out := make([]int, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.Hour)
	}
	return out
}

func TestAvailabilityResolver_BufferExcludesImminentSlot(t *testing.T) {
	t.Parallel()

	cal := nicosiaCalendar(t)
	loc := cal.Location()
	now := time.Date(2024, time.June, 10, 14, 58, 0, 0, loc)
	resolver := NewAvailabilityResolver(cal, memory.Open(func() time.Time { return now }), DefaultBookingBuffer)

	slots, err := resolver.Available(context.Background(), cal.Today(now), now)
	require.NoError(t, err)
	assert.Equal(t, []int{16, 17, 18, 19, 20, 21}, slotHours(slots))

	tomorrow, err := resolver.Available(context.Background(), cal.Day(now, 1), now)
	require.NoError(t, err)
	assert.Len(t, tomorrow, 16)
}

func TestAvailabilityResolver_ReservedHoursAreRemoved(t *testing.T) {
	t.Parallel()

	cal := nicosiaCalendar(t)
	loc := cal.Location()
	now := time.Date(2024, time.June, 9, 12, 0, 0, 0, loc)
	store := memory.Open(func() time.Time { return now })
	_, err := store.PutReservation(context.Background(), "A", time.Date(2024, time.June, 10, 10, 0, 0, 0, loc))
	require.NoError(t, err)

	resolver := NewAvailabilityResolver(cal, store, DefaultBookingBuffer)
	slots, err := resolver.Available(context.Background(), time.Date(2024, time.June, 10, 0, 0, 0, 0, loc), now)
	require.NoError(t, err)
	assert.Len(t, slots, 15)
	_, ok := scheduler.Contains(slots, 10)
	assert.False(t, ok)
}

func TestAvailabilityResolver_Errors(t *testing.T) {
	t.Parallel()

	cal := nicosiaCalendar(t)
	now := time.Date(2024, time.June, 9, 12, 0, 0, 0, cal.Location())

	_, err := NewAvailabilityResolver(cal, memory.Open(nil), 0).Available(context.Background(), time.Time{}, now)
	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)

	boom := errors.New("boom")
	_, err = NewAvailabilityResolver(cal, failingLister{err: boom}, 0).Available(context.Background(), cal.Day(now, 1), now)
	assert.ErrorIs(t, err, boom)
}

func TestAvailabilityResolver_NegativeBuffer(t *testing.T) {
	t.Parallel()

	assert.Zero(t, NewAvailabilityResolver(nicosiaCalendar(t), memory.Open(nil), -time.Minute).Buffer())
}

type failingLister struct{ err error }

func (f failingLister) ListReservationsBetween(context.Context, time.Time, time.Time) ([]persistence.Reservation, error) {
	return nil, f.err
}
