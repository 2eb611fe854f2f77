package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoveReserved(t *testing.T) {
	loc := nicosia(t)
	cal, err := NewCalendar(loc, DefaultOpenHour, DefaultLastHour)
	require.NoError(t, err)

	day := time.Date(2024, time.June, 10, 0, 0, 0, 0, loc)
	candidates, err := cal.CandidateSlots(day)
	require.NoError(t, err)

	t.Run("reserved hour is removed", func(t *testing.T) {
		reserved := []time.Time{time.Date(2024, time.June, 10, 10, 0, 0, 0, loc)}
		got := RemoveReserved(candidates, reserved)
		assert.Len(t, got, len(candidates)-1)
		_, ok := Contains(got, 10)
		assert.False(t, ok)
	})

	t.Run("reservations stored in UTC match local hours", func(t *testing.T) {
		reserved := []time.Time{time.Date(2024, time.June, 10, 7, 0, 0, 0, loc).UTC()}
		got := RemoveReserved(candidates, reserved)
		_, ok := Contains(got, 7)
		assert.False(t, ok)
	})

	t.Run("other days do not affect the candidates", func(t *testing.T) {
		reserved := []time.Time{time.Date(2024, time.June, 11, 10, 0, 0, 0, loc)}
		assert.Equal(t, candidates, RemoveReserved(candidates, reserved))
	})

	t.Run("result does not alias the input", func(t *testing.T) {
		got := RemoveReserved(candidates, nil)
		got[0].Hour = 99
		assert.Equal(t, DefaultOpenHour, candidates[0].Hour)
	})
}

func TestStartingFromAndWithout(t *testing.T) {
	loc := nicosia(t)
	cal, err := NewCalendar(loc, 6, 9)
	require.NoError(t, err)
	slots, err := cal.CandidateSlots(time.Date(2024, time.June, 10, 0, 0, 0, 0, loc))
	require.NoError(t, err)

	later := StartingFrom(slots, time.Date(2024, time.June, 10, 7, 0, 0, 0, loc))
	require.Len(t, later, 3)
	assert.Equal(t, 7, later[0].Hour)

	remaining := Without(later, 8)
	assert.Equal(t, []int{7, 9}, hours(remaining))
}

func hours(slots []Slot) []int {
	out := make([]int, 0, len(slots))
	for _, slot := range slots {
		out = append(out, slot.Hour)
	}
	return out
}
