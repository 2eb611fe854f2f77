package application_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/court-reservations/internal/application"
	"github.com/example/court-reservations/internal/persistence"
	"github.com/example/court-reservations/internal/persistence/memory"
	"github.com/example/court-reservations/internal/scheduler"
	"github.com/example/court-reservations/internal/testfixtures"
)

// The reference clock reads 12:30 on Monday 2024-06-10 in Nicosia.

func TestLifecycle_BookingFlow(t *testing.T) {
	engine := testfixtures.NewEngine(t)

	resp := engine.Handle(t, application.RequestReserve("alice"))
	require.Equal(t, application.OutcomeOK, resp.Outcome)
	require.Len(t, resp.Dates, 8)
	assert.Equal(t, "2024-06-10", resp.Dates[0].Format(scheduler.DateLayout))
	assert.Equal(t, "2024-06-17", resp.Dates[7].Format(scheduler.DateLayout))

	resp = engine.Handle(t, application.DateSelected("alice", "2024-06-10"))
	require.Equal(t, application.OutcomeOK, resp.Outcome)
	assert.Equal(t, "13:00", resp.Slots[0].Label(), "12:00 has started and must not be offered")
	assert.Len(t, resp.Slots, 9)

	resp = engine.Handle(t, application.SlotSelected("alice", "15:00"))
	require.Equal(t, application.OutcomeOK, resp.Outcome)
	require.NotNil(t, resp.Reservation)
	assert.Equal(t, "2024-06-10 15:00", resp.Reservation.StartTime.In(engine.Calendar.Location()).Format("2006-01-02 15:04"))
	assert.Contains(t, resp.Message, "2024-06-10 15:00")

	_, pending := engine.Lifecycle.PendingSelection("alice")
	assert.False(t, pending, "confirmation clears the pending selection")
	require.Len(t, engine.Notifier.Confirmed(), 1)

	current, err := engine.Lifecycle.CurrentReservation(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, current.StartTime.Equal(resp.Reservation.StartTime))
}

func TestLifecycle_ReserveWithLiveReservation(t *testing.T) {
	engine := testfixtures.NewEngine(t)
	engine.Book(t, "alice", "2024-06-11", "10:00")

	resp := engine.Handle(t, application.RequestReserve("alice"))
	assert.Equal(t, application.OutcomeAlreadyReserved, resp.Outcome)
	require.NotNil(t, resp.Reservation)
	assert.Contains(t, resp.Message, "2024-06-11 10:00")
	_, pending := engine.Lifecycle.PendingSelection("alice")
	assert.False(t, pending, "no pending selection may be created")

	resp = engine.Handle(t, application.DateSelected("alice", "2024-06-12"))
	assert.Equal(t, application.OutcomeAlreadyReserved, resp.Outcome)
}

func TestLifecycle_OutOfHorizonSkipsResolver(t *testing.T) {
	spy, opt := withSpyStore()
	engine := testfixtures.NewEngine(t, opt)

	for _, date := range []string{"2024-06-19", "2024-06-09"} {
		resp := engine.Handle(t, application.DateSelected("alice", date))
		assert.Equal(t, application.OutcomeOutOfHorizon, resp.Outcome, date)
	}
	assert.Zero(t, spy.listCalls())

	resp := engine.Handle(t, application.DateSelected("alice", "2024-06-17"))
	assert.Equal(t, application.OutcomeOK, resp.Outcome, "the last horizon day is bookable")
	assert.Equal(t, 1, spy.listCalls())
}

func TestLifecycle_OtherUsersSeeReservedSlotRemoved(t *testing.T) {
	engine := testfixtures.NewEngine(t)
	engine.Book(t, "alice", "2024-06-11", "10:00")

	resp := engine.Handle(t, application.DateSelected("bob", "2024-06-11"))
	require.Equal(t, application.OutcomeOK, resp.Outcome)
	assert.Len(t, resp.Slots, 15)
	_, ok := scheduler.Contains(resp.Slots, 10)
	assert.False(t, ok)
}

func TestLifecycle_LostRaceRefreshesOffer(t *testing.T) {
	engine := testfixtures.NewEngine(t)

	engine.Handle(t, application.DateSelected("alice", "2024-06-11"))
	engine.Handle(t, application.DateSelected("bob", "2024-06-11"))

	resp := engine.Handle(t, application.SlotSelected("alice", "10:00"))
	require.Equal(t, application.OutcomeOK, resp.Outcome)

	resp = engine.Handle(t, application.SlotSelected("bob", "10:00"))
	assert.Equal(t, application.OutcomeSlotTaken, resp.Outcome)
	assert.Len(t, resp.Slots, 15)
	_, ok := scheduler.Contains(resp.Slots, 10)
	assert.False(t, ok)

	selection, ok := engine.Lifecycle.PendingSelection("bob")
	require.True(t, ok)
	_, stillOffered := scheduler.Contains(selection.Slots, 10)
	assert.False(t, stillOffered)

	resp = engine.Handle(t, application.SlotSelected("bob", "11:00"))
	assert.Equal(t, application.OutcomeOK, resp.Outcome)
}

func TestLifecycle_SlotValidation(t *testing.T) {
	engine := testfixtures.NewEngine(t)

	resp := engine.Handle(t, application.SlotSelected("alice", "10:00"))
	assert.Equal(t, application.OutcomeInvalid, resp.Outcome, "no pending selection")
	require.NotNil(t, resp.Validation)
	assert.Contains(t, resp.Validation.FieldErrors, "date")

	engine.Handle(t, application.DateSelected("alice", "2024-06-10"))

	for _, value := range []string{"noon", "10:30", "23:00", "10:00"} {
		resp = engine.Handle(t, application.SlotSelected("alice", value))
		assert.Equal(t, application.OutcomeInvalid, resp.Outcome, value)
		assert.Contains(t, resp.Validation.FieldErrors, "slot", value)
	}
	assert.Empty(t, engine.Notifier.Confirmed())

	resp = engine.Handle(t, application.DateSelected("alice", "June 10"))
	assert.Equal(t, application.OutcomeInvalid, resp.Outcome)

	resp = engine.Handle(t, application.RequestReserve("  "))
	assert.Equal(t, application.OutcomeInvalid, resp.Outcome)

	resp = engine.Handle(t, application.Event{Kind: "dance", UserID: "alice"})
	assert.Equal(t, application.OutcomeInvalid, resp.Outcome)
}

func TestLifecycle_SlotExpiredWhileDeciding(t *testing.T) {
	engine := testfixtures.NewEngine(t)
	resp := engine.Handle(t, application.DateSelected("alice", "2024-06-10"))
	require.Equal(t, "13:00", resp.Slots[0].Label())

	// 12:56 local: 13:00 is now inside the buffer.
	engine.Clock.Advance(26 * time.Minute)
	resp = engine.Handle(t, application.SlotSelected("alice", "13:00"))
	assert.Equal(t, application.OutcomeInvalid, resp.Outcome)

	selection, ok := engine.Lifecycle.PendingSelection("alice")
	require.True(t, ok)
	_, stillOffered := scheduler.Contains(selection.Slots, 13)
	assert.False(t, stillOffered)

	resp = engine.Handle(t, application.SlotSelected("alice", "14:00"))
	assert.Equal(t, application.OutcomeOK, resp.Outcome)
}

func TestLifecycle_PendingSelectionExpires(t *testing.T) {
	engine := testfixtures.NewEngine(t, testfixtures.WithEnginePendingTTL(10*time.Minute))
	engine.Handle(t, application.DateSelected("alice", "2024-06-11"))

	engine.Clock.Advance(11 * time.Minute)
	resp := engine.Handle(t, application.SlotSelected("alice", "10:00"))
	assert.Equal(t, application.OutcomeInvalid, resp.Outcome)

	engine.Handle(t, application.DateSelected("bob", "2024-06-11"))
	engine.Clock.Advance(11 * time.Minute)
	assert.Equal(t, 1, engine.Lifecycle.PurgeExpiredSelections())
}

func TestLifecycle_NoSlotsAvailable(t *testing.T) {
	clock := testfixtures.NewClock(time.Date(2024, time.June, 10, 18, 58, 0, 0, time.UTC)) // 21:58 local
	engine := testfixtures.NewEngine(t, testfixtures.WithEngineClock(clock))

	engine.Handle(t, application.DateSelected("alice", "2024-06-11"))
	resp := engine.Handle(t, application.DateSelected("alice", "2024-06-10"))
	assert.Equal(t, application.OutcomeNoSlotsAvailable, resp.Outcome)
	assert.Contains(t, resp.Message, "2024-06-10")
	_, pending := engine.Lifecycle.PendingSelection("alice")
	assert.False(t, pending, "empty result clears the previous offer")
}

func TestLifecycle_Cancel(t *testing.T) {
	engine := testfixtures.NewEngine(t)

	resp := engine.Handle(t, application.RequestCancel("alice"))
	assert.Equal(t, application.OutcomeNothingToCancel, resp.Outcome)

	booked := engine.Book(t, "alice", "2024-06-11", "10:00")
	resp = engine.Handle(t, application.RequestCancel("alice"))
	assert.Equal(t, application.OutcomeCancelled, resp.Outcome)
	require.NotNil(t, resp.Reservation)
	assert.True(t, resp.Reservation.StartTime.Equal(booked.StartTime))
	require.Len(t, engine.Notifier.Cancelled(), 1)

	resp = engine.Handle(t, application.RequestCancel("alice"))
	assert.Equal(t, application.OutcomeNothingToCancel, resp.Outcome)

	resp = engine.Handle(t, application.DateSelected("bob", "2024-06-11"))
	_, ok := scheduler.Contains(resp.Slots, 10)
	assert.True(t, ok, "cancelled slot is bookable again")
}

func TestLifecycle_PastReservationIsLazilyDeleted(t *testing.T) {
	t.Run("on reserve", func(t *testing.T) {
		engine := testfixtures.NewEngine(t)
		engine.Book(t, "alice", "2024-06-10", "14:00")
		engine.Clock.Advance(3 * time.Hour)

		resp := engine.Handle(t, application.RequestReserve("alice"))
		assert.Equal(t, application.OutcomeOK, resp.Outcome)
		_, err := engine.Store.GetReservation(context.Background(), "alice")
		assert.ErrorIs(t, err, persistence.ErrNotFound)

		engine.Book(t, "alice", "2024-06-12", "09:00")
	})

	t.Run("on cancel", func(t *testing.T) {
		engine := testfixtures.NewEngine(t)
		engine.Book(t, "alice", "2024-06-10", "14:00")
		engine.Clock.Advance(3 * time.Hour)

		_, err := engine.Lifecycle.CurrentReservation(context.Background(), "alice")
		assert.ErrorIs(t, err, application.ErrNotFound)

		resp := engine.Handle(t, application.RequestCancel("alice"))
		assert.Equal(t, application.OutcomeNothingToCancel, resp.Outcome)
		assert.Empty(t, engine.Notifier.Cancelled())
		_, err = engine.Store.GetReservation(context.Background(), "alice")
		assert.ErrorIs(t, err, persistence.ErrNotFound)
	})
}

func TestLifecycle_NotifierFailureIsNotSurfaced(t *testing.T) {
	recorder := &testfixtures.RecordingNotifier{Err: errors.New("smtp down")}
	engine := testfixtures.NewEngine(t, testfixtures.WithEngineNotifier(recorder))

	engine.Book(t, "alice", "2024-06-11", "10:00")
	resp := engine.Handle(t, application.RequestCancel("alice"))
	assert.Equal(t, application.OutcomeCancelled, resp.Outcome)
	assert.Len(t, recorder.Confirmed(), 1)
	assert.Len(t, recorder.Cancelled(), 1)
}

func TestLifecycle_StorageFailureAbortsWithoutStateChange(t *testing.T) {
	spy, opt := withSpyStore()
	engine := testfixtures.NewEngine(t, opt)
	engine.Handle(t, application.DateSelected("alice", "2024-06-11"))

	spy.failPut(errors.New("disk full"))
	_, err := engine.Lifecycle.Handle(context.Background(), application.SlotSelected("alice", "10:00"))
	var storageErr *persistence.StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "storage", application.ErrorKind(err))

	_, pending := engine.Lifecycle.PendingSelection("alice")
	assert.True(t, pending, "the offer survives a failed write")
	assert.Empty(t, engine.Notifier.Confirmed())
}

func TestLifecycle_CancelledContext(t *testing.T) {
	engine := testfixtures.NewEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Lifecycle.Handle(ctx, application.RequestReserve("alice"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLifecycle_ConcurrentUsersRaceForOneSlot(t *testing.T) {
	for name, opts := range map[string][]testfixtures.EngineOption{
		"memory": nil,
		"sqlite": {testfixtures.WithEngineSQLite()},
	} {
		t.Run(name, func(t *testing.T) {
			engine := testfixtures.NewEngine(t, opts...)
			const racers = 10
			for i := 0; i < racers; i++ {
				engine.Handle(t, application.DateSelected(fmt.Sprintf("user-%d", i), "2024-06-12"))
			}

			outcomes := make(chan application.Outcome, racers)
			var wg sync.WaitGroup
			for i := 0; i < racers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					resp, err := engine.Lifecycle.Handle(context.Background(), application.SlotSelected(fmt.Sprintf("user-%d", i), "18:00"))
					if assert.NoError(t, err) {
						outcomes <- resp.Outcome
					}
				}(i)
			}
			wg.Wait()
			close(outcomes)

			counts := map[application.Outcome]int{}
			for outcome := range outcomes {
				counts[outcome]++
			}
			assert.Equal(t, 1, counts[application.OutcomeOK])
			assert.Equal(t, racers-1, counts[application.OutcomeSlotTaken])
		})
	}
}

func TestLifecycle_SameUserRequestsAreSerialized(t *testing.T) {
	engine := testfixtures.NewEngine(t)
	engine.Handle(t, application.DateSelected("alice", "2024-06-12"))

	var wg sync.WaitGroup
	results := make(chan application.Outcome, 6)
	for _, slot := range []string{"08:00", "09:00", "10:00", "11:00", "12:00", "13:00"} {
		wg.Add(1)
		go func(slot string) {
			defer wg.Done()
			resp, err := engine.Lifecycle.Handle(context.Background(), application.SlotSelected("alice", slot))
			if assert.NoError(t, err) {
				results <- resp.Outcome
			}
		}(slot)
	}
	wg.Wait()
	close(results)

	ok := 0
	for outcome := range results {
		if outcome == application.OutcomeOK {
			ok++
		}
	}
	assert.Equal(t, 1, ok, "a user never holds two live reservations")
}

func TestNewLifecycle_Validation(t *testing.T) {
	_, err := application.NewLifecycle(application.LifecycleConfig{})
	assert.Error(t, err)

	cal, err := scheduler.NewCalendar(time.UTC, 6, 21)
	require.NoError(t, err)
	_, err = application.NewLifecycle(application.LifecycleConfig{Calendar: cal})
	assert.Error(t, err)
	_, err = application.NewLifecycle(application.LifecycleConfig{Calendar: cal, Store: memory.Open(nil), HorizonDays: -1})
	assert.Error(t, err)
}

// spyStore counts range queries and can inject write failures.
type spyStore struct {
	persistence.ReservationRepository

	mu     sync.Mutex
	lists  int
	putErr error
}

func withSpyStore() (*spyStore, testfixtures.EngineOption) {
	spy := &spyStore{}
	return spy, testfixtures.WithEngineStore(func(_ testing.TB, now func() time.Time) application.ReservationStore {
		spy.ReservationRepository = memory.Open(now)
		return spy
	})
}

func (s *spyStore) ListReservationsBetween(ctx context.Context, from, to time.Time) ([]persistence.Reservation, error) {
	s.mu.Lock()
	s.lists++
	s.mu.Unlock()
	return s.ReservationRepository.ListReservationsBetween(ctx, from, to)
}

func (s *spyStore) PutReservation(ctx context.Context, userID string, start time.Time) (persistence.Reservation, error) {
	s.mu.Lock()
	err := s.putErr
	s.mu.Unlock()
	if err != nil {
		return persistence.Reservation{}, persistence.NewStorageError("put reservation", err)
	}
	return s.ReservationRepository.PutReservation(ctx, userID, start)
}

func (s *spyStore) listCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lists
}

func (s *spyStore) failPut(err error) {
	s.mu.Lock()
	s.putErr = err
	s.mu.Unlock()
}
