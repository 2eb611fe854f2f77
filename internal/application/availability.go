package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/court-reservations/internal/persistence"
	"github.com/example/court-reservations/internal/scheduler"
)

// DefaultBookingBuffer is the minimum lead time between now and a bookable slot.
const DefaultBookingBuffer = 5 * time.Minute

// ReservationLister is the read side the resolver needs.
type ReservationLister interface {
	ListReservationsBetween(ctx context.Context, from, to time.Time) ([]persistence.Reservation, error)
}

// AvailabilityResolver computes the slots still bookable on a day.
type AvailabilityResolver struct {
	calendar *scheduler.Calendar
	store    ReservationLister
	buffer   time.Duration
}

// NewAvailabilityResolver wires the resolver. A negative buffer is treated as zero.
func NewAvailabilityResolver(calendar *scheduler.Calendar, store ReservationLister, buffer time.Duration) *AvailabilityResolver {
	if buffer < 0 {
		buffer = 0
	}
	return &AvailabilityResolver{calendar: calendar, store: store, buffer: buffer}
}

// Buffer returns the configured lead time.
func (r *AvailabilityResolver) Buffer() time.Duration {
	return r.buffer
}

// Available returns the candidate slots of date minus reserved hours minus slots
// starting before now+buffer, in chronological order. The booking horizon is not
// checked here.
func (r *AvailabilityResolver) Available(ctx context.Context, date, now time.Time) ([]scheduler.Slot, error) {
	candidates, err := r.calendar.CandidateSlots(date)
	if err != nil {
		if errors.Is(err, scheduler.ErrInvalidDate) {
			return nil, fieldError("date", "a calendar date is required")
		}
		return nil, err
	}

	dayStart := r.calendar.Day(date, 0)
	reservations, err := r.store.ListReservationsBetween(ctx, dayStart, r.calendar.Day(date, 1))
	if err != nil {
		return nil, fmt.Errorf("list reservations for %s: %w", dayStart.Format(scheduler.DateLayout), err)
	}
	reserved := make([]time.Time, 0, len(reservations))
	for _, reservation := range reservations {
		reserved = append(reserved, reservation.StartTime)
	}

	free := scheduler.RemoveReserved(candidates, reserved)
	return scheduler.StartingFrom(free, now.Add(r.buffer)), nil
}
