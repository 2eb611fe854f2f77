package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/court-reservations/internal/persistence"
)

var userCounter uint64

var referenceTime = time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ReservationReferenceTime is 09:30 UTC (12:30 in Nicosia) on a Monday in June,
// comfortably inside operating hours and away from DST transitions.
func ReservationReferenceTime() time.Time {
	return time.Date(2024, time.June, 10, 9, 30, 0, 0, time.UTC)
}

// NewUserID returns a unique deterministic user identifier.
func NewUserID() string {
	return fmt.Sprintf("user-%03d", atomic.AddUint64(&userCounter, 1))
}

// ReservationFixture describes a reservation to seed into a repository.
type ReservationFixture struct {
	UserID    string
	StartTime time.Time
	CreatedAt time.Time
}

// ReservationOption configures a ReservationFixture.
type ReservationOption func(*ReservationFixture)

// NewReservationFixture returns a reservation one hour after the reference time,
// truncated to the hour.
func NewReservationFixture(opts ...ReservationOption) ReservationFixture {
	ref := ReservationReferenceTime()
	fixture := ReservationFixture{
		UserID:    NewUserID(),
		StartTime: ref.Truncate(time.Hour).Add(time.Hour),
		CreatedAt: ref,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithReservationUser overrides the user ID.
func WithReservationUser(id string) ReservationOption {
	return func(f *ReservationFixture) {
		f.UserID = id
	}
}

// WithReservationStart overrides the start time.
func WithReservationStart(start time.Time) ReservationOption {
	return func(f *ReservationFixture) {
		f.StartTime = start
	}
}

// Persistence converts the fixture into the persistence model.
func (f ReservationFixture) Persistence() persistence.Reservation {
	return persistence.Reservation{
		UserID:    f.UserID,
		StartTime: f.StartTime,
		CreatedAt: f.CreatedAt,
	}
}
