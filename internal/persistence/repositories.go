package persistence

import (
	"context"
	"time"
)

// ReservationRepository stores at most one reservation per user and at most one user
// per start time.
type ReservationRepository interface {
	// GetReservation returns ErrNotFound when the user holds nothing.
	GetReservation(ctx context.Context, userID string) (Reservation, error)
	// PutReservation atomically checks and inserts. A live reservation of the same user
	// or any reservation of another user at start yields a *ConflictError; a past
	// reservation of the same user is replaced.
	PutReservation(ctx context.Context, userID string, start time.Time) (Reservation, error)
	// DeleteReservation is a no-op when the user holds nothing.
	DeleteReservation(ctx context.Context, userID string) error
	// ListReservations returns every stored reservation ordered by start time.
	ListReservations(ctx context.Context) ([]Reservation, error)
	// ListReservationsBetween returns reservations with from <= start < to.
	ListReservationsBetween(ctx context.Context, from, to time.Time) ([]Reservation, error)
}
