package notify

import (
	"context"
	"errors"

	"github.com/example/court-reservations/internal/application"
	"github.com/example/court-reservations/internal/persistence"
)

// Multi fans every notification out to all notifiers, joining their errors.
type Multi []application.Notifier

// ReservationConfirmed notifies every member.
func (m Multi) ReservationConfirmed(ctx context.Context, r persistence.Reservation) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.ReservationConfirmed(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ReservationCancelled notifies every member.
func (m Multi) ReservationCancelled(ctx context.Context, r persistence.Reservation) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.ReservationCancelled(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
