package persistence

import "time"

// Reservation is the single court hour held by a user.
type Reservation struct {
	UserID    string
	StartTime time.Time
	CreatedAt time.Time
}

// LiveAt reports whether the reservation has not started yet at the given instant.
func (r Reservation) LiveAt(now time.Time) bool {
	return r.StartTime.After(now)
}
