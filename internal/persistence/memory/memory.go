// Package memory provides a process-local reservation store for tests and
// single-instance deployments that do not need durability.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/example/court-reservations/internal/persistence"
)

// Storage keeps reservations in maps guarded by one mutex.
type Storage struct {
	mu     sync.RWMutex
	byUser map[string]persistence.Reservation
	bySlot map[int64]string
	now    func() time.Time
}

// Open returns an empty Storage. now decides reservation liveness.
func Open(now func() time.Time) *Storage {
	if now == nil {
		now = time.Now
	}
	return &Storage{
		byUser: make(map[string]persistence.Reservation),
		bySlot: make(map[int64]string),
		now:    now,
	}
}

var _ persistence.ReservationRepository = (*Storage)(nil)

// Close releases resources held by the storage. No-op for the in-memory implementation.
func (s *Storage) Close() error {
	return nil
}

// Migrate initialises the storage. No-op for the in-memory implementation.
func (s *Storage) Migrate(context.Context) error {
	return nil
}

// Ping reports whether ctx is still usable.
func (s *Storage) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return persistence.NewStorageError("ping", err)
	}
	return nil
}

// GetReservation returns the user's reservation or persistence.ErrNotFound.
func (s *Storage) GetReservation(ctx context.Context, userID string) (persistence.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return persistence.Reservation{}, persistence.NewStorageError("get reservation", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	reservation, ok := s.byUser[userID]
	if !ok {
		return persistence.Reservation{}, persistence.ErrNotFound
	}
	return reservation, nil
}

// PutReservation checks both uniqueness rules and inserts under the write lock.
func (s *Storage) PutReservation(ctx context.Context, userID string, start time.Time) (persistence.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return persistence.Reservation{}, persistence.NewStorageError("put reservation", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if existing, ok := s.byUser[userID]; ok {
		if existing.LiveAt(now) {
			return persistence.Reservation{}, &persistence.ConflictError{UserID: userID, StartTime: start, Reason: persistence.ErrActiveReservation}
		}
		s.removeLocked(existing)
	}

	key := slotKey(start)
	if _, taken := s.bySlot[key]; taken {
		return persistence.Reservation{}, &persistence.ConflictError{UserID: userID, StartTime: start, Reason: persistence.ErrSlotTaken}
	}

	reservation := persistence.Reservation{
		UserID:    userID,
		StartTime: start.UTC().Truncate(time.Second),
		CreatedAt: now.UTC().Truncate(time.Second),
	}
	s.byUser[userID] = reservation
	s.bySlot[key] = userID
	return reservation, nil
}

// DeleteReservation removes the user's reservation if present.
func (s *Storage) DeleteReservation(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return persistence.NewStorageError("delete reservation", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.byUser[userID]; ok {
		s.removeLocked(existing)
	}
	return nil
}

// ListReservations returns every reservation ordered by start time.
func (s *Storage) ListReservations(ctx context.Context) ([]persistence.Reservation, error) {
	return s.list(ctx, func(persistence.Reservation) bool { return true })
}

// ListReservationsBetween returns reservations with from <= start < to.
func (s *Storage) ListReservationsBetween(ctx context.Context, from, to time.Time) ([]persistence.Reservation, error) {
	return s.list(ctx, func(r persistence.Reservation) bool {
		return !r.StartTime.Before(from) && r.StartTime.Before(to)
	})
}

func (s *Storage) list(ctx context.Context, keep func(persistence.Reservation) bool) ([]persistence.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, persistence.NewStorageError("list reservations", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	reservations := make([]persistence.Reservation, 0, len(s.byUser))
	for _, r := range s.byUser {
		if keep(r) {
			reservations = append(reservations, r)
		}
	}
	sort.Slice(reservations, func(i, j int) bool {
		return reservations[i].StartTime.Before(reservations[j].StartTime)
	})
	return reservations, nil
}

func (s *Storage) removeLocked(r persistence.Reservation) {
	delete(s.byUser, r.UserID)
	key := slotKey(r.StartTime)
	if s.bySlot[key] == r.UserID {
		delete(s.bySlot, key)
	}
}

func slotKey(t time.Time) int64 {
	return t.Truncate(time.Second).Unix()
}
