package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/court-reservations/internal/persistence"
)

const timeLayout = time.RFC3339

// ReservationRepository implements persistence.ReservationRepository using SQLite.
type ReservationRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
	retry  *RetryHelper
	now    func() time.Time
}

// NewReservationRepository creates a SQLite reservation repository. now decides
// which stored reservations are still live.
func NewReservationRepository(pool *ConnectionPool, now func() time.Time) *ReservationRepository {
	if now == nil {
		now = time.Now
	}
	return &ReservationRepository{
		pool:   pool,
		mapper: NewErrorMapper(),
		retry:  NewRetryHelper(DefaultRetryConfig()),
		now:    now,
	}
}

var _ persistence.ReservationRepository = (*ReservationRepository)(nil)

// GetReservation returns the user's reservation or persistence.ErrNotFound.
func (r *ReservationRepository) GetReservation(ctx context.Context, userID string) (persistence.Reservation, error) {
	reservation, err := getReservation(ctx, r.pool.DB(), userID)
	if err != nil {
		return persistence.Reservation{}, persistence.NewStorageError("get reservation", err)
	}
	return reservation, nil
}

// PutReservation checks both uniqueness rules and inserts inside one transaction.
func (r *ReservationRepository) PutReservation(ctx context.Context, userID string, start time.Time) (persistence.Reservation, error) {
	var stored persistence.Reservation
	err := r.retry.WithRetry(ctx, func() error {
		return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			existing, err := getReservation(ctx, tx, userID)
			switch {
			case err == nil && existing.LiveAt(r.now()):
				return &persistence.ConflictError{UserID: userID, StartTime: start, Reason: persistence.ErrActiveReservation}
			case err == nil:
				if _, err := tx.ExecContext(ctx, `DELETE FROM reservations WHERE user_id = ?`, userID); err != nil {
					return fmt.Errorf("replace past reservation: %w", err)
				}
			case !errors.Is(err, persistence.ErrNotFound):
				return err
			}

			var holder string
			err = tx.QueryRowContext(ctx, `SELECT user_id FROM reservations WHERE start_time = ?`, formatTime(start)).Scan(&holder)
			switch {
			case err == nil:
				return &persistence.ConflictError{UserID: userID, StartTime: start, Reason: persistence.ErrSlotTaken}
			case !errors.Is(err, sql.ErrNoRows):
				return fmt.Errorf("check slot: %w", err)
			}

			candidate := persistence.Reservation{
				UserID:    userID,
				StartTime: start.UTC(),
				CreatedAt: r.now().UTC().Truncate(time.Second),
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO reservations (user_id, start_time, created_at) VALUES (?, ?, ?)`,
				candidate.UserID, formatTime(candidate.StartTime), formatTime(candidate.CreatedAt),
			); err != nil {
				return r.mapper.MapError(userID, start, err)
			}
			stored = candidate
			return nil
		})
	})
	if err != nil {
		return persistence.Reservation{}, persistence.NewStorageError("put reservation", err)
	}
	return stored, nil
}

// DeleteReservation removes the user's reservation if present.
func (r *ReservationRepository) DeleteReservation(ctx context.Context, userID string) error {
	err := r.retry.WithRetry(ctx, func() error {
		_, err := r.pool.DB().ExecContext(ctx, `DELETE FROM reservations WHERE user_id = ?`, userID)
		return err
	})
	return persistence.NewStorageError("delete reservation", err)
}

// ListReservations returns every reservation ordered by start time.
func (r *ReservationRepository) ListReservations(ctx context.Context) ([]persistence.Reservation, error) {
	reservations, err := queryReservations(ctx, r.pool.DB(),
		`SELECT user_id, start_time, created_at FROM reservations ORDER BY start_time ASC`)
	if err != nil {
		return nil, persistence.NewStorageError("list reservations", err)
	}
	return reservations, nil
}

// ListReservationsBetween returns reservations with from <= start < to.
func (r *ReservationRepository) ListReservationsBetween(ctx context.Context, from, to time.Time) ([]persistence.Reservation, error) {
	reservations, err := queryReservations(ctx, r.pool.DB(),
		`SELECT user_id, start_time, created_at FROM reservations
		 WHERE start_time >= ? AND start_time < ?
		 ORDER BY start_time ASC`,
		formatTime(from), formatTime(to))
	if err != nil {
		return nil, persistence.NewStorageError("list reservations between", err)
	}
	return reservations, nil
}

func getReservation(ctx context.Context, q querier, userID string) (persistence.Reservation, error) {
	row := q.QueryRowContext(ctx,
		`SELECT user_id, start_time, created_at FROM reservations WHERE user_id = ?`, userID)
	reservation, err := scanReservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.Reservation{}, persistence.ErrNotFound
	}
	return reservation, err
}

func queryReservations(ctx context.Context, q querier, query string, args ...any) ([]persistence.Reservation, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reservations := []persistence.Reservation{}
	for rows.Next() {
		reservation, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		reservations = append(reservations, reservation)
	}
	return reservations, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReservation(s scanner) (persistence.Reservation, error) {
	var (
		reservation persistence.Reservation
		start       string
		created     string
	)
	if err := s.Scan(&reservation.UserID, &start, &created); err != nil {
		return persistence.Reservation{}, err
	}
	var err error
	if reservation.StartTime, err = time.Parse(timeLayout, start); err != nil {
		return persistence.Reservation{}, fmt.Errorf("parse start_time %q: %w", start, err)
	}
	if reservation.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return persistence.Reservation{}, fmt.Errorf("parse created_at %q: %w", created, err)
	}
	return reservation, nil
}

// formatTime renders UTC RFC3339 with whole seconds so stored values sort lexically.
func formatTime(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(timeLayout)
}
