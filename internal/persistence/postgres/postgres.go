// Package postgres provides the PostgreSQL-backed reservation store for
// deployments that run more than one service instance.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/court-reservations/internal/persistence"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const uniqueViolation = "23505"

// Storage implements persistence.ReservationRepository on a pgx pool.
type Storage struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

var _ persistence.ReservationRepository = (*Storage)(nil)

// Open connects to databaseURL. now decides reservation liveness.
func Open(ctx context.Context, databaseURL string, now func() time.Time) (*Storage, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}
	cfg.MaxConnLifetime = 5 * time.Minute
	cfg.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if now == nil {
		now = time.Now
	}
	return &Storage{pool: pool, now: now}, nil
}

// Close releases the pool.
func (s *Storage) Close() error {
	s.pool.Close()
	return nil
}

// Ping checks connectivity.
func (s *Storage) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return s.pool.Ping(ctx)
}

// Migrate applies embedded migrations not yet recorded in schema_migrations.
func (s *Storage) Migrate(ctx context.Context) error {
	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	if _, err := s.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY)`); err != nil {
		return fmt.Errorf("postgres: create schema_migrations: %w", err)
	}

	for _, f := range files {
		var applied bool
		if err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version=$1)`, f).Scan(&applied); err != nil {
			return err
		}
		if applied {
			continue
		}
		body, err := migrationFiles.ReadFile("migrations/" + f)
		if err != nil {
			return err
		}
		err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, string(body)); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, `INSERT INTO schema_migrations(version) VALUES ($1)`, f)
			return err
		})
		if err != nil {
			return fmt.Errorf("postgres: apply %s: %w", f, err)
		}
	}
	return nil
}

// GetReservation returns the user's reservation or persistence.ErrNotFound.
func (s *Storage) GetReservation(ctx context.Context, userID string) (persistence.Reservation, error) {
	reservation, err := getReservation(ctx, s.pool, userID)
	if err != nil {
		return persistence.Reservation{}, persistence.NewStorageError("get reservation", err)
	}
	return reservation, nil
}

// PutReservation checks and inserts in one transaction. Concurrent inserts that
// slip past the check are caught by the primary key and unique constraint.
func (s *Storage) PutReservation(ctx context.Context, userID string, start time.Time) (persistence.Reservation, error) {
	candidate := persistence.Reservation{
		UserID:    userID,
		StartTime: start.UTC().Truncate(time.Second),
		CreatedAt: s.now().UTC().Truncate(time.Second),
	}

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		existing, err := getReservation(ctx, tx, userID)
		switch {
		case err == nil && existing.LiveAt(s.now()):
			return &persistence.ConflictError{UserID: userID, StartTime: start, Reason: persistence.ErrActiveReservation}
		case err == nil:
			if _, err := tx.Exec(ctx, `DELETE FROM reservations WHERE user_id=$1`, userID); err != nil {
				return fmt.Errorf("replace past reservation: %w", err)
			}
		case !errors.Is(err, persistence.ErrNotFound):
			return err
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO reservations (user_id, start_time, created_at) VALUES ($1, $2, $3)`,
			candidate.UserID, candidate.StartTime, candidate.CreatedAt)
		return mapError(userID, start, err)
	})
	if err != nil {
		return persistence.Reservation{}, persistence.NewStorageError("put reservation", err)
	}
	return candidate, nil
}

// DeleteReservation removes the user's reservation if present.
func (s *Storage) DeleteReservation(ctx context.Context, userID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM reservations WHERE user_id=$1`, userID)
	return persistence.NewStorageError("delete reservation", err)
}

// ListReservations returns every reservation ordered by start time.
func (s *Storage) ListReservations(ctx context.Context) ([]persistence.Reservation, error) {
	reservations, err := queryReservations(ctx, s.pool,
		`SELECT user_id, start_time, created_at FROM reservations ORDER BY start_time ASC`)
	if err != nil {
		return nil, persistence.NewStorageError("list reservations", err)
	}
	return reservations, nil
}

// ListReservationsBetween returns reservations with from <= start < to.
func (s *Storage) ListReservationsBetween(ctx context.Context, from, to time.Time) ([]persistence.Reservation, error) {
	reservations, err := queryReservations(ctx, s.pool,
		`SELECT user_id, start_time, created_at FROM reservations
		 WHERE start_time >= $1 AND start_time < $2
		 ORDER BY start_time ASC`, from, to)
	if err != nil {
		return nil, persistence.NewStorageError("list reservations between", err)
	}
	return reservations, nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func getReservation(ctx context.Context, q querier, userID string) (persistence.Reservation, error) {
	var r persistence.Reservation
	err := q.QueryRow(ctx, `SELECT user_id, start_time, created_at FROM reservations WHERE user_id=$1`, userID).
		Scan(&r.UserID, &r.StartTime, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return persistence.Reservation{}, persistence.ErrNotFound
	}
	return r, err
}

func queryReservations(ctx context.Context, q querier, sql string, args ...any) ([]persistence.Reservation, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reservations := []persistence.Reservation{}
	for rows.Next() {
		var r persistence.Reservation
		if err := rows.Scan(&r.UserID, &r.StartTime, &r.CreatedAt); err != nil {
			return nil, err
		}
		reservations = append(reservations, r)
	}
	return reservations, rows.Err()
}

// mapError turns unique violations into conflicts.
func mapError(userID string, start time.Time, err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return err
	}
	reason := persistence.ErrActiveReservation
	if pgErr.ConstraintName == "reservations_start_time_key" {
		reason = persistence.ErrSlotTaken
	}
	return &persistence.ConflictError{UserID: userID, StartTime: start, Reason: reason}
}
