// Package sqlite provides the SQLite-backed reservation store.
package sqlite

import (
	"context"
	"embed"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"time"

	"github.com/example/court-reservations/internal/persistence/sqlite/migration"
)

//go:embed schema/*.sql
var schemaFiles embed.FS

// Schema returns the embedded migration files.
func Schema() fs.FS {
	sub, err := fs.Sub(schemaFiles, "schema")
	if err != nil {
		panic(fmt.Sprintf("sqlite: embedded schema: %v", err))
	}
	return sub
}

// Storage bundles the connection pool with the repositories built on it.
type Storage struct {
	*ReservationRepository

	pool   *ConnectionPool
	logger *slog.Logger
}

// Options configures Open.
type Options struct {
	// Now decides reservation liveness. Defaults to time.Now.
	Now    func() time.Time
	Logger *slog.Logger
}

// Open opens (creating if needed) the database at path. Use migration.MemoryPath
// for a throwaway database.
func Open(path string, opts Options) (*Storage, error) {
	pool, err := NewConnectionPool(migration.DefaultSQLiteConfig(path))
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Storage{
		ReservationRepository: NewReservationRepository(pool, opts.Now),
		pool:                  pool,
		logger:                logger,
	}, nil
}

// Migrate applies pending schema migrations.
func (s *Storage) Migrate(ctx context.Context) error {
	manager := migration.NewManager(migration.NewExecutor(s.pool.DB()), Schema(), s.logger)
	if _, err := manager.Run(ctx); err != nil {
		return fmt.Errorf("sqlite: migrate: %w", err)
	}
	return nil
}

// MigrationStatus reports applied and pending schema versions.
func (s *Storage) MigrationStatus(ctx context.Context) (migration.Status, error) {
	return migration.NewManager(migration.NewExecutor(s.pool.DB()), Schema(), s.logger).Status(ctx)
}

// Ping checks the database connection.
func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the database handle.
func (s *Storage) Close() error {
	return s.pool.Close()
}
