package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/court-reservations/internal/config"
	"github.com/example/court-reservations/internal/persistence"
	"github.com/example/court-reservations/internal/persistence/memory"
	"github.com/example/court-reservations/internal/persistence/postgres"
	"github.com/example/court-reservations/internal/persistence/sqlite"
)

type store interface {
	persistence.ReservationRepository
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

func openStore(ctx context.Context, cfg config.Config, now func() time.Time, logger *slog.Logger) (store, error) {
	switch cfg.StoreDriver {
	case config.DriverSQLite:
		st, err := sqlite.Open(cfg.SQLitePath, sqlite.Options{Now: now, Logger: logger})
		if err != nil {
			return nil, err
		}
		return st, nil
	case config.DriverPostgres:
		st, err := postgres.Open(ctx, cfg.PostgresURL, now)
		if err != nil {
			return nil, err
		}
		return st, nil
	case config.DriverMemory:
		return memory.Open(now), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// openMigratedStore opens the configured store and brings its schema up to date.
func openMigratedStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (store, error) {
	st, err := openStore(ctx, cfg, time.Now, logger)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.StoreDriver, err)
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("migrate %s store: %w", cfg.StoreDriver, err)
	}
	return st, nil
}
