package migration

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
)

// Manager brings a database up to the newest version found in its source.
type Manager struct {
	executor *Executor
	source   fs.FS
	logger   *slog.Logger
}

// NewManager creates a Manager. A nil logger discards output.
func NewManager(executor *Executor, source fs.FS, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Manager{executor: executor, source: source, logger: logger.With("component", "migration")}
}

// Run applies pending migrations in version order and returns how many ran.
func (m *Manager) Run(ctx context.Context) (int, error) {
	if err := m.executor.InitializeVersionTable(ctx); err != nil {
		return 0, fmt.Errorf("initialize version table: %w", err)
	}

	status, err := m.Status(ctx)
	if err != nil {
		return 0, err
	}
	if len(status.Pending) == 0 {
		m.logger.DebugContext(ctx, "schema up to date", "version", status.CurrentVersion)
		return 0, nil
	}

	for i, migration := range status.Pending {
		m.logger.InfoContext(ctx, "applying migration",
			"version", migration.Version,
			"description", migration.Description,
			"position", i+1,
			"pending", len(status.Pending),
		)
		if err := m.executor.Apply(ctx, migration); err != nil {
			m.logger.ErrorContext(ctx, "migration failed", "version", migration.Version, "error", err)
			return i, NewMigrationError(migration.Version, migration.Name, "execute migration",
				fmt.Errorf("%w: %w", ErrMigrationFailed, err))
		}
	}

	m.logger.InfoContext(ctx, "migrations complete", "applied", len(status.Pending))
	return len(status.Pending), nil
}

// Status compares the source files with the recorded versions.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	available, err := Scan(m.source)
	if err != nil {
		return Status{}, fmt.Errorf("scan migrations: %w", err)
	}
	if err := m.executor.InitializeVersionTable(ctx); err != nil {
		return Status{}, fmt.Errorf("initialize version table: %w", err)
	}
	applied, err := m.executor.Applied(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("get applied versions: %w", err)
	}
	if err := validateSequence(available, applied); err != nil {
		return Status{}, err
	}

	appliedByVersion := make(map[int]AppliedMigration, len(applied))
	status := Status{Applied: applied}
	for _, a := range applied {
		appliedByVersion[versionNumber(a.Version)] = a
		if status.CurrentVersion == "" || versionNumber(a.Version) > versionNumber(status.CurrentVersion) {
			status.CurrentVersion = a.Version
		}
	}
	for _, migration := range available {
		record, ok := appliedByVersion[versionNumber(migration.Version)]
		if !ok {
			status.Pending = append(status.Pending, migration)
			continue
		}
		if record.Checksum != "" && record.Checksum != migration.Checksum {
			return Status{}, NewMigrationError(migration.Version, migration.Name, "verify checksum", ErrChecksumMismatch)
		}
	}
	return status, nil
}

// validateSequence rejects gaps in the available versions and applied versions with
// no file.
func validateSequence(available []Migration, applied []AppliedMigration) error {
	known := make(map[int]bool, len(available))
	for i, migration := range available {
		v := versionNumber(migration.Version)
		known[v] = true
		if i > 0 && v != versionNumber(available[i-1].Version)+1 {
			return fmt.Errorf("%w: missing migration version %03d in sequence", ErrVersionConflict, versionNumber(available[i-1].Version)+1)
		}
	}
	for _, a := range applied {
		if !known[versionNumber(a.Version)] {
			return fmt.Errorf("%w: applied migration %s not found in available migrations", ErrVersionConflict, a.Version)
		}
	}
	return nil
}
