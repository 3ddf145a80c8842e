package migration

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Manager applies pending migrations in version order.
type Manager struct {
	scanner  Scanner
	executor Executor
	logger   *slog.Logger
}

// NewManager constructs a Manager.
func NewManager(scanner Scanner, executor Executor, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{scanner: scanner, executor: executor, logger: logger.With("component", "migration")}
}

// RunMigrations executes all pending migrations sequentially, stopping at the
// first failure.
func (m *Manager) RunMigrations(ctx context.Context) error {
	status, err := m.Status(ctx)
	if err != nil {
		return err
	}

	if len(status.Pending) == 0 {
		m.logger.InfoContext(ctx, "database schema up to date", "version", status.CurrentVersion)
		return nil
	}

	for _, migration := range status.Pending {
		start := time.Now()
		logger := m.logger.With("version", migration.Version, "description", migration.Description)

		if err := m.executor.ExecuteMigration(ctx, migration); err != nil {
			logger.ErrorContext(ctx, "migration failed", "error", err)
			return fmt.Errorf("%w: %v", ErrMigrationFailed, err)
		}
		elapsed := time.Since(start)
		if err := m.executor.RecordMigration(ctx, migration, elapsed); err != nil {
			logger.ErrorContext(ctx, "failed to record migration", "error", err)
			return err
		}
		logger.InfoContext(ctx, "migration applied", "duration", elapsed)
	}
	return nil
}

// Status reports the applied and pending migrations after validating that the
// files on disk still match the recorded history.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	if err := m.executor.InitializeVersionTable(ctx); err != nil {
		return Status{}, err
	}

	available, err := m.scanner.ScanMigrations()
	if err != nil {
		return Status{}, err
	}
	applied, err := m.executor.GetAppliedVersions(ctx)
	if err != nil {
		return Status{}, err
	}

	if err := validateSequence(available, applied); err != nil {
		return Status{}, err
	}

	appliedSet := make(map[string]struct{}, len(applied))
	for _, a := range applied {
		appliedSet[a.Version] = struct{}{}
	}

	status := Status{Applied: applied}
	if len(applied) > 0 {
		status.CurrentVersion = applied[len(applied)-1].Version
	}
	for _, migration := range available {
		if _, ok := appliedSet[migration.Version]; !ok {
			status.Pending = append(status.Pending, migration)
		}
	}
	return status, nil
}

func validateSequence(available []Migration, applied []AppliedMigration) error {
	byVersion := make(map[int]Migration, len(available))
	for i, migration := range available {
		n := versionNumber(migration.Version)
		if i > 0 && n != versionNumber(available[i-1].Version)+1 {
			return fmt.Errorf("%w: missing migration before %s", ErrVersionConflict, migration.Version)
		}
		byVersion[n] = migration
	}

	for _, a := range applied {
		migration, ok := byVersion[versionNumber(a.Version)]
		if !ok {
			return fmt.Errorf("%w: applied migration %s has no file", ErrVersionConflict, a.Version)
		}
		if a.Checksum != "" && a.Checksum != migration.Checksum {
			return fmt.Errorf("%w: %s", ErrChecksumMismatch, a.Version)
		}
	}
	return nil
}
