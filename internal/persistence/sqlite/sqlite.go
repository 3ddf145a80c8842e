// Package sqlite implements the persistence repositories on top of an
// embedded SQLite database.
package sqlite

import (
	"context"
	"embed"
	"fmt"
	"log/slog"

	"github.com/example/calendario-escolar/internal/persistence"
	"github.com/example/calendario-escolar/internal/persistence/sqlite/migration"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Storage bundles the SQLite repositories over a single connection pool.
type Storage struct {
	*UserRepository
	*CalendarioRepository
	*GradeHorariaRepository

	pool   *ConnectionPool
	logger *slog.Logger
}

var (
	_ persistence.UserRepository         = (*Storage)(nil)
	_ persistence.CalendarioRepository   = (*Storage)(nil)
	_ persistence.GradeHorariaRepository = (*Storage)(nil)
)

// Open opens the database file at path with the default configuration.
func Open(path string) (*Storage, error) {
	return OpenWithConfig(migration.DefaultSQLiteConfig(path), nil)
}

// OpenWithConfig opens the database described by cfg.
func OpenWithConfig(cfg migration.SQLiteConfig, logger *slog.Logger) (*Storage, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pool, err := NewConnectionPool(cfg)
	if err != nil {
		return nil, err
	}
	return &Storage{
		UserRepository:         NewUserRepository(pool),
		CalendarioRepository:   NewCalendarioRepository(pool),
		GradeHorariaRepository: NewGradeHorariaRepository(pool),
		pool:                   pool,
		logger:                 logger,
	}, nil
}

// Close releases the connection pool.
func (s *Storage) Close() error {
	return s.pool.Close()
}

// Ping checks that the database is reachable.
func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate applies the embedded schema migrations that have not run yet.
func (s *Storage) Migrate(ctx context.Context) error {
	manager := migration.NewManager(
		migration.NewScanner(migrationFiles, "migrations"),
		migration.NewExecutor(s.pool.DB()),
		s.logger,
	)
	if err := manager.RunMigrations(ctx); err != nil {
		return fmt.Errorf("sqlite: migrate: %w", err)
	}
	return nil
}

// MigrationStatus reports applied and pending migrations.
func (s *Storage) MigrationStatus(ctx context.Context) (migration.Status, error) {
	manager := migration.NewManager(
		migration.NewScanner(migrationFiles, "migrations"),
		migration.NewExecutor(s.pool.DB()),
		s.logger,
	)
	return manager.Status(ctx)
}
