package migration

import (
	"context"
	"time"
)

// Migration represents a database migration with its metadata and SQL content.
type Migration struct {
	Version     string // Version identifier (e.g., "001", "002")
	Description string // Human-readable description of the migration
	SQL         string // SQL statements to execute
	FilePath    string // Path of the file inside the scanned filesystem
	Checksum    string // SHA-256 of the SQL content
}

// AppliedMigration represents a migration that has been successfully applied.
type AppliedMigration struct {
	Version       string
	AppliedAt     time.Time
	ExecutionTime time.Duration
	Checksum      string
}

// Status summarises applied and pending migrations.
type Status struct {
	CurrentVersion string
	Applied        []AppliedMigration
	Pending        []Migration
}

// Scanner lists the migrations available to a manager.
type Scanner interface {
	ScanMigrations() ([]Migration, error)
}

// Executor runs migrations and tracks which versions have been applied.
type Executor interface {
	InitializeVersionTable(ctx context.Context) error
	ExecuteMigration(ctx context.Context, migration Migration) error
	RecordMigration(ctx context.Context, migration Migration, executionTime time.Duration) error
	GetAppliedVersions(ctx context.Context) ([]AppliedMigration, error)
}
