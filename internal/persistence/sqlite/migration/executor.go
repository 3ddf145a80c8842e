package migration

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// SQLiteExecutor implements Executor for SQLite databases.
type SQLiteExecutor struct {
	db  *sql.DB
	now func() time.Time
}

// NewExecutor creates a SQLite migration executor.
func NewExecutor(db *sql.DB) *SQLiteExecutor {
	return &SQLiteExecutor{db: db, now: time.Now}
}

// InitializeVersionTable creates the schema_migrations table if it doesn't exist.
func (e *SQLiteExecutor) InitializeVersionTable(ctx context.Context) error {
	const query = `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL,
			checksum TEXT NOT NULL DEFAULT '',
			execution_time_ms INTEGER NOT NULL DEFAULT 0
		)
	`
	if _, err := e.db.ExecContext(ctx, query); err != nil {
		return newMigrationError("", "", "create schema_migrations table", err)
	}
	return nil
}

// ExecuteMigration runs every statement of a migration within one transaction.
func (e *SQLiteExecutor) ExecuteMigration(ctx context.Context, migration Migration) (err error) {
	statements := splitStatements(migration.SQL)
	if len(statements) == 0 {
		return newMigrationError(migration.Version, migration.FilePath, "parse SQL",
			fmt.Errorf("%w: no SQL statements found", ErrInvalidMigrationFile))
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return newMigrationError(migration.Version, migration.FilePath, "begin transaction", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for i, stmt := range statements {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return newMigrationError(migration.Version, migration.FilePath, fmt.Sprintf("execute statement %d", i+1), err)
		}
	}

	if err = tx.Commit(); err != nil {
		return newMigrationError(migration.Version, migration.FilePath, "commit transaction", err)
	}
	return nil
}

// RecordMigration stores a successful migration in the version table.
func (e *SQLiteExecutor) RecordMigration(ctx context.Context, migration Migration, executionTime time.Duration) error {
	const query = `
		INSERT INTO schema_migrations (version, applied_at, checksum, execution_time_ms)
		VALUES (?, ?, ?, ?)
	`
	_, err := e.db.ExecContext(ctx, query,
		migration.Version,
		e.now().UTC().Format(time.RFC3339),
		migration.Checksum,
		executionTime.Milliseconds(),
	)
	if err != nil {
		return newMigrationError(migration.Version, migration.FilePath, "record migration", err)
	}
	return nil
}

// GetAppliedVersions returns all applied migrations in version order.
func (e *SQLiteExecutor) GetAppliedVersions(ctx context.Context) ([]AppliedMigration, error) {
	const query = `
		SELECT version, applied_at, execution_time_ms, checksum
		FROM schema_migrations
		ORDER BY CAST(version AS INTEGER) ASC
	`
	rows, err := e.db.QueryContext(ctx, query)
	if err != nil {
		return nil, newMigrationError("", "", "query applied versions", err)
	}
	defer rows.Close()

	var applied []AppliedMigration
	for rows.Next() {
		var (
			m         AppliedMigration
			appliedAt string
			elapsedMs int64
		)
		if err := rows.Scan(&m.Version, &appliedAt, &elapsedMs, &m.Checksum); err != nil {
			return nil, newMigrationError("", "", "scan applied version", err)
		}
		m.AppliedAt, _ = time.Parse(time.RFC3339, appliedAt)
		m.ExecutionTime = time.Duration(elapsedMs) * time.Millisecond
		applied = append(applied, m)
	}
	if err := rows.Err(); err != nil {
		return nil, newMigrationError("", "", "iterate applied versions", err)
	}
	return applied, nil
}

// splitStatements splits SQL content on semicolons and drops comment-only lines.
func splitStatements(content string) []string {
	var statements []string
	for _, raw := range strings.Split(content, ";") {
		var lines []string
		for _, line := range strings.Split(raw, "\n") {
			trimmed := strings.TrimSpace(line)
			if trimmed == "" || strings.HasPrefix(trimmed, "--") {
				continue
			}
			lines = append(lines, trimmed)
		}
		if len(lines) > 0 {
			statements = append(statements, strings.Join(lines, "\n"))
		}
	}
	return statements
}
