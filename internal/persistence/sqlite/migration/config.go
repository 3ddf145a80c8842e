package migration

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteConfig holds SQLite-specific database configuration.
type SQLiteConfig struct {
	// Path is the database file path, or ":memory:".
	Path string
	// BusyTimeout sets how long to wait for database locks.
	BusyTimeout time.Duration
	// EnableForeignKeys enables foreign key constraint checking.
	EnableForeignKeys bool
	// JournalMode sets the SQLite journal mode (WAL, DELETE, MEMORY, ...).
	JournalMode string
	// Synchronous sets the synchronous mode (FULL, NORMAL, OFF).
	Synchronous string
	// MaxOpenConns sets the maximum number of open connections.
	MaxOpenConns int
	// MaxIdleConns sets the maximum number of idle connections.
	MaxIdleConns int
	// ConnMaxLifetime bounds how long a connection is reused.
	ConnMaxLifetime time.Duration
}

// DefaultSQLiteConfig returns a configuration suited to the API process.
func DefaultSQLiteConfig(path string) SQLiteConfig {
	return SQLiteConfig{
		Path:              path,
		BusyTimeout:       5 * time.Second,
		EnableForeignKeys: true,
		JournalMode:       "WAL",
		Synchronous:       "NORMAL",
		MaxOpenConns:      8,
		MaxIdleConns:      4,
		ConnMaxLifetime:   30 * time.Minute,
	}
}

// Validate checks the configuration for unsupported values.
func (c SQLiteConfig) Validate() error {
	if strings.TrimSpace(c.Path) == "" {
		return fmt.Errorf("sqlite path cannot be empty")
	}
	if c.BusyTimeout < 0 {
		return fmt.Errorf("busy timeout cannot be negative")
	}
	switch strings.ToUpper(c.JournalMode) {
	case "", "DELETE", "TRUNCATE", "PERSIST", "MEMORY", "WAL", "OFF":
	default:
		return fmt.Errorf("invalid journal mode: %s", c.JournalMode)
	}
	switch strings.ToUpper(c.Synchronous) {
	case "", "OFF", "NORMAL", "FULL", "EXTRA":
	default:
		return fmt.Errorf("invalid synchronous mode: %s", c.Synchronous)
	}
	if c.MaxOpenConns < 0 || c.MaxIdleConns < 0 || c.ConnMaxLifetime < 0 {
		return fmt.Errorf("connection pool limits cannot be negative")
	}
	return nil
}

// DSN renders the configuration as a modernc.org/sqlite connection string.
// Pragmas are passed through the DSN so every pooled connection applies them.
func (c SQLiteConfig) DSN() string {
	path := strings.TrimPrefix(c.Path, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}

	params := url.Values{}
	if c.BusyTimeout > 0 {
		params.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", c.BusyTimeout.Milliseconds()))
	}
	if c.EnableForeignKeys {
		params.Add("_pragma", "foreign_keys(1)")
	}
	if c.JournalMode != "" {
		params.Add("_pragma", fmt.Sprintf("journal_mode(%s)", strings.ToUpper(c.JournalMode)))
	}
	if c.Synchronous != "" {
		params.Add("_pragma", fmt.Sprintf("synchronous(%s)", strings.ToUpper(c.Synchronous)))
	}

	dsn := "file:" + path
	if encoded := params.Encode(); encoded != "" {
		dsn += "?" + encoded
	}
	return dsn
}

// OpenDatabase validates the configuration, creates the parent directory of
// the database file and returns a pinged connection pool.
func OpenDatabase(c SQLiteConfig) (*sql.DB, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid SQLite configuration: %w", err)
	}

	if c.Path != ":memory:" {
		dir := filepath.Dir(strings.TrimPrefix(c.Path, "file:"))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", c.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	if c.Path == ":memory:" {
		db.SetMaxOpenConns(1)
	} else if c.MaxOpenConns > 0 {
		db.SetMaxOpenConns(c.MaxOpenConns)
	}
	if c.MaxIdleConns > 0 {
		db.SetMaxIdleConns(c.MaxIdleConns)
	}
	if c.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(c.ConnMaxLifetime)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}
	return db, nil
}
