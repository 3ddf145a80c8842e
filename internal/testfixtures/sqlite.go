package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/calendario-escolar/internal/persistence"
	"github.com/example/calendario-escolar/internal/persistence/sqlite"
)

// SQLiteHarness provides repository access backed by a temporary SQLite storage
// instance for integration-style persistence tests.
type SQLiteHarness struct {
	Storage     *sqlite.Storage
	Users       persistence.UserRepository
	Calendarios persistence.CalendarioRepository
	Grade       persistence.GradeHorariaRepository

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness constructs a SQLiteHarness using a temporary file that is
// migrated automatically. Callers may optionally invoke Close, but the helper
// will also register a cleanup callback with the provided testing.TB.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	dir := tb.TempDir()
	path := filepath.Join(dir, "calendario.db")

	storage, err := sqlite.Open(path)
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}

	if err := storage.Migrate(context.Background()); err != nil {
		_ = storage.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	harness := &SQLiteHarness{
		Storage:     storage,
		Users:       storage,
		Calendarios: storage,
		Grade:       storage,
		cleanup: func() {
			_ = storage.Close()
		},
	}

	tb.Cleanup(harness.Close)
	return harness
}

// SeedUsers inserts the given users, failing the test on the first error.
func (h *SQLiteHarness) SeedUsers(tb testing.TB, users ...UserFixture) {
	tb.Helper()
	for _, u := range users {
		if err := h.Users.CreateUser(context.Background(), u.Persistence()); err != nil {
			tb.Fatalf("failed to seed user %s: %v", u.ID, err)
		}
	}
}

// SeedCalendarios inserts the given calendars. Their owners must exist.
func (h *SQLiteHarness) SeedCalendarios(tb testing.TB, calendarios ...CalendarioFixture) {
	tb.Helper()
	for _, c := range calendarios {
		if err := h.Calendarios.CreateCalendario(context.Background(), c.Persistence()); err != nil {
			tb.Fatalf("failed to seed calendario %s: %v", c.ID, err)
		}
	}
}
