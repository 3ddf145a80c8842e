package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/example/calendario-escolar/internal/domain"
	"github.com/example/calendario-escolar/internal/persistence"
)

// UserRepository implements persistence.UserRepository using SQLite
type UserRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
	retry  *RetryHelper
}

// NewUserRepository creates a new SQLite user repository
func NewUserRepository(pool *ConnectionPool) *UserRepository {
	return &UserRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
		retry:  NewRetryHelper(DefaultRetryConfig()),
	}
}

const userColumns = `id, nome, email, password_hash, role, status, ativo,
	disciplinas, turmas, preferencias, created_at, updated_at`

// CreateUser inserts a new user. The ativo column is derived from the status.
func (r *UserRepository) CreateUser(ctx context.Context, user persistence.User) error {
	if user.ID == "" || user.PasswordHash == "" {
		return persistence.ErrConstraintViolation
	}

	disciplinas, turmas, preferencias, err := encodeUserLists(user)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	return r.retry.WithRetry(ctx, func() error {
		_, err := r.helper.Exec(ctx, query,
			user.ID,
			user.Nome,
			normalizeEmail(user.Email),
			user.PasswordHash,
			user.Role,
			user.Status,
			domain.Ativo(domain.UserStatus(user.Status)),
			disciplinas,
			turmas,
			preferencias,
			formatTimestamp(user.CreatedAt),
			formatTimestamp(user.UpdatedAt),
		)
		return err
	})
}

// UpdateUser replaces every mutable column of an existing user.
func (r *UserRepository) UpdateUser(ctx context.Context, user persistence.User) error {
	if user.ID == "" || user.PasswordHash == "" {
		return persistence.ErrConstraintViolation
	}

	disciplinas, turmas, preferencias, err := encodeUserLists(user)
	if err != nil {
		return err
	}

	query := `
		UPDATE users
		SET nome = ?, email = ?, password_hash = ?, role = ?, status = ?, ativo = ?,
			disciplinas = ?, turmas = ?, preferencias = ?, updated_at = ?
		WHERE id = ?
	`
	return r.retry.WithRetry(ctx, func() error {
		result, err := r.helper.Exec(ctx, query,
			user.Nome,
			normalizeEmail(user.Email),
			user.PasswordHash,
			user.Role,
			user.Status,
			domain.Ativo(domain.UserStatus(user.Status)),
			disciplinas,
			turmas,
			preferencias,
			formatTimestamp(user.UpdatedAt),
			user.ID,
		)
		if err != nil {
			return err
		}
		return requireAffected(result)
	})
}

// GetUser retrieves a user by ID.
func (r *UserRepository) GetUser(ctx context.Context, id string) (persistence.User, error) {
	if id == "" {
		return persistence.User{}, persistence.ErrNotFound
	}
	row := r.helper.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	user, err := scanUser(row)
	if err != nil {
		return persistence.User{}, r.mapper.MapError(err)
	}
	return user, nil
}

// GetUserByEmail retrieves a user by e-mail address, ignoring case.
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (persistence.User, error) {
	normalized := normalizeEmail(email)
	if normalized == "" {
		return persistence.User{}, persistence.ErrNotFound
	}
	row := r.helper.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, normalized)
	user, err := scanUser(row)
	if err != nil {
		return persistence.User{}, r.mapper.MapError(err)
	}
	return user, nil
}

// ListUsers returns users matching filter ordered by name then ID.
func (r *UserRepository) ListUsers(ctx context.Context, filter persistence.UserFilter) ([]persistence.User, error) {
	var (
		where []string
		args  []any
	)
	if filter.Role != "" {
		where = append(where, "role = ?")
		args = append(args, filter.Role)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}

	query := `SELECT ` + userColumns + ` FROM users`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY nome COLLATE NOCASE ASC, id ASC"

	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var users []persistence.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return users, nil
}

// DeleteUser removes a user. Users that still own calendars cannot be removed
// and yield ErrForeignKeyViolation; their weekly grid entries are cascaded.
func (r *UserRepository) DeleteUser(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		var owned int
		err := r.helper.QueryRowTx(ctx, tx, "SELECT COUNT(*) FROM calendarios WHERE professor_id = ?", id).Scan(&owned)
		if err != nil {
			return r.mapper.MapError(err)
		}
		if owned > 0 {
			return persistence.ErrForeignKeyViolation
		}

		result, err := r.helper.ExecTx(ctx, tx, "DELETE FROM users WHERE id = ?", id)
		if err != nil {
			return r.mapper.MapError(err)
		}
		return requireAffected(result)
	})
}

func scanUser(s rowScanner) (persistence.User, error) {
	var (
		user                              persistence.User
		disciplinas, turmas, preferencias string
		createdAt, updatedAt              string
	)
	err := s.Scan(
		&user.ID,
		&user.Nome,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.Status,
		&user.Ativo,
		&disciplinas,
		&turmas,
		&preferencias,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return persistence.User{}, err
	}

	if user.Disciplinas, err = decodeStrings(disciplinas); err != nil {
		return persistence.User{}, fmt.Errorf("failed to decode disciplinas: %w", err)
	}
	if user.Turmas, err = decodeStrings(turmas); err != nil {
		return persistence.User{}, fmt.Errorf("failed to decode turmas: %w", err)
	}
	if user.Preferencias, err = decodePreferences(preferencias); err != nil {
		return persistence.User{}, fmt.Errorf("failed to decode preferencias: %w", err)
	}
	if user.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return persistence.User{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if user.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return persistence.User{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return user, nil
}

func encodeUserLists(user persistence.User) (string, string, string, error) {
	disciplinas, err := encodeJSON(nonNilStrings(user.Disciplinas))
	if err != nil {
		return "", "", "", err
	}
	turmas, err := encodeJSON(nonNilStrings(user.Turmas))
	if err != nil {
		return "", "", "", err
	}
	preferencias := user.Preferencias
	if preferencias == nil {
		preferencias = map[string]string{}
	}
	prefs, err := encodeJSON(preferencias)
	if err != nil {
		return "", "", "", err
	}
	return disciplinas, turmas, prefs, nil
}

// requireAffected turns a write that touched no rows into ErrNotFound.
func requireAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, persistence.ErrNotFound)
}

// normalizeEmail normalizes email addresses for consistent storage and lookup
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
