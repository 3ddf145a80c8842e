package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/example/calendario-escolar/internal/persistence"
)

// GradeHorariaRepository implements persistence.GradeHorariaRepository using SQLite.
type GradeHorariaRepository struct {
	helper *QueryHelper
	mapper *ErrorMapper
	retry  *RetryHelper
}

// NewGradeHorariaRepository creates a new SQLite weekly grid repository.
func NewGradeHorariaRepository(pool *ConnectionPool) *GradeHorariaRepository {
	return &GradeHorariaRepository{
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
		retry:  NewRetryHelper(DefaultRetryConfig()),
	}
}

const gradeHorariaColumns = `id, professor_id, turma, disciplina, dia_semana, created_at`

// CreateGradeHoraria inserts a weekly grid entry.
func (r *GradeHorariaRepository) CreateGradeHoraria(ctx context.Context, entry persistence.GradeHoraria) error {
	if entry.ID == "" || entry.ProfessorID == "" {
		return persistence.ErrConstraintViolation
	}
	query := `INSERT INTO grade_horaria (` + gradeHorariaColumns + `) VALUES (?, ?, ?, ?, ?, ?)`
	return r.retry.WithRetry(ctx, func() error {
		_, err := r.helper.Exec(ctx, query,
			entry.ID,
			entry.ProfessorID,
			entry.Turma,
			entry.Disciplina,
			entry.DiaSemana,
			formatTimestamp(entry.CreatedAt),
		)
		return err
	})
}

// GetGradeHoraria retrieves a weekly grid entry by ID.
func (r *GradeHorariaRepository) GetGradeHoraria(ctx context.Context, id string) (persistence.GradeHoraria, error) {
	if id == "" {
		return persistence.GradeHoraria{}, persistence.ErrNotFound
	}
	row := r.helper.QueryRow(ctx, `SELECT `+gradeHorariaColumns+` FROM grade_horaria WHERE id = ?`, id)
	entry, err := scanGradeHoraria(row)
	if err != nil {
		return persistence.GradeHoraria{}, r.mapper.MapError(err)
	}
	return entry, nil
}

// ListGradeHoraria returns entries matching filter ordered by class,
// discipline and weekday.
func (r *GradeHorariaRepository) ListGradeHoraria(ctx context.Context, filter persistence.GradeHorariaFilter) ([]persistence.GradeHoraria, error) {
	var (
		where []string
		args  []any
	)
	if filter.ProfessorID != "" {
		where = append(where, "professor_id = ?")
		args = append(args, filter.ProfessorID)
	}
	if filter.Turma != "" {
		where = append(where, "turma = ?")
		args = append(args, filter.Turma)
	}
	if filter.Disciplina != "" {
		where = append(where, "disciplina = ?")
		args = append(args, filter.Disciplina)
	}

	query := `SELECT ` + gradeHorariaColumns + ` FROM grade_horaria`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY turma ASC, disciplina ASC, dia_semana ASC, id ASC"

	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var entries []persistence.GradeHoraria
	for rows.Next() {
		entry, err := scanGradeHoraria(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return entries, nil
}

// DeleteGradeHoraria removes a weekly grid entry.
func (r *GradeHorariaRepository) DeleteGradeHoraria(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}
	return r.retry.WithRetry(ctx, func() error {
		result, err := r.helper.Exec(ctx, "DELETE FROM grade_horaria WHERE id = ?", id)
		if err != nil {
			return err
		}
		return requireAffected(result)
	})
}

func scanGradeHoraria(s rowScanner) (persistence.GradeHoraria, error) {
	var (
		entry     persistence.GradeHoraria
		createdAt string
	)
	err := s.Scan(&entry.ID, &entry.ProfessorID, &entry.Turma, &entry.Disciplina, &entry.DiaSemana, &createdAt)
	if err != nil {
		return persistence.GradeHoraria{}, err
	}
	if entry.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return persistence.GradeHoraria{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	return entry, nil
}
