package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/calendario-escolar/internal/domain"
	"github.com/example/calendario-escolar/internal/persistence"
	"github.com/example/calendario-escolar/internal/recurrence"
)

// GradeHorariaRepository captures the persistence operations needed by the weekly grid service.
type GradeHorariaRepository interface {
	CreateGradeHoraria(ctx context.Context, entry GradeHoraria) (GradeHoraria, error)
	GetGradeHoraria(ctx context.Context, id string) (GradeHoraria, error)
	ListGradeHoraria(ctx context.Context, filter GradeHorariaFilter) ([]GradeHoraria, error)
	DeleteGradeHoraria(ctx context.Context, id string) error
}

// GradeHorariaService manages the weekly grid of professors and expands it
// into the dates a class actually meets.
type GradeHorariaService struct {
	entries     GradeHorariaRepository
	engine      *recurrence.Engine
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewGradeHorariaService constructs a weekly grid service.
func NewGradeHorariaService(entries GradeHorariaRepository, engine *recurrence.Engine, idGenerator func() string, now func() time.Time) *GradeHorariaService {
	return NewGradeHorariaServiceWithLogger(entries, engine, idGenerator, now, nil)
}

// NewGradeHorariaServiceWithLogger constructs a weekly grid service with a specified logger.
func NewGradeHorariaServiceWithLogger(entries GradeHorariaRepository, engine *recurrence.Engine, idGenerator func() string, now func() time.Time, logger *slog.Logger) *GradeHorariaService {
	if engine == nil {
		engine = recurrence.NewEngine(nil)
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &GradeHorariaService{
		entries:     entries,
		engine:      engine,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *GradeHorariaService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "GradeHorariaService", operation, attrs...)
}

// CreateGradeHoraria adds a weekday to the caller's own grid.
func (s *GradeHorariaService) CreateGradeHoraria(ctx context.Context, params CreateGradeHorariaParams) (entry GradeHoraria, err error) {
	if s == nil {
		err = fmt.Errorf("GradeHorariaService is nil")
		return
	}
	if s.entries == nil {
		err = fmt.Errorf("grade horaria repository not configured")
		return
	}

	input := params.Input
	input.Turma = strings.TrimSpace(input.Turma)
	input.Disciplina = strings.TrimSpace(input.Disciplina)

	logger := s.loggerWith(ctx, "CreateGradeHoraria",
		"principal_id", params.Principal.UserID,
		"turma", input.Turma,
		"disciplina", input.Disciplina,
		"dia_semana", input.DiaSemana,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create grade horaria", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("grade_horaria_id", entry.ID).InfoContext(ctx, "grade horaria created")
	}()

	if !params.Principal.Role.IsAuthor() {
		err = ErrUnauthorized
		return
	}
	if vErr := validateStruct(input); vErr.HasErrors() {
		err = vErr
		return
	}

	entry, err = s.entries.CreateGradeHoraria(ctx, GradeHoraria{
		ID:          s.idGenerator(),
		ProfessorID: params.Principal.UserID,
		Turma:       input.Turma,
		Disciplina:  input.Disciplina,
		DiaSemana:   time.Weekday(input.DiaSemana),
		CreatedAt:   s.now(),
	})
	if err != nil {
		err = mapGradeHorariaRepoError(err)
		return
	}
	return
}

// ListGradeHoraria lists grid entries. Authors only see their own.
func (s *GradeHorariaService) ListGradeHoraria(ctx context.Context, principal Principal, filter GradeHorariaFilter) ([]GradeHoraria, error) {
	if s == nil {
		return nil, fmt.Errorf("GradeHorariaService is nil")
	}
	if !principal.Role.IsAuthor() && !principal.Role.IsReviewer() {
		return nil, ErrUnauthorized
	}
	if s.entries == nil {
		return nil, nil
	}

	filter.Turma = strings.TrimSpace(filter.Turma)
	filter.Disciplina = strings.TrimSpace(filter.Disciplina)
	if !principal.Role.IsReviewer() {
		filter.ProfessorID = principal.UserID
	}

	entries, err := s.entries.ListGradeHoraria(ctx, filter)
	if err != nil {
		return nil, mapGradeHorariaRepoError(err)
	}
	return entries, nil
}

// DeleteGradeHoraria removes a grid entry owned by the caller. Administrators
// may remove any entry.
func (s *GradeHorariaService) DeleteGradeHoraria(ctx context.Context, principal Principal, id string) (err error) {
	if s == nil {
		return fmt.Errorf("GradeHorariaService is nil")
	}
	if s.entries == nil {
		return fmt.Errorf("grade horaria repository not configured")
	}

	logger := s.loggerWith(ctx, "DeleteGradeHoraria", "principal_id", principal.UserID, "grade_horaria_id", id)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete grade horaria", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "grade horaria deleted")
	}()

	if !principal.Role.IsAuthor() && principal.Role != domain.RoleAdmin {
		return ErrUnauthorized
	}

	entry, err := s.entries.GetGradeHoraria(ctx, id)
	if err != nil {
		return mapGradeHorariaRepoError(err)
	}
	if principal.Role != domain.RoleAdmin && entry.ProfessorID != principal.UserID {
		return ErrNotFound
	}

	if err = s.entries.DeleteGradeHoraria(ctx, id); err != nil {
		return mapGradeHorariaRepoError(err)
	}
	return nil
}

// DiasDisponiveis lists the dates between De and Ate, inclusive, on which the
// professor meets the class for the discipline. Authors may only query
// their own grid.
func (s *GradeHorariaService) DiasDisponiveis(ctx context.Context, params DiasDisponiveisParams) (dates []time.Time, err error) {
	if s == nil {
		err = fmt.Errorf("GradeHorariaService is nil")
		return
	}
	if s.entries == nil {
		err = fmt.Errorf("grade horaria repository not configured")
		return
	}

	professorID := strings.TrimSpace(params.ProfessorID)
	if professorID == "" || !params.Principal.Role.IsReviewer() {
		professorID = params.Principal.UserID
	}
	turma := strings.TrimSpace(params.Turma)
	disciplinaNome := strings.TrimSpace(params.Disciplina)

	logger := s.loggerWith(ctx, "DiasDisponiveis",
		"principal_id", params.Principal.UserID,
		"professor_id", professorID,
		"turma", turma,
		"disciplina", disciplinaNome,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to expand grade horaria", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("count", len(dates)).DebugContext(ctx, "grade horaria expanded")
	}()

	if !params.Principal.Role.IsAuthor() && !params.Principal.Role.IsReviewer() {
		err = ErrUnauthorized
		return
	}

	vErr := &ValidationError{}
	if turma == "" {
		vErr.add("turma", "turma é obrigatória")
	}
	if disciplinaNome == "" {
		vErr.add("disciplina", "disciplina é obrigatória")
	}
	if params.De.IsZero() {
		vErr.add("de", "data inicial é obrigatória")
	}
	if params.Ate.IsZero() {
		vErr.add("ate", "data final é obrigatória")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var entries []GradeHoraria
	entries, err = s.entries.ListGradeHoraria(ctx, GradeHorariaFilter{
		ProfessorID: professorID,
		Turma:       turma,
		Disciplina:  disciplinaNome,
	})
	if err != nil {
		err = mapGradeHorariaRepoError(err)
		return
	}

	weekdays := make([]time.Weekday, 0, len(entries))
	for _, e := range entries {
		weekdays = append(weekdays, e.DiaSemana)
	}
	if len(weekdays) == 0 {
		dates = []time.Time{}
		return
	}

	dates, err = s.engine.Dates(weekdays, params.De, params.Ate)
	switch {
	case errors.Is(err, recurrence.ErrInvalidWindow):
		vErr.add("ate", "data final deve ser posterior à inicial")
		err = vErr
	case errors.Is(err, recurrence.ErrWindowTooLarge):
		vErr.add("ate", "intervalo não pode exceder um ano")
		err = vErr
	}
	return
}

func mapGradeHorariaRepoError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, ErrAlreadyExists), errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	case errors.Is(err, persistence.ErrForeignKeyViolation):
		vErr := &ValidationError{}
		vErr.add("professor", "professor não encontrado")
		return vErr
	case errors.Is(err, persistence.ErrConstraintViolation):
		vErr := &ValidationError{}
		vErr.add("diaSemana", "dia da semana inválido")
		return vErr
	}
	return err
}
