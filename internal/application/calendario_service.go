package application

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/example/calendario-escolar/internal/disciplina"
	"github.com/example/calendario-escolar/internal/domain"
	"github.com/example/calendario-escolar/internal/persistence"
	"github.com/example/calendario-escolar/internal/workflow"
)

// CalendarioRepository captures the persistence operations needed by the calendar service.
//
// UpdateCalendario and DeleteCalendario are conditional on expectedVersion and
// report persistence.ErrStaleVersion when the stored record moved on.
type CalendarioRepository interface {
	CreateCalendario(ctx context.Context, calendario Calendario) (Calendario, error)
	GetCalendario(ctx context.Context, id string) (Calendario, error)
	UpdateCalendario(ctx context.Context, calendario Calendario, expectedVersion int) (Calendario, error)
	DeleteCalendario(ctx context.Context, id string, expectedVersion int) error
	ListCalendarios(ctx context.Context, filter CalendarioRepositoryFilter) ([]Calendario, error)
	CountCalendarios(ctx context.Context, filter CalendarioRepositoryFilter) (Stats, error)
}

// CalendarioRepositoryFilter narrows repository queries. Zero values match everything.
type CalendarioRepositoryFilter struct {
	ProfessorID string
	Turma       string
	Disciplina  string
	Bimestre    int
	Ano         int
	Statuses    []domain.Status
}

// UserDirectory resolves the profile of the acting user.
type UserDirectory interface {
	GetUser(ctx context.Context, id string) (User, error)
}

// CalendarioService runs the calendar workflow: it validates input, applies
// the permission table and persists the result with a versioned write.
type CalendarioService struct {
	calendarios CalendarioRepository
	users       UserDirectory
	events      *eventCache
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewCalendarioService constructs a calendar service with the provided dependencies.
func NewCalendarioService(calendarios CalendarioRepository, users UserDirectory, idGenerator func() string, now func() time.Time) *CalendarioService {
	return NewCalendarioServiceWithLogger(calendarios, users, idGenerator, now, nil)
}

// NewCalendarioServiceWithLogger constructs a calendar service with a specified logger.
func NewCalendarioServiceWithLogger(calendarios CalendarioRepository, users UserDirectory, idGenerator func() string, now func() time.Time, logger *slog.Logger) *CalendarioService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &CalendarioService{
		calendarios: calendarios,
		users:       users,
		events:      newEventCache(30*time.Second, 64, now),
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *CalendarioService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "CalendarioService", operation, attrs...)
}

// CreateCalendario drafts a new calendar owned by the acting professor.
func (s *CalendarioService) CreateCalendario(ctx context.Context, params CreateCalendarioParams) (calendario Calendario, err error) {
	if s == nil {
		err = fmt.Errorf("CalendarioService is nil")
		return
	}
	if s.calendarios == nil {
		err = fmt.Errorf("calendario repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "CreateCalendario",
		"principal_id", params.Principal.UserID,
		"role", params.Principal.Role,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create calendario", "error", err, "error_kind", ErrorKind(err))
			return
		}
		s.events.Invalidate()
		logger.With("calendario_id", calendario.ID).InfoContext(ctx, "calendario created")
	}()

	actor := params.Principal.actor()
	var status domain.Status
	status, err = workflow.Check(workflow.ActionCreate, actor, workflow.Subject{OwnerID: actor.ID})
	if err != nil {
		err = mapWorkflowError(err)
		return
	}

	input := normalizeCalendarioInput(params.Input)
	if err = s.validateInput(ctx, params.Principal, input); err != nil {
		return
	}

	now := s.now()
	calendario = Calendario{
		ID:          s.idGenerator(),
		ProfessorID: actor.ID,
		Status:      status,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	applyCalendarioInput(&calendario, input)

	calendario, err = s.calendarios.CreateCalendario(ctx, calendario)
	if err != nil {
		err = mapCalendarioRepoError(err)
		return
	}
	return
}

// Transition applies a workflow action to an existing calendar. The role gate
// runs before the record is loaded. Ownership and state are checked against
// the stored record before any input validation, and the write only succeeds
// if nobody changed the record in between.
func (s *CalendarioService) Transition(ctx context.Context, params TransitionParams) (calendario Calendario, err error) {
	if s == nil {
		err = fmt.Errorf("CalendarioService is nil")
		return
	}
	if s.calendarios == nil {
		err = fmt.Errorf("calendario repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "Transition",
		"principal_id", params.Principal.UserID,
		"role", params.Principal.Role,
		"calendario_id", params.CalendarioID,
		"action", params.Action,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "calendario transition failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		s.events.Invalidate()
		logger.With("status", calendario.Status, "version", calendario.Version).InfoContext(ctx, "calendario transitioned")
	}()

	if _, ok := workflow.ParseAction(string(params.Action)); !ok || params.Action == workflow.ActionCreate {
		vErr := &ValidationError{}
		vErr.add("action", "ação desconhecida")
		err = vErr
		return
	}

	actor := params.Principal.actor()
	if err = workflow.Authorize(params.Action, actor); err != nil {
		err = mapWorkflowError(err)
		return
	}

	var existing Calendario
	existing, err = s.calendarios.GetCalendario(ctx, params.CalendarioID)
	if err != nil {
		err = mapCalendarioRepoError(err)
		return
	}

	var next domain.Status
	next, err = workflow.Check(params.Action, actor, workflow.Subject{OwnerID: existing.ProfessorID, Status: existing.Status})
	if err != nil {
		err = mapWorkflowError(err)
		return
	}

	// Input is validated only after the ownership and state checks pass.
	var input CalendarioInput
	comentario := strings.TrimSpace(params.Comentario)
	switch params.Action {
	case workflow.ActionUpdate:
		if params.Input == nil {
			vErr := &ValidationError{}
			vErr.add("calendario", "dados do calendário são obrigatórios")
			err = vErr
			return
		}
		input = normalizeCalendarioInput(*params.Input)
		if err = s.validateInput(ctx, params.Principal, input); err != nil {
			return
		}
	case workflow.ActionSolicitarAjuste:
		if comentario == "" {
			vErr := &ValidationError{}
			vErr.add("comentario", "comentário é obrigatório ao solicitar ajuste")
			err = vErr
			return
		}
	}

	if params.Action == workflow.ActionDelete {
		if err = s.calendarios.DeleteCalendario(ctx, existing.ID, existing.Version); err != nil {
			err = mapCalendarioRepoError(err)
			return
		}
		calendario = existing
		return
	}

	updated := existing
	switch params.Action {
	case workflow.ActionUpdate:
		applyCalendarioInput(&updated, input)
	case workflow.ActionSolicitarAjuste:
		updated.ComentarioCoordenacao = comentario
	}
	updated.Status = next
	updated.UpdatedAt = s.now()

	calendario, err = s.calendarios.UpdateCalendario(ctx, updated, existing.Version)
	if err != nil {
		err = mapCalendarioRepoError(err)
		return
	}
	return
}

// UpdateCalendario replaces the editable fields of a calendar.
func (s *CalendarioService) UpdateCalendario(ctx context.Context, principal Principal, id string, input CalendarioInput) (Calendario, error) {
	return s.Transition(ctx, TransitionParams{Principal: principal, CalendarioID: id, Action: workflow.ActionUpdate, Input: &input})
}

// Enviar submits a draft for review.
func (s *CalendarioService) Enviar(ctx context.Context, principal Principal, id string) (Calendario, error) {
	return s.Transition(ctx, TransitionParams{Principal: principal, CalendarioID: id, Action: workflow.ActionEnviar})
}

// Aprovar approves a submitted calendar.
func (s *CalendarioService) Aprovar(ctx context.Context, principal Principal, id string) (Calendario, error) {
	return s.Transition(ctx, TransitionParams{Principal: principal, CalendarioID: id, Action: workflow.ActionAprovar})
}

// SolicitarAjuste returns a submitted calendar to draft with a comment.
func (s *CalendarioService) SolicitarAjuste(ctx context.Context, principal Principal, id, comentario string) (Calendario, error) {
	return s.Transition(ctx, TransitionParams{Principal: principal, CalendarioID: id, Action: workflow.ActionSolicitarAjuste, Comentario: comentario})
}

// DeleteCalendario removes a calendar.
func (s *CalendarioService) DeleteCalendario(ctx context.Context, principal Principal, id string) error {
	_, err := s.Transition(ctx, TransitionParams{Principal: principal, CalendarioID: id, Action: workflow.ActionDelete})
	return err
}

// GetCalendario returns a calendar visible to the principal. Calendars owned
// by someone else are reported as missing to authors.
func (s *CalendarioService) GetCalendario(ctx context.Context, principal Principal, id string) (calendario Calendario, err error) {
	if s == nil {
		err = fmt.Errorf("CalendarioService is nil")
		return
	}
	if s.calendarios == nil {
		err = fmt.Errorf("calendario repository not configured")
		return
	}
	if !principal.Role.IsAuthor() && !principal.Role.IsReviewer() {
		err = ErrUnauthorized
		return
	}

	calendario, err = s.calendarios.GetCalendario(ctx, id)
	if err != nil {
		err = mapCalendarioRepoError(err)
		return
	}
	if workflow.Visibility(principal.actor()) && calendario.ProfessorID != principal.UserID {
		calendario = Calendario{}
		err = ErrNotFound
	}
	return
}

// ListCalendarios returns the calendars matching the filter. Authors only see
// their own calendars whatever professor the filter names.
func (s *CalendarioService) ListCalendarios(ctx context.Context, params ListCalendariosParams) (calendarios []Calendario, err error) {
	if s == nil {
		err = fmt.Errorf("CalendarioService is nil")
		return
	}

	logger := s.loggerWith(ctx, "ListCalendarios",
		"principal_id", params.Principal.UserID,
		"role", params.Principal.Role,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list calendarios", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("count", len(calendarios)).InfoContext(ctx, "calendarios listed")
	}()

	var filter CalendarioRepositoryFilter
	filter, err = s.scopedFilter(params.Principal, params.Filter)
	if err != nil || s.calendarios == nil {
		return
	}

	calendarios, err = s.calendarios.ListCalendarios(ctx, filter)
	if err != nil {
		err = mapCalendarioRepoError(err)
		return
	}
	return
}

// Stats counts the calendars matching the filter by status and print requirement.
func (s *CalendarioService) Stats(ctx context.Context, params ListCalendariosParams) (stats Stats, err error) {
	if s == nil {
		err = fmt.Errorf("CalendarioService is nil")
		return
	}
	if s.calendarios == nil {
		err = fmt.Errorf("calendario repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "Stats", "principal_id", params.Principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to compute stats", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("total", stats.Total).InfoContext(ctx, "stats computed")
	}()

	var filter CalendarioRepositoryFilter
	filter, err = s.scopedFilter(params.Principal, params.Filter)
	if err != nil {
		return
	}
	stats, err = s.calendarios.CountCalendarios(ctx, filter)
	if err != nil {
		err = mapCalendarioRepoError(err)
	}
	return
}

// ConsolidatedEvents flattens approved calendars into three events each (AV1,
// AV2 and Consolidação) sorted by date. Events without a date come last.
func (s *CalendarioService) ConsolidatedEvents(ctx context.Context, params ConsolidatedParams) (events []Evento, err error) {
	if s == nil {
		err = fmt.Errorf("CalendarioService is nil")
		return
	}
	if s.calendarios == nil {
		err = fmt.Errorf("calendario repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "ConsolidatedEvents",
		"principal_id", params.Principal.UserID,
		"turma", params.Turma,
		"bimestre", params.Bimestre,
		"ano", params.Ano,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to build consolidated calendar", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("events", len(events)).InfoContext(ctx, "consolidated calendar built")
	}()

	if !params.Principal.Role.IsAuthor() && !params.Principal.Role.IsReviewer() {
		err = ErrUnauthorized
		return
	}

	turma := strings.TrimSpace(params.Turma)
	key := eventCacheKey(turma, params.Bimestre, params.Ano)
	cached, generation, ok := s.events.Get(key)
	if ok {
		events = cached
		return
	}

	var calendarios []Calendario
	calendarios, err = s.calendarios.ListCalendarios(ctx, CalendarioRepositoryFilter{
		Turma:    turma,
		Bimestre: params.Bimestre,
		Ano:      params.Ano,
		Statuses: []domain.Status{domain.StatusAprovado},
	})
	if err != nil {
		err = mapCalendarioRepoError(err)
		return
	}

	events = BuildConsolidatedEvents(calendarios)
	s.events.Store(key, generation, events)
	return
}

// BuildConsolidatedEvents expands calendars into dated events ordered by date,
// then class, then curriculum order of the discipline, then evaluation.
func BuildConsolidatedEvents(calendarios []Calendario) []Evento {
	events := make([]Evento, 0, len(calendarios)*3)
	for _, c := range calendarios {
		base := Evento{
			CalendarioID:  c.ID,
			Turma:         c.Turma,
			Disciplina:    c.Disciplina,
			Bimestre:      c.Bimestre,
			Ano:           c.Ano,
			ProfessorID:   c.ProfessorID,
			ProfessorNome: c.ProfessorNome,
		}

		av1 := base
		av1.Tipo = EventoAV1
		av1.Data = c.AV1.Data
		av1.Instrumento = c.AV1.Instrumento
		av1.Conteudo = c.AV1.Conteudo
		av1.NecessitaImpressao = domain.IsPrintRequiring(c.AV1.Instrumento)

		av2 := base
		av2.Tipo = EventoAV2
		av2.Data = c.AV2.Data
		av2.Instrumento = c.AV2.Instrumento
		av2.Conteudo = c.AV2.Conteudo
		av2.NecessitaImpressao = domain.IsPrintRequiring(c.AV2.Instrumento)

		consolidacao := base
		consolidacao.Tipo = EventoConsolidacao
		consolidacao.Data = c.Consolidacao.Data
		consolidacao.Conteudo = c.Consolidacao.Conteudo

		events = append(events, av1, av2, consolidacao)
	}

	order := disciplina.NewComparator()
	slices.SortStableFunc(events, func(a, b Evento) int {
		if c := compareDates(a.Data, b.Data); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Turma, b.Turma); c != 0 {
			return c
		}
		if c := order.Compare(a.Disciplina, b.Disciplina); c != 0 {
			return c
		}
		if c := cmp.Compare(eventoRank(a.Tipo), eventoRank(b.Tipo)); c != 0 {
			return c
		}
		return cmp.Compare(a.CalendarioID, b.CalendarioID)
	})
	return events
}

func compareDates(a, b time.Time) int {
	switch {
	case a.IsZero() && b.IsZero():
		return 0
	case a.IsZero():
		return 1
	case b.IsZero():
		return -1
	}
	return a.Compare(b)
}

func eventoRank(t EventoTipo) int {
	switch t {
	case EventoAV1:
		return 0
	case EventoAV2:
		return 1
	default:
		return 2
	}
}

// scopedFilter converts a caller filter into a repository filter, forcing
// authors onto their own records.
func (s *CalendarioService) scopedFilter(principal Principal, filter CalendarioFilter) (CalendarioRepositoryFilter, error) {
	if !principal.Role.IsAuthor() && !principal.Role.IsReviewer() {
		return CalendarioRepositoryFilter{}, ErrUnauthorized
	}

	out := CalendarioRepositoryFilter{
		ProfessorID: strings.TrimSpace(filter.ProfessorID),
		Turma:       strings.TrimSpace(filter.Turma),
		Disciplina:  strings.TrimSpace(filter.Disciplina),
		Bimestre:    filter.Bimestre,
		Ano:         filter.Ano,
	}
	if filter.Status != "" {
		out.Statuses = []domain.Status{filter.Status}
	}
	if workflow.Visibility(principal.actor()) {
		out.ProfessorID = principal.UserID
	}
	return out, nil
}

// InvalidateEvents drops every cached consolidated calendar. Profile changes
// call it because events carry the owner's name.
func (s *CalendarioService) InvalidateEvents() {
	if s == nil {
		return
	}
	s.events.Invalidate()
}

// validateInput runs the struct rules and the author's profile scope. A
// failed profile lookup stops the request instead of skipping the scope.
func (s *CalendarioService) validateInput(ctx context.Context, principal Principal, input CalendarioInput) error {
	vErr := validateStruct(input)
	scope, err := s.checkProfessorScope(ctx, principal, input)
	if err != nil {
		return err
	}
	vErr.merge(scope)
	if vErr.HasErrors() {
		return vErr
	}
	return nil
}

// checkProfessorScope rejects classes and disciplines outside the author's
// profile. Profiles without lists are unrestricted.
func (s *CalendarioService) checkProfessorScope(ctx context.Context, principal Principal, input CalendarioInput) (*ValidationError, error) {
	vErr := &ValidationError{}
	if !principal.Role.IsAuthor() || s.users == nil {
		return vErr, nil
	}
	user, err := s.users.GetUser(ctx, principal.UserID)
	if err != nil {
		return nil, mapUserRepoError(err)
	}
	if len(user.Turmas) > 0 && !containsFold(user.Turmas, input.Turma) {
		vErr.add("turma", "turma não atribuída ao professor")
	}
	if len(user.Disciplinas) > 0 && !containsFold(user.Disciplinas, input.Disciplina) {
		vErr.add("disciplina", "disciplina não atribuída ao professor")
	}
	return vErr, nil
}

func containsFold(values []string, target string) bool {
	for _, v := range values {
		if strings.EqualFold(strings.TrimSpace(v), target) {
			return true
		}
	}
	return false
}

func normalizeCalendarioInput(input CalendarioInput) CalendarioInput {
	input.Turma = strings.TrimSpace(input.Turma)
	input.Disciplina = strings.TrimSpace(input.Disciplina)
	input.AV1 = normalizeAvaliacaoInput(input.AV1)
	input.AV2 = normalizeAvaliacaoInput(input.AV2)
	input.Consolidacao.Conteudo = strings.TrimSpace(input.Consolidacao.Conteudo)
	input.Consolidacao.Criterios = strings.TrimSpace(input.Consolidacao.Criterios)
	input.Consolidacao.Data = dateOnly(input.Consolidacao.Data)
	return input
}

func normalizeAvaliacaoInput(input AvaliacaoInput) AvaliacaoInput {
	input.Instrumento = strings.TrimSpace(input.Instrumento)
	input.Conteudo = strings.TrimSpace(input.Conteudo)
	input.Criterios = strings.TrimSpace(input.Criterios)
	input.Data = dateOnly(input.Data)
	return input
}

// dateOnly keeps the calendar day of t and drops the clock.
func dateOnly(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func applyCalendarioInput(c *Calendario, input CalendarioInput) {
	c.Turma = input.Turma
	c.Disciplina = input.Disciplina
	c.Bimestre = input.Bimestre
	c.Ano = input.Ano
	c.AV1 = Avaliacao{
		Data:        input.AV1.Data,
		Instrumento: domain.Instrumento(input.AV1.Instrumento),
		Conteudo:    input.AV1.Conteudo,
		Criterios:   input.AV1.Criterios,
	}
	c.AV2 = Avaliacao{
		Data:        input.AV2.Data,
		Instrumento: domain.Instrumento(input.AV2.Instrumento),
		Conteudo:    input.AV2.Conteudo,
		Criterios:   input.AV2.Criterios,
	}
	c.Consolidacao = Consolidacao{
		Data:      input.Consolidacao.Data,
		Conteudo:  input.Consolidacao.Conteudo,
		Criterios: input.Consolidacao.Criterios,
	}
	c.NecessitaImpressao = domain.NecessitaImpressao(c.AV1.Instrumento, c.AV2.Instrumento)
}

func mapWorkflowError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, workflow.ErrForbidden), errors.Is(err, workflow.ErrUnknownAction):
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	case errors.Is(err, workflow.ErrNotOwner):
		return ErrNotFound
	case errors.Is(err, workflow.ErrInvalidState):
		return fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	return err
}

func mapCalendarioRepoError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, ErrAlreadyExists), errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	case errors.Is(err, ErrConflict), errors.Is(err, persistence.ErrStaleVersion):
		return ErrConflict
	case errors.Is(err, persistence.ErrForeignKeyViolation):
		vErr := &ValidationError{}
		vErr.add("professor", "professor não encontrado")
		return vErr
	case errors.Is(err, persistence.ErrConstraintViolation):
		vErr := &ValidationError{}
		vErr.add("calendario", "dados do calendário violam as regras de armazenamento")
		return vErr
	}
	return err
}
