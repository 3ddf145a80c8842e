package main

import (
	"context"
	"time"

	"github.com/example/calendario-escolar/internal/application"
	"github.com/example/calendario-escolar/internal/domain"
	"github.com/example/calendario-escolar/internal/persistence"
)

// userRepositoryAdapter serves the user service, the credential store of
// the auth service and the user directory of the calendar service.
type userRepositoryAdapter struct {
	repo persistence.UserRepository
}

func newUserRepositoryAdapter(repo persistence.UserRepository) *userRepositoryAdapter {
	return &userRepositoryAdapter{repo: repo}
}

func (a *userRepositoryAdapter) CreateUser(ctx context.Context, user application.User, passwordHash string) (application.User, error) {
	if err := a.repo.CreateUser(ctx, toPersistenceUser(user, passwordHash)); err != nil {
		return application.User{}, err
	}
	stored, err := a.repo.GetUser(ctx, user.ID)
	if err != nil {
		return application.User{}, err
	}
	return toApplicationUser(stored), nil
}

func (a *userRepositoryAdapter) GetUser(ctx context.Context, id string) (application.User, error) {
	stored, err := a.repo.GetUser(ctx, id)
	if err != nil {
		return application.User{}, err
	}
	return toApplicationUser(stored), nil
}

func (a *userRepositoryAdapter) GetUserByEmail(ctx context.Context, email string) (application.UserCredentials, error) {
	stored, err := a.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return application.UserCredentials{}, err
	}
	return application.UserCredentials{
		User:         toApplicationUser(stored),
		PasswordHash: stored.PasswordHash,
	}, nil
}

func (a *userRepositoryAdapter) UpdateUser(ctx context.Context, user application.User) (application.User, error) {
	current, err := a.repo.GetUser(ctx, user.ID)
	if err != nil {
		return application.User{}, err
	}
	if err := a.repo.UpdateUser(ctx, toPersistenceUser(user, current.PasswordHash)); err != nil {
		return application.User{}, err
	}
	stored, err := a.repo.GetUser(ctx, user.ID)
	if err != nil {
		return application.User{}, err
	}
	return toApplicationUser(stored), nil
}

func (a *userRepositoryAdapter) DeleteUser(ctx context.Context, id string) error {
	return a.repo.DeleteUser(ctx, id)
}

func (a *userRepositoryAdapter) ListUsers(ctx context.Context, filter application.UserFilter) ([]application.User, error) {
	models, err := a.repo.ListUsers(ctx, persistence.UserFilter{
		Role:   string(filter.Role),
		Status: string(filter.Status),
	})
	if err != nil {
		return nil, err
	}
	users := make([]application.User, 0, len(models))
	for _, model := range models {
		users = append(users, toApplicationUser(model))
	}
	return users, nil
}

type calendarioRepositoryAdapter struct {
	repo persistence.CalendarioRepository
}

func newCalendarioRepositoryAdapter(repo persistence.CalendarioRepository) *calendarioRepositoryAdapter {
	return &calendarioRepositoryAdapter{repo: repo}
}

func (a *calendarioRepositoryAdapter) CreateCalendario(ctx context.Context, calendario application.Calendario) (application.Calendario, error) {
	if err := a.repo.CreateCalendario(ctx, toPersistenceCalendario(calendario)); err != nil {
		return application.Calendario{}, err
	}
	return a.GetCalendario(ctx, calendario.ID)
}

func (a *calendarioRepositoryAdapter) GetCalendario(ctx context.Context, id string) (application.Calendario, error) {
	stored, err := a.repo.GetCalendario(ctx, id)
	if err != nil {
		return application.Calendario{}, err
	}
	return toApplicationCalendario(stored), nil
}

func (a *calendarioRepositoryAdapter) UpdateCalendario(ctx context.Context, calendario application.Calendario, expectedVersion int) (application.Calendario, error) {
	if err := a.repo.UpdateCalendario(ctx, toPersistenceCalendario(calendario), expectedVersion); err != nil {
		return application.Calendario{}, err
	}
	return a.GetCalendario(ctx, calendario.ID)
}

func (a *calendarioRepositoryAdapter) DeleteCalendario(ctx context.Context, id string, expectedVersion int) error {
	return a.repo.DeleteCalendario(ctx, id, expectedVersion)
}

func (a *calendarioRepositoryAdapter) ListCalendarios(ctx context.Context, filter application.CalendarioRepositoryFilter) ([]application.Calendario, error) {
	models, err := a.repo.ListCalendarios(ctx, toPersistenceCalendarioFilter(filter))
	if err != nil {
		return nil, err
	}
	calendarios := make([]application.Calendario, 0, len(models))
	for _, model := range models {
		calendarios = append(calendarios, toApplicationCalendario(model))
	}
	return calendarios, nil
}

func (a *calendarioRepositoryAdapter) CountCalendarios(ctx context.Context, filter application.CalendarioRepositoryFilter) (application.Stats, error) {
	counts, err := a.repo.CountCalendarios(ctx, toPersistenceCalendarioFilter(filter))
	if err != nil {
		return application.Stats{}, err
	}
	return application.Stats{
		Total:              counts.Total,
		Rascunho:           counts.Rascunho,
		Enviado:            counts.Enviado,
		Aprovado:           counts.Aprovado,
		NecessitaImpressao: counts.NecessitaImpressao,
	}, nil
}

type gradeHorariaRepositoryAdapter struct {
	repo persistence.GradeHorariaRepository
}

func newGradeHorariaRepositoryAdapter(repo persistence.GradeHorariaRepository) *gradeHorariaRepositoryAdapter {
	return &gradeHorariaRepositoryAdapter{repo: repo}
}

func (a *gradeHorariaRepositoryAdapter) CreateGradeHoraria(ctx context.Context, entry application.GradeHoraria) (application.GradeHoraria, error) {
	if err := a.repo.CreateGradeHoraria(ctx, toPersistenceGradeHoraria(entry)); err != nil {
		return application.GradeHoraria{}, err
	}
	return a.GetGradeHoraria(ctx, entry.ID)
}

func (a *gradeHorariaRepositoryAdapter) GetGradeHoraria(ctx context.Context, id string) (application.GradeHoraria, error) {
	stored, err := a.repo.GetGradeHoraria(ctx, id)
	if err != nil {
		return application.GradeHoraria{}, err
	}
	return toApplicationGradeHoraria(stored), nil
}

func (a *gradeHorariaRepositoryAdapter) ListGradeHoraria(ctx context.Context, filter application.GradeHorariaFilter) ([]application.GradeHoraria, error) {
	models, err := a.repo.ListGradeHoraria(ctx, persistence.GradeHorariaFilter{
		ProfessorID: filter.ProfessorID,
		Turma:       filter.Turma,
		Disciplina:  filter.Disciplina,
	})
	if err != nil {
		return nil, err
	}
	entries := make([]application.GradeHoraria, 0, len(models))
	for _, model := range models {
		entries = append(entries, toApplicationGradeHoraria(model))
	}
	return entries, nil
}

func (a *gradeHorariaRepositoryAdapter) DeleteGradeHoraria(ctx context.Context, id string) error {
	return a.repo.DeleteGradeHoraria(ctx, id)
}

func toApplicationUser(model persistence.User) application.User {
	return application.User{
		ID:           model.ID,
		Nome:         model.Nome,
		Email:        model.Email,
		Role:         domain.Role(model.Role),
		Status:       domain.UserStatus(model.Status),
		Ativo:        model.Ativo,
		Disciplinas:  append([]string(nil), model.Disciplinas...),
		Turmas:       append([]string(nil), model.Turmas...),
		Preferencias: cloneMap(model.Preferencias),
		CreatedAt:    model.CreatedAt,
		UpdatedAt:    model.UpdatedAt,
	}
}

func toPersistenceUser(user application.User, passwordHash string) persistence.User {
	return persistence.User{
		ID:           user.ID,
		Nome:         user.Nome,
		Email:        user.Email,
		PasswordHash: passwordHash,
		Role:         string(user.Role),
		Status:       string(user.Status),
		Disciplinas:  append([]string(nil), user.Disciplinas...),
		Turmas:       append([]string(nil), user.Turmas...),
		Preferencias: cloneMap(user.Preferencias),
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	}
}

func toApplicationCalendario(model persistence.Calendario) application.Calendario {
	return application.Calendario{
		ID:             model.ID,
		ProfessorID:    model.ProfessorID,
		ProfessorNome:  model.ProfessorNome,
		ProfessorEmail: model.ProfessorEmail,
		Turma:          model.Turma,
		Disciplina:     model.Disciplina,
		Bimestre:       model.Bimestre,
		Ano:            model.Ano,
		AV1:            toApplicationAvaliacao(model.AV1),
		AV2:            toApplicationAvaliacao(model.AV2),
		Consolidacao: application.Consolidacao{
			Data:      model.Consolidacao.Data,
			Conteudo:  model.Consolidacao.Conteudo,
			Criterios: model.Consolidacao.Criterios,
		},
		Status:                domain.Status(model.Status),
		NecessitaImpressao:    model.NecessitaImpressao,
		ComentarioCoordenacao: model.ComentarioCoordenacao,
		Version:               model.Version,
		CreatedAt:             model.CreatedAt,
		UpdatedAt:             model.UpdatedAt,
	}
}

func toPersistenceCalendario(c application.Calendario) persistence.Calendario {
	return persistence.Calendario{
		ID:          c.ID,
		ProfessorID: c.ProfessorID,
		Turma:       c.Turma,
		Disciplina:  c.Disciplina,
		Bimestre:    c.Bimestre,
		Ano:         c.Ano,
		AV1:         toPersistenceAvaliacao(c.AV1),
		AV2:         toPersistenceAvaliacao(c.AV2),
		Consolidacao: persistence.Consolidacao{
			Data:      c.Consolidacao.Data,
			Conteudo:  c.Consolidacao.Conteudo,
			Criterios: c.Consolidacao.Criterios,
		},
		Status:                string(c.Status),
		ComentarioCoordenacao: c.ComentarioCoordenacao,
		Version:               c.Version,
		CreatedAt:             c.CreatedAt,
		UpdatedAt:             c.UpdatedAt,
	}
}

func toApplicationAvaliacao(model persistence.Avaliacao) application.Avaliacao {
	return application.Avaliacao{
		Data:        model.Data,
		Instrumento: domain.Instrumento(model.Instrumento),
		Conteudo:    model.Conteudo,
		Criterios:   model.Criterios,
	}
}

func toPersistenceAvaliacao(a application.Avaliacao) persistence.Avaliacao {
	return persistence.Avaliacao{
		Data:        a.Data,
		Instrumento: string(a.Instrumento),
		Conteudo:    a.Conteudo,
		Criterios:   a.Criterios,
	}
}

func toPersistenceCalendarioFilter(filter application.CalendarioRepositoryFilter) persistence.CalendarioFilter {
	statuses := make([]string, 0, len(filter.Statuses))
	for _, status := range filter.Statuses {
		statuses = append(statuses, string(status))
	}
	return persistence.CalendarioFilter{
		ProfessorID: filter.ProfessorID,
		Turma:       filter.Turma,
		Disciplina:  filter.Disciplina,
		Bimestre:    filter.Bimestre,
		Ano:         filter.Ano,
		Statuses:    statuses,
	}
}

func toApplicationGradeHoraria(model persistence.GradeHoraria) application.GradeHoraria {
	return application.GradeHoraria{
		ID:          model.ID,
		ProfessorID: model.ProfessorID,
		Turma:       model.Turma,
		Disciplina:  model.Disciplina,
		DiaSemana:   time.Weekday(model.DiaSemana),
		CreatedAt:   model.CreatedAt,
	}
}

func toPersistenceGradeHoraria(entry application.GradeHoraria) persistence.GradeHoraria {
	return persistence.GradeHoraria{
		ID:          entry.ID,
		ProfessorID: entry.ProfessorID,
		Turma:       entry.Turma,
		Disciplina:  entry.Disciplina,
		DiaSemana:   int(entry.DiaSemana),
		CreatedAt:   entry.CreatedAt,
	}
}

func cloneMap(values map[string]string) map[string]string {
	if values == nil {
		return nil
	}
	clone := make(map[string]string, len(values))
	for k, v := range values {
		clone[k] = v
	}
	return clone
}
