package testfixtures

import (
	"time"

	"github.com/example/calendario-escolar/internal/application"
	"github.com/example/calendario-escolar/internal/domain"
	"github.com/example/calendario-escolar/internal/persistence"
)

// referenceTime is a Monday early in the first bimester.
var referenceTime = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// Day returns midnight UTC of the given date, the shape evaluation dates are stored in.
func Day(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// ----------------------------- User fixtures -----------------------------

// UserFixture represents a deterministic user record that can be materialised
// into application or persistence models.
type UserFixture struct {
	ID           string
	Nome         string
	Email        string
	PasswordHash string
	Role         domain.Role
	Status       domain.UserStatus
	Disciplinas  []string
	Turmas       []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserOption mutates a UserFixture.
type UserOption func(*UserFixture)

// NewUserFixture returns an approved professor unless options say otherwise.
func NewUserFixture(opts ...UserOption) UserFixture {
	f := UserFixture{
		ID:           "prof-1",
		Nome:         "Ana Souza",
		Email:        "ana.souza@escola.br",
		PasswordHash: "hash",
		Role:         domain.RoleProfessor,
		Status:       domain.UserAprovado,
		CreatedAt:    referenceTime,
		UpdatedAt:    referenceTime,
	}
	for _, opt := range opts {
		opt(&f)
	}
	return f
}

func WithUserID(id string) UserOption {
	return func(f *UserFixture) { f.ID = id }
}

func WithUserEmail(email string) UserOption {
	return func(f *UserFixture) { f.Email = email }
}

func WithUserNome(nome string) UserOption {
	return func(f *UserFixture) { f.Nome = nome }
}

func WithUserPasswordHash(hash string) UserOption {
	return func(f *UserFixture) { f.PasswordHash = hash }
}

func WithUserRole(role domain.Role) UserOption {
	return func(f *UserFixture) { f.Role = role }
}

func WithUserStatus(status domain.UserStatus) UserOption {
	return func(f *UserFixture) { f.Status = status }
}

// WithUserScope restricts the disciplines and classes a professor may plan for.
func WithUserScope(disciplinas, turmas []string) UserOption {
	return func(f *UserFixture) {
		f.Disciplinas = append([]string(nil), disciplinas...)
		f.Turmas = append([]string(nil), turmas...)
	}
}

func WithUserTimestamps(created, updated time.Time) UserOption {
	return func(f *UserFixture) {
		f.CreatedAt = created
		f.UpdatedAt = updated
	}
}

func (f UserFixture) Application() application.User {
	return application.User{
		ID:          f.ID,
		Nome:        f.Nome,
		Email:       f.Email,
		Role:        f.Role,
		Status:      f.Status,
		Ativo:       domain.Ativo(f.Status),
		Disciplinas: append([]string(nil), f.Disciplinas...),
		Turmas:      append([]string(nil), f.Turmas...),
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

func (f UserFixture) Credentials() application.UserCredentials {
	return application.UserCredentials{User: f.Application(), PasswordHash: f.PasswordHash}
}

func (f UserFixture) Principal() application.Principal {
	return application.Principal{UserID: f.ID, Role: f.Role}
}

func (f UserFixture) Persistence() persistence.User {
	return persistence.User{
		ID:           f.ID,
		Nome:         f.Nome,
		Email:        f.Email,
		PasswordHash: f.PasswordHash,
		Role:         string(f.Role),
		Status:       string(f.Status),
		Disciplinas:  append([]string(nil), f.Disciplinas...),
		Turmas:       append([]string(nil), f.Turmas...),
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

// -------------------------- Calendario fixtures --------------------------

// CalendarioFixture is a complete calendar for 6A Matemática, first bimester.
type CalendarioFixture struct {
	ID           string
	ProfessorID  string
	Turma        string
	Disciplina   string
	Bimestre     int
	Ano          int
	AV1          application.Avaliacao
	AV2          application.Avaliacao
	Consolidacao application.Consolidacao
	Status       domain.Status
	Comentario   string
	Version      int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CalendarioOption mutates a CalendarioFixture.
type CalendarioOption func(*CalendarioFixture)

func NewCalendarioFixture(opts ...CalendarioOption) CalendarioFixture {
	f := CalendarioFixture{
		ID:          "cal-1",
		ProfessorID: "prof-1",
		Turma:       "6A",
		Disciplina:  "Matemática",
		Bimestre:    1,
		Ano:         2025,
		AV1: application.Avaliacao{
			Data:        Day(2025, time.March, 14),
			Instrumento: domain.InstrumentoProvaImpressa,
			Conteudo:    "Frações e números decimais",
			Criterios:   "Resolução correta e organização",
		},
		AV2: application.Avaliacao{
			Data:        Day(2025, time.April, 4),
			Instrumento: domain.InstrumentoTrabalho,
			Conteudo:    "Geometria plana e perímetro",
			Criterios:   "Clareza na apresentação",
		},
		Consolidacao: application.Consolidacao{
			Data:      Day(2025, time.April, 11),
			Conteudo:  "Revisão dos conteúdos do bimestre",
			Criterios: "Participação e resolução",
		},
		Status:    domain.StatusRascunho,
		Version:   1,
		CreatedAt: referenceTime,
		UpdatedAt: referenceTime,
	}
	for _, opt := range opts {
		opt(&f)
	}
	return f
}

func WithCalendarioID(id string) CalendarioOption {
	return func(f *CalendarioFixture) { f.ID = id }
}

func WithCalendarioProfessor(id string) CalendarioOption {
	return func(f *CalendarioFixture) { f.ProfessorID = id }
}

func WithCalendarioTurma(turma string) CalendarioOption {
	return func(f *CalendarioFixture) { f.Turma = turma }
}

func WithCalendarioDisciplina(disciplina string) CalendarioOption {
	return func(f *CalendarioFixture) { f.Disciplina = disciplina }
}

func WithCalendarioPeriodo(bimestre, ano int) CalendarioOption {
	return func(f *CalendarioFixture) {
		f.Bimestre = bimestre
		f.Ano = ano
	}
}

func WithCalendarioStatus(status domain.Status) CalendarioOption {
	return func(f *CalendarioFixture) { f.Status = status }
}

// WithCalendarioInstrumentos replaces both evaluation instruments.
func WithCalendarioInstrumentos(av1, av2 domain.Instrumento) CalendarioOption {
	return func(f *CalendarioFixture) {
		f.AV1.Instrumento = av1
		f.AV2.Instrumento = av2
	}
}

// WithCalendarioDatas replaces the three evaluation dates. Zero means undecided.
func WithCalendarioDatas(av1, av2, consolidacao time.Time) CalendarioOption {
	return func(f *CalendarioFixture) {
		f.AV1.Data = av1
		f.AV2.Data = av2
		f.Consolidacao.Data = consolidacao
	}
}

func WithCalendarioVersion(version int) CalendarioOption {
	return func(f *CalendarioFixture) { f.Version = version }
}

func (f CalendarioFixture) Application() application.Calendario {
	return application.Calendario{
		ID:                    f.ID,
		ProfessorID:           f.ProfessorID,
		Turma:                 f.Turma,
		Disciplina:            f.Disciplina,
		Bimestre:              f.Bimestre,
		Ano:                   f.Ano,
		AV1:                   f.AV1,
		AV2:                   f.AV2,
		Consolidacao:          f.Consolidacao,
		Status:                f.Status,
		NecessitaImpressao:    domain.NecessitaImpressao(f.AV1.Instrumento, f.AV2.Instrumento),
		ComentarioCoordenacao: f.Comentario,
		Version:               f.Version,
		CreatedAt:             f.CreatedAt,
		UpdatedAt:             f.UpdatedAt,
	}
}

// Input returns the caller facing fields of the calendar.
func (f CalendarioFixture) Input() application.CalendarioInput {
	return application.CalendarioInput{
		Turma:      f.Turma,
		Disciplina: f.Disciplina,
		Bimestre:   f.Bimestre,
		Ano:        f.Ano,
		AV1: application.AvaliacaoInput{
			Data:        f.AV1.Data,
			Instrumento: string(f.AV1.Instrumento),
			Conteudo:    f.AV1.Conteudo,
			Criterios:   f.AV1.Criterios,
		},
		AV2: application.AvaliacaoInput{
			Data:        f.AV2.Data,
			Instrumento: string(f.AV2.Instrumento),
			Conteudo:    f.AV2.Conteudo,
			Criterios:   f.AV2.Criterios,
		},
		Consolidacao: application.ConsolidacaoInput{
			Data:      f.Consolidacao.Data,
			Conteudo:  f.Consolidacao.Conteudo,
			Criterios: f.Consolidacao.Criterios,
		},
	}
}

func (f CalendarioFixture) Persistence() persistence.Calendario {
	return persistence.Calendario{
		ID:          f.ID,
		ProfessorID: f.ProfessorID,
		Turma:       f.Turma,
		Disciplina:  f.Disciplina,
		Bimestre:    f.Bimestre,
		Ano:         f.Ano,
		AV1: persistence.Avaliacao{
			Data:        f.AV1.Data,
			Instrumento: string(f.AV1.Instrumento),
			Conteudo:    f.AV1.Conteudo,
			Criterios:   f.AV1.Criterios,
		},
		AV2: persistence.Avaliacao{
			Data:        f.AV2.Data,
			Instrumento: string(f.AV2.Instrumento),
			Conteudo:    f.AV2.Conteudo,
			Criterios:   f.AV2.Criterios,
		},
		Consolidacao: persistence.Consolidacao{
			Data:      f.Consolidacao.Data,
			Conteudo:  f.Consolidacao.Conteudo,
			Criterios: f.Consolidacao.Criterios,
		},
		Status:                string(f.Status),
		ComentarioCoordenacao: f.Comentario,
		Version:               f.Version,
		CreatedAt:             f.CreatedAt,
		UpdatedAt:             f.UpdatedAt,
	}
}

// ------------------------- GradeHoraria fixtures -------------------------

// GradeHorariaFixture is one weekday of a professor's weekly grid.
type GradeHorariaFixture struct {
	ID          string
	ProfessorID string
	Turma       string
	Disciplina  string
	DiaSemana   time.Weekday
	CreatedAt   time.Time
}

// GradeHorariaOption mutates a GradeHorariaFixture.
type GradeHorariaOption func(*GradeHorariaFixture)

func NewGradeHorariaFixture(opts ...GradeHorariaOption) GradeHorariaFixture {
	f := GradeHorariaFixture{
		ID:          "grade-1",
		ProfessorID: "prof-1",
		Turma:       "6A",
		Disciplina:  "Matemática",
		DiaSemana:   time.Monday,
		CreatedAt:   referenceTime,
	}
	for _, opt := range opts {
		opt(&f)
	}
	return f
}

func WithGradeID(id string) GradeHorariaOption {
	return func(f *GradeHorariaFixture) { f.ID = id }
}

func WithGradeProfessor(id string) GradeHorariaOption {
	return func(f *GradeHorariaFixture) { f.ProfessorID = id }
}

func WithGradeDia(day time.Weekday) GradeHorariaOption {
	return func(f *GradeHorariaFixture) { f.DiaSemana = day }
}

func (f GradeHorariaFixture) Application() application.GradeHoraria {
	return application.GradeHoraria{
		ID:          f.ID,
		ProfessorID: f.ProfessorID,
		Turma:       f.Turma,
		Disciplina:  f.Disciplina,
		DiaSemana:   f.DiaSemana,
		CreatedAt:   f.CreatedAt,
	}
}

func (f GradeHorariaFixture) Persistence() persistence.GradeHoraria {
	return persistence.GradeHoraria{
		ID:          f.ID,
		ProfessorID: f.ProfessorID,
		Turma:       f.Turma,
		Disciplina:  f.Disciplina,
		DiaSemana:   int(f.DiaSemana),
		CreatedAt:   f.CreatedAt,
	}
}
