package application

import (
	"time"

	"github.com/example/calendario-escolar/internal/domain"
	"github.com/example/calendario-escolar/internal/workflow"
)

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID string
	Role   domain.Role
}

func (p Principal) actor() workflow.Actor {
	return workflow.Actor{ID: p.UserID, Role: p.Role}
}

// User represents a staff account exposed by the application services.
type User struct {
	ID           string
	Nome         string
	Email        string
	Role         domain.Role
	Status       domain.UserStatus
	Ativo        bool
	Disciplinas  []string
	Turmas       []string
	Preferencias map[string]string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserCredentials pairs a user with its stored password hash.
type UserCredentials struct {
	User         User
	PasswordHash string
}

// UserFilter narrows user listings.
type UserFilter struct {
	Role   domain.Role
	Status domain.UserStatus
}

// RegisterParams captures a self-service registration.
type RegisterParams struct {
	Nome        string   `json:"nome" validate:"required,max=120"`
	Email       string   `json:"email" validate:"required,email"`
	Password    string   `json:"password" validate:"required,min=8,max=128"`
	Role        string   `json:"role" validate:"required,oneof=professor professor_substituto coordenacao"`
	Disciplinas []string `json:"disciplinas" validate:"omitempty,dive,required,max=80"`
	Turmas      []string `json:"turmas" validate:"omitempty,dive,required,max=20,turma"`
}

// ProfileInput captures the fields a user may edit on their own account.
type ProfileInput struct {
	Nome         string            `json:"nome" validate:"required,max=120"`
	Email        string            `json:"email" validate:"required,email"`
	Disciplinas  []string          `json:"disciplinas" validate:"omitempty,dive,required,max=80"`
	Turmas       []string          `json:"turmas" validate:"omitempty,dive,required,max=20,turma"`
	Preferencias map[string]string `json:"preferencias" validate:"omitempty,max=32,dive,keys,required,max=40,endkeys,max=200"`
}

// UpdateProfileParams wraps a profile edit.
type UpdateProfileParams struct {
	Principal Principal
	Input     ProfileInput
}

// ReviewUserParams wraps an administrator decision on a pending account.
type ReviewUserParams struct {
	Principal Principal
	UserID    string
}

// BootstrapAdminParams describes the administrator created at start-up.
type BootstrapAdminParams struct {
	Nome     string
	Email    string
	Password string
}

// Avaliacao is one graded evaluation of a calendar.
type Avaliacao struct {
	Data        time.Time
	Instrumento domain.Instrumento
	Conteudo    string
	Criterios   string
}

// Consolidacao is the remediation evaluation of a calendar. It carries no instrument.
type Consolidacao struct {
	Data      time.Time
	Conteudo  string
	Criterios string
}

// Calendario is the assessment calendar of one class, discipline and bimester.
type Calendario struct {
	ID                    string
	ProfessorID           string
	ProfessorNome         string
	ProfessorEmail        string
	Turma                 string
	Disciplina            string
	Bimestre              int
	Ano                   int
	AV1                   Avaliacao
	AV2                   Avaliacao
	Consolidacao          Consolidacao
	Status                domain.Status
	NecessitaImpressao    bool
	ComentarioCoordenacao string
	Version               int
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// AvaliacaoInput captures caller provided evaluation fields. A zero Data
// means the date is still undecided.
type AvaliacaoInput struct {
	Data        time.Time `json:"data"`
	Instrumento string    `json:"instrumento" validate:"required,instrumento"`
	Conteudo    string    `json:"conteudo" validate:"required,min=10,max=2000"`
	Criterios   string    `json:"criterios" validate:"required,min=10,max=2000"`
}

// ConsolidacaoInput captures caller provided remediation fields.
type ConsolidacaoInput struct {
	Data      time.Time `json:"data"`
	Conteudo  string    `json:"conteudo" validate:"required,min=10,max=2000"`
	Criterios string    `json:"criterios" validate:"max=2000"`
}

// CalendarioInput captures caller provided calendar fields. The owner is
// never part of the input.
type CalendarioInput struct {
	Turma        string            `json:"turma" validate:"required,max=20,turma"`
	Disciplina   string            `json:"disciplina" validate:"required,max=80"`
	Bimestre     int               `json:"bimestre" validate:"required,min=1,max=4"`
	Ano          int               `json:"ano" validate:"required,min=2000,max=2100"`
	AV1          AvaliacaoInput    `json:"av1"`
	AV2          AvaliacaoInput    `json:"av2"`
	Consolidacao ConsolidacaoInput `json:"consolidacao"`
}

// CreateCalendarioParams wraps the data required to create a calendar.
type CreateCalendarioParams struct {
	Principal Principal
	Input     CalendarioInput
}

// TransitionParams wraps a workflow action on an existing calendar. Input is
// read by the update action and Comentario by solicitar-ajuste.
type TransitionParams struct {
	Principal    Principal
	CalendarioID string
	Action       workflow.Action
	Input        *CalendarioInput
	Comentario   string
}

// CalendarioFilter narrows calendar listings, statistics and event feeds.
type CalendarioFilter struct {
	ProfessorID string
	Turma       string
	Disciplina  string
	Bimestre    int
	Ano         int
	Status      domain.Status
}

// ListCalendariosParams wraps a listing request.
type ListCalendariosParams struct {
	Principal Principal
	Filter    CalendarioFilter
}

// Stats holds plain counts of calendars under a filter.
type Stats struct {
	Total              int `json:"total"`
	Rascunho           int `json:"rascunho"`
	Enviado            int `json:"enviado"`
	Aprovado           int `json:"aprovado"`
	NecessitaImpressao int `json:"necessitaImpressao"`
}

// EventoTipo labels the evaluation an event stands for.
type EventoTipo string

const (
	EventoAV1          EventoTipo = "AV1"
	EventoAV2          EventoTipo = "AV2"
	EventoConsolidacao EventoTipo = "Consolidação"
)

// Evento is one entry of the consolidated school calendar.
type Evento struct {
	CalendarioID       string
	Tipo               EventoTipo
	Data               time.Time
	Turma              string
	Disciplina         string
	Bimestre           int
	Ano                int
	ProfessorID        string
	ProfessorNome      string
	Instrumento        domain.Instrumento
	Conteudo           string
	NecessitaImpressao bool
}

// ConsolidatedParams wraps a consolidated calendar request.
type ConsolidatedParams struct {
	Principal Principal
	Turma     string
	Bimestre  int
	Ano       int
}

// GradeHoraria records that a professor teaches a discipline to a class on a weekday.
type GradeHoraria struct {
	ID          string
	ProfessorID string
	Turma       string
	Disciplina  string
	DiaSemana   time.Weekday
	CreatedAt   time.Time
}

// GradeHorariaInput captures caller provided weekly grid fields.
type GradeHorariaInput struct {
	Turma      string `json:"turma" validate:"required,max=20,turma"`
	Disciplina string `json:"disciplina" validate:"required,max=80"`
	DiaSemana  int    `json:"diaSemana" validate:"min=0,max=6"`
}

// CreateGradeHorariaParams wraps the data required to create a weekly grid entry.
type CreateGradeHorariaParams struct {
	Principal Principal
	Input     GradeHorariaInput
}

// GradeHorariaFilter narrows weekly grid listings.
type GradeHorariaFilter struct {
	ProfessorID string
	Turma       string
	Disciplina  string
}

// DiasDisponiveisParams asks for the dates a professor meets a class in a range.
type DiasDisponiveisParams struct {
	Principal   Principal
	ProfessorID string
	Turma       string
	Disciplina  string
	De          time.Time
	Ate         time.Time
}

// LoginParams captures the data required to authenticate a user.
type LoginParams struct {
	Email    string
	Password string
}

// LoginResult carries the issued token and the authenticated user.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      User
}
