package persistence

import "time"

// User represents an account of the school staff.
type User struct {
	ID           string
	Nome         string
	Email        string
	PasswordHash string
	Role         string
	Status       string
	// Ativo is derived from Status by the storage on every write.
	Ativo        bool
	Disciplinas  []string
	Turmas       []string
	Preferencias map[string]string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserFilter narrows user queries. Empty fields match everything.
type UserFilter struct {
	Role   string
	Status string
}

// Avaliacao stores one graded evaluation of a calendar.
type Avaliacao struct {
	Data        time.Time
	Instrumento string
	Conteudo    string
	Criterios   string
}

// Consolidacao stores the remediation evaluation of a calendar.
type Consolidacao struct {
	Data      time.Time
	Conteudo  string
	Criterios string
}

// Calendario stores the assessment calendar of one class, discipline and bimester.
type Calendario struct {
	ID          string
	ProfessorID string
	// ProfessorNome and ProfessorEmail are read from the owning user and ignored on write.
	ProfessorNome         string
	ProfessorEmail        string
	Turma                 string
	Disciplina            string
	Bimestre              int
	Ano                   int
	AV1                   Avaliacao
	AV2                   Avaliacao
	Consolidacao          Consolidacao
	Status                string
	// NecessitaImpressao is derived from the instruments by the storage on every write.
	NecessitaImpressao    bool
	ComentarioCoordenacao string
	Version               int
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// CalendarioFilter narrows calendar queries. Zero values match everything.
type CalendarioFilter struct {
	ProfessorID string
	Turma       string
	Disciplina  string
	Bimestre    int
	Ano         int
	Statuses    []string
}

// CalendarioCounts aggregates calendars matching a filter.
type CalendarioCounts struct {
	Total              int
	Rascunho           int
	Enviado            int
	Aprovado           int
	NecessitaImpressao int
}

// GradeHoraria records that a professor teaches a discipline to a class on a weekday.
type GradeHoraria struct {
	ID          string
	ProfessorID string
	Turma       string
	Disciplina  string
	DiaSemana   int
	CreatedAt   time.Time
}

// GradeHorariaFilter narrows weekly grid queries.
type GradeHorariaFilter struct {
	ProfessorID string
	Turma       string
	Disciplina  string
}
