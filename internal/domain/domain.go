// Package domain holds the closed value sets shared across the calendar
// workflow and the pure functions that derive stored fields from them.
package domain

import (
	"strings"
	"unicode"
)

// Role identifies the capabilities granted to an authenticated user.
type Role string

const (
	RoleAdmin               Role = "admin"
	RoleCoordenacao         Role = "coordenacao"
	RoleProfessor           Role = "professor"
	RoleProfessorSubstituto Role = "professor_substituto"
)

var roles = []Role{RoleAdmin, RoleCoordenacao, RoleProfessor, RoleProfessorSubstituto}

// Roles returns every known role in a stable order.
func Roles() []Role {
	out := make([]Role, len(roles))
	copy(out, roles)
	return out
}

// ParseRole converts a raw value into a Role. Unknown values report false.
func ParseRole(value string) (Role, bool) {
	candidate := Role(strings.TrimSpace(strings.ToLower(value)))
	for _, r := range roles {
		if r == candidate {
			return r, true
		}
	}
	return "", false
}

// IsAuthor reports whether the role drafts calendars of its own.
func (r Role) IsAuthor() bool {
	return r == RoleProfessor || r == RoleProfessorSubstituto
}

// IsReviewer reports whether the role reviews calendars of other users.
func (r Role) IsReviewer() bool {
	return r == RoleAdmin || r == RoleCoordenacao
}

// UserStatus gates whether an account may sign in.
type UserStatus string

const (
	UserPendente  UserStatus = "pendente"
	UserAprovado  UserStatus = "aprovado"
	UserRejeitado UserStatus = "rejeitado"
)

// ParseUserStatus converts a raw value into a UserStatus.
func ParseUserStatus(value string) (UserStatus, bool) {
	switch s := UserStatus(strings.TrimSpace(strings.ToLower(value))); s {
	case UserPendente, UserAprovado, UserRejeitado:
		return s, true
	}
	return "", false
}

// Status is the lifecycle position of a calendar.
type Status string

const (
	StatusRascunho Status = "rascunho"
	StatusEnviado  Status = "enviado"
	StatusAprovado Status = "aprovado"
)

// ParseStatus converts a raw value into a Status.
func ParseStatus(value string) (Status, bool) {
	switch s := Status(strings.TrimSpace(strings.ToLower(value))); s {
	case StatusRascunho, StatusEnviado, StatusAprovado:
		return s, true
	}
	return "", false
}

// Instrumento names the evaluation instrument of AV1 and AV2.
type Instrumento string

const (
	InstrumentoProvaImpressa    Instrumento = "Prova Impressa"
	InstrumentoProvaOnline      Instrumento = "Prova Online"
	InstrumentoListaExercicios  Instrumento = "Lista de Exercícios"
	InstrumentoTrabalho         Instrumento = "Trabalho"
	InstrumentoSeminario        Instrumento = "Seminário"
	InstrumentoProjeto          Instrumento = "Projeto"
	InstrumentoApresentacaoOral Instrumento = "Apresentação Oral"
	InstrumentoAtividadePratica Instrumento = "Atividade Prática"
	InstrumentoOutro            Instrumento = "Outro"
)

var instrumentos = []Instrumento{
	InstrumentoProvaImpressa,
	InstrumentoProvaOnline,
	InstrumentoListaExercicios,
	InstrumentoTrabalho,
	InstrumentoSeminario,
	InstrumentoProjeto,
	InstrumentoApresentacaoOral,
	InstrumentoAtividadePratica,
	InstrumentoOutro,
}

// Instrumentos returns the accepted instruments in display order.
func Instrumentos() []Instrumento {
	out := make([]Instrumento, len(instrumentos))
	copy(out, instrumentos)
	return out
}

// ValidInstrumento reports whether value is an accepted instrument.
func ValidInstrumento(value string) bool {
	for _, i := range instrumentos {
		if string(i) == value {
			return true
		}
	}
	return false
}

// IsPrintRequiring reports whether an instrument is delivered on paper.
func IsPrintRequiring(i Instrumento) bool {
	return i == InstrumentoProvaImpressa || i == InstrumentoListaExercicios
}

// NecessitaImpressao derives the needs-printing flag of a calendar from its
// two evaluation instruments.
func NecessitaImpressao(av1, av2 Instrumento) bool {
	return IsPrintRequiring(av1) || IsPrintRequiring(av2)
}

// Ativo derives the active flag of a user from its approval status.
func Ativo(status UserStatus) bool {
	return status == UserAprovado
}

// ValidTurma reports whether value looks like a class code such as "6ºA",
// "1A" or "3º Ano B": letters, digits, spaces, ordinal indicators and
// hyphens, with at least one digit.
func ValidTurma(value string) bool {
	if value == "" || strings.TrimSpace(value) != value {
		return false
	}
	hasDigit := false
	for _, r := range value {
		switch {
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsLetter(r), r == ' ', r == 'º', r == 'ª', r == '-':
		default:
			return false
		}
	}
	return hasDigit
}
