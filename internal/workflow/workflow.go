// Package workflow implements the calendar lifecycle as an explicit
// permission table keyed by action and role.
//
// Authorization runs in two layers. Authorize checks only the actor's role
// and is safe to call before any record has been loaded. Check additionally
// validates ownership and the current status of the record and returns the
// status the record moves to when the action is applied.
package workflow

import (
	"errors"
	"fmt"

	"github.com/example/calendario-escolar/internal/domain"
)

var (
	// ErrForbidden reports that the actor's role may not perform the action.
	ErrForbidden = errors.New("workflow: role not allowed")
	// ErrNotOwner reports that the action requires the actor to own the record.
	ErrNotOwner = errors.New("workflow: actor does not own record")
	// ErrInvalidState reports that the record's status does not allow the action.
	ErrInvalidState = errors.New("workflow: invalid state for action")
	// ErrUnknownAction reports an action missing from the permission table.
	ErrUnknownAction = errors.New("workflow: unknown action")
)

// Action names an operation on a calendar.
type Action string

const (
	ActionCreate          Action = "create"
	ActionUpdate          Action = "update"
	ActionEnviar          Action = "enviar"
	ActionAprovar         Action = "aprovar"
	ActionSolicitarAjuste Action = "solicitar-ajuste"
	ActionDelete          Action = "delete"
)

// ParseAction converts a raw value into an Action.
func ParseAction(value string) (Action, bool) {
	a := Action(value)
	if _, ok := table[a]; ok {
		return a, true
	}
	return "", false
}

// Actor is the authenticated identity attempting an action.
type Actor struct {
	ID   string
	Role domain.Role
}

// Subject is the part of a calendar that authorization depends on.
type Subject struct {
	OwnerID string
	Status  domain.Status
}

// Grant describes what a role may do for one action.
type Grant struct {
	// RequireOwner restricts the action to the record's owner.
	RequireOwner bool
	// From lists the statuses the action may start from. Empty means any.
	From []domain.Status
	// To is the resulting status. Empty keeps the current status.
	To domain.Status
}

func (g Grant) allows(status domain.Status) bool {
	if len(g.From) == 0 {
		return true
	}
	for _, s := range g.From {
		if s == status {
			return true
		}
	}
	return false
}

var (
	authorDraft = Grant{RequireOwner: true, From: []domain.Status{domain.StatusRascunho}}
	reviewAny   = Grant{}
)

var table = map[Action]map[domain.Role]Grant{
	ActionCreate: {
		domain.RoleProfessor:           {To: domain.StatusRascunho},
		domain.RoleProfessorSubstituto: {To: domain.StatusRascunho},
	},
	ActionUpdate: {
		domain.RoleProfessor:           authorDraft,
		domain.RoleProfessorSubstituto: authorDraft,
		domain.RoleAdmin:               reviewAny,
		domain.RoleCoordenacao:         reviewAny,
	},
	ActionEnviar: {
		domain.RoleProfessor:           {RequireOwner: true, From: []domain.Status{domain.StatusRascunho}, To: domain.StatusEnviado},
		domain.RoleProfessorSubstituto: {RequireOwner: true, From: []domain.Status{domain.StatusRascunho}, To: domain.StatusEnviado},
	},
	ActionAprovar: {
		domain.RoleAdmin:       {From: []domain.Status{domain.StatusEnviado}, To: domain.StatusAprovado},
		domain.RoleCoordenacao: {From: []domain.Status{domain.StatusEnviado}, To: domain.StatusAprovado},
	},
	ActionSolicitarAjuste: {
		domain.RoleAdmin:       {From: []domain.Status{domain.StatusEnviado}, To: domain.StatusRascunho},
		domain.RoleCoordenacao: {From: []domain.Status{domain.StatusEnviado}, To: domain.StatusRascunho},
	},
	ActionDelete: {
		domain.RoleProfessor:           authorDraft,
		domain.RoleProfessorSubstituto: authorDraft,
		domain.RoleAdmin:               reviewAny,
		domain.RoleCoordenacao:         reviewAny,
	},
}

// Lookup returns the grant a role holds for an action.
func Lookup(action Action, role domain.Role) (Grant, bool) {
	grants, ok := table[action]
	if !ok {
		return Grant{}, false
	}
	grant, ok := grants[role]
	return grant, ok
}

// Authorize applies the role gate for an action.
func Authorize(action Action, actor Actor) error {
	grants, ok := table[action]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	if _, ok := grants[actor.Role]; !ok {
		return fmt.Errorf("%w: %s cannot %s", ErrForbidden, actor.Role, action)
	}
	return nil
}

// Check applies the role gate followed by the ownership and state gates and
// returns the status that results from performing the action.
func Check(action Action, actor Actor, subject Subject) (domain.Status, error) {
	if err := Authorize(action, actor); err != nil {
		return "", err
	}
	grant, _ := Lookup(action, actor.Role)

	if grant.RequireOwner && (actor.ID == "" || actor.ID != subject.OwnerID) {
		return "", ErrNotOwner
	}
	if !grant.allows(subject.Status) {
		return "", fmt.Errorf("%w: cannot %s while %s", ErrInvalidState, action, subject.Status)
	}

	if grant.To != "" {
		return grant.To, nil
	}
	return subject.Status, nil
}

// Visibility reports whether list queries for the actor are restricted to
// records the actor owns.
func Visibility(actor Actor) (ownOnly bool) {
	return !actor.Role.IsReviewer()
}
