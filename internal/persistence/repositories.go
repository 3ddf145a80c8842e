package persistence

import "context"

// UserRepository exposes CRUD operations for users.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	UpdateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context, filter UserFilter) ([]User, error)
	DeleteUser(ctx context.Context, id string) error
}

// CalendarioRepository stores assessment calendars.
//
// UpdateCalendario and DeleteCalendario only succeed while the stored version
// equals expectedVersion and return ErrStaleVersion otherwise. A successful
// update stores calendario.Version as expectedVersion+1.
type CalendarioRepository interface {
	CreateCalendario(ctx context.Context, calendario Calendario) error
	GetCalendario(ctx context.Context, id string) (Calendario, error)
	UpdateCalendario(ctx context.Context, calendario Calendario, expectedVersion int) error
	DeleteCalendario(ctx context.Context, id string, expectedVersion int) error
	ListCalendarios(ctx context.Context, filter CalendarioFilter) ([]Calendario, error)
	CountCalendarios(ctx context.Context, filter CalendarioFilter) (CalendarioCounts, error)
}

// GradeHorariaRepository stores weekly grid entries.
type GradeHorariaRepository interface {
	CreateGradeHoraria(ctx context.Context, entry GradeHoraria) error
	GetGradeHoraria(ctx context.Context, id string) (GradeHoraria, error)
	ListGradeHoraria(ctx context.Context, filter GradeHorariaFilter) ([]GradeHoraria, error)
	DeleteGradeHoraria(ctx context.Context, id string) error
}
