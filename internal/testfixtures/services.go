package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/calendario-escolar/internal/application"
	"github.com/example/calendario-escolar/internal/recurrence"
)

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

func (f *ServiceFactory) defaults(idGen func() string, now func() time.Time) (func() string, func() time.Time) {
	if idGen == nil {
		idGen = f.IDGenerator.NextFunc()
	}
	if now == nil {
		now = f.Clock.NowFunc()
	}
	return idGen, now
}

// CalendarioServiceDeps captures dependencies for constructing a calendar service.
type CalendarioServiceDeps struct {
	Calendarios application.CalendarioRepository
	Users       application.UserDirectory
	IDGenerator func() string
	Now         func() time.Time
	Logger      *slog.Logger
}

func (f *ServiceFactory) NewCalendarioService(deps CalendarioServiceDeps) *application.CalendarioService {
	idGen, now := f.defaults(deps.IDGenerator, deps.Now)
	return application.NewCalendarioServiceWithLogger(deps.Calendarios, deps.Users, idGen, now, deps.Logger)
}

// UserServiceDeps captures dependencies for constructing a user service.
type UserServiceDeps struct {
	Users       application.UserRepository
	IDGenerator func() string
	Now         func() time.Time
	Logger      *slog.Logger
}

func (f *ServiceFactory) NewUserService(deps UserServiceDeps) *application.UserService {
	idGen, now := f.defaults(deps.IDGenerator, deps.Now)
	return application.NewUserServiceWithLogger(deps.Users, idGen, now, deps.Logger)
}

// AuthServiceDeps captures dependencies for constructing an auth service.
type AuthServiceDeps struct {
	Credentials    application.CredentialStore
	PasswordVerify application.PasswordVerifier
	Secret         []byte
	TokenTTL       time.Duration
	IDGenerator    func() string
	Now            func() time.Time
	Logger         *slog.Logger
}

// NewAuthService builds an auth service. A nil Secret uses a fixed test key.
func (f *ServiceFactory) NewAuthService(deps AuthServiceDeps) *application.AuthService {
	idGen, now := f.defaults(deps.IDGenerator, deps.Now)
	secret := deps.Secret
	if len(secret) == 0 {
		secret = []byte("chave-de-teste-com-32-caracteres")
	}
	return application.NewAuthServiceWithLogger(deps.Credentials, deps.PasswordVerify, secret, deps.TokenTTL, idGen, now, deps.Logger)
}

// GradeHorariaServiceDeps captures dependencies for constructing a weekly grid service.
type GradeHorariaServiceDeps struct {
	Entries     application.GradeHorariaRepository
	Engine      *recurrence.Engine
	IDGenerator func() string
	Now         func() time.Time
	Logger      *slog.Logger
}

func (f *ServiceFactory) NewGradeHorariaService(deps GradeHorariaServiceDeps) *application.GradeHorariaService {
	idGen, now := f.defaults(deps.IDGenerator, deps.Now)
	return application.NewGradeHorariaServiceWithLogger(deps.Entries, deps.Engine, idGen, now, deps.Logger)
}

// DocumentServiceDeps captures dependencies for constructing a document service.
type DocumentServiceDeps struct {
	Calendarios application.CalendarioRepository
	Renderer    application.DocumentRenderer
	Logger      *slog.Logger
}

func (f *ServiceFactory) NewDocumentService(deps DocumentServiceDeps) *application.DocumentService {
	return application.NewDocumentServiceWithLogger(deps.Calendarios, deps.Renderer, deps.Logger)
}
