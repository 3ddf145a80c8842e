package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/calendario-escolar/internal/disciplina"
	"github.com/example/calendario-escolar/internal/domain"
	"github.com/example/calendario-escolar/internal/persistence"
)

// UserRepository captures the persistence operations needed by the user service.
type UserRepository interface {
	CreateUser(ctx context.Context, user User, passwordHash string) (User, error)
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (UserCredentials, error)
	UpdateUser(ctx context.Context, user User) (User, error)
	DeleteUser(ctx context.Context, id string) error
	ListUsers(ctx context.Context, filter UserFilter) ([]User, error)
}

// PasswordHasher derives a storable hash from a plain password.
type PasswordHasher func(password string) (string, error)

// UserService orchestrates validation, authorization, and persistence for users.
type UserService struct {
	users        UserRepository
	hashPassword PasswordHasher
	idGenerator  func() string
	now          func() time.Time
	logger       *slog.Logger
	onChange     func()
}

// NewUserService wires dependencies for the user service.
func NewUserService(users UserRepository, idGenerator func() string, now func() time.Time) *UserService {
	return NewUserServiceWithLogger(users, idGenerator, now, nil)
}

// NewUserServiceWithLogger wires dependencies for the user service with a specified logger.
func NewUserServiceWithLogger(users UserRepository, idGenerator func() string, now func() time.Time, logger *slog.Logger) *UserService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &UserService{
		users:        users,
		hashPassword: HashPassword,
		idGenerator:  idGenerator,
		now:          now,
		logger:       defaultLogger(logger),
	}
}

// NotifyChanges registers fn to run after a user's name, status or existence
// changes. Derived read models that embed user data hook in here.
func (s *UserService) NotifyChanges(fn func()) {
	if s == nil {
		return
	}
	s.onChange = fn
}

func (s *UserService) changed() {
	if s.onChange != nil {
		s.onChange()
	}
}

func (s *UserService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "UserService", operation, attrs...)
}

// Register creates a pending account. An administrator must approve it
// before the user can sign in.
func (s *UserService) Register(ctx context.Context, params RegisterParams) (user User, err error) {
	if s == nil {
		err = fmt.Errorf("UserService is nil")
		return
	}
	if s.users == nil {
		err = fmt.Errorf("user repository not configured")
		return
	}

	params.Nome = strings.TrimSpace(params.Nome)
	params.Email = normalizeEmail(params.Email)
	params.Role = strings.TrimSpace(strings.ToLower(params.Role))
	params.Disciplinas = normalizeDisciplinas(params.Disciplinas)
	params.Turmas = normalizeList(params.Turmas)

	logger := s.loggerWith(ctx, "Register", "email", params.Email, "role", params.Role)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "registration failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("user_id", user.ID).InfoContext(ctx, "user registered")
	}()

	if vErr := validateStruct(params); vErr.HasErrors() {
		err = vErr
		return
	}

	if err = s.ensureEmailAvailable(ctx, params.Email, ""); err != nil {
		return
	}

	var hash string
	hash, err = s.hashPassword(params.Password)
	if err != nil {
		return
	}

	role, _ := domain.ParseRole(params.Role)
	now := s.now()
	user = User{
		ID:          s.idGenerator(),
		Nome:        params.Nome,
		Email:       params.Email,
		Role:        role,
		Status:      domain.UserPendente,
		Ativo:       domain.Ativo(domain.UserPendente),
		Disciplinas: params.Disciplinas,
		Turmas:      params.Turmas,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	user, err = s.users.CreateUser(ctx, user, hash)
	if err != nil {
		err = mapUserRepoError(err)
		return
	}
	return
}

// Approve activates a pending or rejected account.
func (s *UserService) Approve(ctx context.Context, params ReviewUserParams) (User, error) {
	return s.review(ctx, "Approve", params, domain.UserAprovado)
}

// Reject marks an account as rejected, which blocks sign in.
func (s *UserService) Reject(ctx context.Context, params ReviewUserParams) (User, error) {
	return s.review(ctx, "Reject", params, domain.UserRejeitado)
}

func (s *UserService) review(ctx context.Context, operation string, params ReviewUserParams, status domain.UserStatus) (user User, err error) {
	if s == nil {
		err = fmt.Errorf("UserService is nil")
		return
	}
	if s.users == nil {
		err = fmt.Errorf("user repository not configured")
		return
	}

	logger := s.loggerWith(ctx, operation,
		"principal_id", params.Principal.UserID,
		"user_id", params.UserID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "user review failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		s.changed()
		logger.With("status", user.Status).InfoContext(ctx, "user reviewed")
	}()

	if params.Principal.Role != domain.RoleAdmin {
		err = ErrUnauthorized
		return
	}
	if params.UserID == params.Principal.UserID {
		vErr := &ValidationError{}
		vErr.add("id", "administrador não pode revisar a própria conta")
		err = vErr
		return
	}

	user, err = s.users.GetUser(ctx, params.UserID)
	if err != nil {
		err = mapUserRepoError(err)
		return
	}
	if user.Status == status {
		return
	}

	user.Status = status
	user.Ativo = domain.Ativo(status)
	user.UpdatedAt = s.now()
	user, err = s.users.UpdateUser(ctx, user)
	if err != nil {
		err = mapUserRepoError(err)
		return
	}
	return
}

// UpdateProfile lets a user edit their own name, e-mail, disciplines, classes
// and preferences. Role and status are never touched.
func (s *UserService) UpdateProfile(ctx context.Context, params UpdateProfileParams) (user User, err error) {
	if s == nil {
		err = fmt.Errorf("UserService is nil")
		return
	}
	if s.users == nil {
		err = fmt.Errorf("user repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "UpdateProfile", "principal_id", params.Principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "profile update failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		s.changed()
		logger.InfoContext(ctx, "profile updated")
	}()

	if params.Principal.UserID == "" {
		err = ErrUnauthenticated
		return
	}

	input := params.Input
	input.Nome = strings.TrimSpace(input.Nome)
	input.Email = normalizeEmail(input.Email)
	input.Disciplinas = normalizeDisciplinas(input.Disciplinas)
	input.Turmas = normalizeList(input.Turmas)
	if vErr := validateStruct(input); vErr.HasErrors() {
		err = vErr
		return
	}

	user, err = s.users.GetUser(ctx, params.Principal.UserID)
	if err != nil {
		err = mapUserRepoError(err)
		return
	}
	if input.Email != user.Email {
		if err = s.ensureEmailAvailable(ctx, input.Email, user.ID); err != nil {
			return
		}
	}

	user.Nome = input.Nome
	user.Email = input.Email
	user.Disciplinas = input.Disciplinas
	user.Turmas = input.Turmas
	user.Preferencias = input.Preferencias
	user.UpdatedAt = s.now()

	user, err = s.users.UpdateUser(ctx, user)
	if err != nil {
		err = mapUserRepoError(err)
		return
	}
	return
}

// GetUser returns a user to themselves or to a reviewer.
func (s *UserService) GetUser(ctx context.Context, principal Principal, id string) (User, error) {
	if s == nil {
		return User{}, fmt.Errorf("UserService is nil")
	}
	if s.users == nil {
		return User{}, fmt.Errorf("user repository not configured")
	}
	if principal.UserID != id && !principal.Role.IsReviewer() {
		return User{}, ErrNotFound
	}
	user, err := s.users.GetUser(ctx, id)
	if err != nil {
		return User{}, mapUserRepoError(err)
	}
	return user, nil
}

// ListUsers returns users for administrators and coordination.
func (s *UserService) ListUsers(ctx context.Context, principal Principal, filter UserFilter) ([]User, error) {
	if s == nil {
		return nil, fmt.Errorf("UserService is nil")
	}
	if !principal.Role.IsReviewer() {
		return nil, ErrUnauthorized
	}
	if s.users == nil {
		return nil, nil
	}

	users, err := s.users.ListUsers(ctx, filter)
	if err != nil {
		return nil, mapUserRepoError(err)
	}
	return users, nil
}

// DeleteUser removes an account. Accounts that still own calendars cannot be
// removed.
func (s *UserService) DeleteUser(ctx context.Context, principal Principal, userID string) (err error) {
	if s == nil {
		return fmt.Errorf("UserService is nil")
	}
	if s.users == nil {
		return fmt.Errorf("user repository not configured")
	}

	logger := s.loggerWith(ctx, "DeleteUser", "principal_id", principal.UserID, "user_id", userID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete user", "error", err, "error_kind", ErrorKind(err))
			return
		}
		s.changed()
		logger.InfoContext(ctx, "user deleted")
	}()

	if principal.Role != domain.RoleAdmin {
		return ErrUnauthorized
	}
	if userID == principal.UserID {
		vErr := &ValidationError{}
		vErr.add("id", "administrador não pode excluir a própria conta")
		return vErr
	}

	if err = s.users.DeleteUser(ctx, userID); err != nil {
		if errors.Is(err, persistence.ErrForeignKeyViolation) {
			return fmt.Errorf("%w: usuário possui calendários", ErrInvalidState)
		}
		return mapUserRepoError(err)
	}
	return nil
}

// EnsureAdmin creates the bootstrap administrator unless an account with the
// same e-mail already exists. It reports whether an account was created.
func (s *UserService) EnsureAdmin(ctx context.Context, params BootstrapAdminParams) (user User, created bool, err error) {
	if s == nil {
		err = fmt.Errorf("UserService is nil")
		return
	}
	if s.users == nil {
		err = fmt.Errorf("user repository not configured")
		return
	}

	email := normalizeEmail(params.Email)
	logger := s.loggerWith(ctx, "EnsureAdmin", "email", email)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "admin bootstrap failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("user_id", user.ID, "created", created).InfoContext(ctx, "admin bootstrap checked")
	}()

	var creds UserCredentials
	creds, err = s.users.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		user = creds.User
		return
	case !errors.Is(mapUserRepoError(err), ErrNotFound):
		return
	}
	err = nil

	nome := strings.TrimSpace(params.Nome)
	if nome == "" {
		nome = "Administrador"
	}
	vErr := &ValidationError{}
	if email == "" {
		vErr.add("email", "e-mail do administrador é obrigatório")
	}
	if len(params.Password) < 8 {
		vErr.add("password", "senha do administrador deve ter pelo menos 8 caracteres")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var hash string
	hash, err = s.hashPassword(params.Password)
	if err != nil {
		return
	}

	now := s.now()
	user, err = s.users.CreateUser(ctx, User{
		ID:        s.idGenerator(),
		Nome:      nome,
		Email:     email,
		Role:      domain.RoleAdmin,
		Status:    domain.UserAprovado,
		Ativo:     true,
		CreatedAt: now,
		UpdatedAt: now,
	}, hash)
	if err != nil {
		err = mapUserRepoError(err)
		return
	}
	created = true
	return
}

func (s *UserService) ensureEmailAvailable(ctx context.Context, email, ownerID string) error {
	existing, err := s.users.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		if existing.User.ID != ownerID {
			return ErrAlreadyExists
		}
		return nil
	case errors.Is(mapUserRepoError(err), ErrNotFound):
		return nil
	}
	return err
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// normalizeDisciplinas cleans the list like normalizeList and keeps it in
// curriculum order.
func normalizeDisciplinas(values []string) []string {
	out := normalizeList(values)
	disciplina.Sort(out)
	return out
}

// normalizeList trims entries and drops blanks and case-insensitive duplicates.
func normalizeList(values []string) []string {
	var out []string
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || containsFold(out, v) {
			continue
		}
		out = append(out, v)
	}
	return out
}

func mapUserRepoError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, ErrAlreadyExists), errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	case errors.Is(err, persistence.ErrConstraintViolation):
		vErr := &ValidationError{}
		vErr.add("usuario", "dados do usuário violam as regras de armazenamento")
		return vErr
	}
	return err
}
