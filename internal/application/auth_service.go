package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/example/calendario-escolar/internal/domain"
)

const tokenIssuer = "calendario-escolar"

// CredentialStore exposes user credential lookup operations required by the auth service.
type CredentialStore interface {
	GetUserByEmail(ctx context.Context, email string) (UserCredentials, error)
	GetUser(ctx context.Context, id string) (User, error)
}

// PasswordVerifier compares a stored hash with a candidate password.
type PasswordVerifier func(hashedPassword, password string) error

// TokenClaims is the payload of an access token.
type TokenClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AuthService signs users in and validates the bearer tokens it issues.
type AuthService struct {
	credentials    CredentialStore
	verifyPassword PasswordVerifier
	secret         []byte
	tokenTTL       time.Duration
	idGenerator    func() string
	now            func() time.Time
	logger         *slog.Logger
}

// NewAuthService constructs an AuthService with the provided dependencies.
func NewAuthService(credentials CredentialStore, verify PasswordVerifier, secret []byte, tokenTTL time.Duration, idGenerator func() string, now func() time.Time) *AuthService {
	return NewAuthServiceWithLogger(credentials, verify, secret, tokenTTL, idGenerator, now, nil)
}

// NewAuthServiceWithLogger constructs an AuthService with a specified logger.
func NewAuthServiceWithLogger(credentials CredentialStore, verify PasswordVerifier, secret []byte, tokenTTL time.Duration, idGenerator func() string, now func() time.Time, logger *slog.Logger) *AuthService {
	if verify == nil {
		verify = VerifyPassword
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	if tokenTTL <= 0 {
		tokenTTL = 12 * time.Hour
	}
	return &AuthService{
		credentials:    credentials,
		verifyPassword: verify,
		secret:         secret,
		tokenTTL:       tokenTTL,
		idGenerator:    idGenerator,
		now:            now,
		logger:         defaultLogger(logger),
	}
}

func (s *AuthService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AuthService", operation, attrs...)
}

// Login validates credentials and issues a signed access token. Only approved
// accounts may sign in.
func (s *AuthService) Login(ctx context.Context, params LoginParams) (result LoginResult, err error) {
	if s == nil {
		err = fmt.Errorf("AuthService is nil")
		return
	}
	if s.credentials == nil {
		err = fmt.Errorf("credential store not configured")
		return
	}
	if len(s.secret) == 0 {
		err = fmt.Errorf("token secret not configured")
		return
	}

	email := normalizeEmail(params.Email)
	logger := s.loggerWith(ctx, "Login", "email", email)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "login failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("user_id", result.User.ID).InfoContext(ctx, "login succeeded")
	}()

	if email == "" || params.Password == "" {
		err = ErrInvalidCredentials
		return
	}

	var creds UserCredentials
	creds, err = s.credentials.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(mapUserRepoError(err), ErrNotFound) {
			err = ErrInvalidCredentials
		}
		return
	}

	if err = s.verifyPassword(creds.PasswordHash, params.Password); err != nil {
		err = ErrInvalidCredentials
		return
	}
	if err = accountStatusError(creds.User.Status); err != nil {
		return
	}

	now := s.now()
	expiresAt := now.Add(s.tokenTTL)
	claims := TokenClaims{
		Role: string(creds.User.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        s.idGenerator(),
			Subject:   creds.User.ID,
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	var token string
	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		err = fmt.Errorf("sign token: %w", err)
		return
	}

	result = LoginResult{Token: token, ExpiresAt: expiresAt, User: creds.User}
	return
}

// ValidateToken verifies a bearer token and resolves the current principal.
// The user is reloaded so that role changes and rejections apply at once.
func (s *AuthService) ValidateToken(ctx context.Context, token string) (principal Principal, err error) {
	if s == nil {
		err = fmt.Errorf("AuthService is nil")
		return
	}
	if s.credentials == nil {
		err = fmt.Errorf("credential store not configured")
		return
	}

	token = strings.TrimSpace(token)
	logger := s.loggerWith(ctx, "ValidateToken", "token_provided", token != "")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "token validation failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("principal_id", principal.UserID).DebugContext(ctx, "token validated")
	}()

	if token == "" || len(s.secret) == 0 {
		err = ErrUnauthenticated
		return
	}

	claims := &TokenClaims{}
	_, err = jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithoutClaimsValidation())
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrUnauthenticated, err)
		return
	}
	if !claims.VerifyExpiresAt(s.now(), true) || !claims.VerifyIssuer(tokenIssuer, true) || claims.Subject == "" {
		err = ErrUnauthenticated
		return
	}

	var user User
	user, err = s.credentials.GetUser(ctx, claims.Subject)
	if err != nil {
		if errors.Is(mapUserRepoError(err), ErrNotFound) {
			err = ErrUnauthenticated
		}
		return
	}
	if err = accountStatusError(user.Status); err != nil {
		return
	}

	principal = Principal{UserID: user.ID, Role: user.Role}
	return
}

func accountStatusError(status domain.UserStatus) error {
	switch status {
	case domain.UserAprovado:
		return nil
	case domain.UserRejeitado:
		return ErrAccountRejected
	}
	return ErrAccountPending
}
