package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/example/calendario-escolar/internal/domain"
)

var testSecret = []byte("segredo-de-teste-com-32-caracteres!!")

func newAuthTestService(now func() time.Time, users ...User) (*AuthService, *memoryUsers) {
	repo := newMemoryUsers()
	for _, u := range users {
		_, _ = repo.CreateUser(context.Background(), u, "hash:"+u.ID)
	}
	verify := func(hashed, password string) error {
		if hashed != "hash:"+password {
			return ErrInvalidCredentials
		}
		return nil
	}
	return NewAuthService(repo, verify, testSecret, time.Hour, sequentialIDs("jti"), now), repo
}

func TestAuthService_Login(t *testing.T) {
	t.Parallel()

	approved := User{ID: "u1", Email: "ana@escola.org", Role: domain.RoleCoordenacao, Status: domain.UserAprovado}
	pending := User{ID: "u2", Email: "bruno@escola.org", Role: domain.RoleProfessor, Status: domain.UserPendente}
	rejected := User{ID: "u3", Email: "carla@escola.org", Role: domain.RoleProfessor, Status: domain.UserRejeitado}

	tests := []struct {
		name     string
		email    string
		password string
		want     error
	}{
		{name: "approved account signs in", email: " ANA@escola.org", password: "u1"},
		{name: "wrong password", email: "ana@escola.org", password: "u2", want: ErrInvalidCredentials},
		{name: "unknown e-mail", email: "ghost@escola.org", password: "x", want: ErrInvalidCredentials},
		{name: "empty password", email: "ana@escola.org", password: "", want: ErrInvalidCredentials},
		{name: "pending account", email: "bruno@escola.org", password: "u2", want: ErrAccountPending},
		{name: "rejected account", email: "carla@escola.org", password: "u3", want: ErrAccountRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc, _ := newAuthTestService(fixedNow, approved, pending, rejected)

			result, err := svc.Login(context.Background(), LoginParams{Email: tt.email, Password: tt.password})
			if tt.want != nil {
				if !errors.Is(err, tt.want) {
					t.Fatalf("expected %v, got %v", tt.want, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Login failed: %v", err)
			}
			if result.Token == "" || result.User.ID != "u1" {
				t.Fatalf("expected token for u1, got %+v", result)
			}
			if !result.ExpiresAt.Equal(testNow.Add(time.Hour)) {
				t.Fatalf("expected expiry one hour after now, got %v", result.ExpiresAt)
			}
		})
	}
}

func TestAuthService_ValidateToken(t *testing.T) {
	t.Parallel()

	user := User{ID: "u1", Email: "ana@escola.org", Role: domain.RoleProfessor, Status: domain.UserAprovado}

	login := func(t *testing.T, svc *AuthService) string {
		t.Helper()
		result, err := svc.Login(context.Background(), LoginParams{Email: user.Email, Password: "u1"})
		if err != nil {
			t.Fatalf("Login failed: %v", err)
		}
		return result.Token
	}

	t.Run("resolves the principal of a fresh token", func(t *testing.T) {
		t.Parallel()
		svc, _ := newAuthTestService(fixedNow, user)

		principal, err := svc.ValidateToken(context.Background(), login(t, svc))
		if err != nil {
			t.Fatalf("ValidateToken failed: %v", err)
		}
		if principal.UserID != "u1" || principal.Role != domain.RoleProfessor {
			t.Fatalf("unexpected principal %+v", principal)
		}
	})

	t.Run("rejects expired tokens against the injected clock", func(t *testing.T) {
		t.Parallel()
		current := testNow
		svc, _ := newAuthTestService(func() time.Time { return current }, user)
		token := login(t, svc)

		current = current.Add(2 * time.Hour)
		if _, err := svc.ValidateToken(context.Background(), token); !errors.Is(err, ErrUnauthenticated) {
			t.Fatalf("expected ErrUnauthenticated for expired token, got %v", err)
		}
	})

	t.Run("applies role changes and rejections immediately", func(t *testing.T) {
		t.Parallel()
		svc, repo := newAuthTestService(fixedNow, user)
		token := login(t, svc)

		promoted := repo.users["u1"]
		promoted.Role = domain.RoleCoordenacao
		repo.users["u1"] = promoted
		principal, err := svc.ValidateToken(context.Background(), token)
		if err != nil || principal.Role != domain.RoleCoordenacao {
			t.Fatalf("expected current role, got %+v %v", principal, err)
		}

		promoted.Status = domain.UserRejeitado
		repo.users["u1"] = promoted
		if _, err := svc.ValidateToken(context.Background(), token); !errors.Is(err, ErrAccountRejected) {
			t.Fatalf("expected ErrAccountRejected, got %v", err)
		}

		delete(repo.users, "u1")
		if _, err := svc.ValidateToken(context.Background(), token); !errors.Is(err, ErrUnauthenticated) {
			t.Fatalf("expected ErrUnauthenticated for deleted user, got %v", err)
		}
	})

	t.Run("rejects tampered and foreign tokens", func(t *testing.T) {
		t.Parallel()
		svc, _ := newAuthTestService(fixedNow, user)
		token := login(t, svc)

		foreign, err := jwt.NewWithClaims(jwt.SigningMethodHS256, TokenClaims{
			Role: "admin",
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "u1",
				Issuer:    tokenIssuer,
				ExpiresAt: jwt.NewNumericDate(testNow.Add(time.Hour)),
			},
		}).SignedString([]byte("outra-chave"))
		if err != nil {
			t.Fatalf("sign foreign token: %v", err)
		}

		unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, TokenClaims{
			RegisteredClaims: jwt.RegisteredClaims{Subject: "u1", Issuer: tokenIssuer},
		}).SignedString(jwt.UnsafeAllowNoneSignatureType)
		if err != nil {
			t.Fatalf("sign none token: %v", err)
		}

		for name, candidate := range map[string]string{
			"empty":    "",
			"garbage":  "not-a-token",
			"tampered": token + "x",
			"foreign":  foreign,
			"unsigned": unsigned,
		} {
			if _, err := svc.ValidateToken(context.Background(), candidate); !errors.Is(err, ErrUnauthenticated) {
				t.Errorf("%s: expected ErrUnauthenticated, got %v", name, err)
			}
		}
	})
}

func TestPasswordHashing(t *testing.T) {
	t.Parallel()

	hash, err := CreatePasswordHash("segredo123", Argon2idParams{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16})
	if err != nil {
		t.Fatalf("CreatePasswordHash failed: %v", err)
	}
	if err := VerifyPassword(hash, "segredo123"); err != nil {
		t.Fatalf("expected password to verify, got %v", err)
	}
	if err := VerifyPassword(hash, "outra"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if err := VerifyPassword("plain", "segredo123"); !errors.Is(err, ErrInvalidPasswordHash) {
		t.Fatalf("expected ErrInvalidPasswordHash, got %v", err)
	}
	if _, err := CreatePasswordHash("", DefaultArgon2idParams); err == nil {
		t.Fatalf("expected empty password to be refused")
	}
}
