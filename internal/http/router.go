package http

import (
	"log/slog"
	"net/http"
)

type RouterConfig struct {
	Auth        *AuthHandler
	Users       *UserHandler
	Calendarios *CalendarioHandler
	Documents   *DocumentHandler
	Grade       *GradeHandler
	// Validator protects every route except login, registration, the
	// options list and the health check. Nil leaves the protected routes unregistered.
	Validator  TokenValidator
	Logger     *slog.Logger
	Middleware []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}` + "\n"))
	})

	mux.HandleFunc("GET /opcoes", serveOptions(newResponder(defaultLogger(cfg.Logger))))

	if cfg.Auth != nil {
		mux.HandleFunc("POST /auth/login", cfg.Auth.Login)
		mux.HandleFunc("POST /auth/register", cfg.Auth.Register)
	}

	if cfg.Validator != nil {
		protect := RequireToken(cfg.Validator, cfg.Logger)
		handle := func(pattern string, fn http.HandlerFunc) {
			mux.Handle(pattern, protect(fn))
		}

		if cfg.Auth != nil {
			handle("GET /auth/me", cfg.Auth.Me)
		}

		if cfg.Calendarios != nil {
			handle("GET /calendarios", cfg.Calendarios.List)
			handle("POST /calendarios", cfg.Calendarios.Create)
			handle("GET /calendarios/estatisticas", cfg.Calendarios.Stats)
			handle("GET /calendarios/consolidado", cfg.Calendarios.Consolidado)
			handle("GET /calendarios/{id}", cfg.Calendarios.Get)
			handle("PUT /calendarios/{id}", cfg.Calendarios.Update)
			handle("DELETE /calendarios/{id}", cfg.Calendarios.Delete)
			handle("POST /calendarios/{id}/enviar", cfg.Calendarios.Enviar)
			handle("POST /calendarios/{id}/aprovar", cfg.Calendarios.Aprovar)
			handle("POST /calendarios/{id}/solicitar-ajuste", cfg.Calendarios.SolicitarAjuste)
		}

		if cfg.Documents != nil {
			handle("GET /calendarios/turma/pdf", cfg.Documents.Turma)
			handle("GET /calendarios/{id}/pdf", cfg.Documents.Calendario)
		}

		if cfg.Grade != nil {
			handle("GET /grade-horaria", cfg.Grade.List)
			handle("POST /grade-horaria", cfg.Grade.Create)
			handle("GET /grade-horaria/dias", cfg.Grade.Dias)
			handle("DELETE /grade-horaria/{id}", cfg.Grade.Delete)
		}

		if cfg.Users != nil {
			handle("GET /users", cfg.Users.List)
			handle("PUT /users/me", cfg.Users.UpdateMe)
			handle("POST /users/{id}/aprovar", cfg.Users.Approve)
			handle("POST /users/{id}/rejeitar", cfg.Users.Reject)
			handle("DELETE /users/{id}", cfg.Users.Delete)
		}
	}

	var handler http.Handler = mux
	if len(cfg.Middleware) > 0 {
		for i := len(cfg.Middleware) - 1; i >= 0; i-- {
			if cfg.Middleware[i] != nil {
				handler = cfg.Middleware[i](handler)
			}
		}
	}

	return handler
}
