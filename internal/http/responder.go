package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/calendario-escolar/internal/application"
)

var (
	errBadRequestBody    = errors.New("Formato de requisição inválido.")
	errMissingToken      = errors.New("Informe o token de acesso.")
	errInvalidQueryParam = errors.New("Parâmetros de consulta inválidos.")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := localizedStatusMessage(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).ErrorContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	status, resp := serviceErrorResponse(err)
	r.writeJSON(ctx, w, status, resp)
}

// serviceErrorResponse maps application errors onto HTTP statuses.
func serviceErrorResponse(err error) (int, errorResponse) {
	var vErr *application.ValidationError
	if errors.As(err, &vErr) {
		return http.StatusUnprocessableEntity, errorResponse{
			ErrorCode: "VALIDACAO",
			Message:   localizedStatusMessage(http.StatusUnprocessableEntity),
			Errors:    vErr.FieldErrors,
		}
	}
	var rErr *application.RenderError
	if errors.As(err, &rErr) {
		return http.StatusBadGateway, errorResponse{
			ErrorCode: "PDF_FALHOU",
			Message:   "Não foi possível gerar o PDF. Tente novamente.",
		}
	}

	switch {
	case errors.Is(err, application.ErrInvalidCredentials):
		return http.StatusUnauthorized, errorResponse{ErrorCode: "AUTH_CREDENCIAIS", Message: "E-mail ou senha incorretos."}
	case errors.Is(err, application.ErrUnauthenticated):
		return http.StatusUnauthorized, errorResponse{ErrorCode: "AUTH_TOKEN", Message: "Sessão inválida ou expirada. Entre novamente."}
	case errors.Is(err, application.ErrAccountPending):
		return http.StatusForbidden, errorResponse{ErrorCode: "CONTA_PENDENTE", Message: "Sua conta aguarda aprovação do administrador."}
	case errors.Is(err, application.ErrAccountRejected):
		return http.StatusForbidden, errorResponse{ErrorCode: "CONTA_REJEITADA", Message: "Sua conta foi rejeitada."}
	case errors.Is(err, application.ErrUnauthorized):
		return http.StatusForbidden, errorResponse{ErrorCode: "AUTH_PROIBIDO", Message: localizedStatusMessage(http.StatusForbidden)}
	case errors.Is(err, application.ErrNoRecords):
		return http.StatusNotFound, errorResponse{ErrorCode: "SEM_REGISTROS", Message: "Nenhum calendário encontrado para a seleção."}
	case errors.Is(err, application.ErrNotFound):
		return http.StatusNotFound, errorResponse{Message: localizedStatusMessage(http.StatusNotFound)}
	case errors.Is(err, application.ErrAlreadyExists):
		return http.StatusConflict, errorResponse{ErrorCode: "DUPLICADO", Message: "Já existe um registro com esses dados."}
	case errors.Is(err, application.ErrInvalidState):
		return http.StatusConflict, errorResponse{ErrorCode: "ESTADO_INVALIDO", Message: "A ação não é permitida no status atual do calendário."}
	case errors.Is(err, application.ErrConflict):
		return http.StatusConflict, errorResponse{ErrorCode: "CONFLITO", Message: "O calendário foi alterado por outra pessoa. Recarregue e tente novamente."}
	}
	return http.StatusInternalServerError, errorResponse{Message: localizedStatusMessage(http.StatusInternalServerError)}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

func localizedStatusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "Requisição inválida."
	case http.StatusUnauthorized:
		return "Autenticação necessária."
	case http.StatusForbidden:
		return "Você não tem permissão para executar esta ação."
	case http.StatusNotFound:
		return "Recurso não encontrado."
	case http.StatusConflict:
		return "A requisição conflita com o estado atual do recurso."
	case http.StatusUnprocessableEntity:
		return "Há erros nos dados informados."
	default:
		return "Erro interno do servidor."
	}
}

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
}
