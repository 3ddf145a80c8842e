package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/example/calendario-escolar/internal/application"
	"github.com/example/calendario-escolar/internal/domain"
)

type userService interface {
	ListUsers(ctx context.Context, principal application.Principal, filter application.UserFilter) ([]application.User, error)
	UpdateProfile(ctx context.Context, params application.UpdateProfileParams) (application.User, error)
	Approve(ctx context.Context, params application.ReviewUserParams) (application.User, error)
	Reject(ctx context.Context, params application.ReviewUserParams) (application.User, error)
	DeleteUser(ctx context.Context, principal application.Principal, userID string) error
}

type UserHandler struct {
	service   userService
	responder responder
	logger    *slog.Logger
}

func NewUserHandler(service userService, logger *slog.Logger) *UserHandler {
	base := defaultLogger(logger)
	return &UserHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *UserHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "UserHandler", operation, attrs...)
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "List", "principal_id", principal.UserID)

	filter, err := parseUserFilter(r.URL.Query())
	if err != nil {
		logger.ErrorContext(r.Context(), "invalid user filter", "error", err, "error_kind", "bad_request")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidQueryParam)
		return
	}

	users, err := h.service.ListUsers(r.Context(), principal, filter)
	if err != nil {
		logger.ErrorContext(r.Context(), "user list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("result_count", len(users)).InfoContext(r.Context(), "users listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listUsersResponse{Users: toUserDTOs(users)})
}

// parseUserFilter reads the optional role and status query parameters.
// Unknown values are rejected instead of matching nothing.
func parseUserFilter(query url.Values) (application.UserFilter, error) {
	var filter application.UserFilter
	if raw := strings.TrimSpace(query.Get("role")); raw != "" {
		role, ok := domain.ParseRole(raw)
		if !ok {
			return filter, errInvalidQueryParam
		}
		filter.Role = role
	}
	if raw := strings.TrimSpace(query.Get("status")); raw != "" {
		status, ok := domain.ParseUserStatus(raw)
		if !ok {
			return filter, errInvalidQueryParam
		}
		filter.Status = status
	}
	return filter, nil
}

func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req application.ProfileInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "UpdateMe", "principal_id", principal.UserID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode profile", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "UpdateMe", "principal_id", principal.UserID)
	user, err := h.service.UpdateProfile(r.Context(), application.UpdateProfileParams{Principal: principal, Input: req})
	if err != nil {
		logger.ErrorContext(r.Context(), "profile update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "profile updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, userResponse{User: toUserDTO(user)})
}

func (h *UserHandler) Approve(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.review(w, r, "Approve", h.service.Approve)
}

func (h *UserHandler) Reject(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.review(w, r, "Reject", h.service.Reject)
}

func (h *UserHandler) review(w http.ResponseWriter, r *http.Request, operation string, apply func(context.Context, application.ReviewUserParams) (application.User, error)) {
	principal, _ := PrincipalFromContext(r.Context())
	userID := r.PathValue("id")

	logger := h.log(r.Context(), operation, "principal_id", principal.UserID, "user_id", userID)
	user, err := apply(r.Context(), application.ReviewUserParams{Principal: principal, UserID: userID})
	if err != nil {
		logger.ErrorContext(r.Context(), "user review failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("status", user.Status).InfoContext(r.Context(), "user reviewed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, userResponse{User: toUserDTO(user)})
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	userID := r.PathValue("id")
	logger := h.log(r.Context(), "Delete", "principal_id", principal.UserID, "user_id", userID)
	if err := h.service.DeleteUser(r.Context(), principal, userID); err != nil {
		logger.ErrorContext(r.Context(), "user delete failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "user deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

type userResponse struct {
	User userDTO `json:"user"`
}

type listUsersResponse struct {
	Users []userDTO `json:"users"`
}

type userDTO struct {
	ID           string            `json:"id"`
	Nome         string            `json:"nome"`
	Email        string            `json:"email"`
	Role         string            `json:"role"`
	Status       string            `json:"status"`
	Ativo        bool              `json:"ativo"`
	Disciplinas  []string          `json:"disciplinas"`
	Turmas       []string          `json:"turmas"`
	Preferencias map[string]string `json:"preferencias,omitempty"`
	CreatedAt    string            `json:"createdAt"`
	UpdatedAt    string            `json:"updatedAt"`
}

func toUserDTO(user application.User) userDTO {
	return userDTO{
		ID:           user.ID,
		Nome:         user.Nome,
		Email:        user.Email,
		Role:         string(user.Role),
		Status:       string(user.Status),
		Ativo:        user.Ativo,
		Disciplinas:  nonNil(user.Disciplinas),
		Turmas:       nonNil(user.Turmas),
		Preferencias: user.Preferencias,
		CreatedAt:    user.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:    user.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func toUserDTOs(users []application.User) []userDTO {
	out := make([]userDTO, 0, len(users))
	for _, user := range users {
		out = append(out, toUserDTO(user))
	}
	return out
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
