package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/calendario-escolar/internal/application"
)

type gradeService interface {
	CreateGradeHoraria(ctx context.Context, params application.CreateGradeHorariaParams) (application.GradeHoraria, error)
	ListGradeHoraria(ctx context.Context, principal application.Principal, filter application.GradeHorariaFilter) ([]application.GradeHoraria, error)
	DeleteGradeHoraria(ctx context.Context, principal application.Principal, id string) error
	DiasDisponiveis(ctx context.Context, params application.DiasDisponiveisParams) ([]time.Time, error)
}

type GradeHandler struct {
	service   gradeService
	responder responder
	logger    *slog.Logger
}

func NewGradeHandler(service gradeService, logger *slog.Logger) *GradeHandler {
	base := defaultLogger(logger)
	return &GradeHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *GradeHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "GradeHandler", operation, attrs...)
}

func (h *GradeHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	query := r.URL.Query()
	filter := application.GradeHorariaFilter{
		ProfessorID: strings.TrimSpace(query.Get("professorId")),
		Turma:       strings.TrimSpace(query.Get("turma")),
		Disciplina:  strings.TrimSpace(query.Get("disciplina")),
	}

	logger := h.log(r.Context(), "List", "principal_id", principal.UserID)
	entries, err := h.service.ListGradeHoraria(r.Context(), principal, filter)
	if err != nil {
		logger.ErrorContext(r.Context(), "grade horaria list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]gradeDTO, 0, len(entries))
	for _, entry := range entries {
		out = append(out, toGradeDTO(entry))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listGradeResponse{Entradas: out})
}

func (h *GradeHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Create", "principal_id", principal.UserID)

	var req application.GradeHorariaInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.ErrorContext(r.Context(), "failed to decode grade horaria", "error", err, "error_kind", "bad_request")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	entry, err := h.service.CreateGradeHoraria(r.Context(), application.CreateGradeHorariaParams{Principal: principal, Input: req})
	if err != nil {
		logger.ErrorContext(r.Context(), "grade horaria creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("grade_id", entry.ID).InfoContext(r.Context(), "grade horaria created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, gradeResponse{Entrada: toGradeDTO(entry)})
}

func (h *GradeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	id := r.PathValue("id")
	logger := h.log(r.Context(), "Delete", "principal_id", principal.UserID, "grade_id", id)
	if err := h.service.DeleteGradeHoraria(r.Context(), principal, id); err != nil {
		logger.ErrorContext(r.Context(), "grade horaria delete failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "grade horaria deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *GradeHandler) Dias(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	query := r.URL.Query()
	logger := h.log(r.Context(), "Dias", "principal_id", principal.UserID)

	de, err := parseOptionalDate(query.Get("de"))
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidQueryParam)
		return
	}
	ate, err := parseOptionalDate(query.Get("ate"))
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidQueryParam)
		return
	}

	dates, err := h.service.DiasDisponiveis(r.Context(), application.DiasDisponiveisParams{
		Principal:   principal,
		ProfessorID: strings.TrimSpace(query.Get("professorId")),
		Turma:       strings.TrimSpace(query.Get("turma")),
		Disciplina:  strings.TrimSpace(query.Get("disciplina")),
		De:          de,
		Ate:         ate,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "available dates failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]string, 0, len(dates))
	for _, d := range dates {
		out = append(out, d.Format(dateLayout))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, diasResponse{Datas: out})
}

type gradeDTO struct {
	ID          string `json:"id"`
	ProfessorID string `json:"professorId"`
	Turma       string `json:"turma"`
	Disciplina  string `json:"disciplina"`
	DiaSemana   int    `json:"diaSemana"`
	CreatedAt   string `json:"createdAt"`
}

func toGradeDTO(entry application.GradeHoraria) gradeDTO {
	return gradeDTO{
		ID:          entry.ID,
		ProfessorID: entry.ProfessorID,
		Turma:       entry.Turma,
		Disciplina:  entry.Disciplina,
		DiaSemana:   int(entry.DiaSemana),
		CreatedAt:   entry.CreatedAt.UTC().Format(time.RFC3339),
	}
}

type gradeResponse struct {
	Entrada gradeDTO `json:"entrada"`
}

type listGradeResponse struct {
	Entradas []gradeDTO `json:"entradas"`
}

type diasResponse struct {
	Datas []string `json:"datas"`
}
