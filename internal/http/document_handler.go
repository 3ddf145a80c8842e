package http

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/example/calendario-escolar/internal/application"
	"github.com/example/calendario-escolar/internal/document"
)

type documentService interface {
	RenderCalendario(ctx context.Context, principal application.Principal, id string) (document.Artifact, error)
	RenderTurma(ctx context.Context, principal application.Principal, turma string, bimestre, ano int) (document.Artifact, error)
}

// DocumentHandler streams rendered PDFs and removes them afterwards.
type DocumentHandler struct {
	service   documentService
	responder responder
	logger    *slog.Logger
}

func NewDocumentHandler(service documentService, logger *slog.Logger) *DocumentHandler {
	base := defaultLogger(logger)
	return &DocumentHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *DocumentHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "DocumentHandler", operation, attrs...)
}

func (h *DocumentHandler) Calendario(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	id := r.PathValue("id")
	logger := h.log(r.Context(), "Calendario", "principal_id", principal.UserID, "calendario_id", id)

	artifact, err := h.service.RenderCalendario(r.Context(), principal, id)
	if err != nil {
		logger.ErrorContext(r.Context(), "calendario pdf failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.stream(w, r, logger, artifact)
}

func (h *DocumentHandler) Turma(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	query := r.URL.Query()
	turma := strings.TrimSpace(query.Get("turma"))
	logger := h.log(r.Context(), "Turma", "principal_id", principal.UserID, "turma", turma)

	bimestre, err := strconv.Atoi(strings.TrimSpace(query.Get("bimestre")))
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidQueryParam)
		return
	}
	ano, err := strconv.Atoi(strings.TrimSpace(query.Get("ano")))
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidQueryParam)
		return
	}

	artifact, err := h.service.RenderTurma(r.Context(), principal, turma, bimestre, ano)
	if err != nil {
		logger.ErrorContext(r.Context(), "class pdf failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.stream(w, r, logger, artifact)
}

func (h *DocumentHandler) stream(w http.ResponseWriter, r *http.Request, logger *slog.Logger, artifact document.Artifact) {
	defer artifact.Remove(logger)

	file, err := artifact.Open()
	if err != nil {
		logger.ErrorContext(r.Context(), "failed to open rendered document", "error", err, "path", artifact.Path)
		h.responder.writeError(r.Context(), w, http.StatusInternalServerError, nil)
		return
	}
	defer file.Close()

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", artifact.Filename))
	if artifact.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(artifact.Size, 10))
	}
	w.WriteHeader(http.StatusOK)

	written, err := io.Copy(w, file)
	if err != nil {
		logger.WarnContext(r.Context(), "pdf stream interrupted", "error", err, "bytes", written)
		return
	}
	logger.InfoContext(r.Context(), "pdf delivered", "filename", artifact.Filename, "bytes", written)
}
