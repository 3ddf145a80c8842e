package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/example/calendario-escolar/internal/application"
	"github.com/example/calendario-escolar/internal/document"
	"github.com/example/calendario-escolar/internal/domain"
	"github.com/example/calendario-escolar/internal/workflow"
)

const dateLayout = "2006-01-02"

type calendarioService interface {
	CreateCalendario(ctx context.Context, params application.CreateCalendarioParams) (application.Calendario, error)
	Transition(ctx context.Context, params application.TransitionParams) (application.Calendario, error)
	GetCalendario(ctx context.Context, principal application.Principal, id string) (application.Calendario, error)
	ListCalendarios(ctx context.Context, params application.ListCalendariosParams) ([]application.Calendario, error)
	Stats(ctx context.Context, params application.ListCalendariosParams) (application.Stats, error)
	ConsolidatedEvents(ctx context.Context, params application.ConsolidatedParams) ([]application.Evento, error)
}

// CalendarioHandler exposes the calendar workflow.
type CalendarioHandler struct {
	service   calendarioService
	responder responder
	logger    *slog.Logger
}

func NewCalendarioHandler(service calendarioService, logger *slog.Logger) *CalendarioHandler {
	base := defaultLogger(logger)
	return &CalendarioHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *CalendarioHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "CalendarioHandler", operation, attrs...)
}

func (h *CalendarioHandler) available(w http.ResponseWriter) bool {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return false
	}
	return true
}

func (h *CalendarioHandler) List(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "List", "principal_id", principal.UserID)

	filter, err := parseCalendarioFilter(r.URL.Query())
	if err != nil {
		logger.ErrorContext(r.Context(), "invalid list filter", "error", err, "error_kind", "bad_request")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidQueryParam)
		return
	}

	calendarios, err := h.service.ListCalendarios(r.Context(), application.ListCalendariosParams{Principal: principal, Filter: filter})
	if err != nil {
		logger.ErrorContext(r.Context(), "calendario list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]calendarioDTO, 0, len(calendarios))
	for _, c := range calendarios {
		out = append(out, toCalendarioDTO(c))
	}
	logger.With("result_count", len(out)).InfoContext(r.Context(), "calendarios listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listCalendariosResponse{Calendarios: out})
}

func (h *CalendarioHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Create", "principal_id", principal.UserID)

	input, ok := h.decodeInput(w, r, logger)
	if !ok {
		return
	}

	calendario, err := h.service.CreateCalendario(r.Context(), application.CreateCalendarioParams{Principal: principal, Input: input})
	if err != nil {
		logger.ErrorContext(r.Context(), "calendario creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("calendario_id", calendario.ID).InfoContext(r.Context(), "calendario created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, calendarioResponse{Calendario: toCalendarioDTO(calendario)})
}

func (h *CalendarioHandler) Get(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	id := r.PathValue("id")
	calendario, err := h.service.GetCalendario(r.Context(), principal, id)
	if err != nil {
		h.log(r.Context(), "Get", "principal_id", principal.UserID, "calendario_id", id).
			ErrorContext(r.Context(), "calendario lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, calendarioResponse{Calendario: toCalendarioDTO(calendario)})
}

func (h *CalendarioHandler) Update(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Update", "principal_id", principal.UserID, "calendario_id", r.PathValue("id"))

	input, ok := h.decodeInput(w, r, logger)
	if !ok {
		return
	}
	h.transition(w, r, logger, application.TransitionParams{
		Principal:    principal,
		CalendarioID: r.PathValue("id"),
		Action:       workflow.ActionUpdate,
		Input:        &input,
	})
}

func (h *CalendarioHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Delete", "principal_id", principal.UserID, "calendario_id", r.PathValue("id"))
	_, err := h.service.Transition(r.Context(), application.TransitionParams{
		Principal:    principal,
		CalendarioID: r.PathValue("id"),
		Action:       workflow.ActionDelete,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "calendario delete failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "calendario deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *CalendarioHandler) Enviar(w http.ResponseWriter, r *http.Request) {
	h.simpleTransition(w, r, "Enviar", workflow.ActionEnviar)
}

func (h *CalendarioHandler) Aprovar(w http.ResponseWriter, r *http.Request) {
	h.simpleTransition(w, r, "Aprovar", workflow.ActionAprovar)
}

func (h *CalendarioHandler) SolicitarAjuste(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "SolicitarAjuste", "principal_id", principal.UserID, "calendario_id", r.PathValue("id"))

	var req ajusteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.ErrorContext(r.Context(), "failed to decode adjustment request", "error", err, "error_kind", "bad_request")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	h.transition(w, r, logger, application.TransitionParams{
		Principal:    principal,
		CalendarioID: r.PathValue("id"),
		Action:       workflow.ActionSolicitarAjuste,
		Comentario:   req.Comentario,
	})
}

func (h *CalendarioHandler) simpleTransition(w http.ResponseWriter, r *http.Request, operation string, action workflow.Action) {
	if !h.available(w) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), operation, "principal_id", principal.UserID, "calendario_id", r.PathValue("id"))
	h.transition(w, r, logger, application.TransitionParams{
		Principal:    principal,
		CalendarioID: r.PathValue("id"),
		Action:       action,
	})
}

func (h *CalendarioHandler) transition(w http.ResponseWriter, r *http.Request, logger *slog.Logger, params application.TransitionParams) {
	calendario, err := h.service.Transition(r.Context(), params)
	if err != nil {
		logger.ErrorContext(r.Context(), "calendario transition failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("status", calendario.Status, "version", calendario.Version).InfoContext(r.Context(), "calendario transitioned")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, calendarioResponse{Calendario: toCalendarioDTO(calendario)})
}

func (h *CalendarioHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Stats", "principal_id", principal.UserID)

	filter, err := parseCalendarioFilter(r.URL.Query())
	if err != nil {
		logger.ErrorContext(r.Context(), "invalid stats filter", "error", err, "error_kind", "bad_request")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidQueryParam)
		return
	}

	stats, err := h.service.Stats(r.Context(), application.ListCalendariosParams{Principal: principal, Filter: filter})
	if err != nil {
		logger.ErrorContext(r.Context(), "stats failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, stats)
}

func (h *CalendarioHandler) Consolidado(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Consolidado", "principal_id", principal.UserID)

	filter, err := parseCalendarioFilter(r.URL.Query())
	if err != nil {
		logger.ErrorContext(r.Context(), "invalid consolidated filter", "error", err, "error_kind", "bad_request")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidQueryParam)
		return
	}

	events, err := h.service.ConsolidatedEvents(r.Context(), application.ConsolidatedParams{
		Principal: principal,
		Turma:     filter.Turma,
		Bimestre:  filter.Bimestre,
		Ano:       filter.Ano,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "consolidated calendar failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]eventoDTO, 0, len(events))
	for _, e := range events {
		out = append(out, toEventoDTO(e))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, consolidadoResponse{Eventos: out})
}

// decodeInput reads a calendar body. Malformed JSON is a 400; unparsable
// dates are reported like any other field error.
func (h *CalendarioHandler) decodeInput(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (application.CalendarioInput, bool) {
	var req calendarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.ErrorContext(r.Context(), "failed to decode calendario request", "error", err, "error_kind", "bad_request")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return application.CalendarioInput{}, false
	}

	input, fieldErrs := req.toInput()
	if len(fieldErrs) > 0 {
		logger.ErrorContext(r.Context(), "invalid calendario dates", "fields", fieldErrs, "error_kind", "validation")
		h.responder.writeJSON(r.Context(), w, http.StatusUnprocessableEntity, errorResponse{
			ErrorCode: "VALIDACAO",
			Message:   localizedStatusMessage(http.StatusUnprocessableEntity),
			Errors:    fieldErrs,
		})
		return application.CalendarioInput{}, false
	}
	return input, true
}

func parseCalendarioFilter(query url.Values) (application.CalendarioFilter, error) {
	filter := application.CalendarioFilter{
		ProfessorID: strings.TrimSpace(query.Get("professorId")),
		Turma:       strings.TrimSpace(query.Get("turma")),
		Disciplina:  strings.TrimSpace(query.Get("disciplina")),
	}
	var err error
	if filter.Bimestre, err = optionalInt(query.Get("bimestre")); err != nil {
		return filter, err
	}
	if filter.Ano, err = optionalInt(query.Get("ano")); err != nil {
		return filter, err
	}
	if raw := strings.TrimSpace(query.Get("status")); raw != "" {
		status, ok := domain.ParseStatus(raw)
		if !ok {
			return filter, errInvalidQueryParam
		}
		filter.Status = status
	}
	return filter, nil
}

func optionalInt(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func parseOptionalDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(dateLayout, raw); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}

func formatOptionalDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

type calendarioRequest struct {
	Turma        string              `json:"turma"`
	Disciplina   string              `json:"disciplina"`
	Bimestre     int                 `json:"bimestre"`
	Ano          int                 `json:"ano"`
	AV1          avaliacaoRequest    `json:"av1"`
	AV2          avaliacaoRequest    `json:"av2"`
	Consolidacao consolidacaoRequest `json:"consolidacao"`
}

type avaliacaoRequest struct {
	Data        string `json:"data"`
	Instrumento string `json:"instrumento"`
	Conteudo    string `json:"conteudo"`
	Criterios   string `json:"criterios"`
}

type consolidacaoRequest struct {
	Data      string `json:"data"`
	Conteudo  string `json:"conteudo"`
	Criterios string `json:"criterios"`
}

type ajusteRequest struct {
	Comentario string `json:"comentario"`
}

func (r calendarioRequest) toInput() (application.CalendarioInput, map[string]string) {
	errs := make(map[string]string)
	date := func(field, raw string) time.Time {
		t, err := parseOptionalDate(raw)
		if err != nil {
			errs[field] = "data inválida, use o formato AAAA-MM-DD"
		}
		return t
	}

	input := application.CalendarioInput{
		Turma:      r.Turma,
		Disciplina: r.Disciplina,
		Bimestre:   r.Bimestre,
		Ano:        r.Ano,
		AV1: application.AvaliacaoInput{
			Data:        date("av1.data", r.AV1.Data),
			Instrumento: r.AV1.Instrumento,
			Conteudo:    r.AV1.Conteudo,
			Criterios:   r.AV1.Criterios,
		},
		AV2: application.AvaliacaoInput{
			Data:        date("av2.data", r.AV2.Data),
			Instrumento: r.AV2.Instrumento,
			Conteudo:    r.AV2.Conteudo,
			Criterios:   r.AV2.Criterios,
		},
		Consolidacao: application.ConsolidacaoInput{
			Data:      date("consolidacao.data", r.Consolidacao.Data),
			Conteudo:  r.Consolidacao.Conteudo,
			Criterios: r.Consolidacao.Criterios,
		},
	}
	if len(errs) == 0 {
		return input, nil
	}
	return input, errs
}

type calendarioResponse struct {
	Calendario calendarioDTO `json:"calendario"`
}

type listCalendariosResponse struct {
	Calendarios []calendarioDTO `json:"calendarios"`
}

type consolidadoResponse struct {
	Eventos []eventoDTO `json:"eventos"`
}

type avaliacaoDTO struct {
	Data          string `json:"data"`
	DataFormatada string `json:"dataFormatada"`
	Instrumento   string `json:"instrumento,omitempty"`
	Conteudo      string `json:"conteudo"`
	Criterios     string `json:"criterios"`
}

type calendarioDTO struct {
	ID                    string       `json:"id"`
	ProfessorID           string       `json:"professorId"`
	ProfessorNome         string       `json:"professorNome"`
	ProfessorEmail        string       `json:"professorEmail"`
	Turma                 string       `json:"turma"`
	Disciplina            string       `json:"disciplina"`
	Bimestre              int          `json:"bimestre"`
	Ano                   int          `json:"ano"`
	AV1                   avaliacaoDTO `json:"av1"`
	AV2                   avaliacaoDTO `json:"av2"`
	Consolidacao          avaliacaoDTO `json:"consolidacao"`
	Status                string       `json:"status"`
	NecessitaImpressao    bool         `json:"necessitaImpressao"`
	ComentarioCoordenacao string       `json:"comentarioCoordenacao,omitempty"`
	Version               int          `json:"version"`
	CreatedAt             string       `json:"createdAt"`
	UpdatedAt             string       `json:"updatedAt"`
}

func toAvaliacaoDTO(a application.Avaliacao) avaliacaoDTO {
	return avaliacaoDTO{
		Data:          formatOptionalDate(a.Data),
		DataFormatada: document.FormatDate(a.Data),
		Instrumento:   string(a.Instrumento),
		Conteudo:      a.Conteudo,
		Criterios:     a.Criterios,
	}
}

func toCalendarioDTO(c application.Calendario) calendarioDTO {
	return calendarioDTO{
		ID:             c.ID,
		ProfessorID:    c.ProfessorID,
		ProfessorNome:  c.ProfessorNome,
		ProfessorEmail: c.ProfessorEmail,
		Turma:          c.Turma,
		Disciplina:     c.Disciplina,
		Bimestre:       c.Bimestre,
		Ano:            c.Ano,
		AV1:            toAvaliacaoDTO(c.AV1),
		AV2:            toAvaliacaoDTO(c.AV2),
		Consolidacao: toAvaliacaoDTO(application.Avaliacao{
			Data:      c.Consolidacao.Data,
			Conteudo:  c.Consolidacao.Conteudo,
			Criterios: c.Consolidacao.Criterios,
		}),
		Status:                string(c.Status),
		NecessitaImpressao:    c.NecessitaImpressao,
		ComentarioCoordenacao: c.ComentarioCoordenacao,
		Version:               c.Version,
		CreatedAt:             c.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:             c.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

type eventoDTO struct {
	CalendarioID       string `json:"calendarioId"`
	Tipo               string `json:"tipo"`
	Data               string `json:"data"`
	DataFormatada      string `json:"dataFormatada"`
	Turma              string `json:"turma"`
	Disciplina         string `json:"disciplina"`
	Bimestre           int    `json:"bimestre"`
	Ano                int    `json:"ano"`
	ProfessorID        string `json:"professorId"`
	ProfessorNome      string `json:"professorNome"`
	Instrumento        string `json:"instrumento,omitempty"`
	Conteudo           string `json:"conteudo"`
	NecessitaImpressao bool   `json:"necessitaImpressao"`
}

func toEventoDTO(e application.Evento) eventoDTO {
	return eventoDTO{
		CalendarioID:       e.CalendarioID,
		Tipo:               string(e.Tipo),
		Data:               formatOptionalDate(e.Data),
		DataFormatada:      document.FormatDate(e.Data),
		Turma:              e.Turma,
		Disciplina:         e.Disciplina,
		Bimestre:           e.Bimestre,
		Ano:                e.Ano,
		ProfessorID:        e.ProfessorID,
		ProfessorNome:      e.ProfessorNome,
		Instrumento:        string(e.Instrumento),
		Conteudo:           e.Conteudo,
		NecessitaImpressao: e.NecessitaImpressao,
	}
}
