package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/example/calendario-escolar/internal/document"
	"github.com/example/calendario-escolar/internal/domain"
	"github.com/example/calendario-escolar/internal/workflow"
)

// DocumentRenderer turns an assembled document into a stored PDF artifact.
type DocumentRenderer interface {
	Render(ctx context.Context, doc document.Document) (document.Artifact, error)
}

// printableStatuses are the statuses a calendar must be in to be printed.
var printableStatuses = []domain.Status{domain.StatusAprovado, domain.StatusEnviado}

// DocumentService renders calendars to PDF.
type DocumentService struct {
	calendarios CalendarioRepository
	renderer    DocumentRenderer
	logger      *slog.Logger
}

// NewDocumentService constructs a document service.
func NewDocumentService(calendarios CalendarioRepository, renderer DocumentRenderer) *DocumentService {
	return NewDocumentServiceWithLogger(calendarios, renderer, nil)
}

// NewDocumentServiceWithLogger constructs a document service with a specified logger.
func NewDocumentServiceWithLogger(calendarios CalendarioRepository, renderer DocumentRenderer, logger *slog.Logger) *DocumentService {
	return &DocumentService{calendarios: calendarios, renderer: renderer, logger: defaultLogger(logger)}
}

func (s *DocumentService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "DocumentService", operation, attrs...)
}

// RenderCalendario renders a single submitted or approved calendar. The
// caller removes the returned artifact after delivering it.
func (s *DocumentService) RenderCalendario(ctx context.Context, principal Principal, id string) (artifact document.Artifact, err error) {
	if s == nil {
		err = fmt.Errorf("DocumentService is nil")
		return
	}
	if s.calendarios == nil || s.renderer == nil {
		err = fmt.Errorf("document service not configured")
		return
	}

	logger := s.loggerWith(ctx, "RenderCalendario",
		"principal_id", principal.UserID,
		"calendario_id", id,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to render calendario", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("file", artifact.Filename, "bytes", artifact.Size).InfoContext(ctx, "calendario rendered")
	}()

	if !principal.Role.IsAuthor() && !principal.Role.IsReviewer() {
		err = ErrUnauthorized
		return
	}

	var calendario Calendario
	calendario, err = s.calendarios.GetCalendario(ctx, id)
	if err != nil {
		err = mapCalendarioRepoError(err)
		return
	}
	if workflow.Visibility(principal.actor()) && calendario.ProfessorID != principal.UserID {
		err = ErrNotFound
		return
	}
	if !isPrintable(calendario.Status) {
		err = fmt.Errorf("%w: calendário em %s não pode ser impresso", ErrInvalidState, calendario.Status)
		return
	}

	artifact, err = s.render(ctx, document.NewSingleDocument(toSection(calendario)))
	return
}

// RenderTurma renders every submitted or approved calendar of a class and
// bimester into one document ordered by curriculum sequence.
func (s *DocumentService) RenderTurma(ctx context.Context, principal Principal, turma string, bimestre, ano int) (artifact document.Artifact, err error) {
	if s == nil {
		err = fmt.Errorf("DocumentService is nil")
		return
	}
	if s.calendarios == nil || s.renderer == nil {
		err = fmt.Errorf("document service not configured")
		return
	}

	turma = strings.TrimSpace(turma)
	logger := s.loggerWith(ctx, "RenderTurma",
		"principal_id", principal.UserID,
		"turma", turma,
		"bimestre", bimestre,
		"ano", ano,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to render turma", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("file", artifact.Filename, "bytes", artifact.Size).InfoContext(ctx, "turma rendered")
	}()

	if !principal.Role.IsReviewer() {
		err = ErrUnauthorized
		return
	}

	vErr := &ValidationError{}
	if turma == "" {
		vErr.add("turma", "turma é obrigatória")
	}
	if bimestre < 1 || bimestre > 4 {
		vErr.add("bimestre", "bimestre deve estar entre 1 e 4")
	}
	if ano <= 0 {
		vErr.add("ano", "ano é obrigatório")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var calendarios []Calendario
	calendarios, err = s.calendarios.ListCalendarios(ctx, CalendarioRepositoryFilter{
		Turma:    turma,
		Bimestre: bimestre,
		Ano:      ano,
		Statuses: printableStatuses,
	})
	if err != nil {
		err = mapCalendarioRepoError(err)
		return
	}
	if len(calendarios) == 0 {
		err = ErrNoRecords
		return
	}

	sections := make([]document.Section, 0, len(calendarios))
	for _, c := range calendarios {
		sections = append(sections, toSection(c))
	}
	artifact, err = s.render(ctx, document.NewClassDocument(turma, bimestre, ano, sections))
	return
}

func (s *DocumentService) render(ctx context.Context, doc document.Document) (document.Artifact, error) {
	artifact, err := s.renderer.Render(ctx, doc)
	switch {
	case err == nil:
		return artifact, nil
	case errors.Is(err, document.ErrNoSections):
		return document.Artifact{}, ErrNoRecords
	case errors.Is(err, document.ErrRender):
		return document.Artifact{}, &RenderError{Err: err}
	}
	return document.Artifact{}, err
}

func isPrintable(status domain.Status) bool {
	for _, s := range printableStatuses {
		if s == status {
			return true
		}
	}
	return false
}

func toSection(c Calendario) document.Section {
	return document.Section{
		Professor:  c.ProfessorNome,
		Disciplina: c.Disciplina,
		Turma:      c.Turma,
		Bimestre:   c.Bimestre,
		Ano:        c.Ano,
		Avaliacoes: []document.Avaliacao{
			{
				Rotulo:      "AV1",
				Data:        c.AV1.Data,
				Instrumento: string(c.AV1.Instrumento),
				Conteudo:    c.AV1.Conteudo,
				Criterios:   c.AV1.Criterios,
			},
			{
				Rotulo:      "AV2",
				Data:        c.AV2.Data,
				Instrumento: string(c.AV2.Instrumento),
				Conteudo:    c.AV2.Conteudo,
				Criterios:   c.AV2.Criterios,
			},
			{
				Rotulo:       string(EventoConsolidacao),
				Data:         c.Consolidacao.Data,
				Conteudo:     c.Consolidacao.Conteudo,
				Criterios:    c.Consolidacao.Criterios,
				Consolidacao: true,
			},
		},
	}
}
