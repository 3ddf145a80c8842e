package application

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/example/calendario-escolar/internal/domain"
	"github.com/example/calendario-escolar/internal/persistence"
	"github.com/example/calendario-escolar/internal/workflow"
)

func newCalendarioTestService(users UserDirectory) (*CalendarioService, *memoryCalendarios) {
	repo := newMemoryCalendarios()
	return NewCalendarioService(repo, users, sequentialIDs("cal"), fixedNow), repo
}

func TestCalendarioService_CreateCalendario(t *testing.T) {
	t.Parallel()

	t.Run("stores a draft owned by the caller", func(t *testing.T) {
		t.Parallel()
		svc, _ := newCalendarioTestService(nil)

		got, err := svc.CreateCalendario(context.Background(), CreateCalendarioParams{Principal: professor, Input: validInput()})
		if err != nil {
			t.Fatalf("CreateCalendario failed: %v", err)
		}
		if got.ID != "cal-1" || got.ProfessorID != professor.UserID {
			t.Fatalf("unexpected identity %q/%q", got.ID, got.ProfessorID)
		}
		if got.Status != domain.StatusRascunho {
			t.Fatalf("expected rascunho, got %s", got.Status)
		}
		if got.Version != 1 {
			t.Fatalf("expected version 1, got %d", got.Version)
		}
		if !got.NecessitaImpressao {
			t.Fatalf("expected printed exam to require printing")
		}
		if !got.CreatedAt.Equal(testNow) {
			t.Fatalf("expected injected clock, got %v", got.CreatedAt)
		}
	})

	t.Run("substitute teachers draft like professors", func(t *testing.T) {
		t.Parallel()
		svc, _ := newCalendarioTestService(nil)

		got, err := svc.CreateCalendario(context.Background(), CreateCalendarioParams{Principal: substituto, Input: validInput()})
		if err != nil {
			t.Fatalf("CreateCalendario failed: %v", err)
		}
		if got.ProfessorID != substituto.UserID {
			t.Fatalf("expected substitute as owner, got %s", got.ProfessorID)
		}
	})

	t.Run("reviewers cannot create", func(t *testing.T) {
		t.Parallel()
		svc, _ := newCalendarioTestService(nil)

		for _, p := range []Principal{coordenacao, admin} {
			_, err := svc.CreateCalendario(context.Background(), CreateCalendarioParams{Principal: p, Input: validInput()})
			if !errors.Is(err, ErrUnauthorized) {
				t.Fatalf("expected ErrUnauthorized for %s, got %v", p.Role, err)
			}
		}
	})

	t.Run("reports field errors by json path", func(t *testing.T) {
		t.Parallel()
		svc, _ := newCalendarioTestService(nil)

		input := validInput()
		input.AV1.Conteudo = "curto"
		input.AV2.Instrumento = "Redação livre"
		input.Bimestre = 5
		input.Consolidacao.Conteudo = ""

		_, err := svc.CreateCalendario(context.Background(), CreateCalendarioParams{Principal: professor, Input: input})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		for _, field := range []string{"av1.conteudo", "av2.instrumento", "bimestre", "consolidacao.conteudo"} {
			if vErr.FieldErrors[field] == "" {
				t.Errorf("expected error for %s, got %#v", field, vErr.FieldErrors)
			}
		}
	})

	t.Run("rejects malformed class codes", func(t *testing.T) {
		t.Parallel()
		svc, _ := newCalendarioTestService(nil)

		input := validInput()
		input.Turma = "6A; 7B"
		_, err := svc.CreateCalendario(context.Background(), CreateCalendarioParams{Principal: professor, Input: input})
		var vErr *ValidationError
		if !errors.As(err, &vErr) || !strings.Contains(vErr.FieldErrors["turma"], "código de turma") {
			t.Fatalf("expected turma error, got %v", err)
		}
	})

	t.Run("trims content before measuring it", func(t *testing.T) {
		t.Parallel()
		svc, _ := newCalendarioTestService(nil)

		input := validInput()
		input.AV1.Criterios = "   curto    "
		_, err := svc.CreateCalendario(context.Background(), CreateCalendarioParams{Principal: professor, Input: input})
		var vErr *ValidationError
		if !errors.As(err, &vErr) || vErr.FieldErrors["av1.criterios"] == "" {
			t.Fatalf("expected av1.criterios error, got %v", err)
		}
	})

	t.Run("rejects classes outside the professor profile", func(t *testing.T) {
		t.Parallel()
		users := newMemoryUsers(User{ID: professor.UserID, Role: domain.RoleProfessor, Turmas: []string{"2B"}, Disciplinas: []string{"matemática"}})
		svc, _ := newCalendarioTestService(users)

		_, err := svc.CreateCalendario(context.Background(), CreateCalendarioParams{Principal: professor, Input: validInput()})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if vErr.FieldErrors["turma"] == "" {
			t.Fatalf("expected turma error, got %#v", vErr.FieldErrors)
		}
		if _, ok := vErr.FieldErrors["disciplina"]; ok {
			t.Fatalf("expected discipline match to ignore case, got %#v", vErr.FieldErrors)
		}
	})

	t.Run("maps duplicate natural key to ErrAlreadyExists", func(t *testing.T) {
		t.Parallel()
		svc, _ := newCalendarioTestService(nil)

		if _, err := svc.CreateCalendario(context.Background(), CreateCalendarioParams{Principal: professor, Input: validInput()}); err != nil {
			t.Fatalf("first create failed: %v", err)
		}
		_, err := svc.CreateCalendario(context.Background(), CreateCalendarioParams{Principal: professor2, Input: validInput()})
		if !errors.Is(err, ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists, got %v", err)
		}
	})
}

func TestCalendarioService_Lifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _ := newCalendarioTestService(nil)

	created, err := svc.CreateCalendario(ctx, CreateCalendarioParams{Principal: professor, Input: validInput()})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.Aprovar(ctx, coordenacao, created.ID); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected draft approval to fail with ErrInvalidState, got %v", err)
	}

	sent, err := svc.Enviar(ctx, professor, created.ID)
	if err != nil {
		t.Fatalf("enviar: %v", err)
	}
	if sent.Status != domain.StatusEnviado || sent.Version != 2 {
		t.Fatalf("expected enviado v2, got %s v%d", sent.Status, sent.Version)
	}

	if _, err := svc.UpdateCalendario(ctx, professor, created.ID, validInput()); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected owner edit of submitted record to fail, got %v", err)
	}
	if _, err := svc.Enviar(ctx, professor, created.ID); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected second submission to fail, got %v", err)
	}

	if _, err := svc.SolicitarAjuste(ctx, coordenacao, created.ID, "   "); err == nil {
		t.Fatalf("expected blank comment to be rejected")
	} else {
		var vErr *ValidationError
		if !errors.As(err, &vErr) || vErr.FieldErrors["comentario"] == "" {
			t.Fatalf("expected comentario error, got %v", err)
		}
	}

	returned, err := svc.SolicitarAjuste(ctx, coordenacao, created.ID, " Ajustar datas da AV2 ")
	if err != nil {
		t.Fatalf("solicitar ajuste: %v", err)
	}
	if returned.Status != domain.StatusRascunho || returned.ComentarioCoordenacao != "Ajustar datas da AV2" {
		t.Fatalf("expected draft with comment, got %s %q", returned.Status, returned.ComentarioCoordenacao)
	}

	input := validInput()
	input.AV1.Instrumento = string(domain.InstrumentoSeminario)
	input.AV2.Instrumento = string(domain.InstrumentoProjeto)
	edited, err := svc.UpdateCalendario(ctx, professor, created.ID, input)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if edited.NecessitaImpressao {
		t.Fatalf("expected print flag to be recomputed to false")
	}

	if _, err := svc.Enviar(ctx, professor, created.ID); err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	approved, err := svc.Aprovar(ctx, coordenacao, created.ID)
	if err != nil {
		t.Fatalf("aprovar: %v", err)
	}
	if approved.Status != domain.StatusAprovado {
		t.Fatalf("expected aprovado, got %s", approved.Status)
	}

	if _, err := svc.Aprovar(ctx, admin, created.ID); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected repeated approval to fail, got %v", err)
	}
	if _, err := svc.SolicitarAjuste(ctx, coordenacao, created.ID, "Reabrir"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected adjustment of approved record to fail, got %v", err)
	}
	if err := svc.DeleteCalendario(ctx, professor, created.ID); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected owner delete of approved record to fail, got %v", err)
	}

	// Reviewers may still correct approved records without reopening them.
	corrected, err := svc.UpdateCalendario(ctx, coordenacao, created.ID, validInput())
	if err != nil {
		t.Fatalf("reviewer update: %v", err)
	}
	if corrected.Status != domain.StatusAprovado {
		t.Fatalf("expected reviewer edit to keep status, got %s", corrected.Status)
	}
	if corrected.ProfessorID != professor.UserID {
		t.Fatalf("expected owner to be unchanged, got %s", corrected.ProfessorID)
	}

	if err := svc.DeleteCalendario(ctx, admin, created.ID); err != nil {
		t.Fatalf("admin delete: %v", err)
	}
	if _, err := svc.GetCalendario(ctx, admin, created.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected deleted record to be gone, got %v", err)
	}
}

func TestCalendarioService_TransitionAuthorization(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tests := []struct {
		name      string
		status    domain.Status
		principal Principal
		action    workflow.Action
		comment   string
		want      error
	}{
		{name: "professor cannot approve", status: domain.StatusEnviado, principal: professor, action: workflow.ActionAprovar, want: ErrUnauthorized},
		{name: "coordenacao cannot submit", status: domain.StatusRascunho, principal: coordenacao, action: workflow.ActionEnviar, want: ErrUnauthorized},
		{name: "other professor cannot submit", status: domain.StatusRascunho, principal: professor2, action: workflow.ActionEnviar, want: ErrNotFound},
		{name: "other professor cannot delete", status: domain.StatusRascunho, principal: professor2, action: workflow.ActionDelete, want: ErrNotFound},
		{name: "substitute cannot request adjustment", status: domain.StatusEnviado, principal: substituto, action: workflow.ActionSolicitarAjuste, comment: "x", want: ErrUnauthorized},
		{name: "admin cannot approve draft", status: domain.StatusRascunho, principal: admin, action: workflow.ActionAprovar, want: ErrInvalidState},
		{name: "owner can delete draft", status: domain.StatusRascunho, principal: professor, action: workflow.ActionDelete},
		{name: "admin can request adjustment", status: domain.StatusEnviado, principal: admin, action: workflow.ActionSolicitarAjuste, comment: "Rever critérios"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc, repo := newCalendarioTestService(nil)
			repo.put(Calendario{ID: "cal-x", ProfessorID: professor.UserID, Turma: "1A", Disciplina: "Arte", Bimestre: 1, Ano: 2025, Status: tt.status})

			_, err := svc.Transition(ctx, TransitionParams{Principal: tt.principal, CalendarioID: "cal-x", Action: tt.action, Comentario: tt.comment})
			if tt.want == nil {
				if err != nil {
					t.Fatalf("expected success, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}

	t.Run("role gate runs before the record is loaded", func(t *testing.T) {
		t.Parallel()
		svc, _ := newCalendarioTestService(nil)

		_, err := svc.Aprovar(ctx, professor, "missing")
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized before lookup, got %v", err)
		}
	})

	t.Run("unknown actions are rejected as validation errors", func(t *testing.T) {
		t.Parallel()
		svc, _ := newCalendarioTestService(nil)

		for _, action := range []workflow.Action{"arquivar", workflow.ActionCreate} {
			_, err := svc.Transition(ctx, TransitionParams{Principal: admin, CalendarioID: "cal-x", Action: action})
			var vErr *ValidationError
			if !errors.As(err, &vErr) || vErr.FieldErrors["action"] == "" {
				t.Fatalf("expected action validation error for %q, got %v", action, err)
			}
		}
	})

	t.Run("update requires input", func(t *testing.T) {
		t.Parallel()
		svc, repo := newCalendarioTestService(nil)
		repo.put(Calendario{ID: "cal-x", ProfessorID: professor.UserID, Status: domain.StatusRascunho})

		_, err := svc.Transition(ctx, TransitionParams{Principal: professor, CalendarioID: "cal-x", Action: workflow.ActionUpdate})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})
}

func TestCalendarioService_UpdateChecksRecordBeforeInput(t *testing.T) {
	t.Parallel()

	invalid := validInput()
	invalid.AV1.Conteudo = "x"

	tests := []struct {
		name      string
		record    *Calendario
		principal Principal
		id        string
		want      error
	}{
		{
			name:      "submitted record reports state",
			record:    &Calendario{ID: "cal-x", ProfessorID: professor.UserID, Status: domain.StatusEnviado},
			principal: professor,
			id:        "cal-x",
			want:      ErrInvalidState,
		},
		{
			name:      "foreign draft reports not found",
			record:    &Calendario{ID: "cal-x", ProfessorID: professor2.UserID, Status: domain.StatusRascunho},
			principal: professor,
			id:        "cal-x",
			want:      ErrNotFound,
		},
		{
			name:      "missing record reports not found",
			principal: professor,
			id:        "missing",
			want:      ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc, repo := newCalendarioTestService(nil)
			if tt.record != nil {
				repo.put(*tt.record)
			}

			_, err := svc.UpdateCalendario(context.Background(), tt.principal, tt.id, invalid)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			var vErr *ValidationError
			if errors.As(err, &vErr) {
				t.Fatalf("input must not be judged before the record checks, got %v", vErr)
			}
		})
	}

	t.Run("own draft still validates input", func(t *testing.T) {
		t.Parallel()
		svc, repo := newCalendarioTestService(nil)
		repo.put(Calendario{ID: "cal-x", ProfessorID: professor.UserID, Status: domain.StatusRascunho, Turma: "1A"})

		_, err := svc.UpdateCalendario(context.Background(), professor, "cal-x", invalid)
		var vErr *ValidationError
		if !errors.As(err, &vErr) || vErr.FieldErrors["av1.conteudo"] == "" {
			t.Fatalf("expected av1.conteudo error, got %v", err)
		}
		stored, _ := repo.GetCalendario(context.Background(), "cal-x")
		if stored.Version != 1 || stored.Turma != "1A" {
			t.Fatalf("rejected update must not write, got %+v", stored)
		}
	})
}

// failingDirectory fails every profile lookup.
type failingDirectory struct {
	err error
}

func (d failingDirectory) GetUser(context.Context, string) (User, error) {
	return User{}, d.err
}

func TestCalendarioService_ProfileLookupFailures(t *testing.T) {
	t.Parallel()

	errDown := errors.New("directory unavailable")
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "repository failure propagates", err: errDown, want: errDown},
		{name: "missing profile is not found", err: persistence.ErrNotFound, want: ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc, repo := newCalendarioTestService(failingDirectory{err: tt.err})

			_, err := svc.CreateCalendario(context.Background(), CreateCalendarioParams{Principal: professor, Input: validInput()})
			if !errors.Is(err, tt.want) {
				t.Fatalf("create: expected %v, got %v", tt.want, err)
			}
			if len(repo.records) != 0 {
				t.Fatalf("nothing may be stored when the profile cannot be read")
			}

			repo.put(Calendario{ID: "cal-x", ProfessorID: professor.UserID, Status: domain.StatusRascunho})
			_, err = svc.UpdateCalendario(context.Background(), professor, "cal-x", validInput())
			if !errors.Is(err, tt.want) {
				t.Fatalf("update: expected %v, got %v", tt.want, err)
			}
		})
	}

	t.Run("reviewers do not need a profile", func(t *testing.T) {
		t.Parallel()
		svc, repo := newCalendarioTestService(failingDirectory{err: errDown})
		repo.put(Calendario{ID: "cal-x", ProfessorID: professor.UserID, Status: domain.StatusEnviado})

		if _, err := svc.Aprovar(context.Background(), coordenacao, "cal-x"); err != nil {
			t.Fatalf("aprovar: %v", err)
		}
	})
}

// staleCalendarios advances the stored version right after every read, as if
// another writer committed in between.
type staleCalendarios struct {
	*memoryCalendarios
}

func (s staleCalendarios) GetCalendario(ctx context.Context, id string) (Calendario, error) {
	c, err := s.memoryCalendarios.GetCalendario(ctx, id)
	if err != nil {
		return c, err
	}
	bumped := c
	bumped.Version++
	s.memoryCalendarios.put(bumped)
	return c, nil
}

func TestCalendarioService_StaleVersion(t *testing.T) {
	t.Parallel()

	repo := newMemoryCalendarios()
	repo.put(Calendario{ID: "cal-x", ProfessorID: professor.UserID, Status: domain.StatusEnviado, Version: 3})
	svc := NewCalendarioService(staleCalendarios{repo}, nil, nil, fixedNow)

	_, err := svc.Aprovar(context.Background(), coordenacao, "cal-x")
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	stored, _ := repo.GetCalendario(context.Background(), "cal-x")
	if stored.Status != domain.StatusEnviado {
		t.Fatalf("expected status to be untouched, got %s", stored.Status)
	}

	if err := svc.DeleteCalendario(context.Background(), admin, "cal-x"); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected stale delete to conflict, got %v", err)
	}
}

func TestCalendarioService_ConcurrentApprovals(t *testing.T) {
	t.Parallel()

	svc, repo := newCalendarioTestService(nil)
	repo.put(Calendario{ID: "cal-x", ProfessorID: professor.UserID, Status: domain.StatusEnviado})

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var err error
			if i%2 == 0 {
				_, err = svc.Aprovar(context.Background(), coordenacao, "cal-x")
			} else {
				_, err = svc.SolicitarAjuste(context.Background(), admin, "cal-x", "Corrigir conteúdo")
			}
			switch {
			case err == nil:
				mu.Lock()
				successes++
				mu.Unlock()
			case errors.Is(err, ErrConflict), errors.Is(err, ErrInvalidState):
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if successes != 1 {
		t.Fatalf("expected exactly one transition to win, got %d", successes)
	}
	stored, _ := repo.GetCalendario(context.Background(), "cal-x")
	if stored.Version != 2 {
		t.Fatalf("expected a single version bump, got %d", stored.Version)
	}
}

func TestCalendarioService_Reads(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, repo := newCalendarioTestService(nil)
	repo.put(Calendario{ID: "a", ProfessorID: professor.UserID, Turma: "1A", Bimestre: 1, Ano: 2025, Status: domain.StatusRascunho,
		AV1: Avaliacao{Instrumento: domain.InstrumentoProvaImpressa}})
	repo.put(Calendario{ID: "b", ProfessorID: professor.UserID, Turma: "1A", Bimestre: 1, Ano: 2025, Status: domain.StatusAprovado,
		AV1: Avaliacao{Instrumento: domain.InstrumentoTrabalho}, AV2: Avaliacao{Instrumento: domain.InstrumentoListaExercicios}})
	repo.put(Calendario{ID: "c", ProfessorID: professor2.UserID, Turma: "2B", Bimestre: 1, Ano: 2025, Status: domain.StatusEnviado})

	t.Run("professors only see their own records", func(t *testing.T) {
		list, err := svc.ListCalendarios(ctx, ListCalendariosParams{Principal: professor, Filter: CalendarioFilter{ProfessorID: professor2.UserID}})
		if err != nil {
			t.Fatalf("ListCalendarios failed: %v", err)
		}
		if len(list) != 2 {
			t.Fatalf("expected 2 own records, got %d", len(list))
		}
		for _, c := range list {
			if c.ProfessorID != professor.UserID {
				t.Fatalf("leaked record %s of %s", c.ID, c.ProfessorID)
			}
		}

		if _, err := svc.GetCalendario(ctx, professor, "c"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected foreign record to be hidden, got %v", err)
		}
	})

	t.Run("reviewers filter by status", func(t *testing.T) {
		list, err := svc.ListCalendarios(ctx, ListCalendariosParams{Principal: coordenacao, Filter: CalendarioFilter{Status: domain.StatusEnviado}})
		if err != nil {
			t.Fatalf("ListCalendarios failed: %v", err)
		}
		if len(list) != 1 || list[0].ID != "c" {
			t.Fatalf("expected only submitted record, got %#v", list)
		}

		got, err := svc.GetCalendario(ctx, coordenacao, "a")
		if err != nil || got.ID != "a" {
			t.Fatalf("expected reviewer to read any record, got %v", err)
		}
	})

	t.Run("stats count by status and print flag", func(t *testing.T) {
		stats, err := svc.Stats(ctx, ListCalendariosParams{Principal: admin})
		if err != nil {
			t.Fatalf("Stats failed: %v", err)
		}
		want := Stats{Total: 3, Rascunho: 1, Enviado: 1, Aprovado: 1, NecessitaImpressao: 2}
		if stats != want {
			t.Fatalf("expected %+v, got %+v", want, stats)
		}

		own, err := svc.Stats(ctx, ListCalendariosParams{Principal: professor2})
		if err != nil {
			t.Fatalf("Stats failed: %v", err)
		}
		if own.Total != 1 || own.Enviado != 1 {
			t.Fatalf("expected professor stats to be scoped, got %+v", own)
		}
	})
}

func TestCalendarioService_ConsolidatedEvents(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, repo := newCalendarioTestService(nil)
	mar := func(day int) time.Time { return time.Date(2025, 3, day, 0, 0, 0, 0, time.UTC) }

	repo.put(Calendario{ID: "hist", ProfessorID: professor.UserID, Turma: "1A", Disciplina: "História", Bimestre: 1, Ano: 2025, Status: domain.StatusAprovado,
		AV1:          Avaliacao{Data: mar(12), Instrumento: domain.InstrumentoProvaImpressa},
		AV2:          Avaliacao{Data: mar(20), Instrumento: domain.InstrumentoSeminario},
		Consolidacao: Consolidacao{}})
	repo.put(Calendario{ID: "port", ProfessorID: professor2.UserID, Turma: "1A", Disciplina: "Língua Portuguesa", Bimestre: 1, Ano: 2025, Status: domain.StatusAprovado,
		AV1:          Avaliacao{Data: mar(12), Instrumento: domain.InstrumentoTrabalho},
		AV2:          Avaliacao{Data: mar(25), Instrumento: domain.InstrumentoListaExercicios},
		Consolidacao: Consolidacao{Data: mar(28)}})
	repo.put(Calendario{ID: "draft", ProfessorID: professor.UserID, Turma: "1A", Disciplina: "Arte", Bimestre: 1, Ano: 2025, Status: domain.StatusEnviado,
		AV1: Avaliacao{Data: mar(1)}})

	events, err := svc.ConsolidatedEvents(ctx, ConsolidatedParams{Principal: professor, Turma: "1A", Bimestre: 1, Ano: 2025})
	if err != nil {
		t.Fatalf("ConsolidatedEvents failed: %v", err)
	}
	if len(events) != 6 {
		t.Fatalf("expected 6 events from approved records, got %d", len(events))
	}

	type key struct {
		id   string
		tipo EventoTipo
	}
	want := []key{
		{"port", EventoAV1},
		{"hist", EventoAV1},
		{"hist", EventoAV2},
		{"port", EventoAV2},
		{"port", EventoConsolidacao},
		{"hist", EventoConsolidacao},
	}
	for i, w := range want {
		if events[i].CalendarioID != w.id || events[i].Tipo != w.tipo {
			t.Fatalf("event %d: expected %v, got %s/%s", i, w, events[i].CalendarioID, events[i].Tipo)
		}
	}
	if !events[1].NecessitaImpressao || events[0].NecessitaImpressao {
		t.Fatalf("expected print flag to follow each instrument")
	}
	if events[4].NecessitaImpressao {
		t.Fatalf("expected consolidation events to never require printing")
	}
	if events[0].ProfessorNome != "Bruno Lima" {
		t.Fatalf("expected owner name on event, got %q", events[0].ProfessorNome)
	}

	t.Run("served from cache until a write", func(t *testing.T) {
		before := repo.lists
		if _, err := svc.ConsolidatedEvents(ctx, ConsolidatedParams{Principal: coordenacao, Turma: "1A", Bimestre: 1, Ano: 2025}); err != nil {
			t.Fatalf("ConsolidatedEvents failed: %v", err)
		}
		if repo.lists != before {
			t.Fatalf("expected cached result, repository was queried")
		}

		other, err := svc.ConsolidatedEvents(ctx, ConsolidatedParams{Principal: coordenacao, Turma: "1a", Bimestre: 1, Ano: 2025})
		if err != nil {
			t.Fatalf("ConsolidatedEvents failed: %v", err)
		}
		if len(other) != 0 || repo.lists != before+1 {
			t.Fatalf("expected a separate empty lookup for 1a, got %d events", len(other))
		}
		again, err := svc.ConsolidatedEvents(ctx, ConsolidatedParams{Principal: coordenacao, Turma: "1A", Bimestre: 1, Ano: 2025})
		if err != nil || len(again) != 6 {
			t.Fatalf("expected 1A to keep its events, got %d (%v)", len(again), err)
		}

		if _, err := svc.Aprovar(ctx, coordenacao, "draft"); err != nil {
			t.Fatalf("aprovar: %v", err)
		}
		refreshed, err := svc.ConsolidatedEvents(ctx, ConsolidatedParams{Principal: coordenacao, Turma: "1A", Bimestre: 1, Ano: 2025})
		if err != nil {
			t.Fatalf("ConsolidatedEvents failed: %v", err)
		}
		if len(refreshed) != 9 {
			t.Fatalf("expected newly approved record to appear, got %d events", len(refreshed))
		}
	})
}

// interleavedCalendarios runs during once, after a list was read but before
// the caller gets to use it.
type interleavedCalendarios struct {
	*memoryCalendarios
	once   sync.Once
	during func()
}

func (r *interleavedCalendarios) ListCalendarios(ctx context.Context, filter CalendarioRepositoryFilter) ([]Calendario, error) {
	list, err := r.memoryCalendarios.ListCalendarios(ctx, filter)
	r.once.Do(r.during)
	return list, err
}

func TestCalendarioService_ConsolidatedEventsDropsStaleFill(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	day := time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC)
	mem := newMemoryCalendarios()
	mem.put(Calendario{ID: "a", ProfessorID: professor.UserID, Turma: "1A", Disciplina: "Arte", Bimestre: 1, Ano: 2025, Status: domain.StatusAprovado,
		AV1: Avaliacao{Data: day}})
	mem.put(Calendario{ID: "b", ProfessorID: professor2.UserID, Turma: "1A", Disciplina: "História", Bimestre: 1, Ano: 2025, Status: domain.StatusEnviado,
		AV1: Avaliacao{Data: day}})

	repo := &interleavedCalendarios{memoryCalendarios: mem}
	svc := NewCalendarioService(repo, nil, nil, fixedNow)
	repo.during = func() {
		if _, err := svc.Aprovar(ctx, coordenacao, "b"); err != nil {
			t.Errorf("aprovar during read: %v", err)
		}
	}

	params := ConsolidatedParams{Principal: coordenacao, Turma: "1A", Bimestre: 1, Ano: 2025}
	first, err := svc.ConsolidatedEvents(ctx, params)
	if err != nil {
		t.Fatalf("ConsolidatedEvents failed: %v", err)
	}
	if len(first) != 3 {
		t.Fatalf("expected the read to see the list it loaded, got %d events", len(first))
	}

	second, err := svc.ConsolidatedEvents(ctx, params)
	if err != nil {
		t.Fatalf("ConsolidatedEvents failed: %v", err)
	}
	if len(second) != 6 {
		t.Fatalf("expected the approval to be visible, got %d events", len(second))
	}
}

func TestCalendarioService_InvalidateEvents(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, repo := newCalendarioTestService(nil)
	repo.put(Calendario{ID: "a", ProfessorID: professor.UserID, Turma: "1A", Bimestre: 1, Ano: 2025, Status: domain.StatusAprovado})

	params := ConsolidatedParams{Principal: coordenacao, Turma: "1A", Bimestre: 1, Ano: 2025}
	if _, err := svc.ConsolidatedEvents(ctx, params); err != nil {
		t.Fatalf("ConsolidatedEvents failed: %v", err)
	}
	repo.names[professor.UserID] = "Ana Souza Lima"
	repo.put(Calendario{ID: "a", ProfessorID: professor.UserID, Turma: "1A", Bimestre: 1, Ano: 2025, Status: domain.StatusAprovado})

	svc.InvalidateEvents()
	events, err := svc.ConsolidatedEvents(ctx, params)
	if err != nil {
		t.Fatalf("ConsolidatedEvents failed: %v", err)
	}
	if events[0].ProfessorNome != "Ana Souza Lima" {
		t.Fatalf("expected renamed owner after invalidation, got %q", events[0].ProfessorNome)
	}
}

func TestBuildConsolidatedEvents_OrdersByCurriculumOnTies(t *testing.T) {
	t.Parallel()

	day := time.Date(2025, 5, 5, 0, 0, 0, 0, time.UTC)
	calendarios := []Calendario{
		{ID: "1", Turma: "1A", Disciplina: "Física", AV1: Avaliacao{Data: day}, AV2: Avaliacao{Data: day}, Consolidacao: Consolidacao{Data: day}},
		{ID: "2", Turma: "1A", Disciplina: "Educação Física", AV1: Avaliacao{Data: day}, AV2: Avaliacao{Data: day}, Consolidacao: Consolidacao{Data: day}},
		{ID: "3", Turma: "1A", Disciplina: "Matemática", AV1: Avaliacao{Data: day}, AV2: Avaliacao{Data: day}, Consolidacao: Consolidacao{Data: day}},
	}

	events := BuildConsolidatedEvents(calendarios)
	wantIDs := []string{"3", "3", "3", "2", "2", "2", "1", "1", "1"}
	wantTipos := []EventoTipo{EventoAV1, EventoAV2, EventoConsolidacao}
	for i, e := range events {
		if e.CalendarioID != wantIDs[i] {
			t.Fatalf("event %d: expected calendario %s, got %s", i, wantIDs[i], e.CalendarioID)
		}
		if e.Tipo != wantTipos[i%3] {
			t.Fatalf("event %d: expected %s, got %s", i, wantTipos[i%3], e.Tipo)
		}
	}

	if got := BuildConsolidatedEvents(nil); len(got) != 0 {
		t.Fatalf("expected no events for no calendars, got %d", len(got))
	}
}
