package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/example/calendario-escolar/internal/config"
	"github.com/example/calendario-escolar/internal/document"
)

type apiClient struct {
	t      *testing.T
	server *httptest.Server
}

func (c apiClient) do(method, path, token string, body any) (*http.Response, []byte) {
	c.t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, c.server.URL+path, reader)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.server.Client().Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.t.Fatalf("read body: %v", err)
	}
	return resp, data
}

func (c apiClient) expect(method, path, token string, body any, status int) []byte {
	c.t.Helper()
	resp, data := c.do(method, path, token, body)
	if resp.StatusCode != status {
		c.t.Fatalf("%s %s: status = %d, want %d (body %s)", method, path, resp.StatusCode, status, data)
	}
	return data
}

func (c apiClient) login(email, password string) string {
	c.t.Helper()
	data := c.expect(http.MethodPost, "/auth/login", "", map[string]string{"email": email, "password": password}, http.StatusOK)
	var out struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(data, &out); err != nil || out.Token == "" {
		c.t.Fatalf("login response %s: %v", data, err)
	}
	return out.Token
}

func (c apiClient) register(body map[string]any) string {
	c.t.Helper()
	data := c.expect(http.MethodPost, "/auth/register", "", body, http.StatusCreated)
	var out struct {
		User struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"user"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		c.t.Fatalf("decode registration: %v", err)
	}
	if out.User.Status != "pendente" {
		c.t.Fatalf("new accounts start pending, got %q", out.User.Status)
	}
	return out.User.ID
}

func newTestApp(t *testing.T) apiClient {
	t.Helper()

	cfg := config.Config{
		SQLiteDSN:     filepath.Join(t.TempDir(), "calendario.db"),
		JWTSecret:     "segredo-de-teste-com-tamanho-suficiente",
		TokenTTL:      time.Hour,
		ScratchDir:    t.TempDir(),
		RenderTimeout: 5 * time.Second,
		AdminEmail:    "admin@escola.br",
		AdminPassword: "senha-do-admin",
		AdminName:     "Administrador",
		LogLevel:      slog.LevelError,
	}
	renderer := document.RendererFunc(func(_ context.Context, html string, _ document.PageOptions) ([]byte, error) {
		if !strings.Contains(html, "MATEMÁTICA") {
			t.Errorf("rendered HTML misses the discipline")
		}
		return []byte("%PDF-1.7 teste"), nil
	})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	app, err := newApp(context.Background(), cfg, renderer, logger)
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	server := httptest.NewServer(app.handler)
	t.Cleanup(func() {
		server.Close()
		if err := app.Close(); err != nil {
			t.Errorf("close app: %v", err)
		}
	})
	return apiClient{t: t, server: server}
}

func calendarioBody() map[string]any {
	return map[string]any{
		"turma":      "6A",
		"disciplina": "Matemática",
		"bimestre":   1,
		"ano":        2025,
		"av1": map[string]string{
			"data":        "2025-03-14",
			"instrumento": "Prova Impressa",
			"conteudo":    "Frações e números decimais",
			"criterios":   "Resolução correta e organizada",
		},
		"av2": map[string]string{
			"data":        "2025-04-04",
			"instrumento": "Trabalho",
			"conteudo":    "Pesquisa sobre porcentagem",
			"criterios":   "Clareza e uso de fontes",
		},
		"consolidacao": map[string]string{
			"data":     "2025-04-11",
			"conteudo": "Revisão geral do bimestre",
		},
	}
}

func TestCalendarioWorkflowEndToEnd(t *testing.T) {
	api := newTestApp(t)

	api.expect(http.MethodGet, "/healthz", "", nil, http.StatusOK)
	api.expect(http.MethodGet, "/calendarios", "", nil, http.StatusUnauthorized)

	adminToken := api.login("admin@escola.br", "senha-do-admin")

	professorID := api.register(map[string]any{
		"nome":        "Ana Souza",
		"email":       "ana.souza@escola.br",
		"password":    "senha-da-ana",
		"role":        "professor",
		"disciplinas": []string{"Matemática"},
		"turmas":      []string{"6A"},
	})
	_, data := api.do(http.MethodPost, "/auth/login", "", map[string]string{"email": "ana.souza@escola.br", "password": "senha-da-ana"})
	if !strings.Contains(string(data), "CONTA_PENDENTE") {
		t.Fatalf("pending login should be refused, got %s", data)
	}
	api.expect(http.MethodPost, "/users/"+professorID+"/aprovar", adminToken, nil, http.StatusOK)

	coordID := api.register(map[string]any{
		"nome":     "Carla Lima",
		"email":    "carla.lima@escola.br",
		"password": "senha-da-carla",
		"role":     "coordenacao",
	})
	api.expect(http.MethodPost, "/users/"+coordID+"/aprovar", adminToken, nil, http.StatusOK)

	professorToken := api.login("ana.souza@escola.br", "senha-da-ana")
	coordToken := api.login("carla.lima@escola.br", "senha-da-carla")

	data = api.expect(http.MethodPost, "/calendarios", professorToken, calendarioBody(), http.StatusCreated)
	var created struct {
		Calendario struct {
			ID                 string `json:"id"`
			Status             string `json:"status"`
			NecessitaImpressao bool   `json:"necessitaImpressao"`
			ProfessorNome      string `json:"professorNome"`
		} `json:"calendario"`
	}
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("decode calendario: %v", err)
	}
	cal := created.Calendario
	if cal.Status != "rascunho" || !cal.NecessitaImpressao || cal.ProfessorNome != "Ana Souza" {
		t.Fatalf("unexpected calendario %+v", cal)
	}

	api.expect(http.MethodPost, "/calendarios/"+cal.ID+"/aprovar", coordToken, nil, http.StatusConflict)
	api.expect(http.MethodPost, "/calendarios/"+cal.ID+"/enviar", professorToken, nil, http.StatusOK)

	resp, pdf := api.do(http.MethodGet, "/calendarios/"+cal.ID+"/pdf", professorToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("pdf status = %d (%s)", resp.StatusCode, pdf)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("content type = %q", ct)
	}
	if !bytes.HasPrefix(pdf, []byte("%PDF")) {
		t.Fatalf("unexpected pdf body %q", pdf)
	}

	api.expect(http.MethodPost, "/calendarios/"+cal.ID+"/aprovar", professorToken, nil, http.StatusForbidden)
	api.expect(http.MethodPost, "/calendarios/"+cal.ID+"/aprovar", coordToken, nil, http.StatusOK)
	api.expect(http.MethodPost, "/calendarios/"+cal.ID+"/aprovar", coordToken, nil, http.StatusConflict)

	data = api.expect(http.MethodGet, "/calendarios/consolidado?turma=6A&bimestre=1&ano=2025", coordToken, nil, http.StatusOK)
	var consolidado struct {
		Eventos []struct {
			Tipo          string `json:"tipo"`
			DataFormatada string `json:"dataFormatada"`
		} `json:"eventos"`
	}
	if err := json.Unmarshal(data, &consolidado); err != nil {
		t.Fatalf("decode consolidado: %v", err)
	}
	if len(consolidado.Eventos) != 3 {
		t.Fatalf("expected 3 events, got %d (%s)", len(consolidado.Eventos), data)
	}
	if consolidado.Eventos[0].Tipo != "AV1" || consolidado.Eventos[0].DataFormatada != "14.03" {
		t.Fatalf("unexpected first event %+v", consolidado.Eventos[0])
	}

	data = api.expect(http.MethodGet, "/calendarios/estatisticas", coordToken, nil, http.StatusOK)
	var stats struct {
		Total              int `json:"total"`
		Aprovado           int `json:"aprovado"`
		NecessitaImpressao int `json:"necessitaImpressao"`
	}
	if err := json.Unmarshal(data, &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.Total != 1 || stats.Aprovado != 1 || stats.NecessitaImpressao != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	api.expect(http.MethodDelete, "/calendarios/"+cal.ID, professorToken, nil, http.StatusConflict)
}

func TestNewAppBootstrapsAdminOnce(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "calendario.db")
	cfg := config.Config{
		SQLiteDSN:     dsn,
		JWTSecret:     "segredo-de-teste-com-tamanho-suficiente",
		TokenTTL:      time.Hour,
		AdminEmail:    "admin@escola.br",
		AdminPassword: "senha-do-admin",
		AdminName:     "Administrador",
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	renderer := document.RendererFunc(func(context.Context, string, document.PageOptions) ([]byte, error) {
		return nil, nil
	})

	for i := 0; i < 2; i++ {
		app, err := newApp(context.Background(), cfg, renderer, logger)
		if err != nil {
			t.Fatalf("run %d: newApp: %v", i, err)
		}
		if err := app.Close(); err != nil {
			t.Fatalf("run %d: close: %v", i, err)
		}
	}
}
