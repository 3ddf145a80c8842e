package application

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/example/calendario-escolar/internal/document"
	"github.com/example/calendario-escolar/internal/domain"
	"github.com/example/calendario-escolar/internal/persistence"
)

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

func sequentialIDs(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

var (
	professor   = Principal{UserID: "prof-1", Role: domain.RoleProfessor}
	professor2  = Principal{UserID: "prof-2", Role: domain.RoleProfessor}
	substituto  = Principal{UserID: "sub-1", Role: domain.RoleProfessorSubstituto}
	coordenacao = Principal{UserID: "coord-1", Role: domain.RoleCoordenacao}
	admin       = Principal{UserID: "admin-1", Role: domain.RoleAdmin}
)

func validInput() CalendarioInput {
	return CalendarioInput{
		Turma:      "1A",
		Disciplina: "Matemática",
		Bimestre:   1,
		Ano:        2025,
		AV1: AvaliacaoInput{
			Data:        time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC),
			Instrumento: string(domain.InstrumentoProvaImpressa),
			Conteudo:    "Frações e números decimais",
			Criterios:   "Resolução correta dos exercícios",
		},
		AV2: AvaliacaoInput{
			Data:        time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC),
			Instrumento: string(domain.InstrumentoTrabalho),
			Conteudo:    "Geometria plana aplicada",
			Criterios:   "Organização e corretude do trabalho",
		},
		Consolidacao: ConsolidacaoInput{
			Data:      time.Date(2025, 4, 25, 0, 0, 0, 0, time.UTC),
			Conteudo:  "Revisão geral do bimestre",
			Criterios: "Participação",
		},
	}
}

// memoryCalendarios mimics the versioned writes and the case-sensitive
// matching of the SQLite store.
type memoryCalendarios struct {
	mu      sync.Mutex
	records map[string]Calendario
	names   map[string]string
	listErr error
	lists   int
}

func newMemoryCalendarios() *memoryCalendarios {
	return &memoryCalendarios{
		records: make(map[string]Calendario),
		names:   map[string]string{"prof-1": "Ana Souza", "prof-2": "Bruno Lima", "sub-1": "Carla Dias"},
	}
}

func (m *memoryCalendarios) CreateCalendario(_ context.Context, c Calendario) (Calendario, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[c.ID]; ok {
		return Calendario{}, persistence.ErrDuplicate
	}
	for _, existing := range m.records {
		if existing.Turma == c.Turma && existing.Disciplina == c.Disciplina &&
			existing.Bimestre == c.Bimestre && existing.Ano == c.Ano {
			return Calendario{}, fmt.Errorf("%w: natural key", persistence.ErrDuplicate)
		}
	}
	c.Version = 1
	c.ProfessorNome = m.names[c.ProfessorID]
	c.NecessitaImpressao = domain.NecessitaImpressao(c.AV1.Instrumento, c.AV2.Instrumento)
	m.records[c.ID] = c
	return c, nil
}

func (m *memoryCalendarios) GetCalendario(_ context.Context, id string) (Calendario, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.records[id]
	if !ok {
		return Calendario{}, persistence.ErrNotFound
	}
	return c, nil
}

func (m *memoryCalendarios) UpdateCalendario(_ context.Context, c Calendario, expectedVersion int) (Calendario, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.records[c.ID]
	if !ok {
		return Calendario{}, persistence.ErrNotFound
	}
	if current.Version != expectedVersion {
		return Calendario{}, persistence.ErrStaleVersion
	}
	c.Version = expectedVersion + 1
	c.ProfessorNome = m.names[c.ProfessorID]
	c.NecessitaImpressao = domain.NecessitaImpressao(c.AV1.Instrumento, c.AV2.Instrumento)
	m.records[c.ID] = c
	return c, nil
}

func (m *memoryCalendarios) DeleteCalendario(_ context.Context, id string, expectedVersion int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.records[id]
	if !ok {
		return persistence.ErrNotFound
	}
	if current.Version != expectedVersion {
		return persistence.ErrStaleVersion
	}
	delete(m.records, id)
	return nil
}

func (m *memoryCalendarios) ListCalendarios(_ context.Context, filter CalendarioRepositoryFilter) ([]Calendario, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists++
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []Calendario
	for _, c := range m.records {
		if filter.ProfessorID != "" && c.ProfessorID != filter.ProfessorID {
			continue
		}
		if filter.Turma != "" && c.Turma != filter.Turma {
			continue
		}
		if filter.Disciplina != "" && c.Disciplina != filter.Disciplina {
			continue
		}
		if filter.Bimestre != 0 && c.Bimestre != filter.Bimestre {
			continue
		}
		if filter.Ano != 0 && c.Ano != filter.Ano {
			continue
		}
		if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, c.Status) {
			continue
		}
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b Calendario) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

func (m *memoryCalendarios) CountCalendarios(ctx context.Context, filter CalendarioRepositoryFilter) (Stats, error) {
	list, err := m.ListCalendarios(ctx, filter)
	if err != nil {
		return Stats{}, err
	}
	var stats Stats
	for _, c := range list {
		stats.Total++
		switch c.Status {
		case domain.StatusRascunho:
			stats.Rascunho++
		case domain.StatusEnviado:
			stats.Enviado++
		case domain.StatusAprovado:
			stats.Aprovado++
		}
		if c.NecessitaImpressao {
			stats.NecessitaImpressao++
		}
	}
	return stats, nil
}

func (m *memoryCalendarios) put(c Calendario) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.Version == 0 {
		c.Version = 1
	}
	if c.ProfessorNome == "" {
		c.ProfessorNome = m.names[c.ProfessorID]
	}
	c.NecessitaImpressao = domain.NecessitaImpressao(c.AV1.Instrumento, c.AV2.Instrumento)
	m.records[c.ID] = c
}

// memoryUsers stores users and their password hashes.
type memoryUsers struct {
	mu       sync.Mutex
	users    map[string]User
	hashes   map[string]string
	owners   map[string]bool
	getCalls int
}

func newMemoryUsers(users ...User) *memoryUsers {
	m := &memoryUsers{
		users:  make(map[string]User),
		hashes: make(map[string]string),
		owners: make(map[string]bool),
	}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *memoryUsers) CreateUser(_ context.Context, user User, passwordHash string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.ID == user.ID || strings.EqualFold(existing.Email, user.Email) {
			return User{}, persistence.ErrDuplicate
		}
	}
	user.Ativo = domain.Ativo(user.Status)
	m.users[user.ID] = user
	m.hashes[user.ID] = passwordHash
	return user, nil
}

func (m *memoryUsers) GetUser(_ context.Context, id string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	u, ok := m.users[id]
	if !ok {
		return User{}, persistence.ErrNotFound
	}
	return u, nil
}

func (m *memoryUsers) GetUserByEmail(_ context.Context, email string) (UserCredentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return UserCredentials{User: u, PasswordHash: m.hashes[u.ID]}, nil
		}
	}
	return UserCredentials{}, persistence.ErrNotFound
}

func (m *memoryUsers) UpdateUser(_ context.Context, user User) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.ID]; !ok {
		return User{}, persistence.ErrNotFound
	}
	for _, existing := range m.users {
		if existing.ID != user.ID && strings.EqualFold(existing.Email, user.Email) {
			return User{}, persistence.ErrDuplicate
		}
	}
	user.Ativo = domain.Ativo(user.Status)
	m.users[user.ID] = user
	return user, nil
}

func (m *memoryUsers) DeleteUser(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return persistence.ErrNotFound
	}
	if m.owners[id] {
		return persistence.ErrForeignKeyViolation
	}
	delete(m.users, id)
	return nil
}

func (m *memoryUsers) ListUsers(_ context.Context, filter UserFilter) ([]User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []User
	for _, u := range m.users {
		if filter.Role != "" && u.Role != filter.Role {
			continue
		}
		if filter.Status != "" && u.Status != filter.Status {
			continue
		}
		out = append(out, u)
	}
	slices.SortFunc(out, func(a, b User) int { return strings.Compare(a.Nome, b.Nome) })
	return out, nil
}

type memoryGrade struct {
	mu      sync.Mutex
	entries map[string]GradeHoraria
}

func newMemoryGrade() *memoryGrade {
	return &memoryGrade{entries: make(map[string]GradeHoraria)}
}

func (m *memoryGrade) CreateGradeHoraria(_ context.Context, entry GradeHoraria) (GradeHoraria, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.ProfessorID == entry.ProfessorID && e.Turma == entry.Turma &&
			e.Disciplina == entry.Disciplina && e.DiaSemana == entry.DiaSemana {
			return GradeHoraria{}, persistence.ErrDuplicate
		}
	}
	m.entries[entry.ID] = entry
	return entry, nil
}

func (m *memoryGrade) GetGradeHoraria(_ context.Context, id string) (GradeHoraria, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return GradeHoraria{}, persistence.ErrNotFound
	}
	return e, nil
}

func (m *memoryGrade) ListGradeHoraria(_ context.Context, filter GradeHorariaFilter) ([]GradeHoraria, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []GradeHoraria
	for _, e := range m.entries {
		if filter.ProfessorID != "" && e.ProfessorID != filter.ProfessorID {
			continue
		}
		if filter.Turma != "" && e.Turma != filter.Turma {
			continue
		}
		if filter.Disciplina != "" && e.Disciplina != filter.Disciplina {
			continue
		}
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b GradeHoraria) int { return int(a.DiaSemana) - int(b.DiaSemana) })
	return out, nil
}

func (m *memoryGrade) DeleteGradeHoraria(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(m.entries, id)
	return nil
}

// recordingRenderer captures the documents it is asked to render.
type recordingRenderer struct {
	mu   sync.Mutex
	docs []document.Document
	err  error
}

func (r *recordingRenderer) Render(_ context.Context, doc document.Document) (document.Artifact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return document.Artifact{}, r.err
	}
	if len(doc.Sections) == 0 {
		return document.Artifact{}, document.ErrNoSections
	}
	r.docs = append(r.docs, doc)
	return document.Artifact{Path: "/tmp/" + doc.Filename(), Filename: doc.Filename(), Size: 1024}, nil
}

func (r *recordingRenderer) last() document.Document {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.docs) == 0 {
		return document.Document{}
	}
	return r.docs[len(r.docs)-1]
}

var errBoom = errors.New("boom")
