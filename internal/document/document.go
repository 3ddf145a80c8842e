// Package document assembles calendar records into a printable HTML document
// and renders it to PDF through a pluggable HTML renderer.
package document

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/example/calendario-escolar/internal/disciplina"
)

// PesoPadrao is printed as the weight of every evaluation row.
const PesoPadrao = "10,0"

// DataPendente is printed in place of a missing evaluation date.
const DataPendente = "XX.XX"

// AvisoConsolidacao replaces the instrument column of the consolidation row.
const AvisoConsolidacao = "Avaliação de consolidação: a nota substitui a média do bimestre quando for maior."

var (
	// ErrNoSections is returned when a document has nothing to render.
	ErrNoSections = errors.New("document: no sections")
	// ErrRender wraps failures of the rendering backend.
	ErrRender = errors.New("document: render failed")
)

//go:embed template.html
var templateSource string

var pageTemplate = template.Must(template.New("calendario").Funcs(template.FuncMap{
	"data":  FormatDate,
	"texto": multiline,
	"upper": strings.ToUpper,
	"peso":  func() string { return PesoPadrao },
	"aviso": func() string { return AvisoConsolidacao },
}).Parse(templateSource))

// Avaliacao is one evaluation row of a section.
type Avaliacao struct {
	Rotulo       string
	Data         time.Time
	Instrumento  string
	Conteudo     string
	Criterios    string
	Consolidacao bool
}

// Section summarises one calendar: one professor teaching one discipline to
// one class in one bimester.
type Section struct {
	Professor  string
	Disciplina string
	Turma      string
	Bimestre   int
	Ano        int
	Avaliacoes []Avaliacao
}

// Document is an ordered list of sections sharing a class-level header.
type Document struct {
	Titulo   string
	Turma    string
	Bimestre int
	Ano      int
	Sections []Section
}

// NewSingleDocument wraps one section into a document.
func NewSingleDocument(section Section) Document {
	return Document{
		Titulo:   "Calendário de Avaliações",
		Turma:    section.Turma,
		Bimestre: section.Bimestre,
		Ano:      section.Ano,
		Sections: []Section{section},
	}
}

// NewClassDocument builds the consolidated document of a class, ordering the
// sections by curriculum sequence.
func NewClassDocument(turma string, bimestre, ano int, sections []Section) Document {
	ordered := make([]Section, len(sections))
	copy(ordered, sections)
	disciplina.SortFunc(ordered, func(s Section) string { return s.Disciplina })
	return Document{
		Titulo:   "Calendário de Avaliações da Turma",
		Turma:    turma,
		Bimestre: bimestre,
		Ano:      ano,
		Sections: ordered,
	}
}

// Filename returns a filesystem and header safe name for the document.
func (d Document) Filename() string {
	name := fmt.Sprintf("calendario-%s-%dbim-%d", slug(d.Turma), d.Bimestre, d.Ano)
	if len(d.Sections) == 1 {
		name = fmt.Sprintf("calendario-%s-%s-%dbim-%d", slug(d.Turma), slug(d.Sections[0].Disciplina), d.Bimestre, d.Ano)
	}
	return name + ".pdf"
}

// BuildHTML renders the document into a standalone HTML page.
func BuildHTML(doc Document) (string, error) {
	if len(doc.Sections) == 0 {
		return "", ErrNoSections
	}
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, doc); err != nil {
		return "", fmt.Errorf("document: execute template: %w", err)
	}
	return buf.String(), nil
}

// FormatDate prints a date as DD.MM, or the pending placeholder when unset.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return DataPendente
	}
	return t.Format("02.01")
}

func multiline(s string) template.HTML {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	escaped := template.HTMLEscapeString(s)
	return template.HTML(strings.ReplaceAll(escaped, "\n", "<br>"))
}

func slug(s string) string {
	folding := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(folding, s); err == nil {
		s = folded
	}
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		case r == ' ' || r == '-' || r == '_':
			if b.Len() > 0 && !strings.HasSuffix(b.String(), "-") {
				b.WriteByte('-')
			}
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" {
		return "x"
	}
	return out
}
