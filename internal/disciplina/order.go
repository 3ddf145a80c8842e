// Package disciplina orders free-text discipline names by the school's
// curriculum sequence.
package disciplina

import (
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// canonical is matched by substring containment in list order, so an entry
// that contains a later entry (EDUCAÇÃO FÍSICA, FÍSICA) must come first.
var canonical = []string{
	"LÍNGUA PORTUGUESA",
	"PORTUGUÊS",
	"PORTUGUES",
	"GRAMÁTICA",
	"REDAÇÃO",
	"LITERATURA",
	"PRODUÇÃO TEXTUAL",
	"MATEMÁTICA",
	"MATEMATICA",
	"GEOMETRIA",
	"ÁLGEBRA",
	"HISTÓRIA",
	"HISTORIA",
	"GEOGRAFIA",
	"CIÊNCIAS",
	"CIENCIAS",
	"BIOLOGIA",
	"QUÍMICA",
	"EDUCAÇÃO FÍSICA",
	"FÍSICA",
	"FISICA",
	"LÍNGUA INGLESA",
	"INGLÊS",
	"INGLES",
	"LÍNGUA ESPANHOLA",
	"ESPANHOL",
	"ARTE",
	"MÚSICA",
	"FILOSOFIA",
	"SOCIOLOGIA",
	"ENSINO RELIGIOSO",
	"PROJETO DE VIDA",
}

// Index returns the position of the first canonical entry contained in the
// upper-cased name, or -1 when none matches.
func Index(name string) int {
	upper := strings.ToUpper(name)
	for i, entry := range canonical {
		if strings.Contains(upper, entry) {
			return i
		}
	}
	return -1
}

// Comparator orders discipline names. A Comparator is not safe for concurrent
// use because the underlying collator keeps scratch buffers.
type Comparator struct {
	collator *collate.Collator
}

// NewComparator returns a Comparator whose fallback ordering follows
// Brazilian Portuguese collation.
func NewComparator() *Comparator {
	return &Comparator{collator: collate.New(language.BrazilianPortuguese)}
}

// Compare returns a negative number when a sorts before b, a positive number
// when b sorts before a and zero when they are equivalent.
func (c *Comparator) Compare(a, b string) int {
	ia, ib := Index(a), Index(b)
	switch {
	case ia >= 0 && ib >= 0:
		return ia - ib
	case ia >= 0:
		return -1
	case ib >= 0:
		return 1
	}
	return c.collator.CompareString(strings.ToUpper(a), strings.ToUpper(b))
}

// SortFunc stably sorts items by the discipline name returned for each one.
func SortFunc[T any](items []T, name func(T) string) {
	c := NewComparator()
	slices.SortStableFunc(items, func(x, y T) int {
		return c.Compare(name(x), name(y))
	})
}

// Sort stably sorts discipline names in place.
func Sort(names []string) {
	SortFunc(names, func(s string) string { return s })
}
