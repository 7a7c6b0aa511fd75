// Package lookup implements the named lookup tables referenced by parsing
// rules: exact translation (Map, subtitle assignments) and in-text scanning
// (Find with a lookup source).
//
// Matching is case-insensitive. In-text scans prefer the longest table key
// present in the input; ties are broken by position. The scan itself runs
// through an Aho-Corasick matcher over the folded key set, so tables with
// thousands of keys stay cheap per cell.
package lookup

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/cloudflare/ahocorasick"
)

// Table is an immutable named lookup table. Build once per configuration
// snapshot and share across goroutines.
type Table struct {
	name    string
	entries map[string]string // folded key -> value
	display map[string]string // folded key -> key as configured
	folded  []string          // folded keys, aligned with matcher pattern ids
	matcher *ahocorasick.Matcher
}

// NewTable builds a table from configured entries. Empty keys are dropped.
func NewTable(name string, entries map[string]string) *Table {
	t := &Table{
		name:    name,
		entries: make(map[string]string, len(entries)),
		display: make(map[string]string, len(entries)),
	}
	for k, v := range entries {
		if k == "" {
			continue
		}
		fk := fold(k)
		t.entries[fk] = v
		t.display[fk] = k
		t.folded = append(t.folded, fk)
	}
	// stable pattern order keeps match ids deterministic across runs
	sort.Strings(t.folded)
	t.matcher = ahocorasick.NewStringMatcher(t.folded)
	return t
}

// fold uppercases only runes whose encoded width is unchanged, so byte
// offsets found in the folded text stay valid in the original.
func fold(s string) string {
	return strings.Map(func(r rune) rune {
		u := unicode.ToUpper(r)
		if utf8.RuneLen(u) != utf8.RuneLen(r) {
			return r
		}
		return u
	}, s)
}

// Name returns the table's configured name.
func (t *Table) Name() string { return t.name }

// Len returns the number of entries.
func (t *Table) Len() int { return len(t.entries) }

// Lookup translates key as a whole, case-insensitively.
func (t *Table) Lookup(key string) (string, bool) {
	v, ok := t.entries[fold(key)]
	return v, ok
}

// Match is one occurrence of a table key inside a scanned text. Start and
// End are byte offsets into the original text.
type Match struct {
	Key   string // key as configured
	Value string // mapped value
	Start int
	End   int
}

// Len returns the matched span length in bytes.
func (m Match) Len() int { return m.End - m.Start }

// scan returns every occurrence of every table key in text, including
// overlapping ones. The Aho-Corasick pass narrows the key set; positions
// come from a per-key index scan over the folded text.
func (t *Table) scan(text string) []Match {
	if len(t.folded) == 0 || text == "" {
		return nil
	}
	ftext := fold(text)
	var out []Match
	for _, id := range t.matcher.Match([]byte(ftext)) {
		fk := t.folded[id]
		for off := 0; ; {
			i := strings.Index(ftext[off:], fk)
			if i < 0 {
				break
			}
			start := off + i
			out = append(out, Match{
				Key:   t.display[fk],
				Value: t.entries[fk],
				Start: start,
				End:   start + len(fk),
			})
			off = start + 1
		}
	}
	return out
}

// FindFirst returns the left-most of the longest keys present in text.
func (t *Table) FindFirst(text string) (Match, bool) {
	return t.findEdge(text, false)
}

// FindLast returns the right-most of the longest keys present in text.
func (t *Table) FindLast(text string) (Match, bool) {
	return t.findEdge(text, true)
}

func (t *Table) findEdge(text string, last bool) (Match, bool) {
	var best Match
	found := false
	for _, m := range t.scan(text) {
		switch {
		case !found,
			m.Len() > best.Len(),
			m.Len() == best.Len() && last && m.Start > best.Start,
			m.Len() == best.Len() && !last && m.Start < best.Start:
			best = m
			found = true
		}
	}
	return best, found
}

// FindAll returns non-overlapping matches left to right, preferring longer
// keys when occurrences overlap.
func (t *Table) FindAll(text string) []Match {
	all := t.scan(text)
	sort.Slice(all, func(i, j int) bool {
		if all[i].Start != all[j].Start {
			return all[i].Start < all[j].Start
		}
		return all[i].Len() > all[j].Len()
	})
	var out []Match
	lastEnd := 0
	for _, m := range all {
		if m.Start < lastEnd {
			continue
		}
		out = append(out, m)
		lastEnd = m.End
	}
	return out
}

// Set is a collection of tables addressed by case-insensitive name.
type Set struct {
	tables map[string]*Table
}

// NewSet builds every table in the configured group.
func NewSet(groups map[string]map[string]string) *Set {
	s := &Set{tables: make(map[string]*Table, len(groups))}
	for name, entries := range groups {
		s.tables[fold(name)] = NewTable(name, entries)
	}
	return s
}

// Table returns the named table, case-insensitively.
func (s *Set) Table(name string) (*Table, bool) {
	if s == nil {
		return nil, false
	}
	t, ok := s.tables[fold(name)]
	return t, ok
}

// Names returns the configured table names, sorted.
func (s *Set) Names() []string {
	if s == nil {
		return nil
	}
	out := make([]string, 0, len(s.tables))
	for _, t := range s.tables {
		out = append(out, t.name)
	}
	sort.Strings(out)
	return out
}
