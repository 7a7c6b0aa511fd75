package parser

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"

	"github.com/sacksapp/sacks/internal/bag"
	"github.com/sacksapp/sacks/internal/lookup"
)

// outcome is what one operation produced. The engine turns it into bag
// writes; operations themselves never write (Concat only reads).
type outcome struct {
	value   string   // scalar result
	values  []string // array result (Split, Find with the all option)
	isArray bool
	clean   string // what <Output>.Clean should hold
	matched bool   // a pattern or table entry hit the input
	ok      bool   // the op produced something to write
	cleared bool   // Clear: unset the output instead of writing
}

// operation executes one compiled op against the resolved input value.
// inOK is false when the input reference was never written this row.
type operation interface {
	run(b *bag.Bag, in string, inOK bool) outcome
}

// assignOp copies the input to the output.
type assignOp struct{}

func (assignOp) run(_ *bag.Bag, in string, inOK bool) outcome {
	if !inOK {
		return outcome{}
	}
	return outcome{value: in, clean: in, matched: true, ok: true}
}

type findMode int

const (
	findFirst findMode = iota
	findLast
	findAll
)

// findOp scans the input with a regex or a lookup table. A lookup source
// emits the matched input text, not the table's mapped value; translating
// is Map's job and the two are chained when both are wanted.
type findOp struct {
	table  *lookup.Table  // lookup:<name> source
	re     *regexp.Regexp // regex source
	group  int            // submatch to emit; 0 emits the whole match
	mode   findMode
	remove bool
}

func (f *findOp) run(_ *bag.Bag, in string, inOK bool) outcome {
	if !inOK || in == "" {
		return outcome{}
	}
	if f.table != nil {
		return f.runLookup(in)
	}
	return f.runRegex(in)
}

func (f *findOp) runLookup(in string) outcome {
	if f.mode == findAll {
		ms := f.table.FindAll(in)
		if len(ms) == 0 {
			return outcome{}
		}
		values := make([]string, len(ms))
		spans := make([]span, len(ms))
		for i, m := range ms {
			values[i] = in[m.Start:m.End]
			spans[i] = span{m.Start, m.End}
		}
		return outcome{values: values, isArray: true, clean: f.cleanFor(in, spans), matched: true, ok: true}
	}

	var m lookup.Match
	var ok bool
	if f.mode == findLast {
		m, ok = f.table.FindLast(in)
	} else {
		m, ok = f.table.FindFirst(in)
	}
	if !ok {
		return outcome{}
	}
	return outcome{
		value:   in[m.Start:m.End],
		clean:   f.cleanFor(in, []span{{m.Start, m.End}}),
		matched: true,
		ok:      true,
	}
}

func (f *findOp) runRegex(in string) outcome {
	if f.mode == findAll {
		ms := f.re.FindAllStringSubmatchIndex(in, -1)
		if len(ms) == 0 {
			return outcome{}
		}
		values := make([]string, len(ms))
		spans := make([]span, len(ms))
		for i, m := range ms {
			values[i] = f.captureText(in, m)
			spans[i] = span{m[0], m[1]}
		}
		return outcome{values: values, isArray: true, clean: f.cleanFor(in, spans), matched: true, ok: true}
	}

	var m []int
	if f.mode == findLast {
		all := f.re.FindAllStringSubmatchIndex(in, -1)
		if len(all) > 0 {
			m = all[len(all)-1]
		}
	} else {
		m = f.re.FindStringSubmatchIndex(in)
	}
	if m == nil {
		return outcome{}
	}
	return outcome{
		value:   f.captureText(in, m),
		clean:   f.cleanFor(in, []span{{m[0], m[1]}}),
		matched: true,
		ok:      true,
	}
}

// captureText returns the selected group's text, falling back to the whole
// match when the group did not participate.
func (f *findOp) captureText(in string, m []int) string {
	if g := f.group; g > 0 && 2*g+1 < len(m) && m[2*g] >= 0 {
		return in[m[2*g]:m[2*g+1]]
	}
	return in[m[0]:m[1]]
}

// cleanFor computes the remainder written to <Output>.Clean. Removal always
// cuts the whole matched span, even when a named group narrowed the output.
func (f *findOp) cleanFor(in string, spans []span) string {
	if !f.remove {
		return in
	}
	return cleanRemainder(in, spans)
}

// mapOp translates the input through a lookup table.
type mapOp struct {
	table *lookup.Table
}

func (m *mapOp) run(_ *bag.Bag, in string, inOK bool) outcome {
	if !inOK {
		return outcome{}
	}
	v, ok := m.table.Lookup(strings.TrimSpace(in))
	if !ok {
		return outcome{}
	}
	return outcome{value: v, clean: in, matched: true, ok: true}
}

// splitOp cuts the input on a delimiter into an indexed array.
type splitOp struct {
	delimiter string
}

func (s *splitOp) run(_ *bag.Bag, in string, inOK bool) outcome {
	if !inOK {
		return outcome{}
	}
	parts := strings.Split(in, s.delimiter)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return outcome{values: parts, isArray: true, clean: in, matched: true, ok: true}
}

type switchBranch struct {
	match string
	value string
}

// switchOp maps the input through declared When:<value> branches, in
// declaration order, with an optional Default.
type switchOp struct {
	branches   []switchBranch
	def        string
	hasDefault bool
	ignoreCase bool
}

func (s *switchOp) run(_ *bag.Bag, in string, inOK bool) outcome {
	if inOK {
		for _, br := range s.branches {
			if s.equals(in, br.match) {
				return outcome{value: br.value, clean: in, matched: true, ok: true}
			}
		}
	}
	if s.hasDefault {
		return outcome{value: s.def, clean: in, ok: true}
	}
	return outcome{}
}

func (s *switchOp) equals(a, b string) bool {
	if s.ignoreCase {
		return strings.EqualFold(a, b)
	}
	return a == b
}

// convertOp multiplies a numeric input by a fixed unit factor.
type convertOp struct {
	factor decimal.Decimal
}

func (c *convertOp) run(_ *bag.Bag, in string, inOK bool) outcome {
	if !inOK {
		return outcome{}
	}
	d, err := decimal.NewFromString(normalizeDecimal(in))
	if err != nil {
		return outcome{}
	}
	return outcome{value: d.Mul(c.factor).String(), clean: in, matched: true, ok: true}
}

// normalizeDecimal turns a lone decimal comma into a dot so European price
// notation parses under the invariant culture.
func normalizeDecimal(s string) string {
	s = strings.TrimSpace(s)
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	return s
}

// concatOp joins the values of the listed bag keys. Keys never written this
// row are skipped; producing nothing is a failure.
type concatOp struct {
	keys      []string
	separator string
}

func (c *concatOp) run(b *bag.Bag, _ string, _ bool) outcome {
	parts := make([]string, 0, len(c.keys))
	for _, k := range c.keys {
		if v, ok := b.Get(k); ok {
			parts = append(parts, v)
		}
	}
	if len(parts) == 0 {
		return outcome{}
	}
	joined := strings.Join(parts, c.separator)
	return outcome{value: joined, clean: joined, matched: true, ok: true}
}

// caseFormatOp recases the input using a culture-aware caser.
type caseFormatOp struct {
	caser cases.Caser
}

func (c *caseFormatOp) run(_ *bag.Bag, in string, inOK bool) outcome {
	if !inOK {
		return outcome{}
	}
	return outcome{value: c.caser.String(in), clean: in, matched: true, ok: true}
}

// clearOp unsets the output and its .Clean sibling.
type clearOp struct{}

func (clearOp) run(_ *bag.Bag, _ string, _ bool) outcome {
	return outcome{cleared: true}
}
