package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sacksapp/sacks/internal/bag"
)

// Conditions gate individual actions. The grammar is deliberately small:
//
//	expr    := and { "||" and }
//	and     := term { "&&" term }
//	term    := "(" expr ")" | ref [ op literal ]
//	op      := == != < <= > >=
//	literal := bare word | 'quoted' | "quoted" | integer | null
//
// A ref uses the same syntax as action inputs (Text, Key, Key.Clean,
// Arr[0], Arr.Length). The .Valid suffix tests whether the key was written
// earlier in the row. Comparisons go numeric when both sides parse as
// numbers, otherwise they compare as strings. A bare ref with no operator
// is truthy when the key holds a non-empty value.

// condOperator is a comparison operator inside a condition.
type condOperator string

const (
	opEq condOperator = "=="
	opNe condOperator = "!="
	opLt condOperator = "<"
	opLe condOperator = "<="
	opGt condOperator = ">"
	opGe condOperator = ">="
)

// condExpr is a compiled condition. Compilation happens once per config
// load; evaluation runs per row and allocates nothing.
type condExpr interface {
	eval(b *bag.Bag) bool
}

type orExpr struct {
	terms []condExpr
}

func (e *orExpr) eval(b *bag.Bag) bool {
	for _, t := range e.terms {
		if t.eval(b) {
			return true
		}
	}
	return false
}

type andExpr struct {
	terms []condExpr
}

func (e *andExpr) eval(b *bag.Bag) bool {
	for _, t := range e.terms {
		if !t.eval(b) {
			return false
		}
	}
	return true
}

type comparison struct {
	ref     string
	isValid bool // ref carried a .Valid suffix
	hasOp   bool // bare ref when false
	op      condOperator
	lit     string
	isNull  bool
}

func (c *comparison) eval(b *bag.Bag) bool {
	if c.isValid {
		valid := b.Has(c.ref)
		if !c.hasOp {
			return valid
		}
		return compareValues(strconv.FormatBool(valid), c.op, c.lit)
	}
	v, ok := b.Get(c.ref)
	if !c.hasOp {
		return ok && v != ""
	}
	if c.isNull {
		switch c.op {
		case opEq:
			return !ok
		case opNe:
			return ok
		}
		return false
	}
	return compareValues(v, c.op, c.lit)
}

// compareValues compares numerically when both sides parse as numbers,
// otherwise as strings.
func compareValues(left string, op condOperator, right string) bool {
	lf, lerr := strconv.ParseFloat(strings.TrimSpace(left), 64)
	rf, rerr := strconv.ParseFloat(strings.TrimSpace(right), 64)
	if lerr == nil && rerr == nil {
		return compareFloats(lf, op, rf)
	}
	return compareStrings(left, op, right)
}

func compareFloats(left float64, op condOperator, right float64) bool {
	switch op {
	case opEq:
		return left == right
	case opNe:
		return left != right
	case opLt:
		return left < right
	case opLe:
		return left <= right
	case opGt:
		return left > right
	case opGe:
		return left >= right
	}
	return false
}

func compareStrings(left string, op condOperator, right string) bool {
	switch op {
	case opEq:
		return left == right
	case opNe:
		return left != right
	case opLt:
		return left < right
	case opLe:
		return left <= right
	case opGt:
		return left > right
	case opGe:
		return left >= right
	}
	return false
}

// compileCondition parses a condition expression.
func compileCondition(expr string) (condExpr, error) {
	toks, err := lexCondition(expr)
	if err != nil {
		return nil, err
	}
	p := &condParser{toks: toks}
	e, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, fmt.Errorf("unexpected %q after expression", tok.text)
	}
	return e, nil
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokString
	tokOp
	tokAnd
	tokOr
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
}

func isRefChar(c byte) bool {
	return c == '_' || c == '.' || c == '[' || c == ']' || c == '-' ||
		('0' <= c && c <= '9') || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

func lexCondition(expr string) ([]token, error) {
	var toks []token
	for i := 0; i < len(expr); {
		c := expr[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case c == '(':
			toks = append(toks, token{tokLParen, "("})
			i++
		case c == ')':
			toks = append(toks, token{tokRParen, ")"})
			i++
		case c == '&':
			if i+1 >= len(expr) || expr[i+1] != '&' {
				return nil, fmt.Errorf("single & at offset %d, want &&", i)
			}
			toks = append(toks, token{tokAnd, "&&"})
			i += 2
		case c == '|':
			if i+1 >= len(expr) || expr[i+1] != '|' {
				return nil, fmt.Errorf("single | at offset %d, want ||", i)
			}
			toks = append(toks, token{tokOr, "||"})
			i += 2
		case c == '=':
			if i+1 >= len(expr) || expr[i+1] != '=' {
				return nil, fmt.Errorf("single = at offset %d, want ==", i)
			}
			toks = append(toks, token{tokOp, "=="})
			i += 2
		case c == '!':
			if i+1 >= len(expr) || expr[i+1] != '=' {
				return nil, fmt.Errorf("! at offset %d, want !=", i)
			}
			toks = append(toks, token{tokOp, "!="})
			i += 2
		case c == '<' || c == '>':
			op := string(c)
			i++
			if i < len(expr) && expr[i] == '=' {
				op += "="
				i++
			}
			toks = append(toks, token{tokOp, op})
		case c == '\'' || c == '"':
			j := i + 1
			for j < len(expr) && expr[j] != c {
				j++
			}
			if j >= len(expr) {
				return nil, fmt.Errorf("unterminated string at offset %d", i)
			}
			toks = append(toks, token{tokString, expr[i+1 : j]})
			i = j + 1
		case isRefChar(c):
			j := i
			for j < len(expr) && isRefChar(expr[j]) {
				j++
			}
			toks = append(toks, token{tokIdent, expr[i:j]})
			i = j
		default:
			return nil, fmt.Errorf("unexpected character %q at offset %d", c, i)
		}
	}
	return append(toks, token{tokEOF, ""}), nil
}

type condParser struct {
	toks []token
	pos  int
}

func (p *condParser) peek() token {
	return p.toks[p.pos]
}

func (p *condParser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *condParser) parseOr() (condExpr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	terms := []condExpr{left}
	for p.peek().kind == tokOr {
		p.next()
		t, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		terms = append(terms, t)
	}
	if len(terms) == 1 {
		return left, nil
	}
	return &orExpr{terms: terms}, nil
}

func (p *condParser) parseAnd() (condExpr, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	terms := []condExpr{left}
	for p.peek().kind == tokAnd {
		p.next()
		t, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		terms = append(terms, t)
	}
	if len(terms) == 1 {
		return left, nil
	}
	return &andExpr{terms: terms}, nil
}

func (p *condParser) parseTerm() (condExpr, error) {
	switch tok := p.next(); tok.kind {
	case tokLParen:
		e, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.kind != tokRParen {
			return nil, fmt.Errorf("expected ), got %q", closing.text)
		}
		return e, nil
	case tokIdent:
		cmp := &comparison{ref: tok.text}
		if n := len(tok.text); n > 6 && strings.EqualFold(tok.text[n-6:], ".valid") {
			cmp.ref = tok.text[:n-6]
			cmp.isValid = true
		}
		if p.peek().kind != tokOp {
			return cmp, nil
		}
		cmp.hasOp = true
		cmp.op = condOperator(p.next().text)
		switch lit := p.next(); lit.kind {
		case tokIdent:
			if strings.EqualFold(lit.text, "null") {
				cmp.isNull = true
			} else {
				cmp.lit = lit.text
			}
		case tokString:
			cmp.lit = lit.text
		default:
			return nil, fmt.Errorf("expected literal after %s, got %q", cmp.op, lit.text)
		}
		return cmp, nil
	default:
		return nil, fmt.Errorf("unexpected %q", tok.text)
	}
}
