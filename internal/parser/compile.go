// Package parser implements the per-cell action pipeline: the interpreted
// waterfall of Find/Map/Split/Switch actions that a supplier's column rules
// run against each data row's property bag.
//
// A supplier's rules compile once, against a lookup set, into a Program.
// Compilation validates every parameter, pattern, and condition so that row
// execution never sees a malformed action: configuration mistakes surface
// as ValidationError at load time, not as per-row noise.
package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sacksapp/sacks/internal/config"
	"github.com/sacksapp/sacks/internal/lookup"
	"github.com/sacksapp/sacks/internal/types"
)

// inputText is the implicit bag key every column seeds with its cell value.
const inputText = "Text"

// Program is a supplier's compiled parser. It is immutable after Compile
// and safe to share across goroutines; per-row state lives in the bag.
type Program struct {
	// Trace turns on per-action trace recording in each row's bag.
	Trace bool

	supplier *config.SupplierConfig
	settings config.Settings
	columns  []*compiledColumn
	bindings []*subtitleBinding
}

type compiledColumn struct {
	label   string // column as configured, for diagnostics
	index   int    // 0-based cell index
	actions []*compiledAction
}

type compiledAction struct {
	op       operation
	opName   string
	input    string
	output   string
	cond     condExpr
	assigns  bool
	persists bool
}

// subtitleBinding is a compiled subtitle assignment: which inherited key
// feeds which bag property, optionally through a lookup table.
type subtitleBinding struct {
	source    string
	fallback  string // owning rule's capture key
	target    string
	table     *lookup.Table
	overwrite bool
}

type failFunc func(format string, args ...any) error

// persisted reports whether a bag key survives normalization into entities.
func persisted(key string) bool {
	lk := strings.ToLower(key)
	return strings.HasPrefix(lk, "product.") || strings.HasPrefix(lk, "offer.")
}

// Compile builds the executable program for one supplier against the
// effective lookup set.
func Compile(sup *config.SupplierConfig, lookups *lookup.Set) (*Program, error) {
	p := &Program{supplier: sup, settings: sup.ParserConfig.Settings}
	for i := range sup.ParserConfig.ColumnRules {
		col, err := compileColumn(sup, &sup.ParserConfig.ColumnRules[i], lookups)
		if err != nil {
			return nil, err
		}
		p.columns = append(p.columns, col)
	}
	if sup.SubtitleHandling != nil {
		for _, rule := range sup.SubtitleHandling.Rules {
			for _, a := range rule.Assignments {
				b, err := compileBinding(sup, rule, a, lookups)
				if err != nil {
					return nil, err
				}
				p.bindings = append(p.bindings, b)
			}
		}
	}
	return p, nil
}

// CompileAll compiles every supplier in the document. It is installed as
// the configuration store's validation hook so a reload with a rule the
// engine cannot execute is rejected wholesale.
func CompileAll(doc *config.Document) error {
	for _, sup := range doc.Suppliers {
		if _, err := Compile(sup, doc.LookupsFor(sup)); err != nil {
			return err
		}
	}
	return nil
}

func compileColumn(sup *config.SupplierConfig, rule *config.ColumnRule, lookups *lookup.Set) (*compiledColumn, error) {
	idx, err := parseColumn(rule.Column)
	if err != nil {
		return nil, &types.ValidationError{Supplier: sup.Name, Column: rule.Column, Message: err.Error()}
	}
	col := &compiledColumn{label: rule.Column, index: idx}
	for i := range rule.Actions {
		a, err := compileAction(sup, rule.Column, i, &rule.Actions[i], lookups)
		if err != nil {
			return nil, err
		}
		col.actions = append(col.actions, a)
	}
	return col, nil
}

func compileAction(sup *config.SupplierConfig, column string, i int, cfg *config.ActionConfig, lookups *lookup.Set) (*compiledAction, error) {
	fail := func(format string, args ...any) error {
		return &types.ValidationError{
			Supplier: sup.Name,
			Column:   column,
			Action:   fmt.Sprintf("%s #%d", cfg.Op, i+1),
			Message:  fmt.Sprintf(format, args...),
		}
	}

	a := &compiledAction{
		opName:  cfg.Op,
		input:   cfg.Input,
		output:  cfg.Output,
		assigns: cfg.Assigns(),
	}
	if a.input == "" {
		a.input = inputText
	}
	if a.output == "" {
		return nil, fail("Output is required")
	}
	a.persists = persisted(a.output)

	if cfg.Condition != "" {
		cond, err := compileCondition(cfg.Condition)
		if err != nil {
			return nil, fail("condition %q: %v", cfg.Condition, err)
		}
		a.cond = cond
	}

	var err error
	switch strings.ToLower(cfg.Op) {
	case "assign":
		a.op = assignOp{}
	case "find":
		a.op, err = compileFind(cfg, lookups, fail)
	case "map":
		a.op, err = compileMap(cfg, lookups, fail)
	case "split":
		a.op, err = compileSplit(cfg, fail)
	case "switch":
		a.op, err = compileSwitch(cfg, fail)
	case "convert":
		a.op, err = compileConvert(cfg, fail)
	case "concat":
		a.op, err = compileConcat(cfg, fail)
	case "caseformat":
		a.op, err = compileCaseFormat(cfg, sup.ParserConfig.Settings.DefaultCulture, fail)
	case "clear":
		a.op = clearOp{}
	case "":
		return nil, fail("Op is required")
	default:
		return nil, fail("unknown op %q", cfg.Op)
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// dotnetGroupRe matches .NET-style named groups. Lookbehind syntax ((?<=
// and (?<!) is deliberately not matched: Go has no lookbehind and those
// patterns must fail compilation instead of silently changing meaning.
var dotnetGroupRe = regexp.MustCompile(`\(\?<([A-Za-z_][A-Za-z0-9_]*)>`)

func rewriteNamedGroups(pattern string) string {
	return dotnetGroupRe.ReplaceAllString(pattern, `(?P<$1>`)
}

// groupPriority orders the well-known capture names when a pattern defines
// several named groups: the most value-like wins.
var groupPriority = []string{"value", "num", "size", "content"}

// selectGroup picks the submatch a Find emits: the only named group when
// there is exactly one, else the highest-priority well-known name, else the
// whole match.
func selectGroup(re *regexp.Regexp) int {
	names := re.SubexpNames()
	lone, count := 0, 0
	for i, n := range names {
		if i == 0 || n == "" {
			continue
		}
		count++
		lone = i
	}
	if count == 1 {
		return lone
	}
	for _, want := range groupPriority {
		for i, n := range names {
			if i > 0 && strings.EqualFold(n, want) {
				return i
			}
		}
	}
	return 0
}

func compileFind(cfg *config.ActionConfig, lookups *lookup.Set, fail failFunc) (operation, error) {
	pattern, ok := cfg.Param("Pattern")
	if !ok || pattern == "" {
		return nil, fail("Find needs a Pattern parameter")
	}
	mode, ignoreCase, remove, err := parseFindOptions(cfg)
	if err != nil {
		return nil, fail("%v", err)
	}
	op := &findOp{mode: mode, remove: remove}

	if strings.HasPrefix(strings.ToLower(pattern), "lookup:") {
		name := strings.TrimSpace(pattern[len("lookup:"):])
		table, ok := lookups.Table(name)
		if !ok {
			return nil, fail("unknown lookup table %q", name)
		}
		op.table = table
		return op, nil
	}

	expr := rewriteNamedGroups(pattern)
	if ignoreCase && !strings.Contains(expr, "(?i)") {
		expr = "(?i)" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fail("pattern %q: %v", pattern, err)
	}
	op.re = re
	op.group = selectGroup(re)
	return op, nil
}

func parseFindOptions(cfg *config.ActionConfig) (mode findMode, ignoreCase, remove bool, err error) {
	raw, _ := cfg.Param("Options")
	for _, opt := range strings.Split(raw, ",") {
		switch strings.ToLower(strings.TrimSpace(opt)) {
		case "", "first":
			// first is the default
		case "last":
			mode = findLast
		case "all":
			mode = findAll
		case "ignorecase":
			ignoreCase = true
		case "remove":
			remove = true
		default:
			return 0, false, false, fmt.Errorf("unknown option %q", strings.TrimSpace(opt))
		}
	}
	return mode, ignoreCase, remove, nil
}

func compileMap(cfg *config.ActionConfig, lookups *lookup.Set, fail failFunc) (operation, error) {
	name, ok := cfg.Param("Table")
	if !ok || name == "" {
		return nil, fail("Map needs a Table parameter")
	}
	table, ok := lookups.Table(name)
	if !ok {
		return nil, fail("unknown lookup table %q", name)
	}
	return &mapOp{table: table}, nil
}

func compileSplit(cfg *config.ActionConfig, fail failFunc) (operation, error) {
	delim, ok := cfg.Param("Delimiter")
	if !ok || delim == "" {
		return nil, fail("Split needs a Delimiter parameter")
	}
	return &splitOp{delimiter: delim}, nil
}

func compileSwitch(cfg *config.ActionConfig, fail failFunc) (operation, error) {
	op := &switchOp{}
	for _, name := range cfg.ParamNames() {
		if len(name) > 5 && strings.EqualFold(name[:5], "when:") {
			v, _ := cfg.Parameters.Get(name)
			op.branches = append(op.branches, switchBranch{match: name[5:], value: v})
		}
	}
	if v, ok := cfg.Param("Default"); ok {
		op.def = v
		op.hasDefault = true
	}
	if v, ok := cfg.Param("IgnoreCase"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fail("IgnoreCase %q is not a boolean", v)
		}
		op.ignoreCase = b
	}
	if len(op.branches) == 0 && !op.hasDefault {
		return nil, fail("Switch needs at least one When:<value> parameter or a Default")
	}
	return op, nil
}

func compileConvert(cfg *config.ActionConfig, fail failFunc) (operation, error) {
	raw, ok := cfg.Param("Factor")
	if !ok {
		return nil, fail("Convert needs a Factor parameter")
	}
	factor, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, fail("Factor %q is not numeric", raw)
	}
	return &convertOp{factor: factor}, nil
}

func compileConcat(cfg *config.ActionConfig, fail failFunc) (operation, error) {
	raw, ok := cfg.Param("Keys")
	if !ok {
		return nil, fail("Concat needs a Keys parameter")
	}
	var keys []string
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return nil, fail("Concat Keys %q lists no keys", raw)
	}
	sep, _ := cfg.Param("Separator")
	return &concatOp{keys: keys, separator: sep}, nil
}

func compileCaseFormat(cfg *config.ActionConfig, defaultCulture string, fail failFunc) (operation, error) {
	mode, ok := cfg.Param("Mode")
	if !ok {
		return nil, fail("CaseFormat needs a Mode parameter")
	}
	culture, ok := cfg.Param("Culture")
	if !ok {
		culture = defaultCulture
	}
	tag := language.Und
	if culture != "" {
		var err error
		if tag, err = language.Parse(culture); err != nil {
			return nil, fail("culture %q: %v", culture, err)
		}
	}
	var caser cases.Caser
	switch strings.ToLower(mode) {
	case "title":
		caser = cases.Title(tag)
	case "upper":
		caser = cases.Upper(tag)
	case "lower":
		caser = cases.Lower(tag)
	default:
		return nil, fail("unknown mode %q (want title, upper, or lower)", mode)
	}
	return &caseFormatOp{caser: caser}, nil
}

func compileBinding(sup *config.SupplierConfig, rule config.SubtitleRule, a config.SubtitleAssignment, lookups *lookup.Set) (*subtitleBinding, error) {
	if a.TargetProperty == "" {
		return nil, &types.ValidationError{Supplier: sup.Name,
			Message: fmt.Sprintf("subtitle rule %q: assignment has empty TargetProperty", rule.Name)}
	}
	b := &subtitleBinding{
		source:    a.SourceKey,
		fallback:  rule.CaptureKey(),
		target:    a.TargetProperty,
		overwrite: a.Overwrite,
	}
	if b.source == "" {
		b.source = rule.CaptureKey()
	}
	if a.Lookup != "" {
		table, ok := lookups.Table(a.Lookup)
		if !ok {
			return nil, &types.ValidationError{Supplier: sup.Name,
				Message: fmt.Sprintf("subtitle rule %q: unknown lookup table %q", rule.Name, a.Lookup)}
		}
		b.table = table
	}
	return b, nil
}

// parseColumn resolves a column reference: a spreadsheet letter ("A", "AB")
// or a 0-based index ("0", "27").
func parseColumn(col string) (int, error) {
	s := strings.TrimSpace(col)
	if s == "" {
		return 0, fmt.Errorf("empty column")
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("column index %d is negative", n)
		}
		return n, nil
	}
	n := 0
	for _, r := range strings.ToUpper(s) {
		if r < 'A' || r > 'Z' {
			return 0, fmt.Errorf("column %q is neither letters nor a 0-based index", col)
		}
		n = n*26 + int(r-'A') + 1
	}
	return n - 1, nil
}
