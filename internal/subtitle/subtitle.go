// Package subtitle detects and propagates subtitle rows: the in-body
// grouping rows ("CHANEL", "Category: Damenduft") suppliers use instead of
// a proper column. A matched row is tagged, its value captured, and rows
// below inherit the captured data until the next matching subtitle row
// replaces it.
package subtitle

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sacksapp/sacks/internal/config"
	"github.com/sacksapp/sacks/internal/grid"
	"github.com/sacksapp/sacks/internal/types"
)

// defaultMinimumDataColumns is the structural minimum a non-subtitle row
// must meet when FallbackAction is "skip".
const defaultMinimumDataColumns = 2

// Processor applies one supplier's subtitle handling to a row stream.
type Processor struct {
	rules          []*compiledRule
	fallbackSkip   bool
	minDataColumns int
}

type compiledRule struct {
	cfg        config.SubtitleRule
	patterns   []*regexp.Regexp
	transforms []*regexp.Regexp
}

// NewProcessor compiles the subtitle configuration. A nil configuration
// yields a pass-through processor.
func NewProcessor(supplier string, sh *config.SubtitleHandling) (*Processor, error) {
	p := &Processor{minDataColumns: defaultMinimumDataColumns}
	if sh == nil {
		return p, nil
	}
	p.fallbackSkip = sh.FallbackAction == "skip"
	if sh.MinimumDataColumns > 0 {
		p.minDataColumns = sh.MinimumDataColumns
	}
	for _, rule := range sh.Rules {
		cr := &compiledRule{cfg: rule}
		for _, pat := range rule.ValidationPatterns {
			re, err := regexp.Compile(pat)
			if err != nil {
				return nil, &types.ValidationError{Supplier: supplier,
					Message: fmt.Sprintf("subtitle rule %q: pattern %q: %v", rule.Name, pat, err)}
			}
			cr.patterns = append(cr.patterns, re)
		}
		for _, tr := range rule.Transforms {
			pat := tr.Pattern
			if tr.IgnoreCase && !strings.HasPrefix(pat, "(?i)") {
				pat = "(?i)" + pat
			}
			re, err := regexp.Compile(pat)
			if err != nil {
				return nil, &types.ValidationError{Supplier: supplier,
					Message: fmt.Sprintf("subtitle rule %q: transform %q: %v", rule.Name, tr.Pattern, err)}
			}
			cr.transforms = append(cr.transforms, re)
		}
		p.rules = append(p.rules, cr)
	}
	return p, nil
}

// Result is the outcome of a subtitle pass.
type Result struct {
	Rows         []*grid.Row // surviving rows in input order
	SubtitleRows int
	DroppedRows  int
}

// Apply runs detection over the data rows, tags matches, accumulates and
// attaches inherited subtitle data, and drops rows per rule actions.
func (p *Processor) Apply(rows []*grid.Row) *Result {
	res := &Result{Rows: make([]*grid.Row, 0, len(rows))}
	if len(p.rules) == 0 && !p.fallbackSkip {
		res.Rows = append(res.Rows, rows...)
		return res
	}

	// active is the accumulated subtitle data inherited by following rows.
	// Copy-on-update: attached maps are never mutated afterwards.
	var active map[string]string

	for _, row := range rows {
		if !row.HasData() {
			res.Rows = append(res.Rows, row)
			continue
		}

		rule := p.match(row)
		if rule == nil {
			if p.fallbackSkip && row.NonBlankCount() < p.minDataColumns {
				res.DroppedRows++
				continue
			}
			row.SubtitleData = active
			res.Rows = append(res.Rows, row)
			continue
		}

		value := rule.capture(row)
		res.SubtitleRows++

		next := make(map[string]string, len(active)+1)
		for k, v := range active {
			next[k] = v
		}
		next[rule.cfg.CaptureKey()] = value

		row.IsSubtitleRow = true
		row.SubtitleRuleName = rule.cfg.Name
		row.SubtitleData = next

		if rule.cfg.ApplyToSubsequentRows {
			active = next
		}
		if rule.cfg.Action == "skip" {
			res.DroppedRows++
			continue
		}
		res.Rows = append(res.Rows, row)
	}
	return res
}

// match returns the first rule the row satisfies, or nil.
func (p *Processor) match(row *grid.Row) *compiledRule {
	for _, rule := range p.rules {
		if rule.matches(row) {
			return rule
		}
	}
	return nil
}

func (r *compiledRule) matches(row *grid.Row) bool {
	switch r.cfg.Method {
	case "columnCount":
		return row.NonBlankCount() == r.cfg.ExpectedColumnCount
	case "pattern":
		return r.matchesPattern(row)
	case "hybrid":
		return row.NonBlankCount() == r.cfg.ExpectedColumnCount && r.matchesPattern(row)
	}
	return false
}

func (r *compiledRule) matchesPattern(row *grid.Row) bool {
	text := row.JoinedText()
	for _, re := range r.patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// capture extracts the rule's value from a matched row: the first non-blank
// cell, run through the configured transforms.
func (r *compiledRule) capture(row *grid.Row) string {
	value := row.FirstNonBlank()
	for _, re := range r.transforms {
		value = strings.TrimSpace(re.ReplaceAllString(value, ""))
	}
	return value
}
