package parser

import (
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/sacksapp/sacks/internal/bag"
	"github.com/sacksapp/sacks/internal/grid"
	"github.com/sacksapp/sacks/internal/types"
)

// RowResult carries one row's parsed state out of the engine.
type RowResult struct {
	Bag      *bag.Bag
	Warnings []string
}

// ParseRow executes every column rule against the row, then applies
// inherited subtitle data. The returned bag holds everything the row
// produced; the normalizer projects it into entities.
//
// The engine is pure CPU: no I/O, no shared state. Rows from different
// files parse concurrently without coordination because each call allocates
// a fresh bag.
func (p *Program) ParseRow(row *grid.Row) *RowResult {
	b := bag.New()
	if p.Trace {
		b.EnableTrace()
	}
	res := &RowResult{Bag: b}
	for _, col := range p.columns {
		p.runColumn(col, row, res)
	}
	p.applyBindings(b, row)
	return res
}

// runColumn executes one column's action chain. A panic inside an action is
// contained here so the row's other columns still run.
func (p *Program) runColumn(col *compiledColumn, row *grid.Row, res *RowResult) {
	opName := ""
	defer func() {
		if r := recover(); r != nil {
			err := &types.ActionError{Row: row.Index, Column: col.label, Op: opName, Err: fmt.Errorf("%v", r)}
			log.WithFields(log.Fields{
				"row":    row.Index,
				"column": col.label,
				"op":     opName,
			}).WithError(err).Warn("action failed, column abandoned for this row")
			res.Warnings = append(res.Warnings, err.Error())
		}
	}()

	b := res.Bag
	b.Set(inputText, row.CellValue(col.index))
	for _, a := range col.actions {
		opName = a.opName
		if a.cond != nil && !a.cond.eval(b) {
			b.AddTrace(bag.TraceEntry{Action: a.opName, Output: a.output, Success: false})
			continue
		}
		if p.settings.PreferFirstAssignment && a.persists && b.Has(a.output) {
			b.AddTrace(bag.TraceEntry{Action: a.opName, Output: a.output, Success: false})
			continue
		}
		in, inOK := b.Get(a.input)
		wrote := applyOutcome(a, b, in, a.op.run(b, in, inOK))
		if wrote && a.assigns && a.persists && p.settings.StopOnFirstMatchPerColumn {
			break
		}
	}
}

// applyOutcome writes an operation's result into the bag. Every value write
// to K pairs with K.Clean so the next waterfall step can read the remainder.
func applyOutcome(a *compiledAction, b *bag.Bag, in string, out outcome) bool {
	switch {
	case out.cleared:
		b.Delete(a.output)
		b.Delete(a.output + ".Clean")
		b.AddTrace(bag.TraceEntry{Action: a.opName, Input: in, Output: a.output, Success: true})
		return false
	case !out.ok:
		b.AddTrace(bag.TraceEntry{Action: a.opName, Input: in, Matched: out.matched, Success: false})
		return false
	case out.isArray:
		b.SetAll(a.output, out.values)
		b.Set(a.output+".Clean", out.clean)
		b.AddTrace(bag.TraceEntry{Action: a.opName, Input: in,
			Output: strings.Join(out.values, "|"), Matched: out.matched, Success: true})
		return true
	default:
		b.Set(a.output, out.value)
		b.Set(a.output+".Clean", out.clean)
		b.AddTrace(bag.TraceEntry{Action: a.opName, Input: in,
			Output: out.value, Matched: out.matched, Success: true})
		return true
	}
}

// applyBindings copies inherited subtitle values into the bag after the
// pipeline ran. Overwrite decides whether a value the pipeline already
// produced is replaced.
func (p *Program) applyBindings(b *bag.Bag, row *grid.Row) {
	if len(p.bindings) == 0 || len(row.SubtitleData) == 0 {
		return
	}
	for _, bind := range p.bindings {
		val, ok := row.SubtitleData[bind.source]
		if !ok {
			val, ok = row.SubtitleData[bind.fallback]
		}
		if !ok || val == "" {
			continue
		}
		if bind.table != nil {
			if mapped, found := bind.table.Lookup(val); found {
				val = mapped
			}
		}
		if !bind.overwrite && b.Has(bind.target) {
			continue
		}
		b.Set(bind.target, val)
		b.Set(bind.target+".Clean", val)
	}
}
