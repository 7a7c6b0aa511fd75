package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sacksapp/sacks/internal/config"
	"github.com/sacksapp/sacks/internal/grid"
	"github.com/sacksapp/sacks/internal/normalize"
	"github.com/sacksapp/sacks/internal/parser"
	"github.com/sacksapp/sacks/internal/storage"
	"github.com/sacksapp/sacks/internal/subtitle"
	"github.com/sacksapp/sacks/internal/telemetry"
	"github.com/sacksapp/sacks/internal/types"
)

// State names one stop on a file's way through the pipeline. Runs walk the
// states in order; any failure jumps to StateFailed, which is terminal.
type State string

// Pipeline states in traversal order.
const (
	StateValidated        State = "validated"
	StateSupplierResolved State = "supplier_resolved"
	StateGridRead         State = "grid_read"
	StateSubtitlesApplied State = "subtitles_applied"
	StateParsed           State = "parsed"
	StateUpserted         State = "upserted"
	StateCommitted        State = "committed"
	StateFailed           State = "failed"
)

// ConfigSource yields the configuration view a run works from. A run takes
// one snapshot at entry and keeps it to commit, so a hot reload mid-file
// never mixes rule versions.
type ConfigSource interface {
	Snapshot() *config.Document
}

// Processor turns supplier files into catalog offers. It is stateless across
// runs and safe for concurrent ProcessFile calls; each file gets its own
// transaction.
type Processor struct {
	Config ConfigSource
	Store  storage.Store

	// Trace turns on per-action trace recording in every row bag. Meant for
	// debugging a supplier's rules, not for production runs.
	Trace bool

	// Metrics, when set, receives one RecordRun per processed file.
	Metrics *telemetry.ProcessingMetrics
}

// New returns a processor reading configuration from source and writing
// through store.
func New(source ConfigSource, store storage.Store) *Processor {
	return &Processor{Config: source, Store: store}
}

// ProcessFile runs one file through the pipeline. The returned result is
// never nil: it carries the counters, warnings, and terminal status even
// when err is non-nil. err is nil exactly when the status is StatusOk.
func (p *Processor) ProcessFile(ctx context.Context, path string) (*types.ProcessingResult, error) {
	started := time.Now()
	res := &types.ProcessingResult{
		RunID:     types.NewID(),
		FilePath:  path,
		StartedAt: started.UTC(),
	}
	r := &run{
		proc: p,
		res:  res,
		log:  log.WithFields(log.Fields{"run_id": res.RunID, "file": filepath.Base(path)}),
	}
	r.log.Debug("processing started")

	err := r.execute(ctx, path)
	res.Duration = time.Since(started)

	switch {
	case err == nil:
		res.Status = types.StatusOk
	case types.IsDuplicateOffer(err):
		res.Status = types.StatusDuplicateOffer
		var dup *types.DuplicateOfferError
		if errors.As(err, &dup) {
			res.OfferName = dup.OfferName
		}
		res.Errors = append(res.Errors, err.Error())
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		res.Status = types.StatusCanceled
		res.Errors = append(res.Errors, err.Error())
	default:
		res.Status = types.StatusFailed
		res.Errors = append(res.Errors, err.Error())
	}

	p.Metrics.RecordRun(ctx, res)

	fields := log.Fields{
		"status":   string(res.Status),
		"state":    string(r.state),
		"rows":     res.RowsRead,
		"parsed":   res.RowsParsed,
		"created":  res.ProductsCreated,
		"updated":  res.ProductsUpdated,
		"lines":    res.OfferLinesCreated,
		"warnings": len(res.Warnings),
		"duration": res.Duration.Round(time.Millisecond).String(),
	}
	if err != nil {
		r.log.WithFields(fields).WithError(err).Warn("processing finished")
	} else {
		r.log.WithFields(fields).Info("processing finished")
	}
	return res, err
}

// run is the mutable state of one ProcessFile call.
type run struct {
	proc  *Processor
	res   *types.ProcessingResult
	log   *log.Entry
	state State
}

// enter records a state transition.
func (r *run) enter(s State) {
	r.state = s
	r.log.WithField("state", string(s)).Debug("pipeline state")
}

// fail marks the run terminal and passes err through.
func (r *run) fail(err error) error {
	r.enter(StateFailed)
	return err
}

func (r *run) execute(ctx context.Context, path string) error {
	if err := validatePath(path); err != nil {
		return r.fail(err)
	}
	r.enter(StateValidated)

	doc := r.proc.Config.Snapshot()
	sup, err := MatchSupplier(doc, path)
	if err != nil {
		return r.fail(err)
	}
	r.res.Supplier = sup.Name
	r.log = r.log.WithField("supplier", sup.Name)
	r.enter(StateSupplierResolved)

	// Both compiles repeat checks the config store ran at load; they can
	// only fail if the snapshot predates a validation gap, and then the
	// run must die here rather than misparse rows.
	program, err := parser.Compile(sup, doc.LookupsFor(sup))
	if err != nil {
		return r.fail(err)
	}
	program.Trace = r.proc.Trace
	subs, err := subtitle.NewProcessor(sup.Name, sup.SubtitleHandling)
	if err != nil {
		return r.fail(err)
	}

	reader, err := grid.ForPath(path)
	if err != nil {
		return r.fail(err)
	}
	data, err := reader.Read(ctx, path)
	if err != nil {
		return r.fail(err)
	}
	r.enter(StateGridRead)

	subResult := subs.Apply(dataRows(data, sup.FileStructure.DataStartRowIndex))
	r.enter(StateSubtitlesApplied)

	normalized, err := r.parseRows(ctx, sup, program, subResult.Rows)
	if err != nil {
		return r.fail(err)
	}
	r.enter(StateParsed)

	upres, err := UpsertOffer(ctx, r.proc.Store, sup, filepath.Base(path), normalized)
	if err != nil {
		return r.fail(err)
	}
	r.enter(StateUpserted)

	r.res.OfferName = upres.Offer.OfferName
	r.res.ProductsCreated = upres.ProductsCreated
	r.res.ProductsUpdated = upres.ProductsUpdated
	r.res.OfferLinesCreated = upres.OfferLines
	r.enter(StateCommitted)
	return nil
}

// parseRows feeds every surviving data row through the action pipeline and
// the normalizer. Cancellation is checked at row boundaries; the engine
// itself never blocks.
func (r *run) parseRows(ctx context.Context, sup *config.SupplierConfig, program *parser.Program, rows []*grid.Row) ([]*normalize.Row, error) {
	norm := normalize.New(sup.Currency)
	out := make([]*normalize.Row, 0, len(rows))
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		// subtitle rows are structure, not data: they never yield products
		if row.IsSubtitleRow || !row.HasData() {
			continue
		}
		r.res.RowsRead++

		parsed := program.ParseRow(row)
		r.res.Warnings = append(r.res.Warnings, parsed.Warnings...)

		nrow, warnings := norm.Row(row.Index, parsed.Bag)
		r.res.Warnings = append(r.res.Warnings, warnings...)
		if nrow == nil {
			r.res.RowsDropped++
			continue
		}
		r.res.RowsParsed++
		out = append(out, nrow)
	}
	return out, nil
}

// dataRows slices off everything above the configured data start row.
func dataRows(data *grid.FileData, start int) []*grid.Row {
	if start <= 0 {
		return data.Rows
	}
	if start >= len(data.Rows) {
		return nil
	}
	return data.Rows[start:]
}

// validatePath enforces the processing API's contract: an absolute path to
// an existing regular file with an allow-listed extension. Violations are
// ArgumentErrors, raised before a single byte is read or written.
func validatePath(path string) error {
	if !filepath.IsAbs(path) {
		return &types.ArgumentError{Name: "path", Value: path, Message: "path must be absolute"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &types.ArgumentError{Name: "path", Value: path, Message: "file does not exist"}
		}
		return &types.ArgumentError{Name: "path", Value: path, Message: err.Error()}
	}
	if info.IsDir() {
		return &types.ArgumentError{Name: "path", Value: path, Message: "path is a directory"}
	}
	if !grid.SupportedExtension(path) {
		return &types.ArgumentError{Name: "path", Value: path,
			Message: fmt.Sprintf("unsupported extension %q", filepath.Ext(path))}
	}
	return nil
}
