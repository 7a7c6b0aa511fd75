package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/sacksapp/sacks/internal/types"
)

const pipelineScopeName = "github.com/sacksapp/sacks/ingest"

// ProcessingMetrics counts pipeline work: files by status, rows by outcome,
// catalog writes by kind. All instruments come from the global meter, so
// with telemetry disabled every Add is a no-op.
type ProcessingMetrics struct {
	files    metric.Int64Counter
	rows     metric.Int64Counter
	products metric.Int64Counter
	lines    metric.Int64Counter
	duration metric.Float64Histogram
}

// NewProcessingMetrics builds the pipeline instruments.
func NewProcessingMetrics() *ProcessingMetrics {
	m := Meter(pipelineScopeName)
	files, _ := m.Int64Counter("sacks.files.processed",
		metric.WithDescription("Files run through the pipeline, by terminal status"),
	)
	rows, _ := m.Int64Counter("sacks.rows",
		metric.WithDescription("Data rows seen, by outcome"),
	)
	products, _ := m.Int64Counter("sacks.products",
		metric.WithDescription("Catalog product writes, by kind"),
	)
	lines, _ := m.Int64Counter("sacks.offer_lines.created",
		metric.WithDescription("Offer lines inserted"),
	)
	duration, _ := m.Float64Histogram("sacks.processing.duration",
		metric.WithDescription("Whole-file processing duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	return &ProcessingMetrics{
		files:    files,
		rows:     rows,
		products: products,
		lines:    lines,
		duration: duration,
	}
}

// RecordRun publishes one run's counters. Nil receivers are fine, so callers
// can carry the metrics as an optional field.
func (p *ProcessingMetrics) RecordRun(ctx context.Context, res *types.ProcessingResult) {
	if p == nil || res == nil {
		return
	}
	status := metric.WithAttributes(attribute.String("status", string(res.Status)))
	p.files.Add(ctx, 1, status)
	p.duration.Record(ctx, float64(res.Duration.Milliseconds()), status)

	outcome := func(name string) metric.MeasurementOption {
		return metric.WithAttributes(attribute.String("outcome", name))
	}
	p.rows.Add(ctx, int64(res.RowsRead), outcome("read"))
	p.rows.Add(ctx, int64(res.RowsParsed), outcome("parsed"))
	p.rows.Add(ctx, int64(res.RowsDropped), outcome("dropped"))

	kind := func(name string) metric.MeasurementOption {
		return metric.WithAttributes(attribute.String("kind", name))
	}
	p.products.Add(ctx, int64(res.ProductsCreated), kind("created"))
	p.products.Add(ctx, int64(res.ProductsUpdated), kind("updated"))
	p.lines.Add(ctx, int64(res.OfferLinesCreated))
}
