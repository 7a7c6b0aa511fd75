package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/sacksapp/sacks/internal/storage"
	"github.com/sacksapp/sacks/internal/types"
)

const storageScopeName = "github.com/sacksapp/sacks/storage"

// InstrumentedStore wraps storage.Store with OTel tracing and metrics.
// Every store and transaction method gets a span and is counted in
// sacks.store.* metrics. Use WrapStore to create one; it returns the
// original store unchanged when telemetry is disabled.
type InstrumentedStore struct {
	inner        storage.Store
	tracer       trace.Tracer
	ops          metric.Int64Counter
	dur          metric.Float64Histogram
	errs         metric.Int64Counter
	catalogGauge metric.Int64Gauge
}

// WrapStore returns s decorated with OTel instrumentation.
// When telemetry is disabled, s is returned as-is with zero overhead.
func WrapStore(s storage.Store) storage.Store {
	if !Enabled() {
		return s
	}
	m := Meter(storageScopeName)
	ops, _ := m.Int64Counter("sacks.store.operations",
		metric.WithDescription("Total store operations executed"),
	)
	dur, _ := m.Float64Histogram("sacks.store.operation.duration",
		metric.WithDescription("Store operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	errs, _ := m.Int64Counter("sacks.store.errors",
		metric.WithDescription("Total store operation errors"),
	)
	catalogGauge, _ := m.Int64Gauge("sacks.catalog.entities",
		metric.WithDescription("Current catalog entity counts (snapshot from Stats)"),
	)
	return &InstrumentedStore{
		inner:        s,
		tracer:       Tracer(storageScopeName),
		ops:          ops,
		dur:          dur,
		errs:         errs,
		catalogGauge: catalogGauge,
	}
}

// op starts a span and records a metric for the named store operation.
func (s *InstrumentedStore) op(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span, time.Time) {
	all := append([]attribute.KeyValue{attribute.String("db.operation", name)}, attrs...)
	ctx, span := s.tracer.Start(ctx, "store."+name,
		trace.WithAttributes(all...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	s.ops.Add(ctx, 1, metric.WithAttributes(all...))
	return ctx, span, time.Now()
}

// done ends the span, records duration and optional error.
func (s *InstrumentedStore) done(ctx context.Context, span trace.Span, start time.Time, err error, attrs ...attribute.KeyValue) {
	ms := float64(time.Since(start).Milliseconds())
	s.dur.Record(ctx, ms, metric.WithAttributes(attrs...))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.errs.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	span.End()
}

// ── Transactions ─────────────────────────────────────────────────────────────

// RunInTransaction spans the whole transaction and hands the callback an
// instrumented Tx so each inner operation is traced as a child span.
func (s *InstrumentedStore) RunInTransaction(ctx context.Context, fn func(tx storage.Tx) error) error {
	ctx, span, t := s.op(ctx, "RunInTransaction")
	err := s.inner.RunInTransaction(ctx, func(tx storage.Tx) error {
		return fn(&instrumentedTx{inner: tx, s: s})
	})
	s.done(ctx, span, t, err)
	return err
}

// ── Statistics ───────────────────────────────────────────────────────────────

func (s *InstrumentedStore) Stats(ctx context.Context) (*types.CatalogStats, error) {
	ctx, span, t := s.op(ctx, "Stats")
	v, err := s.inner.Stats(ctx)
	s.done(ctx, span, t, err)
	if err == nil && v != nil {
		// Record current entity counts as gauge snapshots, broken down by kind.
		entityAttr := func(entity string) metric.MeasurementOption {
			return metric.WithAttributes(attribute.String("entity", entity))
		}
		s.catalogGauge.Record(ctx, v.Suppliers, entityAttr("suppliers"))
		s.catalogGauge.Record(ctx, v.Offers, entityAttr("offers"))
		s.catalogGauge.Record(ctx, v.Products, entityAttr("products"))
		s.catalogGauge.Record(ctx, v.ProductOffers, entityAttr("product_offers"))
	}
	return v, err
}

// ── Lifecycle ────────────────────────────────────────────────────────────────

func (s *InstrumentedStore) Ping(ctx context.Context) error {
	ctx, span, t := s.op(ctx, "Ping")
	err := s.inner.Ping(ctx)
	s.done(ctx, span, t, err)
	return err
}

func (s *InstrumentedStore) Close() error {
	return s.inner.Close()
}

// instrumentedTx traces the operations inside one transaction.
type instrumentedTx struct {
	inner storage.Tx
	s     *InstrumentedStore
}

// ── Suppliers ────────────────────────────────────────────────────────────────

func (t *instrumentedTx) GetOrCreateSupplier(ctx context.Context, name, description string) (*types.Supplier, error) {
	attrs := []attribute.KeyValue{attribute.String("sacks.supplier", name)}
	ctx, span, start := t.s.op(ctx, "GetOrCreateSupplier", attrs...)
	v, err := t.inner.GetOrCreateSupplier(ctx, name, description)
	t.s.done(ctx, span, start, err, attrs...)
	return v, err
}

// ── Offers ───────────────────────────────────────────────────────────────────

func (t *instrumentedTx) OfferExists(ctx context.Context, supplierID, offerName string) (bool, error) {
	attrs := []attribute.KeyValue{attribute.String("sacks.offer.name", offerName)}
	ctx, span, start := t.s.op(ctx, "OfferExists", attrs...)
	v, err := t.inner.OfferExists(ctx, supplierID, offerName)
	t.s.done(ctx, span, start, err, attrs...)
	return v, err
}

func (t *instrumentedTx) CreateOffer(ctx context.Context, offer *types.Offer) error {
	attrs := []attribute.KeyValue{attribute.String("sacks.offer.name", offer.OfferName)}
	ctx, span, start := t.s.op(ctx, "CreateOffer", attrs...)
	err := t.inner.CreateOffer(ctx, offer)
	t.s.done(ctx, span, start, err, attrs...)
	return err
}

// ── Products ─────────────────────────────────────────────────────────────────

func (t *instrumentedTx) GetProductsByEANs(ctx context.Context, eans []string) (map[string]*types.Product, error) {
	attrs := []attribute.KeyValue{attribute.Int("sacks.ean.count", len(eans))}
	ctx, span, start := t.s.op(ctx, "GetProductsByEANs", attrs...)
	v, err := t.inner.GetProductsByEANs(ctx, eans)
	if err == nil {
		span.SetAttributes(attribute.Int("sacks.result.count", len(v)))
	}
	t.s.done(ctx, span, start, err, attrs...)
	return v, err
}

func (t *instrumentedTx) InsertProducts(ctx context.Context, products []*types.Product) error {
	attrs := []attribute.KeyValue{attribute.Int("sacks.product.count", len(products))}
	ctx, span, start := t.s.op(ctx, "InsertProducts", attrs...)
	err := t.inner.InsertProducts(ctx, products)
	t.s.done(ctx, span, start, err, attrs...)
	return err
}

func (t *instrumentedTx) UpdateProductProperties(ctx context.Context, product *types.Product) error {
	attrs := []attribute.KeyValue{attribute.String("sacks.product.id", product.ID)}
	ctx, span, start := t.s.op(ctx, "UpdateProductProperties", attrs...)
	err := t.inner.UpdateProductProperties(ctx, product)
	t.s.done(ctx, span, start, err, attrs...)
	return err
}

// ── Offer lines ──────────────────────────────────────────────────────────────

func (t *instrumentedTx) InsertProductOffers(ctx context.Context, lines []*types.ProductOffer) error {
	attrs := []attribute.KeyValue{attribute.Int("sacks.line.count", len(lines))}
	ctx, span, start := t.s.op(ctx, "InsertProductOffers", attrs...)
	err := t.inner.InsertProductOffers(ctx, lines)
	t.s.done(ctx, span, start, err, attrs...)
	return err
}
