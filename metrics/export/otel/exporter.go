package otel

import (
	"context"
	"errors"
	"fmt"

	"github.com/luxesuite/luxeapi"
	"github.com/luxesuite/luxeapi/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	// ErrNilMeter is returned when no Meter is supplied.
	ErrNilMeter = errors.New("nil meter")
	// ErrNilSource is returned when no client or source is supplied.
	ErrNilSource = errors.New("nil metrics source")
)

// metricsSource is the slice of *luxeapi.Client the exporter reads.
type metricsSource interface {
	MetricsSnapshot() luxeapi.MetricsSnapshot
	EventsDropped() uint64
	EventSinkPanics() uint64
	Token(ctx context.Context) (string, bool, error)
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithAttributes attaches attrs to every observation, e.g. to tell several
// storefront clients apart inside one process.
func WithAttributes(attrs ...attribute.KeyValue) Option {
	return func(e *Exporter) {
		e.base = append(e.base, attrs...)
	}
}

// WithoutSessionGauge skips the token store lookup on each collection.
func WithoutSessionGauge() Option {
	return func(e *Exporter) {
		e.skipSession = true
	}
}

type counterBinding struct {
	id  luxeapi.MetricID
	ins metric.Int64ObservableCounter
}

// histogramBinding exports one histogram as a cumulative bucket gauge keyed
// by the le attribute, plus a sample count.
type histogramBinding struct {
	id      luxeapi.MetricID
	buckets metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
}

// Exporter publishes client counters, latency histograms and session state
// through an OpenTelemetry Meter.
type Exporter struct {
	source       metricsSource
	base         []attribute.KeyValue
	skipSession  bool
	registration metric.Registration

	counters   []counterBinding
	histograms []histogramBinding
	dropped    metric.Int64ObservableCounter
	panics     metric.Int64ObservableCounter
	session    metric.Int64ObservableGauge

	common  metric.MeasurementOption
	leAttrs []metric.MeasurementOption
}

// NewExporter binds client's metrics to meter.
func NewExporter(meter metric.Meter, client *luxeapi.Client, opts ...Option) (*Exporter, error) {
	if client == nil {
		return nil, ErrNilSource
	}
	return NewExporterFromSource(meter, client, opts...)
}

// NewExporterFromSource binds any metrics source to meter.
func NewExporterFromSource(meter metric.Meter, source metricsSource, opts ...Option) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &Exporter{source: source}
	for _, opt := range opts {
		opt(e)
	}
	e.common = metric.WithAttributeSet(attribute.NewSet(e.base...))
	for _, le := range internaldefs.HistogramBoundLabels {
		attrs := append(append([]attribute.KeyValue{}, e.base...), attribute.String("le", le))
		e.leAttrs = append(e.leAttrs, metric.WithAttributeSet(attribute.NewSet(attrs...)))
	}

	observables, err := e.instruments(meter)
	if err != nil {
		return nil, err
	}
	e.registration, err = meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	return e, nil
}

func (e *Exporter) instruments(meter metric.Meter) ([]metric.Observable, error) {
	var observables []metric.Observable

	for _, def := range internaldefs.CounterDefs {
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("create counter %s: %w", def.Name, err)
		}
		e.counters = append(e.counters, counterBinding{id: def.ID, ins: ins})
		observables = append(observables, ins)
	}

	for _, def := range internaldefs.HistogramDefs {
		buckets, err := meter.Int64ObservableGauge(def.Name+"_bucket",
			metric.WithDescription(def.Help+" Cumulative count per le bound."))
		if err != nil {
			return nil, fmt.Errorf("create bucket gauge %s: %w", def.Name, err)
		}
		count, err := meter.Int64ObservableGauge(def.Name+"_count",
			metric.WithDescription(def.Help+" Sample count."))
		if err != nil {
			return nil, fmt.Errorf("create count gauge %s: %w", def.Name, err)
		}
		e.histograms = append(e.histograms, histogramBinding{id: def.ID, buckets: buckets, count: count})
		observables = append(observables, buckets, count)
	}

	var err error
	if e.dropped, err = meter.Int64ObservableCounter(internaldefs.EventsDroppedName,
		metric.WithDescription(internaldefs.EventsDroppedHelp)); err != nil {
		return nil, fmt.Errorf("create events dropped counter: %w", err)
	}
	if e.panics, err = meter.Int64ObservableCounter(internaldefs.SinkPanicsName,
		metric.WithDescription(internaldefs.SinkPanicsHelp)); err != nil {
		return nil, fmt.Errorf("create sink panics counter: %w", err)
	}
	observables = append(observables, e.dropped, e.panics)

	if !e.skipSession {
		if e.session, err = meter.Int64ObservableGauge(internaldefs.SessionActiveName,
			metric.WithDescription(internaldefs.SessionActiveHelp)); err != nil {
			return nil, fmt.Errorf("create session gauge: %w", err)
		}
		observables = append(observables, e.session)
	}
	return observables, nil
}

// observe takes one snapshot per collection so counters and histograms
// agree with each other.
func (e *Exporter) observe(ctx context.Context, o metric.Observer) error {
	snap := e.source.MetricsSnapshot()

	for _, c := range e.counters {
		o.ObserveInt64(c.ins, int64(snap.Counters[c.id]), e.common)
	}
	for _, h := range e.histograms {
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snap.Histograms[h.id]))
		for i, n := range cumulative {
			o.ObserveInt64(h.buckets, int64(n), e.leAttrs[i])
		}
		o.ObserveInt64(h.count, int64(cumulative[len(cumulative)-1]), e.common)
	}
	o.ObserveInt64(e.dropped, int64(e.source.EventsDropped()), e.common)
	o.ObserveInt64(e.panics, int64(e.source.EventSinkPanics()), e.common)

	if e.session == nil {
		return nil
	}
	_, ok, err := e.source.Token(ctx)
	if err != nil {
		return fmt.Errorf("read session state: %w", err)
	}
	var active int64
	if ok {
		active = 1
	}
	o.ObserveInt64(e.session, active, e.common)
	return nil
}

// Close unregisters the callback. Safe on a nil Exporter.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
