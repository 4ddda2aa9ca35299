package otel

import (
	"context"
	"errors"
	"fmt"

	"github.com/finflow/authcore"
	"github.com/finflow/authcore/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	// ErrNilMeter is returned when no meter is given.
	ErrNilMeter = errors.New("nil meter")
	// ErrNilSource is returned when no core or source is given.
	ErrNilSource = errors.New("nil metrics source")
)

type latencyInstruments struct {
	buckets [8]metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
}

// OTelExporter publishes authcore metrics through an OpenTelemetry meter.
type OTelExporter struct {
	source       internaldefs.Source
	registration metric.Registration

	counters    []metric.Int64ObservableCounter
	latency     []latencyInstruments
	logDropped  metric.Int64ObservableCounter
	sharedRatio metric.Float64ObservableGauge
	phase       metric.Int64ObservableGauge
	phaseAttrs  []metric.ObserveOption
}

// NewOTelExporter registers instruments on meter that read from core.
func NewOTelExporter(meter metric.Meter, core *authcore.Core) (*OTelExporter, error) {
	if core == nil {
		return nil, ErrNilSource
	}
	return NewOTelExporterFromSource(meter, core)
}

// NewOTelExporterFromSource registers instruments reading from source.
func NewOTelExporterFromSource(meter metric.Meter, source internaldefs.Source) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &OTelExporter{source: source}
	var observables []metric.Observable
	var err error

	for _, def := range internaldefs.CounterDefs {
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("create counter %s: %w", def.Name, err)
		}
		e.counters = append(e.counters, ins)
		observables = append(observables, ins)
	}

	for _, def := range internaldefs.HistogramDefs {
		var li latencyInstruments
		for i, suffix := range internaldefs.HistogramBoundSuffix {
			name := def.Name + "_bucket_le_" + suffix
			if li.buckets[i], err = meter.Int64ObservableGauge(name, metric.WithDescription("Cumulative histogram bucket count.")); err != nil {
				return nil, fmt.Errorf("create bucket gauge %s: %w", name, err)
			}
			observables = append(observables, li.buckets[i])
		}
		if li.count, err = meter.Int64ObservableGauge(def.Name+"_count", metric.WithDescription("Histogram total sample count.")); err != nil {
			return nil, fmt.Errorf("create count gauge %s_count: %w", def.Name, err)
		}
		observables = append(observables, li.count)
		e.latency = append(e.latency, li)
	}

	if e.logDropped, err = meter.Int64ObservableCounter(internaldefs.LogDroppedName, metric.WithDescription(internaldefs.LogDroppedHelp)); err != nil {
		return nil, fmt.Errorf("create counter %s: %w", internaldefs.LogDroppedName, err)
	}
	if e.sharedRatio, err = meter.Float64ObservableGauge(internaldefs.RefreshSharedRatioName, metric.WithDescription(internaldefs.RefreshSharedRatioHelp)); err != nil {
		return nil, fmt.Errorf("create gauge %s: %w", internaldefs.RefreshSharedRatioName, err)
	}
	if e.phase, err = meter.Int64ObservableGauge(internaldefs.SessionPhaseName, metric.WithDescription(internaldefs.SessionPhaseHelp)); err != nil {
		return nil, fmt.Errorf("create gauge %s: %w", internaldefs.SessionPhaseName, err)
	}
	observables = append(observables, e.logDropped, e.sharedRatio, e.phase)

	for _, phase := range internaldefs.SessionPhases {
		e.phaseAttrs = append(e.phaseAttrs, metric.WithAttributes(attribute.String(internaldefs.SessionPhaseKey, phase.String())))
	}

	if e.registration, err = meter.RegisterCallback(e.observe, observables...); err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	return e, nil
}

func (e *OTelExporter) observe(_ context.Context, o metric.Observer) error {
	s, _ := internaldefs.Collect(e.source)
	for i, ins := range e.counters {
		o.ObserveInt64(ins, int64(s.Counters[i]))
	}
	for i, li := range e.latency {
		buckets := s.Histograms[i]
		for j := range buckets {
			o.ObserveInt64(li.buckets[j], int64(buckets[j]))
		}
		o.ObserveInt64(li.count, int64(buckets[len(buckets)-1]))
	}
	o.ObserveInt64(e.logDropped, int64(s.LogDropped))
	o.ObserveFloat64(e.sharedRatio, s.RefreshSharedRatio)
	for i, phase := range internaldefs.SessionPhases {
		o.ObserveInt64(e.phase, internaldefs.PhaseValue(s.Phase, phase), e.phaseAttrs[i])
	}
	return nil
}

// Close unregisters the collection callback.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
