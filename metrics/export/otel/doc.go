// Package otel binds authcore metrics to OpenTelemetry observable
// instruments.
//
// [NewOTelExporter] registers an Int64ObservableCounter per counter, an
// Int64ObservableGauge per latency bucket, a Float64ObservableGauge for the
// refresh shared ratio and an Int64ObservableGauge for the session phase,
// observed once per phase with a "phase" attribute. A single callback reads
// the core on each collection cycle. Callers own the MeterProvider.
package otel
