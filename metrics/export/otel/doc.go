// Package otel binds adminkit counters to OpenTelemetry observable instruments.
//
// [NewOTelExporter] registers one Int64ObservableCounter per counter and one
// Int64ObservableGauge per histogram bucket. A single callback reads the
// client snapshot on each collection. Callers own the MeterProvider.
package otel
