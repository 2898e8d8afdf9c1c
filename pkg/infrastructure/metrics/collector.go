// Package metrics records statement execution metrics.
package metrics

import (
	"time"
)

// Metric names recorded by the relay client.
const (
	StatementsTotal        = "relay_statements_total"
	StatementErrorsTotal   = "relay_statement_errors_total"
	StatementSeconds       = "relay_statement_seconds"
	ResultRows             = "relay_result_rows"
	CoercionFallbacksTotal = "relay_coercion_fallbacks_total"
	AllocatedBytes         = "relay_allocated_bytes"
)

// Collector defines the interface for collecting metrics.
type Collector interface {
	// IncrementCounter increments a counter metric.
	IncrementCounter(name string, labels ...string)

	// RecordHistogram records a value in a histogram metric.
	RecordHistogram(name string, value float64, labels ...string)

	// RecordGauge records a gauge metric value.
	RecordGauge(name string, value float64, labels ...string)

	// StartTimer starts a timer whose Stop records the elapsed seconds in
	// the named histogram.
	StartTimer(name string, labels ...string) Timer
}

// Timer represents a timing measurement.
type Timer interface {
	// Stop stops the timer and returns the duration in seconds.
	Stop() float64
}

// NoOpCollector discards everything.
type NoOpCollector struct{}

// NewNoOpCollector creates a new no-op collector.
func NewNoOpCollector() Collector {
	return &NoOpCollector{}
}

func (n *NoOpCollector) IncrementCounter(name string, labels ...string)               {}
func (n *NoOpCollector) RecordHistogram(name string, value float64, labels ...string) {}
func (n *NoOpCollector) RecordGauge(name string, value float64, labels ...string)     {}

// StartTimer returns a timer that only measures.
func (n *NoOpCollector) StartTimer(name string, labels ...string) Timer {
	return &stopwatch{start: time.Now()}
}

type stopwatch struct {
	start  time.Time
	record func(float64)
}

func (t *stopwatch) Stop() float64 {
	d := time.Since(t.start).Seconds()
	if t.record != nil {
		t.record(d)
	}
	return d
}
