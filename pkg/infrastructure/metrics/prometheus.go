package metrics

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var help = map[string]string{
	StatementsTotal:        "Statements executed against a backend.",
	StatementErrorsTotal:   "Statements that failed to execute or fetch.",
	StatementSeconds:       "Statement execution and fetch time in seconds.",
	ResultRows:             "Rows fetched per statement.",
	CoercionFallbacksTotal: "Result columns that fell back to untyped values.",
	AllocatedBytes:         "Bytes currently held by materialized results.",
}

// PrometheusCollector implements Collector on a Prometheus registerer.
// Vectors are created on first use.
type PrometheusCollector struct {
	reg        prometheus.Registerer
	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
	gauges     map[string]*prometheus.GaugeVec
}

// NewPrometheusCollector creates a collector registering on reg, or on the
// default registerer when reg is nil.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &PrometheusCollector{
		reg:        reg,
		counters:   make(map[string]*prometheus.CounterVec),
		histograms: make(map[string]*prometheus.HistogramVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
	}
}

// IncrementCounter increments a counter metric.
func (p *PrometheusCollector) IncrementCounter(name string, labels ...string) {
	labelNames, labelValues := parseLabelPairs(labels)

	p.mu.Lock()
	counter, exists := p.counters[name]
	if !exists {
		counter = prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: name, Help: helpFor(name)},
			labelNames,
		)
		counter = registerOrExisting(p.reg, counter)
		p.counters[name] = counter
	}
	p.mu.Unlock()

	counter.WithLabelValues(labelValues...).Inc()
}

// RecordHistogram records a value in a histogram metric.
func (p *PrometheusCollector) RecordHistogram(name string, value float64, labels ...string) {
	labelNames, labelValues := parseLabelPairs(labels)

	p.mu.Lock()
	histogram, exists := p.histograms[name]
	if !exists {
		buckets := prometheus.DefBuckets
		if name == ResultRows {
			buckets = prometheus.ExponentialBuckets(1, 10, 8)
		}
		histogram = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{Name: name, Help: helpFor(name), Buckets: buckets},
			labelNames,
		)
		histogram = registerOrExisting(p.reg, histogram)
		p.histograms[name] = histogram
	}
	p.mu.Unlock()

	histogram.WithLabelValues(labelValues...).Observe(value)
}

// RecordGauge records a gauge metric value.
func (p *PrometheusCollector) RecordGauge(name string, value float64, labels ...string) {
	labelNames, labelValues := parseLabelPairs(labels)

	p.mu.Lock()
	gauge, exists := p.gauges[name]
	if !exists {
		gauge = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: name, Help: helpFor(name)},
			labelNames,
		)
		gauge = registerOrExisting(p.reg, gauge)
		p.gauges[name] = gauge
	}
	p.mu.Unlock()

	gauge.WithLabelValues(labelValues...).Set(value)
}

// StartTimer starts a timer that observes the named histogram when stopped.
func (p *PrometheusCollector) StartTimer(name string, labels ...string) Timer {
	return &stopwatch{
		start: time.Now(),
		record: func(d float64) {
			p.RecordHistogram(name, d, labels...)
		},
	}
}

func helpFor(name string) string {
	if h, ok := help[name]; ok {
		return h
	}
	return "relay metric " + name
}

// registerOrExisting registers c, returning the collector already
// registered under the same descriptor when there is one. Two clients in
// one process share the default registerer.
func registerOrExisting[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// parseLabelPairs splits "key1", "value1", "key2", "value2", ... into
// names and values. A trailing odd label is ignored.
func parseLabelPairs(labels []string) ([]string, []string) {
	if len(labels)%2 != 0 {
		labels = labels[:len(labels)-1]
	}

	labelNames := make([]string, 0, len(labels)/2)
	labelValues := make([]string, 0, len(labels)/2)

	for i := 0; i < len(labels); i += 2 {
		labelNames = append(labelNames, labels[i])
		labelValues = append(labelValues, labels[i+1])
	}

	return labelNames, labelValues
}

// MetricsServer serves /metrics over HTTP.
type MetricsServer struct {
	address  string
	gatherer prometheus.Gatherer
	server   *http.Server
}

// NewMetricsServer creates a server exposing g, or the default gatherer
// when g is nil.
func NewMetricsServer(address string, g prometheus.Gatherer) *MetricsServer {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return &MetricsServer{address: address, gatherer: g}
}

// Handler returns the HTTP handler for the metrics endpoint.
func (s *MetricsServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	return mux
}

// Start serves until Stop is called. It returns nil after a clean stop.
func (s *MetricsServer) Start() error {
	s.server = &http.Server{
		Addr:              s.address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop shuts the server down.
func (s *MetricsServer) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
