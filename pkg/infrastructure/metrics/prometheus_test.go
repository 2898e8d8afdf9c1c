package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusCollector_IncrementCounter(t *testing.T) {
	collector := NewPrometheusCollector(prometheus.NewRegistry())
	collector.IncrementCounter(StatementsTotal, "backend", "duckdb")
	collector.IncrementCounter(StatementsTotal, "backend", "duckdb")

	counter := collector.counters[StatementsTotal]
	require.NotNil(t, counter)
	assert.Equal(t, float64(2), testutil.ToFloat64(counter.WithLabelValues("duckdb")))
}

func TestPrometheusCollector_RecordHistogram(t *testing.T) {
	collector := NewPrometheusCollector(prometheus.NewRegistry())
	collector.RecordHistogram(ResultRows, 42, "backend", "sqlite")

	histogram := collector.histograms[ResultRows]
	require.NotNil(t, histogram)
	assert.Equal(t, 1, testutil.CollectAndCount(histogram))
}

func TestPrometheusCollector_StartTimer(t *testing.T) {
	collector := NewPrometheusCollector(prometheus.NewRegistry())
	timer := collector.StartTimer(StatementSeconds, "backend", "duckdb")
	assert.GreaterOrEqual(t, timer.Stop(), 0.0)

	histogram := collector.histograms[StatementSeconds]
	require.NotNil(t, histogram)
	assert.Equal(t, 1, testutil.CollectAndCount(histogram))
}

func TestPrometheusCollector_RecordGauge(t *testing.T) {
	collector := NewPrometheusCollector(prometheus.NewRegistry())
	collector.RecordGauge(AllocatedBytes, 4096)

	gauge := collector.gauges[AllocatedBytes]
	require.NotNil(t, gauge)
	assert.Equal(t, 4096.0, testutil.ToFloat64(gauge.WithLabelValues()))
}

func TestPrometheusCollector_SharedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := NewPrometheusCollector(reg)
	b := NewPrometheusCollector(reg)

	a.IncrementCounter(StatementErrorsTotal, "backend", "duckdb")
	b.IncrementCounter(StatementErrorsTotal, "backend", "duckdb")

	assert.Equal(t, float64(2), testutil.ToFloat64(a.counters[StatementErrorsTotal].WithLabelValues("duckdb")))
	assert.Same(t, a.counters[StatementErrorsTotal], b.counters[StatementErrorsTotal])
}

func TestPrometheusCollector_Help(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := NewPrometheusCollector(reg)
	collector.IncrementCounter(CoercionFallbacksTotal, "backend", "duckdb")

	expected := `
# HELP relay_coercion_fallbacks_total Result columns that fell back to untyped values.
# TYPE relay_coercion_fallbacks_total counter
relay_coercion_fallbacks_total{backend="duckdb"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), CoercionFallbacksTotal))
}

func TestParseLabelPairs(t *testing.T) {
	tests := []struct {
		name       string
		labels     []string
		wantNames  []string
		wantValues []string
	}{
		{name: "empty", labels: []string{}, wantNames: []string{}, wantValues: []string{}},
		{name: "pair", labels: []string{"backend", "duckdb"}, wantNames: []string{"backend"}, wantValues: []string{"duckdb"}},
		{
			name:       "odd count",
			labels:     []string{"backend", "duckdb", "status"},
			wantNames:  []string{"backend"},
			wantValues: []string{"duckdb"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			names, values := parseLabelPairs(tt.labels)
			assert.Equal(t, tt.wantNames, names)
			assert.Equal(t, tt.wantValues, values)
		})
	}
}

func TestMetricsServer_Handler(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewPrometheusCollector(reg).IncrementCounter(StatementsTotal, "backend", "sqlite")

	srv := NewMetricsServer(":0", reg)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `relay_statements_total{backend="sqlite"} 1`)
}
