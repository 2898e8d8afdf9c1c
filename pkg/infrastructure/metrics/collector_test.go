package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNoOpCollector(t *testing.T) {
	collector := NewNoOpCollector()

	collector.IncrementCounter(StatementsTotal, "backend", "duckdb")
	collector.RecordHistogram(StatementSeconds, 1.5)
	collector.RecordGauge(AllocatedBytes, 10)

	timer := collector.StartTimer(StatementSeconds)
	time.Sleep(5 * time.Millisecond)
	assert.Greater(t, timer.Stop(), 0.0)
}
