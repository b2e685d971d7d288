package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSnapshot(t *testing.T) {
	m := New()
	m.Ticks.WithLabelValues(OutcomeRecorded).Add(3)
	m.Ticks.WithLabelValues(OutcomePaused).Inc()
	m.SpansWritten.Inc()
	m.PendingSpans.Set(2)

	snap := m.Snapshot()
	assert.Equal(t, 3.0, snap[`toki_engine_ticks_total{outcome="recorded"}`])
	assert.Equal(t, 1.0, snap[`toki_engine_ticks_total{outcome="paused"}`])
	assert.Equal(t, 1.0, snap["toki_store_spans_written_total"])
	assert.Equal(t, 2.0, snap["toki_store_pending_writes"])
	assert.Equal(t, 0.0, snap["toki_store_write_retries_total"])
}

func TestRegistriesAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.SpansWritten.Inc()
	assert.Equal(t, 0.0, b.Snapshot()["toki_store_spans_written_total"])
}
