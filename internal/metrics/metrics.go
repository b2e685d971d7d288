// Package metrics holds the engine's prometheus counters. They live in a
// private registry and are reported through the status request, never over
// HTTP.
package metrics

import (
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "toki"

// Tick outcomes.
const (
	OutcomeRecorded = "recorded"
	OutcomePaused   = "paused"
	OutcomeExcluded = "excluded"
	OutcomeBreak    = "break"
	OutcomeNoSample = "no_sample"
	OutcomeError    = "error"
)

type Metrics struct {
	reg *prometheus.Registry

	Ticks        *prometheus.CounterVec
	SpansWritten prometheus.Counter
	StoreRetries prometheus.Counter
	SpansDropped prometheus.Counter
	RuleHits     *prometheus.CounterVec
	PendingSpans prometheus.Gauge
	Sessions     prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		Ticks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "ticks_total",
			Help:      "Engine ticks by outcome.",
		}, []string{"outcome"}),
		SpansWritten: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "spans_written_total",
			Help:      "Activity spans persisted.",
		}),
		StoreRetries: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "write_retries_total",
			Help:      "Storage writes that failed once and were retried.",
		}),
		SpansDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "pending_dropped_total",
			Help:      "Pending writes discarded because the queue was full.",
		}),
		RuleHits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "classifier",
			Name:      "rule_hits_total",
			Help:      "Classifications by source.",
		}, []string{"source"}),
		PendingSpans: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "pending_writes",
			Help:      "Writes held in memory after a storage failure.",
		}),
		Sessions: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "sessions_opened_total",
			Help:      "Work sessions opened.",
		}),
	}
}

// Registry exposes the private registry for callers that want to serve it.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Snapshot flattens every counter and gauge into name{label="v"} -> value.
func (m *Metrics) Snapshot() map[string]float64 {
	out := make(map[string]float64)
	families, err := m.reg.Gather()
	if err != nil {
		return out
	}
	for _, fam := range families {
		for _, metric := range fam.GetMetric() {
			name := fam.GetName()
			if labels := metric.GetLabel(); len(labels) > 0 {
				parts := make([]string, 0, len(labels))
				for _, l := range labels {
					parts = append(parts, l.GetName()+`="`+l.GetValue()+`"`)
				}
				sort.Strings(parts)
				name += "{" + strings.Join(parts, ",") + "}"
			}
			switch {
			case metric.GetCounter() != nil:
				out[name] = metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				out[name] = metric.GetGauge().GetValue()
			}
		}
	}
	return out
}
