// Package metrics exposes prometheus counters for the ingestion pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	EventsDetected *prometheus.CounterVec
	EventsStored   *prometheus.CounterVec
	EventsSkipped  *prometheus.CounterVec
	WriteErrors    prometheus.Counter
}

// New registers the pipeline counters on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EventsDetected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lpr_events_detected_total",
			Help: "License plate detection events seen, by origin.",
		}, []string{"origin"}),
		EventsStored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lpr_events_stored_total",
			Help: "Plate detection records committed, by origin.",
		}, []string{"origin"}),
		EventsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lpr_events_skipped_total",
			Help: "Events skipped before commit, by reason.",
		}, []string{"reason"}),
		WriteErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lpr_write_errors_total",
			Help: "Non-duplicate store write failures.",
		}),
	}
	reg.MustRegister(m.EventsDetected, m.EventsStored, m.EventsSkipped, m.WriteErrors)
	return m
}
