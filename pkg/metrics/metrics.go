// Package metrics exposes the gateway's Prometheus instrumentation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the gateway collectors around a private registry so
// tests can create isolated instances.
type Metrics struct {
	registry *prometheus.Registry

	// SupervisorState tracks the numeric state of each IED supervisor
	// (0 disconnected, 1 connecting, 2 connected, 3 faulted, 4 terminated).
	SupervisorState *prometheus.GaugeVec

	// UpdatesTranslated counts data updates written to the 104 server.
	UpdatesTranslated *prometheus.CounterVec

	// UpdatesDiscarded counts updates dropped before reaching the server.
	UpdatesDiscarded *prometheus.CounterVec

	// Invalidations counts quality-invalid publications per IED fault.
	Invalidations *prometheus.CounterVec

	// Commands counts inbound 104 commands by outcome.
	Commands *prometheus.CounterVec

	// QueueDrops counts events evicted from the full event queue.
	QueueDrops prometheus.Counter
}

// New creates the gateway collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		SupervisorState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "gateway",
			Name:      "supervisor_state",
			Help:      "Current IED supervisor state (0=disconnected 1=connecting 2=connected 3=faulted 4=terminated).",
		}, []string{"ied"}),
		UpdatesTranslated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gateway",
			Name:      "updates_translated_total",
			Help:      "Data updates translated and written to the 104 server.",
		}, []string{"ied"}),
		UpdatesDiscarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gateway",
			Name:      "updates_discarded_total",
			Help:      "Data updates discarded before reaching the 104 server.",
		}, []string{"ied", "reason"}),
		Invalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gateway",
			Name:      "invalidations_total",
			Help:      "Information objects published as quality-invalid.",
		}, []string{"ied"}),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gateway",
			Name:      "commands_total",
			Help:      "Inbound 104 commands by outcome.",
		}, []string{"outcome"}),
		QueueDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gateway",
			Name:      "queue_drops_total",
			Help:      "Events evicted from the full update queue.",
		}),
	}

	reg.MustRegister(
		m.SupervisorState,
		m.UpdatesTranslated,
		m.UpdatesDiscarded,
		m.Invalidations,
		m.Commands,
		m.QueueDrops,
	)
	return m
}

// Handler returns the exposition endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
