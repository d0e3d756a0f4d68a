// ABOUTME: Prometheus metrics for nodes
// ABOUTME: Counts recoverable errors, grains, taps and rendezvous outcomes
package metrics

import (
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Error kinds reported through Report
const (
	KindMissingAsset     = "missing_asset"
	KindUnresolvedIR     = "unresolved_ir"
	KindRendezvousMissed = "rendezvous_missed"
	KindDegenerateIndex  = "degenerate_index"
	KindUnknownControl   = "unknown_control"
	KindBadMessage       = "bad_message"
)

const (
	kindLabel    = "kind"
	modeLabel    = "mode"
	outcomeLabel = "outcome"
)

// Metrics holds a node's collectors. A nil *Metrics is valid and records
// nothing, so components can run without a registry.
type Metrics struct {
	registry *prometheus.Registry

	errors     *prometheus.CounterVec
	grains     *prometheus.CounterVec
	taps       prometheus.Counter
	rendezvous *prometheus.CounterVec
	receivers  prometheus.Gauge
}

// New creates the collectors on their own registry
func New() (*Metrics, error) {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nu_errors_total",
			Help: "Recoverable errors by kind",
		}, []string{kindLabel}),
		grains: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nu_grains_total",
			Help: "Grains emitted by the granular engine",
		}, []string{modeLabel}),
		taps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nu_taps_total",
			Help: "Impulse response taps computed or rendered",
		}),
		rendezvous: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nu_rendezvous_total",
			Help: "Rendezvous starts by outcome",
		}, []string{outcomeLabel}),
		receivers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nu_receivers",
			Help: "Players with a known position",
		}),
	}

	for _, c := range []prometheus.Collector{m.errors, m.grains, m.taps, m.rendezvous, m.receivers} {
		if err := m.registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Report logs a recoverable error once and counts it by kind
func (m *Metrics) Report(kind string, err error) {
	log.Printf("%s: %v", kind, err)
	if m == nil {
		return
	}
	m.errors.WithLabelValues(kind).Inc()
}

// Grain counts an emitted grain; mode is "touch" or "texture"
func (m *Metrics) Grain(mode string) {
	if m == nil {
		return
	}
	m.grains.WithLabelValues(mode).Inc()
}

// Taps adds n computed or rendered taps
func (m *Metrics) Taps(n int) {
	if m == nil {
		return
	}
	m.taps.Add(float64(n))
}

// Rendezvous counts a rendezvous outcome: "started" or "missed"
func (m *Metrics) Rendezvous(outcome string) {
	if m == nil {
		return
	}
	m.rendezvous.WithLabelValues(outcome).Inc()
}

// SetReceivers records how many players have a position
func (m *Metrics) SetReceivers(n int) {
	if m == nil {
		return
	}
	m.receivers.Set(float64(n))
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
