// Package metrics exposes Prometheus counters for security relevant portal
// events. Collectors are registered on a caller supplied registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePending = "pending"
	OutcomeDenied  = "denied"
)

// Metrics groups the portal counters.
type Metrics struct {
	registry *prometheus.Registry

	Logins        *prometheus.CounterVec
	Registrations *prometheus.CounterVec
	Approvals     *prometheus.CounterVec
	Uploads       *prometheus.CounterVec
	Downloads     *prometheus.CounterVec
	UploadBytes   prometheus.Counter
}

// New creates the counters and registers them, along with the Go runtime
// and process collectors, on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		Logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fileportal",
			Name:      "logins_total",
			Help:      "Login attempts by outcome.",
		}, []string{"outcome"}),
		Registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fileportal",
			Name:      "registrations_total",
			Help:      "Registration attempts by outcome.",
		}, []string{"outcome"}),
		Approvals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fileportal",
			Name:      "account_decisions_total",
			Help:      "Administrator decisions on pending accounts.",
		}, []string{"decision"}),
		Uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fileportal",
			Name:      "uploads_total",
			Help:      "Upload attempts by outcome.",
		}, []string{"outcome"}),
		Downloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fileportal",
			Name:      "downloads_total",
			Help:      "Download attempts by outcome.",
		}, []string{"outcome"}),
		UploadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fileportal",
			Name:      "upload_bytes_total",
			Help:      "Bytes accepted through uploads.",
		}),
	}

	reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		m.Logins, m.Registrations, m.Approvals, m.Uploads, m.Downloads, m.UploadBytes,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
