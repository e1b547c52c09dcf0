// Package metrics exposes maintenance counters in the prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder owns a private registry so tests and multiple servers in one
// process do not collide on the default one.
type Recorder struct {
	registry    *prometheus.Registry
	requests    *prometheus.CounterVec
	backupBytes prometheus.Counter
}

// NewRecorder registers the maintenance counters plus the Go runtime and
// process collectors.
func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "maintenance_requests_total",
		Help: "Maintenance requests by outcome code.",
	}, []string{"code"})
	backupBytes := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "maintenance_backup_bytes_total",
		Help: "Bytes copied into local backups.",
	})

	registry.MustRegister(
		requests,
		backupBytes,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Recorder{
		registry:    registry,
		requests:    requests,
		backupBytes: backupBytes,
	}
}

// ObserveOutcome counts one request. Nil recorders ignore the call.
func (r *Recorder) ObserveOutcome(code string) {
	if r == nil {
		return
	}
	r.requests.WithLabelValues(code).Inc()
}

// AddBackupBytes adds n copied bytes
func (r *Recorder) AddBackupBytes(n int64) {
	if r == nil || n <= 0 {
		return
	}
	r.backupBytes.Add(float64(n))
}

// Handler serves the registry
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
