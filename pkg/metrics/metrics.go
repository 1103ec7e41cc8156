// Package metrics provides Prometheus-based metrics for the scheduler.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"autodev/pkg/logx"
)

// Recorder holds the scheduler's metric instruments. A nil *Recorder is
// valid and records nothing, so callers never need to guard.
type Recorder struct {
	ticksTotal        prometheus.Counter
	tickErrorsTotal   prometheus.Counter
	spawnsTotal       *prometheus.CounterVec
	spawnFailures     *prometheus.CounterVec
	failuresTotal     prometheus.Counter
	syncReleasesTotal prometheus.Counter
	activeLeases      *prometheus.GaugeVec
}

// NewRecorder creates the scheduler metrics, registered on the default registry.
func NewRecorder() *Recorder {
	return &Recorder{
		ticksTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "autodev_ticks_total",
			Help: "Total number of reconciliation ticks",
		}),
		tickErrorsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "autodev_tick_errors_total",
			Help: "Total number of ticks that logged at least one error",
		}),
		spawnsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "autodev_spawns_total",
			Help: "Total number of worker processes spawned by phase",
		}, []string{"phase"}),
		spawnFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "autodev_spawn_failures_total",
			Help: "Total number of failed worker spawn attempts by phase",
		}, []string{"phase"}),
		failuresTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "autodev_failures_total",
			Help: "Total number of issues routed through the failure path",
		}),
		syncReleasesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "autodev_lease_sync_releases_total",
			Help: "Total number of leases released because the in-flight label disappeared",
		}),
		activeLeases: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "autodev_active_leases",
			Help: "Number of currently held leases by phase",
		}, []string{"phase"}),
	}
}

// RecordTick increments the tick counter.
func (r *Recorder) RecordTick() {
	if r == nil {
		return
	}
	r.ticksTotal.Inc()
}

// RecordTickError increments the tick error counter.
func (r *Recorder) RecordTickError() {
	if r == nil {
		return
	}
	r.tickErrorsTotal.Inc()
}

// RecordSpawn counts a successful worker spawn.
func (r *Recorder) RecordSpawn(phase string) {
	if r == nil {
		return
	}
	r.spawnsTotal.WithLabelValues(phase).Inc()
}

// RecordSpawnFailure counts a failed worker spawn attempt.
func (r *Recorder) RecordSpawnFailure(phase string) {
	if r == nil {
		return
	}
	r.spawnFailures.WithLabelValues(phase).Inc()
}

// RecordFailure counts an issue routed through the failure path.
func (r *Recorder) RecordFailure() {
	if r == nil {
		return
	}
	r.failuresTotal.Inc()
}

// RecordSyncRelease counts a lease released by the lease sync step.
func (r *Recorder) RecordSyncRelease() {
	if r == nil {
		return
	}
	r.syncReleasesTotal.Inc()
}

// SetActiveLeases updates the active lease gauge for a phase.
func (r *Recorder) SetActiveLeases(phase string, count int) {
	if r == nil {
		return
	}
	r.activeLeases.WithLabelValues(phase).Set(float64(count))
}

// Serve exposes /metrics on addr in a background goroutine. Errors are logged
// rather than fatal: metrics are an observability convenience, not a
// scheduling dependency.
func Serve(addr string) {
	logger := logx.NewLogger("metrics")
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("Metrics listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Metrics server failed: %v", err)
		}
	}()
}
