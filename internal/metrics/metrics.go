package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	ticks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "idlewatch",
			Subsystem: "monitor",
			Name:      "ticks_total",
			Help:      "Number of completed poll-loop ticks.",
		},
	)
	probeChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "idlewatch",
			Subsystem: "probe",
			Name:      "checks_total",
			Help:      "Number of liveness probe checks by result.",
		}, []string{"result"},
	)
	probeErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "idlewatch",
			Subsystem: "probe",
			Name:      "errors_total",
			Help:      "Number of liveness probe failures.",
		},
	)
	commands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "idlewatch",
			Subsystem: "command",
			Name:      "received_total",
			Help:      "Number of control commands consumed by kind.",
		}, []string{"kind"},
	)
	deletions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "idlewatch",
			Subsystem: "control_plane",
			Name:      "deletions_total",
			Help:      "Deletion procedure runs by trigger path and outcome.",
		}, []string{"path", "outcome"},
	)
	workloadRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "idlewatch",
			Subsystem: "monitor",
			Name:      "workload_running",
			Help:      "Whether the watched workload was running at the last check (1 = running).",
		},
	)
	instancesMatched = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "idlewatch",
			Subsystem: "control_plane",
			Name:      "instances_matched",
			Help:      "Instances the selector matched during the last list call.",
		},
	)
	countdownSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "idlewatch",
			Subsystem: "monitor",
			Name:      "countdown_seconds",
			Help:      "Remaining grace time until deletion; 0 while the workload runs.",
		},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{ticks, probeChecks, probeErrors, commands, deletions, workloadRunning, instancesMatched, countdownSeconds}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			// If already registered, ignore (allows double Register with default registry)
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler that serves Prometheus metrics for the DefaultGatherer.
// The caller is responsible for starting an HTTP server and wiring the route.
func Handler() http.Handler { return promhttp.Handler() }

// Below are lightweight helpers used by internal packages to record metrics.
// They no-op if Register hasn't been called.

func IncTick() {
	if regOK.Load() {
		ticks.Inc()
	}
}

func IncProbeCheck(running bool) {
	if regOK.Load() {
		result := "stopped"
		if running {
			result = "running"
		}
		probeChecks.WithLabelValues(result).Inc()
	}
}

func IncProbeError() {
	if regOK.Load() {
		probeErrors.Inc()
	}
}

func IncCommand(kind string) {
	if regOK.Load() {
		commands.WithLabelValues(kind).Inc()
	}
}

func IncDeletion(path, outcome string) {
	if regOK.Load() {
		deletions.WithLabelValues(path, outcome).Inc()
	}
}

func SetWorkloadRunning(running bool) {
	if regOK.Load() {
		var v float64
		if running {
			v = 1
		}
		workloadRunning.Set(v)
	}
}

func SetInstancesMatched(n int) {
	if regOK.Load() {
		instancesMatched.Set(float64(n))
	}
}

func SetCountdownSeconds(seconds float64) {
	if regOK.Load() {
		if seconds < 0 {
			seconds = 0
		}
		countdownSeconds.Set(seconds)
	}
}
