// Package metrics exposes Prometheus collectors for the bench daemon.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AnalysesTotal counts completed analyses by transition type and outcome
	// (ok, partial, invalid).
	AnalysesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_analyses_total",
			Help: "Total number of waveform analyses",
		},
		[]string{"type", "outcome"},
	)

	// TransitionTime observes measured 10-90% transition times.
	TransitionTime = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "relay_transition_time_seconds",
			Help:    "Measured relay transition times in seconds",
			Buckets: []float64{1e-5, 5e-5, 1e-4, 5e-4, 1e-3, 5e-3, 1e-2, 5e-2},
		},
	)

	// BounceCount observes the number of bounces per analyzed transition.
	BounceCount = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "relay_bounce_count",
			Help:    "Contact bounces detected per transition",
			Buckets: []float64{0, 1, 2, 3, 5, 10, 20},
		},
	)

	// AcquisitionErrors counts failed scope acquisitions.
	AcquisitionErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_acquisition_errors_total",
			Help: "Total number of failed waveform acquisitions",
		},
	)

	// PublishErrors counts failed MQTT publishes.
	PublishErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_publish_errors_total",
			Help: "Total number of failed MQTT publishes",
		},
	)

	// RelayCycles counts relay switching cycles driven by the bench.
	RelayCycles = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_cycles_total",
			Help: "Total number of relay switching cycles",
		},
	)

	// CapturesIngested counts capture files picked up from the watch directory.
	CapturesIngested = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_captures_ingested_total",
			Help: "Total number of capture files ingested",
		},
	)
)

// ObserveResult records the standard per-analysis metrics.
func ObserveResult(transitionType string, transitionTime float64, timeValid bool, bounceCount int) {
	outcome := "ok"
	if !timeValid {
		outcome = "partial"
	}
	AnalysesTotal.WithLabelValues(transitionType, outcome).Inc()
	if timeValid {
		TransitionTime.Observe(transitionTime)
	}
	BounceCount.Observe(float64(bounceCount))
}
