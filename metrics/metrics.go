// Package metrics exposes Prometheus instrumentation for the engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RowsNormalized = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "retrohunt_rows_normalized_total",
			Help: "Total number of raw rows normalized into canonical events",
		},
	)

	RowsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "retrohunt_rows_dropped_total",
			Help: "Total number of comment/header rows dropped during normalization",
		},
	)

	FieldCoercionFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retrohunt_field_coercion_failures_total",
			Help: "Total number of field values that fell back to their safe default",
		},
		[]string{"field"},
	)

	AlertsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retrohunt_alerts_generated_total",
			Help: "Total number of alerts generated",
		},
		[]string{"detector", "severity"},
	)

	DetectorFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retrohunt_detector_failures_total",
			Help: "Total number of detector runs degraded to an empty result",
		},
		[]string{"detector"},
	)

	DetectorDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "retrohunt_detector_duration_seconds",
			Help:    "Time taken by each detector over the corpus",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"detector"},
	)
)
