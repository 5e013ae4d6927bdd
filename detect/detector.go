// Package detect implements the detection-correlation engine: six
// independent detectors over a read-only snapshot of normalized endpoint
// telemetry, with per-detector fault isolation and a shared run clock.
package detect

import (
	"time"

	"retrohunt/core"
	"retrohunt/metrics"

	"go.uber.org/zap"
)

// RunContext carries per-run state into each detector. Now is captured once
// at engine start and shared by every detector so all window boundaries
// agree; detectors never read the wall clock themselves.
type RunContext struct {
	Now    time.Time
	Logger *zap.SugaredLogger
}

// Detector is the contract every detector implements: a pure function of
// (run context, corpus) returning alerts ordered by its Score metric. A
// detector must not mutate the corpus and must not panic past its boundary;
// the engine enforces the latter via runIsolated.
type Detector interface {
	Name() string
	Run(rc *RunContext, corpus []core.Event) ([]*core.Alert, error)
}

// runIsolated executes one detector with the isolate-and-degrade policy:
// any error or panic is recorded and converted into an empty result for
// that detector only, so sibling detectors and the aggregator always get to
// run.
func runIsolated(d Detector, rc *RunContext, corpus []core.Event) (alerts []*core.Alert) {
	defer func() {
		if r := recover(); r != nil {
			rc.Logger.Errorw("detector panicked, degrading to empty result",
				"detector", d.Name(), "panic", r)
			metrics.DetectorFailures.WithLabelValues(d.Name()).Inc()
			alerts = nil
		}
	}()

	start := time.Now()
	alerts, err := d.Run(rc, corpus)
	metrics.DetectorDuration.WithLabelValues(d.Name()).Observe(time.Since(start).Seconds())
	if err != nil {
		rc.Logger.Errorw("detector failed, degrading to empty result",
			"detector", d.Name(), "error", err)
		metrics.DetectorFailures.WithLabelValues(d.Name()).Inc()
		return nil
	}
	for _, a := range alerts {
		metrics.AlertsGenerated.WithLabelValues(d.Name(), a.Severity).Inc()
	}
	return alerts
}
