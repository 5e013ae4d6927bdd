package detect

import (
	"sync"
	"time"

	"retrohunt/config"
	"retrohunt/core"
	"retrohunt/util/goroutine"

	"go.uber.org/zap"
)

// Engine fans a read-only corpus out to the six detectors and fans their
// ranked results back in. Detectors share no mutable state, so they run
// concurrently without locks beyond result collection.
type Engine struct {
	cfg       *config.Config
	logger    *zap.SugaredLogger
	detectors []Detector
}

// NewEngine creates an Engine with the full detector set.
func NewEngine(cfg *config.Config, logger *zap.SugaredLogger) *Engine {
	return &Engine{
		cfg:    cfg,
		logger: logger,
		detectors: []Detector{
			NewDormancyDetector(cfg.Detectors.Dormancy),
			NewBeaconingDetector(cfg.Detectors.Beaconing),
			NewExfiltrationDetector(cfg.Detectors.Exfiltration),
			NewReconDetector(cfg.Detectors.Recon),
			NewServiceAccountDetector(cfg.Detectors.ServiceAccount),
			NewAttackChainDetector(cfg.Detectors.AttackChain),
		},
	}
}

// DetectorNames returns the names of the configured detectors in run order.
func (e *Engine) DetectorNames() []string {
	names := make([]string, len(e.detectors))
	for i, d := range e.detectors {
		names[i] = d.Name()
	}
	return names
}

// Run executes every detector against the corpus using the current time as
// the run clock.
func (e *Engine) Run(corpus []core.Event) Results {
	return e.RunAt(time.Now().UTC(), corpus)
}

// RunAt executes every detector against the corpus with an explicit run
// clock. The clock is captured once here and shared, so all detectors see
// identical window boundaries. One detector failing never prevents the
// others from completing.
func (e *Engine) RunAt(now time.Time, corpus []core.Event) Results {
	rc := &RunContext{Now: now, Logger: e.logger}

	results := make(Results, len(e.detectors))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, d := range e.detectors {
		wg.Add(1)
		go func(d Detector) {
			defer wg.Done()
			defer goroutine.Recover("detector-"+d.Name(), e.logger)

			alerts := runIsolated(d, rc, corpus)
			ranked := rankAndCap(alerts, e.cfg.Engine.MaxAlerts)

			mu.Lock()
			results[d.Name()] = ranked
			mu.Unlock()

			e.logger.Debugw("detector finished", "detector", d.Name(), "alerts", len(ranked))
		}(d)
	}
	wg.Wait()

	// A panic between runIsolated and result collection would leave the
	// detector's entry missing; backfill so callers always see all six.
	for _, d := range e.detectors {
		if _, ok := results[d.Name()]; !ok {
			results[d.Name()] = []*core.Alert{}
		}
	}
	return results
}
