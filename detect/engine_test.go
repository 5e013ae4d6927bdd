package detect

import (
	"errors"
	"testing"

	"retrohunt/config"
	"retrohunt/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testRunContext() *RunContext {
	return &RunContext{Now: testNow, Logger: zap.NewNop().Sugar()}
}

func TestEngine_EmptyCorpusYieldsEmptyResultsForAllDetectors(t *testing.T) {
	engine := NewEngine(config.Default(), zap.NewNop().Sugar())

	results := engine.RunAt(testNow, nil)

	require.Len(t, results, 6)
	for _, name := range engine.DetectorNames() {
		alerts, ok := results[name]
		require.True(t, ok, "detector %s missing from results", name)
		assert.Empty(t, alerts, "detector %s should emit nothing on an empty corpus", name)
		assert.NotNil(t, alerts)
	}
	assert.Equal(t, 0, results.Total())
}

func TestEngine_SharedRunClock(t *testing.T) {
	engine := NewEngine(config.Default(), zap.NewNop().Sugar())

	// A dormant svchost impostor relative to testNow; a run clock captured
	// at a different instant would move the lookback boundary.
	corpus := []core.Event{
		{Hostname: "WS-01", ExePath: `C:\Users\Public\svchost-update.exe`, PID: 0, Timestamp: testNow.AddDate(0, 0, -80)},
		{Hostname: "WS-01", ExePath: `C:\Users\Public\svchost-update.exe`, PID: 4242, Name: "svchost-update.exe", Timestamp: testNow.AddDate(0, 0, -40)},
	}
	results := engine.RunAt(testNow, corpus)

	require.Len(t, results["dormancy"], 1)
	assert.Equal(t, testNow, results["dormancy"][0].DetectionTime, "alerts carry the shared run clock")
}

type panickyDetector struct{}

func (panickyDetector) Name() string { return "panicky" }
func (panickyDetector) Run(*RunContext, []core.Event) ([]*core.Alert, error) {
	panic("detector blew up")
}

type failingDetector struct{}

func (failingDetector) Name() string { return "failing" }
func (failingDetector) Run(*RunContext, []core.Event) ([]*core.Alert, error) {
	return nil, errors.New("boom")
}

func TestRunIsolated_PanicDegradesToEmptyResult(t *testing.T) {
	assert.NotPanics(t, func() {
		alerts := runIsolated(panickyDetector{}, testRunContext(), nil)
		assert.Empty(t, alerts)
	})
}

func TestRunIsolated_ErrorDegradesToEmptyResult(t *testing.T) {
	alerts := runIsolated(failingDetector{}, testRunContext(), nil)
	assert.Empty(t, alerts)
}
