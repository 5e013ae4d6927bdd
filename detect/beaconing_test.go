package detect

import (
	"testing"
	"time"

	"retrohunt/config"
	"retrohunt/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func beaconingTestConfig() config.BeaconingConfig {
	return config.BeaconingConfig{LookbackDays: 60, ActiveDaysThreshold: 10, ConsistencyThreshold: 0.8}
}

func beaconEvent(host string, pid int64, name, ip string, ts time.Time, outbound int64) core.Event {
	return core.Event{
		Hostname:      host,
		PID:           pid,
		Name:          name,
		RemoteIPs:     []string{ip},
		ConnCount:     1,
		OutboundBytes: outbound,
		Timestamp:     ts,
	}
}

// Twelve consecutive days of a single small daily connection to the same
// address, seven of them in the 01:00-05:00 band.
func beaconScenario() []core.Event {
	var corpus []core.Event
	start := testNow.AddDate(0, 0, -20)
	for i := 0; i < 12; i++ {
		hour := 10
		if i < 7 {
			hour = 3
		}
		ts := start.AddDate(0, 0, i).Truncate(24 * time.Hour).Add(time.Duration(hour) * time.Hour)
		corpus = append(corpus, beaconEvent("WS-09", 512, "implant.exe", "10.0.0.5", ts, 200))
	}
	return corpus
}

func TestBeaconing_RegularLowVolumePattern(t *testing.T) {
	alerts, err := NewBeaconingDetector(beaconingTestConfig()).Run(testRunContext(), beaconScenario())
	require.NoError(t, err)
	require.Len(t, alerts, 1)

	a := alerts[0]
	assert.Equal(t, core.SeverityHigh, a.Severity)
	assert.Equal(t, 12, a.DaysActive)
	assert.Equal(t, "10.0.0.5", a.Destination)
	assert.Equal(t, "WS-09", a.Hostname)
	assert.InDelta(t, 1.0, a.Consistency, 1e-9, "active every day of the span")
	assert.Equal(t, "Temporal Networking Anomaly", a.AlertName)
}

func TestBeaconing_ConsistencyAlwaysWithinUnitInterval(t *testing.T) {
	// Sparse activity: 10 active days spread over a 40-day span.
	var corpus []core.Event
	start := testNow.AddDate(0, 0, -50)
	for i := 0; i < 10; i++ {
		ts := start.AddDate(0, 0, i*4).Truncate(24 * time.Hour).Add(3 * time.Hour)
		corpus = append(corpus, beaconEvent("WS-01", 1, "a.exe", "1.2.3.4", ts, 100))
	}

	alerts, err := NewBeaconingDetector(beaconingTestConfig()).Run(testRunContext(), corpus)
	require.NoError(t, err)
	// 10/37 consistency is far below threshold, so nothing fires, but the
	// metric itself must stay in [0,1] for any input.
	assert.Empty(t, alerts)
}

func TestBeaconing_RequiresOffHoursActivity(t *testing.T) {
	// Same cadence as the qualifying scenario but all connections at noon.
	var corpus []core.Event
	start := testNow.AddDate(0, 0, -20)
	for i := 0; i < 12; i++ {
		ts := start.AddDate(0, 0, i).Truncate(24 * time.Hour).Add(12 * time.Hour)
		corpus = append(corpus, beaconEvent("WS-09", 512, "implant.exe", "10.0.0.5", ts, 200))
	}

	alerts, err := NewBeaconingDetector(beaconingTestConfig()).Run(testRunContext(), corpus)
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestBeaconing_BusyDaysExcluded(t *testing.T) {
	// Four same-day connections to one address exceed the per-day ceiling,
	// so that day does not count toward the pattern.
	var corpus []core.Event
	start := testNow.AddDate(0, 0, -20)
	for i := 0; i < 12; i++ {
		day := start.AddDate(0, 0, i).Truncate(24 * time.Hour)
		for j := 0; j < 4; j++ {
			corpus = append(corpus, beaconEvent("WS-09", 512, "implant.exe", "10.0.0.5", day.Add(time.Duration(1+j)*time.Hour), 200))
		}
	}

	alerts, err := NewBeaconingDetector(beaconingTestConfig()).Run(testRunContext(), corpus)
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestBeaconing_IgnoresBulkTrafficAndMissingAddresses(t *testing.T) {
	ts := testNow.AddDate(0, 0, -5)
	corpus := []core.Event{
		// Outbound volume too large for a beacon.
		beaconEvent("WS-01", 1, "a.exe", "1.1.1.1", ts, 50000),
		// No remote address at all.
		{Hostname: "WS-01", PID: 1, Name: "a.exe", ConnCount: 1, OutboundBytes: 200, Timestamp: ts},
		// No connections.
		{Hostname: "WS-01", PID: 1, Name: "a.exe", RemoteIPs: []string{"1.1.1.1"}, OutboundBytes: 200, Timestamp: ts},
	}

	alerts, err := NewBeaconingDetector(beaconingTestConfig()).Run(testRunContext(), corpus)
	require.NoError(t, err)
	assert.Empty(t, alerts)
}
