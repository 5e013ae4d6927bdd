package detect

import (
	"testing"
	"time"

	"retrohunt/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)

func eventAt(host string, ts time.Time) core.Event {
	return core.Event{Hostname: host, Timestamp: ts}
}

func TestLookback_BoundsAndNullTimestamps(t *testing.T) {
	corpus := []core.Event{
		eventAt("inside", testNow.AddDate(0, 0, -5)),
		eventAt("boundary", testNow.AddDate(0, 0, -30)),
		eventAt("outside", testNow.AddDate(0, 0, -31)),
		{Hostname: "null-ts"},
	}

	got := Lookback(corpus, testNow, 30)
	require.Len(t, got, 2)
	assert.Equal(t, "inside", got[0].Hostname)
	assert.Equal(t, "boundary", got[1].Hostname, "the cutoff instant itself is included")
}

func TestSplitBaselineRecent_NoOverlapNoGap(t *testing.T) {
	boundary := testNow.AddDate(0, 0, -30)
	corpus := []core.Event{
		eventAt("baseline-start", boundary.AddDate(0, 0, -90)),
		eventAt("baseline-end", boundary),
		eventAt("recent-first", boundary.Add(time.Second)),
		eventAt("recent-late", testNow.Add(-time.Hour)),
		eventAt("before-baseline", boundary.AddDate(0, 0, -91)),
		{Hostname: "null-ts"},
	}

	baseline, recent := SplitBaselineRecent(corpus, testNow, 90, 30)

	require.Len(t, baseline, 2)
	require.Len(t, recent, 2)
	assert.Equal(t, "baseline-start", baseline[0].Hostname)
	assert.Equal(t, "baseline-end", baseline[1].Hostname, "baseline window ends exactly at the boundary")
	assert.Equal(t, "recent-first", recent[0].Hostname, "recent window starts where baseline ends")

	// Every event lands in at most one partition.
	for _, b := range baseline {
		for _, r := range recent {
			assert.NotEqual(t, b.Hostname, r.Hostname)
		}
	}
}

func TestSplitBaselineRecent_PartitionsAreTimeOrdered(t *testing.T) {
	corpus := []core.Event{
		eventAt("late", testNow.Add(-time.Hour)),
		eventAt("early", testNow.AddDate(0, 0, -20)),
	}
	_, recent := SplitBaselineRecent(corpus, testNow, 90, 30)
	require.Len(t, recent, 2)
	assert.Equal(t, "early", recent[0].Hostname)
	assert.Equal(t, "late", recent[1].Hostname)
}

func TestIsWeekend(t *testing.T) {
	saturday := time.Date(2025, 6, 28, 10, 0, 0, 0, time.UTC)
	sunday := time.Date(2025, 6, 29, 10, 0, 0, 0, time.UTC)
	monday := time.Date(2025, 6, 30, 10, 0, 0, 0, time.UTC)

	assert.True(t, IsWeekend(saturday))
	assert.True(t, IsWeekend(sunday))
	assert.False(t, IsWeekend(monday))
}

func TestWholeDays(t *testing.T) {
	a := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 40, WholeDays(a, a.AddDate(0, 0, 40)))
	assert.Equal(t, 0, WholeDays(a, a.Add(23*time.Hour)))
	assert.Equal(t, -2, WholeDays(a, a.AddDate(0, 0, -2)))
}

func TestPerGroupMean(t *testing.T) {
	events := []core.Event{
		{Hostname: "a", OutboundBytes: 100},
		{Hostname: "a", OutboundBytes: 300},
		{Hostname: "b", OutboundBytes: 50},
	}
	means := PerGroupMean(events,
		func(e *core.Event) string { return e.Hostname },
		func(e *core.Event) float64 { return float64(e.OutboundBytes) },
	)
	assert.InDelta(t, 200, means["a"], 1e-9)
	assert.InDelta(t, 50, means["b"], 1e-9)
}
