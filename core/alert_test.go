package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewAlert_CarriesRunClockAndIdentity(t *testing.T) {
	now := time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)
	a := NewAlert(now, SeverityCritical, "Delayed Execution Pattern", "Long-Term Dwell Time Detection")

	assert.NotEmpty(t, a.AlertID)
	assert.Equal(t, now, a.DetectionTime)
	assert.Equal(t, SeverityCritical, a.Severity)
	assert.Equal(t, "Delayed Execution Pattern", a.DetectionType)

	b := NewAlert(now, SeverityHigh, "x", "y")
	assert.NotEqual(t, a.AlertID, b.AlertID)
}

func TestEvent_TimestampHelpers(t *testing.T) {
	var e Event
	assert.False(t, e.HasTimestamp())

	e.Timestamp = time.Date(2025, 6, 28, 23, 45, 0, 0, time.UTC)
	assert.True(t, e.HasTimestamp())
	assert.Equal(t, time.Date(2025, 6, 28, 0, 0, 0, 0, time.UTC), e.Day())
}
