package detect

import (
	"testing"
	"time"

	"retrohunt/config"
	"retrohunt/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serviceAccountTestConfig() config.ServiceAccountConfig {
	return config.ServiceAccountConfig{BaselineDays: 90, RecentDays: 30}
}

func loginEvent(user, host string, ts time.Time) core.Event {
	return core.Event{Hostname: host, User: user, Timestamp: ts}
}

func TestServiceAccount_NovelHostsBeyondBaseline(t *testing.T) {
	// svc_backup lived on {A,B} during the baseline, then fanned out to
	// {A,B,C,D,E} in the recent window.
	var corpus []core.Event
	for _, host := range []string{"HOST-A", "HOST-B"} {
		corpus = append(corpus,
			loginEvent("svc_backup", host, testNow.AddDate(0, 0, -60)),
			loginEvent("svc_backup", host, testNow.AddDate(0, 0, -45)),
		)
	}
	for i, host := range []string{"HOST-A", "HOST-B", "HOST-C", "HOST-D", "HOST-E"} {
		corpus = append(corpus, loginEvent("svc_backup", host, testNow.AddDate(0, 0, -20+i)))
	}

	alerts, err := NewServiceAccountDetector(serviceAccountTestConfig()).Run(testRunContext(), corpus)
	require.NoError(t, err)
	require.Len(t, alerts, 1)

	a := alerts[0]
	assert.Equal(t, core.SeverityCritical, a.Severity)
	assert.Equal(t, "svc_backup", a.User)
	assert.Equal(t, 3, a.NewSystemsCount)
	assert.ElementsMatch(t, []string{"HOST-A", "HOST-B", "HOST-C", "HOST-D", "HOST-E"}, a.AffectedSystems)
	assert.Equal(t, "Service Account Anomaly", a.AlertName)
}

func TestServiceAccount_SubsetOfBaselineIsQuiet(t *testing.T) {
	corpus := []core.Event{
		loginEvent("svc_web", "HOST-A", testNow.AddDate(0, 0, -60)),
		loginEvent("svc_web", "HOST-B", testNow.AddDate(0, 0, -55)),
		loginEvent("svc_web", "HOST-A", testNow.AddDate(0, 0, -10)),
	}

	alerts, err := NewServiceAccountDetector(serviceAccountTestConfig()).Run(testRunContext(), corpus)
	require.NoError(t, err)
	assert.Empty(t, alerts, "revisiting known hosts yields zero novel hosts")
}

func TestServiceAccount_NoBaselineHistoryIsQuiet(t *testing.T) {
	// An account born inside the recent window has no norm to deviate
	// from, however many hosts it touches. Another account provides the
	// baseline data the detector needs to run at all.
	corpus := []core.Event{
		loginEvent("svc_old", "HOST-Z", testNow.AddDate(0, 0, -60)),
	}
	for i, host := range []string{"HOST-A", "HOST-B", "HOST-C", "HOST-D"} {
		corpus = append(corpus, loginEvent("svc_new", host, testNow.AddDate(0, 0, -15+i)))
	}

	alerts, err := NewServiceAccountDetector(serviceAccountTestConfig()).Run(testRunContext(), corpus)
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestServiceAccount_IgnoresHumanAccounts(t *testing.T) {
	var corpus []core.Event
	corpus = append(corpus, loginEvent("jsmith", "HOST-A", testNow.AddDate(0, 0, -60)))
	for i, host := range []string{"HOST-B", "HOST-C", "HOST-D", "HOST-E"} {
		corpus = append(corpus, loginEvent("jsmith", host, testNow.AddDate(0, 0, -15+i)))
	}

	alerts, err := NewServiceAccountDetector(serviceAccountTestConfig()).Run(testRunContext(), corpus)
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestIsServiceAccount_NamingConventions(t *testing.T) {
	assert.True(t, isServiceAccount("svc_backup"))
	assert.True(t, isServiceAccount("backup_svc"))
	assert.True(t, isServiceAccount("webservice"))
	assert.False(t, isServiceAccount("jsmith"))
	assert.False(t, isServiceAccount(""))
}
