package detect

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"retrohunt/config"
	"retrohunt/core"
)

// serviceAccountMinNovelHosts is how many never-before-seen hosts a service
// account must touch in the recent window before an alert fires.
const serviceAccountMinNovelHosts = 3

// ServiceAccountDetector catches service accounts authenticating to hosts
// absent from their historical baseline. Service accounts are identified by
// naming convention; the comparison against baseline history is an exact
// set difference, so an account that only revisits known hosts never fires.
type ServiceAccountDetector struct {
	cfg config.ServiceAccountConfig
}

func NewServiceAccountDetector(cfg config.ServiceAccountConfig) *ServiceAccountDetector {
	return &ServiceAccountDetector{cfg: cfg}
}

func (d *ServiceAccountDetector) Name() string { return "service_account" }

// isServiceAccount applies the naming convention. The match is
// case-sensitive on purpose: conventions like SVC_ vs svc_ differ across
// fleets and the dictionary reflects the lowercase convention of the
// telemetry this detector was built against.
func isServiceAccount(user string) bool {
	return strings.Contains(user, "svc_") ||
		strings.Contains(user, "_svc") ||
		strings.Contains(user, "service")
}

func (d *ServiceAccountDetector) Run(rc *RunContext, corpus []core.Event) ([]*core.Alert, error) {
	baseline, recent := SplitBaselineRecent(corpus, rc.Now, d.cfg.BaselineDays, d.cfg.RecentDays)

	baselineHosts := make(map[string]map[string]struct{})
	for i := range baseline {
		e := &baseline[i]
		if !isServiceAccount(e.User) {
			continue
		}
		hosts := baselineHosts[e.User]
		if hosts == nil {
			hosts = make(map[string]struct{})
			baselineHosts[e.User] = hosts
		}
		hosts[e.Hostname] = struct{}{}
	}

	type recentActivity struct {
		hosts     map[string]struct{}
		firstSeen time.Time
		lastSeen  time.Time
	}
	recentByUser := make(map[string]*recentActivity)
	for i := range recent {
		e := &recent[i]
		if !isServiceAccount(e.User) {
			continue
		}
		ra := recentByUser[e.User]
		if ra == nil {
			ra = &recentActivity{
				hosts:     make(map[string]struct{}),
				firstSeen: e.Timestamp,
				lastSeen:  e.Timestamp,
			}
			recentByUser[e.User] = ra
		}
		ra.hosts[e.Hostname] = struct{}{}
		if e.Timestamp.Before(ra.firstSeen) {
			ra.firstSeen = e.Timestamp
		}
		if e.Timestamp.After(ra.lastSeen) {
			ra.lastSeen = e.Timestamp
		}
	}

	if len(baselineHosts) == 0 || len(recentByUser) == 0 {
		return nil, nil
	}

	users := make([]string, 0, len(recentByUser))
	for user := range recentByUser {
		users = append(users, user)
	}
	sort.Strings(users)

	var alerts []*core.Alert
	for _, user := range users {
		known, hasHistory := baselineHosts[user]
		if !hasHistory {
			// No baseline means no norm to deviate from.
			continue
		}
		ra := recentByUser[user]

		var novel []string
		for host := range ra.hosts {
			if _, ok := known[host]; !ok {
				novel = append(novel, host)
			}
		}
		if len(novel) < serviceAccountMinNovelHosts {
			continue
		}

		recentHosts := make([]string, 0, len(ra.hosts))
		for host := range ra.hosts {
			recentHosts = append(recentHosts, host)
		}
		sort.Strings(recentHosts)

		a := core.NewAlert(rc.Now, core.SeverityCritical, "Abnormal Service Account Usage", "Service Account Anomaly")
		a.User = user
		a.AffectedSystems = recentHosts
		a.FirstSeen = ra.firstSeen
		a.LastSeen = ra.lastSeen
		a.Timeline = fmt.Sprintf("%s - %s", ra.firstSeen.Format("2006-01-02"), ra.lastSeen.Format("2006-01-02"))
		a.Evidence = fmt.Sprintf("Account used from %d workstations never previously accessed in %d-day baseline period",
			len(novel), d.cfg.BaselineDays)
		a.NewSystemsCount = len(novel)
		a.Score = float64(len(novel))
		alerts = append(alerts, a)
	}
	return alerts, nil
}
