package detect

import (
	"fmt"
	"sort"
	"strings"

	"retrohunt/config"
	"retrohunt/core"
)

// sensitiveHostKeywords marks high-value targets by hostname convention.
var sensitiveHostKeywords = []string{"PAYMENT", "FINANCE", "HR", "ADMIN", "DB", "SQL"}

// lolbinPatterns are living-off-the-land combinations that count as initial
// access even without an indicator flag: a shell or interpreter paired with
// a download/install-flavored command line.
var lolbinPatterns = []struct {
	process string
	cmdline string
}{
	{"powershell", "download"},
	{"cmd", "curl"},
	{"npm", "install"},
}

// attackChainNetworkActivityMin is the connection count above which an
// event counts as lateral network activity.
const attackChainNetworkActivityMin = 5

// attackChainMaxIntermediateHosts caps the middle of the rendered path.
const attackChainMaxIntermediateHosts = 3

// AttackChainDetector reconstructs multi-host intrusion paths: an
// initial-access indicator, lateral activity by the same user identity
// across enough hosts for long enough, and a final target preferring
// sensitive hosts. One alert per qualifying user.
type AttackChainDetector struct {
	cfg config.AttackChainConfig
}

func NewAttackChainDetector(cfg config.AttackChainConfig) *AttackChainDetector {
	return &AttackChainDetector{cfg: cfg}
}

func (d *AttackChainDetector) Name() string { return "attack_chain" }

func hasIndicator(e *core.Event) bool {
	return e.ScriptExecution || e.ObfuscatedScript || e.RegistryPersistenceAccess ||
		e.ExeMismatch || e.CredentialAccess
}

func matchesLOLBin(e *core.Event) bool {
	name := strings.ToLower(e.Name)
	cmdline := strings.ToLower(e.Cmdline)
	for _, p := range lolbinPatterns {
		if strings.Contains(name, p.process) && strings.Contains(cmdline, p.cmdline) {
			return true
		}
	}
	return false
}

func isInitialAccess(e *core.Event) bool {
	return hasIndicator(e) || matchesLOLBin(e)
}

// activityType classifies a lateral-movement event, most specific first.
func activityType(e *core.Event) string {
	switch {
	case e.CredentialAccess:
		return "credential_access"
	case e.RegistryPersistenceAccess:
		return "persistence"
	case e.ScriptExecution:
		return "script_execution"
	case e.ConnCount > attackChainNetworkActivityMin:
		return "network_activity"
	default:
		return "other"
	}
}

func isSensitiveHost(hostname string) bool {
	upper := strings.ToUpper(hostname)
	for _, kw := range sensitiveHostKeywords {
		if strings.Contains(upper, kw) {
			return true
		}
	}
	return false
}

// userCampaign accumulates one user's cross-system activity in corpus
// order, which stands in for traversal order when rendering the path.
type userCampaign struct {
	hosts           []string // unique, order of first appearance
	hostSeen        map[string]struct{}
	activities      []string // unique, order of first appearance
	activitySeen    map[string]struct{}
	earliest        *core.Event
	latest          *core.Event
	latestSensitive *core.Event
}

func (c *userCampaign) observe(e *core.Event) {
	if e.Hostname != "" {
		if _, ok := c.hostSeen[e.Hostname]; !ok {
			c.hostSeen[e.Hostname] = struct{}{}
			c.hosts = append(c.hosts, e.Hostname)
		}
	}
	if act := activityType(e); act != "" {
		if _, ok := c.activitySeen[act]; !ok {
			c.activitySeen[act] = struct{}{}
			c.activities = append(c.activities, act)
		}
	}
	if c.earliest == nil || e.Timestamp.Before(c.earliest.Timestamp) {
		c.earliest = e
	}
	if c.latest == nil || e.Timestamp.After(c.latest.Timestamp) {
		c.latest = e
	}
	if isSensitiveHost(e.Hostname) {
		if c.latestSensitive == nil || e.Timestamp.After(c.latestSensitive.Timestamp) {
			c.latestSensitive = e
		}
	}
}

func (d *AttackChainDetector) Run(rc *RunContext, corpus []core.Event) ([]*core.Alert, error) {
	window := Lookback(corpus, rc.Now, d.cfg.LookbackDays)

	// Stage 1: users tied to an initial-access event.
	initialUsers := make(map[string]struct{})
	for i := range window {
		e := &window[i]
		if e.User != "" && isInitialAccess(e) {
			initialUsers[e.User] = struct{}{}
		}
	}
	if len(initialUsers) == 0 {
		return nil, nil
	}

	// Stage 2: collect every window event for those users.
	campaigns := make(map[string]*userCampaign)
	for i := range window {
		e := &window[i]
		if _, ok := initialUsers[e.User]; !ok {
			continue
		}
		c := campaigns[e.User]
		if c == nil {
			c = &userCampaign{
				hostSeen:     make(map[string]struct{}),
				activitySeen: make(map[string]struct{}),
			}
			campaigns[e.User] = c
		}
		c.observe(e)
	}

	users := make([]string, 0, len(campaigns))
	for user := range campaigns {
		users = append(users, user)
	}
	sort.Strings(users)

	// Stage 3: qualify campaigns and emit chains.
	var alerts []*core.Alert
	for _, user := range users {
		c := campaigns[user]
		duration := WholeDays(c.earliest.Timestamp, c.latest.Timestamp)
		if len(c.hosts) < d.cfg.MinHosts || duration < d.cfg.MinDays {
			continue
		}

		final := c.latest
		if c.latestSensitive != nil {
			final = c.latestSensitive
		}
		initialHost := c.earliest.Hostname
		finalHost := final.Hostname

		a := core.NewAlert(rc.Now, core.SeverityCritical, "Distributed Attack Chain", "Cross-System Attack Chain Detected")
		a.User = user
		a.HostCount = len(c.hosts)
		a.AffectedSystems = append([]string(nil), c.hosts...)
		a.ActivityTypes = append([]string(nil), c.activities...)
		a.FirstSeen = c.earliest.Timestamp
		a.LastSeen = final.Timestamp
		a.AttackPath = buildAttackPath(initialHost, finalHost, c.hosts)
		a.CampaignDays = duration
		a.Timeline = fmt.Sprintf("%d days with extremely low activity on any single endpoint", duration)
		a.Score = float64(duration)
		alerts = append(alerts, a)
	}
	return alerts, nil
}

// buildAttackPath renders initial → up to three intermediate hosts in
// traversal order → final. Initial and final never repeat in the middle.
func buildAttackPath(initial, final string, hosts []string) string {
	var middle []string
	for _, h := range hosts {
		if h == initial || h == final {
			continue
		}
		middle = append(middle, h)
		if len(middle) == attackChainMaxIntermediateHosts {
			break
		}
	}
	segments := make([]string, 0, len(middle)+2)
	segments = append(segments, initial)
	segments = append(segments, middle...)
	segments = append(segments, final)
	return strings.Join(segments, " → ")
}
