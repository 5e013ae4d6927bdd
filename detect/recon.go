package detect

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"retrohunt/config"
	"retrohunt/core"
)

// reconCommands is the dictionary of reconnaissance-indicative substrings,
// Windows and Unix variants. A command line qualifies only when every entry
// matches: the intentionally strict correlation criterion for scripted
// recon sweeps that chain the whole toolkit in one invocation.
var reconCommands = []string{
	// Windows
	"net view", "net use", "net group", "net user", "nslookup", "ping ", "ipconfig",
	"systeminfo", "whoami", "get-acl", "get-aduser", "get-adgroup", "quser",
	// Linux/macOS
	"ifconfig", "ip a", "netstat", "who", "w ", "last", "lsof",
}

// Command categories, first match wins.
var reconCategories = []struct {
	name     string
	patterns []string
}{
	{"network_discovery", []string{"net view", "net use", "nslookup", "ping "}},
	{"permission_enum", []string{"get-acl", "icacls", "cacls"}},
	{"account_enum", []string{"net group", "net user", "get-adgroup", "get-aduser"}},
}

// reconTimeWindow is the maximum spread of first-seen times across hosts
// for activity to count as one coordinated campaign.
const reconTimeWindow = 24 * time.Hour

const (
	reconMinCommands = 2
	reconMinHosts    = 3
	reconMinUsers    = 2
)

// ReconDetector correlates the same category of reconnaissance commands run
// by multiple users on multiple hosts inside a short window: coordinated or
// automated scanning rather than one admin poking around.
type ReconDetector struct {
	cfg config.ReconConfig
}

func NewReconDetector(cfg config.ReconConfig) *ReconDetector {
	return &ReconDetector{cfg: cfg}
}

func (d *ReconDetector) Name() string { return "recon" }

func categorizeCommand(cmdline string) string {
	lower := strings.ToLower(cmdline)
	for _, cat := range reconCategories {
		for _, p := range cat.patterns {
			if strings.Contains(lower, p) {
				return cat.name
			}
		}
	}
	return "other"
}

func matchesAllReconCommands(cmdline string) bool {
	if cmdline == "" {
		return false
	}
	lower := strings.ToLower(cmdline)
	for _, cmd := range reconCommands {
		if !strings.Contains(lower, cmd) {
			return false
		}
	}
	return true
}

func (d *ReconDetector) Run(rc *RunContext, corpus []core.Event) ([]*core.Alert, error) {
	window := Lookback(corpus, rc.Now, d.cfg.LookbackDays)

	// Group matching activity by (category, hostname, user).
	type groupKey struct {
		category string
		host     string
		user     string
	}
	type groupStats struct {
		commands  map[string]struct{}
		firstSeen time.Time
		lastSeen  time.Time
	}
	groups := make(map[groupKey]*groupStats)
	for i := range window {
		e := &window[i]
		if !matchesAllReconCommands(e.Cmdline) {
			continue
		}
		k := groupKey{category: categorizeCommand(e.Cmdline), host: e.Hostname, user: e.User}
		gs := groups[k]
		if gs == nil {
			gs = &groupStats{
				commands:  make(map[string]struct{}),
				firstSeen: e.Timestamp,
				lastSeen:  e.Timestamp,
			}
			groups[k] = gs
		}
		gs.commands[e.Cmdline] = struct{}{}
		if e.Timestamp.Before(gs.firstSeen) {
			gs.firstSeen = e.Timestamp
		}
		if e.Timestamp.After(gs.lastSeen) {
			gs.lastSeen = e.Timestamp
		}
	}

	// Collapse to per-category campaign evidence, keeping only entities
	// that ran at least two distinct command lines.
	type campaign struct {
		hosts         map[string]struct{}
		users         map[string]struct{}
		earliestFirst time.Time
		latestFirst   time.Time
		lastDetected  time.Time
	}
	campaigns := make(map[string]*campaign)
	for k, gs := range groups {
		if len(gs.commands) < reconMinCommands {
			continue
		}
		c := campaigns[k.category]
		if c == nil {
			c = &campaign{
				hosts:         make(map[string]struct{}),
				users:         make(map[string]struct{}),
				earliestFirst: gs.firstSeen,
				latestFirst:   gs.firstSeen,
				lastDetected:  gs.lastSeen,
			}
			campaigns[k.category] = c
		}
		c.hosts[k.host] = struct{}{}
		c.users[k.user] = struct{}{}
		if gs.firstSeen.Before(c.earliestFirst) {
			c.earliestFirst = gs.firstSeen
		}
		if gs.firstSeen.After(c.latestFirst) {
			c.latestFirst = gs.firstSeen
		}
		if gs.lastSeen.After(c.lastDetected) {
			c.lastDetected = gs.lastSeen
		}
	}

	categories := make([]string, 0, len(campaigns))
	for cat := range campaigns {
		categories = append(categories, cat)
	}
	sort.Strings(categories)

	var alerts []*core.Alert
	for _, cat := range categories {
		c := campaigns[cat]
		if len(c.hosts) < reconMinHosts || len(c.users) < reconMinUsers {
			continue
		}
		if c.latestFirst.Sub(c.earliestFirst) >= reconTimeWindow {
			continue
		}

		hosts := make([]string, 0, len(c.hosts))
		for h := range c.hosts {
			hosts = append(hosts, h)
		}
		sort.Strings(hosts)

		a := core.NewAlert(rc.Now, core.SeverityHigh, "Multi-system Coordinated Reconnaissance", "Distributed Reconnaissance Campaign")
		a.AffectedSystems = hosts
		a.FirstSeen = c.earliestFirst
		a.LastSeen = c.lastDetected
		a.Evidence = "Similar command patterns executed across multiple systems"
		a.UserAccounts = fmt.Sprintf("%d different user accounts executing similar commands", len(c.users))
		a.SystemCount = len(c.hosts)
		a.Score = float64(len(c.hosts))
		alerts = append(alerts, a)
	}
	return alerts, nil
}
