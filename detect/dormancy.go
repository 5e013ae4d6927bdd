package detect

import (
	"fmt"
	"sort"
	"strings"

	"retrohunt/config"
	"retrohunt/core"
)

// systemProcessAliases maps masquerade-prone system process names to the
// directory a legitimate copy runs from. A binary whose execution name
// contains an alias but whose path never touches the alias's directory is
// treated as an impostor.
var systemProcessAliases = []struct {
	Alias    string
	LegitDir string
}{
	{"svchost", `c:\windows\system32\`},
	{"lsass", `c:\windows\system32\`},
	{"csrss", `c:\windows\system32\`},
	{"winlogon", `c:\windows\system32\`},
	{"services", `c:\windows\system32\`},
}

// DormancyDetector flags binaries that sat on disk for a long time before
// first executing under a system-process name outside the legitimate system
// directory: the long-dwell delayed-execution pattern.
type DormancyDetector struct {
	cfg config.DormancyConfig
}

func NewDormancyDetector(cfg config.DormancyConfig) *DormancyDetector {
	return &DormancyDetector{cfg: cfg}
}

func (d *DormancyDetector) Name() string { return "dormancy" }

func (d *DormancyDetector) Run(rc *RunContext, corpus []core.Event) ([]*core.Alert, error) {
	window := Lookback(corpus, rc.Now, d.cfg.LookbackDays)

	type fileKey struct {
		host string
		exe  string
	}
	groups := make(map[fileKey][]*core.Event)
	for i := range window {
		e := &window[i]
		if e.Hostname == "" || e.ExePath == "" {
			continue
		}
		k := fileKey{host: e.Hostname, exe: e.ExePath}
		groups[k] = append(groups[k], e)
	}

	keys := make([]fileKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].host != keys[j].host {
			return keys[i].host < keys[j].host
		}
		return keys[i].exe < keys[j].exe
	})

	var alerts []*core.Alert
	for _, k := range keys {
		if a := d.evaluateFile(rc, k.host, k.exe, groups[k]); a != nil {
			alerts = append(alerts, a)
		}
	}
	return alerts, nil
}

// evaluateFile inspects one (hostname, exe_path) group. The group needs
// both a file-creation event (pid == 0) and an execution event (pid > 0);
// dwell time is the whole days between the earliest of each.
func (d *DormancyDetector) evaluateFile(rc *RunContext, host, exe string, events []*core.Event) *core.Alert {
	var creations, executions []*core.Event
	for _, e := range events {
		if e.PID == 0 {
			creations = append(creations, e)
		} else if e.PID > 0 {
			executions = append(executions, e)
		}
	}
	if len(creations) == 0 || len(executions) == 0 {
		return nil
	}

	firstSeen := creations[0].Timestamp
	for _, e := range creations[1:] {
		if e.Timestamp.Before(firstSeen) {
			firstSeen = e.Timestamp
		}
	}
	firstActive := executions[0].Timestamp
	for _, e := range executions[1:] {
		if e.Timestamp.Before(firstActive) {
			firstActive = e.Timestamp
		}
	}

	dormantDays := WholeDays(firstSeen, firstActive)
	if dormantDays < d.cfg.DaysThreshold {
		return nil
	}

	alias, ok := matchedAlias(executions)
	if !ok || runsFromLegitDir(executions, alias.LegitDir) {
		return nil
	}

	first := executions[0]
	a := core.NewAlert(rc.Now, core.SeverityCritical, "Delayed Execution Pattern", "Long-Term Dwell Time Detection")
	a.Hostname = host
	a.PID = first.PID
	a.ProcessName = first.Name
	a.AssociatedFile = exe
	a.FirstSeen = firstSeen
	a.LastSeen = firstActive
	a.DaysDormant = dormantDays
	a.Timeline = fmt.Sprintf("Process remained dormant for %d days before activation", dormantDays)
	a.Score = float64(dormantDays)
	return a
}

func matchedAlias(executions []*core.Event) (struct{ Alias, LegitDir string }, bool) {
	for _, e := range executions {
		name := strings.ToLower(e.Name)
		for _, alias := range systemProcessAliases {
			if name != "" && strings.Contains(name, alias.Alias) {
				return struct{ Alias, LegitDir string }{alias.Alias, alias.LegitDir}, true
			}
		}
	}
	return struct{ Alias, LegitDir string }{}, false
}

func runsFromLegitDir(executions []*core.Event, legitDir string) bool {
	for _, e := range executions {
		if strings.Contains(strings.ToLower(e.ExePath), legitDir) {
			return true
		}
	}
	return false
}
