package detect

import (
	"fmt"
	"sort"
	"time"

	"retrohunt/config"
	"retrohunt/core"
)

// Exfiltration thresholds: a day counts as elevated when its outbound total
// exceeds this multiple of the entity's own mean, and a pattern only
// qualifies above the raw byte floor with weekend traffic dominating
// weekday traffic by the given factor.
const (
	exfilBaselineMultiplier = 1.5
	exfilWeekendFactor      = 3.0
	exfilMinTotalBytes      = 1000000
)

// ExfiltrationDetector finds processes sending far more data than their own
// historical norm, concentrated on weekends, toward a single remote address.
type ExfiltrationDetector struct {
	cfg config.ExfiltrationConfig
}

func NewExfiltrationDetector(cfg config.ExfiltrationConfig) *ExfiltrationDetector {
	return &ExfiltrationDetector{cfg: cfg}
}

func (d *ExfiltrationDetector) Name() string { return "exfiltration" }

type exfilEntity struct {
	host string
	pid  int64
	name string
	ip   string
}

func (d *ExfiltrationDetector) Run(rc *RunContext, corpus []core.Event) ([]*core.Alert, error) {
	window := Lookback(corpus, rc.Now, d.cfg.LookbackDays)

	traffic := make([]core.Event, 0, len(window))
	for _, e := range window {
		if e.OutboundBytes > 0 && len(e.RemoteIPs) > 0 {
			traffic = append(traffic, e)
		}
	}
	if len(traffic) == 0 {
		return nil, nil
	}

	// Per-entity baseline: mean outbound bytes per event over the full
	// lookback window, before the per-address explosion.
	baseline := PerGroupMean(traffic,
		func(e *core.Event) string {
			return fmt.Sprintf("%s\x00%s\x00%d", e.Hostname, e.Name, e.PID)
		},
		func(e *core.Event) float64 { return float64(e.OutboundBytes) },
	)

	// Daily totals at (entity, remote address, date) granularity.
	type dailyKey struct {
		entity exfilEntity
		date   time.Time
	}
	dailyBytes := make(map[dailyKey]int64)
	dailyWeekend := make(map[dailyKey]bool)
	for i := range traffic {
		e := &traffic[i]
		for _, ip := range e.RemoteIPs {
			k := dailyKey{
				entity: exfilEntity{host: e.Hostname, pid: e.PID, name: e.Name, ip: ip},
				date:   e.Day(),
			}
			dailyBytes[k] += e.OutboundBytes
			dailyWeekend[k] = IsWeekend(e.Timestamp)
		}
	}

	// Keep the days that exceed the entity's baseline, then fold into
	// weekend/weekday aggregates per (entity, remote address).
	type exfilStats struct {
		weekendDates map[time.Time]struct{}
		weekdayDates map[time.Time]struct{}
		weekendBytes int64
		weekdayBytes int64
	}
	entities := make(map[exfilEntity]*exfilStats)
	for k, bytes := range dailyBytes {
		mean := baseline[fmt.Sprintf("%s\x00%s\x00%d", k.entity.host, k.entity.name, k.entity.pid)]
		if float64(bytes) <= mean*exfilBaselineMultiplier {
			continue
		}
		es := entities[k.entity]
		if es == nil {
			es = &exfilStats{
				weekendDates: make(map[time.Time]struct{}),
				weekdayDates: make(map[time.Time]struct{}),
			}
			entities[k.entity] = es
		}
		if dailyWeekend[k] {
			es.weekendDates[k.date] = struct{}{}
			es.weekendBytes += bytes
		} else {
			es.weekdayDates[k.date] = struct{}{}
			es.weekdayBytes += bytes
		}
	}

	keys := make([]exfilEntity, 0, len(entities))
	for k := range entities {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.host != b.host {
			return a.host < b.host
		}
		if a.pid != b.pid {
			return a.pid < b.pid
		}
		if a.name != b.name {
			return a.name < b.name
		}
		return a.ip < b.ip
	})

	var alerts []*core.Alert
	for _, k := range keys {
		es := entities[k]
		weekendDays := len(es.weekendDates)
		weekdayDays := len(es.weekdayDates)
		totalBytes := es.weekendBytes + es.weekdayBytes

		var weekendAvg, weekdayAvg float64
		if weekendDays > 0 {
			weekendAvg = float64(es.weekendBytes) / float64(weekendDays)
		}
		if weekdayDays > 0 {
			weekdayAvg = float64(es.weekdayBytes) / float64(weekdayDays)
		}

		if weekendDays == 0 || weekendAvg <= weekdayAvg*exfilWeekendFactor || totalBytes <= exfilMinTotalBytes {
			continue
		}

		a := core.NewAlert(rc.Now, core.SeverityCritical, "Data Exfiltration via Steganography", "Weekend Exfiltration Detection")
		a.Hostname = k.host
		a.PID = k.pid
		a.ProcessName = k.name
		a.Destination = k.ip
		a.TotalBytes = totalBytes
		a.DataVolume = fmt.Sprintf("~%.1fMB total", float64(totalBytes)/1048576)
		a.Timeline = "Weekend-only outbound data transfer"
		a.Score = float64(totalBytes)
		alerts = append(alerts, a)
	}
	return alerts, nil
}
