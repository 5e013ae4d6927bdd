package detect

import (
	"fmt"
	"sort"
	"time"

	"retrohunt/config"
	"retrohunt/core"
)

// Beaconing traffic profile: small outbound bursts below this many bytes.
const beaconMaxOutboundBytes = 10000

// Daily connection ceiling for a (entity, remote address, day) combination
// to still look like a periodic check-in rather than bulk traffic.
const beaconMaxDailyConnections = 3

// Off-hours band for check-ins, inclusive.
const (
	beaconOffHoursStart = 1
	beaconOffHoursEnd   = 5
)

// BeaconingDetector finds low-volume, highly regular outbound connections:
// an entity talking to the same remote address on almost every day of its
// observed span, mostly in the small hours, a few connections per day.
type BeaconingDetector struct {
	cfg config.BeaconingConfig
}

func NewBeaconingDetector(cfg config.BeaconingConfig) *BeaconingDetector {
	return &BeaconingDetector{cfg: cfg}
}

func (d *BeaconingDetector) Name() string { return "beaconing" }

type beaconEntity struct {
	host string
	pid  int64
	name string
	ip   string
}

type beaconDay struct {
	entity beaconEntity
	day    time.Time
}

func (d *BeaconingDetector) Run(rc *RunContext, corpus []core.Event) ([]*core.Alert, error) {
	window := Lookback(corpus, rc.Now, d.cfg.LookbackDays)

	// Explode to (entity, remote address, day) granularity, counting
	// connections and off-hours connections per day.
	type dayStats struct {
		connections int
		offHours    int
	}
	daily := make(map[beaconDay]*dayStats)
	for i := range window {
		e := &window[i]
		if e.ConnCount <= 0 || e.OutboundBytes <= 0 || e.OutboundBytes >= beaconMaxOutboundBytes {
			continue
		}
		if len(e.RemoteIPs) == 0 {
			continue
		}
		hour := HourOfDay(e.Timestamp)
		off := 0
		if hour >= beaconOffHoursStart && hour <= beaconOffHoursEnd {
			off = 1
		}
		for _, ip := range e.RemoteIPs {
			k := beaconDay{
				entity: beaconEntity{host: e.Hostname, pid: e.PID, name: e.Name, ip: ip},
				day:    e.Day(),
			}
			stats := daily[k]
			if stats == nil {
				stats = &dayStats{}
				daily[k] = stats
			}
			stats.connections++
			stats.offHours += off
		}
	}

	// Keep beacon-like days only, then fold into per-entity summaries.
	type entityStats struct {
		days     map[time.Time]struct{}
		offTotal int
	}
	entities := make(map[beaconEntity]*entityStats)
	for k, stats := range daily {
		if stats.connections > beaconMaxDailyConnections {
			continue
		}
		es := entities[k.entity]
		if es == nil {
			es = &entityStats{days: make(map[time.Time]struct{})}
			entities[k.entity] = es
		}
		es.days[k.day] = struct{}{}
		es.offTotal += stats.offHours
	}

	keys := make([]beaconEntity, 0, len(entities))
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
		daysActive := len(es.days)
		if daysActive <= 1 {
			// A single active day has no span to measure consistency over.
			continue
		}

		minDay, maxDay := dayBounds(es.days)
		spanDays := WholeDays(minDay, maxDay) + 1
		consistency := float64(daysActive) / float64(spanDays)

		if daysActive < d.cfg.ActiveDaysThreshold ||
			consistency <= d.cfg.ConsistencyThreshold ||
			float64(es.offTotal) <= float64(daysActive)*0.5 {
			continue
		}

		a := core.NewAlert(rc.Now, core.SeverityHigh, "Consistent Temporal Beaconing", "Temporal Networking Anomaly")
		a.Hostname = k.host
		a.PID = k.pid
		a.ProcessName = k.name
		a.Destination = k.ip
		a.DaysActive = daysActive
		a.Consistency = consistency
		a.Timeline = fmt.Sprintf("24-hour precise connection intervals over %d days", daysActive)
		a.TrafficPattern = "Small 15-second bursts every 24 hours"
		a.Score = float64(daysActive)
		alerts = append(alerts, a)
	}
	return alerts, nil
}

func dayBounds(days map[time.Time]struct{}) (min, max time.Time) {
	first := true
	for day := range days {
		if first {
			min, max = day, day
			first = false
			continue
		}
		if day.Before(min) {
			min = day
		}
		if day.After(max) {
			max = day
		}
	}
	return min, max
}
