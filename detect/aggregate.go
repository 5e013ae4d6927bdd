package detect

import (
	"sort"

	"retrohunt/core"
)

// Results holds each detector's ranked, truncated alert list keyed by
// detector name. A detector that found nothing (or degraded on failure)
// maps to an empty slice, never to an error.
type Results map[string][]*core.Alert

// Total returns the number of alerts across all detectors.
func (r Results) Total() int {
	n := 0
	for _, alerts := range r {
		n += len(alerts)
	}
	return n
}

// rankAndCap orders alerts by the detector's ranking metric descending and
// truncates to max entries. The sort is stable so equal scores keep the
// detector's deterministic emission order.
func rankAndCap(alerts []*core.Alert, max int) []*core.Alert {
	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].Score > alerts[j].Score
	})
	if len(alerts) > max {
		alerts = alerts[:max]
	}
	if alerts == nil {
		return []*core.Alert{}
	}
	return alerts
}
