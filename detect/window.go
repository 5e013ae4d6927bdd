package detect

import (
	"sort"
	"time"

	"retrohunt/core"
)

// Lookback returns the events whose timestamp falls within the last `days`
// days before now, inclusive of the boundary. Events with a null timestamp
// are excluded. Corpus order is preserved; detectors that care about order
// of appearance rely on that.
func Lookback(corpus []core.Event, now time.Time, days int) []core.Event {
	cutoff := now.AddDate(0, 0, -days)
	out := make([]core.Event, 0, len(corpus))
	for _, e := range corpus {
		if e.HasTimestamp() && !e.Timestamp.Before(cutoff) {
			out = append(out, e)
		}
	}
	return out
}

// SplitBaselineRecent partitions the corpus into a historical baseline
// window and a recent window. The baseline spans [now-recentDays-baselineDays,
// now-recentDays] and the recent window everything after: the recent window
// starts exactly where the baseline ends, with no overlap and no gap. Both
// partitions are returned in ascending timestamp order.
func SplitBaselineRecent(corpus []core.Event, now time.Time, baselineDays, recentDays int) (baseline, recent []core.Event) {
	boundary := now.AddDate(0, 0, -recentDays)
	start := boundary.AddDate(0, 0, -baselineDays)
	for _, e := range corpus {
		if !e.HasTimestamp() {
			continue
		}
		switch {
		case !e.Timestamp.Before(start) && !e.Timestamp.After(boundary):
			baseline = append(baseline, e)
		case e.Timestamp.After(boundary):
			recent = append(recent, e)
		}
	}
	sortByTimestamp(baseline)
	sortByTimestamp(recent)
	return baseline, recent
}

func sortByTimestamp(events []core.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
}

// IsWeekend reports whether t falls on a Saturday or Sunday, using the
// event's own clock rather than the run clock.
func IsWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// HourOfDay returns t's hour in [0,23].
func HourOfDay(t time.Time) int {
	return t.Hour()
}

// WholeDays returns the number of whole days from a to b, truncated toward
// zero. Negative when b precedes a.
func WholeDays(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}

// PerGroupMean computes the mean of valFn over the events sharing each
// keyFn value. Used for per-entity traffic baselines.
func PerGroupMean(events []core.Event, keyFn func(*core.Event) string, valFn func(*core.Event) float64) map[string]float64 {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for i := range events {
		k := keyFn(&events[i])
		sums[k] += valFn(&events[i])
		counts[k]++
	}
	means := make(map[string]float64, len(sums))
	for k, sum := range sums {
		means[k] = sum / float64(counts[k])
	}
	return means
}
