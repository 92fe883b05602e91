package avail

import (
	"sort"
	"time"

	"github.com/example/calhub/internal/model"
)

// DefaultCommonMinDuration is the minimum shared gap reported when the
// caller does not specify one.
const DefaultCommonMinDuration = 30 * time.Minute

// MergeBusy clips the busy periods to the window, sorts them, and merges
// every overlapping or boundary-touching pair. Touching intervals must
// merge: a meeting ending 10:00 and another starting 10:00 leave no gap.
func MergeBusy(periods []model.BusyPeriod, window model.TimeRange) []model.BusyPeriod {
	clipped := make([]model.BusyPeriod, 0, len(periods))
	for _, p := range periods {
		start, end := p.Start, p.End
		if start.Before(window.Start) {
			start = window.Start
		}
		if end.After(window.End) {
			end = window.End
		}
		if end.After(start) {
			clipped = append(clipped, model.BusyPeriod{Start: start, End: end})
		}
	}
	sort.Slice(clipped, func(i, j int) bool { return clipped[i].Start.Before(clipped[j].Start) })

	var merged []model.BusyPeriod
	for _, p := range clipped {
		if n := len(merged); n > 0 && !p.Start.After(merged[n-1].End) {
			if p.End.After(merged[n-1].End) {
				merged[n-1].End = p.End
			}
			continue
		}
		merged = append(merged, p)
	}
	return merged
}

// CommonFree subtracts the pooled busy periods of every participant from the
// window and returns the gaps of at least minDuration. Periods are merged
// across participants before subtraction; subtracting per person and
// intersecting afterwards is wrong at touching boundaries.
func CommonFree(busy []model.BusyPeriod, window model.TimeRange, minDuration time.Duration) []model.CommonFreeSlot {
	if minDuration <= 0 {
		minDuration = DefaultCommonMinDuration
	}
	merged := MergeBusy(busy, window)

	var out []model.CommonFreeSlot
	emit := func(start, end time.Time) {
		if end.Sub(start) >= minDuration {
			out = append(out, model.CommonFreeSlot{
				Start:           start,
				End:             end,
				DurationMinutes: int(end.Sub(start).Minutes()),
			})
		}
	}

	cursor := window.Start
	for _, p := range merged {
		if p.Start.After(cursor) {
			emit(cursor, p.Start)
		}
		if p.End.After(cursor) {
			cursor = p.End
		}
	}
	if window.End.After(cursor) {
		emit(cursor, window.End)
	}
	return out
}
