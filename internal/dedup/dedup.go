// Package dedup collapses event lists fetched from multiple backends into
// one unique list.
//
// The survivor policy is first-occurrence-wins and it is load-bearing: the
// concatenation order of the input determines which backend's copy of a
// double-booked event (and therefore whose location, calendar name and event
// type) the user sees. Fields are never merged across copies.
package dedup

import (
	"strings"

	"github.com/example/calhub/internal/model"
)

// Deduplicate returns the input with duplicates of earlier events removed,
// preserving order. Applying it to an already-deduplicated list returns an
// equal list.
//
// O(n^2) pairwise comparison; event lists per query window are tens to low
// hundreds.
func Deduplicate(events []model.CalendarEvent) []model.CalendarEvent {
	kept := make([]model.CalendarEvent, 0, len(events))
	for _, candidate := range events {
		duplicate := false
		for _, existing := range kept {
			if isDuplicate(existing, candidate) {
				duplicate = true
				break
			}
		}
		if !duplicate {
			kept = append(kept, candidate)
		}
	}
	return kept
}

// isDuplicate applies the duplicate test in priority order. When both copies
// carry an iCalUID it is authoritative in both directions: equal UIDs are
// the same logical event, distinct UIDs are distinct events no matter how
// similar they look. The title/start/end heuristic only covers backends that
// do not expose a shared UID.
func isDuplicate(a, b model.CalendarEvent) bool {
	if a.ICalUID != "" && b.ICalUID != "" {
		return a.ICalUID == b.ICalUID
	}
	return strings.EqualFold(a.Title, b.Title) && a.Start.Equal(b.Start) && a.End.Equal(b.End)
}
