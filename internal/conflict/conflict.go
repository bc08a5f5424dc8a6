// Package conflict decides whether calendar events overlap.
//
// Intervals are treated as closed: an event ending at 11:00 conflicts with one
// starting at 11:00. Back-to-back bookings therefore count as busy against
// each other.
package conflict

import (
	"time"

	"github.com/dukerupert/almanac/internal/model"
)

// Overlaps reports whether [start1, end1] and [start2, end2] share an instant.
func Overlaps(start1, end1, start2, end2 time.Time) bool {
	return !start1.After(end2) && !start2.After(end1)
}

// Conflicts reports whether a and b overlap. A nil event conflicts with nothing.
func Conflicts(a, b *model.Event) bool {
	if a == nil || b == nil {
		return false
	}
	return Overlaps(a.Start, a.End, b.Start, b.End)
}

// ConflictsWithAny reports whether e conflicts with at least one member of
// events. Members sharing e's id are the same event and are skipped.
func ConflictsWithAny(e *model.Event, events []model.Event) bool {
	return len(Find(e, events)) > 0
}

// Find returns the members of events that conflict with e.
func Find(e *model.Event, events []model.Event) []model.Event {
	if e == nil {
		return nil
	}
	var found []model.Event
	for i := range events {
		other := &events[i]
		if e.ID != "" && other.ID == e.ID {
			continue
		}
		if Conflicts(e, other) {
			found = append(found, *other)
		}
	}
	return found
}

// BusyAt reports whether any event contains the instant t.
func BusyAt(t time.Time, events []model.Event) bool {
	for _, e := range events {
		if Overlaps(e.Start, e.End, t, t) {
			return true
		}
	}
	return false
}
