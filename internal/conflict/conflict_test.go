package conflict

import (
	"testing"
	"time"

	"github.com/dukerupert/almanac/internal/model"
)

func ev(id string, startHour, startMin, endHour, endMin int) *model.Event {
	return &model.Event{
		ID:      id,
		Subject: id,
		Start:   time.Date(2023, 5, 15, startHour, startMin, 0, 0, time.UTC),
		End:     time.Date(2023, 5, 15, endHour, endMin, 0, 0, time.UTC),
	}
}

func TestConflicts(t *testing.T) {
	tests := []struct {
		name string
		a, b *model.Event
		want bool
	}{
		{"partial overlap", ev("a", 10, 0, 11, 0), ev("b", 10, 30, 11, 30), true},
		{"disjoint", ev("a", 10, 0, 11, 0), ev("b", 12, 0, 13, 0), false},
		{"contained", ev("a", 9, 0, 17, 0), ev("b", 12, 0, 13, 0), true},
		{"identical", ev("a", 10, 0, 11, 0), ev("b", 10, 0, 11, 0), true},
		{"adjacent", ev("a", 10, 0, 11, 0), ev("b", 11, 0, 12, 0), true},
		{"one minute gap", ev("a", 10, 0, 11, 0), ev("b", 11, 1, 12, 0), false},
		{"zero length inside", ev("a", 10, 0, 11, 0), ev("b", 10, 15, 10, 15), true},
		{"nil other", ev("a", 10, 0, 11, 0), nil, false},
		{"both nil", nil, nil, false},
	}

	for _, tt := range tests {
		if got := Conflicts(tt.a, tt.b); got != tt.want {
			t.Errorf("%s: Conflicts(a, b) = %v, want %v", tt.name, got, tt.want)
		}
		if got := Conflicts(tt.b, tt.a); got != tt.want {
			t.Errorf("%s: Conflicts(b, a) = %v, want %v (not symmetric)", tt.name, got, tt.want)
		}
	}
}

func TestConflictsWithAny(t *testing.T) {
	existing := []model.Event{
		*ev("standup", 9, 0, 9, 15),
		*ev("lunch", 12, 0, 13, 0),
	}

	if ConflictsWithAny(ev("new", 10, 0, 11, 0), existing) {
		t.Error("10:00–11:00 should be free")
	}
	if !ConflictsWithAny(ev("new", 12, 30, 14, 0), existing) {
		t.Error("12:30–14:00 overlaps lunch")
	}
	if ConflictsWithAny(ev("lunch", 12, 0, 13, 0), existing) {
		t.Error("an event must not conflict with itself")
	}
	if ConflictsWithAny(nil, existing) {
		t.Error("nil event conflicts with nothing")
	}
	if ConflictsWithAny(ev("new", 12, 0, 13, 0), nil) {
		t.Error("empty collection has no conflicts")
	}
}

func TestFind(t *testing.T) {
	existing := []model.Event{
		*ev("a", 9, 0, 10, 0),
		*ev("b", 9, 30, 11, 0),
		*ev("c", 14, 0, 15, 0),
	}
	found := Find(ev("new", 9, 45, 10, 15), existing)
	if len(found) != 2 || found[0].ID != "a" || found[1].ID != "b" {
		t.Errorf("Find = %v, want a and b", found)
	}
}

func TestBusyAt(t *testing.T) {
	existing := []model.Event{*ev("a", 9, 0, 10, 0)}
	at := func(h, m int) time.Time { return time.Date(2023, 5, 15, h, m, 0, 0, time.UTC) }

	if !BusyAt(at(9, 0), existing) || !BusyAt(at(10, 0), existing) || !BusyAt(at(9, 30), existing) {
		t.Error("instants inside [9:00, 10:00] should be busy")
	}
	if BusyAt(at(10, 1), existing) {
		t.Error("10:01 should be available")
	}
}
