package store

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dukerupert/almanac/internal/calendar"
	"github.com/dukerupert/almanac/internal/model"
	"github.com/dukerupert/almanac/internal/recurrence"
)

func seedManager(t *testing.T) *calendar.Manager {
	t.Helper()
	m := calendar.NewManager(slog.New(slog.NewTextHandler(io.Discard, nil)), false)
	work, err := m.CreateCalendar("work", "America/New_York")
	if err != nil {
		t.Fatalf("create calendar: %v", err)
	}
	if _, err := m.CreateCalendar("home", "Europe/London"); err != nil {
		t.Fatalf("create calendar: %v", err)
	}
	if err := m.Use("work"); err != nil {
		t.Fatalf("use: %v", err)
	}

	loc := work.Location()
	e, err := model.NewEvent("Review", time.Date(2023, 5, 15, 10, 0, 0, 0, loc), time.Date(2023, 5, 15, 11, 0, 0, 0, loc))
	if err != nil {
		t.Fatalf("new event: %v", err)
	}
	e.Location = "Room 1"
	e.Public = false
	if err := work.AddEvent(*e, false); err != nil {
		t.Fatalf("add event: %v", err)
	}

	days, _ := recurrence.ParseWeekdays("MWF")
	p, err := recurrence.NewPattern(recurrence.PatternConfig{
		Subject: "Standup",
		Start:   time.Date(2023, 5, 1, 9, 0, 0, 0, loc),
		End:     time.Date(2023, 5, 1, 9, 15, 0, 0, loc),
		Days:    days,
		Until:   time.Date(2023, 5, 12, 0, 0, 0, 0, loc),
		Public:  true,
	})
	if err != nil {
		t.Fatalf("new pattern: %v", err)
	}
	if _, err := work.AddSeries(p, false); err != nil {
		t.Fatalf("add series: %v", err)
	}
	_, err = work.EditEvent(calendar.PropSubject, "Standup",
		time.Date(2023, 5, 3, 9, 0, 0, 0, loc), time.Date(2023, 5, 3, 9, 15, 0, 0, loc), "Planning")
	if err != nil {
		t.Fatalf("edit occurrence: %v", err)
	}
	return m
}

func TestCalendarStoreLoadEmpty(t *testing.T) {
	cs := NewCalendarStore(setupTestDB(t))

	snap, err := cs.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(snap.Calendars) != 0 || snap.Current != "" {
		t.Errorf("Load on new db = %+v, want empty snapshot", snap)
	}
}

func TestCalendarStoreRoundTrip(t *testing.T) {
	cs := NewCalendarStore(setupTestDB(t))
	m := seedManager(t)

	if err := cs.Save(m.Snapshot()); err != nil {
		t.Fatalf("save: %v", err)
	}
	snap, err := cs.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	restored := calendar.NewManager(slog.New(slog.NewTextHandler(io.Discard, nil)), false)
	if err := restored.Restore(snap); err != nil {
		t.Fatalf("restore: %v", err)
	}

	cur, err := restored.Current()
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if cur.Name() != "work" {
		t.Errorf("current = %q, want work", cur.Name())
	}

	orig, _ := m.Calendar("work")
	want := orig.Events()
	got := cur.Events()
	if len(got) != len(want) {
		t.Fatalf("got %d events, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].ID != want[i].ID || got[i].Subject != want[i].Subject ||
			!got[i].Start.Equal(want[i].Start) || !got[i].End.Equal(want[i].End) ||
			got[i].Location != want[i].Location || got[i].Public != want[i].Public {
			t.Errorf("event %d = %+v, want %+v", i, got[i], want[i])
		}
	}
	if got[1].Subject != "Planning" {
		t.Errorf("override subject = %q, want Planning", got[1].Subject)
	}
}

func TestCalendarStoreSaveReplaces(t *testing.T) {
	cs := NewCalendarStore(setupTestDB(t))
	m := seedManager(t)
	if err := cs.Save(m.Snapshot()); err != nil {
		t.Fatalf("save: %v", err)
	}

	if err := m.EditCalendar("home", calendar.PropName, "house"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if err := cs.Save(m.Snapshot()); err != nil {
		t.Fatalf("save again: %v", err)
	}

	snap, err := cs.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(snap.Calendars) != 2 {
		t.Fatalf("got %d calendars, want 2", len(snap.Calendars))
	}
	if snap.Calendars[0].Name != "house" || snap.Calendars[1].Name != "work" {
		t.Errorf("calendars = %q, %q, want house, work", snap.Calendars[0].Name, snap.Calendars[1].Name)
	}
}
