package reminder

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dukerupert/almanac/internal/calendar"
	"github.com/dukerupert/almanac/internal/model"
)

type managerSource struct {
	mgr *calendar.Manager
}

func (s managerSource) View(fn func(mgr *calendar.Manager) error) error {
	return fn(s.mgr)
}

func newSource(t *testing.T, now time.Time) managerSource {
	t.Helper()
	mgr := calendar.NewManager(slog.New(slog.NewTextHandler(io.Discard, nil)), false)
	cal, err := mgr.CreateCalendar("work", "America/New_York")
	if err != nil {
		t.Fatalf("create calendar: %v", err)
	}
	add := func(subject string, start, end time.Time) {
		e, err := model.NewEvent(subject, start, end)
		if err != nil {
			t.Fatalf("new event %s: %v", subject, err)
		}
		if err := cal.AddEvent(*e, false); err != nil {
			t.Fatalf("add event %s: %v", subject, err)
		}
	}
	add("Soon", now.Add(5*time.Minute), now.Add(35*time.Minute))
	add("Later", now.Add(2*time.Hour), now.Add(3*time.Hour))
	add("Running", now.Add(-10*time.Minute), now.Add(20*time.Minute))
	return managerSource{mgr: mgr}
}

func TestTickAnnouncesOnce(t *testing.T) {
	loc, _ := time.LoadLocation("America/New_York")
	now := time.Date(2024, 3, 4, 9, 0, 0, 0, loc)

	var got []string
	s := NewScheduler(newSource(t, now), 10*time.Minute, func(cal string, e model.Event) {
		got = append(got, cal+":"+e.Subject)
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.now = func() time.Time { return now }

	if n := s.Tick(); n != 1 {
		t.Fatalf("first tick announced %d, want 1", n)
	}
	if len(got) != 1 || got[0] != "work:Soon" {
		t.Errorf("notified %v, want [work:Soon]", got)
	}
	if n := s.Tick(); n != 0 {
		t.Errorf("second tick announced %d, want 0", n)
	}

	now = now.Add(115 * time.Minute)
	if n := s.Tick(); n != 1 {
		t.Errorf("tick before Later announced %d, want 1", n)
	}
	if len(s.sent) != 1 {
		t.Errorf("sent entries = %d, want 1 after pruning", len(s.sent))
	}
}

func TestStartStop(t *testing.T) {
	now := time.Now()
	called := make(chan string, 1)
	s := NewScheduler(newSource(t, now), 10*time.Minute, func(_ string, e model.Event) {
		called <- e.Subject
	}, nil)

	s.Start(context.Background())
	select {
	case subject := <-called:
		if subject != "Soon" {
			t.Errorf("subject = %q, want Soon", subject)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no reminder from initial tick")
	}
	s.Stop()
}
