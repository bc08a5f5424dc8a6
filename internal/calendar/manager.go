package calendar

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/almanac/internal/model"
)

// Manager holds the named calendars and tracks the one in use.
// It is not safe for concurrent use; callers serialize access.
type Manager struct {
	logger      *slog.Logger
	autoDecline bool
	calendars   map[string]*Calendar
	current     string
}

// NewManager returns an empty manager. autoDecline applies to copied events.
func NewManager(logger *slog.Logger, autoDecline bool) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		logger:      logger.With("component", "calendar"),
		autoDecline: autoDecline,
		calendars:   make(map[string]*Calendar),
	}
}

func (m *Manager) AutoDecline() bool {
	return m.autoDecline
}

// LoadLocation resolves an IANA zone name. "Local" and the empty string are
// rejected so calendars never depend on the host zone.
func LoadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == "Local" {
		return nil, fmt.Errorf("timezone %q: %w", name, ErrInvalidProperty)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w: %w", name, ErrInvalidProperty, err)
	}
	return loc, nil
}

// CreateCalendar adds an empty calendar in the named zone.
func (m *Manager) CreateCalendar(name, timezone string) (*Calendar, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("calendar name is required: %w", ErrInvalidProperty)
	}
	if _, ok := m.calendars[name]; ok {
		return nil, fmt.Errorf("calendar %q: %w", name, ErrDuplicateCalendar)
	}
	loc, err := LoadLocation(timezone)
	if err != nil {
		return nil, err
	}

	cal := New(name, loc)
	m.calendars[name] = cal
	m.logger.Debug("calendar created", "name", name, "timezone", loc.String())
	return cal, nil
}

// EditCalendar renames a calendar or moves it to another timezone.
func (m *Manager) EditCalendar(name string, prop Property, value string) error {
	cal, err := m.Calendar(name)
	if err != nil {
		return err
	}

	switch prop {
	case PropName:
		newName := strings.TrimSpace(value)
		if newName == "" {
			return fmt.Errorf("calendar name is required: %w", ErrInvalidProperty)
		}
		if newName == name {
			return nil
		}
		if _, ok := m.calendars[newName]; ok {
			return fmt.Errorf("calendar %q: %w", newName, ErrDuplicateCalendar)
		}
		delete(m.calendars, name)
		cal.name = newName
		m.calendars[newName] = cal
		if m.current == name {
			m.current = newName
		}
		m.logger.Debug("calendar renamed", "from", name, "to", newName)
		return nil

	case PropTimezone:
		loc, err := LoadLocation(value)
		if err != nil {
			return err
		}
		if err := cal.ConvertTo(loc); err != nil {
			return fmt.Errorf("move calendar %q to %s: %w", name, loc, err)
		}
		m.logger.Debug("calendar timezone changed", "name", name, "timezone", loc.String())
		return nil
	}
	return fmt.Errorf("%q cannot be edited on a calendar: %w", prop, ErrInvalidProperty)
}

// ParseCalendarProperty maps a user-supplied calendar property name.
func ParseCalendarProperty(s string) (Property, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "name":
		return PropName, nil
	case "timezone", "tz":
		return PropTimezone, nil
	}
	return "", fmt.Errorf("unknown calendar property %q: %w", s, ErrInvalidProperty)
}

// Use makes the named calendar current.
func (m *Manager) Use(name string) error {
	if _, err := m.Calendar(name); err != nil {
		return err
	}
	m.current = name
	return nil
}

// Current returns the calendar in use.
func (m *Manager) Current() (*Calendar, error) {
	if m.current == "" {
		return nil, ErrNoCalendar
	}
	return m.Calendar(m.current)
}

func (m *Manager) Calendar(name string) (*Calendar, error) {
	cal, ok := m.calendars[name]
	if !ok {
		return nil, fmt.Errorf("calendar %q: %w", name, ErrNotFound)
	}
	return cal, nil
}

// Calendars returns every calendar ordered by name.
func (m *Manager) Calendars() []*Calendar {
	out := make([]*Calendar, 0, len(m.calendars))
	for _, cal := range m.calendars {
		out = append(out, cal)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// CopyEvent copies the event with subject starting at start from the current
// calendar into target, so that it starts at newStart in target's zone and
// keeps its duration.
func (m *Manager) CopyEvent(subject string, start time.Time, target string, newStart time.Time) (model.Event, error) {
	src, err := m.Current()
	if err != nil {
		return model.Event{}, err
	}
	dst, err := m.Calendar(target)
	if err != nil {
		return model.Event{}, err
	}

	matches := src.Find(subject, start)
	switch len(matches) {
	case 0:
		return model.Event{}, fmt.Errorf("event %q at %s: %w", subject, start.Format(model.DateTimeLayout), ErrNotFound)
	case 1:
	default:
		return model.Event{}, fmt.Errorf("event %q at %s: %w", subject, start.Format(model.DateTimeLayout), ErrAmbiguous)
	}

	e := copyOf(matches[0])
	if e.AllDay {
		e.Start = model.StartOfDay(wallClock(newStart, dst.loc))
		e.End = model.EndOfDay(e.Start)
	} else {
		d := e.Duration()
		e.Start = wallClock(newStart, dst.loc)
		e.End = e.Start.Add(d)
	}
	if err := dst.AddEvent(e, m.autoDecline); err != nil {
		return model.Event{}, err
	}
	m.logger.Debug("event copied", "subject", subject, "to", target)
	return e, nil
}

// CopyEventsOn copies every event on the current calendar's day date to
// target's day targetDate. Times of day are kept and converted into target's
// zone, so an event may land on an adjacent day.
func (m *Manager) CopyEventsOn(date time.Time, target string, targetDate time.Time) (int, error) {
	src, err := m.Current()
	if err != nil {
		return 0, err
	}
	day := model.StartOfDay(wallClock(date, src.loc))
	return m.copyRange(src, day, model.EndOfDay(day), target, targetDate)
}

// CopyEventsBetween copies every event overlapping the current calendar's
// dates [from, to] into target, with the interval shifted to begin on
// targetDate.
func (m *Manager) CopyEventsBetween(from, to time.Time, target string, targetDate time.Time) (int, error) {
	src, err := m.Current()
	if err != nil {
		return 0, err
	}
	first := model.StartOfDay(wallClock(from, src.loc))
	last := model.EndOfDay(wallClock(to, src.loc))
	return m.copyRange(src, first, last, target, targetDate)
}

// copyRange copies the events overlapping [first, last] of src into target,
// shifted by the number of days between first and targetDate. Either every
// event is copied or none is.
func (m *Manager) copyRange(src *Calendar, first, last time.Time, target string, targetDate time.Time) (int, error) {
	dst, err := m.Calendar(target)
	if err != nil {
		return 0, err
	}
	events, err := src.EventsBetween(first, last)
	if err != nil {
		return 0, err
	}
	shift := model.DaysBetween(first, targetDate)

	err = dst.update(func(next *Calendar) error {
		for _, orig := range events {
			e := copyOf(orig)
			if e.AllDay {
				day := wallClock(model.StartOfDay(e.Start), next.loc).AddDate(0, 0, shift)
				e.Start = model.StartOfDay(day)
				e.End = model.EndOfDay(day)
			} else {
				e.Start = e.Start.In(next.loc).AddDate(0, 0, shift)
				e.End = e.End.In(next.loc).AddDate(0, 0, shift)
			}
			if err := next.AddEvent(e, m.autoDecline); err != nil {
				return fmt.Errorf("copy %q: %w", orig.Subject, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	m.logger.Debug("events copied", "count", len(events), "to", target)
	return len(events), nil
}

// copyOf detaches e from its calendar: it gets a new id and no series.
func copyOf(e model.Event) model.Event {
	e.ID = uuid.NewString()
	e.SeriesID = ""
	return e
}
