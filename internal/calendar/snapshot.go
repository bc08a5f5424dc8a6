package calendar

import (
	"fmt"
	"sort"
	"time"

	"github.com/dukerupert/almanac/internal/model"
	"github.com/dukerupert/almanac/internal/recurrence"
)

// Snapshot is the persistent form of a Manager.
type Snapshot struct {
	Current   string             `json:"current,omitempty"`
	Calendars []CalendarSnapshot `json:"calendars"`
}

type CalendarSnapshot struct {
	Name     string           `json:"name"`
	Timezone string           `json:"timezone"`
	Events   []model.Event    `json:"events"`
	Series   []SeriesSnapshot `json:"series"`
}

// SeriesSnapshot stores a pattern with its repeat rule in RRULE form.
type SeriesSnapshot struct {
	ID          string             `json:"id"`
	Subject     string             `json:"subject"`
	Start       time.Time          `json:"start"`
	End         time.Time          `json:"end"`
	Rule        string             `json:"rule"`
	AllDay      bool               `json:"all_day"`
	Description string             `json:"description"`
	Location    string             `json:"location"`
	Public      bool               `json:"public"`
	Overrides   []OverrideSnapshot `json:"overrides,omitempty"`
}

type OverrideSnapshot struct {
	Date  string      `json:"date"`
	Event model.Event `json:"event"`
}

// Snapshot captures every calendar.
func (m *Manager) Snapshot() Snapshot {
	snap := Snapshot{Current: m.current, Calendars: []CalendarSnapshot{}}
	for _, cal := range m.Calendars() {
		cs := CalendarSnapshot{
			Name:     cal.name,
			Timezone: cal.loc.String(),
			Events:   cal.Standalone(),
			Series:   []SeriesSnapshot{},
		}
		for _, s := range cal.series {
			p := s.Pattern
			ss := SeriesSnapshot{
				ID:          p.ID,
				Subject:     p.Subject,
				Start:       p.Start,
				End:         p.End,
				Rule:        p.RRule(),
				AllDay:      p.AllDay,
				Description: p.Description,
				Location:    p.Location,
				Public:      p.Public,
			}
			for date, ov := range s.Overrides {
				ss.Overrides = append(ss.Overrides, OverrideSnapshot{Date: date, Event: ov})
			}
			sort.Slice(ss.Overrides, func(i, j int) bool { return ss.Overrides[i].Date < ss.Overrides[j].Date })
			cs.Series = append(cs.Series, ss)
		}
		snap.Calendars = append(snap.Calendars, cs)
	}
	return snap
}

// Restore replaces every calendar with the contents of snap. On error the
// manager is left unchanged.
func (m *Manager) Restore(snap Snapshot) error {
	calendars := make(map[string]*Calendar, len(snap.Calendars))
	for _, cs := range snap.Calendars {
		cal, err := restoreCalendar(cs)
		if err != nil {
			return fmt.Errorf("restore calendar %q: %w", cs.Name, err)
		}
		if _, ok := calendars[cal.name]; ok {
			return fmt.Errorf("restore calendar %q: %w", cs.Name, ErrDuplicateCalendar)
		}
		calendars[cal.name] = cal
	}
	if _, ok := calendars[snap.Current]; snap.Current != "" && !ok {
		return fmt.Errorf("current calendar %q: %w", snap.Current, ErrNotFound)
	}

	m.calendars = calendars
	m.current = snap.Current
	m.logger.Debug("calendars restored", "count", len(calendars))
	return nil
}

func restoreCalendar(cs CalendarSnapshot) (*Calendar, error) {
	loc, err := LoadLocation(cs.Timezone)
	if err != nil {
		return nil, err
	}
	cal := New(cs.Name, loc)

	for _, e := range cs.Events {
		if err := cal.AddEvent(e, false); err != nil {
			return nil, err
		}
	}
	for _, ss := range cs.Series {
		base := recurrence.Pattern{
			ID:          ss.ID,
			Subject:     ss.Subject,
			Start:       ss.Start.In(loc),
			End:         ss.End.In(loc),
			AllDay:      ss.AllDay,
			Description: ss.Description,
			Location:    ss.Location,
			Public:      ss.Public,
		}
		if base.AllDay {
			base.Start = model.StartOfDay(wallClock(ss.Start, loc))
			base.End = model.EndOfDay(base.Start)
		}
		p, err := recurrence.ParseRule(ss.Rule, base)
		if err != nil {
			return nil, err
		}
		if _, err := cal.AddSeries(p, false); err != nil {
			return nil, err
		}
		for _, ov := range ss.Overrides {
			date, err := model.ParseDate(ov.Date, loc)
			if err != nil {
				return nil, err
			}
			if err := cal.PutOverride(p.ID, date, ov.Event); err != nil {
				return nil, err
			}
		}
	}
	return cal, nil
}
