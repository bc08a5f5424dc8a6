package calendar

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/almanac/internal/conflict"
	"github.com/dukerupert/almanac/internal/model"
	"github.com/dukerupert/almanac/internal/recurrence"
)

var (
	ErrConflict          = errors.New("conflicts with an existing event")
	ErrNotFound          = errors.New("not found")
	ErrAmbiguous         = errors.New("ambiguous match")
	ErrDuplicateEvent    = errors.New("an event with the same subject, start and end already exists")
	ErrDuplicateCalendar = errors.New("calendar already exists")
	ErrNoCalendar        = errors.New("no calendar in use")
	ErrInvalidProperty   = errors.New("invalid property")
)

// Calendar owns the standalone events and recurring series of one named
// calendar. Every time it holds or returns is in its location.
type Calendar struct {
	name   string
	loc    *time.Location
	events []model.Event
	series []*Series
}

func New(name string, loc *time.Location) *Calendar {
	return &Calendar{name: name, loc: loc}
}

func (c *Calendar) Name() string {
	return c.name
}

func (c *Calendar) Location() *time.Location {
	return c.loc
}

// Standalone returns copies of the non-recurring events.
func (c *Calendar) Standalone() []model.Event {
	out := make([]model.Event, len(c.events))
	copy(out, c.events)
	sortEvents(out)
	return out
}

// Series returns copies of the recurring series.
func (c *Calendar) Series() []Series {
	out := make([]Series, 0, len(c.series))
	for _, s := range c.series {
		out = append(out, *s.clone())
	}
	return out
}

// AddEvent adds a standalone event. With autoDecline the event is rejected if
// it conflicts with anything already on the calendar.
func (c *Calendar) AddEvent(e model.Event, autoDecline bool) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.SeriesID = ""
	e = inZone(e, c.loc)
	if err := e.Validate(); err != nil {
		return err
	}

	return c.update(func(next *Calendar) error {
		if autoDecline {
			if err := declineConflicts(&e, next.Events()); err != nil {
				return err
			}
		}
		next.events = append(next.events, e)
		return next.checkUnique()
	})
}

// AddSeries adds a recurring series and returns its occurrences. With
// autoDecline the whole series is rejected if any occurrence conflicts.
func (c *Calendar) AddSeries(p recurrence.Pattern, autoDecline bool) ([]model.Event, error) {
	if p.ID == "" {
		p.ID = p.Identity()
	}
	if p.Zone() != c.loc {
		p.Start = wallClock(p.Start, c.loc)
		p.End = wallClock(p.End, c.loc)
		if u, ok := p.Terminator.Until.Get(); ok {
			p.Terminator = recurrence.UntilDate(wallClock(u, c.loc))
		}
	}
	occs, err := recurrence.Expand(p)
	if err != nil {
		return nil, err
	}

	err = c.update(func(next *Calendar) error {
		for _, s := range next.series {
			if s.Pattern.ID == p.ID {
				return fmt.Errorf("series %s: %w", p.ID, ErrDuplicateEvent)
			}
		}
		if autoDecline {
			existing := next.Events()
			for i := range occs {
				if err := declineConflicts(&occs[i], existing); err != nil {
					return err
				}
			}
		}
		next.series = append(next.series, &Series{Pattern: p, Overrides: map[string]model.Event{}})
		return next.checkUnique()
	})
	if err != nil {
		return nil, err
	}
	return occs, nil
}

// PutOverride replaces the occurrence of a series on date with e.
func (c *Calendar) PutOverride(seriesID string, date time.Time, e model.Event) error {
	return c.update(func(next *Calendar) error {
		s := next.findSeries(seriesID)
		if s == nil {
			return fmt.Errorf("series %s: %w", seriesID, ErrNotFound)
		}
		occ, ok := s.Pattern.OccurrenceOn(date)
		if !ok {
			return fmt.Errorf("series %s has no occurrence on %s: %w",
				seriesID, date.Format(model.DateLayout), ErrNotFound)
		}
		e = inZone(e, next.loc)
		e.ID = occ.ID
		e.SeriesID = occ.SeriesID
		if err := e.Validate(); err != nil {
			return err
		}
		s.Overrides[dateKey(occ.Start)] = e
		return next.checkUnique()
	})
}

// Events returns every event, with series expanded, ordered by start.
func (c *Calendar) Events() []model.Event {
	out := make([]model.Event, 0, len(c.events))
	out = append(out, c.events...)
	for _, s := range c.series {
		out = append(out, s.events()...)
	}
	sortEvents(out)
	return out
}

// EventsBetween returns the events overlapping [start, end].
func (c *Calendar) EventsBetween(start, end time.Time) ([]model.Event, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("%s is before %s: %w",
			end.Format(model.DateTimeLayout), start.Format(model.DateTimeLayout), recurrence.ErrInvalidRange)
	}

	out := []model.Event{}
	for _, e := range c.events {
		if conflict.Overlaps(e.Start, e.End, start, end) {
			out = append(out, e)
		}
	}
	for _, s := range c.series {
		occs, err := s.eventsBetween(start, end)
		if err != nil {
			return nil, err
		}
		out = append(out, occs...)
	}
	sortEvents(out)
	return out, nil
}

// EventsOn returns the events overlapping the calendar day of date.
func (c *Calendar) EventsOn(date time.Time) []model.Event {
	date = date.In(c.loc)
	out, _ := c.EventsBetween(model.StartOfDay(date), model.EndOfDay(date))
	return out
}

// BusyAt reports whether any event contains the instant t.
func (c *Calendar) BusyAt(t time.Time) bool {
	events, _ := c.EventsBetween(t, t)
	return conflict.BusyAt(t, events)
}

// Find returns the events with subject that start at start.
func (c *Calendar) Find(subject string, start time.Time) []model.Event {
	var out []model.Event
	for _, e := range c.Events() {
		if e.Subject == subject && e.Start.Equal(start) {
			out = append(out, e)
		}
	}
	return out
}

// EditEvent changes one property of the single event identified by subject,
// start and end. Start and end values are full date-times. Editing an
// occurrence of a series detaches it as an override that keeps its id.
func (c *Calendar) EditEvent(prop Property, subject string, start, end time.Time, value string) (model.Event, error) {
	var edited model.Event
	err := c.update(func(next *Calendar) error {
		var matches []model.Event
		for _, e := range next.Events() {
			if e.Subject == subject && e.Start.Equal(start) && e.End.Equal(end) {
				matches = append(matches, e)
			}
		}
		switch len(matches) {
		case 0:
			return fmt.Errorf("event %q from %s to %s: %w", subject,
				start.Format(model.DateTimeLayout), end.Format(model.DateTimeLayout), ErrNotFound)
		case 1:
		default:
			return fmt.Errorf("event %q from %s: %w", subject, start.Format(model.DateTimeLayout), ErrAmbiguous)
		}

		original := matches[0]
		updated := original
		if err := applyExact(&updated, prop, value, next.loc); err != nil {
			return err
		}
		if err := next.replace(original, updated); err != nil {
			return err
		}
		edited = updated
		return next.checkUnique()
	})
	return edited, err
}

// EditEventsFrom changes a property of every event with subject that starts
// at or after from. Series that began earlier are split at the first
// affected occurrence. Start and end values only change the time of day.
// It returns the number of events changed.
func (c *Calendar) EditEventsFrom(prop Property, subject string, from time.Time, value string) (int, error) {
	return c.editMatching(prop, subject, from, value)
}

// EditAllEvents changes a property of every event with subject.
func (c *Calendar) EditAllEvents(prop Property, subject string, value string) (int, error) {
	return c.editMatching(prop, subject, time.Time{}, value)
}

func (c *Calendar) editMatching(prop Property, subject string, from time.Time, value string) (int, error) {
	changed := 0
	err := c.update(func(next *Calendar) error {
		for i := range next.events {
			e := &next.events[i]
			if e.Subject != subject || e.Start.Before(from) {
				continue
			}
			if err := applyClock(e, prop, value, next.loc); err != nil {
				return err
			}
			changed++
		}

		var tails []*Series
		for _, s := range next.series {
			targets := []*Series{s}
			var pattern *Series
			if s.Pattern.Subject == subject {
				dates := s.Pattern.Dates()
				first := sort.Search(len(dates), func(i int) bool {
					return !model.AtTimeOf(dates[i], s.Pattern.Start).Before(from)
				})
				switch {
				case first == len(dates):
				case first > 0:
					pattern = s.split(dates[first-1], dates[first], first)
					tails = append(tails, pattern)
					targets = append(targets, pattern)
				default:
					pattern = s
				}
			}

			for _, t := range targets {
				n, err := t.applyOverrides(prop, subject, from, value, next.loc)
				if err != nil {
					return err
				}
				changed += n
			}
			if pattern != nil {
				n, err := pattern.applyPattern(prop, value, next.loc)
				if err != nil {
					return err
				}
				changed += n
			}
		}
		next.series = append(next.series, tails...)

		if changed == 0 {
			return fmt.Errorf("events named %q: %w", subject, ErrNotFound)
		}
		return next.checkUnique()
	})
	if err != nil {
		return 0, err
	}
	return changed, nil
}

// ConvertTo moves the calendar to loc. Timed events keep their instant;
// all-day events keep their date. Series are re-anchored on the day their
// first occurrence lands on in loc.
func (c *Calendar) ConvertTo(loc *time.Location) error {
	return c.update(func(next *Calendar) error {
		for i := range next.events {
			next.events[i] = inZone(next.events[i], loc)
		}
		for _, s := range next.series {
			if err := s.convert(loc); err != nil {
				return fmt.Errorf("series %q: %w", s.Pattern.Subject, err)
			}
		}
		next.loc = loc
		return nil
	})
}

// Batch runs fn against a working copy of the calendar. The changes fn makes
// are kept only if it returns nil.
func (c *Calendar) Batch(fn func(tx *Calendar) error) error {
	return c.update(fn)
}

// update applies fn to a copy of c and keeps the result only if fn succeeds.
func (c *Calendar) update(fn func(next *Calendar) error) error {
	next := c.clone()
	if err := fn(next); err != nil {
		return err
	}
	*c = *next
	return nil
}

func (c *Calendar) clone() *Calendar {
	next := &Calendar{
		name:   c.name,
		loc:    c.loc,
		events: make([]model.Event, len(c.events)),
		series: make([]*Series, 0, len(c.series)),
	}
	copy(next.events, c.events)
	for _, s := range c.series {
		next.series = append(next.series, s.clone())
	}
	return next
}

func (c *Calendar) findSeries(id string) *Series {
	for _, s := range c.series {
		if s.Pattern.ID == id {
			return s
		}
	}
	return nil
}

// replace swaps original for updated, wherever original lives.
func (c *Calendar) replace(original, updated model.Event) error {
	if original.SeriesID == "" {
		for i := range c.events {
			if c.events[i].ID == original.ID {
				c.events[i] = updated
				return nil
			}
		}
		return fmt.Errorf("event %s: %w", original.ID, ErrNotFound)
	}

	s := c.findSeries(original.SeriesID)
	if s == nil {
		return fmt.Errorf("series %s: %w", original.SeriesID, ErrNotFound)
	}
	key := dateKey(original.Start)
	for k, ov := range s.Overrides {
		if ov.ID == original.ID {
			key = k
			break
		}
	}
	s.Overrides[key] = updated
	return nil
}

// checkUnique enforces that no two events share subject, start and end.
func (c *Calendar) checkUnique() error {
	seen := make(map[string]bool)
	for _, e := range c.Events() {
		key := e.Subject + "|" + e.Start.Format(time.RFC3339) + "|" + e.End.Format(time.RFC3339)
		if seen[key] {
			return fmt.Errorf("%q at %s: %w", e.Subject, e.Start.Format(model.DateTimeLayout), ErrDuplicateEvent)
		}
		seen[key] = true
	}
	return nil
}

func declineConflicts(e *model.Event, existing []model.Event) error {
	clashes := conflict.Find(e, existing)
	if len(clashes) == 0 {
		return nil
	}
	other := clashes[0]
	return fmt.Errorf("%q on %s overlaps %q (%s to %s): %w",
		e.Subject, e.Start.Format(model.DateTimeLayout), other.Subject,
		other.Start.Format(model.DateTimeLayout), other.End.Format(model.DateTimeLayout), ErrConflict)
}

// inZone expresses e in loc. Timed events keep their instant, all-day events
// keep their calendar date.
func inZone(e model.Event, loc *time.Location) model.Event {
	if e.AllDay {
		day := wallClock(model.StartOfDay(e.Start), loc)
		e.Start = model.StartOfDay(day)
		e.End = model.EndOfDay(day)
		return e
	}
	e.Start = e.Start.In(loc)
	e.End = e.End.In(loc)
	return e
}

// wallClock returns the same date and clock reading as t, in loc.
func wallClock(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	hh, mm, ss := t.Clock()
	return time.Date(y, m, d, hh, mm, ss, 0, loc)
}

func dateKey(t time.Time) string {
	return t.Format(model.DateLayout)
}

func sortEvents(events []model.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].Start.Equal(events[j].Start) {
			return events[i].Start.Before(events[j].Start)
		}
		return strings.Compare(events[i].Subject, events[j].Subject) < 0
	})
}
