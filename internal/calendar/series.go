package calendar

import (
	"time"

	"github.com/google/uuid"
	"github.com/samber/mo"

	"github.com/dukerupert/almanac/internal/conflict"
	"github.com/dukerupert/almanac/internal/model"
	"github.com/dukerupert/almanac/internal/recurrence"
)

// Series is a recurring pattern plus the occurrences that were edited
// individually, keyed by the original occurrence date (yyyy-MM-dd).
type Series struct {
	Pattern   recurrence.Pattern
	Overrides map[string]model.Event
}

func (s *Series) clone() *Series {
	next := &Series{Pattern: s.Pattern, Overrides: make(map[string]model.Event, len(s.Overrides))}
	for k, v := range s.Overrides {
		next.Overrides[k] = v
	}
	return next
}

// events returns every occurrence with overrides applied.
func (s *Series) events() []model.Event {
	occs, err := recurrence.Expand(s.Pattern)
	if err != nil {
		return nil
	}
	for i, occ := range occs {
		if ov, ok := s.Overrides[dateKey(occ.Start)]; ok {
			occs[i] = ov
		}
	}
	return occs
}

func (s *Series) eventsBetween(start, end time.Time) ([]model.Event, error) {
	occs, err := recurrence.ExpandInRange(s.Pattern, start, end)
	if err != nil {
		return nil, err
	}
	var out []model.Event
	for _, occ := range occs {
		if _, ok := s.Overrides[dateKey(occ.Start)]; ok {
			continue
		}
		if conflict.Overlaps(occ.Start, occ.End, start, end) {
			out = append(out, occ)
		}
	}
	for _, ov := range s.Overrides {
		if conflict.Overlaps(ov.Start, ov.End, start, end) {
			out = append(out, ov)
		}
	}
	return out, nil
}

// split ends s at prev, the last date it keeps, and returns a new series
// starting at at with the remaining occurrences. kept is the number of
// occurrences left in s.
func (s *Series) split(prev, at time.Time, kept int) *Series {
	head := s.Pattern
	tail := s.Pattern.WithStartDate(at)
	tail.ID = uuid.NewString()

	if n, ok := head.Terminator.Count.Get(); ok {
		head.Terminator = recurrence.AfterCount(kept)
		tail.Terminator = recurrence.AfterCount(n - kept)
	} else {
		head.Terminator = recurrence.UntilDate(prev)
	}

	moved := &Series{Pattern: tail, Overrides: map[string]model.Event{}}
	cut := dateKey(at)
	for key, ov := range s.Overrides {
		if key < cut {
			continue
		}
		delete(s.Overrides, key)
		date, err := model.ParseDate(key, tail.Zone())
		if err != nil {
			continue
		}
		ov.SeriesID = tail.ID
		ov.ID = recurrence.OccurrenceID(tail.ID, date)
		moved.Overrides[key] = ov
	}

	s.Pattern = head
	return moved
}

// applyPattern changes prop on the pattern. It returns the number of
// occurrences that follow the pattern, overridden ones excluded.
func (s *Series) applyPattern(prop Property, value string, loc *time.Location) (int, error) {
	p := s.Pattern
	if err := applyToPattern(&p, prop, value, loc); err != nil {
		return 0, err
	}
	occs, err := recurrence.Expand(p)
	if err != nil {
		return 0, err
	}
	s.Pattern = p
	n := 0
	for _, occ := range occs {
		if _, ok := s.Overrides[dateKey(occ.Start)]; !ok {
			n++
		}
	}
	return n, nil
}

// applyOverrides changes prop on every edited occurrence named subject that
// starts at or after from.
func (s *Series) applyOverrides(prop Property, subject string, from time.Time, value string, loc *time.Location) (int, error) {
	n := 0
	for key, ov := range s.Overrides {
		if ov.Subject != subject || ov.Start.Before(from) {
			continue
		}
		if err := applyClock(&ov, prop, value, loc); err != nil {
			return 0, err
		}
		s.Overrides[key] = ov
		n++
	}
	return n, nil
}

// convert re-anchors the series in loc. Timed series keep the instant of
// their first occurrence and their weekdays rotate with the day shift.
func (s *Series) convert(loc *time.Location) error {
	p := s.Pattern
	shift := 0
	if p.AllDay {
		p.Start = wallClock(p.Start, loc)
		p.End = wallClock(p.End, loc)
	} else {
		start := p.Start.In(loc)
		shift = model.DaysBetween(p.Start, start)
		p.Start = start
		p.End = p.End.In(loc)
		p.Days = p.Days.Rotate(shift)
	}
	if until, ok := p.Terminator.Until.Get(); ok {
		y, m, d := until.Date()
		p.Terminator.Until = mo.Some(time.Date(y, m, d+shift, 0, 0, 0, 0, loc))
	}
	if err := p.Validate(); err != nil {
		return err
	}

	overrides := make(map[string]model.Event, len(s.Overrides))
	for key, ov := range s.Overrides {
		date, err := model.ParseDate(key, loc)
		if err != nil {
			return err
		}
		date = date.AddDate(0, 0, shift)
		ov = inZone(ov, loc)
		ov.ID = recurrence.OccurrenceID(p.ID, date)
		overrides[dateKey(date)] = ov
	}

	s.Pattern = p
	s.Overrides = overrides
	return nil
}
