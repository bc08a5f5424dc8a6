package recurrence

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/almanac/internal/model"
)

var (
	seriesNamespace     = uuid.NewSHA1(uuid.NameSpaceURL, []byte("almanac:series"))
	occurrenceNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("almanac:occurrence"))
)

// OccurrenceID is the stable id of the occurrence of series on date.
func OccurrenceID(series string, date time.Time) string {
	key := series + "/" + date.Format(model.DateLayout)
	return uuid.NewSHA1(occurrenceNamespace, []byte(key)).String()
}

// Expand returns every occurrence of p in ascending date order.
func Expand(p Pattern) ([]model.Event, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	results := []model.Event{}
	p.walk(func(date time.Time) bool {
		results = append(results, p.occurrence(date))
		return true
	})
	return results, nil
}

// ExpandInRange returns the occurrences of p whose date falls within
// [rangeStart, rangeEnd], inclusive on both ends. The pattern's own
// terminator still applies.
func ExpandInRange(p Pattern, rangeStart, rangeEnd time.Time) ([]model.Event, error) {
	if rangeEnd.Before(rangeStart) {
		return nil, fmt.Errorf("range end %s is before range start %s: %w",
			rangeEnd.Format(model.DateTimeLayout), rangeStart.Format(model.DateTimeLayout), ErrInvalidRange)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	first := model.StartOfDay(rangeStart.In(p.Zone()))
	last := model.StartOfDay(rangeEnd.In(p.Zone()))

	results := []model.Event{}
	p.walk(func(date time.Time) bool {
		if date.After(last) {
			return false
		}
		if !date.Before(first) {
			results = append(results, p.occurrence(date))
		}
		return true
	})
	return results, nil
}

// Dates returns the occurrence dates of p. p must be valid.
func (p Pattern) Dates() []time.Time {
	var dates []time.Time
	p.walk(func(date time.Time) bool {
		dates = append(dates, date)
		return true
	})
	return dates
}

// OccurrenceOn returns the occurrence scheduled on date, if any.
func (p Pattern) OccurrenceOn(date time.Time) (model.Event, bool) {
	target := model.StartOfDay(date.In(p.Zone()))
	var found model.Event
	ok := false
	p.walk(func(d time.Time) bool {
		if d.After(target) {
			return false
		}
		if d.Equal(target) {
			found, ok = p.occurrence(d), true
			return false
		}
		return true
	})
	return found, ok
}

// walk calls fn with each occurrence date, midnight in the pattern's zone,
// until the terminator is reached or fn returns false.
func (p Pattern) walk(fn func(date time.Time) bool) {
	count, hasCount := p.Terminator.Count.Get()
	until, hasUntil := p.untilDate()

	date := model.StartOfDay(p.Start)
	for emitted := 0; ; emitted++ {
		if hasCount && emitted >= count {
			return
		}
		date = p.Days.next(date)
		if hasUntil && date.After(until) {
			return
		}
		if !fn(date) {
			return
		}
		date = addDays(date, 1)
	}
}

// occurrence stamps the pattern's template onto date.
func (p Pattern) occurrence(date time.Time) model.Event {
	e := p.template()
	e.ID = OccurrenceID(e.SeriesID, date)
	if p.AllDay {
		e.Start = model.StartOfDay(date)
		e.End = model.EndOfDay(date)
	} else {
		e.Start = model.AtTimeOf(date, p.Start)
		e.End = model.AtTimeOf(date, p.End)
	}
	return e
}
