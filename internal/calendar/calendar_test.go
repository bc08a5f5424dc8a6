package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/almanac/internal/model"
	"github.com/dukerupert/almanac/internal/recurrence"
)

func mustLoad(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	require.NoError(t, err)
	return loc
}

func at(loc *time.Location, month time.Month, day, hour, min int) time.Time {
	return time.Date(2023, month, day, hour, min, 0, 0, loc)
}

func newEvent(t *testing.T, subject string, start, end time.Time) model.Event {
	t.Helper()
	e, err := model.NewEvent(subject, start, end)
	require.NoError(t, err)
	return *e
}

// standup repeats Mon/Wed/Fri 09:00-09:15 from May 1 2023 four times.
func standup(t *testing.T, loc *time.Location) recurrence.Pattern {
	t.Helper()
	days, err := recurrence.ParseWeekdays("MWF")
	require.NoError(t, err)
	p, err := recurrence.NewPattern(recurrence.PatternConfig{
		Subject: "Standup",
		Start:   at(loc, time.May, 1, 9, 0),
		End:     at(loc, time.May, 1, 9, 15),
		Days:    days,
		Count:   4,
		Public:  true,
	})
	require.NoError(t, err)
	return p
}

func TestAddEventAutoDecline(t *testing.T) {
	loc := mustLoad(t, "America/New_York")
	cal := New("work", loc)

	require.NoError(t, cal.AddEvent(newEvent(t, "Review", at(loc, time.May, 15, 10, 0), at(loc, time.May, 15, 11, 0)), true))

	overlapping := newEvent(t, "Sync", at(loc, time.May, 15, 10, 30), at(loc, time.May, 15, 11, 30))
	err := cal.AddEvent(overlapping, true)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Len(t, cal.Events(), 1, "declined event must not be added")

	adjacent := newEvent(t, "Lunch", at(loc, time.May, 15, 11, 0), at(loc, time.May, 15, 12, 0))
	assert.ErrorIs(t, cal.AddEvent(adjacent, true), ErrConflict)

	require.NoError(t, cal.AddEvent(overlapping, false))
	assert.Len(t, cal.Events(), 2)
}

func TestAddEventDuplicate(t *testing.T) {
	loc := time.UTC
	cal := New("home", loc)
	start, end := at(loc, time.May, 15, 10, 0), at(loc, time.May, 15, 11, 0)

	require.NoError(t, cal.AddEvent(newEvent(t, "Review", start, end), false))
	err := cal.AddEvent(newEvent(t, "Review", start, end), false)
	assert.ErrorIs(t, err, ErrDuplicateEvent)
}

func TestAddSeries(t *testing.T) {
	loc := mustLoad(t, "America/New_York")
	cal := New("work", loc)

	occs, err := cal.AddSeries(standup(t, loc), true)
	require.NoError(t, err)
	require.Len(t, occs, 4)

	on := cal.EventsOn(at(loc, time.May, 5, 0, 0))
	require.Len(t, on, 1)
	assert.Equal(t, "Standup", on[0].Subject)
	assert.Empty(t, cal.EventsOn(at(loc, time.May, 2, 0, 0)))

	assert.True(t, cal.BusyAt(at(loc, time.May, 8, 9, 10)))
	assert.False(t, cal.BusyAt(at(loc, time.May, 8, 9, 16)))
}

func TestAddSeriesDeclinedAsAWhole(t *testing.T) {
	loc := time.UTC
	cal := New("work", loc)
	require.NoError(t, cal.AddEvent(newEvent(t, "Dentist", at(loc, time.May, 5, 9, 0), at(loc, time.May, 5, 10, 0)), false))

	_, err := cal.AddSeries(standup(t, loc), true)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Len(t, cal.Events(), 1)
	assert.Empty(t, cal.Series())
}

func TestEventsBetween(t *testing.T) {
	loc := time.UTC
	cal := New("work", loc)
	_, err := cal.AddSeries(standup(t, loc), false)
	require.NoError(t, err)
	require.NoError(t, cal.AddEvent(newEvent(t, "Offsite", at(loc, time.May, 4, 0, 0), time.Time{}), false))

	got, err := cal.EventsBetween(at(loc, time.May, 3, 0, 0), at(loc, time.May, 5, 9, 0))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "Standup", got[0].Subject)
	assert.Equal(t, "Offsite", got[1].Subject)
	assert.Equal(t, "Standup", got[2].Subject)

	_, err = cal.EventsBetween(at(loc, time.May, 5, 0, 0), at(loc, time.May, 3, 0, 0))
	assert.ErrorIs(t, err, recurrence.ErrInvalidRange)
}

func TestEditEventOccurrenceBecomesOverride(t *testing.T) {
	loc := mustLoad(t, "America/New_York")
	cal := New("work", loc)
	p := standup(t, loc)
	_, err := cal.AddSeries(p, false)
	require.NoError(t, err)

	edited, err := cal.EditEvent(PropLocation, "Standup", at(loc, time.May, 3, 9, 0), at(loc, time.May, 3, 9, 15), "Room 2")
	require.NoError(t, err)
	assert.Equal(t, "Room 2", edited.Location)
	assert.Equal(t, p.ID, edited.SeriesID)
	assert.Equal(t, recurrence.OccurrenceID(p.ID, at(loc, time.May, 3, 0, 0)), edited.ID)

	for _, e := range cal.Events() {
		if model.SameDate(e.Start, at(loc, time.May, 3, 0, 0)) {
			assert.Equal(t, "Room 2", e.Location)
		} else {
			assert.Empty(t, e.Location, "only the edited occurrence changes")
		}
	}

	// the override can itself be edited again
	_, err = cal.EditEvent(PropStart, "Standup", at(loc, time.May, 3, 9, 0), at(loc, time.May, 3, 9, 15), "2023-05-03T09:05")
	require.NoError(t, err)
	assert.Len(t, cal.Events(), 4)
	series := cal.Series()
	require.Len(t, series, 1)
	assert.Len(t, series[0].Overrides, 1)
}

func TestEditEventErrors(t *testing.T) {
	loc := time.UTC
	cal := New("work", loc)
	start, end := at(loc, time.May, 15, 10, 0), at(loc, time.May, 15, 11, 0)
	require.NoError(t, cal.AddEvent(newEvent(t, "Review", start, end), false))

	_, err := cal.EditEvent(PropSubject, "Missing", start, end, "x")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = cal.EditEvent(PropEnd, "Review", start, end, "2023-05-15T09:00")
	assert.ErrorIs(t, err, model.ErrInvalidInterval)

	_, err = cal.EditEvent(PropSubject, "Review", start, end, "")
	assert.ErrorIs(t, err, model.ErrInvalidField)

	_, err = cal.EditEvent(PropPublic, "Review", start, end, "maybe")
	assert.ErrorIs(t, err, ErrInvalidProperty)

	got := cal.Events()
	require.Len(t, got, 1)
	assert.Equal(t, "Review", got[0].Subject)
	assert.True(t, got[0].End.Equal(end))
}

func TestEditEventsFromSplitsSeries(t *testing.T) {
	loc := mustLoad(t, "America/New_York")
	cal := New("work", loc)
	p := standup(t, loc)
	_, err := cal.AddSeries(p, false)
	require.NoError(t, err)
	_, err = cal.EditEvent(PropLocation, "Standup", at(loc, time.May, 5, 9, 0), at(loc, time.May, 5, 9, 15), "Room 2")
	require.NoError(t, err)

	n, err := cal.EditEventsFrom(PropStart, "Standup", at(loc, time.May, 3, 0, 0), "09:05")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	events := cal.Events()
	require.Len(t, events, 4)
	assert.Equal(t, 9, events[0].Start.Hour())
	assert.Equal(t, 0, events[0].Start.Minute())
	for _, e := range events[1:] {
		assert.Equal(t, 5, e.Start.Minute(), "%s should start at 09:05", e.Start.Format(model.DateLayout))
	}
	assert.Equal(t, "Room 2", events[2].Location, "override keeps its edit after the split")

	series := cal.Series()
	require.Len(t, series, 2)
	headCount, _ := series[0].Pattern.Terminator.Count.Get()
	tailCount, _ := series[1].Pattern.Terminator.Count.Get()
	assert.Equal(t, 1, headCount)
	assert.Equal(t, 3, tailCount)
	assert.Equal(t, p.ID, series[0].Pattern.ID)
	assert.NotEqual(t, p.ID, series[1].Pattern.ID)
	assert.Empty(t, series[0].Overrides)
	require.Len(t, series[1].Overrides, 1)
	for _, ov := range series[1].Overrides {
		assert.Equal(t, series[1].Pattern.ID, ov.SeriesID)
	}
}

func TestEditEventsFromUntilSeries(t *testing.T) {
	loc := time.UTC
	cal := New("work", loc)
	days, err := recurrence.ParseWeekdays("MWF")
	require.NoError(t, err)
	p, err := recurrence.NewPattern(recurrence.PatternConfig{
		Subject: "Gym",
		Start:   at(loc, time.May, 1, 18, 0),
		End:     at(loc, time.May, 1, 19, 0),
		Days:    days,
		Until:   at(loc, time.May, 15, 0, 0),
	})
	require.NoError(t, err)
	_, err = cal.AddSeries(p, false)
	require.NoError(t, err)

	n, err := cal.EditEventsFrom(PropLocation, "Gym", at(loc, time.May, 8, 0, 0), "Downtown")
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	series := cal.Series()
	require.Len(t, series, 2)
	headUntil, ok := series[0].Pattern.Terminator.Until.Get()
	require.True(t, ok)
	assert.Equal(t, "2023-05-05", headUntil.Format(model.DateLayout))
	tailUntil, ok := series[1].Pattern.Terminator.Until.Get()
	require.True(t, ok)
	assert.Equal(t, "2023-05-15", tailUntil.Format(model.DateLayout))
	assert.Len(t, cal.Events(), 7)
}

func TestBulkEditsMatchEachOccurrenceSubject(t *testing.T) {
	loc := time.UTC
	cal := New("work", loc)
	_, err := cal.AddSeries(standup(t, loc), false)
	require.NoError(t, err)
	_, err = cal.EditEvent(PropSubject, "Standup", at(loc, time.May, 3, 9, 0), at(loc, time.May, 3, 9, 15), "Retro")
	require.NoError(t, err)

	byDay := func() map[int]model.Event {
		out := map[int]model.Event{}
		for _, e := range cal.Events() {
			out[e.Start.Day()] = e
		}
		return out
	}

	n, err := cal.EditAllEvents(PropLocation, "Retro", "Room 9")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = cal.EditAllEvents(PropLocation, "Standup", "Room 1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	events := byDay()
	assert.Equal(t, "Room 9", events[3].Location, "renamed occurrence is not a Standup any more")
	for _, day := range []int{1, 5, 8} {
		assert.Equal(t, "Room 1", events[day].Location)
	}

	n, err = cal.EditEventsFrom(PropLocation, "Standup", at(loc, time.May, 4, 0, 0), "Room 2")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	events = byDay()
	assert.Equal(t, "Room 1", events[1].Location)
	assert.Equal(t, "Room 9", events[3].Location)
	assert.Equal(t, "Room 2", events[5].Location)
	assert.Equal(t, "Room 2", events[8].Location)

	n, err = cal.EditEventsFrom(PropSubject, "Retro", at(loc, time.May, 1, 0, 0), "Review")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "Review", byDay()[3].Subject)

	_, err = cal.EditAllEvents(PropLocation, "Retro", "Room 3")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Len(t, cal.Events(), 4)
}

func TestAddSeriesFromOtherZoneKeepsUntilDate(t *testing.T) {
	ny := mustLoad(t, "America/New_York")
	cal := New("work", ny)
	days, err := recurrence.ParseWeekdays("MWF")
	require.NoError(t, err)
	p, err := recurrence.NewPattern(recurrence.PatternConfig{
		Subject: "Gym",
		Start:   at(time.UTC, time.May, 1, 18, 0),
		End:     at(time.UTC, time.May, 1, 19, 0),
		Days:    days,
		Until:   at(time.UTC, time.May, 15, 0, 0),
	})
	require.NoError(t, err)

	occs, err := cal.AddSeries(p, false)
	require.NoError(t, err)
	require.Len(t, occs, 7)
	last := occs[len(occs)-1]
	assert.Equal(t, "2023-05-15", last.Start.Format(model.DateLayout))
	assert.Equal(t, 18, last.Start.Hour())
	assert.Equal(t, ny, last.Start.Location())

	u, ok := cal.Series()[0].Pattern.Terminator.Until.Get()
	require.True(t, ok)
	assert.Equal(t, ny, u.Location())
	assert.Equal(t, "2023-05-15", u.Format(model.DateLayout))
}

func TestEditAllEvents(t *testing.T) {
	loc := time.UTC
	cal := New("work", loc)
	_, err := cal.AddSeries(standup(t, loc), false)
	require.NoError(t, err)
	require.NoError(t, cal.AddEvent(newEvent(t, "Standup", at(loc, time.May, 20, 9, 0), at(loc, time.May, 20, 9, 15)), false))

	n, err := cal.EditAllEvents(PropSubject, "Standup", "Daily sync")
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	for _, e := range cal.Events() {
		assert.Equal(t, "Daily sync", e.Subject)
	}

	_, err = cal.EditAllEvents(PropSubject, "Standup", "x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEditAllEventsAtomic(t *testing.T) {
	loc := time.UTC
	cal := New("work", loc)
	_, err := cal.AddSeries(standup(t, loc), false)
	require.NoError(t, err)
	before := cal.Events()

	_, err = cal.EditAllEvents(PropEnd, "Standup", "08:00")
	require.Error(t, err)
	assert.Equal(t, before, cal.Events())
}

func TestConvertTo(t *testing.T) {
	ny := mustLoad(t, "America/New_York")
	cal := New("work", ny)

	days, err := recurrence.ParseWeekdays("M")
	require.NoError(t, err)
	late, err := recurrence.NewPattern(recurrence.PatternConfig{
		Subject: "Late call",
		Start:   at(ny, time.May, 1, 22, 30),
		End:     at(ny, time.May, 1, 23, 0),
		Days:    days,
		Count:   2,
	})
	require.NoError(t, err)
	_, err = cal.AddSeries(late, false)
	require.NoError(t, err)
	require.NoError(t, cal.AddEvent(newEvent(t, "Holiday", at(ny, time.May, 29, 0, 0), time.Time{}), false))

	require.NoError(t, cal.ConvertTo(time.UTC))
	assert.Equal(t, time.UTC, cal.Location())

	events := cal.Events()
	require.Len(t, events, 3)
	assert.Equal(t, "2023-05-02T02:30", events[0].Start.Format(model.DateTimeLayout))
	assert.Equal(t, time.Tuesday, events[0].Start.Weekday())
	assert.Equal(t, "2023-05-09T02:30", events[1].Start.Format(model.DateTimeLayout))
	assert.True(t, events[2].AllDay)
	assert.Equal(t, "2023-05-29T00:00", events[2].Start.Format(model.DateTimeLayout))
}

func TestConvertToRejectsSeriesSpanningMidnight(t *testing.T) {
	ny := mustLoad(t, "America/New_York")
	cal := New("work", ny)
	days, err := recurrence.ParseWeekdays("M")
	require.NoError(t, err)
	p, err := recurrence.NewPattern(recurrence.PatternConfig{
		Subject: "Evening",
		Start:   at(ny, time.May, 1, 19, 0),
		End:     at(ny, time.May, 1, 21, 0),
		Days:    days,
		Count:   2,
	})
	require.NoError(t, err)
	_, err = cal.AddSeries(p, false)
	require.NoError(t, err)

	err = cal.ConvertTo(time.UTC)
	assert.ErrorIs(t, err, recurrence.ErrInvalidPattern)
	assert.Equal(t, ny, cal.Location())
}

func TestParseProperty(t *testing.T) {
	for in, want := range map[string]Property{
		"subject":     PropSubject,
		"Start":       PropStart,
		"end":         PropEnd,
		"description": PropDescription,
		"location":    PropLocation,
		"public":      PropPublic,
	} {
		got, err := ParseProperty(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseProperty("color")
	assert.ErrorIs(t, err, ErrInvalidProperty)
}
