// Package importer reads iCalendar files into a calendar.
package importer

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/google/uuid"
	"github.com/teambition/rrule-go"

	"github.com/dukerupert/almanac/internal/calendar"
	"github.com/dukerupert/almanac/internal/model"
	"github.com/dukerupert/almanac/internal/recurrence"
)

// Result summarizes an import.
type Result struct {
	Events    int      `json:"events"`
	Series    int      `json:"series"`
	Overrides int      `json:"overrides"`
	Skipped   []string `json:"skipped,omitempty"`
}

func (r Result) String() string {
	s := fmt.Sprintf("imported %d events, %d recurring series, %d edited occurrences", r.Events, r.Series, r.Overrides)
	if len(r.Skipped) > 0 {
		s += fmt.Sprintf(" (%d skipped)", len(r.Skipped))
	}
	return s
}

// FromFile imports the iCalendar file at path into cal.
func FromFile(path string, cal *calendar.Calendar, logger *slog.Logger) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("open import file: %w", err)
	}
	defer f.Close()
	return ReadICal(f, cal, logger)
}

// ReadICal adds every VEVENT in r to cal. Weekly and daily rules bounded by
// COUNT or UNTIL become recurring series; VEVENTs with RECURRENCE-ID become
// edited occurrences of their series. Entries that cannot be represented are
// skipped and listed in the result. Either everything else is imported or,
// on error, nothing is.
func ReadICal(r io.Reader, cal *calendar.Calendar, logger *slog.Logger) (Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "importer")

	var events []ical.Event
	dec := ical.NewDecoder(r)
	for {
		c, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Result{}, fmt.Errorf("decode ical: %w", err)
		}
		events = append(events, c.Events()...)
	}

	var res Result
	skip := func(uid string, err error) {
		res.Skipped = append(res.Skipped, fmt.Sprintf("%s: %v", uid, err))
		logger.Warn("skipping event", "uid", uid, "error", err)
	}

	err := cal.Batch(func(tx *calendar.Calendar) error {
		loc := tx.Location()
		series := make(map[string]string)
		var overrides []ical.Event

		for _, ev := range events {
			uid, _ := ev.Props.Text(ical.PropUID)
			if ev.Props.Get(ical.PropRecurrenceID) != nil {
				overrides = append(overrides, ev)
				continue
			}

			e, err := toEvent(ev, loc)
			if err != nil {
				skip(uid, err)
				continue
			}

			opt, err := ev.Props.RecurrenceRule()
			if err != nil {
				skip(uid, err)
				continue
			}
			if opt == nil {
				e.ID = idFromUID(uid)
				if err := tx.AddEvent(e, false); err != nil {
					skip(uid, err)
					continue
				}
				res.Events++
				continue
			}

			p, err := toPattern(e, opt, idFromUID(uid))
			if err != nil {
				skip(uid, err)
				continue
			}
			if _, err := tx.AddSeries(p, false); err != nil {
				skip(uid, err)
				continue
			}
			series[uid] = p.ID
			res.Series++
		}

		for _, ev := range overrides {
			uid, _ := ev.Props.Text(ical.PropUID)
			id, ok := series[uid]
			if !ok {
				skip(uid, errors.New("RECURRENCE-ID without a matching recurring event"))
				continue
			}
			date, err := ev.Props.DateTime(ical.PropRecurrenceID, loc)
			if err != nil {
				skip(uid, err)
				continue
			}
			e, err := toEvent(ev, loc)
			if err != nil {
				skip(uid, err)
				continue
			}
			if err := tx.PutOverride(id, date.In(loc), e); err != nil {
				skip(uid, err)
				continue
			}
			res.Overrides++
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	logger.Info("ical imported", "calendar", cal.Name(), "events", res.Events,
		"series", res.Series, "overrides", res.Overrides, "skipped", len(res.Skipped))
	return res, nil
}

// toEvent converts a VEVENT's own fields. Floating times are read in loc.
func toEvent(ev ical.Event, loc *time.Location) (model.Event, error) {
	summary, _ := ev.Props.Text(ical.PropSummary)
	description, _ := ev.Props.Text(ical.PropDescription)
	location, _ := ev.Props.Text(ical.PropLocation)
	class, _ := ev.Props.Text(ical.PropClass)

	start, err := ev.DateTimeStart(loc)
	if err != nil {
		return model.Event{}, fmt.Errorf("DTSTART: %w", err)
	}
	end, err := ev.DateTimeEnd(loc)
	if err != nil {
		return model.Event{}, fmt.Errorf("DTEND: %w", err)
	}

	var e *model.Event
	if isDate(ev.Props.Get(ical.PropDateTimeStart)) {
		day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
		last := day
		if !end.IsZero() {
			// DTEND is exclusive for DATE values
			last = time.Date(end.Year(), end.Month(), end.Day()-1, 0, 0, 0, 0, loc)
		}
		if model.DaysBetween(day, last) <= 0 {
			e, err = model.NewAllDayEvent(summary, day)
		} else {
			e, err = model.NewEvent(summary, day, model.EndOfDay(last))
		}
	} else {
		start = start.In(loc)
		if end.IsZero() {
			end = start
		}
		e, err = model.NewEvent(summary, start, end.In(loc))
	}
	if err != nil {
		return model.Event{}, err
	}

	e.Description = description
	e.Location = location
	e.Public = !strings.EqualFold(class, "PRIVATE") && !strings.EqualFold(class, "CONFIDENTIAL")
	if err := e.Validate(); err != nil {
		return model.Event{}, err
	}
	return *e, nil
}

// toPattern stamps a recurring VEVENT's rule onto its first occurrence.
func toPattern(e model.Event, opt *rrule.ROption, id string) (recurrence.Pattern, error) {
	return recurrence.FromROption(opt, recurrence.Pattern{
		ID:          id,
		Subject:     e.Subject,
		Start:       e.Start,
		End:         e.End,
		AllDay:      e.AllDay,
		Description: e.Description,
		Location:    e.Location,
		Public:      e.Public,
	})
}

// idFromUID keeps the ids of files this program exported and derives a
// stable id from any other UID.
func idFromUID(uid string) string {
	if id, err := uuid.Parse(strings.TrimSuffix(uid, "@almanac")); err == nil {
		return id.String()
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("ical:"+uid)).String()
}

func isDate(prop *ical.Prop) bool {
	return prop != nil && prop.ValueType() == ical.ValueDate
}
