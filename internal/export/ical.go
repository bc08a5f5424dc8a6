package export

import (
	"fmt"
	"io"
	"sort"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/dukerupert/almanac/internal/calendar"
	"github.com/dukerupert/almanac/internal/model"
)

const (
	productID       = "-//almanac//almanac//EN"
	icalLocalLayout = "20060102T150405"
	icalDateLayout  = "20060102"
)

// WriteICal writes cal as a single VCALENDAR. Each series is one VEVENT with
// an RRULE; edited occurrences follow as VEVENTs carrying RECURRENCE-ID.
func WriteICal(w io.Writer, cal *calendar.Calendar) error {
	out := ics.NewCalendar()
	out.SetProductId(productID)
	out.SetMethod(ics.MethodPublish)
	out.SetXWRCalName(cal.Name())
	out.SetXWRTimezone(cal.Location().String())

	stamp := time.Now()
	for _, e := range cal.Standalone() {
		ve := out.AddEvent(uid(e.ID))
		ve.SetDtStampTime(stamp)
		setEventFields(ve, e)
		setTimes(ve, e)
	}

	for _, s := range cal.Series() {
		p := s.Pattern
		tzid := p.Zone().String()

		ve := out.AddEvent(uid(p.ID))
		ve.SetDtStampTime(stamp)
		ve.SetSummary(p.Subject)
		setText(ve, p.Description, p.Location, p.Public)
		if p.AllDay {
			ve.SetAllDayStartAt(p.Start)
			ve.SetAllDayEndAt(p.Start.AddDate(0, 0, 1))
		} else {
			ve.SetProperty(ics.ComponentPropertyDtStart, p.Start.Format(icalLocalLayout), ics.WithTZID(tzid))
			ve.SetProperty(ics.ComponentPropertyDtEnd, p.End.Format(icalLocalLayout), ics.WithTZID(tzid))
		}
		ve.AddRrule(p.RRule())

		dates := make([]string, 0, len(s.Overrides))
		for date := range s.Overrides {
			dates = append(dates, date)
		}
		sort.Strings(dates)
		for _, date := range dates {
			ov := s.Overrides[date]
			day, err := model.ParseDate(date, p.Zone())
			if err != nil {
				return fmt.Errorf("override %s: %w", date, err)
			}
			oe := out.AddEvent(uid(p.ID))
			oe.SetDtStampTime(stamp)
			if p.AllDay {
				oe.SetProperty(ics.ComponentPropertyRecurrenceId, day.Format(icalDateLayout), ics.WithValue(string(ics.ValueDataTypeDate)))
			} else {
				orig := model.AtTimeOf(day, p.Start)
				oe.SetProperty(ics.ComponentPropertyRecurrenceId, orig.Format(icalLocalLayout), ics.WithTZID(tzid))
			}
			setEventFields(oe, ov)
			setTimes(oe, ov)
		}
	}

	if err := out.SerializeTo(w); err != nil {
		return fmt.Errorf("write ical: %w", err)
	}
	return nil
}

func setEventFields(ve *ics.VEvent, e model.Event) {
	ve.SetSummary(e.Subject)
	setText(ve, e.Description, e.Location, e.Public)
}

func setText(ve *ics.VEvent, description, location string, public bool) {
	if description != "" {
		ve.SetDescription(description)
	}
	if location != "" {
		ve.SetLocation(location)
	}
	if public {
		ve.SetClass(ics.ClassificationPublic)
	} else {
		ve.SetClass(ics.ClassificationPrivate)
	}
}

// setTimes writes DTSTART/DTEND. All-day events use DATE values with an
// exclusive end.
func setTimes(ve *ics.VEvent, e model.Event) {
	if e.AllDay {
		ve.SetAllDayStartAt(e.Start)
		ve.SetAllDayEndAt(model.StartOfDay(e.End).AddDate(0, 0, 1))
		return
	}
	ve.SetStartAt(e.Start)
	ve.SetEndAt(e.End)
}

func uid(id string) string {
	return id + "@almanac"
}
