package calendar

import (
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/almanac/internal/model"
	"github.com/dukerupert/almanac/internal/recurrence"
)

// Property names an editable field of an event or a calendar.
type Property string

const (
	PropSubject     Property = "subject"
	PropStart       Property = "start"
	PropEnd         Property = "end"
	PropDescription Property = "description"
	PropLocation    Property = "location"
	PropPublic      Property = "public"

	PropName     Property = "name"
	PropTimezone Property = "timezone"
)

// ParseProperty maps a user-supplied event property name to a Property.
func ParseProperty(s string) (Property, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "subject":
		return PropSubject, nil
	case "start", "startdatetime":
		return PropStart, nil
	case "end", "enddatetime":
		return PropEnd, nil
	case "description":
		return PropDescription, nil
	case "location":
		return PropLocation, nil
	case "public", "ispublic", "visibility", "private":
		return PropPublic, nil
	}
	return "", fmt.Errorf("unknown event property %q: %w", s, ErrInvalidProperty)
}

// ParseVisibility accepts true/false, public/private and yes/no.
func ParseVisibility(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "public", "yes":
		return true, nil
	case "false", "private", "no":
		return false, nil
	}
	return false, fmt.Errorf("%q is not a visibility (want public or private): %w", s, ErrInvalidProperty)
}

// applyExact sets prop on e. Start and end values are full date-times.
func applyExact(e *model.Event, prop Property, value string, loc *time.Location) error {
	switch prop {
	case PropStart, PropEnd:
		t, err := model.ParseDateTime(value, loc)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidProperty, err)
		}
		if prop == PropStart {
			return e.SetStart(t)
		}
		return e.SetEnd(t)
	}
	return applyText(e, prop, value)
}

// applyClock sets prop on e. Start and end values change only the time of
// day, so each event keeps its own date.
func applyClock(e *model.Event, prop Property, value string, loc *time.Location) error {
	switch prop {
	case PropStart, PropEnd:
		clock, err := model.ParseClock(value, loc)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidProperty, err)
		}
		if prop == PropStart {
			return e.SetStart(model.AtTimeOf(e.Start, clock))
		}
		return e.SetEnd(model.AtTimeOf(e.End, clock))
	}
	return applyText(e, prop, value)
}

func applyText(e *model.Event, prop Property, value string) error {
	switch prop {
	case PropSubject:
		return e.SetSubject(value)
	case PropDescription:
		return e.SetDescription(value)
	case PropLocation:
		return e.SetLocation(value)
	case PropPublic:
		public, err := ParseVisibility(value)
		if err != nil {
			return err
		}
		e.SetPublic(public)
		return nil
	}
	return fmt.Errorf("%q cannot be edited on an event: %w", prop, ErrInvalidProperty)
}

func applyToPattern(p *recurrence.Pattern, prop Property, value string, loc *time.Location) error {
	switch prop {
	case PropSubject:
		p.Subject = strings.TrimSpace(value)
	case PropDescription:
		p.Description = value
	case PropLocation:
		p.Location = value
	case PropPublic:
		public, err := ParseVisibility(value)
		if err != nil {
			return err
		}
		p.Public = public
	case PropStart, PropEnd:
		clock, err := model.ParseClock(value, loc)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidProperty, err)
		}
		if prop == PropStart {
			p.Start = model.AtTimeOf(p.Start, clock)
		} else {
			p.End = model.AtTimeOf(p.End, clock)
		}
		p.AllDay = false
	default:
		return fmt.Errorf("%q cannot be edited on an event: %w", prop, ErrInvalidProperty)
	}
	return p.Validate()
}
