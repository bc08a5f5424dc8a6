package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	MaxSubjectLen     = 100
	MaxDescriptionLen = 500
	MaxLocationLen    = 200
)

var (
	// ErrInvalidInterval is returned when an event would end before it starts.
	ErrInvalidInterval = errors.New("invalid interval")
	// ErrInvalidField is returned for an empty subject or an oversized text field.
	ErrInvalidField = errors.New("invalid field")
)

// Event is one concrete calendar occurrence: a standalone event or a single
// expanded instance of a recurring series.
type Event struct {
	ID          string    `json:"id"`
	SeriesID    string    `json:"series_id,omitempty"`
	Subject     string    `json:"subject"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	Public      bool      `json:"public"`
	AllDay      bool      `json:"all_day"`
}

// NewEvent creates a standalone event with a fresh id. A zero end makes the
// event all-day on start's date.
func NewEvent(subject string, start, end time.Time) (*Event, error) {
	e := &Event{
		ID:      uuid.NewString(),
		Subject: strings.TrimSpace(subject),
		Start:   start,
		End:     end,
		Public:  true,
	}
	if end.IsZero() {
		e.AllDay = true
		e.Start = StartOfDay(start)
		e.End = EndOfDay(start)
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

// NewAllDayEvent creates an event spanning 00:00:00–23:59:59 of date.
func NewAllDayEvent(subject string, date time.Time) (*Event, error) {
	return NewEvent(subject, date, time.Time{})
}

// Validate checks every field of the event.
func (e *Event) Validate() error {
	if err := validateSubject(e.Subject); err != nil {
		return err
	}
	if err := validateText("description", e.Description, MaxDescriptionLen); err != nil {
		return err
	}
	if err := validateText("location", e.Location, MaxLocationLen); err != nil {
		return err
	}
	return validateInterval(e.Start, e.End)
}

// Duration is the length of the event.
func (e *Event) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

func (e *Event) SetSubject(subject string) error {
	subject = strings.TrimSpace(subject)
	if err := validateSubject(subject); err != nil {
		return err
	}
	e.Subject = subject
	return nil
}

// SetStart moves the start. It fails if the new start is after the current end.
func (e *Event) SetStart(start time.Time) error {
	if err := validateInterval(start, e.End); err != nil {
		return err
	}
	e.Start = start
	e.AllDay = false
	return nil
}

// SetEnd moves the end. It fails if the new end is before the current start.
func (e *Event) SetEnd(end time.Time) error {
	if err := validateInterval(e.Start, end); err != nil {
		return err
	}
	e.End = end
	e.AllDay = false
	return nil
}

func (e *Event) SetDescription(description string) error {
	if err := validateText("description", description, MaxDescriptionLen); err != nil {
		return err
	}
	e.Description = description
	return nil
}

func (e *Event) SetLocation(location string) error {
	if err := validateText("location", location, MaxLocationLen); err != nil {
		return err
	}
	e.Location = location
	return nil
}

func (e *Event) SetPublic(public bool) {
	e.Public = public
}

// OccursOn reports whether the event overlaps the calendar day of date
// (in date's location).
func (e *Event) OccursOn(date time.Time) bool {
	dayStart := StartOfDay(date)
	dayEnd := EndOfDay(date)
	start := e.Start.In(date.Location())
	end := e.End.In(date.Location())
	return !start.After(dayEnd) && !end.Before(dayStart)
}

func (e *Event) String() string {
	if e.AllDay {
		return fmt.Sprintf("%s on %s (all day)", e.Subject, e.Start.Format(DateLayout))
	}
	return fmt.Sprintf("%s from %s to %s", e.Subject, e.Start.Format(DateTimeLayout), e.End.Format(DateTimeLayout))
}

func validateSubject(subject string) error {
	if subject == "" {
		return fmt.Errorf("subject is required: %w", ErrInvalidField)
	}
	if utf8.RuneCountInString(subject) > MaxSubjectLen {
		return fmt.Errorf("subject longer than %d characters: %w", MaxSubjectLen, ErrInvalidField)
	}
	return nil
}

func validateText(name, value string, max int) error {
	if utf8.RuneCountInString(value) > max {
		return fmt.Errorf("%s longer than %d characters: %w", name, max, ErrInvalidField)
	}
	return nil
}

func validateInterval(start, end time.Time) error {
	if start.IsZero() {
		return fmt.Errorf("start is required: %w", ErrInvalidInterval)
	}
	if end.Before(start) {
		return fmt.Errorf("end %s is before start %s: %w",
			end.Format(DateTimeLayout), start.Format(DateTimeLayout), ErrInvalidInterval)
	}
	return nil
}
