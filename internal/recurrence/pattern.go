package recurrence

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/mo"

	"github.com/dukerupert/almanac/internal/model"
)

var (
	// ErrInvalidPattern is returned for a malformed recurrence definition.
	ErrInvalidPattern = errors.New("invalid pattern")
	// ErrInvalidRange is returned when a query range ends before it starts.
	ErrInvalidRange = errors.New("invalid range")
)

// MaxCount bounds count-terminated patterns.
const MaxCount = 10000

// Terminator bounds a pattern. Exactly one of Count and Until is present.
type Terminator struct {
	Count mo.Option[int]
	Until mo.Option[time.Time]
}

func AfterCount(n int) Terminator {
	return Terminator{Count: mo.Some(n), Until: mo.None[time.Time]()}
}

// UntilDate ends the pattern on date, inclusive. Only the calendar date is used.
func UntilDate(date time.Time) Terminator {
	return Terminator{Count: mo.None[int](), Until: mo.Some(model.StartOfDay(date))}
}

func (t Terminator) String() string {
	if n, ok := t.Count.Get(); ok {
		return "count=" + strconv.Itoa(n)
	}
	if u, ok := t.Until.Get(); ok {
		return "until=" + u.Format(model.DateLayout)
	}
	return "none"
}

// Pattern is a weekly recurring event template. Start and End carry the date
// of the first candidate day and the time-of-day of every occurrence.
type Pattern struct {
	ID          string
	Subject     string
	Start       time.Time
	End         time.Time
	Days        Weekdays
	Terminator  Terminator
	AllDay      bool
	Description string
	Location    string
	Public      bool
}

// PatternConfig holds the inputs to NewPattern.
type PatternConfig struct {
	Subject     string
	Start       time.Time
	End         time.Time // zero for all-day patterns
	Days        Weekdays
	Count       int       // 0 when Until is used
	Until       time.Time // zero when Count is used
	Description string
	Location    string
	Public      bool
}

// NewPattern validates cfg and returns a pattern with a fresh identity.
// A zero End makes the pattern all-day.
func NewPattern(cfg PatternConfig) (Pattern, error) {
	p := Pattern{
		ID:          uuid.NewString(),
		Subject:     strings.TrimSpace(cfg.Subject),
		Start:       cfg.Start,
		End:         cfg.End,
		Days:        cfg.Days,
		Description: cfg.Description,
		Location:    cfg.Location,
		Public:      cfg.Public,
		Terminator: Terminator{
			Count: mo.None[int](),
			Until: mo.None[time.Time](),
		},
	}
	if cfg.End.IsZero() {
		p.AllDay = true
		p.Start = model.StartOfDay(cfg.Start)
		p.End = model.EndOfDay(cfg.Start)
	}
	if cfg.Count != 0 {
		p.Terminator.Count = mo.Some(cfg.Count)
	}
	if !cfg.Until.IsZero() {
		p.Terminator.Until = mo.Some(onDate(cfg.Until, p.Zone()))
	}
	if err := p.Validate(); err != nil {
		return Pattern{}, err
	}
	return p, nil
}

// Validate checks every invariant of the pattern.
func (p Pattern) Validate() error {
	if p.Days.Empty() {
		return fmt.Errorf("repeat days are empty: %w", ErrInvalidPattern)
	}

	count, hasCount := p.Terminator.Count.Get()
	until, hasUntil := p.untilDate()
	switch {
	case hasCount && hasUntil:
		return fmt.Errorf("both an occurrence count and an end date given: %w", ErrInvalidPattern)
	case !hasCount && !hasUntil:
		return fmt.Errorf("an occurrence count or an end date is required: %w", ErrInvalidPattern)
	case hasCount && (count < 1 || count > MaxCount):
		return fmt.Errorf("occurrence count %d out of range 1..%d: %w", count, MaxCount, ErrInvalidPattern)
	case hasUntil && model.DaysBetween(p.Start, until) < 0:
		return fmt.Errorf("end date %s is before start date %s: %w",
			until.Format(model.DateLayout), p.Start.Format(model.DateLayout), ErrInvalidPattern)
	case hasUntil && p.Days.next(model.StartOfDay(p.Start)).After(until):
		return fmt.Errorf("no %s falls between %s and %s: %w", p.Days,
			p.Start.Format(model.DateLayout), until.Format(model.DateLayout), ErrInvalidPattern)
	}

	if !model.SameDate(p.Start, p.End) {
		return fmt.Errorf("occurrences must start and end on the same day: %w", ErrInvalidPattern)
	}

	template := p.template()
	if err := template.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPattern, err)
	}
	return nil
}

// Identity is the id shared by every occurrence's SeriesID. Patterns without
// an explicit ID derive one from their values.
func (p Pattern) Identity() string {
	if p.ID != "" {
		return p.ID
	}
	key := strings.Join([]string{
		p.Subject,
		p.Start.Format(time.RFC3339),
		p.End.Format(time.RFC3339),
		p.Days.Letters(),
		p.Terminator.String(),
		strconv.FormatBool(p.AllDay),
	}, "|")
	return uuid.NewSHA1(seriesNamespace, []byte(key)).String()
}

// untilDate returns the until date at midnight in the pattern's zone. The
// terminator's own calendar date is kept whatever zone it was built in.
func (p Pattern) untilDate() (time.Time, bool) {
	until, ok := p.Terminator.Until.Get()
	if !ok {
		return time.Time{}, false
	}
	return onDate(until, p.Zone()), true
}

func onDate(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// Zone is the location the pattern's dates are evaluated in.
func (p Pattern) Zone() *time.Location {
	return p.Start.Location()
}

// template is the first-day event every occurrence is stamped from.
func (p Pattern) template() model.Event {
	return model.Event{
		SeriesID:    p.Identity(),
		Subject:     p.Subject,
		Start:       p.Start,
		End:         p.End,
		Description: p.Description,
		Location:    p.Location,
		Public:      p.Public,
		AllDay:      p.AllDay,
	}
}

// WithStartDate returns a copy of p moved to begin on date, keeping its
// times of day.
func (p Pattern) WithStartDate(date time.Time) Pattern {
	date = date.In(p.Zone())
	p.Start = model.AtTimeOf(date, p.Start)
	p.End = model.AtTimeOf(date, p.End)
	return p
}
