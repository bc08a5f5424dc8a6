package command

import (
	"fmt"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"github.com/dukerupert/almanac/internal/model"
)

// dates parses date arguments. Queries fall back to English phrases such as
// "tomorrow" or "next friday at 3pm"; mutations accept only the exact layouts.
type dates struct {
	when *when.Parser
	now  func() time.Time
}

func newDates(now func() time.Time) *dates {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	if now == nil {
		now = time.Now
	}
	return &dates{when: w, now: now}
}

func (d *dates) dateTime(s string, loc *time.Location) (time.Time, error) {
	return model.ParseDateTime(s, loc)
}

func (d *dates) date(s string, loc *time.Location) (time.Time, error) {
	return model.ParseDate(s, loc)
}

// queryDateTime accepts yyyy-MM-ddTHH:mm or a natural-language phrase.
func (d *dates) queryDateTime(s string, loc *time.Location) (time.Time, error) {
	if t, err := model.ParseDateTime(s, loc); err == nil {
		return t, nil
	}
	return d.natural(s, loc)
}

// queryDate accepts yyyy-MM-dd or a natural-language phrase; the time of day
// of a phrase is dropped.
func (d *dates) queryDate(s string, loc *time.Location) (time.Time, error) {
	if t, err := model.ParseDate(s, loc); err == nil {
		return t, nil
	}
	t, err := d.natural(s, loc)
	if err != nil {
		return time.Time{}, err
	}
	return model.StartOfDay(t), nil
}

func (d *dates) natural(s string, loc *time.Location) (time.Time, error) {
	result, err := d.when.Parse(s, d.now().In(loc))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %q: %w", s, err)
	}
	if result == nil {
		return time.Time{}, fmt.Errorf("%q is not a date (want yyyy-MM-dd or a phrase like \"next monday\"): %w", s, ErrSyntax)
	}
	return result.Time.In(loc), nil
}
