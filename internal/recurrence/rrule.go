package recurrence

import (
	"fmt"
	"strings"
	"time"

	"github.com/samber/mo"
	"github.com/teambition/rrule-go"
)

var rruleDays = [...]rrule.Weekday{
	time.Sunday:    rrule.SU,
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
}

// RRule serializes the pattern's weekdays and terminator as an RFC 5545
// RRULE value, e.g. "FREQ=WEEKLY;COUNT=4;BYDAY=MO,WE,FR". UNTIL is the last
// second of the until date, in UTC.
func (p Pattern) RRule() string {
	opt := rrule.ROption{Freq: rrule.WEEKLY}
	for _, d := range p.Days.Days() {
		opt.Byweekday = append(opt.Byweekday, rruleDays[d])
	}
	if n, ok := p.Terminator.Count.Get(); ok {
		opt.Count = n
	}
	if u, ok := p.untilDate(); ok {
		y, m, d := u.Date()
		opt.Until = time.Date(y, m, d, 23, 59, 59, 0, p.Zone())
	}
	return opt.RRuleString()
}

// ParseRule reads an RRULE value into a copy of base, which supplies
// everything but the weekdays and the terminator. UNTIL values are read in
// base's zone.
func ParseRule(rule string, base Pattern) (Pattern, error) {
	opt, err := rrule.StrToROptionInLocation(rule, base.Zone())
	if err != nil {
		return Pattern{}, fmt.Errorf("rule %q: %v: %w", rule, err, ErrInvalidPattern)
	}
	return FromROption(opt, base)
}

// FromROption turns a weekly or daily rule bounded by COUNT or UNTIL into a
// pattern stamped from base. DAILY maps to every weekday, and a WEEKLY rule
// without BYDAY repeats on base's start weekday.
func FromROption(opt *rrule.ROption, base Pattern) (Pattern, error) {
	switch {
	case opt.Freq != rrule.WEEKLY && opt.Freq != rrule.DAILY:
		return Pattern{}, fmt.Errorf("unsupported frequency %v: %w", opt.Freq, ErrInvalidPattern)
	case opt.Interval > 1:
		return Pattern{}, fmt.Errorf("unsupported interval %d: %w", opt.Interval, ErrInvalidPattern)
	case len(opt.Bymonth) > 0 || len(opt.Bymonthday) > 0 || len(opt.Byyearday) > 0 ||
		len(opt.Byweekno) > 0 || len(opt.Bysetpos) > 0 || len(opt.Byhour) > 0 ||
		len(opt.Byminute) > 0 || len(opt.Bysecond) > 0 || len(opt.Byeaster) > 0:
		return Pattern{}, fmt.Errorf("unsupported rule parts: %w", ErrInvalidPattern)
	case opt.Count == 0 && opt.Until.IsZero():
		return Pattern{}, fmt.Errorf("rule has no COUNT or UNTIL: %w", ErrInvalidPattern)
	}

	var days Weekdays
	for _, wd := range opt.Byweekday {
		if wd.N() != 0 {
			return Pattern{}, fmt.Errorf("unsupported BYDAY %v: %w", wd, ErrInvalidPattern)
		}
		days |= NewWeekdays(time.Weekday((wd.Day() + 1) % 7))
	}
	if days.Empty() {
		if opt.Freq == rrule.DAILY {
			days = AllWeekdays
		} else {
			days = NewWeekdays(base.Start.Weekday())
		}
	}

	p := base
	p.Days = days
	p.Terminator = Terminator{Count: mo.None[int](), Until: mo.None[time.Time]()}
	if opt.Count != 0 {
		p.Terminator.Count = mo.Some(opt.Count)
	}
	if !opt.Until.IsZero() {
		p.Terminator.Until = mo.Some(onDate(opt.Until.In(p.Zone()), p.Zone()))
	}
	if err := p.Validate(); err != nil {
		return Pattern{}, err
	}
	return p, nil
}

// Describe returns a human-readable description of the pattern.
func (p Pattern) Describe() string {
	var names []string
	for _, d := range p.Days.Days() {
		names = append(names, d.String()[:3])
	}

	prefix := "Repeats weekly on " + strings.Join(names, ", ")
	if p.Days == AllWeekdays {
		prefix = "Repeats daily"
	}

	if n, ok := p.Terminator.Count.Get(); ok {
		if n == 1 {
			return prefix + ", once"
		}
		return fmt.Sprintf("%s, %d times", prefix, n)
	}
	if u, ok := p.Terminator.Until.Get(); ok {
		return prefix + " until " + u.Format("Mon Jan 2, 2006")
	}
	return prefix
}
