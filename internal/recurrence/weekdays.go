package recurrence

import (
	"fmt"
	"strings"
	"time"
)

// Weekdays is a set of weekdays stored as a bitmask indexed by time.Weekday.
type Weekdays uint8

// weekOrder lists the days Monday first, the order used for display and RRULEs.
var weekOrder = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
	time.Friday, time.Saturday, time.Sunday,
}

var dayLetters = map[rune]time.Weekday{
	'M': time.Monday,
	'T': time.Tuesday,
	'W': time.Wednesday,
	'R': time.Thursday,
	'F': time.Friday,
	'S': time.Saturday,
	'U': time.Sunday,
}

var letterOf = map[time.Weekday]string{
	time.Monday:    "M",
	time.Tuesday:   "T",
	time.Wednesday: "W",
	time.Thursday:  "R",
	time.Friday:    "F",
	time.Saturday:  "S",
	time.Sunday:    "U",
}

// AllWeekdays contains every day of the week.
const AllWeekdays Weekdays = 1<<7 - 1

func NewWeekdays(days ...time.Weekday) Weekdays {
	var w Weekdays
	for _, d := range days {
		w |= 1 << uint(d)
	}
	return w
}

// ParseWeekdays parses day letters such as "MWF". Thursday is R and Sunday is U.
func ParseWeekdays(letters string) (Weekdays, error) {
	letters = strings.TrimSpace(letters)
	if letters == "" {
		return 0, fmt.Errorf("no weekdays given: %w", ErrInvalidPattern)
	}
	var w Weekdays
	for _, r := range strings.ToUpper(letters) {
		d, ok := dayLetters[r]
		if !ok {
			return 0, fmt.Errorf("unknown weekday letter %q (use MTWRFSU): %w", r, ErrInvalidPattern)
		}
		w |= 1 << uint(d)
	}
	return w, nil
}

func (w Weekdays) Has(d time.Weekday) bool {
	return w&(1<<uint(d)) != 0
}

func (w Weekdays) Empty() bool {
	return w&AllWeekdays == 0
}

// Days returns the members Monday first.
func (w Weekdays) Days() []time.Weekday {
	var days []time.Weekday
	for _, d := range weekOrder {
		if w.Has(d) {
			days = append(days, d)
		}
	}
	return days
}

// Letters renders the set in the MTWRFSU notation.
func (w Weekdays) Letters() string {
	var b strings.Builder
	for _, d := range w.Days() {
		b.WriteString(letterOf[d])
	}
	return b.String()
}

// Rotate shifts every member by n days (negative n shifts backwards).
func (w Weekdays) Rotate(n int) Weekdays {
	n = ((n % 7) + 7) % 7
	var out Weekdays
	for d := time.Sunday; d <= time.Saturday; d++ {
		if w.Has(d) {
			out |= 1 << uint((int(d)+n)%7)
		}
	}
	return out
}

// next returns the first date on or after date whose weekday is in the set.
// The set must not be empty.
func (w Weekdays) next(date time.Time) time.Time {
	for i := 0; i < 7; i++ {
		if w.Has(date.Weekday()) {
			return date
		}
		date = addDays(date, 1)
	}
	return date
}

func (w Weekdays) String() string {
	return w.Letters()
}

func addDays(date time.Time, n int) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d+n, 0, 0, 0, 0, date.Location())
}
