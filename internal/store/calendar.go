package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/almanac/internal/calendar"
	"github.com/dukerupert/almanac/internal/model"
)

const currentCalendarKey = "current_calendar"

// CalendarStore persists the whole calendar workspace as a snapshot.
type CalendarStore struct {
	db *sql.DB
}

func NewCalendarStore(db *sql.DB) *CalendarStore {
	return &CalendarStore{db: db}
}

// Save replaces everything stored with snap in a single transaction.
func (s *CalendarStore) Save(snap calendar.Snapshot) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		`DELETE FROM series_overrides`,
		`DELETE FROM series`,
		`DELETE FROM events`,
		`DELETE FROM calendars`,
	} {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("clear calendars: %w", err)
		}
	}

	for _, cal := range snap.Calendars {
		if _, err := tx.Exec(`INSERT INTO calendars (name, timezone) VALUES (?, ?)`, cal.Name, cal.Timezone); err != nil {
			return fmt.Errorf("insert calendar %q: %w", cal.Name, err)
		}
		for _, e := range cal.Events {
			_, err := tx.Exec(
				`INSERT INTO events (id, calendar, subject, start_at, end_at, all_day, description, location, public)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				e.ID, cal.Name, e.Subject, formatTime(e.Start), formatTime(e.End), e.AllDay, e.Description, e.Location, e.Public,
			)
			if err != nil {
				return fmt.Errorf("insert event %s: %w", e.ID, err)
			}
		}
		for _, ser := range cal.Series {
			_, err := tx.Exec(
				`INSERT INTO series (id, calendar, subject, start_at, end_at, rule, all_day, description, location, public)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				ser.ID, cal.Name, ser.Subject, formatTime(ser.Start), formatTime(ser.End), ser.Rule,
				ser.AllDay, ser.Description, ser.Location, ser.Public,
			)
			if err != nil {
				return fmt.Errorf("insert series %s: %w", ser.ID, err)
			}
			for _, ov := range ser.Overrides {
				e := ov.Event
				_, err := tx.Exec(
					`INSERT INTO series_overrides (series_id, occurrence_date, event_id, subject, start_at, end_at, all_day, description, location, public)
					 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
					ser.ID, ov.Date, e.ID, e.Subject, formatTime(e.Start), formatTime(e.End),
					e.AllDay, e.Description, e.Location, e.Public,
				)
				if err != nil {
					return fmt.Errorf("insert override %s/%s: %w", ser.ID, ov.Date, err)
				}
			}
		}
	}

	if err := setSetting(tx, currentCalendarKey, snap.Current); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Load returns the stored snapshot. A new database yields an empty one.
func (s *CalendarStore) Load() (calendar.Snapshot, error) {
	snap := calendar.Snapshot{Calendars: []calendar.CalendarSnapshot{}}

	rows, err := s.db.Query(`SELECT name, timezone FROM calendars ORDER BY name`)
	if err != nil {
		return snap, fmt.Errorf("list calendars: %w", err)
	}
	for rows.Next() {
		var cal calendar.CalendarSnapshot
		if err := rows.Scan(&cal.Name, &cal.Timezone); err != nil {
			rows.Close()
			return snap, fmt.Errorf("scan calendar: %w", err)
		}
		snap.Calendars = append(snap.Calendars, cal)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return snap, fmt.Errorf("list calendars: %w", err)
	}

	for i := range snap.Calendars {
		cal := &snap.Calendars[i]
		if cal.Events, err = s.loadEvents(cal.Name); err != nil {
			return snap, err
		}
		if cal.Series, err = s.loadSeries(cal.Name); err != nil {
			return snap, err
		}
	}

	var current string
	err = s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, currentCalendarKey).Scan(&current)
	if err != nil && err != sql.ErrNoRows {
		return snap, fmt.Errorf("get current calendar: %w", err)
	}
	snap.Current = current
	return snap, nil
}

func (s *CalendarStore) loadEvents(name string) ([]model.Event, error) {
	rows, err := s.db.Query(
		`SELECT id, subject, start_at, end_at, all_day, description, location, public
		 FROM events WHERE calendar = ? ORDER BY start_at`, name,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	events := []model.Event{}
	for rows.Next() {
		var e model.Event
		var start, end string
		if err := rows.Scan(&e.ID, &e.Subject, &start, &end, &e.AllDay, &e.Description, &e.Location, &e.Public); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if e.Start, e.End, err = parseTimes(start, end); err != nil {
			return nil, fmt.Errorf("event %s: %w", e.ID, err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *CalendarStore) loadSeries(name string) ([]calendar.SeriesSnapshot, error) {
	rows, err := s.db.Query(
		`SELECT id, subject, start_at, end_at, rule, all_day, description, location, public
		 FROM series WHERE calendar = ? ORDER BY start_at`, name,
	)
	if err != nil {
		return nil, fmt.Errorf("list series: %w", err)
	}

	series := []calendar.SeriesSnapshot{}
	for rows.Next() {
		var ser calendar.SeriesSnapshot
		var start, end string
		if err := rows.Scan(&ser.ID, &ser.Subject, &start, &end, &ser.Rule, &ser.AllDay, &ser.Description, &ser.Location, &ser.Public); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan series: %w", err)
		}
		if ser.Start, ser.End, err = parseTimes(start, end); err != nil {
			rows.Close()
			return nil, fmt.Errorf("series %s: %w", ser.ID, err)
		}
		series = append(series, ser)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list series: %w", err)
	}

	for i := range series {
		if series[i].Overrides, err = s.loadOverrides(series[i].ID); err != nil {
			return nil, err
		}
	}
	return series, nil
}

func (s *CalendarStore) loadOverrides(seriesID string) ([]calendar.OverrideSnapshot, error) {
	rows, err := s.db.Query(
		`SELECT occurrence_date, event_id, subject, start_at, end_at, all_day, description, location, public
		 FROM series_overrides WHERE series_id = ? ORDER BY occurrence_date`, seriesID,
	)
	if err != nil {
		return nil, fmt.Errorf("list overrides: %w", err)
	}
	defer rows.Close()

	var overrides []calendar.OverrideSnapshot
	for rows.Next() {
		var ov calendar.OverrideSnapshot
		var start, end string
		e := &ov.Event
		if err := rows.Scan(&ov.Date, &e.ID, &e.Subject, &start, &end, &e.AllDay, &e.Description, &e.Location, &e.Public); err != nil {
			return nil, fmt.Errorf("scan override: %w", err)
		}
		if e.Start, e.End, err = parseTimes(start, end); err != nil {
			return nil, fmt.Errorf("override %s/%s: %w", seriesID, ov.Date, err)
		}
		e.SeriesID = seriesID
		overrides = append(overrides, ov)
	}
	return overrides, rows.Err()
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339)
}

func parseTimes(start, end string) (time.Time, time.Time, error) {
	s, err := time.Parse(time.RFC3339, start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse start %q: %w", start, err)
	}
	e, err := time.Parse(time.RFC3339, end)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse end %q: %w", end, err)
	}
	return s, e, nil
}
