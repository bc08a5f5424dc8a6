package export

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/almanac/internal/calendar"
	"github.com/dukerupert/almanac/internal/model"
	"github.com/dukerupert/almanac/internal/recurrence"
)

func sampleCalendar(t *testing.T) *calendar.Calendar {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	cal := calendar.New("work", loc)

	review, err := model.NewEvent("Review", time.Date(2023, 5, 15, 13, 30, 0, 0, loc), time.Date(2023, 5, 15, 14, 0, 0, 0, loc))
	require.NoError(t, err)
	review.Description = "Quarterly numbers"
	review.Location = "Room 1"
	review.Public = false
	require.NoError(t, cal.AddEvent(*review, false))

	offsite, err := model.NewAllDayEvent("Offsite", time.Date(2023, 5, 4, 0, 0, 0, 0, loc))
	require.NoError(t, err)
	require.NoError(t, cal.AddEvent(*offsite, false))

	days, err := recurrence.ParseWeekdays("MWF")
	require.NoError(t, err)
	p, err := recurrence.NewPattern(recurrence.PatternConfig{
		Subject: "Standup",
		Start:   time.Date(2023, 5, 1, 9, 0, 0, 0, loc),
		End:     time.Date(2023, 5, 1, 9, 15, 0, 0, loc),
		Days:    days,
		Count:   4,
		Public:  true,
	})
	require.NoError(t, err)
	_, err = cal.AddSeries(p, false)
	require.NoError(t, err)
	_, err = cal.EditEvent(calendar.PropLocation, "Standup",
		time.Date(2023, 5, 3, 9, 0, 0, 0, loc), time.Date(2023, 5, 3, 9, 15, 0, 0, loc), "Lobby")
	require.NoError(t, err)
	return cal
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleCalendar(t)))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 7, "header plus four standups, offsite and review")
	assert.Equal(t, csvHeader, records[0])

	assert.Equal(t, []string{"Standup", "05/01/2023", "09:00 AM", "05/01/2023", "09:15 AM", "False", "", "", "False"}, records[1])
	assert.Equal(t, "Lobby", records[2][7])
	assert.Equal(t, []string{"Offsite", "05/04/2023", "", "05/04/2023", "", "True", "", "", "False"}, records[3])
	assert.Equal(t, []string{"Review", "05/15/2023", "01:30 PM", "05/15/2023", "02:00 PM", "False", "Quarterly numbers", "Room 1", "True"}, records[6])
}

func TestWriteICal(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteICal(&buf, sampleCalendar(t)))
	out := buf.String()

	for _, want := range []string{
		"BEGIN:VCALENDAR",
		"X-WR-CALNAME:work",
		"X-WR-TIMEZONE:America/New_York",
		"SUMMARY:Review",
		"DTSTART:20230515T173000Z",
		"CLASS:PRIVATE",
		"DTSTART;VALUE=DATE:20230504",
		"DTEND;VALUE=DATE:20230505",
		"DTSTART;TZID=America/New_York:20230501T090000",
		"RRULE:FREQ=WEEKLY;BYDAY=MO,WE,FR;COUNT=4",
		"RECURRENCE-ID;TZID=America/New_York:20230503T090000",
		"LOCATION:Lobby",
		"END:VCALENDAR",
	} {
		assert.Contains(t, out, want)
	}
	assert.Equal(t, 4, strings.Count(out, "BEGIN:VEVENT"), "two standalone, one series, one override")
}

func TestToFile(t *testing.T) {
	dir := t.TempDir()
	cal := sampleCalendar(t)

	path, err := ToFile(filepath.Join(dir, "work.csv"), cal)
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "Subject,Start Date"))

	path, err = ToFile(filepath.Join(dir, "work.ics"), cal)
	require.NoError(t, err)
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "BEGIN:VCALENDAR")

	_, err = ToFile(filepath.Join(dir, "work.txt"), cal)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
