package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		line string
		want Command
	}{
		{
			line: "create calendar --name work --timezone America/New_York",
			want: Command{Kind: KindCreateCalendar, Name: "work", Timezone: "America/New_York"},
		},
		{
			line: "create calendar --timezone Europe/Paris --name \"team cal\"",
			want: Command{Kind: KindCreateCalendar, Name: "team cal", Timezone: "Europe/Paris"},
		},
		{
			line: "edit calendar --name work --property timezone Asia/Tokyo",
			want: Command{Kind: KindEditCalendar, Name: "work", Property: "timezone", Value: "Asia/Tokyo"},
		},
		{
			line: "use calendar --name work",
			want: Command{Kind: KindUseCalendar, Name: "work"},
		},
		{
			line: "create event \"Team Sync\" from 2024-03-04T10:00 to 2024-03-04T11:00",
			want: Command{Kind: KindCreateEvent, Subject: "Team Sync", From: "2024-03-04T10:00", To: "2024-03-04T11:00"},
		},
		{
			line: "create event --autoDecline Holiday on 2024-07-04 --private --location Home",
			want: Command{Kind: KindCreateEvent, AutoDecline: true, Subject: "Holiday", From: "2024-07-04", AllDay: true, Private: true, Location: "Home"},
		},
		{
			line: "create event Standup from 2024-03-04T09:00 to 2024-03-04T09:15 repeats MWF for 6 times --description \"daily sync\"",
			want: Command{
				Kind: KindCreateEvent, Subject: "Standup", From: "2024-03-04T09:00", To: "2024-03-04T09:15",
				Repeat: &Repeat{Days: "MWF", Count: 6}, Description: "daily sync",
			},
		},
		{
			line: "create event Gym on 2024-03-05 repeats TR until 2024-03-28",
			want: Command{Kind: KindCreateEvent, Subject: "Gym", From: "2024-03-05", AllDay: true, Repeat: &Repeat{Days: "TR", Until: "2024-03-28"}},
		},
		{
			line: "edit event location Standup from 2024-03-04T09:00 to 2024-03-04T09:15 with \"Room 4\"",
			want: Command{Kind: KindEditEvent, Property: "location", Subject: "Standup", From: "2024-03-04T09:00", To: "2024-03-04T09:15", Value: "Room 4"},
		},
		{
			line: "edit events subject Standup from 2024-03-06T09:00 with Daily Standup",
			want: Command{Kind: KindEditEventsFrom, Property: "subject", Subject: "Standup", From: "2024-03-06T09:00", Value: "Daily Standup"},
		},
		{
			line: "edit events description Standup with notes",
			want: Command{Kind: KindEditAllEvents, Property: "description", Subject: "Standup", Value: "notes"},
		},
		{
			line: "print events on next friday",
			want: Command{Kind: KindPrintEventsOn, From: "next friday"},
		},
		{
			line: "print events from 2024-03-04T00:00 to 2024-03-10T23:59",
			want: Command{Kind: KindPrintEventsRange, From: "2024-03-04T00:00", To: "2024-03-10T23:59"},
		},
		{
			line: "print calendars",
			want: Command{Kind: KindPrintCalendars},
		},
		{
			line: "print backups",
			want: Command{Kind: KindPrintBackups},
		},
		{
			line: "show status on 2024-03-04T09:10",
			want: Command{Kind: KindShowStatus, From: "2024-03-04T09:10"},
		},
		{
			line: "copy event Standup on 2024-03-04T09:00 --target home to 2024-03-05T08:00",
			want: Command{Kind: KindCopyEvent, Subject: "Standup", From: "2024-03-04T09:00", Target: "home", TargetTime: "2024-03-05T08:00"},
		},
		{
			line: "copy events on 2024-03-04 --target home to 2024-03-11",
			want: Command{Kind: KindCopyEventsOn, From: "2024-03-04", Target: "home", TargetTime: "2024-03-11"},
		},
		{
			line: "copy events between 2024-03-04 and 2024-03-08 --target home to 2024-04-01",
			want: Command{Kind: KindCopyEventsBetween, From: "2024-03-04", To: "2024-03-08", Target: "home", TargetTime: "2024-04-01"},
		},
		{line: "export cal out.ics", want: Command{Kind: KindExport, Path: "out.ics"}},
		{line: "import cal \"my file.ics\"", want: Command{Kind: KindImport, Path: "my file.ics"}},
		{line: "backup to snap.bin", want: Command{Kind: KindBackup, Path: "snap.bin"}},
		{line: "restore from snap.bin", want: Command{Kind: KindRestore, Path: "snap.bin"}},
		{line: "  exit  ", want: Command{Kind: KindExit}},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := Parse(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseErrors(t *testing.T) {
	syntax := []string{
		"",
		"create",
		"create thing",
		"create calendar --name work",
		"create calendar --name work --timezone",
		"create event Standup at 2024-03-04T09:00",
		"create event Standup from 2024-03-04T09:00",
		"create event Standup from 2024-03-04T09:00 to 2024-03-04T10:00 repeats MWF for x times",
		"create event Standup from 2024-03-04T09:00 to 2024-03-04T10:00 repeats MWF for 0 times",
		"create event Standup from 2024-03-04T09:00 to 2024-03-04T10:00 repeats MWF forever",
		"create event Standup on 2024-03-04 --colour red",
		"edit event subject Standup from 2024-03-04T09:00 to 2024-03-04T09:15",
		"edit events subject Standup to x",
		"print events",
		"print events between a and b",
		"show status at 2024-03-04T09:00",
		"copy events on 2024-03-04 to 2024-03-05",
		"export cal",
		"exit now",
		"create event \"unterminated from x to y",
	}
	for _, line := range syntax {
		_, err := Parse(line)
		assert.ErrorIs(t, err, ErrSyntax, "line %q", line)
	}

	_, err := Parse("delete event Standup")
	assert.ErrorIs(t, err, ErrUnknownCommand)
}

func TestParseErrorNamesExpectedToken(t *testing.T) {
	_, err := Parse("create event Standup from 2024-03-04T09:00 until 2024-03-04T10:00")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"to"`)
	assert.Contains(t, err.Error(), `"until"`)
}

func TestTokenize(t *testing.T) {
	toks, err := tokenize(`edit event location "Team Sync" with ""`)
	require.NoError(t, err)
	assert.Equal(t, []string{"edit", "event", "location", "Team Sync", "with", ""}, toks)
}

func TestKindMutates(t *testing.T) {
	assert.True(t, KindCreateEvent.Mutates())
	assert.True(t, KindRestore.Mutates())
	assert.False(t, KindPrintEventsOn.Mutates())
	assert.False(t, KindExport.Mutates())
}
