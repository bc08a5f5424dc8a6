package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/dukerupert/almanac/internal/calendar"
	"github.com/dukerupert/almanac/internal/model"
)

const (
	csvDateLayout = "01/02/2006"
	csvTimeLayout = "03:04 PM"
)

var csvHeader = []string{
	"Subject", "Start Date", "Start Time", "End Date", "End Time",
	"All Day Event", "Description", "Location", "Private",
}

// WriteCSV writes every event of cal, series expanded, in the column layout
// Google Calendar imports.
func WriteCSV(w io.Writer, cal *calendar.Calendar) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, e := range cal.Events() {
		if err := cw.Write(csvRecord(e)); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func csvRecord(e model.Event) []string {
	startTime, endTime := e.Start.Format(csvTimeLayout), e.End.Format(csvTimeLayout)
	if e.AllDay {
		startTime, endTime = "", ""
	}
	return []string{
		e.Subject,
		e.Start.Format(csvDateLayout),
		startTime,
		e.End.Format(csvDateLayout),
		endTime,
		csvBool(e.AllDay),
		e.Description,
		e.Location,
		csvBool(!e.Public),
	}
}

func csvBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}
