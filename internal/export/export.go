// Package export writes a calendar to CSV or iCalendar files.
package export

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dukerupert/almanac/internal/calendar"
)

// ErrUnsupportedFormat is returned for file names that are neither .csv nor .ics.
var ErrUnsupportedFormat = errors.New("unsupported export format (want .csv or .ics)")

// Format is an export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatICal Format = "ics"
)

// FormatOf picks the format from a file name's extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".ics", ".ical":
		return FormatICal, nil
	}
	return "", fmt.Errorf("%q: %w", path, ErrUnsupportedFormat)
}

// Write renders cal in format to w.
func Write(w io.Writer, cal *calendar.Calendar, format Format) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, cal)
	case FormatICal:
		return WriteICal(w, cal)
	}
	return fmt.Errorf("%q: %w", format, ErrUnsupportedFormat)
}

// ToFile writes cal to path, choosing the format from the extension, and
// returns the absolute path written.
func ToFile(path string, cal *calendar.Calendar) (string, error) {
	format, err := FormatOf(path)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}

	f, err := os.Create(abs)
	if err != nil {
		return "", fmt.Errorf("create export file: %w", err)
	}
	if err := Write(f, cal, format); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close export file: %w", err)
	}
	return abs, nil
}
