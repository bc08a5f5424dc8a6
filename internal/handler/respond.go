package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/almanac/internal/calendar"
	"github.com/dukerupert/almanac/internal/command"
	"github.com/dukerupert/almanac/internal/model"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps err to a status code and writes it as {"error": ...}.
// Unexpected errors are logged and hidden from the client.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logger.Error("request failed", "error", err)
		msg = "internal error"
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, calendar.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, calendar.ErrConflict),
		errors.Is(err, calendar.ErrDuplicateEvent),
		errors.Is(err, calendar.ErrDuplicateCalendar):
		return http.StatusConflict
	case command.IsUserError(err):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// parseTime accepts RFC 3339 or yyyy-MM-ddTHH:mm (or a bare date) in loc.
func parseTime(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(loc), nil
	}
	t, err := model.ParseDateTime(s, loc)
	if err != nil {
		return time.Time{}, badRequest(err)
	}
	return t, nil
}

func badRequest(err error) error {
	return fmt.Errorf("%v: %w", err, command.ErrSyntax)
}
