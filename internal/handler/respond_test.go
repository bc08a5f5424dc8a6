package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/almanac/internal/calendar"
	"github.com/dukerupert/almanac/internal/command"
	"github.com/dukerupert/almanac/internal/model"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("calendar x: %w", calendar.ErrNotFound), http.StatusNotFound},
		{calendar.ErrConflict, http.StatusConflict},
		{calendar.ErrDuplicateEvent, http.StatusConflict},
		{calendar.ErrDuplicateCalendar, http.StatusConflict},
		{model.ErrInvalidInterval, http.StatusBadRequest},
		{badRequest(errors.New("bad start")), http.StatusBadRequest},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), "statusFor(%v)", tt.err)
	}
}

func TestWriteErrorHidesInternal(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	rec := httptest.NewRecorder()
	writeError(rec, logger, errors.New("disk on fire"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "internal error", body["error"])

	rec = httptest.NewRecorder()
	writeError(rec, logger, command.ErrSyntax)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), command.ErrSyntax.Error())
}

func TestParseTime(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	got, err := parseTime("2024-03-04T14:00:00Z", loc)
	require.NoError(t, err)
	assert.Equal(t, 9, got.Hour())
	assert.Equal(t, loc, got.Location())

	got, err = parseTime("2024-03-04T09:30", loc)
	require.NoError(t, err)
	assert.True(t, time.Date(2024, 3, 4, 9, 30, 0, 0, loc).Equal(got), "got %s", got)

	_, err = parseTime("someday", loc)
	assert.ErrorIs(t, err, command.ErrSyntax)
}
