package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/dukerupert/almanac/internal/calendar"
	"github.com/dukerupert/almanac/internal/command"
	"github.com/dukerupert/almanac/internal/export"
	"github.com/dukerupert/almanac/internal/model"
	"github.com/dukerupert/almanac/internal/recurrence"
	ws "github.com/dukerupert/almanac/internal/websocket"
)

// defaultSpan is the range listed when a request omits end.
const defaultSpan = 7 * 24 * time.Hour

type CalendarHandler struct {
	exec   *command.Executor
	hub    *ws.Hub
	logger *slog.Logger
	now    func() time.Time
}

func NewCalendarHandler(exec *command.Executor, hub *ws.Hub, logger *slog.Logger) *CalendarHandler {
	return &CalendarHandler{exec: exec, hub: hub, logger: logger, now: time.Now}
}

type calendarResponse struct {
	Name     string `json:"name"`
	Timezone string `json:"timezone"`
	Current  bool   `json:"current"`
	Series   int    `json:"series"`
	Events   int    `json:"events"`
}

func describe(cal *calendar.Calendar, current bool) calendarResponse {
	return calendarResponse{
		Name:     cal.Name(),
		Timezone: cal.Location().String(),
		Current:  current,
		Series:   len(cal.Series()),
		Events:   len(cal.Standalone()),
	}
}

func (h *CalendarHandler) List(w http.ResponseWriter, r *http.Request) {
	var out []calendarResponse
	h.exec.View(func(mgr *calendar.Manager) error {
		current, _ := mgr.Current()
		out = make([]calendarResponse, 0, len(mgr.Calendars()))
		for _, cal := range mgr.Calendars() {
			out = append(out, describe(cal, current == cal))
		}
		return nil
	})
	writeJSON(w, http.StatusOK, out)
}

type createCalendarRequest struct {
	Name     string `json:"name"`
	Timezone string `json:"timezone"`
	Use      bool   `json:"use"`
}

func (h *CalendarHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createCalendarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	var out calendarResponse
	err := h.exec.Update(func(mgr *calendar.Manager) error {
		cal, err := mgr.CreateCalendar(req.Name, req.Timezone)
		if err != nil {
			return err
		}
		if req.Use {
			if err := mgr.Use(cal.Name()); err != nil {
				return err
			}
		}
		out = describe(cal, req.Use)
		return nil
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.hub.Broadcast(ws.NewMessage("calendar", "created", out.Name, nil))
	writeJSON(w, http.StatusCreated, out)
}

// Events lists the events overlapping [start, end]. start defaults to today
// and end to a week after start.
func (h *CalendarHandler) Events(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	var events []model.Event
	err := h.exec.View(func(mgr *calendar.Manager) error {
		cal, err := mgr.Calendar(name)
		if err != nil {
			return err
		}
		loc := cal.Location()

		start := model.StartOfDay(h.now().In(loc))
		if s := r.URL.Query().Get("start"); s != "" {
			if start, err = parseTime(s, loc); err != nil {
				return err
			}
		}
		end := start.Add(defaultSpan)
		if s := r.URL.Query().Get("end"); s != "" {
			if end, err = parseTime(s, loc); err != nil {
				return err
			}
		}
		events, err = cal.EventsBetween(start, end)
		return err
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

type repeatRequest struct {
	Days  string `json:"days"`
	Count int    `json:"count"`
	Until string `json:"until"`
}

type createEventRequest struct {
	Subject     string         `json:"subject"`
	Start       string         `json:"start"`
	End         string         `json:"end"`
	AllDay      bool           `json:"all_day"`
	Description string         `json:"description"`
	Location    string         `json:"location"`
	Public      *bool          `json:"public"`
	AutoDecline bool           `json:"auto_decline"`
	Repeat      *repeatRequest `json:"repeat"`
}

// CreateEvent adds a single, all-day or recurring event and returns the
// events it created.
func (h *CalendarHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req createEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	req.Subject = strings.TrimSpace(req.Subject)
	if req.Subject == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "subject is required"})
		return
	}
	public := req.Public == nil || *req.Public

	name := r.PathValue("name")
	var created []model.Event
	err := h.exec.Update(func(mgr *calendar.Manager) error {
		cal, err := mgr.Calendar(name)
		if err != nil {
			return err
		}
		loc := cal.Location()
		autoDecline := req.AutoDecline || mgr.AutoDecline()

		start, err := parseTime(req.Start, loc)
		if err != nil {
			return err
		}
		var end time.Time
		if !req.AllDay {
			if end, err = parseTime(req.End, loc); err != nil {
				return err
			}
		}

		if req.Repeat == nil {
			e, err := model.NewEvent(req.Subject, start, end)
			if err != nil {
				return err
			}
			e.Description = req.Description
			e.Location = req.Location
			e.Public = public
			if err := e.Validate(); err != nil {
				return err
			}
			if err := cal.AddEvent(*e, autoDecline); err != nil {
				return err
			}
			created = cal.Find(e.Subject, e.Start)
			return nil
		}

		days, err := recurrence.ParseWeekdays(req.Repeat.Days)
		if err != nil {
			return err
		}
		pc := recurrence.PatternConfig{
			Subject:     req.Subject,
			Start:       start,
			End:         end,
			Days:        days,
			Count:       req.Repeat.Count,
			Description: req.Description,
			Location:    req.Location,
			Public:      public,
		}
		if req.Repeat.Until != "" {
			if pc.Until, err = model.ParseDate(req.Repeat.Until, loc); err != nil {
				return badRequest(err)
			}
		}
		p, err := recurrence.NewPattern(pc)
		if err != nil {
			return err
		}
		created, err = cal.AddSeries(p, autoDecline)
		return err
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.hub.Broadcast(ws.NewMessage("event", "created", name, map[string]any{"count": len(created)}))
	writeJSON(w, http.StatusCreated, created)
}

type statusResponse struct {
	At   time.Time `json:"at"`
	Busy bool      `json:"busy"`
}

func (h *CalendarHandler) Status(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	var out statusResponse
	err := h.exec.View(func(mgr *calendar.Manager) error {
		cal, err := mgr.Calendar(name)
		if err != nil {
			return err
		}
		out.At = h.now().In(cal.Location())
		if s := r.URL.Query().Get("at"); s != "" {
			if out.At, err = parseTime(s, cal.Location()); err != nil {
				return err
			}
		}
		out.Busy = cal.BusyAt(out.At)
		return nil
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// Export returns a handler that downloads the calendar in format.
func (h *CalendarHandler) Export(format export.Format) http.HandlerFunc {
	contentType := "text/csv; charset=utf-8"
	if format == export.FormatICal {
		contentType = "text/calendar; charset=utf-8"
	}
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("name")
		var body strings.Builder
		err := h.exec.View(func(mgr *calendar.Manager) error {
			cal, err := mgr.Calendar(name)
			if err != nil {
				return err
			}
			return export.Write(&body, cal, format)
		})
		if err != nil {
			writeError(w, h.logger, err)
			return
		}

		filename := path.Base(name) + "." + string(format)
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(body.String()))
	}
}
