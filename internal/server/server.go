package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/almanac/internal/command"
	"github.com/dukerupert/almanac/internal/export"
	"github.com/dukerupert/almanac/internal/handler"
	"github.com/dukerupert/almanac/internal/metric"
	"github.com/dukerupert/almanac/internal/middleware"
	ws "github.com/dukerupert/almanac/internal/websocket"
)

const (
	commandLimit  = 60
	commandWindow = time.Minute
)

type Server struct {
	exec        *command.Executor
	hub         *ws.Hub
	metrics     *metric.Metrics
	rateLimiter *middleware.RateLimiter
	calendarH   *handler.CalendarHandler
	commandH    *handler.CommandHandler
	logger      *slog.Logger
}

// New builds the web surface over exec. Changes made through exec by other
// front ends reach websocket clients when exec was created with
// NotifyChanges(hub).
func New(exec *command.Executor, hub *ws.Hub, metrics *metric.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		exec:        exec,
		hub:         hub,
		metrics:     metrics,
		rateLimiter: middleware.NewRateLimiter(),
		calendarH:   handler.NewCalendarHandler(exec, hub, logger.With("component", "calendar_handler")),
		commandH:    handler.NewCommandHandler(exec, logger.With("component", "command_handler")),
		logger:      logger,
	}
}

// NotifyChanges returns a command.ChangeFunc that broadcasts every change to
// the hub's clients.
func NotifyChanges(hub *ws.Hub) command.ChangeFunc {
	return func(cmd command.Command) {
		entity, action := "event", "updated"
		cal := cmd.Name
		switch cmd.Kind {
		case command.KindCreateCalendar:
			entity, action = "calendar", "created"
		case command.KindEditCalendar, command.KindUseCalendar:
			entity = "calendar"
		case command.KindCreateEvent:
			action = "created"
		case command.KindCopyEvent, command.KindCopyEventsOn, command.KindCopyEventsBetween:
			action, cal = "copied", cmd.Target
		case command.KindImport:
			action = "imported"
		case command.KindRestore:
			entity, action = "workspace", "restored"
		}
		hub.Broadcast(ws.NewMessage(entity, action, cal, map[string]any{"command": string(cmd.Kind)}))
	}
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)
	mux.Handle("GET /metrics", s.metrics.Handler())
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub))

	mux.HandleFunc("GET /api/calendars", s.calendarH.List)
	mux.HandleFunc("POST /api/calendars", s.calendarH.Create)
	mux.HandleFunc("GET /api/calendars/{name}/events", s.calendarH.Events)
	mux.HandleFunc("POST /api/calendars/{name}/events", s.calendarH.CreateEvent)
	mux.HandleFunc("GET /api/calendars/{name}/status", s.calendarH.Status)
	mux.HandleFunc("GET /api/calendars/{name}/export.ics", s.calendarH.Export(export.FormatICal))
	mux.HandleFunc("GET /api/calendars/{name}/export.csv", s.calendarH.Export(export.FormatCSV))

	limit := middleware.RateLimit(s.rateLimiter, commandLimit, commandWindow)
	mux.Handle("POST /api/commands", limit(http.HandlerFunc(s.commandH.Run)))

	return middleware.RequestLogger(s.logger.With("component", "http"), s.metrics.ObserveRequest)(mux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"status": "ok", "clients": s.hub.ClientCount()})
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go s.rateLimiter.RunCleanup(ctx, 5*time.Minute)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
