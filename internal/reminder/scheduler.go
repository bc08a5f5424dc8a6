// Package reminder announces events shortly before they start.
package reminder

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/almanac/internal/calendar"
	"github.com/dukerupert/almanac/internal/model"
)

// Source gives read access to the calendars. *command.Executor satisfies it.
type Source interface {
	View(fn func(mgr *calendar.Manager) error) error
}

// Notifier receives one call per upcoming event.
type Notifier func(calendarName string, e model.Event)

// Scheduler periodically looks for events starting within the lead time.
type Scheduler struct {
	mu       sync.RWMutex
	source   Source
	notify   Notifier
	lead     time.Duration
	interval time.Duration
	now      func() time.Time
	logger   *slog.Logger
	sent     map[string]time.Time
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewScheduler creates a reminder scheduler that checks once a minute.
func NewScheduler(source Source, lead time.Duration, notify Notifier, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		source:   source,
		notify:   notify,
		lead:     lead,
		interval: time.Minute,
		now:      time.Now,
		logger:   logger.With("component", "reminder"),
		sent:     make(map[string]time.Time),
	}
}

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.Tick()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Tick()
			}
		}
	}()
}

// Stop stops the loop and waits for it to exit.
func (s *Scheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

type upcoming struct {
	calendar string
	event    model.Event
}

// Tick notifies every timed event starting in (now, now+lead] that has not
// been announced yet and returns how many were announced.
func (s *Scheduler) Tick() int {
	now := s.now()
	until := now.Add(s.lead)

	var due []upcoming
	err := s.source.View(func(mgr *calendar.Manager) error {
		for _, cal := range mgr.Calendars() {
			events, err := cal.EventsBetween(now, until)
			if err != nil {
				return err
			}
			for _, e := range events {
				if e.AllDay || !e.Start.After(now) || e.Start.After(until) {
					continue
				}
				due = append(due, upcoming{calendar: cal.Name(), event: e})
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("failed to list upcoming events", "error", err)
		return 0
	}

	s.mu.Lock()
	for key, start := range s.sent {
		if start.Before(now) {
			delete(s.sent, key)
		}
	}
	var fresh []upcoming
	for _, u := range due {
		key := u.calendar + "/" + u.event.ID + "/" + u.event.Start.Format(time.RFC3339)
		if _, ok := s.sent[key]; ok {
			continue
		}
		s.sent[key] = u.event.Start
		fresh = append(fresh, u)
	}
	s.mu.Unlock()

	for _, u := range fresh {
		s.logger.Debug("event reminder", "calendar", u.calendar, "subject", u.event.Subject, "start", u.event.Start)
		if s.notify != nil {
			s.notify(u.calendar, u.event)
		}
	}
	return len(fresh)
}
