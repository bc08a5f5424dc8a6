package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dukerupert/almanac/internal/backup"
	"github.com/dukerupert/almanac/internal/calendar"
	"github.com/dukerupert/almanac/internal/command"
	"github.com/dukerupert/almanac/internal/config"
	"github.com/dukerupert/almanac/internal/database"
	"github.com/dukerupert/almanac/internal/logging"
	"github.com/dukerupert/almanac/internal/metric"
	"github.com/dukerupert/almanac/internal/model"
	"github.com/dukerupert/almanac/internal/reminder"
	"github.com/dukerupert/almanac/internal/server"
	"github.com/dukerupert/almanac/internal/store"
	ws "github.com/dukerupert/almanac/internal/websocket"
)

const usage = `usage: almanac [--config file] [interactive | headless <commands-file> | serve]

Modes:
  interactive   read commands from the terminal (default)
  headless      run a command file that ends with exit
  serve         serve the HTTP API and websocket updates
`

func main() {
	os.Exit(run())
}

func run() int {
	fs := flag.NewFlagSet("almanac", flag.ContinueOnError)
	fs.Usage = func() { fmt.Fprint(fs.Output(), usage); fs.PrintDefaults() }
	configPath := fs.String("config", defaultConfigPath(), "YAML config file; empty for defaults only")
	if err := fs.Parse(os.Args[1:]); err != nil {
		return 2
	}

	mode, file := "interactive", ""
	switch args := fs.Args(); {
	case len(args) == 0:
	case args[0] == "interactive" && len(args) == 1, args[0] == "serve" && len(args) == 1:
		mode = args[0]
	case args[0] == "headless" && len(args) == 2:
		mode, file = args[0], args[1]
	default:
		fs.Usage()
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "almanac: %v\n", err)
		return 1
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogColor)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		db       *sql.DB
		calStore *store.CalendarStore
		settings *store.SettingsStore
		history  *store.BackupStore
	)
	if cfg.DBPath != "" {
		db, err = database.Open(cfg.DBPath)
		if err != nil {
			logger.Error("failed to open database", "path", cfg.DBPath, "error", err)
			return 1
		}
		defer db.Close()
		calStore = store.NewCalendarStore(db)
		settings = store.NewSettingsStore(db)
		history = store.NewBackupStore(db)
	}

	hub := ws.NewHub(logger)
	metrics := metric.New(nil, logger)

	var backups *backup.Manager
	if cfg.BackupPassphrase != "" {
		backups = backup.NewManager(cfg.BackupPassphrase, settings, history, logger, func(s backup.Status) {
			hub.Broadcast(ws.NewMessage("backup", string(s.State), "", map[string]any{
				"in_progress": s.InProgress,
				"error":       s.Error,
			}))
		})
	}

	exec := command.NewExecutor(calendar.NewManager(logger, cfg.AutoDecline), command.Options{
		Logger:    logger,
		Store:     calStore,
		Backups:   backups,
		Metrics:   metrics,
		ExportDir: cfg.ExportDir,
		OnChange:  server.NotifyChanges(hub),
	})
	if err := exec.Load(); err != nil {
		logger.Error("failed to load calendars", "error", err)
		return 1
	}
	if err := exec.EnsureCalendar(cfg.DefaultCalendar, cfg.Timezone); err != nil {
		logger.Error("failed to create default calendar", "name", cfg.DefaultCalendar, "error", err)
		return 1
	}

	switch mode {
	case "serve":
		if cfg.ReminderMinutes > 0 {
			reminders := reminder.NewScheduler(exec, time.Duration(cfg.ReminderMinutes)*time.Minute, func(cal string, e model.Event) {
				hub.Broadcast(ws.NewMessage("event", "reminder", cal, map[string]any{
					"id":      e.ID,
					"subject": e.Subject,
					"start":   e.Start,
				}))
			}, logger)
			reminders.Start(ctx)
			defer reminders.Stop()
		}
		srv := server.New(exec, hub, metrics, logger)
		if err := srv.Run(ctx, cfg.Listen); err != nil {
			logger.Error("server error", "error", err)
			return 1
		}
	case "headless":
		f, err := os.Open(file)
		if err != nil {
			logger.Error("failed to open command file", "error", err)
			return 1
		}
		defer f.Close()
		if err := command.Headless(ctx, exec, f, os.Stdout); err != nil {
			logger.Error("headless run failed", "file", file, "error", err)
			return 1
		}
	default:
		if err := command.Interactive(ctx, exec, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("session ended", "error", err)
			return 1
		}
	}
	return 0
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "almanac", "config.yaml")
}
