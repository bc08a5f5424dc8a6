package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dukerupert/almanac/internal/backup"
	"github.com/dukerupert/almanac/internal/calendar"
	"github.com/dukerupert/almanac/internal/export"
	"github.com/dukerupert/almanac/internal/importer"
	"github.com/dukerupert/almanac/internal/metric"
	"github.com/dukerupert/almanac/internal/model"
	"github.com/dukerupert/almanac/internal/recurrence"
	"github.com/dukerupert/almanac/internal/store"
)

// Result is the outcome of one command.
type Result struct {
	Output  string `json:"output"`
	Changed bool   `json:"changed"`
	Exit    bool   `json:"exit,omitempty"`
}

// ChangeFunc is called after a command changed the workspace.
type ChangeFunc func(cmd Command)

// Options configures an Executor. Every field is optional.
type Options struct {
	Logger    *slog.Logger
	Store     *store.CalendarStore
	Backups   *backup.Manager
	Metrics   *metric.Metrics
	ExportDir string
	Now       func() time.Time
	OnChange  ChangeFunc
}

// Executor runs commands against a calendar manager. All access to the
// manager goes through the executor's mutex.
type Executor struct {
	mu        sync.Mutex
	mgr       *calendar.Manager
	logger    *slog.Logger
	store     *store.CalendarStore
	backups   *backup.Manager
	metrics   *metric.Metrics
	exportDir string
	dates     *dates
	onChange  ChangeFunc
}

func NewExecutor(mgr *calendar.Manager, opts Options) *Executor {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	dir := opts.ExportDir
	if dir == "" {
		dir = "."
	}
	return &Executor{
		mgr:       mgr,
		logger:    logger.With("component", "command"),
		store:     opts.Store,
		backups:   opts.Backups,
		metrics:   opts.Metrics,
		exportDir: dir,
		dates:     newDates(opts.Now),
		onChange:  opts.OnChange,
	}
}

// Load replaces the workspace with the stored snapshot. It is a no-op
// without a store.
func (x *Executor) Load() error {
	if x.store == nil {
		return nil
	}
	snap, err := x.store.Load()
	if err != nil {
		return fmt.Errorf("load calendars: %w", err)
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	if err := x.mgr.Restore(snap); err != nil {
		return fmt.Errorf("load calendars: %w", err)
	}
	x.recordEventCounts()
	x.logger.Info("calendars loaded", "count", len(snap.Calendars), "current", snap.Current)
	return nil
}

// EnsureCalendar creates the named calendar when the workspace has no
// calendars yet and puts it in use.
func (x *Executor) EnsureCalendar(name, timezone string) error {
	if name == "" {
		return nil
	}
	return x.Update(func(mgr *calendar.Manager) error {
		if len(mgr.Calendars()) > 0 {
			return nil
		}
		if _, err := mgr.CreateCalendar(name, timezone); err != nil {
			return err
		}
		return mgr.Use(name)
	})
}

// View runs fn with exclusive access to the manager. fn must not change it.
func (x *Executor) View(fn func(mgr *calendar.Manager) error) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	return fn(x.mgr)
}

// Update runs fn with exclusive access to the manager and persists the
// workspace when fn succeeds.
func (x *Executor) Update(fn func(mgr *calendar.Manager) error) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if err := fn(x.mgr); err != nil {
		return err
	}
	return x.persist()
}

// Execute parses and runs one line.
func (x *Executor) Execute(ctx context.Context, line string) (Result, error) {
	cmd, err := Parse(line)
	if err != nil {
		x.metrics.ObserveCommand("invalid", err, 0)
		return Result{}, err
	}
	return x.Run(ctx, cmd)
}

// Run executes a parsed command.
func (x *Executor) Run(ctx context.Context, cmd Command) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	start := time.Now()
	x.mu.Lock()
	res, err := x.run(cmd)
	if err == nil && res.Changed {
		err = x.persist()
	}
	x.mu.Unlock()
	x.metrics.ObserveCommand(string(cmd.Kind), err, time.Since(start))

	if err != nil {
		x.logger.Debug("command failed", "command", cmd.Kind, "error", err)
		return Result{}, err
	}
	x.logger.Debug("command executed", "command", cmd.Kind, "changed", res.Changed)
	if res.Changed && x.onChange != nil {
		x.onChange(cmd)
	}
	return res, nil
}

func (x *Executor) persist() error {
	x.recordEventCounts()
	if x.store == nil {
		return nil
	}
	if err := x.store.Save(x.mgr.Snapshot()); err != nil {
		return fmt.Errorf("save calendars: %w", err)
	}
	return nil
}

func (x *Executor) recordEventCounts() {
	if x.metrics == nil {
		return
	}
	for _, cal := range x.mgr.Calendars() {
		x.metrics.SetEvents(cal.Name(), len(cal.Events()))
	}
}

func (x *Executor) run(cmd Command) (Result, error) {
	switch cmd.Kind {
	case KindExit:
		return Result{Exit: true}, nil
	case KindCreateCalendar:
		cal, err := x.mgr.CreateCalendar(cmd.Name, cmd.Timezone)
		if err != nil {
			return Result{}, err
		}
		return changed("Created calendar %s (%s).", cal.Name(), cal.Location()), nil
	case KindEditCalendar:
		return x.editCalendar(cmd)
	case KindUseCalendar:
		if err := x.mgr.Use(cmd.Name); err != nil {
			return Result{}, err
		}
		return changed("Using calendar %s.", cmd.Name), nil
	case KindPrintCalendars:
		return x.printCalendars(), nil
	case KindCreateEvent:
		return x.createEvent(cmd)
	case KindEditEvent, KindEditEventsFrom, KindEditAllEvents:
		return x.editEvents(cmd)
	case KindPrintEventsOn, KindPrintEventsRange:
		return x.printEvents(cmd)
	case KindShowStatus:
		return x.showStatus(cmd)
	case KindCopyEvent, KindCopyEventsOn, KindCopyEventsBetween:
		return x.copyEvents(cmd)
	case KindExport:
		return x.export(cmd)
	case KindImport:
		return x.importFile(cmd)
	case KindBackup:
		return x.backup(cmd)
	case KindRestore:
		return x.restore(cmd)
	case KindPrintBackups:
		return x.printBackups()
	}
	return Result{}, fmt.Errorf("%q: %w", cmd.Kind, ErrUnknownCommand)
}

func (x *Executor) editCalendar(cmd Command) (Result, error) {
	prop, err := calendar.ParseCalendarProperty(cmd.Property)
	if err != nil {
		return Result{}, err
	}
	if err := x.mgr.EditCalendar(cmd.Name, prop, cmd.Value); err != nil {
		return Result{}, err
	}
	if prop == calendar.PropName {
		x.metrics.ForgetCalendar(cmd.Name)
	}
	return changed("Calendar %s updated: %s = %s.", cmd.Name, prop, cmd.Value), nil
}

func (x *Executor) printCalendars() Result {
	cals := x.mgr.Calendars()
	if len(cals) == 0 {
		return Result{Output: "No calendars."}
	}
	current, _ := x.mgr.Current()
	var b strings.Builder
	for i, cal := range cals {
		if i > 0 {
			b.WriteByte('\n')
		}
		mark := " "
		if current != nil && current.Name() == cal.Name() {
			mark = "*"
		}
		fmt.Fprintf(&b, "%s %s (%s)", mark, cal.Name(), cal.Location())
	}
	return Result{Output: b.String()}
}

func (x *Executor) createEvent(cmd Command) (Result, error) {
	cal, err := x.mgr.Current()
	if err != nil {
		return Result{}, err
	}
	loc := cal.Location()

	var start, end time.Time
	if cmd.AllDay {
		if start, err = x.dates.date(cmd.From, loc); err != nil {
			return Result{}, fmt.Errorf("%w: %w", err, ErrSyntax)
		}
	} else {
		if start, err = x.dates.dateTime(cmd.From, loc); err != nil {
			return Result{}, fmt.Errorf("%w: %w", err, ErrSyntax)
		}
		if end, err = x.dates.dateTime(cmd.To, loc); err != nil {
			return Result{}, fmt.Errorf("%w: %w", err, ErrSyntax)
		}
	}
	autoDecline := cmd.AutoDecline || x.mgr.AutoDecline()

	if cmd.Repeat == nil {
		e, err := model.NewEvent(cmd.Subject, start, end)
		if err != nil {
			return Result{}, err
		}
		e.Description = cmd.Description
		e.Location = cmd.Location
		e.Public = !cmd.Private
		if err := e.Validate(); err != nil {
			return Result{}, err
		}
		if err := cal.AddEvent(*e, autoDecline); err != nil {
			return Result{}, err
		}
		return changed("Created event %s.", e.Subject), nil
	}

	days, err := recurrence.ParseWeekdays(cmd.Repeat.Days)
	if err != nil {
		return Result{}, err
	}
	pc := recurrence.PatternConfig{
		Subject:     cmd.Subject,
		Start:       start,
		End:         end,
		Days:        days,
		Count:       cmd.Repeat.Count,
		Description: cmd.Description,
		Location:    cmd.Location,
		Public:      !cmd.Private,
	}
	if cmd.Repeat.Until != "" {
		if pc.Until, err = x.dates.date(cmd.Repeat.Until, loc); err != nil {
			return Result{}, fmt.Errorf("%w: %w", err, ErrSyntax)
		}
	}
	p, err := recurrence.NewPattern(pc)
	if err != nil {
		return Result{}, err
	}
	events, err := cal.AddSeries(p, autoDecline)
	if err != nil {
		return Result{}, err
	}
	return changed("Created %d occurrences of %s (%s).", len(events), p.Subject, p.Describe()), nil
}

func (x *Executor) editEvents(cmd Command) (Result, error) {
	cal, err := x.mgr.Current()
	if err != nil {
		return Result{}, err
	}
	prop, err := calendar.ParseProperty(cmd.Property)
	if err != nil {
		return Result{}, err
	}
	loc := cal.Location()

	switch cmd.Kind {
	case KindEditEvent:
		start, err := x.dates.dateTime(cmd.From, loc)
		if err != nil {
			return Result{}, fmt.Errorf("%w: %w", err, ErrSyntax)
		}
		end, err := x.dates.dateTime(cmd.To, loc)
		if err != nil {
			return Result{}, fmt.Errorf("%w: %w", err, ErrSyntax)
		}
		e, err := cal.EditEvent(prop, cmd.Subject, start, end, cmd.Value)
		if err != nil {
			return Result{}, err
		}
		return changed("Updated event %s.", e.Subject), nil
	case KindEditEventsFrom:
		from, err := x.dates.dateTime(cmd.From, loc)
		if err != nil {
			return Result{}, fmt.Errorf("%w: %w", err, ErrSyntax)
		}
		n, err := cal.EditEventsFrom(prop, cmd.Subject, from, cmd.Value)
		if err != nil {
			return Result{}, err
		}
		return changed("Updated %d events.", n), nil
	default:
		n, err := cal.EditAllEvents(prop, cmd.Subject, cmd.Value)
		if err != nil {
			return Result{}, err
		}
		return changed("Updated %d events.", n), nil
	}
}

func (x *Executor) printEvents(cmd Command) (Result, error) {
	cal, err := x.mgr.Current()
	if err != nil {
		return Result{}, err
	}
	loc := cal.Location()

	var (
		events []model.Event
		span   string
	)
	if cmd.Kind == KindPrintEventsOn {
		day, err := x.dates.queryDate(cmd.From, loc)
		if err != nil {
			return Result{}, err
		}
		events = cal.EventsOn(day)
		span = "on " + day.Format(model.DateLayout)
	} else {
		from, err := x.dates.dateTime(cmd.From, loc)
		if err != nil {
			return Result{}, fmt.Errorf("%w: %w", err, ErrSyntax)
		}
		to, err := x.dates.dateTime(cmd.To, loc)
		if err != nil {
			return Result{}, fmt.Errorf("%w: %w", err, ErrSyntax)
		}
		if events, err = cal.EventsBetween(from, to); err != nil {
			return Result{}, err
		}
		span = fmt.Sprintf("from %s to %s", from.Format(model.DateTimeLayout), to.Format(model.DateTimeLayout))
	}

	if len(events) == 0 {
		return Result{Output: fmt.Sprintf("No events %s.", span)}, nil
	}
	lines := make([]string, len(events))
	for i, e := range events {
		lines[i] = FormatEvent(e)
	}
	return Result{Output: strings.Join(lines, "\n")}, nil
}

func (x *Executor) showStatus(cmd Command) (Result, error) {
	cal, err := x.mgr.Current()
	if err != nil {
		return Result{}, err
	}
	at, err := x.dates.queryDateTime(cmd.From, cal.Location())
	if err != nil {
		return Result{}, err
	}
	if cal.BusyAt(at) {
		return Result{Output: "Busy"}, nil
	}
	return Result{Output: "Available"}, nil
}

func (x *Executor) copyEvents(cmd Command) (Result, error) {
	src, err := x.mgr.Current()
	if err != nil {
		return Result{}, err
	}
	dst, err := x.mgr.Calendar(cmd.Target)
	if err != nil {
		return Result{}, err
	}

	switch cmd.Kind {
	case KindCopyEvent:
		start, err := x.dates.dateTime(cmd.From, src.Location())
		if err != nil {
			return Result{}, fmt.Errorf("%w: %w", err, ErrSyntax)
		}
		to, err := x.dates.dateTime(cmd.TargetTime, dst.Location())
		if err != nil {
			return Result{}, fmt.Errorf("%w: %w", err, ErrSyntax)
		}
		e, err := x.mgr.CopyEvent(cmd.Subject, start, cmd.Target, to)
		if err != nil {
			return Result{}, err
		}
		return changed("Copied %s to %s.", e.Subject, cmd.Target), nil
	case KindCopyEventsOn:
		day, err := x.dates.date(cmd.From, src.Location())
		if err != nil {
			return Result{}, fmt.Errorf("%w: %w", err, ErrSyntax)
		}
		to, err := x.dates.date(cmd.TargetTime, dst.Location())
		if err != nil {
			return Result{}, fmt.Errorf("%w: %w", err, ErrSyntax)
		}
		n, err := x.mgr.CopyEventsOn(day, cmd.Target, to)
		if err != nil {
			return Result{}, err
		}
		return changed("Copied %d events to %s.", n, cmd.Target), nil
	default:
		from, err := x.dates.date(cmd.From, src.Location())
		if err != nil {
			return Result{}, fmt.Errorf("%w: %w", err, ErrSyntax)
		}
		until, err := x.dates.date(cmd.To, src.Location())
		if err != nil {
			return Result{}, fmt.Errorf("%w: %w", err, ErrSyntax)
		}
		to, err := x.dates.date(cmd.TargetTime, dst.Location())
		if err != nil {
			return Result{}, fmt.Errorf("%w: %w", err, ErrSyntax)
		}
		n, err := x.mgr.CopyEventsBetween(from, until, cmd.Target, to)
		if err != nil {
			return Result{}, err
		}
		return changed("Copied %d events to %s.", n, cmd.Target), nil
	}
}

func (x *Executor) export(cmd Command) (Result, error) {
	cal, err := x.mgr.Current()
	if err != nil {
		return Result{}, err
	}
	path, err := export.ToFile(x.resolve(cmd.Path), cal)
	if err != nil {
		return Result{}, err
	}
	x.logger.Info("calendar exported", "calendar", cal.Name(), "path", path)
	return Result{Output: "Exported to " + path}, nil
}

func (x *Executor) importFile(cmd Command) (Result, error) {
	cal, err := x.mgr.Current()
	if err != nil {
		return Result{}, err
	}
	res, err := importer.FromFile(x.resolve(cmd.Path), cal, x.logger)
	if err != nil {
		return Result{}, err
	}
	out := Result{Output: res.String(), Changed: res.Events+res.Series+res.Overrides > 0}
	for _, s := range res.Skipped {
		out.Output += "\n  skipped " + s
	}
	return out, nil
}

func (x *Executor) backup(cmd Command) (Result, error) {
	if x.backups == nil {
		return Result{}, backup.ErrDisabled
	}
	path := x.resolve(cmd.Path)
	size, err := x.backups.Backup(path, x.mgr.Snapshot())
	if err != nil {
		return Result{}, err
	}
	return Result{Output: fmt.Sprintf("Backed up %d bytes to %s", size, path)}, nil
}

func (x *Executor) restore(cmd Command) (Result, error) {
	if x.backups == nil {
		return Result{}, backup.ErrDisabled
	}
	snap, err := x.backups.Restore(x.resolve(cmd.Path))
	if err != nil {
		return Result{}, err
	}
	if err := x.mgr.Restore(snap); err != nil {
		return Result{}, err
	}
	return changed("Restored %d calendars.", len(snap.Calendars)), nil
}

const backupHistoryLimit = 10

func (x *Executor) printBackups() (Result, error) {
	if x.backups == nil {
		return Result{}, backup.ErrDisabled
	}
	history, err := x.backups.History(backupHistoryLimit)
	if err != nil {
		return Result{}, err
	}
	if len(history) == 0 {
		return Result{Output: "No backups."}, nil
	}
	var b strings.Builder
	for i, h := range history {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "- %s %s %s", h.CreatedAt.Local().Format("2006-01-02 15:04"), h.Status, h.Path)
		switch {
		case h.ErrorMessage != "":
			fmt.Fprintf(&b, " (%s)", h.ErrorMessage)
		case h.SizeBytes > 0:
			fmt.Fprintf(&b, " (%d bytes, %d calendars)", h.SizeBytes, h.Calendars)
		}
	}
	return Result{Output: b.String()}, nil
}

func (x *Executor) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(x.exportDir, path)
}

func changed(format string, args ...any) Result {
	return Result{Output: fmt.Sprintf(format, args...), Changed: true}
}

// FormatEvent renders one event as a list line.
func FormatEvent(e model.Event) string {
	var b strings.Builder
	b.WriteString("- ")
	b.WriteString(e.Subject)
	switch {
	case e.AllDay:
		fmt.Fprintf(&b, " on %s (all day)", e.Start.Format(model.DateLayout))
	case model.SameDate(e.Start, e.End):
		fmt.Fprintf(&b, " on %s from %s to %s", e.Start.Format(model.DateLayout),
			e.Start.Format(model.TimeLayout), e.End.Format(model.TimeLayout))
	default:
		fmt.Fprintf(&b, " from %s to %s", e.Start.Format(model.DateTimeLayout), e.End.Format(model.DateTimeLayout))
	}
	if e.Location != "" {
		fmt.Fprintf(&b, " at %s", e.Location)
	}
	if !e.Public {
		b.WriteString(" [private]")
	}
	return b.String()
}

// IsUserError reports whether err is caused by the command rather than by
// the environment.
func IsUserError(err error) bool {
	for _, target := range []error{
		ErrSyntax, ErrUnknownCommand,
		calendar.ErrConflict, calendar.ErrNotFound, calendar.ErrAmbiguous,
		calendar.ErrDuplicateEvent, calendar.ErrDuplicateCalendar,
		calendar.ErrNoCalendar, calendar.ErrInvalidProperty,
		model.ErrInvalidInterval, model.ErrInvalidField,
		recurrence.ErrInvalidPattern, recurrence.ErrInvalidRange,
		export.ErrUnsupportedFormat, backup.ErrDisabled, backup.ErrDecrypt,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
