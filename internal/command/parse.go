// Package command parses and executes the text command language used by the
// interactive and headless sessions and by POST /api/commands.
package command

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

var (
	// ErrSyntax is returned for a malformed command.
	ErrSyntax = errors.New("syntax error")
	// ErrUnknownCommand is returned when the line starts with an unknown verb.
	ErrUnknownCommand = errors.New("unknown command")
)

// Kind identifies a command form.
type Kind string

const (
	KindCreateCalendar    Kind = "create calendar"
	KindEditCalendar      Kind = "edit calendar"
	KindUseCalendar       Kind = "use calendar"
	KindPrintCalendars    Kind = "print calendars"
	KindPrintBackups      Kind = "print backups"
	KindCreateEvent       Kind = "create event"
	KindEditEvent         Kind = "edit event"
	KindEditEventsFrom    Kind = "edit events from"
	KindEditAllEvents     Kind = "edit events"
	KindPrintEventsOn     Kind = "print events on"
	KindPrintEventsRange  Kind = "print events from"
	KindShowStatus        Kind = "show status"
	KindCopyEvent         Kind = "copy event"
	KindCopyEventsOn      Kind = "copy events on"
	KindCopyEventsBetween Kind = "copy events between"
	KindExport            Kind = "export cal"
	KindImport            Kind = "import cal"
	KindBackup            Kind = "backup"
	KindRestore           Kind = "restore"
	KindExit              Kind = "exit"
)

// Mutates reports whether commands of this kind can change the workspace.
func (k Kind) Mutates() bool {
	switch k {
	case KindPrintCalendars, KindPrintBackups, KindPrintEventsOn, KindPrintEventsRange,
		KindShowStatus, KindExport, KindBackup, KindExit:
		return false
	}
	return true
}

// Repeat is the optional recurrence clause of create event.
type Repeat struct {
	Days  string
	Count int
	Until string
}

// Command is one parsed line. Date and time arguments are kept as written;
// they are interpreted in the zone of the calendar they apply to.
type Command struct {
	Kind Kind

	Name     string // calendar name
	Timezone string
	Property string
	Value    string

	Subject     string
	From        string
	To          string
	AllDay      bool
	Repeat      *Repeat
	AutoDecline bool
	Description string
	Location    string
	Private     bool

	Target     string
	TargetTime string
	Path       string
}

// Parse parses one command line.
func Parse(line string) (Command, error) {
	toks, err := tokenize(line)
	if err != nil {
		return Command{}, err
	}
	if len(toks) == 0 {
		return Command{}, fmt.Errorf("empty command: %w", ErrSyntax)
	}
	p := &parser{toks: toks}

	verb := p.next()
	switch verb {
	case "exit":
		return p.finish(Command{Kind: KindExit})
	case "create":
		switch obj := p.next(); obj {
		case "calendar":
			return p.createCalendar()
		case "event":
			return p.createEvent()
		default:
			return Command{}, p.unexpected(obj, `"calendar" or "event"`)
		}
	case "edit":
		switch obj := p.next(); obj {
		case "calendar":
			return p.editCalendar()
		case "event":
			return p.editEvent()
		case "events":
			return p.editEvents()
		default:
			return Command{}, p.unexpected(obj, `"calendar", "event" or "events"`)
		}
	case "use":
		if err := p.expect("calendar"); err != nil {
			return Command{}, err
		}
		if err := p.expect("--name"); err != nil {
			return Command{}, err
		}
		name, err := p.value("calendar name")
		if err != nil {
			return Command{}, err
		}
		return p.finish(Command{Kind: KindUseCalendar, Name: name})
	case "print":
		return p.print()
	case "show":
		if err := p.expect("status"); err != nil {
			return Command{}, err
		}
		if err := p.expect("on"); err != nil {
			return Command{}, err
		}
		at, err := p.rest("date-time")
		if err != nil {
			return Command{}, err
		}
		return Command{Kind: KindShowStatus, From: at}, nil
	case "copy":
		return p.copy()
	case "export", "import":
		if err := p.expect("cal"); err != nil {
			return Command{}, err
		}
		path, err := p.value("file name")
		if err != nil {
			return Command{}, err
		}
		kind := KindExport
		if verb == "import" {
			kind = KindImport
		}
		return p.finish(Command{Kind: kind, Path: path})
	case "backup", "restore":
		kind, word := KindBackup, "to"
		if verb == "restore" {
			kind, word = KindRestore, "from"
		}
		if err := p.expect(word); err != nil {
			return Command{}, err
		}
		path, err := p.value("file name")
		if err != nil {
			return Command{}, err
		}
		return p.finish(Command{Kind: kind, Path: path})
	}
	return Command{}, fmt.Errorf("%q: %w", verb, ErrUnknownCommand)
}

func (p *parser) createCalendar() (Command, error) {
	cmd := Command{Kind: KindCreateCalendar}
	for !p.atEnd() {
		switch flag := p.next(); flag {
		case "--name":
			v, err := p.value("calendar name")
			if err != nil {
				return Command{}, err
			}
			cmd.Name = v
		case "--timezone":
			v, err := p.value("timezone")
			if err != nil {
				return Command{}, err
			}
			cmd.Timezone = v
		default:
			return Command{}, p.unexpected(flag, `"--name" or "--timezone"`)
		}
	}
	if cmd.Name == "" {
		return Command{}, fmt.Errorf("expected --name: %w", ErrSyntax)
	}
	if cmd.Timezone == "" {
		return Command{}, fmt.Errorf("expected --timezone: %w", ErrSyntax)
	}
	return cmd, nil
}

func (p *parser) editCalendar() (Command, error) {
	cmd := Command{Kind: KindEditCalendar}
	if err := p.expect("--name"); err != nil {
		return Command{}, err
	}
	name, err := p.value("calendar name")
	if err != nil {
		return Command{}, err
	}
	if err := p.expect("--property"); err != nil {
		return Command{}, err
	}
	prop, err := p.value("property name")
	if err != nil {
		return Command{}, err
	}
	value, err := p.rest("property value")
	if err != nil {
		return Command{}, err
	}
	cmd.Name, cmd.Property, cmd.Value = name, prop, value
	return cmd, nil
}

func (p *parser) createEvent() (Command, error) {
	cmd := Command{Kind: KindCreateEvent}
	if p.peek() == "--autoDecline" {
		p.next()
		cmd.AutoDecline = true
	}
	subject, err := p.value("event subject")
	if err != nil {
		return Command{}, err
	}
	cmd.Subject = subject

	switch word := p.next(); word {
	case "from":
		if cmd.From, err = p.value("start date-time"); err != nil {
			return Command{}, err
		}
		if err := p.expect("to"); err != nil {
			return Command{}, err
		}
		if cmd.To, err = p.value("end date-time"); err != nil {
			return Command{}, err
		}
	case "on":
		if cmd.From, err = p.value("date"); err != nil {
			return Command{}, err
		}
		cmd.AllDay = true
	default:
		return Command{}, p.unexpected(word, `"from" or "on"`)
	}

	for !p.atEnd() {
		switch word := p.next(); word {
		case "repeats":
			if cmd.Repeat != nil {
				return Command{}, fmt.Errorf("repeats given twice: %w", ErrSyntax)
			}
			r, err := p.repeat()
			if err != nil {
				return Command{}, err
			}
			cmd.Repeat = r
		case "--description":
			if cmd.Description, err = p.value("description"); err != nil {
				return Command{}, err
			}
		case "--location":
			if cmd.Location, err = p.value("location"); err != nil {
				return Command{}, err
			}
		case "--private":
			cmd.Private = true
		case "--autoDecline":
			cmd.AutoDecline = true
		default:
			return Command{}, p.unexpected(word, `"repeats", "--description", "--location" or "--private"`)
		}
	}
	return cmd, nil
}

func (p *parser) repeat() (*Repeat, error) {
	days, err := p.value("weekdays")
	if err != nil {
		return nil, err
	}
	r := &Repeat{Days: days}
	switch word := p.next(); word {
	case "for":
		n, err := p.value("number of times")
		if err != nil {
			return nil, err
		}
		r.Count, err = strconv.Atoi(n)
		if err != nil || r.Count <= 0 {
			return nil, fmt.Errorf("%q is not a positive count: %w", n, ErrSyntax)
		}
		if err := p.expect("times"); err != nil {
			return nil, err
		}
	case "until":
		if r.Until, err = p.value("end date"); err != nil {
			return nil, err
		}
	default:
		return nil, p.unexpected(word, `"for" or "until"`)
	}
	return r, nil
}

func (p *parser) editEvent() (Command, error) {
	cmd := Command{Kind: KindEditEvent}
	var err error
	if cmd.Property, err = p.value("property name"); err != nil {
		return Command{}, err
	}
	if cmd.Subject, err = p.value("event subject"); err != nil {
		return Command{}, err
	}
	if err := p.expect("from"); err != nil {
		return Command{}, err
	}
	if cmd.From, err = p.value("start date-time"); err != nil {
		return Command{}, err
	}
	if err := p.expect("to"); err != nil {
		return Command{}, err
	}
	if cmd.To, err = p.value("end date-time"); err != nil {
		return Command{}, err
	}
	if err := p.expect("with"); err != nil {
		return Command{}, err
	}
	if cmd.Value, err = p.rest("new value"); err != nil {
		return Command{}, err
	}
	return cmd, nil
}

func (p *parser) editEvents() (Command, error) {
	cmd := Command{Kind: KindEditAllEvents}
	var err error
	if cmd.Property, err = p.value("property name"); err != nil {
		return Command{}, err
	}
	if cmd.Subject, err = p.value("event subject"); err != nil {
		return Command{}, err
	}
	switch word := p.next(); word {
	case "from":
		cmd.Kind = KindEditEventsFrom
		if cmd.From, err = p.value("start date-time"); err != nil {
			return Command{}, err
		}
		if err := p.expect("with"); err != nil {
			return Command{}, err
		}
	case "with":
	default:
		return Command{}, p.unexpected(word, `"from" or "with"`)
	}
	if cmd.Value, err = p.rest("new value"); err != nil {
		return Command{}, err
	}
	return cmd, nil
}

func (p *parser) print() (Command, error) {
	switch obj := p.next(); obj {
	case "calendars":
		return p.finish(Command{Kind: KindPrintCalendars})
	case "backups":
		return p.finish(Command{Kind: KindPrintBackups})
	case "events":
	default:
		return Command{}, p.unexpected(obj, `"events", "calendars" or "backups"`)
	}

	switch word := p.next(); word {
	case "on":
		date, err := p.rest("date")
		if err != nil {
			return Command{}, err
		}
		return Command{Kind: KindPrintEventsOn, From: date}, nil
	case "from":
		cmd := Command{Kind: KindPrintEventsRange}
		var err error
		if cmd.From, err = p.value("start date-time"); err != nil {
			return Command{}, err
		}
		if err := p.expect("to"); err != nil {
			return Command{}, err
		}
		if cmd.To, err = p.value("end date-time"); err != nil {
			return Command{}, err
		}
		return p.finish(cmd)
	default:
		return Command{}, p.unexpected(word, `"on" or "from"`)
	}
}

func (p *parser) copy() (Command, error) {
	var cmd Command
	var err error
	switch obj := p.next(); obj {
	case "event":
		cmd.Kind = KindCopyEvent
		if cmd.Subject, err = p.value("event subject"); err != nil {
			return Command{}, err
		}
		if err := p.expect("on"); err != nil {
			return Command{}, err
		}
		if cmd.From, err = p.value("start date-time"); err != nil {
			return Command{}, err
		}
	case "events":
		switch word := p.next(); word {
		case "on":
			cmd.Kind = KindCopyEventsOn
			if cmd.From, err = p.value("date"); err != nil {
				return Command{}, err
			}
		case "between":
			cmd.Kind = KindCopyEventsBetween
			if cmd.From, err = p.value("start date"); err != nil {
				return Command{}, err
			}
			if err := p.expect("and"); err != nil {
				return Command{}, err
			}
			if cmd.To, err = p.value("end date"); err != nil {
				return Command{}, err
			}
		default:
			return Command{}, p.unexpected(word, `"on" or "between"`)
		}
	default:
		return Command{}, p.unexpected(obj, `"event" or "events"`)
	}

	if err := p.expect("--target"); err != nil {
		return Command{}, err
	}
	if cmd.Target, err = p.value("target calendar"); err != nil {
		return Command{}, err
	}
	if err := p.expect("to"); err != nil {
		return Command{}, err
	}
	if cmd.TargetTime, err = p.value("target date"); err != nil {
		return Command{}, err
	}
	return p.finish(cmd)
}

type parser struct {
	toks []string
	pos  int
}

func (p *parser) atEnd() bool {
	return p.pos >= len(p.toks)
}

func (p *parser) peek() string {
	if p.atEnd() {
		return ""
	}
	return p.toks[p.pos]
}

func (p *parser) next() string {
	t := p.peek()
	if !p.atEnd() {
		p.pos++
	}
	return t
}

func (p *parser) expect(word string) error {
	if got := p.next(); got != word {
		return p.unexpected(got, strconv.Quote(word))
	}
	return nil
}

func (p *parser) value(what string) (string, error) {
	if p.atEnd() {
		return "", fmt.Errorf("expected %s: %w", what, ErrSyntax)
	}
	return p.next(), nil
}

// rest consumes every remaining token, joined by single spaces.
func (p *parser) rest(what string) (string, error) {
	if p.atEnd() {
		return "", fmt.Errorf("expected %s: %w", what, ErrSyntax)
	}
	s := strings.Join(p.toks[p.pos:], " ")
	p.pos = len(p.toks)
	return s, nil
}

func (p *parser) finish(cmd Command) (Command, error) {
	if !p.atEnd() {
		return Command{}, fmt.Errorf("unexpected %q after command: %w", p.peek(), ErrSyntax)
	}
	return cmd, nil
}

func (p *parser) unexpected(got, want string) error {
	if got == "" {
		return fmt.Errorf("expected %s: %w", want, ErrSyntax)
	}
	return fmt.Errorf("expected %s, got %q: %w", want, got, ErrSyntax)
}

// tokenize splits line on whitespace. Double quotes group words and are
// removed; a quoted empty string is a token of its own.
func tokenize(line string) ([]string, error) {
	var (
		toks    []string
		cur     strings.Builder
		inQuote bool
		inToken bool
	)
	for _, r := range line {
		switch {
		case r == '"':
			inQuote = !inQuote
			inToken = true
		case unicode.IsSpace(r) && !inQuote:
			if inToken {
				toks = append(toks, cur.String())
				cur.Reset()
				inToken = false
			}
		default:
			cur.WriteRune(r)
			inToken = true
		}
	}
	if inQuote {
		return nil, fmt.Errorf("unterminated quote: %w", ErrSyntax)
	}
	if inToken {
		toks = append(toks, cur.String())
	}
	return toks, nil
}
