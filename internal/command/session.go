package command

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrMissingExit is returned by Headless when the command file does not end
// with exit.
var ErrMissingExit = errors.New("command file must end with exit")

const prompt = "> "

// Interactive reads commands from in until exit or end of input. Failed
// commands are reported on out and do not stop the session.
func Interactive(ctx context.Context, x *Executor, in io.Reader, out io.Writer) error {
	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, prompt)
		if !sc.Scan() {
			fmt.Fprintln(out)
			return sc.Err()
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		res, err := x.Execute(ctx, line)
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			continue
		}
		if res.Output != "" {
			fmt.Fprintln(out, res.Output)
		}
		if res.Exit {
			return nil
		}
	}
}

// Headless runs a command file. The last command must be exit; the first
// failing command stops the run and its error is returned.
func Headless(ctx context.Context, x *Executor, in io.Reader, out io.Writer) error {
	type numbered struct {
		n    int
		text string
	}
	var lines []numbered
	sc := bufio.NewScanner(in)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, numbered{n, line})
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read commands: %w", err)
	}
	if len(lines) == 0 || lines[len(lines)-1].text != "exit" {
		return ErrMissingExit
	}

	for _, l := range lines {
		res, err := x.Execute(ctx, l.text)
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			return fmt.Errorf("line %d: %w", l.n, err)
		}
		if res.Output != "" {
			fmt.Fprintln(out, res.Output)
		}
		if res.Exit {
			return nil
		}
	}
	return nil
}
