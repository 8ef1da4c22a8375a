package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"github.com/texforge/texforge/internal/builder"
	"github.com/texforge/texforge/internal/compile"
	"github.com/texforge/texforge/internal/logging"
	"github.com/texforge/texforge/pkg/logparser"
)

var (
	stateColor   = color.New(color.FgCyan)
	outputColor  = color.New(color.FgGreen, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	dimColor     = color.New(color.Faint)
)

// terminalDisplay prints compile progress and diagnostics.
type terminalDisplay struct {
	out     io.Writer
	resolve func(string) string
	showLog bool
	quiet   bool

	mu sync.Mutex
}

func newTerminalDisplay(out io.Writer, resolve func(string) string) *terminalDisplay {
	if resolve == nil {
		resolve = func(u string) string { return u }
	}
	return &terminalDisplay{out: out, resolve: resolve}
}

func (d *terminalDisplay) SetCompileEnabled(enabled bool) {
	logging.Debug("compile trigger", zap.Bool("enabled", enabled))
}

func (d *terminalDisplay) StateChanged(state compile.State) {
	if d.quiet {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	switch state {
	case compile.Compiling:
		stateColor.Fprintln(d.out, "compiling...")
	case compile.ParsingLog:
		stateColor.Fprintln(d.out, "reading log...")
	}
}

func (d *terminalDisplay) ShowOutput(url string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintf(d.out, "%s %s\n", outputColor.Sprint("output:"), d.resolve(url))
}

func (d *terminalDisplay) ShowNoOutput() {
	d.mu.Lock()
	defer d.mu.Unlock()
	warningColor.Fprintln(d.out, "no output produced")
}

func (d *terminalDisplay) ShowLog(raw string, result logparser.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.showLog {
		dimColor.Fprintln(d.out, strings.TrimRight(raw, "\n"))
	}
	printDiagnostics(d.out, result)
}

func (d *terminalDisplay) ReportError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintf(d.out, "%s %v\n", errorColor.Sprint("error:"), err)
	if errors.Is(err, builder.ErrNoRootResource) {
		dimColor.Fprintln(d.out, "hint: open a document containing \\documentclass (--open, --focus) or run `texforge set-main <file> [dir]`")
	}
}

// printDiagnostics writes errors before warnings followed by a summary
// line.
func printDiagnostics(w io.Writer, result logparser.Result) {
	for _, e := range result.Errors {
		printEntry(w, errorColor, "error", e)
		if e.Content != "" {
			for _, line := range strings.Split(e.Content, "\n") {
				dimColor.Fprintf(w, "    %s\n", line)
			}
		}
	}
	for _, e := range result.Warnings {
		printEntry(w, warningColor, "warning", e)
	}
	fmt.Fprintf(w, "%s, %s\n",
		plural(len(result.Errors), "error"),
		plural(len(result.Warnings), "warning"))
}

func printEntry(w io.Writer, c *color.Color, label string, e logparser.Entry) {
	where := ""
	if e.Line > 0 {
		where = fmt.Sprintf(" (line %d)", e.Line)
	}
	fmt.Fprintf(w, "%s %s%s\n", c.Sprint(label+":"), e.Message, where)
}

func plural(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return fmt.Sprintf("%d %ss", n, word)
}
