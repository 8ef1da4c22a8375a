package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/texforge/texforge/internal/builder"
	"github.com/texforge/texforge/internal/compile"
	"github.com/texforge/texforge/pkg/logparser"
)

func init() {
	color.NoColor = true
}

func TestPrintDiagnostics(t *testing.T) {
	var buf bytes.Buffer
	printDiagnostics(&buf, logparser.Result{
		Errors: []logparser.Entry{
			{Kind: logparser.KindError, Message: "Undefined control sequence.", Content: "l.7 \\foo", Line: 7},
		},
		Warnings: []logparser.Entry{
			{Kind: logparser.KindWarning, Message: "Citation `x' undefined"},
			{Kind: logparser.KindWarning, Message: "Reference undefined on input line 3.", Line: 3},
		},
	})

	want := "error: Undefined control sequence. (line 7)\n" +
		"    l.7 \\foo\n" +
		"warning: Citation `x' undefined\n" +
		"warning: Reference undefined on input line 3. (line 3)\n" +
		"1 error, 2 warnings\n"
	if buf.String() != want {
		t.Errorf("got:\n%s\nwant:\n%s", buf.String(), want)
	}
}

func TestTerminalDisplay(t *testing.T) {
	var buf bytes.Buffer
	d := newTerminalDisplay(&buf, func(u string) string { return "http://proxy" + u })

	d.StateChanged(compile.Compiling)
	d.ShowOutput("/output/output.pdf")
	d.StateChanged(compile.Done)
	d.ReportError(fmt.Errorf("build: %w", &builder.NoRootResourceError{}))

	out := buf.String()
	for _, want := range []string{
		"compiling...\n",
		"output: http://proxy/output/output.pdf\n",
		"error: build: no root resource",
		"hint: ",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	d.quiet = true
	d.StateChanged(compile.ParsingLog)
	d.ShowNoOutput()
	if buf.String() != "no output produced\n" {
		t.Errorf("quiet output = %q", buf.String())
	}
}

func TestParseLogCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "output.log")
	log := "! Missing $ inserted.\n<inserted text>\nl.9 a_b\n\nLaTeX Warning: There were undefined references.\n"
	if err := os.WriteFile(path, []byte(log), 0644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	parseLogCmd.SetOut(&out)
	defer parseLogCmd.SetOut(nil)
	parseLogCmd.Flags().Set("format", "pretty")

	if err := runParseLog(parseLogCmd, []string{path}); err != nil {
		t.Fatalf("runParseLog: %v", err)
	}
	if !strings.HasSuffix(out.String(), "1 error, 1 warning\n") {
		t.Errorf("unexpected output:\n%s", out.String())
	}

	out.Reset()
	parseLogCmd.Flags().Set("format", "json")
	defer parseLogCmd.Flags().Set("format", "pretty")
	if err := runParseLog(parseLogCmd, []string{path}); err != nil {
		t.Fatalf("runParseLog json: %v", err)
	}
	if !strings.Contains(out.String(), `"line": 9`) {
		t.Errorf("unexpected json:\n%s", out.String())
	}
}

func TestPlural(t *testing.T) {
	if plural(0, "error") != "0 errors" || plural(1, "error") != "1 error" || plural(2, "warning") != "2 warnings" {
		t.Error("plural mismatch")
	}
}
