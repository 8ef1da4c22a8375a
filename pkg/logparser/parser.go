// Package logparser extracts errors and warnings from LaTeX compiler logs.
//
// Parsing is best effort: lines that match no rule are skipped, and Parse
// never fails. The rules follow TeX's log conventions:
//
//   - A line starting with "!" opens an error. The following lines are the
//     error's content, up to a blank line or a line-number marker ("l.42 ..."),
//     which is kept as the last content line.
//   - "LaTeX Warning:", "Package <name> Warning:" and "Class <name> Warning:"
//     lines are one-line warnings.
package logparser

import (
	"regexp"
	"strconv"
	"strings"
)

// Kind distinguishes errors from warnings.
type Kind string

const (
	KindError   Kind = "error"
	KindWarning Kind = "warning"
)

// Entry is one diagnostic extracted from the log.
type Entry struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Content string `json:"content,omitempty"`
	Line    int    `json:"line,omitempty"`
}

// Result holds the parsed diagnostics in log order.
type Result struct {
	Errors   []Entry `json:"errors"`
	Warnings []Entry `json:"warnings"`
}

// Empty reports whether nothing was found.
func (r Result) Empty() bool {
	return len(r.Errors) == 0 && len(r.Warnings) == 0
}

var (
	lineMarkerRe = regexp.MustCompile(`^l\.(\d+)`)
	warningRe    = regexp.MustCompile(`(?:LaTeX|Package \S+|Class \S+) Warning:\s*(.*)$`)
	inputLineRe  = regexp.MustCompile(`on input line (\d+)\.?\s*$`)
)

// Parse converts a raw log into diagnostics.
func Parse(raw string) Result {
	res := Result{Errors: []Entry{}, Warnings: []Entry{}}
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")

	for i := 0; i < len(lines); i++ {
		line := lines[i]

		if strings.HasPrefix(line, "!") {
			var entry Entry
			entry, i = parseError(lines, i)
			res.Errors = append(res.Errors, entry)
			continue
		}

		if m := warningRe.FindStringSubmatch(line); m != nil {
			res.Warnings = append(res.Warnings, Entry{
				Kind:    KindWarning,
				Message: strings.TrimSpace(m[1]),
				Line:    submatchInt(inputLineRe, m[1]),
			})
		}
	}

	return res
}

// parseError consumes the block opened at lines[start] and returns the entry
// and the index of the last line that belongs to it.
func parseError(lines []string, start int) (Entry, int) {
	entry := Entry{
		Kind:    KindError,
		Message: strings.TrimSpace(strings.TrimPrefix(lines[start], "!")),
	}

	var content []string
	i := start
	for i+1 < len(lines) {
		next := lines[i+1]
		if strings.TrimSpace(next) == "" || strings.HasPrefix(next, "!") {
			break
		}
		i++
		content = append(content, next)
		if lineMarkerRe.MatchString(next) {
			entry.Line = submatchInt(lineMarkerRe, next)
			break
		}
	}

	entry.Content = strings.Join(content, "\n")
	return entry, i
}

func submatchInt(re *regexp.Regexp, s string) int {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}
