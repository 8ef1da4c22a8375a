package compile

import (
	"errors"
	"fmt"
)

// State is the orchestrator's lifecycle state.
type State int

const (
	Idle State = iota
	Compiling
	ParsingLog
	Done
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Compiling:
		return "compiling"
	case ParsingLog:
		return "parsing_log"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// busy reports whether a compile is outstanding in this state.
func (s State) busy() bool {
	return s == Compiling || s == ParsingLog
}

// ErrCompileInProgress is returned when Compile is called while a previous
// invocation has not reached Done.
var ErrCompileInProgress = errors.New("compile already in progress")

// RemoteSubmitError wraps a failed compile submission: transport failure,
// unexpected status or an undecodable response.
type RemoteSubmitError struct {
	Err error
}

func (e *RemoteSubmitError) Error() string {
	return fmt.Sprintf("submit compile: %v", e.Err)
}

func (e *RemoteSubmitError) Unwrap() error {
	return e.Err
}

// AsRemoteSubmit checks if an error is a RemoteSubmitError and returns it.
func AsRemoteSubmit(err error) (*RemoteSubmitError, bool) {
	var se *RemoteSubmitError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// LogFetchError wraps a failed log retrieval.
type LogFetchError struct {
	URL string
	Err error
}

func (e *LogFetchError) Error() string {
	return fmt.Sprintf("fetch log %s: %v", e.URL, e.Err)
}

func (e *LogFetchError) Unwrap() error {
	return e.Err
}

// AsLogFetch checks if an error is a LogFetchError and returns it.
func AsLogFetch(err error) (*LogFetchError, bool) {
	var le *LogFetchError
	if errors.As(err, &le) {
		return le, true
	}
	return nil, false
}
