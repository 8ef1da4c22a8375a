// Package compile runs the compile lifecycle: enumerate the project tree,
// build the request, submit it to the CLSI, show the output and, when the
// CLSI returns a log, fetch and parse it.
//
// An Orchestrator runs one compile at a time. Everything an invocation
// produces lives in its Result; the orchestrator itself only keeps State.
package compile

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/texforge/texforge/internal/builder"
	"github.com/texforge/texforge/internal/events"
	"github.com/texforge/texforge/internal/logging"
	"github.com/texforge/texforge/internal/metrics"
	"github.com/texforge/texforge/pkg/logparser"
	"github.com/texforge/texforge/pkg/models"
	"github.com/texforge/texforge/pkg/protocol"
	"github.com/texforge/texforge/pkg/tree"
)

// Compile outcomes used for metrics and events.
const (
	OutcomeSuccess        = "success"
	OutcomeFailure        = "failure"
	OutcomeNoRoot         = "no_root"
	OutcomeEnumerateError = "enumerate_error"
	OutcomeSettingsError  = "settings_error"
	OutcomeBuildError     = "build_error"
	OutcomeSubmitError    = "submit_error"
	OutcomeLogError       = "log_error"
)

// Options wires an Orchestrator to its collaborators. Remote, Tree, Editor
// and Settings are required.
type Options struct {
	Remote   Remote
	Tree     TreeSource
	Editor   Editor
	Settings Settings

	// Display defaults to NopDisplay.
	Display Display
	// Events, if set, receives every state change and result.
	Events *events.Broadcaster
	// Builder defaults to builder.New(Tree).
	Builder *builder.Builder
	// DefaultCompiler is used when the settings name none.
	DefaultCompiler string
	// Timeout bounds a whole invocation. 0 leaves it to the caller's context.
	Timeout time.Duration
}

// Result is the job object of one invocation.
type Result struct {
	CompileID string
	Files     []models.FileRecord
	Request   *protocol.CompileRequest
	Response  *protocol.CompileResponse

	OutputURL      string
	OutputProduced bool

	LogURL      string
	RawLog      string
	Diagnostics logparser.Result

	// States lists every state entered, in order.
	States   []State
	Outcome  string
	Duration time.Duration
}

// Orchestrator sequences compile invocations.
type Orchestrator struct {
	opts    Options
	builder *builder.Builder
	display Display

	mu    sync.Mutex
	state State
}

// New creates an orchestrator in the Idle state.
func New(opts Options) *Orchestrator {
	b := opts.Builder
	if b == nil {
		b = builder.New(opts.Tree)
	}
	d := opts.Display
	if d == nil {
		d = NopDisplay{}
	}
	return &Orchestrator{opts: opts, builder: b, display: d, state: Idle}
}

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Compile runs one invocation and blocks until it reaches Done. Failures
// are reported to the Display and also returned; the Result is returned
// with whatever was produced before the failure. A call made while another
// invocation is outstanding returns ErrCompileInProgress and changes
// nothing.
func (o *Orchestrator) Compile(ctx context.Context) (*Result, error) {
	o.mu.Lock()
	if o.state.busy() {
		o.mu.Unlock()
		metrics.RecordCompileRejected()
		logging.WithContext(ctx).Debug("compile rejected, one is already in flight")
		return nil, ErrCompileInProgress
	}
	o.state = Compiling
	o.mu.Unlock()

	if o.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	res := &Result{
		CompileID:   logging.NewCompileID(),
		Diagnostics: logparser.Result{Errors: []logparser.Entry{}, Warnings: []logparser.Entry{}},
	}
	ctx = logging.WithCompileID(ctx, res.CompileID)
	log := logging.WithContext(ctx)

	o.announce(ctx, res, Compiling)

	err := o.run(ctx, res)

	res.Duration = time.Since(start)
	if err != nil {
		o.display.ReportError(err)
		o.opts.Events.Publish(events.Event{
			Type:      events.EventError,
			CompileID: res.CompileID,
			Message:   err.Error(),
		})
		log.Warn("compile failed", zap.String("outcome", res.Outcome), zap.Error(err))
	} else {
		log.Info("compile finished",
			zap.String("outcome", res.Outcome),
			zap.Bool("output", res.OutputProduced),
			zap.Int("errors", len(res.Diagnostics.Errors)),
			zap.Int("warnings", len(res.Diagnostics.Warnings)),
			zap.Duration("duration", res.Duration))
	}
	metrics.RecordCompile(res.Outcome, res.Duration)

	o.setState(Done)
	o.announce(ctx, res, Done)

	return res, err
}

func (o *Orchestrator) run(ctx context.Context, res *Result) error {
	log := logging.WithContext(ctx)

	files, err := o.enumerate(ctx)
	if err != nil {
		res.Outcome = OutcomeEnumerateError
		return err
	}
	res.Files = files

	compiler, mainPath, err := o.settings(ctx)
	if err != nil {
		res.Outcome = OutcomeSettingsError
		return err
	}

	req, err := o.builder.Build(ctx, builder.Input{
		Files:    files,
		Open:     o.opts.Editor.Buffers(),
		Focused:  o.opts.Editor.Focused(),
		MainPath: mainPath,
		Compiler: compiler,
	})
	if err != nil {
		if errors.Is(err, builder.ErrNoRootResource) {
			res.Outcome = OutcomeNoRoot
		} else {
			res.Outcome = OutcomeBuildError
		}
		return err
	}
	res.Request = req
	log.Debug("compile request built",
		zap.String("root", req.RootResourcePath),
		zap.String("compiler", req.Options.Compiler),
		zap.Int("resources", len(req.Resources)))

	resp, err := o.opts.Remote.SubmitCompile(ctx, req)
	if err != nil {
		res.Outcome = OutcomeSubmitError
		return &RemoteSubmitError{Err: err}
	}
	res.Response = resp
	if resp.Status == protocol.StatusSuccess {
		res.Outcome = OutcomeSuccess
	} else {
		res.Outcome = OutcomeFailure
	}

	if out, ok := resp.FirstOutput(); ok {
		res.OutputURL = out.URL
		res.OutputProduced = true
		o.display.ShowOutput(out.URL)
		o.opts.Events.Publish(events.Event{Type: events.EventOutput, CompileID: res.CompileID, URL: out.URL})
	} else {
		o.display.ShowNoOutput()
		o.opts.Events.Publish(events.Event{Type: events.EventNoOutput, CompileID: res.CompileID})
	}

	logFile, ok := resp.FirstLog()
	if !ok {
		return nil
	}
	res.LogURL = logFile.URL

	o.setState(ParsingLog)
	o.announce(ctx, res, ParsingLog)

	raw, err := o.opts.Remote.FetchLog(ctx, logFile.URL)
	if err != nil {
		res.Outcome = OutcomeLogError
		return &LogFetchError{URL: logFile.URL, Err: err}
	}
	res.RawLog = raw
	res.Diagnostics = logparser.Parse(raw)

	metrics.RecordDiagnostics(len(res.Diagnostics.Errors), len(res.Diagnostics.Warnings))
	o.display.ShowLog(raw, res.Diagnostics)
	o.opts.Events.Publish(events.Event{
		Type:      events.EventDiagnostics,
		CompileID: res.CompileID,
		URL:       logFile.URL,
		Errors:    len(res.Diagnostics.Errors),
		Warnings:  len(res.Diagnostics.Warnings),
	})
	return nil
}

func (o *Orchestrator) enumerate(ctx context.Context) ([]models.FileRecord, error) {
	root, err := o.opts.Tree.Root(ctx)
	if err != nil {
		return nil, err
	}
	e := &tree.Enumerator{Loader: o.opts.Tree, Prefix: o.opts.Tree.Prefix()}
	files, err := e.Enumerate(ctx, root)
	if err != nil {
		return nil, err
	}
	metrics.SetEnumeratedFiles(len(files))
	logging.WithContext(ctx).Debug("project enumerated",
		zap.Int("files", len(files)),
		zap.Int("nodes", tree.CountNodes(root)))
	return files, nil
}

func (o *Orchestrator) settings(ctx context.Context) (compiler, mainPath string, err error) {
	compiler, err = o.opts.Settings.Compiler(ctx)
	if err != nil {
		return "", "", err
	}
	if compiler == "" {
		compiler = o.opts.DefaultCompiler
	}
	mainPath, err = o.opts.Settings.MainPath(ctx)
	if err != nil {
		return "", "", err
	}
	return compiler, mainPath, nil
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

// announce tells everyone about a state that was just entered. Entering
// Compiling disables the compile trigger and entering Done re-enables it.
func (o *Orchestrator) announce(ctx context.Context, res *Result, s State) {
	res.States = append(res.States, s)
	metrics.RecordStateTransition(s.String())
	o.opts.Events.Publish(events.Event{Type: events.EventState, CompileID: res.CompileID, State: s.String()})
	logging.WithContext(ctx).Debug("compile state", zap.Stringer("state", s))

	switch s {
	case Compiling:
		o.display.SetCompileEnabled(false)
	case Done:
		o.display.SetCompileEnabled(true)
	}
	o.display.StateChanged(s)
}
