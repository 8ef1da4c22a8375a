package compile

import (
	"context"

	"github.com/texforge/texforge/internal/builder"
	"github.com/texforge/texforge/pkg/logparser"
	"github.com/texforge/texforge/pkg/models"
	"github.com/texforge/texforge/pkg/protocol"
	"github.com/texforge/texforge/pkg/tree"
)

// Remote submits compile jobs and fetches their logs. *client.Client
// implements it.
type Remote interface {
	SubmitCompile(ctx context.Context, request *protocol.CompileRequest) (*protocol.CompileResponse, error)
	FetchLog(ctx context.Context, url string) (string, error)
}

// Editor exposes the open documents. *workspace.Workspace implements it.
type Editor interface {
	Buffers() []builder.Buffer
	Focused() string
}

// Settings reads the persisted project settings. settings.Store
// implementations satisfy it.
type Settings interface {
	Compiler(ctx context.Context) (string, error)
	MainPath(ctx context.Context) (string, error)
}

// TreeSource is the project tree. storage.Source implementations satisfy
// it.
type TreeSource interface {
	tree.Loader
	builder.URLResolver
	Root(ctx context.Context) (*models.FileNode, error)
	Prefix() string
}

// Display receives everything the user should see about a compile.
// Methods are called from the compiling goroutine, in order.
type Display interface {
	SetCompileEnabled(enabled bool)
	StateChanged(state State)
	ShowOutput(url string)
	ShowNoOutput()
	ShowLog(raw string, result logparser.Result)
	ReportError(err error)
}

// NopDisplay discards everything.
type NopDisplay struct{}

func (NopDisplay) SetCompileEnabled(bool)           {}
func (NopDisplay) StateChanged(State)               {}
func (NopDisplay) ShowOutput(string)                {}
func (NopDisplay) ShowNoOutput()                    {}
func (NopDisplay) ShowLog(string, logparser.Result) {}
func (NopDisplay) ReportError(error)                {}
