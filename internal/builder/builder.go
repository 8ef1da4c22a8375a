// Package builder assembles CLSI compile requests from the project file list,
// the editor's open buffers and the persisted settings.
package builder

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/texforge/texforge/pkg/models"
	"github.com/texforge/texforge/pkg/protocol"
)

// DefaultCompiler is used when no compiler is configured.
const DefaultCompiler = "pdflatex"

// ErrNoRootResource is matched by every NoRootResourceError.
var ErrNoRootResource = errors.New("no root resource")

// NoRootResourceError is returned when no file can be identified as the
// compilation entry point. The request must not be submitted.
type NoRootResourceError struct {
	// MainPath is the configured main file, if it was set but not found
	// among the project files.
	MainPath string
}

func (e *NoRootResourceError) Error() string {
	if e.MainPath != "" {
		return fmt.Sprintf("no root resource: main file %q is not in the project", e.MainPath)
	}
	return "no root resource: open a top level document or set a main file"
}

// Is lets errors.Is(err, ErrNoRootResource) match.
func (e *NoRootResourceError) Is(target error) bool {
	return target == ErrNoRootResource
}

// AsNoRootResource checks if an error is a NoRootResourceError and returns it.
func AsNoRootResource(err error) (*NoRootResourceError, bool) {
	var nr *NoRootResourceError
	if errors.As(err, &nr) {
		return nr, true
	}
	return nil, false
}

// RootPredicate reports whether buffer content looks like a top level
// document.
type RootPredicate func(content string) bool

var documentMarker = regexp.MustCompile(`\\document(?:class|style)`)

// DocumentClass matches \documentclass and the LaTeX 2.09 \documentstyle.
func DocumentClass(content string) bool {
	return documentMarker.MatchString(content)
}

// URLResolver maps a project-relative path to the URL the CLSI fetches the
// persisted file from.
type URLResolver interface {
	ResourceURL(ctx context.Context, path string) (string, error)
}

// URLResolverFunc adapts a function to URLResolver.
type URLResolverFunc func(ctx context.Context, path string) (string, error)

// ResourceURL calls f.
func (f URLResolverFunc) ResourceURL(ctx context.Context, path string) (string, error) {
	return f(ctx, path)
}

// Buffer is a document open in the editor with its live content.
type Buffer struct {
	Path    string
	Content string
}

// Input is everything one request is built from.
type Input struct {
	Files []models.FileRecord
	// Open lists the open buffers in the editor's order.
	Open []Buffer
	// Focused is the path of the focused buffer, if any.
	Focused  string
	MainPath string
	Compiler string
}

// Builder builds compile requests.
type Builder struct {
	IsRoot   RootPredicate
	Resolver URLResolver
}

// New returns a Builder using DocumentClass for root detection.
func New(resolver URLResolver) *Builder {
	return &Builder{IsRoot: DocumentClass, Resolver: resolver}
}

// Build assembles a request. It returns a *NoRootResourceError when no root
// can be resolved.
func (b *Builder) Build(ctx context.Context, in Input) (*protocol.CompileRequest, error) {
	known := make(map[string]struct{}, len(in.Files))
	for _, f := range in.Files {
		known[f.Path] = struct{}{}
	}

	root, err := b.resolveRoot(in, known)
	if err != nil {
		return nil, err
	}

	open := make(map[string]string, len(in.Open))
	for _, buf := range in.Open {
		open[buf.Path] = buf.Content
	}

	resources := make([]protocol.Resource, len(in.Files))
	for i, f := range in.Files {
		if content, ok := open[f.Path]; ok {
			resources[i] = protocol.InlineResource(f.Path, content)
			continue
		}
		if b.Resolver == nil {
			return nil, fmt.Errorf("resolve url for %s: no resolver configured", f.Path)
		}
		url, err := b.Resolver.ResourceURL(ctx, f.Path)
		if err != nil {
			return nil, fmt.Errorf("resolve url for %s: %w", f.Path, err)
		}
		resources[i] = protocol.RemoteResource(f.Path, f.ModifiedAt, url)
	}

	compiler := in.Compiler
	if compiler == "" {
		compiler = DefaultCompiler
	}

	return &protocol.CompileRequest{
		Options:          protocol.CompileOptions{Compiler: compiler},
		RootResourcePath: root,
		Resources:        resources,
	}, nil
}

// resolveRoot applies, in order: the focused top level buffer, the first
// top level buffer, the configured main path. Candidates outside the
// project file list are skipped.
func (b *Builder) resolveRoot(in Input, known map[string]struct{}) (string, error) {
	isRoot := b.IsRoot
	if isRoot == nil {
		isRoot = DocumentClass
	}

	first := ""
	for _, buf := range in.Open {
		if _, ok := known[buf.Path]; !ok || !isRoot(buf.Content) {
			continue
		}
		if in.Focused != "" && buf.Path == in.Focused {
			return buf.Path, nil
		}
		if first == "" {
			first = buf.Path
		}
	}
	if first != "" {
		return first, nil
	}

	if in.MainPath != "" {
		if _, ok := known[in.MainPath]; ok {
			return in.MainPath, nil
		}
		return "", &NoRootResourceError{MainPath: in.MainPath}
	}

	return "", &NoRootResourceError{}
}
