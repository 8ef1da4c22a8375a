// Package protocol defines the CLSI request/response types and the project
// tree listing returned by the file server.
package protocol

import (
	"time"

	"github.com/texforge/texforge/pkg/models"
)

// ModifiedLayout is the timestamp format the CLSI expects in resource
// "modified" fields.
const ModifiedLayout = time.RFC1123Z

// Compile statuses reported by the CLSI.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Resource is one project file in a compile request. It is either inline
// (Content set, sent with the request) or remote (URL set, fetched by the
// CLSI from persisted storage).
type Resource struct {
	Path     string  `json:"path"`
	Content  *string `json:"content,omitempty"`
	Modified string  `json:"modified,omitempty"`
	URL      string  `json:"url,omitempty"`
}

// InlineResource returns a resource carrying the live buffer content.
func InlineResource(path, content string) Resource {
	return Resource{Path: path, Content: &content}
}

// RemoteResource returns a resource the CLSI fetches from url.
func RemoteResource(path string, modified time.Time, url string) Resource {
	r := Resource{Path: path, URL: url}
	if !modified.IsZero() {
		r.Modified = modified.Format(ModifiedLayout)
	}
	return r
}

// IsInline reports whether the resource carries its content.
func (r Resource) IsInline() bool {
	return r.Content != nil
}

// CompileOptions holds per-compile settings.
type CompileOptions struct {
	Compiler string `json:"compiler"`
}

// CompileRequest is the body of POST /clsi/compile (wrapped in CompileEnvelope).
type CompileRequest struct {
	Options          CompileOptions `json:"options"`
	RootResourcePath string         `json:"rootResourcePath"`
	Resources        []Resource     `json:"resources"`
}

// HasResource reports whether path is among the request's resources.
func (r *CompileRequest) HasResource(path string) bool {
	for _, res := range r.Resources {
		if res.Path == path {
			return true
		}
	}
	return false
}

// CompileEnvelope wraps a request as {"compile": {...}}.
type CompileEnvelope struct {
	Compile *CompileRequest `json:"compile"`
}

// OutputFile is a compile artifact, normally the PDF.
type OutputFile struct {
	URL  string `json:"url"`
	Type string `json:"type,omitempty"`
}

// LogFile points at a compiler log.
type LogFile struct {
	URL string `json:"url"`
}

// CompileResponse is returned by POST /clsi/compile (wrapped in
// CompileResponseEnvelope).
type CompileResponse struct {
	Status      string       `json:"status"`
	OutputFiles []OutputFile `json:"output_files"`
	Logs        []LogFile    `json:"logs"`
}

// FirstOutput returns the first output file. Later outputs are ignored.
func (r *CompileResponse) FirstOutput() (OutputFile, bool) {
	if len(r.OutputFiles) == 0 {
		return OutputFile{}, false
	}
	return r.OutputFiles[0], true
}

// FirstLog returns the first log. Later logs are ignored.
func (r *CompileResponse) FirstLog() (LogFile, bool) {
	if len(r.Logs) == 0 {
		return LogFile{}, false
	}
	return r.Logs[0], true
}

// CompileResponseEnvelope wraps a response as {"compile": {...}}.
type CompileResponseEnvelope struct {
	Compile *CompileResponse `json:"compile"`
}

// ListResponse is returned by GET /api/v1/tree/{path}: one directory level.
type ListResponse struct {
	Path     string             `json:"path"`
	Children []*models.FileNode `json:"children"`
}

// ErrorResponse is returned on API errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Details string `json:"details,omitempty"`
}
