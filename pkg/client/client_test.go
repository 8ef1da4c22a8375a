package client

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/texforge/texforge/internal/logging"
	"github.com/texforge/texforge/pkg/models"
	"github.com/texforge/texforge/pkg/protocol"
	"github.com/texforge/texforge/pkg/retry"
)

func testClient(handler http.Handler) (*Client, *httptest.Server) {
	ts := httptest.NewServer(handler)
	c := New(Config{
		BaseURL:  ts.URL,
		FilesURL: ts.URL,
		RetryConfig: retry.Config{
			MaxAttempts: 3,
			InitialWait: time.Millisecond,
			MaxWait:     time.Millisecond,
		},
	})
	return c, ts
}

func sampleRequest() *protocol.CompileRequest {
	return &protocol.CompileRequest{
		Options:          protocol.CompileOptions{Compiler: "pdflatex"},
		RootResourcePath: "main.tex",
		Resources: []protocol.Resource{
			protocol.InlineResource("main.tex", `\documentclass{article}`),
			protocol.RemoteResource("chapter1.tex", time.Unix(1700000000, 0).UTC(), "http://files/chapter1.tex"),
		},
	}
}

func TestSubmitCompile_Success(t *testing.T) {
	var got map[string]json.RawMessage
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != CompilePath {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"compile":{"status":"success","output_files":[{"url":"u1","type":"pdf"}],"logs":[]}}`))
	}))
	defer ts.Close()

	resp, err := c.SubmitCompile(context.Background(), sampleRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Status != protocol.StatusSuccess {
		t.Errorf("status = %q", resp.Status)
	}
	if out, ok := resp.FirstOutput(); !ok || out.URL != "u1" {
		t.Errorf("first output = %+v, %v", out, ok)
	}
	if _, ok := resp.FirstLog(); ok {
		t.Error("expected no log")
	}

	var body struct {
		Options          map[string]string `json:"options"`
		RootResourcePath string            `json:"rootResourcePath"`
		Resources        []map[string]any  `json:"resources"`
	}
	if err := json.Unmarshal(got["compile"], &body); err != nil {
		t.Fatalf("request not wrapped in compile envelope: %v", err)
	}
	if body.Options["compiler"] != "pdflatex" || body.RootResourcePath != "main.tex" {
		t.Errorf("unexpected body %+v", body)
	}
	if len(body.Resources) != 2 {
		t.Fatalf("resources = %d", len(body.Resources))
	}
	if body.Resources[0]["content"] != `\documentclass{article}` {
		t.Errorf("inline resource = %+v", body.Resources[0])
	}
	if _, hasContent := body.Resources[1]["content"]; hasContent {
		t.Errorf("remote resource must not carry content: %+v", body.Resources[1])
	}
	if body.Resources[1]["modified"] != "Tue, 14 Nov 2023 22:13:20 +0000" {
		t.Errorf("modified = %v", body.Resources[1]["modified"])
	}
}

func TestSubmitCompile_NotRetried(t *testing.T) {
	var attempts atomic.Int32
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(protocol.ErrorResponse{Error: "upstream down", Code: 502})
	}))
	defer ts.Close()

	_, err := c.SubmitCompile(context.Background(), sampleRequest())
	se, ok := AsStatus(err)
	if !ok {
		t.Fatalf("expected StatusError, got %T: %v", err, err)
	}
	if se.StatusCode != http.StatusBadGateway || se.Message != "upstream down" {
		t.Errorf("unexpected status error %+v", se)
	}
	if attempts.Load() != 1 {
		t.Errorf("expected exactly 1 attempt, got %d", attempts.Load())
	}
	if c.IsOnline() {
		t.Error("client should be offline after a 5xx")
	}
}

func TestSubmitCompile_Malformed(t *testing.T) {
	for name, body := range map[string]string{
		"not json":       "<html>oops</html>",
		"missing object": `{"status":"success"}`,
	} {
		t.Run(name, func(t *testing.T) {
			c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(body))
			}))
			defer ts.Close()

			_, err := c.SubmitCompile(context.Background(), sampleRequest())
			if !errors.Is(err, ErrMalformedResponse) {
				t.Fatalf("expected ErrMalformedResponse, got %v", err)
			}
		})
	}
}

func TestFetchLog_RewritesPublicURL(t *testing.T) {
	var gotPath string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte("! Undefined control sequence.\nl.3 \\foo\n"))
	}))
	defer ts.Close()

	c := New(Config{BaseURL: ts.URL + "/clsi", PublicURL: "http://localhost:3000"})
	text, err := c.FetchLog(context.Background(), "http://localhost:3000/output/abc/output.log")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/clsi/output/abc/output.log" {
		t.Errorf("path = %q", gotPath)
	}
	if !strings.HasPrefix(text, "! Undefined") {
		t.Errorf("text = %q", text)
	}
}

func TestFetchLog_Gzip(t *testing.T) {
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		gw := gzip.NewWriter(w)
		gw.Write([]byte("LaTeX Warning: x"))
		gw.Close()
	}))
	defer ts.Close()

	text, err := c.FetchLog(context.Background(), ts.URL+"/log")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "LaTeX Warning: x" {
		t.Errorf("text = %q", text)
	}
}

func TestFetchLog_NotFound(t *testing.T) {
	var attempts atomic.Int32
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		http.NotFound(w, r)
	}))
	defer ts.Close()

	_, err := c.FetchLog(context.Background(), "/output/missing.log")
	if se, ok := AsStatus(err); !ok || se.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 StatusError, got %v", err)
	}
	if attempts.Load() != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts.Load())
	}
}

func TestDownload(t *testing.T) {
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("%PDF-1.5"))
	}))
	defer ts.Close()

	var buf bytes.Buffer
	n, err := c.Download(context.Background(), "/output/output.pdf", &buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 8 || buf.String() != "%PDF-1.5" {
		t.Errorf("got %d bytes %q", n, buf.String())
	}
}

func TestListDirectory_RetriesServerErrors(t *testing.T) {
	var attempts atomic.Int32
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if r.URL.Path != "/api/v1/tree/my project/chapters" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(protocol.ListResponse{
			Path: "/my project/chapters",
			Children: []*models.FileNode{
				{Name: "one.tex", Path: "/my project/chapters/one.tex", Type: models.NodeFile},
			},
		})
	}))
	defer ts.Close()

	children, err := c.ListDirectory(context.Background(), "/my project/chapters")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(children) != 1 || children[0].Name != "one.tex" {
		t.Errorf("children = %+v", children)
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestListDirectory_ClientErrorNotRetried(t *testing.T) {
	var attempts atomic.Int32
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer ts.Close()

	if _, err := c.ListDirectory(context.Background(), "/"); err == nil {
		t.Fatal("expected error")
	}
	if attempts.Load() != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts.Load())
	}
}

func TestResolveURL(t *testing.T) {
	c := New(Config{BaseURL: "http://proxy/clsi/", PublicURL: "http://clsi:3000"})
	tests := []struct {
		in, want string
	}{
		{"http://clsi:3000/output/a.log", "http://proxy/clsi/output/a.log"},
		{"/output/a.log", "http://proxy/clsi/output/a.log"},
		{"http://elsewhere/a.log", "http://elsewhere/a.log"},
	}
	for _, tt := range tests {
		if got := c.ResolveURL(tt.in); got != tt.want {
			t.Errorf("ResolveURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestContentURL(t *testing.T) {
	c := New(Config{BaseURL: "http://clsi", FilesURL: "http://files/"})
	if got := c.ContentURL("/my project/main.tex"); got != "http://files/api/v1/content/my%20project/main.tex" {
		t.Errorf("ContentURL = %q", got)
	}
}

func TestSubmitCompile_SendsCompileID(t *testing.T) {
	var got string
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get(CompileIDHeader)
		w.Write([]byte(`{"compile":{"status":"success","output_files":[],"logs":[]}}`))
	}))
	defer ts.Close()

	ctx := logging.WithCompileID(context.Background(), "20240301120000-7")
	if _, err := c.SubmitCompile(ctx, sampleRequest()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "20240301120000-7" {
		t.Errorf("%s = %q", CompileIDHeader, got)
	}
}

func TestPing(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusOK)
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/status" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.WriteHeader(int(status.Load()))
	}))
	defer ts.Close()

	if !c.LastPing().IsZero() {
		t.Error("LastPing should be zero before any request")
	}
	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !c.IsOnline() || c.LastPing().IsZero() {
		t.Errorf("online = %v, last ping = %v", c.IsOnline(), c.LastPing())
	}

	status.Store(http.StatusServiceUnavailable)
	err := c.Ping(context.Background())
	if se, ok := AsStatus(err); !ok || se.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 StatusError, got %v", err)
	}
	if c.IsOnline() {
		t.Error("client should be offline after a failed ping")
	}
}
