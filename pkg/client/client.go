// Package client provides the HTTP client for the CLSI and the project file
// server.
//
// Compile submission and log fetches are single attempts: a failure is
// returned to the caller as is. Directory listings are idempotent and go
// through the retry package.
package client

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/texforge/texforge/internal/logging"
	"github.com/texforge/texforge/internal/metrics"
	"github.com/texforge/texforge/pkg/models"
	"github.com/texforge/texforge/pkg/protocol"
	"github.com/texforge/texforge/pkg/retry"
)

const (
	// CompilePath is the CLSI submit endpoint relative to the base URL.
	CompilePath = "/clsi/compile"
	// CompileIDHeader carries the invocation's compile ID so CLSI and proxy
	// logs can be matched with ours.
	CompileIDHeader = "X-Compile-ID"
)

// Client talks to the CLSI and, for remote project trees, the file server.
type Client struct {
	baseURL     string
	publicURL   string
	filesURL    string
	httpClient  *http.Client
	retryConfig retry.Config

	mu       sync.RWMutex
	online   bool
	lastPing time.Time
}

// Config holds client configuration.
type Config struct {
	// BaseURL is the (proxied) CLSI base the client sends requests to.
	BaseURL string
	// PublicURL is the origin the CLSI writes into log and output URLs.
	// URLs under it are rewritten onto BaseURL before fetching.
	PublicURL string
	// FilesURL is the file server used for directory listings.
	FilesURL string
	// Timeout bounds each HTTP exchange. 0 leaves requests bounded only by
	// the caller's context.
	Timeout     time.Duration
	RetryConfig retry.Config
}

// New creates a new client.
func New(cfg Config) *Client {
	if cfg.RetryConfig.MaxAttempts == 0 {
		cfg.RetryConfig = retry.DefaultConfig()
	}
	base := strings.TrimSuffix(cfg.BaseURL, "/")
	public := strings.TrimSuffix(cfg.PublicURL, "/")
	if public == "" {
		public = base
	}

	return &Client{
		baseURL:   base,
		publicURL: public,
		filesURL:  strings.TrimSuffix(cfg.FilesURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        100,
				IdleConnTimeout:     90 * time.Second,
				DisableCompression:  false,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		retryConfig: cfg.RetryConfig,
		online:      true,
	}
}

// StatusError is returned when a server answers with an unexpected status.
type StatusError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: server returned %d: %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: server returned %d", e.Op, e.StatusCode)
}

// AsStatus checks if an error is a StatusError and returns it.
func AsStatus(err error) (*StatusError, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// ErrMalformedResponse is returned when a CLSI response cannot be understood.
var ErrMalformedResponse = errors.New("malformed compile response")

// IsOnline returns true if the CLSI answered the last request.
func (c *Client) IsOnline() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.online
}

func (c *Client) setOnline(online bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.online != online {
		if online {
			logging.Info("CLSI is back online", zap.String("url", c.baseURL))
		} else {
			logging.Error("CLSI is offline", zap.String("url", c.baseURL))
		}
	}
	c.online = online
	c.lastPing = time.Now()
}

// LastPing returns when the CLSI last answered, or failed to answer, a
// request. It is zero before the first request.
func (c *Client) LastPing() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastPing
}

// Ping checks if the CLSI is reachable. It is attempted exactly once.
func (c *Client) Ping(ctx context.Context) error {
	start := time.Now()
	err := c.ping(ctx)
	metrics.RecordRemoteRequest("ping", time.Since(start), err == nil)
	return err
}

func (c *Client) ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/status", nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.setOnline(false)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.setOnline(false)
		return &StatusError{Op: "ping", StatusCode: resp.StatusCode}
	}

	c.setOnline(true)
	return nil
}

// SubmitCompile posts a compile request and returns the CLSI's response.
// It is attempted exactly once.
func (c *Client) SubmitCompile(ctx context.Context, request *protocol.CompileRequest) (*protocol.CompileResponse, error) {
	start := time.Now()
	resp, err := c.submitCompile(ctx, request)
	metrics.RecordRemoteRequest("submit", time.Since(start), err == nil)
	return resp, err
}

func (c *Client) submitCompile(ctx context.Context, request *protocol.CompileRequest) (*protocol.CompileResponse, error) {
	body, err := json.Marshal(protocol.CompileEnvelope{Compile: request})
	if err != nil {
		return nil, fmt.Errorf("encode compile request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+CompilePath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept-Encoding", "gzip")
	if id := logging.GetCompileID(ctx); id != "" {
		req.Header.Set(CompileIDHeader, id)
	}

	logging.WithContext(ctx).Debug("submitting compile",
		zap.String("url", req.URL.String()),
		zap.String("root", request.RootResourcePath),
		zap.Int("resources", len(request.Resources)))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.setOnline(false)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		c.setOnline(false)
	} else {
		c.setOnline(true)
	}

	reader, err := bodyReader(resp)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError("compile", resp.StatusCode, reader)
	}

	var envelope protocol.CompileResponseEnvelope
	if err := json.NewDecoder(reader).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if envelope.Compile == nil {
		return nil, fmt.Errorf("%w: missing compile object", ErrMalformedResponse)
	}

	return envelope.Compile, nil
}

// FetchLog fetches a compiler log and returns its raw text. It is attempted
// exactly once.
func (c *Client) FetchLog(ctx context.Context, logURL string) (string, error) {
	start := time.Now()
	var buf bytes.Buffer
	_, err := c.get(ctx, "log", logURL, &buf)
	metrics.RecordRemoteRequest("fetch_log", time.Since(start), err == nil)
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Download streams an output file (normally the PDF) into w.
func (c *Client) Download(ctx context.Context, outputURL string, w io.Writer) (int64, error) {
	start := time.Now()
	n, err := c.get(ctx, "output", outputURL, w)
	metrics.RecordRemoteRequest("download", time.Since(start), err == nil)
	return n, err
}

func (c *Client) get(ctx context.Context, op, rawURL string, w io.Writer) (int64, error) {
	target := c.ResolveURL(rawURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept-Encoding", "gzip")

	logging.WithContext(ctx).Debug("fetching "+op, zap.String("url", target))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.setOnline(false)
		return 0, err
	}
	defer resp.Body.Close()

	reader, err := bodyReader(resp)
	if err != nil {
		return 0, err
	}
	defer reader.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, statusError(op, resp.StatusCode, reader)
	}
	c.setOnline(true)

	n, err := io.Copy(w, reader)
	if err != nil {
		return n, fmt.Errorf("read %s: %w", op, err)
	}
	return n, nil
}

// ResolveURL maps a URL handed out by the CLSI onto the configured base:
// URLs under the public origin are rewritten onto BaseURL and relative
// paths are joined to it.
func (c *Client) ResolveURL(rawURL string) string {
	if c.publicURL != "" && c.publicURL != c.baseURL && strings.HasPrefix(rawURL, c.publicURL) {
		return c.baseURL + rawURL[len(c.publicURL):]
	}
	if strings.HasPrefix(rawURL, "/") {
		return c.baseURL + rawURL
	}
	return rawURL
}

// ListDirectory fetches one level of the project tree from the file server.
// Transient failures are retried.
func (c *Client) ListDirectory(ctx context.Context, dirPath string) ([]*models.FileNode, error) {
	if c.filesURL == "" {
		return nil, errors.New("list directory: no files URL configured")
	}

	start := time.Now()
	children, err := retry.DoWithResult(ctx, c.retryConfig, func() ([]*models.FileNode, error) {
		return c.listDirectory(ctx, dirPath)
	})
	metrics.RecordRemoteRequest("list_directory", time.Since(start), err == nil)
	return children, err
}

func (c *Client) listDirectory(ctx context.Context, dirPath string) ([]*models.FileNode, error) {
	target := c.filesURL + "/api/v1/tree" + escapePath(dirPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept-Encoding", "gzip")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, retry.Retryable(err)
	}
	defer resp.Body.Close()

	reader, err := bodyReader(resp)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	if resp.StatusCode != http.StatusOK {
		err := statusError("list directory", resp.StatusCode, reader)
		if resp.StatusCode >= 500 {
			return nil, retry.Retryable(err)
		}
		return nil, err
	}

	var listing protocol.ListResponse
	if err := json.NewDecoder(reader).Decode(&listing); err != nil {
		return nil, fmt.Errorf("decode listing: %w", err)
	}
	return listing.Children, nil
}

// ContentURL returns the file server URL serving the content of treePath.
// The CLSI fetches remote resources from it.
func (c *Client) ContentURL(treePath string) string {
	return c.filesURL + "/api/v1/content" + escapePath(treePath)
}

func escapePath(p string) string {
	if p == "" || p == "/" {
		return "/"
	}
	segments := strings.Split(strings.Trim(p, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return "/" + strings.Join(segments, "/")
}

func statusError(op string, code int, body io.Reader) error {
	se := &StatusError{Op: op, StatusCode: code}
	var errResp protocol.ErrorResponse
	if json.NewDecoder(io.LimitReader(body, 64<<10)).Decode(&errResp) == nil {
		se.Message = errResp.Error
	}
	return se
}

func bodyReader(resp *http.Response) (io.ReadCloser, error) {
	if resp.Header.Get("Content-Encoding") != "gzip" {
		return io.NopCloser(resp.Body), nil
	}
	gr, err := gzip.NewReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("gzip body: %w", err)
	}
	return gr, nil
}
