// Package synthesis is the client for the external program-synthesis
// collaborator. The collaborator is treated as untrusted and unreliable:
// timeouts, non-2xx statuses and malformed responses are expected failure
// modes and are reported as transport-class errors so the orchestrator can
// retry them. A well-formed response with success=false is terminal.
package synthesis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"loopai/internal/logging"
	"loopai/internal/model"
)

// Request is the synthesis request payload.
type Request struct {
	TaskID        string              `json:"task_id"`
	TaskName      string              `json:"task_name"`
	Description   string              `json:"description"`
	InputSchema   model.Document      `json:"input_schema"`
	OutputSchema  model.Document      `json:"output_schema"`
	Examples      []model.ExamplePair `json:"examples,omitempty"`
	Constraints   string              `json:"constraints,omitempty"`
	TargetRuntime string              `json:"target_runtime"`
	Version       int                 `json:"version"`
}

// Response is the synthesis response payload.
type Response struct {
	Success     bool                    `json:"success"`
	SourceCode  string                  `json:"source_code,omitempty"`
	Language    string                  `json:"language,omitempty"`
	Complexity  model.ComplexityMetrics `json:"complexity,omitempty"`
	Error       string                  `json:"error,omitempty"`
	Metadata    map[string]string       `json:"metadata,omitempty"`
	GeneratedAt time.Time               `json:"generated_at"`
}

// ErrTransport marks failures the orchestrator may retry: connection errors,
// per-attempt timeouts, bad statuses and undecodable bodies.
var ErrTransport = errors.New("synthesis transport failure")

// TerminalError is a collaborator-reported synthesis failure. It is never
// retried.
type TerminalError struct {
	Message string
}

func (e *TerminalError) Error() string {
	return fmt.Sprintf("synthesis rejected: %s", e.Message)
}

// Client calls the synthesis collaborator over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	verbose    bool
}

// Option configures the Client during construction.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithLogger configures structured logging.
func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

// WithTimeout sets the per-request timeout on the HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) { cl.httpClient.Timeout = d }
}

// WithVerbose enables request/response debug logging.
func WithVerbose(v bool) Option {
	return func(cl *Client) { cl.verbose = v }
}

// New creates a synthesis client for the given base URL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("synthesis: baseURL is required")
	}
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logging.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Synthesize requests one program for the task. The ctx deadline bounds the
// attempt in addition to the client timeout.
func (c *Client) Synthesize(ctx context.Context, req *Request) (*Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("synthesis: encode request: %w", err)
	}

	url := c.baseURL + "/v1/synthesize"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("synthesis: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	if c.verbose {
		c.logger.DebugContext(ctx, "synthesis request",
			"task", req.TaskID, "version", req.Version, "url", url)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrTransport, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrTransport, err)
	}

	if c.verbose {
		c.logger.DebugContext(ctx, "synthesis response",
			"task", req.TaskID, "success", out.Success, "language", out.Language)
	}

	if !out.Success {
		return nil, &TerminalError{Message: out.Error}
	}
	if out.SourceCode == "" {
		// A success response with no code is a collaborator bug, not worth
		// retrying with the same payload.
		return nil, &TerminalError{Message: "success response without source code"}
	}
	return &out, nil
}
