// Package client speaks the fact-checking backend's HTTP and WebSocket protocol.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const maxResponseBytes = 1 << 20

// Waiter gates outgoing requests (see worker.Limiter)
type Waiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// Options configures a Client
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	UserAgent  string
	Pipeline   string
	Limiter    Waiter
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client is the HTTP client for the fact-checking API
type Client struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
	pipeline   string
	limiter    Waiter
	logger     *zap.Logger
}

// New creates a Client
func New(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimSpace(opts.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base URL must be http or https, got %q", opts.BaseURL)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	pipeline := opts.Pipeline
	if pipeline == "" {
		pipeline = "fact"
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		baseURL:    strings.TrimSuffix(base.String(), "/"),
		httpClient: httpClient,
		userAgent:  opts.UserAgent,
		pipeline:   pipeline,
		limiter:    opts.Limiter,
		logger:     logger,
	}, nil
}

// BaseURL returns the normalised API base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

type startRequest struct {
	Text     string `json:"text"`
	Pipeline string `json:"pipeline"`
}

// StartResponse acknowledges a started verification
type StartResponse struct {
	Status   string `json:"status"`
	TaskID   string `json:"-"`
	Pipeline string `json:"pipeline"`
	Query    string `json:"query"`
}

// Start asks the backend to begin verifying text
func (c *Client) Start(ctx context.Context, text string) (*StartResponse, error) {
	body, err := json.Marshal(startRequest{Text: text, Pipeline: c.pipeline})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	data, err := c.do(ctx, "start", http.MethodPost, "/api/fact-check", body)
	if err != nil {
		return nil, err
	}

	var raw struct {
		StartResponse
		TaskID any `json:"task_id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		// The acknowledgement body is informational only
		c.logger.Debug("unparseable start acknowledgement", zap.Error(err))
		return &StartResponse{}, nil
	}

	resp := raw.StartResponse
	if raw.TaskID != nil {
		resp.TaskID = fmt.Sprint(raw.TaskID)
	}
	return &resp, nil
}

// Poll fetches and classifies the current result
func (c *Client) Poll(ctx context.Context, taskID string) (*PollResult, error) {
	path := "/api/fact-check-result"
	if taskID != "" {
		path += "?task_id=" + url.QueryEscape(taskID)
	}

	data, err := c.do(ctx, "poll", http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	result, err := ParsePollPayload(data)
	if err != nil {
		return nil, fmt.Errorf("decode poll response: %w", err)
	}
	return result, nil
}

// HealthStatus is the backend liveness response
type HealthStatus struct {
	Status    string        `json:"status"`
	Timestamp string        `json:"timestamp,omitempty"`
	Latency   time.Duration `json:"-"`
}

// Health probes the liveness endpoint
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	start := time.Now()
	data, err := c.do(ctx, "health", http.MethodGet, "/api/health", nil)
	if err != nil {
		return nil, err
	}

	var status HealthStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("decode health response: %w", err)
	}
	status.Latency = time.Since(start)
	return &status, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body []byte) ([]byte, error) {
	endpoint := c.baseURL + path

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, endpoint); err != nil {
			return nil, fmt.Errorf("%s: rate limit: %w", op, err)
		}
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%s: read body: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       truncate(string(data), 200),
		}
	}

	return data, nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
