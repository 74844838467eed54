// Package api implements the REST client for the analysis backend: smart
// query/write, multimodal analysis, attachment upload, example prompts, the
// plan-mode stream, and the running-crawl count. Every response is
// normalized into the crawldesk/internal/core envelope shapes before it
// leaves this package.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"crawldesk/internal/core"
	"crawldesk/internal/logging"
)

// Config holds configuration for the backend client.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// DefaultConfig returns sensible defaults for a local backend.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL: baseURL,
		Timeout: 120 * time.Second,
	}
}

// Client talks to the analysis backend.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client

	examples *gocache.Cache

	mu          sync.Mutex
	lastRequest time.Time
	minInterval time.Duration
}

// New creates a backend client.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		httpClient:  &http.Client{Timeout: timeout},
		examples:    gocache.New(5*time.Minute, 10*time.Minute),
		minInterval: 200 * time.Millisecond,
	}
}

// APIError is a decoded backend error envelope.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("backend error %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("backend error %d: %s", e.Status, e.Message)
}

// errorEnvelope is the backend's error body shape.
type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// throttle enforces a minimum spacing between requests so rapid retries
// don't hammer the backend.
func (c *Client) throttle() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elapsed := time.Since(c.lastRequest); elapsed < c.minInterval {
		time.Sleep(c.minInterval - elapsed)
	}
	c.lastRequest = time.Now()
}

// doJSON performs a JSON request/response round trip.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	c.throttle()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	timer := logging.StartTimer(logging.CategoryAPI, method+" "+path)
	resp, err := c.httpClient.Do(req)
	timer.Stop()
	if err != nil {
		logging.APIError("%s %s failed: %v", method, path, err)
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp.StatusCode, data)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}

func decodeJSON(data []byte, out any) error {
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeError(status int, data []byte) error {
	apiErr := &APIError{Status: status, Message: http.StatusText(status)}
	var env errorEnvelope
	if err := json.Unmarshal(data, &env); err == nil && env.Error.Message != "" {
		apiErr.Code = env.Error.Code
		apiErr.Message = env.Error.Message
	}
	return apiErr
}

// SmartQuery runs a read-only natural-language query.
func (c *Client) SmartQuery(ctx context.Context, question string) (*core.ReadResult, error) {
	req := smartQueryRequest{Question: question, AllowWrite: false}
	var payload readResultPayload
	if err := c.doJSON(ctx, http.MethodPost, "/analysis/smart-query", req, &payload); err != nil {
		return nil, err
	}
	logging.API("smart-query returned %d items", payload.Total)
	return payload.toCore(), nil
}

// SmartWritePreview asks the backend for its dry-run interpretation of a
// write command. Performs no mutation by contract.
func (c *Client) SmartWritePreview(ctx context.Context, question string) (*core.PreviewEnvelope, error) {
	req := smartWriteRequest{Question: question, PreviewOnly: true}
	var payload previewPayload
	if err := c.doJSON(ctx, http.MethodPost, "/analysis/smart-write", req, &payload); err != nil {
		return nil, err
	}
	return payload.toCore(), nil
}

// SmartWriteCommit executes a previously previewed write command.
func (c *Client) SmartWriteCommit(ctx context.Context, question string) (*core.CommitResult, error) {
	req := smartWriteRequest{Question: question, PreviewOnly: false, Confirmed: true}
	var payload commitPayload
	if err := c.doJSON(ctx, http.MethodPost, "/analysis/smart-write", req, &payload); err != nil {
		return nil, err
	}
	return payload.toCore(), nil
}

// AnalyzeMultimodal sends message text plus uploaded attachment identifiers
// for analysis. Returns a read-shaped result regardless of mode.
func (c *Client) AnalyzeMultimodal(ctx context.Context, question string, attachmentIDs []string) (*core.ReadResult, error) {
	req := multimodalRequest{Message: question, AttachmentIDs: attachmentIDs}
	var payload readResultPayload
	if err := c.doJSON(ctx, http.MethodPost, "/analysis/multimodal", req, &payload); err != nil {
		return nil, err
	}
	return payload.toCore(), nil
}

// RunningCrawlCount returns the number of crawl jobs currently running.
func (c *Client) RunningCrawlCount(ctx context.Context) (int, error) {
	var payload struct {
		Count int `json:"count"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/crawl-jobs/running-count", nil, &payload); err != nil {
		return 0, err
	}
	return payload.Count, nil
}
