package gridservice

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
)

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 4 << 20

// HTTPClientConfig holds configuration for the HTTP transport.
type HTTPClientConfig struct {
	BaseURL        string
	RequestTimeout time.Duration
}

// DefaultHTTPClientConfig returns default configuration.
func DefaultHTTPClientConfig() HTTPClientConfig {
	return HTTPClientConfig{
		BaseURL:        "http://localhost:8000",
		RequestTimeout: 120 * time.Second,
	}
}

// HTTPClient talks to the grid backend's JSON API.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewHTTPClient creates a client for the backend at cfg.BaseURL.
func NewHTTPClient(cfg HTTPClientConfig, logger *slog.Logger) (*HTTPClient, error) {
	if logger == nil {
		logger = slog.Default()
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("grid service base URL is empty")
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultHTTPClientConfig().RequestTimeout
	}
	return &HTTPClient{
		baseURL: base,
		http:    &http.Client{Timeout: cfg.RequestTimeout},
		logger:  logger,
	}, nil
}

type loadRequest struct {
	CaseName string `json:"case_name"`
}

type loadResponse struct {
	Status  string         `json:"status"`
	Message string         `json:"message"`
	Stats   map[string]any `json:"stats"`
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Response *string `json:"response"`
	Stats    any     `json:"stats"`
}

type casesResponse struct {
	Cases []string `json:"cases"`
}

type errorResponse struct {
	Detail any `json:"detail"`
}

// LoadCase implements Service.
func (c *HTTPClient) LoadCase(ctx context.Context, caseName string) (LoadResult, error) {
	const op = "load case"
	var resp loadResponse
	if err := c.do(ctx, op, http.MethodPost, "/load", loadRequest{CaseName: caseName}, &resp); err != nil {
		return LoadResult{}, err
	}
	if len(resp.Stats) == 0 {
		return LoadResult{}, malformed(op, errMissingStats)
	}
	stats, err := decodeStats(resp.Stats)
	if err != nil {
		return LoadResult{}, malformed(op, err)
	}
	c.logger.Debug("Grid case loaded", "case", caseName, "buses", stats.BusCount)
	return LoadResult{Stats: stats, Message: resp.Message}, nil
}

// SendMessage implements Service.
func (c *HTTPClient) SendMessage(ctx context.Context, text string) (ChatResult, error) {
	const op = "send message"
	var resp chatResponse
	if err := c.do(ctx, op, http.MethodPost, "/chat", chatRequest{Message: text}, &resp); err != nil {
		return ChatResult{}, err
	}
	if resp.Response == nil {
		return ChatResult{}, malformed(op, errEmptyResponse)
	}
	stats, err := decodeOptionalStats(resp.Stats)
	if err != nil {
		return ChatResult{}, malformed(op, err)
	}
	return ChatResult{ResponseText: *resp.Response, Stats: stats}, nil
}

// ListCases implements CaseLister.
func (c *HTTPClient) ListCases(ctx context.Context) ([]string, error) {
	var resp casesResponse
	if err := c.do(ctx, "list cases", http.MethodGet, "/cases", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Cases, nil
}

// Ping implements Pinger.
func (c *HTTPClient) Ping(ctx context.Context) error {
	var resp map[string]any
	return c.do(ctx, "health", http.MethodGet, "/health", nil, &resp)
}

// Close releases idle connections.
func (c *HTTPClient) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

func (c *HTTPClient) do(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		c.logger.Warn("Grid service request failed", "op", op, "path", path, "error", err)
		return classifyTransport(op, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Debug("failed to close response body", "error", closeErr)
		}
	}()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return unavailable(op, fmt.Errorf("read response: %w", err))
	}

	c.logger.Debug("Grid service response",
		"op", op,
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return classifyStatus(op, resp.StatusCode, errorDetail(data))
	}

	if err := json.Unmarshal(data, out); err != nil {
		return malformed(op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// errorDetail extracts FastAPI's {"detail": ...} message, falling back to the raw body.
func errorDetail(data []byte) string {
	var e errorResponse
	if err := json.Unmarshal(data, &e); err == nil && e.Detail != nil {
		if s, ok := e.Detail.(string); ok {
			return s
		}
		if b, err := json.Marshal(e.Detail); err == nil {
			return string(b)
		}
	}
	s := strings.TrimSpace(string(data))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
