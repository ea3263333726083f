// Package common holds the HTTP plumbing shared by the intelligence
// clients: request shaping, timeouts, health checks, and response decoding.
package common

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/turtacn/LightMap-Intelligence/internal/infrastructure/monitoring/logging"
)

var (
	ErrServingUnavailable = errors.New("serving unavailable")
	ErrBadStatus          = errors.New("serving returned non-success status")
	ErrMalformedResponse  = errors.New("serving returned a malformed response")
)

const defaultTimeout = 30 * time.Second

// maxErrorBodyBytes bounds how much of an error response is read back for
// logging.
const maxErrorBodyBytes = 2048

// ServingClient is a thin JSON-over-HTTP client for an external model
// serving endpoint.  Both the embedding and adjudicator clients are built on
// top of it.
type ServingClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     logging.Logger
}

// NewServingClient builds a client for the given base URL.  A zero timeout
// falls back to the default.
func NewServingClient(baseURL, apiKey string, timeout time.Duration, logger logging.Logger) (*ServingClient, error) {
	if baseURL == "" {
		return nil, errors.New("base URL cannot be empty")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &ServingClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.Named("serving"),
	}, nil
}

// PostJSON POSTs reqBody as JSON to path and decodes the response into
// respBody.  Transport errors and non-2xx statuses come back wrapped in
// ErrServingUnavailable / ErrBadStatus so callers can treat them as soft
// failures.
func (c *ServingClient) PostJSON(ctx context.Context, path string, reqBody, respBody interface{}) error {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrServingUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		c.logger.Warn("serving request failed",
			logging.String("path", path),
			logging.Int("status", resp.StatusCode),
			logging.String("body", string(body)),
		)
		return fmt.Errorf("%w: %d", ErrBadStatus, resp.StatusCode)
	}

	if respBody == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

// Healthy probes the endpoint's health path.
func (c *ServingClient) Healthy(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrServingUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %d", ErrBadStatus, resp.StatusCode)
	}
	return nil
}

// StripJSONFences removes a surrounding markdown code fence from a model
// response, tolerating an optional language tag.  Plain JSON passes through
// untouched.
func StripJSONFences(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	t = strings.TrimPrefix(t, "```")
	if idx := strings.IndexByte(t, '\n'); idx >= 0 {
		first := strings.TrimSpace(t[:idx])
		// A language tag like "json" sits on the fence line.
		if first == "" || !strings.ContainsAny(first, "{[") {
			t = t[idx+1:]
		}
	}
	t = strings.TrimSuffix(strings.TrimSpace(t), "```")
	return strings.TrimSpace(t)
}
