// Package bigeye implements a client for the Bigeye REST API.
//
// All methods return an *APIError when the remote service responds with a
// non-2xx status; transport failures are returned as wrapped errors. The
// client performs no automatic retries: failures propagate to the caller,
// which decides how to aggregate or surface them.
package bigeye

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/bigeyedata/bigeye-mcp-server/internal/logging"
)

// requestTimeout is the fixed per-call timeout. Lineage graph traversals on
// large catalogs can take well over a minute.
const requestTimeout = 120 * time.Second

// APIError is a failure reported by the Bigeye API itself, as opposed to a
// transport error.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bigeye api error (status %d): %s", e.StatusCode, e.Message)
}

// Client is a Bigeye REST API client bound to one instance and API key.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewClient creates a client from the given configuration.
func NewClient(cfg *Config, logger *logging.Logger) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
		logger: logger,
	}
}

// do issues a request and returns the raw response body. A non-2xx status is
// returned as *APIError carrying the response text.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body interface{}) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if c.apiKey != "" {
		// The Bigeye API uses the "apikey" scheme, not "Bearer".
		req.Header.Set("Authorization", "apikey "+c.apiKey)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Request(method, path, body)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response from %s: %w", path, err)
	}

	c.logger.Response(path, resp.StatusCode, respBody)

	if resp.StatusCode >= 400 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(respBody),
		}
	}

	return respBody, nil
}

// doJSON issues a request and decodes the JSON response into out. A nil out
// discards the response body.
func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	respBody, err := c.do(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decoding response from %s: %w", path, err)
	}
	return nil
}

// HealthStatus reports the result of a health probe.
type HealthStatus struct {
	Status   string `json:"status"`
	Response string `json:"response,omitempty"`
}

// CheckHealth probes the /health endpoint. The endpoint returns a plain "OK"
// rather than JSON.
func (c *Client) CheckHealth(ctx context.Context) (*HealthStatus, error) {
	body, err := c.do(ctx, http.MethodGet, "/health", nil, nil)
	if err != nil {
		return nil, err
	}
	status := "unhealthy"
	if string(bytes.TrimSpace(body)) == "OK" {
		status = "healthy"
	}
	return &HealthStatus{Status: status, Response: string(body)}, nil
}

// isNotFound reports whether err is an API error with HTTP 404.
func isNotFound(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && apiErr.StatusCode == http.StatusNotFound
}
