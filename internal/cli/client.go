package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hyperjump/kotae/internal/assistant"
	"github.com/hyperjump/kotae/internal/models"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Client talks to a running kotae server.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a client for the server at baseURL (e.g. http://localhost:8080).
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Ask posts a question. Unavailable and degraded answers are returned as answers, not errors.
func (c *Client) Ask(ctx context.Context, req models.AskRequest) (*models.Answer, error) {
	var ans models.Answer
	if err := c.do(ctx, http.MethodPost, "/api/v1/ask", req, &ans, true); err != nil {
		return nil, err
	}
	return &ans, nil
}

// Status fetches the server status.
func (c *Client) Status(ctx context.Context) (*assistant.Status, error) {
	var st assistant.Status
	if err := c.do(ctx, http.MethodGet, "/api/v1/status", nil, &st, false); err != nil {
		return nil, err
	}
	return &st, nil
}

// do sends a request and decodes the JSON body into out. When answerOnError is set, error
// responses that still carry an answer body are decoded rather than failed.
func (c *Client) do(ctx context.Context, method, path string, in, out interface{}, answerOnError bool) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error  string `json:"error"`
			Status string `json:"status"`
		}
		_ = json.Unmarshal(raw, &apiErr)
		if answerOnError && apiErr.Status != "" {
			return json.Unmarshal(raw, out)
		}
		if apiErr.Error != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
