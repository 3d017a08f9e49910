// Package client talks to a running spidersync ingress server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/raphaelgruber/spidersync/internal/metrics"
	"github.com/raphaelgruber/spidersync/internal/models"
	"github.com/raphaelgruber/spidersync/internal/server"
	"github.com/raphaelgruber/spidersync/internal/service"
)

// Client is an HTTP client for the ingress server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client.
// If baseURL is empty, uses SPIDERSYNC_SERVER_URL or defaults to localhost:8000.
// The timeout comes from SPIDERSYNC_CLIENT_TIMEOUT (default 30m, uploads wait for the whole run).
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("SPIDERSYNC_SERVER_URL")
	}
	if baseURL == "" {
		baseURL = "http://localhost:8000"
	}

	timeout := 30 * time.Minute
	if t := os.Getenv("SPIDERSYNC_CLIENT_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			timeout = d
		}
	}

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// UploadError is a rejected or failed upload.
type UploadError struct {
	StatusCode int
	server.ErrorResponse
}

func (e *UploadError) Error() string {
	if e.Subject != "" {
		return fmt.Sprintf("server error %d (%s, %s): %s", e.StatusCode, e.Kind, e.Subject, e.ErrorResponse.Error)
	}
	return fmt.Sprintf("server error %d: %s", e.StatusCode, e.ErrorResponse.Error)
}

// Upload posts a notification and waits for the server to process it.
func (c *Client) Upload(ctx context.Context, n *models.Notification) error {
	reqBody, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/", bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusCreated {
		return nil
	}

	uploadErr := &UploadError{StatusCode: resp.StatusCode}
	if err := json.Unmarshal(body, &uploadErr.ErrorResponse); err != nil || uploadErr.ErrorResponse.Error == "" {
		uploadErr.ErrorResponse = server.ErrorResponse{Error: strings.TrimSpace(string(body))}
	}
	return uploadErr
}

// ListRuns returns the runs the server tracks, most recent first.
func (c *Client) ListRuns(ctx context.Context) ([]service.RunInfo, error) {
	var runs []service.RunInfo
	if err := c.get(ctx, "/runs", &runs); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// Stats returns the server's metrics snapshot.
func (c *Client) Stats(ctx context.Context) (*metrics.Snapshot, error) {
	var snap metrics.Snapshot
	if err := c.get(ctx, "/stats", &snap); err != nil {
		return nil, fmt.Errorf("get stats: %w", err)
	}
	return &snap, nil
}

func (c *Client) get(ctx context.Context, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server error: %s - %s", resp.Status, string(body))
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}
