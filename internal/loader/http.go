package loader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/raphaelgruber/spidersync/internal/syncerr"
)

// HTTP fetches spider files with GET below a base URL.
type HTTP struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTP creates an HTTP loader. A nil client gets a default with a 5 minute timeout.
func NewHTTP(baseURL string, client *http.Client) *HTTP {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}
	return &HTTP{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: client,
	}
}

// Open issues GET {baseURL}/{name}. Any non-2xx status is an error; 404 is reported as not found.
func (h *HTTP) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	segments := strings.Split(name, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	target := h.baseURL + "/" + strings.Join(segments, "/")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, syncerr.Transport(name, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		if resp.StatusCode == http.StatusNotFound {
			return nil, syncerr.NotFound(name, nil)
		}
		return nil, syncerr.Transport(name, fmt.Errorf("GET %s: %s", target, resp.Status))
	}
	return resp.Body, nil
}
