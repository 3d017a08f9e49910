// Package index provides an HTTP client for an Elasticsearch-compatible search engine.
package index

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

	"github.com/raphaelgruber/spidersync/internal/metrics"
	"github.com/raphaelgruber/spidersync/internal/syncerr"
)

// AttachmentPipeline is the ingest pipeline that extracts text from the data field.
const AttachmentPipeline = "attachment"

// Config holds search engine connection settings.
type Config struct {
	Host     string
	User     string
	Password string
	Timeout  time.Duration
}

// Client talks to the search engine's REST API.
type Client struct {
	host       string
	user       string
	password   string
	httpClient *http.Client
	metrics    *metrics.Collector
}

// New creates a client. A zero timeout defaults to 5 minutes since attachment inserts can be large.
func New(cfg Config, collector *metrics.Collector) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Client{
		host:       strings.TrimSuffix(cfg.Host, "/"),
		user:       cfg.User,
		password:   cfg.Password,
		httpClient: &http.Client{Timeout: timeout},
		metrics:    collector,
	}
}

// SearchRequest is the body of a _search call.
type SearchRequest struct {
	Size        int                 `json:"size"`
	Query       map[string]any      `json:"query"`
	Fields      []string            `json:"fields,omitempty"`
	Source      bool                `json:"_source"`
	Sort        []map[string]string `json:"sort,omitempty"`
	SearchAfter []json.RawMessage   `json:"search_after,omitempty"`
}

// SearchResponse is the subset of a _search response the pipeline reads.
type SearchResponse struct {
	Hits struct {
		Hits []Hit `json:"hits"`
	} `json:"hits"`
}

// Hit is a single search result.
type Hit struct {
	ID     string            `json:"_id"`
	Fields map[string][]any  `json:"fields,omitempty"`
	Sort   []json.RawMessage `json:"sort,omitempty"`
}

// FirstString returns the first value of a fields entry if it is a string.
func (h Hit) FirstString(field string) (string, bool) {
	values := h.Fields[field]
	if len(values) == 0 {
		return "", false
	}
	s, ok := values[0].(string)
	return s, ok
}

// Exists reports whether the index exists. Any non-200 answer means it does not.
func (c *Client) Exists(ctx context.Context, index string) (bool, error) {
	resp, err := c.do(ctx, http.MethodHead, "/"+url.PathEscape(index), nil)
	if err != nil {
		return false, syncerr.Transport(index, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK, nil
}

// DeleteIndex drops the whole index.
func (c *Client) DeleteIndex(ctx context.Context, index string) error {
	_, err := c.call(ctx, index, http.MethodDelete, "/"+url.PathEscape(index), nil)
	return err
}

// Search runs a _search request against the index.
func (c *Client) Search(ctx context.Context, index string, req SearchRequest) (*SearchResponse, error) {
	start := time.Now()
	body, err := c.call(ctx, index, http.MethodPost, "/"+url.PathEscape(index)+"/_search", req)
	c.metrics.RecordTiming(metrics.OpIndexSearch, time.Since(start))
	if err != nil {
		return nil, err
	}

	var result SearchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, syncerr.IndexState(index, fmt.Errorf("unmarshal response: %w", err))
	}
	return &result, nil
}

// UpdateDoc merge-patches fields onto an existing document.
func (c *Client) UpdateDoc(ctx context.Context, index, id string, doc any) error {
	start := time.Now()
	_, err := c.call(ctx, id, http.MethodPost, docPath(index, "_update", id), map[string]any{"doc": doc})
	c.metrics.RecordTiming(metrics.OpIndexUpdate, time.Since(start))
	return err
}

// PutDoc inserts or replaces a document, routed through pipeline when non-empty.
func (c *Client) PutDoc(ctx context.Context, index, id string, doc any, pipeline string) error {
	p := docPath(index, "_doc", id)
	if pipeline != "" {
		p += "?pipeline=" + url.QueryEscape(pipeline)
	}
	start := time.Now()
	_, err := c.call(ctx, id, http.MethodPut, p, doc)
	c.metrics.RecordTiming(metrics.OpIndexInsert, time.Since(start))
	return err
}

// DeleteDoc removes a document. A missing document is not an error.
func (c *Client) DeleteDoc(ctx context.Context, index, id string) error {
	start := time.Now()
	defer func() { c.metrics.RecordTiming(metrics.OpIndexDelete, time.Since(start)) }()

	resp, err := c.do(ctx, http.MethodDelete, docPath(index, "_doc", id), nil)
	if err != nil {
		return syncerr.Transport(id, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return syncerr.Transport(id, fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode == http.StatusNotFound || isSuccess(resp.StatusCode) {
		return nil
	}
	return syncerr.IndexState(id, responseError(resp, body))
}

func docPath(index, endpoint, id string) string {
	return "/" + url.PathEscape(index) + "/" + endpoint + "/" + url.PathEscape(id)
}

// call sends a JSON request and returns the body of a 2xx response.
// Failures are attributed to subject.
func (c *Client) call(ctx context.Context, subject, method, path string, payload any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	resp, err := c.do(ctx, method, path, reqBody)
	if err != nil {
		return nil, syncerr.Transport(subject, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, syncerr.Transport(subject, fmt.Errorf("read response: %w", err))
	}

	if !isSuccess(resp.StatusCode) {
		return nil, syncerr.IndexState(subject, responseError(resp, body))
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.host+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.user != "" {
		req.SetBasicAuth(c.user, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	return resp, nil
}

func isSuccess(status int) bool {
	return status >= 200 && status <= 299
}

// responseError extracts the engine's error object, falling back to the raw body.
func responseError(resp *http.Response, body []byte) error {
	var payload struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && len(payload.Error) > 0 {
		return fmt.Errorf("%s: %s", resp.Status, payload.Error)
	}
	return fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(body)))
}
