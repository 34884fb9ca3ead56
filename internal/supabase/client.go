// Package supabase is a lightweight PostgREST client for a Supabase-hosted
// documents table. It covers exactly the operations the retrieval pipeline
// and the documents API need.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ragkit/ragkit/internal/document"
	"github.com/ragkit/ragkit/internal/security"
)

const (
	// fetchPageSize is the page size used when walking the whole table.
	// PostgREST caps responses at the server's max-rows setting anyway;
	// explicit ranges keep pagination deterministic.
	fetchPageSize = 1000

	defaultTimeout = 30 * time.Second

	// Transient PostgREST failures (rate limits, 5xx) on read requests are
	// retried a couple of times with a short backoff before giving up.
	maxReadAttempts = 3
	retryBackoff    = 200 * time.Millisecond
)

// ErrNotFound is returned when an operation targets a row that does not exist.
var ErrNotFound = errors.New("document not found")

// Client talks to a Supabase project's PostgREST endpoint.
// All requests pass through security.URLValidator.
type Client struct {
	baseURL    string
	key        string
	table      string
	validator  *security.URLValidator
	httpClient *http.Client
}

// New creates a Supabase client for the given project URL and table.
// The table name must already be validated as a plain identifier; it is
// interpolated into request paths.
func New(projectURL, key, table string, validator *security.URLValidator) (*Client, error) {
	if projectURL == "" {
		return nil, fmt.Errorf("supabase URL is required")
	}
	if key == "" {
		return nil, fmt.Errorf("supabase key is required")
	}
	if table == "" {
		return nil, fmt.Errorf("table name is required")
	}
	if validator == nil {
		return nil, fmt.Errorf("url validator is required")
	}

	if err := validator.ValidateURL(projectURL); err != nil {
		return nil, fmt.Errorf("validating supabase URL: %w", err)
	}

	return &Client{
		baseURL:    projectURL + "/rest/v1/" + table,
		key:        key,
		table:      table,
		validator:  validator,
		httpClient: validator.NewSafeHTTPClient(defaultTimeout),
	}, nil
}

// FetchDocuments retrieves every row of the table, paginating with Range
// headers. It feeds keyword retrieval, which scores the full corpus.
func (c *Client) FetchDocuments(ctx context.Context) ([]document.Document, error) {
	var all []document.Document

	for offset := 0; ; offset += fetchPageSize {
		reqURL := c.baseURL + "?select=id,title,content,created_at&order=id.asc"

		page, err := c.fetchRange(ctx, reqURL, offset, offset+fetchPageSize-1)
		if err != nil {
			return nil, err
		}

		all = append(all, page...)
		if len(page) < fetchPageSize {
			break
		}
	}

	slog.Debug("fetched documents from supabase",
		"table", c.table,
		"count", len(all))

	return all, nil
}

// List retrieves a single page of documents ordered by id.
func (c *Client) List(ctx context.Context, limit, offset int) ([]document.Document, error) {
	reqURL := fmt.Sprintf("%s?select=id,title,content,created_at&order=id.asc&limit=%d&offset=%d",
		c.baseURL, limit, offset)

	var docs []document.Document
	if err := c.makeRequest(ctx, http.MethodGet, reqURL, nil, nil, &docs); err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	return docs, nil
}

// Add inserts a document and returns the stored row.
func (c *Client) Add(ctx context.Context, title, content string) (*document.Document, error) {
	body := map[string]string{
		"title":   title,
		"content": content,
	}
	headers := map[string]string{
		"Prefer": "return=representation",
	}

	// PostgREST returns the inserted rows as an array.
	var rows []document.Document
	if err := c.makeRequest(ctx, http.MethodPost, c.baseURL, headers, body, &rows); err != nil {
		return nil, fmt.Errorf("inserting document: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("insert returned no rows")
	}
	return &rows[0], nil
}

// Delete removes a document by id. Returns ErrNotFound if no row matched.
func (c *Client) Delete(ctx context.Context, id int64) error {
	reqURL := c.baseURL + "?id=eq." + strconv.FormatInt(id, 10)
	headers := map[string]string{
		"Prefer": "return=representation",
	}

	var rows []document.Document
	if err := c.makeRequest(ctx, http.MethodDelete, reqURL, headers, nil, &rows); err != nil {
		return fmt.Errorf("deleting document %d: %w", id, err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return nil
}

// Ping checks reachability of the table with a minimal request.
func (c *Client) Ping(ctx context.Context) error {
	reqURL := c.baseURL + "?select=id&limit=1"
	if err := c.makeRequest(ctx, http.MethodGet, reqURL, nil, nil, nil); err != nil {
		return fmt.Errorf("supabase ping: %w", err)
	}
	return nil
}

// fetchRange requests rows [from, to] using a PostgREST Range header.
func (c *Client) fetchRange(ctx context.Context, reqURL string, from, to int) ([]document.Document, error) {
	headers := map[string]string{
		"Range-Unit": "items",
		"Range":      fmt.Sprintf("%d-%d", from, to),
	}

	var docs []document.Document
	if err := c.makeRequest(ctx, http.MethodGet, reqURL, headers, nil, &docs); err != nil {
		return nil, fmt.Errorf("fetching documents %d-%d: %w", from, to, err)
	}
	return docs, nil
}

// makeRequest performs an HTTP request against PostgREST. GETs are retried
// on retryable API errors; writes go out exactly once.
func (c *Client) makeRequest(ctx context.Context, method, reqURL string, headers map[string]string, body, result any) error {
	if err := c.validator.ValidateURL(reqURL); err != nil {
		return fmt.Errorf("security validation failed: %w", err)
	}

	var data []byte
	if body != nil {
		var err error
		data, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
	}

	attempts := 1
	if method == http.MethodGet {
		attempts = maxReadAttempts
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			slog.Debug("retrying supabase request",
				"url", redactURL(reqURL),
				"attempt", attempt+1,
				"error", lastErr)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryBackoff << (attempt - 1)):
			}
		}

		lastErr = c.doRequest(ctx, method, reqURL, headers, data, result)
		if lastErr == nil {
			return nil
		}

		var apiErr *APIError
		if !errors.As(lastErr, &apiErr) || !apiErr.IsRetryable() {
			return lastErr
		}
	}
	return lastErr
}

// doRequest sends one request with the standard auth headers, decoding the
// JSON response into result when non-nil.
func (c *Client) doRequest(ctx context.Context, method, reqURL string, headers map[string]string, data []byte, result any) error {
	var reqBody io.Reader
	if data != nil {
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("apikey", c.key)
	req.Header.Set("Authorization", "Bearer "+c.key)
	req.Header.Set("Accept", "application/json")
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
			URL:        redactURL(reqURL),
		}
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshaling response: %w", err)
		}
	}

	return nil
}

// redactURL strips query values before the URL lands in an error message.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<unparseable url>"
	}
	u.RawQuery = ""
	return u.String()
}
