// Package canvas is a small client for the Canvas LMS REST API.
package canvas

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tomnomnom/linkheader"
	"golang.org/x/time/rate"
)

// Config holds the connection settings for the Canvas API.
type Config struct {
	BaseURL string        // e.g. https://school.instructure.com/api/v1
	Token   string        // Bearer token
	Timeout time.Duration // Per-request timeout (default: 30s)
	// RateLimit caps requests per second across all callers. Zero disables pacing.
	RateLimit float64
}

// Client fetches resources from Canvas. It is safe for concurrent use.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	limiter    *rate.Limiter
}

// New creates a new client for the given configuration.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	c := &Client{
		BaseURL: strings.TrimRight(cfg.BaseURL, "/"),
		Token:   cfg.Token,
		HTTPClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
	if cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return c
}

// APIError represents a non-success response from Canvas.
type APIError struct {
	StatusCode int
	URL        string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("canvas API error (%d) for %s: %s", e.StatusCode, e.URL, e.Message)
}

// Pages yields each page of a paginated collection, following the rel="next" link
// until Canvas stops sending one. The sequence ends after the first error.
func (c *Client) Pages(ctx context.Context, path string, query url.Values) iter.Seq2[[]json.RawMessage, error] {
	return func(yield func([]json.RawMessage, error) bool) {
		next := c.BaseURL + path
		if len(query) > 0 {
			next += "?" + query.Encode()
		}

		for next != "" {
			body, header, err := c.get(ctx, next)
			if err != nil {
				yield(nil, err)
				return
			}

			var page []json.RawMessage
			if err := json.Unmarshal(body, &page); err != nil {
				yield(nil, fmt.Errorf("failed to parse page %s: %w", next, err))
				return
			}
			if !yield(page, nil) {
				return
			}

			next = nextLink(header)
		}
	}
}

// FetchAll drains Pages. On error the records gathered so far are dropped.
func (c *Client) FetchAll(ctx context.Context, path string, query url.Values) ([]json.RawMessage, error) {
	var records []json.RawMessage
	for page, err := range c.Pages(ctx, path, query) {
		if err != nil {
			return nil, err
		}
		records = append(records, page...)
	}
	return records, nil
}

// getJSON fetches a single (non-paginated) resource into v.
func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	body, _, err := c.get(ctx, c.BaseURL+path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, http.Header, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", c.Token))
	req.Header.Add("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil, &APIError{StatusCode: resp.StatusCode, URL: endpoint, Message: strings.TrimSpace(string(body))}
	}

	return body, resp.Header, nil
}

func nextLink(header http.Header) string {
	links := linkheader.ParseMultiple(header.Values("Link"))
	for _, link := range links.FilterByRel("next") {
		if link.URL != "" {
			return link.URL
		}
	}
	return ""
}
