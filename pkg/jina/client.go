// Package jina provides a client for the Jina AI search API.
package jina

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
)

const defaultSearchBaseURL = "https://s.jina.ai"

// Client defines the Jina AI search operations.
type Client interface {
	// Search performs a web search via Jina AI Search and returns results.
	Search(ctx context.Context, query string, opts ...SearchOption) (*SearchResponse, error)
}

// SearchResponse is the parsed Jina Search API response.
type SearchResponse struct {
	Code int            `json:"code"`
	Data []SearchResult `json:"data"`
}

// SearchResult represents a single search result.
type SearchResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Content     string `json:"content"`
	Description string `json:"description"`
	Date        string `json:"date,omitempty"`
	Usage       Usage  `json:"usage"`
}

// Usage tracks token consumption for a result.
type Usage struct {
	Tokens int `json:"tokens"`
}

// APIError is returned for unexpected HTTP statuses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("jina: search unexpected status %d: %s", e.StatusCode, e.Body)
}

// SearchOption configures a search request.
type SearchOption func(*searchOpts)

type searchOpts struct {
	siteFilter string
	count      int
}

// WithSiteFilter restricts search results to a specific domain.
func WithSiteFilter(domain string) SearchOption {
	return func(o *searchOpts) {
		o.siteFilter = domain
	}
}

// WithCount caps the number of results returned.
func WithCount(n int) SearchOption {
	return func(o *searchOpts) {
		o.count = n
	}
}

// Option configures the Jina client.
type Option func(*httpClient)

// WithSearchBaseURL sets a custom search base URL (for testing).
func WithSearchBaseURL(url string) Option {
	return func(c *httpClient) {
		c.searchBaseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey        string
	searchBaseURL string
	http          *http.Client
}

// NewClient creates a new Jina AI search client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:        apiKey,
		searchBaseURL: defaultSearchBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Search(ctx context.Context, query string, opts ...SearchOption) (*SearchResponse, error) {
	so := &searchOpts{}
	for _, opt := range opts {
		opt(so)
	}

	reqURL := fmt.Sprintf("%s/%s", c.searchBaseURL, url.PathEscape(query))
	params := url.Values{}
	if so.siteFilter != "" {
		params.Set("site", so.siteFilter)
	}
	if so.count > 0 {
		params.Set("count", strconv.Itoa(so.count))
	}
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "jina: create search request")
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "jina: search request failed")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "jina: read search response")
	}

	// Jina returns 422 when no results are available for the query.
	// Treat this as empty results rather than an error.
	if resp.StatusCode == http.StatusUnprocessableEntity {
		return &SearchResponse{Code: http.StatusUnprocessableEntity}, nil
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var result SearchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "jina: unmarshal search response")
	}

	return &result, nil
}
