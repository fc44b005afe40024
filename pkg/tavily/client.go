// Package tavily provides a client for the Tavily web search API.
package tavily

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

const (
	defaultBaseURL     = "https://api.tavily.com"
	defaultSearchDepth = "advanced"
	defaultMaxResults  = 8
)

// Client performs searches against the Tavily API.
type Client interface {
	Search(ctx context.Context, req SearchRequest) (*SearchResponse, error)
}

// SearchRequest is the request body for POST /search.
type SearchRequest struct {
	Query             string   `json:"query"`
	SearchDepth       string   `json:"search_depth,omitempty"`
	MaxResults        int      `json:"max_results,omitempty"`
	IncludeRawContent bool     `json:"include_raw_content,omitempty"`
	IncludeDomains    []string `json:"include_domains,omitempty"`
}

// SearchResponse is the response from POST /search.
type SearchResponse struct {
	Query        string   `json:"query"`
	Answer       string   `json:"answer,omitempty"`
	Results      []Result `json:"results"`
	ResponseTime float64  `json:"response_time"`
}

// Result is a single ranked search hit.
type Result struct {
	Title         string  `json:"title"`
	URL           string  `json:"url"`
	Content       string  `json:"content"`
	RawContent    string  `json:"raw_content,omitempty"`
	Score         float64 `json:"score"`
	PublishedDate string  `json:"published_date,omitempty"`
}

// APIError is returned for non-200 responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("tavily: unexpected status %d: %s", e.StatusCode, e.Body)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithSearchDepth sets the default search depth ("basic" or "advanced").
func WithSearchDepth(depth string) Option {
	return func(c *httpClient) {
		c.searchDepth = depth
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey      string
	baseURL     string
	searchDepth string
	maxResults  int
	http        *http.Client
}

// NewClient creates a Tavily API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:      apiKey,
		baseURL:     defaultBaseURL,
		searchDepth: defaultSearchDepth,
		maxResults:  defaultMaxResults,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	if req.Query == "" {
		return nil, eris.New("tavily: empty query")
	}
	if req.SearchDepth == "" {
		req.SearchDepth = c.searchDepth
	}
	if req.MaxResults <= 0 {
		req.MaxResults = c.maxResults
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "tavily: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "tavily: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "tavily: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "tavily: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var result SearchResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "tavily: unmarshal response")
	}

	return &result, nil
}
