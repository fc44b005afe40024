package tavily

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearch(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantErr     string
		wantResults int
	}{
		{
			name:   "success",
			status: http.StatusOK,
			body: `{
				"query": "heat pump vs gas boiler",
				"results": [
					{"title": "Heat pumps", "url": "https://www.iea.org/hp", "content": "Heat pumps...", "raw_content": "# Heat pumps\n...", "score": 0.91, "published_date": "2024-05-02"},
					{"title": "Boilers", "url": "https://en.wikipedia.org/wiki/Boiler", "content": "A boiler...", "score": 0.55}
				],
				"response_time": 1.42
			}`,
			wantResults: 2,
		},
		{
			name:        "no_results",
			status:      http.StatusOK,
			body:        `{"query": "zzqx", "results": [], "response_time": 0.3}`,
			wantResults: 0,
		},
		{
			name:    "unauthorized",
			status:  http.StatusUnauthorized,
			body:    `{"detail": {"error": "Unauthorized: missing or invalid API key."}}`,
			wantErr: "unexpected status 401",
		},
		{
			name:    "rate_limit",
			status:  http.StatusTooManyRequests,
			body:    `{"detail": {"error": "rate limit"}}`,
			wantErr: "unexpected status 429",
		},
		{
			name:    "malformed_response",
			status:  http.StatusOK,
			body:    `{invalid json`,
			wantErr: "unmarshal response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/search", r.URL.Path)
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
				assert.Equal(t, "Bearer tvly-test", r.Header.Get("Authorization"))

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := NewClient("tvly-test", WithBaseURL(srv.URL))
			resp, err := client.Search(context.Background(), SearchRequest{Query: "heat pump vs gas boiler"})

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Nil(t, resp)
				return
			}

			require.NoError(t, err)
			assert.Len(t, resp.Results, tt.wantResults)
		})
	}
}

func TestSearch_ResultFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"results": [{"title": "Heat pumps", "url": "https://www.iea.org/hp", "content": "c", "raw_content": "rc", "score": 0.91, "published_date": "2024-05-02"}]}`))
	}))
	defer srv.Close()

	resp, err := NewClient("k", WithBaseURL(srv.URL)).Search(context.Background(), SearchRequest{Query: "q"})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)

	assert.Equal(t, Result{
		Title:         "Heat pumps",
		URL:           "https://www.iea.org/hp",
		Content:       "c",
		RawContent:    "rc",
		Score:         0.91,
		PublishedDate: "2024-05-02",
	}, resp.Results[0])
}

func TestSearch_Defaults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req SearchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "advanced", req.SearchDepth)
		assert.Equal(t, 8, req.MaxResults)
		_, _ = w.Write([]byte(`{"results": []}`))
	}))
	defer srv.Close()

	_, err := NewClient("k", WithBaseURL(srv.URL)).Search(context.Background(), SearchRequest{Query: "q"})
	require.NoError(t, err)
}

func TestSearch_OptionsAndRequestOverride(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		var raw map[string]any
		require.NoError(t, json.Unmarshal(body, &raw))
		assert.Equal(t, "basic", raw["search_depth"])
		assert.Equal(t, float64(3), raw["max_results"])
		assert.Equal(t, true, raw["include_raw_content"])
		assert.Equal(t, []any{"who.int"}, raw["include_domains"])

		_, _ = w.Write([]byte(`{"results": []}`))
	}))
	defer srv.Close()

	client := NewClient("k", WithBaseURL(srv.URL), WithSearchDepth("basic"))
	_, err := client.Search(context.Background(), SearchRequest{
		Query:             "q",
		MaxResults:        3,
		IncludeRawContent: true,
		IncludeDomains:    []string{"who.int"},
	})
	require.NoError(t, err)
}

func TestSearch_EmptyQuery(t *testing.T) {
	_, err := NewClient("k").Search(context.Background(), SearchRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty query")
}

func TestSearch_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`upstream`))
	}))
	defer srv.Close()

	_, err := NewClient("k", WithBaseURL(srv.URL)).Search(context.Background(), SearchRequest{Query: "q"})

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "upstream", apiErr.Body)
}

func TestSearch_ContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"results": []}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewClient("k", WithBaseURL(srv.URL)).Search(ctx, SearchRequest{Query: "q"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "send request")
}

func TestNewClient_Defaults(t *testing.T) {
	t.Parallel()
	hc := NewClient("my-key").(*httpClient)
	assert.Equal(t, "my-key", hc.apiKey)
	assert.Equal(t, defaultBaseURL, hc.baseURL)
	assert.Equal(t, defaultSearchDepth, hc.searchDepth)
	assert.Equal(t, defaultMaxResults, hc.maxResults)
	assert.NotNil(t, hc.http)
}

func TestWithHTTPClient(t *testing.T) {
	t.Parallel()
	custom := &http.Client{}
	hc := NewClient("k", WithHTTPClient(custom)).(*httpClient)
	assert.Equal(t, custom, hc.http)
}
