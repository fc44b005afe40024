package search

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/sells-group/decision-research/internal/config"
	"github.com/sells-group/decision-research/internal/model"
	"github.com/sells-group/decision-research/internal/pipeline"
	"github.com/sells-group/decision-research/internal/resilience"
)

func fastGuard(attempts, threshold int) *resilience.Guard {
	return resilience.NewGuard("test", resilience.RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
		Multiplier:     1,
	}, resilience.CircuitBreakerConfig{
		FailureThreshold: threshold,
		ResetTimeout:     time.Hour,
	})
}

func TestGuarded_RetriesTransient(t *testing.T) {
	var calls int
	inner := pipeline.SearchFunc(func(_ context.Context, _ string) ([]model.Source, error) {
		calls++
		if calls < 3 {
			return nil, resilience.NewTransientError(errors.New("503"), 503)
		}
		return []model.Source{{URL: "https://ok.example"}}, nil
	})

	g := &Guarded{Next: inner, Guard: fastGuard(3, 10)}
	got, err := g.Search(context.Background(), "q")
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, 3, calls)
}

func TestGuarded_PermanentErrorNotRetried(t *testing.T) {
	var calls int
	inner := pipeline.SearchFunc(func(_ context.Context, _ string) ([]model.Source, error) {
		calls++
		return nil, errors.New("invalid api key")
	})

	g := &Guarded{Next: inner, Guard: fastGuard(3, 10)}
	_, err := g.Search(context.Background(), "q")
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestGuarded_CircuitOpens(t *testing.T) {
	var calls int
	inner := pipeline.SearchFunc(func(_ context.Context, _ string) ([]model.Source, error) {
		calls++
		return nil, resilience.NewTransientError(errors.New("502"), 502)
	})

	g := &Guarded{Next: inner, Guard: fastGuard(1, 2)}
	for i := 0; i < 2; i++ {
		_, err := g.Search(context.Background(), "q")
		require.Error(t, err)
	}
	_, err := g.Search(context.Background(), "q")
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, 2, calls)
	assert.Equal(t, resilience.CircuitOpen, g.Guard.Breaker.State())
}

func TestGuarded_AttemptTimeoutRetried(t *testing.T) {
	var calls int
	inner := pipeline.SearchFunc(func(ctx context.Context, _ string) ([]model.Source, error) {
		calls++
		if calls == 1 {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return []model.Source{{URL: "https://late.example"}}, nil
	})

	g := &Guarded{Next: inner, Guard: fastGuard(2, 10), Timeout: 10 * time.Millisecond}
	got, err := g.Search(context.Background(), "q")
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, 2, calls)
}

func TestGuarded_RateLimitHonorsContext(t *testing.T) {
	inner := pipeline.SearchFunc(func(_ context.Context, _ string) ([]model.Source, error) {
		return nil, nil
	})
	g := &Guarded{Next: inner, Limiter: rate.NewLimiter(rate.Every(time.Hour), 1)}

	_, err := g.Search(context.Background(), "first")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = g.Search(ctx, "second")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit wait")
}

func TestCounting(t *testing.T) {
	c := &Counting{Next: pipeline.SearchFunc(func(_ context.Context, _ string) ([]model.Source, error) {
		return nil, nil
	})}
	for i := 0; i < 4; i++ {
		_, _ = c.Search(context.Background(), "q")
	}
	assert.Equal(t, 4, c.Calls())
}

func testConfig(provider, baseURL string) *config.Config {
	cfg := &config.Config{}
	cfg.Search.Provider = provider
	cfg.Search.MaxResults = 3
	cfg.Search.TimeoutSecs = 5
	cfg.Search.Retry = config.RetryConfig{MaxAttempts: 2, InitialBackoffMs: 1, MaxBackoffMs: 1, Multiplier: 1}
	cfg.Search.Circuit = config.CircuitConfig{FailureThreshold: 5, ResetTimeoutSecs: 30}
	cfg.Tavily = config.TavilyConfig{Key: "tk", BaseURL: baseURL}
	cfg.Jina = config.JinaConfig{Key: "jk", SearchBaseURL: baseURL}
	cfg.Perplexity = config.PerplexityConfig{Key: "pk", BaseURL: baseURL, Model: "sonar"}
	return cfg
}

func TestNew_UnknownProvider(t *testing.T) {
	_, err := New(testConfig("bing", ""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown provider "bing"`)
}

func TestNew_DefaultsToTavily(t *testing.T) {
	svc, err := New(testConfig("", ""))
	require.NoError(t, err)
	assert.Equal(t, model.ProviderTavily, svc.Provider())
}

func TestNew_TavilyEndToEnd(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "Bearer tk", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[{"title":"T","url":"https://t.example","content":"c"}]}`))
	}))
	defer srv.Close()

	var transitions []string
	svc, err := New(testConfig(" Tavily ", srv.URL), WithStateChange(func(from, to resilience.CircuitState) {
		transitions = append(transitions, from.String()+"->"+to.String())
	}))
	require.NoError(t, err)

	got, err := svc.Search(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://t.example"}, model.URLs(got))
	assert.Equal(t, 2, svc.Calls())
	assert.Empty(t, transitions)
}

func TestNew_JinaAndPerplexity(t *testing.T) {
	jsrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":200,"data":[{"title":"J","url":"https://j.example","description":"d"}]}`))
	}))
	defer jsrv.Close()

	svc, err := New(testConfig("jina", jsrv.URL))
	require.NoError(t, err)
	got, err := svc.Search(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://j.example"}, model.URLs(got))

	psrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","choices":[],"citations":["https://p.example"]}`))
	}))
	defer psrv.Close()

	svc, err = New(testConfig("perplexity", psrv.URL))
	require.NoError(t, err)
	assert.Equal(t, model.ProviderPerplexity, svc.Provider())
	got, err = svc.Search(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://p.example"}, model.URLs(got))
	assert.Equal(t, 1, svc.Calls())
}
