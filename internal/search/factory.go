package search

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/decision-research/internal/config"
	"github.com/sells-group/decision-research/internal/model"
	"github.com/sells-group/decision-research/internal/pipeline"
	"github.com/sells-group/decision-research/internal/resilience"
	"github.com/sells-group/decision-research/pkg/jina"
	"github.com/sells-group/decision-research/pkg/perplexity"
	"github.com/sells-group/decision-research/pkg/tavily"
)

// Service is the configured provider stack: Guarded around Counting around
// the provider adapter.
type Service struct {
	provider string
	counter  *Counting
	guarded  *Guarded
}

// Option configures New.
type Option func(*options)

type options struct {
	onStateChange func(from, to resilience.CircuitState)
	httpClient    *http.Client
}

// WithStateChange observes circuit breaker transitions.
func WithStateChange(fn func(from, to resilience.CircuitState)) Option {
	return func(o *options) { o.onStateChange = fn }
}

// WithHTTPClient overrides the provider HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// New builds the search stack selected by cfg.Search.Provider.
func New(cfg *config.Config, opts ...Option) (*Service, error) {
	o := &options{}
	for _, fn := range opts {
		fn(o)
	}

	provider := strings.ToLower(strings.TrimSpace(cfg.Search.Provider))
	if provider == "" {
		provider = model.ProviderTavily
	}

	var adapter pipeline.Searcher
	switch provider {
	case model.ProviderTavily:
		var topts []tavily.Option
		if cfg.Tavily.BaseURL != "" {
			topts = append(topts, tavily.WithBaseURL(cfg.Tavily.BaseURL))
		}
		if cfg.Tavily.SearchDepth != "" {
			topts = append(topts, tavily.WithSearchDepth(cfg.Tavily.SearchDepth))
		}
		if o.httpClient != nil {
			topts = append(topts, tavily.WithHTTPClient(o.httpClient))
		}
		adapter = &Tavily{
			Client:     tavily.NewClient(cfg.Tavily.Key, topts...),
			MaxResults: cfg.Search.MaxResults,
			RawContent: cfg.Tavily.RawContent,
		}
	case model.ProviderJina:
		var jopts []jina.Option
		if cfg.Jina.SearchBaseURL != "" {
			jopts = append(jopts, jina.WithSearchBaseURL(cfg.Jina.SearchBaseURL))
		}
		if o.httpClient != nil {
			jopts = append(jopts, jina.WithHTTPClient(o.httpClient))
		}
		adapter = &Jina{
			Client:     jina.NewClient(cfg.Jina.Key, jopts...),
			MaxResults: cfg.Search.MaxResults,
		}
	case model.ProviderPerplexity:
		var popts []perplexity.Option
		if cfg.Perplexity.BaseURL != "" {
			popts = append(popts, perplexity.WithBaseURL(cfg.Perplexity.BaseURL))
		}
		if cfg.Perplexity.Model != "" {
			popts = append(popts, perplexity.WithModel(cfg.Perplexity.Model))
		}
		if o.httpClient != nil {
			popts = append(popts, perplexity.WithHTTPClient(o.httpClient))
		}
		adapter = &Perplexity{
			Client:     perplexity.NewClient(cfg.Perplexity.Key, popts...),
			MaxResults: cfg.Search.MaxResults,
		}
	default:
		return nil, eris.Errorf("search: unknown provider %q", cfg.Search.Provider)
	}

	breaker := resilience.FromCircuitConfig(cfg.Search.Circuit)
	breaker.OnStateChange = func(from, to resilience.CircuitState) {
		zap.L().Warn("search: circuit state change",
			zap.String("provider", provider),
			zap.Stringer("from", from),
			zap.Stringer("to", to),
		)
		if o.onStateChange != nil {
			o.onStateChange(from, to)
		}
	}

	counter := &Counting{Next: adapter}
	guarded := &Guarded{
		Next:    counter,
		Guard:   resilience.NewGuard(provider, resilience.FromRetryConfig(cfg.Search.Retry), breaker),
		Timeout: time.Duration(cfg.Search.TimeoutSecs) * time.Second,
	}
	if qps := cfg.Search.RateLimit.QPS; qps > 0 {
		burst := cfg.Search.RateLimit.Burst
		if burst <= 0 {
			burst = 1
		}
		guarded.Limiter = rate.NewLimiter(rate.Limit(qps), burst)
	}

	return &Service{provider: provider, counter: counter, guarded: guarded}, nil
}

// Search implements pipeline.Searcher.
func (s *Service) Search(ctx context.Context, query string) ([]model.Source, error) {
	return s.guarded.Search(ctx, query)
}

// Provider returns the selected provider name.
func (s *Service) Provider() string { return s.provider }

// Calls returns the number of provider calls made so far.
func (s *Service) Calls() int { return s.counter.Calls() }
