package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Validate checks that the settings required by mode are present and in
// range. Mode is the command being run: run, batch, serve, mcp or report.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "run", "batch", "mcp":
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	case "report":
		if c.Anthropic.Key == "" {
			errs = append(errs, "anthropic.key is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch strings.ToLower(c.Search.Provider) {
	case "tavily":
		if c.Tavily.Key == "" {
			errs = append(errs, "tavily.key is required")
		}
	case "jina":
		if c.Jina.Key == "" {
			errs = append(errs, "jina.key is required")
		}
	case "perplexity":
		if c.Perplexity.Key == "" {
			errs = append(errs, "perplexity.key is required")
		}
	default:
		errs = append(errs, fmt.Sprintf("search.provider %q must be one of tavily, jina, perplexity", c.Search.Provider))
	}

	switch strings.ToLower(c.Pipeline.Gate) {
	case "", "breadth", "scored":
	default:
		errs = append(errs, fmt.Sprintf("pipeline.gate %q must be breadth or scored", c.Pipeline.Gate))
	}
	if c.Pipeline.MaxQueryLength < 0 {
		errs = append(errs, "pipeline.max_query_length must be >= 0")
	}
	if c.Batch.Concurrency < 1 || c.Batch.Concurrency > 50 {
		errs = append(errs, "batch.concurrency must be between 1 and 50")
	}
	if c.Search.RateLimit.QPS < 0 {
		errs = append(errs, "search.rate_limit.qps must be >= 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}
