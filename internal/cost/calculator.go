package cost

import (
	"strings"

	"github.com/sells-group/decision-research/internal/config"
)

// Rates holds per-provider pricing configuration.
type Rates struct {
	Anthropic map[string]ModelRate `yaml:"anthropic" mapstructure:"anthropic"`
	Search    map[string]float64   `yaml:"search" mapstructure:"search"`
}

// ModelRate holds per-model token pricing (per million tokens).
type ModelRate struct {
	Input         float64 `yaml:"input" mapstructure:"input"`
	Output        float64 `yaml:"output" mapstructure:"output"`
	CacheWriteMul float64 `yaml:"cache_write_mul" mapstructure:"cache_write_mul"`
	CacheReadMul  float64 `yaml:"cache_read_mul" mapstructure:"cache_read_mul"`
}

// Estimate is the cost breakdown of one research run.
type Estimate struct {
	Provider      string  `json:"provider"`
	SearchQueries int     `json:"search_queries"`
	SearchUSD     float64 `json:"search_usd"`
	LLMUSD        float64 `json:"llm_usd"`
	TotalUSD      float64 `json:"total_usd"`
}

// Calculator computes costs for API usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Claude computes the cost for a Claude API call.
func (c *Calculator) Claude(model string, input, output, cacheWrite, cacheRead int64) float64 {
	rate, ok := c.rates.Anthropic[model]
	if !ok {
		return 0
	}

	inCost := (float64(input) / 1e6) * rate.Input
	outCost := (float64(output) / 1e6) * rate.Output
	cwCost := (float64(cacheWrite) / 1e6) * rate.Input * rate.CacheWriteMul
	crCost := (float64(cacheRead) / 1e6) * rate.Input * rate.CacheReadMul

	return inCost + outCost + cwCost + crCost
}

// Search returns the cost of n queries against provider. Unknown providers
// cost nothing.
func (c *Calculator) Search(provider string, n int) float64 {
	return float64(n) * c.rates.Search[strings.ToLower(provider)]
}

// Run combines search and LLM spend for one research run.
func (c *Calculator) Run(provider string, queries int, llmUSD float64) Estimate {
	search := c.Search(provider, queries)
	return Estimate{
		Provider:      provider,
		SearchQueries: queries,
		SearchUSD:     search,
		LLMUSD:        llmUSD,
		TotalUSD:      search + llmUSD,
	}
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		Anthropic: map[string]ModelRate{
			"claude-haiku-4-5-20251001": {
				Input: 0.80, Output: 4.00, CacheWriteMul: 1.25, CacheReadMul: 0.1,
			},
			"claude-sonnet-4-5-20250929": {
				Input: 3.00, Output: 15.00, CacheWriteMul: 1.25, CacheReadMul: 0.1,
			},
			"claude-opus-4-6": {
				Input: 15.00, Output: 75.00, CacheWriteMul: 1.25, CacheReadMul: 0.1,
			},
		},
		Search: map[string]float64{
			"tavily":     0.008,
			"jina":       0.002,
			"perplexity": 0.005,
		},
	}
}

// RatesFromConfig overlays configured prices on DefaultRates.
func RatesFromConfig(cfg config.PricingConfig) Rates {
	rates := DefaultRates()
	for model, p := range cfg.Anthropic {
		rates.Anthropic[model] = ModelRate{
			Input:         p.Input,
			Output:        p.Output,
			CacheWriteMul: p.CacheWriteMul,
			CacheReadMul:  p.CacheReadMul,
		}
	}
	if cfg.Search.Tavily > 0 {
		rates.Search["tavily"] = cfg.Search.Tavily
	}
	if cfg.Search.Jina > 0 {
		rates.Search["jina"] = cfg.Search.Jina
	}
	if cfg.Search.Perplexity > 0 {
		rates.Search["perplexity"] = cfg.Search.Perplexity
	}
	return rates
}
