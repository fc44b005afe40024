package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Search     SearchConfig     `yaml:"search" mapstructure:"search"`
	Tavily     TavilyConfig     `yaml:"tavily" mapstructure:"tavily"`
	Jina       JinaConfig       `yaml:"jina" mapstructure:"jina"`
	Perplexity PerplexityConfig `yaml:"perplexity" mapstructure:"perplexity"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Telemetry  TelemetryConfig  `yaml:"telemetry" mapstructure:"telemetry"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Pricing    PricingConfig    `yaml:"pricing" mapstructure:"pricing"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// SearchConfig selects the web search provider and guards calls to it.
type SearchConfig struct {
	Provider    string          `yaml:"provider" mapstructure:"provider"`
	TimeoutSecs int             `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxResults  int             `yaml:"max_results" mapstructure:"max_results"`
	RateLimit   RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
	Retry       RetryConfig     `yaml:"retry" mapstructure:"retry"`
	Circuit     CircuitConfig   `yaml:"circuit" mapstructure:"circuit"`
}

// RateLimitConfig caps outbound request rate. QPS <= 0 disables limiting.
type RateLimitConfig struct {
	QPS   float64 `yaml:"qps" mapstructure:"qps"`
	Burst int     `yaml:"burst" mapstructure:"burst"`
}

// RetryConfig configures exponential backoff for transient failures.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
}

// CircuitConfig configures the provider circuit breaker.
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// TavilyConfig holds Tavily search API settings.
type TavilyConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	SearchDepth string `yaml:"search_depth" mapstructure:"search_depth"`
	RawContent  bool   `yaml:"include_raw_content" mapstructure:"include_raw_content"`
}

// JinaConfig holds Jina AI search settings.
type JinaConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	SearchBaseURL string `yaml:"search_base_url" mapstructure:"search_base_url"`
}

// PerplexityConfig holds Perplexity API settings.
type PerplexityConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// AnthropicConfig holds Anthropic API settings used for report drafting.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// PipelineConfig configures the research pipeline.
type PipelineConfig struct {
	MaxQueryLength int    `yaml:"max_query_length" mapstructure:"max_query_length"`
	Gate           string `yaml:"gate" mapstructure:"gate"`
	IncludeDebug   bool   `yaml:"include_debug" mapstructure:"include_debug"`
}

// TelemetryConfig switches event emission off.
type TelemetryConfig struct {
	Disabled bool `yaml:"disabled" mapstructure:"disabled"`
	TestMode bool `yaml:"test_mode" mapstructure:"test_mode"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// PricingConfig holds per-provider pricing rates.
type PricingConfig struct {
	Anthropic map[string]ModelPricing `yaml:"anthropic" mapstructure:"anthropic"`
	Search    SearchPricing           `yaml:"search" mapstructure:"search"`
}

// ModelPricing holds per-model token pricing (USD per million tokens).
type ModelPricing struct {
	Input         float64 `yaml:"input" mapstructure:"input"`
	Output        float64 `yaml:"output" mapstructure:"output"`
	CacheWriteMul float64 `yaml:"cache_write_mul" mapstructure:"cache_write_mul"`
	CacheReadMul  float64 `yaml:"cache_read_mul" mapstructure:"cache_read_mul"`
}

// SearchPricing holds flat per-query search prices in USD.
type SearchPricing struct {
	Tavily     float64 `yaml:"tavily" mapstructure:"tavily"`
	Jina       float64 `yaml:"jina" mapstructure:"jina"`
	Perplexity float64 `yaml:"perplexity" mapstructure:"perplexity"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("DECISION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("batch.concurrency", 4)
	v.SetDefault("search.provider", "tavily")
	v.SetDefault("search.timeout_secs", 20)
	v.SetDefault("search.max_results", 8)
	v.SetDefault("search.rate_limit.qps", 2.0)
	v.SetDefault("search.rate_limit.burst", 4)
	v.SetDefault("search.retry.max_attempts", 3)
	v.SetDefault("search.retry.initial_backoff_ms", 500)
	v.SetDefault("search.retry.max_backoff_ms", 10000)
	v.SetDefault("search.retry.multiplier", 2.0)
	v.SetDefault("search.retry.jitter_fraction", 0.25)
	v.SetDefault("search.circuit.failure_threshold", 5)
	v.SetDefault("search.circuit.reset_timeout_secs", 30)
	v.SetDefault("tavily.base_url", "https://api.tavily.com")
	v.SetDefault("tavily.search_depth", "advanced")
	v.SetDefault("tavily.include_raw_content", true)
	v.SetDefault("jina.search_base_url", "https://s.jina.ai")
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar-pro")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 2048)
	v.SetDefault("pipeline.max_query_length", 400)
	v.SetDefault("pipeline.gate", "breadth")
	v.SetDefault("pipeline.include_debug", false)
	v.SetDefault("telemetry.disabled", false)
	v.SetDefault("telemetry.test_mode", false)
	v.SetDefault("pricing.search.tavily", 0.008)
	v.SetDefault("pricing.search.jina", 0.002)
	v.SetDefault("pricing.search.perplexity", 0.005)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
